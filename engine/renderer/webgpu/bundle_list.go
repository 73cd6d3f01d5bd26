package webgpu

import "github.com/spaghettifunk/anima-webgpu/engine/renderer/hal"

type bundleItem struct {
	bundle hal.RenderBundle
	state  func(pass hal.RenderPass)
}

// BundleList is the ordered command stream of one pass in bundle mode:
// recorded bundles interleaved with the pass state changes that must take
// effect between them.
type BundleList struct {
	items []bundleItem
}

func NewBundleList() *BundleList {
	return &BundleList{}
}

func (l *BundleList) addBundle(b hal.RenderBundle) {
	l.items = append(l.items, bundleItem{bundle: b})
}

func (l *BundleList) addState(fn func(pass hal.RenderPass)) {
	l.items = append(l.items, bundleItem{state: fn})
}

// run replays the list on pass. Consecutive bundles go out in a single
// ExecuteBundles call.
func (l *BundleList) run(pass hal.RenderPass) {
	var batch []hal.RenderBundle
	flush := func() {
		if len(batch) > 0 {
			pass.ExecuteBundles(batch...)
			batch = nil
		}
	}
	for _, it := range l.items {
		if it.bundle != nil {
			batch = append(batch, it.bundle)
			continue
		}
		flush()
		it.state(pass)
	}
	flush()
}

func (l *BundleList) Len() int { return len(l.items) }

func (l *BundleList) reset() { l.items = l.items[:0] }
