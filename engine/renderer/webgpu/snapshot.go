package webgpu

import (
	"github.com/spaghettifunk/anima-webgpu/engine/core"
	"github.com/spaghettifunk/anima-webgpu/engine/renderer/hal"
)

type SnapshotMode int

const (
	SNAPSHOT_MODE_OFF SnapshotMode = iota
	SNAPSHOT_MODE_RECORD
	SNAPSHOT_MODE_PLAY
)

// snapshotRecorder captures the main pass bundle list of one frame and
// replays it on the following frames. While playing, main pass draws are
// skipped entirely. The capture owns its bundles: releases of captured
// bundles are held back until the capture is dropped.
type snapshotRecorder struct {
	enabled bool
	mode    SnapshotMode
	list    *BundleList
	played  bool

	owned map[hal.RenderBundle]struct{}
	held  []func()
}

func (s *snapshotRecorder) playing(slot int) bool {
	return slot == mainPassSlot && s.mode == SNAPSHOT_MODE_PLAY
}

// holds reports whether b belongs to the capture. While recording, the main
// pass list still being built counts as part of it.
func (s *snapshotRecorder) holds(b hal.RenderBundle, current *BundleList) bool {
	if b == nil {
		return false
	}
	if _, ok := s.owned[b]; ok {
		return true
	}
	if s.mode != SNAPSHOT_MODE_RECORD || current == nil {
		return false
	}
	for _, it := range current.items {
		if it.bundle == b {
			return true
		}
	}
	return false
}

// reset drops the capture and returns the releases that were held back for
// it.
func (s *snapshotRecorder) reset() []func() {
	held := s.held
	s.held = nil
	s.owned = nil
	s.list = nil
	s.played = false
	if s.enabled {
		s.mode = SNAPSHOT_MODE_RECORD
	} else {
		s.mode = SNAPSHOT_MODE_OFF
	}
	return held
}

// endMainPass picks the list the main pass must run. While recording, every
// main pass segment of the frame is appended to the capture. While playing,
// the capture runs on the first main pass of the frame only.
func (s *snapshotRecorder) endMainPass(current *BundleList) *BundleList {
	switch s.mode {
	case SNAPSHOT_MODE_RECORD:
		if s.list == nil {
			s.list = NewBundleList()
			s.owned = make(map[hal.RenderBundle]struct{})
		}
		for _, it := range current.items {
			if it.bundle != nil {
				s.owned[it.bundle] = struct{}{}
			}
		}
		s.list.items = append(s.list.items, current.items...)
		return current
	case SNAPSHOT_MODE_PLAY:
		if s.played {
			return current
		}
		s.played = true
		return s.list
	}
	return current
}

// endFrame moves a finished capture into playback.
func (s *snapshotRecorder) endFrame() {
	if s.mode == SNAPSHOT_MODE_RECORD && s.list != nil {
		s.mode = SNAPSHOT_MODE_PLAY
	}
	s.played = false
}

// SetSnapshotRendering turns snapshot rendering on or off. Turning it on
// (again) records the next frame.
func (e *Engine) SetSnapshotRendering(enabled bool) {
	if enabled && e.opts.CompatibilityMode {
		core.LogWarn("snapshot rendering is not available in compatibility mode")
		return
	}
	e.snapshot.enabled = enabled
	for _, fn := range e.snapshot.reset() {
		e.retire(fn)
	}
}

// retireBundle schedules release for the end of the frame, or for when the
// snapshot capture is dropped if b is part of it.
func (e *Engine) retireBundle(b hal.RenderBundle, release func()) {
	if e.snapshot.holds(b, e.bundleLists[mainPassSlot]) {
		e.snapshot.held = append(e.snapshot.held, release)
		return
	}
	e.retire(release)
}

func (e *Engine) SnapshotMode() SnapshotMode { return e.snapshot.mode }
