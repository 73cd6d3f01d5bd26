package core

import "fmt"

// IdentifierPool hands out small integer ids and recycles released ones,
// lowest first.
type IdentifierPool struct {
	owners []interface{}
}

func NewIdentifierPool(capacity int) *IdentifierPool {
	return &IdentifierPool{
		owners: make([]interface{}, 0, capacity),
	}
}

func (p *IdentifierPool) Acquire(owner interface{}) uint32 {
	for i, o := range p.owners {
		// Existing free spot. Take it.
		if o == nil {
			p.owners[i] = owner
			return uint32(i)
		}
	}
	// No free slot, push one. The id is the new last index.
	p.owners = append(p.owners, owner)
	return uint32(len(p.owners) - 1)
}

func (p *IdentifierPool) Release(id uint32) error {
	if int(id) >= len(p.owners) || p.owners[id] == nil {
		return fmt.Errorf("identifier %d (max=%d): %w", id, len(p.owners), ErrIdentifierUnused)
	}
	// Just zero out the entry, making it available for use.
	p.owners[id] = nil
	return nil
}

// Owner returns the object the id was acquired for, or nil.
func (p *IdentifierPool) Owner(id uint32) interface{} {
	if int(id) >= len(p.owners) {
		return nil
	}
	return p.owners[id]
}

func (p *IdentifierPool) InUse() int {
	n := 0
	for _, o := range p.owners {
		if o != nil {
			n++
		}
	}
	return n
}
