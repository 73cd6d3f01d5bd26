package haltest

import (
	"context"
	"fmt"

	"github.com/spaghettifunk/anima-webgpu/engine/renderer/hal"
)

type Buffer struct {
	Desc      hal.BufferDescriptor
	data      []byte
	mapped    bool
	destroyed bool
}

func (b *Buffer) Size() uint64 { return b.Desc.Size }

func (b *Buffer) MappedRange(offset, size uint64) []byte {
	if !b.mapped {
		return nil
	}
	if size == hal.WholeSize {
		size = uint64(len(b.data)) - offset
	}
	return b.data[offset : offset+size]
}

func (b *Buffer) MapRead(ctx context.Context, offset, size uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if b.Desc.Usage&hal.BufferUsageMapRead == 0 {
		return fmt.Errorf("haltest: buffer %q is not mappable for reading", b.Desc.Label)
	}
	if b.destroyed {
		return fmt.Errorf("haltest: buffer %q: %w", b.Desc.Label, hal.ErrResourceReleased)
	}
	b.mapped = true
	return nil
}

func (b *Buffer) Unmap() { b.mapped = false }

func (b *Buffer) Destroy() { b.destroyed = true }

func (b *Buffer) Destroyed() bool { return b.destroyed }

// Bytes exposes the buffer contents to tests.
func (b *Buffer) Bytes() []byte { return b.data }
