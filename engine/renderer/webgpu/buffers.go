package webgpu

import (
	"fmt"

	"github.com/spaghettifunk/anima-webgpu/engine/core"
	"github.com/spaghettifunk/anima-webgpu/engine/math"
	"github.com/spaghettifunk/anima-webgpu/engine/renderer/hal"
)

// DataBuffer is a GPU buffer plus a CPU copy of its contents, kept so the
// buffer can be rebuilt on a new device.
type DataBuffer struct {
	id    uint32
	Label string
	usage hal.BufferUsage
	size  uint64

	buffer hal.Buffer
	data   []byte
}

func (b *DataBuffer) ID() uint32 { return b.id }

func (b *DataBuffer) Size() uint64 { return b.size }

func (b *DataBuffer) Buffer() hal.Buffer { return b.buffer }

func (e *Engine) CreateVertexBuffer(label string, data []byte) (*DataBuffer, error) {
	return e.createBuffer(label, hal.BufferUsageVertex|hal.BufferUsageCopyDst, uint64(len(data)), data)
}

func (e *Engine) CreateIndexBuffer(label string, data []byte) (*DataBuffer, error) {
	return e.createBuffer(label, hal.BufferUsageIndex|hal.BufferUsageCopyDst, uint64(len(data)), data)
}

func (e *Engine) CreateUniformBuffer(label string, size uint64) (*DataBuffer, error) {
	return e.createBuffer(label, hal.BufferUsageUniform|hal.BufferUsageCopyDst, size, nil)
}

func (e *Engine) CreateStorageBuffer(label string, size uint64) (*DataBuffer, error) {
	return e.createBuffer(label, hal.BufferUsageStorage|hal.BufferUsageCopyDst|hal.BufferUsageCopySrc, size, nil)
}

// CreateIndirectBuffer creates a buffer of draw or dispatch arguments that
// compute shaders can also write.
func (e *Engine) CreateIndirectBuffer(label string, data []byte) (*DataBuffer, error) {
	return e.createBuffer(label, hal.BufferUsageIndirect|hal.BufferUsageStorage|hal.BufferUsageCopyDst, uint64(len(data)), data)
}

func (e *Engine) createBuffer(label string, usage hal.BufferUsage, size uint64, data []byte) (*DataBuffer, error) {
	if err := e.checkReady(); err != nil {
		return nil, err
	}
	if size == 0 {
		err := fmt.Errorf("buffer %q of size 0: %w", label, core.ErrInvalidArgument)
		core.LogError("%s", err)
		return nil, err
	}
	buf := &DataBuffer{
		Label: label,
		usage: usage,
		size:  math.AlignUp(size, 4),
	}
	buf.data = make([]byte, buf.size)
	copy(buf.data, data)
	if err := e.recreateBuffer(buf); err != nil {
		return nil, err
	}
	buf.id = e.bufferIDs.Acquire(buf)
	e.buffers[buf.id] = buf
	return buf, nil
}

// recreateBuffer builds the device buffer of buf from its CPU copy.
func (e *Engine) recreateBuffer(buf *DataBuffer) error {
	b, err := e.device.CreateBuffer(&hal.BufferDescriptor{
		Label: buf.Label,
		Size:  buf.size,
		Usage: buf.usage,
	})
	if err != nil {
		err = fmt.Errorf("create buffer %q: %w", buf.Label, err)
		core.LogError("%s", err)
		return err
	}
	if err := e.queue.WriteBuffer(b, 0, buf.data); err != nil {
		b.Destroy()
		err = fmt.Errorf("write buffer %q: %w", buf.Label, err)
		core.LogError("%s", err)
		return err
	}
	if old := buf.buffer; old != nil {
		e.retire(old.Destroy)
	}
	buf.buffer = b
	return nil
}

// UpdateBuffer writes data at offset. Draws keep their bundles; only the
// contents change.
func (e *Engine) UpdateBuffer(buf *DataBuffer, offset uint64, data []byte) error {
	if err := e.checkReady(); err != nil {
		return err
	}
	if buf.buffer == nil {
		return fmt.Errorf("update buffer %q: %w", buf.Label, hal.ErrResourceReleased)
	}
	if offset+uint64(len(data)) > buf.size {
		err := fmt.Errorf("update buffer %q: %d bytes at %d exceed %d: %w", buf.Label, len(data), offset, buf.size, core.ErrInvalidArgument)
		core.LogError("%s", err)
		return err
	}
	copy(buf.data[offset:], data)
	if err := e.queue.WriteBuffer(buf.buffer, offset, data); err != nil {
		err = fmt.Errorf("write buffer %q: %w", buf.Label, err)
		core.LogError("%s", err)
		return err
	}
	return nil
}

// ReleaseBuffer schedules the destruction of buf at the end of the frame.
func (e *Engine) ReleaseBuffer(buf *DataBuffer) {
	if buf == nil || buf.buffer == nil {
		return
	}
	b := buf.buffer
	buf.buffer = nil
	if _, ok := e.buffers[buf.id]; ok {
		delete(e.buffers, buf.id)
		if err := e.bufferIDs.Release(buf.id); err != nil {
			core.LogWarn("release buffer %q: %s", buf.Label, err)
		}
	}
	e.retire(b.Destroy)
}
