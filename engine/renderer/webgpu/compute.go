package webgpu

import (
	"fmt"

	"github.com/spaghettifunk/anima-webgpu/engine/containers"
	"github.com/spaghettifunk/anima-webgpu/engine/core"
	"github.com/spaghettifunk/anima-webgpu/engine/renderer/hal"
	"github.com/spaghettifunk/anima-webgpu/engine/renderer/shaders"
)

// computeQueue holds the dispatches issued while the render target encoder
// hosted a pass. They run in call order, each exactly once.
type computeQueue struct {
	queue *containers.RingQueue[func() error]
}

func newComputeQueue() *computeQueue {
	return &computeQueue{queue: containers.NewRingQueue[func() error](4, true)}
}

func (q *computeQueue) push(fn func() error) error {
	return q.queue.Enqueue(fn)
}

func (q *computeQueue) Len() int { return q.queue.Len() }

// drain runs every queued dispatch. A failing dispatch does not stop the
// following ones; the first error is returned.
func (q *computeQueue) drain() error {
	var first error
	for !q.queue.IsEmpty() {
		fn, err := q.queue.Dequeue()
		if err != nil {
			break
		}
		if err := fn(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// CreateComputeEffect compiles a compute program and builds its pipeline.
func (e *Engine) CreateComputeEffect(req shaders.Request) (*Effect, error) {
	if req.ComputeEntry == "" {
		err := fmt.Errorf("compute program %s has no compute entry point: %w", req.Name, shaders.ErrNoEntryPoint)
		core.LogError("%s", err)
		return nil, err
	}
	return e.CreateEffect(req)
}

// PendingComputeDispatches returns how many dispatches wait for the render
// target pass to end.
func (e *Engine) PendingComputeDispatches() int { return e.deferredCompute.Len() }

// ComputeDispatch runs fx over an x by y by z grid of workgroups with the
// bindings of ctx. While a render target pass is open the dispatch is
// queued until the render target is unbound.
func (e *Engine) ComputeDispatch(fx *Effect, ctx *ComputeContext, x, y, z uint32) error {
	return e.computeDispatch(fx, ctx, func(pass hal.ComputePass) {
		pass.DispatchWorkgroups(x, y, z)
	})
}

// ComputeDispatchIndirect reads the workgroup counts from buf at offset.
func (e *Engine) ComputeDispatchIndirect(fx *Effect, ctx *ComputeContext, buf *DataBuffer, offset uint64) error {
	if buf == nil || buf.buffer == nil {
		return fmt.Errorf("indirect dispatch buffer: %w", hal.ErrResourceReleased)
	}
	return e.computeDispatch(fx, ctx, func(pass hal.ComputePass) {
		pass.DispatchWorkgroupsIndirect(buf.buffer, offset)
	})
}

func (e *Engine) computeDispatch(fx *Effect, ctx *ComputeContext, dispatch func(pass hal.ComputePass)) error {
	if err := e.checkReady(); err != nil {
		return err
	}
	if fx == nil || fx.compute == nil {
		core.LogError("compute dispatch: %s", ErrNoEffect)
		return ErrNoEffect
	}
	if ctx == nil {
		ctx = NewComputeContext()
	}
	gen := e.deviceGen
	run := func() error {
		if gen != e.deviceGen {
			return nil
		}
		return e.runCompute(fx, ctx, dispatch)
	}
	if e.renderTargetEncoder.State == ENCODER_STATE_RENDER_TARGET_PASS_OPEN {
		e.diag.Logf("deferring dispatch of %s until the render target pass ends", fx.program.Name)
		return e.deferredCompute.push(run)
	}
	return run()
}

func (e *Engine) runCompute(fx *Effect, ctx *ComputeContext, dispatch func(pass hal.ComputePass)) error {
	groups, err := e.bindGroupCache.groups(fx, 0, ctx, [2]uint64{ctx.updateID, 0})
	if err != nil {
		return err
	}
	pass, err := e.renderTargetEncoder.beginComputePass(fx.program.Name)
	if err != nil {
		return err
	}
	pass.SetPipeline(fx.compute)
	for i, g := range groups {
		pass.SetBindGroup(uint32(i), g, nil)
	}
	dispatch(pass)
	return e.renderTargetEncoder.endPass(pass)
}
