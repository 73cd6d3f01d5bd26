package webgpu

import (
	"fmt"

	"github.com/spaghettifunk/anima-webgpu/engine/core"
	"github.com/spaghettifunk/anima-webgpu/engine/renderer/hal"
)

type EncoderState int

const (
	ENCODER_STATE_NO_PASS EncoderState = iota
	ENCODER_STATE_MAIN_PASS_OPEN
	ENCODER_STATE_RENDER_TARGET_PASS_OPEN
	ENCODER_STATE_INTERNAL_PASS_OPEN
	ENCODER_STATE_COMPUTE_PASS_OPEN
	ENCODER_STATE_NOT_ALLOCATED
)

func (s EncoderState) String() string {
	switch s {
	case ENCODER_STATE_NO_PASS:
		return "no pass"
	case ENCODER_STATE_MAIN_PASS_OPEN:
		return "main pass open"
	case ENCODER_STATE_RENDER_TARGET_PASS_OPEN:
		return "render target pass open"
	case ENCODER_STATE_INTERNAL_PASS_OPEN:
		return "internal pass open"
	case ENCODER_STATE_COMPUTE_PASS_OPEN:
		return "compute pass open"
	}
	return "not allocated"
}

// trackedEncoder wraps a command encoder with the pass it currently hosts.
// A second pass is refused before it reaches the device.
type trackedEncoder struct {
	label   string
	encoder hal.CommandEncoder
	State   EncoderState
}

func newTrackedEncoder(device hal.Device, label string) (*trackedEncoder, error) {
	enc, err := device.CreateCommandEncoder(label)
	if err != nil {
		err = fmt.Errorf("failed to create the %s encoder: %w", label, err)
		core.LogError("%s", err)
		return nil, err
	}
	return &trackedEncoder{label: label, encoder: enc, State: ENCODER_STATE_NO_PASS}, nil
}

func (t *trackedEncoder) checkNoPass() error {
	if t.State != ENCODER_STATE_NO_PASS {
		return fmt.Errorf("%s encoder (%s): %w", t.label, t.State, ErrPassOpen)
	}
	return nil
}

func (t *trackedEncoder) beginRenderPass(desc *hal.RenderPassDescriptor, state EncoderState) (hal.RenderPass, error) {
	if err := t.checkNoPass(); err != nil {
		core.LogError("%s", err)
		return nil, err
	}
	pass, err := t.encoder.BeginRenderPass(desc)
	if err != nil {
		return nil, err
	}
	t.State = state
	return pass, nil
}

func (t *trackedEncoder) beginComputePass(label string) (hal.ComputePass, error) {
	if err := t.checkNoPass(); err != nil {
		core.LogError("%s", err)
		return nil, err
	}
	pass, err := t.encoder.BeginComputePass(label)
	if err != nil {
		return nil, err
	}
	t.State = ENCODER_STATE_COMPUTE_PASS_OPEN
	return pass, nil
}

func (t *trackedEncoder) endPass(pass interface{ End() error }) error {
	t.State = ENCODER_STATE_NO_PASS
	return pass.End()
}

func (t *trackedEncoder) finish() (hal.CommandBuffer, error) {
	if err := t.checkNoPass(); err != nil {
		return nil, err
	}
	cb, err := t.encoder.Finish()
	t.State = ENCODER_STATE_NOT_ALLOCATED
	return cb, err
}

// runInternalPass opens a pass, lets fn record into it and closes it.
func (t *trackedEncoder) runInternalPass(desc *hal.RenderPassDescriptor, fn func(pass hal.RenderPass)) error {
	pass, err := t.beginRenderPass(desc, ENCODER_STATE_INTERNAL_PASS_OPEN)
	if err != nil {
		return err
	}
	fn(pass)
	return t.endPass(pass)
}
