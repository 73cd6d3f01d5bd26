package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEventBusDispatchOrder(t *testing.T) {
	bus := NewEventBus()
	var calls []string
	first, second := "first", "second"

	assert.True(t, bus.Register(EventCodeResized, first, func(code SystemEventCode, sender, listener interface{}, data EventContext) bool {
		calls = append(calls, listener.(string))
		assert.Equal(t, uint32(640), data.Data.U32[0])
		return false
	}))
	assert.True(t, bus.Register(EventCodeResized, second, func(code SystemEventCode, sender, listener interface{}, data EventContext) bool {
		calls = append(calls, listener.(string))
		return true
	}))
	assert.False(t, bus.Register(EventCodeResized, first, func(SystemEventCode, interface{}, interface{}, EventContext) bool { return false }))

	ctx := EventContext{}
	ctx.Data.U32[0] = 640
	assert.True(t, bus.Fire(EventCodeResized, nil, ctx))
	assert.Equal(t, []string{"first", "second"}, calls)

	assert.True(t, bus.Unregister(EventCodeResized, second))
	assert.False(t, bus.Unregister(EventCodeResized, second))
	assert.False(t, bus.Fire(EventCodeResized, nil, ctx))
	assert.Equal(t, []string{"first", "second", "first"}, calls)
}

func TestEventBusRejectsBadRegistrations(t *testing.T) {
	bus := NewEventBus()
	noop := func(SystemEventCode, interface{}, interface{}, EventContext) bool { return false }
	assert.False(t, bus.Register(-1, nil, noop))
	assert.False(t, bus.Register(MaxMessageCodes, nil, noop))
	assert.False(t, bus.Register(EventCodeApplicationQuit, nil, nil))

	assert.True(t, bus.Register(EventCodeApplicationQuit, "x", noop))
	bus.Shutdown()
	assert.False(t, bus.Unregister(EventCodeApplicationQuit, "x"))
}
