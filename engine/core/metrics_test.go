package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFrameMetrics(t *testing.T) {
	m := NewFrameMetrics()
	// 1/64 s frames are exact in binary.
	for i := 0; i < 64; i++ {
		m.Update(1.0 / 64.0)
	}
	assert.InDelta(t, 15.625, m.FrameTime(), 1e-9)
	assert.Equal(t, 0.0, m.FPS())

	m.Update(1.0 / 64.0)
	fps, ms := m.Frame()
	assert.Equal(t, 64.0, fps)
	assert.InDelta(t, 15.625, ms, 1e-9)
}

func TestClock(t *testing.T) {
	c := NewClock()
	c.Update()
	assert.Equal(t, 0.0, c.Elapsed())

	c.Start()
	time.Sleep(2 * time.Millisecond)
	c.Update()
	elapsed := c.Elapsed()
	assert.Greater(t, elapsed, 0.0)

	c.Stop()
	time.Sleep(time.Millisecond)
	c.Update()
	assert.Equal(t, elapsed, c.Elapsed())
}
