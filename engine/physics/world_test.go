package physics

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/anima-webgpu/engine/core"
	"github.com/spaghettifunk/anima-webgpu/engine/math"
)

// recordingPlugin remembers the calls forwarded by the world.
type recordingPlugin struct {
	PointMassPlugin
	calls   []string
	steps   []float32
	initErr error
}

func (r *recordingPlugin) SetGravity(g math.Vec3) {
	r.calls = append(r.calls, "SetGravity")
	r.PointMassPlugin.SetGravity(g)
}

func (r *recordingPlugin) ExecuteStep(delta float32, bodies []*Body) {
	r.steps = append(r.steps, delta)
	r.PointMassPlugin.ExecuteStep(delta, bodies)
}

func (r *recordingPlugin) InitBody(b *Body) error {
	r.calls = append(r.calls, "InitBody")
	if r.initErr != nil {
		return r.initErr
	}
	return r.PointMassPlugin.InitBody(b)
}

func (r *recordingPlugin) RemoveBody(b *Body) {
	r.calls = append(r.calls, "RemoveBody")
	r.PointMassPlugin.RemoveBody(b)
}

func (r *recordingPlugin) Dispose() {
	r.calls = append(r.calls, "Dispose")
}

func TestNewWorldNeedsPlugin(t *testing.T) {
	_, err := NewWorld(nil)
	assert.ErrorIs(t, err, ErrNoPlugin)

	p := &recordingPlugin{}
	w, err := NewWorld(p)
	require.NoError(t, err)
	assert.Equal(t, DefaultGravity, w.Gravity())
	assert.Equal(t, []string{"SetGravity"}, p.calls)
}

func TestBodiesLifecycle(t *testing.T) {
	p := &recordingPlugin{}
	w, err := NewWorld(p)
	require.NoError(t, err)

	a, err := w.AddBody(BodyOptions{Type: ImpostorSphere, Mass: 1})
	require.NoError(t, err)
	b, err := w.AddBody(BodyOptions{Type: ImpostorBox, Mass: 2})
	require.NoError(t, err)
	assert.Equal(t, uint32(0), a.ID)
	assert.Equal(t, uint32(1), b.ID)
	assert.Equal(t, math.NewQuaternionIdentity(), a.Rotation())

	w.RemoveBody(a)
	assert.False(t, a.Initialized())
	assert.Len(t, w.Bodies(), 1)
	assert.ErrorIs(t, w.ApplyImpulse(a, math.NewVec3(1, 0, 0), math.Vec3{}), ErrBodyNotInitialized)

	c, err := w.AddBody(BodyOptions{Mass: 1})
	require.NoError(t, err)
	assert.Equal(t, uint32(0), c.ID)

	_, err = w.AddBody(BodyOptions{Mass: -1})
	assert.ErrorIs(t, err, core.ErrInvalidArgument)

	p.initErr = errors.New("no room")
	_, err = w.AddBody(BodyOptions{Mass: 1})
	assert.Error(t, err)
	assert.Len(t, w.Bodies(), 2)

	w.Dispose()
	assert.Empty(t, w.Bodies())
	assert.Equal(t, "Dispose", p.calls[len(p.calls)-1])
}

func TestStepUsesFixedTimeStep(t *testing.T) {
	p := &recordingPlugin{}
	w, err := NewWorld(p)
	require.NoError(t, err)
	w.SetTimeStep(0.1, 3)

	assert.Equal(t, 0, w.Step(0.05))
	assert.Equal(t, 1, w.Step(0.06))
	assert.Equal(t, 3, w.Step(1))
	assert.Equal(t, 0, w.Step(0.01))
	assert.Len(t, p.steps, 4)
	for _, s := range p.steps {
		assert.InDelta(t, 0.1, s, 1e-6)
	}
}

func TestPointMassIntegration(t *testing.T) {
	w, err := NewWorld(NewPointMassPlugin())
	require.NoError(t, err)
	w.SetGravity(math.Vec3{})
	w.SetTimeStep(0.5, 4)

	ball, err := w.AddBody(BodyOptions{Type: ImpostorSphere, Mass: 2})
	require.NoError(t, err)
	ground, err := w.AddBody(BodyOptions{Type: ImpostorPlane, Mass: 0})
	require.NoError(t, err)

	require.NoError(t, w.ApplyImpulse(ball, math.NewVec3(4, 0, 0), math.Vec3{}))
	v, err := w.LinearVelocity(ball)
	require.NoError(t, err)
	assert.Equal(t, math.NewVec3(2, 0, 0), v)

	require.NoError(t, w.ApplyImpulse(ground, math.NewVec3(4, 0, 0), math.Vec3{}))
	w.Step(1)
	assert.InDelta(t, 2.0, ball.Position().X, 1e-5)
	assert.Equal(t, math.Vec3{}, ground.Position())

	require.NoError(t, w.Sleep(ball))
	w.Step(1)
	assert.InDelta(t, 2.0, ball.Position().X, 1e-5)

	require.NoError(t, w.WakeUp(ball))
	w.SetGravity(DefaultGravity)
	w.Step(0.5)
	assert.Less(t, ball.Position().Y, float32(0))

	require.NoError(t, w.SetBodyMass(ball, 0))
	assert.True(t, ball.IsStatic())
}
