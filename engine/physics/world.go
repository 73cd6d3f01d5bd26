package physics

import (
	"fmt"

	"github.com/spaghettifunk/anima-webgpu/engine/core"
	"github.com/spaghettifunk/anima-webgpu/engine/math"
)

// DefaultGravity points down the Y axis in m/s².
var DefaultGravity = math.NewVec3(0, -9.81, 0)

// World keeps the bodies of a scene and forwards their updates to a plugin.
type World struct {
	plugin   Plugin
	ids      *core.IdentifierPool
	bodies   []*Body
	gravity  math.Vec3
	timeStep float32
	// Fixed steps are taken out of the accumulated frame time.
	accumulator float32
	maxSubSteps int
}

func NewWorld(plugin Plugin) (*World, error) {
	if plugin == nil {
		core.LogError("%s", ErrNoPlugin)
		return nil, ErrNoPlugin
	}
	w := &World{
		plugin:      plugin,
		ids:         core.NewIdentifierPool(64),
		gravity:     DefaultGravity,
		timeStep:    1.0 / 60.0,
		maxSubSteps: 4,
	}
	plugin.SetGravity(w.gravity)
	plugin.SetTimeStep(w.timeStep)
	core.LogInfo("physics world created with plugin %s", plugin.Name())
	return w, nil
}

func (w *World) Gravity() math.Vec3 {
	return w.gravity
}

func (w *World) SetGravity(gravity math.Vec3) {
	w.gravity = gravity
	w.plugin.SetGravity(gravity)
}

// SetTimeStep changes the fixed step. Zero or negative steps are ignored.
func (w *World) SetTimeStep(step float32, maxSubSteps int) {
	if step <= 0 {
		return
	}
	w.timeStep = step
	if maxSubSteps > 0 {
		w.maxSubSteps = maxSubSteps
	}
	w.plugin.SetTimeStep(step)
}

func (w *World) Bodies() []*Body {
	return w.bodies
}

// AddBody creates a body and hands it to the plugin.
func (w *World) AddBody(opts BodyOptions) (*Body, error) {
	if opts.Mass < 0 {
		err := fmt.Errorf("%w: negative mass %f", core.ErrInvalidArgument, opts.Mass)
		core.LogError("%s", err)
		return nil, err
	}
	if opts.Rotation == (math.Quaternion{}) {
		opts.Rotation = math.NewQuaternionIdentity()
	}
	b := &Body{Options: opts, position: opts.Position, rotation: opts.Rotation}
	b.ID = w.ids.Acquire(b)
	if err := w.plugin.InitBody(b); err != nil {
		w.ids.Release(b.ID)
		err = fmt.Errorf("plugin %s failed to init body: %w", w.plugin.Name(), err)
		core.LogError("%s", err)
		return nil, err
	}
	b.initialized = true
	w.bodies = append(w.bodies, b)
	return b, nil
}

func (w *World) RemoveBody(b *Body) {
	for i, o := range w.bodies {
		if o == b {
			w.bodies = append(w.bodies[:i], w.bodies[i+1:]...)
			w.plugin.RemoveBody(b)
			if err := w.ids.Release(b.ID); err != nil {
				core.LogWarn("physics body %d: %s", b.ID, err)
			}
			b.initialized = false
			return
		}
	}
}

func (w *World) ApplyImpulse(b *Body, impulse, contactPoint math.Vec3) error {
	if err := w.check(b); err != nil {
		return err
	}
	w.plugin.ApplyImpulse(b, impulse, contactPoint)
	return nil
}

func (w *World) ApplyForce(b *Body, force, contactPoint math.Vec3) error {
	if err := w.check(b); err != nil {
		return err
	}
	w.plugin.ApplyForce(b, force, contactPoint)
	return nil
}

func (w *World) SetLinearVelocity(b *Body, velocity math.Vec3) error {
	if err := w.check(b); err != nil {
		return err
	}
	w.plugin.SetLinearVelocity(b, velocity)
	return nil
}

func (w *World) LinearVelocity(b *Body) (math.Vec3, error) {
	if err := w.check(b); err != nil {
		return math.Vec3{}, err
	}
	return w.plugin.LinearVelocity(b), nil
}

func (w *World) SetBodyMass(b *Body, mass float32) error {
	if err := w.check(b); err != nil {
		return err
	}
	b.Options.Mass = mass
	w.plugin.SetBodyMass(b, mass)
	return nil
}

func (w *World) Sleep(b *Body) error {
	if err := w.check(b); err != nil {
		return err
	}
	w.plugin.SleepBody(b)
	return nil
}

func (w *World) WakeUp(b *Body) error {
	if err := w.check(b); err != nil {
		return err
	}
	w.plugin.WakeUpBody(b)
	return nil
}

// Step advances the simulation by delta seconds in fixed steps and returns
// how many steps ran. Time beyond the sub step limit is dropped.
func (w *World) Step(delta float32) int {
	w.accumulator += delta
	steps := 0
	for w.accumulator >= w.timeStep && steps < w.maxSubSteps {
		w.plugin.ExecuteStep(w.timeStep, w.bodies)
		w.accumulator -= w.timeStep
		steps++
	}
	if steps == w.maxSubSteps && w.accumulator >= w.timeStep {
		core.LogDebug("physics: dropping %.3fs of simulation time", w.accumulator)
		w.accumulator = 0
	}
	return steps
}

func (w *World) Dispose() {
	for _, b := range w.bodies {
		w.plugin.RemoveBody(b)
		b.initialized = false
	}
	w.bodies = nil
	w.plugin.Dispose()
}

func (w *World) check(b *Body) error {
	if b == nil || !b.initialized {
		core.LogError("%s", ErrBodyNotInitialized)
		return ErrBodyNotInitialized
	}
	return nil
}
