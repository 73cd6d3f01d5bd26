package physics

import (
	"github.com/spaghettifunk/anima-webgpu/engine/math"
)

type pointMassState struct {
	velocity math.Vec3
	force    math.Vec3
	sleeping bool
}

// PointMassPlugin integrates bodies as point masses with semi-implicit Euler.
// It has no collision detection and serves the demo and tests.
type PointMassPlugin struct {
	gravity  math.Vec3
	timeStep float32
}

func NewPointMassPlugin() *PointMassPlugin {
	return &PointMassPlugin{}
}

func (p *PointMassPlugin) Name() string {
	return "pointmass"
}

func (p *PointMassPlugin) SetGravity(gravity math.Vec3) {
	p.gravity = gravity
}

func (p *PointMassPlugin) SetTimeStep(step float32) {
	p.timeStep = step
}

func (p *PointMassPlugin) ExecuteStep(delta float32, bodies []*Body) {
	for _, b := range bodies {
		s := state(b)
		if s == nil || b.IsStatic() || s.sleeping {
			continue
		}
		accel := p.gravity.Add(s.force.Scale(1 / b.Options.Mass))
		s.velocity = s.velocity.Add(accel.Scale(delta))
		b.SetTransform(b.Position().Add(s.velocity.Scale(delta)), b.Rotation())
		s.force = math.Vec3{}
	}
}

func (p *PointMassPlugin) InitBody(body *Body) error {
	body.Handle = &pointMassState{}
	return nil
}

func (p *PointMassPlugin) RemoveBody(body *Body) {
	body.Handle = nil
}

func (p *PointMassPlugin) ApplyImpulse(body *Body, impulse math.Vec3, contactPoint math.Vec3) {
	s := state(body)
	if s == nil || body.IsStatic() {
		return
	}
	s.velocity = s.velocity.Add(impulse.Scale(1 / body.Options.Mass))
	s.sleeping = false
}

func (p *PointMassPlugin) ApplyForce(body *Body, force math.Vec3, contactPoint math.Vec3) {
	if s := state(body); s != nil {
		s.force = s.force.Add(force)
		s.sleeping = false
	}
}

func (p *PointMassPlugin) SetLinearVelocity(body *Body, velocity math.Vec3) {
	if s := state(body); s != nil {
		s.velocity = velocity
	}
}

func (p *PointMassPlugin) LinearVelocity(body *Body) math.Vec3 {
	if s := state(body); s != nil {
		return s.velocity
	}
	return math.Vec3{}
}

func (p *PointMassPlugin) SetBodyMass(body *Body, mass float32) {
	if mass == 0 {
		p.SetLinearVelocity(body, math.Vec3{})
	}
}

func (p *PointMassPlugin) SleepBody(body *Body) {
	if s := state(body); s != nil {
		s.sleeping = true
		s.velocity = math.Vec3{}
	}
}

func (p *PointMassPlugin) WakeUpBody(body *Body) {
	if s := state(body); s != nil {
		s.sleeping = false
	}
}

func (p *PointMassPlugin) Dispose() {}

func state(b *Body) *pointMassState {
	s, _ := b.Handle.(*pointMassState)
	return s
}
