package physics

import (
	"errors"

	"github.com/spaghettifunk/anima-webgpu/engine/math"
)

var (
	ErrBodyNotInitialized = errors.New("physics body is not initialized")
	ErrNoPlugin           = errors.New("physics world has no plugin")
)

type ImpostorType uint8

const (
	ImpostorSphere ImpostorType = iota
	ImpostorBox
	ImpostorPlane
	ImpostorCylinder
	ImpostorMesh
)

// BodyOptions are the creation parameters of a Body. A zero Mass makes the
// body static.
type BodyOptions struct {
	Type        ImpostorType
	Mass        float32
	Friction    float32
	Restitution float32
	// Extents is the half size of boxes, the radius in X of spheres and
	// cylinders, and the normal of planes.
	Extents  math.Vec3
	Position math.Vec3
	Rotation math.Quaternion
}

// Body is the engine side of a physics body. Plugins own the simulation state
// and write the resulting transform back with SetTransform.
type Body struct {
	ID      uint32
	Options BodyOptions

	position math.Vec3
	rotation math.Quaternion
	// Handle is whatever the plugin keeps for this body.
	Handle      interface{}
	initialized bool
}

func (b *Body) Position() math.Vec3 {
	return b.position
}

func (b *Body) Rotation() math.Quaternion {
	return b.rotation
}

func (b *Body) SetTransform(position math.Vec3, rotation math.Quaternion) {
	b.position = position
	b.rotation = rotation
}

func (b *Body) Initialized() bool {
	return b.initialized
}

func (b *Body) IsStatic() bool {
	return b.Options.Mass == 0
}

// Plugin is the boundary to a physics engine. The world only passes data
// through it: every simulation decision belongs to the plugin.
type Plugin interface {
	Name() string
	SetGravity(gravity math.Vec3)
	SetTimeStep(step float32)
	ExecuteStep(delta float32, bodies []*Body)
	InitBody(body *Body) error
	RemoveBody(body *Body)
	ApplyImpulse(body *Body, impulse math.Vec3, contactPoint math.Vec3)
	ApplyForce(body *Body, force math.Vec3, contactPoint math.Vec3)
	SetLinearVelocity(body *Body, velocity math.Vec3)
	LinearVelocity(body *Body) math.Vec3
	SetBodyMass(body *Body, mass float32)
	SleepBody(body *Body)
	WakeUpBody(body *Body)
	Dispose()
}
