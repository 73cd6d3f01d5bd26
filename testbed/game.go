package testbed

import (
	_ "embed"
	"encoding/binary"
	stdmath "math"

	"github.com/spaghettifunk/anima-webgpu/engine"
	"github.com/spaghettifunk/anima-webgpu/engine/core"
	"github.com/spaghettifunk/anima-webgpu/engine/math"
	"github.com/spaghettifunk/anima-webgpu/engine/physics"
	"github.com/spaghettifunk/anima-webgpu/engine/renderer/hal"
	"github.com/spaghettifunk/anima-webgpu/engine/renderer/shaders"
	"github.com/spaghettifunk/anima-webgpu/engine/renderer/webgpu"
)

// TriangleProgram is also the file name of the program in the shader
// directory, so editing it there reloads the running triangle.
const TriangleProgram = "triangle"

//go:embed shaders/triangle.wgsl
var triangleSource string

type TestGame struct {
	*engine.Game
}

type gameState struct {
	effect   *webgpu.Effect
	draw     *webgpu.DrawContext
	material *webgpu.MaterialContext
	vertices *webgpu.DataBuffer
	tint     *webgpu.DataBuffer
	ball     *physics.Body

	width   uint32
	height  uint32
	elapsed float64
}

func NewTestGame(configPath string) (*TestGame, error) {
	tg := &TestGame{
		Game: &engine.Game{
			ConfigPath: configPath,
			State:      &gameState{},
		},
	}

	tg.FnInitialize = tg.Initialize
	tg.FnUpdate = tg.Update
	tg.FnRender = tg.Render
	tg.FnOnResize = tg.OnResize
	tg.FnShutdown = tg.Shutdown

	return tg, nil
}

func (g *TestGame) state() *gameState {
	return g.State.(*gameState)
}

func TriangleRequest() shaders.Request {
	return shaders.Request{
		Name:          TriangleProgram,
		Source:        triangleSource,
		VertexEntry:   "vs",
		FragmentEntry: "fs",
		Bindings: []shaders.Binding{
			{Group: 0, Binding: 0, Name: "tint", Kind: shaders.BindingUniform, Visibility: hal.ShaderStageVertex | hal.ShaderStageFragment},
		},
		VertexBuffers: []hal.VertexBufferLayout{{
			ArrayStride: 8,
			StepMode:    hal.VertexStepModeVertex,
			Attributes:  []hal.VertexAttribute{{Format: hal.VertexFormatFloat32x2, ShaderLocation: 0}},
		}},
	}
}

func (g *TestGame) Initialize() error {
	core.LogDebug("TestGame Initialize fn....")
	s := g.state()

	fx, err := g.Renderer.CreateEffect(TriangleRequest())
	if err != nil {
		return err
	}
	s.effect = fx

	vb, err := g.Renderer.CreateVertexBuffer("triangle", floatBytes(-0.5, -0.5, 0.5, -0.5, 0, 0.5))
	if err != nil {
		return err
	}
	s.vertices = vb
	// color and offset, two vec4
	tint, err := g.Renderer.CreateUniformBuffer("tint", 32)
	if err != nil {
		return err
	}
	s.tint = tint

	s.draw = webgpu.NewDrawContext()
	s.draw.SetVertexBuffers(vb)
	s.draw.SetBuffer("tint", tint)
	s.material = webgpu.NewMaterialContext()

	// The triangle bounces on a point mass that falls under gravity.
	ball, err := g.Physics.AddBody(physics.BodyOptions{
		Type:     physics.ImpostorSphere,
		Mass:     1,
		Position: math.NewVec3(0, 0.5, 0),
	})
	if err != nil {
		return err
	}
	s.ball = ball
	return nil
}

func (g *TestGame) Update(deltaTime float64) error {
	s := g.state()
	s.elapsed += deltaTime

	pos := s.ball.Position()
	if pos.Y < -0.5 {
		s.ball.SetTransform(math.NewVec3(pos.X, -0.5, pos.Z), s.ball.Rotation())
		v, err := g.Physics.LinearVelocity(s.ball)
		if err != nil {
			return err
		}
		if err := g.Physics.SetLinearVelocity(s.ball, math.NewVec3(v.X, -v.Y*0.9, v.Z)); err != nil {
			return err
		}
		pos = s.ball.Position()
	}

	t := float32(s.elapsed)
	r := 0.5 + 0.5*float32(stdmath.Sin(float64(t)))
	b := 0.5 + 0.5*float32(stdmath.Cos(float64(t)))
	return g.Renderer.UpdateBuffer(s.tint, 0, floatBytes(r, 0.4, b, 1, 0, pos.Y, 0, 0))
}

func (g *TestGame) Render(deltaTime float64) error {
	s := g.state()
	if err := g.Renderer.Clear(&hal.Color{R: 0.05, G: 0.05, B: 0.08, A: 1}, nil, nil); err != nil {
		return err
	}
	g.Renderer.EnableDrawWrapper(webgpu.DrawWrapper{Effect: s.effect, DrawContext: s.draw, MaterialContext: s.material})
	return g.Renderer.Draw(webgpu.FillModeTriangles, 0, 3, 1)
}

func (g *TestGame) OnResize(width uint32, height uint32) error {
	s := g.state()
	s.width = width
	s.height = height
	return nil
}

func (g *TestGame) Shutdown() error {
	s := g.state()
	if s.ball != nil {
		g.Physics.RemoveBody(s.ball)
	}
	if s.tint != nil {
		g.Renderer.ReleaseBuffer(s.tint)
	}
	if s.vertices != nil {
		g.Renderer.ReleaseBuffer(s.vertices)
	}
	return nil
}

func floatBytes(vals ...float32) []byte {
	out := make([]byte, len(vals)*4)
	for i, v := range vals {
		binary.LittleEndian.PutUint32(out[i*4:], stdmath.Float32bits(v))
	}
	return out
}
