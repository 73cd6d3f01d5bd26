// Package shaders is the boundary between the renderer and shader sources.
// It turns WGSL text plus a define list into validated programs the renderer
// builds GPU modules from, ships the built-in fixed function programs and
// watches a shader directory for hot reload.
package shaders

import (
	"bufio"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/gogpu/naga"
	"github.com/google/uuid"

	"github.com/spaghettifunk/anima-webgpu/engine/core"
	"github.com/spaghettifunk/anima-webgpu/engine/renderer/hal"
)

var (
	ErrNotInitialized = errors.New("shader processor is not initialized")
	ErrEmptySource    = errors.New("shader source is empty")
	ErrNoEntryPoint   = errors.New("shader has no entry point")
	ErrUnbalanced     = errors.New("unbalanced #ifdef/#endif")
)

type BindingKind uint8

const (
	BindingUniform BindingKind = iota
	BindingStorage
	BindingReadOnlyStorage
	BindingTexture
	BindingSampler
)

// Binding declares one resource slot of a program. Group 0 holds per draw
// buffers, group 1 per material textures and samplers.
type Binding struct {
	Group      uint32
	Binding    uint32
	Name       string
	Kind       BindingKind
	Visibility hal.ShaderStage
	// ViewDimension applies to textures. Zero means 2D.
	ViewDimension hal.TextureViewDimension
	// Texture names the texture a sampler is paired with.
	Texture string
}

// Request is what the renderer hands the processor.
type Request struct {
	Name   string
	Source string

	VertexEntry   string
	FragmentEntry string
	ComputeEntry  string

	Defines       []string
	Bindings      []Binding
	VertexBuffers []hal.VertexBufferLayout
}

// Program is a processed, validated shader program.
type Program struct {
	ID   uuid.UUID
	Name string
	// Key identifies the (name, defines) combination.
	Key  string
	Code string

	VertexEntry   string
	FragmentEntry string
	ComputeEntry  string

	Bindings      []Binding
	VertexBuffers []hal.VertexBufferLayout

	// SPIRV is the naga output, kept for diagnostics.
	SPIRV []byte
}

func (p *Program) IsCompute() bool { return p.ComputeEntry != "" }

// Textures returns the texture bindings in declaration order. The index of a
// texture in this list is its bit in the float fallback mask.
func (p *Program) Textures() []Binding {
	var out []Binding
	for _, b := range p.Bindings {
		if b.Kind == BindingTexture {
			out = append(out, b)
		}
	}
	return out
}

// Group returns the bindings of a bind group, ordered by binding index.
func (p *Program) Group(group uint32) []Binding {
	var out []Binding
	for _, b := range p.Bindings {
		if b.Group == group {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Binding < out[j].Binding })
	return out
}

// GroupCount returns one past the highest bind group index used.
func (p *Program) GroupCount() uint32 {
	n := uint32(0)
	for _, b := range p.Bindings {
		if b.Group+1 > n {
			n = b.Group + 1
		}
	}
	return n
}

// CompileFunc validates WGSL and returns its SPIR-V translation.
type CompileFunc func(wgsl string) ([]byte, error)

type Processor struct {
	compile     CompileFunc
	initialized bool
}

// NewProcessor returns a processor validating through naga.
func NewProcessor() *Processor {
	return &Processor{compile: func(wgsl string) ([]byte, error) {
		return naga.Compile(wgsl)
	}}
}

// NewProcessorWithCompiler returns a processor using fn for validation.
func NewProcessorWithCompiler(fn CompileFunc) *Processor {
	return &Processor{compile: fn}
}

// Init brings the shader toolchain up by compiling the built-in clear program.
func (p *Processor) Init() error {
	if p.initialized {
		return nil
	}
	if _, err := p.compile(clearSource); err != nil {
		err = fmt.Errorf("shader toolchain init: %w", err)
		core.LogError("%s", err)
		return err
	}
	p.initialized = true
	return nil
}

func (p *Processor) Compile(req Request) (*Program, error) {
	if !p.initialized {
		return nil, ErrNotInitialized
	}
	if strings.TrimSpace(req.Source) == "" {
		return nil, fmt.Errorf("program %s: %w", req.Name, ErrEmptySource)
	}
	if req.ComputeEntry == "" && (req.VertexEntry == "" || req.FragmentEntry == "") {
		return nil, fmt.Errorf("program %s: %w", req.Name, ErrNoEntryPoint)
	}
	body, err := Preprocess(req.Source, req.Defines)
	if err != nil {
		return nil, fmt.Errorf("program %s: %w", req.Name, err)
	}
	code := EncodeDefines(req.Defines) + body

	spirv, err := p.compile(code)
	if err != nil {
		err = fmt.Errorf("program %s: %w", req.Name, err)
		core.LogError("%s", err)
		return nil, err
	}
	return &Program{
		ID:            uuid.New(),
		Name:          req.Name,
		Key:           ProgramKey(req.Name, req.Defines),
		Code:          code,
		VertexEntry:   req.VertexEntry,
		FragmentEntry: req.FragmentEntry,
		ComputeEntry:  req.ComputeEntry,
		Bindings:      req.Bindings,
		VertexBuffers: req.VertexBuffers,
		SPIRV:         spirv,
	}, nil
}

// EncodeDefines renders defines as comment lines so they show up in GPU
// debuggers next to the source.
func EncodeDefines(defines []string) string {
	var sb strings.Builder
	for _, d := range defines {
		sb.WriteString("//DEFINE ")
		sb.WriteString(d)
		sb.WriteString("\n")
	}
	return sb.String()
}

// ProgramKey identifies a program by name and define set.
func ProgramKey(name string, defines []string) string {
	return name + "|" + strings.Join(defines, ";")
}

// Preprocess resolves #ifdef, #ifndef, #else and #endif lines against the
// define names. A define may carry a value after a space; only the name
// matters here.
func Preprocess(source string, defines []string) (string, error) {
	set := make(map[string]bool, len(defines))
	for _, d := range defines {
		name := strings.Fields(d)
		if len(name) > 0 {
			set[name[0]] = true
		}
	}

	var out strings.Builder
	// Each level records whether its branch is live.
	var stack []bool
	live := func() bool {
		for _, l := range stack {
			if !l {
				return false
			}
		}
		return true
	}
	scanner := bufio.NewScanner(strings.NewReader(source))
	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "#ifdef "):
			stack = append(stack, set[strings.TrimSpace(trimmed[len("#ifdef "):])])
		case strings.HasPrefix(trimmed, "#ifndef "):
			stack = append(stack, !set[strings.TrimSpace(trimmed[len("#ifndef "):])])
		case trimmed == "#else":
			if len(stack) == 0 {
				return "", ErrUnbalanced
			}
			stack[len(stack)-1] = !stack[len(stack)-1]
		case trimmed == "#endif":
			if len(stack) == 0 {
				return "", ErrUnbalanced
			}
			stack = stack[:len(stack)-1]
		default:
			if live() {
				out.WriteString(line)
				out.WriteString("\n")
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	if len(stack) != 0 {
		return "", ErrUnbalanced
	}
	return out.String(), nil
}
