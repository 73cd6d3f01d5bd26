package shaders

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/anima-webgpu/engine/core"
)

func acceptAll(string) ([]byte, error) { return []byte{0x03, 0x02, 0x23, 0x07}, nil }

func TestPreprocess(t *testing.T) {
	src := "a\n#ifdef FOG\nfog\n#else\nnofog\n#endif\n#ifndef SHADOW\nnoshadow\n#endif\nb\n"
	out, err := Preprocess(src, []string{"FOG 1"})
	require.NoError(t, err)
	assert.Equal(t, "a\nfog\nnoshadow\nb\n", out)

	out, err = Preprocess(src, []string{"SHADOW"})
	require.NoError(t, err)
	assert.Equal(t, "a\nnofog\nb\n", out)

	_, err = Preprocess("#ifdef A\nx\n", nil)
	assert.ErrorIs(t, err, ErrUnbalanced)
	_, err = Preprocess("#endif\n", nil)
	assert.ErrorIs(t, err, ErrUnbalanced)
}

func TestCompileEncodesDefines(t *testing.T) {
	p := NewProcessorWithCompiler(acceptAll)
	_, err := p.Compile(Request{Name: "x", Source: "fn main() {}", ComputeEntry: "main"})
	assert.ErrorIs(t, err, ErrNotInitialized)

	require.NoError(t, p.Init())
	prog, err := p.Compile(Request{
		Name:          "lit",
		Source:        "@vertex fn vs() {}\n",
		VertexEntry:   "vs",
		FragmentEntry: "fs",
		Defines:       []string{"FOG", "LIGHTS 4"},
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(prog.Code, "//DEFINE FOG\n//DEFINE LIGHTS 4\n"))
	assert.Equal(t, ProgramKey("lit", []string{"FOG", "LIGHTS 4"}), prog.Key)
	assert.False(t, prog.IsCompute())

	other, err := p.Compile(Request{Name: "lit", Source: "x", VertexEntry: "vs", FragmentEntry: "fs"})
	require.NoError(t, err)
	assert.NotEqual(t, prog.ID, other.ID)
}

func TestCompileErrors(t *testing.T) {
	boom := errors.New("bad wgsl")
	calls := 0
	p := NewProcessorWithCompiler(func(string) ([]byte, error) {
		calls++
		if calls > 1 {
			return nil, boom
		}
		return nil, nil
	})
	require.NoError(t, p.Init())

	_, err := p.Compile(Request{Name: "empty", VertexEntry: "vs", FragmentEntry: "fs"})
	assert.ErrorIs(t, err, ErrEmptySource)
	_, err = p.Compile(Request{Name: "noentry", Source: "x"})
	assert.ErrorIs(t, err, ErrNoEntryPoint)
	_, err = p.Compile(Request{Name: "bad", Source: "x", VertexEntry: "vs", FragmentEntry: "fs"})
	assert.ErrorIs(t, err, boom)
}

func TestInitFailure(t *testing.T) {
	p := NewProcessorWithCompiler(func(string) ([]byte, error) { return nil, errors.New("no toolchain") })
	assert.Error(t, p.Init())
}

func TestBuiltins(t *testing.T) {
	p := NewProcessorWithCompiler(acceptAll)
	require.NoError(t, p.Init())
	for _, name := range []string{ClearProgram, MipmapProgram, InvertProgram} {
		req, ok := Builtin(name)
		require.True(t, ok, name)
		prog, err := p.Compile(req)
		require.NoError(t, err, name)
		assert.Equal(t, uint32(1), prog.GroupCount())
	}
	inv, _ := Builtin(InvertProgram)
	assert.Len(t, inv.Bindings, 3)
	mip, _ := Builtin(MipmapProgram)
	assert.Len(t, mip.Bindings, 2)
	_, ok := Builtin("nope")
	assert.False(t, ok)
}

func TestProgramGroups(t *testing.T) {
	req, _ := Builtin(InvertProgram)
	prog := &Program{Bindings: req.Bindings}
	g := prog.Group(0)
	require.Len(t, g, 3)
	assert.Equal(t, "srcTexture", g[0].Name)
	assert.Equal(t, "flags", g[2].Name)
	require.Len(t, prog.Textures(), 1)
}

func TestStoreHotReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "unlit.wgsl")
	require.NoError(t, os.WriteFile(path, []byte("// v1\n"), 0o644))

	store, err := NewStore(dir)
	require.NoError(t, err)
	defer store.Close()

	src, err := store.Source("unlit")
	require.NoError(t, err)
	assert.Equal(t, "// v1\n", src)
	_, err = store.Source("missing")
	assert.Error(t, err)

	require.NoError(t, store.Watch())
	require.NoError(t, os.WriteFile(path, []byte("// v2\n"), 0o644))

	bus := core.NewEventBus()
	var reloaded []string
	bus.Register(core.EventCodeShaderReloaded, t, func(code core.SystemEventCode, sender, listener interface{}, data core.EventContext) bool {
		reloaded = append(reloaded, data.Data.C[0])
		return true
	})

	require.Eventually(t, func() bool {
		store.Dispatch(bus)
		return len(reloaded) > 0
	}, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, "unlit", reloaded[0])

	src, err = store.Source("unlit")
	require.NoError(t, err)
	assert.Equal(t, "// v2\n", src)
}

func TestStoreWatchIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "unlit.wgsl"), []byte("// v1\n"), 0o644))
	store, err := NewStore(dir)
	require.NoError(t, err)

	require.NoError(t, store.Watch())
	watcher := store.fsnotify
	done := store.done
	require.NoError(t, store.Watch())
	assert.Same(t, watcher, store.fsnotify)
	assert.Equal(t, done, store.done)

	require.NoError(t, store.Close())
	require.NoError(t, store.Close())
	assert.ErrorIs(t, store.Watch(), ErrStoreClosed)
}
