//go:build mage

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gogpu/naga"
	"github.com/magefile/mage/mg"
)

type Build mg.Namespace

// shaderDirs holds the WGSL programs checked by Build:Shaders.
var shaderDirs = []string{"testbed/shaders"}

// Validates every WGSL program with naga.
func (Build) Shaders() error {
	return buildShaders()
}

// Builds the testbed binary into bin/.
func (Build) Engine() error {
	mg.Deps(Build.Shaders)
	if err := os.MkdirAll("bin", 0o755); err != nil {
		return err
	}
	_, err := executeCmd("go", withArgs("build", "-o", filepath.Join("bin", "anima"), "."), withEnv("CGO_ENABLED=1"), withStream())
	return err
}

// Runs the unit tests. glfw and wgpu-native need cgo.
func (Build) Test() error {
	_, err := executeCmd("go", withArgs("test", "./..."), withEnv("CGO_ENABLED=1"), withStream())
	return err
}

func buildShaders() error {
	for _, dir := range shaderDirs {
		files, err := filepath.Glob(filepath.Join(dir, "*.wgsl"))
		if err != nil {
			return err
		}
		for _, f := range files {
			src, err := os.ReadFile(f)
			if err != nil {
				return err
			}
			spirv, err := naga.Compile(string(src))
			if err != nil {
				return fmt.Errorf("%s: %w", f, err)
			}
			fmt.Printf("%s: %d bytes of SPIR-V\n", f, len(spirv))
		}
	}
	return nil
}
