//go:build mage

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/magefile/mage/mg"
)

type Build mg.Namespace

var shaderSources = []string{
	"triangle.vert",
	"triangle.frag",
	"mesh.vert",
	"mesh.frag",
}

// Compiles all GLSL shaders to SPIR-V under assets/shaders.
func (Build) Shaders() error {
	outDir := filepath.Join("assets", "shaders")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}
	for _, src := range shaderSources {
		in := filepath.Join("shaders", src)
		out := filepath.Join(outDir, src+".spv")
		if _, err := executeCmd("glslc", withArgs(in, "-o", out), withStream()); err != nil {
			return err
		}
	}
	return nil
}

// Runs the full test suite.
func (Build) Test() error {
	if _, err := executeCmd("go", withArgs("test", "./..."), withStream()); err != nil {
		return err
	}
	return nil
}

// Builds the demo binary.
func (Build) Binary() error {
	mg.Deps(Build.Shaders)
	fmt.Println("Building vesta...")
	if _, err := executeCmd("go", withArgs("build", "-o", "bin/vesta", "."), withStream()); err != nil {
		return err
	}
	return nil
}
