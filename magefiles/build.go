//go:build mage

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/magefile/mage/mg"
)

const shaderDir = "assets/shaders"

type Build mg.Namespace

// Compiles every GLSL stage under assets/shaders to SPIR-V next to its source.
func (Build) Shaders() error {
	stages, err := shaderSources(shaderDir)
	if err != nil {
		return err
	}
	if len(stages) == 0 {
		fmt.Printf("No shader sources found in %s\n", shaderDir)
		return nil
	}
	for _, src := range stages {
		if _, err := executeCmd("glslc", withArgs(src, "-o", src+".spv"), withStream()); err != nil {
			return err
		}
	}
	return nil
}

// Tidies the module and builds the testbed binary into bin/.
func (Build) Testbed() error {
	if err := goTidy(); err != nil {
		return err
	}
	if _, err := executeCmd("go", withArgs("build", "-o", "bin/graph-testbed", "."), withStream()); err != nil {
		return err
	}
	return nil
}

func shaderSources(dir string) ([]string, error) {
	var stages []string
	err := filepath.Walk(dir, func(path string, fi os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) && path == dir {
				return filepath.SkipDir
			}
			return err
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".vert", ".frag", ".geom", ".comp":
			stages = append(stages, path)
		}
		return nil
	})
	return stages, err
}
