// Package program materializes a generated program and its fixed scaffold into
// a stack's working directory.
package program

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scaffold file names written into every working directory.
const (
	ProgramFile    = "index.ts"
	PackageFile    = "package.json"
	CompilerFile   = "tsconfig.json"
	ProjectFile    = "Pulumi.yaml"
	DefaultProject = "infra-stack"
)

// ProjectManifest is the engine's project file.
type ProjectManifest struct {
	Name        string          `yaml:"name"`
	Runtime     string          `yaml:"runtime"`
	Description string          `yaml:"description,omitempty"`
	Backend     *ProjectBackend `yaml:"backend,omitempty"`
}

// ProjectBackend pins the state backend of a project.
type ProjectBackend struct {
	URL string `yaml:"url"`
}

type packageManifest struct {
	Name         string            `json:"name"`
	Version      string            `json:"version"`
	Dependencies map[string]string `json:"dependencies"`
}

type compilerConfig struct {
	CompilerOptions map[string]any `json:"compilerOptions"`
	Exclude         []string       `json:"exclude"`
}

// SDKDependencies names the provisioning SDK and provider packages the program may import.
var SDKDependencies = map[string]string{
	"@pulumi/pulumi": "^3.0.0",
	"@pulumi/aws":    "^6.0.0",
	"@pulumi/gcp":    "^8.0.0",
}

// Write creates workDir if needed and (over)writes the program and its scaffold.
func Write(workDir, code string) error {
	if err := os.MkdirAll(workDir, 0755); err != nil {
		return fmt.Errorf("failed to create work directory %s: %w", workDir, err)
	}

	pkg, err := json.MarshalIndent(packageManifest{
		Name:         "infra-stack",
		Version:      "1.0.0",
		Dependencies: SDKDependencies,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", PackageFile, err)
	}

	tsconfig, err := json.MarshalIndent(compilerConfig{
		CompilerOptions: map[string]any{
			"target":  "ES2020",
			"module":  "commonjs",
			"strict":  true,
			"outDir":  "bin",
			"rootDir": ".",
		},
		Exclude: []string{"node_modules"},
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", CompilerFile, err)
	}

	files := []struct {
		name string
		data []byte
	}{
		{ProgramFile, []byte(code)},
		{PackageFile, pkg},
		{CompilerFile, tsconfig},
	}
	for _, f := range files {
		if err := os.WriteFile(filepath.Join(workDir, f.name), f.data, 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", f.name, err)
		}
	}

	return WriteProjectManifest(workDir, ProjectManifest{
		Name:        DefaultProject,
		Runtime:     "nodejs",
		Description: "Generated infrastructure",
	})
}

// WriteProjectManifest replaces only the project manifest, e.g. to point a
// deploy at a named cloud project.
func WriteProjectManifest(workDir string, m ProjectManifest) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", ProjectFile, err)
	}
	if err := os.WriteFile(filepath.Join(workDir, ProjectFile), data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", ProjectFile, err)
	}
	return nil
}
