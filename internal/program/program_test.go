package program

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestWrite_CreatesScaffold(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "infra-abc")
	code := `const b = new aws.s3.Bucket("b");`

	require.NoError(t, Write(dir, code))

	for _, name := range []string{ProgramFile, PackageFile, CompilerFile, ProjectFile} {
		_, err := os.Stat(filepath.Join(dir, name))
		require.NoError(t, err, name)
	}

	got, err := os.ReadFile(filepath.Join(dir, ProgramFile))
	require.NoError(t, err)
	assert.Equal(t, code, string(got))

	raw, err := os.ReadFile(filepath.Join(dir, PackageFile))
	require.NoError(t, err)
	var pkg packageManifest
	require.NoError(t, json.Unmarshal(raw, &pkg))
	assert.Equal(t, "^3.0.0", pkg.Dependencies["@pulumi/pulumi"])
	assert.Contains(t, pkg.Dependencies, "@pulumi/aws")

	raw, err = os.ReadFile(filepath.Join(dir, ProjectFile))
	require.NoError(t, err)
	var m ProjectManifest
	require.NoError(t, yaml.Unmarshal(raw, &m))
	assert.Equal(t, DefaultProject, m.Name)
	assert.Equal(t, "nodejs", m.Runtime)
	assert.Nil(t, m.Backend)
}

func TestWrite_OverwritesProgram(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Write(dir, "first"))
	require.NoError(t, Write(dir, "second"))

	got, err := os.ReadFile(filepath.Join(dir, ProgramFile))
	require.NoError(t, err)
	assert.Equal(t, "second", string(got))
}

func TestWriteProjectManifest_Backend(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, WriteProjectManifest(dir, ProjectManifest{
		Name:    "infra-abc",
		Runtime: "nodejs",
		Backend: &ProjectBackend{URL: "https://api.pulumi.com"},
	}))

	raw, err := os.ReadFile(filepath.Join(dir, ProjectFile))
	require.NoError(t, err)
	assert.Contains(t, string(raw), "name: infra-abc")
	assert.Contains(t, string(raw), "url: https://api.pulumi.com")
}
