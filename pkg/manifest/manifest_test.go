package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeManifest(t *testing.T, dir, doc string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, FileName)
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
	return path
}

func TestLoadParsesAttributesAndDepends(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
name: test.model_component
attributes:
  depends: [c1]
  provides: [c3, c2]
model_components:
  depends: [mca, aa.bb]
plugin: grapher.py
model_component_objects: objs.py
`)

	m, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "test.model_component", m.Name)
	assert.Equal(t, []string{"c1"}, m.Attributes.Depends)
	assert.Equal(t, []string{"c3", "c2"}, m.Attributes.Provides)
	assert.Equal(t, []string{"mca", "aa.bb"}, m.ModelComponents.Depends)
	assert.Equal(t, "grapher.py", m.Plugin)
	assert.False(t, m.AllowsDuplicates())
}

func TestLoadRejectsMissingName(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
attributes:
  depends: []
  provides: [c1]
`)
	_, err := Load(dir)
	assert.Error(t, err)
}

func TestLoadRejectsSelfDependency(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
name: a
model_components:
  depends: [a]
`)
	_, err := Load(dir)
	assert.Error(t, err)
}

func TestResolveImageRequiresDeclarationAndPresence(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
name: a
images: [disk.qcow2]
`)
	m, err := Load(dir)
	require.NoError(t, err)

	_, err = m.ResolveImage("disk.qcow2")
	assert.Error(t, err) // declared but not present on disk

	require.NoError(t, os.WriteFile(filepath.Join(dir, "disk.qcow2"), []byte("x"), 0o644))
	path, err := m.ResolveImage("disk.qcow2")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "disk.qcow2"), path)

	_, err = m.ResolveImage("not-declared.qcow2")
	assert.Error(t, err)
}
