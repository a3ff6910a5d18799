package resolver

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandialabs/firewheel-core/pkg/ferrors"
)

func writeComponent(t *testing.T, root, name, doc string) {
	t.Helper()
	dir := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "MANIFEST"), []byte(doc), 0o644))
}

func TestResolveSingleComponentNoDependencies(t *testing.T) {
	root := t.TempDir()
	writeComponent(t, root, "c1", `
name: c1
attributes:
  provides: [cap1]
`)

	r, err := New([]string{root})
	require.NoError(t, err)

	out, err := r.Resolve([]InitialComponent{{Name: "c1"}}, nil)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "c1", out[0].Name)
}

func TestResolveTwoComponentChain(t *testing.T) {
	root := t.TempDir()
	writeComponent(t, root, "a", `
name: a
attributes:
  provides: [c1]
`)
	writeComponent(t, root, "b", `
name: b
attributes:
  depends: [c1]
  provides: [c2]
model_components:
  depends: [a]
`)

	r, err := New([]string{root})
	require.NoError(t, err)

	out, err := r.Resolve([]InitialComponent{{Name: "b"}}, nil)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "a", out[0].Name)
	assert.Equal(t, "b", out[1].Name)
}

func TestResolveCycleRendersBothComponentsAndAttributes(t *testing.T) {
	root := t.TempDir()
	writeComponent(t, root, "a", `
name: a
attributes:
  depends: [c2]
  provides: [c1]
`)
	writeComponent(t, root, "b", `
name: b
attributes:
  depends: [c1]
  provides: [c2]
model_components:
  depends: [a]
`)

	r, err := New([]string{root})
	require.NoError(t, err)

	_, err = r.Resolve([]InitialComponent{{Name: "b"}}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ferrors.ErrUnsatisfiableDependencies))

	var depErr *ferrors.DependencyError
	require.True(t, errors.As(err, &depErr))
	assert.Contains(t, depErr.Detail, "a")
	assert.Contains(t, depErr.Detail, "b")
	assert.Contains(t, depErr.Detail, "c1")
	assert.Contains(t, depErr.Detail, "c2")
}

func TestResolveDefaultSelection(t *testing.T) {
	root := t.TempDir()
	writeComponent(t, root, "base", `
name: base
attributes:
  provides: [p1]
  depends: [p2]
`)
	writeComponent(t, root, "x", `
name: x
attributes:
  provides: [p2]
`)
	writeComponent(t, root, "y", `
name: y
attributes:
  provides: [p2]
`)

	r, err := New([]string{root})
	require.NoError(t, err)
	out, err := r.Resolve([]InitialComponent{{Name: "base"}}, Defaults{"p2": "y"})
	require.NoError(t, err)

	names := make([]string, 0, len(out))
	for _, m := range out {
		names = append(names, m.Name)
	}
	assert.Contains(t, names, "y")
	assert.NotContains(t, names, "x")
}

func TestResolveDefaultSelectionFailsWithoutDefault(t *testing.T) {
	root := t.TempDir()
	writeComponent(t, root, "base", `
name: base
attributes:
  provides: [p1]
  depends: [p2]
`)
	writeComponent(t, root, "x", `
name: x
attributes:
  provides: [p2]
`)
	writeComponent(t, root, "y", `
name: y
attributes:
  provides: [p2]
`)

	r, err := New([]string{root})
	require.NoError(t, err)
	_, err = r.Resolve([]InitialComponent{{Name: "base"}}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ferrors.ErrNoDefaultProvider))
}

func TestResolveIsDeterministicAcrossRuns(t *testing.T) {
	root := t.TempDir()
	writeComponent(t, root, "a", `
name: a
attributes: {provides: [c1]}
`)
	writeComponent(t, root, "b", `
name: b
attributes: {depends: [c1], provides: [c2]}
`)
	writeComponent(t, root, "c", `
name: c
attributes: {depends: [c2]}
model_components: {depends: [a, b]}
`)

	run := func() []string {
		r, err := New([]string{root})
		require.NoError(t, err)
		out, err := r.Resolve([]InitialComponent{{Name: "c"}}, nil)
		require.NoError(t, err)
		names := make([]string, 0, len(out))
		for _, m := range out {
			names = append(names, m.Name)
		}
		return names
	}

	first := run()
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, run())
	}
}
