// Package manifest parses and represents Model Component manifests
// (spec.md §3 "Model Component", §4.1 step 1). It is grounded on
// FIREWHEEL's MANIFEST file format, inferred from the field names used
// across original_source/src/firewheel/tests/unit/control (e.g.
// test_mcm_process_model_component.py, test_model_component_iterator.py):
// a YAML document at the root of each component directory with a
// dotted "name", an "attributes" block ({depends, provides,
// precedence}), a "model_components" block ({depends, duplicate}), and
// optional "plugin", "model_component_objects", "images", and
// "vm_resources" entries.
//
// cuemby-warren has no manifest-parsing analogue of its own (it never
// loads a tree of user-authored component directories); the package
// shape here — a Parse function returning a plain struct, validated
// field-by-field — follows the same plain-struct-plus-validation style
// cuemby-warren uses for its own config loading in pkg/config.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/sandialabs/firewheel-core/pkg/ferrors"
)

// FileName is the manifest file every component directory must contain.
const FileName = "MANIFEST"

// Attributes is the capability-tag block of a manifest.
type Attributes struct {
	Depends    []string `yaml:"depends"`
	Provides   []string `yaml:"provides"`
	Precedence []string `yaml:"precedence"`
}

// ComponentDepends is the ordered set of other components this one
// transitively requires.
type ComponentDepends struct {
	Depends   []string `yaml:"depends"`
	Duplicate bool     `yaml:"duplicate"`
}

// Manifest is the parsed, validated contents of one component's
// MANIFEST file.
type Manifest struct {
	Name            string           `yaml:"name"`
	Attributes      Attributes       `yaml:"attributes"`
	ModelComponents ComponentDepends `yaml:"model_components"`
	Plugin          string           `yaml:"plugin"`
	Objects         string           `yaml:"model_component_objects"`
	Images          []string         `yaml:"images"`
	VMResources     []string         `yaml:"vm_resources"`

	// Path is the directory the manifest was loaded from, not part of
	// the YAML document itself.
	Path string `yaml:"-"`
}

// Parse decodes manifest YAML bytes into a Manifest and validates the
// required fields. A manifest missing a name, or whose model_components
// list names the component's own name, is a Configuration error
// (spec.md §7).
func Parse(path string, data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("manifest %s: malformed yaml: %w", path, err)
	}
	m.Path = filepath.Dir(path)

	if m.Name == "" {
		return nil, fmt.Errorf("manifest %s: missing required field %q", path, "name")
	}
	for _, dep := range m.ModelComponents.Depends {
		if dep == m.Name {
			return nil, fmt.Errorf("manifest %s: component %q depends on itself", path, m.Name)
		}
	}
	return &m, nil
}

// Load reads and parses the MANIFEST file found directly inside dir.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("manifest %s: %w", path, err)
	}
	return Parse(path, data)
}

// AllowsDuplicates reports whether the manifest's duplicate flag
// permits this component to appear more than once in an experiment.
func (m *Manifest) AllowsDuplicates() bool {
	return m.ModelComponents.Duplicate
}

// ResolveImage resolves an image name declared in the manifest against
// the component's directory, returning a ResourceError if it is absent
// on disk.
func (m *Manifest) ResolveImage(name string) (string, error) {
	return m.resolveResource(name, m.Images, ferrors.ErrMissingImage)
}

// ResolveVMResource resolves a vm_resources entry the same way.
func (m *Manifest) ResolveVMResource(name string) (string, error) {
	return m.resolveResource(name, m.VMResources, ferrors.ErrMissingVMResource)
}

func (m *Manifest) resolveResource(name string, declared []string, kind error) (string, error) {
	found := false
	for _, d := range declared {
		if d == name {
			found = true
			break
		}
	}
	if !found {
		return "", &ferrors.ResourceError{Kind: kind, Component: m.Name, Name: name}
	}
	full := filepath.Join(m.Path, name)
	if _, err := os.Stat(full); err != nil {
		return "", &ferrors.ResourceError{Kind: kind, Component: m.Name, Name: name}
	}
	return full, nil
}
