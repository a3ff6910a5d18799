// Package expgraph implements the Experiment Graph (spec.md §3
// "Experiment Graph", §4.2 "Decoration semantics"): an undirected graph
// of Vertices (hosts, routers, switches) and Edges (links), both
// decorable, with stable integer identity that is never reused after
// delete.
//
// FIREWHEEL's Python original attaches mixin classes to graph objects
// at runtime, merging their method tables onto the instance. Here that
// becomes an explicit capability registry instead: a decoration is a
// named value attached to a Decorable, with precursor-required and
// conflict-resolution enforcement replacing Python attribute-namespace
// merging. Grounded on
// original_source/src/firewheel/tests/unit/control/test_experiment_graph_decorable.py
// for the conflict/precursor/double-decoration contract.
package expgraph

import (
	"fmt"

	"github.com/sandialabs/firewheel-core/pkg/ferrors"
)

// DecoratorConflictError reports a decoration that could not be
// applied: a missing precursor, a double decoration, or an unresolved
// name collision.
type DecoratorConflictError struct {
	Name   string
	Reason string
}

func (e *DecoratorConflictError) Error() string {
	return fmt.Sprintf("decorator %q: %s", e.Name, e.Reason)
}

func (e *DecoratorConflictError) Unwrap() error { return ferrors.ErrDecoratorConflict }

// ConflictHandler resolves a name collision between a decorator already
// attached under name and an incoming one, returning the value that
// should be kept.
type ConflictHandler func(name string, existing, incoming interface{}) (interface{}, error)

// Decorable is embedded by Vertex and Edge to give them a capability
// registry keyed by decorator name.
type Decorable struct {
	decorators map[string]interface{}
}

func newDecorable() Decorable {
	return Decorable{decorators: make(map[string]interface{})}
}

// Decorate attaches value under name. requires lists decorator names
// that must already be present on this object (the precursor
// enforcement `@requires` implements in the original). A name already
// in use is a conflict: resolved by conflict if non-nil, fatal
// otherwise — this also covers "double decoration" (decorating the
// same name twice with no handler).
func (d *Decorable) Decorate(name string, value interface{}, requires []string, conflict ConflictHandler) error {
	for _, req := range requires {
		if _, ok := d.decorators[req]; !ok {
			return &DecoratorConflictError{Name: name, Reason: fmt.Sprintf("missing required precursor decorator %q", req)}
		}
	}

	existing, exists := d.decorators[name]
	if !exists {
		d.decorators[name] = value
		return nil
	}
	if conflict == nil {
		return &DecoratorConflictError{Name: name, Reason: "already decorated, no conflict handler supplied"}
	}
	resolved, err := conflict(name, existing, value)
	if err != nil {
		return err
	}
	d.decorators[name] = resolved
	return nil
}

// IsDecoratedBy reports whether a decorator is attached under name.
func (d *Decorable) IsDecoratedBy(name string) bool {
	_, ok := d.decorators[name]
	return ok
}

// Decorator returns the value attached under name, if any.
func (d *Decorable) Decorator(name string) (interface{}, bool) {
	v, ok := d.decorators[name]
	return v, ok
}
