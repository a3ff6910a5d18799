// Package ferrors holds the FIREWHEEL error taxonomy described in
// spec.md §7: Configuration, Dependency, Resource, Runtime, and User
// Action errors. These are kinds, not a single concrete type hierarchy —
// each constructor below returns a plain error that wraps a sentinel so
// callers can dispatch on it with errors.Is.
package ferrors

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinels for errors.Is dispatch. Kind-level, not instance-level.
var (
	// ErrUnsatisfiableDependencies marks a cycle in the dependency graph.
	ErrUnsatisfiableDependencies = errors.New("unsatisfiable dependencies")
	// ErrNoDefaultProvider marks an attribute with zero or multiple
	// candidate providers and no configured default.
	ErrNoDefaultProvider = errors.New("no default provider")
	// ErrInvalidDefaultProvider marks a configured default that does not
	// name an installed, attribute-providing component.
	ErrInvalidDefaultProvider = errors.New("invalid default provider")
	// ErrDecoratorConflict marks a decoration name collision with no
	// resolution callback, or a double decoration.
	ErrDecoratorConflict = errors.New("decorator conflict")
	// ErrModelComponentImport marks a plugin/objects import failure.
	ErrModelComponentImport = errors.New("model component import error")
	// ErrMissingImage marks a component referencing an image that was
	// never uploaded.
	ErrMissingImage = errors.New("missing image")
	// ErrMissingVMResource marks a component referencing a vm resource
	// file that is not present.
	ErrMissingVMResource = errors.New("missing vm resource")
	// ErrRuntimeUnavailable marks a retried runtime failure (guest-agent
	// timeout, RPC unavailable, object-store locked) that exhausted its
	// attempt budget.
	ErrRuntimeUnavailable = errors.New("runtime unavailable")
	// ErrStartTimeNotSet marks a GetExperimentStartTime call made before
	// any InitializeExperimentStartTime/SetExperimentStartTime call has
	// succeeded for that db. Callers waiting on the start-time barrier
	// treat this as retriable.
	ErrStartTimeNotSet = errors.New("experiment start time not set")
	// ErrVMMappingNotFound marks a lookup by server_uuid with no
	// matching VM mapping in the given db.
	ErrVMMappingNotFound = errors.New("vm mapping not found")
	// ErrObjectLocked marks a Put against an object store entry whose
	// advisory lock another writer currently holds. Get does not check
	// the lock.
	ErrObjectLocked = errors.New("object store entry locked")
)

// DependencyError renders a human-readable cycle or unsatisfied
// constraint, per spec.md §4.1 step 5/6.
type DependencyError struct {
	Err    error
	Detail string
}

func (e *DependencyError) Error() string {
	if e.Detail == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %s", e.Err, e.Detail)
}

func (e *DependencyError) Unwrap() error { return e.Err }

// NewCycleError renders a slice of human-readable cycles (alternating
// "attribute (Attribute)" / "name (Model Component)" nodes, see
// spec.md §4.1 step 5) into an UnsatisfiableDependenciesError.
func NewCycleError(cycles [][]string) *DependencyError {
	rendered := make([]string, 0, len(cycles))
	for _, cycle := range cycles {
		rendered = append(rendered, strings.Join(cycle, " -> "))
	}
	return &DependencyError{
		Err:    ErrUnsatisfiableDependencies,
		Detail: strings.Join(rendered, "; "),
	}
}

// NewNoDefaultProviderError reports an attribute with an unresolved set
// of candidate providers.
func NewNoDefaultProviderError(attribute string, candidates []string) *DependencyError {
	return &DependencyError{
		Err: ErrNoDefaultProvider,
		Detail: fmt.Sprintf(
			"attribute %q has %d candidate provider(s) %v and no configured default",
			attribute, len(candidates), candidates,
		),
	}
}

// ModelComponentImportError reports a component whose plugin or objects
// module referenced something it never declared a dependency on.
type ModelComponentImportError struct {
	Component string
	Cause     error
}

func (e *ModelComponentImportError) Error() string {
	return fmt.Sprintf(
		"model component %q could not import a dependency: %v\n"+
			"this is typically caused by using a model component without "+
			"listing it as a required component in the MANIFEST",
		e.Component, e.Cause,
	)
}

func (e *ModelComponentImportError) Unwrap() error { return ErrModelComponentImport }

// ResourceError reports a missing image or vm resource attached to a
// specific component.
type ResourceError struct {
	Kind      error // ErrMissingImage or ErrMissingVMResource
	Component string
	Name      string
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("component %q: %v: %s", e.Component, e.Kind, e.Name)
}

func (e *ResourceError) Unwrap() error { return e.Kind }
