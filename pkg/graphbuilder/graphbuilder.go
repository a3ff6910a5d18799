// Package graphbuilder implements the Experiment-Graph Builder
// (spec.md §4.2): walks the resolver's canonical ordered component
// list, invoking each component's registered plugin against a shared
// expgraph.Graph, and records a structured per-component report
// without aborting the whole build on one component's failure.
//
// The original discovers and imports each component's "objects" and
// "plugin" Python modules dynamically at build time. Here components
// instead register a Factory ahead of time, keyed by component name;
// the builder looks the factory up by name rather than importing a
// file path.
package graphbuilder

import (
	"fmt"
	"sync"
	"time"

	"github.com/sandialabs/firewheel-core/pkg/expgraph"
	"github.com/sandialabs/firewheel-core/pkg/ferrors"
	"github.com/sandialabs/firewheel-core/pkg/manifest"
	"github.com/sandialabs/firewheel-core/pkg/metrics"
)

// PluginArgs is the argument bag bound to one plugin invocation (spec.md
// §4.2 "Plugin argument binding"): Positional corresponds to the
// manifest's empty-string plugin-arg key, Named to every other key.
type PluginArgs struct {
	Positional []interface{}
	Named      map[string]interface{}
}

// BindArgs splits a raw {"": [...], "key": value, ...} bag, as stored
// on an InitialComponent, into a PluginArgs.
func BindArgs(raw map[string]interface{}) PluginArgs {
	args := PluginArgs{Named: make(map[string]interface{})}
	for k, v := range raw {
		if k == "" {
			if list, ok := v.([]interface{}); ok {
				args.Positional = list
			}
			continue
		}
		args.Named[k] = v
	}
	return args
}

// Plugin is a component's entry point: it mutates the shared
// experiment graph. Implementations are responsible for validating
// their own PluginArgs — an unknown named argument or a missing
// positional one should be returned as an error, since Go's plugin
// registry has no runtime introspection of a Python function
// signature to validate against ahead of the call.
type Plugin interface {
	Run(graph *expgraph.Graph, args PluginArgs) error
}

// Factory constructs a fresh Plugin instance for one invocation.
type Factory func() Plugin

// ObjectsLoader represents a component's "objects" entry point: code
// that must run (typically registering decorator types) before later
// components' plugins can depend on it.
type ObjectsLoader func() error

// Registry is the explicit plugin registry components register
// against at build/init time, replacing dynamic module discovery.
type Registry struct {
	mu        sync.Mutex
	factories map[string]Factory
	objects   map[string]ObjectsLoader
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		objects:   make(map[string]ObjectsLoader),
	}
}

// RegisterPlugin associates component with the Factory that builds its
// plugin.
func (r *Registry) RegisterPlugin(component string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[component] = f
}

// RegisterObjects associates component with its objects loader.
func (r *Registry) RegisterObjects(component string, loader ObjectsLoader) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.objects[component] = loader
}

// ComponentReport is one entity's build outcome (spec.md §4.2 "Error
// policy").
type ComponentReport struct {
	Component string
	Err       error
	Elapsed   time.Duration
}

// Builder walks an ordered component list and invokes each one's
// plugin against a single shared graph.
type Builder struct {
	registry *Registry
	graph    *expgraph.Graph
}

// NewBuilder returns a Builder driving graph via components registered
// in registry.
func NewBuilder(registry *Registry, graph *expgraph.Graph) *Builder {
	return &Builder{registry: registry, graph: graph}
}

// ArgsSource resolves the plugin-argument bag configured for a
// component name, if any (typically resolver.Resolver.PluginArgsFor).
type ArgsSource func(component string) map[string]interface{}

// Build invokes, in order, every component's objects loader then
// plugin. A failing component sets Err on its report but does not stop
// the walk.
func (b *Builder) Build(order []*manifest.Manifest, argsFor ArgsSource) []ComponentReport {
	reports := make([]ComponentReport, 0, len(order))

	for _, m := range order {
		start := time.Now()
		report := ComponentReport{Component: m.Name}

		if m.Objects != "" {
			if loader, ok := b.registry.objects[m.Name]; ok {
				if err := loader(); err != nil {
					report.Err = &ferrors.ModelComponentImportError{Component: m.Name, Cause: err}
				}
			}
		}

		if report.Err == nil && m.Plugin != "" {
			factory, ok := b.registry.factories[m.Name]
			if !ok {
				report.Err = fmt.Errorf("graphbuilder: component %q declares a plugin but none is registered", m.Name)
			} else {
				var raw map[string]interface{}
				if argsFor != nil {
					raw = argsFor(m.Name)
				}
				if err := factory().Run(b.graph, BindArgs(raw)); err != nil {
					report.Err = err
				}
			}
		}

		report.Elapsed = time.Since(start)
		metrics.GraphBuildComponentDuration.WithLabelValues(m.Name).Observe(report.Elapsed.Seconds())
		if report.Err != nil {
			metrics.GraphBuildComponentErrors.WithLabelValues(m.Name).Inc()
		}
		reports = append(reports, report)
	}

	return reports
}
