// Package resolver implements the Model-Component Dependency Resolver
// (spec.md §4.1). It is grounded on
// original_source/src/firewheel/control/model_component_dependency_graph.py's
// ModelComponentDependencyGraph: a thin, domain-specific layer over
// pkg/depgraph's generic graph that tracks a component_map alongside
// the graph's own entity ids, and renders cycles as alternating
// "attribute (Attribute)" / "name (Model Component)" chains.
package resolver

import (
	"fmt"

	"github.com/sandialabs/firewheel-core/pkg/depgraph"
	"github.com/sandialabs/firewheel-core/pkg/ferrors"
	"github.com/sandialabs/firewheel-core/pkg/manifest"
	"github.com/sandialabs/firewheel-core/pkg/metrics"
)

// InitialComponent is one user-selected starting point: a component
// name plus its plugin-argument bag (spec.md §4.2 "Plugin argument
// binding").
type InitialComponent struct {
	Name       string
	PluginArgs map[string]interface{}
}

// Defaults maps an attribute name to the component that should provide
// it when more than one installed component is a candidate (spec.md
// §4.1 step 3, "Default uniqueness" in §8).
type Defaults map[string]string

// Resolver loads manifests from a set of repository roots and computes
// the canonical, dependency-satisfying entity order.
type Resolver struct {
	byName     map[string]*manifest.Manifest
	graph      *depgraph.Graph
	compName   map[depgraph.NodeID]string
	nodeOf     map[string]depgraph.NodeID
	pluginArgs map[string]map[string]interface{}
}

// New loads every manifest under roots and prepares an empty resolver.
func New(roots []string) (*Resolver, error) {
	byName, err := manifest.LoadAll(roots)
	if err != nil {
		return nil, err
	}
	r := &Resolver{
		byName:     byName,
		graph:      depgraph.New(),
		compName:   make(map[depgraph.NodeID]string),
		nodeOf:     make(map[string]depgraph.NodeID),
		pluginArgs: make(map[string]map[string]interface{}),
	}
	r.graph.SetNamer(func(id depgraph.NodeID) string {
		if name, ok := r.compName[id]; ok {
			return name
		}
		return string(id)
	})
	return r, nil
}

// Resolve runs the full algorithm from spec.md §4.1: transitive
// expansion, attribute-default closure, graph construction, and
// canonical ordering. initial is the ordered list of user-selected
// components; defaults resolves ambiguous attributes.
func (r *Resolver) Resolve(initial []InitialComponent, defaults Defaults) ([]*manifest.Manifest, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.ResolveDuration)

	grouping := 0
	var initialNames []string
	for _, ic := range initial {
		initialNames = append(initialNames, ic.Name)
		if err := r.expand(ic.Name, grouping); err != nil {
			metrics.ResolverFailuresTotal.WithLabelValues("expansion").Inc()
			return nil, err
		}
		if ic.PluginArgs != nil {
			r.pluginArgs[ic.Name] = ic.PluginArgs
		}
		grouping++
	}

	if err := r.closeDefaults(defaults, grouping); err != nil {
		metrics.ResolverFailuresTotal.WithLabelValues("default-closure").Inc()
		return nil, err
	}

	for i := 1; i < len(initialNames); i++ {
		prev, cur := r.nodeOf[initialNames[i-1]], r.nodeOf[initialNames[i]]
		if err := r.graph.AssociateEntities(prev, cur); err != nil {
			return nil, fmt.Errorf("resolver: %w", err)
		}
	}

	order, err := r.graph.OrderedEntityIDs()
	if err != nil {
		metrics.ResolverFailuresTotal.WithLabelValues("cycle").Inc()
		return nil, err
	}

	out := make([]*manifest.Manifest, 0, len(order))
	for _, id := range order {
		out = append(out, r.byName[r.compName[id]])
	}
	metrics.EntitiesResolved.Add(float64(len(out)))
	return out, nil
}

// expand inserts name and every component it transitively depends on
// (via model_components.depends), suppressing duplicates unless the
// manifest's duplicate flag allows them (spec.md §4.1 step 2).
func (r *Resolver) expand(name string, grouping int) error {
	if _, already := r.nodeOf[name]; already {
		m := r.byName[name]
		if m == nil || !m.AllowsDuplicates() {
			return nil
		}
	}

	m, ok := r.byName[name]
	if !ok {
		return fmt.Errorf("resolver: component %q referenced but not found in any repository", name)
	}

	id := r.graph.InsertEntity(m.Attributes.Depends, m.Attributes.Provides, grouping)
	r.compName[id] = name
	r.nodeOf[name] = id

	for _, dep := range m.ModelComponents.Depends {
		if err := r.expand(dep, grouping); err != nil {
			return err
		}
	}
	return nil
}

// closeDefaults repeatedly finds constraint vertices with no producer
// and adds a default provider until none remain (spec.md §4.1 step 3).
func (r *Resolver) closeDefaults(defaults Defaults, grouping int) error {
	for {
		unmet := r.graph.ZeroInDegreeConstraints()
		if len(unmet) == 0 {
			return nil
		}

		progressed := false
		for _, attr := range unmet {
			provider, err := r.selectProvider(string(attr), defaults)
			if err != nil {
				return err
			}
			if provider == "" {
				continue
			}
			if _, already := r.nodeOf[provider]; !already {
				if err := r.expand(provider, grouping); err != nil {
					return err
				}
				progressed = true
			}
		}
		if !progressed {
			// Every unmet constraint was resolved by an entity already
			// in the graph (its provides edge just hadn't been wired
			// yet) or is genuinely unsatisfiable; re-check.
			stillUnmet := r.graph.ZeroInDegreeConstraints()
			if len(stillUnmet) == len(unmet) {
				attr := string(stillUnmet[0])
				return ferrors.NewNoDefaultProviderError(attr, r.candidatesFor(attr))
			}
		}
	}
}

// selectProvider picks the component that should provide attr: the
// configured default if present, else the unique installed candidate,
// else an error.
func (r *Resolver) selectProvider(attr string, defaults Defaults) (string, error) {
	if name, ok := defaults[attr]; ok {
		if m, ok := r.byName[name]; !ok || !providesAttr(m, attr) {
			return "", &ferrors.DependencyError{
				Err:    ferrors.ErrInvalidDefaultProvider,
				Detail: fmt.Sprintf("default %q for attribute %q does not provide it", name, attr),
			}
		}
		return name, nil
	}

	candidates := r.candidatesFor(attr)
	switch len(candidates) {
	case 0:
		return "", ferrors.NewNoDefaultProviderError(attr, candidates)
	case 1:
		return candidates[0], nil
	default:
		return "", ferrors.NewNoDefaultProviderError(attr, candidates)
	}
}

func (r *Resolver) candidatesFor(attr string) []string {
	var out []string
	for name, m := range r.byName {
		if providesAttr(m, attr) {
			out = append(out, name)
		}
	}
	return out
}

func providesAttr(m *manifest.Manifest, attr string) bool {
	for _, p := range m.Attributes.Provides {
		if p == attr {
			return true
		}
	}
	return false
}

// PluginArgsFor returns the plugin-argument bag recorded for name
// during Resolve, if any was supplied as part of the initial list.
func (r *Resolver) PluginArgsFor(name string) map[string]interface{} {
	return r.pluginArgs[name]
}

// EntityID exposes the internal graph id assigned to a resolved
// component, for callers building ordering associations or inspecting
// the graph directly.
func (r *Resolver) EntityID(name string) (depgraph.NodeID, bool) {
	id, ok := r.nodeOf[name]
	return id, ok
}
