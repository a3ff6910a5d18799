package graphbuilder

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandialabs/firewheel-core/pkg/expgraph"
	"github.com/sandialabs/firewheel-core/pkg/manifest"
)

type recordingPlugin struct {
	gotArgs PluginArgs
	fail    bool
}

func (p *recordingPlugin) Run(graph *expgraph.Graph, args PluginArgs) error {
	p.gotArgs = args
	graph.NewVertex("from-plugin")
	if p.fail {
		return errors.New("boom")
	}
	return nil
}

func TestBuildInvokesPluginsInOrderAndContinuesAfterFailure(t *testing.T) {
	registry := NewRegistry()
	var p1, p2 recordingPlugin
	p1.fail = true
	registry.RegisterPlugin("a", func() Plugin { return &p1 })
	registry.RegisterPlugin("b", func() Plugin { return &p2 })

	graph := expgraph.New()
	b := NewBuilder(registry, graph)

	order := []*manifest.Manifest{
		{Name: "a", Plugin: "grapher.py"},
		{Name: "b", Plugin: "grapher.py"},
	}
	reports := b.Build(order, nil)

	require.Len(t, reports, 2)
	assert.Error(t, reports[0].Err)
	assert.NoError(t, reports[1].Err)
	assert.Len(t, graph.Vertices(), 2)
}

func TestBuildBindsPluginArgs(t *testing.T) {
	registry := NewRegistry()
	var p recordingPlugin
	registry.RegisterPlugin("a", func() Plugin { return &p })

	graph := expgraph.New()
	b := NewBuilder(registry, graph)

	order := []*manifest.Manifest{{Name: "a", Plugin: "grapher.py"}}
	argsFor := func(name string) map[string]interface{} {
		return map[string]interface{}{
			"":      []interface{}{"topo.json"},
			"count": 3,
		}
	}
	reports := b.Build(order, argsFor)
	require.NoError(t, reports[0].Err)
	assert.Equal(t, []interface{}{"topo.json"}, p.gotArgs.Positional)
	assert.Equal(t, 3, p.gotArgs.Named["count"])
}

func TestBuildReportsMissingPlugin(t *testing.T) {
	registry := NewRegistry()
	graph := expgraph.New()
	b := NewBuilder(registry, graph)

	order := []*manifest.Manifest{{Name: "a", Plugin: "grapher.py"}}
	reports := b.Build(order, nil)
	assert.Error(t, reports[0].Err)
}
