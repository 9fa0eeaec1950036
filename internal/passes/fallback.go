package passes

import (
	"strings"

	"github.com/Benny93/bgv-go/internal/graph"
)

// FallbackPass applies to every graph. It gives each node a label and
// defaults every node and edge without a kind to "other".
type FallbackPass struct{}

func (FallbackPass) Name() string { return "fallback" }

func (FallbackPass) Applies(*graph.Graph) bool { return true }

func (FallbackPass) Apply(g *graph.Graph, _ Options) error {
	for _, n := range g.NodeList() {
		if _, ok := n.Props.String(graph.PropLabel); !ok {
			if name := shortClassName(n.ClassName()); name != "" {
				n.Props.Set(graph.PropLabel, graph.String(name))
			}
		}
		setDefaultKind(n.Props)
	}
	for _, e := range g.Edges {
		setDefaultKind(e.Props)
	}
	return nil
}

func setDefaultKind(p graph.Props) {
	if _, ok := p.String(graph.PropKind); !ok {
		p.Set(graph.PropKind, graph.String(graph.KindOther))
	}
}

// shortClassName drops the package and a trailing "Node".
func shortClassName(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	if trimmed := strings.TrimSuffix(name, "Node"); trimmed != "" {
		return trimmed
	}
	return name
}
