package passes

import (
	"fmt"
	"slices"

	"github.com/Benny93/bgv-go/internal/bgv"
	"github.com/Benny93/bgv-go/internal/graph"
)

// KindInfo marks edges pointing at metadata such as frame states.
const KindInfo = "info"

var edgeLabels = map[string]string{
	"trueSuccessor":  "T",
	"falseSuccessor": "F",
	"exceptionEdge":  "unwind",
	"condition":      "?",
}

// ControlFlowPass classifies edges of compiler graphs by schema name:
// control, info or data. It applies to graphs whose nodes carry node
// classes, which is every graph the BGV parser produces.
type ControlFlowPass struct{}

func (ControlFlowPass) Name() string { return "control-flow" }

func (ControlFlowPass) Applies(g *graph.Graph) bool {
	for _, n := range g.NodeList() {
		if n.NodeClass() != nil {
			return true
		}
	}
	return false
}

func (ControlFlowPass) Apply(g *graph.Graph, opts Options) error {
	for _, e := range g.Edges {
		name := e.Name()
		if name == "" || e.Kind() == graph.KindSchedule {
			continue
		}
		if name == "loopBegin" {
			if err := checkLoopBegin(e); err != nil {
				return err
			}
		}
		switch {
		case slices.Contains(opts.ControlEdges, name):
			e.Props.Set(graph.PropKind, graph.String(graph.KindControl))
		case slices.Contains(opts.InfoEdges, name):
			e.Props.Set(graph.PropKind, graph.String(KindInfo))
		default:
			e.Props.Set(graph.PropKind, graph.String(graph.KindData))
		}
		label, ok := edgeLabels[name]
		if !ok {
			label = name
		}
		e.Props.Set(graph.PropLabel, graph.String(label))
	}
	return nil
}

// A loopBegin edge may only lead into a loop end or a loop exit.
func checkLoopBegin(e *graph.Edge) error {
	switch shortClassName(e.To.ClassName()) {
	case "LoopEnd", "LoopExit":
		return nil
	}
	return fmt.Errorf("%w: loopBegin edge from node %d to %s, want LoopEnd or LoopExit",
		bgv.ErrFormat, e.From.ID, e.To)
}
