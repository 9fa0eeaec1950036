// Package passes annotates parsed graphs with the properties the scheduler
// and display tools read, chiefly the "kind" of every edge.
//
// Passes are registered explicitly. The fallback pass is not registered: a
// Registry always runs it after every registered pass.
package passes

import (
	"fmt"

	"github.com/Benny93/bgv-go/internal/graph"
)

// PropPassesApplied is the graph property listing the passes that ran.
const PropPassesApplied = "passes_applied"

// Options carries settings shared by every pass.
type Options struct {
	// ControlEdges are edge names classified as control flow.
	ControlEdges []string

	// InfoEdges are edge names classified as informational.
	InfoEdges []string
}

// DefaultControlEdges are the Graal edge names that carry control flow.
var DefaultControlEdges = []string{
	"ends", "next", "trueSuccessor", "falseSuccessor", "exceptionEdge", "successors",
}

// DefaultInfoEdges point at metadata rather than at values.
var DefaultInfoEdges = []string{
	"frameState", "callTarget", "stateAfter", "merge", "loopBegin",
}

// DefaultOptions returns Options with the Graal edge classification.
func DefaultOptions() Options {
	return Options{
		ControlEdges: append([]string(nil), DefaultControlEdges...),
		InfoEdges:    append([]string(nil), DefaultInfoEdges...),
	}
}

// Pass reads and writes node and edge properties of a graph.
type Pass interface {
	// Name identifies the pass in PropPassesApplied.
	Name() string

	// Applies reports whether the pass understands g.
	Applies(g *graph.Graph) bool

	// Apply annotates g in place.
	Apply(g *graph.Graph, opts Options) error
}

// Registry runs passes in registration order, then the fallback pass.
type Registry struct {
	passes   []Pass
	fallback Pass
}

// NewRegistry returns a registry with no passes besides the fallback.
func NewRegistry() *Registry {
	return &Registry{fallback: FallbackPass{}}
}

// Default returns a registry with the built-in passes registered.
func Default() *Registry {
	r := NewRegistry()
	r.Register(ControlFlowPass{})
	return r
}

// Register appends p. Registering the fallback pass is a no-op since it
// always runs last anyway.
func (r *Registry) Register(p Pass) {
	if _, ok := p.(FallbackPass); ok {
		return
	}
	r.passes = append(r.passes, p)
}

// Passes returns every pass in run order, fallback last.
func (r *Registry) Passes() []Pass {
	out := make([]Pass, 0, len(r.passes)+1)
	out = append(out, r.passes...)
	return append(out, r.fallback)
}

// Apply runs every applicable pass on g and records their names.
func (r *Registry) Apply(g *graph.Graph, opts Options) error {
	var applied []graph.Value
	if existing, ok := g.Props[PropPassesApplied].AsList(); ok {
		applied = existing
	}
	for _, p := range r.Passes() {
		if !p.Applies(g) {
			continue
		}
		if err := p.Apply(g, opts); err != nil {
			return fmt.Errorf("pass %s: %w", p.Name(), err)
		}
		applied = append(applied, graph.String(p.Name()))
	}
	g.Props.Set(PropPassesApplied, graph.List(applied))
	return nil
}
