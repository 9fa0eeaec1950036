// Package schedule places floating nodes of a control-flow annotated graph.
//
// Both the Dominator and the Scheduler only look at the "kind" property of
// edges, which annotation passes set to "control" for control flow. Any other
// kind is treated as data.
package schedule

import (
	"math"
	"slices"

	"github.com/Benny93/bgv-go/internal/graph"
)

type pair [2]*graph.Node

// Dominator answers dominance queries over the control edges of a graph.
// Answers are memoised for the lifetime of the Dominator, so it must not be
// reused after control edges change.
type Dominator struct {
	memo map[pair]bool

	// active maps queries currently being solved to their stack depth.
	active map[pair]int
}

// NewDominator returns an empty Dominator.
func NewDominator() *Dominator {
	return &Dominator{
		memo:   make(map[pair]bool),
		active: make(map[pair]int),
	}
}

// Dominates reports whether a dominates b: a is a control predecessor of b,
// or a dominates every control predecessor of b. A node with no control
// predecessors is dominated by nothing but itself.
func (d *Dominator) Dominates(a, b *graph.Node) bool {
	ok, _ := d.solve(a, b)
	return ok
}

// solve returns the answer and the lowest stack depth of an in-progress
// query it relied on. Re-entering an active query assumes true. A false
// answer never depends on such an assumption; a true one is memoised only
// when it relied on nothing below its own depth.
func (d *Dominator) solve(a, b *graph.Node) (bool, int) {
	if a == b {
		return true, math.MaxInt
	}
	key := pair{a, b}
	if v, ok := d.memo[key]; ok {
		return v, math.MaxInt
	}
	if depth, ok := d.active[key]; ok {
		return true, depth
	}

	depth := len(d.active)
	d.active[key] = depth
	defer delete(d.active, key)

	preds := controlPredecessors(b)
	result, low := true, math.MaxInt
	switch {
	case len(preds) == 0:
		result = false
	case slices.Contains(preds, a):
	default:
		for _, p := range preds {
			ok, l := d.solve(a, p)
			low = min(low, l)
			if !ok {
				result = false
				break
			}
		}
	}

	if !result || low >= depth {
		d.memo[key] = result
		low = math.MaxInt
	}
	return result, low
}

func controlPredecessors(n *graph.Node) []*graph.Node {
	var preds []*graph.Node
	for _, e := range n.Inputs {
		if e.Kind() == graph.KindControl && !slices.Contains(preds, e.From) {
			preds = append(preds, e.From)
		}
	}
	return preds
}
