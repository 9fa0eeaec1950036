package schedule

import (
	"errors"
	"fmt"

	"github.com/Benny93/bgv-go/internal/graph"
)

// ErrScheduling is the sentinel every scheduling failure wraps.
var ErrScheduling = errors.New("scheduling failed")

var (
	// ErrNoControlFlow means the graph has no control edges at all.
	ErrNoControlFlow = fmt.Errorf("%w: no control flow in graph", ErrScheduling)

	// ErrNoDominatingBranch means no branch dominates every use of a value
	// while being dominated by every input.
	ErrNoDominatingBranch = fmt.Errorf("%w: no dominating branch", ErrScheduling)

	// ErrCyclicFloating means floating nodes wait on each other forever.
	ErrCyclicFloating = fmt.Errorf("%w: floating nodes depend on each other", ErrScheduling)
)

// SchedulingError reports a failure to place a node. It wraps one of the
// sentinels above.
type SchedulingError struct {
	// Node is the node being placed, nil for graph-wide failures.
	Node *graph.Node
	Err  error
}

func (e *SchedulingError) Error() string {
	if e == nil {
		return ""
	}
	if e.Node == nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("%v (node %d)", e.Err, e.Node.ID)
}

func (e *SchedulingError) Unwrap() error { return e.Err }

// Edge names identifying a phi: its values and its merge.
const (
	phiValuesEdge = "values"
	phiMergeEdge  = "merge"
)

// Scheduler attaches every floating node to the fixed node it must run
// before, by adding edges of kind "schedule". Existing edges are never
// touched. Nodes marked inlined or hidden are not scheduled, and hidden nodes
// do not count as users.
type Scheduler struct {
	g     *graph.Graph
	dom   *Dominator
	added []*graph.Edge
}

// New returns a Scheduler for g.
func New(g *graph.Graph) *Scheduler {
	return &Scheduler{g: g, dom: NewDominator()}
}

// Edges returns the schedule edges added so far.
func (s *Scheduler) Edges() []*graph.Edge {
	return s.added
}

// Schedule places every floating node.
func (s *Scheduler) Schedule() error {
	if !s.hasControlFlow() {
		return &SchedulingError{Err: ErrNoControlFlow}
	}

	branches := s.branches()

	var worklist []*graph.Node
	pending := make(map[*graph.Node]bool)
	for _, n := range s.g.NodeList() {
		if !hasControl(n) && !n.Props.Bool(graph.PropInlined) && !n.Props.Bool(graph.PropHidden) {
			worklist = append(worklist, n)
			pending[n] = true
		}
	}

	// stalled counts consecutive deferrals; a full rotation without
	// progress can never finish.
	stalled := 0
	for len(worklist) > 0 {
		node := worklist[0]
		worklist = worklist[1:]

		users := visibleUsers(node)
		merge := phiMerge(node)
		if anyPending(users, pending) {
			// A phi waiting on its users may be part of a loop cycle; it
			// can always go to its merge instead.
			if merge != nil {
				delete(pending, node)
				stalled = 0
				s.link(node, merge)
				continue
			}
			worklist = append(worklist, node)
			stalled++
			if stalled > len(worklist) {
				return &SchedulingError{Node: node, Err: ErrCyclicFloating}
			}
			continue
		}
		delete(pending, node)
		stalled = 0

		if len(users) == 1 {
			s.link(node, users[0])
			continue
		}
		if merge != nil {
			s.link(node, merge)
			continue
		}

		branch, err := s.dominatingBranch(node, users, branches)
		if err != nil {
			return err
		}
		s.link(node, branch)
	}
	return nil
}

// dominatingBranch picks the first branch that dominates every fixed
// output of node and is dominated by every fixed input. It is a legal
// placement, not necessarily the latest one.
func (s *Scheduler) dominatingBranch(node *graph.Node, users, branches []*graph.Node) (*graph.Node, error) {
	var inputs []*graph.Node
	for _, e := range node.Inputs {
		in := e.From
		if in.Props.Bool(graph.PropHidden) {
			continue
		}
		if hasControl(in) || scheduledTo(in) != nil {
			inputs = append(inputs, in)
		}
	}
	fixedInputs := resolveAll(inputs)
	fixedOutputs := resolveAll(users)

	for _, b := range branches {
		if s.dominatesAll(b, fixedOutputs) && s.dominatedByAll(b, fixedInputs) {
			return b, nil
		}
	}
	return nil, &SchedulingError{Node: node, Err: ErrNoDominatingBranch}
}

func (s *Scheduler) dominatesAll(b *graph.Node, nodes []*graph.Node) bool {
	for _, n := range nodes {
		if !s.dom.Dominates(b, n) {
			return false
		}
	}
	return true
}

func (s *Scheduler) dominatedByAll(b *graph.Node, nodes []*graph.Node) bool {
	for _, n := range nodes {
		if !s.dom.Dominates(n, b) {
			return false
		}
	}
	return true
}

func (s *Scheduler) link(from, to *graph.Node) {
	edge := s.g.CreateEdge(from, to, graph.Props{graph.PropKind: graph.String(graph.KindSchedule)})
	s.added = append(s.added, edge)
}

func (s *Scheduler) hasControlFlow() bool {
	for _, e := range s.g.Edges {
		if e.Kind() == graph.KindControl {
			return true
		}
	}
	return false
}

// branches returns nodes with more than one control successor, plus the
// entry: no control predecessor and exactly one control successor.
func (s *Scheduler) branches() []*graph.Node {
	var out []*graph.Node
	for _, n := range s.g.NodeList() {
		in, succ := controlDegree(n)
		if succ > 1 || (in == 0 && succ == 1) {
			out = append(out, n)
		}
	}
	return out
}

func controlDegree(n *graph.Node) (in, out int) {
	for _, e := range n.Inputs {
		if e.Kind() == graph.KindControl {
			in++
		}
	}
	for _, e := range n.Outputs {
		if e.Kind() == graph.KindControl {
			out++
		}
	}
	return in, out
}

func hasControl(n *graph.Node) bool {
	in, out := controlDegree(n)
	return in > 0 || out > 0
}

// phiMerge returns the merge a phi belongs to, or nil if n is not a phi.
func phiMerge(n *graph.Node) *graph.Node {
	var values bool
	var merge *graph.Node
	for _, e := range n.Inputs {
		switch e.Name() {
		case phiValuesEdge:
			values = true
		case phiMergeEdge:
			if hasControl(e.From) {
				merge = e.From
			}
		}
	}
	if !values {
		return nil
	}
	return merge
}

func visibleUsers(n *graph.Node) []*graph.Node {
	var users []*graph.Node
	seen := make(map[*graph.Node]bool)
	for _, e := range n.Outputs {
		u := e.To
		if seen[u] || u.Props.Bool(graph.PropHidden) {
			continue
		}
		seen[u] = true
		users = append(users, u)
	}
	return users
}

func anyPending(nodes []*graph.Node, pending map[*graph.Node]bool) bool {
	for _, n := range nodes {
		if pending[n] {
			return true
		}
	}
	return false
}

func scheduledTo(n *graph.Node) *graph.Node {
	for _, e := range n.Outputs {
		if e.Kind() == graph.KindSchedule {
			return e.To
		}
	}
	return nil
}

// resolve follows schedule edges from n to the first node carrying control.
// Nodes that never reach one, such as inlined users, resolve to nil.
func resolve(n *graph.Node) *graph.Node {
	seen := make(map[*graph.Node]bool)
	for n != nil && !hasControl(n) {
		if seen[n] {
			return nil
		}
		seen[n] = true
		n = scheduledTo(n)
	}
	return n
}

func resolveAll(nodes []*graph.Node) []*graph.Node {
	var out []*graph.Node
	seen := make(map[*graph.Node]bool)
	for _, n := range nodes {
		fixed := resolve(n)
		if fixed == nil || seen[fixed] {
			continue
		}
		seen[fixed] = true
		out = append(out, fixed)
	}
	return out
}
