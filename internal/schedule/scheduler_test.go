package schedule

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Benny93/bgv-go/internal/graph"
)

// placements maps each scheduled node id to the id it was placed before.
func placements(edges []*graph.Edge) map[int32]int32 {
	out := make(map[int32]int32, len(edges))
	for _, e := range edges {
		out[e.From.ID] = e.To.ID
	}
	return out
}

func TestScheduler_NoControlFlow(t *testing.T) {
	t.Parallel()

	c := newCFG()
	a, b := c.node(), c.node()
	c.data(a, b, "x")

	s := New(c.g)
	err := s.Schedule()

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoControlFlow)
	assert.ErrorIs(t, err, ErrScheduling)
	var se *SchedulingError
	require.ErrorAs(t, err, &se)
	assert.Nil(t, se.Node)
	assert.Empty(t, s.Edges())
	assert.Len(t, c.g.Edges, 1)
}

func TestScheduler_EmptyGraph(t *testing.T) {
	t.Parallel()

	assert.ErrorIs(t, New(graph.NewGraph(nil)).Schedule(), ErrNoControlFlow)
}

func TestScheduler_SingleUser(t *testing.T) {
	t.Parallel()

	// start -> ret; k -> add -> ret, k2 -> add
	c := newCFG()
	start, ret := c.node(), c.node()
	k, k2, add := c.node(), c.node(), c.node()
	c.control(start, ret)
	c.data(k, add, "x")
	c.data(k2, add, "y")
	c.data(add, ret, "result")

	s := New(c.g)
	require.NoError(t, s.Schedule())

	want := map[int32]int32{k.ID: add.ID, k2.ID: add.ID, add.ID: ret.ID}
	if diff := cmp.Diff(want, placements(s.Edges())); diff != "" {
		t.Errorf("placements mismatch (-want +got):\n%s", diff)
	}
	for _, e := range s.Edges() {
		assert.Equal(t, graph.KindSchedule, e.Kind())
		assert.Contains(t, e.From.Outputs, e)
		assert.Contains(t, e.To.Inputs, e)
	}
	assert.Len(t, c.g.Edges, 4+len(s.Edges()))
}

func TestScheduler_ParallelEdgesToOneUser(t *testing.T) {
	t.Parallel()

	c := newCFG()
	start, ret := c.node(), c.node()
	k := c.node()
	c.control(start, ret)
	c.data(k, ret, "x")
	c.data(k, ret, "y")

	s := New(c.g)
	require.NoError(t, s.Schedule())
	assert.Equal(t, map[int32]int32{k.ID: ret.ID}, placements(s.Edges()))
}

func TestScheduler_Diamond(t *testing.T) {
	t.Parallel()

	// entry branches to left and right, which merge; k is used in both arms.
	c := newCFG()
	entry, left, right, merge := c.node(), c.node(), c.node(), c.node()
	k := c.node()
	c.control(entry, left)
	c.control(entry, right)
	c.control(left, merge)
	c.control(right, merge)
	c.data(k, left, "x")
	c.data(k, right, "x")

	s := New(c.g)
	require.NoError(t, s.Schedule())
	assert.Equal(t, map[int32]int32{k.ID: entry.ID}, placements(s.Edges()))
}

func TestScheduler_FixedInputConstrainsBranch(t *testing.T) {
	t.Parallel()

	// start -> split -> {left, right}; v reads split and is used in both arms,
	// so start is not dominated by its input and split is chosen.
	c := newCFG()
	start, split, left, right := c.node(), c.node(), c.node(), c.node()
	v := c.node()
	c.control(start, split)
	c.control(split, left)
	c.control(split, right)
	c.data(split, v, "condition")
	c.data(v, left, "x")
	c.data(v, right, "x")

	s := New(c.g)
	require.NoError(t, s.Schedule())
	assert.Equal(t, map[int32]int32{v.ID: split.ID}, placements(s.Edges()))
}

func TestScheduler_UsersResolvedThroughSchedule(t *testing.T) {
	t.Parallel()

	// k feeds two floating nodes, each used in one arm of the diamond.
	c := newCFG()
	entry, left, right := c.node(), c.node(), c.node()
	k, a, b := c.node(), c.node(), c.node()
	c.control(entry, left)
	c.control(entry, right)
	c.data(k, a, "x")
	c.data(k, b, "x")
	c.data(a, left, "x")
	c.data(b, right, "x")

	s := New(c.g)
	require.NoError(t, s.Schedule())

	want := map[int32]int32{a.ID: left.ID, b.ID: right.ID, k.ID: entry.ID}
	if diff := cmp.Diff(want, placements(s.Edges())); diff != "" {
		t.Errorf("placements mismatch (-want +got):\n%s", diff)
	}
}

func TestScheduler_NoDominatingBranch(t *testing.T) {
	t.Parallel()

	// Two disconnected entries; nothing dominates both uses.
	c := newCFG()
	s1, a, s2, b := c.node(), c.node(), c.node(), c.node()
	k := c.node()
	c.control(s1, a)
	c.control(s2, b)
	c.data(k, a, "x")
	c.data(k, b, "x")

	err := New(c.g).Schedule()
	assert.ErrorIs(t, err, ErrNoDominatingBranch)
	var se *SchedulingError
	require.ErrorAs(t, err, &se)
	assert.Same(t, k, se.Node)
	assert.Contains(t, err.Error(), "node 4")
}

func TestScheduler_Phi(t *testing.T) {
	t.Parallel()

	// start -> if -> {t -> endT, f -> endF} -> merge -> ret
	// phi(merge; c1, c2) -> ret
	c := newCFG()
	start, branch, tArm, fArm := c.node(), c.node(), c.node(), c.node()
	endT, endF, merge, ret := c.node(), c.node(), c.node(), c.node()
	c1, c2, phi := c.node(), c.node(), c.node()
	c.control(start, branch)
	c.control(branch, tArm)
	c.control(branch, fArm)
	c.control(tArm, endT)
	c.control(fArm, endF)
	c.control(endT, merge)
	c.control(endF, merge)
	c.control(merge, ret)
	c.data(merge, phi, "merge")
	c.data(c1, phi, "values")
	c.data(c2, phi, "values")
	c.data(phi, ret, "result")

	s := New(c.g)
	require.NoError(t, s.Schedule())

	// A phi with one user is placed at that user like any other value.
	want := map[int32]int32{phi.ID: ret.ID, c1.ID: phi.ID, c2.ID: phi.ID}
	if diff := cmp.Diff(want, placements(s.Edges())); diff != "" {
		t.Errorf("placements mismatch (-want +got):\n%s", diff)
	}
}

func TestScheduler_PhiManyUsers(t *testing.T) {
	t.Parallel()

	// start -> merge -> store -> ret
	// phi(merge; k) -> store, phi -> ret
	c := newCFG()
	start, merge, store, ret := c.node(), c.node(), c.node(), c.node()
	k, phi := c.node(), c.node()
	c.control(start, merge)
	c.control(merge, store)
	c.control(store, ret)
	c.data(merge, phi, "merge")
	c.data(k, phi, "values")
	c.data(phi, store, "value")
	c.data(phi, ret, "result")

	s := New(c.g)
	require.NoError(t, s.Schedule())

	want := map[int32]int32{phi.ID: merge.ID, k.ID: phi.ID}
	if diff := cmp.Diff(want, placements(s.Edges())); diff != "" {
		t.Errorf("placements mismatch (-want +got):\n%s", diff)
	}
}

func TestScheduler_LoopPhi(t *testing.T) {
	t.Parallel()

	// The phi and the add feeding it back form a data cycle.
	c := newCFG()
	start, loopBegin, body, loopEnd := c.node(), c.node(), c.node(), c.node()
	phi, add, one, init := c.node(), c.node(), c.node(), c.node()
	c.control(start, loopBegin)
	c.control(loopBegin, body)
	c.control(body, loopEnd)
	c.control(loopEnd, loopBegin)
	c.data(loopBegin, phi, "merge")
	c.data(init, phi, "values")
	c.data(add, phi, "values")
	c.data(phi, add, "x")
	c.data(one, add, "y")

	s := New(c.g)
	require.NoError(t, s.Schedule())

	got := placements(s.Edges())
	assert.Equal(t, loopBegin.ID, got[phi.ID])
	assert.Equal(t, phi.ID, got[add.ID])
	assert.Equal(t, add.ID, got[one.ID])
	assert.Equal(t, phi.ID, got[init.ID])
}

func TestScheduler_CyclicFloating(t *testing.T) {
	t.Parallel()

	c := newCFG()
	start, end := c.node(), c.node()
	a, b := c.node(), c.node()
	c.control(start, end)
	c.data(a, b, "x")
	c.data(b, a, "x")

	err := New(c.g).Schedule()
	assert.ErrorIs(t, err, ErrCyclicFloating)
	assert.ErrorIs(t, err, ErrScheduling)
}

func TestScheduler_HiddenAndInlined(t *testing.T) {
	t.Parallel()

	c := newCFG()
	start, ret := c.node(), c.node()
	k := c.node()
	hidden := c.node(graph.PropHidden)
	inlined := c.node(graph.PropInlined)
	c.control(start, ret)
	c.data(k, ret, "x")
	c.data(k, hidden, "x")
	c.data(inlined, ret, "y")

	s := New(c.g)
	require.NoError(t, s.Schedule())

	// k has one visible user; hidden and inlined nodes are never placed.
	assert.Equal(t, map[int32]int32{k.ID: ret.ID}, placements(s.Edges()))
}

func TestScheduler_UnusedValue(t *testing.T) {
	t.Parallel()

	c := newCFG()
	start, ret := c.node(), c.node()
	k := c.node()
	c.control(start, ret)

	s := New(c.g)
	require.NoError(t, s.Schedule())
	assert.Equal(t, map[int32]int32{k.ID: start.ID}, placements(s.Edges()))
}
