package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Benny93/bgv-go/internal/pool"
)

func TestNewGraph(t *testing.T) {
	t.Parallel()

	g := NewGraph(nil)

	assert.NotNil(t, g.Props)
	assert.Empty(t, g.NodeList())
	assert.Empty(t, g.Edges)
	assert.Equal(t, map[string]int{"nodes": 0, "edges": 0, "blocks": 0}, g.Stats())
}

func TestGraph_CreateNode(t *testing.T) {
	t.Parallel()

	t.Run("KeepsCreationOrder", func(t *testing.T) {
		t.Parallel()
		g := NewGraph(nil)

		g.CreateNode(7, nil)
		g.CreateNode(2, Props{"label": String("two")})
		g.CreateNode(5, nil)

		ids := make([]int32, 0, 3)
		for _, n := range g.NodeList() {
			ids = append(ids, n.ID)
		}
		assert.Equal(t, []int32{7, 2, 5}, ids)
		assert.Len(t, g.Nodes, 3)

		label, ok := g.Nodes[2].Props.String("label")
		assert.True(t, ok)
		assert.Equal(t, "two", label)
	})

	t.Run("NodeClass", func(t *testing.T) {
		t.Parallel()
		g := NewGraph(nil)
		nc := &pool.NodeClass{Class: &pool.Class{TypeName: "org.graalvm.compiler.nodes.StartNode"}}

		n := g.CreateNode(0, Props{PropNodeClass: Object(nc)})
		other := g.CreateNode(1, nil)

		assert.Same(t, nc, n.NodeClass())
		assert.Equal(t, "org.graalvm.compiler.nodes.StartNode", n.ClassName())
		assert.Nil(t, other.NodeClass())
		assert.Equal(t, "", other.ClassName())
	})
}

func TestGraph_CreateEdge(t *testing.T) {
	t.Parallel()

	g := NewGraph(nil)
	a := g.CreateNode(0, nil)
	b := g.CreateNode(1, nil)

	e := g.CreateEdge(a, b, Props{PropName: String("next")})

	require.Len(t, g.Edges, 1)
	assert.Same(t, e, g.Edges[0])
	assert.Equal(t, []*Edge{e}, a.Outputs)
	assert.Equal(t, []*Edge{e}, b.Inputs)
	assert.Empty(t, a.Inputs)
	assert.Empty(t, b.Outputs)
	assert.Equal(t, "<Edge 0 -> 1>", e.String())
}

func TestGraph_RemoveEdge(t *testing.T) {
	t.Parallel()

	g := NewGraph(nil)
	a := g.CreateNode(0, nil)
	b := g.CreateNode(1, nil)
	c := g.CreateNode(2, nil)

	ab := g.CreateEdge(a, b, nil)
	ac := g.CreateEdge(a, c, nil)
	parallel := g.CreateEdge(a, b, nil)

	g.RemoveEdge(ab)

	assert.Equal(t, []*Edge{ac, parallel}, g.Edges)
	assert.Equal(t, []*Edge{ac, parallel}, a.Outputs)
	assert.Equal(t, []*Edge{parallel}, b.Inputs)
	assert.Equal(t, []*Edge{ac}, c.Inputs)

	// Every remaining edge is recorded in all three places.
	for _, e := range g.Edges {
		assert.Contains(t, e.From.Outputs, e)
		assert.Contains(t, e.To.Inputs, e)
	}
}

func TestGraph_CreateBlock(t *testing.T) {
	t.Parallel()

	g := NewGraph(nil)
	g.CreateNode(1, nil)
	g.CreateNode(3, nil)

	block := g.CreateBlock(0, []int32{1, 2, 3}, []int32{4})

	require.Len(t, block.Nodes, 2)
	assert.Equal(t, int32(1), block.Nodes[0].ID)
	assert.Equal(t, int32(3), block.Nodes[1].ID)
	assert.Equal(t, []int32{4}, block.Successors)
	assert.Equal(t, []*Block{block}, g.Blocks)
}

func TestEdge_NameAndKind(t *testing.T) {
	t.Parallel()

	g := NewGraph(nil)
	a := g.CreateNode(0, nil)
	b := g.CreateNode(1, nil)

	tests := []struct {
		name     string
		props    Props
		wantName string
		wantKind string
	}{
		{"PooledName", Props{PropName: Object(pool.String("next")), PropKind: String(KindControl)}, "next", KindControl},
		{"PlainName", Props{PropName: String("x")}, "x", ""},
		{"Unnamed", nil, "", ""},
		{"WrongKindType", Props{PropKind: Int(1)}, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e := &Edge{From: a, To: b, Props: tt.props}
			assert.Equal(t, tt.wantName, e.Name())
			assert.Equal(t, tt.wantKind, e.Kind())
		})
	}
}
