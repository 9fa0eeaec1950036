package graph

import (
	"fmt"
	"slices"

	"github.com/Benny93/bgv-go/internal/pool"
)

// Keys the parser stores on every node and edge it creates.
const (
	PropID             = "id"
	PropNodeClass      = "node_class"
	PropHasPredecessor = "has_predecessor"

	PropName      = "name"
	PropType      = "type"
	PropDirect    = "direct"
	PropIndex     = "index"
	PropSuccessor = "successor"
)

// Keys and kinds written by annotation passes and the scheduler.
const (
	PropKind    = "kind"
	PropLabel   = "label"
	PropHidden  = "hidden"
	PropInlined = "inlined"

	KindControl  = "control"
	KindData     = "data"
	KindSchedule = "schedule"
	KindOther    = "other"
)

// Graph is a directed multigraph of nodes and edges with properties.
//
// Every edge lives in three places at once: its source's Outputs, its
// target's Inputs, and Edges. CreateEdge and RemoveEdge are the only
// mutators and keep the three in step. A Graph is not safe for concurrent
// use.
type Graph struct {
	Props  Props
	Nodes  map[int32]*Node
	Edges  []*Edge
	Blocks []*Block

	order []*Node
}

// NewGraph creates an empty graph with the given properties.
func NewGraph(props Props) *Graph {
	if props == nil {
		props = make(Props)
	}
	return &Graph{
		Props: props,
		Nodes: make(map[int32]*Node),
	}
}

// NodeList returns the nodes in creation order.
func (g *Graph) NodeList() []*Node {
	return g.order
}

// CreateNode adds a node. Reusing an id within one graph is a caller bug.
func (g *Graph) CreateNode(id int32, props Props) *Node {
	if props == nil {
		props = make(Props)
	}
	node := &Node{ID: id, Props: props}
	g.Nodes[id] = node
	g.order = append(g.order, node)
	return node
}

// CreateEdge adds an edge from -> to.
func (g *Graph) CreateEdge(from, to *Node, props Props) *Edge {
	if props == nil {
		props = make(Props)
	}
	edge := &Edge{From: from, To: to, Props: props}
	g.Edges = append(g.Edges, edge)
	from.Outputs = append(from.Outputs, edge)
	to.Inputs = append(to.Inputs, edge)
	return edge
}

// RemoveEdge removes edge from all three places it is recorded.
func (g *Graph) RemoveEdge(edge *Edge) {
	edge.From.Outputs = removeEdge(edge.From.Outputs, edge)
	edge.To.Inputs = removeEdge(edge.To.Inputs, edge)
	g.Edges = removeEdge(g.Edges, edge)
}

func removeEdge(edges []*Edge, edge *Edge) []*Edge {
	return slices.DeleteFunc(edges, func(e *Edge) bool { return e == edge })
}

// CreateBlock adds a basic block. Ids that do not name a node are dropped.
func (g *Graph) CreateBlock(id int32, nodeIDs []int32, successors []int32) *Block {
	block := &Block{ID: id, Successors: successors}
	for _, nid := range nodeIDs {
		if node, ok := g.Nodes[nid]; ok {
			block.Nodes = append(block.Nodes, node)
		}
	}
	g.Blocks = append(g.Blocks, block)
	return block
}

// Stats returns a summary of graph size.
func (g *Graph) Stats() map[string]int {
	return map[string]int{
		"nodes":  len(g.order),
		"edges":  len(g.Edges),
		"blocks": len(g.Blocks),
	}
}

// Node is a graph node with its incoming and outgoing edges.
type Node struct {
	ID      int32
	Props   Props
	Inputs  []*Edge
	Outputs []*Edge
}

// NodeClass returns the node-class pool object, or nil.
func (n *Node) NodeClass() *pool.NodeClass {
	obj, _ := n.Props[PropNodeClass].AsObject()
	nc, _ := obj.(*pool.NodeClass)
	return nc
}

// ClassName returns the Java class name of the node, or "".
func (n *Node) ClassName() string {
	if nc := n.NodeClass(); nc != nil {
		return nc.Name()
	}
	return ""
}

func (n *Node) String() string {
	return fmt.Sprintf("<Node %d %s>", n.ID, n.ClassName())
}

// Edge is a directed edge with properties.
type Edge struct {
	From  *Node
	To    *Node
	Props Props
}

// Name returns the schema name of the edge, or "".
func (e *Edge) Name() string {
	v := e.Props[PropName]
	if s, ok := v.AsString(); ok {
		return s
	}
	if o, ok := v.AsObject(); ok {
		return o.Name()
	}
	return ""
}

// Kind returns the classification set by annotation passes, or "".
func (e *Edge) Kind() string {
	k, _ := e.Props.String(PropKind)
	return k
}

func (e *Edge) String() string {
	return fmt.Sprintf("<Edge %d -> %d>", e.From.ID, e.To.ID)
}

// Block is a precomputed control-flow basic block.
type Block struct {
	ID         int32
	Nodes      []*Node
	Successors []int32
}
