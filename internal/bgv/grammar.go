package bgv

import (
	"strings"

	"github.com/Benny93/bgv-go/internal/graph"
	"github.com/Benny93/bgv-go/internal/pool"
)

// mode selects whether a grammar rule builds its value or only advances past
// its bytes. Every rule below takes a mode and is the single description of
// its layout for both.
type mode uint8

const (
	materialize mode = iota
	skip
)

func (p *Parser) enter() error {
	p.depth++
	if p.depth > p.maxDepth {
		return p.formatErr("nesting deeper than %d", p.maxDepth)
	}
	return nil
}

func (p *Parser) leave() {
	p.depth--
}

// count16 and count32 read an element count and reject negative values.
func (p *Parser) count16() (int, error) {
	n, err := p.d.ReadInt16()
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, p.formatErr("negative count %d", n)
	}
	return int(n), nil
}

func (p *Parser) count32() (int, error) {
	n, err := p.d.ReadInt32()
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, p.formatErr("negative count %d", n)
	}
	return int(n), nil
}

func (p *Parser) int32(m mode) (int32, error) {
	if m == skip {
		return 0, p.d.SkipInt32(1)
	}
	return p.d.ReadInt32()
}

func (p *Parser) bool(m mode) (bool, error) {
	if m == skip {
		return false, p.d.SkipUint8()
	}
	b, err := p.d.ReadUint8()
	if err != nil {
		return false, err
	}
	switch b {
	case 0:
		return false, nil
	case 1:
		return true, nil
	}
	return false, p.formatErr("unknown BGV boolean value 0x%x", b)
}

// string decodes an int32-length-prefixed UTF-8 string; length -1 is absent.
func (p *Parser) string(m mode) (string, bool, error) {
	n, err := p.d.ReadInt32()
	if err != nil {
		return "", false, err
	}
	if n == -1 {
		return "", false, nil
	}
	if n < -1 {
		return "", false, p.formatErr("negative string length %d", n)
	}
	if m == skip {
		return "", true, p.d.SkipUTF8(int64(n))
	}
	s, err := p.d.ReadUTF8(int64(n))
	if err != nil {
		return "", false, err
	}
	if strings.IndexByte(s, 0) >= 0 {
		return "", false, p.formatErr("null byte in BGV string")
	}
	return s, true, nil
}

func (p *Parser) args(m mode) ([]graph.Value, error) {
	n, err := p.count32()
	if err != nil {
		return nil, err
	}
	var args []graph.Value
	if m == materialize {
		args = make([]graph.Value, 0, min(n, 64))
	}
	for i := 0; i < n; i++ {
		v, err := p.propValue(m)
		if err != nil {
			return nil, err
		}
		if m == materialize {
			args = append(args, v)
		}
	}
	return args, nil
}

func (p *Parser) props(m mode) (graph.Props, error) {
	n, err := p.count16()
	if err != nil {
		return nil, err
	}
	var props graph.Props
	if m == materialize {
		props = make(graph.Props, n)
	}
	for i := 0; i < n; i++ {
		key, err := p.poolObject(m)
		if err != nil {
			return nil, err
		}
		value, err := p.propValue(m)
		if err != nil {
			return nil, err
		}
		if m == materialize {
			props[pool.NameOf(key)] = value
		}
	}
	return props, nil
}

func (p *Parser) propValue(m mode) (graph.Value, error) {
	token, err := p.d.ReadInt8()
	if err != nil {
		return graph.Null(), err
	}
	switch token {
	case PropertyPool:
		obj, err := p.poolObject(m)
		return graph.Object(obj), err
	case PropertyInt:
		v, err := p.int32(m)
		return graph.Int(int64(v)), err
	case PropertyLong:
		if m == skip {
			return graph.Null(), p.d.SkipInt64(1)
		}
		v, err := p.d.ReadInt64()
		return graph.Int(v), err
	case PropertyDouble:
		if m == skip {
			return graph.Null(), p.d.SkipFloat64(1)
		}
		v, err := p.d.ReadFloat64()
		return graph.Float(v), err
	case PropertyFloat:
		if m == skip {
			return graph.Null(), p.d.SkipFloat32(1)
		}
		v, err := p.d.ReadFloat32()
		return graph.Float(float64(v)), err
	case PropertyTrue:
		return graph.Bool(true), nil
	case PropertyFalse:
		return graph.Bool(false), nil
	case PropertyArray:
		return p.array(m)
	case PropertySubgraph:
		if err := p.enter(); err != nil {
			return graph.Null(), err
		}
		defer p.leave()
		props, err := p.props(m)
		if err != nil {
			return graph.Null(), err
		}
		g, _, err := p.graphBody(m, props)
		return graph.GraphValue(g), err
	}
	return graph.Null(), p.formatErr("unknown BGV property 0x%x", uint8(token))
}

func (p *Parser) array(m mode) (graph.Value, error) {
	elem, err := p.d.ReadInt8()
	if err != nil {
		return graph.Null(), err
	}
	if elem != PropertyPool && elem != PropertyInt && elem != PropertyDouble {
		return graph.Null(), p.formatErr("unknown BGV property array type 0x%x", uint8(elem))
	}
	n, err := p.count32()
	if err != nil {
		return graph.Null(), err
	}
	if m == skip {
		switch elem {
		case PropertyInt:
			return graph.Null(), p.d.SkipInt32(int64(n))
		case PropertyDouble:
			return graph.Null(), p.d.SkipFloat64(int64(n))
		}
	}

	values := make([]graph.Value, 0, min(n, 1024))
	for i := 0; i < n; i++ {
		switch elem {
		case PropertyPool:
			obj, err := p.poolObject(m)
			if err != nil {
				return graph.Null(), err
			}
			values = append(values, graph.Object(obj))
		case PropertyInt:
			v, err := p.d.ReadInt32()
			if err != nil {
				return graph.Null(), err
			}
			values = append(values, graph.Int(int64(v)))
		case PropertyDouble:
			v, err := p.d.ReadFloat64()
			if err != nil {
				return graph.Null(), err
			}
			values = append(values, graph.Float(v))
		}
	}
	if m == skip {
		return graph.Null(), nil
	}
	return graph.List(values), nil
}

// pendingEdges are the edge targets of one schema slot, held until every
// node of the graph exists.
type pendingEdges struct {
	node   *graph.Node
	schema pool.EdgeSchema
	ids    []int32
	inputs bool
}

// graphBody decodes nodes, edges and the block table. In skip mode no graph
// is built and the returned graph is nil.
func (p *Parser) graphBody(m mode, props graph.Props) (*graph.Graph, int, error) {
	var g *graph.Graph
	if m == materialize {
		g = graph.NewGraph(props)
	}

	n, err := p.count32()
	if err != nil {
		return nil, 0, err
	}

	var pending []pendingEdges
	for i := 0; i < n; i++ {
		id, err := p.int32(m)
		if err != nil {
			return nil, 0, err
		}
		// The node class drives the edge layout, so it is resolved even when
		// skipping.
		obj, err := p.poolObject(materialize)
		if err != nil {
			return nil, 0, err
		}
		nodeClass, ok := obj.(*pool.NodeClass)
		if !ok {
			return nil, 0, p.formatErr("node without a node class")
		}
		hasPredecessor, err := p.bool(m)
		if err != nil {
			return nil, 0, err
		}
		nodeProps, err := p.props(m)
		if err != nil {
			return nil, 0, err
		}

		var node *graph.Node
		if m == materialize {
			nodeProps[graph.PropID] = graph.Int(int64(id))
			nodeProps[graph.PropNodeClass] = graph.Object(nodeClass)
			nodeProps[graph.PropHasPredecessor] = graph.Bool(hasPredecessor)
			node = g.CreateNode(id, nodeProps)
		}

		if pending, err = p.edges(m, node, nodeClass.Inputs, true, pending); err != nil {
			return nil, 0, err
		}
		if pending, err = p.edges(m, node, nodeClass.Outputs, false, pending); err != nil {
			return nil, 0, err
		}
	}

	if m == materialize {
		if err := p.linkEdges(g, pending); err != nil {
			return nil, 0, err
		}
	}

	blockMode := skip
	if m == materialize && p.keepBlocks {
		blockMode = materialize
	}
	if err := p.blocks(blockMode, g); err != nil {
		return nil, 0, err
	}
	return g, n, nil
}

func (p *Parser) edges(m mode, node *graph.Node, schemas []pool.EdgeSchema, inputs bool, pending []pendingEdges) ([]pendingEdges, error) {
	for _, schema := range schemas {
		n := 1
		if !schema.Direct {
			var err error
			if n, err = p.count16(); err != nil {
				return nil, err
			}
		}
		if m == skip {
			if err := p.d.SkipInt32(int64(n)); err != nil {
				return nil, err
			}
			continue
		}

		ids := make([]int32, 0, n)
		for i := 0; i < n; i++ {
			id, err := p.d.ReadInt32()
			if err != nil {
				return nil, err
			}
			if id < -1 {
				return nil, p.formatErr("invalid BGV edge target %d", id)
			}
			if id != -1 {
				ids = append(ids, id)
			}
		}
		pending = append(pending, pendingEdges{node: node, schema: schema, ids: ids, inputs: inputs})
	}
	return pending, nil
}

func (p *Parser) linkEdges(g *graph.Graph, pending []pendingEdges) error {
	for _, pe := range pending {
		for index, id := range pe.ids {
			other, ok := g.Nodes[id]
			if !ok {
				return p.formatErr("BGV edge with unknown node %d", id)
			}
			// Each edge gets its own map; passes annotate edges independently.
			props := graph.Props{
				graph.PropName:   graph.Object(pe.schema.Name),
				graph.PropDirect: graph.Bool(pe.schema.Direct),
				graph.PropIndex:  graph.Int(int64(index)),
			}
			if pe.inputs {
				if pe.schema.Type != nil {
					props[graph.PropType] = graph.Object(pe.schema.Type)
				}
				g.CreateEdge(other, pe.node, props)
			} else {
				props[graph.PropSuccessor] = graph.Bool(true)
				g.CreateEdge(pe.node, other, props)
			}
		}
	}
	return nil
}

// blocks handles the legacy block table: per block an id, a node id list and
// a successor id list.
func (p *Parser) blocks(m mode, g *graph.Graph) error {
	n, err := p.count32()
	if err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		id, err := p.int32(m)
		if err != nil {
			return err
		}
		nodes, err := p.int32List(m)
		if err != nil {
			return err
		}
		successors, err := p.int32List(m)
		if err != nil {
			return err
		}
		if m == materialize {
			g.CreateBlock(id, nodes, successors)
		}
	}
	return nil
}

func (p *Parser) int32List(m mode) ([]int32, error) {
	n, err := p.count32()
	if err != nil {
		return nil, err
	}
	if m == skip {
		return nil, p.d.SkipInt32(int64(n))
	}
	list := make([]int32, 0, min(n, 1024))
	for i := 0; i < n; i++ {
		v, err := p.d.ReadInt32()
		if err != nil {
			return nil, err
		}
		list = append(list, v)
	}
	return list, nil
}
