// Package bgvtest builds BGV byte streams for tests.
//
// A Builder appends big-endian primitives and higher-level BGV constructs to a
// byte slice. Strings, classes and node classes are pooled on first use and
// referenced afterwards, the way real producers emit them.
package bgvtest

import (
	"bytes"
	"encoding/binary"
	"math"
)

// Builder accumulates a BGV stream.
type Builder struct {
	buf []byte

	next        uint16
	strings     map[string]uint16
	classes     map[string]uint16
	nodeClasses map[*NodeClass]uint16
}

// New returns an empty builder.
func New() *Builder {
	return &Builder{
		strings:     make(map[string]uint16),
		classes:     make(map[string]uint16),
		nodeClasses: make(map[*NodeClass]uint16),
	}
}

// Bytes returns the stream built so far.
func (b *Builder) Bytes() []byte { return b.buf }

// Reader returns a reader over the stream built so far.
func (b *Builder) Reader() *bytes.Reader { return bytes.NewReader(b.buf) }

// Len returns the number of bytes built so far.
func (b *Builder) Len() int { return len(b.buf) }

// Raw appends bytes verbatim.
func (b *Builder) Raw(p ...byte) *Builder {
	b.buf = append(b.buf, p...)
	return b
}

func (b *Builder) I8(v int8) *Builder { return b.Raw(byte(v)) }

func (b *Builder) Bool(v bool) *Builder {
	if v {
		return b.Raw(1)
	}
	return b.Raw(0)
}

func (b *Builder) I16(v int16) *Builder {
	b.buf = binary.BigEndian.AppendUint16(b.buf, uint16(v))
	return b
}

func (b *Builder) U16(v uint16) *Builder {
	b.buf = binary.BigEndian.AppendUint16(b.buf, v)
	return b
}

func (b *Builder) I32(v int32) *Builder {
	b.buf = binary.BigEndian.AppendUint32(b.buf, uint32(v))
	return b
}

func (b *Builder) I64(v int64) *Builder {
	b.buf = binary.BigEndian.AppendUint64(b.buf, uint64(v))
	return b
}

func (b *Builder) F32(v float32) *Builder {
	b.buf = binary.BigEndian.AppendUint32(b.buf, math.Float32bits(v))
	return b
}

func (b *Builder) F64(v float64) *Builder {
	b.buf = binary.BigEndian.AppendUint64(b.buf, math.Float64bits(v))
	return b
}

// Str appends a length-prefixed string.
func (b *Builder) Str(s string) *Builder {
	b.I32(int32(len(s)))
	return b.Raw([]byte(s)...)
}

// AbsentStr appends the -1 length marking a missing string.
func (b *Builder) AbsentStr() *Builder { return b.I32(-1) }

func (b *Builder) newID() uint16 {
	id := b.next
	b.next++
	return id
}

// Pool writes one pool object (tag and payload).
type Pool func(*Builder)

// Value writes one property value (tag and payload).
type Value func(*Builder)

// Prop is a property key and its value.
type Prop struct {
	Key   string
	Value Value
}

// P is shorthand for a Prop.
func P(key string, v Value) Prop { return Prop{Key: key, Value: v} }

// Null is the null pool object.
func Null() Pool {
	return func(b *Builder) { b.Raw(0x05) }
}

// Ref references an existing pool id under tag.
func Ref(tag byte, id uint16) Pool {
	return func(b *Builder) { b.Raw(tag).U16(id) }
}

// PoolString pools s on first use and references it afterwards.
func PoolString(s string) Pool {
	return func(b *Builder) {
		if id, ok := b.strings[s]; ok {
			b.Raw(0x01).U16(id)
			return
		}
		id := b.newID()
		b.strings[s] = id
		b.Raw(0x00).U16(id).Raw(0x01).Str(s)
	}
}

// PoolClass pools a plain class on first use.
func PoolClass(name string) Pool {
	return func(b *Builder) {
		if id, ok := b.classes[name]; ok {
			b.Raw(0x03).U16(id)
			return
		}
		id := b.newID()
		b.classes[name] = id
		b.Raw(0x00).U16(id).Raw(0x03).Str(name).Raw(0x00)
	}
}

// PoolEnumClass writes a new enum class entry with the given value names.
func PoolEnumClass(name string, values ...string) Pool {
	return func(b *Builder) {
		b.Raw(0x00).U16(b.newID()).Raw(0x03).Str(name).Raw(0x01).I32(int32(len(values)))
		for _, v := range values {
			PoolString(v)(b)
		}
	}
}

// PoolEnum writes a new enum entry with an inline enum class.
func PoolEnum(class string, values []string, ordinal int32) Pool {
	return func(b *Builder) {
		b.Raw(0x00).U16(b.newID()).Raw(0x02)
		PoolEnumClass(class, values...)(b)
		b.I32(ordinal)
	}
}

// PoolSignature writes a new signature entry.
func PoolSignature(ret string, args ...string) Pool {
	return func(b *Builder) {
		b.Raw(0x00).U16(b.newID()).Raw(0x08).I16(int16(len(args)))
		for _, a := range args {
			PoolString(a)(b)
		}
		PoolString(ret)(b)
	}
}

// PoolMethod writes a new method entry. A nil code writes the absent marker.
func PoolMethod(class, name string, code []byte) Pool {
	return func(b *Builder) {
		b.Raw(0x00).U16(b.newID()).Raw(0x04)
		PoolClass(class)(b)
		PoolString(name)(b)
		PoolSignature("V")(b)
		b.I32(9)
		if code == nil {
			b.I32(-1)
			return
		}
		b.I32(int32(len(code))).Raw(code...)
	}
}

// PoolField writes a new field entry.
func PoolField(class, name, typ string) Pool {
	return func(b *Builder) {
		b.Raw(0x00).U16(b.newID()).Raw(0x07)
		PoolClass(class)(b)
		PoolString(name)(b)
		PoolString(typ)(b)
		b.I32(2)
	}
}

// PoolSourcePosition writes a new source position entry. An empty file
// writes no location; a nil caller writes the null object.
func PoolSourcePosition(method Pool, bci int32, file string, line int32, caller Pool) Pool {
	return func(b *Builder) {
		b.Raw(0x00).U16(b.newID()).Raw(0x09)
		method(b)
		b.I32(bci)
		if file != "" {
			PoolString("file://" + file)(b)
			b.Str(file).I32(line).I32(0).I32(0)
		}
		Null()(b)
		if caller == nil {
			caller = Null()
		}
		caller(b)
	}
}

// PoolNodeRef writes a new node reference entry.
func PoolNodeRef(id int32, class *NodeClass) Pool {
	return func(b *Builder) {
		b.Raw(0x00).U16(b.newID()).Raw(0x0a).I32(id)
		class.pool(b)
	}
}

// Slot is one input or successor slot of a node class.
type Slot struct {
	Name     string
	Type     string
	Indirect bool
}

// NodeClass describes a node class. It is pooled per pointer.
type NodeClass struct {
	Name     string
	Template string
	Inputs   []Slot
	Outputs  []Slot
}

func (c *NodeClass) pool(b *Builder) {
	if id, ok := b.nodeClasses[c]; ok {
		b.Raw(0x06).U16(id)
		return
	}
	id := b.newID()
	b.nodeClasses[c] = id
	b.Raw(0x00).U16(id).Raw(0x06)
	PoolClass(c.Name)(b)
	b.Str(c.Template)
	writeSlots(b, c.Inputs, true)
	writeSlots(b, c.Outputs, false)
}

func writeSlots(b *Builder, slots []Slot, inputs bool) {
	b.I16(int16(len(slots)))
	for _, s := range slots {
		b.Bool(s.Indirect)
		PoolString(s.Name)(b)
		if inputs {
			if s.Type == "" {
				Null()(b)
			} else {
				PoolString(s.Type)(b)
			}
		}
	}
}

// Pooled is a pool-object property value.
func Pooled(p Pool) Value {
	return func(b *Builder) {
		b.Raw(0x00)
		p(b)
	}
}

// Str is a pooled string property value.
func Str(s string) Value { return Pooled(PoolString(s)) }

func Int(v int32) Value { return func(b *Builder) { b.Raw(0x01).I32(v) } }
func Long(v int64) Value { return func(b *Builder) { b.Raw(0x02).I64(v) } }
func Double(v float64) Value { return func(b *Builder) { b.Raw(0x03).F64(v) } }
func Float(v float32) Value { return func(b *Builder) { b.Raw(0x04).F32(v) } }

func Bool(v bool) Value {
	return func(b *Builder) {
		if v {
			b.Raw(0x05)
		} else {
			b.Raw(0x06)
		}
	}
}

// Ints is an int array property value.
func Ints(vs ...int32) Value {
	return func(b *Builder) {
		b.Raw(0x07, 0x01).I32(int32(len(vs)))
		for _, v := range vs {
			b.I32(v)
		}
	}
}

// Doubles is a double array property value.
func Doubles(vs ...float64) Value {
	return func(b *Builder) {
		b.Raw(0x07, 0x03).I32(int32(len(vs)))
		for _, v := range vs {
			b.F64(v)
		}
	}
}

// Strings is a pool-object array property value of pooled strings.
func Strings(vs ...string) Value {
	return func(b *Builder) {
		b.Raw(0x07, 0x00).I32(int32(len(vs)))
		for _, v := range vs {
			PoolString(v)(b)
		}
	}
}

// Subgraph is an inline graph property value.
func Subgraph(props []Prop, nodes []Node, blocks []Block) Value {
	return func(b *Builder) {
		b.Raw(0x08)
		b.Props(props...)
		b.Body(nodes, blocks)
	}
}

// Node is one node of a graph body. Inputs and Outputs hold the target ids
// for each slot of the class, in slot order. A direct slot takes exactly one
// id; -1 marks it empty.
type Node struct {
	ID             int32
	Class          *NodeClass
	HasPredecessor bool
	Props          []Prop
	Inputs         [][]int32
	Outputs        [][]int32
}

// Block is one entry of the legacy block table.
type Block struct {
	ID         int32
	Nodes      []int32
	Successors []int32
}

// Header writes the magic and version.
func (b *Builder) Header(major, minor int8) *Builder {
	return b.Raw('B', 'I', 'G', 'V').I8(major).I8(minor)
}

// Document writes a document property block.
func (b *Builder) Document(props ...Prop) *Builder {
	b.Raw(0x03)
	return b.Props(props...)
}

// Props writes a property map.
func (b *Builder) Props(props ...Prop) *Builder {
	b.I16(int16(len(props)))
	for _, p := range props {
		PoolString(p.Key)(b)
		p.Value(b)
	}
	return b
}

// BeginGroup opens a group with a method-less frame.
func (b *Builder) BeginGroup(name, shortName string, bci int32, props ...Prop) *Builder {
	b.Raw(0x00)
	PoolString(name)(b)
	PoolString(shortName)(b)
	Null()(b)
	b.I32(bci)
	return b.Props(props...)
}

// CloseGroup closes the innermost group.
func (b *Builder) CloseGroup() *Builder { return b.Raw(0x02) }

// GraphHeader writes the begin-graph token, id, format, args and props.
func (b *Builder) GraphHeader(id int32, format string, args []Value, props ...Prop) *Builder {
	b.Raw(0x01).I32(id).Str(format).I32(int32(len(args)))
	for _, a := range args {
		a(b)
	}
	return b.Props(props...)
}

// Body writes the nodes and block table of a graph.
func (b *Builder) Body(nodes []Node, blocks []Block) *Builder {
	b.I32(int32(len(nodes)))
	for _, n := range nodes {
		b.I32(n.ID)
		n.Class.pool(b)
		b.Bool(n.HasPredecessor)
		b.Props(n.Props...)
		writeEdges(b, n.Class.Inputs, n.Inputs)
		writeEdges(b, n.Class.Outputs, n.Outputs)
	}
	b.I32(int32(len(blocks)))
	for _, blk := range blocks {
		b.I32(blk.ID).I32(int32(len(blk.Nodes)))
		for _, id := range blk.Nodes {
			b.I32(id)
		}
		b.I32(int32(len(blk.Successors)))
		for _, id := range blk.Successors {
			b.I32(id)
		}
	}
	return b
}

func writeEdges(b *Builder, slots []Slot, ids [][]int32) {
	for i, s := range slots {
		var targets []int32
		if i < len(ids) {
			targets = ids[i]
		}
		if !s.Indirect {
			if len(targets) == 0 {
				b.I32(-1)
			} else {
				b.I32(targets[0])
			}
			continue
		}
		b.I16(int16(len(targets)))
		for _, id := range targets {
			b.I32(id)
		}
	}
}

// Graph writes a complete graph: header and body.
func (b *Builder) Graph(id int32, format string, args []Value, props []Prop, nodes []Node) *Builder {
	b.GraphHeader(id, format, args, props...)
	return b.Body(nodes, nil)
}
