// Package pool defines the shared objects a BGV stream stores in its
// constant pool.
//
// A pool lives for one file parse. The stream assigns every entry an id and
// later references it by that id; this package only models the decoded
// objects, the id table itself is owned by the parser.
package pool

import (
	"fmt"
	"strings"
)

// Object is any decoded pool entry.
type Object interface {
	// Name returns a short human-readable rendering of the object.
	Name() string
}

// String is a pooled UTF-8 string.
type String string

// Name returns the string itself.
func (s String) Name() string { return string(s) }

// Class is a Java type. Enum classes carry every value, indexed by ordinal.
type Class struct {
	TypeName string
	Values   []Object
	IsEnum   bool
}

// Name returns the type name.
func (c *Class) Name() string { return c.TypeName }

// Enum is one value of an enum class, resolved against the class's values.
type Enum struct {
	Class   *Class
	Ordinal int32
	Value   Object
}

// Name returns the name of the resolved value.
func (e *Enum) Name() string { return NameOf(e.Value) }

// Method is a Java method.
type Method struct {
	DeclaringClass Object
	MethodName     Object
	Signature      Object
	Modifiers      int32

	// Code is the optional trailing byte blob. It is kept as-is and never
	// interpreted; nil means the stream declared it absent.
	Code []byte
}

// Name renders Class.method.
func (m *Method) Name() string {
	return NameOf(m.DeclaringClass) + "." + NameOf(m.MethodName)
}

// EdgeSchema describes one input or successor slot of a node class.
type EdgeSchema struct {
	// Direct slots hold exactly one node; indirect slots hold a list.
	Direct bool
	Name   Object
	// Type is only present for input slots.
	Type Object
}

// NodeClass is a Graal node class with its edge layout.
type NodeClass struct {
	Class        Object
	NameTemplate string
	Inputs       []EdgeSchema
	Outputs      []EdgeSchema
}

// Name returns the Java class name of the node class.
func (n *NodeClass) Name() string { return NameOf(n.Class) }

// Field is a Java field.
type Field struct {
	DeclaringClass Object
	FieldName      Object
	TypeName       Object
	Modifiers      int32
}

// Name renders Class.field.
func (f *Field) Name() string {
	return NameOf(f.DeclaringClass) + "." + NameOf(f.FieldName)
}

// Signature is a method signature.
type Signature struct {
	Args   []Object
	Return Object
}

// Name renders (args)ret.
func (s *Signature) Name() string {
	args := make([]string, len(s.Args))
	for i, a := range s.Args {
		args[i] = NameOf(a)
	}
	return "(" + strings.Join(args, ", ") + ")" + NameOf(s.Return)
}

// Location is one language-level position attached to a source position.
type Location struct {
	URI   Object
	File  string
	Line  int32
	Start int32
	End   int32
}

// SourcePosition is a bytecode position, optionally inlined into a caller.
type SourcePosition struct {
	Method    Object
	BCI       int32
	Locations []Location
	Caller    *SourcePosition
}

// Name renders method@bci.
func (s *SourcePosition) Name() string {
	return fmt.Sprintf("%s@%d", NameOf(s.Method), s.BCI)
}

// Chain returns this position followed by each caller, innermost first.
func (s *SourcePosition) Chain() []*SourcePosition {
	var chain []*SourcePosition
	for p := s; p != nil; p = p.Caller {
		chain = append(chain, p)
	}
	return chain
}

// NodeRef is a bare reference to a node in some graph.
type NodeRef struct {
	NodeID    int32
	NodeClass Object
}

// Name renders the node id.
func (n *NodeRef) Name() string {
	return fmt.Sprintf("%s#%d", NameOf(n.NodeClass), n.NodeID)
}

// NameOf renders o, treating nil as the empty string.
func NameOf(o Object) string {
	if o == nil {
		return ""
	}
	return o.Name()
}
