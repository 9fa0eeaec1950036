// Package graph provides the in-memory model of a decoded compiler graph.
//
// Metadata on graphs, nodes and edges lives in property maps of Value. The
// package never interprets a key; passes and the scheduler agree on the
// handful of keys they share.
package graph

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/Benny93/bgv-go/internal/pool"
)

// Kind is the type tag of a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindString
	KindInt
	KindFloat
	KindBool
	KindList
	KindMap
	KindObject
	KindGraph
)

var kindNames = [...]string{"null", "string", "int", "float", "bool", "list", "map", "object", "graph"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Value is a closed tagged union of everything a property can hold.
// The zero Value is null.
type Value struct {
	kind Kind
	s    string
	i    int64
	f    float64
	b    bool
	list []Value
	m    Props
	obj  pool.Object
	g    *Graph
}

// Null returns the null value.
func Null() Value { return Value{} }

// String wraps a string.
func String(s string) Value { return Value{kind: KindString, s: s} }

// Int wraps an integer.
func Int(i int64) Value { return Value{kind: KindInt, i: i} }

// Float wraps a float.
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }

// Bool wraps a boolean.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// List wraps a list of values.
func List(vs []Value) Value { return Value{kind: KindList, list: vs} }

// Map wraps a nested property map.
func Map(m Props) Value { return Value{kind: KindMap, m: m} }

// GraphValue wraps a nested subgraph.
func GraphValue(g *Graph) Value {
	if g == nil {
		return Null()
	}
	return Value{kind: KindGraph, g: g}
}

// Object wraps a pool object. Pool strings become plain strings and a nil
// object becomes null, so callers only see one spelling of each.
func Object(o pool.Object) Value {
	switch v := o.(type) {
	case nil:
		return Null()
	case pool.String:
		return String(string(v))
	default:
		return Value{kind: KindObject, obj: o}
	}
}

// Kind returns the type tag.
func (v Value) Kind() Kind { return v.kind }

// AsString returns the string held by v.
func (v Value) AsString() (string, bool) { return v.s, v.kind == KindString }

// AsInt returns the integer held by v.
func (v Value) AsInt() (int64, bool) { return v.i, v.kind == KindInt }

// AsFloat returns the float held by v.
func (v Value) AsFloat() (float64, bool) { return v.f, v.kind == KindFloat }

// AsBool returns the boolean held by v.
func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBool }

// AsList returns the list held by v.
func (v Value) AsList() ([]Value, bool) { return v.list, v.kind == KindList }

// AsMap returns the map held by v.
func (v Value) AsMap() (Props, bool) { return v.m, v.kind == KindMap }

// AsObject returns the pool object held by v.
func (v Value) AsObject() (pool.Object, bool) { return v.obj, v.kind == KindObject }

// AsGraph returns the subgraph held by v.
func (v Value) AsGraph() (*Graph, bool) { return v.g, v.kind == KindGraph }

// Text renders v for display.
func (v Value) Text() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindString:
		return v.s
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindList:
		parts := make([]string, len(v.list))
		for i, e := range v.list {
			parts[i] = e.Text()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case KindMap:
		return v.m.Text()
	case KindObject:
		return v.obj.Name()
	case KindGraph:
		return fmt.Sprintf("<graph %d nodes>", len(v.g.order))
	}
	return ""
}

// Props is an opaque property map.
type Props map[string]Value

// Set stores v under key. Setting on a nil map is a no-op.
func (p Props) Set(key string, v Value) {
	if p == nil {
		return
	}
	p[key] = v
}

// String returns the string under key, or ok=false if missing or not a string.
func (p Props) String(key string) (string, bool) {
	v, ok := p[key]
	if !ok {
		return "", false
	}
	return v.AsString()
}

// Bool returns the boolean under key. Missing or non-bool values are false.
func (p Props) Bool(key string) bool {
	b, _ := p[key].AsBool()
	return b
}

// Int returns the integer under key.
func (p Props) Int(key string) (int64, bool) {
	v, ok := p[key]
	if !ok {
		return 0, false
	}
	return v.AsInt()
}

// Keys returns the keys of p in sorted order.
func (p Props) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Text renders p as {k: v, ...} with sorted keys.
func (p Props) Text() string {
	keys := p.Keys()
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + p[k].Text()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
