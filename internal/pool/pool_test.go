package pool

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNames(t *testing.T) {
	t.Parallel()

	str := &Class{TypeName: "java.lang.String"}
	kind := &Class{TypeName: "JavaKind", IsEnum: true, Values: []Object{String("Int"), String("Long")}}
	hash := &Method{DeclaringClass: str, MethodName: String("hashCode"), Signature: &Signature{Return: String("I")}}

	tests := []struct {
		name string
		obj  Object
		want string
	}{
		{"String", String("abc"), "abc"},
		{"Class", str, "java.lang.String"},
		{"Enum", &Enum{Class: kind, Ordinal: 1, Value: kind.Values[1]}, "Long"},
		{"Method", hash, "java.lang.String.hashCode"},
		{"Field", &Field{DeclaringClass: str, FieldName: String("hash")}, "java.lang.String.hash"},
		{"Signature", &Signature{Args: []Object{String("I"), String("J")}, Return: String("V")}, "(I, J)V"},
		{"SourcePosition", &SourcePosition{Method: hash, BCI: 12}, "java.lang.String.hashCode@12"},
		{"NodeClass", &NodeClass{Class: String("org.graalvm.compiler.nodes.StartNode")}, "org.graalvm.compiler.nodes.StartNode"},
		{"NodeRef", &NodeRef{NodeID: 7, NodeClass: String("Add")}, "Add#7"},
		{"Nil", nil, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NameOf(tt.obj), tt.name)
	}
}

func TestSourcePosition_Chain(t *testing.T) {
	t.Parallel()

	outer := &SourcePosition{BCI: 1}
	inner := &SourcePosition{BCI: 2, Caller: outer}

	chain := inner.Chain()
	assert.Equal(t, []*SourcePosition{inner, outer}, chain)
	assert.Len(t, outer.Chain(), 1)
}
