package rules

import (
	"reflect"
	"testing"
)

func TestHashValue_Deterministic(t *testing.T) {
	v := []any{"o1", int64(42)}
	if HashValue(v) != HashValue([]any{"o1", int64(42)}) {
		t.Error("equal values must hash equally")
	}
	if HashValue(v) == HashValue([]any{"o1", int64(43)}) {
		t.Error("different values should not collide on a short input")
	}
	if len(HashValue(v)) != idLen {
		t.Errorf("hash length = %d, want %d", len(HashValue(v)), idLen)
	}
}

func TestHashValue_MapKeyOrderIrrelevant(t *testing.T) {
	a := map[string]any{"x": 1, "y": 2, "z": 3}
	b := map[string]any{"z": 3, "y": 2, "x": 1}
	if HashValue(a) != HashValue(b) {
		t.Error("canonical serialization must be key-order independent")
	}
}

func TestConditionContentID_IgnoresRuntimeHandle(t *testing.T) {
	type order struct{ ID string }

	named := &FactCondition{Type: TypeRef{Name: "rules.order"}}
	handled := &FactCondition{Type: TypeRef{
		Name:    "rules.order",
		Runtime: reflect.TypeOf(order{}),
	}}

	if ConditionContentID(named) != ConditionContentID(handled) {
		t.Error("a runtime handle must not leak into the content id")
	}
}

func TestTypeRef_Symbolic(t *testing.T) {
	type order struct{ ID string }

	tests := []struct {
		name string
		ref  TypeRef
		want string
	}{
		{"declared name wins", TypeRef{Name: "Order", Runtime: reflect.TypeOf(order{})}, "Order"},
		{"runtime handle rewritten", TypeRef{Runtime: reflect.TypeOf(order{})}, "rules.order"},
		{"pointer handle rewritten", TypeRef{Runtime: reflect.TypeOf(&order{})}, "rules.order"},
		{"empty", TypeRef{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.ref.Symbolic(); got != tt.want {
				t.Errorf("Symbolic() = %q, want %q", got, tt.want)
			}
		})
	}
}
