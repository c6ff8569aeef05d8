// Package rules defines the declarative rule model consumed by the graph
// builders: a rule descriptor with a left-hand-side condition list classified
// into a closed set of kinds, an optional action-expression tree describing
// the right-hand side, and content-derived identifiers for every piece.
package rules

import (
	"fmt"
	"reflect"
	"strings"
)

// Kind tags a condition. The set is closed: builders dispatch exhaustively
// over these five kinds and treat anything else as fatal.
type Kind string

const (
	KindFact        Kind = "fact"
	KindAccumulator Kind = "accumulator"
	KindAnd         Kind = "and"
	KindOr          Kind = "or"
	KindNot         Kind = "not"
)

// TypeRef names a fact type. Runtime optionally carries the live reflect.Type
// a condition was declared against; it never crosses a serialization boundary.
// Symbolic is the one rewrite point from handle to plain name.
type TypeRef struct {
	Name    string       `json:"name"`
	Runtime reflect.Type `json:"-"`
}

// Symbolic returns the plain type name, deriving it from the runtime handle
// when no name was declared.
func (t TypeRef) Symbolic() string {
	if t.Name != "" {
		return t.Name
	}
	if t.Runtime != nil {
		return strings.TrimPrefix(t.Runtime.String(), "*")
	}
	return ""
}

// Condition is one node of a rule's left-hand side. FactCondition and
// AccumulatorCondition are leaves; And, Or and Not combine children.
type Condition interface {
	Kind() Kind
	// Describe renders a serializable, handle-free description of the
	// condition for use as a graph node value.
	Describe() string
}

// FactCondition matches facts of one type, optionally constrained.
type FactCondition struct {
	Type        TypeRef
	Constraints []string // opaque textual constraints, display only
	Bind        string   // binding name for the matched fact, "" for none
	ArgBinds    []string // per-slot variable names for positional values
	Where       func(any) bool `json:"-"` // optional guard, ignored by hashing
}

func (c *FactCondition) Kind() Kind { return KindFact }

func (c *FactCondition) Describe() string {
	if len(c.Constraints) == 0 {
		return c.Type.Symbolic()
	}
	return fmt.Sprintf("%s(%s)", c.Type.Symbolic(), strings.Join(c.Constraints, ", "))
}

// AccumulatorCondition aggregates over facts of one type. Its inner
// expression is carried opaquely and never decomposed into further graph
// nodes; only Op/Over/Field participate in execution.
type AccumulatorCondition struct {
	Op    string  // count, sum, min, max; "" when only descriptive
	Over  TypeRef // fact type aggregated over
	Field int     // value slot for sum/min/max
	Bind  string  // binding name for the aggregate result
	Expr  string  // opaque descriptor when the source syntax is richer
}

func (c *AccumulatorCondition) Kind() Kind { return KindAccumulator }

func (c *AccumulatorCondition) Describe() string {
	if c.Expr != "" {
		return c.Expr
	}
	return fmt.Sprintf("%s of %s", c.Op, c.Over.Symbolic())
}

// And is a conjunction of child conditions.
type And struct {
	Conds []Condition
}

func (c *And) Kind() Kind       { return KindAnd }
func (c *And) Describe() string { return string(KindAnd) }

// Or is a disjunction of child conditions.
type Or struct {
	Conds []Condition
}

func (c *Or) Kind() Kind       { return KindOr }
func (c *Or) Describe() string { return string(KindOr) }

// Not negates a single child condition.
type Not struct {
	Cond Condition
}

func (c *Not) Kind() Kind       { return KindNot }
func (c *Not) Describe() string { return string(KindNot) }

// Children returns the child conditions of a combinator, nil for leaves.
func Children(c Condition) []Condition {
	switch v := c.(type) {
	case *And:
		return v.Conds
	case *Or:
		return v.Conds
	case *Not:
		if v.Cond == nil {
			return nil
		}
		return []Condition{v.Cond}
	default:
		return nil
	}
}

// Rule is one forward-chaining rule definition.
type Rule struct {
	Name   string
	LHS    []Condition       // left-hand-side condition list
	Action *ActionExpr       // optional right-hand side description
	Meta   map[string]string // attached metadata, carried on the rule node
}

// UnsupportedKindError reports a condition outside the closed kind set.
// The per-kind builder set is meant to be exhaustive, so encountering one
// fails the whole graph-building call.
type UnsupportedKindError struct {
	Found Kind
}

func (e *UnsupportedKindError) Error() string {
	return fmt.Sprintf("unsupported condition kind %q", e.Found)
}
