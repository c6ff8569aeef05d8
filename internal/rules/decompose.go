package rules

import "fmt"

// DecomposedNode is one condition slot in a rule's normalized tree.
type DecomposedNode struct {
	ID       string
	Cond     Condition
	Children []*DecomposedNode
}

// Decomposed is a rule's left-hand side normalized into a single rooted tree
// with stable, rule-scoped identifiers assigned in pre-order.
type Decomposed struct {
	RuleID  string
	Root    *DecomposedNode
	Ordered []*DecomposedNode // pre-order sequence, Root first
}

// Decompose normalizes a rule's condition list into one rooted tree. A
// single-condition list is its own root; otherwise an implicit conjunction
// wraps the listed conditions. Every node receives the identifier
// "<i>-<rule-content-id>" where i is its pre-order position, so repeated
// value-identical sub-expressions at different positions stay distinct while
// re-running on the same rule reproduces identical identifiers.
func Decompose(r *Rule) *Decomposed {
	ruleID := ContentID(r)

	var root Condition
	if len(r.LHS) == 1 {
		root = r.LHS[0]
	} else {
		root = &And{Conds: r.LHS}
	}

	d := &Decomposed{RuleID: ruleID}
	d.Root = d.expand(root)
	return d
}

// expand walks combinator children depth-first, assigning identifiers in
// visit order. Fact and accumulator conditions are leaves.
func (d *Decomposed) expand(c Condition) *DecomposedNode {
	n := &DecomposedNode{
		ID:   fmt.Sprintf("%d-%s", len(d.Ordered), d.RuleID),
		Cond: c,
	}
	d.Ordered = append(d.Ordered, n)
	for _, child := range Children(c) {
		n.Children = append(n.Children, d.expand(child))
	}
	return n
}
