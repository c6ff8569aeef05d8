// Package logic builds the static logic graph of a rule set: per-rule
// fragments over rules, conditions and fact types, unioned into one graph
// whose fact-type nodes are the integration points across rules.
package logic

import (
	"fmt"

	"rulelens/internal/graph"
	"rulelens/internal/rules"
)

// FactTypeID returns the identifier of a fact-type node. It is a pure
// function of the type name alone, so every rule referencing or producing
// the type coalesces on the same node.
func FactTypeID(typeName string) string {
	return "FT-" + typeName
}

// RuleNodeID returns the identifier of a rule node, scoped by the rule's
// content id so structurally identical rules never collide.
func RuleNodeID(ruleID string) string {
	return "R-" + ruleID
}

// BuildRuleSubgraph converts one rule into a self-contained graph fragment:
// the rule node, one node per condition in the decomposed tree, referenced
// and produced fact-type nodes, and the edges linking them.
func BuildRuleSubgraph(r *rules.Rule) (*graph.Graph, error) {
	dec := rules.Decompose(r)
	g := graph.New()

	if err := addConditionNodes(g, dec.Root); err != nil {
		return nil, fmt.Errorf("rule %q: %w", r.Name, err)
	}

	ruleNode := RuleNodeID(dec.RuleID)
	g.AddNode(graph.Node{
		ID:   ruleNode,
		Type: graph.NodeRule,
		Value: map[string]any{
			"name": r.Name,
			"meta": r.Meta,
		},
	})
	g.AddEdge(dec.Root.ID, ruleNode, graph.Edge{Type: graph.EdgeThen})

	// Best-effort syntactic scan; a malformed action degrades to an empty
	// insertion set rather than failing the build.
	for _, typeName := range rules.InsertedTypes(r.Action) {
		ft := FactTypeID(typeName)
		g.AddNode(graph.Node{ID: ft, Type: graph.NodeFact, Value: typeName})
		g.AddEdge(ruleNode, ft, graph.Edge{Type: graph.EdgeInserts})
	}

	return g, nil
}

// addConditionNodes emits nodes and edges for one decomposed condition node
// and its subtree, dispatching over the closed condition-kind set.
func addConditionNodes(g *graph.Graph, n *rules.DecomposedNode) error {
	switch cond := n.Cond.(type) {
	case *rules.FactCondition:
		g.AddNode(graph.Node{ID: n.ID, Type: graph.NodeFactCondition, Value: cond.Describe()})
		typeName := cond.Type.Symbolic()
		ft := FactTypeID(typeName)
		g.AddNode(graph.Node{ID: ft, Type: graph.NodeFact, Value: typeName})
		g.AddEdge(ft, n.ID, graph.Edge{Type: graph.EdgeUsedIn})

	case *rules.AccumulatorCondition:
		// A single node; the accumulator's inner expression is not
		// decomposed further.
		g.AddNode(graph.Node{ID: n.ID, Type: graph.NodeAccumCondition, Value: cond.Describe()})

	case *rules.And:
		g.AddNode(graph.Node{ID: n.ID, Type: graph.NodeAnd, Value: cond.Describe()})

	case *rules.Or:
		g.AddNode(graph.Node{ID: n.ID, Type: graph.NodeOr, Value: cond.Describe()})

	case *rules.Not:
		g.AddNode(graph.Node{ID: n.ID, Type: graph.NodeNot, Value: cond.Describe()})

	default:
		return &rules.UnsupportedKindError{Found: n.Cond.Kind()}
	}

	for _, child := range n.Children {
		if err := addConditionNodes(g, child); err != nil {
			return err
		}
		g.AddEdge(child.ID, n.ID, graph.Edge{Type: graph.EdgeComponentOf})
	}
	return nil
}
