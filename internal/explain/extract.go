package explain

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"rulelens/internal/graph"
	"rulelens/internal/rules"
)

// Explain builds the explanation graph for the requested fact identifiers
// against one snapshot. Fragments for all requested identifiers are unioned
// into the returned graph. A requested fact with no provenance trace yields
// a single-node, edge-less fragment; an identifier not held at read time is
// skipped (resolution failures are a caller concern upstream of the core).
func Explain(s *Snapshot, ids []string, logger *zap.Logger) (*graph.Graph, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	idx := BuildIndex(s)

	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)

	out := graph.New()
	for _, id := range sorted {
		f, ok := idx.ByID[id]
		if !ok {
			logger.Warn("requested fact not held at snapshot time", zap.String("id", id))
			continue
		}
		frag, err := traceFragment(id, f)
		if err != nil {
			return nil, fmt.Errorf("explain %s: %w", id, err)
		}
		if err := out.Merge(frag); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// traceFragment turns one fact's provenance trace into a graph fragment:
// consecutive trace conditions chained with "and" edges, the last condition
// linked to the fact with an "asserts" edge, and each matched item linked to
// its condition ("matches" for literal facts, "accumulated" for aggregates).
func traceFragment(id string, f *Fact) (*graph.Graph, error) {
	g := graph.New()
	g.AddNode(factNode(id, f))
	if len(f.Trace) == 0 {
		// No known provenance; not an error.
		return g, nil
	}

	condIDs := make([]string, len(f.Trace))
	for i, sup := range f.Trace {
		condID, node, err := conditionNode(sup.Condition)
		if err != nil {
			return nil, err
		}
		condIDs[i] = condID
		g.AddNode(node)

		itemID, itemNode := matchedItemNode(sup)
		g.AddNode(itemNode)
		edgeType := graph.EdgeMatches
		if sup.Aggregate() {
			edgeType = graph.EdgeAccumulated
		}
		g.AddEdge(itemID, condID, graph.Edge{Type: edgeType})
	}

	for i := 0; i+1 < len(condIDs); i++ {
		g.AddEdge(condIDs[i], condIDs[i+1], graph.Edge{Type: graph.EdgeAnd})
	}
	g.AddEdge(condIDs[len(condIDs)-1], id, graph.Edge{Type: graph.EdgeAsserts})
	return g, nil
}

// factNode renders a held fact as a node. Facts derived by rules carry the
// rule-fact type; externally asserted facts are plain facts. The value is a
// serializable description, never a runtime handle.
func factNode(id string, f *Fact) graph.Node {
	nodeType := graph.NodeFact
	if f.Trace != nil {
		nodeType = graph.NodeRuleFact
	}
	return graph.Node{
		ID:   id,
		Type: nodeType,
		Value: map[string]any{
			"type":  f.Type.Symbolic(),
			"value": f.Value,
		},
	}
}

// matchedItemNode renders one matched item. Literal facts reuse their
// session identifier; aggregates have no stable session identity and get a
// hash-derived one.
func matchedItemNode(sup Support) (string, graph.Node) {
	if !sup.Aggregate() {
		id := FactID(sup.Fact)
		return id, factNode(id, sup.Fact)
	}
	id := "V-" + rules.HashValue(sup.Value)
	return id, graph.Node{ID: id, Type: graph.NodeFact, Value: sup.Value}
}

// conditionNode renders a trace condition, dispatching over the closed kind
// set. The declared fact type is already rewritten to a plain symbolic name
// by Describe; no runtime handle survives into the node value.
func conditionNode(c rules.Condition) (string, graph.Node, error) {
	if c == nil {
		return "", graph.Node{}, fmt.Errorf("trace entry without condition")
	}

	var nodeType graph.NodeType
	switch c.Kind() {
	case rules.KindFact:
		nodeType = graph.NodeFactCondition
	case rules.KindAccumulator:
		nodeType = graph.NodeAccumCondition
	case rules.KindAnd:
		nodeType = graph.NodeAnd
	case rules.KindOr:
		nodeType = graph.NodeOr
	case rules.KindNot:
		nodeType = graph.NodeNot
	default:
		return "", graph.Node{}, &rules.UnsupportedKindError{Found: c.Kind()}
	}

	id := "C-" + rules.ConditionContentID(c)
	return id, graph.Node{ID: id, Type: nodeType, Value: c.Describe()}, nil
}
