package explain

import (
	"reflect"
	"testing"

	"go.uber.org/zap/zaptest"

	"rulelens/internal/graph"
	"rulelens/internal/rules"
)

type temperature struct {
	Location string
	Degrees  int
}

func TestExplain_DerivedFact(t *testing.T) {
	condA := &rules.FactCondition{Type: rules.TypeRef{Name: "Reading"}, Bind: "r"}
	condB := &rules.FactCondition{Type: rules.TypeRef{Name: "Threshold"}, Bind: "t"}

	readingFact := &Fact{Type: rules.TypeRef{Name: "Reading"}, Value: []any{"kitchen", int64(30)}}
	thresholdFact := &Fact{Type: rules.TypeRef{Name: "Threshold"}, Value: []any{int64(25)}}
	alert := &Fact{
		Type:  rules.TypeRef{Name: "Alert"},
		Value: []any{"kitchen"},
		Trace: Trace{
			{Fact: readingFact, Condition: condA},
			{Fact: thresholdFact, Condition: condB},
		},
	}
	s := &Snapshot{Facts: []*Fact{readingFact, thresholdFact, alert}}

	g, err := Explain(s, []string{FactID(alert)}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("explain: %v", err)
	}

	// Two supporting facts, two conditions, the explained fact.
	nodes, edges := g.Len()
	if nodes != 5 {
		t.Errorf("node count = %d, want 5, ids %v", nodes, g.NodeIDs())
	}
	// Two matches edges, the condition chain, the final assertion.
	if edges != 4 {
		t.Errorf("edge count = %d, want 4", edges)
	}

	target, ok := g.Nodes[FactID(alert)]
	if !ok {
		t.Fatal("explained fact missing from graph")
	}
	if target.Type != graph.NodeRuleFact {
		t.Errorf("explained fact type = %q, want %q", target.Type, graph.NodeRuleFact)
	}
	for _, sup := range []*Fact{readingFact, thresholdFact} {
		if n := g.Nodes[FactID(sup)]; n.Type != graph.NodeFact {
			t.Errorf("supporting fact %s type = %q, want %q", FactID(sup), n.Type, graph.NodeFact)
		}
	}

	ca := "C-" + rules.ConditionContentID(condA)
	cb := "C-" + rules.ConditionContentID(condB)
	want := map[graph.EdgeKey]graph.EdgeType{
		{From: FactID(readingFact), To: ca}:   graph.EdgeMatches,
		{From: FactID(thresholdFact), To: cb}: graph.EdgeMatches,
		{From: ca, To: cb}:                    graph.EdgeAnd,
		{From: cb, To: FactID(alert)}:         graph.EdgeAsserts,
	}
	for k, wt := range want {
		e, ok := g.Edges[k]
		if !ok {
			t.Errorf("missing edge %s -> %s", k.From, k.To)
			continue
		}
		if e.Type != wt {
			t.Errorf("edge %s -> %s type = %q, want %q", k.From, k.To, e.Type, wt)
		}
	}
}

func TestExplain_TracelessFact(t *testing.T) {
	f := &Fact{Type: rules.TypeRef{Name: "Config"}, Value: []any{"max", int64(10)}}
	s := &Snapshot{Facts: []*Fact{f}}

	g, err := Explain(s, []string{FactID(f)}, nil)
	if err != nil {
		t.Fatalf("explain: %v", err)
	}
	nodes, edges := g.Len()
	if nodes != 1 || edges != 0 {
		t.Errorf("traceless fact graph = (%d nodes, %d edges), want (1, 0)", nodes, edges)
	}
	if n := g.Nodes[FactID(f)]; n.Type != graph.NodeFact {
		t.Errorf("node type = %q, want plain fact", n.Type)
	}
}

func TestExplain_UnknownIDSkipped(t *testing.T) {
	f := &Fact{Type: rules.TypeRef{Name: "Order"}, Value: []any{"o1"}}
	s := &Snapshot{Facts: []*Fact{f}}

	g, err := Explain(s, []string{"Order-ffffffffffff", FactID(f)}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("explain: %v", err)
	}
	if nodes, _ := g.Len(); nodes != 1 {
		t.Errorf("node count = %d, want only the held fact", nodes)
	}
}

func TestExplain_AggregateSupport(t *testing.T) {
	acc := &rules.AccumulatorCondition{Op: "count", Over: rules.TypeRef{Name: "Order"}, Bind: "n"}
	report := &Fact{
		Type:  rules.TypeRef{Name: "Report"},
		Value: []any{int64(3)},
		Trace: Trace{{Value: int64(3), Condition: acc}},
	}
	s := &Snapshot{Facts: []*Fact{report}}

	g, err := Explain(s, []string{FactID(report)}, nil)
	if err != nil {
		t.Fatalf("explain: %v", err)
	}

	aggID := "V-" + rules.HashValue(int64(3))
	n, ok := g.Nodes[aggID]
	if !ok {
		t.Fatalf("missing aggregate value node %s, have %v", aggID, g.NodeIDs())
	}
	if n.Type != graph.NodeFact {
		t.Errorf("aggregate node type = %q", n.Type)
	}
	e, ok := g.Edges[graph.EdgeKey{From: aggID, To: "C-" + rules.ConditionContentID(acc)}]
	if !ok || e.Type != graph.EdgeAccumulated {
		t.Errorf("accumulated edge = %+v, ok=%v", e, ok)
	}
	condNode := g.Nodes["C-"+rules.ConditionContentID(acc)]
	if condNode.Type != graph.NodeAccumCondition {
		t.Errorf("condition node type = %q", condNode.Type)
	}
}

// Conditions declared against live runtime types must not leak handles into
// the graph; only the symbolic type name survives.
func TestExplain_RuntimeHandleRewritten(t *testing.T) {
	cond := &rules.FactCondition{Type: rules.TypeRef{Runtime: reflect.TypeOf(temperature{})}}
	reading := &Fact{
		Type:  rules.TypeRef{Runtime: reflect.TypeOf(temperature{})},
		Value: temperature{Location: "kitchen", Degrees: 30},
	}
	hot := &Fact{
		Type:  rules.TypeRef{Name: "Hot"},
		Value: []any{"kitchen"},
		Trace: Trace{{Fact: reading, Condition: cond}},
	}
	s := &Snapshot{Facts: []*Fact{reading, hot}}

	g, err := Explain(s, []string{FactID(hot)}, nil)
	if err != nil {
		t.Fatalf("explain: %v", err)
	}

	readingNode, ok := g.Nodes[FactID(reading)]
	if !ok {
		t.Fatalf("missing node %s", FactID(reading))
	}
	v, ok := readingNode.Value.(map[string]any)
	if !ok {
		t.Fatalf("fact node value = %T", readingNode.Value)
	}
	if v["type"] != "explain.temperature" {
		t.Errorf("type rendering = %v, want symbolic name", v["type"])
	}
	for _, n := range g.Nodes {
		if _, bad := n.Value.(reflect.Type); bad {
			t.Errorf("node %s carries a runtime type handle", n.ID)
		}
	}
}

func TestExplain_SameSupportSharedAcrossTargets(t *testing.T) {
	cond := &rules.FactCondition{Type: rules.TypeRef{Name: "Order"}}
	order := &Fact{Type: rules.TypeRef{Name: "Order"}, Value: []any{"o1"}}
	a := &Fact{Type: rules.TypeRef{Name: "A"}, Value: []any{"o1"},
		Trace: Trace{{Fact: order, Condition: cond}}}
	b := &Fact{Type: rules.TypeRef{Name: "B"}, Value: []any{"o1"},
		Trace: Trace{{Fact: order, Condition: cond}}}
	s := &Snapshot{Facts: []*Fact{order, a, b}}

	g, err := Explain(s, []string{FactID(a), FactID(b)}, nil)
	if err != nil {
		t.Fatalf("explain: %v", err)
	}

	// Both fragments reference the same order fact and the same condition;
	// the union coalesces them instead of duplicating.
	nodes, edges := g.Len()
	if nodes != 4 {
		t.Errorf("node count = %d, want 4 (order + condition + two targets)", nodes)
	}
	if edges != 3 {
		t.Errorf("edge count = %d, want 3 (one matches + two asserts)", edges)
	}
}

func TestBuildIndex(t *testing.T) {
	a := &Fact{Type: rules.TypeRef{Name: "Order"}, Value: []any{"o1"}}
	b := &Fact{Type: rules.TypeRef{Name: "Order"}, Value: []any{"o2"}}
	c := &Fact{Type: rules.TypeRef{Name: "Alert"}, Value: []any{"o1"},
		Trace: Trace{{Fact: a, Condition: &rules.FactCondition{Type: rules.TypeRef{Name: "Order"}}}}}

	idx := BuildIndex(&Snapshot{Facts: []*Fact{a, b, c}})

	if got := idx.TypeNames(); !reflect.DeepEqual(got, []string{"Alert", "Order"}) {
		t.Errorf("TypeNames = %v", got)
	}
	if len(idx.ByType["Order"]) != 2 {
		t.Errorf("ByType[Order] = %d facts", len(idx.ByType["Order"]))
	}
	if idx.ByID[FactID(a)] != a {
		t.Error("ByID lookup broken")
	}
	if idx.IDs[c] != FactID(c) {
		t.Error("IDs reverse lookup broken")
	}
	if _, ok := idx.Traces[FactID(a)]; ok {
		t.Error("traceless fact must not appear in Traces")
	}
	if _, ok := idx.Traces[FactID(c)]; !ok {
		t.Error("derived fact missing from Traces")
	}
}
