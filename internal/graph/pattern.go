package graph

import (
	"encoding/json"
	"fmt"
	"regexp"
)

// FilterByFactPattern extracts the sub-graph around every fact node whose
// value matches pattern: the union of the backward and forward closures of
// each match. An empty match set yields an empty graph, not an error.
func FilterByFactPattern(g *Graph, pattern string) (*Graph, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("compile fact pattern %q: %w", pattern, err)
	}

	out := New()
	for _, id := range g.NodeIDs() {
		n := g.Nodes[id]
		if n.Type != NodeFact && n.Type != NodeRuleFact {
			continue
		}
		if !re.MatchString(valueText(n.Value)) {
			continue
		}
		// Closures of the same immutable graph can only collide on
		// identical values, so Merge cannot fail here.
		if err := out.Merge(ConnectsTo(g, id)); err != nil {
			return nil, err
		}
		if err := out.Merge(ReachableFrom(g, id)); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// valueText renders a node value for pattern matching. Strings match as-is;
// anything else matches against its JSON form.
func valueText(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case fmt.Stringer:
		return s.String()
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(b)
	}
}
