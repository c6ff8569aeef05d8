// Package graph provides the shared graph model for rule logic graphs and
// session explanation graphs: typed nodes and edges keyed by identifier,
// exact-match-safe union of independently built fragments, and a generic
// cycle-safe traversal engine.
package graph

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
)

// NodeType classifies a graph node.
type NodeType string

const (
	NodeFact           NodeType = "fact"
	NodeFactCondition  NodeType = "fact-condition"
	NodeAccumCondition NodeType = "accumulator-condition"
	NodeAnd            NodeType = "and"
	NodeOr             NodeType = "or"
	NodeNot            NodeType = "not"
	NodeRule           NodeType = "rule"
	NodeRuleFact       NodeType = "rule-fact" // explanation variant: a fact derived by a rule
)

// EdgeType classifies a graph edge.
type EdgeType string

const (
	// Static logic-graph edges.
	EdgeUsedIn      EdgeType = "used-in"      // fact type -> condition
	EdgeComponentOf EdgeType = "component-of" // child condition -> parent combinator
	EdgeThen        EdgeType = "then"         // root condition -> rule
	EdgeInserts     EdgeType = "inserts"      // rule -> produced fact type

	// Explanation-graph edges.
	EdgeMatches     EdgeType = "matches"     // matched fact -> condition
	EdgeAccumulated EdgeType = "accumulated" // aggregate value -> accumulator condition
	EdgeAnd         EdgeType = "and"         // condition -> next condition in trace
	EdgeAsserts     EdgeType = "asserts"     // last condition -> explained fact
)

// Node is a graph vertex. Value carries a serializable description; it never
// holds a live runtime type handle.
type Node struct {
	ID    string   `json:"id"`
	Type  NodeType `json:"type"`
	Value any      `json:"value,omitempty"`
}

// EdgeKey is the ordered (from, to) pair identifying an edge.
type EdgeKey struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Edge is the payload attached to an EdgeKey.
type Edge struct {
	Type  EdgeType `json:"type"`
	Value any      `json:"value,omitempty"`
}

// Graph is a directed graph with identifier-keyed nodes and pair-keyed edges.
type Graph struct {
	Nodes map[string]Node
	Edges map[EdgeKey]Edge
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{
		Nodes: make(map[string]Node),
		Edges: make(map[EdgeKey]Edge),
	}
}

// AddNode inserts or overwrites a node.
func (g *Graph) AddNode(n Node) {
	g.Nodes[n.ID] = n
}

// AddEdge inserts or overwrites the edge (from, to).
func (g *Graph) AddEdge(from, to string, e Edge) {
	g.Edges[EdgeKey{From: from, To: to}] = e
}

// Len reports node and edge counts.
func (g *Graph) Len() (nodes, edges int) {
	return len(g.Nodes), len(g.Edges)
}

// NodeIDs returns all node identifiers in sorted order.
func (g *Graph) NodeIDs() []string {
	ids := make([]string, 0, len(g.Nodes))
	for id := range g.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// CollisionError reports a union key collision between non-identical values.
// Fragments are only ever expected to collide on identical values (the
// fact-type node case); anything else is an identifier design flaw and must
// not be silently merged.
type CollisionError struct {
	Kind string // "node" or "edge"
	Key  string
}

func (e *CollisionError) Error() string {
	return fmt.Sprintf("graph union: %s collision on %q with non-identical values", e.Kind, e.Key)
}

// Union merges independently built fragments into a new graph. The operation
// is associative and commutative. Keys colliding with identical values merge
// silently; non-identical values return a CollisionError.
func Union(fragments ...*Graph) (*Graph, error) {
	out := New()
	for _, frag := range fragments {
		if frag == nil {
			continue
		}
		if err := out.Merge(frag); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Merge folds other into g under the same collision policy as Union.
func (g *Graph) Merge(other *Graph) error {
	for id, n := range other.Nodes {
		if have, ok := g.Nodes[id]; ok {
			if !reflect.DeepEqual(have, n) {
				return &CollisionError{Kind: "node", Key: id}
			}
			continue
		}
		g.Nodes[id] = n
	}
	for k, e := range other.Edges {
		if have, ok := g.Edges[k]; ok {
			if !reflect.DeepEqual(have, e) {
				return &CollisionError{Kind: "edge", Key: k.From + " -> " + k.To}
			}
			continue
		}
		g.Edges[k] = e
	}
	return nil
}

// Clone returns a shallow copy of the graph's maps. Node and edge values are
// shared; they are treated as immutable once built.
func (g *Graph) Clone() *Graph {
	out := New()
	for id, n := range g.Nodes {
		out.Nodes[id] = n
	}
	for k, e := range g.Edges {
		out.Edges[k] = e
	}
	return out
}

// exportEdge is the wire form of an edge, with its endpoints inlined.
type exportEdge struct {
	From  string   `json:"from"`
	To    string   `json:"to"`
	Type  EdgeType `json:"type"`
	Value any      `json:"value,omitempty"`
}

// Export is the serialized form of a graph at the export boundary:
// {nodes: {id -> {type, value}}, edges: {"from -> to" -> {from, to, type, value?}}}.
type Export struct {
	Nodes map[string]Node       `json:"nodes"`
	Edges map[string]exportEdge `json:"edges"`
}

// MarshalJSON serializes the graph in its export form. Values reaching this
// boundary must already be symbolic; see rules.TypeRef.
func (g *Graph) MarshalJSON() ([]byte, error) {
	ex := Export{
		Nodes: g.Nodes,
		Edges: make(map[string]exportEdge, len(g.Edges)),
	}
	if ex.Nodes == nil {
		ex.Nodes = map[string]Node{}
	}
	for k, e := range g.Edges {
		ex.Edges[k.From+" -> "+k.To] = exportEdge{From: k.From, To: k.To, Type: e.Type, Value: e.Value}
	}
	return json.Marshal(ex)
}
