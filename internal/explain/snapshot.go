// Package explain builds dynamic explanation graphs: given a point-in-time
// snapshot of an engine session's working memory and insertion provenance,
// it reconstructs why requested facts exist as a navigable graph.
package explain

import (
	"sort"

	"rulelens/internal/rules"
)

// Fact is one data item held by a session at snapshot time. Trace is nil
// when the fact has no known provenance (externally asserted).
type Fact struct {
	Type  rules.TypeRef
	Value any
	Trace Trace
}

// Support is one (matched-item, condition) pair of a provenance trace.
// Fact is set when the match was a literal held fact; otherwise Value
// carries an intermediate aggregate with no stable session identity.
type Support struct {
	Fact      *Fact
	Value     any
	Condition rules.Condition
}

// Aggregate reports whether the matched item is an intermediate aggregate
// rather than a literal fact.
func (s Support) Aggregate() bool { return s.Fact == nil }

// Trace is the ordered provenance record of how a fact was derived.
type Trace []Support

// Snapshot is a read-only, point-in-time view of a session: the facts held
// and, per fact, its provenance. It carries no reference back to the live
// instance and is never mutated after construction.
type Snapshot struct {
	Facts []*Fact
}

// FactID returns a fact's session identifier:
// "<runtime-type-name>-<content-hash(fact)>".
func FactID(f *Fact) string {
	return f.Type.Symbolic() + "-" + rules.HashValue(f.Value)
}

// Index holds the per-snapshot lookup maps the extractor works from: a
// fact<->identifier bijection, a grouping by runtime type, and an
// identifier->trace map, all built in one pass over one snapshot so that
// explanations for multiple facts stay mutually consistent.
type Index struct {
	ByID   map[string]*Fact
	IDs    map[*Fact]string
	ByType map[string][]*Fact
	Traces map[string]Trace
}

// BuildIndex derives the lookup maps from a snapshot.
func BuildIndex(s *Snapshot) *Index {
	idx := &Index{
		ByID:   make(map[string]*Fact, len(s.Facts)),
		IDs:    make(map[*Fact]string, len(s.Facts)),
		ByType: make(map[string][]*Fact),
		Traces: make(map[string]Trace),
	}
	for _, f := range s.Facts {
		id := FactID(f)
		idx.ByID[id] = f
		idx.IDs[f] = id
		typeName := f.Type.Symbolic()
		idx.ByType[typeName] = append(idx.ByType[typeName], f)
		if f.Trace != nil {
			idx.Traces[id] = f.Trace
		}
	}
	return idx
}

// TypeNames returns the held fact types in sorted order.
func (idx *Index) TypeNames() []string {
	names := make([]string, 0, len(idx.ByType))
	for name := range idx.ByType {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
