package manglesrc

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"

	"rulelens/internal/engine"
	"rulelens/internal/rules"
)

func TestLoad_FactsAndRules(t *testing.T) {
	src := `
parent(/ann, /bob).
parent(/bob, /cat).
threshold(21).

grandparent(X, Z) :- parent(X, Y), parent(Y, Z).
`
	rs, facts, err := New(zaptest.NewLogger(t)).Load(src)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if len(facts) != 3 {
		t.Fatalf("base facts = %d, want 3", len(facts))
	}
	if facts[0].Type.Symbolic() != "parent" {
		t.Errorf("fact type = %q", facts[0].Type.Symbolic())
	}
	if !reflect.DeepEqual(facts[0].Value, []any{"/ann", "/bob"}) {
		t.Errorf("fact value = %v", facts[0].Value)
	}
	if !reflect.DeepEqual(facts[2].Value, []any{int64(21)}) {
		t.Errorf("numeric fact value = %#v", facts[2].Value)
	}

	if len(rs) != 1 {
		t.Fatalf("rules = %d, want 1", len(rs))
	}
	r := rs[0]
	if r.Name != "grandparent/0" {
		t.Errorf("rule name = %q", r.Name)
	}
	if r.Meta["source"] != "mangle" {
		t.Errorf("rule meta = %v", r.Meta)
	}
	if len(r.LHS) != 2 {
		t.Fatalf("LHS length = %d, want 2", len(r.LHS))
	}
	first, ok := r.LHS[0].(*rules.FactCondition)
	if !ok {
		t.Fatalf("first condition = %T", r.LHS[0])
	}
	if first.Type.Symbolic() != "parent" {
		t.Errorf("first condition type = %q", first.Type.Symbolic())
	}
	if !reflect.DeepEqual(first.ArgBinds, []string{"X", "Y"}) {
		t.Errorf("first condition binds = %v", first.ArgBinds)
	}
	second := r.LHS[1].(*rules.FactCondition)
	if !reflect.DeepEqual(second.ArgBinds, []string{"Y", "Z"}) {
		t.Errorf("second condition binds = %v", second.ArgBinds)
	}
	if got := rules.InsertedTypes(r.Action); !reflect.DeepEqual(got, []string{"grandparent"}) {
		t.Errorf("inserted types = %v", got)
	}
}

func TestLoad_Negation(t *testing.T) {
	src := `shipped(Id) :- order(Id), !cancelled(Id).`
	rs, _, err := New(nil).Load(src)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(rs) != 1 {
		t.Fatalf("rules = %d", len(rs))
	}
	r := rs[0]
	if len(r.LHS) != 2 {
		t.Fatalf("LHS length = %d, want 2", len(r.LHS))
	}
	neg, ok := r.LHS[1].(*rules.Not)
	if !ok {
		t.Fatalf("second condition = %T, want negation", r.LHS[1])
	}
	inner, ok := neg.Cond.(*rules.FactCondition)
	if !ok || inner.Type.Symbolic() != "cancelled" {
		t.Errorf("negated condition = %#v", neg.Cond)
	}
	if !reflect.DeepEqual(inner.ArgBinds, []string{"Id"}) {
		t.Errorf("negated binds = %v", inner.ArgBinds)
	}
}

func TestLoad_ComparisonFoldsIntoConstraint(t *testing.T) {
	src := `pair(X, Y) :- thing(X), thing(Y), X != Y.`
	rs, _, err := New(nil).Load(src)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	r := rs[0]
	if len(r.LHS) != 2 {
		t.Fatalf("LHS length = %d, want the comparison folded away", len(r.LHS))
	}
	second := r.LHS[1].(*rules.FactCondition)
	found := false
	for _, c := range second.Constraints {
		if strings.Contains(c, "!=") {
			found = true
		}
	}
	if !found {
		t.Errorf("comparison missing from constraints: %v", second.Constraints)
	}
}

func TestLoad_Transform(t *testing.T) {
	src := `
total_children(Parent, Count) :-
	parent(Parent, _) |>
	do fn:group_by(Parent),
	let Count = fn:Count().
`
	rs, _, err := New(zaptest.NewLogger(t)).Load(src)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(rs) != 1 {
		t.Fatalf("rules = %d", len(rs))
	}
	r := rs[0]

	var acc *rules.AccumulatorCondition
	for _, c := range r.LHS {
		if a, ok := c.(*rules.AccumulatorCondition); ok {
			acc = a
		}
	}
	if acc == nil {
		t.Fatalf("no accumulator condition in %v", r.LHS)
	}
	if acc.Op != "count" {
		t.Errorf("op = %q, want count", acc.Op)
	}
	if acc.Bind != "Count" {
		t.Errorf("bind = %q, want Count", acc.Bind)
	}
	if acc.Over.Symbolic() != "parent" {
		t.Errorf("over = %q, want the body relation", acc.Over.Symbolic())
	}
	if !strings.Contains(acc.Expr, "fn:group_by") {
		t.Errorf("expr = %q, want the pipeline rendering", acc.Expr)
	}

	// Wildcard slots never bind.
	fc := r.LHS[0].(*rules.FactCondition)
	if !reflect.DeepEqual(fc.ArgBinds, []string{"Parent", ""}) {
		t.Errorf("binds = %v", fc.ArgBinds)
	}
}

func TestLoad_ParseError(t *testing.T) {
	if _, _, err := New(nil).Load(`this is not a program(`); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoad_SequencedRuleNames(t *testing.T) {
	src := `
ancestor(X, Y) :- parent(X, Y).
ancestor(X, Z) :- parent(X, Y), ancestor(Y, Z).
`
	rs, _, err := New(nil).Load(src)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(rs) != 2 {
		t.Fatalf("rules = %d", len(rs))
	}
	if rs[0].Name != "ancestor/0" || rs[1].Name != "ancestor/1" {
		t.Errorf("names = %q, %q", rs[0].Name, rs[1].Name)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "family.mg")
	if err := os.WriteFile(path, []byte("parent(/a, /b).\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, facts, err := New(nil).LoadFile(path)
	if err != nil {
		t.Fatalf("load file: %v", err)
	}
	if len(facts) != 1 {
		t.Errorf("facts = %d", len(facts))
	}

	if _, _, err := New(nil).LoadFile(filepath.Join(dir, "missing.mg")); err == nil {
		t.Error("expected error for missing file")
	}
}

// Loaded programs run end to end: base facts seed the session and clause
// rules derive through it.
func TestLoad_ExecutesInSession(t *testing.T) {
	src := `
parent(/ann, /bob).
parent(/bob, /cat).

grandparent(X, Z) :- parent(X, Y), parent(Y, Z).
`
	rs, facts, err := New(zaptest.NewLogger(t)).Load(src)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	s := engine.NewSession(engine.DefaultConfig(), rs, engine.WithLogger(zaptest.NewLogger(t)))
	ctx := context.Background()
	for _, f := range facts {
		if err := s.Assert(ctx, f.Type.Symbolic(), f.Value); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}

	var derived [][]any
	for _, f := range s.Snapshot().Facts {
		if f.Type.Symbolic() == "grandparent" {
			derived = append(derived, f.Value.([]any))
		}
	}
	if len(derived) != 1 {
		t.Fatalf("grandparents = %v, want one", derived)
	}
	if !reflect.DeepEqual(derived[0], []any{"/ann", "/cat"}) {
		t.Errorf("grandparent = %v", derived[0])
	}
}
