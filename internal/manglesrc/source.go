// Package manglesrc loads rule definitions from Mangle (.mg) sources and
// converts them into the rule model: clause body atoms become fact
// conditions, negated atoms become not-conditions, transforms become
// accumulator conditions, and the clause head becomes the rule's
// construct-and-insert action. Clauses without premises load as plain facts.
package manglesrc

import (
	"fmt"
	"os"
	"strings"

	"github.com/google/mangle/analysis"
	"github.com/google/mangle/ast"
	"github.com/google/mangle/parse"
	"go.uber.org/zap"

	"rulelens/internal/explain"
	"rulelens/internal/rules"
)

// Source is a rule-source collaborator backed by Mangle program text.
type Source struct {
	logger *zap.Logger
}

// New creates a source. A nil logger is replaced with a nop logger.
func New(logger *zap.Logger) *Source {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Source{logger: logger}
}

// LoadFile parses one .mg file.
func (s *Source) LoadFile(path string) ([]*rules.Rule, []*explain.Fact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read rule source %s: %w", path, err)
	}
	return s.Load(string(data))
}

// Load parses Mangle program text into rule descriptors and base facts.
func (s *Source) Load(src string) ([]*rules.Rule, []*explain.Fact, error) {
	unit, err := parse.Unit(strings.NewReader(src))
	if err != nil {
		return nil, nil, fmt.Errorf("parse rule source: %w", err)
	}

	// Analysis validates the program when it can; sources without
	// declarations still load from the raw clauses.
	if _, err := analysis.AnalyzeOneUnit(unit, nil); err != nil {
		s.logger.Warn("rule source analysis failed, loading raw clauses", zap.Error(err))
	}

	var (
		rs    []*rules.Rule
		facts []*explain.Fact
		seq   = make(map[string]int)
	)
	for _, clause := range unit.Clauses {
		if len(clause.Premises) == 0 && clause.Transform == nil {
			facts = append(facts, baseFact(clause.Head))
			continue
		}
		head := clause.Head.Predicate.Symbol
		r := convertClause(clause, fmt.Sprintf("%s/%d", head, seq[head]))
		seq[head]++
		rs = append(rs, r)
	}

	s.logger.Debug("loaded rule source",
		zap.Int("rules", len(rs)),
		zap.Int("facts", len(facts)))
	return rs, facts, nil
}

// convertClause maps one Mangle clause to a rule descriptor.
func convertClause(clause ast.Clause, name string) *rules.Rule {
	var lhs []rules.Condition
	var firstFact, lastFact *rules.FactCondition

	for _, premise := range clause.Premises {
		switch t := premise.(type) {
		case ast.Atom:
			fc := atomCondition(t)
			lhs = append(lhs, fc)
			if firstFact == nil {
				firstFact = fc
			}
			lastFact = fc
		case ast.NegAtom:
			lhs = append(lhs, &rules.Not{Cond: atomCondition(t.Atom)})
		default:
			// Comparisons and other built-in terms guard the match
			// rather than reading a fact type; they fold into the
			// preceding fact condition as a textual constraint.
			if lastFact != nil {
				lastFact.Constraints = append(lastFact.Constraints, premise.String())
			}
		}
	}

	if clause.Transform != nil {
		acc := transformCondition(clause.Transform)
		// The transform aggregates over the clause body; approximated
		// here by the first body relation.
		if firstFact != nil {
			acc.Over = firstFact.Type
		}
		lhs = append(lhs, acc)
	}

	return &rules.Rule{
		Name:   name,
		LHS:    lhs,
		Action: headAction(clause.Head),
		Meta:   map[string]string{"source": "mangle"},
	}
}

// atomCondition converts a body atom into a fact condition: the predicate is
// the fact type, argument variables become positional bindings, and the
// rendered argument list is kept as a display constraint.
func atomCondition(atom ast.Atom) *rules.FactCondition {
	binds := make([]string, len(atom.Args))
	rendered := make([]string, len(atom.Args))
	for i, arg := range atom.Args {
		rendered[i] = arg.String()
		if v, ok := arg.(ast.Variable); ok && v.Symbol != "_" {
			binds[i] = v.Symbol
		}
	}
	return &rules.FactCondition{
		Type:        rules.TypeRef{Name: atom.Predicate.Symbol},
		Constraints: rendered,
		ArgBinds:    binds,
	}
}

// transformCondition maps a clause transform to a single accumulator
// condition. Recognized reducers become executable operations; anything else
// is carried as an opaque descriptor only.
func transformCondition(tr *ast.Transform) *rules.AccumulatorCondition {
	acc := &rules.AccumulatorCondition{}

	var parts []string
	for _, stmt := range tr.Statements {
		fn := stmt.Fn.Function.Symbol
		parts = append(parts, fn)
		if stmt.Var != nil && acc.Bind == "" {
			acc.Bind = stmt.Var.Symbol
		}
		switch strings.ToLower(fn) {
		case "fn:count":
			acc.Op = "count"
		case "fn:sum":
			acc.Op = "sum"
		case "fn:min":
			acc.Op = "min"
		case "fn:max":
			acc.Op = "max"
		}
	}
	acc.Expr = strings.Join(parts, " |> ")
	return acc
}

// headAction synthesizes the construct-and-insert action for a clause head,
// so insertion detection and execution see the produced fact type the same
// way they would for a hand-built rule.
func headAction(head ast.Atom) *rules.ActionExpr {
	args := make([]*rules.ActionExpr, len(head.Args))
	for i, arg := range head.Args {
		if v, ok := arg.(ast.Variable); ok {
			args[i] = rules.Var(v.Symbol)
			continue
		}
		args[i] = rules.Literal(termValue(arg))
	}
	ctor := rules.Call("->"+head.Predicate.Symbol, args...)
	return rules.Call("insert", ctor)
}

// baseFact converts a premise-less clause into a held fact.
func baseFact(head ast.Atom) *explain.Fact {
	value := make([]any, len(head.Args))
	for i, arg := range head.Args {
		value[i] = termValue(arg)
	}
	return &explain.Fact{
		Type:  rules.TypeRef{Name: head.Predicate.Symbol},
		Value: value,
	}
}

// termValue converts a Mangle base term to a plain Go value.
func termValue(term ast.BaseTerm) any {
	c, ok := term.(ast.Constant)
	if !ok {
		return term.String()
	}
	switch c.Type {
	case ast.StringType, ast.NameType, ast.BytesType:
		return c.Symbol
	case ast.NumberType:
		return c.NumValue
	default:
		return c.String()
	}
}
