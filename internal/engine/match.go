package engine

import (
	"fmt"
	"reflect"

	"rulelens/internal/explain"
	"rulelens/internal/rules"
)

// step is one executable condition of a compiled rule, in LHS order.
type step struct {
	fact  *rules.FactCondition
	neg   *rules.FactCondition
	accum *rules.AccumulatorCondition
}

// rulePlan is the executable form of one rule: an ordered list of steps plus
// the insert templates of its action. Only conjunctive rules compile; Or and
// nested combinators are static-analysis-only.
type rulePlan struct {
	rule    *rules.Rule
	ruleID  string
	steps   []step
	inserts []*rules.ActionExpr // constructor calls, one per insert
}

// compile precomputes the execution plan for a rule, or reports why the rule
// cannot fire in this engine.
func compile(r *rules.Rule) (*rulePlan, error) {
	p := &rulePlan{rule: r, ruleID: rules.ContentID(r)}

	conds := r.LHS
	if len(conds) == 1 {
		if and, ok := conds[0].(*rules.And); ok {
			conds = and.Conds
		}
	}

	for _, c := range conds {
		switch v := c.(type) {
		case *rules.FactCondition:
			p.steps = append(p.steps, step{fact: v})
		case *rules.AccumulatorCondition:
			if v.Op == "" {
				return nil, fmt.Errorf("accumulator %q has no executable operation", v.Describe())
			}
			p.steps = append(p.steps, step{accum: v})
		case *rules.Not:
			inner, ok := v.Cond.(*rules.FactCondition)
			if !ok {
				return nil, fmt.Errorf("negation over non-fact condition")
			}
			p.steps = append(p.steps, step{neg: inner})
		case *rules.And, *rules.Or:
			return nil, fmt.Errorf("nested combinator %q not executable", c.Kind())
		default:
			return nil, &rules.UnsupportedKindError{Found: c.Kind()}
		}
	}

	p.inserts = insertTemplates(r.Action)
	if len(p.inserts) == 0 {
		return nil, fmt.Errorf("rule has no construct-and-insert action")
	}
	return p, nil
}

// insertTemplates collects the constructor calls of every recognized insert
// in an action tree.
func insertTemplates(a *rules.ActionExpr) []*rules.ActionExpr {
	var out []*rules.ActionExpr
	var walk func(*rules.ActionExpr, int)
	walk = func(n *rules.ActionExpr, depth int) {
		if n == nil || depth > 64 {
			return
		}
		switch n.Op {
		case "insert", "insert!", "insert-all", "insert-all!":
			if len(n.Args) > 0 && n.Args[0] != nil {
				if _, ok := rules.ConstructedType(n.Args[0].Op); ok {
					out = append(out, n.Args[0])
				}
			}
		}
		for _, arg := range n.Args {
			walk(arg, depth+1)
		}
	}
	walk(a, 0)
	return out
}

// match is one complete satisfaction of a rule's LHS.
type match struct {
	supports []explain.Support
	bindings map[string]any
}

// matches finds every satisfaction of the plan's steps against working
// memory, in LHS order with backtracking over positive fact conditions.
func (p *rulePlan) matches(facts []*explain.Fact) []match {
	var out []match

	var walk func(i int, b map[string]any, supports []explain.Support)
	walk = func(i int, b map[string]any, supports []explain.Support) {
		if i == len(p.steps) {
			out = append(out, match{
				supports: append([]explain.Support(nil), supports...),
				bindings: b,
			})
			return
		}

		st := p.steps[i]
		switch {
		case st.fact != nil:
			for _, f := range facts {
				nb, ok := unify(st.fact, f, b)
				if !ok {
					continue
				}
				walk(i+1, nb, append(supports, explain.Support{Fact: f, Condition: st.fact}))
			}

		case st.neg != nil:
			for _, f := range facts {
				if _, ok := unify(st.neg, f, b); ok {
					return // negated condition satisfied: dead branch
				}
			}
			walk(i+1, b, supports)

		case st.accum != nil:
			result, ok := aggregate(st.accum, facts)
			if !ok {
				return
			}
			nb := b
			if st.accum.Bind != "" {
				nb = bind(b, st.accum.Bind, result)
			}
			walk(i+1, nb, append(supports, explain.Support{Value: result, Condition: st.accum}))
		}
	}

	walk(0, map[string]any{}, nil)
	return out
}

// unify checks a fact against a fact condition under current bindings and
// returns the extended bindings on success.
func unify(c *rules.FactCondition, f *explain.Fact, b map[string]any) (map[string]any, bool) {
	if f.Type.Symbolic() != c.Type.Symbolic() {
		return nil, false
	}
	if c.Where != nil && !c.Where(f.Value) {
		return nil, false
	}

	nb := b
	if len(c.ArgBinds) > 0 {
		slots, ok := f.Value.([]any)
		if !ok || len(slots) < len(c.ArgBinds) {
			return nil, false
		}
		for i, name := range c.ArgBinds {
			if name == "" || name == "_" {
				continue
			}
			if have, bound := nb[name]; bound {
				if !reflect.DeepEqual(have, slots[i]) {
					return nil, false
				}
				continue
			}
			nb = bind(nb, name, slots[i])
		}
	}
	if c.Bind != "" {
		nb = bind(nb, c.Bind, f.Value)
	}
	return nb, true
}

// bind extends a binding map copy-on-write, so sibling branches never see
// each other's bindings.
func bind(b map[string]any, name string, v any) map[string]any {
	nb := make(map[string]any, len(b)+1)
	for k, val := range b {
		nb[k] = val
	}
	nb[name] = v
	return nb
}

// aggregate evaluates an accumulator over working memory. count and sum are
// defined on an empty set; min and max leave the condition unsatisfied.
func aggregate(c *rules.AccumulatorCondition, facts []*explain.Fact) (any, bool) {
	var values []float64
	for _, f := range facts {
		if f.Type.Symbolic() != c.Over.Symbolic() {
			continue
		}
		if c.Op == "count" {
			values = append(values, 0)
			continue
		}
		slots, ok := f.Value.([]any)
		if !ok || c.Field >= len(slots) {
			continue
		}
		v, ok := toFloat(slots[c.Field])
		if !ok {
			continue
		}
		values = append(values, v)
	}

	switch c.Op {
	case "count":
		return int64(len(values)), true
	case "sum":
		var sum float64
		for _, v := range values {
			sum += v
		}
		return sum, true
	case "min", "max":
		if len(values) == 0 {
			return nil, false
		}
		best := values[0]
		for _, v := range values[1:] {
			if (c.Op == "min" && v < best) || (c.Op == "max" && v > best) {
				best = v
			}
		}
		return best, true
	default:
		return nil, false
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

// produce evaluates the plan's insert templates under a match's bindings.
// Templates with arguments that cannot be evaluated are skipped.
func (p *rulePlan) produce(m match) []*explain.Fact {
	var out []*explain.Fact
	for _, ctor := range p.inserts {
		typeName, ok := rules.ConstructedType(ctor.Op)
		if !ok {
			continue
		}
		value := make([]any, 0, len(ctor.Args))
		ok = true
		for _, arg := range ctor.Args {
			v, evaluable := evalArg(arg, m.bindings)
			if !evaluable {
				ok = false
				break
			}
			value = append(value, v)
		}
		if !ok {
			continue
		}
		out = append(out, &explain.Fact{
			Type:  rules.TypeRef{Name: typeName},
			Value: value,
		})
	}
	return out
}

func evalArg(a *rules.ActionExpr, b map[string]any) (any, bool) {
	switch {
	case a == nil:
		return nil, false
	case a.Op == "var":
		name, _ := a.Lit.(string)
		v, ok := b[name]
		return v, ok
	case a.Op == "":
		return a.Lit, true
	default:
		return nil, false
	}
}
