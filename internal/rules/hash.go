package rules

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// idLen is the hex length identifiers are truncated to. Collisions remain
// possible in principle; the identifier scheme layers disambiguating context
// (tree position, owning rule, type name) on top of the hash.
const idLen = 12

// ContentID returns the stable content identifier of a rule: a structural
// hash over its canonical serialization. Re-running on the same rule yields
// the same id.
func ContentID(r *Rule) string {
	return hashJSON(map[string]any{
		"name":   r.Name,
		"lhs":    canonicalConditions(r.LHS),
		"action": canonicalAction(r.Action),
		"meta":   r.Meta,
	})
}

// ConditionContentID returns the stable content identifier of a single
// condition, independent of any owning rule.
func ConditionContentID(c Condition) string {
	return hashJSON(canonicalCondition(c))
}

// HashValue returns the content hash of an arbitrary serializable value,
// used for fact identifiers and for items with no stable session identity.
func HashValue(v any) string {
	return hashJSON(v)
}

func hashJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		// Fall back to the fmt rendering; still deterministic for a
		// given value.
		b = []byte(fmt.Sprintf("%#v", v))
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])[:idLen]
}

func canonicalConditions(conds []Condition) []any {
	out := make([]any, len(conds))
	for i, c := range conds {
		out[i] = canonicalCondition(c)
	}
	return out
}

// canonicalCondition flattens a condition into tagged maps so that
// json.Marshal (which sorts map keys) yields a canonical byte form.
func canonicalCondition(c Condition) any {
	switch v := c.(type) {
	case nil:
		return nil
	case *FactCondition:
		return map[string]any{
			"kind":        string(KindFact),
			"type":        v.Type.Symbolic(),
			"constraints": v.Constraints,
			"bind":        v.Bind,
			"argBinds":    v.ArgBinds,
		}
	case *AccumulatorCondition:
		return map[string]any{
			"kind":  string(KindAccumulator),
			"op":    v.Op,
			"over":  v.Over.Symbolic(),
			"field": v.Field,
			"bind":  v.Bind,
			"expr":  v.Expr,
		}
	case *And:
		return map[string]any{"kind": string(KindAnd), "conds": canonicalConditions(v.Conds)}
	case *Or:
		return map[string]any{"kind": string(KindOr), "conds": canonicalConditions(v.Conds)}
	case *Not:
		return map[string]any{"kind": string(KindNot), "cond": canonicalCondition(v.Cond)}
	default:
		return map[string]any{"kind": string(c.Kind()), "desc": c.Describe()}
	}
}

func canonicalAction(a *ActionExpr) any {
	if a == nil {
		return nil
	}
	args := make([]any, len(a.Args))
	for i, arg := range a.Args {
		args[i] = canonicalAction(arg)
	}
	return map[string]any{"op": a.Op, "lit": a.Lit, "args": args}
}
