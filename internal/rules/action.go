package rules

import (
	"sort"
	"strings"
	"unicode"
)

// ActionExpr is a minimal expression tree describing a rule's right-hand
// side. A node with a non-empty Op is a call or symbol; a node with an empty
// Op carries a literal in Lit. A node with Op "var" references a binding
// named by Lit.
type ActionExpr struct {
	Op   string        `json:"op,omitempty"`
	Lit  any           `json:"lit,omitempty"`
	Args []*ActionExpr `json:"args,omitempty"`
}

// Call builds a call node.
func Call(op string, args ...*ActionExpr) *ActionExpr {
	return &ActionExpr{Op: op, Args: args}
}

// Literal builds a literal node.
func Literal(v any) *ActionExpr { return &ActionExpr{Lit: v} }

// Var builds a binding reference node.
func Var(name string) *ActionExpr { return &ActionExpr{Op: "var", Lit: name} }

// insertion scan depth: expression trees are shallow in practice; the cap
// keeps a malformed self-referential tree from recursing forever.
const maxScanDepth = 64

// insertOps are the recognized insert call operators.
var insertOps = map[string]bool{
	"insert":      true,
	"insert!":     true,
	"insert-all":  true,
	"insert-all!": true,
}

// InsertedTypes scans an action expression tree for construct-and-insert
// calls and returns the qualified names of the constructed fact types, sorted
// and deduplicated. The match is a best-effort syntactic approximation: only
// an insert call whose first argument is a recognized constructor call
// counts, so insertions routed through helpers or conditionals are missed.
// It never over-counts. A nil or malformed tree yields an empty set.
func InsertedTypes(a *ActionExpr) []string {
	found := make(map[string]bool)
	scanInserts(a, 0, found)

	out := make([]string, 0, len(found))
	for t := range found {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func scanInserts(a *ActionExpr, depth int, found map[string]bool) {
	if a == nil || depth > maxScanDepth {
		return
	}
	if insertOps[a.Op] && len(a.Args) > 0 && a.Args[0] != nil {
		if name, ok := ConstructedType(a.Args[0].Op); ok {
			found[name] = true
		}
	}
	for _, arg := range a.Args {
		scanInserts(arg, depth+1, found)
	}
}

// ConstructedType extracts the qualified fact type name from a constructor
// call operator. Recognized shapes: "->Type", "map->Type" and "NewType",
// each optionally qualified by a namespace prefix ("ns/->Type",
// "pkg.NewType").
func ConstructedType(op string) (string, bool) {
	ns, name := "", op
	if i := strings.LastIndexAny(op, "./"); i >= 0 {
		ns, name = op[:i+1], op[i+1:]
	}

	switch {
	case strings.HasPrefix(name, "map->"):
		name = name[len("map->"):]
	case strings.HasPrefix(name, "->"):
		name = name[len("->"):]
	case strings.HasPrefix(name, "New") && len(name) > len("New") &&
		unicode.IsUpper(rune(name[len("New")])):
		name = name[len("New"):]
	default:
		return "", false
	}

	if name == "" {
		return "", false
	}
	return ns + name, true
}
