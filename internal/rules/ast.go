// Package rules implements the tag classification language: a small boolean
// expression grammar parsed from a profile file into ordered branch lists for
// areas, nodes and ways, plus a rewrite pass that brings expressions into
// disjunctive normal form.
package rules

import (
	"sort"
	"strings"
)

// Expr is a boolean condition over a feature's tags.
type Expr interface {
	// Eval evaluates the condition against a key -> value tag map.
	Eval(tags map[string]string) bool

	// String renders the condition in config syntax.
	String() string
}

// Not inverts an expression.
type Not struct {
	Expr Expr
}

// And is true when all operands are true. An empty And is true.
type And struct {
	Exprs []Expr
}

// Or is true when at least one operand is true. An empty Or is false.
type Or struct {
	Exprs []Expr
}

// LookupAny is true when the key is present with any value, the empty
// string included.
type LookupAny struct {
	Key string
}

// LookupSingle is true when the key is present and its value is a byte-exact
// match.
type LookupSingle struct {
	Key   string
	Value string
}

// LookupList is true when the key is present and its value is one of Values.
type LookupList struct {
	Key    string
	Values []string
}

func (n Not) Eval(tags map[string]string) bool { return !n.Expr.Eval(tags) }

func (a And) Eval(tags map[string]string) bool {
	for _, e := range a.Exprs {
		if !e.Eval(tags) {
			return false
		}
	}
	return true
}

func (o Or) Eval(tags map[string]string) bool {
	for _, e := range o.Exprs {
		if e.Eval(tags) {
			return true
		}
	}
	return false
}

func (l LookupAny) Eval(tags map[string]string) bool {
	_, ok := tags[l.Key]
	return ok
}

func (l LookupSingle) Eval(tags map[string]string) bool {
	v, ok := tags[l.Key]
	return ok && v == l.Value
}

func (l LookupList) Eval(tags map[string]string) bool {
	v, ok := tags[l.Key]
	if !ok {
		return false
	}
	for _, want := range l.Values {
		if v == want {
			return true
		}
	}
	return false
}

func (n Not) String() string { return "!" + n.Expr.String() }

func (a And) String() string { return joinExprs(a.Exprs, " & ") }

func (o Or) String() string { return joinExprs(o.Exprs, " | ") }

func (l LookupAny) String() string { return l.Key }

func (l LookupSingle) String() string { return l.Key + "=" + l.Value }

func (l LookupList) String() string {
	values := append([]string(nil), l.Values...)
	sort.Strings(values)
	return l.Key + "=[" + strings.Join(values, ",") + "]"
}

func joinExprs(exprs []Expr, sep string) string {
	parts := make([]string, len(exprs))
	for i, e := range exprs {
		parts[i] = "(" + e.String() + ")"
	}
	return strings.Join(parts, sep)
}

// Branch maps a condition to a result id. Branch lists are evaluated
// top to bottom and the first matching branch wins.
type Branch struct {
	ID   uint32
	Expr Expr
}

// Rules is the parsed profile: one branch list per feature kind.
// A profile with no blocks yields three empty lists.
type Rules struct {
	Areas []Branch
	Nodes []Branch
	Ways  []Branch
}

// FirstMatch returns the id of the first branch whose condition holds for
// the tags, or false when none does.
func FirstMatch(branches []Branch, tags map[string]string) (uint32, bool) {
	for _, b := range branches {
		if b.Expr.Eval(tags) {
			return b.ID, true
		}
	}
	return 0, false
}

// Literals calls fn for every literal string appearing in the expression,
// keys and values alike. Used to seed the token dictionary.
func Literals(e Expr, fn func(string)) {
	switch e := e.(type) {
	case Not:
		Literals(e.Expr, fn)
	case And:
		for _, sub := range e.Exprs {
			Literals(sub, fn)
		}
	case Or:
		for _, sub := range e.Exprs {
			Literals(sub, fn)
		}
	case LookupAny:
		fn(e.Key)
	case LookupSingle:
		fn(e.Key)
		fn(e.Value)
	case LookupList:
		fn(e.Key)
		for _, v := range e.Values {
			fn(v)
		}
	}
}
