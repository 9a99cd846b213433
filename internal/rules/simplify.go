package rules

import (
	"fmt"
	"sort"
)

// SimpleExpr is the intermediate tree of the normal-form rewrite. It differs
// from Expr in that list lookups are expanded into Or-of-Terms, so the
// rewrite rules only ever see four node kinds.
type SimpleExpr interface {
	simpleExpr()
}

// Term tests a single tag. Without a value it tests key presence only.
type Term struct {
	Key      string
	Value    string
	HasValue bool
}

// SNot inverts a sub-expression.
type SNot struct {
	Expr SimpleExpr
}

// SAnd is the conjunction of its operands.
type SAnd struct {
	Exprs []SimpleExpr
}

// SOr is the disjunction of its operands.
type SOr struct {
	Exprs []SimpleExpr
}

func (Term) simpleExpr() {}
func (SNot) simpleExpr() {}
func (SAnd) simpleExpr() {}
func (SOr) simpleExpr()  {}

// FromExpr converts a parsed condition into the rewrite tree. List lookups
// become an Or of exact terms.
func FromExpr(e Expr) SimpleExpr {
	switch e := e.(type) {
	case Not:
		return SNot{Expr: FromExpr(e.Expr)}
	case And:
		out := make([]SimpleExpr, len(e.Exprs))
		for i, sub := range e.Exprs {
			out[i] = FromExpr(sub)
		}
		return SAnd{Exprs: out}
	case Or:
		out := make([]SimpleExpr, len(e.Exprs))
		for i, sub := range e.Exprs {
			out[i] = FromExpr(sub)
		}
		return SOr{Exprs: out}
	case LookupAny:
		return Term{Key: e.Key}
	case LookupSingle:
		return Term{Key: e.Key, Value: e.Value, HasValue: true}
	case LookupList:
		out := make([]SimpleExpr, len(e.Values))
		for i, v := range e.Values {
			out[i] = Term{Key: e.Key, Value: v, HasValue: true}
		}
		return SOr{Exprs: out}
	default:
		panic(fmt.Sprintf("rules: unknown expression %T", e))
	}
}

// Simplify rewrites the expression into disjunctive normal form: negation
// only on terms, conjunctions fully flattened and free of nested
// disjunctions. The rewrite applies double-negation collapse, De Morgan
// push-down, same-kind flattening and And-over-Or distribution until a
// fixpoint is reached. The result can be exponentially larger than the
// input; that is inherent to the normal form.
func Simplify(e SimpleExpr) SimpleExpr {
	for {
		next, changed := step(e)
		e = next
		if !changed {
			return e
		}
	}
}

// step applies one round of rewrites bottom-up and reports whether anything
// changed.
func step(e SimpleExpr) (SimpleExpr, bool) {
	switch e := e.(type) {
	case Term:
		return e, false

	case SNot:
		switch inner := e.Expr.(type) {
		case SNot:
			return inner.Expr, true
		case SAnd:
			out := make([]SimpleExpr, len(inner.Exprs))
			for i, sub := range inner.Exprs {
				out[i] = SNot{Expr: sub}
			}
			return SOr{Exprs: out}, true
		case SOr:
			out := make([]SimpleExpr, len(inner.Exprs))
			for i, sub := range inner.Exprs {
				out[i] = SNot{Expr: sub}
			}
			return SAnd{Exprs: out}, true
		default:
			sub, changed := step(e.Expr)
			return SNot{Expr: sub}, changed
		}

	case SAnd:
		// Distribute over the first nested Or, one at a time.
		for i, sub := range e.Exprs {
			or, ok := sub.(SOr)
			if !ok {
				continue
			}
			rest := make([]SimpleExpr, 0, len(e.Exprs)-1)
			rest = append(rest, e.Exprs[:i]...)
			rest = append(rest, e.Exprs[i+1:]...)
			out := make([]SimpleExpr, len(or.Exprs))
			for j, alt := range or.Exprs {
				clause := make([]SimpleExpr, 0, len(rest)+1)
				clause = append(clause, rest...)
				clause = append(clause, alt)
				out[j] = SAnd{Exprs: clause}
			}
			return SOr{Exprs: out}, true
		}
		out, changed := stepAll(e.Exprs)
		flat, flattened := flatten(out, func(s SimpleExpr) ([]SimpleExpr, bool) {
			a, ok := s.(SAnd)
			return a.Exprs, ok
		})
		return SAnd{Exprs: flat}, changed || flattened

	case SOr:
		out, changed := stepAll(e.Exprs)
		flat, flattened := flatten(out, func(s SimpleExpr) ([]SimpleExpr, bool) {
			o, ok := s.(SOr)
			return o.Exprs, ok
		})
		return SOr{Exprs: flat}, changed || flattened

	default:
		panic(fmt.Sprintf("rules: unknown expression %T", e))
	}
}

func stepAll(exprs []SimpleExpr) ([]SimpleExpr, bool) {
	out := make([]SimpleExpr, len(exprs))
	changed := false
	for i, sub := range exprs {
		next, ch := step(sub)
		out[i] = next
		changed = changed || ch
	}
	return out, changed
}

// flatten splices operands of the same kind into the parent list.
func flatten(exprs []SimpleExpr, sameKind func(SimpleExpr) ([]SimpleExpr, bool)) ([]SimpleExpr, bool) {
	changed := false
	out := make([]SimpleExpr, 0, len(exprs))
	for _, sub := range exprs {
		if inner, ok := sameKind(sub); ok {
			out = append(out, inner...)
			changed = true
		} else {
			out = append(out, sub)
		}
	}
	return out, changed
}

// EvalSimple evaluates the rewrite tree against a tag map, with the same
// semantics as Expr.Eval.
func EvalSimple(e SimpleExpr, tags map[string]string) bool {
	switch e := e.(type) {
	case Term:
		v, ok := tags[e.Key]
		if !ok {
			return false
		}
		return !e.HasValue || v == e.Value
	case SNot:
		return !EvalSimple(e.Expr, tags)
	case SAnd:
		for _, sub := range e.Exprs {
			if !EvalSimple(sub, tags) {
				return false
			}
		}
		return true
	case SOr:
		for _, sub := range e.Exprs {
			if EvalSimple(sub, tags) {
				return true
			}
		}
		return false
	default:
		panic(fmt.Sprintf("rules: unknown expression %T", e))
	}
}

// Atom is one literal of a DNF clause.
type Atom struct {
	Key      string
	Value    string
	HasValue bool
	Not      bool
}

// Match evaluates the atom against a tag map.
func (a Atom) Match(tags map[string]string) bool {
	v, ok := tags[a.Key]
	hit := ok && (!a.HasValue || v == a.Value)
	return hit != a.Not
}

// CompileDNF converts a simplified expression into clause lists: the outer
// list is a disjunction, each inner list a conjunction of atoms sorted by
// key. The expression must already be in the normal form Simplify produces;
// any other shape reports ErrGrammar.
func CompileDNF(e SimpleExpr) ([][]Atom, error) {
	var clauses [][]Atom
	switch e := e.(type) {
	case Term, SNot:
		atom, err := compileAtom(e)
		if err != nil {
			return nil, err
		}
		clauses = [][]Atom{{atom}}
	case SAnd:
		clause, err := compileClause(e)
		if err != nil {
			return nil, err
		}
		clauses = [][]Atom{clause}
	case SOr:
		clauses = make([][]Atom, len(e.Exprs))
		for i, sub := range e.Exprs {
			clause, err := compileClause(sub)
			if err != nil {
				return nil, err
			}
			clauses[i] = clause
		}
	default:
		return nil, fmt.Errorf("%w: unknown expression %T", ErrGrammar, e)
	}
	for _, clause := range clauses {
		sort.SliceStable(clause, func(i, j int) bool {
			if clause[i].Key != clause[j].Key {
				return clause[i].Key < clause[j].Key
			}
			return clause[i].Value < clause[j].Value
		})
	}
	return clauses, nil
}

func compileClause(e SimpleExpr) ([]Atom, error) {
	switch e := e.(type) {
	case Term, SNot:
		atom, err := compileAtom(e)
		if err != nil {
			return nil, err
		}
		return []Atom{atom}, nil
	case SAnd:
		clause := make([]Atom, len(e.Exprs))
		for i, sub := range e.Exprs {
			atom, err := compileAtom(sub)
			if err != nil {
				return nil, err
			}
			clause[i] = atom
		}
		return clause, nil
	default:
		return nil, fmt.Errorf("%w: %T inside a DNF clause", ErrGrammar, e)
	}
}

func compileAtom(e SimpleExpr) (Atom, error) {
	switch e := e.(type) {
	case Term:
		return Atom{Key: e.Key, Value: e.Value, HasValue: e.HasValue}, nil
	case SNot:
		t, ok := e.Expr.(Term)
		if !ok {
			return Atom{}, fmt.Errorf("%w: negation of %T survived simplification", ErrGrammar, e.Expr)
		}
		return Atom{Key: t.Key, Value: t.Value, HasValue: t.HasValue, Not: true}, nil
	default:
		return Atom{}, fmt.Errorf("%w: %T is not an atom", ErrGrammar, e)
	}
}

// MatchDNF evaluates compiled clauses: true when any clause's atoms all
// hold.
func MatchDNF(clauses [][]Atom, tags map[string]string) bool {
	for _, clause := range clauses {
		hit := true
		for _, atom := range clause {
			if !atom.Match(tags) {
				hit = false
				break
			}
		}
		if hit {
			return true
		}
	}
	return false
}
