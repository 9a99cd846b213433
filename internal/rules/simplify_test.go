package rules

import (
	"reflect"
	"testing"
)

func term(key string) SimpleExpr { return Term{Key: key} }

func snot(e SimpleExpr) SimpleExpr { return SNot{Expr: e} }

func sand(exprs ...SimpleExpr) SimpleExpr { return SAnd{Exprs: exprs} }

func sor(exprs ...SimpleExpr) SimpleExpr { return SOr{Exprs: exprs} }

func TestSimplifyDoubleNegation(t *testing.T) {
	got := Simplify(snot(snot(snot(term("a")))))
	want := snot(term("a"))
	if !reflect.DeepEqual(got, want) {
		t.Errorf("simplified to %v, want %v", got, want)
	}
}

func TestSimplifyDeMorgan(t *testing.T) {
	got := Simplify(snot(sor(term("a"), term("b"))))
	want := sand(snot(term("a")), snot(term("b")))
	if !reflect.DeepEqual(got, want) {
		t.Errorf("!(a|b) simplified to %v, want %v", got, want)
	}

	got = Simplify(snot(sand(term("a"), term("b"))))
	want = sor(snot(term("a")), snot(term("b")))
	if !reflect.DeepEqual(got, want) {
		t.Errorf("!(a&b) simplified to %v, want %v", got, want)
	}
}

func TestSimplifyFlattensNesting(t *testing.T) {
	got := Simplify(sand(
		sand(term("a"), term("b")),
		term("c"),
		sand(sand(term("d"), term("e")), term("f")),
	))
	and, ok := got.(SAnd)
	if !ok {
		t.Fatalf("simplified to %T, want SAnd", got)
	}
	if len(and.Exprs) != 6 {
		t.Fatalf("flattened to %d operands, want 6", len(and.Exprs))
	}
	for _, sub := range and.Exprs {
		if _, ok := sub.(Term); !ok {
			t.Errorf("operand %v is not a term", sub)
		}
	}
}

func TestSimplifyDistributesAndOverOr(t *testing.T) {
	got := Simplify(sand(
		sor(term("a"), term("b")),
		sor(term("c"), term("d")),
		sor(term("e"), term("f")),
	))
	or, ok := got.(SOr)
	if !ok {
		t.Fatalf("simplified to %T, want SOr", got)
	}
	if len(or.Exprs) != 8 {
		t.Fatalf("DNF has %d clauses, want 8", len(or.Exprs))
	}
	for _, clause := range or.Exprs {
		and, ok := clause.(SAnd)
		if !ok {
			t.Fatalf("clause %v is not an SAnd", clause)
		}
		if len(and.Exprs) != 3 {
			t.Errorf("clause %v has %d atoms, want 3", clause, len(and.Exprs))
		}
	}
}

func TestSimplifyIdempotent(t *testing.T) {
	exprs := []SimpleExpr{
		term("a"),
		snot(term("a")),
		snot(sand(sor(term("a"), term("b")), term("c"))),
		sand(sor(term("a"), term("b")), sor(term("c"), snot(term("d")))),
		sor(sand(term("a"), sor(term("b"), term("c"))), snot(snot(term("d")))),
	}
	for _, e := range exprs {
		once := Simplify(e)
		twice := Simplify(once)
		if !reflect.DeepEqual(once, twice) {
			t.Errorf("Simplify not idempotent for %v:\n once %v\ntwice %v", e, once, twice)
		}
	}
}

// Every truth assignment of the terminals must survive simplification.
func TestSimplifyPreservesSemantics(t *testing.T) {
	keys := []string{"a", "b", "c", "d"}
	exprs := []SimpleExpr{
		snot(sand(term("a"), term("b"))),
		snot(sor(term("a"), snot(term("b")))),
		sand(sor(term("a"), term("b")), sor(term("c"), term("d"))),
		snot(sand(sor(term("a"), term("b")), snot(sor(term("c"), term("d"))))),
		sand(term("a"), snot(sand(term("b"), sor(term("c"), term("d"))))),
	}
	for _, e := range exprs {
		simplified := Simplify(e)
		for mask := 0; mask < 1<<len(keys); mask++ {
			tags := map[string]string{}
			for i, k := range keys {
				if mask&(1<<i) != 0 {
					tags[k] = ""
				}
			}
			if EvalSimple(e, tags) != EvalSimple(simplified, tags) {
				t.Errorf("semantics changed for %v under %v", e, tags)
			}
		}
	}
}

func TestCompileDNF(t *testing.T) {
	r, err := Parse("[Ways]\n1: highway=[motorway,trunk] & !access=private;\n")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	clauses, err := CompileDNF(Simplify(FromExpr(r.Ways[0].Expr)))
	if err != nil {
		t.Fatalf("CompileDNF: %v", err)
	}
	if len(clauses) != 2 {
		t.Fatalf("compiled %d clauses, want 2", len(clauses))
	}
	for _, clause := range clauses {
		if len(clause) != 2 {
			t.Fatalf("clause %v has %d atoms, want 2", clause, len(clause))
		}
		// Sorted by key: access before highway.
		if clause[0].Key != "access" || !clause[0].Not {
			t.Errorf("first atom = %+v, want negated access", clause[0])
		}
		if clause[1].Key != "highway" || clause[1].Not {
			t.Errorf("second atom = %+v, want positive highway", clause[1])
		}
	}

	tests := []struct {
		tags map[string]string
		want bool
	}{
		{map[string]string{"highway": "motorway"}, true},
		{map[string]string{"highway": "trunk"}, true},
		{map[string]string{"highway": "trunk", "access": "private"}, false},
		{map[string]string{"highway": "residential"}, false},
		{map[string]string{}, false},
	}
	for _, tt := range tests {
		if got := MatchDNF(clauses, tt.tags); got != tt.want {
			t.Errorf("MatchDNF(%v) = %v, want %v", tt.tags, got, tt.want)
		}
	}
}

func TestCompileDNFRejectsUnsimplified(t *testing.T) {
	if _, err := CompileDNF(snot(sand(term("a"), term("b")))); err == nil {
		t.Error("expected an error for negation over a conjunction")
	}
}
