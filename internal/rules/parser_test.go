package rules

import (
	"errors"
	"testing"
)

func TestParseEmpty(t *testing.T) {
	r, err := Parse("")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(r.Areas) != 0 || len(r.Nodes) != 0 || len(r.Ways) != 0 {
		t.Errorf("empty profile must yield empty branch lists, got %+v", r)
	}
}

func TestParseBlocksAndAliases(t *testing.T) {
	const profile = `
# road classification
[Ways]
motorway = 1
trunk = 2
motorway: highway=motorway;
trunk: highway=trunk;
7: highway=[residential,living_street] & !area;

[Nodes]
1: amenity;
`
	r, err := Parse(profile)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(r.Ways) != 3 {
		t.Fatalf("parsed %d way branches, want 3", len(r.Ways))
	}
	if r.Ways[0].ID != 1 || r.Ways[1].ID != 2 || r.Ways[2].ID != 7 {
		t.Errorf("branch ids = %d, %d, %d, want 1, 2, 7",
			r.Ways[0].ID, r.Ways[1].ID, r.Ways[2].ID)
	}
	if len(r.Nodes) != 1 || len(r.Areas) != 0 {
		t.Errorf("nodes/areas = %d/%d, want 1/0", len(r.Nodes), len(r.Areas))
	}

	tags := map[string]string{"highway": "living_street"}
	if id, ok := FirstMatch(r.Ways, tags); !ok || id != 7 {
		t.Errorf("living_street matched (%d, %v), want (7, true)", id, ok)
	}
	tags["area"] = "yes"
	if _, ok := FirstMatch(r.Ways, tags); ok {
		t.Error("negated lookup must reject a present area tag")
	}
}

func TestParseFirstMatchWins(t *testing.T) {
	r, err := Parse("[Ways]\n1: highway=motorway;\n2: highway=trunk;\n")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	tests := []struct {
		tags map[string]string
		id   uint32
		ok   bool
	}{
		{map[string]string{"highway": "motorway"}, 1, true},
		{map[string]string{"highway": "trunk"}, 2, true},
		{map[string]string{"highway": "residential"}, 0, false},
		{map[string]string{}, 0, false},
	}
	for _, tt := range tests {
		id, ok := FirstMatch(r.Ways, tt.tags)
		if id != tt.id || ok != tt.ok {
			t.Errorf("FirstMatch(%v) = (%d, %v), want (%d, %v)", tt.tags, id, ok, tt.id, tt.ok)
		}
	}
}

func TestParsePrecedenceAndGrouping(t *testing.T) {
	r, err := Parse("[Nodes]\n1: a | b & c;\n2: (a | b) & c;\n")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	// a | (b & c)
	if !r.Nodes[0].Expr.Eval(map[string]string{"a": ""}) {
		t.Error("'a | b & c' must hold with only a present")
	}
	if r.Nodes[0].Expr.Eval(map[string]string{"b": ""}) {
		t.Error("'a | b & c' must not hold with only b present")
	}
	// (a | b) & c
	if r.Nodes[1].Expr.Eval(map[string]string{"a": ""}) {
		t.Error("'(a | b) & c' must not hold without c")
	}
	if !r.Nodes[1].Expr.Eval(map[string]string{"b": "", "c": ""}) {
		t.Error("'(a | b) & c' must hold with b and c present")
	}
}

func TestParseQuotedStrings(t *testing.T) {
	r, err := Parse("[Nodes]\n3: \"addr:street\"=\"Main Street\";\n")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !r.Nodes[0].Expr.Eval(map[string]string{"addr:street": "Main Street"}) {
		t.Error("quoted lookup must match the unquoted tag text")
	}
}

func TestParseSyntaxErrorPosition(t *testing.T) {
	_, err := Parse("[Ways]\n1: highway=motorway\n2: x;\n")
	var syn *SyntaxError
	if !errors.As(err, &syn) {
		t.Fatalf("error = %v, want *SyntaxError", err)
	}
	// The missing semicolon is noticed at the '2' on line 3.
	if syn.Line != 3 {
		t.Errorf("error at line %d, want 3: %v", syn.Line, syn)
	}
}

func TestParseDuplicateBlock(t *testing.T) {
	_, err := Parse("[Ways]\n1: a;\n[Ways]\n2: b;\n")
	var dup *DuplicateBlockError
	if !errors.As(err, &dup) {
		t.Fatalf("error = %v, want *DuplicateBlockError", err)
	}
	if dup.Block != "Ways" {
		t.Errorf("duplicate block = %q, want Ways", dup.Block)
	}
}

func TestParseUnknownAlias(t *testing.T) {
	_, err := Parse("[Ways]\nmotorway: highway=motorway;\n")
	var unknown *UnknownAliasError
	if !errors.As(err, &unknown) {
		t.Fatalf("error = %v, want *UnknownAliasError", err)
	}
	if unknown.Name != "motorway" {
		t.Errorf("unknown alias = %q, want motorway", unknown.Name)
	}
}

func TestParseAliasScopedPerBlock(t *testing.T) {
	_, err := Parse("[Ways]\nroad = 1\nroad: highway;\n[Nodes]\nroad: amenity;\n")
	var unknown *UnknownAliasError
	if !errors.As(err, &unknown) {
		t.Fatalf("error = %v, want *UnknownAliasError for the Nodes block", err)
	}
}

func TestEvalEdgeCases(t *testing.T) {
	tags := map[string]string{"present": ""}

	if !(And{}).Eval(tags) {
		t.Error("empty And must be true")
	}
	if (Or{}).Eval(tags) {
		t.Error("empty Or must be false")
	}
	if !(LookupAny{Key: "present"}).Eval(tags) {
		t.Error("Any must accept an empty tag value")
	}
	if (LookupSingle{Key: "absent", Value: "x"}).Eval(tags) {
		t.Error("Single on a missing key must be false")
	}
	if !(Not{Expr: LookupAny{Key: "absent"}}).Eval(tags) {
		t.Error("Not of a missing-key lookup must be true")
	}
}
