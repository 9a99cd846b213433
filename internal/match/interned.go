package match

import (
	"github.com/paulmach/osm"

	"github.com/wegman-software/osm2tiles-go/internal/rules"
)

// Interned rewrites all rule literals into dense integer tokens at
// construction and matches on integers. The string to token step goes
// through a pluggable dictionary; tags whose key was never seen in any rule
// literal are dropped before evaluation, unseen values map to NoToken.
type Interned struct {
	areas []iBranch
	nodes []iBranch
	ways  []iBranch
	dict  Dict
}

type iBranch struct {
	id   uint32
	expr iExpr
}

// NewInterned interns the rules' literals and finalizes the dictionary with
// build.
func NewInterned(r *rules.Rules, build DictBuilder) (*Interned, error) {
	tok := newTokens()
	m := &Interned{}
	var err error
	if m.areas, err = internBranches(r.Areas, tok); err != nil {
		return nil, err
	}
	if m.nodes, err = internBranches(r.Nodes, tok); err != nil {
		return nil, err
	}
	if m.ways, err = internBranches(r.Ways, tok); err != nil {
		return nil, err
	}
	if m.dict, err = build(tok.strings); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Interned) Area(tags osm.Tags) (uint32, bool) {
	return m.match(m.areas, tags)
}

func (m *Interned) Node(tags osm.Tags) (uint32, bool) {
	return m.match(m.nodes, tags)
}

func (m *Interned) Way(tags osm.Tags) (uint32, bool) {
	return m.match(m.ways, tags)
}

func (m *Interned) match(branches []iBranch, tags osm.Tags) (uint32, bool) {
	interned := make(map[uint32]uint32, len(tags))
	for _, t := range tags {
		key, ok := m.dict.Lookup(t.Key)
		if !ok {
			continue
		}
		value, ok := m.dict.Lookup(t.Value)
		if !ok {
			value = NoToken
		}
		interned[key] = value
	}
	for _, b := range branches {
		if b.expr.eval(interned) {
			return b.id, true
		}
	}
	return 0, false
}

// iExpr mirrors rules.Expr with token payloads.
type iExpr interface {
	eval(tags map[uint32]uint32) bool
}

type iNot struct{ expr iExpr }

type iAnd struct{ exprs []iExpr }

type iOr struct{ exprs []iExpr }

type iAny struct{ key uint32 }

type iSingle struct{ key, value uint32 }

type iList struct {
	key    uint32
	values map[uint32]struct{}
}

func (e iNot) eval(tags map[uint32]uint32) bool { return !e.expr.eval(tags) }

func (e iAnd) eval(tags map[uint32]uint32) bool {
	for _, sub := range e.exprs {
		if !sub.eval(tags) {
			return false
		}
	}
	return true
}

func (e iOr) eval(tags map[uint32]uint32) bool {
	for _, sub := range e.exprs {
		if sub.eval(tags) {
			return true
		}
	}
	return false
}

func (e iAny) eval(tags map[uint32]uint32) bool {
	_, ok := tags[e.key]
	return ok
}

func (e iSingle) eval(tags map[uint32]uint32) bool {
	v, ok := tags[e.key]
	return ok && v == e.value
}

func (e iList) eval(tags map[uint32]uint32) bool {
	v, ok := tags[e.key]
	if !ok {
		return false
	}
	_, ok = e.values[v]
	return ok
}

func internBranches(branches []rules.Branch, tok *tokens) ([]iBranch, error) {
	out := make([]iBranch, len(branches))
	for i, b := range branches {
		expr, err := internExpr(b.Expr, tok)
		if err != nil {
			return nil, err
		}
		out[i] = iBranch{id: b.ID, expr: expr}
	}
	return out, nil
}

func internExpr(e rules.Expr, tok *tokens) (iExpr, error) {
	switch e := e.(type) {
	case rules.Not:
		inner, err := internExpr(e.Expr, tok)
		if err != nil {
			return nil, err
		}
		return iNot{expr: inner}, nil
	case rules.And:
		exprs, err := internAll(e.Exprs, tok)
		if err != nil {
			return nil, err
		}
		return iAnd{exprs: exprs}, nil
	case rules.Or:
		exprs, err := internAll(e.Exprs, tok)
		if err != nil {
			return nil, err
		}
		return iOr{exprs: exprs}, nil
	case rules.LookupAny:
		key, err := tok.getOrInsert(e.Key)
		if err != nil {
			return nil, err
		}
		return iAny{key: key}, nil
	case rules.LookupSingle:
		key, err := tok.getOrInsert(e.Key)
		if err != nil {
			return nil, err
		}
		value, err := tok.getOrInsert(e.Value)
		if err != nil {
			return nil, err
		}
		return iSingle{key: key, value: value}, nil
	case rules.LookupList:
		key, err := tok.getOrInsert(e.Key)
		if err != nil {
			return nil, err
		}
		values := make(map[uint32]struct{}, len(e.Values))
		for _, v := range e.Values {
			id, err := tok.getOrInsert(v)
			if err != nil {
				return nil, err
			}
			values[id] = struct{}{}
		}
		return iList{key: key, values: values}, nil
	default:
		return nil, rules.ErrGrammar
	}
}

func internAll(exprs []rules.Expr, tok *tokens) ([]iExpr, error) {
	out := make([]iExpr, len(exprs))
	for i, sub := range exprs {
		expr, err := internExpr(sub, tok)
		if err != nil {
			return nil, err
		}
		out[i] = expr
	}
	return out, nil
}
