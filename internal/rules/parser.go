package rules

import (
	"fmt"
	"strconv"
	"strings"
)

// Parse reads a profile text into branch lists. The profile consists of up
// to three blocks ([Areas], [Nodes], [Ways]), each holding alias
// declarations ("name = 12") and branch statements ("id_or_alias: expr;").
// Aliases are scoped to their block. Comments run from '#' to end of line.
//
// Bare strings are limited to letters, digits, '_', '-' and '.'; anything
// else, keys with a namespace colon included, must be double-quoted.
func Parse(text string) (*Rules, error) {
	lx := newLexer(text)
	toks, err := lx.run()
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	return p.file()
}

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokString
	tokLBracket
	tokRBracket
	tokLParen
	tokRParen
	tokComma
	tokColon
	tokSemi
	tokEquals
	tokBang
	tokAmp
	tokPipe
)

func (k tokenKind) String() string {
	switch k {
	case tokEOF:
		return "end of input"
	case tokString:
		return "string"
	case tokLBracket:
		return "'['"
	case tokRBracket:
		return "']'"
	case tokLParen:
		return "'('"
	case tokRParen:
		return "')'"
	case tokComma:
		return "','"
	case tokColon:
		return "':'"
	case tokSemi:
		return "';'"
	case tokEquals:
		return "'='"
	case tokBang:
		return "'!'"
	case tokAmp:
		return "'&'"
	case tokPipe:
		return "'|'"
	}
	return "unknown token"
}

type token struct {
	kind tokenKind
	text string
	line int
	col  int
}

type lexer struct {
	src  string
	pos  int
	line int
	col  int
}

func newLexer(src string) *lexer {
	return &lexer{src: src, line: 1, col: 1}
}

func (l *lexer) errorf(format string, args ...any) *SyntaxError {
	return &SyntaxError{Line: l.line, Col: l.col, Msg: fmt.Sprintf(format, args...)}
}

func (l *lexer) advance() byte {
	c := l.src[l.pos]
	l.pos++
	if c == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	return c
}

func isBare(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' ||
		c >= '0' && c <= '9' || c == '_' || c == '-' || c == '.'
}

func (l *lexer) run() ([]token, error) {
	var toks []token
	for l.pos < len(l.src) {
		line, col := l.line, l.col
		c := l.src[l.pos]
		switch {
		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
			l.advance()
		case c == '#':
			for l.pos < len(l.src) && l.src[l.pos] != '\n' {
				l.advance()
			}
		case c == '"':
			text, err := l.quoted()
			if err != nil {
				return nil, err
			}
			toks = append(toks, token{tokString, text, line, col})
		case isBare(c):
			start := l.pos
			for l.pos < len(l.src) && isBare(l.src[l.pos]) {
				l.advance()
			}
			toks = append(toks, token{tokString, l.src[start:l.pos], line, col})
		default:
			kind, ok := punct(c)
			if !ok {
				return nil, l.errorf("unexpected character %q", c)
			}
			l.advance()
			toks = append(toks, token{kind, string(c), line, col})
		}
	}
	toks = append(toks, token{tokEOF, "", l.line, l.col})
	return toks, nil
}

func punct(c byte) (tokenKind, bool) {
	switch c {
	case '[':
		return tokLBracket, true
	case ']':
		return tokRBracket, true
	case '(':
		return tokLParen, true
	case ')':
		return tokRParen, true
	case ',':
		return tokComma, true
	case ':':
		return tokColon, true
	case ';':
		return tokSemi, true
	case '=':
		return tokEquals, true
	case '!':
		return tokBang, true
	case '&':
		return tokAmp, true
	case '|':
		return tokPipe, true
	}
	return tokEOF, false
}

func (l *lexer) quoted() (string, error) {
	l.advance() // opening quote
	var sb strings.Builder
	for l.pos < len(l.src) {
		c := l.advance()
		switch c {
		case '"':
			return sb.String(), nil
		case '\\':
			if l.pos >= len(l.src) {
				return "", l.errorf("unterminated escape")
			}
			sb.WriteByte(l.advance())
		case '\n':
			return "", l.errorf("newline in quoted string")
		default:
			sb.WriteByte(c)
		}
	}
	return "", l.errorf("unterminated quoted string")
}

type parser struct {
	toks []token
	pos  int
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) expect(kind tokenKind) (token, error) {
	t := p.next()
	if t.kind != kind {
		return t, &SyntaxError{
			Line: t.line, Col: t.col,
			Msg: fmt.Sprintf("expected %s, found %s", kind, describe(t)),
		}
	}
	return t, nil
}

func describe(t token) string {
	if t.kind == tokString {
		return fmt.Sprintf("%q", t.text)
	}
	return t.kind.String()
}

func (p *parser) file() (*Rules, error) {
	rules := &Rules{}
	seen := map[string]bool{}
	for p.peek().kind != tokEOF {
		open, err := p.expect(tokLBracket)
		if err != nil {
			return nil, err
		}
		name, err := p.expect(tokString)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRBracket); err != nil {
			return nil, err
		}

		var dst *[]Branch
		switch name.text {
		case "Areas":
			dst = &rules.Areas
		case "Nodes":
			dst = &rules.Nodes
		case "Ways":
			dst = &rules.Ways
		default:
			return nil, &SyntaxError{
				Line: name.line, Col: name.col,
				Msg: fmt.Sprintf("unknown block [%s], expected [Areas], [Nodes] or [Ways]", name.text),
			}
		}
		if seen[name.text] {
			return nil, &DuplicateBlockError{Block: name.text, Line: open.line}
		}
		seen[name.text] = true

		branches, err := p.block()
		if err != nil {
			return nil, err
		}
		*dst = branches
	}
	return rules, nil
}

// block parses alias declarations and branch statements until the next
// block header or end of input.
func (p *parser) block() ([]Branch, error) {
	branches := []Branch{}
	aliases := map[string]uint32{}
	for {
		switch p.peek().kind {
		case tokEOF, tokLBracket:
			return branches, nil
		}
		head, err := p.expect(tokString)
		if err != nil {
			return nil, err
		}
		switch p.peek().kind {
		case tokEquals:
			p.next()
			num, err := p.expect(tokString)
			if err != nil {
				return nil, err
			}
			id, err := parseID(num)
			if err != nil {
				return nil, err
			}
			aliases[head.text] = id
		case tokColon:
			p.next()
			id, err := resolveID(head, aliases)
			if err != nil {
				return nil, err
			}
			expr, err := p.expr()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(tokSemi); err != nil {
				return nil, err
			}
			branches = append(branches, Branch{ID: id, Expr: expr})
		default:
			t := p.peek()
			return nil, &SyntaxError{
				Line: t.line, Col: t.col,
				Msg: fmt.Sprintf("expected '=' or ':' after %q, found %s", head.text, describe(t)),
			}
		}
	}
}

func parseID(t token) (uint32, error) {
	n, err := strconv.ParseUint(t.text, 10, 32)
	if err != nil {
		return 0, &SyntaxError{
			Line: t.line, Col: t.col,
			Msg: fmt.Sprintf("%q is not a valid result id", t.text),
		}
	}
	return uint32(n), nil
}

func resolveID(t token, aliases map[string]uint32) (uint32, error) {
	if n, err := strconv.ParseUint(t.text, 10, 32); err == nil {
		return uint32(n), nil
	}
	if id, ok := aliases[t.text]; ok {
		return id, nil
	}
	return 0, &UnknownAliasError{Name: t.text, Line: t.line}
}

// expr := and ('|' and)*
func (p *parser) expr() (Expr, error) {
	first, err := p.and()
	if err != nil {
		return nil, err
	}
	exprs := []Expr{first}
	for p.peek().kind == tokPipe {
		p.next()
		next, err := p.and()
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, next)
	}
	if len(exprs) == 1 {
		return exprs[0], nil
	}
	return Or{Exprs: exprs}, nil
}

// and := unary ('&' unary)*
func (p *parser) and() (Expr, error) {
	first, err := p.unary()
	if err != nil {
		return nil, err
	}
	exprs := []Expr{first}
	for p.peek().kind == tokAmp {
		p.next()
		next, err := p.unary()
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, next)
	}
	if len(exprs) == 1 {
		return exprs[0], nil
	}
	return And{Exprs: exprs}, nil
}

// unary := '!' unary | '(' expr ')' | lookup
func (p *parser) unary() (Expr, error) {
	switch p.peek().kind {
	case tokBang:
		p.next()
		inner, err := p.unary()
		if err != nil {
			return nil, err
		}
		return Not{Expr: inner}, nil
	case tokLParen:
		p.next()
		inner, err := p.expr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen); err != nil {
			return nil, err
		}
		return inner, nil
	default:
		return p.lookup()
	}
}

// lookup := key | key '=' value | key '=' '[' value (',' value)* ']'
func (p *parser) lookup() (Expr, error) {
	key, err := p.expect(tokString)
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tokEquals {
		return LookupAny{Key: key.text}, nil
	}
	p.next()

	if p.peek().kind != tokLBracket {
		value, err := p.expect(tokString)
		if err != nil {
			return nil, err
		}
		return LookupSingle{Key: key.text, Value: value.text}, nil
	}

	p.next()
	var values []string
	for {
		value, err := p.expect(tokString)
		if err != nil {
			return nil, err
		}
		values = append(values, value.text)
		if p.peek().kind != tokComma {
			break
		}
		p.next()
	}
	if _, err := p.expect(tokRBracket); err != nil {
		return nil, err
	}
	return LookupList{Key: key.text, Values: values}, nil
}
