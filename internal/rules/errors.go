package rules

import (
	"errors"
	"fmt"
)

// ErrGrammar reports an internal inconsistency in the parser itself, not a
// mistake in the profile text. Seeing it wrapped in an error chain means a
// bug in this package.
var ErrGrammar = errors.New("rules: internal grammar error")

// SyntaxError is a malformed profile with the position of the offending
// token.
type SyntaxError struct {
	Line int
	Col  int
	Msg  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at line %d, column %d: %s", e.Line, e.Col, e.Msg)
}

// DuplicateBlockError reports a block header appearing twice in one profile.
type DuplicateBlockError struct {
	Block string
	Line  int
}

func (e *DuplicateBlockError) Error() string {
	return fmt.Sprintf("line %d: duplicate block [%s]", e.Line, e.Block)
}

// UnknownAliasError reports a branch referring to an alias that was never
// declared in its block.
type UnknownAliasError struct {
	Name string
	Line int
}

func (e *UnknownAliasError) Error() string {
	return fmt.Sprintf("line %d: unknown alias %q", e.Line, e.Name)
}
