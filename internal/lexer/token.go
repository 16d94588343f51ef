package lexer

import "github.com/tak-lang/tak/internal/ast"

// Token is one lexical unit: spec.md §3's kind/type/value/src_pos/line
// tuple. Value is a slice into the owning Source's Contents, not a copy.
type Token struct {
	Type  ast.TokenType
	Pos   int
	Line  uint32
	Value string
}

func (t Token) Kind() ast.TokenKind { return t.Type.Kind() }

// noneToken is a token of type ast.NONE. The lexer does not read it: the
// single-slot buffer's empty state is tracked by Lexer.hasCurrent.
var noneToken = Token{Type: ast.NONE}
