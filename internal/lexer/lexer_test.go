package lexer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tak-lang/tak/internal/ast"
	"github.com/tak-lang/tak/internal/lexer"
	"github.com/tak-lang/tak/internal/logger"
)

func tokenize(t *testing.T, contents string) []lexer.Token {
	t.Helper()
	source := &logger.Source{PrettyPath: "test.tak", Contents: contents}
	lx := lexer.New(logger.NewDeferLog(), source)

	var toks []lexer.Token
	for {
		tok := lx.Current()
		toks = append(toks, tok)
		if tok.Type == ast.EOF {
			break
		}
		lx.Advance(1)
	}
	return toks
}

func types(toks []lexer.Token) []ast.TokenType {
	out := make([]ast.TokenType, len(toks))
	for i, tok := range toks {
		out[i] = tok.Type
	}
	return out
}

func TestLexerKeywordsAndIdentifiers(t *testing.T) {
	toks := tokenize(t, "ret x proc y")
	assert.Equal(t, []ast.TokenType{ast.KW_RET, ast.IDENTIFIER, ast.KW_PROC, ast.IDENTIFIER, ast.EOF}, types(toks))
}

func TestLexerNumericLiterals(t *testing.T) {
	toks := tokenize(t, "1 0x1F 1.5 1.5e-3")
	require.Len(t, toks, 5)
	assert.Equal(t, ast.INTEGER_LITERAL, toks[0].Type)
	assert.Equal(t, ast.HEX_LITERAL, toks[1].Type)
	assert.Equal(t, ast.FLOAT_LITERAL, toks[2].Type)
	assert.Equal(t, ast.FLOAT_LITERAL, toks[3].Type)
	assert.Equal(t, "1.5e-3", toks[3].Value)
}

func TestLexerMalformedFloatIsIllegal(t *testing.T) {
	toks := tokenize(t, "1.5.6")
	assert.Equal(t, ast.ILLEGAL, toks[0].Type)
}

func TestLexerOperators(t *testing.T) {
	toks := tokenize(t, "<<= == -> :: <= >>")
	assert.Equal(t, []ast.TokenType{
		ast.SHL_ASSIGN, ast.EQUALS, ast.ARROW, ast.DOUBLE_COLON, ast.LESS_THAN_EQUAL, ast.SHR, ast.EOF,
	}, types(toks))
}

func TestLexerPeekDoesNotConsume(t *testing.T) {
	source := &logger.Source{PrettyPath: "test.tak", Contents: "a b c"}
	lx := lexer.New(logger.NewDeferLog(), source)

	peeked := lx.Peek(1)
	assert.Equal(t, "b", peeked.Value)

	current := lx.Current()
	assert.Equal(t, "a", current.Value)
}

func TestLexerSkipsUTF8BOM(t *testing.T) {
	source := &logger.Source{PrettyPath: "test.tak", Contents: "\xEF\xBB\xBFret"}
	lx := lexer.New(logger.NewDeferLog(), source)
	tok := lx.Current()
	assert.Equal(t, ast.KW_RET, tok.Type)
	assert.Equal(t, 3, tok.Pos)
}

func TestLexerStringLiteral(t *testing.T) {
	toks := tokenize(t, `"hello \"world\""`)
	require.Len(t, toks, 2)
	assert.Equal(t, ast.STRING_LITERAL, toks[0].Type)
}
