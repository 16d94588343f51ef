// Package lexer tokenizes tak source bytes. Grounded in the teacher's
// internal/js_lexer/js_lexer.go shape (single-slot current-token buffer
// raised lazily, a byte-dispatch table, peek-by-save-and-restore, UTF-8
// continuation-length stepping) and in original_source/tak/src/lexer for
// the language's actual keyword/punctuation/numeric-literal grammar.
package lexer

import (
	"unicode/utf8"

	"github.com/tak-lang/tak/internal/ast"
	"github.com/tak-lang/tak/internal/logger"
)

// Lexer owns the byte buffer of one source file, a byte cursor, a 1-based
// line counter, and a single-slot current-token buffer.
type Lexer struct {
	log    logger.Log
	Source *logger.Source

	srcIndex   int
	currLine   uint32
	current    Token
	hasCurrent bool
}

// New creates a lexer over source, skipping a leading UTF-8 BOM per
// spec.md §4.1.
func New(log logger.Log, source *logger.Source) *Lexer {
	l := &Lexer{log: log, Source: source, currLine: 1}
	if len(source.Contents) >= 3 && source.Contents[0] == 0xEF && source.Contents[1] == 0xBB && source.Contents[2] == 0xBF {
		l.srcIndex = 3
	}
	return l
}

// Reset re-seeks the lexer to a stored source position and line, used by
// the post-parser when re-parsing a generic base's signature and body
// (spec.md §4.4/§9's "coroutine-free reparse"). The current slot is
// invalidated so the next Current() call re-lexes from the new position.
func (l *Lexer) Reset(pos int, line uint32) {
	l.srcIndex = pos
	l.currLine = line
	l.hasCurrent = false
}

// File returns the pretty path of the underlying source, used to detect
// whether a generic base lives in a different file before re-seeking.
func (l *Lexer) File() string { return l.Source.PrettyPath }

// Current returns the token in the single-slot buffer, lexing one if the
// slot is still empty.
func (l *Lexer) Current() Token {
	if !l.hasCurrent {
		l.current = l.lexOne()
		l.hasCurrent = true
	}
	return l.current
}

// Advance discards the current token n times, lexing fresh ones lazily.
func (l *Lexer) Advance(n int) {
	for i := 0; i < n; i++ {
		l.Current()
		l.hasCurrent = false
	}
}

// Peek saves the cursor, line, and slot, advances n tokens, snapshots the
// result, and restores the saved state.
func (l *Lexer) Peek(n int) Token {
	savedIndex, savedLine, savedCurrent, savedHas := l.srcIndex, l.currLine, l.current, l.hasCurrent
	l.Advance(n)
	result := l.Current()
	l.srcIndex, l.currLine, l.current, l.hasCurrent = savedIndex, savedLine, savedCurrent, savedHas
	return result
}

func (l *Lexer) currentByte() byte {
	if l.srcIndex >= len(l.Source.Contents) {
		return 0
	}
	return l.Source.Contents[l.srcIndex]
}

func (l *Lexer) peekByte() byte {
	if l.srcIndex+1 >= len(l.Source.Contents) {
		return 0
	}
	return l.Source.Contents[l.srcIndex+1]
}

func (l *Lexer) stepByte(n int) {
	l.srcIndex += n
}

// utf8SequenceLen returns the encoded length in bytes of the UTF-8
// sequence that lead byte b begins.
func utf8SequenceLen(b byte) int {
	switch {
	case b&0x80 == 0:
		return 1
	case b&0xE0 == 0xC0:
		return 2
	case b&0xF0 == 0xE0:
		return 3
	case b&0xF8 == 0xF0:
		return 4
	default:
		return 1
	}
}

// illegalIdentByte marks bytes that can never continue a bare
// identifier/keyword scan: whitespace, punctuation, and operator starts.
var illegalIdentByte = map[byte]bool{
	' ': true, '\t': true, '\r': true, '\n': true, 0: true,
	'(': true, ')': true, '{': true, '}': true, '[': true, ']': true,
	',': true, ';': true, ':': true, '"': true, '\'': true, '`': true,
	'+': true, '-': true, '*': true, '/': true, '%': true, '=': true,
	'<': true, '>': true, '!': true, '~': true, '&': true, '|': true,
	'^': true, '@': true, '\\': true, '.': true,
}

func (l *Lexer) lexOne() Token {
	for {
		switch l.currentByte() {
		case ' ', '\t', '\r':
			l.stepByte(1)
			continue
		case '\n':
			l.stepByte(1)
			l.currLine++
			continue
		case 0:
			return Token{Type: ast.EOF, Pos: l.srcIndex, Line: l.currLine}
		}
		break
	}

	start := l.srcIndex
	line := l.currLine
	c := l.currentByte()

	if punct, ok := l.lexPunctuationOrOperator(); ok {
		punct.Line = line
		return punct
	}

	switch c {
	case '"':
		return l.lexString(start, line, '"', ast.STRING_LITERAL)
	case '`':
		return l.lexRawString(start, line)
	case '\'':
		return l.lexChar(start, line)
	}

	if c >= '0' && c <= '9' {
		return l.lexNumber(start, line)
	}

	return l.lexAmbiguous(start, line)
}

// lexNumber implements spec.md §4.1's numeric literal grammar: decimal
// integer, `0x` hex, or `digits.digits[e[+-]digits]` float, following
// token_hex_literal/token_numeric_literal in original_source's lexer.
func (l *Lexer) lexNumber(start int, line uint32) Token {
	if l.currentByte() == '0' && l.peekByte() == 'x' {
		l.stepByte(2)
		for isHexDigit(l.currentByte()) {
			l.stepByte(1)
		}
		raw := l.Source.Contents[start:l.srcIndex]
		if len(raw) <= 2 || !isHexDigit(raw[len(raw)-1]) {
			return Token{Type: ast.ILLEGAL, Pos: start, Line: line, Value: raw}
		}
		return Token{Type: ast.HEX_LITERAL, Pos: start, Line: line, Value: raw}
	}

	passedDot := false
	withinExponent := false

	for {
		c := l.currentByte()
		if c == 0 {
			break
		}
		if c == '.' {
			if passedDot || withinExponent {
				raw := l.Source.Contents[start:l.srcIndex]
				return Token{Type: ast.ILLEGAL, Pos: start, Line: line, Value: raw}
			}
			passedDot = true
		} else if c == 'e' {
			if !passedDot || withinExponent {
				raw := l.Source.Contents[start:l.srcIndex]
				return Token{Type: ast.ILLEGAL, Pos: start, Line: line, Value: raw}
			}
			withinExponent = true
			if l.peekByte() == '-' || l.peekByte() == '+' {
				l.stepByte(1)
				if !isDigit(l.peekByte()) {
					break
				}
			}
		} else if !isDigit(c) {
			break
		}
		l.stepByte(1)
	}

	raw := l.Source.Contents[start:l.srcIndex]
	if len(raw) == 0 || !isDigit(raw[len(raw)-1]) {
		return Token{Type: ast.ILLEGAL, Pos: start, Line: line, Value: raw}
	}
	if passedDot {
		return Token{Type: ast.FLOAT_LITERAL, Pos: start, Line: line, Value: raw}
	}
	return Token{Type: ast.INTEGER_LITERAL, Pos: start, Line: line, Value: raw}
}

func isDigit(c byte) bool    { return c >= '0' && c <= '9' }
func isHexDigit(c byte) bool { return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F') }

// lexAmbiguous scans a maximal identifier-ish run, matching it against the
// keyword table, then the type-keyword table, then the boolean literals,
// falling back to a plain identifier — spec.md §4.1 step 3.
func (l *Lexer) lexAmbiguous(start int, line uint32) Token {
	for {
		c := l.currentByte()
		if c == 0 || illegalIdentByte[c] {
			break
		}
		if c >= 0x80 {
			r, size := utf8.DecodeRuneInString(l.Source.Contents[l.srcIndex:])
			if r == utf8.RuneError && size <= 1 {
				raw := l.Source.Contents[start:l.srcIndex]
				l.raiseError(l.srcIndex, "malformed UTF-8 sequence")
				return Token{Type: ast.ILLEGAL, Pos: start, Line: line, Value: raw}
			}
			l.stepByte(size)
			continue
		}
		l.stepByte(1)
	}

	raw := l.Source.Contents[start:l.srcIndex]
	if raw == "" {
		// A byte we don't recognize at all and that isn't whitespace,
		// punctuation, or a quote: consume it so we make forward progress.
		l.stepByte(1)
		l.raiseError(start, "illegal character")
		return Token{Type: ast.ILLEGAL, Pos: start, Line: line, Value: l.Source.Contents[start:l.srcIndex]}
	}

	if raw == "true" || raw == "false" {
		return Token{Type: ast.BOOLEAN_LITERAL, Pos: start, Line: line, Value: raw}
	}
	if kw, ok := ast.Keywords[raw]; ok {
		return Token{Type: kw, Pos: start, Line: line, Value: raw}
	}
	if tk, ok := ast.TypeKeywords[raw]; ok {
		return Token{Type: tk, Pos: start, Line: line, Value: raw}
	}
	return Token{Type: ast.IDENTIFIER, Pos: start, Line: line, Value: raw}
}

func (l *Lexer) lexString(start int, line uint32, quote byte, typ ast.TokenType) Token {
	l.stepByte(1)
	for {
		c := l.currentByte()
		if c == 0 {
			l.raiseError(start, "unterminated string literal")
			break
		}
		if c == '\\' {
			l.stepByte(2)
			continue
		}
		l.stepByte(1)
		if c == quote {
			break
		}
	}
	raw := l.Source.Contents[start:l.srcIndex]
	return Token{Type: typ, Pos: start, Line: line, Value: raw}
}

// lexRawString handles the backtick-delimited form where only a backtick
// itself may be escaped, per spec.md §6.
func (l *Lexer) lexRawString(start int, line uint32) Token {
	l.stepByte(1)
	for {
		c := l.currentByte()
		if c == 0 {
			l.raiseError(start, "unterminated raw string literal")
			break
		}
		if c == '\\' && l.peekByte() == '`' {
			l.stepByte(2)
			continue
		}
		l.stepByte(1)
		if c == '`' {
			break
		}
	}
	raw := l.Source.Contents[start:l.srcIndex]
	return Token{Type: ast.RAW_STRING_LITERAL, Pos: start, Line: line, Value: raw}
}

func (l *Lexer) lexChar(start int, line uint32) Token {
	return l.lexString(start, line, '\'', ast.CHARACTER_LITERAL)
}

// lexPunctuationOrOperator matches one of the fixed punctuation/operator
// spellings listed in spec.md §4.2/§6 starting at the cursor, longest
// spelling first. Returns ok=false for quote/digit/identifier starts so
// the caller falls through to the dedicated handlers.
func (l *Lexer) lexPunctuationOrOperator() (Token, bool) {
	start := l.srcIndex
	three := l.peekN(3)
	two := l.peekN(2)
	one := l.peekN(1)

	if t, ok := threeByteOps[three]; ok {
		l.stepByte(3)
		return Token{Type: t, Pos: start, Value: three}, true
	}
	if t, ok := twoByteOps[two]; ok {
		l.stepByte(2)
		return Token{Type: t, Pos: start, Value: two}, true
	}
	if t, ok := oneByteOps[one]; ok {
		l.stepByte(1)
		return Token{Type: t, Pos: start, Value: one}, true
	}
	return Token{}, false
}

func (l *Lexer) peekN(n int) string {
	end := l.srcIndex + n
	if end > len(l.Source.Contents) {
		end = len(l.Source.Contents)
	}
	if l.srcIndex >= end {
		return ""
	}
	return l.Source.Contents[l.srcIndex:end]
}

var threeByteOps = map[string]ast.TokenType{
	"<<=": ast.SHL_ASSIGN,
	">>=": ast.SHR_ASSIGN,
	"...": ast.ELLIPSIS,
}

var twoByteOps = map[string]ast.TokenType{
	"+=": ast.PLUS_ASSIGN,
	"-=": ast.MINUS_ASSIGN,
	"*=": ast.MUL_ASSIGN,
	"/=": ast.DIV_ASSIGN,
	"%=": ast.MOD_ASSIGN,
	"&=": ast.BITWISE_AND_ASSIGN,
	"|=": ast.BITWISE_OR_ASSIGN,
	"^=": ast.BITWISE_XOR_ASSIGN,
	"==": ast.EQUALS,
	"!=": ast.NOT_EQUALS,
	"<=": ast.LESS_THAN_EQUAL,
	">=": ast.GREATER_THAN_EQUAL,
	"<<": ast.SHL,
	">>": ast.SHR,
	"||": ast.LOGICAL_OR,
	"::": ast.DOUBLE_COLON,
	"->": ast.ARROW,
}

var oneByteOps = map[string]ast.TokenType{
	"(": ast.LPAREN, ")": ast.RPAREN,
	"{": ast.LBRACE, "}": ast.RBRACE,
	"[": ast.LSQUARE, "]": ast.RSQUARE,
	",": ast.COMMA, ";": ast.SEMICOLON,
	":": ast.COLON, "@": ast.AT, "\\": ast.NAMESPACE_SEP, ".": ast.DOT,
	"=": ast.VALUE_ASSIGNMENT,
	"|": ast.BITWISE_OR, "^": ast.BITWISE_XOR, "&": ast.BITWISE_AND,
	"<": ast.LESS_THAN, ">": ast.GREATER_THAN,
	"+": ast.PLUS, "-": ast.MINUS, "*": ast.MUL, "/": ast.DIV, "%": ast.MOD,
	"!": ast.LOGICAL_NOT, "~": ast.BITWISE_NOT,
}

// raiseError renders the teacher's caret-style inline diagnostic for a
// lexical error through internal/logger, matching original_source's
// _raise_error_impl: file:line, the offending line, a caret, the message.
func (l *Lexer) raiseError(pos int, message string) {
	if l.log.AddMsg == nil {
		return
	}
	l.log.AddError(l.Source, logger.Loc{Start: int32(pos)}, message)
}
