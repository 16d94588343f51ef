package checker

import "github.com/tak-lang/tak/internal/ast"

// nonConcreteInt is the default shape of an untyped integer literal before
// it has coerced to a concrete target: i32, promotable to any integral or
// float primitive per spec.md §3's NON_CONCRETE contract.
func nonConcreteInt() ast.TypeData {
	return ast.TypeData{Kind: ast.KindPrimitive, Primitive: ast.I32, Flags: ast.NON_CONCRETE}
}

// nonConcreteFloat is the default shape of an untyped float literal.
func nonConcreteFloat() ast.TypeData {
	return ast.TypeData{Kind: ast.KindPrimitive, Primitive: ast.F64, Flags: ast.NON_CONCRETE}
}

// intPrimitiveBounds returns the largest magnitude an unsigned or signed
// integral primitive can hold, used to narrow an untyped integer literal
// against a concrete coercion target per spec.md §7's out-of-range literal
// narrowing error. 64-bit primitives are exempt: the lexer's own literal
// grammar cannot produce a value wider than the uint64 convertIntLitToType
// already parses it into.
func intPrimitiveBounds(p ast.Primitive) (max uint64, ok bool) {
	switch p {
	case ast.U8:
		return 255, true
	case ast.I8:
		return 127, true
	case ast.U16:
		return 65535, true
	case ast.I16:
		return 32767, true
	case ast.U32:
		return 4294967295, true
	case ast.I32:
		return 2147483647, true
	default:
		return 0, false
	}
}

// nullPointerLiteral is the distinguished type of a `nullptr` literal.
func nullPointerLiteral() ast.TypeData {
	return ast.TypeData{
		Kind:         ast.KindPrimitive,
		Primitive:    ast.Void,
		PointerDepth: 1,
		Flags:        ast.POINTER | ast.NON_CONCRETE | ast.RVALUE,
	}
}

// stringLiteralLength returns the byte length of the decoded contents of a
// quoted string literal's raw source text (including the surrounding
// quotes), counting each escape sequence as the single byte it decodes to.
// Multi-byte UTF-8 sequences in unescaped text count their full encoded
// length, matching the "u8 array of known length" contract of spec.md
// §4.5.
func stringLiteralLength(raw string) uint32 {
	if len(raw) < 2 {
		return 0
	}
	body := raw[1 : len(raw)-1]
	var n uint32
	for i := 0; i < len(body); i++ {
		if body[i] == '\\' && i+1 < len(body) {
			i++
			if body[i] == 'x' && i+2 < len(body) {
				i += 2
			}
			n++
			continue
		}
		n++
	}
	return n
}

// charLiteralValid reports whether a character literal's raw text decodes
// to exactly one byte (anything else is a malformed literal, reported by
// the caller).
func charLiteralValid(raw string) bool {
	return stringLiteralLength(raw) == 1
}
