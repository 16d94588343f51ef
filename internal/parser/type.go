package parser

import (
	"strconv"

	"github.com/tak-lang/tak/internal/ast"
)

// parseType parses a type expression: zero or more leading `^` pointer
// markers, a primitive keyword, a `proc(...) -> T` signature, or a
// (possibly namespaced) struct/alias identifier, followed by zero or
// more `[N]`/`[]` array-dimension suffixes. ArrayLengths is stored
// outermost-first, matching original_source's var_types.hpp convention
// of appending dimensions as they're parsed left to right. `^` lexes to
// BITWISE_XOR; in type position it is a pointer marker, never exclusive-or
// (spec.md §4.2).
func (p *Parser) parseType() (ast.TypeData, bool) {
	var depth uint16
	for p.lx.Current().Type == ast.BITWISE_XOR {
		depth++
		p.lx.Advance(1)
	}

	var typ ast.TypeData
	typ.PointerDepth = depth

	tok := p.lx.Current()
	switch {
	case tok.Kind() == ast.KindTypeKeyword:
		prim, ok := ast.PrimitiveFor[tok.Type]
		if !ok {
			p.errorHere("unknown primitive type")
			return ast.TypeData{}, false
		}
		typ.Kind = ast.KindPrimitive
		typ.Primitive = prim
		p.lx.Advance(1)

	case tok.Type == ast.KW_PROC:
		sig, ok := p.parseProcTypeSignature()
		if !ok {
			return ast.TypeData{}, false
		}
		typ.Kind = ast.KindProcedure
		typ.Parameters = sig.Parameters
		typ.ReturnType = sig.ReturnType
		typ.Flags |= sig.Flags

	case tok.Type == ast.IDENTIFIER:
		segments, ok := p.parseNamespacedPath()
		if !ok {
			return ast.TypeData{}, false
		}
		name := joinNamespacePath(segments)

		// A bare generic type-parameter name (e.g. `T` inside a generic
		// proc/struct body) resolves through the temporary type alias
		// installed for the duration of that body's parse, rather than
		// being treated as an unresolved struct reference.
		if len(segments) == 1 && p.Tbl.TypeAliasExists(name) {
			aliased := p.Tbl.LookupTypeAlias(name).Clone()
			typ.Kind = aliased.Kind
			typ.Name = aliased.Name
			typ.Primitive = aliased.Primitive
			typ.Flags |= aliased.Flags
			typ.Parameters = aliased.Parameters
			typ.ReturnType = aliased.ReturnType
			typ.SymRef = aliased.SymRef
			typ.PointerDepth += aliased.PointerDepth
			break
		}

		canonical := p.Tbl.GetCanonicalTypeName(name)
		typ.Kind = ast.KindStruct
		typ.Name = canonical

		if p.lx.Current().Type == ast.LESS_THAN {
			params, ok := p.parseGenericArgList()
			if !ok {
				return ast.TypeData{}, false
			}
			typ.Parameters = &params
		}

	default:
		p.errorHere("expected a type")
		return ast.TypeData{}, false
	}

	for p.lx.Current().Type == ast.LSQUARE {
		p.lx.Advance(1)
		if p.lx.Current().Type == ast.RSQUARE {
			typ.ArrayLengths = append(typ.ArrayLengths, 0)
			p.lx.Advance(1)
			continue
		}
		lenTok := p.lx.Current()
		if lenTok.Type != ast.INTEGER_LITERAL {
			p.errorHere("expected an array length")
			return ast.TypeData{}, false
		}
		n, err := strconv.ParseUint(lenTok.Value, 10, 32)
		if err != nil {
			p.errorAt(lenTok.Pos, lenTok.Line, "malformed array length")
			return ast.TypeData{}, false
		}
		typ.ArrayLengths = append(typ.ArrayLengths, uint32(n))
		p.lx.Advance(1)
		if !p.expect(ast.RSQUARE, "expected ']'") {
			return ast.TypeData{}, false
		}
	}

	if depth > 0 {
		typ.Flags |= ast.POINTER
	}
	return typ, true
}

// parseProcTypeSignature parses the `proc(T, T) -> T` shape used both for
// procedure types in parseType and for an anonymous proc value's signature
// (parseAnonymousProc).
func (p *Parser) parseProcTypeSignature() (ast.TypeData, bool) {
	var sig ast.TypeData
	sig.Kind = ast.KindProcedure
	p.lx.Advance(1) // 'proc'

	if !p.expect(ast.LPAREN, "expected '(' after proc") {
		return ast.TypeData{}, false
	}

	var params []ast.TypeData
	for p.lx.Current().Type != ast.RPAREN {
		if p.lx.Current().Type == ast.ELLIPSIS {
			sig.Flags |= ast.PROC_VARARGS
			p.lx.Advance(1)
			break
		}
		pt, ok := p.parseType()
		if !ok {
			return ast.TypeData{}, false
		}
		params = append(params, pt)
		if p.lx.Current().Type == ast.COMMA {
			p.lx.Advance(1)
		}
	}
	if !p.expect(ast.RPAREN, "expected ')'") {
		return ast.TypeData{}, false
	}
	sig.Parameters = &params

	if p.lx.Current().Type == ast.ARROW {
		p.lx.Advance(1)
		ret, ok := p.parseType()
		if !ok {
			return ast.TypeData{}, false
		}
		sig.ReturnType = &ret
	} else {
		sig.ReturnType = &ast.TypeData{Kind: ast.KindPrimitive, Primitive: ast.Void}
	}

	return sig, true
}

// parseNamespacedPath reads an `ident(\ident)*` chain, the spelling an
// identifier or a struct/type name may take across namespace boundaries
// (spec.md §6: `\` is the namespace separator, `::` is constant
// type-assignment and unrelated to path segments).
func (p *Parser) parseNamespacedPath() ([]string, bool) {
	tok := p.lx.Current()
	if tok.Type != ast.IDENTIFIER {
		p.errorHere("expected an identifier")
		return nil, false
	}
	segments := []string{tok.Value}
	p.lx.Advance(1)

	for p.lx.Current().Type == ast.NAMESPACE_SEP {
		p.lx.Advance(1)
		next := p.lx.Current()
		if next.Type != ast.IDENTIFIER {
			p.errorHere("expected an identifier after '\\'")
			return nil, false
		}
		segments = append(segments, next.Value)
		p.lx.Advance(1)
	}
	return segments, true
}

// parseGenericArgList parses the `<T, U>` argument list following a
// generic type or procedure reference.
func (p *Parser) parseGenericArgList() ([]ast.TypeData, bool) {
	p.lx.Advance(1) // '<'
	var params []ast.TypeData
	for p.lx.Current().Type != ast.GREATER_THAN {
		t, ok := p.parseType()
		if !ok {
			return nil, false
		}
		params = append(params, t)
		if p.lx.Current().Type == ast.COMMA {
			p.lx.Advance(1)
		}
	}
	if !p.expect(ast.GREATER_THAN, "expected '>'") {
		return nil, false
	}
	return params, true
}

// parseGenericParamNames parses the `<T, U>` type-parameter declaration
// list on a generic procedure or struct definition; these names are
// installed as type aliases for the duration of the body only, per
// spec.md §4.3.
func (p *Parser) parseGenericParamNames() ([]string, bool) {
	p.lx.Advance(1) // '<'
	var names []string
	for p.lx.Current().Type != ast.GREATER_THAN {
		tok := p.lx.Current()
		if tok.Type != ast.IDENTIFIER {
			p.errorHere("expected a type parameter name")
			return nil, false
		}
		names = append(names, tok.Value)
		p.lx.Advance(1)
		if p.lx.Current().Type == ast.COMMA {
			p.lx.Advance(1)
		}
	}
	if !p.expect(ast.GREATER_THAN, "expected '>'") {
		return nil, false
	}
	return names, true
}
