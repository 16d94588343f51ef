package parser

import (
	"fmt"
	"strconv"

	"github.com/tak-lang/tak/internal/ast"
)

// parsePostfixChain repeatedly applies subscript `[...]` and call `(...)`
// to node, in order of appearance, per spec.md §4.2. Member access is
// handled earlier, as part of identifier resolution, matching the
// original's parse_member_access being invoked immediately after a symbol
// lookup rather than as a generic postfix operator. A `<` immediately
// following a bare reference to a generic procedure base is its explicit
// type-argument list (spec.md §4.3/§4.4.2/§8 Scenario 2's `id<i32>(1)`),
// the same angle-bracket syntax `parseGenericArgList` already parses for
// generic struct type references; `[` always stays a subscript.
func (p *Parser) parsePostfixChain(node ast.Node) (ast.Node, bool) {
	for {
		switch p.lx.Current().Type {
		case ast.LESS_THAN:
			ident, isIdent := node.Data.(*ast.NIdentifier)
			if !isIdent {
				return node, true
			}
			base := p.Tbl.LookupUniqueSymbol(ident.SymbolIndex)
			if !base.IsGenericBase() {
				return node, true
			}
			n, ok := p.parseGenericTypeArgs(node, base)
			if !ok {
				return ast.Node{}, false
			}
			node = n
		case ast.LSQUARE:
			n, ok := p.parseSubscript(node)
			if !ok {
				return ast.Node{}, false
			}
			node = n
		case ast.LPAREN:
			n, ok := p.parseCall(node)
			if !ok {
				return ast.Node{}, false
			}
			node = n
		default:
			return node, true
		}
	}
}

// parseGenericTypeArgs parses `<Type, ...>` following a reference to a
// generic procedure base, installs (or reuses) the concrete permutation
// symbol it names via entity.Table.CreateGenericProcPermutation, and
// rewrites node to reference that permutation instead of the base. The
// permutation's signature and body stay unresolved (its Symbol carries
// GENPERM) until the post-parser's generic-procedure sweep re-parses the
// base against these type arguments (spec.md §4.4.2). The permutation
// symbol's own mangled name still uses brackets (`id[i32]`, entity.Table's
// internal convention) even though the call-site surface syntax is `<>`.
func (p *Parser) parseGenericTypeArgs(node ast.Node, base *ast.Symbol) (ast.Node, bool) {
	loc := p.loc()

	typeArgs, ok := p.parseGenericArgList()
	if !ok {
		return ast.Node{}, false
	}
	if len(typeArgs) != len(base.GenericTypeNames) {
		p.errorAt(loc.Pos, loc.Line, fmt.Sprintf(
			"wrong number of generic type arguments for %q: expected %d, got %d",
			base.Name, len(base.GenericTypeNames), len(typeArgs)))
		return ast.Node{}, false
	}

	perm := p.Tbl.CreateGenericProcPermutation(base, typeArgs)
	ident := &ast.NIdentifier{Name: perm.Name, SymbolIndex: perm.SymbolIndex}
	return ast.Node{Loc: loc, Data: ident}, true
}

func (p *Parser) parseSubscript(target ast.Node) (ast.Node, bool) {
	loc := p.loc()
	p.lx.Advance(1) // '['
	index, ok := p.parse(true, false)
	if !ok {
		return ast.Node{}, false
	}
	if !p.expect(ast.RSQUARE, "expected ']'") {
		return ast.Node{}, false
	}
	return ast.Node{Loc: loc, Data: &ast.NSubscript{Target: target, Index: index}}, true
}

func (p *Parser) parseCall(callee ast.Node) (ast.Node, bool) {
	loc := p.loc()
	p.lx.Advance(1) // '('
	var args []ast.Node
	for p.lx.Current().Type != ast.RPAREN {
		arg, ok := p.parse(true, false)
		if !ok {
			return ast.Node{}, false
		}
		args = append(args, arg)
		if p.lx.Current().Type == ast.COMMA {
			p.lx.Advance(1)
		}
	}
	if !p.expect(ast.RPAREN, "expected ')'") {
		return ast.Node{}, false
	}
	return ast.Node{Loc: loc, Data: &ast.NCall{Callee: callee, Args: args}}, true
}

// parseBinaryRHS implements the Pratt precedence climb of spec.md §4.2's
// operator table: while the lookahead token is a binary operator at or
// above minPrec, consume it, parse its right operand (recursively
// absorbing any higher-or-equal-precedence operators that follow), and
// fold into a left-associated (or right-associated, for assignment) tree.
func (p *Parser) parseBinaryRHS(minPrec int, left ast.Node) (ast.Node, bool) {
	for {
		tok := p.lx.Current()
		prec := tok.Type.BinaryPrecedence()
		if prec < minPrec {
			return left, true
		}

		op := tok.Type
		opLoc := p.loc()
		p.lx.Advance(1)

		right, ok := p.parsePrimaryOrKeyword()
		if !ok {
			return ast.Node{}, false
		}
		right, ok = p.parsePostfixChain(right)
		if !ok {
			return ast.Node{}, false
		}

		for {
			next := p.lx.Current().Type
			nextPrec := next.BinaryPrecedence()
			if nextPrec < 0 {
				break
			}
			if nextPrec > prec || (nextPrec == prec && next.IsRightAssociative()) {
				right, ok = p.parseBinaryRHS(nextPrec, right)
				if !ok {
					return ast.Node{}, false
				}
				continue
			}
			break
		}

		left = ast.Node{Loc: opLoc, Data: &ast.NBinary{Op: op, Left: left, Right: right}}
	}
}

func (p *Parser) parseUnary() (ast.Node, bool) {
	loc := p.loc()
	op := p.lx.Current().Type
	p.lx.Advance(1)

	operand, ok := p.parsePrimaryOrKeyword()
	if !ok {
		return ast.Node{}, false
	}
	operand, ok = p.parsePostfixChain(operand)
	if !ok {
		return ast.Node{}, false
	}
	return ast.Node{Loc: loc, Data: &ast.NUnary{Op: op, Operand: operand}}, true
}

func (p *Parser) parseSingletonLiteral() (ast.Node, bool) {
	tok := p.lx.Current()
	loc := p.loc()

	var kind ast.LiteralKind
	switch tok.Type {
	case ast.INTEGER_LITERAL, ast.HEX_LITERAL:
		kind = ast.LitInt
	case ast.FLOAT_LITERAL:
		kind = ast.LitFloat
	case ast.STRING_LITERAL, ast.RAW_STRING_LITERAL:
		kind = ast.LitString
	case ast.CHARACTER_LITERAL:
		kind = ast.LitChar
	case ast.BOOLEAN_LITERAL:
		kind = ast.LitBool
	case ast.NULLPTR, ast.KW_NULLPTR:
		kind = ast.LitNullptr
	default:
		p.errorHere("expected a literal")
		return ast.Node{}, false
	}

	p.lx.Advance(1)
	return ast.Node{Loc: loc, Data: &ast.NSingletonLiteral{Kind: kind, Text: tok.Value}}, true
}

func (p *Parser) parseBracedExpression() (ast.Node, bool) {
	loc := p.loc()
	p.lx.Advance(1) // '{'

	var elements []ast.Node
	for p.lx.Current().Type != ast.RBRACE {
		el, ok := p.parse(true, false)
		if !ok {
			return ast.Node{}, false
		}
		elements = append(elements, el)
		if p.lx.Current().Type == ast.COMMA {
			p.lx.Advance(1)
		}
	}
	if !p.expect(ast.RBRACE, "expected '}'") {
		return ast.Node{}, false
	}
	return ast.Node{Loc: loc, Data: &ast.NBracedExpression{Elements: elements}}, true
}

// parseDirective handles the `@include "path"` compiler directive,
// spec.md §4.2: it appends the path to the parser's include queue and
// yields an empty node (the driver loop consumes Includes separately).
func (p *Parser) parseDirective() (ast.Node, bool) {
	loc := p.loc()
	p.lx.Advance(1) // '@'

	tok := p.lx.Current()
	if tok.Type != ast.IDENTIFIER || tok.Value != "include" {
		p.errorHere("unknown compiler directive")
		return ast.Node{}, false
	}
	p.lx.Advance(1)

	pathTok := p.lx.Current()
	if pathTok.Type != ast.STRING_LITERAL {
		p.errorHere("expected a string literal path after @include")
		return ast.Node{}, false
	}
	unquoted, err := strconv.Unquote(pathTok.Value)
	if err != nil {
		unquoted = pathTok.Value
	}
	p.lx.Advance(1)

	p.Includes = append(p.Includes, Include{Path: unquoted, Pos: loc.Pos, Line: loc.Line, File: loc.File})
	return ast.Node{Loc: loc, Data: nil}, true
}
