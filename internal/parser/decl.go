package parser

import (
	"fmt"

	"github.com/tak-lang/tak/internal/ast"
)

// parseIdentifierOrDecl implements spec.md §4.2's identifier-side
// dispatch: an identifier immediately followed by `:` or `::` begins a
// declaration; otherwise it is a reference (which may turn into a member
// access, and may create a forward-reference placeholder).
func (p *Parser) parseIdentifierOrDecl() (ast.Node, bool) {
	next := p.lx.Peek(1)
	if next.Type == ast.COLON || next.Type == ast.DOUBLE_COLON {
		return p.parseDecl()
	}
	return p.parseIdentifierRef()
}

// parseIdentifierRef resolves a (possibly namespaced) identifier reference
// against the entity table, creating a placeholder symbol at global scope
// if nothing canonical currently exists (spec.md §4.2: "forward references
// thus always resolve at parse time to some index"), then folds in a
// dotted member-access path if one follows.
func (p *Parser) parseIdentifierRef() (ast.Node, bool) {
	loc := p.loc()
	segments, ok := p.parseNamespacedPath()
	if !ok {
		return ast.Node{}, false
	}
	name := joinNamespacePath(segments)
	canonical := p.Tbl.GetCanonicalSymName(name)

	var symIdx uint32
	if p.Tbl.ScopedSymbolExists(canonical) {
		symIdx = p.Tbl.LookupScopedSymbol(canonical)
	} else {
		symIdx = p.Tbl.CreatePlaceholderSymbol(canonical, loc.File, loc.Pos, loc.Line)
	}

	if p.lx.Current().Type == ast.DOT {
		return p.parseMemberAccess(symIdx, loc, name)
	}
	return ast.Node{Loc: loc, Data: &ast.NIdentifier{Name: name, SymbolIndex: symIdx}}, true
}

// parseMemberAccess reads a `.ident(.ident)*` chain following a base
// identifier, grounded in original_source/tak/src/parser/ident.cpp's
// parse_member_access (recursive descent through sub-struct members,
// stopping the dotted path when it stops designating a further struct).
// Unlike the original, struct-member resolution of the intermediate path
// is left to the checker (spec.md §4.5): the parser only records the
// dotted path textually, since the base symbol's type may still be a
// placeholder at parse time.
func (p *Parser) parseMemberAccess(symIdx uint32, loc ast.Loc, name string) (ast.Node, bool) {
	var path []string
	for p.lx.Current().Type == ast.DOT {
		p.lx.Advance(1)
		tok := p.lx.Current()
		if tok.Type != ast.IDENTIFIER {
			p.errorHere("expected a struct member name")
			return ast.Node{}, false
		}
		path = append(path, tok.Value)
		p.lx.Advance(1)
	}

	base := ast.Node{Loc: loc, Data: &ast.NIdentifier{Name: name, SymbolIndex: symIdx}}
	return ast.Node{Loc: loc, Data: &ast.NMemberAccess{Target: base, Path: path}}, true
}

// parseDecl implements spec.md §4.2's three declaration forms:
// `ident : type` (typed, optionally initialized), `ident := expr`
// (inferred), and `ident :: expr` (constant) — the last two folding into
// a procedure declaration when the RHS starts with `proc`.
func (p *Parser) parseDecl() (ast.Node, bool) {
	loc := p.loc()
	name := p.lx.Current().Value
	p.lx.Advance(1) // identifier

	if p.lx.Current().Type == ast.DOUBLE_COLON {
		p.lx.Advance(1)
		if p.lx.Current().Type == ast.KW_PROC {
			return p.parseProcDecl(loc, name)
		}
		return p.parseConstOrInferredDecl(loc, name, true)
	}

	p.lx.Advance(1) // ':'
	if p.lx.Current().Type == ast.VALUE_ASSIGNMENT {
		p.lx.Advance(1)
		if p.lx.Current().Type == ast.KW_PROC {
			return p.parseProcDecl(loc, name)
		}
		return p.parseConstOrInferredDecl(loc, name, false)
	}

	typ, ok := p.parseType()
	if !ok {
		return ast.Node{}, false
	}

	sym := p.declareSymbol(name, loc, typ, ast.TypeFlags(0))
	if sym == nil {
		return ast.Node{}, false
	}

	var initPtr *ast.Node
	if p.lx.Current().Type == ast.VALUE_ASSIGNMENT {
		p.lx.Advance(1)
		init, ok := p.parse(true, false)
		if !ok {
			return ast.Node{}, false
		}
		initPtr = &init
	} else {
		typ.Flags |= ast.UNINITIALIZED
		sym.Type.Flags |= ast.UNINITIALIZED
	}

	ident := &ast.NIdentifier{Name: name, SymbolIndex: sym.SymbolIndex}
	return ast.Node{Loc: loc, Data: &ast.NVarDecl{Identifier: ident, Type: &typ, Init: initPtr}}, true
}

// parseConstOrInferredDecl parses the RHS expression of an `:=`/`::`
// declaration and installs a symbol whose TypeData the checker fills in
// when it visits the declaration (spec.md §3's NON_CONCRETE / INFERRED promotion contract).
func (p *Parser) parseConstOrInferredDecl(loc ast.Loc, name string, isConst bool) (ast.Node, bool) {
	init, ok := p.parse(true, false)
	if !ok {
		return ast.Node{}, false
	}

	flags := ast.INFERRED
	if isConst {
		flags |= ast.CONSTANT
	}
	sym := p.declareSymbol(name, loc, ast.TypeData{Flags: ast.INFERRED}, flags)
	if sym == nil {
		return ast.Node{}, false
	}

	ident := &ast.NIdentifier{Name: name, SymbolIndex: sym.SymbolIndex}
	return ast.Node{Loc: loc, Data: &ast.NVarDecl{
		Identifier: ident,
		Init:       &init,
		IsConstant: isConst,
		IsInferred: true,
	}}, true
}

// declareSymbol installs name as a symbol visible at the current scope,
// rewriting a matching placeholder in place rather than creating a
// duplicate entry (spec.md §3/§4.3: "a subsequent real declaration with
// the same canonical name rewrites the same entry").
func (p *Parser) declareSymbol(name string, loc ast.Loc, typ ast.TypeData, flags ast.TypeFlags) *ast.Symbol {
	key := name
	if len(p.Tbl.ScopeStack) == 1 {
		key = p.Tbl.NamespaceAsString() + name
	}

	if p.Tbl.ScopedSymbolExistsAtCurrentScope(key) {
		idx := p.Tbl.LookupScopedSymbol(key)
		sym := p.Tbl.LookupUniqueSymbol(idx)
		if sym.IsPlaceholder() {
			typ.Flags |= flags
			sym.Type = typ
			sym.Flags &^= ast.PLACEHOLDER
			sym.SrcPos = loc.Pos
			sym.LineNumber = loc.Line
			sym.File = loc.File
			return sym
		}
		p.errorAt(loc.Pos, loc.Line, fmt.Sprintf("redeclaration of %q: a symbol with this name already exists in this scope", name))
		return nil
	}

	kind := typ.Kind
	if kind == ast.KindNone {
		kind = ast.KindPrimitive
	}
	return p.Tbl.CreateSymbol(name, loc.File, loc.Pos, loc.Line, kind, flags, &typ)
}

// parseProcDecl parses `proc <T,U>(name: type, ...) -> RetType { ... }`
// (or a trailing `foreign`/`foreign_c` in place of a body). Generic type
// parameter names are installed as temporary type aliases for the
// duration of signature-and-body parsing only, matching
// original_source/tak/src/postparser/generic_procedures.cpp's convention
// of the base template being parsed against its own placeholder
// parameter names (spec.md §4.3); the checker skips the base and checks
// each re-parsed permutation instead.
func (p *Parser) parseProcDecl(loc ast.Loc, name string) (ast.Node, bool) {
	p.lx.Advance(1) // 'proc'

	var generics []string
	if p.lx.Current().Type == ast.LESS_THAN {
		g, ok := p.parseGenericParamNames()
		if !ok {
			return ast.Node{}, false
		}
		generics = g
		for _, g := range generics {
			p.Tbl.CreateTypeAlias(g, ast.TypeData{Kind: ast.KindPrimitive, Flags: ast.NON_CONCRETE})
		}
		defer func() {
			for _, g := range generics {
				p.Tbl.DeleteTypeAlias(g)
			}
		}()
	}

	params, paramTypes, retType, variadic, ok := p.parseProcParamsAndReturn()
	if !ok {
		return ast.Node{}, false
	}

	sigType := ast.TypeData{
		Kind:       ast.KindProcedure,
		Parameters: &paramTypes,
		ReturnType: &retType,
	}
	if variadic {
		sigType.Flags |= ast.PROC_VARARGS
	}
	if len(generics) > 0 {
		sigType.Flags |= ast.GENBASE
	}

	sym := p.declareSymbol(name, loc, sigType, ast.TypeFlags(0))
	if sym == nil {
		return ast.Node{}, false
	}
	sym.GenericTypeNames = generics
	if len(generics) > 0 {
		sym.Flags |= ast.GENBASE
	}

	foreign, foreignC := false, false
	switch p.lx.Current().Type {
	case ast.KW_FOREIGN:
		foreign = true
		p.lx.Advance(1)
		sym.Flags |= ast.FOREIGN
	case ast.KW_FOREIGN_C:
		foreignC = true
		p.lx.Advance(1)
		sym.Flags |= ast.FOREIGN | ast.FOREIGN_C
	}

	ident := &ast.NIdentifier{Name: name, SymbolIndex: sym.SymbolIndex}
	decl := &ast.NProcDecl{
		Identifier:       ident,
		Params:           params,
		ReturnType:       &retType,
		GenericTypeNames: generics,
		Foreign:          foreign,
		ForeignC:         foreignC,
		Variadic:         variadic,
	}

	if foreign || foreignC {
		return ast.Node{Loc: loc, Data: decl}, true
	}

	p.procDepth++
	p.Tbl.PushScope()
	for _, prm := range params {
		p.Tbl.CreateSymbol(prm.Name, loc.File, loc.Pos, loc.Line, prm.Type.Kind, ast.PROCARG, &prm.Type)
	}

	body, ok := p.parseStatementList()
	p.Tbl.PopScope()
	p.procDepth--
	if !ok {
		return ast.Node{}, false
	}
	decl.Body = body
	return ast.Node{Loc: loc, Data: decl}, true
}

// parseProcParamsAndReturn parses the `(name: type, ...) -> RetType` shape
// shared by a named procedure declaration and
// (via internal/parser's generic-reparse entry point) a generic
// permutation's re-parsed signature. The current token must be '('.
func (p *Parser) parseProcParamsAndReturn() ([]ast.ProcParam, []ast.TypeData, ast.TypeData, bool, bool) {
	if !p.expect(ast.LPAREN, "expected '(' after proc") {
		return nil, nil, ast.TypeData{}, false, false
	}

	var params []ast.ProcParam
	var paramTypes []ast.TypeData
	variadic := false
	for p.lx.Current().Type != ast.RPAREN {
		if p.lx.Current().Type == ast.ELLIPSIS {
			variadic = true
			p.lx.Advance(1)
			break
		}
		ptok := p.lx.Current()
		if ptok.Type != ast.IDENTIFIER {
			p.errorHere("expected a parameter name")
			return nil, nil, ast.TypeData{}, false, false
		}
		pname := ptok.Value
		p.lx.Advance(1)
		if !p.expect(ast.COLON, "expected ':' after parameter name") {
			return nil, nil, ast.TypeData{}, false, false
		}
		ptyp, ok := p.parseType()
		if !ok {
			return nil, nil, ast.TypeData{}, false, false
		}
		ptyp.Flags |= ast.PROCARG
		params = append(params, ast.ProcParam{Name: pname, Type: ptyp})
		paramTypes = append(paramTypes, ptyp)
		if p.lx.Current().Type == ast.COMMA {
			p.lx.Advance(1)
		}
	}
	if !p.expect(ast.RPAREN, "expected ')'") {
		return nil, nil, ast.TypeData{}, false, false
	}

	retType := ast.TypeData{Kind: ast.KindPrimitive, Primitive: ast.Void}
	if p.lx.Current().Type == ast.ARROW {
		p.lx.Advance(1)
		rt, ok := p.parseType()
		if !ok {
			return nil, nil, ast.TypeData{}, false, false
		}
		retType = rt
	}

	return params, paramTypes, retType, variadic, true
}
