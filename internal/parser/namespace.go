package parser

import (
	"strings"

	"github.com/tak-lang/tak/internal/ast"
)

// parseStructDef parses `struct Name { member : type, ... }`, grounded on
// original_source/tak/src/parser/structdef.cpp. The type table entry is
// created before members are parsed so a member may reference the struct
// itself through a pointer.
func (p *Parser) parseStructDef() (ast.Node, bool) {
	loc := p.loc()
	if len(p.Tbl.ScopeStack) > 1 {
		p.errorHere("struct definition at non-global scope")
		return ast.Node{}, false
	}
	p.lx.Advance(1) // 'struct'

	var generics []string
	nameTok := p.lx.Current()
	if nameTok.Type != ast.IDENTIFIER {
		p.errorHere("expected a struct name")
		return ast.Node{}, false
	}
	typeName := p.Tbl.NamespaceAsString() + nameTok.Value
	p.lx.Advance(1)

	if p.lx.Current().Type == ast.LESS_THAN {
		g, ok := p.parseGenericParamNames()
		if !ok {
			return ast.Node{}, false
		}
		generics = g
	}

	replacing := false
	if p.Tbl.TypeExists(typeName) {
		ut := p.Tbl.LookupType(typeName)
		if !ut.Flags.Has(ast.PLACEHOLDER) {
			p.errorHere("naming conflict: this type already exists")
			return ast.Node{}, false
		}
		ut.Flags &^= ast.PLACEHOLDER
		ut.Members = nil
		replacing = true
	}
	if p.Tbl.TypeAliasExists(typeName) {
		p.errorHere("naming conflict: a type alias already has this name")
		return ast.Node{}, false
	}
	if !replacing {
		p.Tbl.CreateType(typeName, nil)
	}

	for _, g := range generics {
		p.Tbl.CreateTypeAlias(g, ast.TypeData{Kind: ast.KindStruct, Name: g})
	}
	defer func() {
		for _, g := range generics {
			p.Tbl.DeleteTypeAlias(g)
		}
	}()

	if !p.expect(ast.LBRACE, "expected '{'") {
		return ast.Node{}, false
	}

	var members []ast.MemberData
	for p.lx.Current().Type != ast.RBRACE {
		mtok := p.lx.Current()
		if mtok.Type != ast.IDENTIFIER {
			p.errorHere("expected a member name")
			return ast.Node{}, false
		}
		mname := mtok.Value
		mPos, mLine := mtok.Pos, mtok.Line
		p.lx.Advance(1)

		isConst := false
		switch p.lx.Current().Type {
		case ast.DOUBLE_COLON:
			isConst = true
			p.lx.Advance(1)
		case ast.COLON:
			p.lx.Advance(1)
		default:
			p.errorHere("expected ':' or '::' after member name")
			return ast.Node{}, false
		}

		mtyp, ok := p.parseType()
		if !ok {
			return ast.Node{}, false
		}
		if mtyp.Kind == ast.KindProcedure && mtyp.PointerDepth < 1 {
			p.errorAt(mPos, mLine, "procedures cannot be used as struct members")
			return ast.Node{}, false
		}
		if mtyp.Kind == ast.KindStruct && mtyp.Name == typeName && mtyp.PointerDepth < 1 {
			p.errorAt(mPos, mLine, "a struct cannot contain itself")
			return ast.Node{}, false
		}
		for _, n := range mtyp.ArrayLengths {
			if n == 0 {
				p.errorAt(mPos, mLine, "a struct cannot contain an array with an inferred size")
				return ast.Node{}, false
			}
		}

		if isConst {
			mtyp.Flags |= ast.CONSTANT | ast.DEFAULT_INIT
		} else {
			mtyp.Flags |= ast.DEFAULT_INIT
		}
		members = append(members, ast.MemberData{Name: mname, Type: mtyp})

		if p.lx.Current().Type == ast.COMMA || p.lx.Current().Type == ast.SEMICOLON {
			p.lx.Advance(1)
		}
	}
	if !p.expect(ast.RBRACE, "expected '}'") {
		return ast.Node{}, false
	}

	p.Tbl.LookupType(typeName).Members = members
	if len(generics) > 0 {
		p.Tbl.LookupType(typeName).Flags |= ast.GENBASE
		p.Tbl.LookupType(typeName).GenericTypeNames = generics
	}

	return ast.Node{Loc: loc, Data: &ast.NStructDef{Name: typeName, Members: members, Generic: generics}}, true
}

// parseEnumDef parses `enum Name : underlying { A, B = expr, ... }`. No
// original_source file for enums was retrieved; grounded directly on
// spec.md §4.2's enum description and structdef.cpp's general member-list
// shape.
func (p *Parser) parseEnumDef() (ast.Node, bool) {
	loc := p.loc()
	if len(p.Tbl.ScopeStack) > 1 {
		p.errorHere("enum definition at non-global scope")
		return ast.Node{}, false
	}
	p.lx.Advance(1) // 'enum'

	nameTok := p.lx.Current()
	if nameTok.Type != ast.IDENTIFIER {
		p.errorHere("expected an enum name")
		return ast.Node{}, false
	}
	name := p.Tbl.NamespaceAsString() + nameTok.Value
	p.lx.Advance(1)

	underlying := ast.TypeData{Kind: ast.KindPrimitive, Primitive: ast.I32}
	if p.lx.Current().Type == ast.COLON {
		p.lx.Advance(1)
		u, ok := p.parseType()
		if !ok {
			return ast.Node{}, false
		}
		underlying = u
	}

	if !p.expect(ast.LBRACE, "expected '{'") {
		return ast.Node{}, false
	}

	var members []ast.EnumMember
	for p.lx.Current().Type != ast.RBRACE {
		mtok := p.lx.Current()
		if mtok.Type != ast.IDENTIFIER {
			p.errorHere("expected an enum member name")
			return ast.Node{}, false
		}
		p.lx.Advance(1)

		var value *ast.Node
		if p.lx.Current().Type == ast.VALUE_ASSIGNMENT {
			p.lx.Advance(1)
			v, ok := p.parse(true, false)
			if !ok {
				return ast.Node{}, false
			}
			value = &v
		}
		members = append(members, ast.EnumMember{Name: mtok.Value, Value: value})
		if p.lx.Current().Type == ast.COMMA {
			p.lx.Advance(1)
		}
	}
	if !p.expect(ast.RBRACE, "expected '}'") {
		return ast.Node{}, false
	}

	p.Tbl.CreateTypeAlias(name, underlying)
	return ast.Node{Loc: loc, Data: &ast.NEnumDef{Name: name, UnderlyingType: underlying, Members: members}}, true
}

// parseNamespace parses `namespace Name { decl* }`, grounded on
// original_source/tak/src/parser/namespaces.cpp's tak::parse_namespace.
func (p *Parser) parseNamespace() (ast.Node, bool) {
	loc := p.loc()
	p.lx.Advance(1) // 'namespace'

	if len(p.Tbl.ScopeStack) > 1 {
		p.errorHere("namespace declaration at non-global scope")
		return ast.Node{}, false
	}

	nameTok := p.lx.Current()
	if nameTok.Type != ast.IDENTIFIER {
		p.errorHere("expected a namespace identifier")
		return ast.Node{}, false
	}
	if !p.Tbl.EnterNamespace(nameTok.Value) {
		p.errorHere("nested namespace has the same name as a parent")
		return ast.Node{}, false
	}
	defer p.Tbl.LeaveNamespace()

	if p.lx.Peek(1).Type != ast.LBRACE {
		p.errorHere("expected '{' (beginning of namespace block)")
		return ast.Node{}, false
	}
	fullPath := p.Tbl.NamespaceAsString()
	p.lx.Advance(2)

	var body []ast.Node
	for p.lx.Current().Type != ast.RBRACE {
		if p.lx.Current().Type == ast.EOF {
			p.errorHere("unexpected end of file, expected '}'")
			return ast.Node{}, false
		}
		n, ok := p.parse(false, false)
		if !ok {
			return ast.Node{}, false
		}
		if n.Data != nil {
			body = append(body, n)
		}
	}
	p.lx.Advance(1)

	return ast.Node{Loc: loc, Data: &ast.NNamespaceDecl{Path: strings.Split(strings.Trim(fullPath, "\\"), "\\"), Body: body}}, true
}

// parseCompose parses `compose TypeName { proc-decls }`, attaching each
// procedure whose first parameter is `^TypeName` as a method on the type,
// grounded on original_source/tak/src/parser/compose.cpp's
// compose_add_type_method.
func (p *Parser) parseCompose() (ast.Node, bool) {
	loc := p.loc()
	if len(p.Tbl.NamespaceStack) > 0 {
		p.errorHere("cannot use 'compose' within a namespace")
		return ast.Node{}, false
	}
	if len(p.Tbl.ScopeStack) > 1 {
		p.errorHere("use of 'compose' at non-global scope")
		return ast.Node{}, false
	}
	p.lx.Advance(1) // 'compose'

	segments, ok := p.parseNamespacedPath()
	if !ok {
		return ast.Node{}, false
	}
	typeName := "\\" + joinNamespacePath(segments)

	if p.Tbl.TypeAliasExists(typeName) {
		p.errorHere("type aliases cannot be used with 'compose'")
		return ast.Node{}, false
	}
	if !p.Tbl.TypeExists(typeName) {
		p.Tbl.CreatePlaceholderType(typeName, loc.File, loc.Pos, loc.Line)
	}

	for _, chunk := range segments[:len(segments)-1] {
		if !p.Tbl.EnterNamespace(chunk) {
			p.errorHere("namespace within compose target has already been entered")
			return ast.Node{}, false
		}
	}
	defer func() {
		for range segments[:len(segments)-1] {
			p.Tbl.LeaveNamespace()
		}
	}()

	once := p.lx.Current().Type != ast.LBRACE
	if !once {
		p.lx.Advance(1)
	}

	var procs []ast.NProcDecl
	for {
		n, ok := p.parse(false, false)
		if !ok {
			return ast.Node{}, false
		}
		if proc, isProc := n.Data.(*ast.NProcDecl); isProc {
			procs = append(procs, *proc)
			p.attachComposeMethod(typeName, proc)
		} else if n.Data != nil {
			p.errorAt(n.Loc.Pos, n.Loc.Line, "only procedure declarations are valid within a compose block")
			return ast.Node{}, false
		}
		if once {
			break
		}
		if p.lx.Current().Type == ast.RBRACE {
			break
		}
	}
	if !once {
		if !p.expect(ast.RBRACE, "expected '}'") {
			return ast.Node{}, false
		}
	}

	return ast.Node{Loc: loc, Data: &ast.NCompose{StructName: typeName, Procs: procs}}, true
}

// attachComposeMethod registers proc as a method on typeName's member list
// when its first parameter is `^typeName` with no array dimensions.
func (p *Parser) attachComposeMethod(typeName string, proc *ast.NProcDecl) {
	if len(proc.Params) == 0 {
		return
	}
	first := proc.Params[0].Type
	if first.Name != typeName || first.PointerDepth != 1 || len(first.ArrayLengths) != 0 {
		return
	}

	methodName := proc.Identifier.Name
	if i := strings.LastIndexByte(methodName, '\\'); i >= 0 {
		methodName = methodName[i+1:]
	}

	ut := p.Tbl.LookupType(typeName)
	for _, m := range ut.Members {
		if m.Name == methodName {
			p.errorAt(0, 0, "cannot create method "+methodName+" because type "+typeName+" already has a member of the same name")
			return
		}
	}

	sym := p.Tbl.LookupUniqueSymbol(proc.Identifier.SymbolIndex)
	ut.Members = append(ut.Members, ast.MemberData{Name: methodName, Type: ast.TypeData{SymRef: sym.SymbolIndex, Flags: ast.PROC_METHOD}})
	sym.Flags |= ast.PROC_METHOD
}
