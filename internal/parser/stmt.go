package parser

import (
	"github.com/tak-lang/tak/internal/ast"
	"github.com/tak-lang/tak/internal/logger"
)

// parseStatementList parses a `{ stmt* }` block, the shape every loop,
// branch arm, procedure body, and compose method shares.
func (p *Parser) parseStatementList() ([]ast.Node, bool) {
	if !p.expect(ast.LBRACE, "expected '{'") {
		return nil, false
	}
	var stmts []ast.Node
	for p.lx.Current().Type != ast.RBRACE {
		if p.lx.Current().Type == ast.EOF {
			p.errorHere("unexpected end of file, expected '}'")
			return nil, false
		}
		stmt, ok := p.parse(false, false)
		if !ok {
			return nil, false
		}
		if stmt.Data != nil {
			stmts = append(stmts, stmt)
		}
	}
	if !p.expect(ast.RBRACE, "expected '}'") {
		return nil, false
	}
	return stmts, true
}

// parseKeyword dispatches on a leading keyword token, implementing
// original_source/tak/src/parser/begin.cpp's tak::parse_keyword switch in
// the teacher's recursive-descent style.
func (p *Parser) parseKeyword() (ast.Node, bool) {
	switch p.lx.Current().Type {
	case ast.KW_RET:
		return p.parseReturn()
	case ast.KW_BRK:
		return p.parseBreak()
	case ast.KW_CONT:
		return p.parseContinue()
	case ast.KW_FALLTHROUGH:
		return p.parseFallthrough()
	case ast.KW_IF:
		return p.parseBranch()
	case ast.KW_SWITCH:
		return p.parseSwitch()
	case ast.KW_WHILE:
		return p.parseWhile()
	case ast.KW_DO:
		return p.parseDoWhile()
	case ast.KW_FOR:
		return p.parseFor()
	case ast.KW_BLK:
		return p.parseBlk()
	case ast.KW_CAST:
		return p.parseCast()
	case ast.KW_SIZEOF:
		return p.parseSizeof()
	case ast.KW_DEFER:
		return p.parseDefer()
	case ast.KW_DEFER_IF:
		return p.parseDeferIf()
	case ast.KW_STRUCT:
		return p.parseStructDef()
	case ast.KW_ENUM:
		return p.parseEnumDef()
	case ast.KW_NAMESPACE:
		return p.parseNamespace()
	case ast.KW_COMPOSE:
		return p.parseCompose()
	case ast.KW_PROC:
		return p.parseAnonymousProc()
	default:
		p.errorHere("unexpected keyword")
		return ast.Node{}, false
	}
}

func (p *Parser) parseReturn() (ast.Node, bool) {
	loc := p.loc()
	p.lx.Advance(1)
	if p.lx.Current().Type == ast.SEMICOLON {
		p.lx.Advance(1)
		return ast.Node{Loc: loc, Data: &ast.NReturn{}}, true
	}
	val, ok := p.parse(false, false)
	if !ok {
		return ast.Node{}, false
	}
	return ast.Node{Loc: loc, Data: &ast.NReturn{Value: &val}}, true
}

func (p *Parser) parseBreak() (ast.Node, bool) {
	loc := p.loc()
	p.lx.Advance(1)
	if p.loopDepth == 0 {
		p.errorAt(loc.Pos, loc.Line, "'brk' used outside of a loop")
		return ast.Node{}, false
	}
	if !p.expect(ast.SEMICOLON, "expected ';'") {
		return ast.Node{}, false
	}
	return ast.Node{Loc: loc, Data: &ast.NBreak{}}, true
}

func (p *Parser) parseContinue() (ast.Node, bool) {
	loc := p.loc()
	p.lx.Advance(1)
	if p.loopDepth == 0 {
		p.errorAt(loc.Pos, loc.Line, "'cont' used outside of a loop")
		return ast.Node{}, false
	}
	if !p.expect(ast.SEMICOLON, "expected ';'") {
		return ast.Node{}, false
	}
	return ast.Node{Loc: loc, Data: &ast.NContinue{}}, true
}

// parseFallthrough parses `fallthrough;`, valid only as the last statement
// of a switch case or default body (spec.md's supplemented no-implicit-
// fallthrough rule).
func (p *Parser) parseFallthrough() (ast.Node, bool) {
	loc := p.loc()
	p.lx.Advance(1)
	if p.switchCaseDepth == 0 {
		p.errorAt(loc.Pos, loc.Line, "'fallthrough' used outside of a switch case")
		return ast.Node{}, false
	}
	if !p.expect(ast.SEMICOLON, "expected ';'") {
		return ast.Node{}, false
	}
	if p.lx.Current().Type != ast.RBRACE {
		p.errorAt(loc.Pos, loc.Line, "'fallthrough' must be the last statement in a case body")
		return ast.Node{}, false
	}
	return ast.Node{Loc: loc, Data: &ast.NFallthrough{}}, true
}

// parseBranch parses `if cond { } (elif cond { })* (else { })?`.
func (p *Parser) parseBranch() (ast.Node, bool) {
	loc := p.loc()
	p.lx.Advance(1) // 'if'

	cond, ok := p.parse(true, false)
	if !ok {
		return ast.Node{}, false
	}
	p.Tbl.PushScope()
	then, ok := p.parseStatementList()
	p.Tbl.PopScope()
	if !ok {
		return ast.Node{}, false
	}

	var elifs []ast.ElseIf
	for p.lx.Current().Type == ast.KW_ELIF {
		p.lx.Advance(1)
		ec, ok := p.parse(true, false)
		if !ok {
			return ast.Node{}, false
		}
		p.Tbl.PushScope()
		eb, ok := p.parseStatementList()
		p.Tbl.PopScope()
		if !ok {
			return ast.Node{}, false
		}
		elifs = append(elifs, ast.ElseIf{Cond: ec, Body: eb})
	}

	var elseBody []ast.Node
	if p.lx.Current().Type == ast.KW_ELSE {
		p.lx.Advance(1)
		p.Tbl.PushScope()
		eb, ok := p.parseStatementList()
		p.Tbl.PopScope()
		if !ok {
			return ast.Node{}, false
		}
		elseBody = eb
	}

	return ast.Node{Loc: loc, Data: &ast.NBranch{Cond: cond, Then: then, ElseIfs: elifs, Else: elseBody}}, true
}

// parseSwitch parses `switch target { case v { } ... default { } }`. A
// case's body carries Fallthrough when its last statement is an explicit
// `fallthrough;`, spec.md's supplemented no-implicit-fallthrough rule.
func (p *Parser) parseSwitch() (ast.Node, bool) {
	loc := p.loc()
	p.lx.Advance(1) // 'switch'

	target, ok := p.parse(true, false)
	if !ok {
		return ast.Node{}, false
	}
	if !p.expect(ast.LBRACE, "expected '{'") {
		return ast.Node{}, false
	}

	var cases []ast.SwitchCase
	var defaultBody []ast.Node
	sawDefault := false
	for p.lx.Current().Type != ast.RBRACE {
		switch p.lx.Current().Type {
		case ast.KW_CASE:
			p.lx.Advance(1)
			val, ok := p.parse(true, false)
			if !ok {
				return ast.Node{}, false
			}
			p.Tbl.PushScope()
			p.switchCaseDepth++
			body, ok := p.parseStatementList()
			p.switchCaseDepth--
			p.Tbl.PopScope()
			if !ok {
				return ast.Node{}, false
			}
			hasFallthrough := len(body) > 0
			if hasFallthrough {
				_, hasFallthrough = body[len(body)-1].Data.(*ast.NFallthrough)
			}
			cases = append(cases, ast.SwitchCase{Value: val, Body: body, Fallthrough: hasFallthrough})
		case ast.KW_DEFAULT:
			defaultLoc := p.loc()
			p.lx.Advance(1)
			p.Tbl.PushScope()
			p.switchCaseDepth++
			body, ok := p.parseStatementList()
			p.switchCaseDepth--
			p.Tbl.PopScope()
			if !ok {
				return ast.Node{}, false
			}
			if sawDefault {
				p.errorAt(defaultLoc.Pos, defaultLoc.Line, "a switch statement may only have one 'default' case")
				return ast.Node{}, false
			}
			sawDefault = true
			defaultBody = body
		case ast.EOF:
			p.errorHere("unexpected end of file, expected '}'")
			return ast.Node{}, false
		default:
			p.errorHere("expected 'case' or 'default'")
			return ast.Node{}, false
		}
	}
	if !p.expect(ast.RBRACE, "expected '}'") {
		return ast.Node{}, false
	}
	return ast.Node{Loc: loc, Data: &ast.NSwitch{Target: target, Cases: cases, Default: defaultBody}}, true
}

func (p *Parser) parseWhile() (ast.Node, bool) {
	loc := p.loc()
	p.lx.Advance(1)
	cond, ok := p.parse(true, false)
	if !ok {
		return ast.Node{}, false
	}
	p.loopDepth++
	p.Tbl.PushScope()
	body, ok := p.parseStatementList()
	p.Tbl.PopScope()
	p.loopDepth--
	if !ok {
		return ast.Node{}, false
	}
	return ast.Node{Loc: loc, Data: &ast.NWhile{Cond: cond, Body: body}}, true
}

// parseDoWhile parses `do { } while cond;`.
func (p *Parser) parseDoWhile() (ast.Node, bool) {
	loc := p.loc()
	p.lx.Advance(1) // 'do'
	p.loopDepth++
	p.Tbl.PushScope()
	body, ok := p.parseStatementList()
	p.Tbl.PopScope()
	p.loopDepth--
	if !ok {
		return ast.Node{}, false
	}
	if !p.expect(ast.KW_WHILE, "expected 'while' after do-block") {
		return ast.Node{}, false
	}
	cond, ok := p.parse(false, false)
	if !ok {
		return ast.Node{}, false
	}
	return ast.Node{Loc: loc, Data: &ast.NDoWhile{Cond: cond, Body: body}}, true
}

// parseFor parses `for init; cond; post { }`, each clause optional.
func (p *Parser) parseFor() (ast.Node, bool) {
	loc := p.loc()
	p.lx.Advance(1) // 'for'

	p.Tbl.PushScope()

	var initNode, condNode, postNode ast.Node
	if p.lx.Current().Type != ast.SEMICOLON {
		n, ok := p.parse(true, false)
		if !ok {
			p.Tbl.PopScope()
			return ast.Node{}, false
		}
		initNode = n
	}
	if !p.expect(ast.SEMICOLON, "expected ';' after for-init") {
		p.Tbl.PopScope()
		return ast.Node{}, false
	}

	if p.lx.Current().Type != ast.SEMICOLON {
		n, ok := p.parse(true, false)
		if !ok {
			p.Tbl.PopScope()
			return ast.Node{}, false
		}
		condNode = n
	}
	if !p.expect(ast.SEMICOLON, "expected ';' after for-condition") {
		p.Tbl.PopScope()
		return ast.Node{}, false
	}

	if p.lx.Current().Type != ast.LBRACE {
		n, ok := p.parse(true, false)
		if !ok {
			p.Tbl.PopScope()
			return ast.Node{}, false
		}
		postNode = n
	}

	p.loopDepth++
	body, ok := p.parseStatementList()
	p.loopDepth--
	p.Tbl.PopScope()
	if !ok {
		return ast.Node{}, false
	}
	return ast.Node{Loc: loc, Data: &ast.NFor{Init: initNode, Cond: condNode, Post: postNode, Body: body}}, true
}

// parseBlk parses a bare `blk { }` scoping block (spec.md §4.2).
func (p *Parser) parseBlk() (ast.Node, bool) {
	loc := p.loc()
	p.lx.Advance(1)
	p.Tbl.PushScope()
	body, ok := p.parseStatementList()
	p.Tbl.PopScope()
	if !ok {
		return ast.Node{}, false
	}
	return ast.Node{Loc: loc, Data: &ast.NBlock{Statements: body}}, true
}

// parseCast parses `cast(expr, Type)`.
func (p *Parser) parseCast() (ast.Node, bool) {
	loc := p.loc()
	p.lx.Advance(1) // 'cast'
	if !p.expect(ast.LPAREN, "expected '(' after cast") {
		return ast.Node{}, false
	}
	target, ok := p.parse(true, false)
	if !ok {
		return ast.Node{}, false
	}
	if !p.expect(ast.COMMA, "expected ',' between cast expression and type") {
		return ast.Node{}, false
	}
	to, ok := p.parseType()
	if !ok {
		return ast.Node{}, false
	}
	if !p.expect(ast.RPAREN, "expected ')'") {
		return ast.Node{}, false
	}
	return ast.Node{Loc: loc, Data: &ast.NCast{Target: target, To: to}}, true
}

// parseSizeof parses `sizeof(Type)` or `sizeof(expr)`, typed u64 per
// spec.md's supplemented-feature list.
func (p *Parser) parseSizeof() (ast.Node, bool) {
	loc := p.loc()
	p.lx.Advance(1) // 'sizeof'
	if !p.expect(ast.LPAREN, "expected '(' after sizeof") {
		return ast.Node{}, false
	}

	n := &ast.NSizeof{}
	if typ, ok := p.tryParseType(); ok {
		n.Type = &typ
	} else {
		expr, ok := p.parse(true, false)
		if !ok {
			return ast.Node{}, false
		}
		n.Expr = &expr
	}

	if !p.expect(ast.RPAREN, "expected ')'") {
		return ast.Node{}, false
	}
	return ast.Node{Loc: loc, Data: n}, true
}

// tryParseType attempts to parse a type without reporting an error or
// consuming input on failure, since sizeof's argument may be either a
// type name or an arbitrary expression.
func (p *Parser) tryParseType() (ast.TypeData, bool) {
	tok := p.lx.Current()
	if tok.Kind() != ast.KindTypeKeyword && tok.Type != ast.KW_PROC && tok.Type != ast.BITWISE_XOR {
		if tok.Type != ast.IDENTIFIER || p.lx.Peek(1).Type == ast.LPAREN || p.lx.Peek(1).Type == ast.DOT {
			return ast.TypeData{}, false
		}
	}
	markPos, markLine := tok.Pos, tok.Line
	errsBefore := p.errorCount
	realLog := p.Log
	p.Log = logger.NewDeferLog()
	typ, ok := p.parseType()
	p.Log = realLog
	if !ok || p.lx.Current().Type != ast.RPAREN {
		p.lx.Reset(markPos, markLine)
		p.errorCount = errsBefore
		return ast.TypeData{}, false
	}
	return typ, true
}

// parseDefer parses `defer stmt;`.
func (p *Parser) parseDefer() (ast.Node, bool) {
	loc := p.loc()
	p.lx.Advance(1)
	stmt, ok := p.parse(false, false)
	if !ok {
		return ast.Node{}, false
	}
	return ast.Node{Loc: loc, Data: &ast.NDefer{Stmt: stmt}}, true
}

// parseDeferIf parses `defer_if cond, stmt;`.
func (p *Parser) parseDeferIf() (ast.Node, bool) {
	loc := p.loc()
	p.lx.Advance(1)
	cond, ok := p.parse(true, false)
	if !ok {
		return ast.Node{}, false
	}
	if !p.expect(ast.COMMA, "expected ',' after defer_if condition") {
		return ast.Node{}, false
	}
	stmt, ok := p.parse(false, false)
	if !ok {
		return ast.Node{}, false
	}
	return ast.Node{Loc: loc, Data: &ast.NDeferIf{Cond: cond, Stmt: stmt}}, true
}

// parseAnonymousProc parses a `proc(...) -> T { }` value in expression
// position (e.g. assigned to a variable), installing no symbol. Its
// signature is read with the procedure-type grammar (parseProcTypeSignature),
// so parameters are bare types without names and the body has no
// parameter symbols in scope.
func (p *Parser) parseAnonymousProc() (ast.Node, bool) {
	loc := p.loc()
	sig, ok := p.parseProcTypeSignature()
	if !ok {
		return ast.Node{}, false
	}

	p.procDepth++
	p.Tbl.PushScope()
	body, ok := p.parseStatementList()
	p.Tbl.PopScope()
	p.procDepth--
	if !ok {
		return ast.Node{}, false
	}

	decl := &ast.NProcDecl{
		ReturnType: sig.ReturnType,
		Body:       body,
		Variadic:   sig.Flags.Has(ast.PROC_VARARGS),
	}
	if sig.Parameters != nil {
		for _, pt := range *sig.Parameters {
			decl.Params = append(decl.Params, ast.ProcParam{Type: pt})
		}
	}
	return ast.Node{Loc: loc, Data: decl}, true
}
