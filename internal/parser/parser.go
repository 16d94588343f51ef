// Package parser builds a tagged AST forest from a token stream while
// simultaneously populating the entity table, per spec.md §4.2. Grounded
// in the teacher's overall recursive-descent-plus-Pratt shape and in
// original_source/tak/src/parser/*.cpp for the language's concrete
// grammar (declarations, namespaces, compose blocks, generics, type
// expressions).
package parser

import (
	"strings"

	"github.com/tak-lang/tak/internal/ast"
	"github.com/tak-lang/tak/internal/config"
	"github.com/tak-lang/tak/internal/entity"
	"github.com/tak-lang/tak/internal/lexer"
	"github.com/tak-lang/tak/internal/logger"
	"github.com/tak-lang/tak/internal/source"
)

// Include is one @include directive discovered during parsing, queued in
// source order per spec.md §4.2/§5.
type Include struct {
	Path string
	Pos  int
	Line uint32
	File string
}

// Parser owns the recursive-descent state for one compilation: the shared
// entity table, the diagnostic log, and the current lexer (swapped out as
// @include files are processed, per spec.md §4.2's include driver loop).
type Parser struct {
	Tbl *entity.Table
	Log logger.Log
	Cfg config.Options

	lx *lexer.Lexer

	// TopLevelDecls accumulates every top-level node parsed across every
	// file in this compilation, in source order.
	TopLevelDecls []ast.Node

	// Includes collects directives in discovery order; the driver in
	// cmd/takc (or ParseAll) consumes them in that same order.
	Includes []Include

	loopDepth       int
	procDepth       int
	switchCaseDepth int
	errorCount      int
}

// New returns a parser bound to an entity table and diagnostic log.
func New(tbl *entity.Table, log logger.Log, cfg config.Options) *Parser {
	return &Parser{Tbl: tbl, Log: log, Cfg: cfg}
}

// ParseFile parses one source file's top-level declarations into the
// shared entity table and TopLevelDecls, switching the parser's active
// lexer to lx for the duration. Forward references within and across
// files always resolve at parse time to some symbol index (real or
// placeholder); whether the target turns out to be real is decided by
// the post-parser.
func (p *Parser) ParseFile(lx *lexer.Lexer) {
	p.lx = lx
	for {
		tok := p.lx.Current()
		if tok.Type == ast.EOF {
			return
		}

		node, ok := p.parse(false, false)
		if !ok {
			p.skipToNextTopLevel()
			continue
		}
		if node.Data != nil {
			p.TopLevelDecls = append(p.TopLevelDecls, node)
		}
		if p.errorCount >= p.maxErrors() {
			return
		}
	}
}

// ParseAll drives the include-resolution loop of spec.md §4.2/§5: parse
// root, then repeatedly resolve and parse any newly discovered @include
// targets (already-visited paths are deduplicated) until no new includes
// surface. Each round's file contents are prefetched concurrently via
// source.Queue.PrefetchAll, bounded by maxPrefetchJobs, but ParseFile
// itself always runs single-threaded and in queue order so entity-table
// mutation is never contended.
func (p *Parser) ParseAll(rootPath string, rootSrc *logger.Source, readFile func(string) (*logger.Source, error), resolveInclude func(includer, target string) string, maxPrefetchJobs int) error {
	rootLx := lexer.New(p.Log, rootSrc)
	p.ParseFile(rootLx)

	visited := map[string]bool{rootPath: true}
	pending := p.drainNewIncludes(visited, resolveInclude)

	for len(pending) > 0 {
		var q source.Queue
		for _, inc := range pending {
			q.Push(inc.Path)
		}
		srcs, errs := q.PrefetchAll(maxPrefetchJobs, readFile)

		for i, inc := range pending {
			if errs[i] != nil {
				p.errorAt(inc.Pos, inc.Line, "failed to read included file: "+errs[i].Error())
				continue
			}
			lx := lexer.New(p.Log, srcs[i])
			p.ParseFile(lx)
			if p.errorCount >= p.maxErrors() {
				return nil
			}
		}
		pending = p.drainNewIncludes(visited, resolveInclude)
	}
	return nil
}

// drainNewIncludes resolves every Include recorded since the last call
// against its including file, filters out already-visited paths, and
// rewrites each Include's Path in place to the resolved (not source-
// literal) form before returning the newly discovered batch.
func (p *Parser) drainNewIncludes(visited map[string]bool, resolveInclude func(includer, target string) string) []Include {
	var fresh []Include
	for _, inc := range p.Includes {
		inc.Path = resolveInclude(inc.File, inc.Path)
		if visited[inc.Path] {
			continue
		}
		visited[inc.Path] = true
		fresh = append(fresh, inc)
	}
	p.Includes = nil
	return fresh
}

func (p *Parser) maxErrors() int {
	if p.Cfg.MaxErrors > 0 {
		return p.Cfg.MaxErrors
	}
	return config.DefaultMaxErrors
}

// skipToNextTopLevel discards tokens until a semicolon or closing brace so
// a single malformed statement doesn't desynchronize the whole file,
// mirroring spec.md §7's "parse errors abort the current statement."
func (p *Parser) skipToNextTopLevel() {
	for {
		tok := p.lx.Current()
		if tok.Type == ast.EOF {
			return
		}
		p.lx.Advance(1)
		if tok.Type == ast.SEMICOLON || tok.Type == ast.RBRACE {
			return
		}
	}
}

func (p *Parser) loc() ast.Loc {
	tok := p.lx.Current()
	return ast.Loc{Pos: tok.Pos, Line: tok.Line, File: p.lx.File()}
}

func (p *Parser) errorAt(pos int, line uint32, msg string) {
	p.errorCount++
	p.Log.AddError(p.lx.Source, logger.Loc{Start: int32(pos)}, msg)
	_ = line
}

func (p *Parser) errorHere(msg string) {
	tok := p.lx.Current()
	p.errorAt(tok.Pos, tok.Line, msg)
}

func (p *Parser) expect(t ast.TokenType, msg string) bool {
	if p.lx.Current().Type != t {
		p.errorHere(msg)
		return false
	}
	p.lx.Advance(1)
	return true
}

// requiresNoTerminator reports whether a node kind never needs a trailing
// `;` or `,` after it, per spec.md §4.2: procedure/struct/namespace/
// compose/branch/switch/loop/block/defer bodies.
func requiresNoTerminator(n ast.NodeData) bool {
	switch n.(type) {
	case *ast.NProcDecl, *ast.NStructDef, *ast.NEnumDef, *ast.NNamespaceDecl,
		*ast.NCompose, *ast.NBranch, *ast.NSwitch, *ast.NWhile, *ast.NDoWhile,
		*ast.NFor, *ast.NBlock, *ast.NDefer, *ast.NDeferIf:
		return true
	default:
		return false
	}
}

// parse is the single entry point spec.md §4.2 describes: parse one
// expression or statement, then loop on postfix operators unless
// parseSingle is set, then check for the expected terminator unless
// nocheckTerm is set or the node kind never requires one.
func (p *Parser) parse(nocheckTerm bool, parseSingle bool) (ast.Node, bool) {
	node, ok := p.parsePrimaryOrKeyword()
	if !ok {
		return ast.Node{}, false
	}

	node, ok = p.parsePostfixChain(node)
	if !ok {
		return ast.Node{}, false
	}

	if !parseSingle && p.lx.Current().Type.BinaryPrecedence() >= 0 {
		node, ok = p.parseBinaryRHS(0, node)
		if !ok {
			return ast.Node{}, false
		}
	}

	if nocheckTerm || requiresNoTerminator(node.Data) {
		return node, true
	}

	tok := p.lx.Current()
	if tok.Type == ast.SEMICOLON || tok.Type == ast.COMMA {
		p.lx.Advance(1)
		return node, true
	}
	if tok.Type == ast.RPAREN || tok.Type == ast.RBRACE || tok.Type == ast.RSQUARE || tok.Type == ast.EOF {
		return node, true
	}
	p.errorHere("expected ';' or ',' to terminate the statement")
	return node, false
}

// parsePrimaryOrKeyword chooses a handler by looking at the current token:
// a compiler directive, a parenthesized expression, a braced expression, a
// literal, a keyword, an identifier, or a unary operator.
func (p *Parser) parsePrimaryOrKeyword() (ast.Node, bool) {
	tok := p.lx.Current()
	switch {
	case tok.Type == ast.AT:
		return p.parseDirective()
	case tok.Type == ast.LPAREN:
		return p.parseParenExpr()
	case tok.Type == ast.LBRACE:
		return p.parseBracedExpression()
	case tok.Kind() == ast.KindLiteral:
		return p.parseSingletonLiteral()
	case tok.Kind() == ast.KindKeyword:
		return p.parseKeyword()
	case tok.Type == ast.IDENTIFIER:
		return p.parseIdentifierOrDecl()
	case isUnaryStart(tok.Type):
		return p.parseUnary()
	default:
		p.errorHere("unexpected token")
		return ast.Node{}, false
	}
}

func isUnaryStart(t ast.TokenType) bool {
	switch t {
	case ast.MINUS, ast.PLUS, ast.BITWISE_NOT, ast.LOGICAL_NOT, ast.BITWISE_AND, ast.MUL:
		return true
	default:
		return false
	}
}

func (p *Parser) parseParenExpr() (ast.Node, bool) {
	p.lx.Advance(1)
	node, ok := p.parse(true, false)
	if !ok {
		return ast.Node{}, false
	}
	if !p.expect(ast.RPAREN, "expected ')'") {
		return ast.Node{}, false
	}
	return node, true
}

// joinNamespacePath renders a `\`-separated identifier path back to its
// source spelling for error messages and canonical-name lookups.
func joinNamespacePath(segments []string) string {
	return strings.Join(segments, "\\")
}
