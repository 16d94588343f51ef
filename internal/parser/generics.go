package parser

import (
	"strings"

	"github.com/tak-lang/tak/internal/ast"
	"github.com/tak-lang/tak/internal/lexer"
	"github.com/tak-lang/tak/internal/logger"
)

// ReparsePermutation re-parses a generic procedure base's signature and
// body against the concrete type arguments already installed on perm,
// producing a fresh top-level NProcDecl appended to TopLevelDecls.
// Grounded on original_source/tak/src/postparser/generic_procedures.cpp's
// postparse_reparse_procedure_permutation: the lexer is reset to the
// base's stored source position, type aliases map each generic parameter
// name to its concrete argument for the duration of the re-parse, and the
// namespace stack is reconstructed so canonical name resolution inside
// the body behaves exactly as it did for the original declaration.
//
// readFile is used to load base's source file when it differs from the
// lexer currently loaded into the parser (a generic base declared in an
// included file, permuted from a reference in another file).
func (p *Parser) ReparsePermutation(base, perm *ast.Symbol, readFile func(path string) (*logger.Source, error)) bool {
	perm.Flags = base.Flags &^ ast.GENBASE
	perm.Type.Flags |= base.Type.Flags | ast.INTERNAL
	perm.SrcPos = base.SrcPos
	perm.LineNumber = base.LineNumber
	perm.File = base.File
	perm.Namespace = base.Namespace
	perm.Type.SymRef = base.SymbolIndex

	if base.Flags.Has(ast.FOREIGN) {
		p.errorAt(base.SrcPos, base.LineNumber, "generic procedures cannot be marked as external")
		return false
	}
	if perm.Type.Parameters == nil || len(base.GenericTypeNames) != len(*perm.Type.Parameters) {
		p.errorAt(base.SrcPos, base.LineNumber, "wrong number of generic parameters supplied for this call")
		return false
	}

	if p.lx == nil || p.lx.File() != base.File {
		src, err := readFile(base.File)
		if err != nil {
			p.errorAt(base.SrcPos, base.LineNumber, "failed to reload "+base.File+" to permute a generic procedure: "+err.Error())
			return false
		}
		p.lx = lexer.New(p.Log, src)
	}

	p.Tbl.PushScope()
	concreteParams := *perm.Type.Parameters
	for i, genName := range base.GenericTypeNames {
		p.Tbl.CreateTypeAlias(genName, concreteParams[i])
	}

	namespaceChunks := 0
	if base.Namespace != "\\" {
		for _, seg := range strings.Split(strings.Trim(base.Namespace, "\\"), "\\") {
			if seg == "" {
				continue
			}
			p.Tbl.EnterNamespace(seg)
			namespaceChunks++
		}
	}

	defer func() {
		for i := 0; i < namespaceChunks; i++ {
			p.Tbl.LeaveNamespace()
		}
		p.Tbl.PopScope()
		for _, genName := range base.GenericTypeNames {
			p.Tbl.DeleteTypeAlias(genName)
		}
	}()

	p.lx.Reset(base.SrcPos, base.LineNumber)
	for p.lx.Current().Type != ast.LPAREN {
		if p.lx.Current().Type == ast.EOF {
			p.errorAt(base.SrcPos, base.LineNumber, "internal error: generic base signature not found at its stored position")
			return false
		}
		p.lx.Advance(1)
	}

	perm.Type.Parameters = nil
	params, paramTypes, retType, variadic, ok := p.parseProcParamsAndReturn()
	if !ok {
		return false
	}
	perm.Type.Parameters = &paramTypes
	perm.Type.ReturnType = &retType
	if variadic {
		perm.Type.Flags |= ast.PROC_VARARGS
	}

	p.procDepth++
	for _, prm := range params {
		p.Tbl.CreateSymbol(prm.Name, base.File, base.SrcPos, base.LineNumber, prm.Type.Kind, ast.PROCARG, &prm.Type)
	}
	body, ok := p.parseStatementList()
	p.procDepth--
	if !ok {
		return false
	}

	ident := &ast.NIdentifier{Name: perm.Name, SymbolIndex: perm.SymbolIndex}
	decl := &ast.NProcDecl{
		Identifier: ident,
		Params:     params,
		ReturnType: &retType,
		Body:       body,
		Variadic:   variadic,
	}
	p.TopLevelDecls = append(p.TopLevelDecls, ast.Node{
		Loc:  ast.Loc{Pos: base.SrcPos, Line: base.LineNumber, File: base.File},
		Data: decl,
	})
	return true
}
