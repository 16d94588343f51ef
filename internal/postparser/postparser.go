// Package postparser runs the fix-up pass between parsing and semantic
// checking: resolving leftover forward-reference placeholders into errors,
// monomorphizing generic procedures and structures, and garbage-collecting
// generic base entries that codegen never needs. Grounded in
// original_source/tak/src/postparser/generic_procedures.cpp and other.cpp
// (include/postparser.hpp's postparse_verify pipeline), adapted to this
// front end's parser.Parser/entity.Table split.
package postparser

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tak-lang/tak/internal/ast"
	"github.com/tak-lang/tak/internal/entity"
	"github.com/tak-lang/tak/internal/logger"
	"github.com/tak-lang/tak/internal/parser"
)

// Run executes spec.md §4.4's fixed pipeline in order: leftover-placeholder
// reporting, generic procedure monomorphization, generic structure
// monomorphization, then garbage collection. readFile loads a source file
// by path when a generic base's re-parse needs to switch files.
func Run(p *parser.Parser, tbl *entity.Table, log logger.Log, readFile func(string) (*logger.Source, error)) bool {
	if !checkLeftoverPlaceholders(tbl, log) {
		return false
	}
	if !permuteGenericProcedures(p, tbl, log, readFile) {
		return false
	}
	if !permuteGenericStructures(p, tbl, log) {
		return false
	}
	deleteGarbageObjects(tbl)
	return true
}

// checkLeftoverPlaceholders reports every symbol or type still flagged
// PLACEHOLDER after parsing as an unresolved forward reference, grounded
// on other.cpp's postparse_check_leftover_placeholders. Iteration order is
// sorted (symbols by index, types by name) so diagnostics are reproducible
// across runs, since Go map iteration order is randomized and spec.md §5
// requires deterministic output.
func checkLeftoverPlaceholders(tbl *entity.Table, log logger.Log) bool {
	failed := false

	symIndexes := make([]uint32, 0, len(tbl.SymTable))
	for idx := range tbl.SymTable {
		symIndexes = append(symIndexes, idx)
	}
	sort.Slice(symIndexes, func(i, j int) bool { return symIndexes[i] < symIndexes[j] })
	for _, idx := range symIndexes {
		sym := tbl.SymTable[idx]
		if sym.IsPlaceholder() {
			log.AddError(nil, logger.Loc{Start: int32(sym.SrcPos)},
				fmt.Sprintf("failed to resolve symbol %q, first usage is here", sym.Name))
			failed = true
		}
	}

	typeNames := make([]string, 0, len(tbl.TypeTable))
	for name := range tbl.TypeTable {
		typeNames = append(typeNames, name)
	}
	sort.Strings(typeNames)
	for _, name := range typeNames {
		ut := tbl.TypeTable[name]
		if ut.Flags.Has(ast.PLACEHOLDER) {
			log.AddError(nil, logger.Loc{Start: int32(ut.PosFirstUsed)},
				fmt.Sprintf("failed to resolve type %q, first usage is here", name))
			failed = true
		}
	}

	return !failed
}

// permuteGenericProcedures repeatedly picks any symbol flagged GENPERM,
// verifies its base, and re-parses the base's signature and body against
// the permutation's concrete type arguments, per spec.md §4.4.2. The
// re-parse may itself discover further GENPERM symbols (nested generic
// calls), which the next loop iteration picks up; the loop terminates when
// a full sorted sweep finds none left. Grounded on
// generic_procedures.cpp's postparse_permute_generic_procedures.
func permuteGenericProcedures(p *parser.Parser, tbl *entity.Table, log logger.Log, readFile func(string) (*logger.Source, error)) bool {
	failed := false

	for {
		genIdx, found := nextGenPermIndex(tbl)
		if !found {
			break
		}

		genSym := tbl.SymTable[genIdx]
		genSym.Flags &^= ast.GENPERM

		base := tbl.LookupUniqueSymbol(genSym.Type.SymRef)
		if len(base.GenericTypeNames) == 0 || base.Type.Kind != ast.KindProcedure {
			log.AddError(nil, logger.Loc{Start: int32(genSym.SrcPos)},
				"attempting to pass generic type parameters for a symbol that does not take any")
			failed = true
			continue
		}

		if !p.ReparsePermutation(base, genSym, readFile) {
			return false
		}
	}

	return !failed
}

// nextGenPermIndex returns the lowest symbol index currently flagged
// GENPERM, for deterministic processing order across runs.
func nextGenPermIndex(tbl *entity.Table) (uint32, bool) {
	indexes := make([]uint32, 0)
	for idx, sym := range tbl.SymTable {
		if sym.Flags.Has(ast.GENPERM) {
			indexes = append(indexes, idx)
		}
	}
	if len(indexes) == 0 {
		return 0, false
	}
	sort.Slice(indexes, func(i, j int) bool { return indexes[i] < indexes[j] })
	return indexes[0], true
}

// deleteGarbageObjects removes type-table entries for generic base
// structs (those with a non-empty GenericTypeNames list) and symbol-table
// entries for generic base procedures (flagged GENBASE), which exist only
// as templates for monomorphization and carry no concrete layout codegen
// could use. Grounded on other.cpp's postparse_delete_garbage_objects.
func deleteGarbageObjects(tbl *entity.Table) {
	for name, ut := range tbl.TypeTable {
		if len(ut.GenericTypeNames) > 0 {
			tbl.DeleteType(name)
		}
	}
	for idx, sym := range tbl.SymTable {
		if sym.IsGenericBase() {
			tbl.DeleteUniqueSymbol(idx)
		}
	}
}

// permuteGenericStructures implements spec.md §4.4.3: every struct-typed
// TypeData anywhere in the parsed AST that names a GENBASE struct and
// carries concrete type arguments gets a permutation type created (if
// not already present) under a mangled name, with each base member's type
// recursively substituted, and the reference rewritten in place to the
// mangled, argument-free name. No original_source file covers this (the
// retrieved pack only implements generic procedures); authored fresh in
// the same mangle-and-cache shape as entity.Table.CreateGenericProcPermutation.
func permuteGenericStructures(p *parser.Parser, tbl *entity.Table, log logger.Log) bool {
	perm := &structPermuter{tbl: tbl, log: log, cache: map[string]bool{}}
	for i := range p.TopLevelDecls {
		perm.walkNode(&p.TopLevelDecls[i])
	}
	return !perm.failed
}

type structPermuter struct {
	tbl    *entity.Table
	log    logger.Log
	cache  map[string]bool
	failed bool
}

// resolve rewrites t in place: if it names a GENBASE struct with concrete
// Parameters, mangles the name, instantiates the permutation type (caching
// by mangled name so repeated references share one entry), and clears
// Parameters since the reference is now fully concrete.
func (sp *structPermuter) resolve(t *ast.TypeData) {
	if t == nil || t.Kind != ast.KindStruct || t.Parameters == nil {
		return
	}
	if !sp.tbl.TypeExists(t.Name) {
		return
	}
	base := sp.tbl.LookupType(t.Name)
	if len(base.GenericTypeNames) == 0 {
		return
	}

	mangled := mangleStructName(t.Name, *t.Parameters)
	if !sp.cache[mangled] {
		sp.cache[mangled] = true
		sp.instantiate(base, mangled, *t.Parameters)
	}

	t.Name = mangled
	t.Parameters = nil
}

// instantiate creates the concrete struct entry, substituting every
// generic parameter name in the base's members for its corresponding
// concrete argument, then recursing so nested generic references within
// those members are themselves resolved.
func (sp *structPermuter) instantiate(base *ast.UserType, mangled string, args []ast.TypeData) {
	if len(base.GenericTypeNames) != len(args) {
		sp.log.AddError(nil, logger.Loc{Start: int32(base.PosFirstUsed)},
			fmt.Sprintf("wrong number of generic type parameters for %q (takes %d, given %d)",
				mangled, len(base.GenericTypeNames), len(args)))
		sp.failed = true
		return
	}

	subst := make(map[string]ast.TypeData, len(args))
	for i, name := range base.GenericTypeNames {
		subst[name] = args[i]
	}

	members := make([]ast.MemberData, len(base.Members))
	for i, m := range base.Members {
		members[i] = ast.MemberData{Name: m.Name, Type: substituteType(m.Type, subst)}
	}

	sp.tbl.CreateType(mangled, members)
	for i := range members {
		sp.resolve(&members[i].Type)
	}
}

// substituteType returns a copy of t with every occurrence of a generic
// parameter name (recorded by the parser as a struct-kind TypeData whose
// Name matches a key of subst: parseStructDef installs each generic name
// as a type alias of that shape) replaced by its concrete binding.
func substituteType(t ast.TypeData, subst map[string]ast.TypeData) ast.TypeData {
	if t.Kind == ast.KindStruct {
		if repl, ok := subst[t.Name]; ok {
			out := repl.Clone()
			out.PointerDepth += t.PointerDepth
			out.ArrayLengths = append(append([]uint32(nil), t.ArrayLengths...), out.ArrayLengths...)
			return out
		}
	}
	if t.Parameters != nil {
		params := make([]ast.TypeData, len(*t.Parameters))
		for i, p := range *t.Parameters {
			params[i] = substituteType(p, subst)
		}
		t.Parameters = &params
	}
	if t.ReturnType != nil {
		rt := substituteType(*t.ReturnType, subst)
		t.ReturnType = &rt
	}
	return t
}

func mangleStructName(base string, args []ast.TypeData) string {
	var b strings.Builder
	b.WriteString(base)
	b.WriteByte('[')
	for i, a := range args {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(a.String())
	}
	b.WriteByte(']')
	return b.String()
}

// walkNode descends the AST looking for TypeData occurrences to resolve:
// variable declarations, procedure parameters/return types, casts, and
// sizeof targets. Struct and enum definitions are skipped: a generic
// base's members are substituted and resolved during instantiate, and a
// non-generic struct's member types are not visited, so a generic struct
// reference inside a non-generic struct's member list is left unresolved.
func (sp *structPermuter) walkNode(n *ast.Node) {
	if n == nil || n.Data == nil {
		return
	}
	switch d := n.Data.(type) {
	case *ast.NVarDecl:
		if d.Type != nil {
			sp.resolve(d.Type)
		}
		if d.Init != nil {
			sp.walkNode(d.Init)
		}
	case *ast.NProcDecl:
		for i := range d.Params {
			sp.resolve(&d.Params[i].Type)
		}
		if d.ReturnType != nil {
			sp.resolve(d.ReturnType)
		}
		sp.walkNodes(d.Body)
	case *ast.NBlock:
		sp.walkNodes(d.Statements)
	case *ast.NBranch:
		sp.walkNode(&d.Cond)
		sp.walkNodes(d.Then)
		for i := range d.ElseIfs {
			sp.walkNode(&d.ElseIfs[i].Cond)
			sp.walkNodes(d.ElseIfs[i].Body)
		}
		sp.walkNodes(d.Else)
	case *ast.NSwitch:
		sp.walkNode(&d.Target)
		for i := range d.Cases {
			sp.walkNode(&d.Cases[i].Value)
			sp.walkNodes(d.Cases[i].Body)
		}
		sp.walkNodes(d.Default)
	case *ast.NWhile:
		sp.walkNode(&d.Cond)
		sp.walkNodes(d.Body)
	case *ast.NDoWhile:
		sp.walkNode(&d.Cond)
		sp.walkNodes(d.Body)
	case *ast.NFor:
		sp.walkNode(&d.Init)
		sp.walkNode(&d.Cond)
		sp.walkNode(&d.Post)
		sp.walkNodes(d.Body)
	case *ast.NReturn:
		if d.Value != nil {
			sp.walkNode(d.Value)
		}
	case *ast.NDefer:
		sp.walkNode(&d.Stmt)
	case *ast.NDeferIf:
		sp.walkNode(&d.Cond)
		sp.walkNode(&d.Stmt)
	case *ast.NCall:
		sp.walkNode(&d.Callee)
		sp.walkNodes(d.Args)
	case *ast.NSubscript:
		sp.walkNode(&d.Target)
		sp.walkNode(&d.Index)
	case *ast.NMemberAccess:
		sp.walkNode(&d.Target)
	case *ast.NCast:
		sp.walkNode(&d.Target)
		sp.resolve(&d.To)
	case *ast.NSizeof:
		if d.Type != nil {
			sp.resolve(d.Type)
		}
		if d.Expr != nil {
			sp.walkNode(d.Expr)
		}
	case *ast.NUnary:
		sp.walkNode(&d.Operand)
	case *ast.NBinary:
		sp.walkNode(&d.Left)
		sp.walkNode(&d.Right)
	case *ast.NBracedExpression:
		sp.walkNodes(d.Elements)
	case *ast.NNamespaceDecl:
		sp.walkNodes(d.Body)
	case *ast.NCompose:
		for i := range d.Procs {
			proc := &d.Procs[i]
			for j := range proc.Params {
				sp.resolve(&proc.Params[j].Type)
			}
			if proc.ReturnType != nil {
				sp.resolve(proc.ReturnType)
			}
			sp.walkNodes(proc.Body)
		}
	}
}

func (sp *structPermuter) walkNodes(nodes []ast.Node) {
	for i := range nodes {
		sp.walkNode(&nodes[i])
	}
}
