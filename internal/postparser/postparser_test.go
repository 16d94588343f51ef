package postparser_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tak-lang/tak/internal/ast"
	"github.com/tak-lang/tak/internal/config"
	"github.com/tak-lang/tak/internal/entity"
	"github.com/tak-lang/tak/internal/lexer"
	"github.com/tak-lang/tak/internal/logger"
	"github.com/tak-lang/tak/internal/parser"
	"github.com/tak-lang/tak/internal/postparser"
)

func noIncludes(path string) (*logger.Source, error) {
	return nil, fmt.Errorf("unexpected include request for %q", path)
}

func parseAndPostparse(t *testing.T, src string) (*parser.Parser, *entity.Table, bool, []logger.Msg) {
	t.Helper()

	tbl := entity.New()
	log := logger.NewDeferLog()
	cfg := config.Options{}.WithDefaults()

	p := parser.New(tbl, log, cfg)
	lx := lexer.New(log, &logger.Source{PrettyPath: "test.tak", Contents: src})
	p.ParseFile(lx)

	ok := postparser.Run(p, tbl, log, noIncludes)
	return p, tbl, ok, log.Done()
}

func errorTexts(msgs []logger.Msg) []string {
	var out []string
	for _, m := range msgs {
		if m.Kind == logger.Error {
			out = append(out, m.Data.Text)
		}
	}
	return out
}

func TestCheckLeftoverPlaceholdersReportsUnresolvedSymbol(t *testing.T) {
	_, _, ok, msgs := parseAndPostparse(t, `f :: proc() -> i32 { ret g(); }`)
	assert.False(t, ok)
	texts := errorTexts(msgs)
	require.NotEmpty(t, texts)
	assert.Contains(t, texts[0], "failed to resolve symbol")
}

func TestPermuteGenericProceduresAppendsConcreteDeclAndClearsFlag(t *testing.T) {
	p, tbl, ok, msgs := parseAndPostparse(t, `
		id :: proc<T>(x: T) -> T { ret x; }
		a := id<i32>(1);
	`)
	require.True(t, ok)
	assert.Empty(t, errorTexts(msgs))

	permIdx := tbl.LookupScopedSymbol("id[i32]")
	perm := tbl.LookupUniqueSymbol(permIdx)
	assert.False(t, perm.IsGenericPerm(), "the sweep must clear GENPERM once reparsed")

	var found *ast.NProcDecl
	for i := range p.TopLevelDecls {
		if decl, ok := p.TopLevelDecls[i].Data.(*ast.NProcDecl); ok && decl.Identifier.SymbolIndex == permIdx {
			found = decl
		}
	}
	require.NotNil(t, found, "a concrete NProcDecl for the permutation must be appended to TopLevelDecls")
	assert.Len(t, found.Body, 1)
}

func TestPermuteGenericProceduresRejectsPermutationOfNonGenericBase(t *testing.T) {
	// permuteGenericProcedures' guard checks base.GenericTypeNames is
	// non-empty before calling ReparsePermutation; exercise it by manually
	// installing a GENPERM symbol pointed at a plain, non-generic base,
	// which the parser itself would never produce through the `id<T>(...)`
	// call syntax (that path always targets a GENBASE symbol).
	tbl := entity.New()
	log := logger.NewDeferLog()
	cfg := config.Options{}.WithDefaults()
	p := parser.New(tbl, log, cfg)
	lx := lexer.New(log, &logger.Source{PrettyPath: "test.tak", Contents: `f :: proc() -> i32 { ret 0; }`})
	p.ParseFile(lx)

	baseIdx := tbl.LookupScopedSymbol(`\f`)
	paramTypes := []ast.TypeData{{Kind: ast.KindPrimitive, Primitive: ast.I32}}
	genSym := tbl.CreateSymbol("f[i32]", "test.tak", 0, 1, ast.KindProcedure, 0, &ast.TypeData{
		Kind:       ast.KindProcedure,
		SymRef:     baseIdx,
		Parameters: &paramTypes,
	})
	// CreateSymbol's flags parameter targets Type.Flags, not Symbol.Flags;
	// GENPERM is a symbol-level marker, matching how
	// entity.Table.CreateGenericProcPermutation sets it directly.
	genSym.Flags |= ast.GENPERM

	ok := postparser.Run(p, tbl, log, noIncludes)
	assert.False(t, ok)
	texts := errorTexts(log.Done())
	require.NotEmpty(t, texts)
	assert.Contains(t, texts[len(texts)-1], "does not take any")
}

func TestPermuteGenericStructuresInstantiatesMangledType(t *testing.T) {
	_, tbl, ok, msgs := parseAndPostparse(t, `
		struct Box<T> { v: T; }
		b : Box<i32>;
	`)
	require.True(t, ok)
	assert.Empty(t, errorTexts(msgs))

	assert.True(t, tbl.TypeExists(`\Box[i32]`))
	members := tbl.LookupTypeMembers(`\Box[i32]`)
	require.Len(t, members, 1)
	assert.Equal(t, "i32", members[0].Type.String())

	assert.False(t, tbl.TypeExists(`\Box`), "the generic base struct is garbage-collected after instantiation")
}
