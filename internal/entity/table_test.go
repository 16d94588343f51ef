package entity_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tak-lang/tak/internal/ast"
	"github.com/tak-lang/tak/internal/entity"
)

func TestPushPopScopeNeverDropsGlobal(t *testing.T) {
	tbl := entity.New()
	require.Len(t, tbl.ScopeStack, 1)

	tbl.PopScope()
	assert.Len(t, tbl.ScopeStack, 1, "the global scope must never be popped")

	tbl.PushScope()
	assert.Len(t, tbl.ScopeStack, 2)
	tbl.PopScope()
	assert.Len(t, tbl.ScopeStack, 1)
}

func TestCreateSymbolThenLookupRoundTrips(t *testing.T) {
	tbl := entity.New()
	typ := ast.TypeData{Kind: ast.KindPrimitive, Primitive: ast.I32}
	sym := tbl.CreateSymbol("x", "f.tak", 0, 1, ast.KindPrimitive, 0, &typ)

	assert.True(t, tbl.ScopedSymbolExists("\\x"))
	idx := tbl.LookupScopedSymbol("\\x")
	assert.Equal(t, sym.SymbolIndex, idx)
	assert.Equal(t, "x", tbl.LookupUniqueSymbol(idx).Name)
}

func TestCreatePlaceholderSymbolIsFlagged(t *testing.T) {
	tbl := entity.New()
	idx := tbl.CreatePlaceholderSymbol("\\g", "f.tak", 10, 2)
	sym := tbl.LookupUniqueSymbol(idx)
	assert.True(t, sym.IsPlaceholder())
	assert.Equal(t, "g", sym.Name)
}

func TestCreateSymbolDoesNotRewritePlaceholder(t *testing.T) {
	tbl := entity.New()
	placeholderIdx := tbl.CreatePlaceholderSymbol("\\g", "f.tak", 10, 2)

	typ := ast.TypeData{Kind: ast.KindPrimitive, Primitive: ast.I32}
	real := tbl.CreateSymbol("g", "f.tak", 20, 3, ast.KindPrimitive, 0, &typ)
	// CreateSymbol does not itself rewrite placeholders (that is
	// parser.declareSymbol's job); confirm the placeholder and the new
	// symbol are still two distinct entries so the contract stays visible.
	assert.NotEqual(t, placeholderIdx, real.SymbolIndex)
}

func TestNamespaceEnterLeaveRejectsSelfNesting(t *testing.T) {
	tbl := entity.New()
	require.True(t, tbl.EnterNamespace("A"))
	assert.False(t, tbl.EnterNamespace("A"), "a namespace cannot nest inside itself")
	assert.Equal(t, `\A\`, tbl.NamespaceAsString())
	tbl.LeaveNamespace()
	assert.Equal(t, `\`, tbl.NamespaceAsString())
}

func TestGetCanonicalNameLongestPrefixMatch(t *testing.T) {
	tbl := entity.New()
	typ := ast.TypeData{Kind: ast.KindPrimitive, Primitive: ast.I32}

	require.True(t, tbl.EnterNamespace("A"))
	tbl.CreateSymbol("x", "f.tak", 0, 1, ast.KindPrimitive, 0, &typ)
	require.True(t, tbl.EnterNamespace("B"))

	// From within \A\B\, a bare reference to "x" should resolve through
	// \A\x (the outer namespace where it was actually declared), not
	// fall back to the fully qualified \A\B\x form.
	canonical := tbl.GetCanonicalSymName("x")
	assert.Equal(t, `\A\x`, canonical)
}

func TestGetCanonicalNameFallsBackWhenNothingMatches(t *testing.T) {
	tbl := entity.New()
	require.True(t, tbl.EnterNamespace("A"))
	canonical := tbl.GetCanonicalSymName("undeclared")
	assert.Equal(t, `\A\undeclared`, canonical)
}

func TestCreateAndLookupType(t *testing.T) {
	tbl := entity.New()
	members := []ast.MemberData{{Name: "x", Type: ast.TypeData{Kind: ast.KindPrimitive, Primitive: ast.I32}}}
	tbl.CreateType("\\P", members)

	assert.True(t, tbl.TypeExists("\\P"))
	assert.Equal(t, members, tbl.LookupTypeMembers("\\P"))
}

func TestTypeAliasLifecycle(t *testing.T) {
	tbl := entity.New()
	alias := ast.TypeData{Kind: ast.KindPrimitive, Flags: ast.NON_CONCRETE}
	tbl.CreateTypeAlias("T", alias)
	assert.True(t, tbl.TypeAliasExists("T"))
	assert.Equal(t, alias, tbl.LookupTypeAlias("T"))

	tbl.DeleteTypeAlias("T")
	assert.False(t, tbl.TypeAliasExists("T"))
}

func TestAllSymbolsSortedByIndex(t *testing.T) {
	tbl := entity.New()
	typ := ast.TypeData{Kind: ast.KindPrimitive, Primitive: ast.I32}
	tbl.CreateSymbol("c", "f.tak", 0, 1, ast.KindPrimitive, 0, &typ)
	tbl.CreateSymbol("a", "f.tak", 0, 2, ast.KindPrimitive, 0, &typ)
	tbl.CreateSymbol("b", "f.tak", 0, 3, ast.KindPrimitive, 0, &typ)

	all := tbl.AllSymbols()
	require.Len(t, all, 3)
	for i := 1; i < len(all); i++ {
		assert.Less(t, all[i-1].SymbolIndex, all[i].SymbolIndex)
	}
}

func TestAllTypeNamesSorted(t *testing.T) {
	tbl := entity.New()
	tbl.CreateType("\\Zebra", nil)
	tbl.CreateType("\\Apple", nil)

	names := tbl.AllTypeNames()
	assert.Equal(t, []string{"\\Apple", "\\Zebra"}, names)
}

func TestCreateGenericProcPermutationCachesByMangledName(t *testing.T) {
	tbl := entity.New()
	paramTypes := []ast.TypeData{ast.TypeData{Kind: ast.KindPrimitive, Flags: ast.NON_CONCRETE}}
	base := &ast.Symbol{
		SymbolIndex:      1,
		Name:             "id",
		GenericTypeNames: []string{"T"},
		Type:             ast.TypeData{Kind: ast.KindProcedure, Parameters: &paramTypes},
	}
	tbl.SymTable[1] = base

	args := []ast.TypeData{{Kind: ast.KindPrimitive, Primitive: ast.I32}}
	perm1 := tbl.CreateGenericProcPermutation(base, args)
	perm2 := tbl.CreateGenericProcPermutation(base, args)

	assert.Equal(t, perm1.SymbolIndex, perm2.SymbolIndex, "identical type arguments must reuse one permutation symbol")
	assert.Equal(t, "id[i32]", perm1.Name)
	assert.True(t, perm1.IsGenericPerm())
	assert.Equal(t, base.SymbolIndex, perm1.Type.SymRef)
}
