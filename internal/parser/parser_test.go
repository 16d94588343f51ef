package parser_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tak-lang/tak/internal/ast"
	"github.com/tak-lang/tak/internal/config"
	"github.com/tak-lang/tak/internal/entity"
	"github.com/tak-lang/tak/internal/lexer"
	"github.com/tak-lang/tak/internal/logger"
	"github.com/tak-lang/tak/internal/parser"
)

// parseOnly runs just the parse phase (no post-parser, no checker) over
// src and returns the parser, its top-level decls, and batched diagnostics.
func parseOnly(t *testing.T, src string) (*parser.Parser, []logger.Msg) {
	t.Helper()

	tbl := entity.New()
	log := logger.NewDeferLog()
	cfg := config.Options{}.WithDefaults()

	p := parser.New(tbl, log, cfg)
	lx := lexer.New(log, &logger.Source{PrettyPath: "test.tak", Contents: src})
	p.ParseFile(lx)

	return p, log.Done()
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

func TestParseSimpleProcDecl(t *testing.T) {
	p, msgs := parseOnly(t, `f :: proc() -> i32 { ret 0; }`)
	assert.Empty(t, errorTexts(msgs))
	require.Len(t, p.TopLevelDecls, 1)

	decl, ok := p.TopLevelDecls[0].Data.(*ast.NProcDecl)
	require.True(t, ok)
	assert.Equal(t, "f", decl.Identifier.Name)
	assert.Empty(t, decl.GenericTypeNames)
	assert.Len(t, decl.Body, 1)
}

func TestParseStructDefAcceptsCommaAndSemicolonSeparators(t *testing.T) {
	p, msgs := parseOnly(t, `struct P { x: i32, y: i32; z: i32 }`)
	assert.Empty(t, errorTexts(msgs))
	require.Len(t, p.TopLevelDecls, 1)

	def, ok := p.TopLevelDecls[0].Data.(*ast.NStructDef)
	require.True(t, ok)
	require.Len(t, def.Members, 3)
	assert.Equal(t, []string{"x", "y", "z"}, []string{def.Members[0].Name, def.Members[1].Name, def.Members[2].Name})
}

func TestParseNamespaceRequiresNestedBlocksNotQualifiedPath(t *testing.T) {
	_, msgs := parseOnly(t, `namespace A\B { x : i32 = 0; }`)
	texts := errorTexts(msgs)
	require.NotEmpty(t, texts)
	assert.Contains(t, texts[0], "expected '{'")
}

func TestParseNestedNamespaceDecl(t *testing.T) {
	p, msgs := parseOnly(t, `
		namespace A {
			x : i32 = 0;
			namespace B {
				y : i32 = 1;
			}
		}
	`)
	assert.Empty(t, errorTexts(msgs))
	require.Len(t, p.TopLevelDecls, 1)

	outer, ok := p.TopLevelDecls[0].Data.(*ast.NNamespaceDecl)
	require.True(t, ok)
	require.Len(t, outer.Body, 2)

	_, innerIsNamespace := outer.Body[1].Data.(*ast.NNamespaceDecl)
	assert.True(t, innerIsNamespace)
}

func TestParseGenericProcDeclFlagsSymbolAsGenericBase(t *testing.T) {
	p, msgs := parseOnly(t, `id :: proc<T>(x: T) -> T { ret x; }`)
	assert.Empty(t, errorTexts(msgs))

	decl, ok := p.TopLevelDecls[0].Data.(*ast.NProcDecl)
	require.True(t, ok)
	assert.Equal(t, []string{"T"}, decl.GenericTypeNames)

	sym := p.Tbl.LookupUniqueSymbol(decl.Identifier.SymbolIndex)
	assert.True(t, sym.IsGenericBase())
}

func TestParseInferredAndConstantDecls(t *testing.T) {
	p, msgs := parseOnly(t, `x := 1; y :: 2;`)
	assert.Empty(t, errorTexts(msgs))
	require.Len(t, p.TopLevelDecls, 2)

	xDecl, ok := p.TopLevelDecls[0].Data.(*ast.NVarDecl)
	require.True(t, ok)
	assert.True(t, xDecl.IsInferred)
	assert.False(t, xDecl.IsConstant)

	yDecl, ok := p.TopLevelDecls[1].Data.(*ast.NVarDecl)
	require.True(t, ok)
	assert.True(t, yDecl.IsInferred)
	assert.True(t, yDecl.IsConstant)
}

func TestParseDuplicateSwitchDefaultIsAParseError(t *testing.T) {
	_, msgs := parseOnly(t, `
		f :: proc() -> void {
			x : i32 = 0;
			switch x {
				default { ret; }
				default { ret; }
			}
		}
	`)
	texts := errorTexts(msgs)
	require.NotEmpty(t, texts)
	assert.Contains(t, texts[0], "one 'default'")
}

// TestParseSpecScenario2GenericCallSiteLiteral parses the worked example's
// own `id<i32>(1)` call-site instantiation verbatim.
func TestParseSpecScenario2GenericCallSiteLiteral(t *testing.T) {
	p, msgs := parseOnly(t, `
		id :: proc<T>(x: T) -> T { ret x; }
		a := id<i32>(1);
	`)
	assert.Empty(t, errorTexts(msgs))

	varDecl, ok := p.TopLevelDecls[1].Data.(*ast.NVarDecl)
	require.True(t, ok)
	call, ok := (*varDecl.Init).Data.(*ast.NCall)
	require.True(t, ok)
	callee, ok := call.Callee.Data.(*ast.NIdentifier)
	require.True(t, ok)

	assert.Equal(t, "id[i32]", callee.Name, "the permutation's internal mangled name still uses brackets")
	perm := p.Tbl.LookupUniqueSymbol(callee.SymbolIndex)
	assert.True(t, perm.IsGenericPerm(), "call site should reference a fresh GENPERM symbol before the post-parser runs")
}

func TestParseExplicitGenericCallSiteWrongArgCountIsAnError(t *testing.T) {
	_, msgs := parseOnly(t, `
		id :: proc<T, U>(x: T) -> T { ret x; }
		a := id<i32>(1);
	`)
	texts := errorTexts(msgs)
	require.NotEmpty(t, texts)
	assert.Contains(t, texts[0], "wrong number of generic type arguments")
}

// TestParseLessThanStillParsesAsComparisonForNonGenericIdentifiers guards
// against the generic call-site syntax swallowing ordinary `<` comparisons,
// since both share the same leading token.
func TestParseLessThanStillParsesAsComparisonForNonGenericIdentifiers(t *testing.T) {
	p, msgs := parseOnly(t, `x : i32 = 1; y := x < 2;`)
	assert.Empty(t, errorTexts(msgs))

	decl, ok := p.TopLevelDecls[1].Data.(*ast.NVarDecl)
	require.True(t, ok)
	bin, ok := (*decl.Init).Data.(*ast.NBinary)
	require.True(t, ok)
	assert.Equal(t, ast.LESS_THAN, bin.Op)
}

func TestParseFallthroughOutsideSwitchIsAParseError(t *testing.T) {
	_, msgs := parseOnly(t, `
		f :: proc() -> void {
			fallthrough;
		}
	`)
	texts := errorTexts(msgs)
	require.NotEmpty(t, texts)
	assert.Contains(t, texts[0], "'fallthrough' used outside of a switch case")
}

func TestParseFallthroughNotLastStatementInCaseIsAParseError(t *testing.T) {
	_, msgs := parseOnly(t, `
		f :: proc() -> void {
			x : i32 = 0;
			switch x {
				case 1 { fallthrough; x = 2; }
				default { ret; }
			}
		}
	`)
	texts := errorTexts(msgs)
	require.NotEmpty(t, texts)
	assert.Contains(t, texts[0], "'fallthrough' must be the last statement in a case body")
}

func TestParseFallthroughAsLastStatementInCaseIsAccepted(t *testing.T) {
	p, msgs := parseOnly(t, `
		f :: proc() -> void {
			x : i32 = 0;
			switch x {
				case 1 { fallthrough; }
				default { ret; }
			}
		}
	`)
	assert.Empty(t, errorTexts(msgs))

	decl, ok := p.TopLevelDecls[0].Data.(*ast.NProcDecl)
	require.True(t, ok)
	var sw *ast.NSwitch
	for i := range decl.Body {
		if s, ok := decl.Body[i].Data.(*ast.NSwitch); ok {
			sw = s
		}
	}
	require.NotNil(t, sw)
	require.Len(t, sw.Cases, 1)
	assert.True(t, sw.Cases[0].Fallthrough)
}
