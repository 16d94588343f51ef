package checker_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tak-lang/tak/internal/checker"
	"github.com/tak-lang/tak/internal/config"
	"github.com/tak-lang/tak/internal/entity"
	"github.com/tak-lang/tak/internal/lexer"
	"github.com/tak-lang/tak/internal/logger"
	"github.com/tak-lang/tak/internal/parser"
	"github.com/tak-lang/tak/internal/postparser"
)

// compile drives the full front-end pipeline (parse, post-parse, check)
// over src and returns the batched diagnostics plus the entity table for
// inspection, mirroring spec.md §8's testable scenarios end to end.
func compile(t *testing.T, src string) ([]logger.Msg, *entity.Table) {
	t.Helper()

	tbl := entity.New()
	log := logger.NewDeferLog()
	cfg := config.Options{}.WithDefaults()

	p := parser.New(tbl, log, cfg)
	lx := lexer.New(log, &logger.Source{PrettyPath: "test.tak", Contents: src})
	p.ParseFile(lx)

	noIncludes := func(path string) (*logger.Source, error) {
		return nil, fmt.Errorf("unexpected include request for %q", path)
	}
	require.True(t, postparser.Run(p, tbl, log, noIncludes), "postparser should succeed with no includes")

	checker.Run(tbl, p.TopLevelDecls, log, cfg)
	return log.Done(), tbl
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

func TestPlaceholderResolutionMutualRecursion(t *testing.T) {
	msgs, tbl := compile(t, `f :: proc() -> i32 { ret g(); } g :: proc() -> i32 { ret 0; }`)
	assert.Empty(t, errorTexts(msgs))

	for _, name := range []string{`\f`, `\g`} {
		idx := tbl.LookupScopedSymbol(name)
		sym := tbl.LookupUniqueSymbol(idx)
		assert.False(t, sym.IsPlaceholder(), "%s should not remain a placeholder", name)
	}
}

func TestGenericProcedureMonomorphization(t *testing.T) {
	msgs, tbl := compile(t, `
		id :: proc<T>(x: T) -> T { ret x; }
		a := id<i32>(1);
		b := id<f32>(2.5);
	`)
	assert.Empty(t, errorTexts(msgs))

	aIdx := tbl.LookupScopedSymbol(`\a`)
	assert.Equal(t, "i32", tbl.LookupUniqueSymbol(aIdx).Type.String())

	bIdx := tbl.LookupScopedSymbol(`\b`)
	assert.Equal(t, "f32", tbl.LookupUniqueSymbol(bIdx).Type.String())

	for _, permName := range []string{"id[i32]", "id[f32]"} {
		require.True(t, tbl.ScopedSymbolExists(permName), "expected permutation symbol %q", permName)
		perm := tbl.LookupUniqueSymbol(tbl.LookupScopedSymbol(permName))
		assert.False(t, perm.IsGenericPerm(), "permutation should have been resolved by the post-parser")
	}
}

func TestNumericPromotionOfLiteral(t *testing.T) {
	msgs, tbl := compile(t, `a : i64 = 1; b := a + 1;`)
	assert.Empty(t, errorTexts(msgs))

	idx := tbl.LookupScopedSymbol(`\b`)
	sym := tbl.LookupUniqueSymbol(idx)
	assert.Equal(t, "i64", sym.Type.String())
}

func TestIllegalDereferenceOfNonPointer(t *testing.T) {
	msgs, _ := compile(t, `x : i32 = 0; y := *x;`)
	texts := errorTexts(msgs)
	require.NotEmpty(t, texts)
	assert.Contains(t, texts[0], "cannot dereference non-pointer type i32")
}

func TestMemberPathResolutionAndMissingMember(t *testing.T) {
	msgs, tbl := compile(t, `
		struct P { x: i32; }
		struct V { p: P; }
		v: V;
		y := v.p.x;
	`)
	assert.Empty(t, errorTexts(msgs))
	idx := tbl.LookupScopedSymbol(`\y`)
	sym := tbl.LookupUniqueSymbol(idx)
	assert.Equal(t, "i32", sym.Type.String())

	msgs2, _ := compile(t, `
		struct P { x: i32; }
		struct V { p: P; }
		v: V;
		y2 := v.p.missing;
	`)
	texts := errorTexts(msgs2)
	require.NotEmpty(t, texts)
	assert.Contains(t, texts[0], "struct member does not exist")
}

func TestNamespacedLookupLongestPrefixMatch(t *testing.T) {
	msgs, tbl := compile(t, `
		namespace A {
			x : i32 = 0;
			namespace B {
				y := x;
			}
		}
	`)
	assert.Empty(t, errorTexts(msgs))
	idx := tbl.LookupScopedSymbol(`\A\B\y`)
	sym := tbl.LookupUniqueSymbol(idx)
	assert.Equal(t, "i32", sym.Type.String())
}

func TestOutOfRangeIntLiteralNarrowingIsAnError(t *testing.T) {
	msgs, _ := compile(t, `x : u8 = 300;`)
	texts := errorTexts(msgs)
	require.NotEmpty(t, texts)
	assert.Contains(t, texts[0], "out of range for type u8")
}

func TestInRangeIntLiteralNarrowingIsAccepted(t *testing.T) {
	msgs, _ := compile(t, `x : u8 = 255; y : i8 = 127;`)
	assert.Empty(t, errorTexts(msgs))
}

func TestOutOfRangeAssignedIntLiteralNarrowingIsAnError(t *testing.T) {
	msgs, _ := compile(t, `x : i16 = 0; x = 40000;`)
	texts := errorTexts(msgs)
	require.NotEmpty(t, texts)
	assert.Contains(t, texts[0], "out of range for type i16")
}

func TestOutOfRangeFloatLiteralNarrowingIsAnError(t *testing.T) {
	msgs, _ := compile(t, `x : f32 = 3.5e40;`)
	texts := errorTexts(msgs)
	require.NotEmpty(t, texts)
	assert.Contains(t, texts[0], "out of range for type f32")
}

func TestDuplicateSwitchDefaultIsAnError(t *testing.T) {
	msgs, _ := compile(t, `
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
