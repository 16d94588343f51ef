package checker

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tak-lang/tak/internal/ast"
)

func i32() ast.TypeData  { return ast.TypeData{Kind: ast.KindPrimitive, Primitive: ast.I32} }
func i64() ast.TypeData  { return ast.TypeData{Kind: ast.KindPrimitive, Primitive: ast.I64} }
func u32() ast.TypeData  { return ast.TypeData{Kind: ast.KindPrimitive, Primitive: ast.U32} }
func f32t() ast.TypeData { return ast.TypeData{Kind: ast.KindPrimitive, Primitive: ast.F32} }

func nonConcreteI() ast.TypeData {
	t := i32()
	t.Flags |= ast.NON_CONCRETE
	return t
}

func TestTypesAreIdenticalIgnoresValueCategoryFlags(t *testing.T) {
	a := i32()
	a.Flags |= ast.RVALUE
	b := i32()
	b.Flags |= ast.CONSTANT
	assert.True(t, typesAreIdentical(a, b))
	assert.False(t, typesAreIdentical(a, u32()))
}

func TestTypePromoteNonConcreteIsIdempotent(t *testing.T) {
	once := typePromoteNonConcrete(nonConcreteI(), i64())
	assert.False(t, once.Flags.Has(ast.NON_CONCRETE))
	assert.Equal(t, ast.I64, once.Primitive)

	twice := typePromoteNonConcrete(once, i64())
	assert.Equal(t, once, twice, "re-promoting an already-concrete type must be a no-op")
}

func TestPromoteBinaryOperandsNonConcreteAdoptsConcreteSide(t *testing.T) {
	left, right, result, ok := promoteBinaryOperands(i64(), nonConcreteI())
	assert.True(t, ok)
	assert.Equal(t, ast.I64, left.Primitive)
	assert.Equal(t, ast.I64, right.Primitive)
	assert.Equal(t, ast.I64, result.Primitive)
}

func TestPromoteBinaryOperandsFloatDominatesInt(t *testing.T) {
	_, _, result, ok := promoteBinaryOperands(f32t(), i32())
	assert.True(t, ok)
	assert.Equal(t, ast.F32, result.Primitive)
}

func TestPromoteBinaryOperandsUnsignedWinsAtEqualRank(t *testing.T) {
	_, _, result, ok := promoteBinaryOperands(i32(), u32())
	assert.True(t, ok)
	assert.Equal(t, ast.U32, result.Primitive)
}

func TestIsTypeCoercionPermissibleRejectsNarrowingAcrossKinds(t *testing.T) {
	assert.True(t, isTypeCoercionPermissible(i64(), nonConcreteI()))
	assert.False(t, isTypeCoercionPermissible(i32(), ast.TypeData{Kind: ast.KindStruct, Name: "V"}))
}

func TestIsTypeArithmeticEligibleRejectsArraysAndStructs(t *testing.T) {
	arr := i32()
	arr.Flags |= ast.ARRAY
	arr.ArrayLengths = []uint32{4}
	assert.False(t, isTypeArithmeticEligible(arr))
	assert.True(t, isTypeArithmeticEligible(i32()))

	ptr := i32()
	ptr.Flags |= ast.POINTER
	ptr.PointerDepth = 1
	assert.True(t, isTypeArithmeticEligible(ptr))
}

func TestFlipSignRoundTrips(t *testing.T) {
	assert.Equal(t, ast.U32, flipSign(ast.I32))
	assert.Equal(t, ast.I32, flipSign(ast.U32))
	assert.Equal(t, ast.F32, flipSign(ast.F32), "floats are unaffected by sign flipping")
}
