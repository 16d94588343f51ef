package checker

import "github.com/tak-lang/tak/internal/ast"

// typesAreIdentical reports whether a and b describe the same type,
// ignoring the value-category flags (RVALUE, CONSTANT, UNINITIALIZED,
// DEFAULT_INIT) that describe how a value of the type is currently held
// rather than what the type itself is. Grounded on checker.hpp's
// types_are_identical.
func typesAreIdentical(a, b ast.TypeData) bool {
	if a.Kind != b.Kind || a.PointerDepth != b.PointerDepth {
		return false
	}
	if len(a.ArrayLengths) != len(b.ArrayLengths) {
		return false
	}
	for i := range a.ArrayLengths {
		if a.ArrayLengths[i] != b.ArrayLengths[i] {
			return false
		}
	}
	switch a.Kind {
	case ast.KindPrimitive:
		return a.Primitive == b.Primitive
	case ast.KindStruct:
		return a.Name == b.Name
	case ast.KindProcedure:
		return procSignaturesIdentical(a, b)
	default:
		return true
	}
}

func procSignaturesIdentical(a, b ast.TypeData) bool {
	aParams, bParams := paramsOf(a), paramsOf(b)
	if len(aParams) != len(bParams) {
		return false
	}
	for i := range aParams {
		if !typesAreIdentical(aParams[i], bParams[i]) {
			return false
		}
	}
	aRet, bRet := returnOf(a), returnOf(b)
	return typesAreIdentical(aRet, bRet)
}

func paramsOf(t ast.TypeData) []ast.TypeData {
	if t.Parameters == nil {
		return nil
	}
	return *t.Parameters
}

func returnOf(t ast.TypeData) ast.TypeData {
	if t.ReturnType == nil {
		return ast.TypeData{Kind: ast.KindPrimitive, Primitive: ast.Void}
	}
	return *t.ReturnType
}

// isNullPointerType reports whether t is the distinguished null-pointer
// type a `nullptr` literal carries: a non-concrete void pointer that
// coerces to any pointer type.
func isNullPointerType(t ast.TypeData) bool {
	return t.Kind == ast.KindPrimitive && t.Primitive == ast.Void &&
		t.Flags.Has(ast.POINTER) && t.Flags.Has(ast.NON_CONCRETE)
}

// isTypeInvalidInInferredContext reports whether t can never stand as the
// type of an expression result: a bare (non-pointer) procedure, or a bare
// (non-pointer) void, or an unresolved NONE kind.
func isTypeInvalidInInferredContext(t ast.TypeData) bool {
	if t.Kind == ast.KindNone {
		return true
	}
	if t.Kind == ast.KindProcedure && !t.Flags.Has(ast.POINTER) {
		return true
	}
	if t.Kind == ast.KindPrimitive && t.Primitive == ast.Void && !t.Flags.Has(ast.POINTER) {
		return true
	}
	return false
}

// typePromoteNonConcrete resolves a NON_CONCRETE literal type against a
// concrete target, returning the target's shape with the literal's other
// flags folded in. Promotion is idempotent: promoting twice to the same
// concrete type returns the same result both times (spec.md §8).
func typePromoteNonConcrete(nonConcrete, target ast.TypeData) ast.TypeData {
	if !nonConcrete.Flags.Has(ast.NON_CONCRETE) {
		return nonConcrete
	}
	if isNullPointerType(nonConcrete) {
		out := target.Clone()
		out.Flags &^= ast.NON_CONCRETE
		return out
	}
	out := target.Clone()
	out.Flags |= nonConcrete.Flags &^ ast.NON_CONCRETE
	out.Flags &^= ast.NON_CONCRETE
	return out
}

// defaultPromotion strips NON_CONCRETE from a literal type with no
// coercion target (e.g. the initializer of an inferred `:=` declaration),
// keeping the literal's own default concrete primitive.
func defaultPromotion(t ast.TypeData) ast.TypeData {
	out := t.Clone()
	out.Flags &^= ast.NON_CONCRETE
	return out
}

// isTypeCoercionPermissible reports whether a value of type src may be
// used where dst is expected: assignment, parameter passing, return
// matching, and struct-member initialization all route through this rule.
func isTypeCoercionPermissible(dst, src ast.TypeData) bool {
	if isTypeInvalidInInferredContext(src) {
		return false
	}
	if src.Flags.Has(ast.NON_CONCRETE) && !isNullPointerType(src) {
		if dst.Kind != ast.KindPrimitive {
			return false
		}
		if src.Primitive.IsFloat() && !dst.Primitive.IsFloat() {
			return false
		}
		return dst.Primitive.IsIntegral() || dst.Primitive.IsFloat() || dst.Primitive == ast.Bool
	}
	if isNullPointerType(src) {
		return dst.Flags.Has(ast.POINTER) || (dst.Kind == ast.KindProcedure && dst.Flags.Has(ast.POINTER))
	}
	if dst.Flags.Has(ast.POINTER) != src.Flags.Has(ast.POINTER) {
		return false
	}
	if dst.Flags.Has(ast.POINTER) && dst.PointerDepth != src.PointerDepth {
		return false
	}
	if !arraysCompatible(dst, src) {
		return false
	}
	if dst.Kind != src.Kind {
		return false
	}
	switch dst.Kind {
	case ast.KindPrimitive:
		return dst.Primitive == src.Primitive
	case ast.KindStruct:
		return dst.Name == src.Name
	case ast.KindProcedure:
		return procSignaturesIdentical(dst, src)
	default:
		return false
	}
}

func arraysCompatible(dst, src ast.TypeData) bool {
	if dst.Flags.Has(ast.ARRAY) != src.Flags.Has(ast.ARRAY) {
		return false
	}
	if !dst.Flags.Has(ast.ARRAY) {
		return true
	}
	return areArrayTypesEquivalent(dst, src)
}

// areArrayTypesEquivalent compares two array shapes dimension by
// dimension; a 0 length (inferred) on either side matches any length in
// the same position.
func areArrayTypesEquivalent(a, b ast.TypeData) bool {
	if len(a.ArrayLengths) != len(b.ArrayLengths) {
		return false
	}
	for i := range a.ArrayLengths {
		if a.ArrayLengths[i] == 0 || b.ArrayLengths[i] == 0 {
			continue
		}
		if a.ArrayLengths[i] != b.ArrayLengths[i] {
			return false
		}
	}
	return true
}

// arrayHasInferredSizes reports whether any dimension of t is "inferred at
// declaration" (length 0).
func arrayHasInferredSizes(t ast.TypeData) bool {
	for _, n := range t.ArrayLengths {
		if n == 0 {
			return true
		}
	}
	return false
}

// isTypeReassignable reports whether a value of type t may stand on the
// left of an assignment: not constant, not an rvalue, and not a bare array
// name (only subscripted elements of an array are addressable).
func isTypeReassignable(t ast.TypeData) bool {
	if t.Flags.Has(ast.CONSTANT) || t.Flags.Has(ast.RVALUE) {
		return false
	}
	if t.Flags.Has(ast.ARRAY) {
		return false
	}
	return true
}

// isTypeArithmeticEligible reports whether t may stand as an operand of
// `+ - * / %` (or unary `- +`): any non-array numeric primitive, or a
// pointer (pointer arithmetic).
func isTypeArithmeticEligible(t ast.TypeData) bool {
	if t.Flags.Has(ast.ARRAY) {
		return false
	}
	if t.Flags.Has(ast.POINTER) {
		return true
	}
	if t.Kind != ast.KindPrimitive {
		return false
	}
	return t.Primitive.IsIntegral() || t.Primitive.IsFloat()
}

// isTypeBwopEligible reports whether t may stand as an operand of a
// bitwise operator (`& | ^ ~ << >>`): an integral primitive only.
func isTypeBwopEligible(t ast.TypeData) bool {
	if t.Flags.Has(ast.ARRAY) || t.Flags.Has(ast.POINTER) {
		return false
	}
	return t.Kind == ast.KindPrimitive && t.Primitive.IsIntegral()
}

// isTypeLopEligible reports whether t is a scalar that can stand as a
// logical/branch condition: bool, any numeric primitive, or a pointer.
func isTypeLopEligible(t ast.TypeData) bool {
	if t.Flags.Has(ast.ARRAY) {
		return false
	}
	if t.Flags.Has(ast.POINTER) {
		return true
	}
	return t.Kind == ast.KindPrimitive && t.Primitive != ast.Void
}

// canOperatorBeAppliedTo reports whether op's precedence class accepts
// operands of type t, dispatching to the matching eligibility predicate.
func canOperatorBeAppliedTo(op ast.TokenType, t ast.TypeData) bool {
	switch op {
	case ast.LOGICAL_OR, ast.LOGICAL_NOT:
		return isTypeLopEligible(t)
	case ast.BITWISE_OR, ast.BITWISE_XOR, ast.BITWISE_AND, ast.BITWISE_NOT, ast.SHL, ast.SHR:
		return isTypeBwopEligible(t)
	case ast.PLUS, ast.MINUS, ast.MUL, ast.DIV, ast.MOD:
		return isTypeArithmeticEligible(t)
	case ast.EQUALS, ast.NOT_EQUALS, ast.LESS_THAN, ast.LESS_THAN_EQUAL, ast.GREATER_THAN, ast.GREATER_THAN_EQUAL:
		return isTypeArithmeticEligible(t) || t.Flags.Has(ast.POINTER)
	default:
		return false
	}
}

// flipSign returns the primitive of the opposite signedness at the same
// rank (u8<->i8, ..., u64<->i64); floats and bool are returned unchanged.
func flipSign(p ast.Primitive) ast.Primitive {
	switch p {
	case ast.U8:
		return ast.I8
	case ast.I8:
		return ast.U8
	case ast.U16:
		return ast.I16
	case ast.I16:
		return ast.U16
	case ast.U32:
		return ast.I32
	case ast.I32:
		return ast.U32
	case ast.U64:
		return ast.I64
	case ast.I64:
		return ast.U64
	default:
		return p
	}
}

// promoteBinaryOperands implements spec.md §4.5's numeric promotion rules
// for a binary expression's already-visited operand types: a NON_CONCRETE
// side promotes to the concrete side; two non-concrete sides promote to
// the larger of their default widths; mixing signed and unsigned of
// identical rank picks the unsigned one; floats dominate ints.
func promoteBinaryOperands(left, right ast.TypeData) (ast.TypeData, ast.TypeData, ast.TypeData, bool) {
	lnc, rnc := left.Flags.Has(ast.NON_CONCRETE), right.Flags.Has(ast.NON_CONCRETE)

	if lnc && !rnc {
		left = typePromoteNonConcrete(left, right)
	} else if rnc && !lnc {
		right = typePromoteNonConcrete(right, left)
	} else if lnc && rnc {
		left = defaultPromotion(left)
		right = defaultPromotion(right)
		if left.Primitive.Rank() < right.Primitive.Rank() {
			left = typePromoteNonConcrete(left, right)
		} else {
			right = typePromoteNonConcrete(right, left)
		}
	}

	if left.Kind != ast.KindPrimitive || right.Kind != ast.KindPrimitive {
		if !typesAreIdentical(left, right) && !(left.Flags.Has(ast.POINTER) && right.Flags.Has(ast.POINTER)) {
			return ast.TypeData{}, ast.TypeData{}, ast.TypeData{}, false
		}
		return left, right, left, true
	}

	result := left
	if left.Primitive.IsFloat() != right.Primitive.IsFloat() {
		if left.Primitive.IsFloat() {
			result = left
		} else {
			result = right
		}
	} else if left.Primitive.Rank() != right.Primitive.Rank() {
		if left.Primitive.Rank() > right.Primitive.Rank() {
			result = left
		} else {
			result = right
		}
	} else if left.Primitive.IsSigned() != right.Primitive.IsSigned() {
		if left.Primitive.IsSigned() {
			result = ast.TypeData{Kind: ast.KindPrimitive, Primitive: flipSign(left.Primitive)}
		} else {
			result = left
		}
	}
	return left, right, result, true
}

// isTypeCastPermissible reports whether `cast(expr, T)` may convert from
// to to: integer<->integer, integer<->float, float<->float among the
// primitives, plus pointer<->pointer and pointer<->integer of matching
// width, which are tested first since they key off flags rather than
// Primitive.
func isTypeCastPermissible(from, to ast.TypeData) bool {
	if to.Kind == ast.KindPrimitive && to.Primitive == ast.Void && !to.Flags.Has(ast.POINTER) {
		return false
	}
	if from.Kind == ast.KindPrimitive && from.Primitive == ast.Void && !from.Flags.Has(ast.POINTER) {
		return false
	}
	if from.Flags.Has(ast.POINTER) && to.Flags.Has(ast.POINTER) {
		return true
	}
	if from.Flags.Has(ast.POINTER) && to.Kind == ast.KindPrimitive && to.Primitive.IsIntegral() {
		return pointerWidthMatches(to.Primitive)
	}
	if to.Flags.Has(ast.POINTER) && from.Kind == ast.KindPrimitive && from.Primitive.IsIntegral() {
		return pointerWidthMatches(from.Primitive)
	}
	if from.Flags.Has(ast.POINTER) || to.Flags.Has(ast.POINTER) {
		return false
	}
	if from.Kind != ast.KindPrimitive || to.Kind != ast.KindPrimitive {
		return false
	}
	fromNumeric := from.Primitive.IsIntegral() || from.Primitive.IsFloat()
	toNumeric := to.Primitive.IsIntegral() || to.Primitive.IsFloat()
	return fromNumeric && toNumeric
}

// pointerWidthMatches reports whether p is wide enough to round-trip a
// pointer value on this front end's assumed 64-bit target.
func pointerWidthMatches(p ast.Primitive) bool {
	return p == ast.U64 || p == ast.I64
}

// isTypeCastEligible is an alias kept distinct from isTypeCastPermissible
// per checker.hpp's own split: permissible answers "is this pair in the
// cast table", eligible first promotes a non-concrete (untyped literal)
// source to its default concrete type and then consults the table.
func isTypeCastEligible(from, to ast.TypeData) bool {
	if from.Flags.Has(ast.NON_CONCRETE) && !isNullPointerType(from) {
		from = defaultPromotion(from)
	}
	return isTypeCastPermissible(from, to)
}
