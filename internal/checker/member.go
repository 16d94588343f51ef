package checker

import (
	"fmt"

	"github.com/tak-lang/tak/internal/ast"
)

// memberDataType returns the TypeData a struct member designates: its own
// Type for a data field, or the referenced procedure's signature (wrapped
// as a pointer rvalue, the same treatment visitNode gives a bare
// procedure name) for a compose-block method, recognized by SymRef being
// set on a member that carries no Kind of its own.
func (c *Checker) memberDataType(m ast.MemberData) ast.TypeData {
	if m.Type.Kind == ast.KindNone && m.Type.SymRef != 0 {
		sym := c.tbl.LookupUniqueSymbol(m.Type.SymRef)
		return procedureValueType(sym.Type)
	}
	return m.Type
}

// resolveMemberPath walks path against baseTypeName's member list,
// descending into a sub-struct member (found through at most one pointer
// level, with no array dimensions) for every path segment but the last.
// Grounded on original_source/tak/src/checker/get.cpp's
// get_struct_member_type_data.
func (c *Checker) resolveMemberPath(baseTypeName string, path []string) (ast.TypeData, bool) {
	if !c.tbl.TypeExists(baseTypeName) || len(path) == 0 {
		return ast.TypeData{}, false
	}
	return c.recurseMemberPath(c.tbl.LookupTypeMembers(baseTypeName), path, 0)
}

func (c *Checker) recurseMemberPath(members []ast.MemberData, path []string, idx int) (ast.TypeData, bool) {
	for _, m := range members {
		if m.Name != path[idx] {
			continue
		}
		mt := c.memberDataType(m)
		if idx+1 >= len(path) {
			return mt, true
		}
		if mt.Kind == ast.KindStruct && c.tbl.TypeExists(mt.Name) && len(mt.ArrayLengths) == 0 && mt.PointerDepth < 2 {
			return c.recurseMemberPath(c.tbl.LookupTypeMembers(mt.Name), path, idx+1)
		}
		return ast.TypeData{}, false
	}
	return ast.TypeData{}, false
}

// visitMemberAccess implements spec.md §4.5's member-access contract: the
// base's type (dereferenced through at most one pointer level) must be a
// struct, its dotted path must resolve to a member, and the result
// inherits the base's lvalue-ness (RVALUE flag) rather than the member
// declaration's own default.
func (c *Checker) visitMemberAccess(n *ast.NMemberAccess, pos int) (ast.TypeData, bool) {
	baseT, ok := c.visitNode(&n.Target)
	if !ok {
		return ast.TypeData{}, false
	}

	structT := *baseT
	if structT.PointerDepth == 1 && !structT.Flags.Has(ast.ARRAY) {
		structT.PointerDepth = 0
		structT.Flags &^= ast.POINTER
	}
	if structT.Kind != ast.KindStruct || structT.PointerDepth > 0 {
		c.raiseError(pos, fmt.Sprintf("cannot access members of non-struct type %s", baseT.String()))
		return ast.TypeData{}, false
	}

	result, ok := c.resolveMemberPath(structT.Name, n.Path)
	if !ok {
		c.raiseError(pos, fmt.Sprintf("struct member does not exist: %s", joinPath(n.Path)))
		return ast.TypeData{}, false
	}

	result.Flags = (result.Flags &^ ast.RVALUE) | (baseT.Flags & ast.RVALUE)
	return result, true
}

func joinPath(path []string) string {
	out := ""
	for i, p := range path {
		if i > 0 {
			out += "."
		}
		out += p
	}
	return out
}

// assignBracedExprToStruct pairwise-coerces a braced initializer's
// elements against dstType's member list, descending into nested structs
// for nested braces. Grounded on get.cpp's assign_bracedexpr_to_struct.
func (c *Checker) assignBracedExprToStruct(dstType ast.TypeData, expr *ast.NBracedExpression, pos int) bool {
	if dstType.Flags.Has(ast.RVALUE) {
		c.raiseError(pos, fmt.Sprintf("cannot assign this braced expression to lefthand type %s", dstType.String()))
		return false
	}
	if !c.tbl.TypeExists(dstType.Name) {
		c.raiseError(pos, fmt.Sprintf("unknown struct type %s", dstType.Name))
		return false
	}
	members := c.tbl.LookupTypeMembers(dstType.Name)

	if len(members) != len(expr.Elements) {
		c.raiseError(pos, fmt.Sprintf(
			"number of elements within braced expression (%d) does not match the struct type %s (%d members)",
			len(expr.Elements), dstType.String(), len(members)))
		return false
	}

	ok := true
	for i := range members {
		mt := c.memberDataType(members[i])
		if mt.Kind == ast.KindStruct {
			if sub, isBraced := expr.Elements[i].Data.(*ast.NBracedExpression); isBraced {
				if !c.assignBracedExprToStruct(mt, sub, expr.Elements[i].Loc.Pos) {
					ok = false
				}
				continue
			}
		}
		elemT, visitOk := c.visitNode(&expr.Elements[i])
		if !visitOk {
			c.raiseError(expr.Elements[i].Loc.Pos, fmt.Sprintf("could not deduce type of element %d in braced expression", i+1))
			ok = false
			continue
		}
		if !isTypeCoercionPermissible(mt, *elemT) {
			c.raiseError(expr.Elements[i].Loc.Pos, fmt.Sprintf(
				"cannot coerce element %d of braced expression to type %s (%s was given)",
				i+1, mt.String(), elemT.String()))
			ok = false
		}
	}
	return ok
}

// inferBracedExprAsArray types a braced expression with no coercion
// target as a one-dimensional-richer array: every element (or nested
// brace, recursively) must agree on a single contained type. Grounded on
// get.cpp's get_bracedexpr_as_array_t.
func (c *Checker) inferBracedExprAsArray(expr *ast.NBracedExpression, pos int) (ast.TypeData, bool) {
	if len(expr.Elements) == 0 {
		c.raiseError(pos, "cannot infer the type of an empty braced expression")
		return ast.TypeData{}, false
	}

	var contained ast.TypeData
	if sub, isBraced := expr.Elements[0].Data.(*ast.NBracedExpression); isBraced {
		t, ok := c.inferBracedExprAsArray(sub, expr.Elements[0].Loc.Pos)
		if !ok {
			return ast.TypeData{}, false
		}
		contained = t
	} else {
		t, ok := c.visitNode(&expr.Elements[0])
		if !ok {
			return ast.TypeData{}, false
		}
		contained = *t
	}
	if isTypeInvalidInInferredContext(contained) {
		c.raiseError(pos, "braced expression's first element has a type that cannot be inferred")
		return ast.TypeData{}, false
	}

	for i := 1; i < len(expr.Elements); i++ {
		if sub, isBraced := expr.Elements[i].Data.(*ast.NBracedExpression); isBraced {
			subT, ok := c.inferBracedExprAsArray(sub, expr.Elements[i].Loc.Pos)
			if !ok {
				return ast.TypeData{}, false
			}
			if !contained.Flags.Has(ast.ARRAY) || !areArrayTypesEquivalent(contained, subT) {
				c.raiseError(expr.Elements[i].Loc.Pos, "inconsistent element types within braced expression")
				return ast.TypeData{}, false
			}
			continue
		}
		elemT, ok := c.visitNode(&expr.Elements[i])
		if !ok {
			return ast.TypeData{}, false
		}
		if !isTypeCoercionPermissible(contained, *elemT) {
			c.raiseError(expr.Elements[i].Loc.Pos, "inconsistent element types within braced expression")
			return ast.TypeData{}, false
		}
	}

	contained.Flags |= ast.ARRAY
	contained.ArrayLengths = append([]uint32{uint32(len(expr.Elements))}, contained.ArrayLengths...)
	return contained, true
}
