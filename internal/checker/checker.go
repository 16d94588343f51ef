// Package checker implements the front end's single semantic pass:
// spec.md §4.5's visit_node contract, computing a TypeData for every
// expression and enforcing assignability, coercion, cast, and arity
// rules against the entity table the parser and post-parser already
// populated. Grounded in original_source/tak/src/checker/get.cpp and
// include/checker.hpp for the eligibility predicates and member/braced-
// expression resolution, and in the teacher's single-pass recursive
// visitExpr dispatch for overall shape.
package checker

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/tak-lang/tak/internal/ast"
	"github.com/tak-lang/tak/internal/config"
	"github.com/tak-lang/tak/internal/entity"
	"github.com/tak-lang/tak/internal/logger"
)

// Checker holds the single-pass state threaded through one compilation's
// worth of checking: the shared entity table, a batching diagnostic log,
// the active configuration, and the control-flow context (enclosing
// procedure return type, loop nesting depth, per-scope defer stacks) that
// only exists while walking a procedure body.
type Checker struct {
	tbl *entity.Table
	log logger.Log
	cfg config.Options

	errorCount int
	loopDepth  int
	retStack   []*ast.TypeData
	deferStack [][]*ast.Node
}

// New returns a checker bound to tbl, reporting through log (the same
// logger.Log instance the parser and post-parser already wrote to, so
// diagnostics from every stage share one ordering and one message limit).
func New(tbl *entity.Table, log logger.Log, cfg config.Options) *Checker {
	return &Checker{tbl: tbl, log: log, cfg: cfg}
}

// Run type-checks every top-level declaration in order, stopping once the
// error ceiling is reached. It returns false when any error was raised,
// mirroring postparser.Run's success/failure convention.
func Run(tbl *entity.Table, topLevel []ast.Node, log logger.Log, cfg config.Options) bool {
	c := New(tbl, log, cfg)
	for i := range topLevel {
		c.visitTopLevel(&topLevel[i])
		if c.errorCount >= c.maxErrors() {
			break
		}
	}
	return c.errorCount == 0
}

func (c *Checker) maxErrors() int {
	if c.cfg.MaxErrors > 0 {
		return c.cfg.MaxErrors
	}
	return config.DefaultMaxErrors
}

// raiseError reports an error message to the checker's log, matching
// report_error.cpp's "ERROR: " prefix convention; no *logger.Source is
// attached at this stage, so the message carries no file location.
func (c *Checker) raiseError(pos int, msg string) {
	c.errorCount++
	c.log.AddError(nil, logger.Loc{Start: int32(pos)}, "ERROR: "+msg)
}

// raiseWarning reports a warning, promoted to an error when WarnIsError is
// set, per spec.md §7's supplemented warning/error split.
func (c *Checker) raiseWarning(pos int, msg string) {
	if c.cfg.Flags.Has(config.WarnIsError) {
		c.raiseError(pos, msg)
		return
	}
	c.log.AddWarning(nil, logger.Loc{Start: int32(pos)}, "WARNING: "+msg)
}

// procedureValueType wraps a bare procedure signature as the pointer
// rvalue a procedure name evaluates to when referenced as a value,
// per spec.md §4.5's identifier contract.
func procedureValueType(t ast.TypeData) ast.TypeData {
	if t.Kind != ast.KindProcedure || t.Flags.Has(ast.POINTER) {
		return t
	}
	out := t.Clone()
	out.Flags |= ast.POINTER | ast.RVALUE
	out.PointerDepth = 1
	return out
}

// visitTopLevel dispatches the top-level declaration kinds spec.md §6's
// NODE_NEEDS_VISITING exclusion list leaves out of the general expression
// walk: struct and enum definitions need no further checking (their
// members were already validated and installed by the parser), so only
// procedures, namespaces, compose blocks, and variable declarations
// recurse further; any other top-level node (an expression statement such
// as an assignment) is checked as an ordinary statement.
func (c *Checker) visitTopLevel(n *ast.Node) {
	switch d := n.Data.(type) {
	case *ast.NProcDecl:
		c.visitProcDecl(d)
	case *ast.NNamespaceDecl:
		for i := range d.Body {
			c.visitTopLevel(&d.Body[i])
		}
	case *ast.NCompose:
		for i := range d.Procs {
			c.visitProcDecl(&d.Procs[i])
		}
	case *ast.NStructDef, *ast.NEnumDef:
		// No further visitation: structdef.go/enum parsing already
		// installed and validated the member list.
	case *ast.NVarDecl:
		c.visitVarDecl(d, n.Loc.Pos)
	default:
		c.visitStatement(n)
	}
}

func (c *Checker) visitProcDecl(d *ast.NProcDecl) {
	if d.Foreign || d.ForeignC {
		return
	}
	// A generic base is only a template: its parameters carry placeholder
	// types, and each concrete permutation is checked as its own decl.
	if len(d.GenericTypeNames) > 0 {
		return
	}
	c.retStack = append(c.retStack, d.ReturnType)
	c.pushDeferFrame()
	c.visitStatements(d.Body)
	c.popDeferFrame()
	c.retStack = c.retStack[:len(c.retStack)-1]
}

// visitNode computes the type of one expression node, returning ok=false
// when an error has already been raised at this position.
func (c *Checker) visitNode(n *ast.Node) (*ast.TypeData, bool) {
	if n == nil || n.Data == nil {
		return nil, false
	}
	pos := n.Loc.Pos

	switch d := n.Data.(type) {
	case *ast.NIdentifier:
		sym := c.tbl.LookupUniqueSymbol(d.SymbolIndex)
		t := procedureValueType(sym.Type)
		return &t, true

	case *ast.NSingletonLiteral:
		t, ok := c.visitSingletonLiteral(d, pos)
		return &t, ok

	case *ast.NUnary:
		return c.visitUnary(d, pos)

	case *ast.NBinary:
		return c.visitBinary(d, pos)

	case *ast.NCall:
		return c.visitCall(d, pos)

	case *ast.NSubscript:
		return c.visitSubscript(d, pos)

	case *ast.NMemberAccess:
		t, ok := c.visitMemberAccess(d, pos)
		return &t, ok

	case *ast.NCast:
		return c.visitCast(d, pos)

	case *ast.NSizeof:
		return c.visitSizeof(d, pos)

	case *ast.NBracedExpression:
		t, ok := c.inferBracedExprAsArray(d, pos)
		return &t, ok

	default:
		c.raiseError(pos, "this expression cannot be used as a value")
		return nil, false
	}
}

func (c *Checker) visitSingletonLiteral(d *ast.NSingletonLiteral, pos int) (ast.TypeData, bool) {
	switch d.Kind {
	case ast.LitInt:
		return nonConcreteInt(), true
	case ast.LitFloat:
		return nonConcreteFloat(), true
	case ast.LitString:
		n := stringLiteralLength(d.Text)
		return ast.TypeData{Kind: ast.KindPrimitive, Primitive: ast.U8, Flags: ast.ARRAY | ast.RVALUE, ArrayLengths: []uint32{n}}, true
	case ast.LitChar:
		if !charLiteralValid(d.Text) {
			c.raiseError(pos, "character literal must contain exactly one byte")
			return ast.TypeData{}, false
		}
		return ast.TypeData{Kind: ast.KindPrimitive, Primitive: ast.U8, Flags: ast.RVALUE}, true
	case ast.LitBool:
		return ast.TypeData{Kind: ast.KindPrimitive, Primitive: ast.Bool, Flags: ast.RVALUE}, true
	case ast.LitNullptr:
		return nullPointerLiteral(), true
	default:
		c.raiseError(pos, "unrecognized literal kind")
		return ast.TypeData{}, false
	}
}

func (c *Checker) visitUnary(d *ast.NUnary, pos int) (*ast.TypeData, bool) {
	operand, ok := c.visitNode(&d.Operand)
	if !ok {
		return nil, false
	}

	switch d.Op {
	case ast.MINUS, ast.PLUS:
		if !isTypeArithmeticEligible(*operand) {
			c.raiseError(pos, fmt.Sprintf("operator cannot be applied to type %s", operand.String()))
			return nil, false
		}
		out := *operand
		return &out, true

	case ast.BITWISE_NOT:
		if !isTypeBwopEligible(*operand) {
			c.raiseError(pos, fmt.Sprintf("operator '~' cannot be applied to type %s", operand.String()))
			return nil, false
		}
		out := *operand
		return &out, true

	case ast.LOGICAL_NOT:
		if !isTypeLopEligible(*operand) {
			c.raiseError(pos, fmt.Sprintf("operator '!' cannot be applied to type %s", operand.String()))
			return nil, false
		}
		out := ast.TypeData{Kind: ast.KindPrimitive, Primitive: ast.Bool, Flags: ast.RVALUE}
		return &out, true

	case ast.BITWISE_AND:
		addressed, ok := getAddressedType(*operand)
		if !ok {
			c.raiseError(pos, "cannot take the address of this expression")
			return nil, false
		}
		return &addressed, true

	case ast.MUL:
		deref, ok := getDereferencedType(*operand)
		if !ok {
			c.raiseError(pos, fmt.Sprintf("cannot dereference non-pointer type %s", operand.String()))
			return nil, false
		}
		return &deref, true

	default:
		c.raiseError(pos, "unsupported unary operator")
		return nil, false
	}
}

// getDereferencedType and getAddressedType are grounded directly on
// get.cpp's eponymous helpers.
func getDereferencedType(t ast.TypeData) (ast.TypeData, bool) {
	out := t.Clone()
	switch {
	case out.Flags.Has(ast.ARRAY):
		out.ArrayLengths = out.ArrayLengths[:len(out.ArrayLengths)-1]
		if len(out.ArrayLengths) == 0 {
			out.Flags &^= ast.ARRAY
		}
	case out.Flags.Has(ast.POINTER):
		out.PointerDepth--
		if out.PointerDepth == 0 {
			out.Flags &^= ast.POINTER
		}
	default:
		return ast.TypeData{}, false
	}
	if out.Kind == ast.KindProcedure && !out.Flags.Has(ast.POINTER) {
		return ast.TypeData{}, false
	}
	if out.Kind == ast.KindPrimitive && out.Primitive == ast.Void && !out.Flags.Has(ast.POINTER) {
		return ast.TypeData{}, false
	}
	out.Flags &^= ast.RVALUE
	return out, true
}

func getAddressedType(t ast.TypeData) (ast.TypeData, bool) {
	if t.Flags.Has(ast.ARRAY) || t.Flags.Has(ast.RVALUE) {
		return ast.TypeData{}, false
	}
	out := t.Clone()
	out.PointerDepth++
	out.Flags |= ast.POINTER | ast.RVALUE
	return out, true
}

func (c *Checker) visitBinary(d *ast.NBinary, pos int) (*ast.TypeData, bool) {
	leftT, ok := c.visitNode(&d.Left)
	if !ok {
		return nil, false
	}
	rightT, ok := c.visitNode(&d.Right)
	if !ok {
		return nil, false
	}

	if d.Op.IsAssignment() {
		result, ok := c.visitAssignment(d.Op, *leftT, *rightT, pos)
		if ok && !c.checkLiteralNarrowing(*leftT, &d.Right) {
			return nil, false
		}
		return result, ok
	}

	prec := d.Op.BinaryPrecedence()
	switch {
	case prec == 1: // ||
		if !isTypeLopEligible(*leftT) || !isTypeLopEligible(*rightT) {
			c.raiseError(pos, "operands of '||' must be convertible to bool")
			return nil, false
		}
		out := ast.TypeData{Kind: ast.KindPrimitive, Primitive: ast.Bool, Flags: ast.RVALUE}
		return &out, true

	case prec == 2 || prec == 3 || prec == 4 || prec == 7: // | ^ & << >>
		if !isTypeBwopEligible(*leftT) || !isTypeBwopEligible(*rightT) {
			c.raiseError(pos, fmt.Sprintf("operands of this bitwise operator must be integral (got %s and %s)", leftT.String(), rightT.String()))
			return nil, false
		}
		_, _, result, ok := promoteBinaryOperands(*leftT, *rightT)
		if !ok {
			c.raiseError(pos, "incompatible operand types")
			return nil, false
		}
		result.Flags &^= ast.RVALUE
		result.Flags |= ast.RVALUE
		return &result, true

	case prec == 5: // == !=
		if !isTypeCoercionPermissible(*leftT, *rightT) && !isTypeCoercionPermissible(*rightT, *leftT) {
			c.raiseError(pos, fmt.Sprintf("cannot compare incompatible types %s and %s", leftT.String(), rightT.String()))
			return nil, false
		}
		out := ast.TypeData{Kind: ast.KindPrimitive, Primitive: ast.Bool, Flags: ast.RVALUE}
		return &out, true

	case prec == 6: // < <= > >=
		if !isTypeArithmeticEligible(*leftT) || !isTypeArithmeticEligible(*rightT) {
			c.raiseError(pos, fmt.Sprintf("operands of a comparison must be numeric or pointer types (got %s and %s)", leftT.String(), rightT.String()))
			return nil, false
		}
		out := ast.TypeData{Kind: ast.KindPrimitive, Primitive: ast.Bool, Flags: ast.RVALUE}
		return &out, true

	case prec == 8 || prec == 9: // + - * / %
		if !isTypeArithmeticEligible(*leftT) || !isTypeArithmeticEligible(*rightT) {
			c.raiseError(pos, fmt.Sprintf("operator cannot be applied to types %s and %s", leftT.String(), rightT.String()))
			return nil, false
		}
		if leftT.Flags.Has(ast.POINTER) || rightT.Flags.Has(ast.POINTER) {
			if leftT.Flags.Has(ast.POINTER) {
				out := *leftT
				out.Flags |= ast.RVALUE
				return &out, true
			}
			out := *rightT
			out.Flags |= ast.RVALUE
			return &out, true
		}
		_, _, result, ok := promoteBinaryOperands(*leftT, *rightT)
		if !ok {
			c.raiseError(pos, fmt.Sprintf("incompatible operand types %s and %s", leftT.String(), rightT.String()))
			return nil, false
		}
		result.Flags |= ast.RVALUE
		return &result, true

	default:
		c.raiseError(pos, "unsupported binary operator")
		return nil, false
	}
}

func (c *Checker) visitAssignment(op ast.TokenType, left, right ast.TypeData, pos int) (*ast.TypeData, bool) {
	if !isTypeReassignable(left) {
		c.raiseError(pos, fmt.Sprintf("left-hand side of assignment (type %s) is not assignable", left.String()))
		return nil, false
	}
	if op != ast.VALUE_ASSIGNMENT {
		var opClass ast.TokenType
		switch op {
		case ast.PLUS_ASSIGN, ast.MINUS_ASSIGN, ast.MUL_ASSIGN, ast.DIV_ASSIGN, ast.MOD_ASSIGN:
			opClass = ast.PLUS
		default:
			opClass = ast.BITWISE_AND
		}
		if !canOperatorBeAppliedTo(opClass, left) {
			c.raiseError(pos, fmt.Sprintf("compound assignment operator cannot be applied to type %s", left.String()))
			return nil, false
		}
	}
	if !isTypeCoercionPermissible(left, right) {
		c.raiseError(pos, fmt.Sprintf("cannot assign value of type %s to variable of type %s", right.String(), left.String()))
		return nil, false
	}
	out := left
	return &out, true
}

func (c *Checker) visitCall(d *ast.NCall, pos int) (*ast.TypeData, bool) {
	calleeT, ok := c.visitNode(&d.Callee)
	if !ok {
		return nil, false
	}

	sig := *calleeT
	if sig.Flags.Has(ast.POINTER) && sig.PointerDepth == 1 && sig.Kind == ast.KindProcedure {
		sig.Flags &^= ast.POINTER
		sig.PointerDepth = 0
	}
	if sig.Kind != ast.KindProcedure {
		c.raiseError(pos, fmt.Sprintf("cannot call a value of non-procedure type %s", calleeT.String()))
		return nil, false
	}

	params := paramsOf(sig)
	variadic := sig.Flags.Has(ast.PROC_VARARGS)
	if len(d.Args) < len(params) || (!variadic && len(d.Args) != len(params)) {
		c.raiseError(pos, fmt.Sprintf("wrong number of arguments: expected %d, got %d", len(params), len(d.Args)))
		return nil, false
	}

	ok = true
	for i := range d.Args {
		argT, visitOk := c.visitNode(&d.Args[i])
		if !visitOk {
			ok = false
			continue
		}
		if i >= len(params) {
			continue // trailing variadic argument, unchecked
		}
		if !isTypeCoercionPermissible(params[i], *argT) {
			c.raiseError(d.Args[i].Loc.Pos, fmt.Sprintf(
				"argument %d is not coercible to parameter type %s (%s was given)", i+1, params[i].String(), argT.String()))
			ok = false
			continue
		}
		if !c.checkLiteralNarrowing(params[i], &d.Args[i]) {
			ok = false
		}
	}
	if !ok {
		return nil, false
	}

	ret := returnOf(sig)
	ret.Flags |= ast.RVALUE
	return &ret, true
}

func (c *Checker) visitSubscript(d *ast.NSubscript, pos int) (*ast.TypeData, bool) {
	targetT, ok := c.visitNode(&d.Target)
	if !ok {
		return nil, false
	}
	indexT, ok := c.visitNode(&d.Index)
	if !ok {
		return nil, false
	}
	if indexT.Kind != ast.KindPrimitive || !indexT.Primitive.IsIntegral() {
		if !indexT.Flags.Has(ast.NON_CONCRETE) {
			c.raiseError(d.Index.Loc.Pos, fmt.Sprintf("subscript index must be an integer (got %s)", indexT.String()))
			return nil, false
		}
	}
	if !targetT.Flags.Has(ast.ARRAY) && !targetT.Flags.Has(ast.POINTER) {
		c.raiseError(pos, fmt.Sprintf("cannot subscript non-array, non-pointer type %s", targetT.String()))
		return nil, false
	}
	result, ok := getDereferencedType(*targetT)
	if !ok {
		c.raiseError(pos, fmt.Sprintf("cannot subscript type %s", targetT.String()))
		return nil, false
	}
	return &result, true
}

func (c *Checker) visitCast(d *ast.NCast, pos int) (*ast.TypeData, bool) {
	fromT, ok := c.visitNode(&d.Target)
	if !ok {
		return nil, false
	}
	if !isTypeCastEligible(*fromT, d.To) {
		c.raiseError(pos, fmt.Sprintf("cannot cast value of type %s to type %s", fromT.String(), d.To.String()))
		return nil, false
	}
	out := d.To
	out.Flags |= ast.RVALUE
	return &out, true
}

func (c *Checker) visitSizeof(d *ast.NSizeof, pos int) (*ast.TypeData, bool) {
	if d.Expr != nil {
		if _, ok := c.visitNode(d.Expr); !ok {
			return nil, false
		}
	}
	out := ast.TypeData{Kind: ast.KindPrimitive, Primitive: ast.U64, Flags: ast.NON_CONCRETE, PointerDepth: 0}
	_ = pos
	return &out, true
}

// visitVarDecl type-checks a declaration statement, updating the stored
// symbol's Type in place for inferred/constant declarations (the parser
// installed only an INFERRED placeholder shape at parse time).
func (c *Checker) visitVarDecl(d *ast.NVarDecl, pos int) {
	sym := c.tbl.LookupUniqueSymbol(d.Identifier.SymbolIndex)

	if d.IsInferred {
		if d.Init == nil {
			c.raiseError(pos, "inferred declaration requires an initializer")
			return
		}
		initT, ok := c.visitNode(d.Init)
		if !ok {
			return
		}
		if isTypeInvalidInInferredContext(*initT) {
			c.raiseError(pos, fmt.Sprintf("type %s cannot be used in an inferred declaration", initT.String()))
			return
		}
		resolved := defaultPromotion(*initT)
		resolved.Flags |= sym.Flags & (ast.CONSTANT | ast.GLOBAL)
		sym.Type = resolved
		return
	}

	if d.Type == nil {
		c.raiseError(pos, "declaration is missing a type")
		return
	}

	if d.Init == nil {
		return
	}

	if d.Type.Kind == ast.KindStruct {
		if braced, isBraced := d.Init.Data.(*ast.NBracedExpression); isBraced {
			c.assignBracedExprToStruct(*d.Type, braced, d.Init.Loc.Pos)
			return
		}
	}

	initT, ok := c.visitNode(d.Init)
	if !ok {
		return
	}
	if !isTypeCoercionPermissible(*d.Type, *initT) {
		c.raiseError(pos, fmt.Sprintf("cannot initialize variable of type %s with value of type %s", d.Type.String(), initT.String()))
		return
	}
	c.checkLiteralNarrowing(*d.Type, d.Init)
}

// visitStatements walks a block's statement list under a fresh defer
// frame, flushing (type-checking) any deferred statements on every exit
// path this pass observes: the block falling through to its end.
func (c *Checker) visitStatements(stmts []ast.Node) {
	c.pushDeferFrame()
	for i := range stmts {
		c.visitStatement(&stmts[i])
		if c.errorCount >= c.maxErrors() {
			break
		}
	}
	c.flushDeferFrame()
	c.popDeferFrame()
}

func (c *Checker) pushDeferFrame() {
	c.deferStack = append(c.deferStack, nil)
}

func (c *Checker) popDeferFrame() {
	c.deferStack = c.deferStack[:len(c.deferStack)-1]
}

// flushDeferFrame type-checks every statement deferred within the
// innermost frame, in LIFO order, per spec.md's supplemented defer
// contract.
func (c *Checker) flushDeferFrame() {
	frame := c.deferStack[len(c.deferStack)-1]
	for i := len(frame) - 1; i >= 0; i-- {
		c.visitStatement(frame[i])
	}
}

func (c *Checker) visitStatement(n *ast.Node) {
	if n.Data == nil {
		return
	}
	pos := n.Loc.Pos

	switch d := n.Data.(type) {
	case *ast.NVarDecl:
		c.visitVarDecl(d, pos)

	case *ast.NBlock:
		c.visitStatements(d.Statements)

	case *ast.NBranch:
		c.checkCondition(&d.Cond, "if")
		c.visitStatements(d.Then)
		for i := range d.ElseIfs {
			c.checkCondition(&d.ElseIfs[i].Cond, "elif")
			c.visitStatements(d.ElseIfs[i].Body)
		}
		c.visitStatements(d.Else)

	case *ast.NSwitch:
		c.visitSwitch(d, pos)

	case *ast.NWhile:
		c.checkCondition(&d.Cond, "while")
		c.loopDepth++
		c.visitStatements(d.Body)
		c.loopDepth--

	case *ast.NDoWhile:
		c.loopDepth++
		c.visitStatements(d.Body)
		c.loopDepth--
		c.checkCondition(&d.Cond, "do-while")

	case *ast.NFor:
		if d.Init.Data != nil {
			c.visitStatement(&d.Init)
		}
		if d.Cond.Data != nil {
			c.checkCondition(&d.Cond, "for")
		}
		if d.Post.Data != nil {
			c.visitStatement(&d.Post)
		}
		c.loopDepth++
		c.visitStatements(d.Body)
		c.loopDepth--

	case *ast.NReturn:
		c.visitReturn(d, pos)

	case *ast.NDefer:
		c.deferStack[len(c.deferStack)-1] = append(c.deferStack[len(c.deferStack)-1], &d.Stmt)

	case *ast.NDeferIf:
		c.checkCondition(&d.Cond, "defer_if")
		c.deferStack[len(c.deferStack)-1] = append(c.deferStack[len(c.deferStack)-1], &d.Stmt)

	case *ast.NBreak, *ast.NContinue, *ast.NFallthrough:
		// Structurally validated at parse time (loop depth for break/
		// continue; switch-case depth and last-statement position for
		// fallthrough); nothing further to type-check.

	case *ast.NStructDef, *ast.NEnumDef:
		// Declarations nested in a block; members already validated.

	case *ast.NProcDecl:
		c.visitProcDecl(d)

	case *ast.NCompose:
		for i := range d.Procs {
			c.visitProcDecl(&d.Procs[i])
		}

	case *ast.NNamespaceDecl:
		for i := range d.Body {
			c.visitTopLevel(&d.Body[i])
		}

	default:
		c.visitNode(n)
	}
}

func (c *Checker) checkCondition(cond *ast.Node, what string) {
	t, ok := c.visitNode(cond)
	if !ok {
		return
	}
	if !isTypeLopEligible(*t) {
		c.raiseError(cond.Loc.Pos, fmt.Sprintf("%s condition must be a scalar convertible to bool (got %s)", what, t.String()))
	}
}

func (c *Checker) visitSwitch(d *ast.NSwitch, pos int) {
	targetT, ok := c.visitNode(&d.Target)
	if ok && (targetT.Kind != ast.KindPrimitive || !targetT.Primitive.IsIntegral()) && !targetT.Flags.Has(ast.NON_CONCRETE) {
		c.raiseError(pos, fmt.Sprintf("switch target must be an integral type (got %s)", targetT.String()))
	}

	for i := range d.Cases {
		cs := &d.Cases[i]
		valT, valOk := c.visitNode(&cs.Value)
		if valOk && (valT.Kind != ast.KindPrimitive || !valT.Primitive.IsIntegral()) && !valT.Flags.Has(ast.NON_CONCRETE) {
			c.raiseError(cs.Value.Loc.Pos, fmt.Sprintf("case value must be an integral constant (got %s)", valT.String()))
		}
		c.visitStatements(cs.Body)
	}
	c.visitStatements(d.Default)
}

func (c *Checker) visitReturn(d *ast.NReturn, pos int) {
	var declared ast.TypeData
	if len(c.retStack) > 0 && c.retStack[len(c.retStack)-1] != nil {
		declared = *c.retStack[len(c.retStack)-1]
	} else {
		declared = ast.TypeData{Kind: ast.KindPrimitive, Primitive: ast.Void}
	}

	if d.Value == nil {
		if declared.Kind == ast.KindPrimitive && declared.Primitive == ast.Void && !declared.Flags.Has(ast.POINTER) {
			return
		}
		c.raiseError(pos, fmt.Sprintf("expected a return value of type %s", declared.String()))
		return
	}

	valT, ok := c.visitNode(d.Value)
	if !ok {
		return
	}
	if declared.Kind == ast.KindPrimitive && declared.Primitive == ast.Void && !declared.Flags.Has(ast.POINTER) {
		c.raiseError(pos, "cannot return a value from a procedure with no declared return type")
		return
	}
	if !isTypeCoercionPermissible(declared, *valT) {
		c.raiseError(pos, fmt.Sprintf("return value of type %s is not coercible to the declared return type %s", valT.String(), declared.String()))
	}
}

// convertIntLitToType parses an integer literal's raw source text and
// reports whether its value fits within target's range, per spec.md §7's
// out-of-range literal narrowing error. A malformed token (which should
// never occur given the lexer's own grammar, but a checker must not trust
// upstream stages blindly) also reports false.
func convertIntLitToType(text string, target ast.Primitive) (int64, bool) {
	clean := strings.ReplaceAll(text, "_", "")
	base := 10
	if strings.HasPrefix(clean, "0x") || strings.HasPrefix(clean, "0X") {
		base = 16
		clean = clean[2:]
	}
	v, err := strconv.ParseUint(clean, base, 64)
	if err != nil {
		return 0, false
	}
	if max, ok := intPrimitiveBounds(target); ok && v > max {
		return int64(v), false
	}
	return int64(v), true
}

// convertFloatLitToType parses a float literal's raw source text and
// reports whether its magnitude fits within target's range (only f32 has
// a narrower range than the float64 this parses into).
func convertFloatLitToType(text string, target ast.Primitive) (float64, bool) {
	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, false
	}
	if target == ast.F32 && (v > math.MaxFloat32 || v < -math.MaxFloat32) {
		return v, false
	}
	return v, true
}

// checkLiteralNarrowing reports spec.md §7's out-of-range literal narrowing
// error when node is a bare numeric literal whose value cannot fit in
// target without an explicit cast. Anything other than a direct literal
// (an identifier, a sub-expression) already went through
// isTypeCoercionPermissible's ordinary type check and has no literal text
// to narrow against, so it is left alone here.
func (c *Checker) checkLiteralNarrowing(target ast.TypeData, node *ast.Node) bool {
	lit, isLit := node.Data.(*ast.NSingletonLiteral)
	if !isLit || target.Kind != ast.KindPrimitive {
		return true
	}
	switch lit.Kind {
	case ast.LitInt:
		if !target.Primitive.IsIntegral() {
			return true
		}
		if _, ok := convertIntLitToType(lit.Text, target.Primitive); !ok {
			c.raiseError(node.Loc.Pos, fmt.Sprintf("literal %s is out of range for type %s", lit.Text, target.Primitive.String()))
			return false
		}
	case ast.LitFloat:
		if target.Primitive != ast.F32 {
			return true
		}
		if _, ok := convertFloatLitToType(lit.Text, target.Primitive); !ok {
			c.raiseError(node.Loc.Pos, fmt.Sprintf("literal %s is out of range for type %s", lit.Text, target.Primitive.String()))
			return false
		}
	}
	return true
}
