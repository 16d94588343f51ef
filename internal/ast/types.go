package ast

import "fmt"

// InvalidSymbolIndex is never assigned to a real symbol.
const InvalidSymbolIndex uint32 = 0

// TypeFlags is a bitset over the properties a TypeData can carry at once.
type TypeFlags uint32

const (
	CONSTANT TypeFlags = 1 << iota
	FOREIGN
	POINTER
	GLOBAL
	ARRAY
	PROCARG
	DEFAULT_INIT
	INFERRED
	NON_CONCRETE
	RVALUE
	UNINITIALIZED
	PROC_METHOD
	PROC_VARARGS
	FOREIGN_C
	INTERNAL
	PLACEHOLDER
	GENBASE
	GENPERM
)

func (f TypeFlags) Has(bit TypeFlags) bool { return f&bit != 0 }

// TypeKind discriminates what a TypeData describes.
type TypeKind uint8

const (
	KindNone TypeKind = iota
	KindPrimitive
	KindProcedure
	KindStruct
)

func (k TypeKind) String() string {
	switch k {
	case KindPrimitive:
		return "primitive"
	case KindProcedure:
		return "procedure"
	case KindStruct:
		return "struct"
	default:
		return "none"
	}
}

// Primitive enumerates the scalar type keywords of the language.
type Primitive uint8

const (
	PrimNone Primitive = iota
	U8
	I8
	U16
	I16
	U32
	I32
	U64
	I64
	F32
	F64
	Bool
	Void
)

var primitiveNames = map[Primitive]string{
	U8: "u8", I8: "i8", U16: "u16", I16: "i16",
	U32: "u32", I32: "i32", U64: "u64", I64: "i64",
	F32: "f32", F64: "f64", Bool: "bool", Void: "void",
}

func (p Primitive) String() string {
	if s, ok := primitiveNames[p]; ok {
		return s
	}
	return "none"
}

// IsSigned reports whether arithmetic on p may produce negative values.
func (p Primitive) IsSigned() bool {
	switch p {
	case I8, I16, I32, I64, F32, F64:
		return true
	default:
		return false
	}
}

// IsFloat reports whether p is a floating point primitive.
func (p Primitive) IsFloat() bool {
	return p == F32 || p == F64
}

// IsIntegral reports whether p is an integer primitive (not float, not bool/void).
func (p Primitive) IsIntegral() bool {
	switch p {
	case U8, I8, U16, I16, U32, I32, U64, I64:
		return true
	default:
		return false
	}
}

// Rank orders primitives by storage width, used for promotion decisions.
// Two primitives of equal rank but different signedness promote to unsigned.
func (p Primitive) Rank() int {
	switch p {
	case U8, I8:
		return 1
	case U16, I16:
		return 2
	case U32, I32, F32:
		return 3
	case U64, I64, F64:
		return 4
	default:
		return 0
	}
}

// TypeData is the canonical description of any type expression in the
// language: a variable's declared type, a procedure's signature, a struct
// member's type, or the inferred type of an expression.
//
// parameters and return_type are pointers so that generic permutations and
// compose-block methods can share signature fragments the way the original
// shares ref-counted sub-trees; callers must clone before mutating a shared
// TypeData in place.
type TypeData struct {
	Kind         TypeKind
	Name         string // fully qualified struct name, or empty for procedures
	Primitive    Primitive
	PointerDepth uint16
	ArrayLengths []uint32
	Flags        TypeFlags
	Parameters   *[]TypeData
	ReturnType   *TypeData
	SymRef       uint32 // generic base symbol index, for GENPERM types
}

// Clone makes a value copy safe to mutate without disturbing anything else
// sharing the original's Parameters/ReturnType pointers.
func (t TypeData) Clone() TypeData {
	out := t
	if t.ArrayLengths != nil {
		out.ArrayLengths = append([]uint32(nil), t.ArrayLengths...)
	}
	if t.Parameters != nil {
		params := append([]TypeData(nil), (*t.Parameters)...)
		out.Parameters = &params
	}
	if t.ReturnType != nil {
		rt := t.ReturnType.Clone()
		out.ReturnType = &rt
	}
	return out
}

func (t TypeData) String() string {
	prefix := ""
	for i := uint16(0); i < t.PointerDepth; i++ {
		prefix += "^"
	}
	switch t.Kind {
	case KindProcedure:
		params := ""
		if t.Parameters != nil {
			for i, p := range *t.Parameters {
				if i > 0 {
					params += ", "
				}
				params += p.String()
			}
		}
		ret := "void"
		if t.ReturnType != nil {
			ret = t.ReturnType.String()
		}
		return fmt.Sprintf("%sproc(%s) -> %s", prefix, params, ret)
	case KindStruct:
		name := t.Name
		for _, n := range t.ArrayLengths {
			name = fmt.Sprintf("%s[%d]", name, n)
		}
		return prefix + name
	default:
		name := t.Primitive.String()
		for _, n := range t.ArrayLengths {
			name = fmt.Sprintf("%s[%d]", name, n)
		}
		return prefix + name
	}
}

// MemberData is one member of a UserType: either a data field or, when
// Type.Flags has PROC_METHOD set and Type.SymRef refers to a procedure
// symbol, a compose-block method.
type MemberData struct {
	Name string
	Type TypeData
}

// UserType is a struct declared in the language (or a placeholder installed
// for a forward reference to one).
type UserType struct {
	Members          []MemberData
	Flags            TypeFlags // PLACEHOLDER, GENBASE, GENPERM
	PosFirstUsed     int
	LineFirstUsed    uint32
	GenericTypeNames []string
}

// Symbol is one entry in the entity table: a variable, procedure, or struct
// name bound at some scope and namespace.
type Symbol struct {
	SymbolIndex      uint32
	Name             string
	Type             TypeData
	SrcPos           int
	LineNumber       uint32
	File             string
	Namespace        string // fully qualified, e.g. `\A\B\`
	Flags            TypeFlags
	GenericTypeNames []string
}

func (s *Symbol) IsPlaceholder() bool { return s.Flags.Has(PLACEHOLDER) }
func (s *Symbol) IsGenericBase() bool { return s.Flags.Has(GENBASE) }
func (s *Symbol) IsGenericPerm() bool { return s.Flags.Has(GENPERM) }
