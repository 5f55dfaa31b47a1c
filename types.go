package cnms

import "strconv"

// TypeKind tags one level of a type encoding.
type TypeKind uint8

const (
	// KindError is the sentinel produced whenever type checking fails;
	// it propagates through enclosing expressions without cascading
	// further diagnostics.
	KindError TypeKind = iota
	KindVoid

	// POD terminals, ordered by ascending conversion rank so that
	// arithmeticConversion can pick the wider of two kinds with a
	// simple maximum.
	KindBool
	KindChar
	KindI8
	KindU8
	KindI16
	KindU16
	KindI32
	KindU32
	KindI64
	KindU64
	KindISize
	KindUSize
	KindF32
	KindF64

	// Indirection levels: each continues into the level that follows.
	KindRef
	KindPtr
	KindArrPtr
	KindSlice

	// KindAny is the wildcard terminal. It is a POD-shaped terminal (one
	// cell, no Aux) but the type parser only accepts it once at least one
	// indirection level has already been consumed (&any, *any, &[]any);
	// a bare `any` is a type error.
	KindAny

	// Aggregate and compound levels.
	KindArr      // Aux = element count; continues into the element type
	KindPfn      // Aux = parameter count; continues into params then a return type
	KindStruct   // Aux = user type index; terminal
	KindEnum     // Aux = user type index; terminal
	KindTemplate // Aux = template parameter index; only inside an unexpanded typedef body
)

// Level is one cell of a flat type encoding: a class tag, a mutability
// bit, and sometimes an auxiliary integer (an array length, a user type
// index, a parameter count). A TypeRef is simply a slice of Levels;
// Length reconstructs how many Levels a given level and its nested
// types occupy.
type Level struct {
	Kind TypeKind
	Mut  bool
	Aux  int32
}

// TypeRef is a type encoding: a contiguous run of Levels starting with
// the outermost tag and ending after its last nested level.
type TypeRef []Level

// IsError reports whether t is the error sentinel type.
func (t TypeRef) IsError() bool {
	return len(t) == 0 || t[0].Kind == KindError
}

var kindNames = map[TypeKind]string{
	KindError: "<error>", KindVoid: "void", KindBool: "bool", KindChar: "char",
	KindI8: "i8", KindU8: "u8", KindI16: "i16", KindU16: "u16",
	KindI32: "i32", KindU32: "u32", KindI64: "i64", KindU64: "u64",
	KindISize: "isize", KindUSize: "usize", KindF32: "f32", KindF64: "f64",
	KindAny: "any",
}

// String renders a type encoding back into source-like syntax, e.g.
// "&mut i32" or "[4]u8", for use in diagnostic messages.
func (t TypeRef) String() string {
	if len(t) == 0 {
		return "<empty>"
	}
	l := t[0]
	mut := ""
	if l.Mut {
		mut = "mut "
	}
	switch l.Kind {
	case KindRef:
		return "&" + mut + t[1:].String()
	case KindPtr:
		return "*" + mut + t[1:].String()
	case KindArrPtr:
		return "[*]" + mut + t[1:].String()
	case KindSlice:
		return "[]" + mut + t[1:].String()
	case KindArr:
		return "[" + itoa(int(l.Aux)) + "]" + mut + t[1:].String()
	case KindPfn:
		return mut + "fn(...)"
	case KindStruct, KindEnum:
		return mut + "user#" + itoa(int(l.Aux))
	case KindTemplate:
		return mut + "$" + itoa(int(l.Aux))
	default:
		if name, ok := kindNames[l.Kind]; ok {
			return mut + name
		}
		return mut + "?"
	}
}

func itoa(n int) string {
	return strconv.Itoa(n)
}

// ErrorType is the canonical error sentinel type value.
var ErrorType = TypeRef{{Kind: KindError}}

// VoidType is the canonical void type value.
var VoidType = TypeRef{{Kind: KindVoid}}

// Length returns the number of Levels the type encoding starting at
// levels[0] occupies, including any nested parameter or element types.
// It is the inverse of how the type parser lays levels into the pool:
// every level the parser appends is accounted for here, so Length
// always lands exactly on the first level of whatever type follows in
// the buffer.
func Length(levels []Level) int {
	if len(levels) == 0 {
		return 0
	}
	switch levels[0].Kind {
	case KindRef, KindPtr, KindArrPtr, KindSlice:
		return 1 + Length(levels[1:])
	case KindArr:
		return 1 + Length(levels[1:])
	case KindPfn:
		n := int(levels[0].Aux)
		pos := 1
		for i := 0; i < n; i++ {
			pos += Length(levels[pos:])
		}
		pos += Length(levels[pos:])
		return pos
	default:
		return 1
	}
}

// isArithmetic reports whether the type's head level is one of the POD
// numeric kinds arithmetic operators and conversions accept.
func isArithmetic(levels []Level) bool {
	if len(levels) == 0 {
		return false
	}
	switch levels[0].Kind {
	case KindChar, KindI8, KindU8, KindI16, KindU16, KindI32, KindU32,
		KindI64, KindU64, KindISize, KindUSize, KindF32, KindF64:
		return true
	}
	return false
}

// arithmeticPromotion lifts any arithmetic type narrower than 32 bits to
// i32, mirroring C's usual integer promotions; wider types and floats
// keep their width unchanged. Passing a non-arithmetic type returns the
// error sentinel.
func arithmeticPromotion(t TypeRef) TypeRef {
	if !isArithmetic(t) {
		return ErrorType
	}
	switch t[0].Kind {
	case KindI64, KindU64, KindISize, KindUSize, KindF64, KindF32, KindU32:
		return t
	default:
		return TypeRef{{Kind: KindI32, Mut: t[0].Mut}}
	}
}

// arithmeticConversion computes the common type two arithmetic operands
// are converted to before a binary operator is applied: the wider of
// the two ranks, const-qualified if either operand was const.
func arithmeticConversion(a, b TypeRef) TypeRef {
	if !isArithmetic(a) || !isArithmetic(b) {
		return ErrorType
	}
	rank := a[0].Kind
	if b[0].Kind > rank {
		rank = b[0].Kind
	}
	return TypeRef{{Kind: rank, Mut: a[0].Mut && b[0].Mut}}
}

// Equals compares two type encodings structurally. When ignoreQuals is
// true, mutability bits are not compared, which is how declarations are
// matched against their initializers before a separate mutability check
// runs.
func Equals(a, b []Level, ignoreQuals bool) bool {
	if len(a) == 0 || len(b) == 0 {
		return len(a) == len(b)
	}
	la, lb := a[0], b[0]
	if la.Kind != lb.Kind {
		return false
	}
	if !ignoreQuals && la.Mut != lb.Mut {
		return false
	}
	switch la.Kind {
	case KindRef, KindPtr, KindArrPtr, KindSlice:
		return Equals(a[1:], b[1:], ignoreQuals)
	case KindArr:
		if la.Aux != lb.Aux {
			return false
		}
		return Equals(a[1:], b[1:], ignoreQuals)
	case KindPfn:
		if la.Aux != lb.Aux {
			return false
		}
		n := int(la.Aux)
		pa, pb := a[1:], b[1:]
		for i := 0; i < n; i++ {
			lenA, lenB := Length(pa), Length(pb)
			if lenA != lenB || !Equals(pa[:lenA], pb[:lenB], ignoreQuals) {
				return false
			}
			pa, pb = pa[lenA:], pb[lenB:]
		}
		return Equals(pa, pb, ignoreQuals)
	case KindStruct, KindEnum:
		return la.Aux == lb.Aux
	case KindTemplate:
		return la.Aux == lb.Aux
	default:
		return true
	}
}

// CastMutability reports whether from's mutability qualifiers can be
// implicitly converted to to's: mutability may be dropped at any level
// but never gained. const T -> mut T is rejected; the reverse is always
// permitted. It assumes the two types
// are already structurally equal (ignoring qualifiers).
func CastMutability(from, to []Level) bool {
	n := len(from)
	if len(to) < n {
		n = len(to)
	}
	for i := 0; i < n; i++ {
		if !from[i].Mut && to[i].Mut {
			return false
		}
	}
	return true
}

// podSizeAlign returns the size and alignment of a POD terminal kind, in
// bytes. Size and alignment are equal for every sized kind since no POD
// is padded internally; void (and any kind not listed) is size 0,
// alignment 1.
func podSizeAlign(k TypeKind) (size, align int) {
	switch k {
	case KindVoid:
		return 0, 1
	case KindBool, KindChar, KindI8, KindU8, KindAny:
		return 1, 1
	case KindI16, KindU16:
		return 2, 2
	case KindI32, KindU32, KindF32:
		return 4, 4
	case KindI64, KindU64, KindISize, KindUSize, KindF64:
		return 8, 8
	}
	return 0, 1
}

// SizeAlign computes the byte size and alignment of a type encoding,
// consulting the compiler's user-type registry for struct and enum
// terminals: a struct's size is the sum of padded member sizes rounded
// to the struct's own alignment; an enum's size is the id's padded
// offset plus the largest variant payload.
func (c *Compiler) SizeAlign(t TypeRef) (size, align int) {
	if t.IsError() || len(t) == 0 {
		return 0, 1
	}
	l := t[0]
	switch l.Kind {
	case KindRef, KindPtr:
		return 8, 8
	case KindArrPtr, KindSlice:
		// A fat pointer: {data ptr, length}.
		return 16, 8
	case KindPfn:
		return 8, 8
	case KindArr:
		elemSize, elemAlign := c.SizeAlign(t[1:])
		return elemSize * int(l.Aux), elemAlign
	case KindStruct, KindEnum:
		ut := c.userTypes.Get(int(l.Aux))
		return ut.Size, ut.Align
	default:
		return podSizeAlign(l.Kind)
	}
}

func indirectionOrAggregate(k TypeKind) bool {
	switch k {
	case KindPtr, KindArrPtr, KindSlice, KindStruct, KindEnum, KindPfn:
		return true
	}
	return false
}

// CanConvert reports whether an expression of type from may be
// implicitly converted to type to, following the conversion table: any
// arithmetic type converts to any other arithmetic type or to bool; a
// reference converts to bool (a null test) or to another reference of
// the same pointee with compatible mutability; pointers, slices,
// structs, enums and function pointers convert only to the identical
// type modulo mutability narrowing (mut to const); arrays convert to arrays of the same
// element type and equal or greater length.
func CanConvert(from, to TypeRef) bool {
	if from.IsError() || to.IsError() {
		return false
	}
	// bool converts like the lowest-ranked arithmetic class, so bool
	// operands flow through conditions, logical operators, and integer
	// contexts without a special case at every call site.
	fromArith := isArithmetic(from) || from[0].Kind == KindBool
	toArith := isArithmetic(to) || to[0].Kind == KindBool
	if fromArith && toArith {
		return true
	}
	if from[0].Kind == KindRef {
		if to[0].Kind == KindBool {
			return true
		}
		if to[0].Kind == KindRef {
			return Equals(from[1:], to[1:], true) && CastMutability(from, to)
		}
		return false
	}
	// The null literal types as *void; it converts to a pointer of any
	// pointee type (the one null test every pointer type needs), the
	// same way a null constant types a raw pointer in the original
	// implementation regardless of what it is assigned to.
	if from[0].Kind == KindPtr && len(from) > 1 && from[1].Kind == KindVoid && to[0].Kind == KindPtr {
		return true
	}
	if from[0].Kind == KindArr && to[0].Kind == KindArr {
		if !Equals(from[1:], to[1:], false) {
			return false
		}
		return to[0].Aux >= from[0].Aux
	}
	if indirectionOrAggregate(from[0].Kind) && from[0].Kind == to[0].Kind {
		if !CastMutability(from, to) {
			return false
		}
		return Equals(from, to, true)
	}
	return false
}
