// Package types implements the type resolver: it maps every annotated or
// inferred variable, parameter and return to a resolved fixed-width type.
package types

import "math"

// Kind is the closed enumeration of resolved types. Anything outside it is a
// hard resolution error, never a silent default.
type Kind int

const (
	Invalid Kind = iota
	Void
	Int8
	Int16
	Int32
	Uint8
	Uint16
	Uint32
	Float32
	Bool
	Buffer // fixed element type, element count may be compile-time known
	Record // opaque record, layout unknown to the compiler
)

var kindNames = map[Kind]string{
	Invalid: "invalid",
	Void:    "void",
	Int8:    "int8",
	Int16:   "int16",
	Int32:   "int32",
	Uint8:   "uint8",
	Uint16:  "uint16",
	Uint32:  "uint32",
	Float32: "float32",
	Bool:    "bool",
	Buffer:  "buffer",
	Record:  "record",
}

func (k Kind) String() string { return kindNames[k] }

// cNames maps scalar kinds to their C spelling in the emitted unit.
var cNames = map[Kind]string{
	Void:    "void",
	Int8:    "int8_t",
	Int16:   "int16_t",
	Int32:   "int32_t",
	Uint8:   "uint8_t",
	Uint16:  "uint16_t",
	Uint32:  "uint32_t",
	Float32: "float",
	Bool:    "bool",
}

// Type is a resolved type. Elem, Count and CountSym are meaningful only for
// Buffer; Count < 0 means the element count is not a compile-time constant.
// A non-empty CountSym names the module constant the count came from, so the
// emitted declaration can spell the count symbolically.
type Type struct {
	Kind     Kind
	Elem     *Type
	Count    int64
	CountSym string
}

var (
	TypeVoid    = &Type{Kind: Void}
	TypeInt8    = &Type{Kind: Int8}
	TypeInt16   = &Type{Kind: Int16}
	TypeInt32   = &Type{Kind: Int32}
	TypeUint8   = &Type{Kind: Uint8}
	TypeUint16  = &Type{Kind: Uint16}
	TypeUint32  = &Type{Kind: Uint32}
	TypeFloat32 = &Type{Kind: Float32}
	TypeBool    = &Type{Kind: Bool}
	TypeRecord  = &Type{Kind: Record}
)

// annotationMap resolves recognized annotation tokens. The host language's
// plain `int` and `float` resolve to the 32-bit defaults.
var annotationMap = map[string]*Type{
	"int":     TypeInt32,
	"int8":    TypeInt8,
	"int16":   TypeInt16,
	"int32":   TypeInt32,
	"uint8":   TypeUint8,
	"uint16":  TypeUint16,
	"uint32":  TypeUint32,
	"float":   TypeFloat32,
	"float32": TypeFloat32,
	"bool":    TypeBool,
	"None":    TypeVoid,
	"":        TypeVoid, // absent return annotation
}

// FromAnnotation resolves an annotation token. The second result is false for
// unrecognized tokens. `list` resolves to a buffer whose element type and
// count come from the initializer, filled in by the resolver.
func FromAnnotation(name string) (*Type, bool) {
	if name == "list" {
		return &Type{Kind: Buffer, Elem: TypeInt32, Count: -1}, true
	}
	t, ok := annotationMap[name]
	return t, ok
}

func (t *Type) String() string {
	if t == nil {
		return "void"
	}
	return t.Kind.String()
}

// CName returns the C spelling of a scalar type. Buffers are emitted by the
// generator as element arrays or runtime pointers depending on storage class.
func (t *Type) CName() string {
	if t == nil {
		return "void"
	}
	if t.Kind == Buffer {
		return t.Elem.CName()
	}
	if t.Kind == Record {
		return "void*"
	}
	return cNames[t.Kind]
}

// Size returns the byte size of a value of this type, or -1 when the size is
// not known at compile time.
func (t *Type) Size() int64 {
	if t == nil {
		return 0
	}
	switch t.Kind {
	case Void:
		return 0
	case Int8, Uint8, Bool:
		return 1
	case Int16, Uint16:
		return 2
	case Int32, Uint32, Float32:
		return 4
	case Buffer:
		if t.Count < 0 {
			return -1
		}
		elem := t.Elem.Size()
		if elem < 0 {
			return -1
		}
		return elem * t.Count
	}
	return -1
}

func (t *Type) IsInteger() bool {
	switch t.Kind {
	case Int8, Int16, Int32, Uint8, Uint16, Uint32:
		return true
	}
	return false
}

func (t *Type) IsUnsigned() bool {
	switch t.Kind {
	case Uint8, Uint16, Uint32:
		return true
	}
	return false
}

// Range returns the representable integer range of an integer or bool kind.
func (t *Type) Range() (min, max int64) {
	switch t.Kind {
	case Int8:
		return math.MinInt8, math.MaxInt8
	case Int16:
		return math.MinInt16, math.MaxInt16
	case Int32:
		return math.MinInt32, math.MaxInt32
	case Uint8:
		return 0, math.MaxUint8
	case Uint16:
		return 0, math.MaxUint16
	case Uint32:
		return 0, math.MaxUint32
	case Bool:
		return 0, 1
	}
	return 0, 0
}

// Fits reports whether the literal value is representable by this type.
func (t *Type) Fits(v int64) bool {
	min, max := t.Range()
	if min == 0 && max == 0 && t.Kind != Bool {
		return false
	}
	return v >= min && v <= max
}
