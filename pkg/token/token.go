// Package token defines source positions and the operator vocabulary shared
// between the front-end AST and the code generator.
package token

// Pos locates an AST node in the original source file. The front end fills
// these in; the compiler only reports them.
type Pos struct {
	FileIndex int
	Line      int
	Column    int
	Len       int
}

// Op identifies a binary, unary or comparison operator.
type Op int

const (
	OpInvalid Op = iota

	// Arithmetic
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpFloorDiv
	OpMod

	// Bitwise
	OpBitAnd
	OpBitOr
	OpBitXor
	OpShl
	OpShr

	// Comparison
	OpEq
	OpNeq
	OpLt
	OpLte
	OpGt
	OpGte

	// Logical
	OpAnd
	OpOr
	OpNot

	// Unary
	OpNeg
	OpInvert
)

// NameMap maps the operator spellings used in the front-end AST interchange
// to operator kinds.
var NameMap = map[string]Op{
	"+":   OpAdd,
	"-":   OpSub,
	"*":   OpMul,
	"/":   OpDiv,
	"//":  OpFloorDiv,
	"%":   OpMod,
	"&":   OpBitAnd,
	"|":   OpBitOr,
	"^":   OpBitXor,
	"<<":  OpShl,
	">>":  OpShr,
	"==":  OpEq,
	"!=":  OpNeq,
	"<":   OpLt,
	"<=":  OpLte,
	">":   OpGt,
	">=":  OpGte,
	"and": OpAnd,
	"or":  OpOr,
	"not": OpNot,
	"neg": OpNeg,
	"~":   OpInvert,
}

// CSymbolMap maps operator kinds to their C spelling. Floor division maps to
// C integer division; the subset restricts it to integer operands.
var CSymbolMap = map[Op]string{
	OpAdd:      "+",
	OpSub:      "-",
	OpMul:      "*",
	OpDiv:      "/",
	OpFloorDiv: "/",
	OpMod:      "%",
	OpBitAnd:   "&",
	OpBitOr:    "|",
	OpBitXor:   "^",
	OpShl:      "<<",
	OpShr:      ">>",
	OpEq:       "==",
	OpNeq:      "!=",
	OpLt:       "<",
	OpLte:      "<=",
	OpGt:       ">",
	OpGte:      ">=",
	OpAnd:      "&&",
	OpOr:       "||",
	OpNot:      "!",
	OpNeg:      "-",
	OpInvert:   "~",
}

// Names is the reverse of NameMap, for diagnostics.
var Names = make(map[Op]string)

func init() {
	for str, op := range NameMap {
		Names[op] = str
	}
}
