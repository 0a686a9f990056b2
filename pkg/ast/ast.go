// Package ast defines the types used to represent the statically-annotatable
// Python subset accepted by the compiler. The AST is produced by an external
// front end and handed to the pipeline already syntactically valid.
package ast

import (
	"github.com/xplshn/pymcu/pkg/token"
)

// NodeType defines the kind of a node in the AST
type NodeType int

// Node types enum
const (
	// Expressions
	Number NodeType = iota
	FloatNumber
	BoolLit
	String
	Ident
	BinaryOp
	UnaryOp
	Call
	Subscript
	ListRepeat

	// Statements
	FuncDecl
	ConstDecl
	VarDecl
	Assign
	If
	While
	Return
	Block
	ArenaBlock
	Break
	Continue
	Pass
	ExprStmt
)

// Node represents a node in the Abstract Syntax Tree
type Node struct {
	Type   NodeType
	Pos    token.Pos
	Parent *Node
	Data   interface{}
}

// --- Node Data Structs ---
type NumberNode struct {
	Value int64
	IsHex bool
}
type FloatNumberNode struct{ Value float64 }
type BoolNode struct{ Value bool }
type StringNode struct{ Value string }
type IdentNode struct{ Name string }
type BinaryOpNode struct {
	Op          token.Op
	Left, Right *Node
}
type UnaryOpNode struct {
	Op   token.Op
	Expr *Node
}
type CallNode struct {
	Name string
	Args []*Node
}
type SubscriptNode struct{ Target, Index *Node }

// ListRepeatNode is the `[x] * n` buffer allocation form. Elem is the fill
// value, Count the element count expression.
type ListRepeatNode struct{ Elem, Count *Node }

type FuncDeclNode struct {
	Name        string
	Params      []*Node // VarDecl nodes without initializers
	ReturnAnnot string  // "" means no value
	Body        *Node   // Block
	VerbatimC   string  // spliced unmodified when non-empty
	Fallback    string  // host-language body text, never translated
}
type VarDeclNode struct {
	Name     string
	Annot    string // "" means infer from Init
	Volatile bool
	Init     *Node
}
type ConstDeclNode struct {
	Name       string
	Annot      string
	Value      *Node
	EmitDefine bool
}
type AssignNode struct{ Lhs, Rhs *Node }
type IfNode struct{ Cond, ThenBody, ElseBody *Node }
type WhileNode struct{ Cond, Body *Node }
type ReturnNode struct{ Expr *Node }
type BlockNode struct{ Stmts []*Node }
type ArenaBlockNode struct{ Body *Node }
type BreakNode struct{}
type ContinueNode struct{}
type PassNode struct{}
type ExprStmtNode struct{ Expr *Node }

// --- Node Constructors ---

func newNode(pos token.Pos, nodeType NodeType, data interface{}, children ...*Node) *Node {
	node := &Node{Type: nodeType, Pos: pos, Data: data}
	for _, child := range children {
		if child != nil {
			child.Parent = node
		}
	}
	return node
}

func NewNumber(pos token.Pos, value int64, isHex bool) *Node {
	return newNode(pos, Number, NumberNode{Value: value, IsHex: isHex})
}
func NewFloatNumber(pos token.Pos, value float64) *Node {
	return newNode(pos, FloatNumber, FloatNumberNode{Value: value})
}
func NewBool(pos token.Pos, value bool) *Node {
	return newNode(pos, BoolLit, BoolNode{Value: value})
}
func NewString(pos token.Pos, value string) *Node {
	return newNode(pos, String, StringNode{Value: value})
}
func NewIdent(pos token.Pos, name string) *Node {
	return newNode(pos, Ident, IdentNode{Name: name})
}
func NewBinaryOp(pos token.Pos, op token.Op, left, right *Node) *Node {
	return newNode(pos, BinaryOp, BinaryOpNode{Op: op, Left: left, Right: right}, left, right)
}
func NewUnaryOp(pos token.Pos, op token.Op, expr *Node) *Node {
	return newNode(pos, UnaryOp, UnaryOpNode{Op: op, Expr: expr}, expr)
}
func NewCall(pos token.Pos, name string, args []*Node) *Node {
	node := newNode(pos, Call, CallNode{Name: name, Args: args})
	for _, arg := range args {
		arg.Parent = node
	}
	return node
}
func NewSubscript(pos token.Pos, target, index *Node) *Node {
	return newNode(pos, Subscript, SubscriptNode{Target: target, Index: index}, target, index)
}
func NewListRepeat(pos token.Pos, elem, count *Node) *Node {
	return newNode(pos, ListRepeat, ListRepeatNode{Elem: elem, Count: count}, elem, count)
}
func NewFuncDecl(pos token.Pos, name string, params []*Node, returnAnnot string, body *Node, verbatimC, fallback string) *Node {
	node := newNode(pos, FuncDecl, FuncDeclNode{
		Name: name, Params: params, ReturnAnnot: returnAnnot, Body: body,
		VerbatimC: verbatimC, Fallback: fallback,
	}, body)
	for _, p := range params {
		p.Parent = node
	}
	return node
}
func NewVarDecl(pos token.Pos, name, annot string, volatile bool, init *Node) *Node {
	return newNode(pos, VarDecl, VarDeclNode{Name: name, Annot: annot, Volatile: volatile, Init: init}, init)
}
func NewConstDecl(pos token.Pos, name, annot string, value *Node, emitDefine bool) *Node {
	return newNode(pos, ConstDecl, ConstDeclNode{Name: name, Annot: annot, Value: value, EmitDefine: emitDefine}, value)
}
func NewAssign(pos token.Pos, lhs, rhs *Node) *Node {
	return newNode(pos, Assign, AssignNode{Lhs: lhs, Rhs: rhs}, lhs, rhs)
}
func NewIf(pos token.Pos, cond, thenBody, elseBody *Node) *Node {
	return newNode(pos, If, IfNode{Cond: cond, ThenBody: thenBody, ElseBody: elseBody}, cond, thenBody, elseBody)
}
func NewWhile(pos token.Pos, cond, body *Node) *Node {
	return newNode(pos, While, WhileNode{Cond: cond, Body: body}, cond, body)
}
func NewReturn(pos token.Pos, expr *Node) *Node {
	return newNode(pos, Return, ReturnNode{Expr: expr}, expr)
}
func NewBlock(pos token.Pos, stmts []*Node) *Node {
	node := newNode(pos, Block, BlockNode{Stmts: stmts})
	for _, s := range stmts {
		if s != nil {
			s.Parent = node
		}
	}
	return node
}
func NewArenaBlock(pos token.Pos, body *Node) *Node {
	return newNode(pos, ArenaBlock, ArenaBlockNode{Body: body}, body)
}
func NewBreak(pos token.Pos) *Node    { return newNode(pos, Break, BreakNode{}) }
func NewContinue(pos token.Pos) *Node { return newNode(pos, Continue, ContinueNode{}) }
func NewPass(pos token.Pos) *Node     { return newNode(pos, Pass, PassNode{}) }
func NewExprStmt(pos token.Pos, expr *Node) *Node {
	return newNode(pos, ExprStmt, ExprStmtNode{Expr: expr}, expr)
}

// Walk visits node and every node reachable from it in source order.
func Walk(node *Node, visitor func(n *Node)) {
	if node == nil {
		return
	}
	visitor(node)

	switch d := node.Data.(type) {
	case BinaryOpNode:
		Walk(d.Left, visitor)
		Walk(d.Right, visitor)
	case UnaryOpNode:
		Walk(d.Expr, visitor)
	case CallNode:
		for _, arg := range d.Args {
			Walk(arg, visitor)
		}
	case SubscriptNode:
		Walk(d.Target, visitor)
		Walk(d.Index, visitor)
	case ListRepeatNode:
		Walk(d.Elem, visitor)
		Walk(d.Count, visitor)
	case FuncDeclNode:
		for _, p := range d.Params {
			Walk(p, visitor)
		}
		Walk(d.Body, visitor)
	case VarDeclNode:
		Walk(d.Init, visitor)
	case ConstDeclNode:
		Walk(d.Value, visitor)
	case AssignNode:
		Walk(d.Lhs, visitor)
		Walk(d.Rhs, visitor)
	case IfNode:
		Walk(d.Cond, visitor)
		Walk(d.ThenBody, visitor)
		Walk(d.ElseBody, visitor)
	case WhileNode:
		Walk(d.Cond, visitor)
		Walk(d.Body, visitor)
	case ReturnNode:
		Walk(d.Expr, visitor)
	case BlockNode:
		for _, s := range d.Stmts {
			Walk(s, visitor)
		}
	case ArenaBlockNode:
		Walk(d.Body, visitor)
	case ExprStmtNode:
		Walk(d.Expr, visitor)
	}
}

// FoldConstants performs compile-time constant evaluation on the AST
func FoldConstants(node *Node) *Node {
	if node == nil {
		return nil
	}

	// Recursively fold children first
	switch d := node.Data.(type) {
	case BinaryOpNode:
		d.Left = FoldConstants(d.Left)
		d.Right = FoldConstants(d.Right)
		node.Data = d
	case UnaryOpNode:
		d.Expr = FoldConstants(d.Expr)
		node.Data = d
	case ListRepeatNode:
		d.Elem = FoldConstants(d.Elem)
		d.Count = FoldConstants(d.Count)
		node.Data = d
	}

	// Then, attempt to fold the current node.
	switch node.Type {
	case BinaryOp:
		d := node.Data.(BinaryOpNode)
		if d.Left.Type == Number && d.Right.Type == Number {
			l, r := d.Left.Data.(NumberNode).Value, d.Right.Data.(NumberNode).Value
			var res int64
			folded := true
			switch d.Op {
			case token.OpAdd:
				res = l + r
			case token.OpSub:
				res = l - r
			case token.OpMul:
				res = l * r
			case token.OpBitAnd:
				res = l & r
			case token.OpBitOr:
				res = l | r
			case token.OpBitXor:
				res = l ^ r
			case token.OpShl:
				res = l << uint64(r)
			case token.OpShr:
				res = l >> uint64(r)
			case token.OpEq:
				if l == r {
					res = 1
				}
			case token.OpNeq:
				if l != r {
					res = 1
				}
			case token.OpLt:
				if l < r {
					res = 1
				}
			case token.OpGt:
				if l > r {
					res = 1
				}
			case token.OpLte:
				if l <= r {
					res = 1
				}
			case token.OpGte:
				if l >= r {
					res = 1
				}
			case token.OpDiv, token.OpFloorDiv:
				// Division by a literal zero is left for the target
				// compiler to reject.
				if r == 0 {
					folded = false
					break
				}
				res = l / r
			case token.OpMod:
				if r == 0 {
					folded = false
					break
				}
				res = l % r
			default:
				folded = false
			}
			if folded {
				return NewNumber(node.Pos, res, false)
			}
		}
	case UnaryOp:
		d := node.Data.(UnaryOpNode)
		if d.Expr.Type == Number {
			val := d.Expr.Data.(NumberNode).Value
			var res int64
			folded := true
			switch d.Op {
			case token.OpNeg, token.OpSub:
				res = -val
			case token.OpInvert:
				res = ^val
			case token.OpNot:
				if val == 0 {
					res = 1
				}
			default:
				folded = false
			}
			if folded {
				return NewNumber(node.Pos, res, false)
			}
		}
	}

	return node
}
