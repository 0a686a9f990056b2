package ast

import (
	"encoding/json"
	"fmt"

	"github.com/xplshn/pymcu/pkg/token"
)

// The front end hands the compiler its AST as a JSON document. Every node is
// an object with a "node" discriminator; positions ride along as
// "pos": [line, column]. Unknown node kinds are a hard error, never a silent
// default.

type rawNode struct {
	Node string `json:"node"`
	Pos  []int  `json:"pos,omitempty"`

	// literals
	Int   *int64   `json:"int,omitempty"`
	Hex   bool     `json:"hex,omitempty"`
	Float *float64 `json:"float,omitempty"`
	Bool  *bool    `json:"bool,omitempty"`
	Str   *string  `json:"str,omitempty"`

	// names, operators, calls
	ID   string            `json:"id,omitempty"`
	Op   string            `json:"op,omitempty"`
	Func string            `json:"func,omitempty"`
	Args []json.RawMessage `json:"args,omitempty"`

	// expression children
	Left   json.RawMessage `json:"left,omitempty"`
	Right  json.RawMessage `json:"right,omitempty"`
	Expr   json.RawMessage `json:"expr,omitempty"`
	Target json.RawMessage `json:"target,omitempty"`
	Index  json.RawMessage `json:"index,omitempty"`
	Elem   json.RawMessage `json:"elem,omitempty"`
	Count  json.RawMessage `json:"count,omitempty"`

	// declarations
	Name     string          `json:"name,omitempty"`
	Annot    string          `json:"annot,omitempty"`
	Volatile bool            `json:"volatile,omitempty"`
	Define   bool            `json:"define,omitempty"`
	Init     json.RawMessage `json:"init,omitempty"`
	Value    json.RawMessage `json:"value,omitempty"`

	// functions
	Params    []rawParam        `json:"params,omitempty"`
	Returns   string            `json:"returns,omitempty"`
	VerbatimC string            `json:"verbatim_c,omitempty"`
	Fallback  string            `json:"fallback,omitempty"`
	Body      []json.RawMessage `json:"body,omitempty"`

	// control flow
	Cond json.RawMessage   `json:"cond,omitempty"`
	Then []json.RawMessage `json:"then,omitempty"`
	Else []json.RawMessage `json:"else,omitempty"`
}

type rawParam struct {
	Name  string `json:"name"`
	Annot string `json:"annot,omitempty"`
	Pos   []int  `json:"pos,omitempty"`
}

func (r *rawNode) pos() token.Pos {
	if len(r.Pos) >= 2 {
		return token.Pos{Line: r.Pos[0], Column: r.Pos[1]}
	}
	return token.Pos{}
}

// LoadJSON decodes a front-end module document into an AST rooted at a Block
// of top-level declarations.
func LoadJSON(data []byte) (*Node, error) {
	var root rawNode
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("invalid front-end document: %w", err)
	}
	if root.Node != "module" {
		return nil, fmt.Errorf("front-end document root must be a module, got '%s'", root.Node)
	}
	stmts, err := decodeList(root.Body)
	if err != nil {
		return nil, err
	}
	return NewBlock(root.pos(), stmts), nil
}

func decodeList(raws []json.RawMessage) ([]*Node, error) {
	nodes := make([]*Node, 0, len(raws))
	for _, raw := range raws {
		n, err := decodeNode(raw)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

func decodeChild(raw json.RawMessage) (*Node, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	return decodeNode(raw)
}

func decodeBody(pos token.Pos, raws []json.RawMessage) (*Node, error) {
	stmts, err := decodeList(raws)
	if err != nil {
		return nil, err
	}
	return NewBlock(pos, stmts), nil
}

func decodeOp(name string) (token.Op, error) {
	op, ok := token.NameMap[name]
	if !ok {
		return token.OpInvalid, fmt.Errorf("unknown operator '%s' in front-end document", name)
	}
	return op, nil
}

func decodeNode(raw json.RawMessage) (*Node, error) {
	var r rawNode
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("invalid front-end node: %w", err)
	}
	pos := r.pos()

	switch r.Node {
	case "int":
		if r.Int == nil {
			return nil, fmt.Errorf("int node without value")
		}
		return NewNumber(pos, *r.Int, r.Hex), nil
	case "float":
		if r.Float == nil {
			return nil, fmt.Errorf("float node without value")
		}
		return NewFloatNumber(pos, *r.Float), nil
	case "bool":
		if r.Bool == nil {
			return nil, fmt.Errorf("bool node without value")
		}
		return NewBool(pos, *r.Bool), nil
	case "str":
		if r.Str == nil {
			return nil, fmt.Errorf("str node without value")
		}
		return NewString(pos, *r.Str), nil
	case "name":
		return NewIdent(pos, r.ID), nil

	case "binop", "compare":
		op, err := decodeOp(r.Op)
		if err != nil {
			return nil, err
		}
		left, err := decodeChild(r.Left)
		if err != nil {
			return nil, err
		}
		right, err := decodeChild(r.Right)
		if err != nil {
			return nil, err
		}
		return NewBinaryOp(pos, op, left, right), nil
	case "unary":
		op, err := decodeOp(r.Op)
		if err != nil {
			return nil, err
		}
		expr, err := decodeChild(r.Expr)
		if err != nil {
			return nil, err
		}
		return NewUnaryOp(pos, op, expr), nil
	case "call":
		args, err := decodeList(r.Args)
		if err != nil {
			return nil, err
		}
		return NewCall(pos, r.Func, args), nil
	case "subscript":
		target, err := decodeChild(r.Target)
		if err != nil {
			return nil, err
		}
		index, err := decodeChild(r.Index)
		if err != nil {
			return nil, err
		}
		return NewSubscript(pos, target, index), nil
	case "repeat":
		elem, err := decodeChild(r.Elem)
		if err != nil {
			return nil, err
		}
		count, err := decodeChild(r.Count)
		if err != nil {
			return nil, err
		}
		return NewListRepeat(pos, elem, count), nil

	case "func":
		params := make([]*Node, 0, len(r.Params))
		for _, p := range r.Params {
			ppos := token.Pos{}
			if len(p.Pos) >= 2 {
				ppos = token.Pos{Line: p.Pos[0], Column: p.Pos[1]}
			}
			params = append(params, NewVarDecl(ppos, p.Name, p.Annot, false, nil))
		}
		body, err := decodeBody(pos, r.Body)
		if err != nil {
			return nil, err
		}
		return NewFuncDecl(pos, r.Name, params, r.Returns, body, r.VerbatimC, r.Fallback), nil
	case "const":
		value, err := decodeChild(r.Value)
		if err != nil {
			return nil, err
		}
		return NewConstDecl(pos, r.Name, r.Annot, value, r.Define), nil
	case "decl":
		init, err := decodeChild(r.Init)
		if err != nil {
			return nil, err
		}
		return NewVarDecl(pos, r.Name, r.Annot, r.Volatile, init), nil
	case "assign":
		lhs, err := decodeChild(r.Target)
		if err != nil {
			return nil, err
		}
		rhs, err := decodeChild(r.Value)
		if err != nil {
			return nil, err
		}
		return NewAssign(pos, lhs, rhs), nil
	case "if":
		cond, err := decodeChild(r.Cond)
		if err != nil {
			return nil, err
		}
		thenBody, err := decodeBody(pos, r.Then)
		if err != nil {
			return nil, err
		}
		var elseBody *Node
		if len(r.Else) > 0 {
			elseBody, err = decodeBody(pos, r.Else)
			if err != nil {
				return nil, err
			}
		}
		return NewIf(pos, cond, thenBody, elseBody), nil
	case "while":
		cond, err := decodeChild(r.Cond)
		if err != nil {
			return nil, err
		}
		body, err := decodeBody(pos, r.Body)
		if err != nil {
			return nil, err
		}
		return NewWhile(pos, cond, body), nil
	case "return":
		expr, err := decodeChild(r.Value)
		if err != nil {
			return nil, err
		}
		return NewReturn(pos, expr), nil
	case "arena":
		body, err := decodeBody(pos, r.Body)
		if err != nil {
			return nil, err
		}
		return NewArenaBlock(pos, body), nil
	case "break":
		return NewBreak(pos), nil
	case "continue":
		return NewContinue(pos), nil
	case "pass":
		return NewPass(pos), nil
	case "expr":
		expr, err := decodeChild(r.Value)
		if err != nil {
			return nil, err
		}
		return NewExprStmt(pos, expr), nil
	}

	return nil, fmt.Errorf("unknown front-end node kind '%s'", r.Node)
}
