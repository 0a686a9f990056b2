package types

import (
	"math"

	"github.com/xplshn/pymcu/pkg/ast"
	"github.com/xplshn/pymcu/pkg/token"
	"github.com/xplshn/pymcu/pkg/util"
)

// Var is one resolved variable or parameter.
type Var struct {
	Name     string
	Type     *Type
	Volatile bool
	IsParam  bool
	Pos      token.Pos
	Decl     *ast.Node
}

// Table is the resolved variable table of a single function, produced by the
// resolver and owned by it until handed to the storage classifier. Vars is in
// declaration order, parameters first.
type Table struct {
	Func   string
	Return *Type
	Vars   []*Var
	byName map[string]*Var
}

func (t *Table) Lookup(name string) *Var {
	if t == nil {
		return nil
	}
	return t.byName[name]
}

func (t *Table) add(v *Var) {
	t.Vars = append(t.Vars, v)
	t.byName[v.Name] = v
}

// Signature is the resolved type of a callable.
type Signature struct {
	Name   string
	Params []*Type
	Return *Type
}

// Resolver resolves types for one program. Resolution is pure: a fixed input
// program always yields the same tables.
type Resolver struct {
	sigs      map[string]*Signature
	consts    map[string]*Type
	constVals map[string]int64
}

func NewResolver() *Resolver {
	return &Resolver{
		sigs:      make(map[string]*Signature),
		consts:    make(map[string]*Type),
		constVals: make(map[string]int64),
	}
}

// Signatures returns the resolved function signatures after ResolveModule.
func (r *Resolver) Signatures() map[string]*Signature { return r.sigs }

// Constants returns the resolved module constant types after ResolveModule.
func (r *Resolver) Constants() map[string]*Type { return r.consts }

// ResolveModule resolves module constants and all function signatures. Bodies
// are resolved afterwards, per function, so a failure in one function leaves
// its siblings unaffected.
func (r *Resolver) ResolveModule(root *ast.Node) []error {
	var errs []error
	block, ok := root.Data.(ast.BlockNode)
	if !ok {
		return []error{util.NewError(util.ErrInternal, root.Pos, "", "module root is not a block")}
	}

	for _, stmt := range block.Stmts {
		switch stmt.Type {
		case ast.ConstDecl:
			d := stmt.Data.(ast.ConstDeclNode)
			typ, err := r.resolveConst(stmt.Pos, d)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			r.consts[d.Name] = typ
			if folded := ast.FoldConstants(d.Value); folded != nil && folded.Type == ast.Number {
				r.constVals[d.Name] = folded.Data.(ast.NumberNode).Value
			}
		case ast.FuncDecl:
			d := stmt.Data.(ast.FuncDeclNode)
			sig, err := r.resolveSignature(stmt.Pos, d)
			if err != nil {
				errs = append(errs, util.InFunc(err, d.Name))
				continue
			}
			r.sigs[d.Name] = sig
		}
	}
	return errs
}

// TypeOf resolves the type of an expression against a function's variable
// table. The generator uses it for formatting decisions after resolution.
func (r *Resolver) TypeOf(table *Table, node *ast.Node) (*Type, error) {
	return r.exprType(table, node)
}

// inferLiteral types a constant initializer. Module constants may reference
// earlier constants and fold to a literal, so resolution happens without a
// variable table.
func (r *Resolver) inferLiteral(node *ast.Node) (*Type, error) {
	return r.exprType(nil, ast.FoldConstants(node))
}

func (r *Resolver) resolveConst(pos token.Pos, d ast.ConstDeclNode) (*Type, error) {
	inferred, err := r.inferLiteral(d.Value)
	if err != nil {
		return nil, err
	}
	if d.Annot == "" {
		return inferred, nil
	}
	annot, ok := FromAnnotation(d.Annot)
	if !ok {
		return nil, util.NewError(util.ErrTypeResolution, pos, d.Name,
			"unrecognized type annotation '%s' on constant '%s'", d.Annot, d.Name)
	}
	if err := checkAssignable(pos, d.Name, annot, d.Value); err != nil {
		return nil, err
	}
	return annot, nil
}

func (r *Resolver) resolveSignature(pos token.Pos, d ast.FuncDeclNode) (*Signature, error) {
	sig := &Signature{Name: d.Name}
	for _, p := range d.Params {
		pd := p.Data.(ast.VarDeclNode)
		annot := pd.Annot
		if annot == "" {
			// Parameters default to the signed 32-bit default type.
			sig.Params = append(sig.Params, TypeInt32)
			continue
		}
		typ, ok := FromAnnotation(annot)
		if !ok {
			return nil, util.NewError(util.ErrTypeResolution, p.Pos, pd.Name,
				"unrecognized type annotation '%s' on parameter '%s'", annot, pd.Name)
		}
		if typ.Kind == Void {
			return nil, util.NewError(util.ErrTypeResolution, p.Pos, pd.Name,
				"parameter '%s' cannot have type 'None'", pd.Name)
		}
		sig.Params = append(sig.Params, typ)
	}

	ret, ok := FromAnnotation(d.ReturnAnnot)
	if !ok {
		return nil, util.NewError(util.ErrTypeResolution, pos, d.Name,
			"unrecognized return type annotation '%s'", d.ReturnAnnot)
	}
	sig.Return = ret
	return sig, nil
}

// ResolveFunc produces the variable table for one function.
func (r *Resolver) ResolveFunc(fn *ast.Node) (*Table, error) {
	d := fn.Data.(ast.FuncDeclNode)
	sig := r.sigs[d.Name]
	if sig == nil {
		return nil, util.NewError(util.ErrInternal, fn.Pos, d.Name, "unresolved signature for '%s'", d.Name)
	}

	table := &Table{Func: d.Name, Return: sig.Return, byName: make(map[string]*Var)}
	for i, p := range d.Params {
		pd := p.Data.(ast.VarDeclNode)
		table.add(&Var{Name: pd.Name, Type: sig.Params[i], IsParam: true, Pos: p.Pos, Decl: p})
	}

	if err := r.resolveStmt(table, d.Body); err != nil {
		return nil, util.InFunc(err, d.Name)
	}
	return table, nil
}

func (r *Resolver) resolveStmt(table *Table, node *ast.Node) error {
	if node == nil {
		return nil
	}
	switch node.Type {
	case ast.Block:
		for _, s := range node.Data.(ast.BlockNode).Stmts {
			if err := r.resolveStmt(table, s); err != nil {
				return err
			}
		}
	case ast.ArenaBlock:
		return r.resolveStmt(table, node.Data.(ast.ArenaBlockNode).Body)
	case ast.VarDecl:
		return r.resolveDecl(table, node)
	case ast.Assign:
		d := node.Data.(ast.AssignNode)
		if d.Lhs.Type == ast.Ident {
			name := d.Lhs.Data.(ast.IdentNode).Name
			if table.Lookup(name) == nil && r.consts[name] == nil {
				// First assignment without annotation declares the variable.
				typ, err := r.exprType(table, d.Rhs)
				if err != nil {
					return err
				}
				table.add(&Var{Name: name, Type: typ, Pos: node.Pos, Decl: node})
				return nil
			}
		}
		_, err := r.exprType(table, d.Rhs)
		return err
	case ast.If:
		d := node.Data.(ast.IfNode)
		if _, err := r.exprType(table, d.Cond); err != nil {
			return err
		}
		if err := r.resolveStmt(table, d.ThenBody); err != nil {
			return err
		}
		return r.resolveStmt(table, d.ElseBody)
	case ast.While:
		d := node.Data.(ast.WhileNode)
		if _, err := r.exprType(table, d.Cond); err != nil {
			return err
		}
		return r.resolveStmt(table, d.Body)
	case ast.Return:
		d := node.Data.(ast.ReturnNode)
		if d.Expr == nil {
			return nil
		}
		_, err := r.exprType(table, d.Expr)
		return err
	case ast.ExprStmt:
		_, err := r.exprType(table, node.Data.(ast.ExprStmtNode).Expr)
		return err
	}
	return nil
}

func (r *Resolver) resolveDecl(table *Table, node *ast.Node) error {
	d := node.Data.(ast.VarDeclNode)
	if prev := table.Lookup(d.Name); prev != nil {
		// Re-annotation of an existing name keeps the original type; the
		// subset does not allow retyping.
		_, err := r.exprType(table, d.Init)
		return err
	}

	var typ *Type
	if d.Annot != "" {
		annot, ok := FromAnnotation(d.Annot)
		if !ok {
			return util.NewError(util.ErrTypeResolution, node.Pos, d.Name,
				"unrecognized type annotation '%s' on variable '%s'", d.Annot, d.Name)
		}
		if annot.Kind == Buffer {
			inferred, err := r.inferBuffer(table, node.Pos, d)
			if err != nil {
				return err
			}
			typ = inferred
		} else {
			if err := checkAssignable(node.Pos, d.Name, annot, d.Init); err != nil {
				return err
			}
			typ = annot
		}
	} else {
		var err error
		typ, err = r.exprType(table, d.Init)
		if err != nil {
			return err
		}
	}

	table.add(&Var{Name: d.Name, Type: typ, Volatile: d.Volatile, Pos: node.Pos, Decl: node})
	return nil
}

// inferBuffer resolves a `list`-annotated declaration from its initializer.
func (r *Resolver) inferBuffer(table *Table, pos token.Pos, d ast.VarDeclNode) (*Type, error) {
	if d.Init == nil || d.Init.Type != ast.ListRepeat {
		// A list not built from the repeat form (e.g. received through a
		// call) has no compile-time layout.
		return &Type{Kind: Buffer, Elem: TypeInt32, Count: -1}, nil
	}
	rep := d.Init.Data.(ast.ListRepeatNode)
	elem, err := r.exprType(table, rep.Elem)
	if err != nil {
		return nil, err
	}
	count := int64(-1)
	sym := ""
	if folded := ast.FoldConstants(rep.Count); folded.Type == ast.Number {
		count = folded.Data.(ast.NumberNode).Value
	} else if rep.Count.Type == ast.Ident {
		// Module constants are compile-time constants; the count is spelled
		// symbolically in the output.
		name := rep.Count.Data.(ast.IdentNode).Name
		if val, ok := r.constVals[name]; ok {
			count, sym = val, name
		}
	}
	if count == 0 || count < -1 {
		return nil, util.NewError(util.ErrTypeResolution, pos, d.Name,
			"list '%s' has invalid element count %d", d.Name, count)
	}
	return &Type{Kind: Buffer, Elem: elem, Count: count, CountSym: sym}, nil
}

// checkAssignable rejects initializers whose inferred type conflicts with the
// annotated type's representable range. This is a hard failure, never a
// silent narrowing.
func checkAssignable(pos token.Pos, name string, annot *Type, init *ast.Node) error {
	if init == nil {
		return nil
	}
	folded := ast.FoldConstants(init)
	switch folded.Type {
	case ast.Number:
		v := folded.Data.(ast.NumberNode).Value
		if annot.Kind == Float32 {
			return nil
		}
		if !annot.IsInteger() && annot.Kind != Bool {
			return util.NewError(util.ErrTypeResolution, pos, name,
				"integer literal %d cannot initialize '%s' of type %s", v, name, annot)
		}
		if !annot.Fits(v) {
			return util.NewError(util.ErrTypeResolution, pos, name,
				"literal %d is out of range for '%s' of type %s", v, name, annot)
		}
	case ast.FloatNumber:
		if annot.Kind != Float32 {
			return util.NewError(util.ErrTypeResolution, pos, name,
				"floating literal cannot initialize '%s' of type %s", name, annot)
		}
	case ast.BoolLit:
		if annot.Kind != Bool {
			return util.NewError(util.ErrTypeResolution, pos, name,
				"boolean literal cannot initialize '%s' of type %s", name, annot)
		}
	}
	return nil
}

// exprType infers the resolved type of an expression.
func (r *Resolver) exprType(table *Table, node *ast.Node) (*Type, error) {
	if node == nil {
		return TypeVoid, nil
	}
	switch node.Type {
	case ast.Number:
		d := node.Data.(ast.NumberNode)
		if d.IsHex && d.Value > math.MaxInt32 {
			// Hexadecimal literals widen to the smallest unsigned width
			// that holds them.
			switch {
			case d.Value <= math.MaxUint32:
				return TypeUint32, nil
			default:
				return nil, util.NewError(util.ErrTypeResolution, node.Pos, "",
					"hexadecimal literal %#x exceeds every representable width", d.Value)
			}
		}
		if d.Value > math.MaxInt32 || d.Value < math.MinInt32 {
			return nil, util.NewError(util.ErrTypeResolution, node.Pos, "",
				"integer literal %d exceeds the 32-bit default type", d.Value)
		}
		return TypeInt32, nil
	case ast.FloatNumber:
		return TypeFloat32, nil
	case ast.BoolLit:
		return TypeBool, nil
	case ast.String:
		return TypeRecord, nil
	case ast.Ident:
		name := node.Data.(ast.IdentNode).Name
		if v := table.Lookup(name); v != nil {
			return v.Type, nil
		}
		if t := r.consts[name]; t != nil {
			return t, nil
		}
		return nil, util.NewError(util.ErrTypeResolution, node.Pos, name,
			"undefined name '%s'", name)
	case ast.BinaryOp:
		d := node.Data.(ast.BinaryOpNode)
		left, err := r.exprType(table, d.Left)
		if err != nil {
			return nil, err
		}
		right, err := r.exprType(table, d.Right)
		if err != nil {
			return nil, err
		}
		switch d.Op {
		case token.OpEq, token.OpNeq, token.OpLt, token.OpLte, token.OpGt, token.OpGte,
			token.OpAnd, token.OpOr:
			return TypeBool, nil
		}
		if left.Kind == Float32 || right.Kind == Float32 {
			return TypeFloat32, nil
		}
		return left, nil
	case ast.UnaryOp:
		d := node.Data.(ast.UnaryOpNode)
		if d.Op == token.OpNot {
			return TypeBool, nil
		}
		return r.exprType(table, d.Expr)
	case ast.Call:
		d := node.Data.(ast.CallNode)
		if sig := r.sigs[d.Name]; sig != nil {
			for _, arg := range d.Args {
				if _, err := r.exprType(table, arg); err != nil {
					return nil, err
				}
			}
			return sig.Return, nil
		}
		// Calls to names outside the module (runtime hooks, verbatim-C
		// helpers) default to the signed 32-bit type.
		for _, arg := range d.Args {
			if _, err := r.exprType(table, arg); err != nil {
				return nil, err
			}
		}
		return TypeInt32, nil
	case ast.Subscript:
		d := node.Data.(ast.SubscriptNode)
		target, err := r.exprType(table, d.Target)
		if err != nil {
			return nil, err
		}
		if _, err := r.exprType(table, d.Index); err != nil {
			return nil, err
		}
		if target.Kind == Buffer {
			return target.Elem, nil
		}
		return target, nil
	case ast.ListRepeat:
		d := node.Data.(ast.ListRepeatNode)
		elem, err := r.exprType(table, d.Elem)
		if err != nil {
			return nil, err
		}
		count := int64(-1)
		if folded := ast.FoldConstants(d.Count); folded.Type == ast.Number {
			count = folded.Data.(ast.NumberNode).Value
		}
		return &Type{Kind: Buffer, Elem: elem, Count: count}, nil
	}
	return nil, util.NewError(util.ErrInternal, node.Pos, "",
		"unhandled expression kind %d in type resolution", node.Type)
}
