// Package storage implements the storage classifier. For every value a
// function creates it decides which of three disciplines is legal: fixed
// stack allocation, scope-bounded arena allocation, or reference-counted
// heap allocation.
package storage

import (
	"fmt"
	"strings"

	"github.com/xplshn/pymcu/pkg/ast"
	"github.com/xplshn/pymcu/pkg/config"
	"github.com/xplshn/pymcu/pkg/token"
	"github.com/xplshn/pymcu/pkg/types"
	"github.com/xplshn/pymcu/pkg/util"
)

// Class is a variable's storage discipline. A variable has exactly one class
// for its entire lifetime; escalation to Refcounted during analysis is
// monotonic and final.
type Class int

const (
	Unclassified Class = iota
	Stack
	Arena
	Refcounted
)

var classNames = map[Class]string{
	Unclassified: "unclassified",
	Stack:        "stack",
	Arena:        "arena",
	Refcounted:   "refcounted",
}

func (c Class) String() string { return classNames[c] }

// EscapeKind names the edge that forced a value onto the refcounted heap.
type EscapeKind int

const (
	EscReturned EscapeKind = iota
	EscStoredModule
	EscStoredRefcounted
	EscRetainedArg
)

var escapeNames = map[EscapeKind]string{
	EscReturned:         "returned from function",
	EscStoredModule:     "stored into module-lifetime slot",
	EscStoredRefcounted: "stored into refcounted slot",
	EscRetainedArg:      "passed as retained argument",
}

func (k EscapeKind) String() string { return escapeNames[k] }

// Escape records one escape edge for diagnostics.
type Escape struct {
	Kind EscapeKind
	Pos  token.Pos
	Via  string // the slot or callee on the far side of the edge
}

// Slot is one classified variable.
type Slot struct {
	Var    *types.Var
	Class  Class
	Region int     // region index for Arena slots, -1 otherwise
	Escape *Escape // set when Class == Refcounted
}

// Table is the classified variable table of one function. Slots are in
// declaration order. Passes records how many classification passes ran; the
// fix-up for late escape edges is bounded to a single re-pass.
type Table struct {
	Func    string
	Slots   []*Slot
	Regions int // number of scoped allocation regions in the function
	Passes  int

	byName map[string]*Slot
}

func (t *Table) Lookup(name string) *Slot { return t.byName[name] }

func (t *Table) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "func %s (%d region(s), %d pass(es))\n", t.Func, t.Regions, t.Passes)
	for _, s := range t.Slots {
		fmt.Fprintf(&sb, "  %-16s %-8s %s", s.Var.Name, s.Var.Type, s.Class)
		if s.Class == Arena {
			fmt.Fprintf(&sb, " region=%d", s.Region)
		}
		if s.Escape != nil {
			fmt.Fprintf(&sb, " (%s via '%s')", s.Escape.Kind, s.Escape.Via)
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

// Classifier assigns storage classes for one program. It is handed the
// resolver's tables and never mutates them; escapes rewrite the classifier's
// own table only.
type Classifier struct {
	cfg    *config.Config
	consts map[string]*types.Type

	// retained[fn] lists parameter indices through which the callee keeps a
	// reference alive beyond the call.
	retained map[string][]int
}

func NewClassifier(cfg *config.Config, consts map[string]*types.Type) *Classifier {
	return &Classifier{
		cfg:      cfg,
		consts:   consts,
		retained: make(map[string][]int),
	}
}

// MarkRetained records that calls to fn keep a reference to argument index
// idx alive beyond the call.
func (c *Classifier) MarkRetained(fn string, idx int) {
	for _, existing := range c.retained[fn] {
		if existing == idx {
			return
		}
	}
	c.retained[fn] = append(c.retained[fn], idx)
}

// AnalyzeRetention inspects every function body and marks parameters that
// escape through the callee: a parameter stored into a module-lifetime slot
// is retained by the call. Must run before Classify.
func (c *Classifier) AnalyzeRetention(root *ast.Node, tables map[string]*types.Table) {
	block, ok := root.Data.(ast.BlockNode)
	if !ok {
		return
	}
	for _, stmt := range block.Stmts {
		if stmt.Type != ast.FuncDecl {
			continue
		}
		d := stmt.Data.(ast.FuncDeclNode)
		table := tables[d.Name]
		if table == nil {
			continue
		}
		paramIndex := make(map[string]int)
		for i, p := range d.Params {
			paramIndex[p.Data.(ast.VarDeclNode).Name] = i
		}
		ast.Walk(d.Body, func(n *ast.Node) {
			if n.Type != ast.Assign {
				return
			}
			a := n.Data.(ast.AssignNode)
			if a.Lhs.Type != ast.Ident || a.Rhs.Type != ast.Ident {
				return
			}
			lhs := a.Lhs.Data.(ast.IdentNode).Name
			rhs := a.Rhs.Data.(ast.IdentNode).Name
			if c.consts[lhs] == nil {
				return
			}
			if idx, ok := paramIndex[rhs]; ok {
				if v := table.Lookup(rhs); v != nil && isReference(v.Type) {
					c.MarkRetained(d.Name, idx)
				}
			}
		})
	}
}

// isReference reports whether values of this type have reference semantics.
// Scalars are copied on return and assignment and never escape.
func isReference(t *types.Type) bool {
	return t != nil && (t.Kind == types.Buffer || t.Kind == types.Record)
}

// Classify assigns every variable in the resolved table a storage class.
// Classification is two-phase: first every escape edge in the function body
// is collected, then classes are assigned; a store into a slot whose
// refcounting is only proven later triggers exactly one fix-up pass.
func (c *Classifier) Classify(fn *ast.Node, resolved *types.Table) (*Table, error) {
	d := fn.Data.(ast.FuncDeclNode)

	table := &Table{Func: resolved.Func, byName: make(map[string]*Slot)}
	for _, v := range resolved.Vars {
		slot := &Slot{Var: v, Region: -1}
		table.Slots = append(table.Slots, slot)
		table.byName[v.Name] = slot
	}

	regions := &regionScan{classifier: c, table: table, region: -1}
	if err := regions.scanStmt(d.Body); err != nil {
		return nil, util.InFunc(err, resolved.Func)
	}
	table.Regions = regions.count

	// Phase 1: collect escape edges across the whole body. Declaration order
	// must not matter, so edges are gathered before any class is assigned.
	edges := c.collectEscapes(d, table)

	// Phase 2: classify.
	table.Passes = 1
	for name, esc := range edges {
		if slot := table.byName[name]; slot != nil {
			c.escalate(slot, esc)
		}
	}

	// Fix-up: a store into a slot that became refcounted above escapes its
	// source too. One bounded re-pass, part of the same synchronous call.
	if c.propagateStores(d.Body, table) {
		table.Passes = 2
	}

	for _, slot := range table.Slots {
		if err := c.finalize(slot); err != nil {
			return nil, util.InFunc(err, resolved.Func)
		}
	}
	return table, nil
}

// regionScan assigns region indices to variables declared inside scoped
// allocation regions. Regions are lexically nested, so indices follow strict
// stack discipline.
type regionScan struct {
	classifier *Classifier
	table      *Table
	region     int
	count      int
}

func (rs *regionScan) scanStmt(node *ast.Node) error {
	if node == nil {
		return nil
	}
	switch node.Type {
	case ast.Block:
		for _, s := range node.Data.(ast.BlockNode).Stmts {
			if err := rs.scanStmt(s); err != nil {
				return err
			}
		}
	case ast.ArenaBlock:
		if !rs.classifier.cfg.IsFeatureEnabled(config.FeatArena) {
			return util.NewError(util.ErrArenaNestingViolation, node.Pos, "",
				"scoped allocation region used while arena support is disabled")
		}
		outer := rs.region
		rs.region = rs.count
		rs.count++
		err := rs.scanStmt(node.Data.(ast.ArenaBlockNode).Body)
		rs.region = outer
		return err
	case ast.VarDecl:
		d := node.Data.(ast.VarDeclNode)
		if slot := rs.table.byName[d.Name]; slot != nil && slot.Region == -1 {
			slot.Region = rs.region
		}
	case ast.Assign:
		d := node.Data.(ast.AssignNode)
		if d.Lhs.Type == ast.Ident {
			name := d.Lhs.Data.(ast.IdentNode).Name
			if slot := rs.table.byName[name]; slot != nil && slot.Region == -1 && slot.Var.Decl == node {
				slot.Region = rs.region
			}
		}
	case ast.If:
		d := node.Data.(ast.IfNode)
		if err := rs.scanStmt(d.ThenBody); err != nil {
			return err
		}
		return rs.scanStmt(d.ElseBody)
	case ast.While:
		return rs.scanStmt(node.Data.(ast.WhileNode).Body)
	}
	return nil
}

// collectEscapes walks the whole function body and records, per variable,
// the first escape edge found.
func (c *Classifier) collectEscapes(d ast.FuncDeclNode, table *Table) map[string]*Escape {
	edges := make(map[string]*Escape)
	record := func(name string, esc *Escape) {
		slot := table.byName[name]
		if slot == nil || slot.Var.IsParam || !isReference(slot.Var.Type) {
			return
		}
		if _, seen := edges[name]; !seen {
			edges[name] = esc
		}
	}

	ast.Walk(d.Body, func(n *ast.Node) {
		switch n.Type {
		case ast.Return:
			r := n.Data.(ast.ReturnNode)
			if r.Expr != nil && r.Expr.Type == ast.Ident {
				name := r.Expr.Data.(ast.IdentNode).Name
				record(name, &Escape{Kind: EscReturned, Pos: n.Pos, Via: d.Name})
			}
		case ast.Assign:
			a := n.Data.(ast.AssignNode)
			if a.Lhs.Type != ast.Ident || a.Rhs.Type != ast.Ident {
				return
			}
			lhs := a.Lhs.Data.(ast.IdentNode).Name
			rhs := a.Rhs.Data.(ast.IdentNode).Name
			if c.consts[lhs] != nil && table.byName[lhs] == nil {
				record(rhs, &Escape{Kind: EscStoredModule, Pos: n.Pos, Via: lhs})
			}
		case ast.Call:
			call := n.Data.(ast.CallNode)
			for _, idx := range c.retained[call.Name] {
				if idx < len(call.Args) && call.Args[idx].Type == ast.Ident {
					name := call.Args[idx].Data.(ast.IdentNode).Name
					record(name, &Escape{Kind: EscRetainedArg, Pos: n.Pos, Via: call.Name})
				}
			}
		}
	})
	return edges
}

// propagateStores escalates the source of every `x = y` where x is already
// refcounted. Returns true when anything changed.
func (c *Classifier) propagateStores(body *ast.Node, table *Table) bool {
	changed := false
	ast.Walk(body, func(n *ast.Node) {
		if n.Type != ast.Assign {
			return
		}
		a := n.Data.(ast.AssignNode)
		if a.Lhs.Type != ast.Ident || a.Rhs.Type != ast.Ident {
			return
		}
		lhs := table.byName[a.Lhs.Data.(ast.IdentNode).Name]
		rhs := table.byName[a.Rhs.Data.(ast.IdentNode).Name]
		if lhs == nil || rhs == nil || lhs.Class != Refcounted {
			return
		}
		if rhs.Class != Refcounted && !rhs.Var.IsParam && isReference(rhs.Var.Type) {
			c.escalate(rhs, &Escape{Kind: EscStoredRefcounted, Pos: n.Pos, Via: lhs.Var.Name})
			changed = true
		}
	})
	return changed
}

// escalate moves a slot to Refcounted. Escalation is monotonic: a slot never
// leaves Refcounted once an escape is proven.
func (c *Classifier) escalate(slot *Slot, esc *Escape) {
	slot.Class = Refcounted
	slot.Region = -1
	if slot.Escape == nil {
		slot.Escape = esc
	}
}

// finalize assigns the remaining classes and enforces the fixed-size rule
// for stack slots.
func (c *Classifier) finalize(slot *Slot) error {
	v := slot.Var
	switch {
	case v.IsParam:
		// Parameter storage belongs to the caller.
		slot.Class = Stack
		return nil
	case slot.Class == Refcounted:
		if !c.cfg.IsFeatureEnabled(config.FeatRefcount) {
			return util.NewError(util.ErrUnboundedStackAllocation, v.Pos, v.Name,
				"'%s' escapes (%s) but refcounted allocation is disabled", v.Name, slot.Escape.Kind)
		}
		return nil
	case slot.Region >= 0:
		slot.Class = Arena
		return nil
	default:
		if v.Type.Size() < 0 {
			return util.NewError(util.ErrUnboundedStackAllocation, v.Pos, v.Name,
				"size of '%s' is not a compile-time constant and the value never escapes", v.Name)
		}
		slot.Class = Stack
		return nil
	}
}
