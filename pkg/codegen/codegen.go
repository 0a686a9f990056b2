// Package codegen lowers a resolved, storage-classified module to a single
// portable C translation unit. Emission order is fixed: target preamble,
// includes, constant defines, spliced helper fragments, prototypes, then
// function definitions.
package codegen

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/xplshn/pymcu/pkg/ast"
	"github.com/xplshn/pymcu/pkg/config"
	"github.com/xplshn/pymcu/pkg/storage"
	"github.com/xplshn/pymcu/pkg/token"
	"github.com/xplshn/pymcu/pkg/types"
	"github.com/xplshn/pymcu/pkg/util"
)

// Generator emits one translation unit. It consumes the resolver's and
// classifier's tables and never re-derives them.
type Generator struct {
	cfg     *config.Config
	res     *types.Resolver
	sigs    map[string]*types.Signature
	consts  map[string]*types.Type
	vars    map[string]*types.Table
	classes map[string]*storage.Table

	out    strings.Builder
	indent int

	// fragments records the hash of every spliced helper fragment so a
	// fragment shared by several functions is emitted once.
	fragments map[uint64]string
}

func New(cfg *config.Config, r *types.Resolver, vars map[string]*types.Table, classes map[string]*storage.Table) *Generator {
	return &Generator{
		cfg:       cfg,
		res:       r,
		sigs:      r.Signatures(),
		consts:    r.Constants(),
		vars:      vars,
		classes:   classes,
		fragments: make(map[uint64]string),
	}
}

// fnState tracks per-function emission state. scopes form a chain from the
// innermost lexical scope outward; unwinding on early exit walks it.
type fnState struct {
	name    string
	ret     *types.Type
	vars    *types.Table
	classes *storage.Table
	scope   *scope
	regions int
}

type scope struct {
	parent *scope
	mark   string          // arena checkpoint variable, set for region scopes
	loop   bool            // loop body scope, the stop for break/continue unwinding
	owned  []*storage.Slot // refcounted slots declared in this scope
}

// Generate emits the whole module. On error nothing useful remains in the
// generator; the driver discards partial output.
func (g *Generator) Generate(root *ast.Node) (string, error) {
	if g.cfg.Target.Name == "" {
		return "", util.NewError(util.ErrTargetConfiguration, root.Pos, "", "no target selected")
	}

	block, ok := root.Data.(ast.BlockNode)
	if !ok {
		return "", util.NewError(util.ErrInternal, root.Pos, "", "module root is not a block")
	}

	g.emitPreamble()
	g.emitDefines(block)
	g.emitGlobals(block)
	g.emitFragments(block)
	g.emitPrototypes(block)

	for _, stmt := range block.Stmts {
		if stmt.Type != ast.FuncDecl {
			continue
		}
		if err := g.emitFunc(stmt); err != nil {
			return "", err
		}
	}
	return g.out.String(), nil
}

func (g *Generator) emitPreamble() {
	t := g.cfg.Target
	g.line("/* generated by pymcu for target '%s' */", t.Name)
	g.line("#define %s 1", t.Macro)
	if t.Hardware {
		g.line("#define %s 1", config.HardwareMacro)
	}
	g.blank()
	g.line("#include <stdbool.h>")
	g.line("#include <stdint.h>")
	if !t.Hardware {
		g.line("#include <stdio.h>")
	}
	g.line("#include \"mcu_runtime.h\"")
	g.blank()
}

// emitDefines lowers exported module constants to #define lines. Typed
// constants carry a cast so arithmetic on them keeps the annotated width.
func (g *Generator) emitDefines(block ast.BlockNode) {
	emitted := false
	for _, stmt := range block.Stmts {
		if stmt.Type != ast.ConstDecl {
			continue
		}
		d := stmt.Data.(ast.ConstDeclNode)
		if !d.EmitDefine || !g.cfg.IsFeatureEnabled(config.FeatDefines) {
			continue
		}
		g.line("#define %s %s", d.Name, g.defineValue(d))
		emitted = true
	}
	if emitted {
		g.blank()
	}
}

func (g *Generator) defineValue(d ast.ConstDeclNode) string {
	folded := ast.FoldConstants(d.Value)
	switch folded.Type {
	case ast.BoolLit:
		if folded.Data.(ast.BoolNode).Value {
			return "1"
		}
		return "0"
	case ast.String:
		return strconv.Quote(folded.Data.(ast.StringNode).Value)
	case ast.Number, ast.FloatNumber:
		lit := g.expr(nil, folded)
		if typ := g.consts[d.Name]; typ != nil && d.Annot != "" && typ.Kind != types.Int32 && typ.IsInteger() {
			return fmt.Sprintf("((%s)%s)", typ.CName(), lit)
		}
		return lit
	default:
		// Unfolded expression, spelled out verbatim and parenthesized.
		return "(" + g.expr(nil, d.Value) + ")"
	}
}

// emitGlobals lowers the remaining module-lifetime slots to file-scope
// definitions. Anything not exported as a #define must still exist as a C
// object so stores into it compile.
func (g *Generator) emitGlobals(block ast.BlockNode) {
	emitted := false
	for _, stmt := range block.Stmts {
		if stmt.Type != ast.ConstDecl {
			continue
		}
		d := stmt.Data.(ast.ConstDeclNode)
		if d.EmitDefine && g.cfg.IsFeatureEnabled(config.FeatDefines) {
			continue
		}
		typ := g.consts[d.Name]
		if typ == nil {
			continue
		}
		switch {
		case typ.Kind == types.Buffer:
			g.line("static %s *%s;", typ.Elem.CName(), d.Name)
		case typ.Kind == types.Record:
			if d.Value == nil {
				g.line("static const char *%s;", d.Name)
			} else {
				g.line("static const char *%s = %s;", d.Name, g.expr(nil, ast.FoldConstants(d.Value)))
			}
		case d.Value == nil:
			g.line("static %s %s;", typ.CName(), d.Name)
		default:
			g.line("static %s %s = %s;", typ.CName(), d.Name, g.expr(nil, ast.FoldConstants(d.Value)))
		}
		emitted = true
	}
	if emitted {
		g.blank()
	}
}

// emitFragments splices the shared helper fragments attached to verbatim
// functions. Identical fragments are emitted once; duplicates are dropped
// with a note.
func (g *Generator) emitFragments(block ast.BlockNode) {
	for _, stmt := range block.Stmts {
		if stmt.Type != ast.FuncDecl {
			continue
		}
		d := stmt.Data.(ast.FuncDeclNode)
		if d.Fallback == "" || !g.cfg.IsFeatureEnabled(config.FeatVerbatimC) {
			continue
		}
		sum := xxhash.Sum64String(d.Fallback)
		if prev, seen := g.fragments[sum]; seen {
			util.Warn(g.cfg, config.WarnVerbatimC, stmt.Pos,
				"helper fragment of '%s' duplicates the one spliced for '%s'", d.Name, prev)
			continue
		}
		g.fragments[sum] = d.Name
		g.raw(strings.TrimRight(d.Fallback, "\n"))
		g.blank()
	}
}

func (g *Generator) emitPrototypes(block ast.BlockNode) {
	emitted := false
	for _, stmt := range block.Stmts {
		if stmt.Type != ast.FuncDecl {
			continue
		}
		d := stmt.Data.(ast.FuncDeclNode)
		if d.Name == "main" {
			continue
		}
		g.line("%s;", g.signature(d))
		emitted = true
	}
	if emitted {
		g.blank()
	}
}

func (g *Generator) signature(d ast.FuncDeclNode) string {
	sig := g.sigs[d.Name]
	var sb strings.Builder
	ret := g.declType(sig.Return, "")
	sb.WriteString(ret)
	if !strings.HasSuffix(ret, "*") {
		sb.WriteByte(' ')
	}
	sb.WriteString(d.Name)
	sb.WriteByte('(')
	if len(d.Params) == 0 {
		sb.WriteString("void")
	}
	for i, p := range d.Params {
		if i > 0 {
			sb.WriteString(", ")
		}
		pd := p.Data.(ast.VarDeclNode)
		sb.WriteString(g.declType(sig.Params[i], pd.Name))
	}
	sb.WriteByte(')')
	return sb.String()
}

// declType renders a C declarator. Buffers decay to element pointers in
// parameter and return position.
func (g *Generator) declType(t *types.Type, name string) string {
	if t.Kind == types.Buffer {
		if name == "" {
			return t.Elem.CName() + " *"
		}
		return fmt.Sprintf("%s *%s", t.Elem.CName(), name)
	}
	if name == "" {
		return t.CName()
	}
	return fmt.Sprintf("%s %s", t.CName(), name)
}

func (g *Generator) emitFunc(fn *ast.Node) error {
	d := fn.Data.(ast.FuncDeclNode)

	if d.VerbatimC != "" {
		if !g.cfg.IsFeatureEnabled(config.FeatVerbatimC) {
			return util.NewError(util.ErrTargetConfiguration, fn.Pos, d.Name,
				"'%s' has a verbatim C body but verbatim C is disabled", d.Name)
		}
		return g.emitVerbatimFunc(fn, d)
	}

	st := &fnState{
		name:    d.Name,
		ret:     g.sigs[d.Name].Return,
		vars:    g.vars[d.Name],
		classes: g.classes[d.Name],
		scope:   &scope{},
	}

	if d.Name == "main" {
		g.line("int main(void)")
	} else {
		g.line("%s", g.signature(d))
	}
	g.line("{")
	g.indent++

	if d.Name == "main" {
		g.line("mcu_arena_init();")
		g.blank()
	}

	if err := g.stmt(st, d.Body); err != nil {
		return util.InFunc(err, d.Name)
	}

	// Implicit fall-off exit of a void function still unwinds.
	if st.ret.Kind == types.Void || d.Name == "main" {
		g.unwind(st, nil)
		if d.Name == "main" {
			g.line("return 0;")
		}
	}

	g.indent--
	g.line("}")
	g.blank()
	return nil
}

// emitVerbatimFunc splices a hand-written C body under the resolved
// signature. The body is trusted text; only trailing whitespace is trimmed.
func (g *Generator) emitVerbatimFunc(fn *ast.Node, d ast.FuncDeclNode) error {
	util.Warn(g.cfg, config.WarnVerbatimC, fn.Pos, "'%s' uses a verbatim C body", d.Name)
	g.line("%s", g.signature(d))
	g.line("{")
	g.indent++
	for _, raw := range strings.Split(strings.Trim(d.VerbatimC, "\n"), "\n") {
		g.line("%s", strings.TrimRight(raw, " \t"))
	}
	g.indent--
	g.line("}")
	g.blank()
	return nil
}

func (g *Generator) stmt(st *fnState, node *ast.Node) error {
	switch node.Type {
	case ast.Block:
		for _, s := range node.Data.(ast.BlockNode).Stmts {
			if err := g.stmt(st, s); err != nil {
				return err
			}
		}
		return nil

	case ast.ArenaBlock:
		return g.arenaRegion(st, node)

	case ast.VarDecl:
		d := node.Data.(ast.VarDeclNode)
		return g.declare(st, node, d.Name, d.Init)

	case ast.Assign:
		return g.assignStmt(st, node)

	case ast.If:
		d := node.Data.(ast.IfNode)
		g.line("if (%s) {", g.expr(st, d.Cond))
		g.indent++
		g.pushScope(st, "")
		if err := g.stmt(st, d.ThenBody); err != nil {
			return err
		}
		g.popScope(st)
		g.indent--
		if d.ElseBody != nil {
			g.line("} else {")
			g.indent++
			g.pushScope(st, "")
			if err := g.stmt(st, d.ElseBody); err != nil {
				return err
			}
			g.popScope(st)
			g.indent--
		}
		g.line("}")
		return nil

	case ast.While:
		d := node.Data.(ast.WhileNode)
		g.line("while (%s) {", g.expr(st, d.Cond))
		g.indent++
		g.pushScope(st, "")
		st.scope.loop = true
		if err := g.stmt(st, d.Body); err != nil {
			return err
		}
		g.popScope(st)
		g.indent--
		g.line("}")
		return nil

	case ast.Return:
		return g.returnStmt(st, node)

	case ast.Break:
		g.unwindLoop(st)
		g.line("break;")
		return nil
	case ast.Continue:
		g.unwindLoop(st)
		g.line("continue;")
		return nil
	case ast.Pass:
		return nil

	case ast.ExprStmt:
		expr := node.Data.(ast.ExprStmtNode).Expr
		if expr.Type == ast.Call && expr.Data.(ast.CallNode).Name == "print" {
			return g.printStmt(st, expr)
		}
		g.line("%s;", g.expr(st, expr))
		return nil
	}
	return util.NewError(util.ErrInternal, node.Pos, "", "cannot lower node type %d", node.Type)
}

// arenaRegion brackets a scoped allocation region with checkpoint/restore.
// The mark variable name is unique per region so early returns can restore
// several regions in one go.
func (g *Generator) arenaRegion(st *fnState, node *ast.Node) error {
	mark := fmt.Sprintf("__mcu_mark_%d", st.regions)
	st.regions++

	g.line("{")
	g.indent++
	g.line("size_t %s = mcu_arena_checkpoint();", mark)

	g.pushScope(st, mark)
	if err := g.stmt(st, node.Data.(ast.ArenaBlockNode).Body); err != nil {
		return err
	}
	if st.scope.mark != mark {
		return util.NewError(util.ErrArenaNestingViolation, node.Pos, "",
			"allocation region closed out of order")
	}
	g.popScope(st)

	g.line("mcu_arena_restore(%s);", mark)
	g.indent--
	g.line("}")
	return nil
}

// declare emits the declaration for name according to its storage class.
func (g *Generator) declare(st *fnState, node *ast.Node, name string, init *ast.Node) error {
	v := st.vars.Lookup(name)
	slot := st.classes.Lookup(name)
	if v == nil || slot == nil {
		return util.NewError(util.ErrInternal, node.Pos, name, "no slot for '%s'", name)
	}

	qual := ""
	if v.Volatile {
		qual = "volatile "
	}

	if v.Type.Kind == types.Buffer {
		count := g.countExpr(v.Type)
		elem := v.Type.Elem.CName()
		switch slot.Class {
		case storage.Stack:
			g.line("%s%s %s[%s] = {0};", qual, elem, name, count)
		case storage.Arena:
			g.line("%s%s *%s = (%s *)mcu_arena_alloc(sizeof(%s) * %s);", qual, elem, name, elem, elem, count)
			g.failCheck(st, name)
		case storage.Refcounted:
			g.line("%s%s *%s = (%s *)mcu_gc_alloc(sizeof(%s) * %s);", qual, elem, name, elem, elem, count)
			st.scope.owned = append(st.scope.owned, slot)
			g.failCheck(st, name)
		}
		return g.fillBuffer(st, name, init)
	}

	if v.Type.Kind == types.Record {
		if init == nil {
			g.line("const char *%s;", name)
			return nil
		}
		g.line("const char *%s = %s;", name, g.expr(st, init))
		return nil
	}

	if init == nil {
		g.line("%s%s %s;", qual, v.Type.CName(), name)
		return nil
	}
	g.line("%s%s %s = %s;", qual, v.Type.CName(), name, g.expr(st, init))
	return nil
}

// failCheck brackets an allocating declaration with the mandatory failure
// check. The simulation runtime reports exhaustion and returns NULL, so the
// function backs out through the usual unwinding; hardware runtimes park
// inside the allocator and never reach the check.
func (g *Generator) failCheck(st *fnState, name string) {
	g.line("if (!%s) {", name)
	g.indent++
	g.unwind(st, func(s *storage.Slot) bool { return s.Var.Name == name })
	g.line("%s", failReturn(st))
	g.indent--
	g.line("}")
}

func failReturn(st *fnState) string {
	if st.name == "main" {
		return "return 1;"
	}
	switch st.ret.Kind {
	case types.Void:
		return "return;"
	case types.Float32:
		return "return 0.0f;"
	case types.Bool:
		return "return false;"
	default:
		return "return 0;"
	}
}

// countExpr spells a buffer's element count, symbolically when it came from
// a named constant.
func (g *Generator) countExpr(t *types.Type) string {
	if t.CountSym != "" {
		return t.CountSym
	}
	return strconv.FormatInt(t.Count, 10)
}

// fillBuffer emits the fill loop for a `[x] * n` initializer with a nonzero
// fill value. Zero fills are covered by the zeroing allocators and the
// aggregate initializer.
func (g *Generator) fillBuffer(st *fnState, name string, init *ast.Node) error {
	if init == nil || init.Type != ast.ListRepeat {
		return nil
	}
	rep := init.Data.(ast.ListRepeatNode)
	folded := ast.FoldConstants(rep.Elem)
	if folded.Type == ast.Number && folded.Data.(ast.NumberNode).Value == 0 {
		return nil
	}
	v := st.vars.Lookup(name)
	g.line("for (int32_t __mcu_i = 0; __mcu_i < %s; __mcu_i++) {", g.countExpr(v.Type))
	g.indent++
	g.line("%s[__mcu_i] = %s;", name, g.expr(st, rep.Elem))
	g.indent--
	g.line("}")
	return nil
}

func (g *Generator) assignStmt(st *fnState, node *ast.Node) error {
	d := node.Data.(ast.AssignNode)

	if d.Lhs.Type == ast.Subscript {
		sub := d.Lhs.Data.(ast.SubscriptNode)
		g.line("%s[%s] = %s;", g.expr(st, sub.Target), g.expr(st, sub.Index), g.expr(st, d.Rhs))
		return nil
	}

	name := d.Lhs.Data.(ast.IdentNode).Name
	v := st.vars.Lookup(name)

	// Store into a module-lifetime slot. The slot becomes a second owner of
	// a refcounted object, so the duplication retains; that balances the
	// release the source's scope emits on exit.
	if v == nil {
		if t := g.consts[name]; t != nil && t.Kind == types.Buffer {
			g.line("mcu_gc_release(%s);", name)
			g.line("%s = (%s *)mcu_gc_retain(%s);", name, t.Elem.CName(), g.expr(st, d.Rhs))
			return nil
		}
		g.line("%s = %s;", name, g.expr(st, d.Rhs))
		return nil
	}

	// First assignment of an implicitly declared variable.
	if v.Decl == node {
		return g.declare(st, node, name, d.Rhs)
	}

	slot := st.classes.Lookup(name)
	if slot != nil && slot.Class == storage.Refcounted && v.Type.Kind == types.Buffer && d.Rhs.Type == ast.Ident {
		// Rebinding a refcounted slot releases the old object and retains
		// the new one. Record slots are literal-backed and never pass
		// through the heap, so they take the plain store below.
		g.line("mcu_gc_release(%s);", name)
		g.line("%s = (%s *)mcu_gc_retain(%s);", name, v.Type.Elem.CName(), g.expr(st, d.Rhs))
		return nil
	}

	g.line("%s = %s;", name, g.expr(st, d.Rhs))
	return nil
}

// returnStmt unwinds every open region and live refcounted slot before the
// return. Ownership of a returned refcounted object transfers to the caller,
// so that one slot is skipped.
func (g *Generator) returnStmt(st *fnState, node *ast.Node) error {
	d := node.Data.(ast.ReturnNode)

	var keep string
	if d.Expr != nil && d.Expr.Type == ast.Ident {
		keep = d.Expr.Data.(ast.IdentNode).Name
	}
	g.unwind(st, func(s *storage.Slot) bool { return s.Var.Name == keep })

	switch {
	case d.Expr == nil && st.name == "main":
		g.line("return 0;")
	case d.Expr == nil:
		g.line("return;")
	default:
		g.line("return %s;", g.expr(st, d.Expr))
	}
	return nil
}

// unwind emits releases and restores for every scope from the innermost out.
// keep, when non-nil, exempts slots whose ownership transfers out.
func (g *Generator) unwind(st *fnState, keep func(*storage.Slot) bool) {
	for s := st.scope; s != nil; s = s.parent {
		for i := len(s.owned) - 1; i >= 0; i-- {
			slot := s.owned[i]
			if keep != nil && keep(slot) {
				continue
			}
			g.line("mcu_gc_release(%s);", slot.Var.Name)
		}
		if s.mark != "" {
			g.line("mcu_arena_restore(%s);", s.mark)
		}
	}
}

// unwindLoop releases and restores every scope opened inside the enclosing
// loop before a break or continue transfers out of its body. Scopes outside
// the loop stay live.
func (g *Generator) unwindLoop(st *fnState) {
	for s := st.scope; s != nil; s = s.parent {
		for i := len(s.owned) - 1; i >= 0; i-- {
			g.line("mcu_gc_release(%s);", s.owned[i].Var.Name)
		}
		if s.mark != "" {
			g.line("mcu_arena_restore(%s);", s.mark)
		}
		if s.loop {
			return
		}
	}
}

// printStmt lowers print(...) to printf. Every non-string argument is
// printed with the integer directive; float arguments are narrowed the same
// way, reported under -Wfloat-format.
func (g *Generator) printStmt(st *fnState, call *ast.Node) error {
	d := call.Data.(ast.CallNode)

	var format strings.Builder
	var args []string
	for i, arg := range d.Args {
		if i > 0 {
			format.WriteByte(' ')
		}
		if arg.Type == ast.String {
			format.WriteString(escapeFormat(arg.Data.(ast.StringNode).Value))
			continue
		}
		if t := g.argType(st, arg); t.Kind == types.Float32 {
			util.Warn(g.cfg, config.WarnFloatFormat, arg.Pos,
				"float argument printed with the integer directive")
			format.WriteString("%d")
			args = append(args, fmt.Sprintf("(int32_t)%s", g.expr(st, arg)))
			continue
		}
		format.WriteString("%d")
		args = append(args, g.expr(st, arg))
	}
	format.WriteString("\\n")

	if len(args) == 0 {
		g.line("printf(\"%s\");", format.String())
		return nil
	}
	g.line("printf(\"%s\", %s);", format.String(), strings.Join(args, ", "))
	return nil
}

func (g *Generator) argType(st *fnState, arg *ast.Node) *types.Type {
	t, err := g.res.TypeOf(st.vars, arg)
	if err != nil || t == nil {
		return types.TypeInt32
	}
	return t
}

// escapeFormat escapes a literal chunk for use inside a printf format
// string.
func escapeFormat(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "\"", "\\\"")
	s = strings.ReplaceAll(s, "%", "%%")
	s = strings.ReplaceAll(s, "\n", "\\n")
	s = strings.ReplaceAll(s, "\t", "\\t")
	return s
}

func (g *Generator) expr(st *fnState, node *ast.Node) string {
	switch node.Type {
	case ast.Number:
		d := node.Data.(ast.NumberNode)
		if d.IsHex {
			return fmt.Sprintf("0x%X", uint64(d.Value))
		}
		return strconv.FormatInt(d.Value, 10)
	case ast.FloatNumber:
		v := node.Data.(ast.FloatNumberNode).Value
		s := strconv.FormatFloat(v, 'g', -1, 32)
		if !strings.ContainsAny(s, ".eE") {
			s += ".0"
		}
		return s + "f"
	case ast.BoolLit:
		if node.Data.(ast.BoolNode).Value {
			return "true"
		}
		return "false"
	case ast.String:
		return strconv.Quote(node.Data.(ast.StringNode).Value)
	case ast.Ident:
		return node.Data.(ast.IdentNode).Name
	case ast.BinaryOp:
		d := node.Data.(ast.BinaryOpNode)
		return fmt.Sprintf("(%s %s %s)", g.expr(st, d.Left), token.CSymbolMap[d.Op], g.expr(st, d.Right))
	case ast.UnaryOp:
		d := node.Data.(ast.UnaryOpNode)
		return fmt.Sprintf("%s(%s)", token.CSymbolMap[d.Op], g.expr(st, d.Expr))
	case ast.Subscript:
		d := node.Data.(ast.SubscriptNode)
		return fmt.Sprintf("%s[%s]", g.expr(st, d.Target), g.expr(st, d.Index))
	case ast.Call:
		d := node.Data.(ast.CallNode)
		parts := make([]string, len(d.Args))
		for i, arg := range d.Args {
			parts[i] = g.expr(st, arg)
		}
		return fmt.Sprintf("%s(%s)", d.Name, strings.Join(parts, ", "))
	case ast.ListRepeat:
		// Reached only as an initializer; declare handles it.
		return "0"
	}
	return "0"
}

func (g *Generator) pushScope(st *fnState, mark string) {
	st.scope = &scope{parent: st.scope, mark: mark}
}

// popScope closes a lexical scope on its normal exit path, releasing the
// refcounted slots it still owns. Early exits emit their own unwinding and
// transfer control before these lines run.
func (g *Generator) popScope(st *fnState) {
	for i := len(st.scope.owned) - 1; i >= 0; i-- {
		g.line("mcu_gc_release(%s);", st.scope.owned[i].Var.Name)
	}
	st.scope = st.scope.parent
}

func (g *Generator) line(format string, args ...interface{}) {
	for i := 0; i < g.indent; i++ {
		g.out.WriteString("    ")
	}
	fmt.Fprintf(&g.out, format, args...)
	g.out.WriteByte('\n')
}

func (g *Generator) raw(s string) {
	g.out.WriteString(s)
	g.out.WriteByte('\n')
}

func (g *Generator) blank() {
	g.out.WriteByte('\n')
}
