package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xplshn/pymcu/pkg/ast"
	"github.com/xplshn/pymcu/pkg/config"
	"github.com/xplshn/pymcu/pkg/token"
	"github.com/xplshn/pymcu/pkg/types"
	"github.com/xplshn/pymcu/pkg/util"
)

func pos(line int) token.Pos { return token.Pos{Line: line, Column: 1} }

// classify resolves and classifies every function in the module, returning
// the tables keyed by function name. Per-function errors are returned keyed
// the same way.
func classify(t *testing.T, cfg *config.Config, module *ast.Node) (map[string]*Table, map[string]error) {
	t.Helper()
	r := types.NewResolver()
	require.Empty(t, r.ResolveModule(module))

	resolved := make(map[string]*types.Table)
	fns := make(map[string]*ast.Node)
	for _, stmt := range module.Data.(ast.BlockNode).Stmts {
		if stmt.Type != ast.FuncDecl {
			continue
		}
		name := stmt.Data.(ast.FuncDeclNode).Name
		table, err := r.ResolveFunc(stmt)
		require.NoError(t, err)
		resolved[name] = table
		fns[name] = stmt
	}

	c := NewClassifier(cfg, r.Constants())
	c.AnalyzeRetention(module, resolved)

	tables := make(map[string]*Table)
	errs := make(map[string]error)
	for name, fn := range fns {
		table, err := c.Classify(fn, resolved[name])
		if err != nil {
			errs[name] = err
			continue
		}
		tables[name] = table
	}
	return tables, errs
}

func TestScalarsAndFixedBuffersAreStack(t *testing.T) {
	// def f() -> None:
	//     n: int = 3
	//     buf: list = [0] * 8
	fn := ast.NewFuncDecl(pos(1), "f", nil, "None", ast.NewBlock(pos(1), []*ast.Node{
		ast.NewVarDecl(pos(2), "n", "int", false, ast.NewNumber(pos(2), 3, false)),
		ast.NewVarDecl(pos(3), "buf", "list", false,
			ast.NewListRepeat(pos(3), ast.NewNumber(pos(3), 0, false), ast.NewNumber(pos(3), 8, false))),
	}), "", "")
	module := ast.NewBlock(pos(1), []*ast.Node{fn})

	tables, errs := classify(t, config.NewConfig(), module)
	require.Empty(t, errs)

	table := tables["f"]
	require.NotNil(t, table)
	assert.Equal(t, Stack, table.Lookup("n").Class)
	assert.Equal(t, Stack, table.Lookup("buf").Class)
	assert.Equal(t, 1, table.Passes)
}

func TestArenaRegionsAssignDistinctIndices(t *testing.T) {
	// def f() -> None:
	//     with arena:
	//         a: list = [0] * 4
	//         with arena:
	//             b: list = [0] * 4
	inner := ast.NewArenaBlock(pos(4), ast.NewBlock(pos(4), []*ast.Node{
		ast.NewVarDecl(pos(5), "b", "list", false,
			ast.NewListRepeat(pos(5), ast.NewNumber(pos(5), 0, false), ast.NewNumber(pos(5), 4, false))),
	}))
	outer := ast.NewArenaBlock(pos(2), ast.NewBlock(pos(2), []*ast.Node{
		ast.NewVarDecl(pos(3), "a", "list", false,
			ast.NewListRepeat(pos(3), ast.NewNumber(pos(3), 0, false), ast.NewNumber(pos(3), 4, false))),
		inner,
	}))
	fn := ast.NewFuncDecl(pos(1), "f", nil, "None", ast.NewBlock(pos(1), []*ast.Node{outer}), "", "")
	module := ast.NewBlock(pos(1), []*ast.Node{fn})

	tables, errs := classify(t, config.NewConfig(), module)
	require.Empty(t, errs)

	table := tables["f"]
	assert.Equal(t, 2, table.Regions)
	assert.Equal(t, Arena, table.Lookup("a").Class)
	assert.Equal(t, 0, table.Lookup("a").Region)
	assert.Equal(t, Arena, table.Lookup("b").Class)
	assert.Equal(t, 1, table.Lookup("b").Region)
}

func TestReturnedBufferIsRefcounted(t *testing.T) {
	// def make() -> list:
	//     buf: list = [0] * 16
	//     return buf
	fn := ast.NewFuncDecl(pos(1), "make", nil, "list", ast.NewBlock(pos(1), []*ast.Node{
		ast.NewVarDecl(pos(2), "buf", "list", false,
			ast.NewListRepeat(pos(2), ast.NewNumber(pos(2), 0, false), ast.NewNumber(pos(2), 16, false))),
		ast.NewReturn(pos(3), ast.NewIdent(pos(3), "buf")),
	}), "", "")
	module := ast.NewBlock(pos(1), []*ast.Node{fn})

	tables, errs := classify(t, config.NewConfig(), module)
	require.Empty(t, errs)

	slot := tables["make"].Lookup("buf")
	assert.Equal(t, Refcounted, slot.Class)
	require.NotNil(t, slot.Escape)
	assert.Equal(t, EscReturned, slot.Escape.Kind)
}

func TestStoreIntoRefcountedTriggersSingleFixupPass(t *testing.T) {
	// def make() -> list:
	//     tmp: list = [0] * 4
	//     buf: list = [0] * 4
	//     buf = tmp
	//     return buf
	fn := ast.NewFuncDecl(pos(1), "make", nil, "list", ast.NewBlock(pos(1), []*ast.Node{
		ast.NewVarDecl(pos(2), "tmp", "list", false,
			ast.NewListRepeat(pos(2), ast.NewNumber(pos(2), 0, false), ast.NewNumber(pos(2), 4, false))),
		ast.NewVarDecl(pos(3), "buf", "list", false,
			ast.NewListRepeat(pos(3), ast.NewNumber(pos(3), 0, false), ast.NewNumber(pos(3), 4, false))),
		ast.NewAssign(pos(4), ast.NewIdent(pos(4), "buf"), ast.NewIdent(pos(4), "tmp")),
		ast.NewReturn(pos(5), ast.NewIdent(pos(5), "buf")),
	}), "", "")
	module := ast.NewBlock(pos(1), []*ast.Node{fn})

	tables, errs := classify(t, config.NewConfig(), module)
	require.Empty(t, errs)

	table := tables["make"]
	assert.Equal(t, 2, table.Passes)
	assert.Equal(t, Refcounted, table.Lookup("buf").Class)

	tmp := table.Lookup("tmp")
	assert.Equal(t, Refcounted, tmp.Class)
	require.NotNil(t, tmp.Escape)
	assert.Equal(t, EscStoredRefcounted, tmp.Escape.Kind)
	assert.Equal(t, "buf", tmp.Escape.Via)
}

func TestUnboundedStackAllocationIsRejected(t *testing.T) {
	// def f() -> None:
	//     buf: list = read_samples()
	fn := ast.NewFuncDecl(pos(1), "f", nil, "None", ast.NewBlock(pos(1), []*ast.Node{
		ast.NewVarDecl(pos(2), "buf", "list", false, ast.NewCall(pos(2), "read_samples", nil)),
	}), "", "")
	module := ast.NewBlock(pos(1), []*ast.Node{fn})

	_, errs := classify(t, config.NewConfig(), module)
	require.Contains(t, errs, "f")

	ce := asCompileError(t, errs["f"])
	assert.Equal(t, util.ErrUnboundedStackAllocation, ce.Kind)
	assert.Equal(t, "f", ce.Func)
}

func TestEscapeWithRefcountingDisabledIsRejected(t *testing.T) {
	fn := ast.NewFuncDecl(pos(1), "make", nil, "list", ast.NewBlock(pos(1), []*ast.Node{
		ast.NewVarDecl(pos(2), "buf", "list", false,
			ast.NewListRepeat(pos(2), ast.NewNumber(pos(2), 0, false), ast.NewNumber(pos(2), 4, false))),
		ast.NewReturn(pos(3), ast.NewIdent(pos(3), "buf")),
	}), "", "")
	module := ast.NewBlock(pos(1), []*ast.Node{fn})

	cfg := config.NewConfig()
	cfg.SetFeature(config.FeatRefcount, false)
	_, errs := classify(t, cfg, module)
	require.Contains(t, errs, "make")
	assert.Equal(t, util.ErrUnboundedStackAllocation, asCompileError(t, errs["make"]).Kind)
}

func TestArenaRegionWithArenasDisabledIsRejected(t *testing.T) {
	region := ast.NewArenaBlock(pos(2), ast.NewBlock(pos(2), []*ast.Node{
		ast.NewPass(pos(3)),
	}))
	fn := ast.NewFuncDecl(pos(1), "f", nil, "None", ast.NewBlock(pos(1), []*ast.Node{region}), "", "")
	module := ast.NewBlock(pos(1), []*ast.Node{fn})

	cfg := config.NewConfig()
	cfg.SetFeature(config.FeatArena, false)
	_, errs := classify(t, cfg, module)
	require.Contains(t, errs, "f")
	assert.Equal(t, util.ErrArenaNestingViolation, asCompileError(t, errs["f"]).Kind)
}

func TestRetainedArgumentEscapesAtCaller(t *testing.T) {
	// STORE: int = 0
	//
	// def keep(data: list) -> None:
	//     STORE = data
	//
	// def caller() -> None:
	//     buf: list = [0] * 4
	//     keep(buf)
	store := ast.NewConstDecl(pos(1), "STORE", "int", ast.NewNumber(pos(1), 0, false), false)
	keep := ast.NewFuncDecl(pos(3), "keep",
		[]*ast.Node{ast.NewVarDecl(pos(3), "data", "list", false, nil)},
		"None",
		ast.NewBlock(pos(3), []*ast.Node{
			ast.NewAssign(pos(4), ast.NewIdent(pos(4), "STORE"), ast.NewIdent(pos(4), "data")),
		}), "", "")
	caller := ast.NewFuncDecl(pos(6), "caller", nil, "None", ast.NewBlock(pos(6), []*ast.Node{
		ast.NewVarDecl(pos(7), "buf", "list", false,
			ast.NewListRepeat(pos(7), ast.NewNumber(pos(7), 0, false), ast.NewNumber(pos(7), 4, false))),
		ast.NewExprStmt(pos(8), ast.NewCall(pos(8), "keep", []*ast.Node{ast.NewIdent(pos(8), "buf")})),
	}), "", "")
	module := ast.NewBlock(pos(1), []*ast.Node{store, keep, caller})

	tables, errs := classify(t, config.NewConfig(), module)
	require.Empty(t, errs)

	// The callee's parameter stays caller-owned.
	assert.Equal(t, Stack, tables["keep"].Lookup("data").Class)

	slot := tables["caller"].Lookup("buf")
	assert.Equal(t, Refcounted, slot.Class)
	require.NotNil(t, slot.Escape)
	assert.Equal(t, EscRetainedArg, slot.Escape.Kind)
	assert.Equal(t, "keep", slot.Escape.Via)
}

func TestClassificationIsIdempotent(t *testing.T) {
	fn := ast.NewFuncDecl(pos(1), "make", nil, "list", ast.NewBlock(pos(1), []*ast.Node{
		ast.NewVarDecl(pos(2), "tmp", "list", false,
			ast.NewListRepeat(pos(2), ast.NewNumber(pos(2), 0, false), ast.NewNumber(pos(2), 4, false))),
		ast.NewVarDecl(pos(3), "buf", "list", false,
			ast.NewListRepeat(pos(3), ast.NewNumber(pos(3), 0, false), ast.NewNumber(pos(3), 4, false))),
		ast.NewAssign(pos(4), ast.NewIdent(pos(4), "buf"), ast.NewIdent(pos(4), "tmp")),
		ast.NewReturn(pos(5), ast.NewIdent(pos(5), "buf")),
	}), "", "")
	module := ast.NewBlock(pos(1), []*ast.Node{fn})

	first, errs := classify(t, config.NewConfig(), module)
	require.Empty(t, errs)
	second, errs := classify(t, config.NewConfig(), module)
	require.Empty(t, errs)
	assert.Equal(t, first["make"].String(), second["make"].String())
}

func asCompileError(t *testing.T, err error) *util.CompileError {
	t.Helper()
	ce, ok := err.(*util.CompileError)
	require.True(t, ok, "expected *util.CompileError, got %T", err)
	return ce
}
