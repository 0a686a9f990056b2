package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xplshn/pymcu/pkg/ast"
	"github.com/xplshn/pymcu/pkg/token"
	"github.com/xplshn/pymcu/pkg/util"
)

func pos(line int) token.Pos { return token.Pos{Line: line, Column: 1} }

func resolve(t *testing.T, module *ast.Node) (*Resolver, map[string]*Table, map[string]error) {
	t.Helper()
	r := NewResolver()
	require.Empty(t, r.ResolveModule(module))

	tables := make(map[string]*Table)
	errs := make(map[string]error)
	for _, stmt := range module.Data.(ast.BlockNode).Stmts {
		if stmt.Type != ast.FuncDecl {
			continue
		}
		name := stmt.Data.(ast.FuncDeclNode).Name
		table, err := r.ResolveFunc(stmt)
		if err != nil {
			errs[name] = err
			continue
		}
		tables[name] = table
	}
	return r, tables, errs
}

func TestAnnotatedDeclarations(t *testing.T) {
	fn := ast.NewFuncDecl(pos(1), "f", nil, "None", ast.NewBlock(pos(1), []*ast.Node{
		ast.NewVarDecl(pos(2), "a", "uint8", false, ast.NewNumber(pos(2), 255, false)),
		ast.NewVarDecl(pos(3), "b", "float", false, ast.NewFloatNumber(pos(3), 1.5)),
		ast.NewVarDecl(pos(4), "c", "bool", false, ast.NewBool(pos(4), true)),
		ast.NewVarDecl(pos(5), "d", "int16", true, nil),
	}), "", "")
	module := ast.NewBlock(pos(1), []*ast.Node{fn})

	_, tables, errs := resolve(t, module)
	require.Empty(t, errs)

	table := tables["f"]
	assert.Equal(t, Uint8, table.Lookup("a").Type.Kind)
	assert.Equal(t, Float32, table.Lookup("b").Type.Kind)
	assert.Equal(t, Bool, table.Lookup("c").Type.Kind)
	assert.Equal(t, Int16, table.Lookup("d").Type.Kind)
	assert.True(t, table.Lookup("d").Volatile)
}

func TestOutOfRangeInitializerRejected(t *testing.T) {
	fn := ast.NewFuncDecl(pos(1), "f", nil, "None", ast.NewBlock(pos(1), []*ast.Node{
		ast.NewVarDecl(pos(2), "a", "uint8", false, ast.NewNumber(pos(2), 256, false)),
	}), "", "")
	module := ast.NewBlock(pos(1), []*ast.Node{fn})

	_, _, errs := resolve(t, module)
	require.Contains(t, errs, "f")

	ce, ok := errs["f"].(*util.CompileError)
	require.True(t, ok)
	assert.Equal(t, util.ErrTypeResolution, ce.Kind)
	assert.Equal(t, "f", ce.Func)
}

func TestImplicitDeclarationFromFirstAssignment(t *testing.T) {
	fn := ast.NewFuncDecl(pos(1), "f", nil, "None", ast.NewBlock(pos(1), []*ast.Node{
		ast.NewAssign(pos(2), ast.NewIdent(pos(2), "x"), ast.NewNumber(pos(2), 40, false)),
		ast.NewAssign(pos(3), ast.NewIdent(pos(3), "x"),
			ast.NewBinaryOp(pos(3), token.OpAdd, ast.NewIdent(pos(3), "x"), ast.NewNumber(pos(3), 2, false))),
	}), "", "")
	module := ast.NewBlock(pos(1), []*ast.Node{fn})

	_, tables, errs := resolve(t, module)
	require.Empty(t, errs)
	require.NotNil(t, tables["f"].Lookup("x"))
	assert.Equal(t, Int32, tables["f"].Lookup("x").Type.Kind)
}

func TestBufferInference(t *testing.T) {
	// SAMPLES: int = 32
	// def f() -> None:
	//     a: list = [0] * 8
	//     b: list = [0] * SAMPLES
	module := ast.NewBlock(pos(1), []*ast.Node{
		ast.NewConstDecl(pos(1), "SAMPLES", "int", ast.NewNumber(pos(1), 32, false), true),
		ast.NewFuncDecl(pos(2), "f", nil, "None", ast.NewBlock(pos(2), []*ast.Node{
			ast.NewVarDecl(pos(3), "a", "list", false,
				ast.NewListRepeat(pos(3), ast.NewNumber(pos(3), 0, false), ast.NewNumber(pos(3), 8, false))),
			ast.NewVarDecl(pos(4), "b", "list", false,
				ast.NewListRepeat(pos(4), ast.NewNumber(pos(4), 0, false), ast.NewIdent(pos(4), "SAMPLES"))),
		}), "", ""),
	})

	_, tables, errs := resolve(t, module)
	require.Empty(t, errs)

	a := tables["f"].Lookup("a").Type
	assert.Equal(t, Buffer, a.Kind)
	assert.Equal(t, int64(8), a.Count)
	assert.Empty(t, a.CountSym)
	assert.Equal(t, int64(32), a.Size())

	b := tables["f"].Lookup("b").Type
	assert.Equal(t, int64(32), b.Count)
	assert.Equal(t, "SAMPLES", b.CountSym)
}

func TestHexLiteralWidening(t *testing.T) {
	// Register addresses widen past the signed range.
	fn := ast.NewFuncDecl(pos(1), "f", nil, "None", ast.NewBlock(pos(1), []*ast.Node{
		ast.NewAssign(pos(2), ast.NewIdent(pos(2), "addr"), ast.NewNumber(pos(2), 0xE000ED00, true)),
	}), "", "")
	module := ast.NewBlock(pos(1), []*ast.Node{fn})

	_, tables, errs := resolve(t, module)
	require.Empty(t, errs)
	assert.Equal(t, Uint32, tables["f"].Lookup("addr").Type.Kind)
}

func TestSignatureResolution(t *testing.T) {
	// def scale(v: int, f: float) -> float: return f
	fn := ast.NewFuncDecl(pos(1), "scale", []*ast.Node{
		ast.NewVarDecl(pos(1), "v", "int", false, nil),
		ast.NewVarDecl(pos(1), "f", "float", false, nil),
	}, "float", ast.NewBlock(pos(1), []*ast.Node{
		ast.NewReturn(pos(2), ast.NewIdent(pos(2), "f")),
	}), "", "")
	module := ast.NewBlock(pos(1), []*ast.Node{fn})

	r, _, errs := resolve(t, module)
	require.Empty(t, errs)

	sig := r.Signatures()["scale"]
	require.NotNil(t, sig)
	assert.Equal(t, Int32, sig.Params[0].Kind)
	assert.Equal(t, Float32, sig.Params[1].Kind)
	assert.Equal(t, Float32, sig.Return.Kind)
}

func TestPerFunctionErrorContainment(t *testing.T) {
	bad := ast.NewFuncDecl(pos(1), "bad", nil, "None", ast.NewBlock(pos(1), []*ast.Node{
		ast.NewVarDecl(pos(2), "x", "mystery", false, nil),
	}), "", "")
	good := ast.NewFuncDecl(pos(4), "good", nil, "None", ast.NewBlock(pos(4), []*ast.Node{
		ast.NewVarDecl(pos(5), "y", "int", false, ast.NewNumber(pos(5), 1, false)),
	}), "", "")
	module := ast.NewBlock(pos(1), []*ast.Node{bad, good})

	_, tables, errs := resolve(t, module)
	assert.Contains(t, errs, "bad")
	assert.Contains(t, tables, "good")
}
