package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xplshn/pymcu/pkg/ast"
	"github.com/xplshn/pymcu/pkg/token"
)

func TestModuleFuncsKeepDeclarationOrder(t *testing.T) {
	pos := token.Pos{Line: 1, Column: 1}
	module := ast.NewBlock(pos, []*ast.Node{
		ast.NewConstDecl(pos, "LIMIT", "int", ast.NewNumber(pos, 8, false), true),
		ast.NewFuncDecl(pos, "zeta", nil, "None", ast.NewBlock(pos, nil), "", ""),
		ast.NewFuncDecl(pos, "alpha", nil, "None", ast.NewBlock(pos, nil), "", ""),
		ast.NewFuncDecl(pos, "mid", nil, "None", ast.NewBlock(pos, nil), "", ""),
	})

	var names []string
	for _, fn := range moduleFuncs(module) {
		names = append(names, fn.Data.(ast.FuncDeclNode).Name)
	}
	// Declaration order, not name order: diagnostics and table dumps follow
	// the source.
	assert.Equal(t, []string{"zeta", "alpha", "mid"}, names)
}
