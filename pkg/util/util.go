// Package util provides the compiler's diagnostics: compile errors carrying
// source locations and the rule they violated, warning output, and
// source-line caret printing for the CLI.
package util

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/xplshn/pymcu/pkg/config"
	"github.com/xplshn/pymcu/pkg/token"
)

// ErrorKind classifies a compile-time failure.
type ErrorKind int

const (
	ErrTypeResolution ErrorKind = iota
	ErrUnboundedStackAllocation
	ErrArenaNestingViolation
	ErrTargetConfiguration
	ErrInternal
)

var kindNames = map[ErrorKind]string{
	ErrTypeResolution:           "TypeResolutionError",
	ErrUnboundedStackAllocation: "UnboundedStackAllocationError",
	ErrArenaNestingViolation:    "ArenaNestingViolation",
	ErrTargetConfiguration:      "TargetConfigurationError",
	ErrInternal:                 "InternalError",
}

func (k ErrorKind) String() string { return kindNames[k] }

// CompileError is fatal to the compilation of the enclosing function. The
// driver keeps compiling sibling functions and reports every error with its
// source location, the offending identifier and the rule violated.
type CompileError struct {
	Kind  ErrorKind
	Pos   token.Pos
	Func  string // enclosing function, "" at module level
	Ident string // offending identifier, "" when not identifier-specific
	Msg   string
}

func (e *CompileError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: %s", e.Kind, e.Msg)
	if e.Func != "" {
		fmt.Fprintf(&sb, " (in function '%s')", e.Func)
	}
	return sb.String()
}

// NewError builds a CompileError; ident may be empty.
func NewError(kind ErrorKind, pos token.Pos, ident, format string, args ...interface{}) *CompileError {
	return &CompileError{Kind: kind, Pos: pos, Ident: ident, Msg: fmt.Sprintf(format, args...)}
}

// InFunc stamps the enclosing function name onto an error chain, leaving an
// already-stamped CompileError untouched.
func InFunc(err error, fn string) error {
	var ce *CompileError
	if errors.As(err, &ce) && ce.Func == "" {
		ce.Func = fn
	}
	return err
}

// SourceFileRecord tracks the name and content of a single source file.
type SourceFileRecord struct {
	Name    string
	Content []rune
}

var sourceFiles []SourceFileRecord

// SetSourceFiles stores the source code for all input files for rich error messages
func SetSourceFiles(files []SourceFileRecord) {
	sourceFiles = files
}

func findFileAndLine(pos token.Pos) (filename string, line, col int) {
	if pos.FileIndex < 0 || pos.FileIndex >= len(sourceFiles) {
		return "input", pos.Line, pos.Column
	}
	return sourceFiles[pos.FileIndex].Name, pos.Line, pos.Column
}

// printErrorLine prints the source line and a caret indicating the error position
func printErrorLine(stream *os.File, pos token.Pos) {
	if pos.FileIndex < 0 || pos.FileIndex >= len(sourceFiles) || pos.Line == 0 {
		return
	}

	content := sourceFiles[pos.FileIndex].Content
	lineNum := pos.Line
	lineStart := 0
	for i, r := range content {
		if lineNum <= 1 {
			break
		}
		if r == '\n' {
			lineNum--
			lineStart = i + 1
		}
	}

	lineEnd := len(content)
	for i := lineStart; i < len(content); i++ {
		if content[i] == '\n' {
			lineEnd = i
			break
		}
	}

	fmt.Fprintf(stream, "  %s\n", string(content[lineStart:lineEnd]))

	if pos.Column < 1 {
		return
	}
	fmt.Fprintf(stream, "  %s\033[32m^", strings.Repeat(" ", pos.Column-1))
	if pos.Len > 1 {
		fmt.Fprintf(stream, "%s", strings.Repeat("~", pos.Len-1))
	}
	fmt.Fprintln(stream, "\033[0m")
}

// Report prints a compile error in the usual file:line:col form. Errors that
// are not CompileErrors are printed bare.
func Report(err error) {
	var ce *CompileError
	if !errors.As(err, &ce) {
		fmt.Fprintf(os.Stderr, "\033[31merror:\033[0m %v\n", err)
		return
	}
	filename, line, col := findFileAndLine(ce.Pos)
	fmt.Fprintf(os.Stderr, "%s:%d:%d: \033[31merror:\033[0m %s", filename, line, col, ce.Msg)
	if ce.Func != "" {
		fmt.Fprintf(os.Stderr, " (function '%s'", ce.Func)
		if ce.Ident != "" {
			fmt.Fprintf(os.Stderr, ", variable '%s'", ce.Ident)
		}
		fmt.Fprint(os.Stderr, ")")
	}
	fmt.Fprintf(os.Stderr, " [%s]\n", ce.Kind)
	printErrorLine(os.Stderr, ce.Pos)
}

// Warn prints a formatted warning message if the corresponding warning is enabled
func Warn(cfg *config.Config, wt config.Warning, pos token.Pos, format string, args ...interface{}) {
	if !cfg.IsWarningEnabled(wt) {
		return
	}
	filename, line, col := findFileAndLine(pos)
	warningName := cfg.Warnings[wt].Name
	fmt.Fprintf(os.Stderr, "%s:%d:%d: \033[33mwarning:\033[0m ", filename, line, col)
	fmt.Fprintf(os.Stderr, format, args...)
	fmt.Fprintf(os.Stderr, " [-W%s]\n", warningName)
	printErrorLine(os.Stderr, pos)
}

// AlignUp rounds n up to the next multiple of align (align must be a power of two).
func AlignUp(n, align int64) int64 {
	return (n + align - 1) &^ (align - 1)
}
