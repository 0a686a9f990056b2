package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xplshn/pymcu/pkg/ast"
	"github.com/xplshn/pymcu/pkg/cli"
	"github.com/xplshn/pymcu/pkg/codegen"
	"github.com/xplshn/pymcu/pkg/config"
	"github.com/xplshn/pymcu/pkg/runtime"
	"github.com/xplshn/pymcu/pkg/storage"
	"github.com/xplshn/pymcu/pkg/types"
	"github.com/xplshn/pymcu/pkg/util"
)

func main() {
	app := cli.NewApp("pymcu")
	app.Synopsis = "[options] <module.ast.json>"
	app.Description = "Compiles statically annotated Python modules to portable C for microcontroller targets."
	app.Authors = []string{"xplshn"}
	app.Repository = "<https://github.com/xplshn/pymcu>"
	app.Since = 2025

	var (
		outFile     string
		target      string
		manifest    string
		arenaSize   int
		dumpClasses bool
		noRuntime   bool
	)

	fs := app.FlagSet
	fs.String(&outFile, "output", "o", "", "Place the generated C into <file>.", "file")
	fs.String(&target, "target", "t", "", "Select the target profile (pc, stm32f4, esp32, rp2040).", "target")
	fs.String(&manifest, "manifest", "m", "", "Read build settings from a TOML manifest.", "file")
	fs.Int(&arenaSize, "arena-size", "", 0, "Override the default arena capacity in bytes.", "bytes")
	fs.Bool(&dumpClasses, "dump-classes", "d", false, "Dump the storage classification tables and exit.")
	fs.Bool(&noRuntime, "no-runtime", "", false, "Do not write the runtime pair next to the output.")

	cfg := config.NewConfig()
	warningFlags, featureFlags := cfg.SetupFlagGroups(fs)

	app.Action = func(args []string) error {
		if manifest != "" {
			if err := cfg.ApplyManifest(manifest); err != nil {
				util.Report(err)
				return err
			}
		}

		// Explicit flags win over the manifest.
		for i, entry := range warningFlags {
			if entry.Enabled != nil && *entry.Enabled {
				cfg.SetWarning(config.Warning(i), true)
			}
			if entry.Disabled != nil && *entry.Disabled {
				cfg.SetWarning(config.Warning(i), false)
			}
		}
		for i, entry := range featureFlags {
			if entry.Enabled != nil && *entry.Enabled {
				cfg.SetFeature(config.Feature(i), true)
			}
			if entry.Disabled != nil && *entry.Disabled {
				cfg.SetFeature(config.Feature(i), false)
			}
		}
		if target != "" {
			if err := cfg.SetTarget(target); err != nil {
				util.Report(err)
				return err
			}
		}
		if cfg.Target.Name == "" {
			if err := cfg.SetTarget("pc"); err != nil {
				return err
			}
		}
		if arenaSize > 0 {
			cfg.ArenaSize = arenaSize
		}
		if outFile != "" {
			cfg.Output = outFile
		}

		if len(args) > 0 {
			cfg.Input = args[0]
		}
		if cfg.Input == "" {
			err := fmt.Errorf("no input document specified")
			util.Report(err)
			return err
		}

		return compile(cfg, dumpClasses, !noRuntime)
	}

	if err := app.Run(os.Args[1:]); err != nil {
		os.Exit(1)
	}
}

func compile(cfg *config.Config, dumpClasses, emitRuntime bool) error {
	data, err := os.ReadFile(cfg.Input)
	if err != nil {
		util.Report(fmt.Errorf("could not read '%s': %v", cfg.Input, err))
		return err
	}
	setSourceContext(cfg)

	root, err := ast.LoadJSON(data)
	if err != nil {
		util.Report(err)
		return err
	}
	root = ast.FoldConstants(root)

	r := types.NewResolver()
	failed := false
	for _, err := range r.ResolveModule(root) {
		util.Report(err)
		failed = true
	}

	// Every function is resolved and classified even after a sibling fails,
	// so one run reports every diagnostic. Functions are processed in
	// declaration order so diagnostics come out in a stable order.
	resolved := make(map[string]*types.Table)
	fns := moduleFuncs(root)
	for _, fn := range fns {
		name := fn.Data.(ast.FuncDeclNode).Name
		table, err := r.ResolveFunc(fn)
		if err != nil {
			util.Report(err)
			failed = true
			continue
		}
		resolved[name] = table
	}

	classifier := storage.NewClassifier(cfg, r.Constants())
	classifier.AnalyzeRetention(root, resolved)

	classes := make(map[string]*storage.Table)
	for _, fn := range fns {
		name := fn.Data.(ast.FuncDeclNode).Name
		if resolved[name] == nil {
			continue
		}
		table, err := classifier.Classify(fn, resolved[name])
		if err != nil {
			util.Report(err)
			failed = true
			continue
		}
		classes[name] = table
	}

	if dumpClasses {
		for _, fn := range fns {
			name := fn.Data.(ast.FuncDeclNode).Name
			if classes[name] != nil {
				fmt.Print(classes[name])
			}
		}
		if failed {
			return fmt.Errorf("compilation failed")
		}
		return nil
	}
	if failed {
		return fmt.Errorf("compilation failed")
	}

	out, err := codegen.New(cfg, r, resolved, classes).Generate(root)
	if err != nil {
		util.Report(err)
		return err
	}

	outPath := cfg.Output
	if outPath == "" {
		base := strings.TrimSuffix(filepath.Base(cfg.Input), ".json")
		base = strings.TrimSuffix(base, ".ast")
		outPath = base + ".c"
	}
	if err := os.WriteFile(outPath, []byte(out), 0o644); err != nil {
		util.Report(fmt.Errorf("could not write '%s': %v", outPath, err))
		return err
	}

	if emitRuntime {
		dir := filepath.Dir(outPath)
		header := runtime.HeaderSource(int64(cfg.ArenaSize))
		if err := os.WriteFile(filepath.Join(dir, runtime.HeaderName), []byte(header), 0o644); err != nil {
			util.Report(err)
			return err
		}
		if err := os.WriteFile(filepath.Join(dir, runtime.SourceName), []byte(runtime.CSource()), 0o644); err != nil {
			util.Report(err)
			return err
		}
	}
	return nil
}

// setSourceContext wires the original source file, when the manifest names
// it, into diagnostic output.
func setSourceContext(cfg *config.Config) {
	record := util.SourceFileRecord{Name: cfg.Input}
	if cfg.Source != "" {
		record.Name = cfg.Source
		if content, err := os.ReadFile(cfg.Source); err == nil {
			record.Content = []rune(string(content))
		}
	}
	util.SetSourceFiles([]util.SourceFileRecord{record})
}

// moduleFuncs returns the module's function declarations in declaration
// order.
func moduleFuncs(root *ast.Node) []*ast.Node {
	block, ok := root.Data.(ast.BlockNode)
	if !ok {
		return nil
	}
	var fns []*ast.Node
	for _, stmt := range block.Stmts {
		if stmt.Type == ast.FuncDecl {
			fns = append(fns, stmt)
		}
	}
	return fns
}
