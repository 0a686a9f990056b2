package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/go-cmp/cmp"
)

// pymcutest runs the compiler over every example document and compares the
// emitted C against the golden file next to it (<name>.golden.c). With
// -update the goldens are rewritten instead of compared.

var (
	compiler   = flag.String("compiler", "./pymcu", "Path to the compiler under test.")
	targetName = flag.String("target", "pc", "Target profile passed to every compile.")
	testFiles  = flag.String("test-files", "examples/*.ast.json", "Glob pattern for front-end documents to test.")
	update     = flag.Bool("update", false, "Rewrite golden files from the current compiler output.")
	jobs       = flag.Int("j", 4, "Number of parallel test jobs.")
	timeout    = flag.Duration("timeout", 10*time.Second, "Timeout per compile.")
	cacheFile  = flag.String("cache", ".pymcutest_cache.json", "Hash cache; unchanged passing tests are skipped.")
	useCache   = flag.Bool("cached", false, "Skip tests whose input and golden are unchanged since the last pass.")
	verbose    = flag.Bool("v", false, "Enable verbose logging.")
)

const (
	cRed   = "\x1b[91m"
	cGreen = "\x1b[92m"
	cCyan  = "\x1b[96m"
	cNone  = "\x1b[0m"
)

type result struct {
	file   string
	status string // PASS, FAIL, SKIP, UPDATED
	detail string
}

func main() {
	flag.Parse()
	log.SetFlags(0)

	files, err := filepath.Glob(*testFiles)
	if err != nil || len(files) == 0 {
		log.Fatalf("%s[ERROR]%s no test files match '%s'", cRed, cNone, *testFiles)
	}
	sort.Strings(files)

	cache := loadCache()
	tempDir, err := os.MkdirTemp("", "pymcutest-*")
	if err != nil {
		log.Fatalf("%s[ERROR]%s %v", cRed, cNone, err)
	}
	defer os.RemoveAll(tempDir)

	results := make([]result, len(files))
	sem := make(chan struct{}, max(1, *jobs))
	var wg sync.WaitGroup
	for i, file := range files {
		wg.Add(1)
		go func(i int, file string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[i] = runOne(file, tempDir, cache)
		}(i, file)
	}
	wg.Wait()

	failed := 0
	for _, res := range results {
		switch res.status {
		case "PASS":
			fmt.Printf("%s[PASS]%s %s\n", cGreen, cNone, res.file)
		case "SKIP":
			fmt.Printf("%s[SKIP]%s %s (unchanged)\n", cCyan, cNone, res.file)
		case "UPDATED":
			fmt.Printf("%s[GOLD]%s %s\n", cCyan, cNone, res.file)
		default:
			failed++
			fmt.Printf("%s[FAIL]%s %s\n%s\n", cRed, cNone, res.file, res.detail)
		}
	}
	saveCache(cache)

	fmt.Printf("\n%d test(s), %d failure(s)\n", len(results), failed)
	if failed > 0 {
		os.Exit(1)
	}
}

func runOne(file, tempDir string, cache *hashCache) result {
	golden := goldenPath(file)

	if *useCache && !*update && cache.unchanged(file, golden) {
		return result{file: file, status: "SKIP"}
	}

	outPath := filepath.Join(tempDir, strings.ReplaceAll(file, string(os.PathSeparator), "_")+".c")
	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, *compiler, "-t", *targetName, "--no-runtime", "-o", outPath, file)
	combined, err := cmd.CombinedOutput()
	if *verbose {
		log.Printf("%s[RUN ]%s %s", cCyan, cNone, strings.Join(cmd.Args, " "))
	}
	if err != nil {
		return result{file: file, status: "FAIL",
			detail: fmt.Sprintf("compile failed: %v\n%s", err, combined)}
	}

	got, err := os.ReadFile(outPath)
	if err != nil {
		return result{file: file, status: "FAIL", detail: fmt.Sprintf("no output written: %v", err)}
	}

	if *update {
		if err := os.WriteFile(golden, got, 0o644); err != nil {
			return result{file: file, status: "FAIL", detail: err.Error()}
		}
		cache.record(file, golden)
		return result{file: file, status: "UPDATED"}
	}

	want, err := os.ReadFile(golden)
	if err != nil {
		return result{file: file, status: "FAIL",
			detail: fmt.Sprintf("missing golden file %s (run with -update to create it)", golden)}
	}

	if xxhash.Sum64(got) != xxhash.Sum64(want) {
		diff := cmp.Diff(string(want), string(got))
		return result{file: file, status: "FAIL", detail: diff}
	}
	cache.record(file, golden)
	return result{file: file, status: "PASS"}
}

func goldenPath(file string) string {
	base := strings.TrimSuffix(file, ".ast.json")
	return base + ".golden.c"
}

// hashCache remembers the input and golden hashes of the last passing run.
type hashCache struct {
	mu   sync.Mutex
	Sums map[string]string `json:"sums"`
}

func cacheKey(file, golden string) string {
	in, err1 := os.ReadFile(file)
	gold, err2 := os.ReadFile(golden)
	if err1 != nil || err2 != nil {
		return ""
	}
	return fmt.Sprintf("%x:%x", xxhash.Sum64(in), xxhash.Sum64(gold))
}

func (c *hashCache) unchanged(file, golden string) bool {
	key := cacheKey(file, golden)
	c.mu.Lock()
	defer c.mu.Unlock()
	return key != "" && c.Sums[file] == key
}

func (c *hashCache) record(file, golden string) {
	key := cacheKey(file, golden)
	if key == "" {
		return
	}
	c.mu.Lock()
	c.Sums[file] = key
	c.mu.Unlock()
}

func loadCache() *hashCache {
	cache := &hashCache{Sums: make(map[string]string)}
	data, err := os.ReadFile(*cacheFile)
	if err != nil {
		return cache
	}
	if err := json.Unmarshal(data, cache); err != nil {
		return &hashCache{Sums: make(map[string]string)}
	}
	return cache
}

func saveCache(cache *hashCache) {
	data, err := json.MarshalIndent(cache, "", "  ")
	if err != nil {
		return
	}
	_ = os.WriteFile(*cacheFile, data, 0o644)
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
