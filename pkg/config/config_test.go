package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xplshn/pymcu/pkg/cli"
)

func TestLookupTarget(t *testing.T) {
	pc, err := LookupTarget("pc")
	require.NoError(t, err)
	assert.Equal(t, "TARGET_PC", pc.Macro)
	assert.False(t, pc.Hardware)

	stm, err := LookupTarget("stm32f4")
	require.NoError(t, err)
	assert.True(t, stm.Hardware)

	_, err = LookupTarget("avr")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "avr")
}

func TestFeatureAndWarningToggles(t *testing.T) {
	cfg := NewConfig()
	assert.True(t, cfg.IsFeatureEnabled(FeatArena))
	assert.False(t, cfg.IsWarningEnabled(WarnVerbatimC))

	cfg.SetFeature(FeatArena, false)
	cfg.SetWarning(WarnVerbatimC, true)
	assert.False(t, cfg.IsFeatureEnabled(FeatArena))
	assert.True(t, cfg.IsWarningEnabled(WarnVerbatimC))
}

func TestSetupFlagGroupsParsesToggles(t *testing.T) {
	cfg := NewConfig()
	fs := cli.NewFlagSet("pymcu")
	warningFlags, featureFlags := cfg.SetupFlagGroups(fs)

	require.NoError(t, fs.Parse([]string{"-Wverbatim-c", "-Fno-refcount"}))

	assert.True(t, *warningFlags[WarnVerbatimC].Enabled)
	assert.True(t, *featureFlags[FeatRefcount].Disabled)
	assert.False(t, *featureFlags[FeatArena].Disabled)
}

func TestApplyManifest(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pymcu.toml")
	manifest := `[build]
input = "app.ast.json"
output = "app.c"
target = "rp2040"
arena-size = 8192
warnings = ["verbatim-c", "no-float-format"]
features = ["no-defines"]
`
	require.NoError(t, os.WriteFile(path, []byte(manifest), 0o644))

	cfg := NewConfig()
	require.NoError(t, cfg.ApplyManifest(path))

	assert.Equal(t, "app.ast.json", cfg.Input)
	assert.Equal(t, "app.c", cfg.Output)
	assert.Equal(t, "rp2040", cfg.Target.Name)
	assert.Equal(t, 8192, cfg.ArenaSize)
	assert.True(t, cfg.IsWarningEnabled(WarnVerbatimC))
	assert.False(t, cfg.IsWarningEnabled(WarnFloatFormat))
	assert.False(t, cfg.IsFeatureEnabled(FeatDefines))
	assert.True(t, cfg.IsFeatureEnabled(FeatArena))
}

func TestApplyManifestRejectsUnknownNames(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pymcu.toml")
	require.NoError(t, os.WriteFile(path, []byte("[build]\nwarnings = [\"tabs\"]\n"), 0o644))

	cfg := NewConfig()
	err := cfg.ApplyManifest(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tabs")
}
