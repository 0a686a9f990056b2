package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLongAndShortFlags(t *testing.T) {
	fs := NewFlagSet("t")
	var out string
	var size int
	var dump bool
	fs.String(&out, "output", "o", "", "output file", "file")
	fs.Int(&size, "arena-size", "", 0, "arena capacity", "bytes")
	fs.Bool(&dump, "dump-classes", "d", false, "dump tables")

	require.NoError(t, fs.Parse([]string{"-o", "out.c", "--arena-size=4096", "-d", "mod.ast.json"}))
	assert.Equal(t, "out.c", out)
	assert.Equal(t, 4096, size)
	assert.True(t, dump)
	assert.Equal(t, []string{"mod.ast.json"}, fs.Args())
}

func TestParseGroupToggles(t *testing.T) {
	fs := NewFlagSet("t")
	enabled := []bool{false, true}
	disabled := []bool{false, false}
	fs.AddFlagGroup("Warnings", "", "warning", "", []FlagGroupEntry{
		{Name: "float-format", Prefix: "W", Enabled: &enabled[0], Disabled: &disabled[0]},
		{Name: "verbatim-c", Prefix: "W", Enabled: &enabled[1], Disabled: &disabled[1]},
	})

	// Single-dash spellings resolve the full toggle name before falling
	// back to one-letter shorthands.
	require.NoError(t, fs.Parse([]string{"-Wfloat-format", "-Wno-verbatim-c"}))
	assert.True(t, enabled[0])
	assert.True(t, disabled[1])
}

func TestParseAttachedShorthandValue(t *testing.T) {
	fs := NewFlagSet("t")
	var out string
	fs.String(&out, "output", "o", "", "output file", "file")

	require.NoError(t, fs.Parse([]string{"-oout.c"}))
	assert.Equal(t, "out.c", out)
}

func TestParseErrors(t *testing.T) {
	fs := NewFlagSet("t")
	var out string
	fs.String(&out, "output", "o", "", "output file", "file")

	assert.Error(t, fs.Parse([]string{"--no-such-flag"}))
	assert.Error(t, fs.Parse([]string{"-x"}))
	assert.Error(t, fs.Parse([]string{"--output"}))
}

func TestParseDoubleDashStopsFlags(t *testing.T) {
	fs := NewFlagSet("t")
	var dump bool
	fs.Bool(&dump, "dump-classes", "d", false, "dump tables")

	require.NoError(t, fs.Parse([]string{"--", "-d", "file"}))
	assert.False(t, dump)
	assert.Equal(t, []string{"-d", "file"}, fs.Args())
}
