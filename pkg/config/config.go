// Package config holds the compiler configuration: the selected target
// profile, feature toggles and warning tables.
package config

import (
	"fmt"
	"sort"

	"github.com/xplshn/pymcu/pkg/cli"
)

type Feature int

const (
	FeatVerbatimC Feature = iota
	FeatArena
	FeatRefcount
	FeatDefines
	FeatCount
)

type Warning int

const (
	WarnFloatFormat Warning = iota
	WarnUnreachableCode
	WarnUnusedVariable
	WarnVerbatimC
	WarnArenaCapacity
	WarnExtra
	WarnCount
)

type Info struct {
	Name        string
	Enabled     bool
	Description string
}

// Target describes one platform profile. Macro is the identifier defined at
// the top of the emitted translation unit; every hardware target additionally
// defines TARGETS_HARDWARE.
type Target struct {
	Name        string
	Macro       string
	Hardware    bool
	Description string
}

var targets = []Target{
	{"pc", "TARGET_PC", false, "Desktop simulation profile (hosted C, recoverable allocation failure)."},
	{"stm32f4", "TARGET_STM32F4", true, "STM32F4 series (ARM Cortex-M4)."},
	{"esp32", "TARGET_ESP32", true, "ESP32 (Xtensa LX6)."},
	{"rp2040", "TARGET_RP2040", true, "RP2040 (ARM Cortex-M0+)."},
}

// HardwareMacro is defined for every target except the desktop simulation.
const HardwareMacro = "TARGETS_HARDWARE"

// DefaultArenaSize matches the runtime's default arena capacity in bytes.
const DefaultArenaSize = 16384

type Config struct {
	Features   map[Feature]Info
	Warnings   map[Warning]Info
	FeatureMap map[string]Feature
	WarningMap map[string]Warning

	// Pass-through command surface configuration.
	Input  string
	Source string // original source the front-end document was built from
	Output string

	Target    Target
	ArenaSize int
}

func NewConfig() *Config {
	cfg := &Config{
		Features:   make(map[Feature]Info),
		Warnings:   make(map[Warning]Info),
		FeatureMap: make(map[string]Feature),
		WarningMap: make(map[string]Warning),
		ArenaSize:  DefaultArenaSize,
	}

	features := map[Feature]Info{
		FeatVerbatimC: {"verbatim-c", true, "Allow embedded verbatim C bodies to replace translated bodies."},
		FeatArena:     {"arena", true, "Allow scoped arena allocation regions."},
		FeatRefcount:  {"refcount", true, "Allow reference-counted heap allocation for escaping values."},
		FeatDefines:   {"defines", true, "Emit flagged module constants as preprocessor definitions."},
	}

	warnings := map[Warning]Info{
		WarnFloatFormat:     {"float-format", true, "Warn when a non-integer print argument is formatted with the integer directive."},
		WarnUnreachableCode: {"unreachable-code", true, "Warn about statements that can never execute."},
		WarnUnusedVariable:  {"unused-variable", false, "Warn about declared variables that are never read."},
		WarnVerbatimC:       {"verbatim-c", false, "Warn whenever an untranslated C fragment is spliced into the output."},
		WarnArenaCapacity:   {"arena-capacity", true, "Warn when a region's fixed-size allocations exceed the configured arena capacity."},
		WarnExtra:           {"extra", true, "Enable extra miscellaneous warnings."},
	}

	cfg.Features, cfg.Warnings = features, warnings
	for ft, info := range features {
		cfg.FeatureMap[info.Name] = ft
	}
	for wt, info := range warnings {
		cfg.WarningMap[info.Name] = wt
	}

	return cfg
}

// Targets returns the accepted target profiles, simulation first.
func Targets() []Target {
	out := make([]Target, len(targets))
	copy(out, targets)
	return out
}

// LookupTarget resolves a target identifier string. Unknown identifiers are
// rejected before any code is generated.
func LookupTarget(name string) (Target, error) {
	for _, t := range targets {
		if t.Name == name {
			return t, nil
		}
	}
	known := make([]string, 0, len(targets))
	for _, t := range targets {
		known = append(known, t.Name)
	}
	sort.Strings(known)
	return Target{}, fmt.Errorf("unknown target '%s' (accepted: %v)", name, known)
}

// SetTarget resolves and stores the target profile for this compilation.
func (c *Config) SetTarget(name string) error {
	t, err := LookupTarget(name)
	if err != nil {
		return err
	}
	c.Target = t
	return nil
}

func (c *Config) SetFeature(ft Feature, enabled bool) {
	if info, ok := c.Features[ft]; ok {
		info.Enabled = enabled
		c.Features[ft] = info
	}
}

func (c *Config) IsFeatureEnabled(ft Feature) bool { return c.Features[ft].Enabled }

func (c *Config) SetWarning(wt Warning, enabled bool) {
	if info, ok := c.Warnings[wt]; ok {
		info.Enabled = enabled
		c.Warnings[wt] = info
	}
}

func (c *Config) IsWarningEnabled(wt Warning) bool { return c.Warnings[wt].Enabled }

// SetupFlagGroups registers -W<warning>/-Wno-<warning> and
// -F<feature>/-Fno-<feature> flag groups and returns the entry slices in
// enum order so the driver can apply overrides after parsing.
func (c *Config) SetupFlagGroups(fs *cli.FlagSet) (warningFlags, featureFlags []cli.FlagGroupEntry) {
	warningFlags = make([]cli.FlagGroupEntry, WarnCount)
	for i := Warning(0); i < WarnCount; i++ {
		info := c.Warnings[i]
		warningFlags[i] = cli.FlagGroupEntry{
			Name:     info.Name,
			Prefix:   "W",
			Usage:    info.Description,
			Enabled:  new(bool),
			Disabled: new(bool),
		}
	}
	fs.AddFlagGroup("Warnings", "Diagnostics that do not stop compilation.", "warning", "Available warnings", warningFlags)

	featureFlags = make([]cli.FlagGroupEntry, FeatCount)
	for i := Feature(0); i < FeatCount; i++ {
		info := c.Features[i]
		featureFlags[i] = cli.FlagGroupEntry{
			Name:     info.Name,
			Prefix:   "F",
			Usage:    info.Description,
			Enabled:  new(bool),
			Disabled: new(bool),
		}
	}
	fs.AddFlagGroup("Features", "Language features that can be toggled per build.", "feature", "Available features", featureFlags)

	return warningFlags, featureFlags
}
