package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml"
)

// tomlManifest represents a build manifest as it is encoded in TOML. The
// manifest is the pass-through command surface: it selects the front-end
// document, the target profile and the output destination.
type tomlManifest struct {
	Build *tomlBuild `toml:"build"`
}

type tomlBuild struct {
	Input     string   `toml:"input"`
	Source    string   `toml:"source,omitempty"`
	Target    string   `toml:"target"`
	Output    string   `toml:"output"`
	ArenaSize int      `toml:"arena-size,omitempty"`
	Warnings  []string `toml:"warnings,omitempty"`
	Features  []string `toml:"features,omitempty"`
}

// ApplyManifest reads a TOML build manifest and applies it to the
// configuration. Explicit command-line flags parsed afterwards still win.
func (c *Config) ApplyManifest(path string) error {
	buff, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read manifest: %w", err)
	}

	tm := &tomlManifest{}
	if err := toml.Unmarshal(buff, tm); err != nil {
		return fmt.Errorf("parse manifest %s: %w", path, err)
	}
	if tm.Build == nil {
		return fmt.Errorf("manifest %s has no [build] table", path)
	}

	if tm.Build.Input != "" {
		c.Input = tm.Build.Input
	}
	if tm.Build.Source != "" {
		c.Source = tm.Build.Source
	}
	if tm.Build.Output != "" {
		c.Output = tm.Build.Output
	}
	if tm.Build.Target != "" {
		if err := c.SetTarget(tm.Build.Target); err != nil {
			return err
		}
	}
	if tm.Build.ArenaSize > 0 {
		c.ArenaSize = tm.Build.ArenaSize
	}

	for _, name := range tm.Build.Warnings {
		enable := true
		if len(name) > 3 && name[:3] == "no-" {
			enable, name = false, name[3:]
		}
		wt, ok := c.WarningMap[name]
		if !ok {
			return fmt.Errorf("manifest %s: unknown warning '%s'", path, name)
		}
		c.SetWarning(wt, enable)
	}
	for _, name := range tm.Build.Features {
		enable := true
		if len(name) > 3 && name[:3] == "no-" {
			enable, name = false, name[3:]
		}
		ft, ok := c.FeatureMap[name]
		if !ok {
			return fmt.Errorf("manifest %s: unknown feature '%s'", path, name)
		}
		c.SetFeature(ft, enable)
	}

	return nil
}
