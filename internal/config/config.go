// Package config loads the analyzer configuration. Every knob has a working
// default so a missing config file is never an error.
package config

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Config holds all kscope configuration.
type Config struct {
	// Analysis settings
	Analysis AnalysisConfig `yaml:"analysis"`

	// Linker settings
	Linker LinkerConfig `yaml:"linker"`

	// Hotspot classifier settings
	Hotspots HotspotConfig `yaml:"hotspots"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// AnalysisConfig configures Stage 1 (per-file) analysis.
type AnalysisConfig struct {
	// Workers caps concurrent file analyses; 0 means one per CPU.
	Workers int `yaml:"workers"`

	// SystemCalls is the kernel-primitive name table. Calls to these names
	// classify as system_call.
	SystemCalls []string `yaml:"system_calls"`

	// DialectOverrides maps file extensions (with dot) to dialect names,
	// taking precedence over the built-in extension table.
	DialectOverrides map[string]string `yaml:"dialect_overrides"`

	// StateDir is where the analyzer persists per-file hashes between runs.
	StateDir string `yaml:"state_dir"`
}

// LinkerConfig configures the global call graph linker.
type LinkerConfig struct {
	// EntryPointPatterns are anchored regular expressions; a never-called
	// function whose name matches any of them is marked as an entry point.
	EntryPointPatterns []string `yaml:"entry_point_patterns"`

	// Complexity bands for node performance_impact.
	MediumComplexity int `yaml:"medium_complexity"`
	HighComplexity   int `yaml:"high_complexity"`

	// HighCallVolume is the outgoing call count above which a node rates
	// high impact.
	HighCallVolume int `yaml:"high_call_volume"`
}

// HotspotConfig configures the rule-table classifier.
type HotspotConfig struct {
	// Disabled lists hotspot types whose rules never fire.
	Disabled []string `yaml:"disabled"`

	MediumComplexity int `yaml:"medium_complexity"`
	HighComplexity   int `yaml:"high_complexity"`
}

// LoggingConfig configures structured logging output.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *Config {
	return &Config{
		Analysis: AnalysisConfig{
			Workers: 0,
			SystemCalls: []string{
				"syscall", "system_call", "sys_call", "do_syscall",
				"register_interrupt_handler", "register_irq", "send_eoi",
				"schedule", "sched_yield", "context_switch", "switch_to",
				"kmalloc", "kfree", "vmalloc", "map_page", "unmap_page",
				"outb", "inb", "outw", "inw", "cli", "sti", "hlt",
				"panic", "kernel_panic",
			},
			DialectOverrides: map[string]string{},
			StateDir:         ".kscope",
		},
		Linker: LinkerConfig{
			EntryPointPatterns: []string{
				"^main$", "^kmain$", "^_start$", "_init$", "^init_",
				"_main$", "^task_", "^process_",
			},
			MediumComplexity: 10,
			HighComplexity:   20,
			HighCallVolume:   10,
		},
		Hotspots: HotspotConfig{
			Disabled:         nil,
			MediumComplexity: 10,
			HighComplexity:   20,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads a YAML config file, layering it over the defaults. A missing
// file returns the defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the parts of the config that fail late and confusingly if
// left bad, chiefly the entry point patterns.
func (c *Config) Validate() error {
	if _, err := c.CompileEntryPointPatterns(); err != nil {
		return err
	}
	if c.Linker.MediumComplexity > c.Linker.HighComplexity && c.Linker.HighComplexity > 0 {
		return fmt.Errorf("linker medium_complexity %d exceeds high_complexity %d",
			c.Linker.MediumComplexity, c.Linker.HighComplexity)
	}
	return nil
}

// CompileEntryPointPatterns compiles the linker entry point patterns.
func (c *Config) CompileEntryPointPatterns() ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(c.Linker.EntryPointPatterns))
	for _, pattern := range c.Linker.EntryPointPatterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid entry_point_pattern %q: %w", pattern, err)
		}
		out = append(out, re)
	}
	return out, nil
}

// SystemCallTable returns the kernel-primitive names as a lookup set.
func (c *Config) SystemCallTable() map[string]bool {
	table := make(map[string]bool, len(c.Analysis.SystemCalls))
	for _, name := range c.Analysis.SystemCalls {
		table[name] = true
	}
	return table
}
