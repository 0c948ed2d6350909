package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kscope.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 0, cfg.Analysis.Workers)
	assert.Equal(t, ".kscope", cfg.Analysis.StateDir)
	assert.Contains(t, cfg.Analysis.SystemCalls, "kmalloc")
	assert.Contains(t, cfg.Analysis.SystemCalls, "outb")

	assert.Equal(t, 10, cfg.Linker.MediumComplexity)
	assert.Equal(t, 20, cfg.Linker.HighComplexity)
	assert.Equal(t, 10, cfg.Linker.HighCallVolume)
	assert.Contains(t, cfg.Linker.EntryPointPatterns, "^kmain$")

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)

	require.NoError(t, cfg.Validate())
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `
analysis:
  workers: 4
  state_dir: .cache/kscope
linker:
  high_call_volume: 50
logging:
  level: debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Analysis.Workers)
	assert.Equal(t, ".cache/kscope", cfg.Analysis.StateDir)
	assert.Equal(t, 50, cfg.Linker.HighCallVolume)
	assert.Equal(t, "debug", cfg.Logging.Level)

	// Untouched sections keep their defaults.
	assert.Equal(t, 20, cfg.Linker.HighComplexity)
	assert.Contains(t, cfg.Analysis.SystemCalls, "schedule")
}

func TestLoadRejectsInvalidEntryPointPattern(t *testing.T) {
	path := writeConfig(t, `
linker:
  entry_point_patterns: ["^main$", "[unclosed"]
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid entry_point_pattern")
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := writeConfig(t, "analysis: [not a mapping\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config")
}

func TestValidateRejectsInvertedComplexityBands(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Linker.MediumComplexity = 30
	cfg.Linker.HighComplexity = 20

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds high_complexity")
}

func TestCompileEntryPointPatterns(t *testing.T) {
	cfg := DefaultConfig()
	patterns, err := cfg.CompileEntryPointPatterns()
	require.NoError(t, err)
	require.Len(t, patterns, len(cfg.Linker.EntryPointPatterns))

	matched := func(name string) bool {
		for _, p := range patterns {
			if p.MatchString(name) {
				return true
			}
		}
		return false
	}
	assert.True(t, matched("kmain"))
	assert.True(t, matched("init_paging"))
	assert.True(t, matched("task_idle"))
	assert.False(t, matched("helper"))
}

func TestSystemCallTable(t *testing.T) {
	table := DefaultConfig().SystemCallTable()
	assert.True(t, table["context_switch"])
	assert.True(t, table["hlt"])
	assert.False(t, table["printf"])
}
