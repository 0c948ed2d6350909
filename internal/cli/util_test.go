package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kscope-dev/kscope/internal/config"
)

func TestLoadIgnoreRules(t *testing.T) {
	root := t.TempDir()
	content := `# build output
target/
*.o

.kscope/
`
	require.NoError(t, os.WriteFile(filepath.Join(root, ".kscopeignore"), []byte(content), 0o644))

	rules, err := loadIgnoreRules(root)
	require.NoError(t, err)
	assert.Equal(t, []string{"target/", "*.o", ".kscope/"}, rules)
}

func TestLoadIgnoreRulesMissingFile(t *testing.T) {
	rules, err := loadIgnoreRules(t.TempDir())
	require.NoError(t, err)
	assert.Nil(t, rules)
}

func TestBuildLogger(t *testing.T) {
	log, err := buildLogger(config.LoggingConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, log)

	log, err = buildLogger(config.LoggingConfig{Level: "warn", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, log)

	_, err = buildLogger(config.LoggingConfig{Level: "chatty", Format: "console"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}

func TestNewRootCommandWiresSubcommands(t *testing.T) {
	root := NewRootCommand("1.2.3")

	expected := []string{"analyze", "graph", "hotspots", "dataflow", "search", "callers", "callees", "update", "version"}
	names := make(map[string]bool)
	for _, cmd := range root.Commands() {
		names[cmd.Name()] = true
	}
	for _, name := range expected {
		assert.True(t, names[name], "missing subcommand %s", name)
	}

	assert.NotNil(t, root.PersistentFlags().Lookup("root"))
	assert.NotNil(t, root.PersistentFlags().Lookup("config"))
}
