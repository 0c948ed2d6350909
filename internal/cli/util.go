package cli

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/kscope-dev/kscope/internal/config"
	"github.com/kscope-dev/kscope/internal/engine"
)

// setup resolves the root and config flags into a ready engine plus the
// ignore rules the corpus walk should honor.
func setup(cmd *cobra.Command) (*engine.Engine, *config.Config, []string, error) {
	root, err := cmd.Flags().GetString("root")
	if err != nil {
		return nil, nil, nil, err
	}
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, nil, nil, err
	}

	cfg, err := config.Load(filepath.Join(root, configPath))
	if err != nil {
		return nil, nil, nil, err
	}

	log, err := buildLogger(cfg.Logging)
	if err != nil {
		return nil, nil, nil, err
	}

	eng, err := engine.New(root, cfg, log)
	if err != nil {
		return nil, nil, nil, err
	}

	rules, err := loadIgnoreRules(root)
	if err != nil {
		return nil, nil, nil, err
	}
	return eng, cfg, rules, nil
}

func buildLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	zcfg := zap.NewProductionConfig()
	if cfg.Format != "json" {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	// Keep stdout clean for JSON results.
	zcfg.OutputPaths = []string{"stderr"}
	return zcfg.Build()
}

func loadIgnoreRules(rootPath string) ([]string, error) {
	ignorePath := filepath.Join(rootPath, ".kscopeignore")
	f, err := os.Open(ignorePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read .kscopeignore: %w", err)
	}
	defer f.Close()

	rules := make([]string, 0)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		rules = append(rules, line)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to parse .kscopeignore: %w", err)
	}

	return rules, nil
}
