package fileutil

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
)

// PrintJSON writes a result to stdout as indented JSON. Every kscope command
// emits its payload through here so the output contract stays uniform.
func PrintJSON(value any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}

// WriteIfChanged rewrites path only when data differs, keeping mtimes stable
// for downstream tooling.
func WriteIfChanged(path string, data []byte) error {
	existing, err := os.ReadFile(path)
	if err == nil && bytes.Equal(existing, data) {
		return nil
	}
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// SortedKeys returns a map's keys in stable order.
func SortedKeys[V any](values map[string]V) []string {
	out := make([]string, 0, len(values))
	for key := range values {
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}
