// Package state persists per-file content hashes and analysis facts between
// runs so the analyzer can skip Stage 1 for files that did not change.
package state

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/kscope-dev/kscope/internal/extract"
	"github.com/kscope-dev/kscope/internal/model"
)

const (
	StateFile           = "state.json"
	CurrentStateVersion = "1"
)

// FileState tracks one analyzed file. Facts and hotspots are the file's full
// Stage 1 output; a cold process start serves unchanged files from here
// instead of re-analyzing them.
type FileState struct {
	Hash      string                     `json:"hash"`
	Dialect   string                     `json:"dialect,omitempty"`
	UpdatedAt time.Time                  `json:"updated_at"`
	Facts     *extract.FileFacts         `json:"facts,omitempty"`
	Hotspots  []model.PerformanceHotspot `json:"hotspots,omitempty"`
}

// State tracks all analyzed files for incremental updates. Full analysis
// results are not persisted; they are recomputed from content when a hash no
// longer matches.
type State struct {
	Version   string               `json:"version"`
	UpdatedAt time.Time            `json:"updated_at"`
	Files     map[string]FileState `json:"files"`
}

// NewState creates a new empty state.
func NewState() *State {
	return &State{
		Version: CurrentStateVersion,
		Files:   make(map[string]FileState),
	}
}

// Load reads state from stateDir. A missing file yields a fresh state.
func Load(stateDir string) (*State, error) {
	data, err := os.ReadFile(filepath.Join(stateDir, StateFile))
	if err != nil {
		if os.IsNotExist(err) {
			return NewState(), nil
		}
		return nil, err
	}

	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, err
	}
	if st.Files == nil {
		st.Files = make(map[string]FileState)
	}
	if st.Version == "" {
		st.Version = CurrentStateVersion
	}
	return &st, nil
}

// Save writes state to stateDir, creating the directory if needed.
func (s *State) Save(stateDir string) error {
	if s.Files == nil {
		s.Files = make(map[string]FileState)
	}
	if s.Version == "" {
		s.Version = CurrentStateVersion
	}
	s.UpdatedAt = time.Now()

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(stateDir, StateFile), data, 0644)
}

// SetFile records a file's analysis state, stamping the update time.
func (s *State) SetFile(file string, fs FileState) {
	fs.UpdatedAt = time.Now()
	s.Files[file] = fs
}

// GetFileHash returns the stored hash for a file.
func (s *State) GetFileHash(file string) (string, bool) {
	fs, ok := s.Files[file]
	if !ok {
		return "", false
	}
	return fs.Hash, true
}

// HasChanged reports whether the file's current hash differs from the stored
// one. Unknown files always count as changed.
func (s *State) HasChanged(file, currentHash string) bool {
	storedHash, ok := s.GetFileHash(file)
	if !ok {
		return true
	}
	return storedHash != currentHash
}

// RemoveFile drops a file from state tracking.
func (s *State) RemoveFile(file string) {
	delete(s.Files, file)
}

// ChangedFiles returns files whose current hashes differ from the stored
// ones, sorted by path.
func (s *State) ChangedFiles(currentHashes map[string]string) []string {
	changed := make([]string, 0)
	for file, hash := range currentHashes {
		if s.HasChanged(file, hash) {
			changed = append(changed, file)
		}
	}
	sort.Strings(changed)
	return changed
}

// DeletedFiles returns tracked files that no longer exist, sorted by path.
func (s *State) DeletedFiles(currentFiles map[string]string) []string {
	deleted := make([]string, 0)
	for file := range s.Files {
		if _, ok := currentFiles[file]; !ok {
			deleted = append(deleted, file)
		}
	}
	sort.Strings(deleted)
	return deleted
}
