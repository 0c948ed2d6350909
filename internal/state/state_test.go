package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kscope-dev/kscope/internal/extract"
	"github.com/kscope-dev/kscope/internal/model"
)

func TestChangedAndDeletedFiles(t *testing.T) {
	s := NewState()
	s.SetFile("boot.s", FileState{Hash: "a1", Dialect: "assembly"})
	s.SetFile("kernel.rs", FileState{Hash: "b1", Dialect: "rust"})
	s.SetFile("vga.c", FileState{Hash: "c1", Dialect: "c"})

	changed := s.ChangedFiles(map[string]string{
		"boot.s":    "a1",
		"kernel.rs": "b2",
		"sched.rs":  "d1",
	})
	assert.Equal(t, []string{"kernel.rs", "sched.rs"}, changed)

	deleted := s.DeletedFiles(map[string]string{
		"boot.s":    "a1",
		"kernel.rs": "b2",
		"sched.rs":  "d1",
	})
	assert.Equal(t, []string{"vga.c"}, deleted)
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()

	facts := &extract.FileFacts{
		Path:    "kernel.rs",
		Dialect: "rust",
		Analysis: model.CodeAnalysis{
			Functions: []model.FunctionInfo{{Name: "kmain", StartLine: 1, EndLine: 4, Complexity: 2}},
		},
	}
	s := NewState()
	s.SetFile("kernel.rs", FileState{
		Hash:    "deadbeef00000000",
		Dialect: "rust",
		Facts:   facts,
		Hotspots: []model.PerformanceHotspot{{
			Location:    model.CodeLocation{FilePath: "kernel.rs", Line: 2},
			HotspotType: model.HotspotLoop,
			Severity:    model.SeverityMedium,
		}},
	})
	require.NoError(t, s.Save(dir))

	loaded, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, CurrentStateVersion, loaded.Version)

	hash, ok := loaded.GetFileHash("kernel.rs")
	require.True(t, ok)
	assert.Equal(t, "deadbeef00000000", hash)
	assert.False(t, loaded.HasChanged("kernel.rs", "deadbeef00000000"))
	assert.True(t, loaded.HasChanged("kernel.rs", "deadbeef00000001"))

	fs := loaded.Files["kernel.rs"]
	require.NotNil(t, fs.Facts)
	assert.Equal(t, facts.Analysis.Functions, fs.Facts.Analysis.Functions)
	require.Len(t, fs.Hotspots, 1)
	assert.Equal(t, model.HotspotLoop, fs.Hotspots[0].HotspotType)
}

func TestLoadMissingStateIsEmpty(t *testing.T) {
	loaded, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, loaded.Files)
}
