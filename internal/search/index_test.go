package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kscope-dev/kscope/internal/extract"
	"github.com/kscope-dev/kscope/internal/link"
)

func buildTestIndex(t *testing.T) *Index {
	t.Helper()
	facts := []*extract.FileFacts{
		extract.File("kernel/sched.rs", `struct TaskQueue {
    head: usize,
}

fn schedule() {
    let quantum = 10;
    pick_next(quantum);
}
`, "", extract.Options{}),
		extract.File("kernel/main.rs", `fn kmain() {
    schedule();
}
`, "", extract.Options{}),
	}
	return Build(facts)
}

func TestBuildIndexesSymbols(t *testing.T) {
	index := buildTestIndex(t)

	assert.Equal(t, Version, index.Version)
	assert.Equal(t, len(index.Documents), index.DocumentCount)

	kinds := make(map[string]int)
	ids := make(map[string]bool)
	for _, doc := range index.Documents {
		kinds[doc.Kind]++
		ids[doc.ID] = true
	}
	assert.Equal(t, 2, kinds["function"])
	assert.Equal(t, 1, kinds["variable"])
	assert.Equal(t, 1, kinds["type"])

	assert.True(t, ids[link.NodeID("kernel/sched.rs", "schedule")])
	assert.True(t, ids["kernel/sched.rs::quantum@6"])
	assert.True(t, ids["kernel/sched.rs::type:TaskQueue"])
}

func TestBuildIsStableAcrossInputOrder(t *testing.T) {
	a := extract.File("a.rs", "fn alpha() {}\n", "", extract.Options{})
	b := extract.File("b.rs", "fn beta() {}\n", "", extract.Options{})

	forward := Build([]*extract.FileFacts{a, b})
	reversed := Build([]*extract.FileFacts{b, a})
	assert.Equal(t, forward, reversed)
}

func TestSearchRanksExactNameFirst(t *testing.T) {
	index := buildTestIndex(t)

	results := Search(index, "schedule", 5)
	require.NotEmpty(t, results)
	assert.Equal(t, link.NodeID("kernel/sched.rs", "schedule"), results[0].ID)

	doc, ok := index.FindDocument(results[0].ID)
	require.True(t, ok)
	assert.Equal(t, "function", doc.Kind)
	assert.Equal(t, "kernel/sched.rs", doc.File)
}

func TestSearchFuzzyFallbackOnTypo(t *testing.T) {
	index := buildTestIndex(t)

	// "schedle" matches no term, so the levenshtein fallback kicks in.
	results := Search(index, "schedle", 5)
	require.NotEmpty(t, results)
	assert.Equal(t, link.NodeID("kernel/sched.rs", "schedule"), results[0].ID)
}

func TestSearchHonorsLimit(t *testing.T) {
	index := buildTestIndex(t)

	results := Search(index, "kernel", 1)
	assert.Len(t, results, 1)
}

func TestSearchEmptyQuery(t *testing.T) {
	index := buildTestIndex(t)
	assert.Nil(t, Search(index, "  ", 5))
	assert.Nil(t, Search(nil, "schedule", 5))
}

func TestWriteAndLoadRoundTrip(t *testing.T) {
	index := buildTestIndex(t)
	dir := t.TempDir()

	require.NoError(t, Write(dir, index))

	loaded, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, index.Version, loaded.Version)
	assert.Equal(t, index.DocumentCount, loaded.DocumentCount)
	assert.Equal(t, index.Documents, loaded.Documents)
	assert.Equal(t, index.DocFreq, loaded.DocFreq)
}

func TestLoadMissingIndexFails(t *testing.T) {
	_, err := Load(t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "search index missing")
}
