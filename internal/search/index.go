// Package search builds a BM25 index over the extracted symbol inventory so
// learners can find functions, variables, and types by loose queries.
package search

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/kscope-dev/kscope/internal/extract"
	"github.com/kscope-dev/kscope/internal/fileutil"
	"github.com/kscope-dev/kscope/internal/link"
)

const (
	IndexFile = "search-index.json"
	Version   = "symbol-index-v1"
)

var tokenPattern = regexp.MustCompile(`[a-z0-9_]+`)

// Document is one indexed symbol.
type Document struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Kind      string         `json:"kind"` // function, variable, type, import
	Signature string         `json:"signature,omitempty"`
	File      string         `json:"file"`
	Line      int            `json:"line"`
	Doc       string         `json:"doc,omitempty"`
	Length    int            `json:"length"`
	Terms     map[string]int `json:"terms"`
}

// Index is the serialized corpus index.
type Index struct {
	Version       string         `json:"version"`
	DocumentCount int            `json:"document_count"`
	AvgDocLength  float64        `json:"avg_doc_length"`
	DocFreq       map[string]int `json:"doc_freq"`
	Documents     []Document     `json:"documents"`
}

// Result is one scored hit.
type Result struct {
	ID    string
	Score float64
}

// Build indexes every symbol in the given per-file facts. Facts are visited
// in path order so index output is stable for unchanged input.
func Build(facts []*extract.FileFacts) *Index {
	sorted := append([]*extract.FileFacts(nil), facts...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })

	documents := make([]Document, 0)
	docFreq := make(map[string]int)
	totalLength := 0

	add := func(doc Document) {
		length := 0
		for _, count := range doc.Terms {
			length += count
		}
		if length == 0 {
			return
		}
		doc.Length = length
		totalLength += length
		documents = append(documents, doc)
		for term := range doc.Terms {
			docFreq[term]++
		}
	}

	for _, f := range sorted {
		for _, fn := range f.Analysis.Functions {
			add(Document{
				ID:        link.NodeID(f.Path, fn.Name),
				Name:      fn.Name,
				Kind:      "function",
				Signature: fn.Signature,
				File:      f.Path,
				Line:      fn.StartLine,
				Doc:       fn.EducationalDescription,
				Terms:     buildTerms(fn.Name, fn.Signature, f.Path, fn.EducationalDescription),
			})
		}
		for _, v := range f.Analysis.Variables {
			add(Document{
				ID:        fmt.Sprintf("%s::%s@%d", f.Path, v.Name, v.Line),
				Name:      v.Name,
				Kind:      "variable",
				Signature: v.VarType,
				File:      f.Path,
				Line:      v.Line,
				Terms:     buildTerms(v.Name, v.VarType, f.Path, ""),
			})
		}
		for _, typ := range f.Analysis.Types {
			add(Document{
				ID:        fmt.Sprintf("%s::type:%s", f.Path, typ.Name),
				Name:      typ.Name,
				Kind:      "type",
				Signature: typ.Definition,
				File:      f.Path,
				Line:      typ.Line,
				Terms:     buildTerms(typ.Name, typ.Definition, f.Path, ""),
			})
		}
	}

	sort.Slice(documents, func(i, j int) bool { return documents[i].ID < documents[j].ID })

	avgDocLength := 0.0
	if len(documents) > 0 {
		avgDocLength = float64(totalLength) / float64(len(documents))
	}

	return &Index{
		Version:       Version,
		DocumentCount: len(documents),
		AvgDocLength:  avgDocLength,
		DocFreq:       docFreq,
		Documents:     documents,
	}
}

// Write serializes the index into stateDir.
func Write(stateDir string, index *Index) error {
	data, err := json.MarshalIndent(index, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode search index: %w", err)
	}
	data = append(data, '\n')
	return fileutil.WriteIfChanged(filepath.Join(stateDir, IndexFile), data)
}

// Load reads a previously written index.
func Load(stateDir string) (*Index, error) {
	path := filepath.Join(stateDir, IndexFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("search index missing at %s (run kscope update)", path)
		}
		return nil, fmt.Errorf("failed to read search index: %w", err)
	}

	var index Index
	if err := json.Unmarshal(data, &index); err != nil {
		return nil, fmt.Errorf("failed to decode search index: %w", err)
	}
	if index.DocFreq == nil {
		index.DocFreq = map[string]int{}
	}
	return &index, nil
}

// Search scores the index against a free-form query with BM25 and falls back
// to fuzzy name matching when nothing scores.
func Search(index *Index, query string, limit int) []Result {
	if index == nil || len(index.Documents) == 0 {
		return nil
	}
	if limit <= 0 {
		limit = 10
	}

	uniqueTerms := dedupe(tokenize(query))
	if len(uniqueTerms) == 0 {
		return nil
	}

	const (
		k1 = 1.2
		b  = 0.75
	)
	n := float64(index.DocumentCount)
	avgLen := index.AvgDocLength
	if avgLen <= 0 {
		avgLen = 1
	}

	results := make([]Result, 0)
	for _, doc := range index.Documents {
		score := 0.0
		docLen := float64(doc.Length)
		for _, term := range uniqueTerms {
			tf := float64(doc.Terms[term])
			if tf <= 0 {
				continue
			}
			df := float64(index.DocFreq[term])
			if df <= 0 {
				continue
			}
			idf := math.Log(1.0 + ((n - df + 0.5) / (df + 0.5)))
			score += idf * (tf * (k1 + 1.0)) / (tf + k1*(1.0-b+b*(docLen/avgLen)))
		}
		if score > 0 {
			results = append(results, Result{ID: doc.ID, Score: score})
		}
	}

	sortResults(results)
	if len(results) > limit {
		results = results[:limit]
	}
	if len(results) == 0 {
		return fuzzyNameFallback(index.Documents, query, limit)
	}
	return results
}

// FindDocument resolves a result id back to its document.
func (idx *Index) FindDocument(id string) (Document, bool) {
	for _, doc := range idx.Documents {
		if doc.ID == id {
			return doc, true
		}
	}
	return Document{}, false
}

func buildTerms(name, signature, filePath, doc string) map[string]int {
	terms := make(map[string]int)
	addWeighted(terms, name, 4)
	addWeighted(terms, signature, 2)
	addWeighted(terms, filePath, 2)
	addWeighted(terms, doc, 1)
	return terms
}

func addWeighted(terms map[string]int, value string, weight int) {
	for _, token := range tokenize(value) {
		terms[token] += weight
	}
}

func tokenize(value string) []string {
	value = strings.ToLower(value)
	if value == "" {
		return nil
	}
	return tokenPattern.FindAllString(value, -1)
}

func dedupe(terms []string) []string {
	seen := make(map[string]bool, len(terms))
	out := make([]string, 0, len(terms))
	for _, term := range terms {
		if seen[term] {
			continue
		}
		seen[term] = true
		out = append(out, term)
	}
	return out
}

func sortResults(results []Result) {
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})
}

func fuzzyNameFallback(documents []Document, query string, limit int) []Result {
	needle := normalizeForFuzzy(query)
	if needle == "" {
		return nil
	}

	results := make([]Result, 0)
	for _, doc := range documents {
		candidate := normalizeForFuzzy(doc.Name)
		if candidate == "" {
			continue
		}
		distance := levenshtein(needle, candidate)
		threshold := len(candidate) / 3
		if threshold < 2 {
			threshold = 2
		}
		if distance > threshold {
			continue
		}
		results = append(results, Result{ID: doc.ID, Score: 1.0 / float64(1+distance)})
	}

	sortResults(results)
	if len(results) > limit {
		results = results[:limit]
	}
	return results
}

func normalizeForFuzzy(value string) string {
	return strings.Join(tokenize(value), "")
}

func levenshtein(a, b string) int {
	if a == b {
		return 0
	}
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	for j := 0; j <= len(b); j++ {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		current := make([]int, len(b)+1)
		current[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 0
			if a[i-1] != b[j-1] {
				cost = 1
			}
			current[j] = min(current[j-1]+1, min(prev[j]+1, prev[j-1]+cost))
		}
		prev = current
	}

	return prev[len(b)]
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
