// Package engine orchestrates the analysis pipeline. Stage 1 (lex, extract,
// analyze, call sites) runs per file with no shared mutable state and may run
// concurrently. Stage 2 (link, hotspot aggregation) starts only after every
// file in the batch has finished Stage 1; a partial batch never produces a
// global graph. Queries are served from published state and are idempotent
// for unchanged input.
package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kscope-dev/kscope/internal/config"
	"github.com/kscope-dev/kscope/internal/extract"
	"github.com/kscope-dev/kscope/internal/fileutil"
	"github.com/kscope-dev/kscope/internal/hotspot"
	"github.com/kscope-dev/kscope/internal/lexer"
	"github.com/kscope-dev/kscope/internal/link"
	"github.com/kscope-dev/kscope/internal/model"
	"github.com/kscope-dev/kscope/internal/state"
)

// ErrNoGraph is returned by graph queries before any batch has linked.
var ErrNoGraph = errors.New("no call graph: no analysis batch has completed")

// fileRecord is the published per-file result. Records are replaced
// wholesale, never mutated in place.
type fileRecord struct {
	hash     string
	dialect  string
	failed   bool
	facts    *extract.FileFacts
	hotspots []model.PerformanceHotspot
	issues   []model.Issue
}

// Engine owns the analysis state for one corpus root.
type Engine struct {
	root string
	cfg  *config.Config
	log  *zap.Logger

	extractOpts extract.Options
	linkOpts    link.Options
	hotspotOpts hotspot.Options

	mu          sync.RWMutex
	files       map[string]*fileRecord // rel path -> published record
	cache       map[string]*fileRecord // content hash -> record, survives path moves
	graph       *model.CallGraph       // last-known-good
	graphIssues []model.Issue
}

// New builds an engine for the corpus rooted at root. A nil logger disables
// logging.
func New(root string, cfg *config.Config, log *zap.Logger) (*Engine, error) {
	if log == nil {
		log = zap.NewNop()
	}
	patterns, err := cfg.CompileEntryPointPatterns()
	if err != nil {
		return nil, err
	}

	disabled := make(map[model.HotspotType]bool, len(cfg.Hotspots.Disabled))
	for _, name := range cfg.Hotspots.Disabled {
		disabled[model.HotspotType(name)] = true
	}

	return &Engine{
		root: root,
		cfg:  cfg,
		log:  log,
		extractOpts: extract.Options{
			SystemCalls: cfg.SystemCallTable(),
		},
		linkOpts: link.Options{
			EntryPointPatterns: patterns,
			MediumComplexity:   cfg.Linker.MediumComplexity,
			HighComplexity:     cfg.Linker.HighComplexity,
			HighCallVolume:     cfg.Linker.HighCallVolume,
		},
		hotspotOpts: hotspot.Options{
			MediumComplexity: cfg.Hotspots.MediumComplexity,
			HighComplexity:   cfg.Hotspots.HighComplexity,
			Disabled:         disabled,
		},
		files: make(map[string]*fileRecord),
		cache: make(map[string]*fileRecord),
	}, nil
}

func (e *Engine) workers() int {
	if n := e.cfg.Analysis.Workers; n > 0 {
		return n
	}
	return runtime.NumCPU()
}

// dialectHint applies configured extension overrides; an empty hint lets the
// lexer pick by extension.
func (e *Engine) dialectHint(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	return e.cfg.Analysis.DialectOverrides[ext]
}

// AnalyzeCorpus scans the corpus root, runs the full pipeline over every
// analyzable file, and persists the resulting file hashes.
func (e *Engine) AnalyzeCorpus(ctx context.Context, ignoreRules []string) error {
	hashes, err := fileutil.ScanFileHashes(e.root, e.analyzable, ignoreRules)
	if err != nil {
		return fmt.Errorf("corpus scan failed: %w", err)
	}

	paths := fileutil.SortedKeys(hashes)
	e.log.Info("analyzing corpus", zap.String("root", e.root), zap.Int("files", len(paths)))
	if err := e.runBatch(ctx, paths, nil); err != nil {
		return err
	}
	return e.saveState()
}

// Update re-analyzes only files whose content hash changed since the last
// persisted state, drops deleted files, and re-links the whole graph.
func (e *Engine) Update(ctx context.Context, ignoreRules []string) (changed, deleted []string, err error) {
	st, err := state.Load(filepath.Join(e.root, e.cfg.Analysis.StateDir))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load state: %w", err)
	}

	hashes, err := fileutil.ScanFileHashes(e.root, e.analyzable, ignoreRules)
	if err != nil {
		return nil, nil, fmt.Errorf("corpus scan failed: %w", err)
	}

	changed = st.ChangedFiles(hashes)
	deleted = st.DeletedFiles(hashes)
	e.log.Info("incremental update",
		zap.Int("changed", len(changed)),
		zap.Int("deleted", len(deleted)))

	// Unchanged files must still contribute facts to the linker. Seeding the
	// cache from persisted state makes them Stage 1 cache hits even on a cold
	// process start, so only the changed files are re-analyzed.
	e.seedCache(st)
	paths := fileutil.SortedKeys(hashes)
	if err := e.runBatch(ctx, paths, deleted); err != nil {
		return changed, deleted, err
	}
	return changed, deleted, e.saveState()
}

// seedCache loads persisted Stage 1 results into the content-hash cache.
// Entries without facts (older state files) are skipped and re-analyzed.
func (e *Engine) seedCache(st *state.State) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for path, fs := range st.Files {
		if fs.Facts == nil || fs.Facts.Path != path {
			continue
		}
		if _, ok := e.cache[fs.Hash]; ok {
			continue
		}
		e.cache[fs.Hash] = &fileRecord{
			hash:     fs.Hash,
			dialect:  fs.Dialect,
			facts:    fs.Facts,
			hotspots: fs.Hotspots,
			issues:   fs.Facts.Issues,
		}
	}
}

func (e *Engine) analyzable(path string) bool {
	if e.dialectHint(path) != "" {
		return true
	}
	return lexer.Known(path)
}

// runBatch is the two-stage pipeline. Stage 1 results stay private to the
// batch until the barrier; cancellation before the barrier publishes
// nothing. Stage 2 runs to completion once entered.
func (e *Engine) runBatch(ctx context.Context, paths []string, deleted []string) error {
	records, err := e.stageOne(ctx, paths)
	if err != nil {
		return err
	}

	// Barrier passed. Publish per-file results, then re-link in full.
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, path := range deleted {
		delete(e.files, path)
	}
	for path, rec := range records {
		e.files[path] = rec
		if !rec.failed {
			e.cache[rec.hash] = rec
		}
	}

	return e.relinkLocked()
}

// stageOne analyzes each path independently. Per-file failures degrade to an
// empty contribution with issues; only cancellation aborts the batch.
func (e *Engine) stageOne(ctx context.Context, paths []string) (map[string]*fileRecord, error) {
	records := make([]*fileRecord, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers())
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			records[i] = e.analyzeOne(path)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		e.log.Warn("batch cancelled before barrier", zap.Error(err))
		return nil, err
	}

	out := make(map[string]*fileRecord, len(paths))
	for i, path := range paths {
		out[path] = records[i]
	}
	return out, nil
}

func (e *Engine) analyzeOne(relPath string) *fileRecord {
	data, err := os.ReadFile(filepath.Join(e.root, relPath))
	if err != nil {
		e.log.Warn("unreadable file", zap.String("path", relPath), zap.Error(err))
		return &fileRecord{
			failed: true,
			issues: []model.Issue{{
				File:     relPath,
				Severity: "error",
				Message:  fmt.Sprintf("failed to read file: %v", err),
			}},
		}
	}

	hash := fileutil.ContentHash(data)
	e.mu.RLock()
	cached, hit := e.cache[hash]
	e.mu.RUnlock()
	if hit && cached.facts != nil && cached.facts.Path == relPath {
		return cached
	}

	facts := extract.File(relPath, string(data), e.dialectHint(relPath), e.extractOpts)
	spots := hotspot.Classify(relPath, string(data), facts, e.hotspotOpts)

	e.log.Debug("analyzed file",
		zap.String("path", relPath),
		zap.String("dialect", facts.Dialect),
		zap.Int("functions", len(facts.Analysis.Functions)),
		zap.Int("hotspots", len(spots)))

	return &fileRecord{
		hash:     hash,
		dialect:  facts.Dialect,
		facts:    facts,
		hotspots: spots,
		issues:   facts.Issues,
	}
}

// relinkLocked rebuilds the global graph from all published facts. A fatal
// link error keeps the previous graph in place.
func (e *Engine) relinkLocked() error {
	facts := make([]*extract.FileFacts, 0, len(e.files))
	for _, rec := range e.files {
		if rec.failed || rec.facts == nil {
			continue
		}
		facts = append(facts, rec.facts)
	}

	graph, issues, err := link.Build(facts, e.linkOpts)
	if err != nil {
		e.log.Error("link failed, keeping previous graph", zap.Error(err))
		return err
	}

	e.graph = graph
	e.graphIssues = issues
	e.log.Info("linked call graph",
		zap.Int("nodes", len(graph.Nodes)),
		zap.Int("edges", len(graph.Edges)),
		zap.Int("entry_points", len(graph.EntryPoints)))
	return nil
}

func (e *Engine) saveState() error {
	e.mu.RLock()
	st := state.NewState()
	for path, rec := range e.files {
		if rec.failed {
			continue
		}
		st.SetFile(path, state.FileState{
			Hash:     rec.hash,
			Dialect:  rec.dialect,
			Facts:    rec.facts,
			Hotspots: rec.hotspots,
		})
	}
	e.mu.RUnlock()
	return st.Save(filepath.Join(e.root, e.cfg.Analysis.StateDir))
}

// Analyze returns the published result envelope for one file. Files that
// failed Stage 1 report status failed with their issues; files outside the
// analyzed set report a failed envelope with a single issue.
func (e *Engine) Analyze(relPath string) *model.FileResult {
	e.mu.RLock()
	defer e.mu.RUnlock()

	rec, ok := e.files[relPath]
	if !ok {
		return &model.FileResult{
			FilePath: relPath,
			Status:   model.StatusFailed,
			Issues: []model.Issue{{
				File:     relPath,
				Severity: "error",
				Message:  "file not analyzed",
			}},
		}
	}
	if rec.failed {
		return &model.FileResult{
			FilePath: relPath,
			Status:   model.StatusFailed,
			Issues:   rec.issues,
		}
	}

	analysis := rec.facts.Analysis
	return &model.FileResult{
		FilePath: relPath,
		Status:   model.StatusOK,
		Issues:   rec.issues,
		Analysis: &analysis,
		DataFlow: rec.facts.DataFlow,
	}
}

// CallGraph returns the last successfully linked graph along with the
// resolution issues it produced.
func (e *Engine) CallGraph() (*model.CallGraph, []model.Issue, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.graph == nil {
		return nil, nil, ErrNoGraph
	}
	return e.graph, e.graphIssues, nil
}

// Hotspots returns hotspots for one file, or for the whole corpus when
// relPath is empty. Results are sorted by severity.
func (e *Engine) Hotspots(relPath string) []model.PerformanceHotspot {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if relPath != "" {
		if rec, ok := e.files[relPath]; ok {
			return append([]model.PerformanceHotspot(nil), rec.hotspots...)
		}
		return nil
	}

	out := make([]model.PerformanceHotspot, 0)
	for _, path := range fileutil.SortedKeys(e.files) {
		out = append(out, e.files[path].hotspots...)
	}
	hotspot.Sort(out)
	return out
}

// Files returns the analyzed file paths in stable order.
func (e *Engine) Files() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return fileutil.SortedKeys(e.files)
}

// FactsSnapshot returns the published per-file facts in path order, for
// consumers like the search indexer.
func (e *Engine) FactsSnapshot() []*extract.FileFacts {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]*extract.FileFacts, 0, len(e.files))
	for _, path := range fileutil.SortedKeys(e.files) {
		rec := e.files[path]
		if rec.failed || rec.facts == nil {
			continue
		}
		out = append(out, rec.facts)
	}
	return out
}

// Callers returns the nodes that call any function with the given name.
func (e *Engine) Callers(name string) ([]model.CallGraphNode, error) {
	return e.neighbors(name, true)
}

// Callees returns the nodes called by any function with the given name.
func (e *Engine) Callees(name string) ([]model.CallGraphNode, error) {
	return e.neighbors(name, false)
}

func (e *Engine) neighbors(name string, incoming bool) ([]model.CallGraphNode, error) {
	graph, _, err := e.CallGraph()
	if err != nil {
		return nil, err
	}

	byID := make(map[string]model.CallGraphNode, len(graph.Nodes))
	matched := make(map[string]bool)
	for _, node := range graph.Nodes {
		byID[node.ID] = node
		if node.FunctionName == name {
			matched[node.ID] = true
		}
	}

	seen := make(map[string]bool)
	out := make([]model.CallGraphNode, 0)
	for _, edge := range graph.Edges {
		var target string
		switch {
		case incoming && matched[edge.To]:
			target = edge.From
		case !incoming && matched[edge.From]:
			target = edge.To
		default:
			continue
		}
		if seen[target] {
			continue
		}
		seen[target] = true
		if node, ok := byID[target]; ok {
			out = append(out, node)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
