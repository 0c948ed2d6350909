// Package link merges per-file analysis facts into one global call graph.
// It runs strictly after every file in the batch has finished intra-file
// analysis; resolution decisions made here supersede the provisional
// cross_file classification of call sites.
package link

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/kscope-dev/kscope/internal/extract"
	"github.com/kscope-dev/kscope/internal/model"
)

// ErrDuplicateFunction is returned when two function definitions share the
// same (file_path, function_name) key. The batch is rejected wholesale;
// callers keep serving the previous graph.
var ErrDuplicateFunction = errors.New("duplicate function definition")

// Options carries the configurable classification tables. Zero thresholds
// are valid and simply make the corresponding band unreachable.
type Options struct {
	// EntryPointPatterns mark never-called functions as entry points when
	// their name matches any pattern.
	EntryPointPatterns []*regexp.Regexp

	// MediumComplexity and HighComplexity bound the performance_impact
	// bands: above high is critical, above medium is high.
	MediumComplexity int
	HighComplexity   int

	// HighCallVolume is the outgoing call_count sum above which a node is
	// rated high impact.
	HighCallVolume int
}

// NodeID derives the stable id for a function defined in a file. Re-analysis
// of an unchanged file yields identical ids.
func NodeID(filePath, functionName string) string {
	return filePath + "::" + functionName
}

// ExternID derives the id for an unresolved callee.
func ExternID(functionName string) string {
	return "extern::" + functionName
}

// ParseNodeID splits an id back into its file and function parts. Extern ids
// report "extern" as the file.
func ParseNodeID(id string) (file, function string) {
	if idx := strings.LastIndex(id, "::"); idx != -1 {
		return id[:idx], id[idx+2:]
	}
	return id, ""
}

type registry struct {
	nodes  map[string]*model.CallGraphNode
	byFile map[string]map[string]string // file -> function name -> id
	byName map[string][]string          // function name -> ids, file-path order
}

type edgeAccum struct {
	from       string
	to         string
	count      int
	crossFile  bool
	systemCall bool
}

// Build runs the union and resolution phases over the Stage 1 facts and
// returns the linked graph. Non-fatal resolution problems (ambiguous targets,
// orphaned call sites) come back as issues; a duplicate function key is fatal
// and wraps ErrDuplicateFunction.
func Build(facts []*extract.FileFacts, opts Options) (*model.CallGraph, []model.Issue, error) {
	reg, err := union(facts)
	if err != nil {
		return nil, nil, err
	}

	issues := make([]model.Issue, 0)
	edges := resolve(facts, reg, &issues)

	incoming := make(map[string]int, len(reg.nodes))
	outgoing := make(map[string]int, len(reg.nodes))
	inSystemEdge := make(map[string]bool)
	for _, e := range edges {
		incoming[e.to] += e.count
		outgoing[e.from] += e.count
		if e.systemCall {
			inSystemEdge[e.from] = true
			inSystemEdge[e.to] = true
		}
	}

	entryPoints := make([]string, 0)
	for id, node := range reg.nodes {
		node.CallCount = incoming[id]
		if !node.IsExtern && incoming[id] == 0 && matchesAny(opts.EntryPointPatterns, node.FunctionName) {
			node.IsEntryPoint = true
			entryPoints = append(entryPoints, id)
		}
		node.PerformanceImpact = impact(node, outgoing[id], inSystemEdge[id], opts)
	}
	sort.Strings(entryPoints)

	graph := &model.CallGraph{
		Nodes:                 sortedNodes(reg.nodes),
		Edges:                 finalizeEdges(edges),
		EntryPoints:           entryPoints,
		CallDepthDistribution: depthDistribution(reg.nodes, edges, entryPoints),
	}
	for _, n := range graph.Nodes {
		graph.ComplexityScore += n.Complexity
	}
	return graph, issues, nil
}

// union combines every file's function list into one registry keyed by
// (file_path, function_name). Files are visited in path order so later
// lookups see name candidates in deterministic order.
func union(facts []*extract.FileFacts) (*registry, error) {
	sorted := append([]*extract.FileFacts(nil), facts...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })

	reg := &registry{
		nodes:  make(map[string]*model.CallGraphNode),
		byFile: make(map[string]map[string]string),
		byName: make(map[string][]string),
	}
	for _, facts := range sorted {
		if _, ok := reg.byFile[facts.Path]; !ok {
			reg.byFile[facts.Path] = make(map[string]string)
		}
		for _, fn := range facts.Analysis.Functions {
			id := NodeID(facts.Path, fn.Name)
			if _, exists := reg.nodes[id]; exists {
				return nil, fmt.Errorf("%w: %q defined twice in %s", ErrDuplicateFunction, fn.Name, facts.Path)
			}
			reg.nodes[id] = &model.CallGraphNode{
				ID:           id,
				FunctionName: fn.Name,
				FilePath:     facts.Path,
				LineNumber:   fn.StartLine,
				Complexity:   fn.Complexity,
			}
			reg.byFile[facts.Path][fn.Name] = id
			reg.byName[fn.Name] = append(reg.byName[fn.Name], id)
		}
	}
	return reg, nil
}

// resolve turns every provisional call site into a coalesced edge. Lookup
// order is same file, then any file by exact name, then a synthesized extern
// node, so every edge endpoint exists in the registry afterwards.
func resolve(facts []*extract.FileFacts, reg *registry, issues *[]model.Issue) map[string]*edgeAccum {
	sorted := append([]*extract.FileFacts(nil), facts...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })

	edges := make(map[string]*edgeAccum)
	for _, facts := range sorted {
		for _, call := range facts.Calls {
			fromID, ok := reg.byFile[facts.Path][call.Caller]
			if !ok {
				*issues = append(*issues, model.Issue{
					File:     facts.Path,
					Severity: "warning",
					Message:  fmt.Sprintf("call at line %d from unknown function %q dropped", call.Line, call.Caller),
				})
				continue
			}

			toID, crossFile := resolveCallee(facts.Path, call.Callee, reg, issues)
			key := fromID + "\x00" + toID
			acc, ok := edges[key]
			if !ok {
				acc = &edgeAccum{from: fromID, to: toID, crossFile: crossFile}
				edges[key] = acc
			}
			acc.count++
			if call.Kind == extract.CallSystem {
				acc.systemCall = true
			}
		}
	}
	return edges
}

func resolveCallee(sourceFile, callee string, reg *registry, issues *[]model.Issue) (id string, crossFile bool) {
	if id, ok := reg.byFile[sourceFile][callee]; ok {
		return id, false
	}
	if ids := reg.byName[callee]; len(ids) > 0 {
		// byName is populated in file-path order, so ids[0] is the
		// lexicographically smallest defining file.
		if len(ids) > 1 {
			*issues = append(*issues, model.Issue{
				File:     sourceFile,
				Severity: "warning",
				Message:  fmt.Sprintf("ambiguous target %q resolved to %s among %d candidates", callee, ids[0], len(ids)),
			})
		}
		return ids[0], true
	}

	id = ExternID(callee)
	if _, ok := reg.nodes[id]; !ok {
		reg.nodes[id] = &model.CallGraphNode{
			ID:           id,
			FunctionName: callee,
			IsExtern:     true,
		}
	}
	return id, true
}

func impact(node *model.CallGraphNode, outgoing int, systemEdge bool, opts Options) string {
	switch {
	case systemEdge, opts.HighComplexity > 0 && node.Complexity > opts.HighComplexity:
		return string(model.SeverityCritical)
	case opts.MediumComplexity > 0 && node.Complexity > opts.MediumComplexity,
		opts.HighCallVolume > 0 && outgoing > opts.HighCallVolume:
		return string(model.SeverityHigh)
	default:
		return string(model.SeverityMedium)
	}
}

func matchesAny(patterns []*regexp.Regexp, name string) bool {
	for _, p := range patterns {
		if p.MatchString(name) {
			return true
		}
	}
	return false
}

// depthDistribution maps breadth-first distance from the entry points to the
// count of nodes first reached at that distance. Nodes unreachable from every
// entry point are excluded rather than assigned depth zero.
func depthDistribution(nodes map[string]*model.CallGraphNode, edges map[string]*edgeAccum, entryPoints []string) map[string]int {
	adjacency := make(map[string][]string, len(nodes))
	for _, e := range edges {
		adjacency[e.from] = append(adjacency[e.from], e.to)
	}
	for id := range adjacency {
		sort.Strings(adjacency[id])
	}

	depth := make(map[string]int, len(nodes))
	queue := append([]string(nil), entryPoints...)
	for _, id := range queue {
		depth[id] = 0
	}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, next := range adjacency[id] {
			if _, seen := depth[next]; seen {
				continue
			}
			depth[next] = depth[id] + 1
			queue = append(queue, next)
		}
	}

	dist := make(map[string]int, len(depth))
	for _, d := range depth {
		dist[strconv.Itoa(d)]++
	}
	return dist
}

func sortedNodes(nodes map[string]*model.CallGraphNode) []model.CallGraphNode {
	out := make([]model.CallGraphNode, 0, len(nodes))
	for _, node := range nodes {
		out = append(out, *node)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func finalizeEdges(edges map[string]*edgeAccum) []model.CallGraphEdge {
	out := make([]model.CallGraphEdge, 0, len(edges))
	for _, acc := range edges {
		out = append(out, model.CallGraphEdge{
			From:         acc.from,
			To:           acc.to,
			CallCount:    acc.count,
			IsRecursive:  acc.from == acc.to,
			IsCrossFile:  acc.crossFile,
			IsSystemCall: acc.systemCall,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].From == out[j].From {
			return out[i].To < out[j].To
		}
		return out[i].From < out[j].From
	})
	return out
}
