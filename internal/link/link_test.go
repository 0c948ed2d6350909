package link

import (
	"errors"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kscope-dev/kscope/internal/extract"
	"github.com/kscope-dev/kscope/internal/model"
)

func testOptions() Options {
	return Options{
		EntryPointPatterns: []*regexp.Regexp{
			regexp.MustCompile(`^main$`),
			regexp.MustCompile(`^kmain$`),
		},
		MediumComplexity: 10,
		HighComplexity:   20,
		HighCallVolume:   10,
	}
}

func fn(name string, startLine, complexity int) model.FunctionInfo {
	return model.FunctionInfo{Name: name, StartLine: startLine, Complexity: complexity}
}

func call(caller, callee string, line int, kind extract.CallKind) extract.CallSite {
	return extract.CallSite{Caller: caller, Callee: callee, Line: line, Kind: kind}
}

func facts(path string, fns []model.FunctionInfo, calls []extract.CallSite) *extract.FileFacts {
	return &extract.FileFacts{
		Path:     path,
		Dialect:  "rust",
		Analysis: model.CodeAnalysis{Functions: fns},
		Calls:    calls,
	}
}

func edgeBetween(t *testing.T, graph *model.CallGraph, from, to string) model.CallGraphEdge {
	t.Helper()
	for _, e := range graph.Edges {
		if e.From == from && e.To == to {
			return e
		}
	}
	t.Fatalf("no edge %s -> %s", from, to)
	return model.CallGraphEdge{}
}

func nodeByID(t *testing.T, graph *model.CallGraph, id string) model.CallGraphNode {
	t.Helper()
	for _, n := range graph.Nodes {
		if n.ID == id {
			return n
		}
	}
	t.Fatalf("no node %s", id)
	return model.CallGraphNode{}
}

func TestMutualCrossFileCallsAreNotRecursive(t *testing.T) {
	batch := []*extract.FileFacts{
		facts("a.rs",
			[]model.FunctionInfo{fn("main", 1, 1)},
			[]extract.CallSite{call("main", "helper", 2, extract.CallCrossFile)}),
		facts("b.rs",
			[]model.FunctionInfo{fn("helper", 1, 1)},
			[]extract.CallSite{call("helper", "main", 2, extract.CallCrossFile)}),
	}

	graph, issues, err := Build(batch, testOptions())
	require.NoError(t, err)
	assert.Empty(t, issues)

	require.Len(t, graph.Nodes, 2)
	require.Len(t, graph.Edges, 2)
	for _, e := range graph.Edges {
		assert.True(t, e.IsCrossFile)
		assert.False(t, e.IsRecursive)
	}
	for _, n := range graph.Nodes {
		assert.False(t, n.IsExtern)
	}
	// Everything is called, so nothing qualifies as an entry point.
	assert.Empty(t, graph.EntryPoints)
	assert.Empty(t, graph.CallDepthDistribution)
}

func TestSelfRecursionIsSingleRecursiveEdge(t *testing.T) {
	batch := []*extract.FileFacts{
		facts("fib.rs",
			[]model.FunctionInfo{fn("fib", 1, 3)},
			[]extract.CallSite{
				call("fib", "fib", 3, extract.CallRecursive),
				call("fib", "fib", 4, extract.CallRecursive),
			}),
	}

	graph, _, err := Build(batch, testOptions())
	require.NoError(t, err)

	require.Len(t, graph.Edges, 1)
	e := graph.Edges[0]
	assert.True(t, e.IsRecursive)
	assert.False(t, e.IsCrossFile)
	assert.Equal(t, 2, e.CallCount)
}

func TestUnresolvedCalleeGetsExternNode(t *testing.T) {
	batch := []*extract.FileFacts{
		facts("boot.rs",
			[]model.FunctionInfo{fn("kmain", 1, 1)},
			[]extract.CallSite{call("kmain", "bios_print", 2, extract.CallCrossFile)}),
	}

	graph, _, err := Build(batch, testOptions())
	require.NoError(t, err)

	extern := nodeByID(t, graph, ExternID("bios_print"))
	assert.True(t, extern.IsExtern)
	assert.Equal(t, "bios_print", extern.FunctionName)
	assert.Empty(t, extern.FilePath)

	e := edgeBetween(t, graph, NodeID("boot.rs", "kmain"), ExternID("bios_print"))
	assert.True(t, e.IsCrossFile)
}

func TestDuplicateFunctionKeyIsFatal(t *testing.T) {
	batch := []*extract.FileFacts{
		facts("dup.rs",
			[]model.FunctionInfo{fn("init", 1, 1), fn("init", 9, 1)},
			nil),
	}

	graph, _, err := Build(batch, testOptions())
	assert.Nil(t, graph)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicateFunction))
	assert.Contains(t, err.Error(), "dup.rs")
}

func TestAmbiguousNameResolvesToSmallestPath(t *testing.T) {
	batch := []*extract.FileFacts{
		facts("z.rs",
			[]model.FunctionInfo{fn("caller", 1, 1)},
			[]extract.CallSite{call("caller", "flush", 2, extract.CallCrossFile)}),
		facts("m.rs", []model.FunctionInfo{fn("flush", 1, 1)}, nil),
		facts("a.rs", []model.FunctionInfo{fn("flush", 1, 1)}, nil),
	}

	graph, issues, err := Build(batch, testOptions())
	require.NoError(t, err)

	edgeBetween(t, graph, NodeID("z.rs", "caller"), NodeID("a.rs", "flush"))
	assert.Equal(t, 0, nodeByID(t, graph, NodeID("m.rs", "flush")).CallCount)

	require.Len(t, issues, 1)
	assert.Contains(t, issues[0].Message, "ambiguous target")
	assert.Contains(t, issues[0].Message, NodeID("a.rs", "flush"))
}

func TestSameFileDefinitionWinsOverOtherFiles(t *testing.T) {
	batch := []*extract.FileFacts{
		facts("b.rs",
			[]model.FunctionInfo{fn("caller", 1, 1), fn("flush", 9, 1)},
			[]extract.CallSite{call("caller", "flush", 2, extract.CallLocal)}),
		facts("a.rs", []model.FunctionInfo{fn("flush", 1, 1)}, nil),
	}

	graph, issues, err := Build(batch, testOptions())
	require.NoError(t, err)
	assert.Empty(t, issues)

	e := edgeBetween(t, graph, NodeID("b.rs", "caller"), NodeID("b.rs", "flush"))
	assert.False(t, e.IsCrossFile)
}

func TestEntryPointsAndDepthDistribution(t *testing.T) {
	batch := []*extract.FileFacts{
		facts("main.rs",
			[]model.FunctionInfo{fn("main", 1, 1)},
			[]extract.CallSite{call("main", "helper", 2, extract.CallCrossFile)}),
		facts("lib.rs",
			[]model.FunctionInfo{fn("helper", 1, 1), fn("orphan", 9, 1)},
			[]extract.CallSite{call("helper", "util", 2, extract.CallCrossFile)}),
		facts("util.rs", []model.FunctionInfo{fn("util", 1, 1)}, nil),
	}

	graph, _, err := Build(batch, testOptions())
	require.NoError(t, err)

	require.Equal(t, []string{NodeID("main.rs", "main")}, graph.EntryPoints)
	assert.True(t, nodeByID(t, graph, NodeID("main.rs", "main")).IsEntryPoint)
	// orphan is never called but matches no entry point pattern.
	assert.False(t, nodeByID(t, graph, NodeID("lib.rs", "orphan")).IsEntryPoint)

	assert.Equal(t, map[string]int{"0": 1, "1": 1, "2": 1}, graph.CallDepthDistribution)
}

func TestEdgeCoalescingSumsCallCounts(t *testing.T) {
	batch := []*extract.FileFacts{
		facts("a.rs",
			[]model.FunctionInfo{fn("main", 1, 1)},
			[]extract.CallSite{
				call("main", "helper", 2, extract.CallCrossFile),
				call("main", "helper", 3, extract.CallCrossFile),
				call("main", "helper", 4, extract.CallCrossFile),
			}),
		facts("b.rs", []model.FunctionInfo{fn("helper", 1, 1)}, nil),
	}

	graph, _, err := Build(batch, testOptions())
	require.NoError(t, err)

	require.Len(t, graph.Edges, 1)
	assert.Equal(t, 3, graph.Edges[0].CallCount)
	assert.Equal(t, 3, nodeByID(t, graph, NodeID("b.rs", "helper")).CallCount)
	assert.Equal(t, 0, nodeByID(t, graph, NodeID("a.rs", "main")).CallCount)
}

func TestPerformanceImpactBands(t *testing.T) {
	batch := []*extract.FileFacts{
		facts("krn.rs",
			[]model.FunctionInfo{
				fn("enter", 1, 1),
				fn("tangled", 10, 25),
				fn("branchy", 40, 15),
				fn("plain", 70, 2),
			},
			[]extract.CallSite{call("enter", "outb", 2, extract.CallSystem)}),
	}

	graph, _, err := Build(batch, testOptions())
	require.NoError(t, err)

	// Both endpoints of a system call edge rate critical.
	assert.Equal(t, string(model.SeverityCritical), nodeByID(t, graph, NodeID("krn.rs", "enter")).PerformanceImpact)
	assert.Equal(t, string(model.SeverityCritical), nodeByID(t, graph, ExternID("outb")).PerformanceImpact)

	assert.Equal(t, string(model.SeverityCritical), nodeByID(t, graph, NodeID("krn.rs", "tangled")).PerformanceImpact)
	assert.Equal(t, string(model.SeverityHigh), nodeByID(t, graph, NodeID("krn.rs", "branchy")).PerformanceImpact)
	assert.Equal(t, string(model.SeverityMedium), nodeByID(t, graph, NodeID("krn.rs", "plain")).PerformanceImpact)
}

func TestCallFromUnknownFunctionIsDroppedWithIssue(t *testing.T) {
	batch := []*extract.FileFacts{
		facts("a.rs", nil,
			[]extract.CallSite{call("ghost", "helper", 2, extract.CallCrossFile)}),
		facts("b.rs", []model.FunctionInfo{fn("helper", 1, 1)}, nil),
	}

	graph, issues, err := Build(batch, testOptions())
	require.NoError(t, err)

	assert.Empty(t, graph.Edges)
	require.Len(t, issues, 1)
	assert.Contains(t, issues[0].Message, "ghost")
}

func TestParseNodeID(t *testing.T) {
	file, function := ParseNodeID(NodeID("kernel/main.rs", "kmain"))
	assert.Equal(t, "kernel/main.rs", file)
	assert.Equal(t, "kmain", function)

	file, function = ParseNodeID(ExternID("outb"))
	assert.Equal(t, "extern", file)
	assert.Equal(t, "outb", function)
}
