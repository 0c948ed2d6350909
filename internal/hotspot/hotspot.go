// Package hotspot flags likely performance trouble in analyzed source. It is
// rule-table driven: every rule matches a construct keyword, a call edge
// kind, or a complexity band, and emits a hotspot with canned educational
// text looked up by hotspot type. Results are derived facts, regenerated
// wholesale on each run.
package hotspot

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kscope-dev/kscope/internal/extract"
	"github.com/kscope-dev/kscope/internal/model"
)

// Options controls which rule families fire and where the complexity bands
// sit. Zero thresholds disable the corresponding band.
type Options struct {
	MediumComplexity int
	HighComplexity   int

	// Disabled suppresses whole rule families by hotspot type.
	Disabled map[model.HotspotType]bool
}

// lineRule matches when any needle appears in a code line. Needles are
// matched against the lowercased line.
type lineRule struct {
	needles     []string
	hotspotType model.HotspotType
	severity    model.Severity
	description string
	isLoop      bool
}

var lineRules = []lineRule{
	{
		needles:     []string{"for ", "for(", "loop {", "loop{"},
		hotspotType: model.HotspotLoop,
		severity:    model.SeverityMedium,
		description: "Simple for loop detected - potential for vectorization or optimization",
		isLoop:      true,
	},
	{
		needles:     []string{"while ", "while("},
		hotspotType: model.HotspotLoop,
		severity:    model.SeverityMedium,
		description: "While loop with condition check - potential optimization target",
		isLoop:      true,
	},
	{
		needles:     []string{"malloc(", "malloc (", "free(", "free (", "kmalloc(", "kfree(", "alloc("},
		hotspotType: model.HotspotMemoryAllocation,
		severity:    model.SeverityHigh,
		description: "Dynamic memory allocation - potential performance bottleneck",
	},
	{
		needles:     []string{"collect::<vec", ".collect()"},
		hotspotType: model.HotspotMemoryAllocation,
		severity:    model.SeverityMedium,
		description: "Collection creation - consider iterator alternatives",
	},
	{
		needles:     []string{"syscall(", "syscall (", "system_call(", "int 0x80", "svc #"},
		hotspotType: model.HotspotSystemCall,
		severity:    model.SeverityCritical,
		description: "System call detected - high overhead operation",
	},
	{
		needles:     []string{"mutex", "rwlock", "semaphore", "spin_lock", "spinlock"},
		hotspotType: model.HotspotSynchronization,
		severity:    model.SeverityHigh,
		description: "Synchronization primitive - potential contention point",
	},
	{
		needles:     []string{"pow(", "sqrt(", "log(", "exp(", "sort(", "binary_search", "encryption", "compression", "checksum"},
		hotspotType: model.HotspotCPUIntensive,
		severity:    model.SeverityMedium,
		description: "CPU-intensive operation detected",
	},
	{
		needles:     []string{"random_access", "pointer_chasing", "indirect_access", "strided_access"},
		hotspotType: model.HotspotCacheMiss,
		severity:    model.SeverityHigh,
		description: "Potential cache inefficiency detected",
	},
	{
		needles:     []string{"outb(", "inb(", "outw(", "inw(", "io_read", "io_write", "read_block", "write_block"},
		hotspotType: model.HotspotIOBound,
		severity:    model.SeverityMedium,
		description: "Device I/O operation detected - latency bound",
	},
}

// educationalContext is the fixed teaching text per hotspot type.
var educationalContext = map[model.HotspotType]string{
	model.HotspotLoop:             "Loops can be optimized through vectorization, loop unrolling, or parallelization",
	model.HotspotSystemCall:       "System calls transfer control to the kernel and are expensive operations",
	model.HotspotMemoryAllocation: "Dynamic memory allocation can cause fragmentation and performance degradation",
	model.HotspotSynchronization:  "Synchronization primitives can create contention and bottleneck critical paths",
	model.HotspotCPUIntensive:     "CPU-intensive operations may benefit from algorithmic optimization",
	model.HotspotCacheMiss:        "Cache misses can significantly impact performance - consider data locality",
	model.HotspotIOBound:          "Device I/O stalls the CPU while waiting on hardware - batching reduces the cost",
}

// estimatedImpact is the fixed impact rating per hotspot type.
var estimatedImpact = map[model.HotspotType]string{
	model.HotspotSystemCall:       string(model.SeverityCritical),
	model.HotspotSynchronization:  string(model.SeverityHigh),
	model.HotspotMemoryAllocation: string(model.SeverityHigh),
	model.HotspotCacheMiss:        string(model.SeverityHigh),
	model.HotspotLoop:             string(model.SeverityMedium),
	model.HotspotCPUIntensive:     string(model.SeverityMedium),
	model.HotspotIOBound:          string(model.SeverityMedium),
}

// Classify scans one file's source and Stage 1 facts and returns its
// hotspots sorted by severity. Multiple rules may fire on the same location;
// only exact duplicates within the same type are suppressed.
func Classify(path, content string, facts *extract.FileFacts, opts Options) []model.PerformanceHotspot {
	c := collector{opts: opts, seen: make(map[string]bool)}

	lines := strings.Split(content, "\n")
	loopDepth := 0
	for i, raw := range lines {
		line := strings.ToLower(raw)
		if isCommentLine(line) {
			continue
		}
		for _, rule := range lineRules {
			if !containsAny(line, rule.needles) {
				continue
			}
			severity := rule.severity
			if rule.isLoop && loopDepth > 0 {
				// Nested loops multiply iteration counts, so the
				// inner construct rates one band higher.
				severity = bump(severity)
			}
			c.emit(model.PerformanceHotspot{
				Location:    model.CodeLocation{FilePath: path, Line: i + 1},
				HotspotType: rule.hotspotType,
				Severity:    severity,
				Description: rule.description,
			})
		}
		loopDepth += loopDelta(line)
		if loopDepth < 0 {
			loopDepth = 0
		}
	}

	if facts != nil {
		for _, call := range facts.Calls {
			if call.Kind != extract.CallSystem {
				continue
			}
			c.emit(model.PerformanceHotspot{
				Location:    model.CodeLocation{FilePath: path, Line: call.Line, Column: call.Column},
				HotspotType: model.HotspotSystemCall,
				Severity:    model.SeverityCritical,
				Description: "Call into kernel primitive " + call.Callee + " - high overhead operation",
			})
		}
		for _, fn := range facts.Analysis.Functions {
			severity, flagged := complexityBand(fn.Complexity, opts)
			if !flagged {
				continue
			}
			c.emit(model.PerformanceHotspot{
				Location:    model.CodeLocation{FilePath: path, Line: fn.StartLine},
				HotspotType: model.HotspotCPUIntensive,
				Severity:    severity,
				Description: "Function " + fn.Name + " has high branching complexity",
			})
		}
	}

	Sort(c.out)
	return c.out
}

// Sort orders hotspots by severity rank, then file, line, column, and type,
// so repeated runs on unchanged input produce identical output.
func Sort(hotspots []model.PerformanceHotspot) {
	sort.SliceStable(hotspots, func(i, j int) bool {
		a, b := hotspots[i], hotspots[j]
		if a.Severity.Rank() != b.Severity.Rank() {
			return a.Severity.Rank() < b.Severity.Rank()
		}
		if a.Location.FilePath != b.Location.FilePath {
			return a.Location.FilePath < b.Location.FilePath
		}
		if a.Location.Line != b.Location.Line {
			return a.Location.Line < b.Location.Line
		}
		if a.Location.Column != b.Location.Column {
			return a.Location.Column < b.Location.Column
		}
		return a.HotspotType < b.HotspotType
	})
}

type collector struct {
	opts Options
	seen map[string]bool
	out  []model.PerformanceHotspot
}

func (c *collector) emit(h model.PerformanceHotspot) {
	if c.opts.Disabled[h.HotspotType] {
		return
	}
	key := fmt.Sprintf("%s\x00%s\x00%d\x00%d", h.HotspotType, h.Location.FilePath, h.Location.Line, h.Location.Column)
	if c.seen[key] {
		return
	}
	c.seen[key] = true

	h.EducationalContext = educationalContext[h.HotspotType]
	h.EstimatedImpact = estimatedImpact[h.HotspotType]
	h.OptimizationPotential = optimizationPotential(h.Severity)
	c.out = append(c.out, h)
}

func optimizationPotential(severity model.Severity) string {
	switch severity {
	case model.SeverityCritical:
		return "high"
	case model.SeverityHigh:
		return "medium"
	default:
		return "low"
	}
}

func complexityBand(complexity int, opts Options) (model.Severity, bool) {
	switch {
	case opts.HighComplexity > 0 && complexity > opts.HighComplexity:
		return model.SeverityHigh, true
	case opts.MediumComplexity > 0 && complexity > opts.MediumComplexity:
		return model.SeverityMedium, true
	default:
		return "", false
	}
}

func bump(severity model.Severity) model.Severity {
	switch severity {
	case model.SeverityLow:
		return model.SeverityMedium
	case model.SeverityMedium:
		return model.SeverityHigh
	default:
		return model.SeverityCritical
	}
}

// loopDelta tracks how many loop bodies a line opens or closes. The count is
// approximate: it assumes loop bodies are brace-delimited on the same line,
// which holds for the kernel style this tool targets.
func loopDelta(line string) int {
	delta := 0
	if containsAny(line, []string{"for ", "for(", "while ", "while(", "loop {", "loop{"}) && strings.Contains(line, "{") {
		delta++
	}
	if strings.TrimSpace(line) == "}" {
		delta--
	}
	return delta
}

func isCommentLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	for _, prefix := range []string{"//", "/*", "*", "#", ";"} {
		if strings.HasPrefix(trimmed, prefix) {
			return true
		}
	}
	return false
}

func containsAny(line string, needles []string) bool {
	for _, needle := range needles {
		if strings.Contains(line, needle) {
			return true
		}
	}
	return false
}
