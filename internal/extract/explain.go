package extract

import (
	"sort"
	"strings"

	"github.com/kscope-dev/kscope/internal/model"
)

// Teaching-moment rules: recognized construct -> learner-facing explanation.
// The vocabulary is a fixed table so repeated analyses produce identical
// annotation text.
type explainRule struct {
	needles     []string
	explanation string
	level       model.ComplexityLevel
	concepts    []string
}

var explainRules = []explainRule{
	{
		needles:     []string{"syscall", "int 0x80", "svc"},
		explanation: "System call - transfers control to the kernel to perform privileged operations",
		level:       model.LevelIntermediate,
		concepts:    []string{"kernel", "privileged operations", "system interface"},
	},
	{
		needles:     []string{"mmap", "kmalloc", "malloc", "virtual_memory"},
		explanation: "Memory management operation - allocates or maps virtual memory regions",
		level:       model.LevelAdvanced,
		concepts:    []string{"virtual memory", "page tables", "memory allocation"},
	},
	{
		needles:     []string{"interrupt", "irq", "isr"},
		explanation: "Interrupt handling - asynchronous signal from hardware or software requiring immediate attention",
		level:       model.LevelAdvanced,
		concepts:    []string{"interrupt controller", "context switching", "hardware signals"},
	},
	{
		needles:     []string{"context_switch", "switch_to"},
		explanation: "Context switch - saves current process state and loads new process state for multitasking",
		level:       model.LevelExpert,
		concepts:    []string{"process scheduling", "CPU registers", "task state"},
	},
	{
		needles:     []string{"spin_lock", "spinlock", "mutex", "semaphore", "rwlock"},
		explanation: "Locking primitive - serializes access to state shared between execution contexts",
		level:       model.LevelAdvanced,
		concepts:    []string{"synchronization", "race conditions", "critical sections"},
	},
	{
		needles:     []string{"unsafe"},
		explanation: "Unsafe block - bypasses language safety guarantees for raw hardware or memory access",
		level:       model.LevelAdvanced,
		concepts:    []string{"memory safety", "raw pointers", "FFI"},
	},
}

type commentRule struct {
	needles    []string
	comment    string
	category   string
	level      model.ComplexityLevel
	objectives []string
}

var commentRules = []commentRule{
	{
		needles:    []string{"unsafe"},
		comment:    "unsafe bypasses the language's safety guarantees - use carefully when interfacing with low-level code",
		category:   "warning",
		level:      model.LevelAdvanced,
		objectives: []string{"memory safety", "unsafe code", "FFI"},
	},
	{
		needles:    []string{"thread::spawn", "spawn("},
		comment:    "Thread creation - enables concurrent execution in the kernel",
		category:   "concept",
		level:      model.LevelIntermediate,
		objectives: []string{"concurrency", "threading", "parallelism"},
	},
	{
		needles:    []string{"mutex", "spin_lock", "spinlock"},
		comment:    "Mutual exclusion primitive - prevents race conditions in concurrent access",
		category:   "concept",
		level:      model.LevelAdvanced,
		objectives: []string{"synchronization", "race conditions", "concurrency"},
	},
	{
		needles:    []string{"volatile"},
		comment:    "Volatile access - the compiler must not cache or reorder reads and writes to this location",
		category:   "performance",
		level:      model.LevelAdvanced,
		objectives: []string{"memory-mapped IO", "compiler optimization", "hardware registers"},
	},
}

func (s *fileScan) inlineExplanations() []model.InlineExplanation {
	var explanations []model.InlineExplanation
	for idx, raw := range s.lines {
		line := strings.ToLower(raw)
		for _, rule := range explainRules {
			needle, col := firstNeedle(line, rule.needles)
			if needle == "" {
				continue
			}
			explanations = append(explanations, model.InlineExplanation{
				Line:            idx + 1,
				StartCol:        col,
				EndCol:          col + len(needle),
				Explanation:     rule.explanation,
				ComplexityLevel: rule.level,
				RelatedConcepts: rule.concepts,
			})
		}
	}
	sort.SliceStable(explanations, func(i, j int) bool {
		if explanations[i].Line != explanations[j].Line {
			return explanations[i].Line < explanations[j].Line
		}
		return explanations[i].StartCol < explanations[j].StartCol
	})
	return explanations
}

func (s *fileScan) educationalComments() []model.EducationalComment {
	var comments []model.EducationalComment
	for idx, raw := range s.lines {
		line := strings.ToLower(raw)
		for _, rule := range commentRules {
			if needle, _ := firstNeedle(line, rule.needles); needle == "" {
				continue
			}
			comments = append(comments, model.EducationalComment{
				Line:               idx + 1,
				Comment:            rule.comment,
				Category:           rule.category,
				DifficultyLevel:    rule.level,
				LearningObjectives: rule.objectives,
			})
		}
	}
	return comments
}

// firstNeedle returns the earliest-positioned needle present in the line.
func firstNeedle(line string, needles []string) (string, int) {
	best := ""
	bestCol := -1
	for _, needle := range needles {
		col := strings.Index(line, needle)
		if col < 0 {
			continue
		}
		if bestCol < 0 || col < bestCol {
			best, bestCol = needle, col
		}
	}
	return best, bestCol
}

// FunctionDescriptions maps well-known kernel function names to learner
// descriptions attached during extraction.
var functionDescriptions = map[string]string{
	"main":              "Main entry point - initializes the kernel and starts system services",
	"kmain":             "Kernel entry point - first code to run after the bootloader hands over control",
	"syscall_handler":   "System call handler - processes user requests for kernel services",
	"interrupt_handler": "Interrupt handler - responds to hardware and software interrupts",
	"memory_allocate":   "Memory allocator - manages dynamic memory allocation in the kernel",
	"process_sched":     "Process scheduler - determines which process runs next on the CPU",
	"context_switch":    "Context switcher - saves and restores process execution state",
}

// DescribeFunction looks a name up in the fixed knowledge table; the empty
// string means no teaching description exists.
func DescribeFunction(name string) string {
	return functionDescriptions[name]
}
