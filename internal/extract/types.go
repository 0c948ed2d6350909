package extract

import (
	"github.com/kscope-dev/kscope/internal/model"
)

// CallKind classifies a detected call expression. cross_file is provisional:
// only the global linker can decide whether the callee really lives in
// another file or is an unresolved extern.
type CallKind string

const (
	CallLocal     CallKind = "local"
	CallRecursive CallKind = "recursive"
	CallSystem    CallKind = "system_call"
	CallCrossFile CallKind = "cross_file"
)

// CallSite is one call expression discovered inside a function body.
type CallSite struct {
	Caller     string   `json:"caller"`
	CallerLine int      `json:"caller_line"` // start line of the enclosing function
	Callee     string   `json:"callee"`
	Line       int      `json:"line"`
	Column     int      `json:"column"`
	Kind       CallKind `json:"kind"`
}

// FileFacts is the complete Stage 1 output for one file. It feeds both the
// per-file query API and the global linker; nothing in it references another
// file's facts.
type FileFacts struct {
	Path     string                          `json:"path"`
	Dialect  string                          `json:"dialect"`
	Analysis model.CodeAnalysis              `json:"analysis"`
	Calls    []CallSite                      `json:"calls"`
	DataFlow map[string][]model.DataFlowStep `json:"data_flow"`
	Issues   []model.Issue                   `json:"issues"`
}

// Options carries the read-only configuration tables Stage 1 consults. They
// are shared across concurrent file analyses and never mutated.
type Options struct {
	// SystemCalls is the kernel-primitive name table; calls to these names
	// classify as system_call.
	SystemCalls map[string]bool
}
