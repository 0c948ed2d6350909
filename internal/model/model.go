package model

// TokenType classifies a lexed token. The set is closed so downstream rule
// tables can match exhaustively.
type TokenType string

const (
	TokenKeyword    TokenType = "keyword"
	TokenIdentifier TokenType = "identifier"
	TokenString     TokenType = "string"
	TokenComment    TokenType = "comment"
	TokenNumber     TokenType = "number"
	TokenOperator   TokenType = "operator"
	TokenUnknown    TokenType = "unknown"
)

// Token is a single classified span of source text. Produced once per lexer
// pass and never mutated.
type Token struct {
	Line       int       `json:"line"`
	StartCol   int       `json:"start_col"`
	EndCol     int       `json:"end_col"`
	TokenType  TokenType `json:"token_type"`
	TokenValue string    `json:"token_value"`
}

// CodeLocation identifies exactly one token or span in the corpus.
type CodeLocation struct {
	FilePath string `json:"file_path"`
	Line     int    `json:"line"`
	Column   int    `json:"column"`
}

// FunctionInfo describes one function definition found in a file. Complexity
// is assigned by the intra-file analyzer and is never negative; StartLine is
// always <= EndLine.
type FunctionInfo struct {
	Name                   string   `json:"name"`
	Signature              string   `json:"signature"`
	StartLine              int      `json:"start_line"`
	EndLine                int      `json:"end_line"`
	Parameters             []string `json:"parameters"`
	ReturnType             string   `json:"return_type"`
	Complexity             int      `json:"complexity"`
	EducationalDescription string   `json:"educational_description,omitempty"`
}

// Contains reports whether other's line range nests inside f's. Names repeat
// across files, so callers disambiguate nested functions by range containment.
func (f FunctionInfo) Contains(other FunctionInfo) bool {
	return f.StartLine <= other.StartLine && other.EndLine <= f.EndLine &&
		!(f.StartLine == other.StartLine && f.EndLine == other.EndLine)
}

// VariableScope is fixed when the declaration is first sighted and never
// widened afterwards.
type VariableScope string

const (
	ScopeFunction VariableScope = "function"
	ScopeBlock    VariableScope = "block"
	ScopeGlobal   VariableScope = "global"
)

// VariableInfo describes one variable declaration.
type VariableInfo struct {
	Name             string        `json:"name"`
	VarType          string        `json:"var_type"`
	Line             int           `json:"line"`
	Scope            VariableScope `json:"scope"`
	IsMutable        bool          `json:"is_mutable"`
	InitializedValue string        `json:"initialized_value,omitempty"`
}

// TypeField is one field of a type definition.
type TypeField struct {
	Name      string `json:"name"`
	FieldType string `json:"field_type"`
	IsPublic  bool   `json:"is_public"`
}

// TypeInfo describes a struct/enum/typedef definition.
type TypeInfo struct {
	Name       string      `json:"name"`
	Definition string      `json:"definition"`
	Line       int         `json:"line"`
	Fields     []TypeField `json:"fields"`
	IsBuiltin  bool        `json:"is_builtin"`
}

// ImportInfo describes one import/include/use statement.
type ImportInfo struct {
	Module     string   `json:"module"`
	Items      []string `json:"items"`
	IsExternal bool     `json:"is_external"`
	Line       int      `json:"line"`
}

// ComplexityLevel grades a teaching moment for the learner-facing UI.
type ComplexityLevel string

const (
	LevelBeginner     ComplexityLevel = "beginner"
	LevelIntermediate ComplexityLevel = "intermediate"
	LevelAdvanced     ComplexityLevel = "advanced"
	LevelExpert       ComplexityLevel = "expert"
)

// InlineExplanation is an educational annotation anchored to a construct.
type InlineExplanation struct {
	Line            int             `json:"line"`
	StartCol        int             `json:"start_col"`
	EndCol          int             `json:"end_col"`
	Explanation     string          `json:"explanation"`
	ComplexityLevel ComplexityLevel `json:"complexity_level"`
	RelatedConcepts []string        `json:"related_concepts"`
}

// EducationalComment is a per-line learning note with objectives.
type EducationalComment struct {
	Line               int             `json:"line"`
	Comment            string          `json:"comment"`
	Category           string          `json:"category"`
	DifficultyLevel    ComplexityLevel `json:"difficulty_level"`
	LearningObjectives []string        `json:"learning_objectives"`
}

// FlowOperation is one kind of recorded variable event.
type FlowOperation string

const (
	FlowDeclare FlowOperation = "declare"
	FlowRead    FlowOperation = "read"
	FlowWrite   FlowOperation = "write"
	FlowModify  FlowOperation = "modify"
)

// DataFlowStep records one variable event at a specific line. Steps are
// ordered by line within a variable's trace and the first step is always a
// declare.
type DataFlowStep struct {
	Line        int           `json:"line"`
	Operation   FlowOperation `json:"operation"`
	From        string        `json:"from"`
	To          string        `json:"to"`
	Description string        `json:"description"`
}

// CodeAnalysis is the aggregate analysis result for one file. It exclusively
// owns its child collections; nothing here aliases another file's result.
type CodeAnalysis struct {
	SyntaxHighlighting  []Token              `json:"syntax_highlighting"`
	Functions           []FunctionInfo       `json:"functions"`
	Variables           []VariableInfo       `json:"variables"`
	Types               []TypeInfo           `json:"types"`
	Imports             []ImportInfo         `json:"imports"`
	InlineExplanations  []InlineExplanation  `json:"inline_explanations"`
	ComplexityScore     int                  `json:"complexity_score"`
	EducationalComments []EducationalComment `json:"educational_comments"`
}

// CallGraphNode is one resolvable function in the global graph. IDs are
// derived from (file_path, function_name) so re-analysis of an unchanged file
// yields identical ids; consumers must treat them as opaque strings.
type CallGraphNode struct {
	ID                string `json:"id"`
	FunctionName      string `json:"function_name"`
	FilePath          string `json:"file_path"`
	LineNumber        int    `json:"line_number"`
	Complexity        int    `json:"complexity"`
	IsExtern          bool   `json:"is_extern"`
	IsEntryPoint      bool   `json:"is_entry_point"`
	CallCount         int    `json:"call_count"`
	PerformanceImpact string `json:"performance_impact"`
}

// CallGraphEdge is one coalesced caller→callee relationship. From and To are
// weak references (node ids), never pointers, which keeps the cyclic graph
// trivially serializable.
type CallGraphEdge struct {
	From         string `json:"from"`
	To           string `json:"to"`
	CallCount    int    `json:"call_count"`
	IsRecursive  bool   `json:"is_recursive"`
	IsCrossFile  bool   `json:"is_cross_file"`
	IsSystemCall bool   `json:"is_system_call"`
}

// CallGraph is the fully linked corpus-wide graph.
type CallGraph struct {
	Nodes                 []CallGraphNode `json:"nodes"`
	Edges                 []CallGraphEdge `json:"edges"`
	EntryPoints           []string        `json:"entry_points"`
	ComplexityScore       int             `json:"complexity_score"`
	CallDepthDistribution map[string]int  `json:"call_depth_distribution"`
}

// HotspotType names the heuristic rule family that flagged a location.
type HotspotType string

const (
	HotspotSystemCall       HotspotType = "system_call"
	HotspotMemoryAllocation HotspotType = "memory_allocation"
	HotspotLoop             HotspotType = "loop"
	HotspotSynchronization  HotspotType = "synchronization"
	HotspotIOBound          HotspotType = "io_bound"
	HotspotCPUIntensive     HotspotType = "cpu_intensive"
	HotspotCacheMiss        HotspotType = "cache_miss"
)

// Severity tags a hotspot. Rank gives the deterministic order used for
// sorting, critical first.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

var severityRank = map[Severity]int{
	SeverityCritical: 0,
	SeverityHigh:     1,
	SeverityMedium:   2,
	SeverityLow:      3,
}

func (s Severity) Rank() int {
	if rank, ok := severityRank[s]; ok {
		return rank
	}
	return len(severityRank)
}

// PerformanceHotspot is a derived fact; it is regenerated wholesale on every
// re-analysis and never edited in place.
type PerformanceHotspot struct {
	Location              CodeLocation `json:"location"`
	HotspotType           HotspotType  `json:"hotspot_type"`
	Severity              Severity     `json:"severity"`
	EstimatedImpact       string       `json:"estimated_impact"`
	Description           string       `json:"description"`
	EducationalContext    string       `json:"educational_context"`
	OptimizationPotential string       `json:"optimization_potential"`
}

// Issue captures a non-fatal problem encountered while analyzing a file.
// Issues are reported alongside results, never silently dropped.
type Issue struct {
	File     string `json:"file"`
	Severity string `json:"severity"` // warning | error
	Message  string `json:"message"`
}

// Status distinguishes "analysis is empty" from "analysis failed".
type Status string

const (
	StatusOK     Status = "ok"
	StatusFailed Status = "failed"
)

// FileResult is the query-API envelope around one file's analysis.
type FileResult struct {
	FilePath string                    `json:"file_path"`
	Status   Status                    `json:"status"`
	Issues   []Issue                   `json:"issues,omitempty"`
	Analysis *CodeAnalysis             `json:"analysis,omitempty"`
	DataFlow map[string][]DataFlowStep `json:"data_flow,omitempty"`
}
