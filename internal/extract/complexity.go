package extract

import (
	"github.com/kscope-dev/kscope/internal/model"
)

// Branching constructs per dialect. Words are matched by token value so
// dialects without a keyword table still count; operators cover match arms
// ("=>") and error propagation / ternaries ("?").
type branchTable struct {
	words     map[string]bool
	operators map[string]bool
}

var branchTables = map[string]branchTable{
	"rust": {
		words:     set("if", "while", "for", "loop", "return"),
		operators: set("=>", "?"),
	},
	"c": {
		words:     set("if", "while", "for", "case", "goto", "return"),
		operators: set("?"),
	},
	"assembly": {
		words: set("je", "jne", "jl", "jg", "jz", "jnz", "jmp", "loop"),
	},
	"generic": {
		words:     set("if", "while", "for", "loop", "case", "elif", "when", "return"),
		operators: set("=>", "?"),
	},
}

func set(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}

// functionComplexity approximates cyclomatic complexity: one base unit plus
// one per branching or looping construct inside the function's line span.
// Each syntactic occurrence counts exactly once; nesting depth does not
// change the raw count.
func (s *fileScan) functionComplexity(fn model.FunctionInfo) int {
	table, ok := branchTables[s.dialect.Name]
	if !ok {
		table = branchTables["generic"]
	}

	complexity := 1
	for i, t := range s.code {
		if t.Line < fn.StartLine || t.Line > fn.EndLine {
			continue
		}
		switch t.TokenType {
		case model.TokenKeyword, model.TokenIdentifier:
			if table.words[t.TokenValue] && !s.defNames[i] {
				complexity++
			}
		case model.TokenOperator:
			if table.operators[t.TokenValue] {
				complexity++
			}
		}
	}
	return complexity
}
