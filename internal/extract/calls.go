package extract

import (
	"fmt"
	"sort"

	"github.com/kscope-dev/kscope/internal/model"
)

// extractCalls detects call expressions (identifier, optionally a macro bang,
// immediately followed by an argument list) inside function bodies and
// classifies each provisionally. cross_file stays provisional until the
// global linker resolves it.
func (s *fileScan) extractCalls(functions []model.FunctionInfo) []CallSite {
	defined := make(map[string]bool, len(functions))
	for _, fn := range functions {
		defined[fn.Name] = true
	}

	var calls []CallSite
	seen := make(map[string]bool)

	for i, t := range s.code {
		if t.TokenType != model.TokenIdentifier || controlWords[t.TokenValue] || s.defNames[i] {
			continue
		}
		arg := i + 1
		if s.isOp(arg, "!") { // macro invocation
			arg++
		}
		if !s.isOp(arg, "(") {
			continue
		}

		enclosing := innermostFunction(functions, t.Line)
		if enclosing == nil {
			continue
		}
		// The definition's own name on its signature line is not a call.
		if t.Line == enclosing.StartLine && t.TokenValue == enclosing.Name {
			continue
		}

		site := CallSite{
			Caller:     enclosing.Name,
			CallerLine: enclosing.StartLine,
			Callee:     t.TokenValue,
			Line:       t.Line,
			Column:     t.StartCol,
			Kind:       s.classify(t.TokenValue, enclosing.Name, defined),
		}
		key := siteKey(site)
		if seen[key] {
			continue
		}
		seen[key] = true
		calls = append(calls, site)
	}

	sort.SliceStable(calls, func(i, j int) bool {
		if calls[i].Line != calls[j].Line {
			return calls[i].Line < calls[j].Line
		}
		if calls[i].Column != calls[j].Column {
			return calls[i].Column < calls[j].Column
		}
		return calls[i].Callee < calls[j].Callee
	})
	return calls
}

func (s *fileScan) classify(callee, caller string, defined map[string]bool) CallKind {
	switch {
	case callee == caller:
		return CallRecursive
	case s.opts.SystemCalls[callee]:
		return CallSystem
	case defined[callee]:
		return CallLocal
	default:
		return CallCrossFile
	}
}

// innermostFunction picks the function whose range contains the line,
// preferring the narrowest range so nested functions win over their
// enclosing definition.
func innermostFunction(functions []model.FunctionInfo, line int) *model.FunctionInfo {
	var best *model.FunctionInfo
	bestSpan := -1
	for i := range functions {
		fn := &functions[i]
		if line < fn.StartLine || line > fn.EndLine {
			continue
		}
		span := fn.EndLine - fn.StartLine
		if best == nil || span < bestSpan {
			best = fn
			bestSpan = span
		}
	}
	return best
}

func siteKey(site CallSite) string {
	return fmt.Sprintf("%s|%d|%d", site.Callee, site.Line, site.Column)
}
