package extract

import (
	"fmt"
	"sort"

	"github.com/kscope-dev/kscope/internal/model"
)

var compoundAssignOps = set("+=", "-=", "*=", "/=", "%=", "&=", "|=", "^=", "<<=", ">>=")

// dataFlow builds the per-variable event trace: a declare anchored at the
// declaration line, then a read/write/modify per later sighting. Traces are
// keyed by variable name; a shadowing redeclaration gets a "name@line" key so
// the first declaration keeps its plain name.
func (s *fileScan) dataFlow(functions []model.FunctionInfo, variables []model.VariableInfo) map[string][]model.DataFlowStep {
	flows := make(map[string][]model.DataFlowStep, len(variables))

	for i, v := range variables {
		key := v.Name
		if _, taken := flows[key]; taken {
			key = fmt.Sprintf("%s@%d", v.Name, v.Line)
		}
		flows[key] = s.traceVariable(v, nextShadowLine(variables, i), functions)
	}
	return flows
}

// nextShadowLine returns the line of the next declaration reusing the same
// name, or 0 when the declaration at index i is never shadowed. Variables are
// sorted by line.
func nextShadowLine(variables []model.VariableInfo, i int) int {
	for _, later := range variables[i+1:] {
		if later.Name == variables[i].Name && later.Line > variables[i].Line {
			return later.Line
		}
	}
	return 0
}

func (s *fileScan) traceVariable(v model.VariableInfo, shadowLine int, functions []model.FunctionInfo) []model.DataFlowStep {
	declare := model.DataFlowStep{
		Line:        v.Line,
		Operation:   model.FlowDeclare,
		From:        v.InitializedValue,
		To:          v.Name,
		Description: describeDeclare(v),
	}
	steps := []model.DataFlowStep{declare}

	// Sightings before the declaration line belong to an outer binding (or to
	// broken source) and a shadowing redeclaration ends this trace, so every
	// trace starts at its own declare. Globals are traced to end of file,
	// locals to the end of the enclosing function.
	endLine := len(s.lines)
	owner := ""
	if fn := innermostFunction(functions, v.Line); fn != nil && v.Scope != model.ScopeGlobal {
		endLine = fn.EndLine
		owner = fn.Name
	}
	if shadowLine > 0 && shadowLine-1 < endLine {
		endLine = shadowLine - 1
	}

	for i, t := range s.code {
		if t.TokenType != model.TokenIdentifier || t.TokenValue != v.Name {
			continue
		}
		if t.Line <= v.Line || t.Line > endLine {
			continue
		}
		steps = append(steps, s.usageStep(i, v, functions, owner))
	}

	sort.SliceStable(steps, func(i, j int) bool { return steps[i].Line < steps[j].Line })
	return steps
}

func (s *fileScan) usageStep(i int, v model.VariableInfo, functions []model.FunctionInfo, owner string) model.DataFlowStep {
	t := s.code[i]
	next := i + 1

	switch {
	case next < len(s.code) && s.code[next].TokenType == model.TokenOperator && compoundAssignOps[s.code[next].TokenValue]:
		return model.DataFlowStep{
			Line:        t.Line,
			Operation:   model.FlowModify,
			From:        v.Name,
			To:          v.Name,
			Description: fmt.Sprintf("compound assignment %s", s.code[next].TokenValue),
		}
	case s.isOp(next, "="):
		return model.DataFlowStep{
			Line:        t.Line,
			Operation:   model.FlowWrite,
			From:        s.joinUntil(next+1, ";", "{"),
			To:          v.Name,
			Description: "assigned a new value",
		}
	case s.isOp(next, ".") && s.isIdent(next+1) && s.isOp(next+2, "("):
		return model.DataFlowStep{
			Line:        t.Line,
			Operation:   model.FlowModify,
			From:        v.Name,
			To:          v.Name,
			Description: fmt.Sprintf("mutated through method %s", s.code[next+1].TokenValue),
		}
	}

	to := owner
	if user := innermostFunction(functions, t.Line); user != nil {
		to = user.Name
	}
	return model.DataFlowStep{
		Line:        t.Line,
		Operation:   model.FlowRead,
		From:        v.Name,
		To:          to,
		Description: "read",
	}
}

func describeDeclare(v model.VariableInfo) string {
	if v.InitializedValue == "" {
		return fmt.Sprintf("declared in %s scope", v.Scope)
	}
	return fmt.Sprintf("declared in %s scope with initial value %s", v.Scope, v.InitializedValue)
}
