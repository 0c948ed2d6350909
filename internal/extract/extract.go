// Package extract is Stage 1 of the pipeline: it scans one file's token
// stream for functions, variables, types and imports, computes per-function
// complexity and data-flow traces, and records provisional call sites. Every
// step degrades to partial output plus an issue entry instead of failing the
// file.
package extract

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kscope-dev/kscope/internal/lexer"
	"github.com/kscope-dev/kscope/internal/model"
)

// Function introducer words recognized in dialects without a keyword table.
var funcIntroducers = map[string]bool{
	"fn": true, "def": true, "func": true, "function": true,
}

// C tokens that can start a declaration's type.
var cTypeWords = map[string]bool{
	"int": true, "char": true, "float": true, "double": true, "void": true,
	"long": true, "short": true, "unsigned": true, "signed": true,
	"struct": true, "enum": true, "union": true,
	"const": true, "static": true, "volatile": true, "register": true,
	"extern": true, "inline": true,
}

// Control words that must never classify as call expressions in dialects
// where they lex as plain identifiers.
var controlWords = map[string]bool{
	"if": true, "else": true, "while": true, "for": true, "loop": true,
	"switch": true, "match": true, "case": true, "return": true,
	"sizeof": true, "elif": true, "when": true, "unless": true, "catch": true,
}

type fileScan struct {
	path    string
	dialect lexer.Dialect
	lines   []string
	code    []model.Token // comment tokens stripped
	depth   []int         // brace depth before each code token
	issues  []model.Issue
	opts    Options
	// code-token indices that are function-definition names, so the call
	// detector never reads a definition as a call to itself.
	defNames map[int]bool
}

// File runs the whole Stage 1 analysis for a single source file. It never
// returns an error: all recoverable problems land in FileFacts.Issues.
func File(path, content, hint string, opts Options) *FileFacts {
	dialect := lexer.ForHint(hint)
	if hint == "" {
		dialect = lexer.ForFile(path)
	}
	tokens := lexer.Lex(content, dialect)

	s := &fileScan{
		path:     path,
		dialect:  dialect,
		lines:    strings.Split(content, "\n"),
		opts:     opts,
		defNames: make(map[int]bool),
	}
	for _, t := range tokens {
		if t.TokenType == model.TokenComment {
			continue
		}
		s.code = append(s.code, t)
	}
	s.computeDepth()

	functions := s.extractFunctions()
	for i := range functions {
		functions[i].Complexity = s.functionComplexity(functions[i])
		functions[i].EducationalDescription = DescribeFunction(functions[i].Name)
	}
	variables := s.extractVariables()

	facts := &FileFacts{
		Path:    path,
		Dialect: dialect.Name,
		Analysis: model.CodeAnalysis{
			SyntaxHighlighting:  tokens,
			Functions:           functions,
			Variables:           variables,
			Types:               s.extractTypes(),
			Imports:             s.extractImports(),
			InlineExplanations:  s.inlineExplanations(),
			ComplexityScore:     totalComplexity(functions),
			EducationalComments: s.educationalComments(),
		},
		Calls:    s.extractCalls(functions),
		DataFlow: s.dataFlow(functions, variables),
		Issues:   s.issues,
	}
	return facts
}

func totalComplexity(functions []model.FunctionInfo) int {
	total := 0
	for _, f := range functions {
		total += f.Complexity
	}
	return total
}

func (s *fileScan) computeDepth() {
	s.depth = make([]int, len(s.code))
	depth := 0
	for i, t := range s.code {
		s.depth[i] = depth
		if t.TokenType == model.TokenOperator {
			switch t.TokenValue {
			case "{":
				depth++
			case "}":
				if depth > 0 {
					depth--
				}
			}
		}
	}
}

func (s *fileScan) warn(line int, format string, args ...any) {
	s.issues = append(s.issues, model.Issue{
		File:     s.path,
		Severity: "warning",
		Message:  fmt.Sprintf("line %d: %s", line, fmt.Sprintf(format, args...)),
	})
}

func (s *fileScan) line(n int) string {
	if n < 1 || n > len(s.lines) {
		return ""
	}
	return strings.TrimSpace(strings.TrimSuffix(s.lines[n-1], "\r"))
}

func (s *fileScan) isOp(i int, value string) bool {
	return i >= 0 && i < len(s.code) &&
		s.code[i].TokenType == model.TokenOperator && s.code[i].TokenValue == value
}

func (s *fileScan) isIdent(i int) bool {
	return i >= 0 && i < len(s.code) && s.code[i].TokenType == model.TokenIdentifier
}

// matchParen returns the index of the ")" closing the "(" at open. Unbalanced
// lists recover by treating end-of-file as the implicit closer.
func (s *fileScan) matchParen(open int) (int, bool) {
	depth := 0
	for i := open; i < len(s.code); i++ {
		if s.code[i].TokenType != model.TokenOperator {
			continue
		}
		switch s.code[i].TokenValue {
		case "(":
			depth++
		case ")":
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return len(s.code) - 1, false
}

// matchBrace is the body-boundary tracker: from the "{" at open to its
// matching "}", or end-of-file when delimiters are unbalanced.
func (s *fileScan) matchBrace(open int) (int, bool) {
	depth := 0
	for i := open; i < len(s.code); i++ {
		if s.code[i].TokenType != model.TokenOperator {
			continue
		}
		switch s.code[i].TokenValue {
		case "{":
			depth++
		case "}":
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return len(s.code) - 1, false
}

func (s *fileScan) extractFunctions() []model.FunctionInfo {
	var functions []model.FunctionInfo

	for i := 0; i < len(s.code); i++ {
		if s.introduces(i) {
			if fn, ok := s.introducedFunction(i); ok {
				functions = append(functions, fn)
			}
			continue
		}
		if s.dialect.Name == "c" {
			if fn, ok := s.cFunction(i); ok {
				functions = append(functions, fn)
			}
		}
	}

	sort.SliceStable(functions, func(i, j int) bool {
		if functions[i].StartLine != functions[j].StartLine {
			return functions[i].StartLine < functions[j].StartLine
		}
		return functions[i].Name < functions[j].Name
	})
	return functions
}

// introduces reports a function-introducer token: the rust "fn" keyword, or a
// bare introducer word in dialects with no keyword table.
func (s *fileScan) introduces(i int) bool {
	t := s.code[i]
	if !funcIntroducers[t.TokenValue] {
		return false
	}
	switch t.TokenType {
	case model.TokenKeyword:
		return true
	case model.TokenIdentifier:
		return s.dialect.Name == "generic"
	}
	return false
}

// introducedFunction parses "<introducer> name ( params ) [-> ret] { body }".
func (s *fileScan) introducedFunction(i int) (model.FunctionInfo, bool) {
	if !s.isIdent(i+1) || !s.isOp(i+2, "(") {
		return model.FunctionInfo{}, false
	}
	name := s.code[i+1].TokenValue
	closeParen, balanced := s.matchParen(i + 2)
	if !balanced {
		s.warn(s.code[i].Line, "unbalanced parameter list for %q, recovered at end of file", name)
	}

	returnType := "()"
	bodyOpen := -1
	for j := closeParen + 1; j < len(s.code); j++ {
		if s.isOp(j, ";") {
			// Declaration without a body (trait method, extern decl).
			return model.FunctionInfo{}, false
		}
		if s.isOp(j, "{") {
			bodyOpen = j
			break
		}
		if s.isOp(j, "->") {
			returnType = s.joinUntil(j+1, "{", ";")
		}
	}
	if bodyOpen < 0 {
		return model.FunctionInfo{}, false
	}

	bodyClose, balanced := s.matchBrace(bodyOpen)
	if !balanced {
		s.warn(s.code[i].Line, "unbalanced body for %q, recovered at end of file", name)
	}

	s.defNames[i+1] = true
	return model.FunctionInfo{
		Name:       name,
		Signature:  s.line(s.code[i].Line),
		StartLine:  s.code[i].Line,
		EndLine:    maxInt(s.code[bodyClose].Line, s.code[i].Line),
		Parameters: s.paramList(i+2, closeParen),
		ReturnType: returnType,
	}, true
}

// cFunction parses "type name ( params ) { body }" at file scope.
func (s *fileScan) cFunction(i int) (model.FunctionInfo, bool) {
	if !s.isIdent(i) || !s.isOp(i+1, "(") || s.depth[i] != 0 {
		return model.FunctionInfo{}, false
	}
	// The name must follow at least one type token, otherwise this is a
	// top-level call or macro use.
	if i == 0 {
		return model.FunctionInfo{}, false
	}
	prev := s.code[i-1]
	typeToken := (prev.TokenType == model.TokenKeyword && cTypeWords[prev.TokenValue]) ||
		prev.TokenType == model.TokenIdentifier ||
		(prev.TokenType == model.TokenOperator && prev.TokenValue == "*")
	if !typeToken {
		return model.FunctionInfo{}, false
	}

	closeParen, balanced := s.matchParen(i + 1)
	if !s.isOp(closeParen+1, "{") {
		return model.FunctionInfo{}, false
	}
	if !balanced {
		s.warn(s.code[i].Line, "unbalanced parameter list for %q, recovered at end of file", s.code[i].TokenValue)
	}
	bodyClose, balanced := s.matchBrace(closeParen + 1)
	if !balanced {
		s.warn(s.code[i].Line, "unbalanced body for %q, recovered at end of file", s.code[i].TokenValue)
	}

	returnType := s.precedingType(i)
	if returnType == "" {
		returnType = "int"
	}

	s.defNames[i] = true
	return model.FunctionInfo{
		Name:       s.code[i].TokenValue,
		Signature:  s.line(s.code[i].Line),
		StartLine:  s.code[i].Line,
		EndLine:    maxInt(s.code[bodyClose].Line, s.code[i].Line),
		Parameters: s.paramList(i+1, closeParen),
		ReturnType: returnType,
	}, true
}

// precedingType joins the contiguous type tokens before a C function or
// variable name on the same line.
func (s *fileScan) precedingType(nameIdx int) string {
	start := nameIdx
	for start > 0 {
		p := s.code[start-1]
		if p.Line != s.code[nameIdx].Line {
			break
		}
		isType := (p.TokenType == model.TokenKeyword && cTypeWords[p.TokenValue]) ||
			p.TokenType == model.TokenIdentifier ||
			(p.TokenType == model.TokenOperator && p.TokenValue == "*")
		if !isType {
			break
		}
		start--
	}
	if start == nameIdx {
		return ""
	}
	return joinTokens(s.code[start:nameIdx])
}

// paramList splits the tokens between open and close on top-level commas.
func (s *fileScan) paramList(open, close int) []string {
	params := make([]string, 0, 4)
	depth := 0
	groupStart := open + 1
	flush := func(end int) {
		if text := joinTokens(s.code[groupStart:end]); text != "" {
			params = append(params, text)
		}
		groupStart = end + 1
	}
	for j := open; j <= close && j < len(s.code); j++ {
		if s.code[j].TokenType != model.TokenOperator {
			continue
		}
		switch s.code[j].TokenValue {
		case "(", "[", "<":
			depth++
		case ")", "]", ">":
			depth--
			if depth == 0 && j == close {
				flush(j)
			}
		case ",":
			if depth == 1 {
				flush(j)
			}
		}
	}
	return params
}

// joinUntil joins token values from start until one of the stop operators.
func (s *fileScan) joinUntil(start int, stops ...string) string {
	end := start
	for end < len(s.code) {
		if s.code[end].TokenType == model.TokenOperator {
			stopped := false
			for _, stop := range stops {
				if s.code[end].TokenValue == stop {
					stopped = true
					break
				}
			}
			if stopped {
				break
			}
		}
		end++
	}
	return joinTokens(s.code[start:end])
}

func (s *fileScan) extractVariables() []model.VariableInfo {
	var variables []model.VariableInfo
	switch s.dialect.Name {
	case "rust":
		variables = s.rustVariables()
	case "c":
		variables = s.cVariables()
	case "generic":
		variables = s.genericVariables()
	}
	sort.SliceStable(variables, func(i, j int) bool {
		if variables[i].Line != variables[j].Line {
			return variables[i].Line < variables[j].Line
		}
		return variables[i].Name < variables[j].Name
	})
	return variables
}

func (s *fileScan) rustVariables() []model.VariableInfo {
	var variables []model.VariableInfo
	for i := 0; i < len(s.code); i++ {
		t := s.code[i]
		if t.TokenType != model.TokenKeyword {
			continue
		}
		switch t.TokenValue {
		case "let":
			j := i + 1
			mutable := false
			if j < len(s.code) && s.code[j].TokenValue == "mut" {
				mutable = true
				j++
			}
			if !s.isIdent(j) {
				continue
			}
			v := model.VariableInfo{
				Name:      s.code[j].TokenValue,
				VarType:   "infer",
				Line:      s.code[j].Line,
				Scope:     s.scopeAt(i),
				IsMutable: mutable,
			}
			if s.isOp(j+1, ":") {
				v.VarType = s.joinUntil(j+2, "=", ";")
			}
			if eq := s.findAssign(j + 1); eq >= 0 {
				v.InitializedValue = s.joinUntil(eq+1, ";")
			}
			variables = append(variables, v)
		case "static", "const":
			j := i + 1
			mutable := false
			if j < len(s.code) && s.code[j].TokenValue == "mut" {
				mutable = true
				j++
			}
			if !s.isIdent(j) || !s.isOp(j+1, ":") {
				continue
			}
			v := model.VariableInfo{
				Name:      s.code[j].TokenValue,
				VarType:   s.joinUntil(j+2, "=", ";"),
				Line:      s.code[j].Line,
				Scope:     s.scopeAt(i),
				IsMutable: mutable,
			}
			if eq := s.findAssign(j + 1); eq >= 0 {
				v.InitializedValue = s.joinUntil(eq+1, ";")
			}
			variables = append(variables, v)
		}
	}
	return variables
}

func (s *fileScan) cVariables() []model.VariableInfo {
	var variables []model.VariableInfo
	for i := 0; i < len(s.code); i++ {
		t := s.code[i]
		if t.TokenType != model.TokenKeyword || !cTypeWords[t.TokenValue] {
			continue
		}
		// Collect the type run, then expect "name =" or "name ;".
		j := i
		mutable := true
		for j < len(s.code) {
			c := s.code[j]
			if c.TokenType == model.TokenKeyword && cTypeWords[c.TokenValue] {
				if c.TokenValue == "const" {
					mutable = false
				}
				j++
				continue
			}
			if c.TokenType == model.TokenOperator && c.TokenValue == "*" {
				j++
				continue
			}
			break
		}
		if !s.isIdent(j) {
			continue
		}
		name := j
		next := j + 1
		if !s.isOp(next, "=") && !s.isOp(next, ";") {
			// Function definitions, prototypes, array declarators and other
			// shapes are out of scope for the variable pattern.
			i = j
			continue
		}
		v := model.VariableInfo{
			Name:      s.code[name].TokenValue,
			VarType:   joinTokens(s.code[i:name]),
			Line:      s.code[name].Line,
			Scope:     s.scopeAt(i),
			IsMutable: mutable,
		}
		if s.isOp(next, "=") {
			v.InitializedValue = s.joinUntil(next+1, ";")
		}
		variables = append(variables, v)
		i = next
	}
	return variables
}

func (s *fileScan) genericVariables() []model.VariableInfo {
	var variables []model.VariableInfo
	for i := 0; i < len(s.code); i++ {
		t := s.code[i]
		if t.TokenType != model.TokenIdentifier || (t.TokenValue != "let" && t.TokenValue != "var") {
			continue
		}
		if !s.isIdent(i + 1) {
			continue
		}
		v := model.VariableInfo{
			Name:      s.code[i+1].TokenValue,
			VarType:   "infer",
			Line:      s.code[i+1].Line,
			Scope:     s.scopeAt(i),
			IsMutable: true,
		}
		if eq := s.findAssign(i + 2); eq >= 0 {
			v.InitializedValue = s.joinUntil(eq+1, ";")
		}
		variables = append(variables, v)
	}
	return variables
}

// findAssign locates a plain "=" before the statement ends. Comparison and
// compound operators lex as distinct tokens, so no lookahead is needed.
func (s *fileScan) findAssign(from int) int {
	for j := from; j < len(s.code) && j < from+16; j++ {
		if s.code[j].TokenType != model.TokenOperator {
			continue
		}
		switch s.code[j].TokenValue {
		case "=":
			return j
		case ";", "{", "}":
			return -1
		}
	}
	return -1
}

// scopeAt fixes a variable's scope from the brace depth at its declaration.
// Scope never widens afterwards.
func (s *fileScan) scopeAt(i int) model.VariableScope {
	switch {
	case s.depth[i] == 0:
		return model.ScopeGlobal
	case s.depth[i] == 1:
		return model.ScopeFunction
	default:
		return model.ScopeBlock
	}
}

func (s *fileScan) extractTypes() []model.TypeInfo {
	var types []model.TypeInfo
	for i := 0; i < len(s.code); i++ {
		t := s.code[i]
		if t.TokenType != model.TokenKeyword {
			continue
		}
		switch t.TokenValue {
		case "struct", "enum", "union":
			if !s.isIdent(i + 1) {
				continue
			}
			open := -1
			for j := i + 2; j < len(s.code) && j < i+8; j++ {
				if s.isOp(j, "{") {
					open = j
					break
				}
				if s.isOp(j, ";") || s.isIdent(j) {
					break // usage or forward declaration, not a definition
				}
			}
			if open < 0 {
				continue
			}
			close, _ := s.matchBrace(open)
			info := model.TypeInfo{
				Name:       s.code[i+1].TokenValue,
				Definition: s.line(t.Line),
				Line:       t.Line,
				Fields:     []model.TypeField{},
			}
			if t.TokenValue != "enum" {
				info.Fields = s.structFields(open+1, close)
			}
			types = append(types, info)
		case "type", "typedef":
			if !s.isIdent(i + 1) {
				continue
			}
			name := s.code[i+1].TokenValue
			if t.TokenValue == "typedef" {
				// The alias is the last identifier before the terminator.
				last := i + 1
				for j := i + 1; j < len(s.code) && !s.isOp(j, ";"); j++ {
					if s.isIdent(j) {
						last = j
					}
				}
				name = s.code[last].TokenValue
			}
			types = append(types, model.TypeInfo{
				Name:       name,
				Definition: s.line(t.Line),
				Line:       t.Line,
				Fields:     []model.TypeField{},
			})
		}
	}
	sort.SliceStable(types, func(i, j int) bool { return types[i].Line < types[j].Line })
	return types
}

// structFields parses "name: type," (rust) or "type name;" (c) members.
func (s *fileScan) structFields(start, end int) []model.TypeField {
	fields := make([]model.TypeField, 0, 4)
	if s.dialect.Name == "c" {
		groupStart := start
		for j := start; j < end; j++ {
			if !s.isOp(j, ";") {
				continue
			}
			lastIdent := -1
			for k := groupStart; k < j; k++ {
				if s.isIdent(k) {
					lastIdent = k
				}
			}
			if lastIdent > groupStart {
				fields = append(fields, model.TypeField{
					Name:      s.code[lastIdent].TokenValue,
					FieldType: joinTokens(s.code[groupStart:lastIdent]),
					IsPublic:  true,
				})
			}
			groupStart = j + 1
		}
		return fields
	}

	for j := start; j < end; j++ {
		if !s.isIdent(j) || !s.isOp(j+1, ":") {
			continue
		}
		depth := 0
		typeEnd := j + 2
		for ; typeEnd < end; typeEnd++ {
			if s.code[typeEnd].TokenType != model.TokenOperator {
				continue
			}
			switch s.code[typeEnd].TokenValue {
			case "<", "(", "[":
				depth++
			case ">", ")", "]":
				depth--
			case ",":
				if depth == 0 {
					break
				}
			}
			if s.code[typeEnd].TokenValue == "," && depth == 0 {
				break
			}
		}
		public := j > 0 && s.code[j-1].TokenValue == "pub"
		fields = append(fields, model.TypeField{
			Name:      s.code[j].TokenValue,
			FieldType: joinTokens(s.code[j+2 : typeEnd]),
			IsPublic:  public,
		})
		j = typeEnd
	}
	return fields
}

func (s *fileScan) extractImports() []model.ImportInfo {
	var imports []model.ImportInfo
	for i := 0; i < len(s.code); i++ {
		t := s.code[i]
		switch {
		case s.dialect.Name == "rust" && t.TokenType == model.TokenKeyword && t.TokenValue == "use":
			module := s.joinUntil(i+1, ";")
			if module == "" {
				continue
			}
			imports = append(imports, model.ImportInfo{
				Module:     module,
				Items:      s.braceItems(i + 1),
				IsExternal: rustImportExternal(module),
				Line:       t.Line,
			})
		case s.dialect.Name == "c" && s.isOp(i, "#") && i+1 < len(s.code) && s.code[i+1].TokenValue == "include":
			if info, ok := s.cInclude(i + 2); ok {
				imports = append(imports, info)
			}
		}
	}
	sort.SliceStable(imports, func(i, j int) bool { return imports[i].Line < imports[j].Line })
	return imports
}

func rustImportExternal(module string) bool {
	for _, local := range []string{"crate", "super", "self"} {
		if module == local || strings.HasPrefix(module, local+"::") {
			return false
		}
	}
	return true
}

// braceItems collects the identifiers of a "use a::{b, c}" group.
func (s *fileScan) braceItems(from int) []string {
	items := []string{}
	open := -1
	for j := from; j < len(s.code); j++ {
		if s.isOp(j, ";") {
			break
		}
		if s.isOp(j, "{") {
			open = j
			break
		}
	}
	if open < 0 {
		return items
	}
	close, _ := s.matchBrace(open)
	for j := open + 1; j < close; j++ {
		if s.isIdent(j) && (s.isOp(j+1, ",") || j+1 == close) {
			items = append(items, s.code[j].TokenValue)
		}
	}
	return items
}

func (s *fileScan) cInclude(i int) (model.ImportInfo, bool) {
	if i >= len(s.code) {
		return model.ImportInfo{}, false
	}
	line := s.code[i].Line
	if s.code[i].TokenType == model.TokenString {
		return model.ImportInfo{
			Module:     strings.Trim(s.code[i].TokenValue, `"`),
			Items:      []string{},
			IsExternal: false,
			Line:       line,
		}, true
	}
	if s.isOp(i, "<") {
		var parts []string
		for j := i + 1; j < len(s.code) && s.code[j].Line == line; j++ {
			if s.isOp(j, ">") {
				return model.ImportInfo{
					Module:     strings.Join(parts, ""),
					Items:      []string{},
					IsExternal: true,
					Line:       line,
				}, true
			}
			parts = append(parts, s.code[j].TokenValue)
		}
	}
	return model.ImportInfo{}, false
}

// joinTokens renders a token run back to readable text.
func joinTokens(tokens []model.Token) string {
	var b strings.Builder
	for i, t := range tokens {
		if i > 0 && needSpace(tokens[i-1], t) {
			b.WriteByte(' ')
		}
		b.WriteString(t.TokenValue)
	}
	return strings.TrimSpace(b.String())
}

func needSpace(prev, cur model.Token) bool {
	wordLike := func(t model.Token) bool {
		switch t.TokenType {
		case model.TokenKeyword, model.TokenIdentifier, model.TokenNumber, model.TokenString:
			return true
		}
		return false
	}
	if prev.TokenValue == "," || prev.TokenValue == ":" {
		return true
	}
	return wordLike(prev) && wordLike(cur)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
