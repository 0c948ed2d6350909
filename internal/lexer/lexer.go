// Package lexer turns raw source text into a classified token stream. It is
// the entry stage of the analysis pipeline and must never fail: byte
// sequences no rule understands are emitted as "unknown" tokens so every
// downstream stage always receives a complete stream covering the input.
package lexer

import (
	"strings"
	"unicode"

	"github.com/kscope-dev/kscope/internal/model"
)

// Multi-rune operators, longest first so maximal munch wins.
var multiOperators = []string{
	"<<=", ">>=", "..=",
	"=>", "->", "::", "==", "!=", "<=", ">=", "&&", "||",
	"+=", "-=", "*=", "/=", "%=", "&=", "|=", "^=", "<<", ">>", "..",
}

const singleOperators = "+-*/%=<>!&|^~?:;,.()[]{}#@$"

// Lex tokenizes content under the given dialect. It is a pure function of
// its input: no side effects, deterministic output, and it cannot fail.
func Lex(content string, d Dialect) []model.Token {
	tokens := make([]model.Token, 0, len(content)/4)
	inBlockComment := false

	for lineIdx, rawLine := range strings.Split(content, "\n") {
		line := []rune(strings.TrimSuffix(rawLine, "\r"))
		lineNo := lineIdx + 1
		i := 0

		for i < len(line) {
			if inBlockComment {
				start := i
				end := indexFrom(line, i, d.BlockCommentClose)
				if end < 0 {
					tokens = append(tokens, token(lineNo, start, len(line), model.TokenComment, string(line[start:])))
					i = len(line)
					continue
				}
				end += len([]rune(d.BlockCommentClose))
				tokens = append(tokens, token(lineNo, start, end, model.TokenComment, string(line[start:end])))
				inBlockComment = false
				i = end
				continue
			}

			if unicode.IsSpace(line[i]) {
				i++
				continue
			}

			if prefix := matchLineComment(line, i, d); prefix != "" {
				tokens = append(tokens, token(lineNo, i, len(line), model.TokenComment, string(line[i:])))
				i = len(line)
				continue
			}

			if d.BlockCommentOpen != "" && hasRunePrefix(line, i, d.BlockCommentOpen) {
				start := i
				i += len([]rune(d.BlockCommentOpen))
				end := indexFrom(line, i, d.BlockCommentClose)
				if end < 0 {
					inBlockComment = true
					tokens = append(tokens, token(lineNo, start, len(line), model.TokenComment, string(line[start:])))
					i = len(line)
					continue
				}
				end += len([]rune(d.BlockCommentClose))
				tokens = append(tokens, token(lineNo, start, end, model.TokenComment, string(line[start:end])))
				i = end
				continue
			}

			if line[i] == '"' {
				start := i
				i = scanString(line, i+1, '"')
				tokens = append(tokens, token(lineNo, start, i, model.TokenString, string(line[start:i])))
				continue
			}

			if !d.CharLiterals && line[i] == '\'' {
				// Assembly and unrecognized dialects use single-quoted strings.
				start := i
				i = scanString(line, i+1, '\'')
				tokens = append(tokens, token(lineNo, start, i, model.TokenString, string(line[start:i])))
				continue
			}

			if d.CharLiterals && line[i] == '\'' {
				if end, ok := scanCharLiteral(line, i); ok {
					tokens = append(tokens, token(lineNo, i, end, model.TokenString, string(line[i:end])))
					i = end
					continue
				}
				// Not a closed literal (e.g. a Rust lifetime); fall through
				// and classify the quote as an operator.
				tokens = append(tokens, token(lineNo, i, i+1, model.TokenOperator, "'"))
				i++
				continue
			}

			if unicode.IsDigit(line[i]) {
				start := i
				i = scanNumber(line, i)
				tokens = append(tokens, token(lineNo, start, i, model.TokenNumber, string(line[start:i])))
				continue
			}

			if isWordStart(line[i]) {
				start := i
				for i < len(line) && isWordRune(line[i]) {
					i++
				}
				word := string(line[start:i])
				kind := model.TokenIdentifier
				if d.Keywords[word] {
					kind = model.TokenKeyword
				}
				tokens = append(tokens, token(lineNo, start, i, kind, word))
				continue
			}

			if op := matchOperator(line, i); op != "" {
				width := len([]rune(op))
				tokens = append(tokens, token(lineNo, i, i+width, model.TokenOperator, op))
				i += width
				continue
			}

			// Fallback: consume the run of unclassifiable runes as one token
			// instead of failing.
			start := i
			for i < len(line) && !classifiable(line, i, d) {
				i++
			}
			tokens = append(tokens, token(lineNo, start, i, model.TokenUnknown, string(line[start:i])))
		}
	}

	return tokens
}

func token(line, start, end int, kind model.TokenType, value string) model.Token {
	return model.Token{
		Line:       line,
		StartCol:   start,
		EndCol:     end,
		TokenType:  kind,
		TokenValue: value,
	}
}

func matchLineComment(line []rune, i int, d Dialect) string {
	for _, prefix := range d.LineComments {
		if hasRunePrefix(line, i, prefix) {
			return prefix
		}
	}
	return ""
}

func matchOperator(line []rune, i int) string {
	for _, op := range multiOperators {
		if hasRunePrefix(line, i, op) {
			return op
		}
	}
	if strings.ContainsRune(singleOperators, line[i]) {
		return string(line[i])
	}
	return ""
}

func hasRunePrefix(line []rune, i int, prefix string) bool {
	for _, r := range prefix {
		if i >= len(line) || line[i] != r {
			return false
		}
		i++
	}
	return true
}

func indexFrom(line []rune, i int, needle string) int {
	for ; i < len(line); i++ {
		if hasRunePrefix(line, i, needle) {
			return i
		}
	}
	return -1
}

// scanString consumes up to and including the closing quote, honoring
// backslash escapes. An unterminated string closes at end of line rather than
// erroring.
func scanString(line []rune, i int, quote rune) int {
	for i < len(line) {
		switch line[i] {
		case '\\':
			i += 2
		case quote:
			return i + 1
		default:
			i++
		}
	}
	return len(line)
}

func scanCharLiteral(line []rune, i int) (int, bool) {
	j := i + 1
	if j < len(line) && line[j] == '\\' {
		j += 2
	} else {
		j++
	}
	if j < len(line) && line[j] == '\'' {
		return j + 1, true
	}
	return 0, false
}

func scanNumber(line []rune, i int) int {
	for i < len(line) {
		r := line[i]
		switch {
		case unicode.IsDigit(r) || unicode.IsLetter(r) || r == '_':
			i++
		case r == '.' && i+1 < len(line) && unicode.IsDigit(line[i+1]):
			// Decimal point, but never eat a `..` range operator.
			i++
		default:
			return i
		}
	}
	return i
}

func isWordStart(r rune) bool {
	return unicode.IsLetter(r) || r == '_'
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}

// classifiable reports whether position i starts any recognized token class;
// the unknown-token fallback stops consuming where classification resumes.
func classifiable(line []rune, i int, d Dialect) bool {
	r := line[i]
	if unicode.IsSpace(r) || unicode.IsDigit(r) || isWordStart(r) || r == '"' || r == '\'' {
		return true
	}
	if matchLineComment(line, i, d) != "" {
		return true
	}
	if d.BlockCommentOpen != "" && hasRunePrefix(line, i, d.BlockCommentOpen) {
		return true
	}
	return matchOperator(line, i) != ""
}
