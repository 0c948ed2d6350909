package lexer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kscope-dev/kscope/internal/model"
)

func values(tokens []model.Token, kind model.TokenType) []string {
	out := make([]string, 0)
	for _, t := range tokens {
		if t.TokenType == kind {
			out = append(out, t.TokenValue)
		}
	}
	return out
}

func TestLexRustLine(t *testing.T) {
	tokens := Lex(`fn kmain() { let mut ticks = 0; } // boot`, Rust())

	assert.Equal(t, []string{"fn", "let", "mut"}, values(tokens, model.TokenKeyword))
	assert.Equal(t, []string{"kmain", "ticks"}, values(tokens, model.TokenIdentifier))
	assert.Equal(t, []string{"0"}, values(tokens, model.TokenNumber))
	assert.Equal(t, []string{"// boot"}, values(tokens, model.TokenComment))
}

func TestLexMultiRuneOperators(t *testing.T) {
	tokens := Lex(`x <<= 1; a != b; v -> w; m => n; p::q; 0..10`, Rust())

	ops := values(tokens, model.TokenOperator)
	for _, want := range []string{"<<=", "!=", "->", "=>", "::", ".."} {
		assert.Contains(t, ops, want)
	}
	// ".." must not be folded into the surrounding numbers.
	assert.Equal(t, []string{"1", "0", "10"}, values(tokens, model.TokenNumber))
}

func TestLexStringsAndCharLiterals(t *testing.T) {
	tokens := Lex(`let s = "hi \"there\""; let c = 'x'; let esc = '\n';`, Rust())

	strs := values(tokens, model.TokenString)
	assert.Equal(t, []string{`"hi \"there\""`, `'x'`, `'\n'`}, strs)
}

func TestLexUnterminatedStringClosesAtEOL(t *testing.T) {
	tokens := Lex("let s = \"oops\nnext", Rust())

	strs := values(tokens, model.TokenString)
	require.Len(t, strs, 1)
	assert.Equal(t, `"oops`, strs[0])
	// The next line still lexes normally.
	assert.Contains(t, values(tokens, model.TokenIdentifier), "next")
}

func TestLexRustLifetimeQuoteIsOperator(t *testing.T) {
	tokens := Lex(`fn get<'a>(x: &'a str) {}`, Rust())
	assert.Contains(t, values(tokens, model.TokenOperator), "'")
}

func TestLexBlockCommentSpansLines(t *testing.T) {
	tokens := Lex("/* first\nsecond */ int x;", C())

	comments := values(tokens, model.TokenComment)
	assert.Equal(t, []string{"/* first", "second */"}, comments)
	assert.Contains(t, values(tokens, model.TokenKeyword), "int")
}

func TestLexAssemblyComments(t *testing.T) {
	tokens := Lex("mov eax, 1 ; exit\n# line two", Assembly())

	assert.Equal(t, []string{"; exit", "# line two"}, values(tokens, model.TokenComment))
	assert.Contains(t, values(tokens, model.TokenKeyword), "mov")
	assert.Contains(t, values(tokens, model.TokenIdentifier), "eax")
}

func TestLexAssemblySingleQuotedString(t *testing.T) {
	tokens := Lex(`msg: db 'hello', 0`, Assembly())
	assert.Equal(t, []string{`'hello'`}, values(tokens, model.TokenString))
}

func TestLexUnknownFallbackCoversEveryByte(t *testing.T) {
	tokens := Lex("let x = §¶ + 1;", Rust())

	unknown := values(tokens, model.TokenUnknown)
	require.Len(t, unknown, 1)
	assert.Equal(t, "§¶", unknown[0])
	// The stream resumes normal classification after the garbage run.
	assert.Contains(t, values(tokens, model.TokenNumber), "1")
}

func TestDialectSelection(t *testing.T) {
	assert.Equal(t, "rust", ForFile("kernel/main.rs").Name)
	assert.Equal(t, "c", ForFile("drivers/vga.c").Name)
	assert.Equal(t, "assembly", ForFile("boot/start.s").Name)
	assert.Equal(t, "generic", ForFile("README.md").Name)

	assert.Equal(t, "c", ForHint("cpp").Name)
	assert.Equal(t, "assembly", ForHint("asm").Name)
	assert.Equal(t, "generic", ForHint("cobol").Name)

	assert.True(t, Known("a.rs"))
	assert.False(t, Known("a.bin"))
}
