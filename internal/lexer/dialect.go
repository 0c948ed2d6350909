package lexer

import (
	"path/filepath"
	"strings"
)

// Dialect describes how one source language is tokenized. The tables are
// read-only after construction so concurrent lexer passes never synchronize.
type Dialect struct {
	Name              string
	Extensions        []string
	Keywords          map[string]bool
	LineComments      []string
	BlockCommentOpen  string
	BlockCommentClose string
	CharLiterals      bool // single-quoted character literals
}

func newDialect(name string, extensions []string, keywords []string) Dialect {
	set := make(map[string]bool, len(keywords))
	for _, kw := range keywords {
		set[kw] = true
	}
	return Dialect{
		Name:              name,
		Extensions:        extensions,
		Keywords:          set,
		LineComments:      []string{"//"},
		BlockCommentOpen:  "/*",
		BlockCommentClose: "*/",
	}
}

// Rust returns the dialect for kernel-style Rust sources.
func Rust() Dialect {
	d := newDialect("rust", []string{".rs"}, []string{
		"fn", "let", "mut", "struct", "enum", "impl", "trait", "match",
		"if", "else", "while", "for", "loop", "return", "unsafe", "pub",
		"use", "mod", "const", "static", "ref", "move", "break", "continue",
		"in", "as", "where", "type", "crate", "super", "self", "dyn",
		"extern", "async", "await",
	})
	d.CharLiterals = true
	return d
}

// C returns the dialect for C and C-like sources.
func C() Dialect {
	d := newDialect("c", []string{".c", ".h", ".cpp", ".hpp", ".cc"}, []string{
		"if", "else", "while", "for", "do", "switch", "case", "default",
		"break", "continue", "goto", "return", "struct", "enum", "union",
		"typedef", "static", "extern", "const", "volatile", "register",
		"inline", "sizeof", "auto", "int", "char", "float", "double",
		"void", "unsigned", "signed", "long", "short",
	})
	d.CharLiterals = true
	return d
}

// Assembly returns the dialect for x86-style assembly listings. Instructions
// and directives both classify as keywords; registers stay identifiers.
func Assembly() Dialect {
	d := newDialect("assembly", []string{".s", ".asm"}, []string{
		"mov", "add", "sub", "mul", "div", "push", "pop", "call", "ret",
		"jmp", "je", "jne", "jl", "jg", "jz", "jnz", "cmp", "test", "lea",
		"int", "iret", "cli", "sti", "hlt", "nop", "xor", "and", "or",
		"not", "shl", "shr", "in", "out",
		"section", "global", "extern", "db", "dw", "dd", "dq", "bits", "org",
	})
	d.LineComments = []string{";", "#"}
	d.BlockCommentOpen = ""
	d.BlockCommentClose = ""
	return d
}

// Generic is the fallback for unrecognized source dialects. It has no keyword
// table, so every word lands as an identifier and nothing is ever rejected.
func Generic() Dialect {
	d := newDialect("generic", nil, nil)
	d.LineComments = []string{"//", "#"}
	return d
}

var dialects = []Dialect{Rust(), C(), Assembly()}

// ForHint resolves a language hint ("rust", "c", "cpp", ...) to a dialect,
// falling back to Generic for hints the engine has no table for.
func ForHint(hint string) Dialect {
	hint = strings.ToLower(strings.TrimSpace(hint))
	switch hint {
	case "cpp", "c++":
		hint = "c"
	case "asm":
		hint = "assembly"
	}
	for _, d := range dialects {
		if d.Name == hint {
			return d
		}
	}
	return Generic()
}

// Known reports whether a file's extension maps to a concrete dialect.
// Corpus walks use this to skip binaries and build artifacts rather than
// lexing them as Generic.
func Known(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, d := range dialects {
		for _, candidate := range d.Extensions {
			if candidate == ext {
				return true
			}
		}
	}
	return false
}

// ForFile picks a dialect from the file extension.
func ForFile(path string) Dialect {
	ext := strings.ToLower(filepath.Ext(path))
	for _, d := range dialects {
		for _, candidate := range d.Extensions {
			if candidate == ext {
				return d
			}
		}
	}
	return Generic()
}
