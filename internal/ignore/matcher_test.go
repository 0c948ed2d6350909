package ignore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatcher_DefaultAndUserOverrides(t *testing.T) {
	m := NewMatcher([]string{
		"target/**",
		"!target/keep/boot.s",
		"*.o",
	})

	cases := []struct {
		path    string
		isDir   bool
		ignored bool
	}{
		{path: ".git/config", isDir: false, ignored: true},
		{path: ".kscope/state.json", isDir: false, ignored: true},
		{path: "target/debug/kernel.rs", isDir: false, ignored: true},
		{path: "target/keep/boot.s", isDir: false, ignored: false},
		{path: "nested/module.o", isDir: false, ignored: true},
		{path: "src/main.rs", isDir: false, ignored: false},
		{path: "drivers/keyboard.c", isDir: false, ignored: false},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.ignored, m.ShouldIgnore(tc.path, tc.isDir), "path %s", tc.path)
	}
}

func TestMatcher_NegatedDirectoryRule(t *testing.T) {
	m := NewMatcher([]string{
		"build/",
		"!build/include/",
	})

	assert.True(t, m.ShouldIgnore("build/out/kernel.c", false))
	assert.False(t, m.ShouldIgnore("build/include/kernel.h", false))
}
