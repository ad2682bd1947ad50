package utils

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitTextShortInput(t *testing.T) {
	assert.Equal(t, []string{"hello"}, SplitText("hello", 10, 2))
}

func TestSplitTextCoversInputAndBreaksOnSpaces(t *testing.T) {
	words := strings.Repeat("lorem ipsum dolor ", 40)
	chunks := SplitText(words, 100, 20)
	require.Greater(t, len(chunks), 1)

	for _, c := range chunks[:len(chunks)-1] {
		assert.LessOrEqual(t, len([]rune(c)), 100)
		assert.True(t, strings.HasSuffix(c, " "), "chunk should end on a word break: %q", c)
	}
	assert.True(t, strings.HasPrefix(words, chunks[0]))
	assert.True(t, strings.HasSuffix(words, chunks[len(chunks)-1]))
}

func TestSplitCodeKeepsWholeLines(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 60; i++ {
		fmt.Fprintf(&b, "line %02d: x := compute(%d)\n", i, i)
	}
	code := b.String()

	chunks := SplitCode(code, 200, 60)
	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c), 200)
		assert.True(t, strings.HasSuffix(c, "\n"))
		assert.True(t, strings.HasPrefix(c, "line "))
	}

	// consecutive chunks overlap by at least one line
	first := strings.Split(strings.TrimSuffix(chunks[0], "\n"), "\n")
	assert.Contains(t, chunks[1], first[len(first)-1]+"\n")
	assert.Contains(t, chunks[len(chunks)-1], "line 59")
}

func TestSplitCodeLongLine(t *testing.T) {
	long := strings.Repeat("a", 450)
	chunks := SplitCode("short\n"+long+"\nend\n", 200, 20)
	assert.Equal(t, "short\n", chunks[0])
	assert.Equal(t, "end\n", chunks[len(chunks)-1])
}

func TestLanguageAndIndexable(t *testing.T) {
	assert.Equal(t, "go", LanguageFor("pkg/a/b.go"))
	assert.Equal(t, "typescript", LanguageFor("web/App.TSX"))
	assert.Equal(t, "", LanguageFor("README.md"))
	assert.True(t, Indexable("README.md"))
	assert.True(t, Indexable("main.go"))
	assert.False(t, Indexable("logo.png"))
	assert.True(t, ExcludedDir("node_modules"))
	assert.False(t, ExcludedDir("src"))
}
