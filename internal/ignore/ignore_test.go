package ignore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestList_Match(t *testing.T) {
	l := NewList([]string{"*.tmp", "**/node_modules/**", "logs/debug.log"})

	assert.True(t, l.Match("scratch.tmp"))
	assert.False(t, l.Match("notes/scratch.tmp"), "single * must not cross a path segment")
	assert.True(t, l.Match("src/node_modules/pkg/index.js"))
	assert.True(t, l.Match("logs/debug.log"))
	assert.False(t, l.Match("logs/other.log"))
	assert.False(t, l.Match("notes/a.md"))
}

func TestList_EmptyMatchesNothing(t *testing.T) {
	l := NewList(nil)
	assert.False(t, l.Match("anything.md"))
}
