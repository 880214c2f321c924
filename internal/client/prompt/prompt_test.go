package prompt

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaultsync/vaultsync/internal/vaultmodel"
)

func TestModel_CursorNavigation(t *testing.T) {
	m := newModel(vaultmodel.ConflictEntry{Path: "notes/a.md"}, "", "")

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m = next.(model)
	assert.Equal(t, 1, m.cursor)

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m = next.(model)
	assert.Equal(t, 2, m.cursor)

	// Cursor does not run past the last choice.
	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m = next.(model)
	assert.Equal(t, 2, m.cursor)

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyUp})
	m = next.(model)
	assert.Equal(t, 1, m.cursor)
}

func TestModel_EnterChoosesHighlightedResolution(t *testing.T) {
	m := newModel(vaultmodel.ConflictEntry{Path: "notes/a.md"}, "", "")
	m.cursor = 1 // "Keep remote version"

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(model)

	require.NotNil(t, m.chosen)
	assert.Equal(t, ResolveKeepRemote, *m.chosen)
	require.NotNil(t, cmd)
}

func TestModel_EscQuitsWithoutChoosing(t *testing.T) {
	m := newModel(vaultmodel.ConflictEntry{Path: "notes/a.md"}, "", "")

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	m = next.(model)

	assert.True(t, m.quit)
	assert.Nil(t, m.chosen)
	require.NotNil(t, cmd)
}

func TestDiffSummary_CountsAddedAndRemovedLines(t *testing.T) {
	summary := diffSummary("line one\nline two\n", "line one\nline three\nline four\n")
	assert.Contains(t, summary, "+")
	assert.Contains(t, summary, "-")
}

func TestDiffSummary_NoContentAvailable(t *testing.T) {
	assert.Equal(t, "(no content preview available)", diffSummary("", ""))
}
