// Package prompt implements the "ask" conflict-resolution strategy: an
// interactive terminal prompt asking the operator how to resolve one
// conflicted path, grounded on the reference architecture's own login
// TUI (bubbletea model/update/view, lipgloss styling).
package prompt

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/vaultsync/vaultsync/internal/vaultmodel"
)

// Resolution is the operator's choice for one conflicted path.
type Resolution string

const (
	ResolveKeepLocal  Resolution = "keep-local"
	ResolveKeepRemote Resolution = "keep-remote"
	ResolveMerge      Resolution = "merge"
)

var (
	titleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Bold(true)
	pathStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	helpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
	cursorSign = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render("> ")
)

var choices = []struct {
	label string
	value Resolution
}{
	{"Keep local version", ResolveKeepLocal},
	{"Keep remote version", ResolveKeepRemote},
	{"Attempt a three-way merge", ResolveMerge},
}

type model struct {
	conflict   vaultmodel.ConflictEntry
	localText  string
	remoteText string
	cursor     int
	chosen     *Resolution
	quit       bool
}

func newModel(conflict vaultmodel.ConflictEntry, localText, remoteText string) model {
	return model{conflict: conflict, localText: localText, remoteText: remoteText}
}

func (m model) Init() tea.Cmd { return nil }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch keyMsg.Type {
	case tea.KeyCtrlC, tea.KeyEsc:
		m.quit = true
		return m, tea.Quit
	case tea.KeyUp:
		if m.cursor > 0 {
			m.cursor--
		}
	case tea.KeyDown:
		if m.cursor < len(choices)-1 {
			m.cursor++
		}
	case tea.KeyEnter:
		choice := choices[m.cursor].value
		m.chosen = &choice
		return m, tea.Quit
	}
	return m, nil
}

func (m model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Conflict"))
	b.WriteString(" ")
	b.WriteString(pathStyle.Render(m.conflict.Path))
	b.WriteString("\n\n")
	b.WriteString("This file changed on both this device and the vault since the last sync.\n\n")
	b.WriteString(helpStyle.Render(diffSummary(m.localText, m.remoteText)))
	b.WriteString("\n\n")

	for i, choice := range choices {
		if i == m.cursor {
			b.WriteString(cursorSign)
		} else {
			b.WriteString("  ")
		}
		b.WriteString(choice.label)
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(helpStyle.Render("Use arrows to choose, Enter to confirm, Esc to keep the local version."))
	return b.String()
}

// Resolver asks the operator, one path at a time, how to resolve each
// conflict. A dismissed prompt (Ctrl+C or Esc) defaults to keeping the
// local version, matching the fail-safe default of never silently
// discarding what is on disk.
type Resolver struct{}

// New returns an interactive terminal conflict Resolver.
func New() *Resolver { return &Resolver{} }

// Resolve prompts for a single conflict, showing a short local/remote
// diff summary, and returns the chosen resolution.
func (r *Resolver) Resolve(conflict vaultmodel.ConflictEntry, localText, remoteText string) (Resolution, error) {
	program := tea.NewProgram(newModel(conflict, localText, remoteText))
	finalModel, err := program.Run()
	if err != nil {
		return ResolveKeepLocal, fmt.Errorf("prompt for %q: %w", conflict.Path, err)
	}

	final, ok := finalModel.(model)
	if !ok || final.quit || final.chosen == nil {
		return ResolveKeepLocal, nil
	}
	return *final.chosen, nil
}

// diffSummary renders a one-line count of lines added/removed between
// local and remote, so the operator isn't choosing blind.
func diffSummary(localText, remoteText string) string {
	if localText == "" && remoteText == "" {
		return "(no content preview available)"
	}

	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(localText, remoteText, true)
	diffs = dmp.DiffCleanupSemantic(diffs)

	var added, removed int
	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			added += strings.Count(d.Text, "\n") + 1
		case diffmatchpatch.DiffDelete:
			removed += strings.Count(d.Text, "\n") + 1
		}
	}

	return fmt.Sprintf("remote vs local: +%d/-%d lines", added, removed)
}
