package cli

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/luqui/recipe-engine/pkg/resolve"
)

// List styles
var (
	listSelectedStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	listNormalStyle   = lipgloss.NewStyle().Foreground(colorWhite)
	listDimStyle      = lipgloss.NewStyle().Foreground(colorDim)
)

// browseClosure opens an interactive terminal browser over the closure
// entries. The left pane lists packages in topological order; the detail
// pane shows the selected package's pin state and direct dependencies.
func browseClosure(c *resolve.Closure) error {
	_, err := tea.NewProgram(newClosureModel(c)).Run()
	return err
}

// closureModel is the bubbletea model for closure browsing.
type closureModel struct {
	closure *resolve.Closure
	entries []resolve.ClosureEntry
	cursor  int
	height  int
	offset  int
}

func newClosureModel(c *resolve.Closure) closureModel {
	return closureModel{
		closure: c,
		entries: c.Entries(),
		height:  15,
	}
}

func (m closureModel) Init() tea.Cmd {
	return nil
}

func (m closureModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
				if m.cursor < m.offset {
					m.offset = m.cursor
				}
			}
		case "down", "j":
			if m.cursor < len(m.entries)-1 {
				m.cursor++
				if m.cursor >= m.offset+m.height {
					m.offset = m.cursor - m.height + 1
				}
			}
		}
	case tea.WindowSizeMsg:
		m.height = msg.Height - 12
		if m.height < 5 {
			m.height = 5
		}
	}
	return m, nil
}

func (m closureModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render(fmt.Sprintf("Closure of %s", m.closure.Root())))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ navigate  q quit"))
	b.WriteString("\n\n")

	end := m.offset + m.height
	if end > len(m.entries) {
		end = len(m.entries)
	}

	for i := m.offset; i < end; i++ {
		e := m.entries[i]

		cursor := "  "
		if i == m.cursor {
			cursor = "▸ "
		}

		pin := StyleDim.Render("@" + short(e.Spec.Revision))
		switch {
		case e.Project == m.closure.Root():
			pin = StyleDim.Render("(root)")
		case e.Unpinned:
			pin = StyleWarning.Render("@" + e.Spec.Ref() + " !")
		}

		line := fmt.Sprintf("%s%-30s %s", cursor, e.Project, pin)
		if i == m.cursor {
			b.WriteString(listSelectedStyle.Render(line))
		} else {
			b.WriteString(listNormalStyle.Render(line))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.detailView())
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render(fmt.Sprintf("  [%d/%d]", m.cursor+1, len(m.entries))))

	return b.String()
}

// detailView renders the detail pane for the entry under the cursor.
func (m closureModel) detailView() string {
	e := m.entries[m.cursor]
	var b strings.Builder

	b.WriteString(listDimStyle.Render(strings.Repeat("─", 50)))
	b.WriteString("\n")
	if e.Project == m.closure.Root() {
		b.WriteString(fmt.Sprintf("  %s %s\n", StyleHighlight.Render(string(e.Project)), StyleDim.Render("(root)")))
	} else {
		b.WriteString("  " + StyleHighlight.Render(string(e.Project)) + "\n")
		b.WriteString(detailLine("url", e.Spec.URL))
		if e.Unpinned {
			b.WriteString(detailLine("branch", StyleWarning.Render(e.Spec.Ref()+" (unpinned)")))
		} else {
			b.WriteString(detailLine("revision", e.Spec.Revision))
		}
		if e.Spec.PathOverride != "" {
			b.WriteString(detailLine("subdir", e.Spec.PathOverride))
		}
	}
	b.WriteString(detailLine("recipes", e.Package.RecipesPath))

	if len(e.Package.Deps) > 0 {
		ids := make([]string, 0, len(e.Package.Deps))
		for _, d := range e.Package.Deps {
			ids = append(ids, string(d.ProjectID))
		}
		b.WriteString(detailLine("deps", strings.Join(ids, ", ")))
	}

	return b.String()
}

func detailLine(key, value string) string {
	return fmt.Sprintf("  %s %s\n", listDimStyle.Render(fmt.Sprintf("%-9s", key)), value)
}
