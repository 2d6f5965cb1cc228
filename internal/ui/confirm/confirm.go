// Package confirm implements the yes/no prompt shown before destructive
// operations.
package confirm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/abhisek/quail/internal/ui/theme"
)

// Model is a two-button yes/no prompt. The default selection is No.
type Model struct {
	prompt string
	yes    bool
	done   bool
	// accepted is only meaningful once done is set.
	accepted bool
}

// New returns a prompt asking question.
func New(question string) *Model {
	return &Model{prompt: question}
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	kmsg, ok := msg.(tea.KeyPressMsg)
	if !ok || m.done {
		return m, nil
	}

	switch strings.ToLower(kmsg.String()) {
	case "y":
		return m.finish(true)
	case "n", "esc", "ctrl+c", "q":
		return m.finish(false)
	case "enter":
		return m.finish(m.yes)
	case "left", "right", "tab", "h", "l":
		m.yes = !m.yes
	}
	return m, nil
}

func (m *Model) finish(accepted bool) (tea.Model, tea.Cmd) {
	m.done = true
	m.accepted = accepted
	return m, tea.Quit
}

// View implements tea.Model.
func (m *Model) View() tea.View {
	return tea.NewView(m.render())
}

func (m *Model) render() string {
	if m.done {
		return ""
	}
	yes, no := theme.ButtonInactive, theme.ButtonActive
	if m.yes {
		yes, no = theme.ButtonActive, theme.ButtonInactive
	}
	buttons := lipgloss.JoinHorizontal(lipgloss.Top, yes.Render("Yes"), " ", no.Render("No"))

	var b strings.Builder
	b.WriteString(theme.Title.Render(m.prompt))
	b.WriteString("\n\n")
	b.WriteString(buttons)
	b.WriteString("\n\n")
	b.WriteString(theme.Hint.Render("y/n to answer · ←/→ to choose · enter to confirm"))
	b.WriteString("\n")
	return b.String()
}

// Done reports whether the user answered.
func (m *Model) Done() bool { return m.done }

// Accepted reports whether the user answered yes.
func (m *Model) Accepted() bool { return m.done && m.accepted }

// Prompter runs the prompt on a terminal.
type Prompter struct {
	In  io.Reader
	Out io.Writer
}

// Confirm shows question and blocks until the user answers or ctx ends.
func (p Prompter) Confirm(ctx context.Context, question string) (bool, error) {
	opts := []tea.ProgramOption{tea.WithContext(ctx)}
	if p.In != nil {
		opts = append(opts, tea.WithInput(p.In))
	}
	if p.Out != nil {
		opts = append(opts, tea.WithOutput(p.Out))
	}

	final, err := tea.NewProgram(New(question), opts...).Run()
	if err != nil {
		if errors.Is(err, tea.ErrInterrupted) {
			return false, nil
		}
		return false, fmt.Errorf("confirmation prompt: %w", err)
	}
	m, ok := final.(*Model)
	if !ok {
		return false, nil
	}
	return m.Accepted(), nil
}

// Static answers every prompt with the same value. It backs --yes.
type Static bool

// Confirm implements the controller's Confirmer.
func (s Static) Confirm(context.Context, string) (bool, error) {
	return bool(s), nil
}
