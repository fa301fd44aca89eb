// ABOUTME: Terminal renderer driving one in-process navigation shell with bubbletea.
// ABOUTME: Keys select views, switch roles, and run or clear security scans.

package console

import (
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/jfeddern/OpsDeck/internal/rbac"
	"github.com/jfeddern/OpsDeck/internal/shell"
	"github.com/jfeddern/OpsDeck/internal/views"
)

const refreshInterval = 250 * time.Millisecond

var roleKeys = map[string]rbac.Role{
	"a": rbac.Admin,
	"e": rbac.Editor,
	"v": rbac.Viewer,
}

type tickMsg time.Time

func nextTick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

type model struct {
	shell *shell.Shell
	code  string

	frame  shell.Frame
	status string
	width  int
}

func newModel(sh *shell.Shell, code string) model {
	return model{
		shell: sh,
		code:  code,
		frame: sh.Render(),
	}
}

func (m model) Init() tea.Cmd {
	return nextTick()
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		key := msg.String()
		switch {
		case key == "q" || key == "ctrl+c":
			return m, tea.Quit
		case len(key) == 1 && key[0] >= '1' && key[0] <= '9':
			m.selectView(int(key[0] - '1'))
		case roleKeys[key].Valid():
			m.switchRole(roleKeys[key])
		case key == "x":
			m.scan()
		case key == "c":
			m.status = describe(shell.Act(m.shell, views.IDScanner, (*views.SecurityHub).Clear))
		}
		m.frame = m.shell.Render()
		return m, nil
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil
	case tickMsg:
		m.frame = m.shell.Render()
		return m, nextTick()
	default:
		return m, nil
	}
}

func (m *model) selectView(index int) {
	menu := m.shell.Menu()
	if index >= len(menu) {
		return
	}
	m.status = ""
	m.shell.SelectView(menu[index].ID)
}

func (m *model) switchRole(role rbac.Role) {
	d := m.shell.SwitchRole(role)
	m.status = fmt.Sprintf("Role switched to %s", role)
	if !d.IsAllowed() {
		m.status += "; current view is now restricted"
	}
}

func (m *model) scan() {
	if strings.TrimSpace(m.code) == "" {
		m.status = "No code loaded. Start the console with --code-file."
		return
	}
	err := shell.Act(m.shell, views.IDScanner, func(h *views.SecurityHub) error {
		if err := h.SetCode(m.code); err != nil {
			return err
		}
		return h.Scan()
	})
	if err == nil {
		m.status = "Scan started"
		return
	}
	m.status = describe(err)
}

// describe turns an action error into a status line
func describe(err error) string {
	var denied *shell.DeniedError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &denied):
		return fmt.Sprintf("Access denied. This action requires %s clearance.", denied.Decision.RequiredRoles)
	case errors.Is(err, shell.ErrViewNotActive):
		return "Open the Security Hub first."
	case errors.Is(err, views.ErrReadOnly):
		return "This view is read-only for your role."
	case errors.Is(err, views.ErrScanInFlight):
		return "A scan is already running."
	case errors.Is(err, views.ErrEmptyInput):
		return "Nothing to scan."
	default:
		return err.Error()
	}
}

func (m model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("OpsDeck"))
	b.WriteString("  ")
	b.WriteString(roleStyle.Render(m.frame.Session.Role.String()))
	b.WriteString("\n\n")

	for i, item := range m.frame.Menu {
		line := fmt.Sprintf("%d %s", i+1, item.Label)
		if item.Locked {
			line += " [locked]"
		}
		switch {
		case item.Active:
			b.WriteString(activeStyle.Render("> " + line))
		case item.Locked:
			b.WriteString(lockedStyle.Render("  " + line))
		default:
			b.WriteString("  " + line)
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")

	if m.frame.Denial != nil {
		b.WriteString(renderDenial(m.frame.Denial))
	} else if m.frame.Page != nil {
		b.WriteString(renderPage(m.frame.Page))
	}

	if m.status != "" {
		b.WriteString("\n")
		b.WriteString(statusStyle.Render(m.status))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(helpStyle.Render("1-9 view  a/e/v role  x scan  c clear  q quit"))
	b.WriteString("\n")
	return b.String()
}
