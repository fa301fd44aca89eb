// ABOUTME: Plain-text rendering of view pages and denial screens for the terminal.
// ABOUTME: Mirrors the HTML templates using lipgloss styles and chroma terminal highlighting.

package console

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/jfeddern/OpsDeck/internal/shell"
	"github.com/jfeddern/OpsDeck/internal/types"
	"github.com/jfeddern/OpsDeck/internal/views"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	roleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("229"))
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("229"))
	activeStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("45"))
	lockedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	helpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	statusStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	deniedStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	bannerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Italic(true)
	deniedBorder = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("196")).Padding(0, 1)

	severityStyles = map[types.Severity]lipgloss.Style{
		types.SeverityCritical: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196")),
		types.SeverityHigh:     lipgloss.NewStyle().Foreground(lipgloss.Color("208")),
		types.SeverityMedium:   lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		types.SeverityLow:      lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
	}
)

func renderDenial(d *shell.Denial) string {
	var b strings.Builder
	b.WriteString(deniedStyle.Render("ACCESS DENIED"))
	b.WriteString("\n")
	b.WriteString(d.Label)
	b.WriteString("\n")
	b.WriteString(d.Message)
	b.WriteString("\n")
	fmt.Fprintf(&b, "Return to %s", d.ReturnLabel)
	return deniedBorder.Render(b.String()) + "\n"
}

func renderPage(p *views.Page) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render(p.Title))
	if !p.Editable {
		b.WriteString(lockedStyle.Render("  (read-only)"))
	}
	b.WriteString("\n")
	if p.Subtitle != "" {
		b.WriteString(helpStyle.Render(p.Subtitle))
		b.WriteString("\n")
	}
	if p.Banner != "" {
		b.WriteString(bannerStyle.Render(p.Banner))
		b.WriteString("\n")
	}
	if p.Notice != "" {
		b.WriteString(statusStyle.Render(p.Notice))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	switch body := p.Body.(type) {
	case views.DashboardBody:
		renderDashboard(&b, body)
	case views.EditorBody:
		renderEditor(&b, body)
	case views.BoardBody:
		renderBoard(&b, body)
	case views.CommunityBody:
		renderCommunity(&b, body)
	case views.HubBody:
		renderHub(&b, body)
	case views.SettingsBody:
		renderSettings(&b, body)
	}
	return b.String()
}

func renderDashboard(b *strings.Builder, body views.DashboardBody) {
	for _, s := range body.Stats {
		fmt.Fprintf(b, "%-24s %s\n", s.Label, s.Value)
	}
	if body.Host.Available {
		fmt.Fprintf(b, "%-24s %.1f%% cpu, %.1f%% memory\n", "Host load", body.Host.CPUPercent, body.Host.MemoryPercent)
	}
	if len(body.History) > 0 {
		b.WriteString("\n")
		b.WriteString(headerStyle.Render(fmt.Sprintf("%-6s %8s %8s", "Day", "Threats", "Blocked")))
		b.WriteString("\n")
		for _, p := range body.History {
			fmt.Fprintf(b, "%-6s %8d %8d\n", p.Day, p.Threats, p.Blocked)
		}
	}
}

func renderEditor(b *strings.Builder, body views.EditorBody) {
	title := body.Title
	if title == "" {
		title = "Untitled"
	}
	fmt.Fprintf(b, "%s\n%d words, %d chars", title, body.Words, body.Chars)
	switch {
	case body.Polishing:
		b.WriteString(", polishing")
	case body.Dirty:
		b.WriteString(", unsaved")
	case body.LastSaved != nil:
		fmt.Fprintf(b, ", saved %s", body.LastSaved.Format("15:04:05"))
	}
	b.WriteString("\n\n")
	b.WriteString(body.Content)
	b.WriteString("\n")
}

func renderBoard(b *strings.Builder, body views.BoardBody) {
	for _, col := range body.Columns {
		b.WriteString(headerStyle.Render(fmt.Sprintf("%s (%d)", col.Title, len(col.Tasks))))
		b.WriteString("\n")
		for _, t := range col.Tasks {
			fmt.Fprintf(b, "  [%s] %s\n", t.Priority, t.Title)
		}
	}
}

func renderCommunity(b *strings.Builder, body views.CommunityBody) {
	for _, p := range body.Posts {
		line := fmt.Sprintf("%s (%s) %s", p.Author, p.Badge, p.Age)
		if p.Flagged {
			line += deniedStyle.Render(" flagged")
		}
		b.WriteString(headerStyle.Render(line))
		b.WriteString("\n")
		b.WriteString(p.Content)
		fmt.Fprintf(b, "\n%d likes, %d comments\n\n", p.Likes, p.Comments)
	}
}

func renderHub(b *strings.Builder, body views.HubBody) {
	fmt.Fprintf(b, "Scan: %s\n", body.State)
	switch body.State {
	case views.ScanFailed:
		b.WriteString(deniedStyle.Render(body.Reason))
		b.WriteString("\n")
		return
	case views.ScanCompleted:
	default:
		return
	}

	if body.Health != nil {
		fmt.Fprintf(b, "Health score: %d\n", *body.Health)
	}
	if len(body.Findings) == 0 {
		b.WriteString(okStyle.Render("No vulnerabilities found."))
		b.WriteString("\n")
		return
	}
	fmt.Fprintf(b, "critical %d  high %d  medium %d  low %d\n\n",
		body.Counts.Critical, body.Counts.High, body.Counts.Medium, body.Counts.Low)

	for _, f := range body.Findings {
		sev := severityStyles[f.Severity].Render(strings.ToUpper(string(f.Severity)))
		fmt.Fprintf(b, "%s %s (line %s, %s)\n", sev, f.VulnerabilityName, f.DisplayLine(), f.DisplayCWE())
		b.WriteString(f.Description)
		b.WriteString("\n")
		if f.RemediationCode != "" {
			fix, err := views.Highlight(f.RemediationCode, views.FormatTerminal)
			if err != nil {
				fix = f.RemediationCode
			}
			b.WriteString(fix)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
}

func renderSettings(b *strings.Builder, body views.SettingsBody) {
	for _, t := range body.Toggles {
		fmt.Fprintf(b, "%-28s %s\n", t.Label, onOff(t.Enabled))
	}
	fmt.Fprintf(b, "%-28s %s\n", "Log retention", body.Retention)
	for _, r := range body.Routes {
		fmt.Fprintf(b, "%-28s %s\n", "Alerts via "+r.Label, onOff(r.Enabled))
	}
	if body.Pending {
		b.WriteString(statusStyle.Render("Unapplied changes"))
		b.WriteString("\n")
	}
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}
