package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/bringyour/byctl/internal/api"
)

const (
	nameWidth    = 24
	idWidth      = 10
	provideWidth = 20
	statusWidth  = 9
)

// View implements tea.Model.
func (m Model) View() string {
	styles := m.theme.Styles()

	var b strings.Builder
	b.WriteString(m.renderHeader(styles))
	b.WriteString("\n\n")
	b.WriteString(m.renderDevices(styles))
	if notices := m.renderNotices(styles); notices != "" {
		b.WriteString("\n")
		b.WriteString(notices)
	}
	b.WriteString("\n")
	b.WriteString(styles.Footer.Render(m.help.View(m.keys)))
	return b.String()
}

func (m Model) renderHeader(styles Styles) string {
	title := "byctl"
	if m.networkName != "" {
		title += " · " + m.networkName
	}
	parts := []string{styles.AccentText.Bold(true).Render(title)}

	snap := m.snapshot
	switch {
	case snap.IsOffline():
		parts = append(parts, styles.DangerText.Render("offline"))
		if snap.LastError != nil {
			parts = append(parts, styles.MutedText.Render(truncate(snap.LastError.Error(), 60)))
		}
	case snap.LastError != nil:
		parts = append(parts, styles.WarningText.Render("refresh failed, retrying"))
	case !snap.HasDevices:
		parts = append(parts, styles.MutedText.Render("loading devices"))
	default:
		parts = append(parts, styles.Text.Render(fmt.Sprintf("%d devices", len(snap.Devices))))
	}
	if !snap.LastUpdated.IsZero() {
		parts = append(parts, styles.MutedText.Render("updated "+humanize.Time(snap.LastUpdated)))
	}
	return styles.Header.Render(strings.Join(parts, "  "))
}

func (m Model) renderDevices(styles Styles) string {
	if !m.snapshot.HasDevices {
		return styles.MutedText.Render("  " + m.spinner.View() + " waiting for the first refresh")
	}
	if len(m.snapshot.Devices) == 0 {
		return styles.MutedText.Render("  No devices on this network. Add one with `byctl device add`.")
	}

	header := "  " + padRight("NAME", nameWidth) + " " + padRight("CLIENT ID", idWidth) + " " +
		padRight("PROVIDE", provideWidth) + " " + padRight("STATUS", statusWidth) + " UPTIME 24H"
	rows := []string{styles.MutedText.Bold(true).Render(header)}

	for i, d := range m.snapshot.Devices {
		rows = append(rows, m.renderRow(styles, i, d))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func (m Model) renderRow(styles Styles, i int, d api.Device) string {
	marker := "  "
	if m.snapshot.Pending[d.ClientID] {
		marker = m.spinner.View() + " "
	}

	name := padRight(truncate(d.Name(), nameWidth), nameWidth)
	id := padRight(shortID(d.ClientID), idWidth)
	mode := styles.ModeStyle(d.ProvideMode).Render(padRight(d.ProvideMode.Label(), provideWidth))

	status := styles.MutedText.Render(padRight("offline", statusWidth))
	if d.Online() {
		status = styles.SuccessText.Render(padRight("online", statusWidth))
	}

	uptime := "-"
	if p, ok := m.snapshot.Provider(d.ClientID); ok {
		uptime = fmt.Sprintf("%.1fh", p.UptimeLast24h)
	}

	line := marker + name + " " + id + " " + mode + " " + status + " " + uptime
	if i == m.selected {
		return styles.Selected.Render(line)
	}
	return line
}

func (m Model) renderNotices(styles Styles) string {
	if len(m.notices) == 0 {
		return ""
	}
	lines := make([]string, 0, len(m.notices))
	for _, n := range m.notices {
		if n.err {
			lines = append(lines, styles.DangerText.Render("  ✗ "+n.text))
			continue
		}
		lines = append(lines, styles.SuccessText.Render("  ✓ "+n.text))
	}
	return strings.Join(lines, "\n")
}
