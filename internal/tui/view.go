package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"tinyimg/internal/result"
	"tinyimg/pkg/utils"
)

const maxNameWidth = 36

func (m model) View() string {
	var b strings.Builder
	b.WriteString(m.headerText())

	if m.dropping {
		b.WriteString(dropStyle.Render(m.drop.View()) + "\n\n")
	}

	if len(m.alert) > 0 {
		b.WriteString(m.renderAlert() + "\n")
		return b.String()
	}

	b.WriteString(m.renderList())

	if m.st == statusDone {
		b.WriteString("\n" + m.renderTotals() + "\n")
		b.WriteString(m.renderButtons() + "\n")
	}
	if m.notice != "" {
		style := noticeStyle
		if m.noticeErr {
			style = errorStyle
		}
		b.WriteString("\n" + style.Render(m.notice) + "\n")
	}
	if m.showHelp {
		b.WriteString("\n" + m.helpText())
	}
	return b.String()
}

func (m *model) headerText() string {
	title := titleStyle.Render("tinyimg")
	switch m.st {
	case statusEmpty:
		return fmt.Sprintf("%s  Drop your .png or .jpg files here! Paste paths or press a\nPress ? for help\n\n", title)
	case statusCompressing:
		return fmt.Sprintf("%s  Compressing %s  %d/%d done  | Keys: ? help, a add, ↑↓ move, enter save, q quit\n\n",
			title, m.sp.View(), m.totals.Completed+m.totals.Failed, m.totals.Entries)
	default:
		return fmt.Sprintf("%s  %d files  | Keys: ? help, a add, ↑↓ move, enter save, z zip, q quit\n\n",
			title, m.totals.Entries)
	}
}

func (m *model) renderList() string {
	if len(m.entries) == 0 {
		return ""
	}
	nameW := 0
	for _, e := range m.entries {
		if w := lipgloss.Width(e.FileName); w > nameW {
			nameW = w
		}
	}
	if nameW > maxNameWidth {
		nameW = maxNameWidth
	}

	var b strings.Builder
	start := m.scrollOffset
	end := start + m.visibleHeight()
	if end > len(m.entries) {
		end = len(m.entries)
	}
	for i := start; i < end; i++ {
		e := m.entries[i]
		prefix := "  "
		if i == m.cursor {
			prefix = cursorStyle.Render(">") + " "
		}
		name := truncate(e.FileName, nameW)
		name += strings.Repeat(" ", nameW-lipgloss.Width(name))

		line := prefix + name + "  " +
			sizeStyle.Render(fmt.Sprintf("%9s", utils.FileSizeString(e.OriginalSize))) + "  " +
			m.renderBar(e)
		if e.Status.Terminal() {
			line += "  " + sizeStyle.Render(fmt.Sprintf("%9s", utils.FileSizeString(e.New.Size()))) +
				"  " + percentStyle.Render(utils.PercentString(e.PercentSaved))
		}
		b.WriteString(line + "\n")
	}
	return b.String()
}

func (m *model) renderBar(e result.Entry) string {
	switch e.Status {
	case result.StatusComplete:
		return barCompleteStyle.Render(fmt.Sprintf("%-16s", "Complete!"))
	case result.StatusFailed:
		return barErrorStyle.Render(fmt.Sprintf("%-16s", "Failed"))
	default:
		return barCompressingStyle.Render(fmt.Sprintf("%-16s", "Compressing..."))
	}
}

func (m *model) renderTotals() string {
	t := m.totals
	headline := fmt.Sprintf("We just saved you %s %s total",
		highlightStyle.Render(fmt.Sprintf("%.2f%%", t.PercentSaved)),
		utils.FileSizeString(t.BytesSaved))
	detail := fmt.Sprintf("%s -> %s (%.2f%% of all bytes)",
		utils.FileSizeString(t.OriginalBytes), utils.FileSizeString(t.NewBytes), t.AggregatePercent())
	if t.Failed > 0 {
		detail += fmt.Sprintf(", %d failed", t.Failed)
	}
	return headline + "\n" + mutedStyle.Render(detail)
}

func (m *model) renderButtons() string {
	buttons := []string{buttonStyle.Render("[z] Download All")}
	if m.opts.CloudEnabled {
		buttons = append(buttons, "  ", buttonStyle.Render("[b] Save to Dropbox"))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, buttons...)
}

func (m *model) renderAlert() string {
	body := strings.Join(m.alert, "\n") + "\n\n" + mutedStyle.Render("Press any key to continue")
	return alertStyle.Render(body)
}

func (m *model) helpText() string {
	lines := []string{
		"Help (press ? to close):",
		"  a/o       Open the drop area (paste or type paths, enter to add)",
		"  ↑/k, ↓/j  Move cursor",
		"  enter/d   Save the selected file",
		"  z         Save all files as a zip archive",
		"  b         Save all files to Dropbox",
		"  q/esc     Quit",
	}
	return lipgloss.NewStyle().Padding(0, 1).Border(lipgloss.NormalBorder()).Render(strings.Join(lines, "\n"))
}

func truncate(s string, w int) string {
	if lipgloss.Width(s) <= w {
		return s
	}
	r := []rune(s)
	for len(r) > 0 && lipgloss.Width(string(r))+1 > w {
		r = r[:len(r)-1]
	}
	return string(r) + "…"
}

var (
	titleStyle          = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99"))
	cursorStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("99"))
	sizeStyle           = lipgloss.NewStyle().Foreground(lipgloss.Color("45"))
	percentStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	barCompressingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("227"))
	barCompleteStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	barErrorStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	highlightStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("227")).Bold(true)
	mutedStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	noticeStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errorStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	buttonStyle         = lipgloss.NewStyle().Padding(0, 1).Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("99"))
	dropStyle           = lipgloss.NewStyle().Padding(0, 1).Border(lipgloss.DoubleBorder()).BorderForeground(lipgloss.Color("45"))
	alertStyle          = lipgloss.NewStyle().Padding(1, 2).Border(lipgloss.ThickBorder()).BorderForeground(lipgloss.Color("196"))
)
