package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/Veraticus/ecofinance-notify/internal/cli"
	"github.com/Veraticus/ecofinance-notify/internal/toast"
	"github.com/Veraticus/ecofinance-notify/internal/tui/themes"
)

// Below this width the center and the toasts are stacked.
const narrowWidth = 80

const toastWidth = 34

// View renders the model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var body string
	toasts := m.renderToasts()
	switch {
	case !m.inbox.CenterOpen():
		body = toasts
	case m.width < narrowWidth:
		body = lipgloss.JoinVertical(lipgloss.Left, toasts, m.renderCenter(m.width-2))
	default:
		center := m.renderCenter(m.width - toastWidth - 4)
		body = lipgloss.JoinHorizontal(lipgloss.Top, center, " ", toasts)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		body,
		m.renderStatusBar(),
		m.help.View(m.keymap),
	)
}

func (m Model) renderHeader() string {
	title := m.theme.Title.UnsetMarginBottom().Render(cli.BellIcon + " Notificações")
	parts := []string{title}
	if n := m.inbox.UnreadCount(); n > 0 {
		parts = append(parts, m.theme.Badge.Render(fmt.Sprintf("%d", n)))
	}
	return lipgloss.JoinHorizontal(lipgloss.Center, strings.Join(parts, " "))
}

func (m Model) renderCenter(width int) string {
	width = max(width, 20)
	var b strings.Builder
	b.WriteString(m.theme.Subtitle.Render(fmt.Sprintf("Filtro: %s", m.filter)))
	b.WriteString("\n")

	if len(m.items) == 0 {
		b.WriteString(lipgloss.NewStyle().Foreground(m.theme.Muted).Render("Nenhuma notificação"))
		return m.theme.Panel.Width(width).Render(b.String())
	}

	// Keep the cursor on screen: header, status bar and help take ~6 rows,
	// each notification two.
	rows := max((m.height-8)/2, 1)
	start := 0
	if m.cursor >= rows {
		start = m.cursor - rows + 1
	}
	end := min(start+rows, len(m.items))

	for i := start; i < end; i++ {
		n := m.items[i]
		line := fmt.Sprintf("%s %s %s",
			cli.StatusIcon(n.Status),
			themes.GetCategoryIcon(string(n.Category)),
			cli.PriorityStyle(n.Priority).Render(truncate(n.Title, width-8)))
		meta := fmt.Sprintf("    %s · %s", n.Timestamp.Format("02/01 15:04"), truncate(n.Message, width-20))
		if i == m.cursor {
			line = m.theme.Selected.Render(line)
		}
		b.WriteString(line + "\n")
		b.WriteString(lipgloss.NewStyle().Foreground(m.theme.Muted).Render(meta))
		if i < end-1 {
			b.WriteString("\n")
		}
	}
	return m.theme.Panel.Width(width).Render(b.String())
}

func (m Model) renderToasts() string {
	var blocks []string
	waiting := 0
	for _, v := range m.views {
		switch v.State {
		case toast.StateQueued:
			waiting++
			continue
		case toast.StateRemoved:
			continue
		}
		blocks = append(blocks, m.renderToast(v))
	}
	if waiting > 0 {
		blocks = append(blocks, lipgloss.NewStyle().Foreground(m.theme.Muted).Render(fmt.Sprintf("+%d na fila", waiting)))
	}
	if len(blocks) == 0 {
		return ""
	}
	return lipgloss.JoinVertical(lipgloss.Right, blocks...)
}

func (m Model) renderToast(v toast.View) string {
	color := cli.ToastColor(v.Type)
	title := lipgloss.NewStyle().Bold(true).Foreground(color).Render(cli.ToastIcon(v.Type) + " " + truncate(v.Title, toastWidth-6))
	if v.Repeats > 0 {
		title += lipgloss.NewStyle().Foreground(m.theme.Muted).Render(fmt.Sprintf(" ×%d", v.Repeats+1))
	}

	lines := []string{title}
	if v.Message != "" {
		lines = append(lines, lipgloss.NewStyle().Width(toastWidth-4).Render(v.Message))
	}
	var hints []string
	if v.HasAction {
		hints = append(hints, "[Enter] "+v.ActionLabel)
	}
	if v.HasRetry {
		hints = append(hints, "[t] Tentar novamente")
	}
	if len(hints) > 0 {
		lines = append(lines, lipgloss.NewStyle().Foreground(m.theme.Primary).Render(strings.Join(hints, "  ")))
	}
	if v.Duration > 0 {
		lines = append(lines, m.bar.ViewAs(v.Progress))
	}

	style := m.theme.ToastBox.BorderForeground(color).Width(toastWidth)
	if v.State == toast.StateExiting {
		style = style.Faint(true)
	}
	return style.Render(strings.Join(lines, "\n"))
}

func (m Model) renderStatusBar() string {
	status := "online"
	if !m.inbox.Online() {
		status = "offline"
	}
	parts := []string{status}
	if q := m.inbox.QueuedCount(); q > 0 {
		parts = append(parts, fmt.Sprintf("%d em espera", q))
	}
	if m.lastFired > 0 {
		parts = append(parts, fmt.Sprintf("%d disparadas na última verificação", m.lastFired))
	}
	if m.lastEvent != nil {
		parts = append(parts, fmt.Sprintf("toast %s", m.lastEvent.Type))
	}
	bar := m.theme.StatusBar.Render(strings.Join(parts, " · "))
	if m.lastError != nil {
		bar += " " + lipgloss.NewStyle().Foreground(m.theme.Error).Render(m.lastError.Error())
	}
	return bar
}

func truncate(s string, n int) string {
	if n <= 1 {
		return ""
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
