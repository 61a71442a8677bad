package app

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/kyleking/gh-prwatch/internal/ui"
	"github.com/kyleking/gh-prwatch/internal/watcher"
)

// View implements tea.Model.
func (a *App) View() string {
	if a.width == 0 {
		return "Loading..."
	}

	var b strings.Builder

	b.WriteString(ui.TitleStyle.Render("gh prwatch"))
	b.WriteString(" ")
	b.WriteString(ui.SubtitleStyle.Render(fmt.Sprintf("%d PRs across %d repos", len(a.prs), len(a.watcher.Repos()))))
	b.WriteString("\n\n")

	if a.filtering {
		b.WriteString(a.filterInput.View())
		b.WriteString("\n\n")
	} else if a.filter != "" {
		b.WriteString(ui.SubtitleStyle.Render("filter: " + a.filter))
		b.WriteString("\n\n")
	}

	listWidth := a.width / 2
	feedWidth := a.width - listWidth

	left := a.renderPRList(listWidth)
	right := a.renderFeed(feedWidth)

	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, left, right))
	b.WriteString("\n")
	b.WriteString(a.renderHelp())

	return b.String()
}

func (a *App) renderPRList(width int) string {
	visible := a.visiblePRs()

	var lines []string

	if len(visible) == 0 {
		lines = append(lines, ui.SubtitleStyle.Render("No pull requests"))
	}

	for i, pr := range visible {
		line := formatPRLine(pr)
		if pr.Status != "" {
			line += " " + ui.StatusStyle(pr.Status).Render("("+pr.Status+")")
		}

		if i == a.cursor {
			line = ui.SelectedStyle.Render("> " + line)
		} else {
			line = ui.NormalStyle.Render("  " + line)
		}

		lines = append(lines, line)
	}

	return ui.PaneStyle(width, a.paneHeight(), true).Render(strings.Join(lines, "\n"))
}

func (a *App) renderFeed(width int) string {
	lines := a.feed
	if visible := a.paneHeight() - 2; len(lines) > visible && visible > 0 {
		lines = lines[len(lines)-visible:]
	}

	content := strings.Join(lines, "\n")
	if content == "" {
		content = ui.SubtitleStyle.Render("No events yet")
	}

	return ui.PaneStyle(width, a.paneHeight(), false).Render(content)
}

func (a *App) renderHelp() string {
	var parts []string
	for _, binding := range a.keys.ShortHelp() {
		parts = append(parts, binding.Help().Key+" "+binding.Help().Desc)
	}

	return ui.HelpStyle.Render(strings.Join(parts, " • "))
}

func (a *App) paneHeight() int {
	height := a.height - 6
	if height < 5 {
		height = 5
	}

	return height
}

func formatPRLine(pr watcher.WatchedPR) string {
	marker := ""
	if pr.PR.Draft {
		marker = " [draft]"
	}

	return fmt.Sprintf("%s#%d%s %s", pr.Repo, pr.PR.Number, marker, truncate(pr.PR.Title, 50))
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}

	return s[:limit-1] + "…"
}
