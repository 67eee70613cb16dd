package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/samber/lo"

	"codeberg.org/vestilook/server/internal/history"
	"codeberg.org/vestilook/server/internal/vton"
)

const historyPageSize = 10

// status filters cycled with f
var historyFilters = []struct {
	label    string
	statuses []vton.Status
}{
	{label: "all"},
	{label: "in progress", statuses: []vton.Status{vton.StatusQueued, vton.StatusProcessing}},
	{label: "succeeded", statuses: []vton.Status{vton.StatusSucceeded}},
	{label: "failed", statuses: []vton.Status{vton.StatusFailed}},
}

// returns a history screen starting at the newest page
func NewHistoryModel(api API) *HistoryModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = warningStyle

	return &HistoryModel{
		api:     api,
		filters: history.Filters{PageSize: historyPageSize},
		spinner: s,
	}
}

func (m *HistoryModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.load(""))
}

// fetches the page that starts after cursor
func (m *HistoryModel) load(cursor string) tea.Cmd {
	m.loading = true

	api, filters := m.api, m.filters.WithCursor(cursor)

	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		page, err := api.ListGenerations(ctx, filters)
		return pageMsg{page: page, err: err}
	}
}

func (m *HistoryModel) Update(msg tea.Msg) (*HistoryModel, tea.Cmd) {
	switch msg := msg.(type) {
	case pageMsg:
		m.loading = false
		m.err = msg.err

		if msg.err == nil {
			m.page = msg.page
			m.selected = 0
		}

		return m, nil

	case spinner.TickMsg:
		if !m.loading {
			return m, nil
		}

		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if m.loading {
			return m, nil
		}

		switch msg.String() {
		case "up", "k":
			if m.selected > 0 {
				m.selected--
			}

		case "down", "j":
			if m.page != nil && m.selected < len(m.page.Items)-1 {
				m.selected++
			}

		case "n", "right":
			if m.page == nil || m.page.NextCursor == "" {
				return m, nil
			}

			m.cursors.Push(m.filters.Cursor)
			m.filters = m.filters.WithCursor(m.page.NextCursor)
			return m, tea.Batch(m.spinner.Tick, m.load(m.filters.Cursor))

		case "p", "left":
			prev, ok := m.cursors.Pop()
			if !ok {
				return m, nil
			}

			m.filters = m.filters.WithCursor(prev)
			return m, tea.Batch(m.spinner.Tick, m.load(prev))

		case "f":
			m.filter = (m.filter + 1) % len(historyFilters)
			m.filters.Reset()
			m.filters.PageSize = historyPageSize
			m.filters.Statuses = historyFilters[m.filter].statuses
			m.cursors.Reset()
			return m, tea.Batch(m.spinner.Tick, m.load(""))

		case "enter":
			if m.page == nil || len(m.page.Items) == 0 {
				return m, nil
			}

			jobID := m.page.Items[m.selected].ID
			return m, func() tea.Msg { return EnterWatchMsg{jobID: jobID} }
		}
	}

	return m, nil
}

func (m *HistoryModel) View() string {
	var b strings.Builder

	b.WriteString(headerStyle.Render("history"))
	b.WriteString("  ")
	b.WriteString(infoStyle.Render(fmt.Sprintf("filter: %s, page %d", historyFilters[m.filter].label, m.cursors.Len()+1)))
	b.WriteString("\n\n")

	switch {
	case m.loading:
		b.WriteString(m.spinner.View() + " loading...")
		b.WriteString("\n")

	case m.err != nil:
		b.WriteString(errorStyle.Render(fmt.Sprintf("could not load history: %v", m.err)))
		b.WriteString("\n")

		if hint := errorHint(m.err); hint != "" {
			b.WriteString(infoStyle.Render(hint))
			b.WriteString("\n")
		}

	case m.page == nil || len(m.page.Items) == 0:
		b.WriteString(infoStyle.Render("no generations yet"))
		b.WriteString("\n")

	default:
		for i, item := range m.page.Items {
			line := historyLine(item)
			if i == m.selected {
				b.WriteString(menuItemSelectedStyle.Render("> " + line))
			} else {
				b.WriteString(menuItemStyle.Render("  " + line))
			}
			b.WriteString("\n")
		}
	}

	help := []string{"↑/↓ select", "enter to watch", "f to filter"}
	if m.page != nil && m.page.NextCursor != "" {
		help = append(help, "n next page")
	}
	if m.cursors.Len() > 0 {
		help = append(help, "p previous page")
	}
	help = append(help, "esc to go back")

	b.WriteString(helpStyle.Render(strings.Join(help, " · ")))

	return b.String()
}

func historyLine(s history.Summary) string {
	state := string(s.Status)
	if s.ErrorCode != nil {
		state += " (" + *s.ErrorCode + ")"
	}

	return fmt.Sprintf("%s  %-26s  %s  %s",
		s.CreatedAt.Local().Format("2006-01-02 15:04"),
		state,
		ratingStars(s.Rating),
		lo.Substring(s.ID, 0, 8),
	)
}
