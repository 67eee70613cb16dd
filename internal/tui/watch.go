package tui

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"codeberg.org/vestilook/server/internal/status"
)

// returns a watch screen for one job
func NewWatchModel(api API, jobID string) *WatchModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = warningStyle

	return &WatchModel{
		api:     api,
		jobID:   jobID,
		now:     time.Now,
		spinner: s,
	}
}

// follows the job by polling the REST API
func (m *WatchModel) Poll(interval status.IntervalPolicy) tea.Cmd {
	ctx, cancel := context.WithCancel(context.Background())
	refresher := status.NewRefresher(m.jobID, m.api)

	results := make(chan status.Result)

	handle := status.StartPolling(refresher, interval, func(res status.Result) {
		select {
		case results <- res:
		case <-ctx.Done():
		}
	})

	// no more results once the poll loop has exited
	go func() {
		<-handle.Done()
		close(results)
	}()

	m.source = "polling"
	m.results = results
	m.stop = func() {
		cancel()
		handle.Stop()
		refresher.Close()
	}

	return tea.Batch(m.spinner.Tick, m.next(), m.tick())
}

// follows the job over the websocket stream
func (m *WatchModel) Stream(opener Opener) tea.Cmd {
	if opener == nil {
		return errorCmd(errors.New("live streaming is not configured"))
	}

	ctx, cancel := context.WithCancel(context.Background())

	results, err := opener.Open(ctx, m.jobID)
	if err != nil {
		cancel()
		return errorCmd(err)
	}

	m.source = "stream"
	m.results = results
	m.stop = cancel

	return tea.Batch(m.spinner.Tick, m.next(), m.tick())
}

// stops polling or closes the stream; safe to call more than once
func (m *WatchModel) Stop() {
	if m.stop != nil {
		m.stop()
		m.stop = nil
	}
}

// waits for the next result
func (m *WatchModel) next() tea.Cmd {
	results := m.results

	return func() tea.Msg {
		res, ok := <-results
		if !ok {
			return watchDoneMsg{from: results}
		}

		return watchResultMsg{from: results, result: res}
	}
}

func (m *WatchModel) tick() tea.Cmd {
	results := m.results

	return tea.Tick(time.Second, func(time.Time) tea.Msg {
		return watchTickMsg{from: results}
	})
}

func (m *WatchModel) Update(msg tea.Msg) (*WatchModel, tea.Cmd) {
	switch msg := msg.(type) {
	case watchResultMsg:
		if msg.from != m.results {
			return m, nil
		}

		if msg.result.Err != nil {
			m.lastErr = status.NewFetchError(msg.result.Err)
			return m, m.next()
		}

		m.lastErr = nil
		m.view = msg.result.View
		m.reportedAt = m.now()

		return m, m.next()

	case watchDoneMsg:
		if msg.from != m.results {
			return m, nil
		}

		m.done = true
		return m, nil

	case watchTickMsg:
		if msg.from != m.results || m.done {
			return m, nil
		}

		return m, m.tick()

	case ratedMsg:
		if msg.err != nil {
			m.rateErr = msg.err
			return m, nil
		}

		m.rateErr = nil
		if m.view != nil {
			m.view.Rating = msg.job.Rating
		}

		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if r, err := strconv.Atoi(msg.String()); err == nil && r >= 1 && r <= 5 {
			return m, m.rate(r)
		}
	}

	return m, nil
}

func (m *WatchModel) rate(rating int) tea.Cmd {
	if m.view == nil || !m.view.Actions.CanRate.Allowed {
		return nil
	}

	api, jobID := m.api, m.jobID

	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		job, err := api.RateGeneration(ctx, jobID, rating)
		return ratedMsg{job: job, err: err}
	}
}

// the countdown keeps running locally between refreshes
func (m *WatchModel) countdown() *status.Countdown {
	if m.view == nil || m.view.Countdown == nil {
		return nil
	}

	return status.NewCountdown(m.reportedAt, m.view.Countdown.RemainingSeconds, m.now())
}

func (m *WatchModel) View() string {
	var b strings.Builder

	b.WriteString(headerStyle.Render("generation " + m.jobID))
	b.WriteString("\n")
	b.WriteString(infoStyle.Render("via " + m.source))
	b.WriteString("\n\n")

	if m.view == nil {
		if m.lastErr != nil {
			b.WriteString(errorStyle.Render(m.lastErr.Error()))
			b.WriteString("\n")
		} else {
			b.WriteString(m.spinner.View() + " loading status...")
			b.WriteString("\n")
		}

		b.WriteString(m.footer())
		return b.String()
	}

	v := m.view

	label := stateStyle(v.State).Render(v.Label)
	if !m.done && !status.IsFinal(v.Status) {
		label = m.spinner.View() + " " + label
	}

	b.WriteString(label)
	b.WriteString("\n")
	b.WriteString(v.Description)
	b.WriteString("\n\n")

	b.WriteString(timelineView(v.Timeline))
	b.WriteString("\n")

	if cd := m.countdown(); cd != nil {
		if cd.IsExpired {
			b.WriteString(infoStyle.Render("taking longer than usual..."))
		} else {
			b.WriteString(fmt.Sprintf("about %s left", cd.Formatted))
		}
		b.WriteString("\n\n")
	}

	if v.Failure != nil {
		b.WriteString(failureView(v.Failure))
		b.WriteString("\n")
	}

	// polled views carry only the stored path; streamed ones are signed
	if res := v.Assets.Result; res != nil && v.State == status.StateSucceeded {
		target := res.Path
		if res.Available && res.URL != "" {
			target = res.URL
		}

		b.WriteString(successStyle.Render("result: ") + target)
		b.WriteString("\n")
		b.WriteString(fmt.Sprintf("available until %s", formatTime(v.ExpiresAt)))
		b.WriteString("\n\n")
	}

	if v.Actions.CanRate.Allowed || v.Rating != nil {
		b.WriteString("rating: " + ratingStars(v.Rating))
		b.WriteString("\n")
	}

	if m.rateErr != nil {
		b.WriteString(errorStyle.Render(fmt.Sprintf("could not save rating: %v", m.rateErr)))
		b.WriteString("\n")
	}

	if m.lastErr != nil {
		b.WriteString(warningStyle.Render(fmt.Sprintf("refresh failed: %v", m.lastErr.Err)))
		b.WriteString("\n")

		if hint := errorHint(m.lastErr); hint != "" {
			b.WriteString(infoStyle.Render(hint))
			b.WriteString("\n")
		}
	}

	b.WriteString(m.footer())

	return b.String()
}

func (m *WatchModel) footer() string {
	help := "esc to go back."
	if m.view != nil && m.view.Actions.CanRate.Allowed {
		help = "press 1-5 to rate. " + help
	}

	return helpStyle.Render(help)
}

func timelineView(steps []status.Step) string {
	var b strings.Builder

	for _, s := range steps {
		marker := "○"
		style := menuItemStyle

		switch {
		case s.IsCurrent:
			marker = "●"
			style = menuItemSelectedStyle
		case s.IsCompleted:
			marker = "✓"
		}

		line := fmt.Sprintf("%s %s", marker, s.Label)
		if s.At != nil {
			line += "  " + infoStyle.Render(s.At.Local().Format("15:04:05"))
		}

		b.WriteString(style.Render(line))
		b.WriteString("\n")
	}

	return b.String()
}

func failureView(f *status.Failure) string {
	var b strings.Builder

	b.WriteString(errorStyle.Render(f.Title))
	b.WriteString("\n")
	b.WriteString(f.Description)
	b.WriteString("\n")

	if f.Hint != "" {
		b.WriteString(infoStyle.Render(f.Hint))
		b.WriteString("\n")
	}

	for _, a := range f.Actions {
		switch a {
		case status.ActionRetry:
			b.WriteString("  - submit the garment again\n")
		case status.ActionReuploadGarment:
			b.WriteString("  - upload a different garment photo\n")
		case status.ActionContactSupport:
			if f.SupportURL != "" {
				b.WriteString("  - contact support: " + f.SupportURL + "\n")
			} else {
				b.WriteString("  - contact support\n")
			}
		}
	}

	return borderStyle.Render(strings.TrimRight(b.String(), "\n"))
}
