package tui

import (
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"codeberg.org/vestilook/server/internal/client"
	apierrors "codeberg.org/vestilook/server/internal/errors"
	"codeberg.org/vestilook/server/internal/garment"
	"codeberg.org/vestilook/server/internal/status"
)

func NewApp(cfg Config) *Model {
	if cfg.Interval == nil {
		cfg.Interval = defaultInterval
	}

	if cfg.Garments.MaxBytes == 0 {
		cfg.Garments = garment.DefaultConstraints()
	}

	return &Model{
		state:   StateWelcome,
		config:  cfg,
		welcome: NewWelcome(cfg.Mode, cfg.Stream != nil),
	}
}

func (m *Model) Init() tea.Cmd {
	return nil
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.err != nil {
			if msg.String() == "ctrl+c" {
				return m, tea.Quit
			}

			// any other key dismisses the error
			m.err = nil
			return m, nil
		}

		// only quit from welcome screen
		if msg.String() == "ctrl+c" && m.state == StateWelcome {
			return m, tea.Quit
		}

		// anywhere else, ctrl+c and esc go back to welcome
		if (msg.String() == "ctrl+c" || msg.String() == "esc") && m.state != StateWelcome {
			m.leave()
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		if m.consent != nil {
			m.consent.resize(msg.Width, msg.Height)
		}

	case ErrorMsg:
		m.err = msg.err

		// a watch that never started has nothing to show
		if m.state == StateWatch && m.watch != nil && m.watch.results == nil {
			m.leave()
		}

		return m, nil

	case submitDoneMsg:
		// the screen was left while the submission was running
		if m.state != StateSubmit && msg.selection != nil {
			msg.selection.Release() //nolint:errcheck,gosec // best-effort cleanup
			return m, nil
		}

	case EnterWatchMsg:
		m.leave()
		m.err = nil
		m.state = StateWatch
		m.watch = NewWatchModel(m.config.API, msg.jobID)
		if msg.stream {
			return m, m.watch.Stream(m.config.Stream)
		}

		return m, m.watch.Poll(m.config.Interval)

	case EnterSubmitMsg:
		m.leave()
		m.err = nil
		m.state = StateSubmit
		m.submit = NewSubmitModel(m.config)
		return m, m.submit.Start(msg.path)

	case EnterHistoryMsg:
		m.leave()
		m.err = nil
		m.state = StateHistory
		m.history = NewHistoryModel(m.config.API)
		return m, m.history.Init()

	case EnterConsentMsg:
		m.leave()
		m.err = nil
		m.state = StateConsent
		m.consent = NewConsentModel(m.config.API, m.width, m.height)
		return m, m.consent.Init()
	}

	switch m.state {
	case StateWelcome:
		var cmd tea.Cmd
		m.welcome, cmd = m.welcome.Update(msg)
		return m, cmd

	case StateWatch:
		var cmd tea.Cmd
		m.watch, cmd = m.watch.Update(msg)
		return m, cmd

	case StateSubmit:
		var cmd tea.Cmd
		m.submit, cmd = m.submit.Update(msg)
		return m, cmd

	case StateHistory:
		var cmd tea.Cmd
		m.history, cmd = m.history.Update(msg)
		return m, cmd

	case StateConsent:
		var cmd tea.Cmd
		m.consent, cmd = m.consent.Update(msg)
		return m, cmd

	default:
		return m, nil
	}
}

func (m *Model) View() string {
	if m.err != nil {
		return errorView(m.err)
	}

	switch m.state {
	case StateWelcome:
		return m.welcome.View()

	case StateWatch:
		return m.watch.View()

	case StateSubmit:
		return m.submit.View()

	case StateHistory:
		return m.history.View()

	case StateConsent:
		return m.consent.View()

	default:
		return "Unknown state"
	}
}

// stops whatever the current screen has running and returns to welcome
func (m *Model) leave() {
	if m.watch != nil {
		m.watch.Stop()
		m.watch = nil
	}

	if m.submit != nil {
		m.submit.Close()
		m.submit = nil
	}

	m.history = nil
	m.consent = nil
	m.state = StateWelcome
}

func errorView(err error) string {
	var b strings.Builder

	fmt.Fprintf(&b, "\n  Error: %v\n", err)

	if hint := errorHint(err); hint != "" {
		b.WriteString("\n  " + infoStyle.Render(hint) + "\n")
	}

	b.WriteString("\n  Press any key to continue or Ctrl+C to exit\n")

	return b.String()
}

// a next step for errors the user can act on
func errorHint(err error) string {
	if isUnauthorized(err) {
		return reauthHint
	}

	var apiErr *client.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case apierrors.CodeUnauthorized:
			return reauthHint
		case apierrors.CodeQuotaExhausted:
			return "no generations left. wait for your quota to renew."
		case apierrors.CodeTooManyRequests:
			return "too many requests. try again in a minute."
		}

		if apiErr.Retriable() {
			return "this looks temporary. try again."
		}

		return ""
	}

	var fe *status.FetchError
	if errors.As(err, &fe) {
		if fe.Kind == status.KindUnauthorized {
			return reauthHint
		}

		if fe.Retriable {
			return "still retrying in the background."
		}
	}

	return ""
}
