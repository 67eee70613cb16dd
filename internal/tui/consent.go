package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"codeberg.org/vestilook/server/internal/consent"
)

const (
	defaultWidth  = 80
	defaultHeight = 24

	// header and footer lines around the policy text
	consentChrome = 8
)

// returns a consent screen sized to the terminal
func NewConsentModel(api API, width, height int) *ConsentModel {
	m := &ConsentModel{api: api, loading: true}
	m.resize(width, height)

	return m
}

func (m *ConsentModel) Init() tea.Cmd {
	api := m.api

	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		doc, err := api.FetchConsent(ctx)
		return consentDocMsg{doc: doc, err: err}
	}
}

func (m *ConsentModel) resize(width, height int) {
	if width <= 0 {
		width = defaultWidth
	}

	if height <= 0 {
		height = defaultHeight
	}

	m.width = width
	m.viewport = viewport.New(width, max(height-consentChrome, 3))

	// word wrap depends on the width, so the renderer is rebuilt too
	renderer, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(max(width-4, 20)),
	)
	if err == nil {
		m.renderer = renderer
	}

	m.render()
}

// fills the viewport with the policy as markdown
func (m *ConsentModel) render() {
	if m.doc == nil {
		return
	}

	content := m.doc.PolicyContent
	if m.renderer != nil {
		if out, err := m.renderer.Render(content); err == nil {
			content = out
		}
	}

	m.viewport.SetContent(content)
	m.ready = true
}

func (m *ConsentModel) accept() tea.Cmd {
	if m.doc == nil || m.loading {
		return nil
	}

	api, version := m.api, m.doc.RequiredVersion
	m.loading = true

	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		receipt, err := api.AcceptConsent(ctx, version)
		return consentAcceptedMsg{receipt: receipt, err: err}
	}
}

func (m *ConsentModel) Update(msg tea.Msg) (*ConsentModel, tea.Cmd) {
	switch msg := msg.(type) {
	case consentDocMsg:
		m.loading = false
		m.err = msg.err

		if msg.err == nil {
			m.doc = msg.doc
			m.render()
		}

		return m, nil

	case consentAcceptedMsg:
		m.loading = false
		m.err = msg.err

		if msg.err == nil {
			m.receipt = msg.receipt
			m.doc.State = m.doc.State.Merge(*msg.receipt)
		}

		return m, nil

	case tea.KeyMsg:
		if msg.String() == "a" && m.doc != nil && !m.doc.IsCompliant {
			return m, m.accept()
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)

	return m, cmd
}

func (m *ConsentModel) View() string {
	var b strings.Builder

	b.WriteString(headerStyle.Render("consent policy"))
	b.WriteString("\n")

	if m.doc == nil {
		switch {
		case m.err != nil:
			b.WriteString(errorStyle.Render(fmt.Sprintf("could not load the policy: %v", m.err)))
			b.WriteString("\n")

			if hint := errorHint(m.err); hint != "" {
				b.WriteString(infoStyle.Render(hint))
				b.WriteString("\n")
			}
		default:
			b.WriteString(infoStyle.Render("loading..."))
			b.WriteString("\n")
		}

		b.WriteString(helpStyle.Render("esc to go back."))
		return b.String()
	}

	b.WriteString(infoStyle.Render(fmt.Sprintf("version %s, updated %s",
		m.doc.RequiredVersion, formatTime(&m.doc.Metadata.UpdatedAt))))
	b.WriteString("\n")

	if m.ready {
		b.WriteString(m.viewport.View())
		b.WriteString("\n")
	}

	b.WriteString(consentStatus(m.doc.State))
	b.WriteString("\n")

	if m.receipt != nil {
		verb := "accepted"
		if m.receipt.Status == consent.ReceiptUpdated {
			verb = "acceptance renewed"
		}

		b.WriteString(successStyle.Render(fmt.Sprintf("%s version %s", verb, m.receipt.Version)))
		b.WriteString("\n")
	}

	if m.err != nil {
		b.WriteString(errorStyle.Render(fmt.Sprintf("could not accept: %v", m.err)))
		b.WriteString("\n")

		if hint := errorHint(m.err); hint != "" {
			b.WriteString(infoStyle.Render(hint))
			b.WriteString("\n")
		}
	}

	help := "↑/↓ to scroll. esc to go back."
	if !m.doc.IsCompliant {
		help = "a to accept. " + help
	}

	b.WriteString(helpStyle.Render(help))

	return b.String()
}

func consentStatus(s consent.State) string {
	switch {
	case s.IsCompliant:
		return successStyle.Render(fmt.Sprintf("you accepted version %s on %s", s.AcceptedVersion, formatTime(s.AcceptedAt)))
	case s.AcceptedVersion != "":
		return warningStyle.Render(fmt.Sprintf("you accepted version %s; version %s needs your consent", s.AcceptedVersion, s.RequiredVersion))
	default:
		return warningStyle.Render("you have not accepted the policy yet")
	}
}
