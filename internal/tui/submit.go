package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"codeberg.org/vestilook/server/internal/garment"
	"codeberg.org/vestilook/server/internal/pipeline"
	"codeberg.org/vestilook/server/internal/vton"
)

// returns a submit screen using the configured constraints
func NewSubmitModel(cfg Config) *SubmitModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = warningStyle

	var opts []garment.Option
	if cfg.PreviewDir != "" {
		opts = append(opts, garment.WithPreviews(garment.TempPreviews{Dir: cfg.PreviewDir}))
	}

	return &SubmitModel{
		api:       cfg.API,
		validator: garment.NewValidator(cfg.Garments, opts...),
		pipeline:  pipeline.New(cfg.API, cfg.API),
		retain:    cfg.RetainForHours,
		spinner:   s,
	}
}

// validates the file at path and submits it
func (m *SubmitModel) Start(path string) tea.Cmd {
	m.path = path
	m.busy = true
	m.err = nil
	m.result = nil

	return tea.Batch(m.spinner.Tick, m.run())
}

func (m *SubmitModel) run() tea.Cmd {
	api, validator, p := m.api, m.validator, m.pipeline
	path, retain, prev := m.path, m.retain, m.selection

	return func() tea.Msg {
		f, err := readGarment(path, validator.Constraints().MaxBytes)
		if err != nil {
			return submitDoneMsg{selection: prev, err: err}
		}

		selection, err := validator.Replace(prev, f)
		if err != nil && selection == prev {
			return submitDoneMsg{selection: prev, err: err}
		}

		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		profile, err := api.FetchProfile(ctx)
		if err != nil {
			return submitDoneMsg{selection: selection, err: err}
		}

		result, err := p.Run(ctx, pipeline.Request{
			Garment:        selection,
			RetainForHours: retain,
		}, profile)

		return submitDoneMsg{profile: profile, selection: selection, result: result, err: err}
	}
}

// reads at most limit+1 bytes so oversized files still fail validation
// without being loaded whole
func readGarment(path string, limit int64) (*garment.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open garment: %w", err)
	}
	defer f.Close() //nolint:errcheck,gosec // G104: read-only file

	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read garment: %w", err)
	}

	declared := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if mediaType, _, err := mime.ParseMediaType(declared); err == nil {
		declared = mediaType
	}

	return &garment.File{
		Name:        filepath.Base(path),
		ContentType: declared,
		Data:        data,
	}, nil
}

// releases the garment preview
func (m *SubmitModel) Close() {
	if m.selection != nil {
		m.selection.Release() //nolint:errcheck,gosec // best-effort cleanup
		m.selection = nil
	}
}

func (m *SubmitModel) Update(msg tea.Msg) (*SubmitModel, tea.Cmd) {
	switch msg := msg.(type) {
	case submitDoneMsg:
		m.busy = false
		m.selection = msg.selection
		m.result = msg.result
		m.err = msg.err

		if msg.profile != nil {
			m.profile = msg.profile
		}

		return m, nil

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}

		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if m.busy {
			return m, nil
		}

		switch msg.String() {
		case "w":
			if m.result != nil {
				jobID := m.result.JobID
				return m, func() tea.Msg { return EnterWatchMsg{jobID: jobID} }
			}

		case "r":
			if m.err != nil && retriable(m.err) {
				return m, m.Start(m.path)
			}
		}
	}

	return m, nil
}

func retriable(err error) bool {
	var pe *pipeline.Error
	if errors.As(err, &pe) {
		return pe.Retriable
	}

	// local read and validation failures are fixed by picking another file
	return false
}

func (m *SubmitModel) View() string {
	var b strings.Builder

	b.WriteString(headerStyle.Render("submit " + filepath.Base(m.path)))
	b.WriteString("\n\n")

	if m.busy {
		b.WriteString(m.spinner.View() + " validating and submitting...")
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("esc to cancel."))
		return b.String()
	}

	if s := m.selection; s != nil {
		b.WriteString(fmt.Sprintf("garment: %dx%d %s, %s",
			s.Image.Width, s.Image.Height, s.Image.Ext, formatBytes(len(s.File.Data))))
		b.WriteString("\n")
		b.WriteString(infoStyle.Render("preview: " + s.PreviewURL))
		b.WriteString("\n\n")
	}

	if m.err != nil {
		b.WriteString(submitErrorView(m.err))
		b.WriteString("\n")

		help := "esc to go back."
		if retriable(m.err) {
			help = "r to retry. " + help
		}

		b.WriteString(helpStyle.Render(help))
		return b.String()
	}

	if r := m.result; r != nil {
		if r.Consent != nil {
			b.WriteString(infoStyle.Render(fmt.Sprintf("consent %s accepted", r.Consent.Version)))
			b.WriteString("\n")
		}

		b.WriteString(successStyle.Render("generation queued"))
		b.WriteString("\n")
		b.WriteString(fmt.Sprintf("id: %s", r.JobID))
		b.WriteString("\n")
		b.WriteString(fmt.Sprintf("expected in about %ds", r.ETASeconds))
		b.WriteString("\n")
		b.WriteString(quotaView(r.Quota))
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("w to watch it. esc to go back."))
	}

	return b.String()
}

func submitErrorView(err error) string {
	if code, ok := garment.CodeOf(err); ok {
		return errorStyle.Render("garment rejected") + "\n" + err.Error() + "\n" + infoStyle.Render("code: "+string(code))
	}

	var pe *pipeline.Error
	if errors.As(err, &pe) {
		title := "submission failed"
		if pe.Stage == pipeline.StageConsent {
			title = "could not accept consent"
		}

		out := errorStyle.Render(title) + "\n" + pe.Err.Error()
		if hint := errorHint(pe.Err); hint != "" {
			out += "\n" + infoStyle.Render(hint)
		}

		return out
	}

	out := errorStyle.Render(err.Error())
	if hint := errorHint(err); hint != "" {
		out += "\n" + infoStyle.Render(hint)
	}

	return out
}

func quotaView(q vton.Quota) string {
	line := fmt.Sprintf("%d of %d generations left", q.Remaining, q.Total)
	if q.RenewsAt != nil {
		line += ", renews " + formatTime(q.RenewsAt)
	}

	if q.Exhausted() {
		return warningStyle.Render(line)
	}

	return line
}
