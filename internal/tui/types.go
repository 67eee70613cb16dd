package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/glamour"

	"codeberg.org/vestilook/server/internal/client"
	"codeberg.org/vestilook/server/internal/consent"
	"codeberg.org/vestilook/server/internal/garment"
	"codeberg.org/vestilook/server/internal/history"
	"codeberg.org/vestilook/server/internal/pipeline"
	"codeberg.org/vestilook/server/internal/status"
	"codeberg.org/vestilook/server/internal/vton"
)

// represents the current state of the TUI
type AppState int

const (
	StateWelcome AppState = iota
	StateWatch
	StateSubmit
	StateHistory
	StateConsent
)

// API is the part of the REST client the screens use
type API interface {
	FetchGeneration(ctx context.Context, id string) (*vton.Job, error)
	FetchProfile(ctx context.Context) (*vton.Profile, error)
	FetchConsent(ctx context.Context) (*consent.Document, error)
	AcceptConsent(ctx context.Context, version string) (*consent.Receipt, error)
	SubmitGeneration(ctx context.Context, s client.Submission) (*client.Submitted, error)
	ListGenerations(ctx context.Context, f history.Filters) (*history.Page, error)
	RateGeneration(ctx context.Context, id string, rating int) (*vton.Job, error)
}

// Opener starts a push stream of status views for a job
type Opener interface {
	Open(ctx context.Context, jobID string) (<-chan status.Result, error)
}

type Config struct {
	API API

	// opens the websocket stream; the stream command is hidden without it
	Stream Opener

	Mode           string
	Interval       status.IntervalPolicy
	Garments       garment.Constraints
	PreviewDir     string
	RetainForHours int
}

// main TUI application model
type Model struct {
	state   AppState
	config  Config
	width   int
	height  int
	err     error
	welcome *Welcome
	watch   *WatchModel
	submit  *SubmitModel
	history *HistoryModel
	consent *ConsentModel
}

// sent when an error occurs
type ErrorMsg struct {
	err error
}

// screen transitions
type (
	EnterWatchMsg struct {
		jobID  string
		stream bool
	}
	EnterSubmitMsg  struct{ path string }
	EnterHistoryMsg struct{}
	EnterConsentMsg struct{}
)

// welcome screen model
type Welcome struct {
	mode     string
	input    string
	commands []Command
}

// represents an available TUI command
type Command struct {
	Name        string
	Usage       string
	Description string
}

// follows one generation until it is final
type WatchModel struct {
	api        API
	jobID      string
	source     string
	results    <-chan status.Result
	stop       context.CancelFunc
	view       *status.View
	reportedAt time.Time
	now        func() time.Time
	lastErr    *status.FetchError
	done       bool
	rateErr    error
	spinner    spinner.Model
}

// watch messages carry the channel they belong to so a screen that was
// left cannot update its replacement

// sent for every poll or stream result
type watchResultMsg struct {
	from   <-chan status.Result
	result status.Result
}

// sent once the result channel is closed
type watchDoneMsg struct {
	from <-chan status.Result
}

// sent every second so the countdown keeps moving between polls
type watchTickMsg struct {
	from <-chan status.Result
}

type ratedMsg struct {
	job *vton.Job
	err error
}

// submits one garment file
type SubmitModel struct {
	api       API
	validator *garment.Validator
	pipeline  *pipeline.Pipeline
	retain    int
	path      string
	profile   *vton.Profile
	selection *garment.Selection
	result    *pipeline.Result
	err       error
	busy      bool
	spinner   spinner.Model
}

type submitDoneMsg struct {
	profile   *vton.Profile
	selection *garment.Selection
	result    *pipeline.Result
	err       error
}

// pages through past generations
type HistoryModel struct {
	api      API
	filters  history.Filters
	cursors  history.CursorStack
	page     *history.Page
	selected int
	filter   int
	loading  bool
	err      error
	spinner  spinner.Model
}

type pageMsg struct {
	page *history.Page
	err  error
}

// shows the consent policy and records acceptance
type ConsentModel struct {
	api      API
	doc      *consent.Document
	receipt  *consent.Receipt
	err      error
	loading  bool
	viewport viewport.Model
	renderer *glamour.TermRenderer
	width    int
	ready    bool
}

type consentDocMsg struct {
	doc *consent.Document
	err error
}

type consentAcceptedMsg struct {
	receipt *consent.Receipt
	err     error
}
