package status

import (
	"context"
	"sync"
	"time"

	"codeberg.org/vestilook/server/internal/assets"
	"codeberg.org/vestilook/server/internal/vton"
	"golang.org/x/sync/singleflight"
)

// State is the presentation state. It adds "expired" to the persisted statuses.
type State string

const (
	StateQueued     State = "queued"
	StateProcessing State = "processing"
	StateSucceeded  State = "succeeded"
	StateFailed     State = "failed"
	StateExpired    State = "expired"
)

type StepID string

const (
	StepQueued     StepID = "queued"
	StepProcessing StepID = "processing"
	StepCompleted  StepID = "completed"
	StepFailed     StepID = "failed"
)

type Step struct {
	ID          StepID     `json:"id"`
	Label       string     `json:"label"`
	At          *time.Time `json:"at,omitempty"`
	IsCompleted bool       `json:"isCompleted"`
	IsCurrent   bool       `json:"isCurrent"`
}

// Action is a permission with an optional reason when it is denied
type Action struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

type Actions struct {
	CanViewResult  Action `json:"canViewResult"`
	CanDownload    Action `json:"canDownload"`
	CanRetry       Action `json:"canRetry"`
	CanRate        Action `json:"canRate"`
	CanKeepWorking Action `json:"canKeepWorking"`
}

type FailureAction string

const (
	ActionRetry           FailureAction = "retry"
	ActionContactSupport  FailureAction = "contact-support"
	ActionReuploadGarment FailureAction = "reupload-garment"
)

type Failure struct {
	Code        string          `json:"code"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Hint        string          `json:"hint"`
	Actions     []FailureAction `json:"actions"`
	SupportURL  string          `json:"supportUrl,omitempty"`
}

type Countdown struct {
	Target           time.Time     `json:"target"`
	Remaining        time.Duration `json:"-"`
	RemainingSeconds int           `json:"remainingSeconds"`
	Formatted        string        `json:"formatted"`
	IsExpired        bool          `json:"isExpired"`
}

// AssetRef points at a stored object; URL is filled by Resolve
type AssetRef struct {
	Bucket    string     `json:"bucket"`
	Path      string     `json:"path"`
	URL       string     `json:"url,omitempty"`
	ExpiresAt *time.Time `json:"urlExpiresAt,omitempty"`
	Available bool       `json:"available"`
}

type Assets struct {
	Persona *AssetRef `json:"persona,omitempty"`
	Garment *AssetRef `json:"garment,omitempty"`
	Result  *AssetRef `json:"result,omitempty"`
}

// Buckets names where each kind of asset lives
type Buckets struct {
	Persona string
	Garment string
	Result  string
}

type View struct {
	JobID       string      `json:"jobId"`
	Status      vton.Status `json:"status"`
	State       State       `json:"state"`
	Label       string      `json:"label"`
	Description string      `json:"description"`
	Timeline    []Step      `json:"timeline"`
	Actions     Actions     `json:"actions"`
	Failure     *Failure    `json:"failure,omitempty"`
	Countdown   *Countdown  `json:"countdown,omitempty"`
	Assets      Assets      `json:"assets"`
	Rating      *int        `json:"rating,omitempty"`
	CreatedAt   time.Time   `json:"createdAt"`
	ExpiresAt   *time.Time  `json:"expiresAt,omitempty"`
}

// Input is everything the mapper looks at
type Input struct {
	Job        *vton.Job
	FetchedAt  time.Time
	Now        time.Time
	Quota      *vton.Quota
	SupportURL string
	Buckets    Buckets
}

// URLResolver returns signed URLs for stored objects
type URLResolver interface {
	Lookup(ctx context.Context, bucket, path string, forceRefresh bool) assets.SignedURL
}

type FetchErrorKind string

const (
	KindUnauthorized FetchErrorKind = "unauthorized"
	KindNetwork      FetchErrorKind = "network"
	KindServerError  FetchErrorKind = "server_error"
)

type FetchError struct {
	Kind      FetchErrorKind
	Retriable bool
	Err       error
}

// Fetcher loads the latest job record
type Fetcher interface {
	FetchGeneration(ctx context.Context, id string) (*vton.Job, error)
}

// Refresher fetches one job and maps it, collapsing concurrent refreshes
type Refresher struct {
	jobID   string
	fetcher Fetcher
	group   singleflight.Group

	ctx    context.Context
	cancel context.CancelFunc

	now        func() time.Time
	quota      func() *vton.Quota
	supportURL string
	buckets    Buckets
}

type RefresherOption func(*Refresher)

// IntervalPolicy decides how long to wait before the next poll
type IntervalPolicy interface {
	Next(attempt int) time.Duration
}

type FixedInterval time.Duration

type Backoff struct {
	Initial time.Duration
	Max     time.Duration
	Factor  float64
}

// Result is one poll outcome; exactly one of View and Err is set
type Result struct {
	View *View
	Err  error
}

// Handle controls a running poll loop
type Handle struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}
