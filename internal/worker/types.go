package worker

import (
	"context"
	"time"

	"codeberg.org/vestilook/server/internal/status"
	"codeberg.org/vestilook/server/internal/vertex"
	"codeberg.org/vestilook/server/internal/vton"
	"github.com/segmentio/kafka-go"
)

const (
	// how long one job may take end to end, including the try-on call
	defaultProcessTimeout = 3 * time.Minute

	// how many queued jobs are picked up again on start
	recoverLimit = 500

	// a processing job claimed longer than this many process timeouts ago
	// has lost its worker
	staleFactor = 2
)

type JobStore interface {
	MarkProcessing(ctx context.Context, id string) (*vton.Job, error)
	MarkSucceeded(ctx context.Context, id, resultPath, vertexJobID string) error
	MarkFailed(ctx context.Context, id string, code vton.ErrorCode, message string) error
	ListQueued(ctx context.Context, limit int) ([]string, error)
	FailStale(ctx context.Context, startedBefore time.Time, code vton.ErrorCode, message string) (int64, error)
}

type ObjectStore interface {
	Get(ctx context.Context, bucket, key string) ([]byte, error)
	Put(ctx context.Context, bucket, key string, data []byte, contentType string) error
}

// TryOner renders a person wearing a garment
type TryOner interface {
	TryOn(ctx context.Context, person, garment []byte) (*vertex.Result, error)
}

// Handler processes one job id
type Handler func(ctx context.Context, jobID string) error

// Queue carries job ids from the API to the workers
type Queue interface {
	Dispatch(ctx context.Context, jobID string) error
	Run(ctx context.Context, handle Handler) error
	Close() error
}

// Observer receives job outcomes and try-on latencies
type Observer interface {
	Completed(status vton.Status, code vton.ErrorCode)
	TryOnDuration(d time.Duration, code vton.ErrorCode)
}

type nopObserver struct{}

func (nopObserver) Completed(vton.Status, vton.ErrorCode)      {}
func (nopObserver) TryOnDuration(time.Duration, vton.ErrorCode) {}

// Processor runs a queued job against the try-on provider
type Processor struct {
	jobs     JobStore
	objects  ObjectStore
	tryon    TryOner
	buckets  status.Buckets
	observer Observer
	timeout  time.Duration
	now      func() time.Time
}

type ProcessorOption func(*Processor)

// MemoryQueue is an in-process queue for single-instance deployments
type MemoryQueue struct {
	ids         chan string
	concurrency int
	closed      chan struct{}
}

// KafkaQueue distributes jobs over a topic so several server instances can
// share the work
type KafkaQueue struct {
	writer      *kafka.Writer
	reader      *kafka.Reader
	concurrency int
}

type KafkaConfig struct {
	Brokers     []string
	Topic       string
	GroupID     string
	Concurrency int
}
