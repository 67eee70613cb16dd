package websocket

import (
	"context"
	"time"

	"codeberg.org/vestilook/server/internal/status"
	"codeberg.org/vestilook/server/internal/vton"
)

const (
	// time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// maximum message size allowed from peer. clients only send pongs.
	maxMessageSize = 512
)

const (
	MessageView  = "view"
	MessageError = "error"
)

// Source is the part of the generation service the stream uses
type Source interface {
	Get(ctx context.Context, id, userID string) (*vton.Job, error)
	Refresher(ctx context.Context, userID, jobID string) (*status.Refresher, error)
	Resolve(ctx context.Context, v status.View) status.View
}

// Message is one frame pushed to the client
type Message struct {
	Type  string       `json:"type"`
	View  *status.View `json:"view,omitempty"`
	Error *StreamError `json:"error,omitempty"`
}

type StreamError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retriable bool   `json:"retriable"`
}

// StreamConfig tunes the poll loop behind a stream
type StreamConfig struct {
	Interval       status.IntervalPolicy
	AllowedOrigins []string
	Production     bool
}
