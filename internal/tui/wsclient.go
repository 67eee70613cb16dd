package tui

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"codeberg.org/vestilook/server/internal/status"
)

const (
	typeView  = "view"
	typeError = "error"
)

// one frame of the generation status stream
type wsMessage struct {
	Type  string       `json:"type"`
	View  *status.View `json:"view,omitempty"`
	Error *wsError     `json:"error,omitempty"`
}

type wsError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retriable bool   `json:"retriable"`
}

func (e *wsError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// WSClient opens generation status streams
type WSClient struct {
	urlFor func(jobID string) string
	token  string
	dialer *websocket.Dialer
}

// creates a stream client. urlFor builds the stream URL of a job.
func NewWSClient(urlFor func(jobID string) string, token string) *WSClient {
	return &WSClient{
		urlFor: urlFor,
		token:  token,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: requestTimeout,
		},
	}
}

// dials the stream and feeds each frame into the returned channel until the
// server closes it or ctx is done
func (c *WSClient) Open(ctx context.Context, jobID string) (<-chan status.Result, error) {
	header := http.Header{}
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}

	conn, resp, err := c.dialer.DialContext(ctx, c.urlFor(jobID), header)
	if resp != nil && resp.Body != nil {
		defer resp.Body.Close() //nolint:errcheck,gosec // G104: handshake body
	}
	if err != nil {
		if resp != nil {
			return nil, &handshakeError{status: resp.StatusCode, err: err}
		}
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	results := make(chan status.Result)

	// ends with the caller or when the server closes the stream
	ctx, cancel := context.WithCancel(ctx)

	// closing the connection unblocks the read pump
	go func() {
		<-ctx.Done()
		conn.Close() //nolint:errcheck,gosec // G104: shutdown
	}()

	go func() {
		defer cancel()
		c.readPump(ctx, conn, results)
	}()
	go pingPump(ctx, conn)

	return results, nil
}

// continuously reads frames and forwards them as results
func (c *WSClient) readPump(ctx context.Context, conn *websocket.Conn, results chan<- status.Result) {
	defer close(results)

	conn.SetReadDeadline(time.Now().Add(pongWait)) //nolint:errcheck,gosec // G104: websocket setup
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait)) //nolint:errcheck,gosec // G104: pong handler
		return nil
	})

	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() == nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				send(ctx, results, status.Result{Err: &status.FetchError{
					Kind:      status.KindNetwork,
					Retriable: false,
					Err:       fmt.Errorf("stream closed: %w", err),
				}})
			}
			return
		}

		conn.SetReadDeadline(time.Now().Add(pongWait)) //nolint:errcheck,gosec // G104: websocket timing

		switch msg.Type {
		case typeView:
			if msg.View != nil {
				send(ctx, results, status.Result{View: msg.View})
			}

		case typeError:
			if msg.Error != nil {
				send(ctx, results, status.Result{Err: streamFetchError(msg.Error)})
			}

		default:
			continue
		}
	}
}

// sends periodic pings to keep the connection alive
func pingPump(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

func send(ctx context.Context, results chan<- status.Result, res status.Result) {
	select {
	case results <- res:
	case <-ctx.Done():
	}
}

func streamFetchError(e *wsError) *status.FetchError {
	kind := status.FetchErrorKind(e.Code)

	switch kind {
	case status.KindUnauthorized, status.KindNetwork, status.KindServerError:
	default:
		kind = status.KindServerError
	}

	return &status.FetchError{Kind: kind, Retriable: e.Retriable, Err: e}
}

// a rejected websocket upgrade
type handshakeError struct {
	status int
	err    error
}

func (e *handshakeError) Error() string {
	switch e.status {
	case http.StatusUnauthorized:
		return "stream rejected: not signed in"
	case http.StatusNotFound:
		return "stream rejected: generation not found"
	default:
		return fmt.Sprintf("stream rejected (%d): %v", e.status, e.err)
	}
}

func (e *handshakeError) Unwrap() error {
	return e.err
}

func (e *handshakeError) HTTPStatus() int {
	return e.status
}

// true when the stream could not be opened because the token was rejected
func isUnauthorized(err error) bool {
	var he *handshakeError
	return errors.As(err, &he) && he.status == http.StatusUnauthorized
}
