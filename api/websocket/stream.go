package websocket

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"codeberg.org/vestilook/server/internal/auth"
	apierrors "codeberg.org/vestilook/server/internal/errors"
	"codeberg.org/vestilook/server/internal/logger"
	"codeberg.org/vestilook/server/internal/status"
	"codeberg.org/vestilook/server/vestilook/generations"
)

const defaultInterval = status.FixedInterval(3 * time.Second)

// StreamHandler godoc
// @Summary Stream generation status
// @Description Upgrades to a websocket and pushes the generation view each time it is polled, closing once the job is final
// @Tags generations
// @Param id path string true "Generation ID"
// @Param token query string false "Access token for clients that cannot set headers"
// @Success 101
// @Failure 401 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /api/vton/generations/{id}/stream [get]
func StreamHandler(src Source, cfg StreamConfig) gin.HandlerFunc {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     NewOriginChecker(cfg.AllowedOrigins, cfg.Production),
	}

	interval := cfg.Interval
	if interval == nil {
		interval = defaultInterval
	}

	return func(c *gin.Context) {
		userID, ok := auth.GetUserID(c)
		if !ok {
			apierrors.Unauthorized(c, "")
			return
		}

		jobID, ok := apierrors.ValidatePathUUID(c, "id")
		if !ok {
			return
		}

		ctx := c.Request.Context()

		if _, err := src.Get(ctx, jobID, userID); err != nil {
			if errors.Is(err, generations.ErrNotFound) {
				apierrors.NotFound(c, "generation")
				return
			}

			apierrors.InternalError(c, "failed to load generation", err)
			return
		}

		refresher, err := src.Refresher(ctx, userID, jobID)
		if err != nil {
			apierrors.InternalError(c, "failed to start status stream", err)
			return
		}
		defer refresher.Close()

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.ErrorErr(err, "failed to upgrade connection",
				"job_id", jobID,
				"ip", c.ClientIP(),
			)
			return
		}
		defer conn.Close() //nolint:errcheck,gosec // G104: defer cleanup

		s := &stream{conn: conn, src: src, jobID: jobID}
		s.run(refresher, interval)
	}
}

type stream struct {
	conn  *websocket.Conn
	src   Source
	jobID string
}

func (s *stream) run(refresher *status.Refresher, interval status.IntervalPolicy) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// the read pump only exists to notice the client going away
	go s.readPump(cancel)

	results := make(chan status.Result, 4)

	handle := status.StartPolling(refresher, interval, func(res status.Result) {
		select {
		case results <- res:
		case <-ctx.Done():
		}
	})
	defer handle.Stop()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case res := <-results:
			if err := s.send(ctx, res); err != nil {
				return
			}

		case <-handle.Done():
			if err := s.drain(ctx, results); err != nil {
				return
			}

			s.close(websocket.CloseNormalClosure, "final")
			return

		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck,gosec // G104: websocket ping timing

			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-ctx.Done():
			return
		}
	}
}

// sends results still buffered after the poll loop exited
func (s *stream) drain(ctx context.Context, results <-chan status.Result) error {
	for {
		select {
		case res := <-results:
			if err := s.send(ctx, res); err != nil {
				return err
			}
		default:
			return nil
		}
	}
}

func (s *stream) readPump(cancel context.CancelFunc) {
	defer cancel()

	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait)) //nolint:errcheck,gosec // G104: websocket setup
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait)) //nolint:errcheck,gosec // G104: pong handler
		return nil
	})

	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug("status stream closed unexpectedly", "job_id", s.jobID, "error", err)
			}
			return
		}
	}
}

func (s *stream) send(ctx context.Context, res status.Result) error {
	msg := Message{Type: MessageView}

	if res.Err != nil {
		fe := status.NewFetchError(res.Err)
		msg = Message{
			Type: MessageError,
			Error: &StreamError{
				Code:      string(fe.Kind),
				Message:   "could not refresh generation status",
				Retriable: fe.Retriable,
			},
		}
	} else {
		view := s.src.Resolve(ctx, *res.View)
		msg.View = &view
	}

	s.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck,gosec // G104: websocket timing

	return s.conn.WriteJSON(msg)
}

func (s *stream) close(code int, reason string) {
	s.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck,gosec // G104: websocket timing
	s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason)) //nolint:errcheck,gosec // G104: close message
}
