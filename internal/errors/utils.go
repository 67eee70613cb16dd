package errors

import (
	"context"
	"errors"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// machine-readable codes of the error envelope
const (
	CodeUnauthorized    = "unauthorized"
	CodeInvalidRequest  = "invalid_request"
	CodeNotFound        = "not_found"
	CodeConflict        = "conflict"
	CodeQuotaExhausted  = "quota_exhausted"
	CodeTooManyRequests = "too_many_requests"
	CodeServerError     = "server_error"
	CodeNetwork         = "network"
)

// categories used when deciding what detail a client may see
const (
	CategoryDatabase   = "database"
	CategoryNetwork    = "network"
	CategoryValidation = "validation"
	CategoryStorage    = "storage"
	CategoryNotFound   = "not_found"
	CategoryTimeout    = "timeout"
	CategoryUnknown    = "unknown"
)

// one rule of the classifier; the first matching rule wins
type classifier struct {
	category string
	public   string
	match    func(err error, msg string) bool
}

var classifiers = []classifier{
	{CategoryDatabase, "database operation failed", func(err error, _ string) bool {
		var pgErr *pgconn.PgError
		return errors.As(err, &pgErr)
	}},
	{CategoryNotFound, "resource not found", func(err error, _ string) bool {
		return errors.Is(err, pgx.ErrNoRows)
	}},
	{CategoryTimeout, "request timed out", func(err error, _ string) bool {
		return errors.Is(err, context.DeadlineExceeded)
	}},
	{CategoryTimeout, "request canceled", func(err error, _ string) bool {
		return errors.Is(err, context.Canceled)
	}},
	{CategoryStorage, "storage operation failed", func(_ error, msg string) bool {
		return strings.Contains(msg, "s3") || strings.Contains(msg, "bucket")
	}},
	{CategoryNetwork, "connection error occurred", func(_ error, msg string) bool {
		return strings.Contains(msg, "connection") || strings.Contains(msg, "dial")
	}},
}

// analyzes an error and returns its category and the message a client may see.
// outside production the raw message is passed through.
func classifyError(err error) ErrorInfo {
	if err == nil {
		return ErrorInfo{category: CategoryUnknown}
	}

	info := ErrorInfo{category: CategoryUnknown, sanitized: "an error occurred"}

	msg := strings.ToLower(err.Error())
	for _, cl := range classifiers {
		if cl.match(err, msg) {
			info = ErrorInfo{category: cl.category, sanitized: cl.public}
			break
		}
	}

	if os.Getenv("ENVIRONMENT") != "production" {
		info.sanitized = err.Error()
	}

	return info
}

// reports whether id is a canonical hyphenated UUID
func IsValidUUID(id string) bool {
	if len(id) != 36 {
		return false
	}

	_, err := uuid.Parse(id)
	return err == nil
}
