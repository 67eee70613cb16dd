package client

import (
	"fmt"
	"net/http"

	"codeberg.org/vestilook/server/internal/vton"
	"github.com/imroc/req/v3"
)

const (
	defaultEndpoint = "http://localhost:8080"
	userAgent       = "vestilook-client"
)

// Client calls the vestilook REST API on behalf of one signed-in user
type Client struct {
	endpoint string
	http     *req.Client
}

type Option func(*req.Client)

// Error is a failed API call. Status is 0 when no response arrived.
type Error struct {
	Status  int
	Code    string
	Message string
	Err     error
}

// Submission is a generation request
type Submission struct {
	GarmentName    string
	GarmentData    []byte
	ConsentVersion string
	RetainForHours int
}

// Submitted is an accepted generation and the URL of its status resource
type Submitted struct {
	vton.Submission
	Location string
}

func (e *Error) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}

	if e.Message != "" {
		return fmt.Sprintf("%s (%d): %s", e.Code, e.Status, e.Message)
	}

	return fmt.Sprintf("%s (%d)", e.Code, e.Status)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// returns the response status, 0 for transport failures
func (e *Error) HTTPStatus() int {
	return e.Status
}

// reports whether repeating the call may succeed
func (e *Error) Retriable() bool {
	switch {
	case e.Status == 0:
		return true
	case e.Status == http.StatusTooManyRequests && e.Code != "quota_exhausted":
		return true
	case e.Status >= http.StatusInternalServerError:
		return true
	default:
		return false
	}
}
