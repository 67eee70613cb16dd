package vertex

import (
	"time"

	"codeberg.org/vestilook/server/internal/vton"
	"github.com/imroc/req/v3"
	"golang.org/x/time/rate"
)

type Config struct {
	Endpoint    string
	AccessToken string
	RateLimit   float64 // requests per second
	Timeout     time.Duration
}

// Client calls the virtual try-on prediction endpoint
type Client struct {
	config  Config
	http    *req.Client
	limiter *rate.Limiter
}

// Result is a generated try-on image
type Result struct {
	RequestID string
	MimeType  string
	Image     []byte
}

// Error is a failed prediction classified into a job error code
type Error struct {
	Code       vton.ErrorCode
	HTTPStatus int
	Status     string // provider status, e.g. RESOURCE_EXHAUSTED
	Message    string
	Err        error
}

type image struct {
	BytesBase64Encoded string `json:"bytesBase64Encoded"`
}

type imageRef struct {
	Image image `json:"image"`
}

type instance struct {
	PersonImage   imageRef   `json:"personImage"`
	ProductImages []imageRef `json:"productImages"`
}

type parameters struct {
	SampleCount int `json:"sampleCount"`
}

type predictRequest struct {
	Instances  []instance `json:"instances"`
	Parameters parameters `json:"parameters"`
}

type prediction struct {
	MimeType           string `json:"mimeType"`
	BytesBase64Encoded string `json:"bytesBase64Encoded"`
}

type predictResponse struct {
	Predictions []prediction `json:"predictions"`
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}
