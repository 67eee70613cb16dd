package vertex

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"time"

	"codeberg.org/vestilook/server/internal/vton"
	"github.com/google/uuid"
	"github.com/imroc/req/v3"
	"golang.org/x/time/rate"
)

const (
	defaultTimeout   = 120 * time.Second
	defaultRateLimit = 5
	requestIDHeader  = "X-Request-Id"
)

// provider status to job error code
var statusCodes = map[string]vton.ErrorCode{
	"INVALID_ARGUMENT":    vton.CodeInvalidGarmentImage,
	"FAILED_PRECONDITION": vton.CodeGarmentNotDetected,
	"RESOURCE_EXHAUSTED":  vton.CodeProviderQuota,
	"DEADLINE_EXCEEDED":   vton.CodeProviderTimeout,
	"UNAVAILABLE":         vton.CodeProviderUnavailable,
	"INTERNAL":            vton.CodeInternalError,
	"PERMISSION_DENIED":   vton.CodeProviderAuth,
	"UNAUTHENTICATED":     vton.CodeProviderAuth,
}

func NewClient(config Config) *Client {
	if config.Timeout <= 0 {
		config.Timeout = defaultTimeout
	}

	if config.RateLimit <= 0 {
		config.RateLimit = defaultRateLimit
	}

	hc := req.C().
		SetTimeout(config.Timeout).
		SetCommonHeader("Content-Type", "application/json")

	if config.AccessToken != "" {
		hc.SetCommonBearerAuthToken(config.AccessToken)
	}

	return &Client{
		config:  config,
		http:    hc,
		limiter: rate.NewLimiter(rate.Limit(config.RateLimit), max(1, int(config.RateLimit))),
	}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("vertex try-on failed (%s): %v", e.Code, e.Err)
	}

	return fmt.Sprintf("vertex try-on failed (%s): %d %s %s", e.Code, e.HTTPStatus, e.Status, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// extracts the job error code; errors from elsewhere count as internal
func CodeOf(err error) vton.ErrorCode {
	var ve *Error
	if errors.As(err, &ve) {
		return ve.Code
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return vton.CodeProviderTimeout
	}

	return vton.CodeInternalError
}

// dresses the person in the garment and returns the first generated image
func (c *Client) TryOn(ctx context.Context, person, garment []byte) (*Result, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &Error{Code: vton.CodeProviderTimeout, Err: fmt.Errorf("rate limiter: %w", err)}
	}

	body := predictRequest{
		Instances: []instance{{
			PersonImage:   imageRef{Image: image{BytesBase64Encoded: base64.StdEncoding.EncodeToString(person)}},
			ProductImages: []imageRef{{Image: image{BytesBase64Encoded: base64.StdEncoding.EncodeToString(garment)}}},
		}},
		Parameters: parameters{SampleCount: 1},
	}

	requestID := uuid.NewString()

	var (
		out     predictResponse
		errBody errorResponse
	)

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader(requestIDHeader, requestID).
		SetBody(body).
		SetSuccessResult(&out).
		SetErrorResult(&errBody).
		Post(c.config.Endpoint)
	if err != nil {
		if resp != nil && resp.Response != nil && resp.StatusCode >= http.StatusBadRequest {
			return nil, &Error{Code: codeForHTTP(resp.StatusCode), HTTPStatus: resp.StatusCode, Err: err}
		}

		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &Error{Code: vton.CodeProviderTimeout, Err: err}
		}

		return nil, &Error{Code: vton.CodeProviderUnavailable, Err: err}
	}

	if resp.IsErrorState() {
		code, ok := statusCodes[errBody.Error.Status]
		if !ok {
			code = codeForHTTP(resp.StatusCode)
		}

		return nil, &Error{
			Code:       code,
			HTTPStatus: resp.StatusCode,
			Status:     errBody.Error.Status,
			Message:    errBody.Error.Message,
		}
	}

	if len(out.Predictions) == 0 || out.Predictions[0].BytesBase64Encoded == "" {
		return nil, &Error{
			Code:       vton.CodeSafetyBlocked,
			HTTPStatus: resp.StatusCode,
			Message:    "no image was returned",
		}
	}

	p := out.Predictions[0]

	data, err := base64.StdEncoding.DecodeString(p.BytesBase64Encoded)
	if err != nil {
		return nil, &Error{Code: vton.CodeInternalError, Err: fmt.Errorf("failed to decode prediction: %w", err)}
	}

	mimeType := p.MimeType
	if mimeType == "" {
		mimeType = "image/png"
	}

	return &Result{RequestID: requestID, MimeType: mimeType, Image: data}, nil
}

// used when the error body carries no provider status
func codeForHTTP(status int) vton.ErrorCode {
	switch {
	case status == http.StatusTooManyRequests:
		return vton.CodeProviderQuota
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return vton.CodeProviderAuth
	case status == http.StatusGatewayTimeout:
		return vton.CodeProviderTimeout
	case status == http.StatusServiceUnavailable || status == http.StatusBadGateway:
		return vton.CodeProviderUnavailable
	case status >= http.StatusInternalServerError:
		return vton.CodeInternalError
	default:
		return vton.CodeUnknown
	}
}
