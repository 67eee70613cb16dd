package client

import (
	"context"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"codeberg.org/vestilook/server/internal/consent"
	apierrors "codeberg.org/vestilook/server/internal/errors"
	"codeberg.org/vestilook/server/internal/history"
	"codeberg.org/vestilook/server/internal/status"
	"codeberg.org/vestilook/server/internal/vton"
	"github.com/imroc/req/v3"
)

const (
	generationsPath = "/api/vton/generations"
	generationPath  = "/api/vton/generations/{id}"
	viewPath        = "/api/vton/generations/{id}/view"
	ratingPath      = "/api/vton/generations/{id}/rating"
	profilePath     = "/api/profile"
	consentPath     = "/api/profile/consent"
)

// creates a client for the API at endpoint authenticating with token
func New(endpoint, token string, opts ...Option) *Client {
	if endpoint == "" {
		endpoint = defaultEndpoint
	}

	endpoint = strings.TrimRight(endpoint, "/")

	hc := req.C().
		SetBaseURL(endpoint).
		SetUserAgent(userAgent).
		SetCommonHeader("Accept", "application/json")

	if token != "" {
		hc.SetCommonBearerAuthToken(token)
	}

	for _, opt := range opts {
		opt(hc)
	}

	return &Client{endpoint: endpoint, http: hc}
}

// creates a client from VESTILOOK_API_ENDPOINT and VESTILOOK_ACCESS_TOKEN
func NewFromEnv(opts ...Option) *Client {
	return New(os.Getenv("VESTILOOK_API_ENDPOINT"), os.Getenv("VESTILOOK_ACCESS_TOKEN"), opts...)
}

// bounds every request; without it only the transport defaults apply
func WithTimeout(d time.Duration) Option {
	return func(c *req.Client) {
		c.SetTimeout(d)
	}
}

func (c *Client) Endpoint() string {
	return c.endpoint
}

// websocket URL of a job's status stream
func (c *Client) StreamURL(id string) string {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return ""
	}

	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}

	u.Path = strings.TrimRight(u.Path, "/") + generationsPath + "/" + url.PathEscape(id) + "/stream"

	return u.String()
}

func (c *Client) FetchGeneration(ctx context.Context, id string) (*vton.Job, error) {
	var job vton.Job

	_, err := c.send(c.http.R().
		SetContext(ctx).
		SetPathParam("id", id).
		SetSuccessResult(&job), http.MethodGet, generationPath)
	if err != nil {
		return nil, err
	}

	return &job, nil
}

// fetches the server-mapped view with signed asset URLs
func (c *Client) FetchView(ctx context.Context, id string) (*status.View, error) {
	var view status.View

	_, err := c.send(c.http.R().
		SetContext(ctx).
		SetPathParam("id", id).
		SetSuccessResult(&view), http.MethodGet, viewPath)
	if err != nil {
		return nil, err
	}

	return &view, nil
}

func (c *Client) FetchProfile(ctx context.Context) (*vton.Profile, error) {
	var profile vton.Profile

	_, err := c.send(c.http.R().
		SetContext(ctx).
		SetSuccessResult(&profile), http.MethodGet, profilePath)
	if err != nil {
		return nil, err
	}

	return &profile, nil
}

func (c *Client) FetchConsent(ctx context.Context) (*consent.Document, error) {
	var doc consent.Document

	_, err := c.send(c.http.R().
		SetContext(ctx).
		SetSuccessResult(&doc), http.MethodGet, consentPath)
	if err != nil {
		return nil, err
	}

	return &doc, nil
}

// accepts the given policy version. the receipt status tells a first
// acceptance (201) from a re-acceptance (200).
func (c *Client) AcceptConsent(ctx context.Context, version string) (*consent.Receipt, error) {
	var receipt consent.Receipt

	resp, err := c.send(c.http.R().
		SetContext(ctx).
		SetBody(consent.Acceptance{Version: version, Accepted: true}).
		SetSuccessResult(&receipt), http.MethodPost, consentPath)
	if err != nil {
		return nil, err
	}

	receipt.Status = consent.ReceiptStatusFromHTTP(resp.StatusCode)

	return &receipt, nil
}

// posts a generation as multipart form data
func (c *Client) SubmitGeneration(ctx context.Context, s Submission) (*Submitted, error) {
	form := map[string]string{"consentVersion": s.ConsentVersion}
	if s.RetainForHours > 0 {
		form["retainForHours"] = strconv.Itoa(s.RetainForHours)
	}

	var out Submitted

	resp, err := c.send(c.http.R().
		SetContext(ctx).
		SetFileBytes("garment", s.GarmentName, s.GarmentData).
		SetFormData(form).
		SetSuccessResult(&out.Submission), http.MethodPost, generationsPath)
	if err != nil {
		return nil, err
	}

	out.Location = resp.GetHeader("Location")

	return &out, nil
}

func (c *Client) ListGenerations(ctx context.Context, f history.Filters) (*history.Page, error) {
	var page history.Page

	_, err := c.send(c.http.R().
		SetContext(ctx).
		SetQueryString(f.Query().Encode()).
		SetSuccessResult(&page), http.MethodGet, generationsPath)
	if err != nil {
		return nil, err
	}

	return &page, nil
}

func (c *Client) RateGeneration(ctx context.Context, id string, rating int) (*vton.Job, error) {
	var job vton.Job

	_, err := c.send(c.http.R().
		SetContext(ctx).
		SetPathParam("id", id).
		SetBody(map[string]int{"rating": rating}).
		SetSuccessResult(&job), http.MethodPost, ratingPath)
	if err != nil {
		return nil, err
	}

	return &job, nil
}

// sends the request and turns transport failures and error statuses into *Error
func (c *Client) send(r *req.Request, method, path string) (*req.Response, error) {
	var body apierrors.ErrorResponse
	r.SetErrorResult(&body)

	resp, err := r.Send(method, path)
	if err != nil {
		if resp != nil && resp.Response != nil && resp.StatusCode >= http.StatusBadRequest {
			return nil, &Error{Status: resp.StatusCode, Code: codeForStatus(resp.StatusCode), Err: err}
		}

		if resp != nil && resp.Response != nil {
			return nil, &Error{Status: resp.StatusCode, Code: apierrors.CodeServerError, Message: "malformed response", Err: err}
		}

		return nil, &Error{Code: apierrors.CodeNetwork, Err: err}
	}

	if resp.IsErrorState() {
		code := body.Error.Code
		if code == "" {
			code = codeForStatus(resp.StatusCode)
		}

		return nil, &Error{Status: resp.StatusCode, Code: code, Message: body.Error.Message}
	}

	return resp, nil
}

func codeForStatus(status int) string {
	switch {
	case status == http.StatusUnauthorized:
		return apierrors.CodeUnauthorized
	case status == http.StatusNotFound:
		return apierrors.CodeNotFound
	case status == http.StatusConflict:
		return apierrors.CodeConflict
	case status == http.StatusTooManyRequests:
		// only the rate limiter sends too_many_requests, and it always names it
		return apierrors.CodeQuotaExhausted
	case status >= http.StatusInternalServerError:
		return apierrors.CodeServerError
	default:
		return apierrors.CodeInvalidRequest
	}
}
