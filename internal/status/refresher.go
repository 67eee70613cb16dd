package status

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"codeberg.org/vestilook/server/internal/vton"
)

// errors that carry the HTTP status of a failed call
type httpStatusCoder interface {
	HTTPStatus() int
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch generation (%s): %v", e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// classifies a fetch failure. 401 is never retriable.
func NewFetchError(err error) *FetchError {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe
	}

	var sc httpStatusCoder
	if errors.As(err, &sc) {
		switch code := sc.HTTPStatus(); {
		case code == http.StatusUnauthorized:
			return &FetchError{Kind: KindUnauthorized, Retriable: false, Err: err}
		case code == 0:
			return &FetchError{Kind: KindNetwork, Retriable: true, Err: err}
		default:
			return &FetchError{Kind: KindServerError, Retriable: true, Err: err}
		}
	}

	var netErr net.Error
	var urlErr *url.Error
	if errors.As(err, &netErr) || errors.As(err, &urlErr) {
		return &FetchError{Kind: KindNetwork, Retriable: true, Err: err}
	}

	return &FetchError{Kind: KindServerError, Retriable: true, Err: err}
}

// sets the clock used for mapping
func WithNow(now func() time.Time) RefresherOption {
	return func(r *Refresher) {
		r.now = now
	}
}

// supplies the quota snapshot used for the retry permission
func WithQuota(fn func() *vton.Quota) RefresherOption {
	return func(r *Refresher) {
		r.quota = fn
	}
}

func WithSupportURL(u string) RefresherOption {
	return func(r *Refresher) {
		r.supportURL = u
	}
}

func WithBuckets(b Buckets) RefresherOption {
	return func(r *Refresher) {
		r.buckets = b
	}
}

// creates a refresher for one job. Close must be called when the consumer
// goes away so an in-flight fetch is cancelled.
func NewRefresher(jobID string, fetcher Fetcher, opts ...RefresherOption) *Refresher {
	ctx, cancel := context.WithCancel(context.Background())

	r := &Refresher{
		jobID:   jobID,
		fetcher: fetcher,
		ctx:     ctx,
		cancel:  cancel,
		now:     time.Now,
		quota:   func() *vton.Quota { return nil },
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// returns the job this refresher follows
func (r *Refresher) JobID() string {
	return r.jobID
}

// fetches and maps the job. concurrent calls join the fetch already in
// flight and all observe its outcome. ctx only bounds how long this caller
// waits; the shared fetch stops when the refresher is closed.
func (r *Refresher) Refresh(ctx context.Context) (*View, error) {
	ch := r.group.DoChan(r.jobID, func() (any, error) {
		return r.fetch()
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()

	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}

		return res.Val.(*View), nil
	}
}

func (r *Refresher) fetch() (*View, error) {
	if err := r.ctx.Err(); err != nil {
		return nil, err
	}

	job, err := r.fetcher.FetchGeneration(r.ctx, r.jobID)
	if err != nil {
		return nil, NewFetchError(err)
	}

	fetchedAt := r.now()

	view := Map(Input{
		Job:        job,
		FetchedAt:  fetchedAt,
		Now:        fetchedAt,
		Quota:      r.quota(),
		SupportURL: r.supportURL,
		Buckets:    r.buckets,
	})

	return &view, nil
}

// cancels any in-flight fetch; later refreshes fail immediately
func (r *Refresher) Close() {
	r.cancel()
}

// reports whether Close was called
func (r *Refresher) Closed() bool {
	return r.ctx.Err() != nil
}
