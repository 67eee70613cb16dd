package status

import (
	"context"
	"errors"
	"math"
	"time"
)

func (f FixedInterval) Next(int) time.Duration {
	return time.Duration(f)
}

// grows the wait by Factor per failed attempt, capped at Max
func (b Backoff) Next(attempt int) time.Duration {
	factor := b.Factor
	if factor < 1 {
		factor = 2
	}

	d := time.Duration(float64(b.Initial) * math.Pow(factor, float64(attempt)))
	if b.Max > 0 && (d > b.Max || d <= 0) {
		return b.Max
	}

	return d
}

// polls until the job is final, a non-retriable error occurs, or Stop is
// called. the first refresh happens immediately. successful polls reset the
// attempt counter, so backoff only grows across consecutive failures.
func StartPolling(r *Refresher, policy IntervalPolicy, onResult func(Result)) *Handle {
	ctx, cancel := context.WithCancel(context.Background())

	h := &Handle{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(h.done)

		attempt := 0

		for {
			view, err := r.Refresh(ctx)
			if ctx.Err() != nil || r.Closed() {
				return
			}

			onResult(Result{View: view, Err: err})

			if err == nil {
				if IsFinal(view.Status) {
					return
				}

				attempt = 0
			} else {
				var fe *FetchError
				if errors.As(err, &fe) && !fe.Retriable {
					return
				}

				attempt++
			}

			timer := time.NewTimer(policy.Next(attempt))

			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
		}
	}()

	return h
}

// stops polling; safe to call more than once
func (h *Handle) Stop() {
	h.once.Do(h.cancel)
}

// closed once the poll loop has exited
func (h *Handle) Done() <-chan struct{} {
	return h.done
}
