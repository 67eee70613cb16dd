package history

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"codeberg.org/vestilook/server/internal/vton"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

var (
	ErrInvalidCursor = errors.New("invalid cursor")
	ErrInvalidRange  = errors.New("from must be before to")
	ErrInvalidStatus = errors.New("unknown status")
	ErrInvalidLimit  = errors.New("limit must be a positive integer")
)

// restores the default page size and clears every filter and the cursor
func (f *Filters) Reset() {
	*f = Filters{PageSize: DefaultPageSize}
}

// clamps the page size into [1, MaxPageSize], drops unknown or duplicate
// statuses and returns the result. the receiver is not modified.
func (f Filters) Normalize() Filters {
	out := f

	switch {
	case out.PageSize <= 0:
		out.PageSize = DefaultPageSize
	case out.PageSize > MaxPageSize:
		out.PageSize = MaxPageSize
	}

	out.Statuses = lo.Uniq(lo.Filter(f.Statuses, func(s vton.Status, _ int) bool {
		_, ok := vton.ParseStatus(string(s))
		return ok
	}))

	if len(out.Statuses) == 0 {
		out.Statuses = nil
	}

	return out
}

// checks the date range and cursor
func (f Filters) Validate() error {
	if f.From != nil && f.To != nil && !f.From.Before(*f.To) {
		return ErrInvalidRange
	}

	if f.Cursor != "" {
		if _, err := DecodeCursor(f.Cursor); err != nil {
			return err
		}
	}

	return nil
}

// returns the filters with the cursor replaced, for fetching another page
func (f Filters) WithCursor(cursor string) Filters {
	f.Cursor = cursor
	return f
}

// encodes the filters as query parameters understood by ParseQuery
func (f Filters) Query() url.Values {
	q := url.Values{}

	if len(f.Statuses) > 0 {
		q.Set("status", strings.Join(lo.Map(f.Statuses, func(s vton.Status, _ int) string {
			return string(s)
		}), ","))
	}

	if f.From != nil {
		q.Set("from", f.From.UTC().Format(time.RFC3339))
	}

	if f.To != nil {
		q.Set("to", f.To.UTC().Format(time.RFC3339))
	}

	if f.PageSize > 0 {
		q.Set("limit", strconv.Itoa(f.PageSize))
	}

	if f.Cursor != "" {
		q.Set("cursor", f.Cursor)
	}

	return q
}

// parses listing query parameters. unknown statuses are rejected rather
// than silently dropped so a typo does not widen the listing.
func ParseQuery(q url.Values) (Filters, error) {
	var f Filters

	if raw := strings.TrimSpace(q.Get("status")); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}

			s, ok := vton.ParseStatus(part)
			if !ok {
				return Filters{}, fmt.Errorf("%w: %q", ErrInvalidStatus, part)
			}

			f.Statuses = append(f.Statuses, s)
		}
	}

	for _, p := range []struct {
		key string
		dst **time.Time
	}{{"from", &f.From}, {"to", &f.To}} {
		raw := q.Get(p.key)
		if raw == "" {
			continue
		}

		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return Filters{}, fmt.Errorf("invalid %s: %w", p.key, err)
		}

		*p.dst = &t
	}

	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return Filters{}, ErrInvalidLimit
		}

		f.PageSize = n
	}

	f.Cursor = q.Get("cursor")

	f = f.Normalize()

	if err := f.Validate(); err != nil {
		return Filters{}, err
	}

	return f, nil
}

// opaque base64url form of "createdAt|id"
func EncodeCursor(c Cursor) string {
	raw := c.CreatedAt.UTC().Format(time.RFC3339Nano) + "|" + c.ID
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

func DecodeCursor(s string) (Cursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return Cursor{}, ErrInvalidCursor
	}

	ts, id, ok := strings.Cut(string(raw), "|")
	if !ok {
		return Cursor{}, ErrInvalidCursor
	}

	createdAt, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return Cursor{}, ErrInvalidCursor
	}

	if _, err := uuid.Parse(id); err != nil {
		return Cursor{}, ErrInvalidCursor
	}

	return Cursor{CreatedAt: createdAt, ID: id}, nil
}

func Summarize(job vton.Job) Summary {
	return Summary{
		ID:          job.ID,
		Status:      job.Status,
		ErrorCode:   job.ErrorCode,
		GarmentPath: job.GarmentPath,
		ResultPath:  job.ResultPath,
		Rating:      job.Rating,
		CreatedAt:   job.CreatedAt,
		CompletedAt: job.CompletedAt,
		ExpiresAt:   job.ExpiresAt,
	}
}

// builds a page from rows fetched with limit pageSize+1. an extra row means
// another page exists; the cursor then points at the last row kept.
func NewPage(jobs []vton.Job, pageSize int) Page {
	page := Page{PageSize: pageSize, Items: []Summary{}}

	hasMore := len(jobs) > pageSize
	if hasMore {
		jobs = jobs[:pageSize]
	}

	page.Items = lo.Map(jobs, func(j vton.Job, _ int) Summary { return Summarize(j) })

	if hasMore && len(jobs) > 0 {
		last := jobs[len(jobs)-1]
		page.NextCursor = EncodeCursor(Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}

	return page
}

// records the cursor of the page being left
func (s *CursorStack) Push(cursor string) {
	s.cursors = append(s.cursors, cursor)
}

// returns the cursor of the previous page. the first page has cursor "".
func (s *CursorStack) Pop() (string, bool) {
	if len(s.cursors) == 0 {
		return "", false
	}

	last := s.cursors[len(s.cursors)-1]
	s.cursors = s.cursors[:len(s.cursors)-1]

	return last, true
}

func (s *CursorStack) Len() int {
	return len(s.cursors)
}

func (s *CursorStack) Reset() {
	s.cursors = nil
}
