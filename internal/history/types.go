package history

import (
	"time"

	"codeberg.org/vestilook/server/internal/vton"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Filters narrows a history listing. the zero value lists everything with
// the default page size.
type Filters struct {
	Statuses []vton.Status
	From     *time.Time // inclusive
	To       *time.Time // exclusive
	PageSize int
	Cursor   string
}

// position of the last row of a page in (created_at, id) order
type Cursor struct {
	CreatedAt time.Time
	ID        string
}

// one row of the history listing
type Summary struct {
	ID          string      `json:"id"`
	Status      vton.Status `json:"status"`
	ErrorCode   *string     `json:"errorCode,omitempty"`
	GarmentPath string      `json:"garmentPath"`
	ResultPath  *string     `json:"resultPath,omitempty"`
	Rating      *int        `json:"rating,omitempty"`
	CreatedAt   time.Time   `json:"createdAt"`
	CompletedAt *time.Time  `json:"completedAt,omitempty"`
	ExpiresAt   *time.Time  `json:"expiresAt,omitempty"`
}

type Page struct {
	Items      []Summary `json:"items"`
	NextCursor string    `json:"nextCursor,omitempty"`
	PageSize   int       `json:"pageSize"`
}

// CursorStack remembers the cursors of pages already visited so a caller
// can step backwards through a forward-only listing. not safe for
// concurrent use.
type CursorStack struct {
	cursors []string
}
