package generations

import (
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// handles generation job database operations
type Repository struct {
	db *pgxpool.Pool
}

// NewJob is a job about to be queued. the id is chosen by the caller so
// object keys can be derived from it before the row exists.
type NewJob struct {
	ID             string
	UserID         string
	PersonaPath    string
	GarmentPath    string
	ETASeconds     int
	RetainForHours int
	ExpiresAt      time.Time
}
