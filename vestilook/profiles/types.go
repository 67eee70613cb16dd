package profiles

import (
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// handles profile database operations
type Repository struct {
	db *pgxpool.Pool
}

// Record is a profiles row. the required consent version is not stored;
// it comes from the active policy.
type Record struct {
	UserID string

	PersonaPath        *string
	PersonaWidth       *int
	PersonaHeight      *int
	PersonaContentType *string
	PersonaUpdatedAt   *time.Time

	ConsentVersion    *string
	ConsentAcceptedAt *time.Time

	QuotaTotal    int
	QuotaUsed     int
	QuotaRenewsAt *time.Time

	GarmentCachePath      *string
	GarmentCacheExpiresAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}
