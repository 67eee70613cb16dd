package profiles

import (
	"context"
	"errors"
	"fmt"
	"time"

	"codeberg.org/vestilook/server/internal/consent"
	"codeberg.org/vestilook/server/internal/logger"
	"codeberg.org/vestilook/server/internal/vton"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/lo"
)

var ErrProfileNotFound = errors.New("profile not found")

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

func scanRecord(row pgx.Row) (*Record, error) {
	var r Record

	err := row.Scan(
		&r.UserID,
		&r.PersonaPath,
		&r.PersonaWidth,
		&r.PersonaHeight,
		&r.PersonaContentType,
		&r.PersonaUpdatedAt,
		&r.ConsentVersion,
		&r.ConsentAcceptedAt,
		&r.QuotaTotal,
		&r.QuotaUsed,
		&r.QuotaRenewsAt,
		&r.GarmentCachePath,
		&r.GarmentCacheExpiresAt,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrProfileNotFound
	}

	if err != nil {
		return nil, err
	}

	return &r, nil
}

// returns the user's profile, creating it with the free quota on first use
func (r *Repository) GetOrCreate(ctx context.Context, userID string, freeTotal int, renewsAt time.Time) (*Record, error) {
	return scanRecord(r.db.QueryRow(ctx, queryGetOrCreate, userID, freeTotal, renewsAt))
}

// records acceptance of a consent version. created is true only for the
// user's first acceptance of any version.
func (r *Repository) AcceptConsent(ctx context.Context, userID, version string, acceptedAt time.Time) (rec *Record, created bool, err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			logger.Warn("failed to rollback transaction", "error", err)
		}
	}()

	var previous *string
	if err := tx.QueryRow(ctx, queryLockConsent, userID).Scan(&previous); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, ErrProfileNotFound
		}

		return nil, false, fmt.Errorf("failed to lock profile: %w", err)
	}

	rec, err = scanRecord(tx.QueryRow(ctx, queryAcceptConsent, userID, version, acceptedAt))
	if err != nil {
		return nil, false, fmt.Errorf("failed to accept consent: %w", err)
	}

	if _, err := tx.Exec(ctx, queryLogConsent, userID, version, acceptedAt); err != nil {
		return nil, false, fmt.Errorf("failed to log consent: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return rec, firstAcceptance(previous), nil
}

// reports whether no version had been accepted before
func firstAcceptance(previous *string) bool {
	return lo.FromPtr(previous) == ""
}

func (r *Repository) SetPersona(ctx context.Context, userID string, p vton.Persona) (*Record, error) {
	return scanRecord(r.db.QueryRow(ctx, querySetPersona,
		userID,
		p.Path,
		p.Width,
		p.Height,
		p.ContentType,
		p.UpdatedAt,
	))
}

// remembers the last uploaded garment until it expires with its job
func (r *Repository) SetGarmentCache(ctx context.Context, userID, path string, expiresAt time.Time) error {
	tag, err := r.db.Exec(ctx, querySetGarmentCache, userID, path, expiresAt)
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return ErrProfileNotFound
	}

	return nil
}

// resets usage for every profile whose renewal date has passed and returns
// how many were renewed
func (r *Repository) RenewQuotas(ctx context.Context, now time.Time, period time.Duration) (int64, error) {
	tag, err := r.db.Exec(ctx, queryRenewQuotas, now, now.Add(period))
	if err != nil {
		return 0, err
	}

	return tag.RowsAffected(), nil
}

// returns the user's persona, nil when none was uploaded
func (rec *Record) Persona() *vton.Persona {
	if rec.PersonaPath == nil || *rec.PersonaPath == "" {
		return nil
	}

	return &vton.Persona{
		Path:        *rec.PersonaPath,
		Width:       lo.FromPtr(rec.PersonaWidth),
		Height:      lo.FromPtr(rec.PersonaHeight),
		ContentType: lo.FromPtr(rec.PersonaContentType),
		UpdatedAt:   lo.FromPtr(rec.PersonaUpdatedAt),
	}
}

func (rec *Record) Quota() vton.Quota {
	return vton.NewQuota(rec.QuotaTotal, rec.QuotaUsed, rec.QuotaRenewsAt)
}

// builds the API profile, measuring consent against requiredVersion
func (rec *Record) Profile(requiredVersion string) vton.Profile {
	p := vton.Profile{
		UserID:  rec.UserID,
		Persona: rec.Persona(),
		Consent: consent.NewState(requiredVersion, lo.FromPtr(rec.ConsentVersion), rec.ConsentAcceptedAt),
		Quota:   rec.Quota(),
	}

	if rec.GarmentCachePath != nil && rec.GarmentCacheExpiresAt != nil {
		p.GarmentCache = &vton.GarmentCache{
			Path:      *rec.GarmentCachePath,
			ExpiresAt: *rec.GarmentCacheExpiresAt,
		}
	}

	return p
}
