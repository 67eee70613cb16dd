package generations

import (
	"context"
	"errors"
	"fmt"
	"time"

	"codeberg.org/vestilook/server/internal/logger"
	"codeberg.org/vestilook/server/internal/vton"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound       = errors.New("generation not found")
	ErrQuotaExhausted = errors.New("generation quota exhausted")
	ErrNotRatable     = errors.New("generation cannot be rated")
	ErrNotClaimable   = errors.New("generation is not queued")
)

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

func scanJob(row pgx.Row) (*vton.Job, error) {
	var j vton.Job

	err := row.Scan(
		&j.ID,
		&j.UserID,
		&j.Status,
		&j.PersonaPath,
		&j.GarmentPath,
		&j.ResultPath,
		&j.VertexJobID,
		&j.ErrorCode,
		&j.ErrorMessage,
		&j.CreatedAt,
		&j.StartedAt,
		&j.CompletedAt,
		&j.ExpiresAt,
		&j.ETASeconds,
		&j.RetainForHours,
		&j.Rating,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}

	if err != nil {
		return nil, err
	}

	return &j, nil
}

// counts one generation against the user's quota and queues the job in a
// single transaction. ErrQuotaExhausted leaves both untouched.
func (r *Repository) CreateWithQuota(ctx context.Context, nj NewJob) (*vton.Job, vton.Quota, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, vton.Quota{}, fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			logger.Warn("failed to rollback transaction", "error", err)
		}
	}()

	var (
		total, used int
		renewsAt    *time.Time
	)

	err = tx.QueryRow(ctx, queryConsumeQuota, nj.UserID).Scan(&total, &used, &renewsAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, vton.Quota{}, ErrQuotaExhausted
	}

	if err != nil {
		return nil, vton.Quota{}, fmt.Errorf("failed to consume quota: %w", err)
	}

	job, err := scanJob(tx.QueryRow(ctx, queryInsert,
		nj.ID,
		nj.UserID,
		nj.PersonaPath,
		nj.GarmentPath,
		nj.ETASeconds,
		nj.RetainForHours,
		nj.ExpiresAt,
	))
	if err != nil {
		return nil, vton.Quota{}, fmt.Errorf("failed to insert generation: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, vton.Quota{}, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return job, vton.NewQuota(total, used, renewsAt), nil
}

// returns the user's job; another user's id is reported as not found
func (r *Repository) Get(ctx context.Context, id, userID string) (*vton.Job, error) {
	return scanJob(r.db.QueryRow(ctx, queryGetForUser, id, userID))
}

// returns a job regardless of owner, for the worker
func (r *Repository) GetByID(ctx context.Context, id string) (*vton.Job, error) {
	return scanJob(r.db.QueryRow(ctx, queryGetByID, id))
}

// moves a queued job to processing. ErrNotClaimable means another worker
// already took it or it is final.
func (r *Repository) MarkProcessing(ctx context.Context, id string) (*vton.Job, error) {
	job, err := scanJob(r.db.QueryRow(ctx, queryMarkProcessing, id))
	if errors.Is(err, ErrNotFound) {
		return nil, ErrNotClaimable
	}

	return job, err
}

func (r *Repository) MarkSucceeded(ctx context.Context, id, resultPath, vertexJobID string) error {
	tag, err := r.db.Exec(ctx, queryMarkSucceeded, id, resultPath, vertexJobID)
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

func (r *Repository) MarkFailed(ctx context.Context, id string, code vton.ErrorCode, message string) error {
	tag, err := r.db.Exec(ctx, queryMarkFailed, id, string(code), message)
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// stores a 1..5 rating on a succeeded, unexpired, unrated job
func (r *Repository) Rate(ctx context.Context, id, userID string, rating int) (*vton.Job, error) {
	job, err := scanJob(r.db.QueryRow(ctx, queryRate, id, userID, rating))
	if !errors.Is(err, ErrNotFound) {
		return job, err
	}

	var exists bool
	if err := r.db.QueryRow(ctx, queryExists, id, userID).Scan(&exists); err != nil {
		return nil, err
	}

	if !exists {
		return nil, ErrNotFound
	}

	return nil, ErrNotRatable
}

// returns ids of jobs still waiting, oldest first
// fails every job still processing that was claimed before startedBefore
// and returns how many were affected
func (r *Repository) FailStale(ctx context.Context, startedBefore time.Time, code vton.ErrorCode, message string) (int64, error) {
	tag, err := r.db.Exec(ctx, queryFailStale, startedBefore, string(code), message)
	if err != nil {
		return 0, err
	}

	return tag.RowsAffected(), nil
}

func (r *Repository) ListQueued(ctx context.Context, limit int) ([]string, error) {
	rows, err := r.db.Query(ctx, queryListQueued, limit)
	if err != nil {
		return nil, err
	}

	return pgx.CollectRows(rows, pgx.RowTo[string])
}

// returns succeeded jobs whose retention has passed but still have a result
func (r *Repository) ListExpiredResults(ctx context.Context, now time.Time, limit int) ([]vton.Job, error) {
	rows, err := r.db.Query(ctx, queryListExpiredResults, now, limit)
	if err != nil {
		return nil, err
	}

	return collectJobs(rows)
}

// forgets the stored result of a purged job. the status stays succeeded.
func (r *Repository) ClearResult(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx, queryClearResult, id)
	return err
}

func collectJobs(rows pgx.Rows) ([]vton.Job, error) {
	defer rows.Close()

	var jobs []vton.Job

	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}

		jobs = append(jobs, *job)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return jobs, nil
}
