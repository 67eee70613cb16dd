package generations

import (
	"context"
	"fmt"

	"codeberg.org/vestilook/server/internal/history"
	"codeberg.org/vestilook/server/internal/vton"
	sq "github.com/Masterminds/squirrel"
	"github.com/samber/lo"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// lists a user's jobs newest first, one page at a time
func (r *Repository) List(ctx context.Context, userID string, f history.Filters) (history.Page, error) {
	f = f.Normalize()

	query, args, err := buildListQuery(userID, f)
	if err != nil {
		return history.Page{}, err
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return history.Page{}, err
	}

	jobs, err := collectJobs(rows)
	if err != nil {
		return history.Page{}, err
	}

	return history.NewPage(jobs, f.PageSize), nil
}

// keyset pagination on (created_at, id); one extra row tells whether a
// next page exists
func buildListQuery(userID string, f history.Filters) (string, []any, error) {
	q := psql.Select(jobColumns...).
		From("generations").
		Where(sq.Eq{"user_id": userID})

	if len(f.Statuses) > 0 {
		q = q.Where(sq.Eq{"status": lo.Map(f.Statuses, func(s vton.Status, _ int) string {
			return string(s)
		})})
	}

	if f.From != nil {
		q = q.Where(sq.GtOrEq{"created_at": *f.From})
	}

	if f.To != nil {
		q = q.Where(sq.Lt{"created_at": *f.To})
	}

	if f.Cursor != "" {
		c, err := history.DecodeCursor(f.Cursor)
		if err != nil {
			return "", nil, err
		}

		q = q.Where(sq.Expr("(created_at, id) < (?, ?)", c.CreatedAt, c.ID))
	}

	query, args, err := q.
		OrderBy("created_at DESC", "id DESC").
		Limit(uint64(f.PageSize) + 1).
		ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("failed to build history query: %w", err)
	}

	return query, args, nil
}
