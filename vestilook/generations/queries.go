package generations

import "strings"

var jobColumns = []string{
	"id", "user_id", "status", "persona_path", "garment_path", "result_path", "vertex_job_id",
	"error_code", "error_message", "created_at", "started_at", "completed_at", "expires_at",
	"eta_seconds", "retain_for_hours", "rating",
}

var returningJob = " RETURNING " + strings.Join(jobColumns, ", ")

var selectJob = "SELECT " + strings.Join(jobColumns, ", ") + " FROM generations"

var (
	queryConsumeQuota = `
		UPDATE profiles
		SET quota_used = quota_used + 1, updated_at = NOW()
		WHERE user_id = $1 AND quota_used < quota_total
		RETURNING quota_total, quota_used, quota_renews_at
	`

	queryInsert = `
		INSERT INTO generations (id, user_id, status, persona_path, garment_path, eta_seconds, retain_for_hours, expires_at)
		VALUES ($1, $2, 'queued', $3, $4, $5, $6, $7)` + returningJob

	queryGetForUser = selectJob + ` WHERE id = $1 AND user_id = $2`

	queryGetByID = selectJob + ` WHERE id = $1`

	queryExists = `SELECT EXISTS (SELECT 1 FROM generations WHERE id = $1 AND user_id = $2)`

	queryMarkProcessing = `
		UPDATE generations
		SET status = 'processing', started_at = NOW()
		WHERE id = $1 AND status = 'queued'` + returningJob

	queryMarkSucceeded = `
		UPDATE generations
		SET status = 'succeeded', result_path = $2, vertex_job_id = $3, completed_at = NOW()
		WHERE id = $1 AND status = 'processing'
	`

	queryMarkFailed = `
		UPDATE generations
		SET status = 'failed', error_code = $2, error_message = $3, completed_at = NOW()
		WHERE id = $1 AND status IN ('queued', 'processing')
	`

	queryRate = `
		UPDATE generations
		SET rating = $3
		WHERE id = $1 AND user_id = $2
			AND status = 'succeeded'
			AND rating IS NULL
			AND (expires_at IS NULL OR expires_at > NOW())` + returningJob

	queryFailStale = `
		UPDATE generations
		SET status = 'failed', error_code = $2, error_message = $3, completed_at = NOW()
		WHERE status = 'processing' AND started_at < $1
	`

	queryListQueued = `
		SELECT id
		FROM generations
		WHERE status = 'queued'
		ORDER BY created_at
		LIMIT $1
	`

	queryListExpiredResults = selectJob + `
		WHERE status = 'succeeded' AND result_path IS NOT NULL AND expires_at <= $1
		ORDER BY expires_at
		LIMIT $2
	`

	queryClearResult = `
		UPDATE generations
		SET result_path = NULL
		WHERE id = $1
	`
)
