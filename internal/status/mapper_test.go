package status

import (
	"reflect"
	"testing"
	"time"

	"codeberg.org/vestilook/server/internal/vton"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	t0      = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	buckets = Buckets{Persona: "personas", Garment: "garments", Result: "results"}
)

func queuedJob() *vton.Job {
	return &vton.Job{
		ID:             "3f1c6b1e-8a5d-4c2b-9f0e-2d7a1b3c4e5f",
		Status:         vton.StatusQueued,
		PersonaPath:    "u1/snapshots/job.jpg",
		GarmentPath:    "u1/job.jpg",
		CreatedAt:      t0,
		ExpiresAt:      lo.ToPtr(t0.Add(72 * time.Hour)),
		ETASeconds:     45,
		RetainForHours: 72,
	}
}

func succeededJob() *vton.Job {
	j := queuedJob()
	j.Status = vton.StatusSucceeded
	j.StartedAt = lo.ToPtr(t0.Add(5 * time.Second))
	j.CompletedAt = lo.ToPtr(t0.Add(40 * time.Second))
	j.ResultPath = lo.ToPtr("u1/job.png")

	return j
}

func failedJob(code string) *vton.Job {
	j := queuedJob()
	j.Status = vton.StatusFailed
	j.StartedAt = lo.ToPtr(t0.Add(5 * time.Second))
	j.CompletedAt = lo.ToPtr(t0.Add(20 * time.Second))
	j.ErrorCode = lo.ToPtr(code)

	return j
}

func mapAt(job *vton.Job, now time.Time) View {
	return Map(Input{Job: job, FetchedAt: t0, Now: now, SupportURL: "https://help.test", Buckets: buckets})
}

func TestMap_Queued(t *testing.T) {
	v := mapAt(queuedJob(), t0.Add(10*time.Second))

	assert.Equal(t, StateQueued, v.State)
	assert.Equal(t, "Queued", v.Label)
	assert.True(t, v.Actions.CanKeepWorking.Allowed)
	assert.False(t, v.Actions.CanViewResult.Allowed)
	assert.Equal(t, reasonResultNotReady, v.Actions.CanViewResult.Reason)
	assert.False(t, v.Actions.CanRetry.Allowed)
	assert.Nil(t, v.Failure)
	assert.Nil(t, v.Assets.Result)
	require.NotNil(t, v.Assets.Persona)
	assert.Equal(t, "personas", v.Assets.Persona.Bucket)

	require.Len(t, v.Timeline, 3)
	assert.True(t, v.Timeline[0].IsCompleted)
	assert.False(t, v.Timeline[0].IsCurrent)
	assert.False(t, v.Timeline[1].IsCompleted)
	assert.True(t, v.Timeline[1].IsCurrent)
	assert.False(t, v.Timeline[2].IsCurrent)
	assert.Equal(t, StepCompleted, v.Timeline[2].ID)

	require.NotNil(t, v.Countdown)
	assert.Equal(t, t0.Add(45*time.Second), v.Countdown.Target)
	assert.Equal(t, 35*time.Second, v.Countdown.Remaining)
	assert.Equal(t, "35s", v.Countdown.Formatted)
	assert.False(t, v.Countdown.IsExpired)
}

func TestMap_ProcessingTimeline(t *testing.T) {
	job := queuedJob()
	job.Status = vton.StatusProcessing
	job.StartedAt = lo.ToPtr(t0.Add(3 * time.Second))

	v := mapAt(job, t0.Add(4*time.Second))

	assert.Equal(t, StateProcessing, v.State)
	assert.True(t, v.Timeline[1].IsCompleted)
	assert.False(t, v.Timeline[1].IsCurrent)
	assert.True(t, v.Timeline[2].IsCurrent)
	assert.True(t, v.Actions.CanKeepWorking.Allowed)
}

func TestMap_SucceededNotExpired(t *testing.T) {
	v := mapAt(succeededJob(), t0.Add(time.Hour))

	assert.Equal(t, StateSucceeded, v.State)
	assert.True(t, v.Actions.CanViewResult.Allowed)
	assert.True(t, v.Actions.CanDownload.Allowed)
	assert.True(t, v.Actions.CanRate.Allowed)
	assert.False(t, v.Actions.CanKeepWorking.Allowed)
	assert.Nil(t, v.Countdown)
	require.NotNil(t, v.Assets.Result)
	assert.Equal(t, "results", v.Assets.Result.Bucket)

	for _, step := range v.Timeline {
		assert.True(t, step.IsCompleted, step.ID)
		assert.False(t, step.IsCurrent, step.ID)
	}
}

func TestMap_SucceededButExpired(t *testing.T) {
	job := succeededJob()
	v := mapAt(job, job.ExpiresAt.Add(time.Second))

	assert.Equal(t, StateExpired, v.State)
	assert.Equal(t, vton.StatusSucceeded, v.Status)
	assert.Equal(t, "Expired", v.Label)
	assert.False(t, v.Actions.CanViewResult.Allowed)
	assert.Equal(t, "result expired", v.Actions.CanViewResult.Reason)
	assert.False(t, v.Actions.CanDownload.Allowed)
	assert.False(t, v.Actions.CanRate.Allowed)
}

func TestMap_ExpiryBoundaryIsInclusive(t *testing.T) {
	job := succeededJob()

	assert.Equal(t, StateSucceeded, mapAt(job, job.ExpiresAt.Add(-time.Nanosecond)).State)
	assert.Equal(t, StateExpired, mapAt(job, *job.ExpiresAt).State)
}

func TestMap_AlreadyRated(t *testing.T) {
	job := succeededJob()
	job.Rating = lo.ToPtr(4)

	v := mapAt(job, t0.Add(time.Hour))

	assert.False(t, v.Actions.CanRate.Allowed)
	assert.Equal(t, reasonAlreadyRated, v.Actions.CanRate.Reason)
	assert.Equal(t, lo.ToPtr(4), v.Rating)
}

func TestMap_SucceededWithoutResultPath(t *testing.T) {
	job := succeededJob()
	job.ResultPath = nil

	v := mapAt(job, t0.Add(time.Hour))

	assert.True(t, v.Actions.CanViewResult.Allowed)
	assert.False(t, v.Actions.CanDownload.Allowed)
}

func TestMap_FailedRetry(t *testing.T) {
	v := mapAt(failedJob(string(vton.CodeProviderTimeout)), t0.Add(time.Minute))

	assert.Equal(t, StateFailed, v.State)
	assert.True(t, v.Actions.CanRetry.Allowed)
	assert.False(t, v.Actions.CanViewResult.Allowed)
	require.NotNil(t, v.Failure)
	assert.Equal(t, "https://help.test", v.Failure.SupportURL)
	assert.Equal(t, StepFailed, v.Timeline[2].ID)
	assert.True(t, v.Timeline[2].IsCompleted)
}

func TestMap_FailedQuotaExhausted(t *testing.T) {
	quota := vton.NewQuota(5, 5, nil)

	v := Map(Input{Job: failedJob("unknown"), Now: t0, Quota: &quota})

	assert.False(t, v.Actions.CanRetry.Allowed)
	assert.Equal(t, "quota exhausted", v.Actions.CanRetry.Reason)
}

func TestMap_FailedBeforeStart(t *testing.T) {
	job := failedJob(string(vton.CodeInternalError))
	job.StartedAt = nil

	v := mapAt(job, t0.Add(time.Minute))

	assert.False(t, v.Timeline[1].IsCompleted)
	for _, step := range v.Timeline {
		assert.False(t, step.IsCurrent, "no current step once final")
	}
}

func TestMap_FailureDescriptionUsesMessage(t *testing.T) {
	job := failedJob(string(vton.CodeInvalidGarmentImage))
	job.ErrorMessage = lo.ToPtr("garment image is too dark")

	v := mapAt(job, t0)

	assert.Equal(t, "garment image is too dark", v.Description)
	assert.Equal(t, "garment image is too dark", v.Failure.Description)
	assert.Equal(t, "Garment photo was rejected", v.Failure.Title)
}

func TestMap_Idempotent(t *testing.T) {
	now := t0.Add(20 * time.Second)

	jobs := []*vton.Job{queuedJob(), succeededJob(), failedJob("unknown")}

	for _, job := range jobs {
		a := mapAt(job, now)
		b := mapAt(job, now)

		assert.True(t, reflect.DeepEqual(a, b), "status %s", job.Status)
	}
}

func TestMap_CountdownClampsAtZero(t *testing.T) {
	v := mapAt(queuedJob(), t0.Add(10*time.Minute))

	require.NotNil(t, v.Countdown)
	assert.Equal(t, time.Duration(0), v.Countdown.Remaining)
	assert.Equal(t, 0, v.Countdown.RemainingSeconds)
	assert.Equal(t, "0s", v.Countdown.Formatted)
	assert.True(t, v.Countdown.IsExpired)
}

func TestMap_CountdownFallsBackToCreatedAt(t *testing.T) {
	job := queuedJob()
	job.CreatedAt = t0.Add(-30 * time.Second)

	v := Map(Input{Job: job, Now: t0})

	require.NotNil(t, v.Countdown)
	assert.Equal(t, t0.Add(15*time.Second), v.Countdown.Target)
}

func TestMap_NoCountdownWithoutETA(t *testing.T) {
	job := queuedJob()
	job.ETASeconds = 0

	assert.Nil(t, mapAt(job, t0).Countdown)
}

func TestNewCountdown_NeverNegative(t *testing.T) {
	for offset := -90; offset <= 90; offset += 7 {
		now := t0.Add(time.Duration(offset) * time.Second)
		c := NewCountdown(t0, 45, now)

		assert.GreaterOrEqual(t, c.Remaining, time.Duration(0))
		assert.Equal(t, !now.Before(c.Target), c.IsExpired)
	}
}

func TestFormatRemaining(t *testing.T) {
	cases := []struct {
		in   time.Duration
		want string
	}{
		{0, "0s"},
		{-5 * time.Second, "0s"},
		{45 * time.Second, "45s"},
		{44*time.Second + time.Millisecond, "45s"},
		{59*time.Second + 500*time.Millisecond, "1m00s"},
		{60 * time.Second, "1m00s"},
		{65 * time.Second, "1m05s"},
		{10*time.Minute + 30*time.Second, "10m30s"},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, FormatRemaining(tc.in), tc.in.String())
	}
}

func TestIsFinal(t *testing.T) {
	assert.False(t, IsFinal(vton.StatusQueued))
	assert.False(t, IsFinal(vton.StatusProcessing))
	assert.True(t, IsFinal(vton.StatusSucceeded))
	assert.True(t, IsFinal(vton.StatusFailed))
}
