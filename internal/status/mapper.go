package status

import (
	"fmt"
	"math"
	"time"

	"codeberg.org/vestilook/server/internal/vton"
)

const (
	reasonResultExpired  = "result expired"
	reasonResultNotReady = "result not ready"
	reasonGenerationFail = "generation failed"
	reasonNoResult       = "result unavailable"
	reasonQuotaExhausted = "quota exhausted"
	reasonNotFailed      = "only failed generations can be retried"
	reasonAlreadyRated   = "already rated"
	reasonFinished       = "generation finished"
)

// reports whether polling can stop
func IsFinal(s vton.Status) bool {
	return s.IsFinal()
}

// maps a job record to its presentation model. the result depends only on
// the input, so mapping the same input twice gives equal views.
func Map(in Input) View {
	job := in.Job
	state := stateOf(job, in.Now)

	v := View{
		JobID:     job.ID,
		Status:    job.Status,
		State:     state,
		Timeline:  timeline(job),
		Actions:   actions(job, state, in.Quota),
		Assets:    assetRefs(job, in.Buckets),
		Rating:    job.Rating,
		CreatedAt: job.CreatedAt,
		ExpiresAt: job.ExpiresAt,
	}

	v.Label, v.Description = describe(job, state)

	if job.Status == vton.StatusFailed {
		v.Failure = buildFailure(job, in.SupportURL)
	}

	if !job.Status.IsFinal() && job.ETASeconds > 0 {
		anchor := in.FetchedAt
		if anchor.IsZero() {
			anchor = job.CreatedAt
		}

		v.Countdown = NewCountdown(anchor, job.ETASeconds, in.Now)
	}

	return v
}

func stateOf(job *vton.Job, now time.Time) State {
	switch job.Status {
	case vton.StatusQueued:
		return StateQueued
	case vton.StatusProcessing:
		return StateProcessing
	case vton.StatusSucceeded:
		if job.IsExpired(now) {
			return StateExpired
		}

		return StateSucceeded
	default:
		return StateFailed
	}
}

func describe(job *vton.Job, state State) (string, string) {
	switch state {
	case StateQueued:
		return "Queued", "Waiting to start"
	case StateProcessing:
		return "Processing", "Generation in progress"
	case StateSucceeded:
		return "Ready", "Result ready"
	case StateExpired:
		return "Expired", "Result expired and was removed"
	default:
		if job.ErrorMessage != nil && *job.ErrorMessage != "" {
			return "Failed", *job.ErrorMessage
		}

		return "Failed", "The generation could not be completed"
	}
}

// steps are sequential: processing needs startedAt, the terminal step needs
// completedAt or an error. nothing is current once the job is final.
func timeline(job *vton.Job) []Step {
	terminal := Step{ID: StepCompleted, Label: "Completed", At: job.CompletedAt}
	if job.Status == vton.StatusFailed {
		terminal = Step{ID: StepFailed, Label: "Failed", At: job.CompletedAt}
	}

	created := job.CreatedAt

	steps := []Step{
		{ID: StepQueued, Label: "Queued", At: &created, IsCompleted: true},
		{ID: StepProcessing, Label: "Processing", At: job.StartedAt, IsCompleted: job.StartedAt != nil},
		terminal,
	}

	steps[2].IsCompleted = job.CompletedAt != nil || (job.ErrorCode != nil && *job.ErrorCode != "")

	if job.Status.IsFinal() {
		return steps
	}

	for i := range steps {
		if !steps[i].IsCompleted {
			steps[i].IsCurrent = true
			break
		}
	}

	return steps
}

func actions(job *vton.Job, state State, quota *vton.Quota) Actions {
	var a Actions

	switch state {
	case StateSucceeded:
		a.CanViewResult = Action{Allowed: true}

		if job.HasResult() {
			a.CanDownload = Action{Allowed: true}
		} else {
			a.CanDownload = Action{Reason: reasonNoResult}
		}

		if job.Rating != nil {
			a.CanRate = Action{Reason: reasonAlreadyRated}
		} else {
			a.CanRate = Action{Allowed: true}
		}

	case StateExpired:
		a.CanViewResult = Action{Reason: reasonResultExpired}
		a.CanDownload = Action{Reason: reasonResultExpired}
		a.CanRate = Action{Reason: reasonResultExpired}

	case StateFailed:
		a.CanViewResult = Action{Reason: reasonGenerationFail}
		a.CanDownload = Action{Reason: reasonGenerationFail}
		a.CanRate = Action{Reason: reasonGenerationFail}

	default:
		a.CanViewResult = Action{Reason: reasonResultNotReady}
		a.CanDownload = Action{Reason: reasonResultNotReady}
		a.CanRate = Action{Reason: reasonResultNotReady}
	}

	switch {
	case state != StateFailed:
		a.CanRetry = Action{Reason: reasonNotFailed}
	case quota != nil && quota.Exhausted():
		a.CanRetry = Action{Reason: reasonQuotaExhausted}
	default:
		a.CanRetry = Action{Allowed: true}
	}

	if job.Status.IsFinal() {
		a.CanKeepWorking = Action{Reason: reasonFinished}
	} else {
		a.CanKeepWorking = Action{Allowed: true}
	}

	return a
}

func assetRefs(job *vton.Job, b Buckets) Assets {
	var out Assets

	if job.PersonaPath != "" {
		out.Persona = &AssetRef{Bucket: b.Persona, Path: job.PersonaPath}
	}

	if job.GarmentPath != "" {
		out.Garment = &AssetRef{Bucket: b.Garment, Path: job.GarmentPath}
	}

	if job.HasResult() {
		out.Result = &AssetRef{Bucket: b.Result, Path: *job.ResultPath}
	}

	return out
}

// builds the ETA countdown. remaining never goes below zero.
func NewCountdown(anchor time.Time, etaSeconds int, now time.Time) *Countdown {
	target := anchor.Add(time.Duration(etaSeconds) * time.Second)
	remaining := max(target.Sub(now), 0)

	return &Countdown{
		Target:           target,
		Remaining:        remaining,
		RemainingSeconds: int(math.Ceil(remaining.Seconds())),
		Formatted:        FormatRemaining(remaining),
		IsExpired:        !now.Before(target),
	}
}

// formats a duration as "1m05s" or "45s", rounding up to whole seconds
func FormatRemaining(d time.Duration) string {
	secs := int(math.Ceil(max(d, 0).Seconds()))

	if secs >= 60 {
		return fmt.Sprintf("%dm%02ds", secs/60, secs%60)
	}

	return fmt.Sprintf("%ds", secs)
}
