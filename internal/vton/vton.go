package vton

import (
	"strings"
	"time"

	"codeberg.org/vestilook/server/internal/logger"
	"github.com/samber/lo"
)

var statuses = []Status{StatusQueued, StatusProcessing, StatusSucceeded, StatusFailed}

// returns every persisted status
func Statuses() []Status {
	return append([]Status(nil), statuses...)
}

// parses a status name, rejecting unknown values
func ParseStatus(s string) (Status, bool) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	return st, lo.Contains(statuses, st)
}

// reports whether the status is terminal
func (s Status) IsFinal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// builds a quota keeping remaining = max(0, total - used).
// usage above the allotment is logged and never fails.
func NewQuota(total, used int, renewsAt *time.Time) Quota {
	if used > total {
		logger.Warn("quota usage exceeds allotment",
			"total", total,
			"used", used,
		)
	}

	return Quota{
		Total:     total,
		Used:      used,
		Remaining: max(0, total-used),
		RenewsAt:  renewsAt,
	}
}

// reports whether no generations are left
func (q Quota) Exhausted() bool {
	return q.Remaining <= 0
}

// returns the quota after one more generation
func (q Quota) Consume() Quota {
	return NewQuota(q.Total, q.Used+1, q.RenewsAt)
}

// reports whether the job has a stored result
func (j *Job) HasResult() bool {
	return j.ResultPath != nil && *j.ResultPath != ""
}

// reports whether the retention window has passed
func (j *Job) IsExpired(now time.Time) bool {
	return j.ExpiresAt != nil && !now.Before(*j.ExpiresAt)
}
