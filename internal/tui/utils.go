package tui

import (
	"fmt"
	"time"

	"codeberg.org/vestilook/server/internal/status"
)

const (
	defaultInterval = status.FixedInterval(3 * time.Second)
	requestTimeout  = 30 * time.Second
	pongWait        = 60 * time.Second
	pingPeriod      = (pongWait * 9) / 10
	writeWait       = 10 * time.Second
)

const reauthHint = "your session has expired. sign in again and update VESTILOOK_ACCESS_TOKEN."

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}

	return t.Local().Format("2006-01-02 15:04")
}

func formatBytes(n int) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}

func ratingStars(r *int) string {
	if r == nil {
		return "-"
	}

	stars := ""
	for i := 1; i <= 5; i++ {
		if i <= *r {
			stars += "★"
		} else {
			stars += "☆"
		}
	}

	return stars
}
