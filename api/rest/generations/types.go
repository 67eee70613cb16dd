package generations

import (
	"context"

	"codeberg.org/vestilook/server/internal/generation"
	"codeberg.org/vestilook/server/internal/history"
	"codeberg.org/vestilook/server/internal/status"
	"codeberg.org/vestilook/server/internal/vton"
)

const basePath = "/api/vton/generations"

// Service is the part of the generation service the handlers use
type Service interface {
	Create(ctx context.Context, in generation.CreateInput) (*vton.Submission, error)
	Get(ctx context.Context, id, userID string) (*vton.Job, error)
	View(ctx context.Context, id, userID string) (*status.View, error)
	List(ctx context.Context, userID string, f history.Filters) (history.Page, error)
	Rate(ctx context.Context, id, userID string, rating int) (*vton.Job, error)
}

// RateRequest is the body of a rating submission
type RateRequest struct {
	Rating int `json:"rating" binding:"required"`
}
