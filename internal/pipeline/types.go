package pipeline

import (
	"context"

	"codeberg.org/vestilook/server/internal/client"
	"codeberg.org/vestilook/server/internal/consent"
	"codeberg.org/vestilook/server/internal/garment"
	"codeberg.org/vestilook/server/internal/vton"
)

type Stage string

const (
	StageConsent    Stage = "consent"
	StageGeneration Stage = "generation"
)

type ConsentAPI interface {
	AcceptConsent(ctx context.Context, version string) (*consent.Receipt, error)
}

type GenerationAPI interface {
	SubmitGeneration(ctx context.Context, s client.Submission) (*client.Submitted, error)
}

// Pipeline submits generations, accepting consent first when needed
type Pipeline struct {
	consent     ConsentAPI
	generations GenerationAPI
}

type Request struct {
	Garment        *garment.Selection
	RetainForHours int
}

type Result struct {
	JobID      string
	Status     vton.Status
	Location   string
	ETASeconds int
	Quota      vton.Quota       // as reported by the server
	Consent    *consent.Receipt // set when consent was accepted on the way
}

// Error is a failed submission. Stage tells which request failed.
type Error struct {
	Code      string
	Stage     Stage
	Retriable bool
	Err       error
}
