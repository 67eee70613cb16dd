package profile

import (
	"context"

	"codeberg.org/vestilook/server/internal/consent"
	"codeberg.org/vestilook/server/internal/garment"
	"codeberg.org/vestilook/server/internal/vton"
)

// Service is the part of the account service the handlers use
type Service interface {
	Profile(ctx context.Context, userID string) (vton.Profile, error)
	Consent(ctx context.Context, userID string) (consent.Document, error)
	AcceptConsent(ctx context.Context, userID string, a consent.Acceptance) (consent.Receipt, error)
	UploadPersona(ctx context.Context, userID string, f *garment.File) (*vton.Persona, error)
}
