package account

import (
	"context"
	"errors"
	"fmt"
	"time"

	"codeberg.org/vestilook/server/internal/consent"
	"codeberg.org/vestilook/server/internal/garment"
	"codeberg.org/vestilook/server/internal/logger"
	"codeberg.org/vestilook/server/internal/vton"
)

var (
	ErrConsentNotAccepted = errors.New("consent must be accepted")
	ErrVersionRequired    = errors.New("consent version is required")
	ErrConsentOutdated    = errors.New("consent version is not the current policy")
)

func New(
	profiles ProfileStore,
	objects ObjectStore,
	urls URLInvalidator,
	policies PolicySource,
	personas *garment.Validator,
	cfg Config,
) *Service {
	return &Service{
		profiles: profiles,
		objects:  objects,
		urls:     urls,
		policies: policies,
		personas: personas,
		config:   cfg,
		now:      time.Now,
	}
}

// returns the user's profile, creating it with the free quota on first use
func (s *Service) Profile(ctx context.Context, userID string) (vton.Profile, error) {
	rec, err := s.profiles.GetOrCreate(ctx, userID, s.config.FreeQuota, s.now().Add(s.config.RenewalPeriod))
	if err != nil {
		return vton.Profile{}, fmt.Errorf("failed to load profile: %w", err)
	}

	return rec.Profile(s.policies.Current().Version), nil
}

// returns the consent state with the policy text it is measured against
func (s *Service) Consent(ctx context.Context, userID string) (consent.Document, error) {
	p, err := s.Profile(ctx, userID)
	if err != nil {
		return consent.Document{}, err
	}

	return s.policies.Current().Document(p.Consent), nil
}

// records acceptance of the current policy. the receipt is created on the
// user's first acceptance and updated on any later one, including a newer
// version.
func (s *Service) AcceptConsent(ctx context.Context, userID string, a consent.Acceptance) (consent.Receipt, error) {
	if a.Version == "" {
		return consent.Receipt{}, ErrVersionRequired
	}

	if !a.Accepted {
		return consent.Receipt{}, ErrConsentNotAccepted
	}

	policy := s.policies.Current()
	if a.Version != policy.Version {
		return consent.Receipt{}, ErrConsentOutdated
	}

	// make sure the row exists before locking it
	if _, err := s.profiles.GetOrCreate(ctx, userID, s.config.FreeQuota, s.now().Add(s.config.RenewalPeriod)); err != nil {
		return consent.Receipt{}, fmt.Errorf("failed to load profile: %w", err)
	}

	acceptedAt := s.now().UTC()

	_, created, err := s.profiles.AcceptConsent(ctx, userID, a.Version, acceptedAt)
	if err != nil {
		return consent.Receipt{}, fmt.Errorf("failed to record consent: %w", err)
	}

	receipt := consent.Receipt{
		Version:    a.Version,
		AcceptedAt: acceptedAt,
		ExpiresAt:  policy.ExpiryFor(acceptedAt),
		Status:     consent.ReceiptUpdated,
	}

	if created {
		receipt.Status = consent.ReceiptCreated
	}

	return receipt, nil
}

// validates and stores the user's persona photo, replacing the previous one
func (s *Service) UploadPersona(ctx context.Context, userID string, f *garment.File) (*vton.Persona, error) {
	img, err := s.personas.Check(f)
	if err != nil {
		return nil, err
	}

	prev, err := s.profiles.GetOrCreate(ctx, userID, s.config.FreeQuota, s.now().Add(s.config.RenewalPeriod))
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}

	old := prev.Persona()
	path := PersonaPath(userID, img.Ext)

	if err := s.objects.Put(ctx, s.config.PersonaBucket, path, f.Data, img.ContentType); err != nil {
		return nil, fmt.Errorf("failed to store persona: %w", err)
	}

	persona := vton.Persona{
		Path:        path,
		Width:       img.Width,
		Height:      img.Height,
		ContentType: img.ContentType,
		UpdatedAt:   s.now().UTC(),
	}

	rec, err := s.profiles.SetPersona(ctx, userID, persona)
	if err != nil {
		return nil, fmt.Errorf("failed to save persona: %w", err)
	}

	s.urls.Invalidate(s.config.PersonaBucket, path)
	if old != nil && old.Path != path {
		s.urls.Invalidate(s.config.PersonaBucket, old.Path)
		// best effort; the profile already points at the new path
		if err := s.objects.Delete(ctx, s.config.PersonaBucket, old.Path); err != nil {
			logger.FromContext(ctx).Warn("failed to delete previous persona",
				"user_id", userID,
				"path", old.Path,
				"error", err,
			)
		}
	}

	return rec.Persona(), nil
}

// object key of a user's current persona photo
func PersonaPath(userID, ext string) string {
	return userID + "/persona." + ext
}
