package vton

import (
	"time"

	"codeberg.org/vestilook/server/internal/consent"
)

// Status is the persisted lifecycle state of a generation job
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusSucceeded  Status = "succeeded"
	StatusFailed     Status = "failed"
)

// ErrorCode classifies why a job failed
type ErrorCode string

const (
	CodeInvalidGarmentImage ErrorCode = "invalid_garment_image"
	CodeGarmentNotDetected  ErrorCode = "garment_not_detected"
	CodeSafetyBlocked       ErrorCode = "safety_blocked"
	CodeProviderTimeout     ErrorCode = "provider_timeout"
	CodeProviderUnavailable ErrorCode = "provider_unavailable"
	CodeProviderQuota       ErrorCode = "provider_quota"
	CodeProviderAuth        ErrorCode = "provider_auth"
	CodeInternalError       ErrorCode = "internal_error"
	CodeUnknown             ErrorCode = "unknown"
)

// Job is a generation request as stored and returned by the API
type Job struct {
	ID             string     `json:"id"`
	UserID         string     `json:"-"`
	Status         Status     `json:"status"`
	PersonaPath    string     `json:"personaPath"`
	GarmentPath    string     `json:"garmentPath"`
	ResultPath     *string    `json:"resultPath,omitempty"`
	VertexJobID    *string    `json:"vertexJobId,omitempty"`
	ErrorCode      *string    `json:"errorCode,omitempty"`
	ErrorMessage   *string    `json:"errorMessage,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	StartedAt      *time.Time `json:"startedAt,omitempty"`
	CompletedAt    *time.Time `json:"completedAt,omitempty"`
	ExpiresAt      *time.Time `json:"expiresAt,omitempty"`
	ETASeconds     int        `json:"etaSeconds"`
	RetainForHours int        `json:"retainForHours"`
	Rating         *int       `json:"rating,omitempty"`
}

type Quota struct {
	Total     int        `json:"total"`
	Used      int        `json:"used"`
	Remaining int        `json:"remaining"`
	RenewsAt  *time.Time `json:"renewsAt,omitempty"`
}

type Persona struct {
	Path        string    `json:"path"`
	Width       int       `json:"width"`
	Height      int       `json:"height"`
	ContentType string    `json:"contentType"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// GarmentCache points at the last garment a user uploaded
type GarmentCache struct {
	Path      string    `json:"path"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type Profile struct {
	UserID       string        `json:"userId"`
	Persona      *Persona      `json:"persona,omitempty"`
	Consent      consent.State `json:"consent"`
	Quota        Quota         `json:"quota"`
	GarmentCache *GarmentCache `json:"garmentCache,omitempty"`
}

// Submission is the body of an accepted generation request
type Submission struct {
	Job
	Quota Quota `json:"quota"`
}
