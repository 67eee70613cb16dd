package consent

import (
	"sync/atomic"
	"time"
)

type State struct {
	RequiredVersion string     `json:"requiredVersion"`
	AcceptedVersion string     `json:"acceptedVersion,omitempty"`
	AcceptedAt      *time.Time `json:"acceptedAt,omitempty"`
	IsCompliant     bool       `json:"isCompliant"`
}

type ReceiptStatus string

const (
	ReceiptCreated ReceiptStatus = "created"
	ReceiptUpdated ReceiptStatus = "updated"
)

// Receipt is what the acceptance endpoint returns
type Receipt struct {
	Version    string        `json:"acceptedVersion"`
	AcceptedAt time.Time     `json:"acceptedAt"`
	ExpiresAt  *time.Time    `json:"expiresAt,omitempty"`
	Status     ReceiptStatus `json:"-"`
}

// Policy is a loaded consent document
type Policy struct {
	Version      string
	Title        string
	UpdatedAt    time.Time
	ExpiresAfter time.Duration
	URL          string
	Content      string
	Source       string
}

type frontMatter struct {
	Version      string    `yaml:"version"`
	Title        string    `yaml:"title"`
	UpdatedAt    time.Time `yaml:"updatedAt"`
	ExpiresAfter string    `yaml:"expiresAfter"`
}

// PolicyStore holds the current policy and reloads it when the file changes
type PolicyStore struct {
	path     string
	url      string
	current  atomic.Pointer[Policy]
	watching atomic.Bool
}

// Acceptance is the body of a consent acceptance request
type Acceptance struct {
	Version  string `json:"version"`
	Accepted bool   `json:"accepted"`
}

// Document is the consent status with the policy it refers to
type Document struct {
	State
	PolicyURL     string   `json:"policyUrl"`
	PolicyContent string   `json:"policyContent"`
	Metadata      Metadata `json:"metadata"`
}

type Metadata struct {
	Source    string    `json:"source"`
	UpdatedAt time.Time `json:"updatedAt"`
}
