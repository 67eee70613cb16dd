package health

import "context"

// Pinger is a dependency the readiness check can reach
type Pinger interface {
	Ping(ctx context.Context) error
}

// liveness body
type Response struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Version string `json:"version,omitempty"`
}

// readiness body; Checks maps each dependency to "ok" or its failure
type ReadyResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

type PingResponse struct {
	Message string `json:"message"`
}
