package consent

import (
	"net/http"
	"time"
)

// reports whether the accepted version satisfies the required one.
// versions are opaque; only exact equality counts.
func IsCompliant(required, accepted string) bool {
	return accepted == required
}

// builds the consent state for a profile
func NewState(required, accepted string, acceptedAt *time.Time) State {
	return State{
		RequiredVersion: required,
		AcceptedVersion: accepted,
		AcceptedAt:      acceptedAt,
		IsCompliant:     accepted != "" && IsCompliant(required, accepted),
	}
}

// returns the state after a successful acceptance
func (s State) Merge(r Receipt) State {
	at := r.AcceptedAt
	return NewState(s.RequiredVersion, r.Version, &at)
}

// maps the acceptance response status to a receipt status
func ReceiptStatusFromHTTP(code int) ReceiptStatus {
	if code == http.StatusCreated {
		return ReceiptCreated
	}

	return ReceiptUpdated
}

// returns the HTTP status the acceptance endpoint answers with
func (r Receipt) HTTPStatus() int {
	if r.Status == ReceiptCreated {
		return http.StatusCreated
	}

	return http.StatusOK
}

// combines a user's consent state with the policy it is measured against
func (p *Policy) Document(s State) Document {
	return Document{
		State:         s,
		PolicyURL:     p.URL,
		PolicyContent: p.Content,
		Metadata: Metadata{
			Source:    p.Source,
			UpdatedAt: p.UpdatedAt,
		},
	}
}
