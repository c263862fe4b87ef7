// Package types contains error kinds and small value types shared across layers.
package types

// Outcome records which path produced a served payload.
type Outcome string

const (
	// OutcomeFresh is a payload taken from the primary source.
	OutcomeFresh Outcome = "fresh"
	// OutcomeDegraded is a default payload served because the provider failed.
	OutcomeDegraded Outcome = "degraded"
	// OutcomeSecondary is a payload taken from the aggregate store instead of the provider.
	OutcomeSecondary Outcome = "secondary"
)

func (o Outcome) String() string { return string(o) }

// ErrorBody is the JSON document written for failed requests.
type ErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
