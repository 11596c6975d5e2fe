package jobs

import "github.com/google/uuid"

// Payloads are what a queued job_run row carries; handlers re-read current
// state from the database, so payloads stay small and id-shaped.

type ProcessConcernPayload struct {
	ConcernID uuid.UUID `json:"concern_id"`
}

type NotifyEmailPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Text    string `json:"text,omitempty"`
	HTML    string `json:"html,omitempty"`
}

type NotifySMSPayload struct {
	To   string `json:"to"`
	Body string `json:"body"`
}

type NotifyAssignmentPayload struct {
	DistributionID uuid.UUID `json:"distribution_id"`
}
