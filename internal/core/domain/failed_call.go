package domain

import "time"

// FailedCall records a generation call that ended in a terminal classified error.
type FailedCall struct {
	ID          string       `json:"id"`
	Resource    ResourceName `json:"resource"`
	Code        string       `json:"code"`
	Kind        string       `json:"kind"`
	RawMessage  string       `json:"raw_message"`
	UserMessage string       `json:"user_message"`
	Attempts    int          `json:"attempts"`
	FailedAt    time.Time    `json:"failed_at"`
}
