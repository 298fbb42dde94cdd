package domain

import "time"

// PollStatus is the terminal state of one poll cycle.
type PollStatus string

const (
	PollSkipped PollStatus = "skipped"
	PollSuccess PollStatus = "success"
	PollError   PollStatus = "error"
)

// PollResult is returned by every poll invocation, scheduled or manual.
type PollResult struct {
	Status   PollStatus   `json:"status"`
	Message  string       `json:"message,omitempty"`
	PolledAt *time.Time   `json:"polledAt,omitempty"`
	Results  *PollSummary `json:"results,omitempty"`
}

// PollSummary counts per-alert outcomes of a successful cycle. Skipped covers
// both the ledger and the store duplicate paths.
type PollSummary struct {
	Total     int      `json:"total"`
	Uploaded  int      `json:"uploaded"`
	Skipped   int      `json:"skipped"`
	Dismissed int      `json:"dismissed"`
	Errors    []string `json:"errors"`
}
