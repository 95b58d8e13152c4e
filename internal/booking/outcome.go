package booking

import (
	"fmt"

	"github.com/example/visitsched/internal/domain/visit"
)

type Status string

const (
	StatusCreated Status = "created"
	StatusSkipped Status = "skipped-duplicate"
	StatusFailed  Status = "failed"
)

// Outcome is the result for one candidate date.
type Outcome struct {
	Date        visit.Date         `json:"date"`
	Status      Status             `json:"status"`
	Reservation *visit.Reservation `json:"reservation,omitempty"`
	Reason      string             `json:"reason,omitempty"`
	Err         error              `json:"-"`
}

type State string

const (
	StateAuthenticating State = "authenticating"
	StateListing        State = "listing"
	StateExpanding      State = "expanding"
	StateDispatching    State = "dispatching"
	StateCompleted      State = "completed"
	StateFailed         State = "failed"
	StateCancelled      State = "cancelled"
)

// Result holds every outcome of a run in candidate order.
type Result struct {
	RunID    string    `json:"runId"`
	State    State     `json:"state"`
	Outcomes []Outcome `json:"outcomes"`
	Created  int       `json:"created"`
	Skipped  int       `json:"skipped"`
	Failed   int       `json:"failed"`
}

func (r *Result) add(o Outcome) {
	r.Outcomes = append(r.Outcomes, o)
	switch o.Status {
	case StatusCreated:
		r.Created++
	case StatusSkipped:
		r.Skipped++
	case StatusFailed:
		r.Failed++
	}
}

func (r Result) Summary() string {
	return fmt.Sprintf("%s: %d created, %d skipped as duplicates, %d failed", r.State, r.Created, r.Skipped, r.Failed)
}

type CancelStatus string

const (
	CancelDeleted  CancelStatus = "deleted"
	CancelNotFound CancelStatus = "not-found"
	CancelFailed   CancelStatus = "failed"
)

type CancelOutcome struct {
	ID     int64        `json:"id"`
	Status CancelStatus `json:"status"`
	Reason string       `json:"reason,omitempty"`
	Err    error        `json:"-"`
}

type Candidate struct {
	Date      visit.Date `json:"date"`
	Duplicate bool       `json:"duplicate"`
}

// Preview is a dry run: the candidate dates and which of them are already booked.
type Preview struct {
	Candidates []Candidate `json:"candidates"`
	New        int         `json:"new"`
	Duplicates int         `json:"duplicates"`
}
