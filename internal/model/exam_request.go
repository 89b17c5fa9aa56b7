package model

import (
	"time"

	"github.com/google/uuid"
)

// ExamRequest is a student's pending request for an exam slot. Requests live
// in the pending store only: a decision (approve or deny) is terminal and
// removes the record.
type ExamRequest struct {
	ID                   uuid.UUID  `json:"id"`
	StudentID            string     `json:"student_id"`
	Subject              string     `json:"subject"`
	Faculty              string     `json:"faculty"`
	GroupID              uuid.UUID  `json:"group_id"`
	ClassroomID          uuid.UUID  `json:"classroom_id"`
	MainProfessorID      uuid.UUID  `json:"main_professor_id"`
	SecondaryProfessorID *uuid.UUID `json:"secondary_professor_id"`
	Day                  time.Time  `json:"day"`
	StartMin             int        `json:"start_min"`
	DurationMin          int        `json:"duration_min"`
	CreatedAt            time.Time  `json:"created_at"`
}

// IsComplete reports whether the request carries everything needed to create
// an exam at approval time.
func (r *ExamRequest) IsComplete() bool {
	return r.Subject != "" &&
		!r.Day.IsZero() &&
		r.DurationMin > 0 &&
		r.StartMin >= 0 &&
		r.ClassroomID != uuid.Nil
}

type DecisionStatus string

const (
	DecisionApproved DecisionStatus = "approved"
	DecisionDenied   DecisionStatus = "denied"
)

// Decision is the terminal outcome of a request.
type Decision struct {
	RequestID uuid.UUID      `json:"request_id"`
	Status    DecisionStatus `json:"status"`
	Reason    string         `json:"reason,omitempty"`
	Exam      *Exam          `json:"exam,omitempty"`
	Notified  int            `json:"notified"`
}

// RequestFilter narrows pending-request listings.
type RequestFilter struct {
	StudentID string
	GroupID   *uuid.UUID
	Subject   string
}
