package model

import (
	"time"

	"github.com/google/uuid"
)

// Exam is a confirmed exam bound 1:1 to a live reservation in the slot
// ledger. Its interval [StartMin, StartMin+DurationMin) is always a subset of
// the booked interval referenced by ReservationID.
type Exam struct {
	ID                   uuid.UUID  `json:"id"`
	Subject              string     `json:"subject"`
	MainProfessorID      uuid.UUID  `json:"main_professor_id"`
	SecondaryProfessorID *uuid.UUID `json:"secondary_professor_id"`
	Faculty              string     `json:"faculty"`
	GroupID              uuid.UUID  `json:"group_id"`
	Day                  time.Time  `json:"day"`
	StartMin             int        `json:"start_min"`
	DurationMin          int        `json:"duration_min"`
	ClassroomID          uuid.UUID  `json:"classroom_id"`
	ReservationID        uuid.UUID  `json:"reservation_id"`
	CreatedAt            time.Time  `json:"created_at"`
}

// EndMin returns the end of the exam interval in minutes from midnight.
func (e *Exam) EndMin() int {
	return e.StartMin + e.DurationMin
}

// StartsAt returns the wall-clock start of the exam.
func (e *Exam) StartsAt() time.Time {
	return Day(e.Day).Add(time.Duration(e.StartMin) * time.Minute)
}

// EndsAt returns the wall-clock end of the exam.
func (e *Exam) EndsAt() time.Time {
	return Day(e.Day).Add(time.Duration(e.EndMin()) * time.Minute)
}

// Hour returns the start as "HH:MM" for API and notification payloads.
func (e *Exam) Hour() string {
	return FormatClock(e.StartMin)
}

// ExamSummary is the read model handed to the notification gateway.
type ExamSummary struct {
	Subject       string    `json:"subject"`
	Day           time.Time `json:"day"`
	Hour          string    `json:"hour"`
	ClassroomName string    `json:"classroom_name"`
	MainProfessor string    `json:"main_professor"`
	Faculty       string    `json:"faculty"`
}
