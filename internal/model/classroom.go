package model

import (
	"time"

	"github.com/google/uuid"
)

type Classroom struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Building string    `json:"building"`
}

// BookedSlot is one reserved interval on a classroom. Intervals are half-open
// [StartMin, EndMin) in minutes from midnight on Day. Rows are mutated only
// through the slot ledger, never directly.
type BookedSlot struct {
	ID          uuid.UUID `json:"id"`
	ClassroomID uuid.UUID `json:"classroom_id"`
	Day         time.Time `json:"day"`
	StartMin    int       `json:"start_min"`
	EndMin      int       `json:"end_min"`
	CreatedAt   time.Time `json:"created_at"`
}

// OverlapsWith reports whether the slot intersects [startMin, endMin) on day.
func (s *BookedSlot) OverlapsWith(day time.Time, startMin, endMin int) bool {
	return SameDay(s.Day, day) && Overlaps(s.StartMin, s.EndMin, startMin, endMin)
}

// End returns the wall-clock end of the slot.
func (s *BookedSlot) End() time.Time {
	return Day(s.Day).Add(time.Duration(s.EndMin) * time.Minute)
}
