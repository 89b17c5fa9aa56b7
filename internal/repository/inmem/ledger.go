// Package inmem holds in-memory implementations of the storage contracts,
// used in tests and when running without Postgres.
package inmem

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/schedly/exam-scheduler/internal/model"
	"github.com/schedly/exam-scheduler/internal/service"
)

// SlotLedger is a mutex-serialized ledger with the same contract as the
// Postgres one: the availability check and the insert happen under one lock,
// so concurrent overlapping reserves cannot both succeed.
type SlotLedger struct {
	mu    sync.Mutex
	rooms map[uuid.UUID]struct{}
	slots map[uuid.UUID]*model.BookedSlot
}

var _ service.SlotLedger = (*SlotLedger)(nil)

func NewSlotLedger() *SlotLedger {
	return &SlotLedger{
		rooms: make(map[uuid.UUID]struct{}),
		slots: make(map[uuid.UUID]*model.BookedSlot),
	}
}

// AddClassroom registers a classroom the ledger will accept bookings for.
func (l *SlotLedger) AddClassroom(id uuid.UUID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rooms[id] = struct{}{}
}

func (l *SlotLedger) IsAvailable(ctx context.Context, classroomID uuid.UUID, day time.Time, startMin, endMin int) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.rooms[classroomID]; !ok {
		return false, service.ErrNotFound
	}
	return !l.overlapsLocked(classroomID, day, startMin, endMin, uuid.Nil), nil
}

func (l *SlotLedger) Reserve(ctx context.Context, classroomID uuid.UUID, day time.Time, startMin, endMin int) (uuid.UUID, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.reserveLocked(classroomID, day, startMin, endMin, uuid.Nil)
}

func (l *SlotLedger) Release(ctx context.Context, classroomID, reservationID uuid.UUID) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	slot, ok := l.slots[reservationID]
	if !ok || slot.ClassroomID != classroomID {
		return service.ErrNotFound
	}
	delete(l.slots, reservationID)
	return nil
}

func (l *SlotLedger) Rebook(ctx context.Context, oldReservationID, classroomID uuid.UUID, day time.Time, startMin, endMin int) (uuid.UUID, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	// The reservation being vacated stays until the caller releases it; it
	// is only skipped in the overlap check so the new interval may overlap
	// the old one.
	return l.reserveLocked(classroomID, day, startMin, endMin, oldReservationID)
}

// Slots returns the classroom's booked intervals ordered by time.
func (l *SlotLedger) Slots(classroomID uuid.UUID) []*model.BookedSlot {
	l.mu.Lock()
	defer l.mu.Unlock()

	var slots []*model.BookedSlot
	for _, slot := range l.slots {
		if slot.ClassroomID == classroomID {
			copied := *slot
			slots = append(slots, &copied)
		}
	}
	sort.Slice(slots, func(i, j int) bool {
		if !slots[i].Day.Equal(slots[j].Day) {
			return slots[i].Day.Before(slots[j].Day)
		}
		return slots[i].StartMin < slots[j].StartMin
	})
	return slots
}

func (l *SlotLedger) reserveLocked(classroomID uuid.UUID, day time.Time, startMin, endMin int, excludeID uuid.UUID) (uuid.UUID, error) {
	if startMin < 0 || endMin > model.MinutesPerDay || startMin >= endMin {
		return uuid.Nil, service.ErrInvalidInput
	}
	if _, ok := l.rooms[classroomID]; !ok {
		return uuid.Nil, service.ErrNotFound
	}
	if l.overlapsLocked(classroomID, day, startMin, endMin, excludeID) {
		return uuid.Nil, service.ErrSlotConflict
	}

	slot := &model.BookedSlot{
		ID:          uuid.New(),
		ClassroomID: classroomID,
		Day:         model.Day(day),
		StartMin:    startMin,
		EndMin:      endMin,
		CreatedAt:   time.Now(),
	}
	l.slots[slot.ID] = slot
	return slot.ID, nil
}

func (l *SlotLedger) overlapsLocked(classroomID uuid.UUID, day time.Time, startMin, endMin int, excludeID uuid.UUID) bool {
	for _, slot := range l.slots {
		if slot.ID == excludeID {
			continue
		}
		if slot.ClassroomID == classroomID && slot.OverlapsWith(day, startMin, endMin) {
			return true
		}
	}
	return false
}
