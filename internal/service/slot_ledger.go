package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/schedly/exam-scheduler/internal/model"
	"github.com/schedly/exam-scheduler/internal/repository"
)

// SlotLedger is the sole arbiter of classroom availability. Implementations
// must make the availability check and the reservation a single atomic step:
// two concurrent Reserve calls for overlapping intervals on the same
// classroom must not both succeed.
type SlotLedger interface {
	IsAvailable(ctx context.Context, classroomID uuid.UUID, day time.Time, startMin, endMin int) (bool, error)
	// Reserve books [startMin, endMin) on day. Fails with ErrSlotConflict on
	// overlap and ErrNotFound for an unknown classroom.
	Reserve(ctx context.Context, classroomID uuid.UUID, day time.Time, startMin, endMin int) (uuid.UUID, error)
	// Release drops a reservation. ErrNotFound when it was already released.
	// A reservation still referenced by an exam row cannot be released.
	Release(ctx context.Context, classroomID, reservationID uuid.UUID) error
	// Rebook reserves the new interval, treating oldReservationID as already
	// vacated in the overlap check. The old reservation itself is left in
	// place: the caller repoints its record to the returned reservation and
	// releases the old one afterwards. On ErrSlotConflict nothing changes.
	Rebook(ctx context.Context, oldReservationID, classroomID uuid.UUID, day time.Time, startMin, endMin int) (uuid.UUID, error)
}

// PostgresSlotLedger serializes bookings per classroom with a row lock on the
// classroom inside one transaction, closing the check-then-insert race.
type PostgresSlotLedger struct {
	pool   *pgxpool.Pool
	rooms  *repository.ClassroomRepository
	logger *zap.Logger
}

var _ SlotLedger = (*PostgresSlotLedger)(nil)

func NewPostgresSlotLedger(pool *pgxpool.Pool, rooms *repository.ClassroomRepository, logger *zap.Logger) *PostgresSlotLedger {
	return &PostgresSlotLedger{
		pool:   pool,
		rooms:  rooms,
		logger: logger,
	}
}

func (l *PostgresSlotLedger) IsAvailable(ctx context.Context, classroomID uuid.UUID, day time.Time, startMin, endMin int) (bool, error) {
	if err := validateInterval(startMin, endMin); err != nil {
		return false, err
	}

	room, err := l.rooms.GetByID(ctx, classroomID)
	if err != nil {
		return false, err
	}
	if room == nil {
		return false, ErrNotFound
	}

	overlap, err := l.rooms.HasOverlap(ctx, classroomID, day, startMin, endMin)
	if err != nil {
		return false, err
	}

	return !overlap, nil
}

func (l *PostgresSlotLedger) Reserve(ctx context.Context, classroomID uuid.UUID, day time.Time, startMin, endMin int) (uuid.UUID, error) {
	if err := validateInterval(startMin, endMin); err != nil {
		return uuid.Nil, err
	}

	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return uuid.Nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	rooms := l.rooms.WithTx(tx)

	slot, err := reserveLocked(ctx, rooms, classroomID, day, startMin, endMin, uuid.Nil)
	if err != nil {
		return uuid.Nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return uuid.Nil, fmt.Errorf("commit transaction: %w", err)
	}

	l.logger.Info("Slot reserved",
		zap.String("reservation_id", slot.ID.String()),
		zap.String("classroom_id", classroomID.String()),
		zap.Time("day", slot.Day),
		zap.String("start", model.FormatClock(startMin)),
		zap.String("end", model.FormatClock(endMin)),
	)

	return slot.ID, nil
}

func (l *PostgresSlotLedger) Release(ctx context.Context, classroomID, reservationID uuid.UUID) error {
	affected, err := l.rooms.DeleteSlot(ctx, classroomID, reservationID)
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}

	l.logger.Info("Slot released",
		zap.String("reservation_id", reservationID.String()),
		zap.String("classroom_id", classroomID.String()),
	)

	return nil
}

func (l *PostgresSlotLedger) Rebook(ctx context.Context, oldReservationID, classroomID uuid.UUID, day time.Time, startMin, endMin int) (uuid.UUID, error) {
	if err := validateInterval(startMin, endMin); err != nil {
		return uuid.Nil, err
	}

	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return uuid.Nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	rooms := l.rooms.WithTx(tx)

	// The old slot stays in place until the exam row points at the new one:
	// its foreign key forbids deleting the slot first. Excluding it from the
	// overlap check lets the new interval overlap the one being vacated.
	slot, err := reserveLocked(ctx, rooms, classroomID, day, startMin, endMin, oldReservationID)
	if err != nil {
		return uuid.Nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return uuid.Nil, fmt.Errorf("commit transaction: %w", err)
	}

	l.logger.Info("Slot rebooked",
		zap.String("old_reservation_id", oldReservationID.String()),
		zap.String("reservation_id", slot.ID.String()),
		zap.String("classroom_id", classroomID.String()),
	)

	return slot.ID, nil
}

// reserveLocked takes the classroom row lock, checks availability and inserts
// the slot. excludeID names a reservation being vacated that the overlap
// check skips; uuid.Nil excludes nothing. Must run inside a transaction.
func reserveLocked(ctx context.Context, rooms *repository.ClassroomRepository, classroomID uuid.UUID, day time.Time, startMin, endMin int, excludeID uuid.UUID) (*model.BookedSlot, error) {
	found, err := rooms.Lock(ctx, classroomID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNotFound
	}

	overlap, err := rooms.HasOverlapExcluding(ctx, classroomID, day, startMin, endMin, excludeID)
	if err != nil {
		return nil, err
	}
	if overlap {
		return nil, ErrSlotConflict
	}

	slot := &model.BookedSlot{
		ClassroomID: classroomID,
		Day:         model.Day(day),
		StartMin:    startMin,
		EndMin:      endMin,
	}
	if err := rooms.InsertSlot(ctx, slot); err != nil {
		return nil, err
	}

	return slot, nil
}

func validateInterval(startMin, endMin int) error {
	if startMin < 0 || endMin > model.MinutesPerDay || startMin >= endMin {
		return ErrInvalidInput
	}
	return nil
}
