package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/schedly/exam-scheduler/internal/model"
)

type ClassroomRepository struct {
	db Querier
}

func NewClassroomRepository(db Querier) *ClassroomRepository {
	return &ClassroomRepository{db: db}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *ClassroomRepository) WithTx(tx pgx.Tx) *ClassroomRepository {
	return &ClassroomRepository{db: tx}
}

// Create registers a new classroom.
func (r *ClassroomRepository) Create(ctx context.Context, room *model.Classroom) error {
	query := `
		INSERT INTO classrooms (id, name, building)
		VALUES ($1, $2, $3)
	`

	if room.ID == uuid.Nil {
		room.ID = uuid.New()
	}

	_, err := r.db.Exec(ctx, query, room.ID, room.Name, room.Building)
	if err != nil {
		return fmt.Errorf("create classroom: %w", err)
	}

	return nil
}

// GetByID returns the classroom or nil when it does not exist.
func (r *ClassroomRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Classroom, error) {
	query := `
		SELECT id, name, building
		FROM classrooms
		WHERE id = $1
	`

	var room model.Classroom
	err := r.db.QueryRow(ctx, query, id).Scan(&room.ID, &room.Name, &room.Building)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get classroom by id: %w", err)
	}

	return &room, nil
}

// List returns all classrooms ordered by building and name.
func (r *ClassroomRepository) List(ctx context.Context) ([]*model.Classroom, error) {
	query := `
		SELECT id, name, building
		FROM classrooms
		ORDER BY building, name
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list classrooms: %w", err)
	}
	defer rows.Close()

	var rooms []*model.Classroom
	for rows.Next() {
		var room model.Classroom
		if err := rows.Scan(&room.ID, &room.Name, &room.Building); err != nil {
			return nil, fmt.Errorf("scan classroom: %w", err)
		}
		rooms = append(rooms, &room)
	}

	return rooms, nil
}

// Delete removes a classroom and, via FK cascade, its booked slots.
func (r *ClassroomRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM classrooms WHERE id = $1`

	result, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete classroom: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("classroom not found")
	}

	return nil
}

// Lock takes a row lock on the classroom, serializing concurrent bookings for
// it within the surrounding transaction. Returns false when the classroom does
// not exist.
func (r *ClassroomRepository) Lock(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `SELECT id FROM classrooms WHERE id = $1 FOR UPDATE`

	var got uuid.UUID
	err := r.db.QueryRow(ctx, query, id).Scan(&got)
	if err != nil {
		if IsNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("lock classroom: %w", err)
	}

	return true, nil
}

// HasOverlap reports whether any booked slot on the classroom and day
// intersects the half-open interval [startMin, endMin).
func (r *ClassroomRepository) HasOverlap(ctx context.Context, classroomID uuid.UUID, day time.Time, startMin, endMin int) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM classroom_slots
			WHERE classroom_id = $1
			  AND day = $2
			  AND start_min < $4
			  AND $3 < end_min
		)
	`

	var exists bool
	err := r.db.QueryRow(ctx, query, classroomID, model.Day(day), startMin, endMin).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check slot overlap: %w", err)
	}

	return exists, nil
}

// HasOverlapExcluding is HasOverlap with one reservation left out of the
// check, used when that reservation is about to be vacated. excludeID of
// uuid.Nil excludes nothing.
func (r *ClassroomRepository) HasOverlapExcluding(ctx context.Context, classroomID uuid.UUID, day time.Time, startMin, endMin int, excludeID uuid.UUID) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM classroom_slots
			WHERE classroom_id = $1
			  AND day = $2
			  AND start_min < $4
			  AND $3 < end_min
			  AND id <> $5
		)
	`

	var exists bool
	err := r.db.QueryRow(ctx, query, classroomID, model.Day(day), startMin, endMin, excludeID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check slot overlap: %w", err)
	}

	return exists, nil
}

// InsertSlot appends a booked interval. Callers must hold the classroom lock
// and have checked availability in the same transaction.
func (r *ClassroomRepository) InsertSlot(ctx context.Context, slot *model.BookedSlot) error {
	query := `
		INSERT INTO classroom_slots (id, classroom_id, day, start_min, end_min)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`

	if slot.ID == uuid.Nil {
		slot.ID = uuid.New()
	}
	slot.Day = model.Day(slot.Day)

	err := r.db.QueryRow(
		ctx, query,
		slot.ID,
		slot.ClassroomID,
		slot.Day,
		slot.StartMin,
		slot.EndMin,
	).Scan(&slot.CreatedAt)

	if err != nil {
		return fmt.Errorf("insert slot: %w", err)
	}

	return nil
}

// DeleteSlot removes a reservation. Returns the number of rows removed so the
// caller can treat an already-released reservation as a no-op.
func (r *ClassroomRepository) DeleteSlot(ctx context.Context, classroomID, slotID uuid.UUID) (int64, error) {
	query := `
		DELETE FROM classroom_slots
		WHERE id = $1 AND classroom_id = $2
	`

	result, err := r.db.Exec(ctx, query, slotID, classroomID)
	if err != nil {
		return 0, fmt.Errorf("delete slot: %w", err)
	}

	return result.RowsAffected(), nil
}

// ListSlots returns all booked intervals of a classroom ordered by time.
func (r *ClassroomRepository) ListSlots(ctx context.Context, classroomID uuid.UUID) ([]*model.BookedSlot, error) {
	query := `
		SELECT id, classroom_id, day, start_min, end_min, created_at
		FROM classroom_slots
		WHERE classroom_id = $1
		ORDER BY day, start_min
	`

	rows, err := r.db.Query(ctx, query, classroomID)
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}
	defer rows.Close()

	return scanSlots(rows)
}

// ListOrphanedSlots returns expired slots that no exam references. These are
// leftovers of a crash between reserve and exam insert; the reaper reclaims
// them once their interval has elapsed.
func (r *ClassroomRepository) ListOrphanedSlots(ctx context.Context, now time.Time) ([]*model.BookedSlot, error) {
	query := `
		SELECT s.id, s.classroom_id, s.day, s.start_min, s.end_min, s.created_at
		FROM classroom_slots s
		LEFT JOIN exams e ON e.reservation_id = s.id
		WHERE e.id IS NULL
		  AND (s.day + make_interval(mins => s.end_min)) < $1
		ORDER BY s.day, s.start_min
	`

	rows, err := r.db.Query(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("list orphaned slots: %w", err)
	}
	defer rows.Close()

	return scanSlots(rows)
}

func scanSlots(rows pgx.Rows) ([]*model.BookedSlot, error) {
	var slots []*model.BookedSlot
	for rows.Next() {
		var slot model.BookedSlot
		err := rows.Scan(
			&slot.ID,
			&slot.ClassroomID,
			&slot.Day,
			&slot.StartMin,
			&slot.EndMin,
			&slot.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan slot: %w", err)
		}
		slots = append(slots, &slot)
	}

	return slots, nil
}
