package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/schedly/exam-scheduler/internal/model"
)

// ExamStore is the persistence surface the registry needs. Satisfied by
// *repository.ExamRepository.
type ExamStore interface {
	Create(ctx context.Context, exam *model.Exam) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error)
	Update(ctx context.Context, exam *model.Exam) error
	Delete(ctx context.Context, id uuid.UUID) (int64, error)
	List(ctx context.Context) ([]*model.Exam, error)
	ListByGroup(ctx context.Context, groupID uuid.UUID) ([]*model.Exam, error)
	ListExpired(ctx context.Context, now time.Time) ([]*model.Exam, error)
	ListStartingBetween(ctx context.Context, from, to time.Time) ([]*model.Exam, error)
}

// ClassroomStore is the classroom surface the registry needs. Satisfied by
// *repository.ClassroomRepository.
type ClassroomStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Classroom, error)
	ListOrphanedSlots(ctx context.Context, now time.Time) ([]*model.BookedSlot, error)
}

// ExamSpec carries everything needed to create an exam.
type ExamSpec struct {
	Subject              string
	MainProfessorID      uuid.UUID
	SecondaryProfessorID *uuid.UUID
	Faculty              string
	GroupID              uuid.UUID
	Day                  time.Time
	Hour                 string
	DurationMin          int
	ClassroomID          uuid.UUID
}

// ExamPatch is a partial update; nil fields are left unchanged. Changes to
// classroom, day, hour or duration go through the slot ledger as
// reserve-new-then-release-old, never as a blind overwrite.
type ExamPatch struct {
	Subject              *string
	MainProfessorID      *uuid.UUID
	SecondaryProfessorID *uuid.UUID
	Faculty              *string
	GroupID              *uuid.UUID
	Day                  *time.Time
	Hour                 *string
	DurationMin          *int
	ClassroomID          *uuid.UUID
}

// ExamService owns the exam registry: exam records bound 1:1 to a live slot
// ledger reservation.
type ExamService struct {
	ledger    SlotLedger
	exams     ExamStore
	rooms     ClassroomStore
	directory DirectoryClient
	logger    *zap.Logger
}

func NewExamService(
	ledger SlotLedger,
	exams ExamStore,
	rooms ClassroomStore,
	directory DirectoryClient,
	logger *zap.Logger,
) *ExamService {
	return &ExamService{
		ledger:    ledger,
		exams:     exams,
		rooms:     rooms,
		directory: directory,
		logger:    logger,
	}
}

// Create validates the spec's references, reserves the classroom interval and
// persists the exam. On ErrSlotConflict nothing is mutated. A crash between
// reserve and persist leaves at most an orphaned reservation, which the
// reaper reclaims once the interval elapses.
func (s *ExamService) Create(ctx context.Context, spec ExamSpec) (*model.Exam, error) {
	startMin, durationMin, err := examInterval(spec.Hour, spec.DurationMin)
	if err != nil {
		return nil, err
	}

	if err := s.resolveProfessors(ctx, spec.MainProfessorID, spec.SecondaryProfessorID); err != nil {
		return nil, err
	}

	if _, err := s.directory.GetGroup(ctx, spec.GroupID); err != nil {
		return nil, err
	}

	room, err := s.rooms.GetByID(ctx, spec.ClassroomID)
	if err != nil {
		return nil, err
	}
	if room == nil {
		return nil, ErrNotFound
	}

	reservationID, err := s.ledger.Reserve(ctx, spec.ClassroomID, spec.Day, startMin, startMin+durationMin)
	if err != nil {
		return nil, err
	}

	exam := &model.Exam{
		Subject:              spec.Subject,
		MainProfessorID:      spec.MainProfessorID,
		SecondaryProfessorID: spec.SecondaryProfessorID,
		Faculty:              spec.Faculty,
		GroupID:              spec.GroupID,
		Day:                  model.Day(spec.Day),
		StartMin:             startMin,
		DurationMin:          durationMin,
		ClassroomID:          spec.ClassroomID,
		ReservationID:        reservationID,
	}

	if err := s.exams.Create(ctx, exam); err != nil {
		// Compensating release keeps the ledger consistent; an exam record
		// never exists without a backing reservation.
		if relErr := s.ledger.Release(ctx, spec.ClassroomID, reservationID); relErr != nil && !errors.Is(relErr, ErrNotFound) {
			s.logger.Error("Failed to release reservation after exam insert failure",
				zap.String("reservation_id", reservationID.String()),
				zap.Error(relErr),
			)
		}
		return nil, err
	}

	s.logger.Info("Exam created",
		zap.String("exam_id", exam.ID.String()),
		zap.String("subject", exam.Subject),
		zap.String("classroom_id", exam.ClassroomID.String()),
		zap.Time("day", exam.Day),
		zap.String("hour", exam.Hour()),
	)

	return exam, nil
}

// Get returns the exam or ErrNotFound.
func (s *ExamService) Get(ctx context.Context, examID uuid.UUID) (*model.Exam, error) {
	exam, err := s.exams.GetByID(ctx, examID)
	if err != nil {
		return nil, err
	}
	if exam == nil {
		return nil, ErrNotFound
	}
	return exam, nil
}

// List returns all exams.
func (s *ExamService) List(ctx context.Context) ([]*model.Exam, error) {
	return s.exams.List(ctx)
}

// ListByGroup returns a group's exams.
func (s *ExamService) ListByGroup(ctx context.Context, groupID uuid.UUID) ([]*model.Exam, error) {
	return s.exams.ListByGroup(ctx, groupID)
}

// Delete removes the record and then releases its reservation. The record
// goes first: the exam's foreign key forbids deleting a slot it still
// references. A crash in between leaves an orphaned reservation the reaper
// reclaims once the interval elapses.
func (s *ExamService) Delete(ctx context.Context, examID uuid.UUID) error {
	exam, err := s.exams.GetByID(ctx, examID)
	if err != nil {
		return err
	}
	if exam == nil {
		return ErrNotFound
	}

	if _, err := s.exams.Delete(ctx, examID); err != nil {
		return err
	}

	if err := s.ledger.Release(ctx, exam.ClassroomID, exam.ReservationID); err != nil && !errors.Is(err, ErrNotFound) {
		// The exam is gone; the dangling slot is reclaimed by the reaper.
		s.logger.Error("Failed to release reservation of deleted exam",
			zap.String("reservation_id", exam.ReservationID.String()),
			zap.Error(err),
		)
	}

	s.logger.Info("Exam deleted",
		zap.String("exam_id", examID.String()),
		zap.String("reservation_id", exam.ReservationID.String()),
	)

	return nil
}

// Update applies a partial update. Scheduling changes reserve the new
// interval, repoint the exam and release the vacated reservation; on
// conflict the exam and its original reservation are left untouched.
func (s *ExamService) Update(ctx context.Context, examID uuid.UUID, patch ExamPatch) (*model.Exam, error) {
	exam, err := s.exams.GetByID(ctx, examID)
	if err != nil {
		return nil, err
	}
	if exam == nil {
		return nil, ErrNotFound
	}

	if patch.MainProfessorID != nil || patch.SecondaryProfessorID != nil {
		mainID := exam.MainProfessorID
		if patch.MainProfessorID != nil {
			mainID = *patch.MainProfessorID
		}
		secondaryID := exam.SecondaryProfessorID
		if patch.SecondaryProfessorID != nil {
			secondaryID = patch.SecondaryProfessorID
		}
		if err := s.resolveProfessors(ctx, mainID, secondaryID); err != nil {
			return nil, err
		}
	}
	if patch.GroupID != nil {
		if _, err := s.directory.GetGroup(ctx, *patch.GroupID); err != nil {
			return nil, err
		}
	}

	updated := *exam
	if patch.Subject != nil {
		updated.Subject = *patch.Subject
	}
	if patch.MainProfessorID != nil {
		updated.MainProfessorID = *patch.MainProfessorID
	}
	if patch.SecondaryProfessorID != nil {
		updated.SecondaryProfessorID = patch.SecondaryProfessorID
	}
	if patch.Faculty != nil {
		updated.Faculty = *patch.Faculty
	}
	if patch.GroupID != nil {
		updated.GroupID = *patch.GroupID
	}
	if patch.Day != nil {
		updated.Day = model.Day(*patch.Day)
	}
	if patch.Hour != nil {
		startMin, err := model.ParseClock(*patch.Hour)
		if err != nil {
			return nil, ErrInvalidInput
		}
		updated.StartMin = startMin
	}
	if patch.DurationMin != nil {
		if *patch.DurationMin <= 0 {
			return nil, ErrInvalidInput
		}
		updated.DurationMin = *patch.DurationMin
	}
	if patch.ClassroomID != nil {
		room, err := s.rooms.GetByID(ctx, *patch.ClassroomID)
		if err != nil {
			return nil, err
		}
		if room == nil {
			return nil, ErrNotFound
		}
		updated.ClassroomID = *patch.ClassroomID
	}

	// Rescheduling repoints the exam before the old slot goes away: reserve
	// the new interval (ignoring the one being vacated), update the record,
	// then release the old slot its foreign key no longer guards.
	rescheduled := patch.ClassroomID != nil || patch.Day != nil || patch.Hour != nil || patch.DurationMin != nil
	if rescheduled {
		newReservationID, err := s.ledger.Rebook(
			ctx,
			exam.ReservationID,
			updated.ClassroomID, updated.Day, updated.StartMin, updated.EndMin(),
		)
		if err != nil {
			return nil, err
		}
		updated.ReservationID = newReservationID
	}

	if err := s.exams.Update(ctx, &updated); err != nil {
		if rescheduled {
			// The record still points at the original reservation; drop the
			// unused new one.
			if relErr := s.ledger.Release(ctx, updated.ClassroomID, updated.ReservationID); relErr != nil && !errors.Is(relErr, ErrNotFound) {
				s.logger.Error("Failed to release reservation after exam update failure",
					zap.String("exam_id", examID.String()),
					zap.Error(relErr),
				)
			}
		}
		return nil, err
	}

	if rescheduled {
		if err := s.ledger.Release(ctx, exam.ClassroomID, exam.ReservationID); err != nil && !errors.Is(err, ErrNotFound) {
			// Orphaned; the reaper reclaims it once the interval elapses.
			s.logger.Error("Failed to release vacated reservation",
				zap.String("reservation_id", exam.ReservationID.String()),
				zap.Error(err),
			)
		}
	}

	s.logger.Info("Exam updated",
		zap.String("exam_id", examID.String()),
		zap.Bool("rescheduled", rescheduled),
	)

	return &updated, nil
}

// PurgeExpired releases and deletes every exam whose interval end is strictly
// before now, then reclaims orphaned reservations. Idempotent; one exam's
// failure does not stop the sweep.
func (s *ExamService) PurgeExpired(ctx context.Context, now time.Time) error {
	expired, err := s.exams.ListExpired(ctx, now)
	if err != nil {
		return err
	}

	var failed int
	for _, exam := range expired {
		// Record first: its foreign key blocks deleting a slot it still
		// references. A failed release leaves an orphan the next sweep picks
		// up.
		if _, err := s.exams.Delete(ctx, exam.ID); err != nil {
			s.logger.Error("Failed to delete expired exam",
				zap.String("exam_id", exam.ID.String()),
				zap.Error(err),
			)
			failed++
			continue
		}
		if err := s.ledger.Release(ctx, exam.ClassroomID, exam.ReservationID); err != nil && !errors.Is(err, ErrNotFound) {
			s.logger.Error("Failed to release expired reservation",
				zap.String("exam_id", exam.ID.String()),
				zap.Error(err),
			)
			failed++
		}
	}

	orphans, err := s.rooms.ListOrphanedSlots(ctx, now)
	if err != nil {
		return err
	}
	for _, slot := range orphans {
		if err := s.ledger.Release(ctx, slot.ClassroomID, slot.ID); err != nil && !errors.Is(err, ErrNotFound) {
			s.logger.Error("Failed to reclaim orphaned reservation",
				zap.String("reservation_id", slot.ID.String()),
				zap.Error(err),
			)
			failed++
		}
	}

	if len(expired) > 0 || len(orphans) > 0 {
		s.logger.Info("Expired bookings purged",
			zap.Int("exams", len(expired)),
			zap.Int("orphaned_slots", len(orphans)),
			zap.Int("failed", failed),
		)
	}

	if failed > 0 {
		return fmt.Errorf("purge expired: %d entries failed", failed)
	}
	return nil
}

// NotifyUpcoming collects exams starting within [windowStart, windowEnd) and
// groups their summaries per student email. Read-only; the caller hands the
// digest to the notification gateway.
func (s *ExamService) NotifyUpcoming(ctx context.Context, windowStart, windowEnd time.Time) (map[string][]model.ExamSummary, error) {
	exams, err := s.exams.ListStartingBetween(ctx, windowStart, windowEnd)
	if err != nil {
		return nil, err
	}

	digest := make(map[string][]model.ExamSummary)
	for _, exam := range exams {
		summary := model.ExamSummary{
			Subject: exam.Subject,
			Day:     exam.Day,
			Hour:    exam.Hour(),
			Faculty: exam.Faculty,
		}
		if room, err := s.rooms.GetByID(ctx, exam.ClassroomID); err == nil && room != nil {
			summary.ClassroomName = room.Name
		}
		if prof, err := s.directory.GetProfessor(ctx, exam.MainProfessorID); err == nil {
			summary.MainProfessor = prof.FullName()
		}

		students, err := s.directory.GetGroupStudents(ctx, exam.GroupID)
		if err != nil {
			s.logger.Warn("Failed to resolve group students for upcoming exam",
				zap.String("exam_id", exam.ID.String()),
				zap.String("group_id", exam.GroupID.String()),
				zap.Error(err),
			)
			continue
		}
		for _, student := range students {
			if student.Email == "" {
				continue
			}
			digest[student.Email] = append(digest[student.Email], summary)
		}
	}

	return digest, nil
}

func (s *ExamService) resolveProfessors(ctx context.Context, mainID uuid.UUID, secondaryID *uuid.UUID) error {
	if _, err := s.directory.GetProfessor(ctx, mainID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrProfessorNotFound
		}
		return err
	}
	if secondaryID != nil {
		if _, err := s.directory.GetProfessor(ctx, *secondaryID); err != nil {
			if errors.Is(err, ErrNotFound) {
				return ErrProfessorNotFound
			}
			return err
		}
	}
	return nil
}

func examInterval(hour string, durationMin int) (int, int, error) {
	startMin, err := model.ParseClock(hour)
	if err != nil {
		return 0, 0, ErrInvalidInput
	}
	if durationMin <= 0 || startMin+durationMin > model.MinutesPerDay {
		return 0, 0, ErrInvalidInput
	}
	return startMin, durationMin, nil
}
