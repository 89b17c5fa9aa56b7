package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/schedly/exam-scheduler/internal/model"
	"github.com/schedly/exam-scheduler/internal/notify"
)

// RequestStore is the pending-request persistence surface. Satisfied by
// *repository.ExamRequestRepository.
type RequestStore interface {
	Create(ctx context.Context, req *model.ExamRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.ExamRequest, error)
	List(ctx context.Context, filter model.RequestFilter) ([]*model.ExamRequest, error)
	Delete(ctx context.Context, id uuid.UUID) (int64, error)
}

// ExamCreator is the slice of the exam registry the workflow invokes on
// approval. Satisfied by *ExamService.
type ExamCreator interface {
	Create(ctx context.Context, spec ExamSpec) (*model.Exam, error)
}

// RequestSpec carries a student's exam request.
type RequestSpec struct {
	StudentID            string
	Subject              string
	Faculty              string
	GroupID              uuid.UUID
	ClassroomID          uuid.UUID
	MainProfessorID      uuid.UUID
	SecondaryProfessorID *uuid.UUID
	Day                  string // "2006-01-02"
	Hour                 string // "HH:MM"
	DurationMin          int
}

// RequestService owns the exam-request workflow: Pending -> {Approved,
// Denied}, terminal on either outcome. A request never holds capacity; the
// slot is reserved only when the request is approved.
type RequestService struct {
	requests  RequestStore
	exams     ExamCreator
	rooms     ClassroomStore
	directory DirectoryClient
	notifier  notify.Notifier
	logger    *zap.Logger
}

func NewRequestService(
	requests RequestStore,
	exams ExamCreator,
	rooms ClassroomStore,
	directory DirectoryClient,
	notifier notify.Notifier,
	logger *zap.Logger,
) *RequestService {
	return &RequestService{
		requests:  requests,
		exams:     exams,
		rooms:     rooms,
		directory: directory,
		notifier:  notifier,
		logger:    logger,
	}
}

// Submit validates the classroom and group references and stores the request
// as pending. No reservation is taken here.
func (s *RequestService) Submit(ctx context.Context, spec RequestSpec) (*model.ExamRequest, error) {
	day, err := model.ParseDay(spec.Day)
	if err != nil {
		return nil, ErrInvalidInput
	}
	startMin, durationMin, err := examInterval(spec.Hour, spec.DurationMin)
	if err != nil {
		return nil, err
	}
	if spec.StudentID == "" || spec.Subject == "" {
		return nil, ErrInvalidInput
	}

	room, err := s.rooms.GetByID(ctx, spec.ClassroomID)
	if err != nil {
		return nil, err
	}
	if room == nil {
		return nil, ErrNotFound
	}

	if _, err := s.directory.GetGroup(ctx, spec.GroupID); err != nil {
		return nil, err
	}

	req := &model.ExamRequest{
		StudentID:            spec.StudentID,
		Subject:              spec.Subject,
		Faculty:              spec.Faculty,
		GroupID:              spec.GroupID,
		ClassroomID:          spec.ClassroomID,
		MainProfessorID:      spec.MainProfessorID,
		SecondaryProfessorID: spec.SecondaryProfessorID,
		Day:                  day,
		StartMin:             startMin,
		DurationMin:          durationMin,
	}

	if err := s.requests.Create(ctx, req); err != nil {
		return nil, err
	}

	s.logger.Info("Exam request submitted",
		zap.String("request_id", req.ID.String()),
		zap.String("student_id", req.StudentID),
		zap.String("subject", req.Subject),
	)

	return req, nil
}

// List returns pending requests matching the filter.
func (s *RequestService) List(ctx context.Context, filter model.RequestFilter) ([]*model.ExamRequest, error) {
	return s.requests.List(ctx, filter)
}

// Decide resolves a pending request exactly once.
//
// Denial discards the request and touches nothing else. Approval creates the
// exam through the registry; on ErrSlotConflict the request remains pending
// so the operator can retry with a different slot. A successful approval
// notifies every group student with an email, best-effort, and then removes
// the request.
func (s *RequestService) Decide(ctx context.Context, requestID uuid.UUID, approved bool, reason string) (*model.Decision, error) {
	req, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, ErrNotFound
	}

	if !approved {
		if _, err := s.requests.Delete(ctx, requestID); err != nil {
			return nil, err
		}
		s.logger.Info("Exam request denied",
			zap.String("request_id", requestID.String()),
			zap.String("reason", reason),
		)
		return &model.Decision{
			RequestID: requestID,
			Status:    model.DecisionDenied,
			Reason:    reason,
		}, nil
	}

	if !req.IsComplete() {
		return nil, ErrIncompleteRequest
	}

	// A dangling secondary professor degrades to none; the main professor is
	// required and its absence fails the decision inside the registry.
	secondaryID := req.SecondaryProfessorID
	if secondaryID != nil {
		if _, err := s.directory.GetProfessor(ctx, *secondaryID); err != nil {
			if !errors.Is(err, ErrNotFound) {
				return nil, err
			}
			secondaryID = nil
		}
	}

	exam, err := s.exams.Create(ctx, ExamSpec{
		Subject:              req.Subject,
		MainProfessorID:      req.MainProfessorID,
		SecondaryProfessorID: secondaryID,
		Faculty:              req.Faculty,
		GroupID:              req.GroupID,
		Day:                  req.Day,
		Hour:                 model.FormatClock(req.StartMin),
		DurationMin:          req.DurationMin,
	})
	if err != nil {
		// The request stays pending, including on ErrSlotConflict.
		return nil, err
	}

	notified := s.notifyApproval(ctx, exam)

	// The exam is committed at this point; a failed cleanup is logged rather
	// than surfaced so the approval is not reported as failed.
	if _, err := s.requests.Delete(ctx, requestID); err != nil {
		s.logger.Error("Failed to remove approved request",
			zap.String("request_id", requestID.String()),
			zap.Error(err),
		)
	}

	s.logger.Info("Exam request approved",
		zap.String("request_id", requestID.String()),
		zap.String("exam_id", exam.ID.String()),
		zap.Int("notified", notified),
	)

	return &model.Decision{
		RequestID: requestID,
		Status:    model.DecisionApproved,
		Exam:      exam,
		Notified:  notified,
	}, nil
}

// notifyApproval dispatches one approval message per group student with an
// email address. Failures are the gateway's to log; they never block or roll
// back the approval.
func (s *RequestService) notifyApproval(ctx context.Context, exam *model.Exam) int {
	students, err := s.directory.GetGroupStudents(ctx, exam.GroupID)
	if err != nil {
		s.logger.Warn("Failed to resolve group students for approval notification",
			zap.String("group_id", exam.GroupID.String()),
			zap.Error(err),
		)
		return 0
	}

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

	var messages []*notify.Message
	for _, student := range students {
		if student.Email == "" {
			continue
		}
		messages = append(messages, notify.ApprovalMessage(student.Email, summary))
	}
	if len(messages) > 0 {
		s.notifier.Send(messages...)
	}

	return len(messages)
}
