package repository

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"github.com/schedly/exam-scheduler/internal/model"
)

type ExamRequestRepository struct {
	db Querier
}

func NewExamRequestRepository(db Querier) *ExamRequestRepository {
	return &ExamRequestRepository{db: db}
}

// Create stores a pending request.
func (r *ExamRequestRepository) Create(ctx context.Context, req *model.ExamRequest) error {
	query := `
		INSERT INTO exam_requests (id, student_id, subject, faculty, group_id, classroom_id,
		                           main_professor_id, secondary_professor_id, day, start_min, duration_min)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at
	`

	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	req.Day = model.Day(req.Day)

	err := r.db.QueryRow(
		ctx, query,
		req.ID,
		req.StudentID,
		req.Subject,
		req.Faculty,
		req.GroupID,
		req.ClassroomID,
		req.MainProfessorID,
		req.SecondaryProfessorID,
		req.Day,
		req.StartMin,
		req.DurationMin,
	).Scan(&req.CreatedAt)

	if err != nil {
		return fmt.Errorf("create exam request: %w", err)
	}

	return nil
}

// GetByID returns the pending request or nil when it does not exist.
func (r *ExamRequestRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.ExamRequest, error) {
	query := `
		SELECT id, student_id, subject, faculty, group_id, classroom_id,
		       main_professor_id, secondary_professor_id, day, start_min, duration_min, created_at
		FROM exam_requests
		WHERE id = $1
	`

	var req model.ExamRequest
	err := r.db.QueryRow(ctx, query, id).Scan(
		&req.ID,
		&req.StudentID,
		&req.Subject,
		&req.Faculty,
		&req.GroupID,
		&req.ClassroomID,
		&req.MainProfessorID,
		&req.SecondaryProfessorID,
		&req.Day,
		&req.StartMin,
		&req.DurationMin,
		&req.CreatedAt,
	)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get exam request by id: %w", err)
	}

	return &req, nil
}

// List returns pending requests matching the filter, oldest first.
func (r *ExamRequestRepository) List(ctx context.Context, filter model.RequestFilter) ([]*model.ExamRequest, error) {
	query := `
		SELECT id, student_id, subject, faculty, group_id, classroom_id,
		       main_professor_id, secondary_professor_id, day, start_min, duration_min, created_at
		FROM exam_requests
	`

	var (
		where []string
		args  []any
	)
	if filter.StudentID != "" {
		args = append(args, filter.StudentID)
		where = append(where, "student_id = $"+strconv.Itoa(len(args)))
	}
	if filter.GroupID != nil {
		args = append(args, *filter.GroupID)
		where = append(where, "group_id = $"+strconv.Itoa(len(args)))
	}
	if filter.Subject != "" {
		args = append(args, filter.Subject)
		where = append(where, "subject = $"+strconv.Itoa(len(args)))
	}
	for i, cond := range where {
		if i == 0 {
			query += " WHERE " + cond
		} else {
			query += " AND " + cond
		}
	}
	query += " ORDER BY created_at ASC"

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list exam requests: %w", err)
	}
	defer rows.Close()

	var reqs []*model.ExamRequest
	for rows.Next() {
		var req model.ExamRequest
		err := rows.Scan(
			&req.ID,
			&req.StudentID,
			&req.Subject,
			&req.Faculty,
			&req.GroupID,
			&req.ClassroomID,
			&req.MainProfessorID,
			&req.SecondaryProfessorID,
			&req.Day,
			&req.StartMin,
			&req.DurationMin,
			&req.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan exam request: %w", err)
		}
		reqs = append(reqs, &req)
	}

	return reqs, nil
}

// Delete removes a request after its terminal decision. Returns the number of
// rows removed.
func (r *ExamRequestRepository) Delete(ctx context.Context, id uuid.UUID) (int64, error) {
	query := `DELETE FROM exam_requests WHERE id = $1`

	result, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return 0, fmt.Errorf("delete exam request: %w", err)
	}

	return result.RowsAffected(), nil
}
