package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/schedly/exam-scheduler/internal/model"
)

type ExamRepository struct {
	db Querier
}

func NewExamRepository(db Querier) *ExamRepository {
	return &ExamRepository{db: db}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *ExamRepository) WithTx(tx pgx.Tx) *ExamRepository {
	return &ExamRepository{db: tx}
}

const examColumns = `
	id, subject, main_professor_id, secondary_professor_id, faculty, group_id,
	day, start_min, duration_min, classroom_id, reservation_id, created_at
`

// Create persists an exam referencing its reservation.
func (r *ExamRepository) Create(ctx context.Context, exam *model.Exam) error {
	query := `
		INSERT INTO exams (id, subject, main_professor_id, secondary_professor_id, faculty,
		                   group_id, day, start_min, duration_min, classroom_id, reservation_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at
	`

	if exam.ID == uuid.Nil {
		exam.ID = uuid.New()
	}
	exam.Day = model.Day(exam.Day)

	err := r.db.QueryRow(
		ctx, query,
		exam.ID,
		exam.Subject,
		exam.MainProfessorID,
		exam.SecondaryProfessorID,
		exam.Faculty,
		exam.GroupID,
		exam.Day,
		exam.StartMin,
		exam.DurationMin,
		exam.ClassroomID,
		exam.ReservationID,
	).Scan(&exam.CreatedAt)

	if err != nil {
		return fmt.Errorf("create exam: %w", err)
	}

	return nil
}

// GetByID returns the exam or nil when it does not exist.
func (r *ExamRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	query := `SELECT ` + examColumns + ` FROM exams WHERE id = $1`

	exam, err := scanExam(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get exam by id: %w", err)
	}

	return exam, nil
}

// Update overwrites all mutable exam fields.
func (r *ExamRepository) Update(ctx context.Context, exam *model.Exam) error {
	query := `
		UPDATE exams
		SET subject = $2, main_professor_id = $3, secondary_professor_id = $4, faculty = $5,
		    group_id = $6, day = $7, start_min = $8, duration_min = $9, classroom_id = $10,
		    reservation_id = $11
		WHERE id = $1
	`

	result, err := r.db.Exec(
		ctx, query,
		exam.ID,
		exam.Subject,
		exam.MainProfessorID,
		exam.SecondaryProfessorID,
		exam.Faculty,
		exam.GroupID,
		model.Day(exam.Day),
		exam.StartMin,
		exam.DurationMin,
		exam.ClassroomID,
		exam.ReservationID,
	)
	if err != nil {
		return fmt.Errorf("update exam: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("exam not found")
	}

	return nil
}

// Delete removes an exam. Returns the number of rows removed.
func (r *ExamRepository) Delete(ctx context.Context, id uuid.UUID) (int64, error) {
	query := `DELETE FROM exams WHERE id = $1`

	result, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return 0, fmt.Errorf("delete exam: %w", err)
	}

	return result.RowsAffected(), nil
}

// List returns all exams ordered by start time.
func (r *ExamRepository) List(ctx context.Context) ([]*model.Exam, error) {
	query := `SELECT ` + examColumns + ` FROM exams ORDER BY day, start_min`
	return r.queryExams(ctx, query)
}

// ListByGroup returns the exams of one group ordered by start time.
func (r *ExamRepository) ListByGroup(ctx context.Context, groupID uuid.UUID) ([]*model.Exam, error) {
	query := `SELECT ` + examColumns + ` FROM exams WHERE group_id = $1 ORDER BY day, start_min`
	return r.queryExams(ctx, query, groupID)
}

// ListExpired returns exams whose interval end is strictly before now.
func (r *ExamRepository) ListExpired(ctx context.Context, now time.Time) ([]*model.Exam, error) {
	query := `
		SELECT ` + examColumns + `
		FROM exams
		WHERE (day + make_interval(mins => start_min + duration_min)) < $1
		ORDER BY day, start_min
	`
	return r.queryExams(ctx, query, now)
}

// ListStartingBetween returns exams starting within [from, to).
func (r *ExamRepository) ListStartingBetween(ctx context.Context, from, to time.Time) ([]*model.Exam, error) {
	query := `
		SELECT ` + examColumns + `
		FROM exams
		WHERE (day + make_interval(mins => start_min)) >= $1
		  AND (day + make_interval(mins => start_min)) < $2
		ORDER BY day, start_min
	`
	return r.queryExams(ctx, query, from, to)
}

func (r *ExamRepository) queryExams(ctx context.Context, query string, args ...any) ([]*model.Exam, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query exams: %w", err)
	}
	defer rows.Close()

	var exams []*model.Exam
	for rows.Next() {
		exam, err := scanExam(rows)
		if err != nil {
			return nil, fmt.Errorf("scan exam: %w", err)
		}
		exams = append(exams, exam)
	}

	return exams, nil
}

func scanExam(row pgx.Row) (*model.Exam, error) {
	var exam model.Exam
	err := row.Scan(
		&exam.ID,
		&exam.Subject,
		&exam.MainProfessorID,
		&exam.SecondaryProfessorID,
		&exam.Faculty,
		&exam.GroupID,
		&exam.Day,
		&exam.StartMin,
		&exam.DurationMin,
		&exam.ClassroomID,
		&exam.ReservationID,
		&exam.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &exam, nil
}
