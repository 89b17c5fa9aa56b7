package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/schedly/exam-scheduler/internal/model"
	"github.com/schedly/exam-scheduler/internal/service"
)

// The handler-facing service surfaces. Satisfied by the service layer; tests
// substitute fakes.
type (
	BookingService interface {
		Reserve(ctx context.Context, classroomID uuid.UUID, day time.Time, startMin, endMin int) (uuid.UUID, error)
		Release(ctx context.Context, classroomID, reservationID uuid.UUID) error
	}

	ExamService interface {
		Create(ctx context.Context, spec service.ExamSpec) (*model.Exam, error)
		Get(ctx context.Context, examID uuid.UUID) (*model.Exam, error)
		List(ctx context.Context) ([]*model.Exam, error)
		ListByGroup(ctx context.Context, groupID uuid.UUID) ([]*model.Exam, error)
		Update(ctx context.Context, examID uuid.UUID, patch service.ExamPatch) (*model.Exam, error)
		Delete(ctx context.Context, examID uuid.UUID) error
	}

	RequestService interface {
		Submit(ctx context.Context, spec service.RequestSpec) (*model.ExamRequest, error)
		List(ctx context.Context, filter model.RequestFilter) ([]*model.ExamRequest, error)
		Decide(ctx context.Context, requestID uuid.UUID, approved bool, reason string) (*model.Decision, error)
	}

	ClassroomService interface {
		Create(ctx context.Context, room *model.Classroom) error
		List(ctx context.Context) ([]*model.Classroom, error)
		ListSlots(ctx context.Context, classroomID uuid.UUID) ([]*model.BookedSlot, error)
	}
)

// --- bookings ---

type reserveRequest struct {
	ClassroomID uuid.UUID `json:"classroom_id" validate:"required"`
	Day         string    `json:"day" validate:"required"`
	Start       string    `json:"start" validate:"required"`
	End         string    `json:"end" validate:"required"`
}

func registerBookingRoutes(g *echo.Group, svc BookingService) {
	g.POST("/bookings", func(ctx echo.Context) error {
		var req reserveRequest
		if err := bind(ctx, &req); err != nil {
			return err
		}

		day, err := model.ParseDay(req.Day)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid day")
		}
		startMin, err := model.ParseClock(req.Start)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid start")
		}
		endMin, err := model.ParseClock(req.End)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid end")
		}

		reservationID, err := svc.Reserve(ctx.Request().Context(), req.ClassroomID, day, startMin, endMin)
		if err != nil {
			return httpError(err)
		}

		return ctx.JSON(http.StatusCreated, echo.Map{"reservation_id": reservationID})
	})

	g.DELETE("/bookings/:id", func(ctx echo.Context) error {
		reservationID, err := pathUUID(ctx, "id")
		if err != nil {
			return err
		}
		classroomID, err := uuid.Parse(ctx.QueryParam("classroom_id"))
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid classroom_id")
		}

		if err := svc.Release(ctx.Request().Context(), classroomID, reservationID); err != nil {
			return httpError(err)
		}

		return ctx.NoContent(http.StatusNoContent)
	})
}

// --- exams ---

type createExamRequest struct {
	Subject              string     `json:"subject" validate:"required"`
	MainProfessorID      uuid.UUID  `json:"main_professor_id" validate:"required"`
	SecondaryProfessorID *uuid.UUID `json:"secondary_professor_id"`
	Faculty              string     `json:"faculty" validate:"required"`
	GroupID              uuid.UUID  `json:"group_id" validate:"required"`
	Day                  string     `json:"day" validate:"required"`
	Hour                 string     `json:"hour" validate:"required"`
	DurationMin          int        `json:"duration_min" validate:"required,gt=0"`
	ClassroomID          uuid.UUID  `json:"classroom_id" validate:"required"`
}

type updateExamRequest struct {
	Subject              *string    `json:"subject"`
	MainProfessorID      *uuid.UUID `json:"main_professor_id"`
	SecondaryProfessorID *uuid.UUID `json:"secondary_professor_id"`
	Faculty              *string    `json:"faculty"`
	GroupID              *uuid.UUID `json:"group_id"`
	Day                  *string    `json:"day"`
	Hour                 *string    `json:"hour"`
	DurationMin          *int       `json:"duration_min"`
	ClassroomID          *uuid.UUID `json:"classroom_id"`
}

func registerExamRoutes(g *echo.Group, svc ExamService) {
	g.POST("/exams", func(ctx echo.Context) error {
		var req createExamRequest
		if err := bind(ctx, &req); err != nil {
			return err
		}
		day, err := model.ParseDay(req.Day)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid day")
		}

		exam, err := svc.Create(ctx.Request().Context(), service.ExamSpec{
			Subject:              req.Subject,
			MainProfessorID:      req.MainProfessorID,
			SecondaryProfessorID: req.SecondaryProfessorID,
			Faculty:              req.Faculty,
			GroupID:              req.GroupID,
			Day:                  day,
			Hour:                 req.Hour,
			DurationMin:          req.DurationMin,
			ClassroomID:          req.ClassroomID,
		})
		if err != nil {
			return httpError(err)
		}

		return ctx.JSON(http.StatusCreated, exam)
	})

	g.GET("/exams", func(ctx echo.Context) error {
		reqCtx := ctx.Request().Context()

		if raw := ctx.QueryParam("group_id"); raw != "" {
			groupID, err := uuid.Parse(raw)
			if err != nil {
				return echo.NewHTTPError(http.StatusBadRequest, "invalid group_id")
			}
			exams, err := svc.ListByGroup(reqCtx, groupID)
			if err != nil {
				return httpError(err)
			}
			return ctx.JSON(http.StatusOK, echo.Map{"exams": exams})
		}

		exams, err := svc.List(reqCtx)
		if err != nil {
			return httpError(err)
		}
		return ctx.JSON(http.StatusOK, echo.Map{"exams": exams})
	})

	g.GET("/exams/:id", func(ctx echo.Context) error {
		examID, err := pathUUID(ctx, "id")
		if err != nil {
			return err
		}
		exam, err := svc.Get(ctx.Request().Context(), examID)
		if err != nil {
			return httpError(err)
		}
		return ctx.JSON(http.StatusOK, exam)
	})

	g.PUT("/exams/:id", func(ctx echo.Context) error {
		examID, err := pathUUID(ctx, "id")
		if err != nil {
			return err
		}
		var req updateExamRequest
		if err := bind(ctx, &req); err != nil {
			return err
		}

		patch := service.ExamPatch{
			Subject:              req.Subject,
			MainProfessorID:      req.MainProfessorID,
			SecondaryProfessorID: req.SecondaryProfessorID,
			Faculty:              req.Faculty,
			GroupID:              req.GroupID,
			Hour:                 req.Hour,
			DurationMin:          req.DurationMin,
			ClassroomID:          req.ClassroomID,
		}
		if req.Day != nil {
			day, err := model.ParseDay(*req.Day)
			if err != nil {
				return echo.NewHTTPError(http.StatusBadRequest, "invalid day")
			}
			patch.Day = &day
		}

		exam, err := svc.Update(ctx.Request().Context(), examID, patch)
		if err != nil {
			return httpError(err)
		}
		return ctx.JSON(http.StatusOK, exam)
	})

	g.DELETE("/exams/:id", func(ctx echo.Context) error {
		examID, err := pathUUID(ctx, "id")
		if err != nil {
			return err
		}
		if err := svc.Delete(ctx.Request().Context(), examID); err != nil {
			return httpError(err)
		}
		return ctx.NoContent(http.StatusNoContent)
	})
}

// --- exam requests ---

type submitRequestRequest struct {
	StudentID            string     `json:"student_id" validate:"required"`
	Subject              string     `json:"subject" validate:"required"`
	Faculty              string     `json:"faculty" validate:"required"`
	GroupID              uuid.UUID  `json:"group_id" validate:"required"`
	ClassroomID          uuid.UUID  `json:"classroom_id" validate:"required"`
	MainProfessorID      uuid.UUID  `json:"main_professor_id" validate:"required"`
	SecondaryProfessorID *uuid.UUID `json:"secondary_professor_id"`
	Day                  string     `json:"day" validate:"required"`
	Hour                 string     `json:"hour" validate:"required"`
	DurationMin          int        `json:"duration_min" validate:"required,gt=0"`
}

type decisionRequest struct {
	Approved bool   `json:"approved"`
	Reason   string `json:"reason"`
}

func registerRequestRoutes(g *echo.Group, svc RequestService) {
	g.POST("/requests", func(ctx echo.Context) error {
		var req submitRequestRequest
		if err := bind(ctx, &req); err != nil {
			return err
		}

		request, err := svc.Submit(ctx.Request().Context(), service.RequestSpec{
			StudentID:            req.StudentID,
			Subject:              req.Subject,
			Faculty:              req.Faculty,
			GroupID:              req.GroupID,
			ClassroomID:          req.ClassroomID,
			MainProfessorID:      req.MainProfessorID,
			SecondaryProfessorID: req.SecondaryProfessorID,
			Day:                  req.Day,
			Hour:                 req.Hour,
			DurationMin:          req.DurationMin,
		})
		if err != nil {
			return httpError(err)
		}

		return ctx.JSON(http.StatusCreated, request)
	})

	g.GET("/requests", func(ctx echo.Context) error {
		filter := model.RequestFilter{
			StudentID: ctx.QueryParam("student_id"),
			Subject:   ctx.QueryParam("subject"),
		}
		if raw := ctx.QueryParam("group_id"); raw != "" {
			groupID, err := uuid.Parse(raw)
			if err != nil {
				return echo.NewHTTPError(http.StatusBadRequest, "invalid group_id")
			}
			filter.GroupID = &groupID
		}

		requests, err := svc.List(ctx.Request().Context(), filter)
		if err != nil {
			return httpError(err)
		}
		return ctx.JSON(http.StatusOK, echo.Map{"requests": requests})
	})

	g.PUT("/requests/:id/decision", func(ctx echo.Context) error {
		requestID, err := pathUUID(ctx, "id")
		if err != nil {
			return err
		}
		var req decisionRequest
		if err := bind(ctx, &req); err != nil {
			return err
		}

		decision, err := svc.Decide(ctx.Request().Context(), requestID, req.Approved, req.Reason)
		if err != nil {
			return httpError(err)
		}
		return ctx.JSON(http.StatusOK, decision)
	})
}

// --- classrooms ---

type createClassroomRequest struct {
	Name     string `json:"name" validate:"required"`
	Building string `json:"building" validate:"required"`
}

func registerClassroomRoutes(g *echo.Group, svc ClassroomService) {
	g.POST("/classrooms", func(ctx echo.Context) error {
		var req createClassroomRequest
		if err := bind(ctx, &req); err != nil {
			return err
		}

		room := &model.Classroom{Name: req.Name, Building: req.Building}
		if err := svc.Create(ctx.Request().Context(), room); err != nil {
			return httpError(err)
		}
		return ctx.JSON(http.StatusCreated, room)
	})

	g.GET("/classrooms", func(ctx echo.Context) error {
		rooms, err := svc.List(ctx.Request().Context())
		if err != nil {
			return httpError(err)
		}
		return ctx.JSON(http.StatusOK, echo.Map{"classrooms": rooms})
	})

	g.GET("/classrooms/:id/slots", func(ctx echo.Context) error {
		classroomID, err := pathUUID(ctx, "id")
		if err != nil {
			return err
		}
		slots, err := svc.ListSlots(ctx.Request().Context(), classroomID)
		if err != nil {
			return httpError(err)
		}
		return ctx.JSON(http.StatusOK, echo.Map{"slots": slots})
	})
}

// --- helpers ---

func bind(ctx echo.Context, req any) error {
	if err := ctx.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	return ctx.Validate(req)
}

func pathUUID(ctx echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(ctx.Param(name))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}
