// Package httpapi exposes the booking, exam and request-workflow operations
// over HTTP. It is a thin shell: all invariants live in the service layer.
package httpapi

import (
	"context"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

type Options struct {
	Address    string
	Bookings   BookingService
	Exams      ExamService
	Requests   RequestService
	Classrooms ClassroomService
	Logger     *zap.Logger
}

type Server struct {
	opts *Options
	app  *echo.Echo
}

func NewServer(opts *Options) *Server {
	s := &Server{
		opts: opts,
		app:  echo.New(),
	}
	s.setup()
	return s
}

func (s *Server) setup() {
	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	s.app.Use(middleware.Recover())
	s.app.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(ctx echo.Context, v middleware.RequestLoggerValues) error {
			s.opts.Logger.Info("Request handled",
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.Error(v.Error),
			)
			return nil
		},
	}))
	s.app.Validator = &requestValidator{validate: validator.New()}

	s.app.GET("/healthz", func(ctx echo.Context) error {
		return ctx.String(http.StatusOK, "ok")
	})

	v1 := s.app.Group("/v1")
	registerBookingRoutes(v1, s.opts.Bookings)
	registerExamRoutes(v1, s.opts.Exams)
	registerRequestRoutes(v1, s.opts.Requests)
	registerClassroomRoutes(v1, s.opts.Classrooms)
}

func (s *Server) Start() error {
	return s.app.Start(s.opts.Address)
}

func (s *Server) Stop(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

// ServeHTTP lets tests drive the server through httptest.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.app.ServeHTTP(w, r)
}

type requestValidator struct {
	validate *validator.Validate
}

func (v *requestValidator) Validate(i any) error {
	if err := v.validate.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}
