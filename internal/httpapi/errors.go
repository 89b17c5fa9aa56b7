package httpapi

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/schedly/exam-scheduler/internal/service"
)

// httpError maps service sentinels onto transport status codes. Anything
// unrecognized is a server error.
func httpError(err error) error {
	switch {
	case errors.Is(err, service.ErrProfessorNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "professor not found")
	case errors.Is(err, service.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	case errors.Is(err, service.ErrSlotConflict):
		return echo.NewHTTPError(http.StatusConflict, "classroom is already booked for this time slot")
	case errors.Is(err, service.ErrIncompleteRequest):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "missing required fields to create the exam")
	case errors.Is(err, service.ErrInvalidInput):
		return echo.NewHTTPError(http.StatusBadRequest, "invalid input")
	default:
		return err
	}
}
