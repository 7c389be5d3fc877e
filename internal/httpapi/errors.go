package httpapi

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"auditflow/internal/compliance"
)

func errForbidden(msg string) *echo.HTTPError {
	return echo.NewHTTPError(http.StatusForbidden, msg)
}

func errBadRequest(msg string) *echo.HTTPError {
	return echo.NewHTTPError(http.StatusBadRequest, msg)
}

// statusOf maps service errors to HTTP status codes.
func statusOf(err error) int {
	switch {
	case errors.Is(err, compliance.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, compliance.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, compliance.ErrConflict), errors.Is(err, compliance.ErrInvalidState):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// handleError writes every error as {"error": message}. Internal errors are
// logged and hidden from the client.
func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	msg := http.StatusText(code)

	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		if m, ok := he.Message.(string); ok {
			msg = m
		} else {
			msg = http.StatusText(code)
		}
	} else {
		code = statusOf(err)
		if code == http.StatusInternalServerError {
			s.logger.Error("request failed", "method", c.Request().Method, "path", c.Path(), "error", err)
		} else {
			msg = err.Error()
		}
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(code)
	} else {
		err = c.JSON(code, echo.Map{"error": msg})
	}
	if err != nil {
		s.logger.Warn("writing error response", "error", err)
	}
}
