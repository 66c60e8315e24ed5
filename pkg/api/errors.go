package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/marmos91/dittodrive/internal/logger"
	"github.com/marmos91/dittodrive/pkg/files"
)

// StatusFor maps a service error kind to an HTTP status.
func StatusFor(kind files.Kind) int {
	switch kind {
	case files.KindNotFound:
		return http.StatusNotFound
	case files.KindUnauthenticated:
		return http.StatusUnauthorized
	case files.KindForbidden:
		return http.StatusForbidden
	case files.KindNoPayload:
		return http.StatusBadRequest
	case files.KindInvalidName:
		return http.StatusUnprocessableEntity
	case files.KindResolutionExhausted:
		return http.StatusInsufficientStorage
	default:
		return http.StatusInternalServerError
	}
}

type messageResponse struct {
	Message string `json:"message"`
}

// errorHandler renders every failure as {"message": ...}. Service errors
// carry their stable message; causes are logged, never returned.
func errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	message := files.KindBackendFailure.Message()

	var svcErr *files.Error
	var httpErr *echo.HTTPError
	switch {
	case errors.As(err, &svcErr):
		status = StatusFor(svcErr.Kind)
		message = svcErr.Message
		if svcErr.Kind == files.KindBackendFailure {
			logger.Error("%s %s: %v", c.Request().Method, c.Request().URL.Path, err)
		}
	case errors.As(err, &httpErr):
		status = httpErr.Code
		if status == http.StatusNotFound {
			message = files.KindNotFound.Message()
		} else if m, ok := httpErr.Message.(string); ok {
			message = m
		} else {
			message = http.StatusText(status)
		}
	default:
		logger.Error("%s %s: %v", c.Request().Method, c.Request().URL.Path, err)
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(status)
	} else {
		err = c.JSON(status, messageResponse{Message: message})
	}
	if err != nil {
		logger.Warn("write error response: %v", err)
	}
}
