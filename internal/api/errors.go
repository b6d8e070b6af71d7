package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	domainerrors "github.com/shelfwise/shelfwise-server/internal/errors"
	"github.com/shelfwise/shelfwise-server/internal/store"
)

// APIError is the body of every error response: {"error": "message"}.
type APIError struct {
	status  int
	Message string `json:"error" doc:"Human-readable error message"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return e.Message
}

// GetStatus implements huma.StatusError.
func (e *APIError) GetStatus() int {
	return e.status
}

// ContentType returns the content type for the error response.
func (e *APIError) ContentType(_ string) string {
	return "application/json"
}

// RegisterErrorHandler makes huma report domain and store errors with their
// own status and message. Request validation failures are reported as 400,
// and server failures keep the message of the error that caused them.
// Call this after creating the huma.API but before registering routes.
func RegisterErrorHandler() {
	huma.NewError = func(status int, message string, errs ...error) huma.StatusError {
		for _, err := range errs {
			var domainErr *domainerrors.Error
			if errors.As(err, &domainErr) {
				return &APIError{status: domainErr.HTTPStatus(), Message: domainErr.Message}
			}
			var storeErr *store.Error
			if errors.As(err, &storeErr) {
				return &APIError{status: storeErr.HTTPCode(), Message: storeErr.Message}
			}
		}

		if status == http.StatusUnprocessableEntity {
			status = http.StatusBadRequest
		}
		switch {
		case status == http.StatusBadRequest:
			message = withDetails(message, errs)
		case status >= http.StatusInternalServerError:
			message = withCause(message, errs)
		}
		return &APIError{status: status, Message: message}
	}
}

// withDetails appends "location: message" of each huma error detail.
func withDetails(message string, errs []error) string {
	parts := make([]string, 0, len(errs))
	for _, err := range errs {
		var detail *huma.ErrorDetail
		if errors.As(err, &detail) {
			loc := strings.TrimPrefix(detail.Location, "body.")
			if loc != "" {
				parts = append(parts, loc+": "+detail.Message)
			} else {
				parts = append(parts, detail.Message)
			}
		}
	}
	if len(parts) == 0 {
		return message
	}
	return message + ": " + strings.Join(parts, "; ")
}

// withCause appends the text of each underlying error.
func withCause(message string, errs []error) string {
	parts := make([]string, 0, len(errs))
	for _, err := range errs {
		if err != nil {
			parts = append(parts, err.Error())
		}
	}
	if len(parts) == 0 {
		return message
	}
	return message + ": " + strings.Join(parts, "; ")
}
