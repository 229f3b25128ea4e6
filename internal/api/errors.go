package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	domainerrors "github.com/openshelf/openshelf-server/internal/errors"
	"github.com/openshelf/openshelf-server/internal/isbndb"
	"github.com/openshelf/openshelf-server/internal/lookup"
	"github.com/openshelf/openshelf-server/internal/store"
)

// APIError is a custom error type that implements huma.StatusError.
// It maps domain errors to HTTP responses with consistent structure.
type APIError struct { //nolint:revive // API prefix is intentional for clarity
	status  int
	Code    string `json:"code" doc:"Machine-readable error code"`
	Message string `json:"message" doc:"Human-readable error message"`
	Details any    `json:"details,omitempty" doc:"Additional error details"`
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

// RegisterErrorHandler configures huma to use domain errors.
// Call this after creating the huma.API but before registering routes.
func RegisterErrorHandler() {
	huma.NewError = func(status int, message string, errs ...error) huma.StatusError {
		var details []string
		for _, err := range errs {
			if err == nil {
				continue
			}
			if domainErr := toDomainError(err); domainErr != nil {
				return &APIError{
					status:  domainErr.HTTPStatus(),
					Code:    string(domainErr.Code),
					Message: domainErr.Message,
					Details: domainErr.Details,
				}
			}
			details = append(details, err.Error())
		}

		apiErr := &APIError{
			status:  status,
			Code:    statusToCode(status),
			Message: message,
		}
		if len(details) > 0 && status < http.StatusInternalServerError {
			apiErr.Details = details
		}
		return apiErr
	}
}

// toDomainError classifies package errors into coded domain errors.
// It returns nil for errors it does not recognize.
func toDomainError(err error) *domainerrors.Error {
	var domainErr *domainerrors.Error
	if errors.As(err, &domainErr) {
		return domainErr
	}

	var upstream *isbndb.UpstreamError
	switch {
	case errors.Is(err, isbndb.ErrNotConfigured):
		return domainerrors.NotConfigured("isbndb api key is not configured")
	case errors.Is(err, isbndb.ErrNotFound), errors.Is(err, store.ErrNotFound):
		return domainerrors.NotFound(err.Error())
	case errors.Is(err, isbndb.ErrInvalidInput),
		errors.Is(err, lookup.ErrInvalidItem),
		errors.Is(err, store.ErrInvalidInput):
		return domainerrors.Validation(err.Error())
	case errors.Is(err, lookup.ErrQueueStopped):
		return domainerrors.Unavailable("lookup queue is stopped")
	case errors.As(err, &upstream):
		if upstream.StatusCode == http.StatusTooManyRequests {
			return domainerrors.Wrap(err, domainerrors.CodeRateLimited, "isbndb rate limit exceeded")
		}
		return domainerrors.Wrap(err, domainerrors.CodeUpstream, "isbndb request failed").
			WithDetails(map[string]int{"upstream_status": upstream.StatusCode})
	case errors.Is(err, context.DeadlineExceeded):
		return domainerrors.Wrap(err, domainerrors.CodeUnavailable, "request timed out")
	}
	return nil
}

// statusToCode maps HTTP status codes to our domain error codes.
func statusToCode(status int) string {
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return string(domainerrors.CodeValidation)
	case http.StatusNotFound:
		return string(domainerrors.CodeNotFound)
	case http.StatusConflict:
		return string(domainerrors.CodeConflict)
	case http.StatusTooManyRequests:
		return string(domainerrors.CodeRateLimited)
	case http.StatusServiceUnavailable:
		return string(domainerrors.CodeUnavailable)
	default:
		return string(domainerrors.CodeInternal)
	}
}
