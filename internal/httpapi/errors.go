package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/joelkehle/legalbrief/internal/analysis"
	"github.com/joelkehle/legalbrief/internal/store"
)

const (
	CodeInvalidRequest        = "invalid_request"
	CodeTooLarge              = "payload_too_large"
	CodeCapabilityUnavailable = "capability_unavailable"
	CodeNoUsableResult        = "no_usable_result"
	CodeNotFound              = "not_found"
	CodeTimeout               = "timeout"
	CodeInternal              = "internal"
)

// Error is an API error with its HTTP status.
type Error struct {
	Status    int
	Code      string
	Message   string
	Transient bool
}

func (e *Error) Error() string { return e.Code + ": " + e.Message }

func newError(status int, code, message string, transient bool) *Error {
	return &Error{Status: status, Code: code, Message: message, Transient: transient}
}

func (e *Error) payload() map[string]any {
	return map[string]any{
		"ok": false,
		"error": map[string]any{
			"code":      e.Code,
			"message":   e.Message,
			"transient": e.Transient,
		},
	}
}

func toAPIError(err error) *Error {
	var apiErr *Error
	switch {
	case errors.As(err, &apiErr):
		return apiErr
	case errors.Is(err, analysis.ErrInvalidRequest):
		return newError(http.StatusBadRequest, CodeInvalidRequest, err.Error(), false)
	case errors.Is(err, analysis.ErrCapabilityUnavailable):
		return newError(http.StatusServiceUnavailable, CodeCapabilityUnavailable, "language model is not available", true)
	case errors.Is(err, analysis.ErrNoUsableResult):
		return newError(http.StatusBadGateway, CodeNoUsableResult, "no section of the document could be analyzed", true)
	case errors.Is(err, store.ErrNotFound):
		return newError(http.StatusNotFound, CodeNotFound, "analysis not found", false)
	case errors.Is(err, context.DeadlineExceeded):
		return newError(http.StatusGatewayTimeout, CodeTimeout, "analysis timed out", true)
	default:
		return newError(http.StatusInternalServerError, CodeInternal, err.Error(), true)
	}
}

func writeError(w http.ResponseWriter, err error) {
	apiErr := toAPIError(err)
	writeJSON(w, apiErr.Status, apiErr.payload())
}
