package handler

import (
	"errors"
	"net/http"

	relay_errors "relaychat/pkg/errors"
)

// statusAndCode maps service errors to an HTTP status and a stable code
// string for clients.
func statusAndCode(err error) (int, string) {
	switch {
	case errors.Is(err, relay_errors.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, relay_errors.ErrForbidden):
		return http.StatusForbidden, "FORBIDDEN"
	case errors.Is(err, relay_errors.ErrUnauthorized):
		return http.StatusUnauthorized, "UNAUTHORIZED"
	case errors.Is(err, relay_errors.ErrInvalidState):
		return http.StatusConflict, "INVALID_STATE"
	case errors.Is(err, relay_errors.ErrStorageConflict):
		return http.StatusConflict, "STORAGE_CONFLICT"
	case errors.Is(err, relay_errors.ErrAlreadyExists):
		return http.StatusConflict, "ALREADY_EXISTS"
	case errors.Is(err, relay_errors.ErrInvalidInput):
		return http.StatusBadRequest, "VALIDATION_ERROR"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}
