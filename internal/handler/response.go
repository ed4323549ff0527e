package handler

// RESPONSE HELPERS:
// Every handler answers through writeJSON or writeError, so the API has one
// error shape:
//
//	{"error": "not_found", "message": "food item not found with id abc123"}
//
// "error" is the apperror code, "message" is AppError.Message. The wrapped
// cause (driver errors, upstream bodies) is logged here and never sent.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/metapantry/internal/apperror"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

var statusByCode = map[string]int{
	"validation_error":     http.StatusBadRequest,
	"unauthorized":         http.StatusUnauthorized,
	"forbidden":            http.StatusForbidden,
	"not_found":            http.StatusNotFound,
	"conflict":             http.StatusConflict,
	"parse_failure":        http.StatusBadGateway,
	"external_unavailable": http.StatusServiceUnavailable,
	"storage_unavailable":  http.StatusServiceUnavailable,
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps err to a status code and the standard error body.
// Anything that is not an *apperror.AppError becomes a generic 500.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		logger.Error("unhandled error", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "an internal error occurred",
		})
		return
	}

	code := apperror.Code(err)
	status, ok := statusByCode[code]
	if !ok {
		status = http.StatusInternalServerError
	}
	if status >= http.StatusInternalServerError {
		logger.Warn("request failed",
			slog.String("kind", code),
			slog.String("error", err.Error()),
		)
	}
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", "Bearer")
	}

	writeJSON(w, status, ErrorResponse{
		Error:   code,
		Message: appErr.Message,
		Field:   appErr.Field,
	})
}
