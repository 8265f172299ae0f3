package httputil

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/courtside/courtside/internal/schedule"
)

// JSON writes a JSON body with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding response", "error", err)
	}
}

type errorBody struct {
	Kind     string `json:"kind"`
	Message  string `json:"message"`
	Resource string `json:"resource,omitempty"`
}

// EngineError maps an engine failure to its HTTP status and writes the
// taxonomy kind plus the conflicting resource, so callers can present
// an actionable message.
func EngineError(w http.ResponseWriter, msg string, err error) {
	var engineErr *schedule.Error
	if !errors.As(err, &engineErr) {
		if errors.Is(err, sql.ErrNoRows) {
			NotFound(w, msg, err)
			return
		}
		InternalServerError(w, msg, err)
		return
	}

	var status int
	switch engineErr.Kind {
	case schedule.KindValidation:
		status = http.StatusBadRequest
	case schedule.KindNotFound:
		status = http.StatusNotFound
	case schedule.KindConflict, schedule.KindCapacity:
		status = http.StatusConflict
	case schedule.KindPrecondition:
		status = http.StatusUnprocessableEntity
	default:
		InternalServerError(w, msg, err)
		return
	}

	slog.Warn(msg, "kind", engineErr.Kind, "resource", engineErr.Resource, "error", err)
	JSON(w, status, errorBody{
		Kind:     string(engineErr.Kind),
		Message:  engineErr.Message,
		Resource: engineErr.Resource,
	})
}

func InternalServerError(w http.ResponseWriter, msg string, err error) {
	slog.Error(msg, "error", err)
	JSON(w, http.StatusInternalServerError, errorBody{Kind: "internal", Message: "internal server error"})
}

func BadRequest(w http.ResponseWriter, msg string, err error) {
	if err != nil {
		slog.Warn("bad request", "message", msg, "error", err)
	} else {
		slog.Warn("bad request", "message", msg)
	}
	JSON(w, http.StatusBadRequest, errorBody{Kind: "validation", Message: msg})
}

func NotFound(w http.ResponseWriter, msg string, err error) {
	if err != nil {
		slog.Warn("not found", "message", msg, "error", err)
	} else {
		slog.Warn("not found", "message", msg)
	}
	JSON(w, http.StatusNotFound, errorBody{Kind: "not_found", Message: msg})
}
