package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dd0wney/cluso-graphview/pkg/layout"
	"github.com/dd0wney/cluso-graphview/pkg/logging"
	"github.com/dd0wney/cluso-graphview/pkg/store"
	"github.com/dd0wney/cluso-graphview/pkg/validation"
)

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Warn("failed to encode response", logging.Error(err))
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
		Code:    status,
	})
}

// respondServiceError maps a domain error to a status code. Anything unknown
// is logged and reported without internal detail.
func (s *Server) respondServiceError(w http.ResponseWriter, operation string, err error) {
	switch {
	case errors.Is(err, layout.ErrSessionNotFound):
		s.respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, layout.ErrUnknownNode),
		errors.Is(err, layout.ErrInvalidArgument),
		errors.Is(err, validation.ErrInvalidWorkspaceID):
		s.respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrClosed):
		s.respondError(w, http.StatusServiceUnavailable, "document store unavailable")
	default:
		s.logger.Error(operation+" failed", logging.Error(err))
		s.respondError(w, http.StatusInternalServerError, operation+" failed")
	}
}

// decodeJSON decodes and validates a request body
func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.New("invalid request body")
	}
	return validation.ValidateStruct(v)
}
