package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/mwantia/loadoutsync/internal/loadout"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.Warn("Failed to encode response: %v", err)
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, ErrorResponse{Error: message})
}

// respondFailure maps the engine error taxonomy onto status codes.
func (s *Server) respondFailure(w http.ResponseWriter, err error) {
	s.respondError(w, statusOf(err), err.Error())
}

func statusOf(err error) int {
	var validationErrors validator.ValidationErrors

	switch {
	case errors.Is(err, loadout.ErrNotAuthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, loadout.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, loadout.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, loadout.ErrFormat),
		errors.Is(err, loadout.ErrInvalidLoadout),
		errors.As(err, &validationErrors):
		return http.StatusBadRequest
	case errors.Is(err, loadout.ErrRemoteFailure):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func decode(r *http.Request, out any) error {
	return json.NewDecoder(r.Body).Decode(out)
}
