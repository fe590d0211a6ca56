package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/aretw0/multipage/pkg/domain"
)

// ErrorResponse is the body of every non-2xx answer. PageID and Failures are
// set when an advance was refused.
type ErrorResponse struct {
	Error    string           `json:"error"`
	PageID   string           `json:"page_id,omitempty"`
	Failures []domain.Failure `json:"failures,omitempty"`
}

// StatusOf maps engine errors to HTTP status codes.
func StatusOf(err error) int {
	var (
		verr *domain.ValidationError
		rerr *domain.ResolutionError
		serr *domain.SerializationError
	)
	switch {
	case errors.As(err, &verr):
		return http.StatusUnprocessableEntity
	case errors.As(err, &rerr),
		errors.Is(err, domain.ErrSessionFinished),
		errors.Is(err, domain.ErrNoHistory):
		return http.StatusConflict
	case errors.Is(err, domain.ErrSessionNotFound),
		errors.Is(err, domain.ErrPageNotFound):
		return http.StatusNotFound
	case errors.As(err, &serr),
		errors.Is(err, domain.ErrUnknownElement),
		errors.Is(err, domain.ErrInvalidValue):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", "err", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := StatusOf(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "err", err)
	}
	resp := ErrorResponse{Error: err.Error()}
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		resp.PageID = verr.PageID
		resp.Failures = verr.Failures
	}
	s.writeJSON(w, status, resp)
}

func (s *Server) badRequest(w http.ResponseWriter, err error) {
	s.writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
}

// decode reads a JSON body of at most maxBodyBytes. Numbers stay json.Number
// so that the store keeps integers exact.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.UseNumber()
	return dec.Decode(v)
}
