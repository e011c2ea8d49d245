package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/pavelanni/studyscore/internal/generation"
	appI18n "github.com/pavelanni/studyscore/internal/i18n"
	"github.com/pavelanni/studyscore/internal/quota"
	"github.com/pavelanni/studyscore/internal/scoring"
	"github.com/pavelanni/studyscore/internal/store"
)

var (
	errBadRequest         = errors.New("bad request")
	errUnauthorized       = errors.New("unauthorized")
	errGenerationDisabled = errors.New("question generation is not configured")
	errGenerationFailed   = errors.New("question generation failed")
)

type errorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

// classify maps an error to its HTTP status and message ID.
func classify(err error) (int, string) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.Is(err, errUnauthorized):
		return http.StatusUnauthorized, "ErrUnauthorized"
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge, "ErrInvalidRequest"
	case errors.Is(err, quota.ErrInvalidQuota):
		return http.StatusBadRequest, "ErrInvalidQuota"
	case errors.Is(err, generation.ErrInvalidRequest), errors.Is(err, errBadRequest):
		return http.StatusBadRequest, "ErrInvalidRequest"
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "ErrNotFound"
	case errors.Is(err, errGenerationDisabled):
		return http.StatusServiceUnavailable, "ErrGenerationDisabled"
	case errors.Is(err, errGenerationFailed):
		return http.StatusBadGateway, "ErrGenerationFailed"
	case errors.Is(err, scoring.ErrMalformedQuestion):
		return http.StatusUnprocessableEntity, "ErrMalformedQuestion"
	default:
		return http.StatusInternalServerError, "ErrInternal"
	}
}

// writeError responds with a localized message. Internal errors are logged
// and their detail is withheld from the client.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, msgID := classify(err)
	resp := errorResponse{Error: appI18n.T(r.Context(), msgID)}
	if status >= http.StatusInternalServerError {
		slog.Error("request failed",
			"request_id", middleware.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"error", err)
	} else {
		resp.Detail = err.Error()
	}
	if status == http.StatusBadGateway {
		resp.Detail = ""
	}
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer realm="studyscore"`)
	}
	writeJSON(w, status, resp)
}
