package billing

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/dmitrymomot/billsync/pkg/logger"
	"github.com/dmitrymomot/billsync/pkg/subscription"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// statusFor maps an error category to an HTTP status.
// notFound is the status used for subscription.ErrNotFound, which differs
// between endpoints.
func statusFor(err error, notFound int) int {
	switch {
	case errors.Is(err, ErrUnsupportedMediaType),
		errors.Is(err, ErrMissingContentType),
		errors.Is(err, ErrBodyTooLarge),
		errors.Is(err, ErrInvalidJSON),
		errors.Is(err, subscription.ErrValidation),
		errors.Is(err, subscription.ErrLinkage),
		errors.Is(err, subscription.ErrVerification):
		return http.StatusBadRequest
	case errors.Is(err, subscription.ErrAuth):
		return http.StatusUnauthorized
	case errors.Is(err, subscription.ErrNotFound):
		return notFound
	case errors.Is(err, subscription.ErrUpstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// message picks the text shown to the caller. Internal failures are not
// described; upstream failures carry the processor's own message.
func message(err error, status int) string {
	var ue *subscription.UpstreamError
	switch {
	case errors.As(err, &ue):
		return ue.Message
	case status >= http.StatusInternalServerError:
		return http.StatusText(status)
	default:
		return err.Error()
	}
}

// fail logs err at a level matching status and writes the error body.
func fail(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error, notFound int) {
	status := statusFor(err, notFound)
	level := slog.LevelWarn
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	log.Log(r.Context(), level, "request failed",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.Int("status", status),
		logger.Error(err),
	)
	writeError(w, status, message(err, status))
}
