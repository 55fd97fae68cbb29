package httpserver

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/dmitrymomot/billsync/pkg/logger"
)

// Check is a named readiness dependency.
type Check struct {
	Name string
	Fn   func(context.Context) error
}

// CheckFunc is a shorthand for building a Check.
func CheckFunc(name string, fn func(context.Context) error) Check {
	return Check{Name: name, Fn: fn}
}

// DefaultCheckTimeout bounds each readiness check when no timeout is given.
const DefaultCheckTimeout = 2 * time.Second

// LivenessHandler always answers 200 "ALIVE".
func LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeProbe(w, http.StatusOK, "ALIVE")
	}
}

// ReadinessHandler runs every check against the request context, each bounded
// by timeout. It answers 200 "READY" when all pass and 503 "NOT_READY" as soon
// as one fails. With no checks it degrades to a liveness probe.
func ReadinessHandler(log *slog.Logger, timeout time.Duration, checks ...Check) http.HandlerFunc {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	if timeout <= 0 {
		timeout = DefaultCheckTimeout
	}
	if len(checks) == 0 {
		return LivenessHandler()
	}

	return func(w http.ResponseWriter, r *http.Request) {
		for _, c := range checks {
			if err := runCheck(r.Context(), timeout, c); err != nil {
				log.ErrorContext(r.Context(), "readiness check failed",
					slog.String("check", c.Name),
					logger.Error(err),
				)
				writeProbe(w, http.StatusServiceUnavailable, "NOT_READY")
				return
			}
		}
		writeProbe(w, http.StatusOK, "READY")
	}
}

func runCheck(ctx context.Context, timeout time.Duration, c Check) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.Fn(ctx)
}

func writeProbe(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}
