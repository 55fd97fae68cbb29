package subscription

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/dmitrymomot/billsync/pkg/logger"
)

// BreakerConfig controls the circuit breaker around processor calls.
type BreakerConfig struct {
	Enabled          bool          `env:"STRIPE_BREAKER_ENABLED" envDefault:"true"`
	FailureThreshold uint32        `env:"STRIPE_BREAKER_FAILURE_THRESHOLD" envDefault:"5"`
	MaxRequests      uint32        `env:"STRIPE_BREAKER_MAX_REQUESTS" envDefault:"1"`
	Interval         time.Duration `env:"STRIPE_BREAKER_INTERVAL" envDefault:"1m"`
	Timeout          time.Duration `env:"STRIPE_BREAKER_TIMEOUT" envDefault:"30s"`
}

type breakerProcessor struct {
	next Processor
	cb   *gobreaker.CircuitBreaker[*SessionLink]
}

// WithCircuitBreaker wraps next so that consecutive transient failures open
// the circuit and further calls fail fast with an UpstreamError. Client
// errors such as an unknown price do not count as failures.
func WithCircuitBreaker(next Processor, cfg BreakerConfig, log *slog.Logger) Processor {
	if !cfg.Enabled {
		return next
	}
	if log == nil {
		log = slog.Default()
	}
	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}

	settings := gobreaker.Settings{
		Name:        "payment-processor",
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			var ue *UpstreamError
			if errors.As(err, &ue) {
				return !ue.Temporary()
			}
			return false
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed",
				logger.Component(name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	}
	return &breakerProcessor{next: next, cb: gobreaker.NewCircuitBreaker[*SessionLink](settings)}
}

func (b *breakerProcessor) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*SessionLink, error) {
	return b.execute("create checkout session", func() (*SessionLink, error) {
		return b.next.CreateCheckoutSession(ctx, req)
	})
}

func (b *breakerProcessor) CreatePortalSession(ctx context.Context, customerID, returnURL string) (*SessionLink, error) {
	return b.execute("create portal session", func() (*SessionLink, error) {
		return b.next.CreatePortalSession(ctx, customerID, returnURL)
	})
}

func (b *breakerProcessor) execute(op string, fn func() (*SessionLink, error)) (*SessionLink, error) {
	link, err := b.cb.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, &UpstreamError{Op: op, Message: "payment processor temporarily unavailable", Err: err}
	}
	return link, err
}
