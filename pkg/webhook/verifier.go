package webhook

import "time"

// Config holds inbound webhook settings.
type Config struct {
	Secret    string        `env:"STRIPE_WEBHOOK_SECRET,required"`
	Tolerance time.Duration `env:"WEBHOOK_TOLERANCE" envDefault:"5m"`
}

// Verifier checks inbound deliveries against a fixed secret.
// It is safe for concurrent use.
type Verifier struct {
	secret    string
	tolerance time.Duration
	now       func() time.Time
}

// VerifierOption configures a Verifier.
type VerifierOption func(*Verifier)

// WithTolerance overrides DefaultTolerance. Zero or negative disables the check.
func WithTolerance(d time.Duration) VerifierOption {
	return func(v *Verifier) {
		v.tolerance = d
	}
}

// WithClock sets the time source used for the tolerance check.
func WithClock(now func() time.Time) VerifierOption {
	return func(v *Verifier) {
		if now != nil {
			v.now = now
		}
	}
}

// NewVerifier creates a verifier for the given signing secret.
// An empty secret is accepted here and reported by every Verify call,
// so a misconfigured deployment fails loudly on the first delivery.
func NewVerifier(secret string, opts ...VerifierOption) *Verifier {
	v := &Verifier{
		secret:    secret,
		tolerance: DefaultTolerance,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// NewVerifierFromConfig creates a verifier from environment configuration.
func NewVerifierFromConfig(cfg Config, opts ...VerifierOption) *Verifier {
	return NewVerifier(cfg.Secret, append([]VerifierOption{WithTolerance(cfg.Tolerance)}, opts...)...)
}

// Verify authenticates a delivery and decodes its envelope.
func (v *Verifier) Verify(rawBody []byte, signatureHeader string) (*VerifiedEvent, error) {
	return verifyAt(rawBody, signatureHeader, v.secret, v.tolerance, v.now())
}

// Sign produces a header this verifier accepts. Used for local re-delivery.
func (v *Verifier) Sign(payload []byte) string {
	return Sign(v.secret, payload, v.now())
}
