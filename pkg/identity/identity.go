package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
)

// Identity is the authenticated caller.
type Identity struct {
	UserID string
	Email  string
}

// Config selects how bearer tokens are validated. When JWKSURL is set,
// tokens are verified against the published key set; otherwise JWTSecret
// is used as an HS256 shared secret.
type Config struct {
	JWTSecret   string        `env:"AUTH_JWT_SECRET"`
	JWKSURL     string        `env:"AUTH_JWKS_URL"`
	JWKSRefresh time.Duration `env:"AUTH_JWKS_REFRESH" envDefault:"1h"`
	Audience    string        `env:"AUTH_AUDIENCE"`
	Issuer      string        `env:"AUTH_ISSUER"`
	Leeway      time.Duration `env:"AUTH_LEEWAY" envDefault:"30s"`
}

type claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Provider validates bearer tokens and extracts the caller identity.
type Provider struct {
	parser  *jwt.Parser
	keyfunc jwt.Keyfunc
	close   func()
}

// Option configures a Provider.
type Option func(*options)

type options struct {
	audience string
	issuer   string
	leeway   time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// WithAudience requires the aud claim to contain aud.
func WithAudience(aud string) Option {
	return func(o *options) { o.audience = aud }
}

// WithIssuer requires the iss claim to equal iss.
func WithIssuer(iss string) Option {
	return func(o *options) { o.issuer = iss }
}

// WithLeeway tolerates clock skew when validating exp, nbf and iat.
func WithLeeway(d time.Duration) Option {
	return func(o *options) { o.leeway = d }
}

// WithLogger sets the logger for background key refresh errors.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithClock sets the time used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

func buildOptions(opts []Option) *options {
	o := &options{logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func newParser(o *options, methods []string) *jwt.Parser {
	popts := []jwt.ParserOption{
		jwt.WithValidMethods(methods),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(o.leeway),
		jwt.WithTimeFunc(o.now),
	}
	if o.audience != "" {
		popts = append(popts, jwt.WithAudience(o.audience))
	}
	if o.issuer != "" {
		popts = append(popts, jwt.WithIssuer(o.issuer))
	}
	return jwt.NewParser(popts...)
}

// NewHMACProvider validates HS256 tokens signed with secret.
func NewHMACProvider(secret string, opts ...Option) (*Provider, error) {
	if secret == "" {
		return nil, ErrNotConfigured
	}
	key := []byte(secret)
	return &Provider{
		parser:  newParser(buildOptions(opts), []string{jwt.SigningMethodHS256.Alg()}),
		keyfunc: func(*jwt.Token) (any, error) { return key, nil },
		close:   func() {},
	}, nil
}

// NewJWKSProvider validates asymmetric tokens against the key set at jwksURL.
// Keys are refreshed in the background until Close is called.
func NewJWKSProvider(ctx context.Context, jwksURL string, refresh time.Duration, opts ...Option) (*Provider, error) {
	if jwksURL == "" {
		return nil, ErrNotConfigured
	}
	o := buildOptions(opts)
	jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{
		Ctx:               ctx,
		RefreshInterval:   refresh,
		RefreshTimeout:    10 * time.Second,
		RefreshUnknownKID: true,
		RefreshErrorHandler: func(err error) {
			o.logger.Warn("failed to refresh JWKS", slog.String("url", jwksURL), slog.Any("error", err))
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load JWKS from %s: %w", jwksURL, err)
	}
	return &Provider{
		parser:  newParser(o, []string{"RS256", "RS384", "RS512", "ES256", "ES384", "ES512", "EdDSA"}),
		keyfunc: jwks.Keyfunc,
		close:   jwks.EndBackground,
	}, nil
}

// NewFromConfig picks the JWKS provider when a URL is configured and the
// HMAC provider otherwise.
func NewFromConfig(ctx context.Context, cfg Config, opts ...Option) (*Provider, error) {
	base := []Option{WithAudience(cfg.Audience), WithIssuer(cfg.Issuer), WithLeeway(cfg.Leeway)}
	opts = append(base, opts...)
	if cfg.JWKSURL != "" {
		return NewJWKSProvider(ctx, cfg.JWKSURL, cfg.JWKSRefresh, opts...)
	}
	return NewHMACProvider(cfg.JWTSecret, opts...)
}

// Authenticate validates token and returns the identity it carries.
func (p *Provider) Authenticate(ctx context.Context, token string) (Identity, error) {
	if token == "" {
		return Identity{}, ErrMissingToken
	}
	var c claims
	if _, err := p.parser.ParseWithClaims(token, &c, p.keyfunc); err != nil {
		return Identity{}, errors.Join(ErrInvalidToken, err)
	}
	if c.Subject == "" {
		return Identity{}, ErrMissingSubject
	}
	return Identity{UserID: c.Subject, Email: c.Email}, nil
}

// Close stops background key refresh.
func (p *Provider) Close() {
	if p.close != nil {
		p.close()
	}
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
func BearerToken(r *http.Request) (string, error) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", ErrMissingToken
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", ErrInvalidToken
	}
	return strings.TrimSpace(token), nil
}
