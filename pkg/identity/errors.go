package identity

import "errors"

var (
	ErrMissingToken   = errors.New("identity: missing bearer token")
	ErrInvalidToken   = errors.New("identity: invalid token")
	ErrMissingSubject = errors.New("identity: token has no subject")
	ErrNotConfigured  = errors.New("identity: neither JWT secret nor JWKS URL is configured")
)
