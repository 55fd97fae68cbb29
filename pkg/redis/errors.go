package redis

import "errors"

var (
	ErrEmptyConnectionURL           = errors.New("redis connection URL is empty")
	ErrFailedToParseRedisConnString = errors.New("failed to parse redis connection URL")
	ErrRedisNotReady                = errors.New("redis is not reachable")
	ErrHealthcheckFailed            = errors.New("redis healthcheck failed")
)
