package archive

import "errors"

var (
	ErrInvalidConfig      = errors.New("invalid archive configuration")
	ErrFailedToLoadConfig = errors.New("failed to load AWS config")
	ErrEmptyPayload       = errors.New("event has no raw payload")
	ErrMissingEventID     = errors.New("event has no id")
	ErrObjectNotFound     = errors.New("archived event not found")
	ErrBucketNotFound     = errors.New("archive bucket not found")
	ErrAccessDenied       = errors.New("archive access denied")
	ErrUnavailable        = errors.New("archive storage temporarily unavailable")
)
