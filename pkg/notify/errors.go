package notify

import "errors"

var (
	ErrInvalidConfig  = errors.New("invalid notifier configuration")
	ErrFailedToNotify = errors.New("failed to deliver alert")
)

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	return errors.Join(errs...)
}
