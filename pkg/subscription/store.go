package subscription

import "context"

// Store persists subscription records keyed by processor subscription id,
// with a secondary lookup by user.
//
// Update and Upsert must serialize concurrent calls for the same id: fn sees
// the latest committed state and its result is committed atomically. If fn
// returns an error nothing is written and the error is returned as is.
type Store interface {
	// Get returns ErrSubscriptionNotFound when the record is absent.
	Get(ctx context.Context, id string) (*Record, error)

	// FindByUser returns every record of the user, newest first.
	FindByUser(ctx context.Context, userID string) ([]*Record, error)

	// Insert stores rec unless a record with the same id exists.
	// Reports whether the record was written.
	Insert(ctx context.Context, rec *Record) (bool, error)

	// Update applies fn to the existing record.
	// Returns ErrSubscriptionNotFound when the record is absent.
	Update(ctx context.Context, id string, fn func(*Record) error) (*Record, error)

	// Upsert applies fn to the existing record, or to the result of create
	// when the record is absent, and stores the outcome.
	Upsert(ctx context.Context, id string, create func() *Record, fn func(*Record) error) (*Record, error)
}
