// Package pgstore implements subscription.Store on PostgreSQL.
//
// Insert relies on ON CONFLICT DO NOTHING. Update and Upsert lock the row
// with SELECT ... FOR UPDATE inside a transaction, so concurrent deliveries
// for one subscription are applied one after another.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dmitrymomot/billsync/pkg/pg"
	"github.com/dmitrymomot/billsync/pkg/subscription"
)

// DB is the subset of *pgxpool.Pool the store needs. pgxmock pools
// satisfy it as well.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
}

// maxCreateAttempts bounds Upsert retries after losing a creation race.
const maxCreateAttempts = 3

var errCreateRaced = errors.New("concurrent insert won")

const columns = `id, user_id, customer_id, status, price_id, quantity, cancel_at_period_end,
	current_period_start, current_period_end, trial_start, trial_end,
	canceled_at, ended_at, created_at, updated_at`

const (
	selectByID     = `SELECT ` + columns + ` FROM subscriptions WHERE id = $1`
	selectForWrite = selectByID + ` FOR UPDATE`
	selectByUser   = `SELECT ` + columns + ` FROM subscriptions WHERE user_id = $1 ORDER BY created_at DESC, id ASC`

	insertRecord = `INSERT INTO subscriptions (` + columns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	ON CONFLICT (id) DO NOTHING`

	updateRecord = `UPDATE subscriptions SET
	user_id = $2, customer_id = $3, status = $4, price_id = $5, quantity = $6,
	cancel_at_period_end = $7, current_period_start = $8, current_period_end = $9,
	trial_start = $10, trial_end = $11, canceled_at = $12, ended_at = $13,
	created_at = $14, updated_at = $15
	WHERE id = $1`
)

// Store is a PostgreSQL subscription.Store.
type Store struct {
	db DB
}

var _ subscription.Store = (*Store)(nil)

// New returns a store over db. Panics if db is nil.
func New(db DB) *Store {
	if db == nil {
		panic("pgstore: DB is required")
	}
	return &Store{db: db}
}

// Healthcheck pings the database.
func (s *Store) Healthcheck(ctx context.Context) error {
	return pg.Healthcheck(s.db)(ctx)
}

// Get implements subscription.Store.
func (s *Store) Get(ctx context.Context, id string) (*subscription.Record, error) {
	rec, err := scanRecord(s.db.QueryRow(ctx, selectByID, id))
	if err != nil {
		return nil, notFound(id, err)
	}
	return rec, nil
}

// FindByUser implements subscription.Store.
func (s *Store) FindByUser(ctx context.Context, userID string) ([]*subscription.Record, error) {
	rows, err := s.db.Query(ctx, selectByUser, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query subscriptions: %w", err)
	}
	defer rows.Close()

	out := make([]*subscription.Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan subscription: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read subscriptions: %w", err)
	}
	return out, nil
}

// Insert implements subscription.Store.
func (s *Store) Insert(ctx context.Context, rec *subscription.Record) (bool, error) {
	tag, err := s.db.Exec(ctx, insertRecord, recordArgs(rec)...)
	if err != nil {
		return false, fmt.Errorf("failed to insert subscription %s: %w", rec.ID, err)
	}
	return tag.RowsAffected() == 1, nil
}

// Update implements subscription.Store.
func (s *Store) Update(ctx context.Context, id string, fn func(*subscription.Record) error) (*subscription.Record, error) {
	var out *subscription.Record
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		rec, err := scanRecord(tx.QueryRow(ctx, selectForWrite, id))
		if err != nil {
			return notFound(id, err)
		}
		if err := fn(rec); err != nil {
			return err
		}
		rec.ID = id
		if _, err := tx.Exec(ctx, updateRecord, recordArgs(rec)...); err != nil {
			return fmt.Errorf("failed to update subscription %s: %w", id, err)
		}
		out = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Upsert implements subscription.Store. When two callers race to create the
// same record the loser retries against the winner's row.
func (s *Store) Upsert(ctx context.Context, id string, create func() *subscription.Record, fn func(*subscription.Record) error) (*subscription.Record, error) {
	for range maxCreateAttempts {
		rec, err := s.upsertOnce(ctx, id, create, fn)
		if errors.Is(err, errCreateRaced) {
			continue
		}
		return rec, err
	}
	return nil, fmt.Errorf("failed to upsert subscription %s: %w", id, errCreateRaced)
}

func (s *Store) upsertOnce(ctx context.Context, id string, create func() *subscription.Record, fn func(*subscription.Record) error) (*subscription.Record, error) {
	var out *subscription.Record
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		rec, err := scanRecord(tx.QueryRow(ctx, selectForWrite, id))
		exists := err == nil
		switch {
		case pg.IsNotFoundError(err):
			if rec = create(); rec == nil {
				rec = &subscription.Record{}
			}
		case err != nil:
			return fmt.Errorf("failed to load subscription %s: %w", id, err)
		}

		if err := fn(rec); err != nil {
			return err
		}
		rec.ID = id

		if exists {
			if _, err := tx.Exec(ctx, updateRecord, recordArgs(rec)...); err != nil {
				return fmt.Errorf("failed to update subscription %s: %w", id, err)
			}
		} else {
			tag, err := tx.Exec(ctx, insertRecord, recordArgs(rec)...)
			if err != nil {
				return fmt.Errorf("failed to insert subscription %s: %w", id, err)
			}
			if tag.RowsAffected() == 0 {
				return errCreateRaced
			}
		}
		out = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// inTx commits when fn succeeds and rolls back otherwise, returning fn's error.
func (s *Store) inTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func notFound(id string, err error) error {
	if pg.IsNotFoundError(err) {
		return fmt.Errorf("%w: %s", subscription.ErrSubscriptionNotFound, id)
	}
	return fmt.Errorf("failed to load subscription %s: %w", id, err)
}

func scanRecord(row pgx.Row) (*subscription.Record, error) {
	var (
		rec         subscription.Record
		status      string
		periodStart *time.Time
		periodEnd   *time.Time
	)
	err := row.Scan(
		&rec.ID, &rec.UserID, &rec.CustomerID, &status, &rec.PriceID, &rec.Quantity, &rec.CancelAtPeriodEnd,
		&periodStart, &periodEnd, &rec.TrialStart, &rec.TrialEnd,
		&rec.CanceledAt, &rec.EndedAt, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.Status = subscription.Status(status)
	rec.CurrentPeriodStart = deref(periodStart)
	rec.CurrentPeriodEnd = deref(periodEnd)
	rec.CreatedAt = rec.CreatedAt.UTC()
	rec.UpdatedAt = rec.UpdatedAt.UTC()
	return &rec, nil
}

func recordArgs(r *subscription.Record) []any {
	return []any{
		r.ID, r.UserID, r.CustomerID, string(r.Status), r.PriceID, r.Quantity, r.CancelAtPeriodEnd,
		nullable(r.CurrentPeriodStart), nullable(r.CurrentPeriodEnd), r.TrialStart, r.TrialEnd,
		r.CanceledAt, r.EndedAt, r.CreatedAt, r.UpdatedAt,
	}
}

func nullable(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func deref(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return t.UTC()
}
