// Package redisstore implements subscription.Store on Redis.
//
// Each record is a JSON string under <prefix>:sub:<id>. A sorted set
// <prefix>:user:<userID> indexes the user's records by creation time.
// Writes run inside WATCH/MULTI and are retried when another client
// modifies the record first.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	rediskit "github.com/dmitrymomot/billsync/pkg/redis"
	"github.com/dmitrymomot/billsync/pkg/subscription"
)

// DefaultPrefix namespaces keys when no prefix is configured.
const DefaultPrefix = "billsync"

// DefaultMaxRetries bounds optimistic transaction retries.
const DefaultMaxRetries = 10

var errExists = errors.New("record exists")

// getter is implemented by both the client and a watched transaction.
type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

// Config holds store settings.
type Config struct {
	Prefix string `env:"REDIS_STORE_PREFIX" envDefault:"billsync"`
}

// Store is a Redis subscription.Store.
type Store struct {
	client     redis.UniversalClient
	prefix     string
	maxRetries int
}

var _ subscription.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		if p := strings.Trim(prefix, ":"); p != "" {
			s.prefix = p
		}
	}
}

// WithMaxRetries sets how often a conflicting transaction is retried.
func WithMaxRetries(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxRetries = n
		}
	}
}

// New returns a store over client. Panics if client is nil.
func New(client redis.UniversalClient, opts ...Option) *Store {
	if client == nil {
		panic("redisstore: client is required")
	}
	s := &Store{client: client, prefix: DefaultPrefix, maxRetries: DefaultMaxRetries}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) recordKey(id string) string   { return s.prefix + ":sub:" + id }
func (s *Store) userKey(userID string) string { return s.prefix + ":user:" + userID }

// Healthcheck pings Redis.
func (s *Store) Healthcheck(ctx context.Context) error {
	return rediskit.Healthcheck(s.client)(ctx)
}

// Get implements subscription.Store.
func (s *Store) Get(ctx context.Context, id string) (*subscription.Record, error) {
	rec, err := s.load(ctx, s.client, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("%w: %s", subscription.ErrSubscriptionNotFound, id)
	}
	return rec, nil
}

// FindByUser implements subscription.Store.
func (s *Store) FindByUser(ctx context.Context, userID string) ([]*subscription.Record, error) {
	ids, err := s.client.ZRevRange(ctx, s.userKey(userID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions of user %s: %w", userID, err)
	}
	out := make([]*subscription.Record, 0, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.recordKey(id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load subscriptions of user %s: %w", userID, err)
	}
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		rec, err := decode(raw)
		if err != nil {
			return nil, err
		}
		if rec.UserID == userID {
			out = append(out, rec)
		}
	}
	subscription.SortNewestFirst(out)
	return out, nil
}

// Insert implements subscription.Store.
func (s *Store) Insert(ctx context.Context, rec *subscription.Record) (bool, error) {
	err := s.transact(ctx, rec.ID, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, s.recordKey(rec.ID)).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return errExists
		}
		return s.write(ctx, tx, nil, rec)
	})
	switch {
	case errors.Is(err, errExists):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("failed to insert subscription %s: %w", rec.ID, err)
	}
	return true, nil
}

// Update implements subscription.Store.
func (s *Store) Update(ctx context.Context, id string, fn func(*subscription.Record) error) (*subscription.Record, error) {
	var out *subscription.Record
	err := s.transact(ctx, id, func(tx *redis.Tx) error {
		prev, err := s.load(ctx, tx, id)
		if err != nil {
			return err
		}
		if prev == nil {
			return fmt.Errorf("%w: %s", subscription.ErrSubscriptionNotFound, id)
		}
		rec := prev.Clone()
		if err := fn(rec); err != nil {
			return err
		}
		rec.ID = id
		out = rec
		return s.write(ctx, tx, prev, rec)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Upsert implements subscription.Store.
func (s *Store) Upsert(ctx context.Context, id string, create func() *subscription.Record, fn func(*subscription.Record) error) (*subscription.Record, error) {
	var out *subscription.Record
	err := s.transact(ctx, id, func(tx *redis.Tx) error {
		prev, err := s.load(ctx, tx, id)
		if err != nil {
			return err
		}
		rec := prev.Clone()
		if rec == nil {
			if rec = create(); rec == nil {
				rec = &subscription.Record{}
			}
		}
		if err := fn(rec); err != nil {
			return err
		}
		rec.ID = id
		out = rec
		return s.write(ctx, tx, prev, rec)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// transact runs fn under WATCH on the record key, retrying on conflicts.
func (s *Store) transact(ctx context.Context, id string, fn func(*redis.Tx) error) error {
	key := s.recordKey(id)
	for range s.maxRetries {
		err := s.client.Watch(ctx, fn, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("subscription %s: %w", id, redis.TxFailedErr)
}

func (s *Store) write(ctx context.Context, tx *redis.Tx, prev, rec *subscription.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode subscription %s: %w", rec.ID, err)
	}
	_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.recordKey(rec.ID), data, 0)
		if prev != nil && prev.UserID != "" && prev.UserID != rec.UserID {
			pipe.ZRem(ctx, s.userKey(prev.UserID), rec.ID)
		}
		if rec.UserID != "" {
			pipe.ZAdd(ctx, s.userKey(rec.UserID), redis.Z{
				Score:  float64(rec.CreatedAt.UnixMilli()),
				Member: rec.ID,
			})
		}
		return nil
	})
	return err
}

func (s *Store) load(ctx context.Context, c getter, id string) (*subscription.Record, error) {
	raw, err := c.Get(ctx, s.recordKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load subscription %s: %w", id, err)
	}
	return decode(raw)
}

func decode(raw string) (*subscription.Record, error) {
	var rec subscription.Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, fmt.Errorf("failed to decode subscription: %w", err)
	}
	return &rec, nil
}
