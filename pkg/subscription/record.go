package subscription

import (
	"cmp"
	"slices"
	"time"
)

// Status mirrors the processor's subscription status values.
type Status string

const (
	StatusTrialing          Status = "trialing"
	StatusActive            Status = "active"
	StatusPastDue           Status = "past_due"
	StatusUnpaid            Status = "unpaid"
	StatusCanceled          Status = "canceled"
	StatusIncomplete        Status = "incomplete"
	StatusIncompleteExpired Status = "incomplete_expired"
	StatusPaused            Status = "paused"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusTrialing, StatusActive, StatusPastDue, StatusUnpaid,
		StatusCanceled, StatusIncomplete, StatusIncompleteExpired, StatusPaused:
		return true
	}
	return false
}

// IsCurrent reports whether a record in this status grants access.
func (s Status) IsCurrent() bool {
	return s == StatusTrialing || s == StatusActive
}

// Record is the local projection of one processor subscription.
// ID is the processor subscription id and the idempotency key.
type Record struct {
	ID                 string     `json:"id"`
	UserID             string     `json:"userId"`
	CustomerID         string     `json:"customerId"`
	Status             Status     `json:"status"`
	PriceID            string     `json:"priceId"`
	Quantity           int64      `json:"quantity"`
	CancelAtPeriodEnd  bool       `json:"cancelAtPeriodEnd"`
	CurrentPeriodStart time.Time  `json:"currentPeriodStart"`
	CurrentPeriodEnd   time.Time  `json:"currentPeriodEnd"`
	TrialStart         *time.Time `json:"trialStart,omitempty"`
	TrialEnd           *time.Time `json:"trialEnd,omitempty"`
	CanceledAt         *time.Time `json:"canceledAt,omitempty"`
	EndedAt            *time.Time `json:"endedAt,omitempty"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`
}

// Clone returns a deep copy so callers can mutate without touching store state.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	c.TrialStart = cloneTime(r.TrialStart)
	c.TrialEnd = cloneTime(r.TrialEnd)
	c.CanceledAt = cloneTime(r.CanceledAt)
	c.EndedAt = cloneTime(r.EndedAt)
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// Current picks the record that represents the user's subscription right now:
// the most recently created one whose status is trialing or active.
// Returns nil when there is none.
func Current(records []*Record) *Record {
	var current *Record
	for _, r := range records {
		if r == nil || !r.Status.IsCurrent() {
			continue
		}
		if current == nil || r.CreatedAt.After(current.CreatedAt) {
			current = r
		}
	}
	return current
}

// SortNewestFirst orders records by CreatedAt descending, then by ID for stability.
func SortNewestFirst(records []*Record) {
	slices.SortStableFunc(records, func(a, b *Record) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}

// portalCustomer resolves the customer to open the billing portal for.
// The current record wins; otherwise the newest record with a customer id,
// so a user whose subscription ended can still reach invoices.
func portalCustomer(records []*Record) string {
	if c := Current(records); c != nil && c.CustomerID != "" {
		return c.CustomerID
	}
	sorted := slices.Clone(records)
	SortNewestFirst(sorted)
	for _, r := range sorted {
		if r != nil && r.CustomerID != "" {
			return r.CustomerID
		}
	}
	return ""
}
