package subscription_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/billsync/pkg/subscription"
)

func TestStatus(t *testing.T) {
	t.Parallel()
	tests := []struct {
		status  subscription.Status
		valid   bool
		current bool
	}{
		{subscription.StatusTrialing, true, true},
		{subscription.StatusActive, true, true},
		{subscription.StatusPastDue, true, false},
		{subscription.StatusUnpaid, true, false},
		{subscription.StatusCanceled, true, false},
		{subscription.StatusIncomplete, true, false},
		{subscription.StatusIncompleteExpired, true, false},
		{subscription.StatusPaused, true, false},
		{"bogus", false, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.valid, tt.status.Valid())
			assert.Equal(t, tt.current, tt.status.IsCurrent())
		})
	}
}

func TestCurrent(t *testing.T) {
	t.Parallel()
	at := func(h int) time.Time { return fixedNow.Add(time.Duration(h) * time.Hour) }

	assert.Nil(t, subscription.Current(nil))
	assert.Nil(t, subscription.Current([]*subscription.Record{
		{ID: "a", Status: subscription.StatusCanceled, CreatedAt: at(5)},
		nil,
	}))

	got := subscription.Current([]*subscription.Record{
		{ID: "old", Status: subscription.StatusActive, CreatedAt: at(1)},
		{ID: "newest-canceled", Status: subscription.StatusCanceled, CreatedAt: at(9)},
		{ID: "trial", Status: subscription.StatusTrialing, CreatedAt: at(3)},
		{ID: "past-due", Status: subscription.StatusPastDue, CreatedAt: at(4)},
	})
	if assert.NotNil(t, got) {
		assert.Equal(t, "trial", got.ID)
	}
}

func TestSortNewestFirst(t *testing.T) {
	t.Parallel()
	recs := []*subscription.Record{
		{ID: "b", CreatedAt: fixedNow},
		{ID: "c", CreatedAt: fixedNow.Add(time.Hour)},
		{ID: "a", CreatedAt: fixedNow},
	}
	subscription.SortNewestFirst(recs)
	assert.Equal(t, "c", recs[0].ID)
	assert.Equal(t, "a", recs[1].ID)
	assert.Equal(t, "b", recs[2].ID)
}

func TestRecordClone(t *testing.T) {
	t.Parallel()
	assert.Nil(t, (*subscription.Record)(nil).Clone())

	trial := fixedNow
	orig := &subscription.Record{ID: "sub_1", TrialEnd: &trial}
	c := orig.Clone()
	*c.TrialEnd = fixedNow.Add(time.Hour)
	assert.Equal(t, fixedNow, *orig.TrialEnd)
}
