package subscription

import (
	"bytes"
	"encoding/json"
	"time"
)

// MetadataUserID is the metadata key that links processor objects to users.
const MetadataUserID = "userId"

// ExpandableID decodes a processor reference that is either a bare id
// string or an expanded object carrying an "id" field.
type ExpandableID string

// UnmarshalJSON implements json.Unmarshaler.
func (e *ExpandableID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*e = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*e = ExpandableID(s)
		return nil
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*e = ExpandableID(obj.ID)
	return nil
}

// String returns the id.
func (e ExpandableID) String() string { return string(e) }

// CheckoutSession is the data.object of checkout.session.completed.
type CheckoutSession struct {
	ID            string            `json:"id"`
	Mode          string            `json:"mode"`
	Customer      ExpandableID      `json:"customer"`
	CustomerEmail string            `json:"customer_email"`
	Subscription  ExpandableID      `json:"subscription"`
	Metadata      map[string]string `json:"metadata"`
}

// UserID returns the user id recorded in metadata, if any.
func (c CheckoutSession) UserID() string { return c.Metadata[MetadataUserID] }

// SubscriptionPayload is the data.object of customer.subscription.* events.
type SubscriptionPayload struct {
	ID                 string            `json:"id"`
	Customer           ExpandableID      `json:"customer"`
	Status             Status            `json:"status"`
	CancelAtPeriodEnd  bool              `json:"cancel_at_period_end"`
	CurrentPeriodStart int64             `json:"current_period_start"`
	CurrentPeriodEnd   int64             `json:"current_period_end"`
	TrialStart         *int64            `json:"trial_start"`
	TrialEnd           *int64            `json:"trial_end"`
	Metadata           map[string]string `json:"metadata"`
	Items              struct {
		Data []SubscriptionItem `json:"data"`
	} `json:"items"`
}

// SubscriptionItem is one line of a subscription.
type SubscriptionItem struct {
	ID    string `json:"id"`
	Price struct {
		ID string `json:"id"`
	} `json:"price"`
	Quantity           int64 `json:"quantity"`
	CurrentPeriodStart int64 `json:"current_period_start"`
	CurrentPeriodEnd   int64 `json:"current_period_end"`
}

// UserID returns the user id recorded in metadata, if any.
func (p SubscriptionPayload) UserID() string { return p.Metadata[MetadataUserID] }

// firstItem returns the first subscription item, or the zero value.
func (p SubscriptionPayload) firstItem() SubscriptionItem {
	if len(p.Items.Data) == 0 {
		return SubscriptionItem{}
	}
	return p.Items.Data[0]
}

// period returns the billing period, falling back to the first item for
// API versions that report it per item.
func (p SubscriptionPayload) period() (start, end time.Time) {
	s, e := p.CurrentPeriodStart, p.CurrentPeriodEnd
	item := p.firstItem()
	if s == 0 {
		s = item.CurrentPeriodStart
	}
	if e == 0 {
		e = item.CurrentPeriodEnd
	}
	return unixTime(s), unixTime(e)
}

func unixTime(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}

func unixTimePtr(sec *int64) *time.Time {
	if sec == nil || *sec == 0 {
		return nil
	}
	t := unixTime(*sec)
	return &t
}
