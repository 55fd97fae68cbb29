package webhook

import (
	"encoding/json"
	"time"
)

// Event is the processor's event envelope. Only the fields the
// reconciliation pipeline reads are decoded; Data.Object stays raw so
// each handler decodes its own typed payload.
type Event struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	APIVersion string    `json:"api_version,omitempty"`
	Created    int64     `json:"created"`
	Livemode   bool      `json:"livemode"`
	Data       EventData `json:"data"`
}

// EventData wraps the object the event is about.
type EventData struct {
	Object json.RawMessage `json:"object"`
}

// CreatedAt returns the processor-side creation time of the event.
func (e Event) CreatedAt() time.Time {
	return time.Unix(e.Created, 0).UTC()
}

// VerifiedEvent is produced only by a successful verification.
// RawBody is the exact byte sequence the signature was computed over.
type VerifiedEvent struct {
	Event
	RawBody   []byte
	SignedAt  time.Time
	Signature string
}

// ObjectID extracts the "id" field of data.object without decoding the
// rest of the payload. Returns an empty string when absent.
func (e *VerifiedEvent) ObjectID() string {
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(e.Data.Object, &obj); err != nil {
		return ""
	}
	return obj.ID
}
