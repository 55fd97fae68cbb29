package logger

import "log/slog"

// Attribute keys shared by every component.
const (
	KeyError          = "error"
	KeyComponent      = "component"
	KeyEventID        = "event_id"
	KeyEventType      = "event_type"
	KeySubscriptionID = "subscription_id"
	KeyCustomerID     = "customer_id"
	KeyUserID         = "user_id"
	KeyOutcome        = "outcome"
)

// Error returns an empty Attr for a nil err, so it can be passed unconditionally.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any(KeyError, err)
}

// Component names the emitting component.
func Component(name string) slog.Attr {
	return slog.String(KeyComponent, name)
}

// EventID is the processor event id.
func EventID(id string) slog.Attr {
	return slog.String(KeyEventID, id)
}

// EventType is the processor event type.
func EventType(eventType string) slog.Attr {
	return slog.String(KeyEventType, eventType)
}

// Outcome records what processing did.
func Outcome(outcome string) slog.Attr {
	return slog.String(KeyOutcome, outcome)
}

// The id attributes below are empty when id is empty: events often lack one.

func SubscriptionID(id string) slog.Attr { return optional(KeySubscriptionID, id) }

func CustomerID(id string) slog.Attr { return optional(KeyCustomerID, id) }

func UserID(id string) slog.Attr { return optional(KeyUserID, id) }

func optional(key, value string) slog.Attr {
	if value == "" {
		return slog.Attr{}
	}
	return slog.String(key, value)
}
