package notify

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"

	"github.com/dmitrymomot/billsync/pkg/logger"
)

// Alert is an operator notification about an event that cannot heal through
// processor redelivery and needs a person to look at it.
type Alert struct {
	Subject string
	EventID string
	Type    string
	Err     error
	// Fields carries extra context, rendered in sorted key order.
	Fields map[string]string
}

// Body renders the alert as plain text.
func (a Alert) Body() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n", a.Subject)
	if a.EventID != "" {
		fmt.Fprintf(&b, "event id:   %s\n", a.EventID)
	}
	if a.Type != "" {
		fmt.Fprintf(&b, "event type: %s\n", a.Type)
	}
	if a.Err != nil {
		fmt.Fprintf(&b, "error:      %s\n", a.Err)
	}
	for _, k := range slices.Sorted(maps.Keys(a.Fields)) {
		fmt.Fprintf(&b, "%s: %s\n", k, a.Fields[k])
	}
	return b.String()
}

// Notifier delivers alerts.
type Notifier interface {
	Notify(ctx context.Context, a Alert) error
}

// Log writes alerts to a logger at ERROR level. It is the default notifier.
type Log struct {
	logger *slog.Logger
}

// NewLog returns a notifier writing to l, or to slog.Default when l is nil.
func NewLog(l *slog.Logger) *Log {
	if l == nil {
		l = slog.Default()
	}
	return &Log{logger: l.With(logger.Component("notify"))}
}

// Notify implements Notifier.
func (n *Log) Notify(ctx context.Context, a Alert) error {
	attrs := []any{
		logger.EventID(a.EventID),
		logger.EventType(a.Type),
		logger.Error(a.Err),
	}
	for _, k := range slices.Sorted(maps.Keys(a.Fields)) {
		attrs = append(attrs, slog.String(k, a.Fields[k]))
	}
	n.logger.ErrorContext(ctx, a.Subject, attrs...)
	return nil
}

// Multi fans an alert out to every notifier and joins their errors.
type Multi []Notifier

// Notify implements Notifier.
func (m Multi) Notify(ctx context.Context, a Alert) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, a); err != nil {
			errs = append(errs, err)
		}
	}
	return joinErrors(errs)
}
