package archive

import (
	"context"
	"path"
	"strings"
	"time"

	"github.com/dmitrymomot/billsync/pkg/webhook"
)

// Archiver stores verified event payloads verbatim.
type Archiver interface {
	Archive(ctx context.Context, evt *webhook.VerifiedEvent) (key string, err error)
}

// Nop discards events. It is the default when no bucket is configured.
type Nop struct{}

// Archive implements Archiver.
func (Nop) Archive(context.Context, *webhook.VerifiedEvent) (string, error) { return "", nil }

// Key returns the object key for evt: <prefix>/<yyyy>/<mm>/<dd>/<eventID>.json,
// dated by the event's creation time, or by fallback when the event carries none.
func Key(prefix string, evt *webhook.VerifiedEvent, fallback time.Time) string {
	at := fallback.UTC()
	if evt.Created > 0 {
		at = evt.CreatedAt()
	}
	return path.Join(
		strings.Trim(prefix, "/"),
		at.Format("2006"), at.Format("01"), at.Format("02"),
		evt.ID+".json",
	)
}
