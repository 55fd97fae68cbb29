// Package archive keeps a copy of every verified webhook payload in S3 so
// events can be audited and replayed. Objects are laid out by day:
//
//	<prefix>/2026/03/14/evt_1OaZ.json
//
// Archive failures are meant to be logged by the caller, not to fail the
// delivery. Nop is used when no bucket is configured.
package archive
