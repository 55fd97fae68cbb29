// Package notify alerts an operator about billing events that need manual
// attention, such as a completed checkout that cannot be linked to a user.
// Log writes alerts to slog; Postmark emails them; Multi does both.
package notify
