// Package notifications pushes operator alerts to ntfy.
//
// Alerts cover the events someone should hear about without watching logs:
// an original stranded in the vault after a failed rollback, the end of a
// bulk run, and unexpected command failures. NewService returns a no-op
// Service when no topic is configured, so callers never branch on it.
package notifications
