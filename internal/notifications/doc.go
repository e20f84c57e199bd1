// Package notifications publishes run outcomes to ntfy.
//
// NewService returns a no-op publisher when no topic is configured, so the
// pipeline can publish unconditionally. Each Event maps to a fixed title,
// tag set and priority; the Payload supplies the message fields.
package notifications
