// Package logging builds the slog loggers used across ratchet and provides
// small attribute helpers so call sites stay terse and consistent.
package logging
