// Package logging constructs the slog loggers used across the coordinator
// and provides the attribute helpers and field names shared by every
// component.
package logging
