// Package logging configures slog output for the shout worker: a console
// handler for interactive use, JSON for service logs, and shared attribute
// helpers so components agree on field names.
package logging
