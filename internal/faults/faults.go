// Package faults defines the error taxonomy the shout loop uses to decide
// whether a work item is acknowledged or left for queue redelivery.
package faults

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrFatal marks failures that will never succeed on retry. The item is
	// reported as "fatal" and acknowledged.
	ErrFatal = errors.New("fatal failure")
	// ErrExpired marks items whose absolute deadline has passed. Reported as
	// "fatal" with a timeout message and acknowledged.
	ErrExpired = errors.New("deadline expired")
	// ErrTransient marks everything that may succeed on a later delivery.
	// The item is reported as "error" and left unacknowledged.
	ErrTransient = errors.New("transient failure")
)

// Wrap tags err with the given marker while preserving the operation context.
// The marker should be one of the exported sentinels above; nil defaults to
// ErrTransient.
func Wrap(marker error, operation, message string, err error) error {
	detail := buildDetail(operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Fatal builds a fatal error with no underlying cause.
func Fatal(operation, message string) error {
	return Wrap(ErrFatal, operation, message, nil)
}

// Transient builds a transient error wrapping cause.
func Transient(operation, message string, cause error) error {
	return Wrap(ErrTransient, operation, message, cause)
}

// Expired builds an expiry error for the given operation.
func Expired(operation string) error {
	return Wrap(ErrExpired, operation, "request timed out", nil)
}

func buildDetail(operation, message string) string {
	parts := make([]string, 0, 2)
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "worker failure"
	}
	return strings.Join(parts, ": ")
}

// Message strips the sentinel prefix from err for user-facing status posts.
func Message(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	for _, sentinel := range []error{ErrFatal, ErrExpired, ErrTransient} {
		prefix := sentinel.Error() + ": "
		if strings.HasPrefix(msg, prefix) {
			return strings.TrimPrefix(msg, prefix)
		}
	}
	return msg
}
