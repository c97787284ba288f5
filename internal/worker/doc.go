// Package worker runs the shout loop. Each iteration pulls at most one
// message, announces that work has started, uppercases the payload while
// keeping the queue lease alive, posts the terminal status, and then
// acknowledges every message except those whose failure is retryable.
package worker
