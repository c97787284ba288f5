// Package pubsub is a thin client for a Pub/Sub-style pull queue: blocking
// pull, idempotent acknowledge, and best-effort lease extension. Durability
// and redelivery are entirely the queue service's responsibility.
package pubsub
