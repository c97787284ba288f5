package pubsub

// Attribute names the front end sets on every shout request.
const (
	AttrPostStatusURL   = "postStatusUrl"
	AttrPostStatusToken = "postStatusToken"
	AttrDeadline        = "deadline"
)

// Message is one work item received from the subscription.
//
// Data stays in its base64 transport encoding; decoding happens in the shout
// loop so decode failures classify as processing errors rather than delivery
// errors.
type Message struct {
	// AckID is the opaque lease token for this delivery. Required to
	// acknowledge the message or extend its lease.
	AckID string
	// ID is the queue-assigned message identifier.
	ID string
	// Data is the base64-encoded payload.
	Data string
	// Attributes carries the string metadata set at publish time.
	Attributes map[string]string
}
