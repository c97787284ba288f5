package worker

// Outcome is the terminal classification of one loop iteration. Exactly one
// outcome is produced per iteration; it determines both the status posted
// and whether the message was acknowledged.
type Outcome string

const (
	// OutcomeNoWork means the pull returned no message.
	OutcomeNoWork Outcome = "no_work"
	// OutcomeDelivered means the shout succeeded and was acknowledged.
	OutcomeDelivered Outcome = "delivered"
	// OutcomeDiscarded means required attributes were missing or malformed;
	// the message was acknowledged without processing and never reported.
	OutcomeDiscarded Outcome = "discarded_bad_attributes"
	// OutcomeExpired means the item's absolute deadline passed; reported as
	// fatal and acknowledged, since redelivery would only repeat the failure.
	OutcomeExpired Outcome = "expired"
	// OutcomeCancelled means the loop is shutting down; nothing was reported
	// or acknowledged and the queue will redeliver the message.
	OutcomeCancelled Outcome = "cancelled"
	// OutcomeTransient covers every retryable failure: the message stays
	// unacknowledged and the queue's lease expiry drives the retry.
	OutcomeTransient Outcome = "transient_error"
	// OutcomeFatal means the processor judged the input unrecoverable;
	// reported as fatal and acknowledged.
	OutcomeFatal Outcome = "fatal_error"
)

// Code collapses an outcome to the numeric result the hosting layer sees:
// 0 no work, 1 item terminally handled, -1 an error occurred.
func (o Outcome) Code() int {
	switch o {
	case OutcomeNoWork:
		return 0
	case OutcomeDelivered, OutcomeExpired, OutcomeFatal, OutcomeCancelled:
		return 1
	default:
		return -1
	}
}
