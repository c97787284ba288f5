package worker

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"shoutd/internal/faults"
	"shoutd/internal/journal"
	"shoutd/internal/logging"
	"shoutd/internal/pubsub"
	"shoutd/internal/shout"
	"shoutd/internal/status"
)

// Config assembles a Worker's collaborators and timing.
type Config struct {
	Queue     pubsub.Subscriber
	Reporter  status.Reporter
	Processor shout.Processor
	// Journal is optional; when set, every pulled message records an entry.
	Journal *journal.Store
	Logger  *slog.Logger
	// RenewInterval is the rolling window between lease renewals while
	// processing is in flight.
	RenewInterval time.Duration
	// LeaseExtension is the extension requested at each renewal.
	LeaseExtension time.Duration
	// ErrorRetryInterval is the pause after a failed iteration before the
	// loop pulls again.
	ErrorRetryInterval time.Duration
	// Host identifies this worker in journal entries.
	Host string
	// Now is the clock; defaults to time.Now. Injectable for tests.
	Now func() time.Time
}

// Worker runs the shout loop: pull one message, validate, announce,
// process under lease renewal, classify, report, acknowledge.
//
// One Worker processes at most one message at a time. Cross-instance
// exclusivity for a given message comes entirely from the queue's lease.
type Worker struct {
	queue      pubsub.Subscriber
	reporter   status.Reporter
	processor  shout.Processor
	journal    *journal.Store
	logger     *slog.Logger
	renew      time.Duration
	extension  time.Duration
	errorRetry time.Duration
	host       string
	now        func() time.Time
}

// New validates cfg and constructs a Worker.
func New(cfg Config) (*Worker, error) {
	if cfg.Queue == nil || cfg.Reporter == nil || cfg.Processor == nil {
		return nil, errors.New("worker requires queue, reporter, and processor")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	renew := cfg.RenewInterval
	if renew <= 0 {
		renew = 10 * time.Second
	}
	extension := cfg.LeaseExtension
	if extension <= 0 {
		extension = 15 * time.Second
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Worker{
		queue:      cfg.Queue,
		reporter:   cfg.Reporter,
		processor:  cfg.Processor,
		journal:    cfg.Journal,
		logger:     logging.WithComponent(logger, "worker"),
		renew:      renew,
		extension:  extension,
		errorRetry: cfg.ErrorRetryInterval,
		host:       cfg.Host,
		now:        now,
	}, nil
}

// Run iterates the shout loop until ctx is cancelled. Failed iterations
// pause for the configured retry interval so a broken queue endpoint does
// not spin the loop.
func (w *Worker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		outcome := w.RunOnce(ctx)
		if ctx.Err() != nil {
			return
		}
		if outcome.Code() < 0 && w.errorRetry > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(w.errorRetry):
			}
		}
	}
}

// RunOnce executes a single loop iteration. It is the outer boundary:
// every failure is logged here and none crashes the loop. Status is never
// re-posted from this boundary, because the failed call may itself have
// been the status post.
func (w *Worker) RunOnce(ctx context.Context) Outcome {
	started := w.now()
	attemptID := uuid.NewString()
	logger := w.logger.With(logging.String(logging.FieldAttemptID, attemptID))

	att := w.shoutOne(ctx, logger)

	if att.err != nil {
		logger.Error("shout attempt failed",
			logging.String(logging.FieldOutcome, string(att.outcome)),
			logging.Error(att.err),
		)
	} else if att.messageID != "" {
		logger.Info("shout attempt finished",
			logging.String(logging.FieldMessageID, att.messageID),
			logging.String(logging.FieldOutcome, string(att.outcome)),
			logging.Duration("attempt_duration", w.now().Sub(started)),
		)
	}

	if w.journal != nil && att.messageID != "" {
		entry := journal.Entry{
			MessageID:    att.messageID,
			AttemptID:    attemptID,
			Outcome:      string(att.outcome),
			State:        string(att.state),
			Result:       att.result,
			ErrorMessage: att.errorMessage(),
			Host:         w.host,
			StartedAt:    started,
			FinishedAt:   w.now(),
		}
		// Journal writes must survive shutdown of the loop context.
		if err := w.journal.Record(context.WithoutCancel(ctx), entry); err != nil {
			logger.Warn("journal write failed", logging.Error(err))
		}
	}

	return att.outcome
}

// attempt collects everything one iteration produced.
type attempt struct {
	outcome   Outcome
	messageID string
	state     status.State
	result    string
	failure   error
	err       error
}

func (a attempt) errorMessage() string {
	if a.failure != nil {
		return faults.Message(a.failure)
	}
	if a.err != nil {
		return a.err.Error()
	}
	return ""
}

// workItem holds the validated attributes of a pulled message.
type workItem struct {
	callbackURL string
	token       string
	deadline    time.Time
}

func (w *Worker) shoutOne(ctx context.Context, logger *slog.Logger) attempt {
	messages, err := w.queue.Pull(ctx, 1)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return attempt{outcome: OutcomeCancelled}
		}
		return attempt{outcome: OutcomeTransient, err: fmt.Errorf("pull: %w", err)}
	}
	if len(messages) == 0 {
		return attempt{outcome: OutcomeNoWork}
	}

	m := messages[0]
	logger = logger.With(logging.String(logging.FieldMessageID, m.ID))
	att := attempt{messageID: m.ID}

	item, verr := validateMessage(m)
	if verr != nil {
		// No valid callback URL to report to; discard permanently.
		logger.Warn("discarding message with bad attributes", logging.Error(verr))
		att.outcome = OutcomeDiscarded
		if err := w.queue.Acknowledge(ctx, m.AckID); err != nil {
			att.err = fmt.Errorf("acknowledge discarded message: %w", err)
		}
		return att
	}

	if err := w.reporter.Report(ctx, item.callbackURL, item.token, status.StateShouting, ""); err != nil {
		att.outcome = OutcomeTransient
		att.err = fmt.Errorf("announce: %w", err)
		return att
	}

	result, perr := w.process(ctx, m, item)
	switch {
	case perr == nil:
		att.outcome = OutcomeDelivered
		att.state = status.StateSuccess
		att.result = result
	case errors.Is(perr, context.Canceled):
		// Orderly shutdown: whatever state resulted is left for the next
		// delivery. No report, no acknowledge.
		logger.Info("attempt cancelled, leaving message for redelivery")
		att.outcome = OutcomeCancelled
		return att
	case errors.Is(perr, faults.ErrExpired):
		att.outcome = OutcomeExpired
		att.state = status.StateFatal
		att.failure = perr
	case errors.Is(perr, faults.ErrFatal):
		att.outcome = OutcomeFatal
		att.state = status.StateFatal
		att.failure = perr
	default:
		att.outcome = OutcomeTransient
		att.state = status.StateError
		att.failure = perr
	}

	reported := att.result
	if att.failure != nil {
		reported = faults.Message(att.failure)
	}
	if err := w.reporter.Report(ctx, item.callbackURL, item.token, att.state, reported); err != nil {
		att.outcome = OutcomeTransient
		att.err = fmt.Errorf("report %s: %w", att.state, err)
		return att
	}

	// Acknowledge if and only if this message will never be retried:
	// success, expiry, and domain-fatal failures. Transient failures stay
	// leased until the queue redelivers them.
	if att.outcome != OutcomeTransient {
		if err := w.queue.Acknowledge(ctx, m.AckID); err != nil {
			att.outcome = OutcomeTransient
			att.err = fmt.Errorf("acknowledge: %w", err)
		}
	}
	return att
}

// process decodes the payload and runs the processor under a checkpoint
// that watches three clocks: loop cancellation, the item's absolute
// deadline, and the rolling lease-renewal interval.
func (w *Worker) process(ctx context.Context, m pubsub.Message, item workItem) (string, error) {
	payload, err := base64.StdEncoding.DecodeString(m.Data)
	if err != nil {
		return "", faults.Transient("decode payload", "invalid base64 data", err)
	}

	nextRenewal := w.now().Add(w.renew)
	checkpoint := func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		now := w.now()
		if now.After(item.deadline) {
			return faults.Expired("shout")
		}
		if !now.Before(nextRenewal) {
			if err := w.queue.ModifyAckDeadline(ctx, m.AckID, w.extension); err != nil {
				return faults.Transient("extend lease", "modify ack deadline", err)
			}
			nextRenewal = now.Add(w.renew)
		}
		return nil
	}

	return w.processor.Process(string(payload), checkpoint)
}

func validateMessage(m pubsub.Message) (workItem, error) {
	callbackURL := strings.TrimSpace(m.Attributes[pubsub.AttrPostStatusURL])
	if callbackURL == "" {
		return workItem{}, fmt.Errorf("missing attribute %s", pubsub.AttrPostStatusURL)
	}
	token := strings.TrimSpace(m.Attributes[pubsub.AttrPostStatusToken])
	if token == "" {
		return workItem{}, fmt.Errorf("missing attribute %s", pubsub.AttrPostStatusToken)
	}
	raw := strings.TrimSpace(m.Attributes[pubsub.AttrDeadline])
	if raw == "" {
		return workItem{}, fmt.Errorf("missing attribute %s", pubsub.AttrDeadline)
	}
	seconds, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return workItem{}, fmt.Errorf("attribute %s is not a unix timestamp: %w", pubsub.AttrDeadline, err)
	}
	return workItem{
		callbackURL: callbackURL,
		token:       token,
		deadline:    time.Unix(seconds, 0),
	}, nil
}
