package worker

import (
	"context"
	"encoding/base64"
	"errors"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"shoutd/internal/faults"
	"shoutd/internal/pubsub"
	"shoutd/internal/shout"
	"shoutd/internal/status"
)

type fakeQueue struct {
	mu         sync.Mutex
	messages   []pubsub.Message
	pullErr    error
	ackErr     error
	modifyErr  error
	acked      []string
	extensions int
}

func (q *fakeQueue) Pull(ctx context.Context, max int) ([]pubsub.Message, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.pullErr != nil {
		return nil, q.pullErr
	}
	if len(q.messages) == 0 {
		return nil, nil
	}
	m := q.messages[0]
	q.messages = q.messages[1:]
	return []pubsub.Message{m}, nil
}

func (q *fakeQueue) Acknowledge(ctx context.Context, ackIDs ...string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.ackErr != nil {
		return q.ackErr
	}
	q.acked = append(q.acked, ackIDs...)
	return nil
}

func (q *fakeQueue) ModifyAckDeadline(ctx context.Context, ackID string, extension time.Duration) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.modifyErr != nil {
		return q.modifyErr
	}
	q.extensions++
	return nil
}

func (q *fakeQueue) ackedIDs() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string(nil), q.acked...)
}

func (q *fakeQueue) extensionCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.extensions
}

type post struct {
	state  status.State
	result string
}

type fakeReporter struct {
	mu    sync.Mutex
	posts []post
	// failOn causes Report to fail when posting the given state.
	failOn status.State
}

func (r *fakeReporter) Report(ctx context.Context, callbackURL, token string, state status.State, result string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failOn != "" && state == r.failOn {
		return faults.Transient("post status", "callback unreachable", errors.New("connection refused"))
	}
	r.posts = append(r.posts, post{state: state, result: result})
	return nil
}

func (r *fakeReporter) recorded() []post {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]post(nil), r.posts...)
}

type processorFunc func(text string, checkpoint shout.Checkpoint) (string, error)

func (f processorFunc) Process(text string, checkpoint shout.Checkpoint) (string, error) {
	return f(text, checkpoint)
}

// fakeClock is a manually advanced clock shared between the worker and
// the test's processor.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testMessage(t *testing.T, payload string, deadline time.Time) pubsub.Message {
	t.Helper()
	return pubsub.Message{
		AckID: "ack-1",
		ID:    "msg-1",
		Data:  base64.StdEncoding.EncodeToString([]byte(payload)),
		Attributes: map[string]string{
			pubsub.AttrPostStatusURL:   "http://example.com/status",
			pubsub.AttrPostStatusToken: "token-1",
			pubsub.AttrDeadline:        strconv.FormatInt(deadline.Unix(), 10),
		},
	}
}

func newTestWorker(t *testing.T, queue *fakeQueue, reporter *fakeReporter, proc shout.Processor, clock *fakeClock) *Worker {
	t.Helper()
	w, err := New(Config{
		Queue:          queue,
		Reporter:       reporter,
		Processor:      proc,
		RenewInterval:  10 * time.Second,
		LeaseExtension: 15 * time.Second,
		Host:           "test-host",
		Now:            clock.Now,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return w
}

func TestRunOnceNoWork(t *testing.T) {
	clock := newFakeClock()
	queue := &fakeQueue{}
	reporter := &fakeReporter{}
	w := newTestWorker(t, queue, reporter, shout.NewTransformer(), clock)

	outcome := w.RunOnce(context.Background())
	if outcome != OutcomeNoWork {
		t.Fatalf("outcome = %s, want %s", outcome, OutcomeNoWork)
	}
	if got := reporter.recorded(); len(got) != 0 {
		t.Errorf("unexpected status posts: %v", got)
	}
}

func TestRunOnceDelivers(t *testing.T) {
	clock := newFakeClock()
	deadline := clock.Now().Add(time.Minute)
	queue := &fakeQueue{messages: []pubsub.Message{testMessage(t, "hi", deadline)}}
	reporter := &fakeReporter{}
	w := newTestWorker(t, queue, reporter, shout.NewTransformer(), clock)

	outcome := w.RunOnce(context.Background())
	if outcome != OutcomeDelivered {
		t.Fatalf("outcome = %s, want %s", outcome, OutcomeDelivered)
	}

	posts := reporter.recorded()
	if len(posts) != 2 {
		t.Fatalf("got %d status posts, want 2: %v", len(posts), posts)
	}
	if posts[0].state != status.StateShouting {
		t.Errorf("first post state = %s, want %s", posts[0].state, status.StateShouting)
	}
	if posts[1].state != status.StateSuccess || posts[1].result != "HI" {
		t.Errorf("final post = %+v, want success with result HI", posts[1])
	}
	if acked := queue.ackedIDs(); len(acked) != 1 || acked[0] != "ack-1" {
		t.Errorf("acked = %v, want exactly [ack-1]", acked)
	}
}

func TestRunOnceDiscardsBadAttributes(t *testing.T) {
	deadline := strconv.FormatInt(time.Now().Add(time.Minute).Unix(), 10)
	cases := []struct {
		name  string
		attrs map[string]string
	}{
		{"nil attributes", nil},
		{"missing url", map[string]string{
			pubsub.AttrPostStatusToken: "tok",
			pubsub.AttrDeadline:        deadline,
		}},
		{"blank token", map[string]string{
			pubsub.AttrPostStatusURL:   "http://example.com/status",
			pubsub.AttrPostStatusToken: "   ",
			pubsub.AttrDeadline:        deadline,
		}},
		{"missing deadline", map[string]string{
			pubsub.AttrPostStatusURL:   "http://example.com/status",
			pubsub.AttrPostStatusToken: "tok",
		}},
		{"malformed deadline", map[string]string{
			pubsub.AttrPostStatusURL:   "http://example.com/status",
			pubsub.AttrPostStatusToken: "tok",
			pubsub.AttrDeadline:        "next tuesday",
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			clock := newFakeClock()
			queue := &fakeQueue{messages: []pubsub.Message{{
				AckID:      "ack-1",
				ID:         "msg-1",
				Data:       base64.StdEncoding.EncodeToString([]byte("hi")),
				Attributes: tc.attrs,
			}}}
			reporter := &fakeReporter{}
			w := newTestWorker(t, queue, reporter, shout.NewTransformer(), clock)

			outcome := w.RunOnce(context.Background())
			if outcome != OutcomeDiscarded {
				t.Fatalf("outcome = %s, want %s", outcome, OutcomeDiscarded)
			}
			if outcome.Code() != -1 {
				t.Errorf("Code() = %d, want -1", outcome.Code())
			}
			if got := reporter.recorded(); len(got) != 0 {
				t.Errorf("unexpected status posts: %v", got)
			}
			if acked := queue.ackedIDs(); len(acked) != 1 {
				t.Errorf("acked = %v, want the discarded message acknowledged", acked)
			}
		})
	}
}

func TestRunOnceFatalFailure(t *testing.T) {
	clock := newFakeClock()
	deadline := clock.Now().Add(time.Minute)
	queue := &fakeQueue{messages: []pubsub.Message{testMessage(t, "the chicken crossed", deadline)}}
	reporter := &fakeReporter{}
	sim := shout.NewSimulator(shout.SimulatorConfig{TimeScale: 0})
	w := newTestWorker(t, queue, reporter, sim, clock)

	outcome := w.RunOnce(context.Background())
	if outcome != OutcomeFatal {
		t.Fatalf("outcome = %s, want %s", outcome, OutcomeFatal)
	}

	posts := reporter.recorded()
	if len(posts) != 2 {
		t.Fatalf("got %d status posts, want 2: %v", len(posts), posts)
	}
	if posts[1].state != status.StateFatal {
		t.Errorf("final post state = %s, want %s", posts[1].state, status.StateFatal)
	}
	if !strings.Contains(posts[1].result, shout.ChickenMessage) {
		t.Errorf("final result %q does not mention %q", posts[1].result, shout.ChickenMessage)
	}
	if acked := queue.ackedIDs(); len(acked) != 1 {
		t.Errorf("fatal failure must acknowledge, acked = %v", acked)
	}
}

func TestRunOnceExpiredDeadline(t *testing.T) {
	clock := newFakeClock()
	deadline := clock.Now().Add(-time.Minute)
	queue := &fakeQueue{messages: []pubsub.Message{testMessage(t, "hi", deadline)}}
	reporter := &fakeReporter{}
	w := newTestWorker(t, queue, reporter, shout.NewTransformer(), clock)

	outcome := w.RunOnce(context.Background())
	if outcome != OutcomeExpired {
		t.Fatalf("outcome = %s, want %s", outcome, OutcomeExpired)
	}

	posts := reporter.recorded()
	if len(posts) != 2 {
		t.Fatalf("got %d status posts, want 2: %v", len(posts), posts)
	}
	if posts[1].state != status.StateFatal {
		t.Errorf("final post state = %s, want %s", posts[1].state, status.StateFatal)
	}
	if !strings.Contains(posts[1].result, "request timed out") {
		t.Errorf("final result %q does not mention the timeout", posts[1].result)
	}
	if acked := queue.ackedIDs(); len(acked) != 1 {
		t.Errorf("expired message must acknowledge, acked = %v", acked)
	}
}

func TestRunOnceTransientNotAcknowledged(t *testing.T) {
	clock := newFakeClock()
	deadline := clock.Now().Add(time.Minute)
	queue := &fakeQueue{messages: []pubsub.Message{testMessage(t, "hi", deadline)}}
	reporter := &fakeReporter{}
	proc := processorFunc(func(text string, checkpoint shout.Checkpoint) (string, error) {
		return "", faults.Transient("shout", "the machine hiccuped", nil)
	})
	w := newTestWorker(t, queue, reporter, proc, clock)

	outcome := w.RunOnce(context.Background())
	if outcome != OutcomeTransient {
		t.Fatalf("outcome = %s, want %s", outcome, OutcomeTransient)
	}
	if outcome.Code() != -1 {
		t.Errorf("Code() = %d, want -1", outcome.Code())
	}

	posts := reporter.recorded()
	if len(posts) != 2 {
		t.Fatalf("got %d status posts, want 2: %v", len(posts), posts)
	}
	if posts[1].state != status.StateError {
		t.Errorf("final post state = %s, want %s", posts[1].state, status.StateError)
	}
	if acked := queue.ackedIDs(); len(acked) != 0 {
		t.Errorf("transient failure must not acknowledge, acked = %v", acked)
	}
}

func TestRunOnceRenewsLease(t *testing.T) {
	clock := newFakeClock()
	deadline := clock.Now().Add(time.Hour)
	queue := &fakeQueue{messages: []pubsub.Message{testMessage(t, "hi", deadline)}}
	reporter := &fakeReporter{}
	proc := processorFunc(func(text string, checkpoint shout.Checkpoint) (string, error) {
		for i := 0; i < 5; i++ {
			clock.Advance(11 * time.Second)
			if err := checkpoint(); err != nil {
				return "", err
			}
		}
		return strings.ToUpper(text), nil
	})
	w := newTestWorker(t, queue, reporter, proc, clock)

	outcome := w.RunOnce(context.Background())
	if outcome != OutcomeDelivered {
		t.Fatalf("outcome = %s, want %s", outcome, OutcomeDelivered)
	}
	if got := queue.extensionCount(); got != 5 {
		t.Errorf("lease extensions = %d, want 5", got)
	}
}

func TestRunOnceFastWorkSkipsRenewal(t *testing.T) {
	clock := newFakeClock()
	deadline := clock.Now().Add(time.Minute)
	queue := &fakeQueue{messages: []pubsub.Message{testMessage(t, "hi", deadline)}}
	reporter := &fakeReporter{}
	w := newTestWorker(t, queue, reporter, shout.NewTransformer(), clock)

	if outcome := w.RunOnce(context.Background()); outcome != OutcomeDelivered {
		t.Fatalf("outcome = %s, want %s", outcome, OutcomeDelivered)
	}
	if got := queue.extensionCount(); got != 0 {
		t.Errorf("lease extensions = %d, want 0 for fast work", got)
	}
}

func TestRunOnceLeaseRenewalFailureIsTransient(t *testing.T) {
	clock := newFakeClock()
	deadline := clock.Now().Add(time.Hour)
	queue := &fakeQueue{
		messages:  []pubsub.Message{testMessage(t, "hi", deadline)},
		modifyErr: errors.New("subscription gone"),
	}
	reporter := &fakeReporter{}
	proc := processorFunc(func(text string, checkpoint shout.Checkpoint) (string, error) {
		clock.Advance(11 * time.Second)
		if err := checkpoint(); err != nil {
			return "", err
		}
		return strings.ToUpper(text), nil
	})
	w := newTestWorker(t, queue, reporter, proc, clock)

	outcome := w.RunOnce(context.Background())
	if outcome != OutcomeTransient {
		t.Fatalf("outcome = %s, want %s", outcome, OutcomeTransient)
	}
	if acked := queue.ackedIDs(); len(acked) != 0 {
		t.Errorf("renewal failure must not acknowledge, acked = %v", acked)
	}
}

func TestRunOnceCancellationMidProcessing(t *testing.T) {
	clock := newFakeClock()
	deadline := clock.Now().Add(time.Minute)
	queue := &fakeQueue{messages: []pubsub.Message{testMessage(t, "hi", deadline)}}
	reporter := &fakeReporter{}
	ctx, cancel := context.WithCancel(context.Background())
	proc := processorFunc(func(text string, checkpoint shout.Checkpoint) (string, error) {
		cancel()
		if err := checkpoint(); err != nil {
			return "", err
		}
		return strings.ToUpper(text), nil
	})
	w := newTestWorker(t, queue, reporter, proc, clock)

	outcome := w.RunOnce(ctx)
	if outcome != OutcomeCancelled {
		t.Fatalf("outcome = %s, want %s", outcome, OutcomeCancelled)
	}

	posts := reporter.recorded()
	if len(posts) != 1 || posts[0].state != status.StateShouting {
		t.Fatalf("posts = %v, want only the shouting announcement", posts)
	}
	if acked := queue.ackedIDs(); len(acked) != 0 {
		t.Errorf("cancelled attempt must not acknowledge, acked = %v", acked)
	}
}

func TestRunOnceAnnounceFailure(t *testing.T) {
	clock := newFakeClock()
	deadline := clock.Now().Add(time.Minute)
	queue := &fakeQueue{messages: []pubsub.Message{testMessage(t, "hi", deadline)}}
	reporter := &fakeReporter{failOn: status.StateShouting}
	w := newTestWorker(t, queue, reporter, shout.NewTransformer(), clock)

	outcome := w.RunOnce(context.Background())
	if outcome != OutcomeTransient {
		t.Fatalf("outcome = %s, want %s", outcome, OutcomeTransient)
	}
	if got := reporter.recorded(); len(got) != 0 {
		t.Errorf("no further posts expected after announce failure, got %v", got)
	}
	if acked := queue.ackedIDs(); len(acked) != 0 {
		t.Errorf("announce failure must not acknowledge, acked = %v", acked)
	}
}

func TestRunOnceFinalReportFailure(t *testing.T) {
	clock := newFakeClock()
	deadline := clock.Now().Add(time.Minute)
	queue := &fakeQueue{messages: []pubsub.Message{testMessage(t, "hi", deadline)}}
	reporter := &fakeReporter{failOn: status.StateSuccess}
	w := newTestWorker(t, queue, reporter, shout.NewTransformer(), clock)

	outcome := w.RunOnce(context.Background())
	if outcome != OutcomeTransient {
		t.Fatalf("outcome = %s, want %s", outcome, OutcomeTransient)
	}
	if acked := queue.ackedIDs(); len(acked) != 0 {
		t.Errorf("failed final report must not acknowledge, acked = %v", acked)
	}
}

func TestRunOnceAckFailureTurnsTransient(t *testing.T) {
	clock := newFakeClock()
	deadline := clock.Now().Add(time.Minute)
	queue := &fakeQueue{
		messages: []pubsub.Message{testMessage(t, "hi", deadline)},
		ackErr:   errors.New("ack endpoint down"),
	}
	reporter := &fakeReporter{}
	w := newTestWorker(t, queue, reporter, shout.NewTransformer(), clock)

	outcome := w.RunOnce(context.Background())
	if outcome != OutcomeTransient {
		t.Fatalf("outcome = %s, want %s", outcome, OutcomeTransient)
	}
}

func TestRunOncePullFailure(t *testing.T) {
	clock := newFakeClock()
	queue := &fakeQueue{pullErr: errors.New("endpoint unreachable")}
	reporter := &fakeReporter{}
	w := newTestWorker(t, queue, reporter, shout.NewTransformer(), clock)

	outcome := w.RunOnce(context.Background())
	if outcome != OutcomeTransient {
		t.Fatalf("outcome = %s, want %s", outcome, OutcomeTransient)
	}
}

func TestRunOncePullCancelled(t *testing.T) {
	clock := newFakeClock()
	queue := &fakeQueue{pullErr: context.Canceled}
	reporter := &fakeReporter{}
	w := newTestWorker(t, queue, reporter, shout.NewTransformer(), clock)

	outcome := w.RunOnce(context.Background())
	if outcome != OutcomeCancelled {
		t.Fatalf("outcome = %s, want %s", outcome, OutcomeCancelled)
	}
}

func TestRunOnceInvalidBase64IsTransient(t *testing.T) {
	clock := newFakeClock()
	deadline := clock.Now().Add(time.Minute)
	m := testMessage(t, "hi", deadline)
	m.Data = "%%% not base64 %%%"
	queue := &fakeQueue{messages: []pubsub.Message{m}}
	reporter := &fakeReporter{}
	w := newTestWorker(t, queue, reporter, shout.NewTransformer(), clock)

	outcome := w.RunOnce(context.Background())
	if outcome != OutcomeTransient {
		t.Fatalf("outcome = %s, want %s", outcome, OutcomeTransient)
	}

	posts := reporter.recorded()
	if len(posts) != 2 || posts[1].state != status.StateError {
		t.Fatalf("posts = %v, want shouting then error", posts)
	}
	if acked := queue.ackedIDs(); len(acked) != 0 {
		t.Errorf("undecodable payload must not acknowledge, acked = %v", acked)
	}
}

func TestOutcomeCodes(t *testing.T) {
	cases := []struct {
		outcome Outcome
		want    int
	}{
		{OutcomeNoWork, 0},
		{OutcomeDelivered, 1},
		{OutcomeDiscarded, -1},
		{OutcomeExpired, 1},
		{OutcomeFatal, 1},
		{OutcomeCancelled, 1},
		{OutcomeTransient, -1},
	}
	for _, tc := range cases {
		if got := tc.outcome.Code(); got != tc.want {
			t.Errorf("Code(%s) = %d, want %d", tc.outcome, got, tc.want)
		}
	}
}
