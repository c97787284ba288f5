package pubsub

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

const userAgent = "shoutd/0.1.0"

// Subscriber is the queue surface the shout loop consumes.
type Subscriber interface {
	// Pull blocks until messages are available, the server answers empty,
	// or ctx is cancelled. An empty response is not an error.
	Pull(ctx context.Context, max int) ([]Message, error)
	// Acknowledge permanently removes messages. Idempotent: acknowledging
	// an already-removed message succeeds.
	Acknowledge(ctx context.Context, ackIDs ...string) error
	// ModifyAckDeadline extends the lease on a message. Best-effort; the
	// caller decides how to treat failures.
	ModifyAckDeadline(ctx context.Context, ackID string, extension time.Duration) error
}

// HTTPDoer abstracts http.Client.Do for testing.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// Client talks to a Pub/Sub-style REST API over HTTP JSON.
type Client struct {
	endpoint     string
	subscription string
	pull         HTTPDoer
	control      HTTPDoer
}

// Options configures a Client.
type Options struct {
	// Endpoint is the service base URL, without a trailing slash.
	Endpoint string
	// Project and Subscription form the subscription resource path.
	Project      string
	Subscription string
	// PullTimeout bounds a single blocking pull at the transport level.
	PullTimeout time.Duration
	// RequestTimeout bounds acknowledge and lease-extension calls.
	RequestTimeout time.Duration
}

// NewClient constructs a queue client for one subscription.
func NewClient(opts Options) *Client {
	pullTimeout := opts.PullTimeout
	if pullTimeout <= 0 {
		pullTimeout = 45 * time.Second
	}
	requestTimeout := opts.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = 10 * time.Second
	}
	return &Client{
		endpoint:     strings.TrimRight(opts.Endpoint, "/"),
		subscription: fmt.Sprintf("projects/%s/subscriptions/%s", opts.Project, opts.Subscription),
		pull:         &http.Client{Timeout: pullTimeout},
		control:      &http.Client{Timeout: requestTimeout},
	}
}

type pullRequest struct {
	ReturnImmediately bool `json:"returnImmediately"`
	MaxMessages       int  `json:"maxMessages"`
}

type pullResponse struct {
	ReceivedMessages []receivedMessage `json:"receivedMessages"`
}

type receivedMessage struct {
	AckID   string      `json:"ackId"`
	Message wireMessage `json:"message"`
}

type wireMessage struct {
	MessageID  string            `json:"messageId"`
	Data       string            `json:"data"`
	Attributes map[string]string `json:"attributes"`
}

type acknowledgeRequest struct {
	AckIDs []string `json:"ackIds"`
}

type modifyAckDeadlineRequest struct {
	AckIDs             []string `json:"ackIds"`
	AckDeadlineSeconds int      `json:"ackDeadlineSeconds"`
}

// Pull requests up to max messages with a blocking server-side wait.
// Transport timeouts are mapped to an empty result so the caller simply
// pulls again, mirroring long-poll semantics.
func (c *Client) Pull(ctx context.Context, max int) ([]Message, error) {
	if max <= 0 {
		max = 1
	}
	body := pullRequest{ReturnImmediately: false, MaxMessages: max}

	var resp pullResponse
	if err := c.post(ctx, c.pull, ":pull", body, &resp); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if isTimeout(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("pull: %w", err)
	}

	messages := make([]Message, 0, len(resp.ReceivedMessages))
	for _, rm := range resp.ReceivedMessages {
		messages = append(messages, Message{
			AckID:      rm.AckID,
			ID:         rm.Message.MessageID,
			Data:       rm.Message.Data,
			Attributes: rm.Message.Attributes,
		})
	}
	return messages, nil
}

// Acknowledge removes messages from the subscription.
func (c *Client) Acknowledge(ctx context.Context, ackIDs ...string) error {
	if len(ackIDs) == 0 {
		return nil
	}
	err := c.post(ctx, c.control, ":acknowledge", acknowledgeRequest{AckIDs: ackIDs}, nil)
	if err != nil {
		// Already-acknowledged leases report not-found; treat as success.
		var httpErr *StatusError
		if errors.As(err, &httpErr) && (httpErr.Code == http.StatusNotFound || httpErr.Code == http.StatusConflict) {
			return nil
		}
		return fmt.Errorf("acknowledge: %w", err)
	}
	return nil
}

// ModifyAckDeadline extends the lease on one message.
func (c *Client) ModifyAckDeadline(ctx context.Context, ackID string, extension time.Duration) error {
	body := modifyAckDeadlineRequest{
		AckIDs:             []string{ackID},
		AckDeadlineSeconds: int(extension / time.Second),
	}
	if err := c.post(ctx, c.control, ":modifyAckDeadline", body, nil); err != nil {
		return fmt.Errorf("modify ack deadline: %w", err)
	}
	return nil
}

// StatusError reports a non-2xx response from the queue service.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("queue service returned %d", e.Code)
	}
	return fmt.Sprintf("queue service returned %d: %s", e.Code, e.Body)
}

func (c *Client) post(ctx context.Context, doer HTTPDoer, verb string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/%s%s", c.endpoint, c.subscription, verb)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "application/json")

	resp, err := doer.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
