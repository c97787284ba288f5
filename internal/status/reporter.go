// Package status posts work-item progress and results to the callback URL
// supplied with each shout request.
package status

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"shoutd/internal/faults"
)

const userAgent = "shoutd/0.1.0"

// State is the status value the front end renders for the end user.
type State string

const (
	// StateShouting announces that processing has started.
	StateShouting State = "shouting"
	// StateSuccess carries the transformed text in the result field.
	StateSuccess State = "success"
	// StateFatal marks a permanently failed request; result holds the message.
	StateFatal State = "fatal"
	// StateError marks a failed attempt the queue may redeliver.
	StateError State = "error"
)

// Reporter is the status surface the shout loop consumes.
type Reporter interface {
	Report(ctx context.Context, callbackURL, token string, state State, result string) error
}

// HTTPDoer abstracts http.Client.Do for testing.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// HTTPReporter posts form-encoded status updates.
type HTTPReporter struct {
	client HTTPDoer
	host   string
}

// NewReporter builds a reporter with the worker's hostname captured once.
func NewReporter(timeout time.Duration) *HTTPReporter {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	host, err := os.Hostname()
	if err != nil || strings.TrimSpace(host) == "" {
		host = "unknown"
	}
	return &HTTPReporter{
		client: &http.Client{Timeout: timeout},
		host:   host,
	}
}

// NewReporterWithClient is the test constructor.
func NewReporterWithClient(client HTTPDoer, host string) *HTTPReporter {
	return &HTTPReporter{client: client, host: host}
}

// Report posts {status, token, result, host} to callbackURL. A non-2xx
// response is fatal for the current item: the worker cannot assume the
// caller will ever learn the outcome, so it stops retrying and lets the
// failure propagate for fatal handling.
func (r *HTTPReporter) Report(ctx context.Context, callbackURL, token string, state State, result string) error {
	form := url.Values{}
	form.Set("status", string(state))
	form.Set("token", token)
	if result != "" {
		form.Set("result", result)
	}
	form.Set("host", r.host)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, callbackURL, strings.NewReader(form.Encode()))
	if err != nil {
		return faults.Transient("report status", "build request", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := r.client.Do(req)
	if err != nil {
		return faults.Transient("report status", fmt.Sprintf("post %s", string(state)), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return faults.Wrap(faults.ErrFatal, "report status",
			fmt.Sprintf("callback returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body))), nil)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
