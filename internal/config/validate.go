package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateQueue(); err != nil {
		return err
	}
	if err := c.validateWorker(); err != nil {
		return err
	}
	if err := c.validateShout(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateQueue() error {
	endpoint := strings.TrimSpace(c.Queue.Endpoint)
	if endpoint == "" {
		return errors.New("queue.endpoint must be set")
	}
	parsed, err := url.Parse(endpoint)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("queue.endpoint %q is not a valid URL", endpoint)
	}
	if strings.TrimSpace(c.Queue.Project) == "" {
		return errors.New("queue.project must be set")
	}
	if strings.TrimSpace(c.Queue.Subscription) == "" {
		return errors.New("queue.subscription must be set")
	}
	if c.Queue.PullTimeout <= 0 {
		return errors.New("queue.pull_timeout must be positive")
	}
	if c.Queue.RequestTimeout <= 0 {
		return errors.New("queue.request_timeout must be positive")
	}
	return nil
}

func (c *Config) validateWorker() error {
	if c.Worker.RenewInterval <= 0 {
		return errors.New("worker.renew_interval must be positive")
	}
	if c.Worker.LeaseExtension <= 0 {
		return errors.New("worker.lease_extension must be positive")
	}
	if c.Worker.ErrorRetryInterval < 0 {
		return errors.New("worker.error_retry_interval must not be negative")
	}
	return nil
}

func (c *Config) validateShout() error {
	if c.Shout.CornFailureRate < 0 || c.Shout.CornFailureRate > 1 {
		return errors.New("shout.corn_failure_rate must be between 0 and 1")
	}
	if c.Shout.TimeScale < 0 {
		return errors.New("shout.time_scale must not be negative")
	}
	return nil
}
