// Package probe sends sample submissions to the workflow trigger or to a
// running forwarder and diagnoses the responses.
package probe

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// Targets a probe can address.
const (
	// TargetUpstream posts a canonical payload straight to the trigger URL.
	TargetUpstream = "upstream"
	// TargetForwarder posts a raw form to a forwarder submit path.
	TargetForwarder = "forwarder"
)

// Defaults.
const (
	DefaultCount   = 1
	DefaultWorkers = 4
	DefaultTimeout = 30 * time.Second
	DefaultSource  = "debug-test"
)

// Error constants.
var (
	ErrInvalidConfig = errors.New("invalid probe config")
)

// Config holds configuration for a probe run.
type Config struct {
	URL     string        // Trigger URL or forwarder submit URL
	Target  string        // TargetUpstream or TargetForwarder
	Count   int           // Number of submissions to send
	Workers int           // Number of concurrent senders
	Timeout time.Duration // Per-request timeout
	Source  string        // Source stamped on canonical payloads
	Verbose bool          // Print every response, not just the summary
}

// Validate fills defaults and checks the configuration.
func (c *Config) Validate() error {
	if c.Target == "" {
		c.Target = TargetUpstream
	}
	if c.Count <= 0 {
		c.Count = DefaultCount
	}
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.Workers > c.Count {
		c.Workers = c.Count
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Source == "" {
		c.Source = DefaultSource
	}

	switch c.Target {
	case TargetUpstream, TargetForwarder:
	default:
		return fmt.Errorf("%w: unknown target %q", ErrInvalidConfig, c.Target)
	}
	u, err := url.Parse(c.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: url must be an absolute http(s) URL", ErrInvalidConfig)
	}
	return nil
}
