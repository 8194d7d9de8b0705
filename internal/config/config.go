// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Load layers defaults, an optional YAML file and EPC_* environment variables.
// - Validation failures wrap ErrInvalidConfig.
package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Supported values for enumerated settings.
const (
	AuditBackendSQL      = "sql"
	AuditBackendDynamoDB = "dynamodb"
	AuditBackendMemory   = "memory"

	DefaultResponseJSON = "json"
	DefaultResponseText = "text"

	ReferenceModeMillis = "millis"
	ReferenceModeULID   = "ulid"
)

// StatusRule maps an inclusive range of upstream statuses to a client action.
type StatusRule struct {
	From   int    `koanf:"from"`
	To     int    `koanf:"to"`
	Action string `koanf:"action"`
	Note   string `koanf:"note"`
}

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// Source is stamped on every canonical submission.
	Source string `koanf:"source"`

	// UpstreamURL is the workflow trigger endpoint. It embeds signature
	// query parameters and must come from the environment, never from code.
	UpstreamURL string `koanf:"upstream_url"`

	// UpstreamTimeoutMS bounds the single outbound call.
	UpstreamTimeoutMS int `koanf:"upstream_timeout_ms"`

	// SubmitPaths is the allow-list of POST routes that accept submissions.
	SubmitPaths []string `koanf:"submit_paths"`

	// CORS settings.
	CORSAllowOrigins []string `koanf:"cors_allow_origins"`
	CORSAllowMethods string   `koanf:"cors_allow_methods"`
	CORSAllowHeaders string   `koanf:"cors_allow_headers"`

	// StaticDir is served for unmatched GET requests when set.
	StaticDir string `koanf:"static_dir"`

	// DefaultResponse selects the body for unmatched requests: json or text.
	DefaultResponse string `koanf:"default_response"`

	// ReferenceMode selects the reference number generator: millis or ulid.
	ReferenceMode string `koanf:"reference_mode"`

	// StatusRules is the status classification table, first match wins.
	StatusRules []StatusRule `koanf:"status_rules"`

	// UnexpectedStatusAction applies to statuses no rule matches.
	UnexpectedStatusAction string `koanf:"unexpected_status_action"`

	// Audit journal settings.
	AuditBackend string `koanf:"audit_backend"`
	AuditDSN     string `koanf:"audit_dsn"`
	AuditTable   string `koanf:"audit_table"`

	// MetricsEnabled toggles Prometheus recording.
	MetricsEnabled bool `koanf:"metrics_enabled"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:          "info",
		LogFormat:         "text",
		Addr:              ":8080",
		Source:            "epc.saberrenewable.energy",
		UpstreamTimeoutMS: 30_000,
		SubmitPaths: []string{
			"/",
			"/api/submit",
			"/submit-application",
			"/api/submit-application",
			"/submit-epc-application",
		},
		CORSAllowOrigins: []string{"*"},
		CORSAllowMethods: "POST, OPTIONS, GET",
		CORSAllowHeaders: "Content-Type",
		DefaultResponse:  DefaultResponseJSON,
		ReferenceMode:    ReferenceModeMillis,
		StatusRules: []StatusRule{
			{From: 200, To: 299, Action: "relay_json"},
			{From: 401, To: 401, Action: "acknowledge"},
			{From: 403, To: 403, Action: "acknowledge"},
			{From: 500, To: 500, Action: "acknowledge", Note: "Pending manual processing"},
		},
		UnexpectedStatusAction: "relay",
		AuditBackend:           AuditBackendSQL,
		AuditDSN:               "epc-audit.db",
		AuditTable:             "epc_submission_audit",
		MetricsEnabled:         true,
	}
}

var validActions = map[string]bool{
	"acknowledge": true,
	"relay":       true,
	"relay_json":  true,
}

// Validate checks the settings the pipeline relies on.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case strings.TrimSpace(c.UpstreamURL) == "":
		return fmt.Errorf("%w: upstream_url must not be empty", ErrInvalidConfig)
	case c.UpstreamTimeoutMS <= 0:
		return fmt.Errorf("%w: upstream_timeout_ms must be positive", ErrInvalidConfig)
	case len(c.SubmitPaths) == 0:
		return fmt.Errorf("%w: submit_paths must not be empty", ErrInvalidConfig)
	case len(c.CORSAllowOrigins) == 0:
		return fmt.Errorf("%w: cors_allow_origins must not be empty", ErrInvalidConfig)
	}

	u, err := url.Parse(c.UpstreamURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: upstream_url must be an absolute http(s) URL", ErrInvalidConfig)
	}

	for _, p := range c.SubmitPaths {
		if !strings.HasPrefix(p, "/") {
			return fmt.Errorf("%w: submit path %q must start with /", ErrInvalidConfig, p)
		}
	}

	for i, r := range c.StatusRules {
		if r.From < 100 || r.To > 599 || r.From > r.To {
			return fmt.Errorf("%w: status_rules[%d] has invalid range %d-%d", ErrInvalidConfig, i, r.From, r.To)
		}
		if !validActions[r.Action] {
			return fmt.Errorf("%w: status_rules[%d] has unknown action %q", ErrInvalidConfig, i, r.Action)
		}
	}
	if !validActions[c.UnexpectedStatusAction] {
		return fmt.Errorf("%w: unknown unexpected_status_action %q", ErrInvalidConfig, c.UnexpectedStatusAction)
	}

	switch c.DefaultResponse {
	case DefaultResponseJSON, DefaultResponseText:
	default:
		return fmt.Errorf("%w: unknown default_response %q", ErrInvalidConfig, c.DefaultResponse)
	}
	switch c.ReferenceMode {
	case ReferenceModeMillis, ReferenceModeULID:
	default:
		return fmt.Errorf("%w: unknown reference_mode %q", ErrInvalidConfig, c.ReferenceMode)
	}
	switch c.AuditBackend {
	case AuditBackendSQL:
		if c.AuditDSN == "" {
			return fmt.Errorf("%w: audit_dsn is required for the sql backend", ErrInvalidConfig)
		}
	case AuditBackendDynamoDB:
		if c.AuditTable == "" {
			return fmt.Errorf("%w: audit_table is required for the dynamodb backend", ErrInvalidConfig)
		}
	case AuditBackendMemory:
	default:
		return fmt.Errorf("%w: unknown audit_backend %q", ErrInvalidConfig, c.AuditBackend)
	}
	return nil
}
