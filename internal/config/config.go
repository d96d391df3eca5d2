// Package config loads the agent configuration from YAML with environment
// overrides for the identity fields.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/authguard/internal/alert"
	"github.com/ppiankov/authguard/internal/attest"
	"github.com/ppiankov/authguard/internal/identity"
)

// Environment variables that override file values.
const (
	EnvClientID = "AUTHGUARD_CLIENT_ID"
	EnvUserID   = "AUTHGUARD_USER_ID"
	EnvEndpoint = "AUTHGUARD_ENDPOINT"
)

// Defaults.
const (
	DefaultEndpoint        = "http://localhost:5001"
	DefaultBatchInterval   = 4 * time.Second
	DefaultFlightCeiling   = 2 * time.Second
	DefaultPointerThrottle = 50 * time.Millisecond
	DefaultRequestTimeout  = 5 * time.Second
)

// LookupEnv is os.LookupEnv; tests replace it.
var LookupEnv = os.LookupEnv

// Recovery tunes the local recovery attempt limit.
type Recovery struct {
	Attempts int           `yaml:"attempts"`
	Window   time.Duration `yaml:"window"`
}

// Config is the agent configuration file.
type Config struct {
	ClientID        string                `yaml:"client_id"`
	UserID          string                `yaml:"user_id"`
	Endpoint        string                `yaml:"endpoint"`
	BatchInterval   time.Duration         `yaml:"batch_interval"`
	FlightCeiling   time.Duration         `yaml:"flight_ceiling"`
	PointerThrottle time.Duration         `yaml:"pointer_throttle"`
	RequestTimeout  time.Duration         `yaml:"request_timeout"`
	SendFingerprint bool                  `yaml:"send_fingerprint"`
	UserAgent       string                `yaml:"user_agent"`
	AuditLog        string                `yaml:"audit_log"`
	MetricsAddr     string                `yaml:"metrics_addr"`
	StatusAddr      string                `yaml:"status_addr"`
	Webhooks        []alert.WebhookConfig `yaml:"webhooks"`
	Recovery        Recovery              `yaml:"recovery"`
	// Environment replaces the host-derived attestation descriptor.
	Environment *attest.Descriptor `yaml:"environment"`
}

// Default returns a config with every optional field at its default.
func Default() *Config {
	return &Config{
		Endpoint:        DefaultEndpoint,
		BatchInterval:   DefaultBatchInterval,
		FlightCeiling:   DefaultFlightCeiling,
		PointerThrottle: DefaultPointerThrottle,
		RequestTimeout:  DefaultRequestTimeout,
		SendFingerprint: true,
		UserAgent:       "authguard",
	}
}

// DefaultPath returns ~/.authguard/agent.yaml, or "" when the home
// directory is unknown.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".authguard", "agent.yaml")
}

// Load reads the config at path. Empty path uses DefaultPath. A missing
// file yields defaults; invalid YAML is an error. Environment overrides are
// applied last. Identity is not validated here.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = DefaultPath()
	}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse agent config: %w", err)
			}
		case os.IsNotExist(err):
		default:
			return nil, fmt.Errorf("failed to read agent config: %w", err)
		}
	}
	cfg.applyEnv()
	cfg.fillZero()
	cfg.AuditLog = ExpandHome(cfg.AuditLog)
	return cfg, nil
}

// ExpandHome replaces a leading "~/" with the user's home directory.
func ExpandHome(p string) string {
	if !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, p[2:])
}

// Identity returns the session identity fields.
func (c *Config) Identity() identity.SessionIdentity {
	return identity.SessionIdentity{ClientID: c.ClientID, UserID: c.UserID}
}

func (c *Config) applyEnv() {
	if v, ok := LookupEnv(EnvClientID); ok && v != "" {
		c.ClientID = v
	}
	if v, ok := LookupEnv(EnvUserID); ok && v != "" {
		c.UserID = v
	}
	if v, ok := LookupEnv(EnvEndpoint); ok && v != "" {
		c.Endpoint = v
	}
}

// fillZero restores defaults for fields the file set to zero.
func (c *Config) fillZero() {
	d := Default()
	if c.Endpoint == "" {
		c.Endpoint = d.Endpoint
	}
	if c.BatchInterval <= 0 {
		c.BatchInterval = d.BatchInterval
	}
	if c.FlightCeiling <= 0 {
		c.FlightCeiling = d.FlightCeiling
	}
	if c.PointerThrottle < 0 {
		c.PointerThrottle = d.PointerThrottle
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = d.RequestTimeout
	}
}

// DefaultConfigYAML returns a commented config for `authguard init`.
func DefaultConfigYAML() string {
	return `# authguard agent configuration
# Generated by: authguard init
#
# client_id and user_id are required. They can also be set with
# AUTHGUARD_CLIENT_ID and AUTHGUARD_USER_ID; AUTHGUARD_ENDPOINT overrides
# endpoint.
client_id: ""
user_id: ""

# Decision service base URL.
endpoint: http://localhost:5001

# Telemetry is flushed to the service on this period.
batch_interval: 4s

# Keystroke gaps at or above the ceiling are not recorded as flight times.
flight_ceiling: 2s

# Pointer samples closer together than this are dropped.
pointer_throttle: 50ms

request_timeout: 5s

# Attach the device descriptor to the first payload of each session.
send_fingerprint: true

# Hash-chained log of enforcement transitions. Empty disables it.
audit_log: ~/.authguard/audit.jsonl

# Prometheus /metrics and gRPC health listeners. Empty disables them.
metrics_addr: ""
status_addr: ""

# Local limit on recovery attempts.
recovery:
  attempts: 5
  window: 1m

# Webhooks notified of verify requests (default) or other events.
# webhooks:
#   - url: https://hooks.example.com/authguard
#     format: generic          # generic | slack | pagerduty
#     events: [verify_requested, locked]
`
}
