package config

import (
	"os"
	"strconv"
	"time"
)

// Timeouts holds all configurable deadline and interval values. Each can
// be overridden via environment variable.
type Timeouts struct {
	ServerRunning     time.Duration // deadline for a new server to reach running
	Reachable         time.Duration // deadline for a running server to answer probes
	Lifecycle         time.Duration // deadline for bulk start/stop/terminate convergence
	Attach            time.Duration // deadline for volume attach/detach convergence
	PollInterval      time.Duration // pause between convergence poll passes
	ProbeInterval     time.Duration // pause between readiness probe passes
	RetryMaxAttempts  int           // attempts for rate-limited gateway calls
	RetryInitialDelay time.Duration // first backoff delay for rate-limited calls
}

// LoadTimeouts loads timeout configuration from environment variables,
// falling back to defaults when unset or unparsable.
//
// Environment variables:
//   - STAGEPOOL_TIMEOUT_SERVER_RUNNING (default: 10m)
//   - STAGEPOOL_TIMEOUT_REACHABLE (default: 10m)
//   - STAGEPOOL_TIMEOUT_LIFECYCLE (default: 5m)
//   - STAGEPOOL_TIMEOUT_ATTACH (default: 2m)
//   - STAGEPOOL_POLL_INTERVAL (default: 5s)
//   - STAGEPOOL_PROBE_INTERVAL (default: 6s)
//   - STAGEPOOL_RETRY_MAX_ATTEMPTS (default: 6)
//   - STAGEPOOL_RETRY_INITIAL_DELAY (default: 1s)
func LoadTimeouts() *Timeouts {
	return &Timeouts{
		ServerRunning:     parseDuration("STAGEPOOL_TIMEOUT_SERVER_RUNNING", 10*time.Minute),
		Reachable:         parseDuration("STAGEPOOL_TIMEOUT_REACHABLE", 10*time.Minute),
		Lifecycle:         parseDuration("STAGEPOOL_TIMEOUT_LIFECYCLE", 5*time.Minute),
		Attach:            parseDuration("STAGEPOOL_TIMEOUT_ATTACH", 2*time.Minute),
		PollInterval:      parseDuration("STAGEPOOL_POLL_INTERVAL", 5*time.Second),
		ProbeInterval:     parseDuration("STAGEPOOL_PROBE_INTERVAL", 6*time.Second),
		RetryMaxAttempts:  parseInt("STAGEPOOL_RETRY_MAX_ATTEMPTS", 6),
		RetryInitialDelay: parseDuration("STAGEPOOL_RETRY_INITIAL_DELAY", 1*time.Second),
	}
}

// parseDuration parses a duration from an environment variable, returning
// the default when unset or invalid.
func parseDuration(envVar string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return defaultVal
	}
	return d
}

// parseInt parses an integer from an environment variable, returning the
// default when unset or invalid.
func parseInt(envVar string, defaultVal int) int {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return i
}
