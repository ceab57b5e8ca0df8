// Package probe implements the readiness prober: once a server reaches
// the running infrastructure state, it is repeatedly probed at the
// application level until it answers or a deadline elapses. The prober
// never consults remote infrastructure status.
package probe

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"
)

// DefaultInterval is the fixed pause between probe passes. There is no
// backoff: a server that is about to boot answers soonest with a short,
// constant retry delay.
const DefaultInterval = 6 * time.Second

// Target is a server that can be probed for reachability.
type Target interface {
	ID() string
	Addr() string
}

// Prober performs a single side-effect-free reachability check.
type Prober interface {
	Probe(ctx context.Context, t Target) bool
}

// ProberFunc adapts a function to the Prober interface.
type ProberFunc func(ctx context.Context, t Target) bool

func (f ProberFunc) Probe(ctx context.Context, t Target) bool { return f(ctx, t) }

// ReadinessTimeoutError reports servers whose infrastructure state was
// fine but which never answered an application-level probe. The resources
// stay registered for operator inspection.
type ReadinessTimeoutError struct {
	Deadline    time.Duration
	Unreachable []string
}

func (e *ReadinessTimeoutError) Error() string {
	return fmt.Sprintf("servers not reachable after %s: %s",
		e.Deadline, strings.Join(e.Unreachable, ", "))
}

// Option adjusts prober behavior.
type Option func(*options)

type options struct {
	interval time.Duration
}

// WithInterval overrides the pause between probe passes.
func WithInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.interval = d
		}
	}
}

// AwaitReachable probes every pending server once per pass until all have
// answered or the deadline elapses. It returns the set of servers that
// became reachable; on deadline expiry the error names the servers that
// never answered. A zero deadline means no time bound.
func AwaitReachable(ctx context.Context, servers []Target, p Prober, deadline time.Duration, opts ...Option) (map[string]bool, error) {
	o := options{interval: DefaultInterval}
	for _, opt := range opts {
		opt(&o)
	}

	pending := make([]Target, len(servers))
	copy(pending, servers)

	reached := make(map[string]bool, len(servers))

	var expired <-chan time.Time
	if deadline > 0 {
		timer := time.NewTimer(deadline)
		defer timer.Stop()
		expired = timer.C
	}

	for {
		next := pending[:0]
		for _, srv := range pending {
			if p.Probe(ctx, srv) {
				reached[srv.ID()] = true
				continue
			}
			next = append(next, srv)
		}
		pending = next

		if len(pending) == 0 {
			return reached, nil
		}

		log.Printf("[Probe] %d of %d servers not yet reachable", len(pending), len(servers))

		select {
		case <-ctx.Done():
			return reached, ctx.Err()
		case <-expired:
			return reached, &ReadinessTimeoutError{Deadline: deadline, Unreachable: targetIDs(pending)}
		case <-time.After(o.interval):
		}
	}
}

func targetIDs(ts []Target) []string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = t.ID()
	}
	return out
}
