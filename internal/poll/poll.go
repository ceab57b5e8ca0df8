// Package poll implements the convergence poller: a generic state-machine
// driver that repeatedly queries resource status until every resource
// reaches an acceptable terminal state or a deadline elapses.
package poll

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"
)

// DefaultInterval is the pause between polling passes.
const DefaultInterval = 5 * time.Second

// Pollable is a resource whose remote status can be queried.
type Pollable interface {
	ID() string
	CurrentStatus(ctx context.Context) (string, error)
}

// TimeoutError reports that the deadline elapsed before every resource
// converged. It deliberately carries no state map: a caller must not trust
// any displayed state once a timeout occurred.
type TimeoutError struct {
	Deadline time.Duration
	Pending  []string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("deadline %s elapsed with %d resources not yet terminal: %s",
		e.Deadline, len(e.Pending), strings.Join(e.Pending, ", "))
}

// Option adjusts poller behavior.
type Option func(*options)

type options struct {
	interval time.Duration
}

// WithInterval overrides the pause between polling passes.
func WithInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.interval = d
		}
	}
}

// AwaitTerminal polls every resource once per pass until all have reported
// a status in terminalStates, then returns the final state of each by
// identifier. A zero deadline means no time bound. On deadline expiry it
// returns a TimeoutError and no state map. Resource kinds supply their own
// terminal set by convention; the poller does not interpret states.
func AwaitTerminal(ctx context.Context, resources []Pollable, terminalStates []string, deadline time.Duration, opts ...Option) (map[string]string, error) {
	o := options{interval: DefaultInterval}
	for _, opt := range opts {
		opt(&o)
	}

	terminal := make(map[string]bool, len(terminalStates))
	for _, s := range terminalStates {
		terminal[s] = true
	}

	// Copy the input so a caller mutating its slice cannot disturb an
	// in-flight poll.
	pending := make([]Pollable, len(resources))
	copy(pending, resources)

	states := make(map[string]string, len(resources))

	var expired <-chan time.Time
	if deadline > 0 {
		timer := time.NewTimer(deadline)
		defer timer.Stop()
		expired = timer.C
	}

	for {
		next := pending[:0]
		for _, res := range pending {
			status, err := res.CurrentStatus(ctx)
			if err != nil {
				return nil, fmt.Errorf("polling %s: %w", res.ID(), err)
			}
			states[res.ID()] = status
			if !terminal[status] {
				next = append(next, res)
			}
		}
		pending = next

		if len(pending) == 0 {
			return states, nil
		}

		log.Printf("[Poll] %d of %d resources not yet terminal", len(pending), len(resources))

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-expired:
			return nil, &TimeoutError{Deadline: deadline, Pending: ids(pending)}
		case <-time.After(o.interval):
		}
	}
}

func ids(rs []Pollable) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.ID()
	}
	return out
}
