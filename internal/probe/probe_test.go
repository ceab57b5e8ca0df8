package probe

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubTarget struct {
	id   string
	addr string
}

func (s stubTarget) ID() string   { return s.id }
func (s stubTarget) Addr() string { return s.addr }

// afterAttempts answers true once a target has been probed n times.
func afterAttempts(n map[string]int) Prober {
	seen := make(map[string]int)
	return ProberFunc(func(_ context.Context, t Target) bool {
		seen[t.ID()]++
		return seen[t.ID()] >= n[t.ID()]
	})
}

func TestAwaitReachableAllAnswer(t *testing.T) {
	t.Parallel()
	targets := []Target{
		stubTarget{id: "i-001", addr: "198.51.100.1"},
		stubTarget{id: "i-002", addr: "198.51.100.2"},
	}
	p := afterAttempts(map[string]int{"i-001": 1, "i-002": 3})

	reached, err := AwaitReachable(context.Background(), targets, p, time.Minute,
		WithInterval(time.Millisecond))

	require.NoError(t, err)
	assert.True(t, reached["i-001"])
	assert.True(t, reached["i-002"])
}

func TestAwaitReachableDeadlineNamesStragglers(t *testing.T) {
	t.Parallel()
	targets := []Target{
		stubTarget{id: "i-ok", addr: "198.51.100.1"},
		stubTarget{id: "i-never", addr: "198.51.100.2"},
	}
	p := ProberFunc(func(_ context.Context, t Target) bool {
		return t.ID() == "i-ok"
	})

	reached, err := AwaitReachable(context.Background(), targets, p, 20*time.Millisecond,
		WithInterval(5*time.Millisecond))

	require.Error(t, err)
	var timeoutErr *ReadinessTimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Equal(t, []string{"i-never"}, timeoutErr.Unreachable)

	// The servers that did answer are still reported.
	assert.True(t, reached["i-ok"])
	assert.False(t, reached["i-never"])
}

func TestAwaitReachableEmptyInput(t *testing.T) {
	t.Parallel()
	reached, err := AwaitReachable(context.Background(), nil,
		ProberFunc(func(context.Context, Target) bool { return false }), time.Minute)
	require.NoError(t, err)
	assert.Empty(t, reached)
}

func TestSSHProberSkipsTargetsWithoutAddress(t *testing.T) {
	t.Parallel()
	p := NewSSHProber("ubuntu", nil)
	assert.False(t, p.Probe(context.Background(), stubTarget{id: "i-001"}))
}
