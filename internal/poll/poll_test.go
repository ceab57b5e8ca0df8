package poll

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedResource reports each status in sequence, then repeats the last
// one forever.
type scriptedResource struct {
	id       string
	statuses []string
	calls    int
}

func (s *scriptedResource) ID() string { return s.id }

func (s *scriptedResource) CurrentStatus(_ context.Context) (string, error) {
	idx := s.calls
	if idx >= len(s.statuses) {
		idx = len(s.statuses) - 1
	}
	s.calls++
	return s.statuses[idx], nil
}

type failingResource struct{ id string }

func (f *failingResource) ID() string { return f.id }

func (f *failingResource) CurrentStatus(_ context.Context) (string, error) {
	return "", errors.New("boom")
}

func TestAwaitTerminalImmediateConvergence(t *testing.T) {
	t.Parallel()
	r := &scriptedResource{id: "i-001", statuses: []string{"running"}}

	states, err := AwaitTerminal(context.Background(), []Pollable{r}, []string{"running"}, time.Minute,
		WithInterval(time.Millisecond))

	require.NoError(t, err)
	assert.Equal(t, map[string]string{"i-001": "running"}, states)
	assert.Equal(t, 1, r.calls)
}

func TestAwaitTerminalWaitsForSlowest(t *testing.T) {
	t.Parallel()
	// Three resources converging after 1, 2, and 3 poll passes.
	fast := &scriptedResource{id: "i-fast", statuses: []string{"running"}}
	mid := &scriptedResource{id: "i-mid", statuses: []string{"pending", "running"}}
	slow := &scriptedResource{id: "i-slow", statuses: []string{"pending", "pending", "running"}}

	states, err := AwaitTerminal(context.Background(), []Pollable{fast, mid, slow},
		[]string{"running"}, time.Minute, WithInterval(time.Millisecond))

	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"i-fast": "running",
		"i-mid":  "running",
		"i-slow": "running",
	}, states)

	// Converged resources leave the pending set; only the slowest is
	// polled on every pass.
	assert.Equal(t, 1, fast.calls)
	assert.Equal(t, 2, mid.calls)
	assert.Equal(t, 3, slow.calls)
}

func TestAwaitTerminalMixedTerminalStates(t *testing.T) {
	t.Parallel()
	ok := &scriptedResource{id: "i-ok", statuses: []string{"pending", "running"}}
	dead := &scriptedResource{id: "i-dead", statuses: []string{"pending", "terminated"}}

	states, err := AwaitTerminal(context.Background(), []Pollable{ok, dead},
		[]string{"running", "terminated"}, time.Minute, WithInterval(time.Millisecond))

	require.NoError(t, err)
	assert.Equal(t, "running", states["i-ok"])
	assert.Equal(t, "terminated", states["i-dead"])
}

func TestAwaitTerminalTimeoutReturnsNoStateMap(t *testing.T) {
	t.Parallel()
	stuck := &scriptedResource{id: "i-stuck", statuses: []string{"pending"}}

	states, err := AwaitTerminal(context.Background(), []Pollable{stuck},
		[]string{"running"}, 20*time.Millisecond, WithInterval(5*time.Millisecond))

	require.Error(t, err)
	assert.Nil(t, states)

	var timeoutErr *TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Equal(t, []string{"i-stuck"}, timeoutErr.Pending)
}

func TestAwaitTerminalZeroDeadlineHasNoTimeBound(t *testing.T) {
	t.Parallel()
	// Converges on the fifth pass; with deadline 0 nothing cuts it short.
	r := &scriptedResource{id: "i-001", statuses: []string{"pending", "pending", "pending", "pending", "running"}}

	states, err := AwaitTerminal(context.Background(), []Pollable{r},
		[]string{"running"}, 0, WithInterval(time.Millisecond))

	require.NoError(t, err)
	assert.Equal(t, "running", states["i-001"])
	assert.Equal(t, 5, r.calls)
}

func TestAwaitTerminalPropagatesStatusError(t *testing.T) {
	t.Parallel()
	_, err := AwaitTerminal(context.Background(), []Pollable{&failingResource{id: "i-bad"}},
		[]string{"running"}, time.Minute, WithInterval(time.Millisecond))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "i-bad")
}

func TestAwaitTerminalRespectsContextCancellation(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stuck := &scriptedResource{id: "i-stuck", statuses: []string{"pending"}}
	_, err := AwaitTerminal(ctx, []Pollable{stuck}, []string{"running"}, time.Minute,
		WithInterval(time.Millisecond))

	require.ErrorIs(t, err, context.Canceled)
}

func TestAwaitTerminalEmptyInput(t *testing.T) {
	t.Parallel()
	states, err := AwaitTerminal(context.Background(), nil, []string{"running"}, time.Minute)
	require.NoError(t, err)
	assert.Empty(t, states)
}
