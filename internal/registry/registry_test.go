package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubResource struct {
	id   string
	zone string
}

func (s stubResource) ID() string   { return s.id }
func (s stubResource) Zone() string { return s.zone }

type stubAttached struct {
	stubResource
	attachmentZone string
}

func (s stubAttached) AttachmentZone() (string, bool) {
	return s.attachmentZone, s.attachmentZone != ""
}

func TestRegisterAndLookup(t *testing.T) {
	t.Parallel()
	reg := New()

	r := stubResource{id: "i-001", zone: "us-east-1a"}
	require.NoError(t, reg.Register(r))

	got, ok := reg.FindByID("i-001")
	require.True(t, ok)
	assert.Equal(t, r, got)

	inZone := reg.FindByZone("us-east-1a")
	require.Len(t, inZone, 1)
	assert.Equal(t, r, inZone[0])
}

func TestRegisterIsIdempotentOnID(t *testing.T) {
	t.Parallel()
	reg := New()

	require.NoError(t, reg.Register(stubResource{id: "i-001", zone: "us-east-1a"}))
	require.NoError(t, reg.Register(stubResource{id: "i-001", zone: "us-east-1a"}))

	assert.Equal(t, 1, reg.Len())
	assert.Len(t, reg.FindByZone("us-east-1a"), 1)
}

func TestReregisterMovesZoneIndexEntry(t *testing.T) {
	t.Parallel()
	reg := New()

	require.NoError(t, reg.Register(stubResource{id: "i-001", zone: "us-east-1a"}))
	require.NoError(t, reg.Register(stubResource{id: "i-001", zone: "us-east-1b"}))

	assert.Empty(t, reg.FindByZone("us-east-1a"))
	assert.Len(t, reg.FindByZone("us-east-1b"), 1)
	assert.Equal(t, 1, reg.Len())
}

func TestUnregisterEvictsBothIndices(t *testing.T) {
	t.Parallel()
	reg := New()

	require.NoError(t, reg.Register(stubResource{id: "i-001", zone: "us-east-1a"}))
	reg.Unregister("i-001")

	_, ok := reg.FindByID("i-001")
	assert.False(t, ok)
	assert.Empty(t, reg.FindByZone("us-east-1a"))
	assert.Equal(t, 0, reg.Len())
}

func TestUnregisterUnknownIsNoOp(t *testing.T) {
	t.Parallel()
	reg := New()
	reg.Unregister("i-missing")
	assert.Equal(t, 0, reg.Len())
}

func TestRegisterRejectsEmptyID(t *testing.T) {
	t.Parallel()
	reg := New()
	assert.Error(t, reg.Register(stubResource{zone: "us-east-1a"}))
}

func TestRegisterRejectsCrossZoneAttachment(t *testing.T) {
	t.Parallel()
	reg := New()

	vol := stubAttached{
		stubResource:   stubResource{id: "vol-001", zone: "us-east-1b"},
		attachmentZone: "us-east-1a",
	}
	err := reg.Register(vol)
	require.Error(t, err)
	assert.Equal(t, 0, reg.Len())

	// Matching zones register fine.
	vol.zone = "us-east-1a"
	require.NoError(t, reg.Register(vol))
}

func TestConsistencyAcrossIndices(t *testing.T) {
	t.Parallel()
	reg := New()

	resources := []stubResource{
		{id: "i-001", zone: "us-east-1a"},
		{id: "i-002", zone: "us-east-1a"},
		{id: "vol-001", zone: "us-east-1b"},
	}
	for _, r := range resources {
		require.NoError(t, reg.Register(r))
	}

	for _, r := range resources {
		got, ok := reg.FindByID(r.id)
		require.True(t, ok)
		assert.Equal(t, r, got)
		assert.Contains(t, reg.FindByZone(r.zone), Resource(r))
	}

	assert.Equal(t, []string{"us-east-1a", "us-east-1b"}, reg.Zones())
	assert.Len(t, reg.All(), 3)
}

func TestAllReturnsSnapshot(t *testing.T) {
	t.Parallel()
	reg := New()
	require.NoError(t, reg.Register(stubResource{id: "i-001", zone: "us-east-1a"}))

	snapshot := reg.All()
	reg.Unregister("i-001")

	// The caller's snapshot is unaffected by later mutation.
	require.Len(t, snapshot, 1)
	assert.Equal(t, "i-001", snapshot[0].ID())
}
