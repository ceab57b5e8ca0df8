package tags

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuilderPresetsOwnership(t *testing.T) {
	t.Parallel()
	built := NewBuilder("staging").Build()
	assert.Equal(t, "staging", built[KeyPool])
	assert.Equal(t, ManagedBy, built[KeyManagedBy])
}

func TestBuilderSkipsEmptyValues(t *testing.T) {
	t.Parallel()
	built := NewBuilder("staging").WithUser("").WithName("").Build()
	assert.NotContains(t, built, KeyUser)
	assert.NotContains(t, built, KeyName)
}

func TestBuilderFullSet(t *testing.T) {
	t.Parallel()
	built := NewBuilder("staging").
		WithUser("alice").
		WithName("scratch").
		WithRole(RoleVolume).
		Merge(map[string]string{"team": "data"}).
		Build()

	assert.Equal(t, map[string]string{
		KeyPool:      "staging",
		KeyManagedBy: ManagedBy,
		KeyUser:      "alice",
		KeyName:      "scratch",
		KeyRole:      RoleVolume,
		"team":       "data",
	}, built)
}

func TestBuildReturnsCopy(t *testing.T) {
	t.Parallel()
	b := NewBuilder("staging")
	first := b.Build()
	first[KeyPool] = "mutated"
	assert.Equal(t, "staging", b.Build()[KeyPool])
}

func TestSelectorForPool(t *testing.T) {
	t.Parallel()
	assert.Equal(t, map[string]string{KeyPool: "staging"}, SelectorForPool("staging"))
}
