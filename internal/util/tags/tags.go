// Package tags builds the remote tags that mark resources as owned by a
// stagepool orchestrator. Tagging is what lets a later orchestrator
// instance find and adopt resources a previous one left behind.
package tags

// Standard tag keys, namespaced under stagepool: to avoid colliding with
// user tags on the same account.
const (
	// KeyPool identifies which resource pool owns a resource.
	KeyPool = "stagepool:pool"

	// KeyManagedBy marks a resource as orchestrator-managed.
	KeyManagedBy = "stagepool:managed-by"

	// KeyUser records the identity that requested the resource.
	KeyUser = "stagepool:user"

	// KeyName carries a volume's logical name.
	KeyName = "stagepool:name"

	// KeyRole distinguishes servers from volumes in tag searches.
	KeyRole = "stagepool:role"
)

// ManagedBy is the value stored under KeyManagedBy.
const ManagedBy = "stagepool"

// Role values.
const (
	RoleServer = "server"
	RoleVolume = "volume"
)

// Builder assembles a tag set with the ownership marker pre-set.
type Builder struct {
	tags map[string]string
}

// NewBuilder starts a tag set owned by the given pool.
func NewBuilder(pool string) *Builder {
	return &Builder{
		tags: map[string]string{
			KeyPool:      pool,
			KeyManagedBy: ManagedBy,
		},
	}
}

// WithUser records the managing user identity.
func (b *Builder) WithUser(user string) *Builder {
	if user != "" {
		b.tags[KeyUser] = user
	}
	return b
}

// WithName records a logical resource name.
func (b *Builder) WithName(name string) *Builder {
	if name != "" {
		b.tags[KeyName] = name
	}
	return b
}

// WithRole records the resource role.
func (b *Builder) WithRole(role string) *Builder {
	b.tags[KeyRole] = role
	return b
}

// Merge adds all tags from the provided map.
func (b *Builder) Merge(extra map[string]string) *Builder {
	for k, v := range extra {
		b.tags[k] = v
	}
	return b
}

// Build returns a copy of the tag set.
func (b *Builder) Build() map[string]string {
	out := make(map[string]string, len(b.tags))
	for k, v := range b.tags {
		out[k] = v
	}
	return out
}

// SelectorForPool returns the tag filter matching every resource owned by
// the given pool.
func SelectorForPool(pool string) map[string]string {
	return map[string]string{KeyPool: pool}
}
