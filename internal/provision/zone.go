package provision

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/stagepool/stagepool/internal/registry"
	"github.com/stagepool/stagepool/internal/resource"
)

// ZonePolicy chooses a placement zone when an acquisition carries no zone
// constraint. Policies are pluggable; the tie-break between equally active
// zones is policy-defined, not guaranteed.
type ZonePolicy interface {
	Select(reg *registry.Registry, available []string) (string, error)
}

// MostActivePolicy prefers the zone of an already-reachable server, so new
// resources land next to the ones they will interact with. With no
// reachable server it picks a random available zone.
type MostActivePolicy struct {
	rng *rand.Rand
}

// NewMostActivePolicy returns the default zone policy.
func NewMostActivePolicy() *MostActivePolicy {
	return &MostActivePolicy{rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

func (p *MostActivePolicy) Select(reg *registry.Registry, available []string) (string, error) {
	for _, r := range reg.All() {
		if srv, ok := r.(*resource.ManagedServer); ok && srv.Reachable() {
			return srv.Zone(), nil
		}
	}
	if len(available) == 0 {
		return "", fmt.Errorf("no zones available")
	}
	return available[p.rng.Intn(len(available))], nil
}
