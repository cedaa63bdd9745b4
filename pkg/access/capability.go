// Package access decides whether an actor may perform a privileged
// operation. Capabilities are module/action pairs; an actor holds a set of
// them, and the wildcard set allows everything.
package access

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Domain-level error values returned by capability checks.
var (
	ErrNotAuthorized     = errors.New("not authorized")
	ErrUnknownActor      = errors.New("unknown actor")
	ErrInvalidCapability = errors.New("invalid capability")
)

// Capability names one privileged operation, e.g. {ledger, adjust}.
type Capability struct {
	Module string
	Action string
}

// ParseCapability reads a "module:action" pair.
func ParseCapability(raw string) (Capability, error) {
	module, action, found := strings.Cut(strings.TrimSpace(raw), ":")
	if !found || strings.TrimSpace(module) == "" || strings.TrimSpace(action) == "" {
		return Capability{}, fmt.Errorf("%w: %q is not module:action", ErrInvalidCapability, raw)
	}
	return Capability{Module: strings.TrimSpace(module), Action: strings.TrimSpace(action)}, nil
}

// String renders the capability as "module:action".
func (capability Capability) String() string {
	return capability.Module + ":" + capability.Action
}

// CapabilitySet is the set of capabilities an actor holds. The zero value
// allows nothing.
type CapabilitySet struct {
	wildcard bool
	granted  map[Capability]struct{}
}

// NewCapabilitySet builds a set from explicit grants.
func NewCapabilitySet(capabilities ...Capability) CapabilitySet {
	granted := make(map[Capability]struct{}, len(capabilities))
	for _, capability := range capabilities {
		granted[capability] = struct{}{}
	}
	return CapabilitySet{granted: granted}
}

// AllCapabilities returns the wildcard set that allows every operation.
func AllCapabilities() CapabilitySet {
	return CapabilitySet{wildcard: true}
}

// Allows reports whether the set grants the capability.
func (set CapabilitySet) Allows(capability Capability) bool {
	if set.wildcard {
		return true
	}
	_, found := set.granted[capability]
	return found
}

// Directory resolves an actor's capability set. A miss is ErrUnknownActor.
type Directory interface {
	CapabilitiesOf(ctx context.Context, actorID string) (CapabilitySet, error)
}

// StaticDirectory is a fixed actor-to-capabilities map, loaded from
// configuration.
type StaticDirectory struct {
	actors map[string]CapabilitySet
}

// NewStaticDirectory builds a directory from a fixed grant table.
func NewStaticDirectory(actors map[string]CapabilitySet) *StaticDirectory {
	copied := make(map[string]CapabilitySet, len(actors))
	for actorID, set := range actors {
		copied[actorID] = set
	}
	return &StaticDirectory{actors: copied}
}

// CapabilitiesOf returns the actor's grants.
func (directory *StaticDirectory) CapabilitiesOf(_ context.Context, actorID string) (CapabilitySet, error) {
	set, found := directory.actors[strings.TrimSpace(actorID)]
	if !found {
		return CapabilitySet{}, fmt.Errorf("%w: %q", ErrUnknownActor, actorID)
	}
	return set, nil
}

// Require returns ErrNotAuthorized unless the actor holds the capability.
func Require(ctx context.Context, directory Directory, actorID string, capability Capability) error {
	set, err := directory.CapabilitiesOf(ctx, actorID)
	if err != nil {
		return err
	}
	if !set.Allows(capability) {
		return fmt.Errorf("%w: %q lacks %s", ErrNotAuthorized, actorID, capability)
	}
	return nil
}
