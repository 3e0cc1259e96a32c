package channel

import (
	"context"
	"fmt"

	"github.com/kursadbilgin/notify-engine/internal/domain"
)

// Capability is the uniform contract implemented by every delivery channel.
//
// Send reports recoverable transport failures as errors and must never
// panic; the orchestrator translates any returned error into a failed
// delivery outcome. Validate is side-effect free.
type Capability interface {
	Name() domain.Channel
	Validate(n *domain.Notification) error
	Send(ctx context.Context, n *domain.Notification) error
	Enabled() bool
	MaxAttempts() int
}

// Registry holds the closed set of channel capabilities, selected by name.
// It is constructed once at startup and passed into the orchestrator.
type Registry struct {
	order        []domain.Channel
	capabilities map[domain.Channel]Capability
}

func NewRegistry(capabilities ...Capability) (*Registry, error) {
	r := &Registry{
		capabilities: make(map[domain.Channel]Capability, len(capabilities)),
	}

	for _, capability := range capabilities {
		if capability == nil {
			return nil, fmt.Errorf("nil channel capability")
		}
		name := capability.Name()
		if !name.IsValid() {
			return nil, fmt.Errorf("invalid channel name %q", name)
		}
		if _, exists := r.capabilities[name]; exists {
			return nil, fmt.Errorf("duplicate channel capability %q", name)
		}
		r.capabilities[name] = capability
		r.order = append(r.order, name)
	}

	return r, nil
}

// Get returns the capability registered under name, if any.
func (r *Registry) Get(name domain.Channel) (Capability, bool) {
	if r == nil {
		return nil, false
	}
	capability, ok := r.capabilities[name]
	return capability, ok
}

// SystemEnabled reports whether the channel exists and is enabled at the
// system level, regardless of recipient preferences.
func (r *Registry) SystemEnabled(name domain.Channel) bool {
	capability, ok := r.Get(name)
	return ok && capability.Enabled()
}

// Names returns registered channel names in registration order.
func (r *Registry) Names() []domain.Channel {
	if r == nil {
		return nil
	}
	names := make([]domain.Channel, len(r.order))
	copy(names, r.order)
	return names
}
