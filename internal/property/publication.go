package property

import "github.com/dgamroth/rtcagent/internal/strategy"

// PublicationConfig is the mutable record tying one property to one output
// stream under one publication strategy (spec.md §3).
type PublicationConfig struct {
	Field           string
	StreamIndex     int
	Strategy        strategy.Strategy
	LastPublishedNs int64
	NextScheduledNs int64
}

// PublicationRegistry holds every registered (field, stream, strategy)
// triple, in registration order — the property poller dispatches
// PublishProperty events in this order (spec.md §5).
type PublicationRegistry struct {
	configs []*PublicationConfig
}

// NewPublicationRegistry builds an empty registry with reserved capacity.
func NewPublicationRegistry(capacityHint int) *PublicationRegistry {
	if capacityHint <= 0 {
		capacityHint = 8
	}
	return &PublicationRegistry{configs: make([]*PublicationConfig, 0, capacityHint)}
}

// Register adds a new publication config. streamIndex validity is the
// caller's responsibility to check against the open stream set at
// registration time (spec.md §3 invariant; a bad index surfaces as
// StreamNotFoundError from the transport layer, not from here).
func (r *PublicationRegistry) Register(field string, streamIndex int, strat strategy.Strategy) *PublicationConfig {
	cfg := &PublicationConfig{
		Field:           field,
		StreamIndex:     streamIndex,
		Strategy:        strat,
		LastPublishedNs: strategy.NeverPublished,
		NextScheduledNs: strategy.NeverPublished,
	}
	r.configs = append(r.configs, cfg)
	return cfg
}

// All returns every registered config in registration order.
func (r *PublicationRegistry) All() []*PublicationConfig {
	return r.configs
}

// Len returns the number of registered configs.
func (r *PublicationRegistry) Len() int { return len(r.configs) }
