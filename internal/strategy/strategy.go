// Package strategy implements the publication-strategy engine of spec.md
// §4.3: a pure, allocation-free decision of whether a (property, stream)
// pair should publish on the current duty cycle, and when it should next be
// reconsidered.
package strategy

// Kind discriminates the four publication strategies. Using a tagged struct
// rather than an interface keeps ShouldPublish/NextTime flat table-driven
// switches with no dynamic dispatch — the hot path the property poller walks
// every duty cycle never allocates or calls through an interface.
type Kind uint8

const (
	// OnUpdate fires whenever the property's last_update_ns has advanced
	// strictly past the config's last_published_ns.
	OnUpdate Kind = iota
	// Periodic fires every IntervalNs, regardless of whether the property
	// changed.
	Periodic
	// RateLimited fires on property updates, but never more often than
	// MinIntervalNs.
	RateLimited
	// Scheduled fires exactly once, at or after AtNs.
	Scheduled
)

// NeverPublished is the sentinel used for LastPublishedNs and
// NextScheduledNs meaning "never" / "not scheduled" (spec.md §3).
const NeverPublished int64 = -1

// Strategy is the tagged-union value. Only the field(s) relevant to Kind are
// meaningful; the others are ignored.
type Strategy struct {
	Kind        Kind
	IntervalNs  int64 // Periodic
	MinInterval int64 // RateLimited
	AtNs        int64 // Scheduled
}

// OnUpdateStrategy constructs an OnUpdate strategy.
func OnUpdateStrategy() Strategy { return Strategy{Kind: OnUpdate} }

// PeriodicStrategy constructs a Periodic strategy with the given interval.
func PeriodicStrategy(intervalNs int64) Strategy {
	return Strategy{Kind: Periodic, IntervalNs: intervalNs}
}

// RateLimitedStrategy constructs a RateLimited strategy with the given
// minimum interval between fires.
func RateLimitedStrategy(minIntervalNs int64) Strategy {
	return Strategy{Kind: RateLimited, MinInterval: minIntervalNs}
}

// ScheduledStrategy constructs a Scheduled strategy that fires once at atNs.
func ScheduledStrategy(atNs int64) Strategy {
	return Strategy{Kind: Scheduled, AtNs: atNs}
}

// ShouldPublish implements the table in spec.md §4.3. lastPublishedNs and
// nextScheduledNs are the PublicationConfig's current values; propertyTsNs is
// the property's last_update_ns; nowNs is the cached clock value.
//
// nextScheduledNs is accepted for symmetry with the source design's
// precomputed next-fire field but is not required by any of the four
// conditions below — the conditions are always re-derived from
// lastPublishedNs so they stay correct even if a caller never consulted
// next_scheduled_ns (e.g. a newly registered config with NeverPublished).
func ShouldPublish(s Strategy, lastPublishedNs, nextScheduledNs, propertyTsNs, nowNs int64) bool {
	switch s.Kind {
	case OnUpdate:
		return propertyTsNs > lastPublishedNs
	case Periodic:
		return lastPublishedNs == NeverPublished || nowNs-lastPublishedNs >= s.IntervalNs
	case RateLimited:
		updated := propertyTsNs > lastPublishedNs
		due := lastPublishedNs == NeverPublished || nowNs-lastPublishedNs >= s.MinInterval
		return updated && due
	case Scheduled:
		return nowNs >= s.AtNs && lastPublishedNs < s.AtNs
	default:
		return false
	}
}

// NextTime implements the companion next_time table in spec.md §4.3.
func NextTime(s Strategy, nowNs int64) int64 {
	switch s.Kind {
	case OnUpdate:
		return NeverPublished
	case Periodic:
		return nowNs + s.IntervalNs
	case RateLimited:
		return nowNs + s.MinInterval
	case Scheduled:
		return s.AtNs
	default:
		return NeverPublished
	}
}
