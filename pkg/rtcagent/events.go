package rtcagent

import "github.com/dgamroth/rtcagent/internal/hsm"

// The fixed control-verb event types named explicitly in spec.md §4.4. Every
// other event type is assigned dynamically, one per readable/writable
// property key, by newInterner — this is the "small integer tags with a
// side table of string names" design note from spec.md §9.
const (
	evAgentStarted hsm.EventType = iota
	evPlay
	evPause
	evStop
	evReset
	evHeartbeat
	evPublishProperty
	evState
	evErrorEvent
	evAgentOnClose
	evExit
	evLateMessage
	evProperties
	evStatsUpdate
	evGCStats

	evDynamicBase // first event type available for property-key assignment
)

// interner maps decoded message keys and timer event names to hsm.EventType
// values: the fixed control verbs above, plus one dynamically assigned type
// per property key (spec.md §4.4's "default handler on Root for any event
// whose name matches a property key").
type interner struct {
	byName map[string]hsm.EventType
	names  map[hsm.EventType]string
}

func newInterner(propertyKeys []string) *interner {
	in := &interner{
		byName: make(map[string]hsm.EventType, len(propertyKeys)+16),
		names:  make(map[hsm.EventType]string, len(propertyKeys)+16),
	}
	fixed := map[string]hsm.EventType{
		"AgentStarted":   evAgentStarted,
		"Play":           evPlay,
		"Pause":          evPause,
		"Stop":           evStop,
		"Reset":          evReset,
		"Heartbeat":      evHeartbeat,
		"PublishProperty": evPublishProperty,
		"State":          evState,
		"Error":          evErrorEvent,
		"AgentOnClose":   evAgentOnClose,
		"Exit":           evExit,
		"LateMessage":    evLateMessage,
		"Properties":     evProperties,
		"StatsUpdate":    evStatsUpdate,
		"GCStats":        evGCStats,
	}
	for name, t := range fixed {
		in.byName[name] = t
		in.names[t] = name
	}
	next := evDynamicBase
	for _, key := range propertyKeys {
		if _, exists := in.byName[key]; exists {
			continue
		}
		in.byName[key] = next
		in.names[next] = key
		next++
	}
	return in
}

// Lookup returns the event type for a decoded message key or timer event
// name, and whether it is known at all.
func (in *interner) Lookup(name string) (hsm.EventType, bool) {
	t, ok := in.byName[name]
	return t, ok
}

// Name returns the diagnostic name for an event type, or "" if unknown.
func (in *interner) Name(t hsm.EventType) string { return in.names[t] }
