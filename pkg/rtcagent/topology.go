package rtcagent

import (
	"fmt"

	"github.com/dgamroth/rtcagent/internal/hsm"
	"github.com/dgamroth/rtcagent/internal/property"
)

// Fixed base-agent state topology (spec.md §4.4):
//
//	Root
//	├── Startup            — initial child of Root
//	├── Top                — operational superstate
//	│   ├── Ready          — initial child of Top
//	│   │   ├── Stopped    — initial child of Ready
//	│   │   └── Processing
//	│   │       ├── Paused — initial child of Processing
//	│   │       └── Playing
//	│   ├── Error
//	│   └── Exit           — terminal
const (
	StateRoot hsm.StateID = iota
	StateStartup
	StateTop
	StateReady
	StateStopped
	StateProcessing
	StatePaused
	StatePlaying
	StateErrorState
	StateExit

	stateCount
)

// terminationSignal is the sentinel panic value raised by Exit's entry
// action (spec.md §4.4: "Exit entry action raises an AgentTermination
// signal that the runner catches to end the thread cleanly").
type terminationSignal struct{}

func (terminationSignal) Error() string { return "agent termination" }

// buildMachine constructs the fixed topology wired to a's handlers. It is
// called once from New, after the property store, proxies, and timer
// scheduler exist.
func (a *Agent) buildMachine() *hsm.Machine {
	states := make([]hsm.StateDef, stateCount)

	states[StateRoot] = hsm.StateDef{
		Name:     "Root",
		Parent:   hsm.NoState,
		Initial:  StateStartup,
		Handlers: a.rootHandlers(),
	}
	states[StateStartup] = hsm.StateDef{
		Name:    "Startup",
		Parent:  StateRoot,
		Initial: hsm.NoState,
		Handlers: map[hsm.EventType]hsm.HandlerFunc{
			evAgentStarted: func(m *hsm.Machine, ev hsm.Event) hsm.Result {
				return hsm.TransitionTo(StateTop)
			},
		},
	}
	states[StateTop] = hsm.StateDef{
		Name:     "Top",
		Parent:   StateRoot,
		Initial:  StateReady,
		Handlers: a.topHandlers(),
	}
	states[StateReady] = hsm.StateDef{
		Name:    "Ready",
		Parent:  StateTop,
		Initial: StateStopped,
		Handlers: map[hsm.EventType]hsm.HandlerFunc{
			evReset: func(m *hsm.Machine, ev hsm.Event) hsm.Result {
				return hsm.TransitionTo(StateReady)
			},
		},
	}
	states[StateStopped] = hsm.StateDef{
		Name:    "Stopped",
		Parent:  StateReady,
		Initial: hsm.NoState,
		Handlers: map[hsm.EventType]hsm.HandlerFunc{
			evPlay:  func(m *hsm.Machine, ev hsm.Event) hsm.Result { return hsm.TransitionTo(StatePlaying) },
			evPause: func(m *hsm.Machine, ev hsm.Event) hsm.Result { return hsm.TransitionTo(StatePaused) },
		},
	}
	states[StateProcessing] = hsm.StateDef{
		Name:    "Processing",
		Parent:  StateReady,
		Initial: StatePaused,
		Handlers: map[hsm.EventType]hsm.HandlerFunc{
			evStop: func(m *hsm.Machine, ev hsm.Event) hsm.Result { return hsm.TransitionTo(StateStopped) },
		},
	}
	states[StatePaused] = hsm.StateDef{
		Name:    "Paused",
		Parent:  StateProcessing,
		Initial: hsm.NoState,
		Handlers: map[hsm.EventType]hsm.HandlerFunc{
			evPlay: func(m *hsm.Machine, ev hsm.Event) hsm.Result { return hsm.TransitionTo(StatePlaying) },
		},
	}
	states[StatePlaying] = hsm.StateDef{
		Name:    "Playing",
		Parent:  StateProcessing,
		Initial: hsm.NoState,
		Handlers: map[hsm.EventType]hsm.HandlerFunc{
			evPause: func(m *hsm.Machine, ev hsm.Event) hsm.Result { return hsm.TransitionTo(StatePaused) },
			evPublishProperty: func(m *hsm.Machine, ev hsm.Event) hsm.Result {
				cfg := ev.Ext.(*property.PublicationConfig)
				val, err := a.store.Get(cfg.Field)
				if err != nil {
					a.logError(ev.Name, err)
					return hsm.Handled()
				}
				a.propertyProxy.Publish(cfg.StreamIndex, ev.NowNs, cfg.Field, val)
				return hsm.Handled()
			},
		},
	}
	// Error has no event in spec.md §4.4's table that transitions into it —
	// Error(source_event, exception) is handled on Top without moving the
	// current leaf. The node is kept in the topology because the tree
	// diagram in §4.4 names it as a sibling of Ready and Exit under Top.
	states[StateErrorState] = hsm.StateDef{
		Name:    "Error",
		Parent:  StateTop,
		Initial: hsm.NoState,
	}
	states[StateExit] = hsm.StateDef{
		Name:    "Exit",
		Parent:  StateTop,
		Initial: hsm.NoState,
		OnEntry: func(m *hsm.Machine) { panic(terminationSignal{}) },
	}

	mach := hsm.NewMachine(states, StateRoot)
	mach.OnStateChange = func(old, newState hsm.StateID) {
		a.statusProxy.Publish(a.clock.NowNs(), "StateChange", property.SymbolValue(mach.Name(newState)))
	}
	mach.ErrorFactory = func(source hsm.Event, recovered interface{}) hsm.Event {
		var err error
		switch v := recovered.(type) {
		case error:
			err = v
		default:
			err = fmt.Errorf("%v", v)
		}
		return hsm.Event{Type: evErrorEvent, NowNs: source.NowNs, Name: a.interner.Name(source.Type), Err: err}
	}
	mach.IsTermination = func(recovered interface{}) bool {
		_, ok := recovered.(terminationSignal)
		return ok
	}
	return mach
}

// topHandlers builds the Top state's handler table (spec.md §4.4).
func (a *Agent) topHandlers() map[hsm.EventType]hsm.HandlerFunc {
	return map[hsm.EventType]hsm.HandlerFunc{
		evHeartbeat: func(m *hsm.Machine, ev hsm.Event) hsm.Result {
			a.statusProxy.Publish(ev.NowNs, "Heartbeat", property.SymbolValue(m.Name(m.Current())))
			a.timers.Schedule(ev.NowNs, a.heartbeatPeriodNs, "Heartbeat")
			return hsm.Handled()
		},
		evState: func(m *hsm.Machine, ev hsm.Event) hsm.Result {
			a.statusProxy.Publish(ev.NowNs, "State", property.SymbolValue(m.Name(m.Current())))
			return hsm.Handled()
		},
		evErrorEvent: func(m *hsm.Machine, ev hsm.Event) hsm.Result {
			a.logError(ev.Name, ev.Err)
			msg := ""
			if ev.Err != nil {
				msg = ev.Err.Error()
			}
			a.statusProxy.Publish(ev.NowNs, "Error", property.StringValue([]byte(msg)))
			return hsm.Handled()
		},
		evAgentOnClose: func(m *hsm.Machine, ev hsm.Event) hsm.Result { return hsm.TransitionTo(StateExit) },
		evExit:         func(m *hsm.Machine, ev hsm.Event) hsm.Result { return hsm.TransitionTo(StateExit) },
		evLateMessage: func(m *hsm.Machine, ev hsm.Event) hsm.Result {
			a.statusProxy.Publish(ev.NowNs, "LateMessage", property.Nothing)
			return hsm.Handled()
		},
		evProperties: func(m *hsm.Machine, ev hsm.Event) hsm.Result {
			for _, key := range a.store.Keys() {
				mode, err := a.store.Access(key)
				if err != nil || !mode.CanRead() {
					continue
				}
				val, err := a.store.Get(key)
				if err != nil {
					continue
				}
				a.statusProxy.Publish(ev.NowNs, key, val)
			}
			return hsm.Handled()
		},
		evStatsUpdate: func(m *hsm.Machine, ev hsm.Event) hsm.Result {
			a.deriveStats(ev.NowNs)
			a.timers.Schedule(ev.NowNs, a.statsPeriodNs, "StatsUpdate")
			return hsm.Handled()
		},
		evGCStats: func(m *hsm.Machine, ev hsm.Event) hsm.Result {
			a.publishGCStats(ev.NowNs)
			a.timers.Schedule(ev.NowNs, a.gcStatsPeriodNs, "GCStats")
			return hsm.Handled()
		},
	}
}

// rootHandlers builds Root's default property-key handlers (spec.md §4.4:
// "Default handler on Root for any event whose name matches a property
// key"), one registration per property key in the store, all sharing the
// same implementation.
func (a *Agent) rootHandlers() map[hsm.EventType]hsm.HandlerFunc {
	handlers := make(map[hsm.EventType]hsm.HandlerFunc, len(a.store.Keys()))
	for _, key := range a.store.Keys() {
		key := key
		t, ok := a.interner.Lookup(key)
		if !ok {
			continue
		}
		handlers[t] = func(m *hsm.Machine, ev hsm.Event) hsm.Result {
			a.handlePropertyKeyEvent(key, ev)
			return hsm.Handled()
		}
	}
	return handlers
}

// handlePropertyKeyEvent implements the read/write dispatch: no carried
// value means read (publish the current value as an echo); a carried value
// means write (decode, set, then publish the echo), per spec.md §4.4. A
// read or write error is re-dispatched as an Error event.
func (a *Agent) handlePropertyKeyEvent(key string, ev hsm.Event) {
	if ev.Ext == nil {
		val, err := a.store.Get(key)
		if err != nil {
			a.machine.Dispatch(hsm.Event{Type: evErrorEvent, NowNs: ev.NowNs, Name: key, Err: err})
			return
		}
		a.statusProxy.Publish(ev.NowNs, key, val)
		return
	}
	val := ev.Ext.(property.Value)
	if err := a.store.Set(key, val, ev.NowNs); err != nil {
		a.machine.Dispatch(hsm.Event{Type: evErrorEvent, NowNs: ev.NowNs, Name: key, Err: err})
		return
	}
	a.statusProxy.Publish(ev.NowNs, key, val)
}
