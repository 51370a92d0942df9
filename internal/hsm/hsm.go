// Package hsm implements the generic hierarchical state machine engine
// described in spec.md §4.4: event dispatch with bubbling up the ancestor
// chain, transitions computed via least-common-ancestor exit/entry, and
// on_initial cascades. The fixed base-agent topology (Root/Startup/Top/
// Ready/Stopped/Processing/Paused/Playing/Error/Exit) and its event
// handlers are not defined here — they are built by the agent package using
// these primitives, keeping this package reusable and free of any
// dependency on the concrete agent, property, or proxy types.
//
// States and events are both small integer ids with a string side table for
// diagnostics, per the Design Notes in spec.md §9 ("Symbol-keyed events...
// represent event names as small integer tags").
package hsm

// StateID identifies one node in the state tree.
type StateID int

// NoState is the sentinel parent/initial/transition value meaning "none".
const NoState StateID = -1

// EventType identifies one kind of event a handler may be registered for.
type EventType int

// Event is dispatched through the machine. Payload fields are explicit and
// typed (rather than a boxed interface{}) so dispatching an event on the hot
// path — PublishProperty can fire once per registered property per duty
// cycle — does not allocate. Ext is an escape hatch for the rare event carrying a
// domain-specific pointer (e.g. *property.PublicationConfig for
// PublishProperty); passing a pointer through an interface{} field does not
// itself allocate in Go.
type Event struct {
	Type  EventType
	NowNs int64
	Name  string
	Err   error
	Ext   interface{}
}

// Result is what a handler returns: whether it handled the event, and an
// optional transition target.
type Result struct {
	Handled    bool
	Transition StateID
}

// Handled reports the event was handled with no state transition.
func Handled() Result { return Result{Handled: true, Transition: NoState} }

// NotHandled reports the event was not handled by this state; the engine
// bubbles it up to the parent state.
func NotHandled() Result { return Result{Handled: false, Transition: NoState} }

// TransitionTo reports the event was handled and the machine should
// transition to target (which may equal the handler's own state, for a
// self-transition/re-entry).
func TransitionTo(target StateID) Result { return Result{Handled: true, Transition: target} }

// HandlerFunc processes one event while the machine's current leaf is at or
// beneath the state this handler is registered on.
type HandlerFunc func(m *Machine, ev Event) Result

// StateDef is the static definition of one state in the tree.
type StateDef struct {
	Name     string
	Parent   StateID
	Initial  StateID
	OnEntry  func(m *Machine)
	OnExit   func(m *Machine)
	Handlers map[EventType]HandlerFunc
}

// Machine is a live hierarchical state machine instance.
type Machine struct {
	states  []StateDef
	current StateID

	// OnStateChange is invoked after any dispatch in which the current leaf
	// changed. The agent uses this to publish the StateChange status event
	// (spec.md §4.4).
	OnStateChange func(old, newState StateID)

	// ErrorFactory converts a recovered panic value, together with the
	// event being processed when it occurred, into a new Event to
	// re-dispatch (the Error(source_event, exception) event in spec.md
	// §4.4). If nil, panics propagate to the caller of Dispatch.
	ErrorFactory func(source Event, recovered interface{}) Event

	// IsTermination reports whether a recovered panic value is the
	// AgentTermination control signal, which must re-propagate rather than
	// convert to an Error event (spec.md §4.4, §7).
	IsTermination func(recovered interface{}) bool

	terminated bool

	pathBufA []StateID
	pathBufB []StateID
}

// NewMachine builds a Machine over the given state table and runs the
// initial-child cascade starting from root, matching construction-time
// entry (Root's implicit apex, then Startup as its initial child).
func NewMachine(states []StateDef, root StateID) *Machine {
	m := &Machine{
		states:   states,
		current:  NoState,
		pathBufA: make([]StateID, 0, 8),
		pathBufB: make([]StateID, 0, 8),
	}
	m.enterChain(root)
	return m
}

// Current returns the current leaf state.
func (m *Machine) Current() StateID { return m.current }

// Name returns the diagnostic name of a state.
func (m *Machine) Name(s StateID) string {
	if s == NoState {
		return "<none>"
	}
	return m.states[s].Name
}

// Terminated reports whether the AgentTermination signal has unwound the
// machine. The runner's loop checks this after each Dispatch and exits.
func (m *Machine) Terminated() bool { return m.terminated }

// IsIn reports whether state s is the current leaf or an ancestor of it —
// useful for tests asserting "we are somewhere under Top", for example.
func (m *Machine) IsIn(s StateID) bool {
	cur := m.current
	for cur != NoState {
		if cur == s {
			return true
		}
		cur = m.states[cur].Parent
	}
	return false
}

// Dispatch routes ev to the handler registered on the current leaf state or
// the nearest ancestor that handles it, bubbling up toward Root. If the
// chosen handler requests a transition, the machine performs the
// exit/entry/initial-cascade sequence from spec.md §4.4 before returning.
//
// Panics inside a handler or an entry/exit action are recovered. If
// IsTermination reports the recovered value is the termination signal, it
// re-propagates by marking the machine Terminated and returning normally —
// callers must check Terminated() after Dispatch. Otherwise, if ErrorFactory
// is set, the panic is converted into a new Event and re-dispatched exactly
// once (re-conversion is disabled on the second pass, so a handler that
// itself panics while processing an Error event propagates the panic to the
// caller rather than looping).
func (m *Machine) Dispatch(ev Event) {
	m.dispatch(ev, true)
}

func (m *Machine) dispatch(ev Event, allowConvert bool) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if m.IsTermination != nil && m.IsTermination(r) {
			m.terminated = true
			return
		}
		if allowConvert && m.ErrorFactory != nil {
			errEvent := m.ErrorFactory(ev, r)
			m.dispatch(errEvent, false)
			return
		}
		panic(r)
	}()
	m.dispatchInner(ev)
}

func (m *Machine) dispatchInner(ev Event) {
	old := m.current
	cur := m.current
	for cur != NoState {
		def := &m.states[cur]
		if h, ok := def.Handlers[ev.Type]; ok {
			res := h(m, ev)
			if res.Handled {
				if res.Transition != NoState {
					if res.Transition == cur && cur != m.current {
						// A handler on an ancestor of the leaf targeting its
						// own state: exit the leaf up to (not including) cur,
						// so transition treats it as a self-transition.
						for s := m.current; s != cur; s = m.states[s].Parent {
							m.runExit(s)
						}
						m.current = cur
					}
					m.transition(res.Transition)
				}
				break
			}
		}
		cur = def.Parent
	}
	if m.current != old && m.OnStateChange != nil {
		m.OnStateChange(old, m.current)
	}
}

// transition performs the exit/entry/initial-cascade sequence of spec.md
// §4.4: exit up to the least common ancestor of source and target, enter
// down to target, then follow on_initial chains. source==target is a
// self-transition: the state is exited and re-entered (its on_exit and
// on_entry both run exactly once), then its initial chain (if any) runs.
func (m *Machine) transition(target StateID) {
	source := m.current
	if source == target {
		m.runExit(source)
		m.current = NoState
		m.enterChain(target)
		return
	}

	srcPath := m.ancestry(m.pathBufA[:0], source)
	tgtPath := m.ancestry(m.pathBufB[:0], target)
	lca := lowestCommonAncestor(srcPath, tgtPath)

	cur := source
	for cur != lca {
		m.runExit(cur)
		cur = m.states[cur].Parent
	}
	m.current = lca

	// Build the entry path (lca, target] by walking up from target, then
	// walk it in reverse (top-down) order.
	entryPath := tgtPath[:0]
	cur = target
	for cur != lca {
		entryPath = append(entryPath, cur)
		cur = m.states[cur].Parent
	}
	for i := len(entryPath) - 1; i >= 0; i-- {
		s := entryPath[i]
		// current must record s as entered before running its entry action:
		// Exit's on_entry raises the AgentTermination panic (spec.md §4.4),
		// and the machine must still read as being in that leaf state when
		// the panic unwinds, not the last state exited/entered before it.
		m.current = s
		m.runEntry(s)
	}

	m.continueInitialChain(target)
}

// enterChain runs on_entry from `from` down through every on_initial
// descendant, setting current at each step. Used both at construction and
// for the entry side of a self-transition.
func (m *Machine) enterChain(from StateID) {
	m.current = from
	m.runEntry(from)
	m.continueInitialChain(from)
}

func (m *Machine) continueInitialChain(from StateID) {
	cur := from
	for {
		next := m.states[cur].Initial
		if next == NoState {
			return
		}
		m.current = next
		m.runEntry(next)
		cur = next
	}
}

func (m *Machine) runEntry(s StateID) {
	if fn := m.states[s].OnEntry; fn != nil {
		fn(m)
	}
}

func (m *Machine) runExit(s StateID) {
	if fn := m.states[s].OnExit; fn != nil {
		fn(m)
	}
}

// ancestry appends s and every ancestor of s, in child-to-root order, to
// buf and returns the extended slice.
func (m *Machine) ancestry(buf []StateID, s StateID) []StateID {
	cur := s
	for cur != NoState {
		buf = append(buf, cur)
		cur = m.states[cur].Parent
	}
	return buf
}

// lowestCommonAncestor finds the first state (searching from the leaf end)
// present in both child-to-root ordered paths. Both paths are bounded by the
// tree's depth (a handful of levels for this topology), so a nested scan
// beats a map on both allocation and cost — this runs on every transition
// and must not allocate (spec.md §5).
func lowestCommonAncestor(srcPath, tgtPath []StateID) StateID {
	for _, s := range tgtPath {
		for _, t := range srcPath {
			if s == t {
				return s
			}
		}
	}
	return NoState
}
