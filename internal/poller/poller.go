// Package poller implements the priority-ordered, deferred-mutation poller
// registry described in spec.md §4.2. Unlike the teacher's WorkerPool (which
// fans work out to goroutines), this registry runs everything on the calling
// thread in a single indexed pass per duty cycle — the agent core is
// single-threaded by design (spec.md §5).
package poller

import (
	"sort"

	"github.com/dgamroth/rtcagent/internal/rtcerrors"
)

// Func is the callable a poller wraps. It receives the owning agent (as an
// opaque interface{} to avoid an import cycle with the agent package — the
// concrete Agent type is the only caller and asserts its own type) and
// returns a work count, per spec.md §9's "trait-object pollers with a single
// poll(&mut self, agent) -> u32 method" design note.
type Func func(agent interface{}) uint32

// entry is one registered poller.
type entry struct {
	name     string
	priority int
	fn       Func
	seq      uint64 // insertion sequence, for stable FIFO-on-tie ordering
}

// Registry holds the active poller list plus the two pending buffers that
// structural mutations are queued into while a cycle is iterating (spec.md
// §4.2, §9 "deferred mutation while iterating").
type Registry struct {
	active       []entry
	pendingAdd   []entry
	pendingRem   map[string]struct{}
	seq          uint64
}

// New creates an empty registry with reserved capacity so steady-state
// register/unregister traffic does not reallocate the backing arrays.
func New(capacityHint int) *Registry {
	if capacityHint <= 0 {
		capacityHint = 8
	}
	return &Registry{
		active:     make([]entry, 0, capacityHint),
		pendingAdd: make([]entry, 0, capacityHint),
		pendingRem: make(map[string]struct{}, capacityHint),
	}
}

// Register enqueues a poller addition. It fails with an
// AgentConfigurationError (duplicate poller name) if name is already active
// or already pending-add; an active name that is pending removal is allowed
// (enables unregister-then-register in one cycle).
func (r *Registry) Register(name string, priority int, fn Func) error {
	_, removing := r.pendingRem[name]
	if (r.containsActive(name) && !removing) || r.containsPendingAdd(name) {
		return &rtcerrors.AgentConfigurationError{Message: "duplicate poller name: " + name}
	}
	r.seq++
	r.pendingAdd = append(r.pendingAdd, entry{name: name, priority: priority, fn: fn, seq: r.seq})
	return nil
}

// Unregister is idempotent: if name is in pending-add, cancels that addition;
// else if active, enqueues removal; else it is a no-op.
func (r *Registry) Unregister(name string) {
	for i := range r.pendingAdd {
		if r.pendingAdd[i].name == name {
			r.pendingAdd = append(r.pendingAdd[:i], r.pendingAdd[i+1:]...)
			return
		}
	}
	if r.containsActive(name) {
		r.pendingRem[name] = struct{}{}
	}
}

// Clear immediately wipes active, pending-add and pending-remove (including
// built-ins) and returns the number of active pollers removed. Unlike
// Register/Unregister this is not deferred.
func (r *Registry) Clear() int {
	n := len(r.active)
	r.active = r.active[:0]
	r.pendingAdd = r.pendingAdd[:0]
	for k := range r.pendingRem {
		delete(r.pendingRem, k)
	}
	return n
}

// Len returns the number of active pollers.
func (r *Registry) Len() int { return len(r.active) }

// Contains reports whether name is active.
func (r *Registry) Contains(name string) bool { return r.containsActive(name) }

// At returns the name and priority of the i-th active poller in iteration
// order.
func (r *Registry) At(i int) (name string, priority int) {
	e := r.active[i]
	return e.name, e.priority
}

// RunAll invokes every active poller, in the order captured at the start of
// this call, passing agent through unchanged. It returns the summed work
// count. Pollers may call Register/Unregister/Clear during this call; those
// changes land in the pending buffers (or, for Clear, take effect
// immediately against the *next* RunAll's snapshot since Clear mutates
// r.active directly — matching spec.md's "Clear... immediate full wipe").
//
// RunAll takes a snapshot by slicing r.active, which copies only the slice
// header (pointer/len/cap), not the backing array — no allocation.
func (r *Registry) RunAll(agent interface{}) uint32 {
	snapshot := r.active[:len(r.active)]
	var work uint32
	for i := range snapshot {
		work += snapshot[i].fn(agent)
	}
	return work
}

// Apply runs the two-phase algorithm from spec.md §4.2: first drop every
// pending-remove name from active (preserving order), then binary-search
// insert every pending-add entry to keep active sorted by priority with FIFO
// ties preserved. Call this once per duty cycle, after RunAll.
func (r *Registry) Apply() {
	if len(r.pendingRem) > 0 {
		kept := r.active[:0]
		for _, e := range r.active {
			if _, removed := r.pendingRem[e.name]; removed {
				continue
			}
			kept = append(kept, e)
		}
		r.active = kept
		for k := range r.pendingRem {
			delete(r.pendingRem, k)
		}
	}

	for _, add := range r.pendingAdd {
		idx := sort.Search(len(r.active), func(i int) bool {
			return r.active[i].priority > add.priority
		})
		r.active = append(r.active, entry{})
		copy(r.active[idx+1:], r.active[idx:])
		r.active[idx] = add
	}
	r.pendingAdd = r.pendingAdd[:0]
}

func (r *Registry) containsActive(name string) bool {
	for _, e := range r.active {
		if e.name == name {
			return true
		}
	}
	return false
}

func (r *Registry) containsPendingAdd(name string) bool {
	for _, e := range r.pendingAdd {
		if e.name == name {
			return true
		}
	}
	return false
}
