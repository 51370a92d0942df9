// Package rtcagent implements the base agent of spec.md §4.8: a
// single-threaded, zero-allocation-after-warmup cooperative unit of work
// wiring together the poller registry, hierarchical state machine,
// publication-strategy engine, polled timer scheduler, property store, and
// status/property proxies from the internal packages.
package rtcagent

import (
	"log/slog"
	"runtime"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/dgamroth/rtcagent/internal/clock"
	"github.com/dgamroth/rtcagent/internal/counters"
	"github.com/dgamroth/rtcagent/internal/hsm"
	"github.com/dgamroth/rtcagent/internal/poller"
	"github.com/dgamroth/rtcagent/internal/property"
	"github.com/dgamroth/rtcagent/internal/proxy"
	"github.com/dgamroth/rtcagent/internal/rtcerrors"
	"github.com/dgamroth/rtcagent/internal/strategy"
	"github.com/dgamroth/rtcagent/internal/timer"
	"github.com/dgamroth/rtcagent/internal/transport"
)

// Built-in poller priorities, spec.md §4.2.
const (
	priorityInputStreams  = 10
	priorityProperties    = 50
	priorityTimers        = 75
	priorityControlStream = 200
)

// Config is the subset of environment configuration the Agent itself needs;
// cmd/rtcagent maps internal/config.Config onto this.
type Config struct {
	BlockName           string
	BlockID             int64
	HeartbeatPeriodNs   int64
	LateMessageThreshNs int64
	StatsPeriodNs       int64
	GCStatsPeriodNs     int64
	ControlFragmentLimit int
	InputFragmentLimit   int
}

// Agent is the base agent described in spec.md §4.8.
type Agent struct {
	cfg Config

	clock    *clock.Cache
	store    *property.Store
	pubs     *property.PublicationRegistry
	ids      *proxy.IDGenerator
	timers   *timer.Scheduler
	pollers  *poller.Registry
	streams  *transport.Set
	counters *counters.Counters

	statusProxy   *proxy.StatusProxy
	propertyProxy *proxy.PropertyProxy

	controlAdapter *streamAdapter
	inputAdapters  []*streamAdapter

	machine  *hsm.Machine
	interner *interner

	logger     *slog.Logger
	errLimiter map[string]*rate.Limiter

	// timerFireFunc is built once so the per-cycle timer poll never
	// constructs a fresh closure (spec.md §5's allocation discipline).
	timerFireFunc timer.FireFunc

	heartbeatPeriodNs int64
	statsPeriodNs     int64
	gcStatsPeriodNs   int64

	lastStatsTimeNs int64
	lastMsgCount    uint64
	lastWorkCount   uint64
	msgCount        uint64
}

// New builds an Agent. descriptors define the property store; streams is
// the already-connected transport; statusStreamIndex is a 1-based index
// into streams.Pub. clockSource is nil for production
// use (wall clock) or a *clock.Manual in tests.
func New(cfg Config, descriptors []property.Descriptor, streams *transport.Set, statusStreamIndex int, clockSource clock.Source, logger *slog.Logger) *Agent {
	if logger == nil {
		logger = slog.Default()
	}
	store := property.NewStore(descriptors)
	a := &Agent{
		cfg:               cfg,
		clock:             clock.NewCache(clockSource),
		store:             store,
		pubs:              property.NewPublicationRegistry(len(descriptors)),
		ids:               proxy.NewIDGenerator(cfg.BlockID),
		timers:            timer.New(16),
		pollers:           poller.New(8),
		streams:           streams,
		counters:          counters.New(),
		logger:            logger,
		errLimiter:        make(map[string]*rate.Limiter),
		heartbeatPeriodNs: orDefault(cfg.HeartbeatPeriodNs, int64(10*time.Second)),
		statsPeriodNs:     orDefault(cfg.StatsPeriodNs, int64(5*time.Second)),
		gcStatsPeriodNs:   orDefault(cfg.GCStatsPeriodNs, int64(10*time.Second)),
	}
	a.interner = newInterner(store.Keys())
	a.timerFireFunc = func(event string, nowNs int64) {
		t, ok := a.interner.Lookup(event)
		if !ok {
			a.logger.Warn("timer fired unknown event", "event", event)
			return
		}
		a.machine.Dispatch(hsm.Event{Type: t, NowNs: nowNs, Name: event})
	}
	tag := cfg.BlockName
	a.statusProxy = proxy.NewStatusProxy(streams, a.ids, logger, tag, statusStreamIndex)
	a.propertyProxy = proxy.NewPropertyProxy(streams, a.ids, logger, tag)
	a.machine = a.buildMachine()
	return a
}

func orDefault(v, def int64) int64 {
	if v <= 0 {
		return def
	}
	return v
}

// Store exposes the property store for callers building PublicationConfig
// entries before OnStart (e.g. a CLI wiring command-line-selected streams).
func (a *Agent) Store() *property.Store { return a.store }

// Publications exposes the publication registry so callers can register
// (field, stream, strategy) triples before OnStart.
func (a *Agent) Publications() *property.PublicationRegistry { return a.pubs }

// Dispatch routes an event into the HSM. Exported so stream adapters (which
// live in this package) and external callers (e.g. a CLI's signal handler
// dispatching AgentOnClose) can drive the machine.
func (a *Agent) Dispatch(ev hsm.Event) { a.machine.Dispatch(ev) }

// CurrentStateName returns the HSM's current leaf state name.
func (a *Agent) CurrentStateName() string { return a.machine.Name(a.machine.Current()) }

// Terminated reports whether the HSM has unwound via AgentTermination.
func (a *Agent) Terminated() bool { return a.machine.Terminated() }

// Shutdown dispatches AgentOnClose, driving the HSM to Exit (spec.md §4.4)
// so the runner's loop observes Terminated() and can call OnClose. This is
// the runner-facing equivalent of the SIGINT/SIGTERM "graceful shutdown"
// invariant in spec.md §6.
func (a *Agent) Shutdown() {
	a.machine.Dispatch(hsm.Event{Type: evAgentOnClose, NowNs: a.clock.NowNs()})
}

// OnStart implements spec.md §4.8: creates adapters, registers built-in
// pollers, schedules recurring timers, dispatches AgentStarted.
func (a *Agent) OnStart() {
	// Subscription index 1 is always the control stream in the base
	// topology (spec.md §4.7); input adapters cover every remaining open
	// subscription.
	a.controlAdapter = newStreamAdapter(a, []int{1}, orInt(a.cfg.ControlFragmentLimit, 1))
	a.inputAdapters = nil
	if n := len(a.streams.Sub); n > 1 {
		inputIndexes := make([]int, 0, n-1)
		for i := 2; i <= n; i++ {
			inputIndexes = append(inputIndexes, i)
		}
		a.inputAdapters = append(a.inputAdapters, newStreamAdapter(a, inputIndexes, orInt(a.cfg.InputFragmentLimit, 10)))
	}

	_ = a.pollers.Register("input_streams", priorityInputStreams, func(agent interface{}) uint32 {
		return a.pollInputStreams()
	})
	_ = a.pollers.Register("properties", priorityProperties, func(agent interface{}) uint32 {
		return a.pollProperties()
	})
	_ = a.pollers.Register("timers", priorityTimers, func(agent interface{}) uint32 {
		return a.pollTimers()
	})
	_ = a.pollers.Register("control_stream", priorityControlStream, func(agent interface{}) uint32 {
		return a.pollControlStream()
	})
	a.pollers.Apply()

	a.clock.Refresh()
	now := a.clock.NowNs()
	a.lastStatsTimeNs = now
	a.timers.Schedule(now, a.heartbeatPeriodNs, "Heartbeat")
	a.timers.Schedule(now, a.statsPeriodNs, "StatsUpdate")
	a.timers.Schedule(now, a.gcStatsPeriodNs, "GCStats")

	a.machine.Dispatch(hsm.Event{Type: evAgentStarted, NowNs: now})
}

func orInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// OnClose cancels all timers, clears all pollers, and nulls out proxies and
// adapters. It does not close the counters or any transport resource: the
// streams Set and the Counters stay as they are.
func (a *Agent) OnClose() {
	a.timers.CancelAll()
	a.pollers.Clear()
	a.controlAdapter = nil
	a.inputAdapters = nil
	a.statusProxy = nil
	a.propertyProxy = nil
}

// DoWork implements the cooperative duty cycle of spec.md §4.1.
func (a *Agent) DoWork() uint32 {
	a.clock.Refresh()
	work := a.pollers.RunAll(a)
	a.pollers.Apply()
	a.counters.IncDutyCycles()
	a.counters.AddWorkDone(work)
	return work
}

// Counters exposes the agent's atomic counters for an observability sidecar
// to register against a Prometheus registry.
func (a *Agent) Counters() *counters.Counters { return a.counters }

// Labels returns the (agent_id, agent_name) pair the counters should be
// registered under (spec.md §6's counter label convention).
func (a *Agent) Labels() counters.Labels {
	return counters.Labels{AgentID: strconv.FormatInt(a.ids.NodeID, 10), AgentName: a.cfg.BlockName}
}

func (a *Agent) pollTimers() uint32 {
	now := a.clock.NowNs()
	return a.timers.Poll(now, a.timerFireFunc)
}

func (a *Agent) pollProperties() uint32 {
	now := a.clock.NowNs()
	var fired uint32
	for _, cfg := range a.pubs.All() {
		tsNs, err := a.store.LastUpdateNs(cfg.Field)
		if err != nil {
			continue
		}
		if !strategy.ShouldPublish(cfg.Strategy, cfg.LastPublishedNs, cfg.NextScheduledNs, tsNs, now) {
			continue
		}
		a.machine.Dispatch(hsm.Event{Type: evPublishProperty, NowNs: now, Name: cfg.Field, Ext: cfg})
		cfg.LastPublishedNs = tsNs
		cfg.NextScheduledNs = strategy.NextTime(cfg.Strategy, now)
		a.counters.IncPropertiesPublished()
		fired++
	}
	return fired
}

func (a *Agent) pollControlStream() uint32 {
	if a.controlAdapter == nil {
		return 0
	}
	return a.controlAdapter.poll()
}

func (a *Agent) pollInputStreams() uint32 {
	var n uint32
	for _, ad := range a.inputAdapters {
		n += ad.poll()
	}
	return n
}

func (a *Agent) deriveStats(nowNs int64) {
	elapsed := nowNs - a.lastStatsTimeNs
	if elapsed <= 0 {
		return
	}
	msgCount := a.msgCount
	workCount := a.counters.TotalWorkDone()
	msgRate := float64(msgCount-a.lastMsgCount) / (float64(elapsed) / float64(time.Second))
	workRate := float64(workCount-a.lastWorkCount) / (float64(elapsed) / float64(time.Second))
	a.lastStatsTimeNs = nowNs
	a.lastMsgCount = msgCount
	a.lastWorkCount = workCount
	a.statusProxy.Publish(nowNs, "Stats", property.TupleValue([]property.Value{
		property.FloatValue(msgRate),
		property.FloatValue(workRate),
	}))
}

func (a *Agent) publishGCStats(nowNs int64) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	a.statusProxy.Publish(nowNs, "GCStats", property.TupleValue([]property.Value{
		property.IntValue(int64(mem.HeapAlloc)),
		property.IntValue(int64(mem.NumGC)),
	}))
}

// logError reports a handler error at Warn, throttled to one line per
// second per (event_name, error_type) pair so a noisy repeating failure
// does not flood the log.
func (a *Agent) logError(eventName string, err error) {
	if err == nil {
		return
	}
	key := eventName + ":" + errorKind(err)
	lim, ok := a.errLimiter[key]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(1), 1)
		a.errLimiter[key] = lim
	}
	if !lim.Allow() {
		return
	}
	a.logger.Warn("hsm: handler error", "event", eventName, "error", err.Error())
}

func errorKind(err error) string {
	switch err.(type) {
	case *rtcerrors.PropertyNotFoundError:
		return "PropertyNotFound"
	case *rtcerrors.PropertyTypeError:
		return "PropertyType"
	case *rtcerrors.PropertyAccessError:
		return "PropertyAccess"
	case *rtcerrors.PropertyValidationError:
		return "PropertyValidation"
	case *rtcerrors.StreamNotFoundError:
		return "StreamNotFound"
	default:
		return "Other"
	}
}
