// Package counters implements the agent's duty-cycle counters (spec.md §6)
// and their Prometheus exposition. Counters are plain atomic integers
// updated by the duty-cycle loop on every pass; the Prometheus registry wraps them
// as gauge functions rather than duplicating the counts, so there is a
// single source of truth for each value.
package counters

import (
	"fmt"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Counters holds the three duty-cycle counters named in spec.md §6:
// total duty cycles run, total work units reported by do_work, and total
// properties published.
type Counters struct {
	totalDutyCycles     atomic.Uint64
	totalWorkDone       atomic.Uint64
	propertiesPublished atomic.Uint64
}

// New creates a zeroed Counters.
func New() *Counters { return &Counters{} }

// IncDutyCycles records one duty-cycle pass.
func (c *Counters) IncDutyCycles() { c.totalDutyCycles.Add(1) }

// AddWorkDone records work units reported by one do_work pass.
func (c *Counters) AddWorkDone(n uint32) { c.totalWorkDone.Add(uint64(n)) }

// IncPropertiesPublished records one successful property publish.
func (c *Counters) IncPropertiesPublished() { c.propertiesPublished.Add(1) }

// TotalDutyCycles returns the current duty-cycle count.
func (c *Counters) TotalDutyCycles() uint64 { return c.totalDutyCycles.Load() }

// TotalWorkDone returns the current summed work count.
func (c *Counters) TotalWorkDone() uint64 { return c.totalWorkDone.Load() }

// PropertiesPublished returns the current published-property count.
func (c *Counters) PropertiesPublished() uint64 { return c.propertiesPublished.Load() }

// Labels identifies the agent instance these counters belong to, per
// spec.md §6's "<counter_name>: NodeId=<id> Name=<name>" display-label
// convention and its Prometheus (agent_id, agent_name) label pair.
type Labels struct {
	AgentID   string
	AgentName string
}

// Registry exposes Counters as Prometheus gauge-valued metrics on their own
// registry (kept separate from prometheus.DefaultRegisterer so an embedding
// process can run its own metrics alongside this agent's without
// collisions).
type Registry struct {
	reg *prometheus.Registry
}

// NewRegistry builds a Registry that reads live values from c on every
// scrape — each metric is a GaugeFunc, so there is no periodic copy step.
func NewRegistry(c *Counters, labels Labels) *Registry {
	reg := prometheus.NewRegistry()
	constLabels := prometheus.Labels{"agent_id": labels.AgentID, "agent_name": labels.AgentName}

	reg.MustRegister(
		prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name:        "rtcagent_total_duty_cycles",
				Help:        fmt.Sprintf("total duty cycles: NodeId=%s Name=%s", labels.AgentID, labels.AgentName),
				ConstLabels: constLabels,
			},
			func() float64 { return float64(c.TotalDutyCycles()) },
		),
		prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name:        "rtcagent_total_work_done",
				Help:        fmt.Sprintf("total work done: NodeId=%s Name=%s", labels.AgentID, labels.AgentName),
				ConstLabels: constLabels,
			},
			func() float64 { return float64(c.TotalWorkDone()) },
		),
		prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name:        "rtcagent_properties_published",
				Help:        fmt.Sprintf("properties published: NodeId=%s Name=%s", labels.AgentID, labels.AgentName),
				ConstLabels: constLabels,
			},
			func() float64 { return float64(c.PropertiesPublished()) },
		),
	)
	return &Registry{reg: reg}
}

// Handler returns the http.Handler to mount at the metrics listen address
// (METRICS_LISTEN_ADDR, spec.md §6 extension).
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}
