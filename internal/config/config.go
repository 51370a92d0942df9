// Package config loads the agent's environment-variable configuration, per
// the table in spec.md §6. Grounded on the teacher's flat env-driven config
// loader, generalized from SNMP targets/community strings to the agent's
// identity, stream wiring, and timing settings.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dgamroth/rtcagent/internal/rtcerrors"
)

const (
	defaultHeartbeatPeriod = 10 * time.Second
	defaultStatsPeriod     = 5 * time.Second
	defaultGCStatsPeriod   = 10 * time.Second
	defaultMetricsAddr     = ":9477"
)

// StreamRef is one PUB_DATA_URI_<N>/SUB_DATA_URI_<N> entry: a transport URI
// paired with its numeric stream id, read in N-ascending order starting at 1
// until a gap is found.
type StreamRef struct {
	Index     int
	URI       string
	StreamID  string
}

// Config is the fully parsed environment configuration for one agent
// process.
type Config struct {
	BlockName string
	BlockID   string

	StatusURI      string
	StatusStreamID string

	ControlURI      string
	ControlStreamID string
	ControlFilter   string

	HeartbeatPeriod     time.Duration
	LateMessageThreshold time.Duration
	StatsPeriod         time.Duration
	GCStatsPeriod       time.Duration

	LogLevel string

	PubStreams []StreamRef
	SubStreams []StreamRef

	MetricsListenAddr   string
	PropertyManifestPath string
}

// Load reads the full environment table from spec.md §6 using lookup, a
// testable stand-in for os.LookupEnv.
func Load(lookup func(string) (string, bool)) (*Config, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}

	c := &Config{
		HeartbeatPeriod:     defaultHeartbeatPeriod,
		StatsPeriod:         defaultStatsPeriod,
		GCStatsPeriod:       defaultGCStatsPeriod,
		MetricsListenAddr:   defaultMetricsAddr,
	}

	var err error
	if c.BlockName, err = requireString(lookup, "BLOCK_NAME"); err != nil {
		return nil, err
	}
	if c.BlockID, err = requireString(lookup, "BLOCK_ID"); err != nil {
		return nil, err
	}
	if c.StatusURI, err = requireString(lookup, "STATUS_URI"); err != nil {
		return nil, err
	}
	if c.StatusStreamID, err = requireString(lookup, "STATUS_STREAM_ID"); err != nil {
		return nil, err
	}
	if c.ControlURI, err = requireString(lookup, "CONTROL_URI"); err != nil {
		return nil, err
	}
	if c.ControlStreamID, err = requireString(lookup, "CONTROL_STREAM_ID"); err != nil {
		return nil, err
	}
	c.ControlFilter, _ = lookup("CONTROL_FILTER")

	if c.HeartbeatPeriod, err = optionalDurationNs(lookup, "HEARTBEAT_PERIOD_NS", defaultHeartbeatPeriod); err != nil {
		return nil, err
	}
	if c.LateMessageThreshold, err = optionalDurationNs(lookup, "LATE_MESSAGE_THRESHOLD_NS", 0); err != nil {
		return nil, err
	}
	if c.StatsPeriod, err = optionalDurationNs(lookup, "STATS_PERIOD_NS", defaultStatsPeriod); err != nil {
		return nil, err
	}
	if c.GCStatsPeriod, err = optionalDurationNs(lookup, "GC_STATS_PERIOD_NS", defaultGCStatsPeriod); err != nil {
		return nil, err
	}

	c.LogLevel, _ = lookup("LOG_LEVEL")
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}

	c.PubStreams = loadStreamRefs(lookup, "PUB_DATA_URI_", "PUB_DATA_STREAM_")
	c.SubStreams = loadStreamRefs(lookup, "SUB_DATA_URI_", "SUB_DATA_STREAM_")

	if v, ok := lookup("METRICS_LISTEN_ADDR"); ok && v != "" {
		c.MetricsListenAddr = v
	}
	c.PropertyManifestPath, _ = lookup("PROPERTY_MANIFEST_PATH")

	return c, nil
}

func requireString(lookup func(string) (string, bool), name string) (string, error) {
	v, ok := lookup(name)
	if !ok || strings.TrimSpace(v) == "" {
		return "", &rtcerrors.EnvironmentVariableError{Name: name}
	}
	return v, nil
}

func optionalDurationNs(lookup func(string) (string, bool), name string, def time.Duration) (time.Duration, error) {
	v, ok := lookup(name)
	if !ok || v == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, &rtcerrors.EnvironmentVariableError{Name: name}
	}
	return time.Duration(n), nil
}

// loadStreamRefs reads PUB_DATA_URI_1/PUB_DATA_STREAM_1, _2, _3, ... in
// order, stopping at the first missing index (spec.md §6's "N-indexed
// stream pairs").
func loadStreamRefs(lookup func(string) (string, bool), uriPrefix, streamPrefix string) []StreamRef {
	var refs []StreamRef
	for i := 1; ; i++ {
		n := strconv.Itoa(i)
		uri, ok := lookup(uriPrefix + n)
		if !ok || uri == "" {
			break
		}
		streamID, _ := lookup(streamPrefix + n)
		refs = append(refs, StreamRef{Index: i, URI: uri, StreamID: streamID})
	}
	return refs
}
