// Package proxy implements the status and property proxies of spec.md
// §4.6: zero-copy message encoding plus claim/offer dispatch to the
// transport layer. Both proxy kinds share the same encode-and-publish core;
// they are kept as two thin named types (StatusProxy, PropertyProxy) only
// because the HSM talks to them by distinct roles, matching spec.md's
// "Status and property proxies" section heading.
package proxy

import (
	"context"
	"log/slog"

	"golang.org/x/time/rate"

	"github.com/dgamroth/rtcagent/internal/property"
	"github.com/dgamroth/rtcagent/internal/rtcerrors"
	"github.com/dgamroth/rtcagent/internal/transport"
	"github.com/dgamroth/rtcagent/internal/wire"
)

// IDGenerator produces the monotonically increasing 64-bit correlation ids
// described in spec.md §6. It is owned by the base agent and shared by both
// proxies. NodeID is the agent's BLOCK_ID (spec.md §6: "64-bit node id used
// by the id generator"), carried alongside the sequence so callers building
// globally-unique ids (node id, sequence) pairs — e.g. a multi-agent
// deployment's tracing layer — can combine them; the correlation id itself
// stays a plain per-agent sequence.
type IDGenerator struct {
	NodeID int64
	next   int64
}

// NewIDGenerator creates a generator for the given node id.
func NewIDGenerator(nodeID int64) *IDGenerator {
	return &IDGenerator{NodeID: nodeID}
}

// Next returns the next correlation id, starting at 1.
func (g *IDGenerator) Next() int64 {
	g.next++
	return g.next
}

// core is the shared encode/publish machinery behind both proxy types.
type core struct {
	scratch    []byte
	valScratch []byte
	streams    *transport.Set
	ids        *IDGenerator
	logger     *slog.Logger
	tag        string

	dropLimiter map[string]*rate.Limiter
}

func newCore(streams *transport.Set, ids *IDGenerator, logger *slog.Logger, tag string) core {
	if logger == nil {
		logger = slog.Default()
	}
	return core{
		scratch:     make([]byte, 0, 256),
		valScratch:  make([]byte, 0, 256),
		streams:     streams,
		ids:         ids,
		logger:      logger,
		tag:         tag,
		dropLimiter: make(map[string]*rate.Limiter),
	}
}

// logDrop reports a dropped publish at the given level, throttled to one
// line per second per (stream, reason) pair so a flapping back-pressure
// condition does not flood the log (spec.md's ambient-logging intent).
func (c *core) logDrop(level slog.Level, reason, stream, key string, args ...any) {
	lkey := stream + ":" + reason
	lim, ok := c.dropLimiter[lkey]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(1), 1)
		c.dropLimiter[lkey] = lim
	}
	if !lim.Allow() {
		return
	}
	c.logger.Log(context.Background(), level, reason, append([]any{"stream", stream, "key", key}, args...)...)
}

// publish encodes key/value under the given header and sends it on
// streamIndex. Scalar-shaped values (everything except Array/Tensor) go
// through try_claim into a single contiguous region; Array/Tensor values go
// through offer as a two-fragment vectored write (prefix, then value),
// per spec.md §4.6.
//
// try_claim returning false, or offer reporting back-pressure, is absorbed
// silently (the publish is simply dropped for this cycle — spec.md §5, §7).
// offer reporting NotConnected/AdminAction is logged at Warn and also
// absorbed; neither case returns an error to the caller, matching the
// contract that publish never interrupts the duty cycle.
func (c *core) publish(streamIndex int, nowNs int64, key string, value property.Value) {
	pub, err := c.streams.Publication(streamIndex)
	if err != nil {
		c.logger.Warn("proxy: publish: stream not found", "stream_index", streamIndex, "key", key, "error", err.Error())
		return
	}

	header := wire.Header{TimestampNs: nowNs, CorrelationID: c.ids.Next(), Tag: []byte(c.tag)}

	if value.Format == property.FormatArray || value.Format == property.FormatTensor {
		c.publishVectored(pub, header, key, value)
		return
	}
	c.publishClaimed(pub, header, key, value)
}

func (c *core) publishClaimed(pub transport.Publication, header wire.Header, key string, value property.Value) {
	c.scratch = wire.EncodePrefix(c.scratch[:0], header, key)
	var err error
	c.scratch, err = wire.EncodeValue(c.scratch, value)
	if err != nil {
		c.logger.Warn("proxy: encode failed, dropping publish", "key", key, "error", err.Error())
		return
	}

	claim, ok := pub.TryClaim(len(c.scratch))
	if !ok {
		// Back-pressure or no space: drop silently (rate-limited log only)
		// per spec.md §4.6/§7.
		c.logDrop(slog.LevelDebug, "proxy: claim unavailable, dropping publish", pub.Name(), key)
		return
	}
	dst := claim.Bytes()
	if len(dst) < len(c.scratch) {
		// Encode failure due to buffer too small is a programmer error per
		// spec.md §4.6, not a runtime one — abort and drop rather than panic.
		_ = claim.Abort()
		return
	}
	copy(dst, c.scratch)
	_ = claim.Commit()
}

func (c *core) publishVectored(pub transport.Publication, header wire.Header, key string, value property.Value) {
	c.scratch = wire.EncodePrefix(c.scratch[:0], header, key)
	var err error
	c.valScratch, err = wire.EncodeValue(c.valScratch[:0], value)
	if err != nil {
		c.logger.Warn("proxy: encode failed, dropping publish", "key", key, "error", err.Error())
		return
	}

	switch res := pub.Offer([][]byte{c.scratch, c.valScratch}); res {
	case transport.OfferSuccess:
		return
	case transport.OfferBackPressure:
		err := &rtcerrors.PublicationBackPressureError{Stream: pub.Name(), MaxAttempts: 1}
		c.logDrop(slog.LevelDebug, "proxy: offer back-pressure, dropping publish", pub.Name(), key, "error", err.Error())
	case transport.OfferNotConnected, transport.OfferAdminAction:
		err := &rtcerrors.PublicationFailureError{Stream: pub.Name(), MaxAttempts: 1}
		c.logDrop(slog.LevelWarn, "proxy: offer failed, dropping publish", pub.Name(), key, "error", err.Error())
	}
}

// StatusProxy publishes agent status/event responses (state changes,
// property-read echoes, exceptions) on the status output stream.
type StatusProxy struct {
	core
	streamIndex int
}

// NewStatusProxy creates a StatusProxy bound to streamIndex (conventionally
// the STATUS_URI/STATUS_STREAM_ID stream from spec.md §6).
func NewStatusProxy(streams *transport.Set, ids *IDGenerator, logger *slog.Logger, tag string, streamIndex int) *StatusProxy {
	return &StatusProxy{core: newCore(streams, ids, logger, tag), streamIndex: streamIndex}
}

// Publish sends one status event keyed by name carrying value.
func (p *StatusProxy) Publish(nowNs int64, name string, value property.Value) {
	p.core.publish(p.streamIndex, nowNs, name, value)
}

// PropertyProxy publishes individual property values on a caller-selected
// output stream, per the (field, stream_index) pairing in PublicationConfig.
type PropertyProxy struct {
	core
}

// NewPropertyProxy creates a PropertyProxy. Unlike StatusProxy it is not
// bound to a single stream index — each Publish call supplies the stream
// index carried by the PublicationConfig being serviced.
func NewPropertyProxy(streams *transport.Set, ids *IDGenerator, logger *slog.Logger, tag string) *PropertyProxy {
	return &PropertyProxy{core: newCore(streams, ids, logger, tag)}
}

// Publish encodes field=value and sends it on streamIndex, matching the
// call shape in spec.md §4.4's Playing-state PublishProperty handler:
// "property_proxy.publish(stream_index, field, value, name, correlation_id,
// now)". The name/correlation_id inputs from that signature are folded into
// the shared core (tag and IDGenerator respectively); callers only choose
// the stream, field and value.
func (p *PropertyProxy) Publish(streamIndex int, nowNs int64, field string, value property.Value) {
	p.core.publish(streamIndex, nowNs, field, value)
}
