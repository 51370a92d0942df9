package proxy

import (
	"context"
	"log/slog"
	"testing"

	"github.com/dgamroth/rtcagent/internal/property"
	"github.com/dgamroth/rtcagent/internal/transport"
	"github.com/dgamroth/rtcagent/internal/wire"
)

// countingHandler counts how many records reach it, used to verify the
// dropped-publish log is rate-limited rather than firing on every call.
type countingHandler struct{ n *int }

func (h countingHandler) Enabled(context.Context, slog.Level) bool  { return true }
func (h countingHandler) Handle(context.Context, slog.Record) error { *h.n++; return nil }
func (h countingHandler) WithAttrs(attrs []slog.Attr) slog.Handler  { return h }
func (h countingHandler) WithGroup(name string) slog.Handler        { return h }

func TestIDGeneratorStartsAtOneAndIncrements(t *testing.T) {
	g := NewIDGenerator(7)
	if g.NodeID != 7 {
		t.Fatalf("NodeID = %d, want 7", g.NodeID)
	}
	if id := g.Next(); id != 1 {
		t.Errorf("first id = %d, want 1", id)
	}
	if id := g.Next(); id != 2 {
		t.Errorf("second id = %d, want 2", id)
	}
}

func newTestStreams(capacity int) (*transport.Set, *transport.MemoryLink) {
	link := transport.NewMemoryLink("status", capacity)
	set := &transport.Set{Pub: []transport.Publication{link.Publication()}}
	return set, link
}

func TestStatusProxyPublishScalarClaimed(t *testing.T) {
	streams, link := newTestStreams(4)
	ids := NewIDGenerator(1)
	p := NewStatusProxy(streams, ids, nil, "agent1", 1)

	p.Publish(100, "Heartbeat", property.SymbolValue("Playing"))

	queued := link.Drain()
	if len(queued) != 1 {
		t.Fatalf("expected 1 message queued, got %d", len(queued))
	}
	msg, _, err := wire.Decode(queued[0])
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg.Key != "Heartbeat" {
		t.Errorf("key = %q, want Heartbeat", msg.Key)
	}
	if msg.Value.Symbol != "Playing" {
		t.Errorf("value = %q, want Playing", msg.Value.Symbol)
	}
	if msg.Header.TimestampNs != 100 {
		t.Errorf("timestamp = %d, want 100", msg.Header.TimestampNs)
	}
}

func TestPropertyProxyPublishArrayVectored(t *testing.T) {
	streams, link := newTestStreams(4)
	ids := NewIDGenerator(1)
	p := NewPropertyProxy(streams, ids, nil, "agent1")

	arrValue := property.ArrayValueOf(property.ArrayValue{Elem: property.ElemInt64, Ints: []int64{1, 2, 3}})
	p.Publish(1, 200, "Samples", arrValue)

	queued := link.Drain()
	if len(queued) != 1 {
		t.Fatalf("expected 1 message queued via vectored offer, got %d", len(queued))
	}
	msg, _, err := wire.Decode(queued[0])
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg.Key != "Samples" {
		t.Errorf("key = %q, want Samples", msg.Key)
	}
	if msg.Value.Format != property.FormatArray {
		t.Fatalf("expected FormatArray, got %v", msg.Value.Format)
	}
	if len(msg.Value.Array.Ints) != 3 {
		t.Errorf("expected 3 ints, got %d", len(msg.Value.Array.Ints))
	}
}

func TestPublishSilentlyDropsOnBackPressure(t *testing.T) {
	streams, link := newTestStreams(1)
	ids := NewIDGenerator(1)
	p := NewStatusProxy(streams, ids, nil, "agent1", 1)

	// Fill capacity so the next claim fails.
	p.Publish(1, "First", property.IntValue(1))
	p.Publish(2, "Second", property.IntValue(2)) // should be dropped, not panic

	queued := link.Drain()
	if len(queued) != 1 {
		t.Fatalf("expected only the first publish to land, got %d", len(queued))
	}
}

func TestDroppedPublishLoggingIsRateLimited(t *testing.T) {
	var n int
	logger := slog.New(countingHandler{n: &n})

	streams, _ := newTestStreams(1)
	ids := NewIDGenerator(1)
	p := NewStatusProxy(streams, ids, logger, "agent1", 1)

	// First publish fills the single-capacity queue; every publish after
	// that hits the same claim-unavailable drop path on the same stream.
	p.Publish(1, "First", property.IntValue(1))
	n = 0
	for i := 0; i < 10; i++ {
		p.Publish(2, "Second", property.IntValue(2))
	}
	if n != 1 {
		t.Errorf("expected the rate limiter to allow exactly 1 log line across 10 drops, got %d", n)
	}
}

func TestPublishUnknownStreamIndexLogsAndDoesNotPanic(t *testing.T) {
	streams := &transport.Set{}
	ids := NewIDGenerator(1)
	p := NewStatusProxy(streams, ids, nil, "agent1", 5)

	// Must not panic even though stream 5 was never opened.
	p.Publish(1, "Heartbeat", property.Nothing)
}
