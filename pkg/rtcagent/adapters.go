package rtcagent

import (
	"github.com/dgamroth/rtcagent/internal/hsm"
	"github.com/dgamroth/rtcagent/internal/property"
	"github.com/dgamroth/rtcagent/internal/transport"
	"github.com/dgamroth/rtcagent/internal/wire"
)

// streamAdapter implements spec.md §4.7: polls one or more subscriptions
// with a fixed fragment limit per cycle, reassembles fragments, decodes the
// wire message, and dispatches it as an event named by the decoded key.
// The control adapter (one subscription, fragment limit 1) and input
// adapters (N subscriptions, fragment limit 10) are both built from this
// same type — they differ only in which subscriptions and limit they use.
type streamAdapter struct {
	agent          *Agent
	subscriptions  []transport.Subscription
	assemblers     []*transport.Assembler
	// fragmentHandlers[i] feeds assemblers[i] and is built once at
	// construction so poll() never allocates a fresh closure per duty cycle
	// (spec.md §5's allocation discipline) — only the one-time setup cost at
	// on_start pays for the closure capturing each assembler.
	fragmentHandlers []transport.FragmentHandler
	fragmentLimit    int
}

func newStreamAdapter(a *Agent, subIndexes []int, fragmentLimit int) *streamAdapter {
	ad := &streamAdapter{agent: a, fragmentLimit: fragmentLimit}
	for _, idx := range subIndexes {
		sub, err := a.streams.Subscription(idx)
		if err != nil {
			a.logger.Warn("stream adapter: subscription not found", "index", idx, "error", err.Error())
			continue
		}
		ad.subscriptions = append(ad.subscriptions, sub)
		asm := transport.NewAssembler(ad.handlerFor(sub.Name()))
		ad.assemblers = append(ad.assemblers, asm)
		ad.fragmentHandlers = append(ad.fragmentHandlers, func(data []byte, flag transport.FragmentFlag) {
			asm.OnFragment(data, flag)
		})
	}
	return ad
}

func (ad *streamAdapter) handlerFor(streamName string) func(data []byte) {
	return func(data []byte) {
		msg, _, err := wire.Decode(data)
		if err != nil {
			ad.agent.logger.Warn("stream adapter: decode failed", "stream", streamName, "error", err.Error())
			return
		}
		ad.dispatch(msg)
	}
}

func (ad *streamAdapter) dispatch(msg wire.Message) {
	a := ad.agent
	a.msgCount++
	now := a.clock.NowNs()

	if a.cfg.LateMessageThreshNs > 0 && now-msg.Header.TimestampNs > a.cfg.LateMessageThreshNs {
		a.machine.Dispatch(hsm.Event{Type: evLateMessage, NowNs: now, Name: msg.Key})
		return
	}

	t, ok := a.interner.Lookup(msg.Key)
	if !ok {
		a.logger.Warn("stream adapter: unknown event key", "key", msg.Key)
		return
	}

	ev := hsm.Event{Type: t, NowNs: now, Name: msg.Key}
	if t >= evDynamicBase {
		// Property-key event: absent value means read, present value means
		// write (spec.md §4.4). FormatNothing is the wire encoding of
		// "absent", matching property.Nothing.
		if msg.Value.Format != property.FormatNothing {
			ev.Ext = msg.Value
		}
	}
	a.machine.Dispatch(ev)
}

// poll drives every subscription through its assembler, up to the
// adapter's fragment limit each, and returns the total fragments delivered.
func (ad *streamAdapter) poll() uint32 {
	var total uint32
	for i, sub := range ad.subscriptions {
		n := sub.Poll(ad.fragmentHandlers[i], ad.fragmentLimit)
		total += uint32(n)
	}
	return total
}
