// Package transport declares the abstract pub/sub stream contract the agent
// core is built against (spec.md §6: "treated as an abstract 'stream'
// supporting try_claim(len) -> Option<Claim>, offer(fragments), and
// poll(handler, limit) -> u32"). The concrete wire transport, codec framing
// below the Message level, and network I/O are external collaborators and
// out of scope for this module — callers supply their own Publication/
// Subscription implementations (or the in-memory one in this package, used
// by the CLI's demo mode and by the test suite).
package transport

import "github.com/dgamroth/rtcagent/internal/rtcerrors"

// Claim is a zero-copy writable region obtained from Publication.TryClaim.
// Exactly one of Commit or Abort must be called.
type Claim interface {
	Bytes() []byte
	Commit() error
	Abort() error
}

// OfferResult mirrors the transport contract in spec.md §6.
type OfferResult int

const (
	OfferSuccess OfferResult = iota
	OfferBackPressure
	OfferNotConnected
	OfferAdminAction
)

// Publication is one outbound stream.
type Publication interface {
	// TryClaim returns a Claim over a writable region of the given length,
	// or ok=false if no region is currently available (back-pressure).
	TryClaim(length int) (Claim, bool)
	// Offer publishes a vectored message (used for array/tensor payloads
	// that cannot be encoded directly into a single claimed region).
	Offer(fragments [][]byte) OfferResult
	// Name identifies the stream for error reporting and logging.
	Name() string
}

// FragmentHandler receives one raw fragment, tagged with its position
// within a possibly multi-fragment message, for an Assembler to reassemble.
type FragmentHandler func(data []byte, flag FragmentFlag)

// Subscription is one inbound stream.
type Subscription interface {
	// Poll invokes handler for up to limit fragments available right now
	// and returns the count delivered.
	Poll(handler FragmentHandler, limit int) int
	// Name identifies the stream for error reporting and logging.
	Name() string
}

// Set is the agent's open stream set: 1-based indices into Pub/Sub, matching
// PUB_DATA_STREAM_<N>/SUB_DATA_STREAM_<N> from spec.md §6. Index 0 is
// unused so that StreamIndex values read directly from
// PublicationConfig.StreamIndex without an off-by-one.
type Set struct {
	Pub []Publication
	Sub []Subscription
}

// Publication looks up a 1-based publication index, returning
// StreamNotFoundError if out of range.
func (s *Set) Publication(index int) (Publication, error) {
	if index < 1 || index > len(s.Pub) || s.Pub[index-1] == nil {
		return nil, &rtcerrors.StreamNotFoundError{StreamName: "pub_data", StreamIndex: index}
	}
	return s.Pub[index-1], nil
}

// Subscription looks up a 1-based subscription index.
func (s *Set) Subscription(index int) (Subscription, error) {
	if index < 1 || index > len(s.Sub) || s.Sub[index-1] == nil {
		return nil, &rtcerrors.StreamNotFoundError{StreamName: "sub_data", StreamIndex: index}
	}
	return s.Sub[index-1], nil
}
