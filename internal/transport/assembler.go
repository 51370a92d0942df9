package transport

// FragmentFlag marks a fragment's position within a possibly-multi-fragment
// message, per spec.md §4.7's "FragmentAssembler wrapping a handler to
// reassemble multi-fragment payloads".
type FragmentFlag uint8

const (
	FragUnfragmented FragmentFlag = iota
	FragBegin
	FragMiddle
	FragEnd
)

// MessageHandler receives one fully reassembled message.
type MessageHandler func(data []byte)

// Assembler reconstructs complete messages from begin/continue/end flagged
// fragments and invokes a MessageHandler once per complete message. It owns
// a reusable buffer so steady-state reassembly does not allocate once the
// buffer has grown to the largest message seen.
type Assembler struct {
	buf     []byte
	handler MessageHandler
}

// NewAssembler wraps handler in a fragment reassembler.
func NewAssembler(handler MessageHandler) *Assembler {
	return &Assembler{handler: handler}
}

// OnFragment feeds one raw fragment through the assembler. Unfragmented
// fragments are dispatched immediately; begin/middle fragments accumulate
// into buf; an end fragment completes the message and dispatches it.
func (a *Assembler) OnFragment(data []byte, flag FragmentFlag) {
	switch flag {
	case FragUnfragmented:
		a.handler(data)
	case FragBegin:
		a.buf = append(a.buf[:0], data...)
	case FragMiddle:
		a.buf = append(a.buf, data...)
	case FragEnd:
		a.buf = append(a.buf, data...)
		a.handler(a.buf)
	}
}
