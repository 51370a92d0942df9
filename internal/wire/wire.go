// Package wire implements the fixed binary message codec described in
// spec.md §6: a length-prefixed, self-describing record with a fixed header
// (timestamp, correlation id, tag), a discriminated format byte, a key
// field, and a value field shaped by the format. Bit-exact compatibility
// with any specific external codec is not required — only round-trip
// stability (encode ∘ decode = identity) per spec.md §6 and the invariant
// list in spec.md §8.
//
// Encoding is little-endian throughout, following the counter-label byte
// order convention spelled out in spec.md §6.
package wire

import (
	"encoding/binary"
	"fmt"

	"github.com/dgamroth/rtcagent/internal/property"
)

// Header is the fixed prefix of every message.
type Header struct {
	TimestampNs   int64
	CorrelationID int64
	Tag           []byte
}

// Message is a fully decoded wire message: header, key and value.
type Message struct {
	Header Header
	Key    string
	Value  property.Value
}

// Encode appends the wire encoding of msg to dst and returns the extended
// slice. dst is typically a reused scratch buffer (spec.md §4.6's
// "reusable scratch buffer"); Encode never allocates beyond what append
// needs to grow dst, so a dst with sufficient capacity makes this
// allocation-free.
func Encode(dst []byte, msg Message) ([]byte, error) {
	dst = EncodePrefix(dst, msg.Header, msg.Key)
	return EncodeValue(dst, msg.Value)
}

// EncodePrefix appends the header and key fields only, without the value.
// Proxies use this to build the first fragment of a vectored offer() for
// array/tensor payloads (spec.md §4.6).
func EncodePrefix(dst []byte, header Header, key string) []byte {
	dst = appendInt64(dst, header.TimestampNs)
	dst = appendInt64(dst, header.CorrelationID)
	dst = appendBytes(dst, header.Tag)
	dst = appendBytes(dst, []byte(key))
	return dst
}

// EncodeValue appends just the format-tagged value encoding to dst. Exported
// so proxies can build the second fragment of a vectored offer().
func EncodeValue(dst []byte, v property.Value) ([]byte, error) {
	return encodeValue(dst, v)
}

// Decode parses a Message from the front of src and returns the number of
// bytes consumed.
func Decode(src []byte) (Message, int, error) {
	var msg Message
	off := 0

	ts, n, err := readInt64(src[off:])
	if err != nil {
		return msg, 0, fmt.Errorf("wire: decode timestamp: %w", err)
	}
	msg.Header.TimestampNs = ts
	off += n

	cid, n, err := readInt64(src[off:])
	if err != nil {
		return msg, 0, fmt.Errorf("wire: decode correlation id: %w", err)
	}
	msg.Header.CorrelationID = cid
	off += n

	tag, n, err := readBytes(src[off:])
	if err != nil {
		return msg, 0, fmt.Errorf("wire: decode tag: %w", err)
	}
	msg.Header.Tag = tag
	off += n

	keyBytes, n, err := readBytes(src[off:])
	if err != nil {
		return msg, 0, fmt.Errorf("wire: decode key: %w", err)
	}
	msg.Key = string(keyBytes)
	off += n

	val, n, err := decodeValue(src[off:])
	if err != nil {
		return msg, 0, fmt.Errorf("wire: decode value: %w", err)
	}
	msg.Value = val
	off += n

	return msg, off, nil
}

// ── scalar helpers ──────────────────────────────────────────────────────

func appendInt64(dst []byte, v int64) []byte {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(v))
	return append(dst, buf[:]...)
}

func readInt64(src []byte) (int64, int, error) {
	if len(src) < 8 {
		return 0, 0, errShort("int64", 8, len(src))
	}
	return int64(binary.LittleEndian.Uint64(src[:8])), 8, nil
}

func appendUint32(dst []byte, v uint32) []byte {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	return append(dst, buf[:]...)
}

func readUint32(src []byte) (uint32, int, error) {
	if len(src) < 4 {
		return 0, 0, errShort("uint32", 4, len(src))
	}
	return binary.LittleEndian.Uint32(src[:4]), 4, nil
}

// appendBytes writes a 4-byte little-endian length prefix followed by the
// bytes themselves.
func appendBytes(dst []byte, b []byte) []byte {
	dst = appendUint32(dst, uint32(len(b)))
	return append(dst, b...)
}

func readBytes(src []byte) ([]byte, int, error) {
	l, n, err := readUint32(src)
	if err != nil {
		return nil, 0, err
	}
	off := n
	if len(src) < off+int(l) {
		return nil, 0, errShort("bytes payload", off+int(l), len(src))
	}
	b := src[off : off+int(l)]
	return b, off + int(l), nil
}

func errShort(what string, want, got int) error {
	return fmt.Errorf("wire: short buffer decoding %s: want %d bytes, have %d", what, want, got)
}
