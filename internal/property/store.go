package property

import (
	"time"

	"github.com/dgamroth/rtcagent/internal/rtcerrors"
)

// AccessMode is a bitmask of READABLE/WRITABLE per spec.md §3.
type AccessMode uint8

const (
	Readable AccessMode = 1 << iota
	Writable
)

func (m AccessMode) CanRead() bool  { return m&Readable != 0 }
func (m AccessMode) CanWrite() bool { return m&Writable != 0 }

// Validator validates a proposed write before it is committed. A non-nil
// error aborts the write and is surfaced as PropertyValidationError.
type Validator func(Value) error

// Getter computes a property's value on read instead of returning the stored
// value verbatim (spec.md §3, "optional computing getter").
type Getter func() Value

// Descriptor is the static definition of one property, normally emitted by
// the code generator from a YAML manifest (spec.md §3's "Added — Property
// manifest"). A hand-written agent may also build these directly.
type Descriptor struct {
	Key      string
	Type     Format
	Access   AccessMode
	Validate Validator
	Compute  Getter
}

// property is the live, mutable state backing one Descriptor.
type property struct {
	desc         Descriptor
	value        Value
	lastUpdateNs int64
}

// Store is the statically-keyed property map described in spec.md §3. It is
// owned exclusively by the base agent.
type Store struct {
	order []string
	byKey map[string]*property
}

// NewStore builds a Store from a fixed set of descriptors. The key set is
// closed after construction: no property can be added or removed afterward,
// matching "a small fixed set of symbolic keys known at compile time".
func NewStore(descriptors []Descriptor) *Store {
	s := &Store{
		order: make([]string, 0, len(descriptors)),
		byKey: make(map[string]*property, len(descriptors)),
	}
	for _, d := range descriptors {
		s.order = append(s.order, d.Key)
		s.byKey[d.Key] = &property{desc: d, lastUpdateNs: -1}
	}
	return s
}

// Keys returns the property keys in declaration order.
func (s *Store) Keys() []string { return s.order }

// Has reports whether key is part of this store's fixed key set.
func (s *Store) Has(key string) bool {
	_, ok := s.byKey[key]
	return ok
}

// Access returns the access mode for key.
func (s *Store) Access(key string) (AccessMode, error) {
	p, ok := s.byKey[key]
	if !ok {
		return 0, &rtcerrors.PropertyNotFoundError{Name: key}
	}
	return p.desc.Access, nil
}

// Get reads the current value of key. If the property declares a Getter, it
// is invoked and its result returned instead of the stored value; this never
// mutates last_update_ns, matching the invariant "reads never mutate it".
func (s *Store) Get(key string) (Value, error) {
	p, ok := s.byKey[key]
	if !ok {
		return Value{}, &rtcerrors.PropertyNotFoundError{Name: key}
	}
	if !p.desc.Access.CanRead() {
		return Value{}, &rtcerrors.PropertyAccessError{Name: key, Mode: "read"}
	}
	if p.desc.Compute != nil {
		return p.desc.Compute(), nil
	}
	return p.value, nil
}

// LastUpdateNs returns the timestamp of the most recent successful write to
// key, or -1 if it has never been written.
func (s *Store) LastUpdateNs(key string) (int64, error) {
	p, ok := s.byKey[key]
	if !ok {
		return 0, &rtcerrors.PropertyNotFoundError{Name: key}
	}
	return p.lastUpdateNs, nil
}

// Set validates and commits a write to key at nowNs. Type mismatches,
// read-only properties, and validator rejections all return a surfaced
// error without mutating the stored value or last_update_ns (the invariant
// "last_update_ns is monotonic per key" is therefore preserved even on a
// rejected write).
func (s *Store) Set(key string, v Value, nowNs int64) error {
	p, ok := s.byKey[key]
	if !ok {
		return &rtcerrors.PropertyNotFoundError{Name: key}
	}
	if !p.desc.Access.CanWrite() {
		return &rtcerrors.PropertyAccessError{Name: key, Mode: "write"}
	}
	if p.desc.Type != v.Format {
		return &rtcerrors.PropertyTypeError{Name: key, Expected: p.desc.Type.String(), Actual: v.Format.String()}
	}
	if p.desc.Validate != nil {
		if err := p.desc.Validate(v); err != nil {
			return &rtcerrors.PropertyValidationError{Name: key, Message: err.Error()}
		}
	}
	p.value = v
	p.lastUpdateNs = nowNs
	return nil
}

// NowNs is a small helper so callers without a clock.Cache handy (e.g. unit
// tests constructing a Store directly) can still stamp writes realistically.
// The agent core always passes an explicit nowNs from its clock cache
// instead of calling this.
func NowNs() int64 { return time.Now().UnixNano() }
