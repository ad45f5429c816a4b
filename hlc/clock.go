// Package hlc implements a Hybrid Logical Clock: a causal timestamp that
// combines wall-clock milliseconds with a logical counter so that
// concurrent events on different nodes still receive a total order.
package hlc

import (
	"encoding/binary"
	"sync"
	"time"
)

// Timestamp is a single HLC reading: physical time in milliseconds,
// a logical tie-breaker, and the node that produced it. Ordering is
// lexicographic on (Physical, Logical, Node).
//
// Logical is kept wider than the packed wire form's 16-bit field so that a
// sustained same-millisecond burst widens instead of wrapping; Pack
// truncates to the low 16 bits, which is a caller concern, not a clock one.
type Timestamp struct {
	Physical int64
	Logical  uint64
	Node     uint16
}

// Compare returns -1, 0, or 1 as a is less than, equal to, or greater
// than b under the (Physical, Logical, Node) total order.
func Compare(a, b Timestamp) int {
	switch {
	case a.Physical != b.Physical:
		if a.Physical < b.Physical {
			return -1
		}
		return 1
	case a.Logical != b.Logical:
		if a.Logical < b.Logical {
			return -1
		}
		return 1
	case a.Node != b.Node:
		if a.Node < b.Node {
			return -1
		}
		return 1
	default:
		return 0
	}
}

// Before reports whether a strictly precedes b.
func (a Timestamp) Before(b Timestamp) bool { return Compare(a, b) < 0 }

// After reports whether a strictly follows b.
func (a Timestamp) After(b Timestamp) bool { return Compare(a, b) > 0 }

// Pack encodes the timestamp into the compact 128-bit wire form:
// physical<<64 | logical<<48 | node<<32, with the low 32 bits reserved
// and zero. Only the low 16 bits of Logical survive the packing; this is
// the one place Logical's width matters.
func (a Timestamp) Pack() [16]byte {
	var out [16]byte
	binary.BigEndian.PutUint64(out[0:8], uint64(a.Physical))
	binary.BigEndian.PutUint16(out[8:10], uint16(a.Logical))
	binary.BigEndian.PutUint16(out[10:12], a.Node)
	return out
}

// Unpack decodes the compact wire form produced by Pack.
func Unpack(b [16]byte) Timestamp {
	return Timestamp{
		Physical: int64(binary.BigEndian.Uint64(b[0:8])),
		Logical:  uint64(binary.BigEndian.Uint16(b[8:10])),
		Node:     binary.BigEndian.Uint16(b[10:12]),
	}
}

// Clock is a single replica's Hybrid Logical Clock. It is safe for
// concurrent use.
type Clock struct {
	mu   sync.Mutex
	node uint16
	last Timestamp
	pt   func() int64
}

// Option configures a Clock at construction.
type Option func(*Clock)

// WithTimeSource overrides the physical-time source, in milliseconds.
// Production code should leave this unset (wall clock); tests should
// inject a deterministic counter. Never called from Merge/value code,
// only from Now and Receive.
func WithTimeSource(pt func() int64) Option {
	return func(c *Clock) { c.pt = pt }
}

// NewClock creates a Clock for the given node id.
func NewClock(node uint16, opts ...Option) *Clock {
	c := &Clock{node: node, pt: func() int64 { return time.Now().UnixMilli() }}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Now returns a timestamp strictly greater than any timestamp this clock
// has previously produced.
func (c *Clock) Now() Timestamp {
	c.mu.Lock()
	defer c.mu.Unlock()

	pt := c.pt()
	if pt > c.last.Physical {
		c.last = Timestamp{Physical: pt, Logical: 0, Node: c.node}
	} else {
		c.last = Timestamp{Physical: c.last.Physical, Logical: c.last.Logical + 1, Node: c.node}
	}
	return c.last
}

// Receive merges a remote timestamp into the local clock and returns a
// timestamp strictly greater than both the local clock's prior value and
// remote.
func (c *Clock) Receive(remote Timestamp) Timestamp {
	c.mu.Lock()
	defer c.mu.Unlock()

	pt := c.pt()
	lp, ll := c.last.Physical, c.last.Logical
	rp, rl := remote.Physical, remote.Logical

	m := pt
	if lp > m {
		m = lp
	}
	if rp > m {
		m = rp
	}

	var l uint64
	switch {
	case m == lp && m == rp:
		l = max(ll, rl) + 1
	case m == lp:
		l = ll + 1
	case m == rp:
		l = rl + 1
	default:
		l = 0
	}

	c.last = Timestamp{Physical: m, Logical: l, Node: c.node}
	return c.last
}

// Last returns the most recent timestamp produced by this clock, without
// advancing it.
func (c *Clock) Last() Timestamp {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}
