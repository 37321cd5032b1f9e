package seqtracker

import (
	"slices"

	"github.com/RoaringBitmap/roaring/v2"
)

// Observation is the result of observing a single sequence number.
type Observation int

const (
	// Accepted is a sequence number seen for the first time.
	Accepted Observation = iota

	// Duplicate is a sequence number that had already arrived.
	Duplicate

	// Discarded is a sequence number outside the [0, count) range. It
	// does not change the arrival or ordering state.
	Discarded
)

func (o Observation) String() string {
	switch o {
	case Accepted:
		return "accepted"
	case Duplicate:
		return "duplicate"
	case Discarded:
		return "discarded"
	default:
		return "unknown"
	}
}

// Summary is the final accounting of a stream.
type Summary struct {
	Count      uint32
	Arrived    uint32
	Lost       uint32
	Duplicates uint32
	Discarded  uint32
	OutOfOrder []uint32
}

// Record tracks the arrival and ordering of the packets of a stream of count
// packets numbered [0, count).
//
// A Record is owned by a single receive loop and is not safe for concurrent
// use.
type Record struct {
	count uint32

	// arrived is the set of sequence numbers that arrived at least once.
	arrived *roaring.Bitmap

	// highest is the highest sequence number observed. Starts lower than
	// any valid sequence number.
	highest int64

	// outOfOrder lists, in arrival order, the sequence numbers that
	// arrived after a higher one.
	outOfOrder []uint32

	duplicates uint32
	discarded  uint32
}

// New creates a record for a stream of count packets.
func New(count uint32) *Record {
	return &Record{
		count:   count,
		arrived: roaring.New(),
		highest: -1,
	}
}

// Count returns the number of packets expected in the stream.
func (r *Record) Count() uint32 {
	return r.count
}

// Observe records the arrival of the packet with sequence number s.
func (r *Record) Observe(s uint32) Observation {
	if s >= r.count {
		r.discarded++
		return Discarded
	}

	// Every packet behind the highest one seen so far is out of order,
	// so [3, 1, 2] reports both 1 and 2.
	if int64(s) < r.highest {
		r.outOfOrder = append(r.outOfOrder, s)
	} else {
		r.highest = int64(s)
	}

	if !r.arrived.CheckedAdd(s) {
		r.duplicates++
		return Duplicate
	}
	return Accepted
}

// Discard accounts for a datagram that could not be decoded as a packet of
// the stream.
func (r *Record) Discard() {
	r.discarded++
}

// Arrived returns the number of distinct sequence numbers that arrived.
func (r *Record) Arrived() uint32 {
	return uint32(r.arrived.GetCardinality())
}

// OutOfOrderCount returns the number of packets that arrived after a packet
// with a higher sequence number.
func (r *Record) OutOfOrderCount() int {
	return len(r.outOfOrder)
}

// HasArrived returns true if the packet with sequence s arrived.
func (r *Record) HasArrived(s uint32) bool {
	return r.arrived.Contains(s)
}

// Summary returns the current accounting of the stream.
func (r *Record) Summary() Summary {
	arrived := r.Arrived()
	return Summary{
		Count:      r.count,
		Arrived:    arrived,
		Lost:       r.count - arrived,
		Duplicates: r.duplicates,
		Discarded:  r.discarded,
		OutOfOrder: slices.Clone(r.outOfOrder),
	}
}
