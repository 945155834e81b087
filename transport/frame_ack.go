package transport

import "fmt"

// ackFrame is ACK or ACK_ECN (§4.3). Ranges are kept highest-to-lowest,
// the order they are encoded in.
type ackFrame struct {
	largestAck uint64
	ackDelay   uint64 // Raw encoded value (not yet scaled by the delay exponent).
	ranges     []valueRange // Descending; ranges[0] is the highest range.

	ecn    bool
	ect0   uint64
	ect1   uint64
	ce     uint64
}

// newAckFrame builds an ACK frame from the receive-range set to emit,
// walking it from highest to lowest as §4.3 describes.
func newAckFrame(ackDelay uint64, recv *rangeSet) *ackFrame {
	f := &ackFrame{
		ackDelay: ackDelay,
		ranges:   recv.descending(),
	}
	if len(f.ranges) > 0 {
		f.largestAck = f.ranges[0].hi
	}
	return f
}

func newAckECNFrame(ackDelay uint64, recv *rangeSet, ect0, ect1, ce uint64) *ackFrame {
	f := newAckFrame(ackDelay, recv)
	f.ecn = true
	f.ect0, f.ect1, f.ce = ect0, ect1, ce
	return f
}

// toRangeSet rebuilds the disjoint range set the frame encodes, or nil if
// the frame is malformed (e.g. a range going negative).
func (f *ackFrame) toRangeSet() *rangeSet {
	s := &rangeSet{}
	for _, r := range f.ranges {
		if r.hi < r.lo {
			return nil
		}
		s.addRange(r.lo, r.hi)
	}
	return s
}

func (f *ackFrame) decode(b []byte) (int, error) {
	pos := 0
	var typ uint64
	n := getVarint(b[pos:], &typ)
	if n == 0 || (typ != frameTypeAck && typ != frameTypeAckECN) {
		return 0, newError(FrameEncodingError, "ack type").withFrameType(frameTypeAck)
	}
	pos += n
	var largest, delay, count, first uint64
	for _, v := range []*uint64{&largest, &delay, &count, &first} {
		n = getVarint(b[pos:], v)
		if n == 0 {
			return 0, newError(FrameEncodingError, "ack").withFrameType(uint64(typ))
		}
		pos += n
	}
	if first > largest {
		return 0, newError(FrameEncodingError, "ack range").withFrameType(uint64(typ))
	}
	f.largestAck = largest
	f.ackDelay = delay
	f.ranges = f.ranges[:0]
	f.ranges = append(f.ranges, valueRange{lo: largest - first, hi: largest})
	smallest := largest - first
	for i := uint64(0); i < count; i++ {
		var gap, rlen uint64
		n = getVarint(b[pos:], &gap)
		if n == 0 {
			return 0, newError(FrameEncodingError, "ack gap").withFrameType(uint64(typ))
		}
		pos += n
		n = getVarint(b[pos:], &rlen)
		if n == 0 {
			return 0, newError(FrameEncodingError, "ack range").withFrameType(uint64(typ))
		}
		pos += n
		if smallest < gap+2 || smallest-gap-2 < rlen {
			return 0, newError(FrameEncodingError, "ack range underflow").withFrameType(uint64(typ))
		}
		hi := smallest - gap - 2
		lo := hi - rlen
		f.ranges = append(f.ranges, valueRange{lo: lo, hi: hi})
		smallest = lo
	}
	f.ecn = typ == frameTypeAckECN
	if f.ecn {
		for _, v := range []*uint64{&f.ect0, &f.ect1, &f.ce} {
			n = getVarint(b[pos:], v)
			if n == 0 {
				return 0, newError(FrameEncodingError, "ack ecn").withFrameType(uint64(typ))
			}
			pos += n
		}
	}
	return pos, nil
}

func (f *ackFrame) encodedLen() int {
	n := 1 // type
	n += varintLen(f.largestAck)
	n += varintLen(f.ackDelay)
	n += varintLen(uint64(len(f.ranges) - 1))
	n += varintLen(f.ranges[0].hi - f.ranges[0].lo)
	for i := 1; i < len(f.ranges); i++ {
		gap := f.ranges[i-1].lo - f.ranges[i].hi - 2
		rlen := f.ranges[i].hi - f.ranges[i].lo
		n += varintLen(gap) + varintLen(rlen)
	}
	if f.ecn {
		n += varintLen(f.ect0) + varintLen(f.ect1) + varintLen(f.ce)
	}
	return n
}

func (f *ackFrame) encode(b []byte) (int, error) {
	if len(f.ranges) == 0 {
		return 0, newError(InternalError, "ack: empty range set")
	}
	need := f.encodedLen()
	if len(b) < need {
		return 0, errShortBuffer
	}
	pos := 0
	typ := uint64(frameTypeAck)
	if f.ecn {
		typ = frameTypeAckECN
	}
	pos += putVarint(b[pos:], typ)
	pos += putVarint(b[pos:], f.largestAck)
	pos += putVarint(b[pos:], f.ackDelay)
	pos += putVarint(b[pos:], uint64(len(f.ranges)-1))
	pos += putVarint(b[pos:], f.ranges[0].hi-f.ranges[0].lo)
	for i := 1; i < len(f.ranges); i++ {
		gap := f.ranges[i-1].lo - f.ranges[i].hi - 2
		rlen := f.ranges[i].hi - f.ranges[i].lo
		pos += putVarint(b[pos:], gap)
		pos += putVarint(b[pos:], rlen)
	}
	if f.ecn {
		pos += putVarint(b[pos:], f.ect0)
		pos += putVarint(b[pos:], f.ect1)
		pos += putVarint(b[pos:], f.ce)
	}
	return pos, nil
}

func (f *ackFrame) String() string {
	return fmt.Sprintf("ACK largest=%d delay=%d ranges=%v ecn=%v", f.largestAck, f.ackDelay, f.ranges, f.ecn)
}
