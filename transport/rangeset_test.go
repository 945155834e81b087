package transport

import "testing"

func TestRangeSetMergesAdjacentAndOverlapping(t *testing.T) {
	var s rangeSet
	s.add(5)
	s.add(6)
	s.add(4)
	if len(s.ranges) != 1 || s.ranges[0] != (valueRange{4, 6}) {
		t.Fatalf("adjacent values did not merge: %v", s.ranges)
	}
	// Not adjacent (gap of exactly one value) stays a separate range.
	s.add(8)
	if len(s.ranges) != 2 {
		t.Fatalf("non-adjacent value merged incorrectly: %v", s.ranges)
	}
	// The gap closes: 7 bridges [4,6] and [8,8].
	s.add(7)
	if len(s.ranges) != 1 || s.ranges[0] != (valueRange{4, 8}) {
		t.Fatalf("bridging value did not merge both neighbours: %v", s.ranges)
	}
}

func TestRangeSetDuplicateAdd(t *testing.T) {
	var s rangeSet
	s.add(10)
	if s.add(10) {
		t.Fatal("re-adding an already-present value reported success")
	}
}

func TestRangeSetDisjointAscendingInvariant(t *testing.T) {
	var s rangeSet
	for _, n := range []uint64{50, 10, 30, 11, 12, 9, 49} {
		s.add(n)
	}
	for i := 1; i < len(s.ranges); i++ {
		if s.ranges[i-1].hi >= s.ranges[i].lo {
			t.Fatalf("ranges out of order or overlapping: %v", s.ranges)
		}
		if s.ranges[i-1].hi+1 == s.ranges[i].lo {
			t.Fatalf("adjacent ranges left unmerged: %v", s.ranges)
		}
	}
}

func TestRangeSetContains(t *testing.T) {
	var s rangeSet
	s.addRange(10, 20)
	s.addRange(30, 40)
	for _, n := range []uint64{10, 15, 20, 30, 40} {
		if !s.contains(n) {
			t.Fatalf("contains(%d) = false, want true", n)
		}
	}
	for _, n := range []uint64{9, 21, 29, 41} {
		if s.contains(n) {
			t.Fatalf("contains(%d) = true, want false", n)
		}
	}
}

func TestRangeSetRemoveUntil(t *testing.T) {
	var s rangeSet
	s.addRange(0, 5)
	s.addRange(10, 15)
	s.removeUntil(12)
	if s.contains(12) || !s.contains(13) {
		t.Fatalf("removeUntil(12) left set %v", s.ranges)
	}
	if s.contains(3) {
		t.Fatalf("removeUntil(12) should have dropped the whole first range: %v", s.ranges)
	}
}

func TestRangeSetDescendingOrder(t *testing.T) {
	var s rangeSet
	s.addRange(0, 2)
	s.addRange(10, 12)
	desc := s.descending()
	if len(desc) != 2 || desc[0].lo != 10 || desc[1].lo != 0 {
		t.Fatalf("descending() = %v, want highest-first", desc)
	}
}

// TestAckFrameRoundTrip covers the §8 property: parse_ack(emit_ack(R)) == R.
func TestAckFrameRoundTrip(t *testing.T) {
	var recv rangeSet
	for _, n := range []uint64{0, 1, 2, 5, 6, 9, 100, 101, 200} {
		recv.add(n)
	}
	f := newAckFrame(12, &recv)
	buf := make([]byte, f.encodedLen())
	n, err := f.encode(buf)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	var decoded ackFrame
	n2, err := decoded.decode(buf[:n])
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if n2 != n {
		t.Fatalf("decode consumed %d bytes, encode wrote %d", n2, n)
	}
	got := decoded.toRangeSet()
	if got == nil || !got.equal(&recv) {
		t.Fatalf("round trip mismatch: got %v, want %v", got, recv.ranges)
	}
	if decoded.ackDelay != 12 {
		t.Fatalf("ackDelay = %d, want 12", decoded.ackDelay)
	}
}

func TestAckECNFrameRoundTrip(t *testing.T) {
	var recv rangeSet
	recv.addRange(0, 10)
	f := newAckECNFrame(0, &recv, 3, 0, 1)
	buf := make([]byte, f.encodedLen())
	n, err := f.encode(buf)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var decoded ackFrame
	if _, err := decoded.decode(buf[:n]); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !decoded.ecn || decoded.ect0 != 3 || decoded.ce != 1 {
		t.Fatalf("ECN fields lost in round trip: %+v", decoded)
	}
}
