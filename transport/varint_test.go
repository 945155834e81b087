package transport

import "testing"

func TestVarintRoundTrip(t *testing.T) {
	cases := []uint64{
		0, 1, 63, 64, 16383, 16384, 1073741823, 1073741824, maxVarint62,
	}
	for _, v := range cases {
		buf := make([]byte, varintLen(v))
		n := putVarint(buf, v)
		if n != len(buf) {
			t.Fatalf("putVarint(%d): wrote %d bytes, want %d", v, n, len(buf))
		}
		var got uint64
		n2 := getVarint(buf, &got)
		if n2 != n {
			t.Fatalf("getVarint(%d): consumed %d bytes, want %d", v, n2, n)
		}
		if got != v {
			t.Fatalf("decode(encode(%d)) = %d", v, got)
		}
	}
}

func TestVarintMinimalLength(t *testing.T) {
	// The two-bit prefix must select the smallest length that fits the
	// value: boundary values just above each prefix's range must jump to
	// the next length, not stay put.
	lengths := map[uint64]int{
		0:          1,
		63:         1,
		64:         2,
		16383:      2,
		16384:      4,
		1073741823: 4,
		1073741824: 8,
	}
	for v, want := range lengths {
		if got := varintLen(v); got != want {
			t.Fatalf("varintLen(%d) = %d, want %d", v, got, want)
		}
	}
}

func TestGetVarintTruncated(t *testing.T) {
	// A two-byte encoding's prefix promises a second byte that isn't there.
	b := []byte{0x40}
	var v uint64
	if n := getVarint(b, &v); n != 0 {
		t.Fatalf("getVarint on truncated input returned %d, want 0", n)
	}
}

func TestGetVarintEmpty(t *testing.T) {
	var v uint64
	if n := getVarint(nil, &v); n != 0 {
		t.Fatalf("getVarint(nil) returned %d, want 0", n)
	}
}

func TestAppendVarint(t *testing.T) {
	b := appendVarint(nil, 300)
	var v uint64
	n := getVarint(b, &v)
	if n != len(b) || v != 300 {
		t.Fatalf("appendVarint round trip failed: got v=%d n=%d", v, n)
	}
}
