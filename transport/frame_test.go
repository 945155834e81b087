package transport

import (
	"bytes"
	"testing"
)

func TestStreamFrameRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		f    *streamFrame
	}{
		{"offset zero, has len", newStreamFrame(4, []byte("hello"), 0, false)},
		{"offset set, fin", newStreamFrame(4, []byte("world"), 10, true)},
		{"empty payload, fin", newStreamFrame(8, nil, 5, true)},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			buf := make([]byte, c.f.encodedLen())
			n, err := c.f.encode(buf)
			if err != nil {
				t.Fatalf("encode: %v", err)
			}
			var got streamFrame
			n2, err := got.decode(buf[:n])
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if n2 != n {
				t.Fatalf("decode consumed %d bytes, encode wrote %d", n2, n)
			}
			if got.streamID != c.f.streamID || got.offset != c.f.offset || got.fin != c.f.fin {
				t.Fatalf("decoded %+v, want %+v", got, c.f)
			}
			if !bytes.Equal(got.data, c.f.data) {
				t.Fatalf("decoded data %q, want %q", got.data, c.f.data)
			}
		})
	}
}

func TestStreamFrameNoLenConsumesRestOfPacket(t *testing.T) {
	f := newStreamFrame(2, []byte("tail"), 0, false)
	f.hasLen = false
	buf := make([]byte, f.encodedLen())
	n, err := f.encode(buf)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var got streamFrame
	n2, err := got.decode(buf[:n])
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if n2 != n || !bytes.Equal(got.data, []byte("tail")) {
		t.Fatalf("decode = %+v (n=%d), want data=tail n=%d", got, n2, n)
	}
}

func TestCryptoFrameRoundTrip(t *testing.T) {
	f := newCryptoFrame([]byte("client hello bytes"), 42)
	buf := make([]byte, f.encodedLen())
	n, err := f.encode(buf)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var got cryptoFrame
	if _, err := got.decode(buf[:n]); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.offset != 42 || !bytes.Equal(got.data, f.data) {
		t.Fatalf("decoded %+v, want offset=42 data=%q", got, f.data)
	}
}

func TestCryptoFrameTruncated(t *testing.T) {
	f := newCryptoFrame([]byte("abcdef"), 0)
	buf := make([]byte, f.encodedLen())
	f.encode(buf)
	var got cryptoFrame
	if _, err := got.decode(buf[:len(buf)-2]); err == nil {
		t.Fatal("decode of a truncated CRYPTO frame should fail")
	}
}

func TestPaddingFrameCoalesces(t *testing.T) {
	buf := []byte{0x00, 0x00, 0x00, 0x01 /* PING, should not be consumed */}
	var f paddingFrame
	n, err := f.decode(buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if n != 3 || f.length != 3 {
		t.Fatalf("decode consumed %d bytes (length=%d), want 3", n, f.length)
	}
}

func TestPingFrameRoundTrip(t *testing.T) {
	f := &pingFrame{}
	buf := make([]byte, f.encodedLen())
	n, err := f.encode(buf)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var got pingFrame
	if _, err := got.decode(buf[:n]); err != nil {
		t.Fatalf("decode: %v", err)
	}
}

func TestMaxStreamsFrameBidiUniRoundTrip(t *testing.T) {
	for _, bidi := range []bool{true, false} {
		f := newMaxStreamsFrame(bidi, 17)
		buf := make([]byte, f.encodedLen())
		n, err := f.encode(buf)
		if err != nil {
			t.Fatalf("encode(bidi=%v): %v", bidi, err)
		}
		var got maxStreamsFrame
		if _, err := got.decode(buf[:n]); err != nil {
			t.Fatalf("decode(bidi=%v): %v", bidi, err)
		}
		if got.bidi != bidi || got.maximumStreams != 17 {
			t.Fatalf("decoded %+v, want bidi=%v max=17", got, bidi)
		}
	}
}

func TestStreamsBlockedFrameRoundTrip(t *testing.T) {
	f := newStreamsBlockedFrame(false, 9)
	buf := make([]byte, f.encodedLen())
	n, _ := f.encode(buf)
	var got streamsBlockedFrame
	if _, err := got.decode(buf[:n]); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.bidi || got.streamLimit != 9 {
		t.Fatalf("decoded %+v, want bidi=false limit=9", got)
	}
}

func TestMaxStreamDataFrameRoundTrip(t *testing.T) {
	f := newMaxStreamDataFrame(3, 4096)
	buf := make([]byte, f.encodedLen())
	n, _ := f.encode(buf)
	var got maxStreamDataFrame
	if _, err := got.decode(buf[:n]); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.streamID != 3 || got.maximumData != 4096 {
		t.Fatalf("decoded %+v, want id=3 max=4096", got)
	}
}

func TestUnknownFrameTypeIsEncodingError(t *testing.T) {
	// Frame type 0x20 is unassigned in this wire format.
	var f streamFrame
	if _, err := f.decode([]byte{0x20}); err == nil {
		t.Fatal("decoding an out-of-range STREAM type byte should fail")
	}
}

func TestEpochAllowsFrameTable(t *testing.T) {
	if !epochAllowsFrame(packetSpaceInitial, false, frameTypeCrypto) {
		t.Fatal("CRYPTO must be legal in Initial")
	}
	if epochAllowsFrame(packetSpaceInitial, false, frameTypeStream) {
		t.Fatal("STREAM must not be legal in Initial")
	}
	if epochAllowsFrame(packetSpaceApplication, true, frameTypeCrypto) {
		t.Fatal("CRYPTO must not be legal in 0-RTT")
	}
	if !epochAllowsFrame(packetSpaceApplication, false, frameTypeCrypto) {
		t.Fatal("CRYPTO must be legal in 1-RTT")
	}
	if !epochAllowsFrame(packetSpaceApplication, false, frameTypeHanshakeDone) {
		t.Fatal("HANDSHAKE_DONE must be legal in 1-RTT")
	}
}

func TestIsFrameAckEliciting(t *testing.T) {
	if isFrameAckEliciting(frameTypeAck) {
		t.Fatal("ACK must not be ack-eliciting")
	}
	if isFrameAckEliciting(frameTypeConnectionClose) {
		t.Fatal("CONNECTION_CLOSE must not be ack-eliciting")
	}
	if !isFrameAckEliciting(frameTypePing) {
		t.Fatal("PING must be ack-eliciting")
	}
	if !isFrameAckEliciting(frameTypeStream) {
		t.Fatal("STREAM must be ack-eliciting")
	}
}
