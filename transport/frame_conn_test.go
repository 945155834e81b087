package transport

import "bytes"
import "testing"

func TestNewConnectionIDFrameRoundTrip(t *testing.T) {
	var token [16]byte
	copy(token[:], []byte("0123456789abcdef"))
	f := newNewConnectionIDFrame(3, 1, []byte{1, 2, 3, 4}, token)
	buf := make([]byte, f.encodedLen())
	n, err := f.encode(buf)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var got newConnectionIDFrame
	if _, err := got.decode(buf[:n]); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.sequenceNumber != 3 || got.retirePriorTo != 1 || !bytes.Equal(got.connectionID, f.connectionID) || got.resetToken != token {
		t.Fatalf("decoded %+v, want %+v", got, f)
	}
}

func TestNewConnectionIDFrameRetirePriorToAboveSeqRejected(t *testing.T) {
	var token [16]byte
	f := newNewConnectionIDFrame(1, 3, []byte{1}, token)
	buf := make([]byte, f.encodedLen())
	n, _ := f.encode(buf)
	var got newConnectionIDFrame
	if _, err := got.decode(buf[:n]); err == nil {
		t.Fatal("retire_prior_to > sequence_number should be a frame-encoding error")
	}
}

func TestRetireConnectionIDFrameRoundTrip(t *testing.T) {
	f := newRetireConnectionIDFrame(7)
	buf := make([]byte, f.encodedLen())
	n, _ := f.encode(buf)
	var got retireConnectionIDFrame
	if _, err := got.decode(buf[:n]); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.sequenceNumber != 7 {
		t.Fatalf("sequenceNumber = %d, want 7", got.sequenceNumber)
	}
}

func TestPathChallengeResponseRoundTrip(t *testing.T) {
	var nonce [8]byte
	copy(nonce[:], []byte{1, 2, 3, 4, 5, 6, 7, 8})

	chal := newPathChallengeFrame(nonce)
	buf := make([]byte, chal.encodedLen())
	n, _ := chal.encode(buf)
	var gotChal pathChallengeFrame
	if _, err := gotChal.decode(buf[:n]); err != nil {
		t.Fatalf("decode path_challenge: %v", err)
	}
	if gotChal.data != nonce {
		t.Fatalf("path_challenge data = %v, want %v", gotChal.data, nonce)
	}

	resp := newPathResponseFrame(nonce)
	buf2 := make([]byte, resp.encodedLen())
	n2, _ := resp.encode(buf2)
	var gotResp pathResponseFrame
	if _, err := gotResp.decode(buf2[:n2]); err != nil {
		t.Fatalf("decode path_response: %v", err)
	}
	if gotResp.data != nonce {
		t.Fatalf("path_response data = %v, want %v", gotResp.data, nonce)
	}
}

func TestConnectionCloseFrameRoundTripBothSpaces(t *testing.T) {
	quic := newConnectionCloseFrame(false, uint64(ProtocolViolation), "bad frame")
	quic.frameType = frameTypeStream
	buf := make([]byte, quic.encodedLen())
	n, _ := quic.encode(buf)
	var got connectionCloseFrame
	if _, err := got.decode(buf[:n]); err != nil {
		t.Fatalf("decode transport close: %v", err)
	}
	if got.application || got.errorCode != uint64(ProtocolViolation) || got.frameType != frameTypeStream || string(got.reasonPhrase) != "bad frame" {
		t.Fatalf("decoded %+v, want transport close with reason 'bad frame'", got)
	}

	app := newConnectionCloseFrame(true, 42, "bye")
	buf2 := make([]byte, app.encodedLen())
	n2, _ := app.encode(buf2)
	var got2 connectionCloseFrame
	if _, err := got2.decode(buf2[:n2]); err != nil {
		t.Fatalf("decode app close: %v", err)
	}
	if !got2.application || got2.errorCode != 42 || got2.frameType != 0 {
		t.Fatalf("decoded %+v, want application close code=42 frameType=0", got2)
	}
}

func TestNewTokenFrameRoundTrip(t *testing.T) {
	f := newNewTokenFrame([]byte{1, 2, 3, 4, 5})
	buf := make([]byte, f.encodedLen())
	n, _ := f.encode(buf)
	var got newTokenFrame
	if _, err := got.decode(buf[:n]); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !bytes.Equal(got.token, f.token) {
		t.Fatalf("token = %v, want %v", got.token, f.token)
	}
}

func TestNewTokenFrameEmptyRejected(t *testing.T) {
	f := newNewTokenFrame(nil)
	buf := make([]byte, f.encodedLen())
	n, _ := f.encode(buf)
	var got newTokenFrame
	if _, err := got.decode(buf[:n]); err == nil {
		t.Fatal("zero-length NEW_TOKEN should be a frame-encoding error")
	}
}
