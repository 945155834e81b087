package transport

import "testing"

func TestStreamReadUpdatesConnAndStreamFlow(t *testing.T) {
	var s Stream
	s.flow.init(100, 0)
	var connFlow flowControl
	connFlow.init(1000, 0)
	s.connFlow = &connFlow

	if err := s.pushRecv([]byte("hello"), 0, false); err != nil {
		t.Fatalf("pushRecv: %v", err)
	}
	out := make([]byte, 16)
	n, _ := s.Read(out)
	if n != 5 {
		t.Fatalf("Read returned n=%d, want 5", n)
	}
	if s.flow.usedRecv != 5 {
		t.Fatalf("stream flow usedRecv = %d, want 5", s.flow.usedRecv)
	}
	if connFlow.usedRecv != 5 {
		t.Fatalf("connection flow usedRecv = %d, want 5", connFlow.usedRecv)
	}
}

func TestStreamWriteQueuesForSend(t *testing.T) {
	var s Stream
	if err := s.Write([]byte("abc"), false); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := s.Write([]byte("def"), true); err != nil {
		t.Fatalf("Write: %v", err)
	}
	data, off, fin := s.popSend(100)
	if string(data) != "abcdef" || off != 0 || !fin {
		t.Fatalf("popSend = %q off=%d fin=%v, want abcdef/0/true", data, off, fin)
	}
}

func TestStreamCloseSendsFinOnly(t *testing.T) {
	var s Stream
	s.Write([]byte("x"), false)
	s.popSend(100)
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	_, off, fin := s.popSend(100)
	if off != 1 || !fin {
		t.Fatalf("popSend after Close = off=%d fin=%v, want off=1 fin=true", off, fin)
	}
}

func TestStreamAbandonSendResetsAndDiscardsPending(t *testing.T) {
	var s Stream
	s.Write([]byte("hello"), false)
	// One byte popped (and thus "in flight"); the rest is still pending
	// when STOP_SENDING arrives.
	s.popSend(1)

	f := s.abandonSend(7)
	if f == nil {
		t.Fatal("abandonSend should return a RESET_STREAM frame the first time")
	}
	if f.streamID != s.id || f.errorCode != 7 {
		t.Fatalf("RESET_STREAM streamID=%d errorCode=%d, want id=%d code=7", f.streamID, f.errorCode, s.id)
	}
	if f.finalSize != 5 {
		t.Fatalf("RESET_STREAM finalSize=%d, want 5 (bytes already written)", f.finalSize)
	}
	if !s.sendAbandoned {
		t.Fatal("sendAbandoned should be set after abandonSend")
	}
	if len(s.send.pending.ranges) != 0 {
		t.Fatal("pending send ranges should be discarded after abandonSend")
	}

	if f2 := s.abandonSend(7); f2 != nil {
		t.Fatal("abandonSend should be a no-op once already abandoned")
	}
}

func TestStreamAckMaxDataClearsUpdateFlag(t *testing.T) {
	var s Stream
	s.flow.init(10, 0)
	s.pushRecv(make([]byte, 6), 0, false)
	out := make([]byte, 6)
	s.Read(out) // crosses half the window, arming the next MAX_STREAM_DATA update
	if err := s.pushRecv(nil, 6, false); err != nil {
		t.Fatalf("pushRecv: %v", err)
	}
	if !s.updateMaxData {
		t.Fatal("updateMaxData should be set once consumption crosses half the recv window")
	}
	s.ackMaxData()
	if s.updateMaxData {
		t.Fatal("updateMaxData should clear once the MAX_STREAM_DATA update is committed")
	}
}
