package transport

import "testing"

func TestStreamMapSeparatesLocalAndRemoteCounters(t *testing.T) {
	var m streamMap
	m.init(1, 1)
	m.setPeerMaxStreamsBidi(1)

	// Client-opened bidi stream (id 0, local) and server-opened bidi
	// stream (id 1, remote) belong to distinct RFC 9000 stream-id spaces
	// and must not share the same opened-count bucket.
	if _, err := m.create(0, true, true); err != nil {
		t.Fatalf("local bidi create: %v", err)
	}
	if _, err := m.create(1, false, true); err != nil {
		t.Fatalf("remote bidi create should not be blocked by the local counter: %v", err)
	}
}

func TestStreamMapEnforcesPeerLimitOnLocalStreams(t *testing.T) {
	var m streamMap
	m.init(0, 0)
	m.setPeerMaxStreamsBidi(1)

	if _, err := m.create(0, true, true); err != nil {
		t.Fatalf("first local bidi create: %v", err)
	}
	if _, err := m.create(4, true, true); err == nil {
		t.Fatal("second local bidi create should exceed the peer-granted limit")
	}
}

func TestStreamMapEnforcesLocalLimitOnRemoteStreams(t *testing.T) {
	var m streamMap
	m.init(1, 0)

	if _, err := m.create(1, false, true); err != nil {
		t.Fatalf("first remote bidi create: %v", err)
	}
	if _, err := m.create(5, false, true); err == nil {
		t.Fatal("second remote bidi create should exceed the locally-advertised limit")
	}
}
