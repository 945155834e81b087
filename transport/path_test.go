package transport

import (
	"net"
	"testing"
	"time"
)

func TestPathManagerNoOpWhenAddrMatchesActive(t *testing.T) {
	var m pathManager
	addr := &net.UDPAddr{IP: net.ParseIP("10.0.0.1"), Port: 1234}
	m.init(addr)

	f, err := m.onPeerAddressChange(addr, time.Now())
	if err != nil {
		t.Fatalf("onPeerAddressChange: %v", err)
	}
	if f != nil {
		t.Fatal("onPeerAddressChange started validation for a packet from the already-active address")
	}
	if m.migrating != nil {
		t.Fatal("a migrating path was created for the active address")
	}
}

func TestPathManagerMigrationPromotesOnValidResponse(t *testing.T) {
	var m pathManager
	oldAddr := &net.UDPAddr{IP: net.ParseIP("10.0.0.1"), Port: 1234}
	newAddr := &net.UDPAddr{IP: net.ParseIP("10.0.0.2"), Port: 5678}
	m.init(oldAddr)

	f, err := m.onPeerAddressChange(newAddr, time.Now())
	if err != nil {
		t.Fatalf("onPeerAddressChange: %v", err)
	}
	if f == nil {
		t.Fatal("onPeerAddressChange did not start validation for a new address")
	}
	if m.migrating == nil || !sameAddr(m.migrating.addr, newAddr) {
		t.Fatal("migrating path was not recorded for the new address")
	}

	m.onPathResponse(&pathResponseFrame{data: f.data})
	if m.migrating != nil {
		t.Fatal("migrating path was not cleared after a valid PATH_RESPONSE")
	}
	if m.active == nil || !sameAddr(m.active.addr, newAddr) {
		t.Fatal("active path was not promoted to the new address")
	}
	if !m.pendingMigration {
		t.Fatal("pendingMigration was not set after promotion")
	}
}

func TestPathManagerIgnoresStaleResponse(t *testing.T) {
	var m pathManager
	oldAddr := &net.UDPAddr{IP: net.ParseIP("10.0.0.1"), Port: 1234}
	newAddr := &net.UDPAddr{IP: net.ParseIP("10.0.0.2"), Port: 5678}
	m.init(oldAddr)

	if _, err := m.onPeerAddressChange(newAddr, time.Now()); err != nil {
		t.Fatalf("onPeerAddressChange: %v", err)
	}
	m.onPathResponse(&pathResponseFrame{data: [8]byte{0xff}})
	if m.migrating == nil {
		t.Fatal("a response with the wrong data retired the migrating path")
	}
	if sameAddr(m.active.addr, newAddr) {
		t.Fatal("active path was promoted by a response that didn't echo the right challenge")
	}
}

func TestPathManagerRepeatedAddressChangeIsNoOp(t *testing.T) {
	var m pathManager
	oldAddr := &net.UDPAddr{IP: net.ParseIP("10.0.0.1"), Port: 1234}
	newAddr := &net.UDPAddr{IP: net.ParseIP("10.0.0.2"), Port: 5678}
	m.init(oldAddr)

	f1, err := m.onPeerAddressChange(newAddr, time.Now())
	if err != nil || f1 == nil {
		t.Fatalf("first onPeerAddressChange: f=%v err=%v", f1, err)
	}
	f2, err := m.onPeerAddressChange(newAddr, time.Now())
	if err != nil {
		t.Fatalf("second onPeerAddressChange: %v", err)
	}
	if f2 != nil {
		t.Fatal("a second packet from the same migrating address re-triggered validation")
	}
}
