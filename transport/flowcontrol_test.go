package transport

import "testing"

func TestFlowControlRecvWindow(t *testing.T) {
	var f flowControl
	f.init(1000, 0)
	if got := f.canRecv(); got != 1000 {
		t.Fatalf("canRecv() = %d, want 1000", got)
	}
	f.addRecv(400)
	if got := f.canRecv(); got != 600 {
		t.Fatalf("canRecv() after 400 used = %d, want 600", got)
	}
	if f.shouldUpdateMaxRecv() {
		t.Fatal("shouldUpdateMaxRecv() true before crossing the half-window threshold")
	}
	f.addRecv(200) // usedRecv=600, >= maxRecv/2=500
	if !f.shouldUpdateMaxRecv() {
		t.Fatal("shouldUpdateMaxRecv() false after crossing half the window")
	}
	f.commitMaxRecv()
	if f.maxRecv != 2000 {
		t.Fatalf("commitMaxRecv: maxRecv = %d, want 2000 (doubled)", f.maxRecv)
	}
	if f.shouldUpdateMaxRecv() {
		t.Fatal("shouldUpdateMaxRecv() still true right after commit")
	}
}

func TestFlowControlSendWindowNeverRegresses(t *testing.T) {
	var f flowControl
	f.init(0, 1000)
	f.setMaxSend(500) // Lower than current: must be ignored per RFC 9000 §4.1.
	if f.maxSend != 1000 {
		t.Fatalf("setMaxSend(500) regressed maxSend to %d, want unchanged 1000", f.maxSend)
	}
	f.setMaxSend(2000)
	if f.maxSend != 2000 {
		t.Fatalf("setMaxSend(2000) = %d, want 2000", f.maxSend)
	}
	f.addSend(2000)
	if f.canSend() != 0 {
		t.Fatalf("canSend() = %d after using the whole window, want 0", f.canSend())
	}
}
