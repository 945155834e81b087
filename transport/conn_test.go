package transport

import (
	"testing"
	"time"
)

func TestConnRecvFramesArmsAckDelayTimerForLoneAck(t *testing.T) {
	s := &Conn{}
	s.localParams.MaxAckDelay = 25 * time.Millisecond
	now := time.Now()

	if err := s.recvFrames([]byte{frameTypePing}, packetSpaceApplication, now); err != nil {
		t.Fatalf("recvFrames: %v", err)
	}
	if s.ackDelayTimer.IsZero() {
		t.Fatal("ackDelayTimer should be armed once an ack-eliciting frame arrives with no other send pending")
	}
	want := now.Add(25 * time.Millisecond)
	if !s.ackDelayTimer.Equal(want) {
		t.Fatalf("ackDelayTimer = %v, want %v", s.ackDelayTimer, want)
	}

	// A second ack-eliciting frame before the first ACK is sent must not
	// push the deadline back out.
	later := now.Add(time.Millisecond)
	if err := s.recvFrames([]byte{frameTypePing}, packetSpaceApplication, later); err != nil {
		t.Fatalf("recvFrames: %v", err)
	}
	if !s.ackDelayTimer.Equal(want) {
		t.Fatalf("ackDelayTimer moved to %v, want unchanged %v", s.ackDelayTimer, want)
	}
}

func TestConnTimeoutUsesEarliestOfAllTimers(t *testing.T) {
	s := &Conn{}
	now := time.Now()
	s.idleTimer = now.Add(time.Hour)
	s.ackDelayTimer = now.Add(10 * time.Millisecond)

	timeout := s.Timeout()
	if timeout <= 0 || timeout > 11*time.Millisecond {
		t.Fatalf("Timeout() = %v, want ~10ms (earliest of idle and ack-delay timers)", timeout)
	}
}

func TestConnClearAckDelayTimerIfIdle(t *testing.T) {
	s := &Conn{}
	s.packetNumberSpaces[packetSpaceApplication].ackElicited = true
	s.ackDelayTimer = time.Now().Add(25 * time.Millisecond)

	s.clearAckDelayTimerIfIdle()
	if s.ackDelayTimer.IsZero() {
		t.Fatal("ackDelayTimer should stay armed while a space still has a pending ACK")
	}

	s.packetNumberSpaces[packetSpaceApplication].ackElicited = false
	s.clearAckDelayTimerIfIdle()
	if !s.ackDelayTimer.IsZero() {
		t.Fatal("ackDelayTimer should clear once no space has a pending ACK")
	}
}
