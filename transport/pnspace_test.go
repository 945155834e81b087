package transport

import (
	"testing"
	"time"
)

func TestPacketNumberSpaceOnPacketReceivedCountsECN(t *testing.T) {
	var p packetNumberSpace
	now := time.Now()
	p.onPacketReceived(0, ECNNotECT, now)
	p.onPacketReceived(1, ECNECT0, now)
	p.onPacketReceived(2, ECNECT0, now)
	p.onPacketReceived(3, ECNECT1, now)
	p.onPacketReceived(4, ECNCE, now)

	if p.ect0Count != 2 {
		t.Fatalf("ect0Count = %d, want 2", p.ect0Count)
	}
	if p.ect1Count != 1 {
		t.Fatalf("ect1Count = %d, want 1", p.ect1Count)
	}
	if p.ceCount != 1 {
		t.Fatalf("ceCount = %d, want 1", p.ceCount)
	}
	if !p.recvPackets.contains(4) {
		t.Fatal("onPacketReceived should still record the packet number regardless of ECN codepoint")
	}
}

func TestConnSendFrameAckEmitsPlainAckWithoutECN(t *testing.T) {
	s := &Conn{}
	pnSpace := &s.packetNumberSpaces[packetSpaceApplication]
	pnSpace.ackElicited = true
	pnSpace.recvPacketNeedAck.add(0)
	pnSpace.largestRecvPacketTime = time.Now()

	f := s.sendFrameAck(pnSpace, time.Now())
	if f == nil {
		t.Fatal("sendFrameAck should return a frame when ackElicited")
	}
	if f.ecn {
		t.Fatal("sendFrameAck should emit a plain ACK when no ECN codepoints were observed")
	}
}

func TestConnSendFrameAckEmitsAckECNWhenCountsNonZero(t *testing.T) {
	s := &Conn{}
	pnSpace := &s.packetNumberSpaces[packetSpaceApplication]
	pnSpace.ackElicited = true
	pnSpace.recvPacketNeedAck.add(0)
	pnSpace.largestRecvPacketTime = time.Now()
	pnSpace.ect0Count = 3
	pnSpace.ceCount = 1

	f := s.sendFrameAck(pnSpace, time.Now())
	if f == nil || !f.ecn {
		t.Fatal("sendFrameAck should emit ACK_ECN once any ECN counter is nonzero")
	}
	if f.ect0 != 3 || f.ce != 1 {
		t.Fatalf("ACK_ECN counts ect0=%d ce=%d, want 3/1", f.ect0, f.ce)
	}
}
