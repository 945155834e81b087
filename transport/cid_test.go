package transport

import (
	"bytes"
	"testing"
)

func TestConnIDManagerRotate(t *testing.T) {
	var m connIDManager
	m.init(4)
	current := []byte{1, 1, 1, 1}
	m.remote = []connIDEntry{
		{seq: 0, cid: current},
		{seq: 2, cid: []byte{3, 3, 3, 3}},
		{seq: 1, cid: []byte{2, 2, 2, 2}},
	}

	newCID, retiredSeq, ok := m.rotate(current)
	if !ok {
		t.Fatal("rotate reported no spare CID with two available")
	}
	if !bytes.Equal(newCID, []byte{2, 2, 2, 2}) {
		t.Fatalf("newCID = %x, want the lowest-sequence spare (seq 1)", newCID)
	}
	if retiredSeq != 0 {
		t.Fatalf("retiredSeq = %d, want 0", retiredSeq)
	}
	if !m.remote[0].retired {
		t.Fatal("rotate did not mark current's entry retired")
	}
}

func TestConnIDManagerRotateNoSpare(t *testing.T) {
	var m connIDManager
	m.init(4)
	current := []byte{1, 1, 1, 1}
	m.remote = []connIDEntry{{seq: 0, cid: current}}

	if _, _, ok := m.rotate(current); ok {
		t.Fatal("rotate succeeded with no spare CID issued by the peer")
	}
}

func TestConnIDManagerRotateSkipsRetired(t *testing.T) {
	var m connIDManager
	m.init(4)
	current := []byte{1, 1, 1, 1}
	m.remote = []connIDEntry{
		{seq: 0, cid: current},
		{seq: 1, cid: []byte{2, 2, 2, 2}, retired: true},
		{seq: 2, cid: []byte{3, 3, 3, 3}},
	}

	newCID, _, ok := m.rotate(current)
	if !ok {
		t.Fatal("rotate reported no spare CID")
	}
	if !bytes.Equal(newCID, []byte{3, 3, 3, 3}) {
		t.Fatalf("newCID = %x, want seq-2 (seq 1 is already retired)", newCID)
	}
}
