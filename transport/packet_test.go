package transport

import (
	"bytes"
	"testing"
)

func TestEncodeRetryVerifies(t *testing.T) {
	dcid := []byte{1, 2, 3, 4}   // client's SCID, echoed
	newSCID := []byte{5, 6, 7, 8}
	odcid := []byte{9, 9, 9, 9, 9} // original DCID the client's Initial targeted
	token := []byte{0xaa, 0xbb, 0xcc}

	retry := EncodeRetry(SupportedVersion, dcid, newSCID, odcid, token)
	if !verifyRetryIntegrity(retry, odcid) {
		t.Fatal("verifyRetryIntegrity rejected a packet EncodeRetry just built")
	}
	if verifyRetryIntegrity(retry, []byte{0, 0, 0, 0, 0}) {
		t.Fatal("verifyRetryIntegrity accepted the wrong ODCID")
	}

	var p packet
	p.header.dcil = uint8(len(newSCID))
	if _, err := p.decodeHeader(retry); err != nil {
		t.Fatalf("decodeHeader: %v", err)
	}
	if p.typ != packetTypeRetry {
		t.Fatalf("typ = %v, want retry", p.typ)
	}
	if !bytes.Equal(p.header.dcid, dcid) {
		t.Fatalf("dcid = %x, want %x", p.header.dcid, dcid)
	}
	if !bytes.Equal(p.header.scid, newSCID) {
		t.Fatalf("scid = %x, want %x", p.header.scid, newSCID)
	}
	if _, err := p.decodeBody(retry); err != nil {
		t.Fatalf("decodeBody: %v", err)
	}
	if !bytes.Equal(p.token, token) {
		t.Fatalf("token = %x, want %x", p.token, token)
	}
}

func TestPeekInitial(t *testing.T) {
	scid := []byte{1, 2, 3, 4}
	dcid := make([]byte, 8)
	for i := range dcid {
		dcid[i] = byte(i + 1)
	}
	token := []byte{0xde, 0xad}

	p := &packet{
		typ: packetTypeInitial,
		header: packetHeader{
			version: SupportedVersion,
			dcid:    dcid,
			scid:    scid,
		},
		token:        token,
		packetNumber: 0,
		pnLen:        1,
	}
	b := make([]byte, p.encodedLen()+32)
	n, err := p.encode(b)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	// The frame payload doesn't matter for PeekInitial; pad with zeros.
	raw := b[:n+16]

	gotDCID, gotSCID, gotToken, isInitial, err := PeekInitial(raw, len(dcid))
	if err != nil {
		t.Fatalf("PeekInitial: %v", err)
	}
	if !isInitial {
		t.Fatal("isInitial = false, want true")
	}
	if !bytes.Equal(gotDCID, dcid) {
		t.Fatalf("dcid = %x, want %x", gotDCID, dcid)
	}
	if !bytes.Equal(gotSCID, scid) {
		t.Fatalf("scid = %x, want %x", gotSCID, scid)
	}
	if !bytes.Equal(gotToken, token) {
		t.Fatalf("token = %x, want %x", gotToken, token)
	}
}

func TestPeekInitialNonInitial(t *testing.T) {
	p := &packet{typ: packetTypeShort, header: packetHeader{dcid: []byte{1, 2, 3, 4}}, pnLen: 1}
	b := make([]byte, p.encodedLen())
	n, err := p.encode(b)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	_, _, _, isInitial, err := PeekInitial(b[:n], 4)
	if err != nil {
		t.Fatalf("PeekInitial: %v", err)
	}
	if isInitial {
		t.Fatal("isInitial = true for a short-header packet")
	}
}
