package transport

import (
	"bytes"
	"testing"
	"time"
)

func TestMintValidateTokenRoundTrip(t *testing.T) {
	secret := make([]byte, 32)
	odcid := []byte{1, 2, 3, 4}
	now := time.Now()

	tok := mintToken(secret, odcid, nil, now)
	if tok == nil {
		t.Fatal("mintToken returned nil")
	}
	gotODCID, gotSCID, ok := validateToken(secret, tok, now)
	if !ok {
		t.Fatal("validateToken rejected a freshly minted token")
	}
	if !bytes.Equal(gotODCID, odcid) {
		t.Fatalf("odcid = %x, want %x", gotODCID, odcid)
	}
	if len(gotSCID) != 0 {
		t.Fatalf("retrySCID = %x, want empty for a non-retry token", gotSCID)
	}
}

func TestMintValidateRetryTokenRoundTrip(t *testing.T) {
	secret := make([]byte, 32)
	odcid := []byte{5, 6, 7}
	retrySCID := []byte{8, 9, 10, 11}
	now := time.Now()

	tok := mintToken(secret, odcid, retrySCID, now)
	gotODCID, gotSCID, ok := validateToken(secret, tok, now)
	if !ok {
		t.Fatal("validateToken rejected a freshly minted retry token")
	}
	if !bytes.Equal(gotODCID, odcid) {
		t.Fatalf("odcid = %x, want %x", gotODCID, odcid)
	}
	if !bytes.Equal(gotSCID, retrySCID) {
		t.Fatalf("retrySCID = %x, want %x", gotSCID, retrySCID)
	}
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	secret := make([]byte, 32)
	other := make([]byte, 32)
	other[0] = 1
	tok := mintToken(secret, []byte{1}, nil, time.Now())
	if _, _, ok := validateToken(other, tok, time.Now()); ok {
		t.Fatal("validateToken accepted a token sealed under a different secret")
	}
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	secret := make([]byte, 32)
	mintedAt := time.Now().Add(-2 * tokenValidity)
	tok := mintToken(secret, []byte{1}, nil, mintedAt)
	if _, _, ok := validateToken(secret, tok, time.Now()); ok {
		t.Fatal("validateToken accepted an expired token")
	}
}

func TestMintRetryTokenExportedWrapper(t *testing.T) {
	secret := make([]byte, 32)
	odcid := []byte{1, 1, 1}
	retrySCID := []byte{2, 2, 2}
	now := time.Now()
	tok := MintRetryToken(secret, odcid, retrySCID, now)
	gotODCID, gotSCID, ok := ValidateToken(secret, tok, now)
	if !ok || !bytes.Equal(gotODCID, odcid) || !bytes.Equal(gotSCID, retrySCID) {
		t.Fatalf("exported round trip mismatch: odcid=%x scid=%x ok=%v", gotODCID, gotSCID, ok)
	}
}
