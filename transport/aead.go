package transport

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/hkdf"
)

// Packet-level AEAD and header protection are external collaborators in
// this design (§1): the long-term key schedule comes from the TLS 1.3
// handshake library. The one exception is the Initial epoch, whose secrets
// RFC 9001 §5.2 derives directly from the client's chosen Destination
// Connection ID rather than from the TLS key schedule, so it is derived
// here rather than handed to us.

const headerProtectionSampleSize = 16

// aeadKeys applies AEAD packet protection and AES-based header protection
// for one direction (read or write) of one epoch.
type aeadKeys struct {
	aead    cipher.AEAD
	iv      []byte
	hpBlock cipher.Block
}

func newAEADKeys(secret []byte) *aeadKeys {
	key := hkdfExpandLabel(secret, "quic key", nil, 16)
	iv := hkdfExpandLabel(secret, "quic iv", nil, 12)
	hpKey := hkdfExpandLabel(secret, "quic hp", nil, 16)
	block, err := aes.NewCipher(key)
	if err != nil {
		panic(err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		panic(err)
	}
	hpBlock, err := aes.NewCipher(hpKey)
	if err != nil {
		panic(err)
	}
	return &aeadKeys{aead: gcm, iv: iv, hpBlock: hpBlock}
}

func (k *aeadKeys) Overhead() int { return k.aead.Overhead() }

func (k *aeadKeys) nonce(pn uint64) []byte {
	nonce := make([]byte, len(k.iv))
	copy(nonce, k.iv)
	for i := 0; i < 8; i++ {
		nonce[len(nonce)-1-i] ^= byte(pn >> (8 * i))
	}
	return nonce
}

// seal encrypts payload in place (appending to dst) using pn and ad (the
// packet header) as associated data.
func (k *aeadKeys) seal(dst, payload, ad []byte, pn uint64) []byte {
	return k.aead.Seal(dst, k.nonce(pn), payload, ad)
}

func (k *aeadKeys) open(dst, ciphertext, ad []byte, pn uint64) ([]byte, error) {
	out, err := k.aead.Open(dst, k.nonce(pn), ciphertext, ad)
	if err != nil {
		return nil, newError(ProtocolViolation, "aead authentication failed")
	}
	return out, nil
}

// headerProtectionMask implements the AES-based header_protection function,
// RFC 9001 §5.4.3: encrypt a 16-byte ciphertext sample with the header
// protection key and take the first 5 bytes of the result as a mask.
func (k *aeadKeys) headerProtectionMask(sample []byte) [5]byte {
	var scratch [aes.BlockSize]byte
	k.hpBlock.Encrypt(scratch[:], sample)
	var mask [5]byte
	copy(mask[:], scratch[:5])
	return mask
}

// applyHeaderProtection XORs the mask into the first byte's protected bits
// and the packet-number bytes.
func applyHeaderProtection(mask [5]byte, hdr []byte, firstByteMask byte, pnOff, pnLen int) {
	hdr[0] ^= mask[0] & firstByteMask
	for i := 0; i < pnLen; i++ {
		hdr[pnOff+i] ^= mask[1+i]
	}
}

// initialAEAD derives the Initial-epoch keys for both directions from the
// client's Destination Connection ID (RFC 9001 §5.2).
type initialAEAD struct {
	client *aeadKeys
	server *aeadKeys
}

// initialSalt is the version-specific salt mixed into the Initial secret
// derivation (RFC 9001 §5.2, QUIC v1 value; reused here for the draft-27
// compatible version this implementation speaks).
var initialSalt = []byte{
	0x38, 0x76, 0x2c, 0xf7, 0xf5, 0x59, 0x34, 0xb3, 0x4d, 0x17,
	0x9a, 0xe6, 0xa4, 0xc8, 0x0c, 0xad, 0xcc, 0xbb, 0x7f, 0x0a,
}

func (s *initialAEAD) init(cid []byte) {
	initialSecret := hkdf.Extract(sha256.New, cid, initialSalt)
	clientSecret := hkdfExpandLabel(initialSecret, "client in", nil, sha256.Size)
	serverSecret := hkdfExpandLabel(initialSecret, "server in", nil, sha256.Size)
	s.client = newAEADKeys(clientSecret)
	s.server = newAEADKeys(serverSecret)
}

// hkdfExpandLabel implements HKDF-Expand-Label (RFC 8446 §7.1) using the
// "tls13 " label prefix TLS 1.3 and QUIC v1 share.
func hkdfExpandLabel(secret []byte, label string, context []byte, length int) []byte {
	full := "tls13 " + label
	info := make([]byte, 0, 2+1+len(full)+1+len(context))
	info = append(info, byte(length>>8), byte(length))
	info = append(info, byte(len(full)))
	info = append(info, full...)
	info = append(info, byte(len(context)))
	info = append(info, context...)
	out := make([]byte, length)
	if _, err := io.ReadFull(hkdf.Expand(sha256.New, secret, info), out); err != nil {
		panic("quic: hkdf-expand-label failed: " + err.Error())
	}
	return out
}

// retryIntegrityKey/Nonce are the fixed, publicly-known values used to
// compute the Retry Integrity Tag (RFC 9001 §5.8).
var (
	retryIntegrityKey   = []byte{0xbe, 0x0c, 0x69, 0x0b, 0x9f, 0x66, 0x57, 0x5a, 0x1d, 0x76, 0x6b, 0x54, 0xe3, 0x68, 0xc8, 0x4e}
	retryIntegrityNonce = []byte{0x46, 0x15, 0x99, 0xd3, 0x5d, 0x63, 0x2b, 0xf2, 0x23, 0x98, 0x25, 0xbb}
)

func computeRetryIntegrityTag(pseudo []byte) []byte {
	block, err := aes.NewCipher(retryIntegrityKey)
	if err != nil {
		panic(err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		panic(err)
	}
	return gcm.Seal(nil, retryIntegrityNonce, nil, pseudo)
}

// verifyRetryIntegrity recomputes the Retry Integrity Tag over the
// pseudo-packet (ODCID length-prefixed + the Retry packet minus its trailing
// 16-byte tag) and compares it to the tag the peer sent.
func verifyRetryIntegrity(retryPacket, odcid []byte) bool {
	if len(retryPacket) < 16 {
		return false
	}
	body := retryPacket[:len(retryPacket)-16]
	tag := retryPacket[len(retryPacket)-16:]
	pseudo := make([]byte, 0, 1+len(odcid)+len(body))
	pseudo = append(pseudo, byte(len(odcid)))
	pseudo = append(pseudo, odcid...)
	pseudo = append(pseudo, body...)
	want := computeRetryIntegrityTag(pseudo)
	if len(want) != len(tag) {
		return false
	}
	var diff byte
	for i := range want {
		diff |= want[i] ^ tag[i]
	}
	return diff == 0
}
