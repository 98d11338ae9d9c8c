// Package crypt holds the protocol's primitives: Ed25519 sign/verify,
// X25519 Diffie-Hellman, HKDF-SHA256 key derivation, SHA-256
// domain-separated digests, and an AES-128-CTR pseudorandom generator.
package crypt

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"

	"github.com/bl4ck5un/zipnet/pkg/dcerr"
)

// SharedSecretLength is the width of a pairwise DH-derived secret and of
// a ratchet state.
const SharedSecretLength = 32

// SigPublicKey and SigPrivateKey are Ed25519 signing keys.
type SigPublicKey = ed25519.PublicKey
type SigPrivateKey = ed25519.PrivateKey

// KemPublicKey and KemPrivateKey are X25519 key-agreement keys.
type KemPublicKey [32]byte
type KemPrivateKey [32]byte

// GenerateSigKeypair produces a fresh long-term Ed25519 signing keypair.
func GenerateSigKeypair() (SigPrivateKey, SigPublicKey, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: ed25519 keygen: %v", dcerr.Crypto, err)
	}
	return priv, pub, nil
}

// Sign signs msg with sk, producing a detached Ed25519 signature.
func Sign(sk SigPrivateKey, msg []byte) []byte {
	return ed25519.Sign(sk, msg)
}

// Verify reports whether sig is a valid Ed25519 signature over msg by pk.
func Verify(pk SigPublicKey, msg, sig []byte) bool {
	return len(pk) == ed25519.PublicKeySize && ed25519.Verify(pk, msg, sig)
}

// GenerateKemKeypair produces a fresh long-term X25519 keypair.
func GenerateKemKeypair() (KemPrivateKey, KemPublicKey, error) {
	var sk KemPrivateKey
	if _, err := io.ReadFull(rand.Reader, sk[:]); err != nil {
		return sk, KemPublicKey{}, fmt.Errorf("%w: x25519 keygen: %v", dcerr.Crypto, err)
	}
	pkBytes, err := curve25519.X25519(sk[:], curve25519.Basepoint)
	if err != nil {
		return sk, KemPublicKey{}, fmt.Errorf("%w: x25519 base scalarmult: %v", dcerr.Crypto, err)
	}
	var pk KemPublicKey
	copy(pk[:], pkBytes)
	return sk, pk, nil
}

// DH computes the X25519 shared secret between sk and peer's public key.
// This is the pairwise secret from which the per-round pad is derived.
func DH(sk KemPrivateKey, peer KemPublicKey) ([SharedSecretLength]byte, error) {
	var out [SharedSecretLength]byte
	shared, err := curve25519.X25519(sk[:], peer[:])
	if err != nil {
		return out, fmt.Errorf("%w: x25519 dh: %v", dcerr.Crypto, err)
	}
	copy(out[:], shared)
	return out, nil
}

// hkdfInfo builds the 32-byte info string: le32(round) then le32(window),
// zero-padded.
func hkdfInfo(round, window uint32) []byte {
	info := make([]byte, 32)
	info[0] = byte(round)
	info[1] = byte(round >> 8)
	info[2] = byte(round >> 16)
	info[3] = byte(round >> 24)
	info[4] = byte(window)
	info[5] = byte(window >> 8)
	info[6] = byte(window >> 16)
	info[7] = byte(window >> 24)
	return info
}

// DeriveRoundKey runs HKDF-SHA256 over a shared secret with salt=nil and
// info = le32(round) || le32(window) padded to 32 bytes, producing a
// 16-byte AES-128 key.
func DeriveRoundKey(secret [SharedSecretLength]byte, round, window uint32) ([16]byte, error) {
	var key [16]byte
	reader := hkdf.New(sha256.New, secret[:], nil, hkdfInfo(round, window))
	if _, err := io.ReadFull(reader, key[:]); err != nil {
		return key, fmt.Errorf("%w: hkdf expand: %v", dcerr.Crypto, err)
	}
	return key, nil
}

// Digest computes SHA-256 over a domain-separation prefix followed by the
// concatenation of parts.
func Digest(domain string, parts ...[]byte) [32]byte {
	h := sha256.New()
	h.Write([]byte(domain))
	for _, p := range parts {
		h.Write(p)
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// Ratchet advances a shared secret one step: S' = SHA-256(S).
func Ratchet(s [SharedSecretLength]byte) [SharedSecretLength]byte {
	return sha256.Sum256(s[:])
}
