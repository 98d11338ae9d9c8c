package crypt

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"

	"github.com/bl4ck5un/zipnet/pkg/dcerr"
)

// zeroIV is the fixed all-zero AES-CTR initialization vector. Every
// caller derives a fresh 16-byte key per (secret, round, window) via
// DeriveRoundKey, so reusing iv=0 under that key never repeats a
// (key, counter) pair across calls.
var zeroIV = make([]byte, aes.BlockSize)

// AESCTRRNG wraps an AES-128-CTR keystream as a reusable pseudorandom
// generator.
type AESCTRRNG struct {
	stream cipher.Stream
}

// NewAESCTRRNG seeds an AES-128-CTR stream with iv=0 under key.
func NewAESCTRRNG(key [16]byte) (*AESCTRRNG, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("%w: aes cipher init: %v", dcerr.Crypto, err)
	}
	return &AESCTRRNG{stream: cipher.NewCTR(block, zeroIV)}, nil
}

// Fill writes n pseudorandom bytes into a freshly allocated slice.
func (r *AESCTRRNG) Fill(n int) []byte {
	out := make([]byte, n)
	r.stream.XORKeyStream(out, out)
	return out
}

// XORInto XORs len(dst) pseudorandom bytes onto dst in place.
func (r *AESCTRRNG) XORInto(dst []byte) {
	r.stream.XORKeyStream(dst, dst)
}

// ExpandPad derives n pseudorandom bytes from a shared secret at a given
// (round, window): HKDF-SHA256 produces the AES-128 key, then AES-128-CTR
// (iv=0) fills the output.
func ExpandPad(secret [SharedSecretLength]byte, round, window uint32, n int) ([]byte, error) {
	key, err := DeriveRoundKey(secret, round, window)
	if err != nil {
		return nil, err
	}
	rng, err := NewAESCTRRNG(key)
	if err != nil {
		return nil, err
	}
	return rng.Fill(n), nil
}
