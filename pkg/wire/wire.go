// Package wire implements the canonical serialization and self-describing
// blob framing every cross-trust-boundary structure uses: canonical CBOR
// for the body, and a 1-byte type tag + 4-byte little-endian length
// header for framing.
package wire

import (
	"encoding/binary"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/zeebo/blake3"

	"github.com/bl4ck5un/zipnet/pkg/crypt"
	"github.com/bl4ck5un/zipnet/pkg/dcerr"
)

// Type is the 1-byte self-describing tag prefixed to every framed blob.
type Type byte

const (
	TypeRegistration Type = iota + 1
	TypeUserSubmission
	TypePartialAggregate
	TypeUnblindedShare
	TypeRoundOutput
)

var canonicalMode = func() cbor.EncMode {
	mode, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("wire: building canonical cbor mode: %v", err))
	}
	return mode
}()

// Canonical encodes v in RFC 7049 canonical CBOR form: fixed field order
// (as declared on the struct), length-prefixed byte strings, and
// lexicographically sorted map keys.
func Canonical(v interface{}) ([]byte, error) {
	b, err := canonicalMode.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: cbor marshal: %v", dcerr.Serialization, err)
	}
	return b, nil
}

// Decode decodes canonical CBOR bytes into v.
func Decode(b []byte, v interface{}) error {
	if err := cbor.Unmarshal(b, v); err != nil {
		return fmt.Errorf("%w: cbor unmarshal: %v", dcerr.Serialization, err)
	}
	return nil
}

// Digest computes SHA-256(domain || canonical-serialization), e.g.
// domain = "UserSubmission".
func Digest(domain string, v interface{}) ([32]byte, error) {
	b, err := Canonical(v)
	if err != nil {
		return [32]byte{}, err
	}
	return crypt.Digest(domain, b), nil
}

// Frame prepends the self-describing 1-byte type tag and 4-byte
// little-endian length header.
func Frame(t Type, payload []byte) []byte {
	out := make([]byte, 0, 5+len(payload))
	out = append(out, byte(t))
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	out = append(out, lenBuf[:]...)
	out = append(out, payload...)
	return out
}

// Unframe parses a framed blob back into its type tag and payload.
func Unframe(b []byte) (Type, []byte, error) {
	if len(b) < 5 {
		return 0, nil, fmt.Errorf("%w: frame shorter than header", dcerr.Serialization)
	}
	t := Type(b[0])
	n := binary.LittleEndian.Uint32(b[1:5])
	if uint64(len(b)-5) < uint64(n) {
		return 0, nil, fmt.Errorf("%w: frame length %d exceeds remaining %d bytes", dcerr.Serialization, n, len(b)-5)
	}
	return t, b[5 : 5+n], nil
}

// Fingerprint returns a fast BLAKE3 fingerprint of an opaque blob, used
// only for local housekeeping such as log lines and cache keys over
// sealed state. It is never a substitute for the SHA-256 digests that
// cross a trust boundary; those always go through Digest above.
func Fingerprint(b []byte) [32]byte {
	return blake3.Sum256(b)
}
