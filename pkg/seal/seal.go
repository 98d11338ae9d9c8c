// Package seal defines the Sealer capability: "sealed" values are opaque
// byte strings produced by a pluggable implementation, so persisted keys
// and secret databases can be bound to a hardware enclave without any
// other code knowing about one.
package seal

// Sealer seals and unseals opaque byte blobs, e.g. the persisted
// key-and-secret-database bundle of a user, aggregator, or server.
type Sealer interface {
	Seal(plaintext []byte) ([]byte, error)
	Unseal(sealed []byte) ([]byte, error)
}

// IdentitySealer is a no-op Sealer: plaintext in, plaintext out. It is
// the only Sealer this module implements; a real deployment supplies a
// hardware-backed one without the core ever knowing the difference.
type IdentitySealer struct{}

// Seal returns a copy of plaintext unchanged.
func (IdentitySealer) Seal(plaintext []byte) ([]byte, error) {
	return append([]byte(nil), plaintext...), nil
}

// Unseal returns a copy of sealed unchanged.
func (IdentitySealer) Unseal(sealed []byte) ([]byte, error) {
	return append([]byte(nil), sealed...), nil
}
