// Package identity implements EntityId and the attested-public-key
// registration types: the stable identifiers that name users,
// aggregators, servers, and anytrust committees.
package identity

import (
	"bytes"
	"encoding/hex"
	"sort"

	"github.com/bl4ck5un/zipnet/pkg/crypt"
)

// groupIDDomain is the domain-separation tag shared by entity-id and
// group-id derivation.
const groupIDDomain = "anytrust_group_id"

// EntityId is a stable 32-byte identifier for a user, aggregator, or
// server, or for an anytrust committee (a "group").
type EntityId [32]byte

// String renders the identifier as lowercase hex.
func (e EntityId) String() string {
	return hex.EncodeToString(e[:])
}

// Less orders two EntityIds by their byte representation.
func (e EntityId) Less(other EntityId) bool {
	return bytes.Compare(e[:], other[:]) < 0
}

// IDFromPublicKey computes SHA-256(domain || pk).
func IDFromPublicKey(pk []byte) EntityId {
	return EntityId(crypt.Digest(groupIDDomain, pk))
}

// GroupID computes SHA-256(domain || sorted concatenation of the
// committee's signing pubkeys). The identifier binds every user
// submission, partial aggregate, and round output to the exact committee.
func GroupID(serverSigPKs [][]byte) EntityId {
	sorted := make([][]byte, len(serverSigPKs))
	copy(sorted, serverSigPKs)
	sort.Slice(sorted, func(i, j int) bool { return bytes.Compare(sorted[i], sorted[j]) < 0 })
	return EntityId(crypt.Digest(groupIDDomain, sorted...))
}

// IDSlice is a sortable, dedupable slice of EntityIds.
type IDSlice []EntityId

func (s IDSlice) Len() int           { return len(s) }
func (s IDSlice) Less(i, j int) bool { return s[i].Less(s[j]) }
func (s IDSlice) Swap(i, j int)      { s[i], s[j] = s[j], s[i] }

// Sorted returns a sorted copy of s.
func (s IDSlice) Sorted() IDSlice {
	out := make(IDSlice, len(s))
	copy(out, s)
	sort.Sort(out)
	return out
}

// Role names the principal kind an AttestedPublicKey speaks for.
type Role string

const (
	RoleUser      Role = "user"
	RoleAgg       Role = "agg"
	RoleServerSig Role = "server-sig"
	RoleServerKem Role = "server-kem"
)

// AttestedPublicKey binds a public key to a Role with an opaque
// attestation blob. The attestation is never interpreted here; it is only
// ever handed to an AttestationVerifier.
type AttestedPublicKey struct {
	PK          []byte
	Role        Role
	Attestation []byte
}

// AttestationVerifier validates a registration blob.
type AttestationVerifier interface {
	Verify(ap AttestedPublicKey) error
}

// AcceptAllVerifier is the default AttestationVerifier used in tests and
// in any deployment that has not wired in hardware attestation.
type AcceptAllVerifier struct{}

// Verify always succeeds.
func (AcceptAllVerifier) Verify(AttestedPublicKey) error { return nil }

// ServerPubKeyPackage bundles a server's two long-term public keys with
// their attestations.
type ServerPubKeyPackage struct {
	SigPK          crypt.SigPublicKey
	KemPK          crypt.KemPublicKey
	SigAttestation []byte
	KemAttestation []byte
}

// ID returns the EntityId of the server's signing key, the identifier
// used to key secret databases and committee membership.
func (p ServerPubKeyPackage) ID() EntityId {
	return IDFromPublicKey(p.SigPK)
}
