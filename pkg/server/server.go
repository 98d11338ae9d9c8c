// Package server implements the anytrust committee side of the protocol:
// registration intake, per-server unblinding, and the leader's final
// combine into a RoundOutput.
package server

import (
	"fmt"

	"github.com/bl4ck5un/zipnet/pkg/crypt"
	"github.com/bl4ck5un/zipnet/pkg/dcerr"
	"github.com/bl4ck5un/zipnet/pkg/identity"
	"github.com/bl4ck5un/zipnet/pkg/secretdb"
	"github.com/bl4ck5un/zipnet/pkg/user"
)

func wrapBadAttestation(err error) error {
	return fmt.Errorf("%w: %v", dcerr.BadAttestation, err)
}

// Server is one member of the anytrust committee: its long-term signing
// and key-agreement keypairs.
type Server struct {
	SigSK crypt.SigPrivateKey
	SigPK crypt.SigPublicKey
	KemSK crypt.KemPrivateKey
	KemPK crypt.KemPublicKey
	ID    identity.EntityId
}

// NewServer generates a fresh server identity and its public key package.
func NewServer() (*Server, identity.ServerPubKeyPackage, error) {
	sigSk, sigPk, err := crypt.GenerateSigKeypair()
	if err != nil {
		return nil, identity.ServerPubKeyPackage{}, err
	}
	kemSk, kemPk, err := crypt.GenerateKemKeypair()
	if err != nil {
		return nil, identity.ServerPubKeyPackage{}, err
	}
	s := &Server{
		SigSK: sigSk,
		SigPK: sigPk,
		KemSK: kemSk,
		KemPK: kemPk,
		ID:    identity.IDFromPublicKey(sigPk),
	}
	pkg := identity.ServerPubKeyPackage{SigPK: sigPk, KemPK: kemPk}
	return s, pkg, nil
}

// PubKeyDB tracks the signing public key of every registered user, keyed
// by user EntityId.
type PubKeyDB struct {
	Users map[identity.EntityId]crypt.SigPublicKey
}

// NewPubKeyDB returns an empty PubKeyDB.
func NewPubKeyDB() *PubKeyDB {
	return &PubKeyDB{Users: make(map[identity.EntityId]crypt.SigPublicKey)}
}

// Clone deep-copies db.
func (db *PubKeyDB) Clone() *PubKeyDB {
	out := NewPubKeyDB()
	for k, v := range db.Users {
		out.Users[k] = append(crypt.SigPublicKey(nil), v...)
	}
	return out
}

// RecvUserRegistration derives the pairwise secret with a newly
// registering user and returns the updated pubkey and secret DBs,
// leaving the inputs untouched.
func (s *Server) RecvUserRegistration(pubkeyDB *PubKeyDB, secretDB *secretdb.DB, reg user.Registration, verifier identity.AttestationVerifier) (*PubKeyDB, *secretdb.DB, error) {
	if verifier == nil {
		verifier = identity.AcceptAllVerifier{}
	}
	if err := verifier.Verify(reg.Sig); err != nil {
		return nil, nil, wrapBadAttestation(err)
	}
	if err := verifier.Verify(reg.Kem); err != nil {
		return nil, nil, wrapBadAttestation(err)
	}

	userID := identity.IDFromPublicKey(reg.Sig.PK)
	var userKemPK crypt.KemPublicKey
	copy(userKemPK[:], reg.Kem.PK)
	shared, err := crypt.DH(s.KemSK, userKemPK)
	if err != nil {
		return nil, nil, err
	}

	nextPubkeyDB := pubkeyDB.Clone()
	nextPubkeyDB.Users[userID] = reg.Sig.PK
	nextSecretDB := secretDB.Clone()
	nextSecretDB.Put(userID, shared)
	return nextPubkeyDB, nextSecretDB, nil
}

// RecvUserRegistrations is the batched variant of RecvUserRegistration.
func (s *Server) RecvUserRegistrations(pubkeyDB *PubKeyDB, secretDB *secretdb.DB, regs []user.Registration, verifier identity.AttestationVerifier) (*PubKeyDB, *secretdb.DB, error) {
	curPubkeyDB, curSecretDB := pubkeyDB, secretDB
	for _, reg := range regs {
		var err error
		curPubkeyDB, curSecretDB, err = s.RecvUserRegistration(curPubkeyDB, curSecretDB, reg, verifier)
		if err != nil {
			return nil, nil, err
		}
	}
	return curPubkeyDB, curSecretDB, nil
}
