// Package user implements the user side of the protocol: registration,
// rate-limited message construction, pad derivation, footprint
// scheduling, and submission signing.
package user

import (
	"github.com/bl4ck5un/zipnet/pkg/crypt"
	"github.com/bl4ck5un/zipnet/pkg/identity"
	"github.com/bl4ck5un/zipnet/pkg/secretdb"
)

// Registration is the blob a user hands to every committee server at
// registration time: attested sig and kem public keys.
type Registration struct {
	Sig identity.AttestedPublicKey
	Kem identity.AttestedPublicKey
}

// NewUser generates a fresh user identity, derives the pairwise DH secret
// with every server's kem key, and returns the ready-to-use secret DB.
//
// The ephemeral kem secret key used to derive these secrets is discarded
// once registration completes; only the long-term signing key and the
// resulting secret DB are returned.
func NewUser(servers []identity.ServerPubKeyPackage) (db *secretdb.DB, sigSk crypt.SigPrivateKey, userID identity.EntityId, reg Registration, err error) {
	sigSk, sigPk, err := crypt.GenerateSigKeypair()
	if err != nil {
		return nil, nil, identity.EntityId{}, Registration{}, err
	}
	kemSk, kemPk, err := crypt.GenerateKemKeypair()
	if err != nil {
		return nil, nil, identity.EntityId{}, Registration{}, err
	}

	db = secretdb.New()
	for _, srv := range servers {
		shared, derr := crypt.DH(kemSk, srv.KemPK)
		if derr != nil {
			return nil, nil, identity.EntityId{}, Registration{}, derr
		}
		db.Put(srv.ID(), shared)
	}

	userID = identity.IDFromPublicKey(sigPk)
	reg = Registration{
		Sig: identity.AttestedPublicKey{PK: sigPk, Role: identity.RoleUser},
		Kem: identity.AttestedPublicKey{PK: kemPk[:], Role: identity.RoleUser},
	}
	return db, sigSk, userID, reg, nil
}
