package server_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bl4ck5un/zipnet/pkg/identity"
	"github.com/bl4ck5un/zipnet/pkg/secretdb"
	"github.com/bl4ck5un/zipnet/pkg/server"
	"github.com/bl4ck5un/zipnet/pkg/user"
)

func TestNewServerProducesMatchingPubKeyPackage(t *testing.T) {
	s, pkg, err := server.NewServer()
	require.NoError(t, err)
	assert.Equal(t, s.SigPK, pkg.SigPK)
	assert.Equal(t, s.KemPK, pkg.KemPK)
	assert.Equal(t, s.ID, pkg.ID())
}

func TestRecvUserRegistrationDerivesSharedSecret(t *testing.T) {
	s, pkg, err := server.NewServer()
	require.NoError(t, err)

	_, _, userID, reg, err := user.NewUser([]identity.ServerPubKeyPackage{pkg})
	require.NoError(t, err)

	pubkeyDB, secretDB, err := s.RecvUserRegistration(server.NewPubKeyDB(), secretdb.New(), reg, identity.AcceptAllVerifier{})
	require.NoError(t, err)

	pk, ok := pubkeyDB.Users[userID]
	require.True(t, ok)
	assert.Equal(t, []byte(reg.Sig.PK), []byte(pk))

	_, ok = secretDB.Get(userID)
	assert.True(t, ok)
}

func TestRecvUserRegistrationDoesNotMutateInputs(t *testing.T) {
	s, pkg, err := server.NewServer()
	require.NoError(t, err)
	_, _, _, reg, err := user.NewUser([]identity.ServerPubKeyPackage{pkg})
	require.NoError(t, err)

	origPubkeyDB := server.NewPubKeyDB()
	origSecretDB := secretdb.New()

	_, _, err = s.RecvUserRegistration(origPubkeyDB, origSecretDB, reg, identity.AcceptAllVerifier{})
	require.NoError(t, err)

	assert.Empty(t, origPubkeyDB.Users, "input PubKeyDB must be left untouched")
	assert.Empty(t, origSecretDB.Secrets, "input secret DB must be left untouched")
}

type rejectAllVerifier struct{}

func (rejectAllVerifier) Verify(identity.AttestedPublicKey) error {
	return assert.AnError
}

func TestRecvUserRegistrationRejectsBadAttestation(t *testing.T) {
	s, pkg, err := server.NewServer()
	require.NoError(t, err)
	_, _, _, reg, err := user.NewUser([]identity.ServerPubKeyPackage{pkg})
	require.NoError(t, err)

	_, _, err = s.RecvUserRegistration(server.NewPubKeyDB(), secretdb.New(), reg, rejectAllVerifier{})
	assert.Error(t, err)
}

func TestRecvUserRegistrationsBatchesSequentially(t *testing.T) {
	s, pkg, err := server.NewServer()
	require.NoError(t, err)

	const n = 5
	regs := make([]user.Registration, n)
	for i := 0; i < n; i++ {
		_, _, _, reg, rerr := user.NewUser([]identity.ServerPubKeyPackage{pkg})
		require.NoError(t, rerr)
		regs[i] = reg
	}

	pubkeyDB, secretDB, err := s.RecvUserRegistrations(server.NewPubKeyDB(), secretdb.New(), regs, identity.AcceptAllVerifier{})
	require.NoError(t, err)
	assert.Len(t, pubkeyDB.Users, n)
	assert.Len(t, secretDB.Secrets, n)
}
