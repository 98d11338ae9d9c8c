package server_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bl4ck5un/zipnet/pkg/aggregator"
	"github.com/bl4ck5un/zipnet/pkg/clock"
	"github.com/bl4ck5un/zipnet/pkg/dcnet"
	"github.com/bl4ck5un/zipnet/pkg/identity"
	"github.com/bl4ck5un/zipnet/pkg/secretdb"
	"github.com/bl4ck5un/zipnet/pkg/server"
	"github.com/bl4ck5un/zipnet/pkg/user"
)

// buildFinalizedAggregate registers n users against a single server and
// folds their round-0 cover submissions into a finalized PartialAggregate,
// exercising the parallel chunked derivation in Unblind with a user count
// that spans multiple chunks.
func buildFinalizedAggregate(t *testing.T, srv *server.Server, pkg identity.ServerPubKeyPackage, n int) (*aggregator.PartialAggregate, *secretdb.DB) {
	t.Helper()
	groupID := identity.GroupID([][]byte{pkg.SigPK})

	pubkeyDB := server.NewPubKeyDB()
	secretDB := secretdb.New()

	agg, _, err := aggregator.NewAggregator()
	require.NoError(t, err)
	agg.Clear(0, groupID)

	for i := 0; i < n; i++ {
		db, sigSk, userID, reg, uerr := user.NewUser([]identity.ServerPubKeyPackage{pkg})
		require.NoError(t, uerr)

		var rerr error
		pubkeyDB, secretDB, rerr = srv.RecvUserRegistration(pubkeyDB, secretDB, reg, identity.AcceptAllVerifier{})
		require.NoError(t, rerr)

		result, serr := user.Submit(clock.Zero, user.NewCoverMsg(), dcnet.ZeroRoundOutput(), groupID, userID, sigSk, db)
		require.NoError(t, serr)
		require.NoError(t, agg.CombineSubmission(result.Submission))
	}

	final, err := agg.Finalize()
	require.NoError(t, err)
	return final, secretDB
}

func TestUnblindRemovesExactlyThisServersPad(t *testing.T) {
	srv, pkg, err := server.NewServer()
	require.NoError(t, err)

	agg, secretDB := buildFinalizedAggregate(t, srv, pkg, 3)
	share, nextDB, err := srv.Unblind(agg, secretDB)
	require.NoError(t, err)
	require.NoError(t, share.Verify())
	assert.Equal(t, agg.Round, share.Round)
	assert.ElementsMatch(t, agg.UserIDs, share.UserIDs)
	// Cover submissions carry an all-zero plaintext and this is the only
	// server, so removing its pad must leave nothing behind.
	assert.True(t, share.EncodedWithShareRemoved.IsZero(), "the sole server's pad must cancel every user's pad")
	assert.Equal(t, agg.Round+1, nextDB.Round, "ratchet to the aggregate's round then one further step")
}

func TestUnblindSpansMultipleChunks(t *testing.T) {
	srv, pkg, err := server.NewServer()
	require.NoError(t, err)

	// roundSecretChunkSize is 16; 40 users forces 3 chunks.
	agg, secretDB := buildFinalizedAggregate(t, srv, pkg, 40)
	share, _, err := srv.Unblind(agg, secretDB)
	require.NoError(t, err)
	require.NoError(t, share.Verify())
	assert.Len(t, share.UserIDs, 40)
}

func TestUnblindRejectsUnknownUser(t *testing.T) {
	srv, pkg, err := server.NewServer()
	require.NoError(t, err)

	agg, _ := buildFinalizedAggregate(t, srv, pkg, 1)
	// A fresh, empty secret DB never saw this user register.
	_, _, err = srv.Unblind(agg, secretdb.New())
	assert.Error(t, err)
}

func TestUnblindRejectsBadAggregateSignature(t *testing.T) {
	srv, pkg, err := server.NewServer()
	require.NoError(t, err)

	agg, secretDB := buildFinalizedAggregate(t, srv, pkg, 1)
	tampered := agg.Clone()
	tampered.Sig = append([]byte(nil), tampered.Sig...)
	tampered.Sig[0] ^= 0xff

	_, _, err = srv.Unblind(tampered, secretDB)
	assert.Error(t, err)
}
