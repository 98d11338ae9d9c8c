package server_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bl4ck5un/zipnet/pkg/aggregator"
	"github.com/bl4ck5un/zipnet/pkg/clock"
	"github.com/bl4ck5un/zipnet/pkg/crypt"
	"github.com/bl4ck5un/zipnet/pkg/dcnet"
	"github.com/bl4ck5un/zipnet/pkg/identity"
	"github.com/bl4ck5un/zipnet/pkg/secretdb"
	"github.com/bl4ck5un/zipnet/pkg/server"
	"github.com/bl4ck5un/zipnet/pkg/user"
)

type userSub struct {
	reg        user.Registration
	submission *user.UserSubmissionMessage
}

func oneUserCoverSubmission(t *testing.T, pkgs []identity.ServerPubKeyPackage, groupID identity.EntityId) userSub {
	t.Helper()
	db, sigSk, userID, reg, err := user.NewUser(pkgs)
	require.NoError(t, err)

	result, err := user.Submit(clock.Zero, user.NewCoverMsg(), dcnet.ZeroRoundOutput(), groupID, userID, sigSk, db)
	require.NoError(t, err)
	return userSub{reg: reg, submission: result.Submission}
}

// buildFinalizedAggregateMultiServer registers usersPerServer users against
// every server in srvs and folds their round-0 cover submissions into a
// single finalized aggregate, scoped to the full committee's group id.
func buildFinalizedAggregateMultiServer(t *testing.T, srvs []*server.Server, pkgs []identity.ServerPubKeyPackage, usersPerServer int) (*aggregator.PartialAggregate, []*secretdb.DB) {
	t.Helper()
	sigPKs := make([][]byte, len(pkgs))
	for i, p := range pkgs {
		sigPKs[i] = p.SigPK
	}
	groupID := identity.GroupID(sigPKs)

	pubkeyDBs := make([]*server.PubKeyDB, len(srvs))
	secretDBs := make([]*secretdb.DB, len(srvs))
	for i := range srvs {
		pubkeyDBs[i] = server.NewPubKeyDB()
		secretDBs[i] = secretdb.New()
	}

	agg, _, err := aggregator.NewAggregator()
	require.NoError(t, err)
	agg.Clear(0, groupID)

	for i := 0; i < usersPerServer; i++ {
		sub := oneUserCoverSubmission(t, pkgs, groupID)
		for j := range srvs {
			var rerr error
			pubkeyDBs[j], secretDBs[j], rerr = srvs[j].RecvUserRegistration(pubkeyDBs[j], secretDBs[j], sub.reg, identity.AcceptAllVerifier{})
			require.NoError(t, rerr)
		}
		require.NoError(t, agg.CombineSubmission(sub.submission))
	}

	final, err := agg.Finalize()
	require.NoError(t, err)
	return final, secretDBs
}

func committeeRound(t *testing.T, n, usersPerServer int) (leader *server.Server, shares []*server.UnblindedAggregateShare) {
	t.Helper()
	srvs := make([]*server.Server, n)
	pkgs := make([]identity.ServerPubKeyPackage, n)
	for i := 0; i < n; i++ {
		s, pkg, err := server.NewServer()
		require.NoError(t, err)
		srvs[i] = s
		pkgs[i] = pkg
	}

	agg, secretDBs := buildFinalizedAggregateMultiServer(t, srvs, pkgs, usersPerServer)

	shares = make([]*server.UnblindedAggregateShare, n)
	for i := 0; i < n; i++ {
		share, _, err := srvs[i].Unblind(agg, secretDBs[i])
		require.NoError(t, err)
		shares[i] = share
	}
	return srvs[0], shares
}

func TestLeaderCombineCoSignsAndXORsShares(t *testing.T) {
	leader, shares := committeeRound(t, 3, 2)

	out, err := server.LeaderCombine(leader.SigSK, shares)
	require.NoError(t, err)
	assert.Equal(t, shares[0].Round, out.Round)
	assert.Len(t, out.ServerSigs, len(shares)+1, "one sig per sharing server plus the leader's own co-signature")

	leaderPK := leader.SigSK.Public().(crypt.SigPublicKey)
	assert.NoError(t, server.VerifyLeaderSignature(out, leaderPK))

	tampered := *out
	tampered.DcMsg = out.DcMsg.Clone()
	tampered.DcMsg.Payload[0][0] ^= 0xff
	assert.Error(t, server.VerifyLeaderSignature(&tampered, leaderPK), "co-signature must commit to the payload, not just scheduling")
}

func TestLeaderCombineRejectsEmptyShareSet(t *testing.T) {
	leader, _, err := server.NewServer()
	require.NoError(t, err)

	_, err = server.LeaderCombine(leader.SigSK, nil)
	assert.Error(t, err)
}

func TestLeaderCombineRejectsMismatchedRounds(t *testing.T) {
	leader, shares := committeeRound(t, 2, 1)
	shares[1].Round = shares[0].Round + 1

	_, err := server.LeaderCombine(leader.SigSK, shares)
	assert.Error(t, err)
}

func TestLeaderCombineRejectsBadShareSignature(t *testing.T) {
	leader, shares := committeeRound(t, 2, 1)
	shares[0].Sig = append([]byte(nil), shares[0].Sig...)
	shares[0].Sig[0] ^= 0xff

	_, err := server.LeaderCombine(leader.SigSK, shares)
	assert.Error(t, err)
}
