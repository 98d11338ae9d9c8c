package server

import (
	"fmt"

	"github.com/bl4ck5un/zipnet/pkg/crypt"
	"github.com/bl4ck5un/zipnet/pkg/dcerr"
	"github.com/bl4ck5un/zipnet/pkg/dcnet"
	"github.com/bl4ck5un/zipnet/pkg/identity"
)

// LeaderCombine XORs every server's unblinded share together into the
// final RoundOutput. It verifies every share's signature and that all
// shares agree on round and contributing user set before combining, and
// additionally co-signs the resulting plaintext with the leader's own key
// so a recipient can check the leader itself attests to the combine,
// without that signature being one of the per-server unblinding shares.
func LeaderCombine(leaderSigSK crypt.SigPrivateKey, shares []*UnblindedAggregateShare) (*dcnet.RoundOutput, error) {
	if len(shares) == 0 {
		return nil, fmt.Errorf("%w: leader_combine requires at least one share", dcerr.RoundMismatch)
	}
	for _, sh := range shares {
		if err := sh.Verify(); err != nil {
			return nil, err
		}
	}

	first := shares[0]
	for _, sh := range shares[1:] {
		if sh.Round != first.Round || sh.AnytrustGroupID != first.AnytrustGroupID || !sameUserIDs(sh.UserIDs, first.UserIDs) {
			return nil, fmt.Errorf("%w: shares disagree on round/group/user set", dcerr.RoundMismatch)
		}
	}

	dcMsg := dcnet.New()
	serverSigs := make(map[identity.EntityId][]byte, len(shares)+1)
	for _, sh := range shares {
		dcMsg.XOR(sh.EncodedWithShareRemoved)
		serverSigs[identity.IDFromPublicKey(sh.SigPK)] = sh.Sig
	}

	out := &dcnet.RoundOutput{Round: first.Round, DcMsg: dcMsg, ServerSigs: serverSigs}
	leaderPK := leaderSigSK.Public().(crypt.SigPublicKey)
	digest := leaderOutputDigest(out)
	serverSigs[leaderCoSignKey(leaderPK)] = crypt.Sign(leaderSigSK, digest[:])
	return out, nil
}

// leaderCoSignKey derives the ServerSigs key for the leader's
// co-signature. It is domain-separated from the leader's entity id so the
// co-signature never collides with the leader's own unblinding-share
// signature when the leader is a committee member.
func leaderCoSignKey(leaderPK crypt.SigPublicKey) identity.EntityId {
	return identity.EntityId(crypt.Digest("leader-cosign", leaderPK))
}

// leaderOutputDigest commits to the whole broadcast body: the scheduling
// footprint and every payload slot, not just the footprint. A leader
// signature over a partial body would let a recipient accept a co-sign
// that doesn't actually attest to the revealed payload.
func leaderOutputDigest(out *dcnet.RoundOutput) [32]byte {
	parts := make([][]byte, 0, 2+len(out.DcMsg.Payload))
	parts = append(parts, []byte(fmt.Sprintf("%d", out.Round)), out.DcMsg.Scheduling[:])
	for _, row := range out.DcMsg.Payload {
		row := row
		parts = append(parts, row[:])
	}
	return crypt.Digest("RoundOutput", parts...)
}

// VerifyLeaderSignature checks the leader's co-signature over out under
// leaderPK, the counterpart to the co-sign step LeaderCombine performs.
func VerifyLeaderSignature(out *dcnet.RoundOutput, leaderPK crypt.SigPublicKey) error {
	key := leaderCoSignKey(leaderPK)
	sig, ok := out.ServerSigs[key]
	if !ok {
		return fmt.Errorf("%w: no co-signature recorded for leader %s", dcerr.Crypto, identity.IDFromPublicKey(leaderPK))
	}
	digest := leaderOutputDigest(out)
	if !crypt.Verify(leaderPK, digest[:], sig) {
		return fmt.Errorf("%w: leader co-signature", dcerr.Crypto)
	}
	return nil
}

func sameUserIDs(a, b []identity.EntityId) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[identity.EntityId]bool, len(a))
	for _, id := range a {
		seen[id] = true
	}
	for _, id := range b {
		if !seen[id] {
			return false
		}
	}
	return true
}
