package server

import (
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/bl4ck5un/zipnet/pkg/aggregator"
	"github.com/bl4ck5un/zipnet/pkg/clock"
	"github.com/bl4ck5un/zipnet/pkg/crypt"
	"github.com/bl4ck5un/zipnet/pkg/dcerr"
	"github.com/bl4ck5un/zipnet/pkg/dcnet"
	"github.com/bl4ck5un/zipnet/pkg/identity"
	"github.com/bl4ck5un/zipnet/pkg/secretdb"
	"github.com/bl4ck5un/zipnet/pkg/wire"
)

// roundSecretChunkSize bounds how many participants' pads a single
// errgroup worker derives before XOR-merging with the others.
const roundSecretChunkSize = 16

// UnblindedAggregateShareBody is UnblindedAggregateShare minus its
// signature.
type UnblindedAggregateShareBody struct {
	Round                   uint32
	AnytrustGroupID         identity.EntityId
	UserIDs                 []identity.EntityId
	EncodedWithShareRemoved *dcnet.DcRoundMessage
}

// UnblindedAggregateShare is one server's contribution toward stripping
// its pad share from a finalized PartialAggregate.
type UnblindedAggregateShare struct {
	UnblindedAggregateShareBody
	Sig   []byte
	SigPK crypt.SigPublicKey
}

// Verify checks the share's signature over its canonical body.
func (u *UnblindedAggregateShare) Verify() error {
	digest, err := wire.Digest("UnblindedAggregateShare", u.UnblindedAggregateShareBody)
	if err != nil {
		return err
	}
	if !crypt.Verify(u.SigPK, digest[:], u.Sig) {
		return fmt.Errorf("%w: unblinded aggregate share signature", dcerr.Crypto)
	}
	return nil
}

// Unblind removes this server's pad share from a finalized aggregate:
//  1. verify the aggregate's signature
//  2. confirm every contributing user_id is present in the secret DB
//  3. ratchet the DB forward to the aggregate's round (forbid if ahead)
//  4. derive this server's round secret (its partial pad over exactly the
//     contributing user set) and XOR it out of the aggregate's encoded field
//  5. sign and return the share
//  6. ratchet the DB one further step, covering every registered peer,
//     not just this round's participants, so the DB never falls behind
//     real time for users who did not talk this round
func (s *Server) Unblind(agg *aggregator.PartialAggregate, db *secretdb.DB) (*UnblindedAggregateShare, *secretdb.DB, error) {
	if err := agg.Verify(); err != nil {
		return nil, nil, err
	}
	for _, uid := range agg.UserIDs {
		if _, ok := db.Get(uid); !ok {
			return nil, nil, fmt.Errorf("%w: %s", dcerr.UnknownUser, uid)
		}
	}

	ratcheted, err := db.RatchetTo(agg.Round)
	if err != nil {
		return nil, nil, err
	}

	window := clock.New(agg.Round).Window
	roundSecret, err := computeRoundSecret(ratcheted, agg.UserIDs, agg.Round, window)
	if err != nil {
		return nil, nil, err
	}

	body := UnblindedAggregateShareBody{
		Round:                   agg.Round,
		AnytrustGroupID:         agg.AnytrustGroupID,
		UserIDs:                 append([]identity.EntityId(nil), agg.UserIDs...),
		EncodedWithShareRemoved: dcnet.Combine(agg.Encoded, roundSecret),
	}
	digest, err := wire.Digest("UnblindedAggregateShare", body)
	if err != nil {
		return nil, nil, err
	}
	share := &UnblindedAggregateShare{
		UnblindedAggregateShareBody: body,
		Sig:                        crypt.Sign(s.SigSK, digest[:]),
		SigPK:                      s.SigPK,
	}

	return share, ratcheted.Ratchet(), nil
}

// computeRoundSecret derives XOR_{u in userIDs} ExpandPad(s_u, round,
// window), partitioning userIDs into chunks of roundSecretChunkSize and
// deriving each chunk concurrently via errgroup, then XOR-merging the
// per-chunk partials.
func computeRoundSecret(db *secretdb.DB, userIDs []identity.EntityId, round, window uint32) (*dcnet.DcRoundMessage, error) {
	if len(userIDs) == 0 {
		return dcnet.New(), nil
	}

	nChunks := (len(userIDs) + roundSecretChunkSize - 1) / roundSecretChunkSize
	partials := make([]*dcnet.DcRoundMessage, nChunks)

	var g errgroup.Group
	for c := 0; c < nChunks; c++ {
		c := c
		start := c * roundSecretChunkSize
		end := start + roundSecretChunkSize
		if end > len(userIDs) {
			end = len(userIDs)
		}
		g.Go(func() error {
			acc := dcnet.New()
			for _, uid := range userIDs[start:end] {
				secret, ok := db.Get(uid)
				if !ok {
					return fmt.Errorf("%w: %s", dcerr.UnknownUser, uid)
				}
				contrib, err := dcnet.ExpandPad(secret, round, window)
				if err != nil {
					return err
				}
				acc.XOR(contrib)
			}
			partials[c] = acc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return dcnet.Combine(partials...), nil
}
