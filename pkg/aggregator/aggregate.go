// Package aggregator implements the PartialAggregate monoid and the
// stateful, mutex-guarded Aggregator that combines user submissions into
// it.
package aggregator

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/bl4ck5un/zipnet/pkg/crypt"
	"github.com/bl4ck5un/zipnet/pkg/dcerr"
	"github.com/bl4ck5un/zipnet/pkg/dcnet"
	"github.com/bl4ck5un/zipnet/pkg/identity"
	"github.com/bl4ck5un/zipnet/pkg/user"
	"github.com/bl4ck5un/zipnet/pkg/wire"
)

// Body is PartialAggregate minus its signature: the part that is
// canonically serialized and digested before signing.
type Body struct {
	Round           uint32
	AnytrustGroupID identity.EntityId
	UserIDs         []identity.EntityId
	RateLimitNonces []user.RateLimitNonce
	Encoded         *dcnet.DcRoundMessage
}

// PartialAggregate is the free monoid over user submissions: the XOR of
// every contributing user's encoded message, plus the set of
// contributing user ids and their rate-limit nonces.
// Invariant: Encoded = XOR_{u in UserIDs} encoded_u.
type PartialAggregate struct {
	Body
	Sig   []byte
	SigPK crypt.SigPublicKey
}

// identityAggregate is the monoid identity for (round, group): empty
// user_ids, empty nonce set, all-zero encoded.
func identityAggregate(round uint32, group identity.EntityId) *PartialAggregate {
	return &PartialAggregate{Body: Body{
		Round:           round,
		AnytrustGroupID: group,
		UserIDs:         nil,
		RateLimitNonces: nil,
		Encoded:         dcnet.New(),
	}}
}

// IsEmpty reports whether p contributes no users.
func (p *PartialAggregate) IsEmpty() bool {
	return len(p.UserIDs) == 0 && len(p.RateLimitNonces) == 0 && p.Encoded.IsZero()
}

// Clone deep-copies p.
func (p *PartialAggregate) Clone() *PartialAggregate {
	out := &PartialAggregate{
		Body: Body{
			Round:           p.Round,
			AnytrustGroupID: p.AnytrustGroupID,
			UserIDs:         append([]identity.EntityId(nil), p.UserIDs...),
			RateLimitNonces: append([]user.RateLimitNonce(nil), p.RateLimitNonces...),
			Encoded:         p.Encoded.Clone(),
		},
		Sig:   append([]byte(nil), p.Sig...),
		SigPK: append(crypt.SigPublicKey(nil), p.SigPK...),
	}
	return out
}

func (p *PartialAggregate) hasUser(id identity.EntityId) bool {
	for _, u := range p.UserIDs {
		if u == id {
			return true
		}
	}
	return false
}

func (p *PartialAggregate) hasNonce(n user.RateLimitNonce) bool {
	for _, x := range p.RateLimitNonces {
		if x == n {
			return true
		}
	}
	return false
}

// FromSubmission converts a single signed user submission into the
// one-user PartialAggregate that gets folded into an accumulator.
func FromSubmission(sub *user.UserSubmissionMessage) *PartialAggregate {
	return &PartialAggregate{Body: Body{
		Round:           sub.Round,
		AnytrustGroupID: sub.AnytrustGroupID,
		UserIDs:         []identity.EntityId{sub.UserID},
		RateLimitNonces: []user.RateLimitNonce{sub.RateLimitNonce},
		Encoded:         sub.Encoded.Clone(),
	}}
}

// Combine XOR-combines a and b into a fresh PartialAggregate: user id
// and nonce sets are unioned (duplicates are rejected), encoded fields
// are XORed, and round/group must agree. a and b are never mutated, so
// on error the caller's accumulator is untouched.
func Combine(a, b *PartialAggregate) (*PartialAggregate, error) {
	if a.Round != b.Round || a.AnytrustGroupID != b.AnytrustGroupID {
		return nil, fmt.Errorf("%w: combining round/group (%d,%s) with (%d,%s)",
			dcerr.RoundMismatch, a.Round, a.AnytrustGroupID, b.Round, b.AnytrustGroupID)
	}
	if a.IsEmpty() {
		out := b.Clone()
		out.Round, out.AnytrustGroupID = a.Round, a.AnytrustGroupID
		return out, nil
	}
	if b.IsEmpty() {
		return a.Clone(), nil
	}
	for _, id := range b.UserIDs {
		if a.hasUser(id) {
			return nil, fmt.Errorf("%w: user %s", dcerr.DuplicateUser, id)
		}
	}
	for _, n := range b.RateLimitNonces {
		if a.hasNonce(n) {
			return nil, fmt.Errorf("%w: rate-limit nonce", dcerr.DuplicateNonce)
		}
	}

	out := a.Clone()
	out.UserIDs = append(out.UserIDs, b.UserIDs...)
	out.RateLimitNonces = append(out.RateLimitNonces, b.RateLimitNonces...)
	sortEntityIDs(out.UserIDs)
	sortRateLimitNonces(out.RateLimitNonces)
	out.Encoded = dcnet.Combine(a.Encoded, b.Encoded)
	return out, nil
}

func sortEntityIDs(ids []identity.EntityId) {
	sort.Slice(ids, func(i, j int) bool { return ids[i].Less(ids[j]) })
}

// sortRateLimitNonces keeps the nonce set in byte order so the canonical
// serialization of a combined aggregate is independent of merge order.
func sortRateLimitNonces(nonces []user.RateLimitNonce) {
	sort.Slice(nonces, func(i, j int) bool { return bytes.Compare(nonces[i][:], nonces[j][:]) < 0 })
}

// Verify checks the aggregate's signature over its canonical body.
func (p *PartialAggregate) Verify() error {
	digest, err := wire.Digest("PartialAggregate", p.Body)
	if err != nil {
		return err
	}
	if !crypt.Verify(p.SigPK, digest[:], p.Sig) {
		return fmt.Errorf("%w: partial aggregate signature", dcerr.Crypto)
	}
	return nil
}
