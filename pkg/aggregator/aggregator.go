package aggregator

import (
	"fmt"
	"sync"

	"github.com/bl4ck5un/zipnet/pkg/crypt"
	"github.com/bl4ck5un/zipnet/pkg/dcerr"
	"github.com/bl4ck5un/zipnet/pkg/identity"
	"github.com/bl4ck5un/zipnet/pkg/user"
	"github.com/bl4ck5un/zipnet/pkg/wire"
)

// State tracks the aggregator's session lifecycle:
// Empty -> Accumulating(r, g) -> Finalized(r, g).
type State int

const (
	StateEmpty State = iota
	StateAccumulating
	StateFinalized
)

// Aggregator is a mutex-serialized accumulator of user submissions for a
// single (round, group) session.
type Aggregator struct {
	mu sync.Mutex

	SigSK crypt.SigPrivateKey
	SigPK crypt.SigPublicKey
	ID    identity.EntityId

	state   State
	round   uint32
	groupID identity.EntityId
	acc     *PartialAggregate
}

// NewAggregator generates a fresh aggregator identity and its
// registration blob.
func NewAggregator() (*Aggregator, identity.AttestedPublicKey, error) {
	sk, pk, err := crypt.GenerateSigKeypair()
	if err != nil {
		return nil, identity.AttestedPublicKey{}, err
	}
	a := &Aggregator{
		SigSK: sk,
		SigPK: pk,
		ID:    identity.IDFromPublicKey(pk),
		state: StateEmpty,
	}
	return a, identity.AttestedPublicKey{PK: pk, Role: identity.RoleAgg}, nil
}

// Clear resets the aggregator to Accumulating(round, group), discarding
// any prior accumulation.
func (a *Aggregator) Clear(round uint32, group identity.EntityId) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.round = round
	a.groupID = group
	a.acc = identityAggregate(round, group)
	a.state = StateAccumulating
}

// State returns the aggregator's current state.
func (a *Aggregator) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Current returns a copy of the current accumulator, or nil before the
// first Clear. The accumulator is unsigned until the first contribution
// has been combined, and signed after every combine. Safe to call from any
// state; readers of a finalized aggregate need no locking beyond this
// snapshot copy.
func (a *Aggregator) Current() *PartialAggregate {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.acc == nil {
		return nil
	}
	return a.acc.Clone()
}

// CombineSubmission verifies and folds a single user submission into the
// accumulator. On any error the accumulator is left unchanged.
func (a *Aggregator) CombineSubmission(sub *user.UserSubmissionMessage) error {
	if err := sub.Verify(); err != nil {
		return err
	}
	return a.combine(FromSubmission(sub))
}

// CombinePartial folds another aggregator's (or a sub-tree's) partial
// aggregate into this one; used when aggregators are arranged in a tree
// topology. Combine is associative and commutative, so the tree shape is
// a deployment concern, not a protocol concern.
func (a *Aggregator) CombinePartial(other *PartialAggregate) error {
	if err := other.Verify(); err != nil {
		return err
	}
	return a.combine(other)
}

func (a *Aggregator) combine(contribution *PartialAggregate) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state != StateAccumulating {
		return fmt.Errorf("%w: aggregator is not accumulating", dcerr.RoundMismatch)
	}
	if contribution.Round != a.round || contribution.AnytrustGroupID != a.groupID {
		return fmt.Errorf("%w: contribution for (round %d, group %s), expected (%d, %s)",
			dcerr.RoundMismatch, contribution.Round, contribution.AnytrustGroupID, a.round, a.groupID)
	}

	merged, err := Combine(a.acc, contribution)
	if err != nil {
		return err
	}
	signed, err := a.sign(merged)
	if err != nil {
		return err
	}
	a.acc = signed
	return nil
}

// sign computes the canonical digest of acc's body and re-signs it.
// Every input signature has already been verified before combining.
func (a *Aggregator) sign(acc *PartialAggregate) (*PartialAggregate, error) {
	digest, err := wire.Digest("PartialAggregate", acc.Body)
	if err != nil {
		return nil, err
	}
	acc.Sig = crypt.Sign(a.SigSK, digest[:])
	acc.SigPK = a.SigPK
	return acc, nil
}

// Finalize transitions Accumulating -> Finalized and returns the final
// signed aggregate. Finalize is the identity function over the
// accumulated value: combine is already associative and commutative, so
// there is nothing left to do but stop accepting further contributions.
func (a *Aggregator) Finalize() (*PartialAggregate, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != StateAccumulating {
		return nil, fmt.Errorf("%w: aggregator is not accumulating", dcerr.RoundMismatch)
	}
	a.state = StateFinalized
	return a.acc.Clone(), nil
}
