package user

import (
	"fmt"

	"github.com/bl4ck5un/zipnet/pkg/clock"
	"github.com/bl4ck5un/zipnet/pkg/crypt"
	"github.com/bl4ck5un/zipnet/pkg/dcerr"
	"github.com/bl4ck5un/zipnet/pkg/dcnet"
	"github.com/bl4ck5un/zipnet/pkg/identity"
	"github.com/bl4ck5un/zipnet/pkg/secretdb"
	"github.com/bl4ck5un/zipnet/pkg/wire"
)

// Kind distinguishes the three per-round message variants.
type Kind int

const (
	// KindCover sends pure cover traffic: no payload, no reservation.
	KindCover Kind = iota
	// KindReserve claims a footprint for a future round, without
	// talking this round.
	KindReserve
	// KindTalkAndReserve uses a footprint won in a previous round to
	// talk this round, and simultaneously claims a new footprint for a
	// future round.
	KindTalkAndReserve
)

// Msg is the tagged message variant a caller constructs per round.
type Msg struct {
	Kind Kind

	// TimesParticipated is this user's talk count so far this window;
	// required for KindReserve and KindTalkAndReserve.
	TimesParticipated int

	// Payload is the plaintext to embed this round; required for
	// KindTalkAndReserve.
	Payload []byte

	// PendingFootprint is the footprint this user reserved in a
	// previous round and is now redeeming; required for
	// KindTalkAndReserve.
	PendingFootprint *dcnet.Footprint
}

// NewCoverMsg builds a KindCover message.
func NewCoverMsg() Msg { return Msg{Kind: KindCover} }

// NewReserveMsg builds a KindReserve message.
func NewReserveMsg(timesParticipated int) Msg {
	return Msg{Kind: KindReserve, TimesParticipated: timesParticipated}
}

// NewTalkAndReserveMsg builds a KindTalkAndReserve message.
func NewTalkAndReserveMsg(payload []byte, pending dcnet.Footprint, timesParticipated int) Msg {
	return Msg{Kind: KindTalkAndReserve, Payload: payload, PendingFootprint: &pending, TimesParticipated: timesParticipated}
}

// SubmissionBody is UserSubmissionMessage minus its signature, the part
// that gets canonically serialized and digested before signing.
type SubmissionBody struct {
	Round           uint32
	AnytrustGroupID identity.EntityId
	UserID          identity.EntityId
	RateLimitNonce  RateLimitNonce
	Encoded         *dcnet.DcRoundMessage
}

// UserSubmissionMessage is a signed, round-scoped user submission.
type UserSubmissionMessage struct {
	SubmissionBody
	Sig   []byte
	SigPK crypt.SigPublicKey
}

// Verify checks the submission's signature over its canonical body.
func (m *UserSubmissionMessage) Verify() error {
	digest, err := wire.Digest("UserSubmission", m.SubmissionBody)
	if err != nil {
		return err
	}
	if !crypt.Verify(m.SigPK, digest[:], m.Sig) {
		return fmt.Errorf("%w: user submission signature", dcerr.Crypto)
	}
	return nil
}

// SubmitResult bundles a signed submission with the state the caller
// must persist before submitting again.
type SubmitResult struct {
	Submission *UserSubmissionMessage

	// NextSecretDB is the ratcheted secret DB; persist it in place of
	// the DB passed to Submit.
	NextSecretDB *secretdb.DB

	// NextPendingFootprint is set when this submission reserved a
	// footprint for a future round (KindReserve, KindTalkAndReserve);
	// pass it back as Msg.PendingFootprint in a later round's
	// KindTalkAndReserve message.
	NextPendingFootprint *dcnet.Footprint
}

// Submit builds, pads, and signs a UserSubmissionMessage for the current
// round. db is never mutated; the ratcheted DB is returned for the caller
// to persist atomically.
func Submit(info clock.RoundInfo, msg Msg, prevOutput *dcnet.RoundOutput, groupID, userID identity.EntityId, sigSk crypt.SigPrivateKey, db *secretdb.DB) (*SubmitResult, error) {
	if err := checkPrevRoundOutput(info, prevOutput); err != nil {
		return nil, err
	}
	if db.Round != info.Round {
		return nil, fmt.Errorf("%w: secret db is at round %d, submitting to round %d", dcerr.RoundMismatch, db.Round, info.Round)
	}

	content := dcnet.New()
	var nonce RateLimitNonce
	var nextFootprint *dcnet.Footprint
	var err error

	switch msg.Kind {
	case KindCover:
		nonce, err = coverNonce()
		if err != nil {
			return nil, err
		}

	case KindReserve:
		if !clock.TimesParticipatedAllowed(msg.TimesParticipated) {
			return nil, fmt.Errorf("%w: %d talks already this window", dcerr.RateLimitExceeded, msg.TimesParticipated)
		}
		nonce = talkNonce(sigSk, groupID, info.Window, msg.TimesParticipated)
		cand, ok := dcnet.ChooseFootprint(sigSk, info.Round, prevOutput.DcMsg.Scheduling)
		if !ok {
			return nil, fmt.Errorf("%w: no uncontested footprint slot", dcerr.Scheduling)
		}
		if err := content.SetFootprint(cand.Slot, cand.Value); err != nil {
			return nil, err
		}
		nextFootprint = &cand

	case KindTalkAndReserve:
		if !clock.TimesParticipatedAllowed(msg.TimesParticipated) {
			return nil, fmt.Errorf("%w: %d talks already this window", dcerr.RateLimitExceeded, msg.TimesParticipated)
		}
		if msg.PendingFootprint == nil {
			return nil, fmt.Errorf("%w: talk requires a previously reserved footprint", dcerr.Scheduling)
		}
		pending := *msg.PendingFootprint
		if prevOutput.DcMsg.Scheduling[pending.Slot] != pending.Value {
			return nil, fmt.Errorf("%w: reserved footprint slot %d was contested", dcerr.Scheduling, pending.Slot)
		}
		slot := dcnet.PayloadSlot(pending.Slot)
		if err := content.SetPayload(slot, msg.Payload); err != nil {
			return nil, err
		}
		nonce = talkNonce(sigSk, groupID, info.Window, msg.TimesParticipated)
		cand, ok := dcnet.ChooseFootprint(sigSk, info.Round, prevOutput.DcMsg.Scheduling)
		if !ok {
			return nil, fmt.Errorf("%w: no uncontested footprint slot for next reservation", dcerr.Scheduling)
		}
		if err := content.SetFootprint(cand.Slot, cand.Value); err != nil {
			return nil, err
		}
		nextFootprint = &cand

	default:
		return nil, fmt.Errorf("%w: unknown UserMsg kind %d", dcerr.Serialization, msg.Kind)
	}

	pad, err := derivePad(db, info.Round, info.Window)
	if err != nil {
		return nil, err
	}
	encoded := dcnet.Combine(content, pad)

	body := SubmissionBody{
		Round:           info.Round,
		AnytrustGroupID: groupID,
		UserID:          userID,
		RateLimitNonce:  nonce,
		Encoded:         encoded,
	}
	digest, err := wire.Digest("UserSubmission", body)
	if err != nil {
		return nil, err
	}
	sigPk := sigSk.Public().(crypt.SigPublicKey)

	return &SubmitResult{
		Submission: &UserSubmissionMessage{
			SubmissionBody: body,
			Sig:            crypt.Sign(sigSk, digest[:]),
			SigPK:          sigPk,
		},
		NextSecretDB:         db.Ratchet(),
		NextPendingFootprint: nextFootprint,
	}, nil
}

// checkPrevRoundOutput checks that prevOutput names the round immediately
// before info, or is the zeroed initial output at round 0.
func checkPrevRoundOutput(info clock.RoundInfo, prevOutput *dcnet.RoundOutput) error {
	prev, ok := info.PrevRound()
	if !ok {
		if prevOutput == nil || prevOutput.Round != 0 || !prevOutput.DcMsg.IsZero() {
			return fmt.Errorf("%w: round 0 requires the zeroed initial round output", dcerr.RoundMismatch)
		}
		return nil
	}
	if prevOutput == nil || prevOutput.Round != prev.Round {
		return fmt.Errorf("%w: expected previous round output for round %d", dcerr.RoundMismatch, prev.Round)
	}
	return nil
}

// derivePad computes pad = XOR_i ExpandPad(s_i, round, window) over the
// full secret DB.
func derivePad(db *secretdb.DB, round, window uint32) (*dcnet.DcRoundMessage, error) {
	pad := dcnet.New()
	for _, secret := range db.Secrets {
		contrib, err := dcnet.ExpandPad(secret, round, window)
		if err != nil {
			return nil, err
		}
		pad.XOR(contrib)
	}
	return pad, nil
}
