package dcnet

import (
	"encoding/binary"

	"github.com/bl4ck5un/zipnet/pkg/crypt"
)

// Footprint is a user's claim on a payload slot for the next round: a
// scheduling-slot index together with a pseudorandom FootprintBitSize
// value. Footprints are derived deterministically from (sig_sk, round) so
// a user's slot choice never depends on other users' choices.
type Footprint struct {
	Slot  int
	Value byte
}

// footprintCandidates expands (sigSk, round) into a deterministic
// pseudorandom sequence of FootprintNSlots scheduling-slot indices, each
// paired with a nonzero FootprintBitSize value. Each index is drawn
// independently, so a slot may appear more than once and some slots may
// not appear at all. Index 0 in the slice is tried first.
func footprintCandidates(sigSk []byte, round uint32) []Footprint {
	var roundBytes [4]byte
	binary.LittleEndian.PutUint32(roundBytes[:], round)
	seed := crypt.Digest("dcnet-footprint-schedule", sigSk, roundBytes[:])

	out := make([]Footprint, FootprintNSlots)
	for i := range out {
		var idx [4]byte
		binary.LittleEndian.PutUint32(idx[:], uint32(i))
		h := crypt.Digest("dcnet-footprint-slot", seed[:], idx[:])
		slot := int(binary.LittleEndian.Uint32(h[0:4]) % FootprintNSlots)
		value := h[4]%7 + 1 // nonzero: 1..7, so an occupied-but-uncontested
		// slot (value v) is never confused with a vacant slot (0).
		out[i] = Footprint{Slot: slot, Value: value}
	}
	return out
}

// ChooseFootprint deterministically derives this user's candidate
// footprint for `round` from their signing key, trying candidates in
// order until it finds a scheduling slot that `prevScheduling` (the
// scheduling half of the previous round's revealed output) shows as
// either vacant (zero) or already held uncontested by this exact
// footprint value. It returns the first candidate whose slot is free of
// any *other* value; ok is false if every candidate slot this round is
// contested by a different footprint.
func ChooseFootprint(sigSk []byte, round uint32, prevScheduling [FootprintNSlots]byte) (fp Footprint, ok bool) {
	for _, cand := range footprintCandidates(sigSk, round) {
		existing := prevScheduling[cand.Slot]
		if existing == 0 || existing == cand.Value {
			return cand, true
		}
	}
	return Footprint{}, false
}

// PayloadSlot maps a scheduling-slot index onto the payload-slot index a
// user may use once that scheduling slot is confirmed uncontested. The
// scheduling space is FootprintNSlots = 4*DCNetNSlots wide to keep
// collision probability low for a fixed DCNetNSlots-wide payload grid.
func PayloadSlot(schedulingSlot int) int {
	return schedulingSlot % DCNetNSlots
}
