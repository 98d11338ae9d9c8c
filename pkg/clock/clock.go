// Package clock implements the (round, window) arithmetic:
// window = round / DCNetRoundsPerWindow, with the round transitions and
// the per-window talk cap.
package clock

import "github.com/bl4ck5un/zipnet/pkg/dcnet"

// RoundInfo identifies a single DC-net round and the rate-limit window it
// falls in.
type RoundInfo struct {
	Round  uint32
	Window uint32
}

// New derives the RoundInfo for a round number.
func New(round uint32) RoundInfo {
	return RoundInfo{Round: round, Window: round / dcnet.DCNetRoundsPerWindow}
}

// Zero is the initial (round=0, window=0) info: the first round of the
// first window, before any round output exists.
var Zero = New(0)

// NextRound rolls (round, window) forward by one round, crossing the
// window boundary when needed.
func (r RoundInfo) NextRound() RoundInfo {
	return New(r.Round + 1)
}

// PrevRound returns the previous round's info, or ok=false at (0, 0).
func (r RoundInfo) PrevRound() (prev RoundInfo, ok bool) {
	if r.Round == 0 {
		return RoundInfo{}, false
	}
	return New(r.Round - 1), true
}

// Equal reports whether r and other name the same round.
func (r RoundInfo) Equal(other RoundInfo) bool {
	return r.Round == other.Round && r.Window == other.Window
}

// TimesParticipatedAllowed reports whether another talk submission fits
// under the DCNetMsgsPerWindow cap.
func TimesParticipatedAllowed(timesParticipated int) bool {
	return timesParticipated < dcnet.DCNetMsgsPerWindow
}
