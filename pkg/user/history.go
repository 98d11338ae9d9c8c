package user

import "github.com/bl4ck5un/zipnet/pkg/dcnet"

// History retains the most recent RoundOutputs, so a caller does not
// need to hand-carry the previous-round-output argument to Submit.
type History struct {
	outputs map[uint32]*dcnet.RoundOutput
	keep    int
}

// NewHistory returns a History that retains the most recently recorded
// round output plus those of the `keep` rounds before it.
func NewHistory(keep int) *History {
	return &History{outputs: make(map[uint32]*dcnet.RoundOutput), keep: keep}
}

// Record stores out, evicting anything older than `keep` rounds back.
func (h *History) Record(out *dcnet.RoundOutput) {
	h.outputs[out.Round] = out
	for round := range h.outputs {
		if out.Round >= uint32(h.keep) && round < out.Round-uint32(h.keep) {
			delete(h.outputs, round)
		}
	}
}

// Get returns the stored output for round, if still retained.
func (h *History) Get(round uint32) (*dcnet.RoundOutput, bool) {
	out, ok := h.outputs[round]
	return out, ok
}

// NewZeroRoundOutput is re-exported for convenience so callers that only
// import pkg/user don't also need pkg/dcnet for the round-0 sentinel.
func NewZeroRoundOutput() *dcnet.RoundOutput {
	return dcnet.ZeroRoundOutput()
}
