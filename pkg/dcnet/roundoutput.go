package dcnet

import "github.com/bl4ck5un/zipnet/pkg/identity"

// RoundOutput is the plaintext XOR-aggregate broadcast to users as a
// round's result: DcMsg is the XOR over all participating users'
// plaintext messages, once every anytrust server has removed its share.
type RoundOutput struct {
	Round      uint32
	DcMsg      *DcRoundMessage
	ServerSigs map[identity.EntityId][]byte
}

// ZeroRoundOutput is the sentinel previous-round output a user presents
// when submitting to round 0 of window 0, before any round has produced
// a real output.
func ZeroRoundOutput() *RoundOutput {
	return &RoundOutput{Round: 0, DcMsg: New(), ServerSigs: map[identity.EntityId][]byte{}}
}
