package user_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bl4ck5un/zipnet/pkg/dcnet"
	"github.com/bl4ck5un/zipnet/pkg/user"
)

func TestHistoryRecordAndGet(t *testing.T) {
	h := user.NewHistory(2)
	h.Record(&dcnet.RoundOutput{Round: 5, DcMsg: dcnet.New()})

	out, ok := h.Get(5)
	assert.True(t, ok)
	assert.Equal(t, uint32(5), out.Round)

	_, ok = h.Get(6)
	assert.False(t, ok)
}

func TestHistoryEvictsOldRounds(t *testing.T) {
	h := user.NewHistory(2)
	for round := uint32(0); round <= 5; round++ {
		h.Record(&dcnet.RoundOutput{Round: round, DcMsg: dcnet.New()})
	}

	_, ok := h.Get(0)
	assert.False(t, ok, "round 0 should have been evicted by round 5 with keep=2")
	_, ok = h.Get(5)
	assert.True(t, ok)
}
