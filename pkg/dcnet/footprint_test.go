package dcnet_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bl4ck5un/zipnet/pkg/dcnet"
)

func TestChooseFootprintIsDeterministic(t *testing.T) {
	sigSk := []byte("a fixed signing key for this test case.")
	var prev [dcnet.FootprintNSlots]byte

	fp1, ok1 := dcnet.ChooseFootprint(sigSk, 5, prev)
	fp2, ok2 := dcnet.ChooseFootprint(sigSk, 5, prev)
	require.True(t, ok1)
	require.True(t, ok2)
	assert.Equal(t, fp1, fp2)
}

func TestChooseFootprintVariesBySigningKey(t *testing.T) {
	var prev [dcnet.FootprintNSlots]byte

	fpA, ok := dcnet.ChooseFootprint([]byte("signer a key material........."), 5, prev)
	require.True(t, ok)
	fpB, ok := dcnet.ChooseFootprint([]byte("signer b key material........."), 5, prev)
	require.True(t, ok)

	assert.NotEqual(t, fpA, fpB)
}

func TestChooseFootprintAcceptsUncontestedExistingValue(t *testing.T) {
	sigSk := []byte("another fixed signing key for this test.")
	var zero [dcnet.FootprintNSlots]byte

	fp, ok := dcnet.ChooseFootprint(sigSk, 1, zero)
	require.True(t, ok)

	var prev [dcnet.FootprintNSlots]byte
	prev[fp.Slot] = fp.Value

	again, ok := dcnet.ChooseFootprint(sigSk, 1, prev)
	require.True(t, ok)
	assert.Equal(t, fp, again)
}

func TestChooseFootprintRejectsContestedSlot(t *testing.T) {
	sigSk := []byte("yet another fixed signing key for the test.")

	// Footprint values are always in 1..7; a scheduling array whose every
	// slot holds 8 can never match any candidate value nor read as vacant
	// (0), so every one of the deterministic candidates is contested.
	var allContested [dcnet.FootprintNSlots]byte
	for i := range allContested {
		allContested[i] = 8
	}

	_, ok := dcnet.ChooseFootprint(sigSk, 2, allContested)
	assert.False(t, ok)
}

func TestChooseFootprintValueSurvivesSetFootprint(t *testing.T) {
	// A chosen footprint must be written back verbatim: a candidate value
	// outside 1..7 would be collapsed by SetFootprint's three-bit mask
	// and could read back as vacant.
	var prev [dcnet.FootprintNSlots]byte
	for round := uint32(0); round < 32; round++ {
		fp, ok := dcnet.ChooseFootprint([]byte("round-trip signing key material"), round, prev)
		require.True(t, ok)
		require.GreaterOrEqual(t, fp.Value, byte(1))
		require.LessOrEqual(t, fp.Value, byte(7))

		m := dcnet.New()
		require.NoError(t, m.SetFootprint(fp.Slot, fp.Value))
		assert.Equal(t, fp.Value, m.Scheduling[fp.Slot])
	}
}

func TestPayloadSlotWraps(t *testing.T) {
	assert.Equal(t, 0, dcnet.PayloadSlot(0))
	assert.Equal(t, 0, dcnet.PayloadSlot(dcnet.DCNetNSlots))
	assert.Equal(t, 1, dcnet.PayloadSlot(dcnet.DCNetNSlots+1))
}
