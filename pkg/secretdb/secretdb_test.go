package secretdb_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bl4ck5un/zipnet/pkg/identity"
	"github.com/bl4ck5un/zipnet/pkg/secretdb"
)

func peer(name string) identity.EntityId {
	return identity.IDFromPublicKey([]byte(name))
}

func TestRatchetDoesNotMutateOriginal(t *testing.T) {
	db := secretdb.New()
	var secret [32]byte
	copy(secret[:], []byte("original shared secret material"))
	db.Put(peer("server-1"), secret)

	next := db.Ratchet()

	gotOriginal, ok := db.Get(peer("server-1"))
	require.True(t, ok)
	assert.Equal(t, secret, gotOriginal, "Ratchet must not mutate its receiver")

	gotNext, ok := next.Get(peer("server-1"))
	require.True(t, ok)
	assert.NotEqual(t, secret, gotNext)
	assert.Equal(t, db.Round+1, next.Round)
}

func TestRatchetIsDeterministic(t *testing.T) {
	db := secretdb.New()
	var secret [32]byte
	copy(secret[:], []byte("another shared secret material.."))
	db.Put(peer("server-2"), secret)

	a := db.Ratchet()
	b := db.Ratchet()
	assert.Equal(t, a.Secrets, b.Secrets)
}

func TestRatchetToRejectsBackwardMovement(t *testing.T) {
	db := secretdb.New()
	ahead, err := db.RatchetTo(3)
	require.NoError(t, err)

	_, err = ahead.RatchetTo(1)
	assert.Error(t, err)
}

func TestRatchetToIsIdempotentAtSameRound(t *testing.T) {
	db := secretdb.New()
	same, err := db.RatchetTo(db.Round)
	require.NoError(t, err)
	assert.Equal(t, db, same)
}

func TestCloneIsIndependent(t *testing.T) {
	db := secretdb.New()
	var secret [32]byte
	copy(secret[:], []byte("cloned secret material..........."))
	db.Put(peer("server-3"), secret)

	clone := db.Clone()
	clone.Secrets[peer("server-4")] = secret

	_, ok := db.Get(peer("server-4"))
	assert.False(t, ok, "mutating the clone must not affect the original")
}
