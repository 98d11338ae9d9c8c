// Package secretdb implements the per-principal map from peer identity to
// a pairwise DH-derived secret, plus the ratchet that advances every
// secret exactly once per round. The ratchet returns a new DB rather than
// mutating in place; callers persist the returned value atomically.
package secretdb

import (
	"fmt"

	"github.com/bl4ck5un/zipnet/pkg/clock"
	"github.com/bl4ck5un/zipnet/pkg/crypt"
	"github.com/bl4ck5un/zipnet/pkg/dcerr"
	"github.com/bl4ck5un/zipnet/pkg/identity"
)

// DB is a principal's shared-secret database: one 32-byte secret per
// peer, all ratcheted to the same round depth.
type DB struct {
	Round   uint32
	Secrets map[identity.EntityId][crypt.SharedSecretLength]byte
}

// New creates an empty DB at round 0 (fresh from registration).
func New() *DB {
	return &DB{Secrets: make(map[identity.EntityId][crypt.SharedSecretLength]byte)}
}

// Window reports the DB's current rate-limit window, derived from Round.
func (db *DB) Window() uint32 {
	return clock.New(db.Round).Window
}

// Put installs the secret shared with peer, as derived at registration
// time.
func (db *DB) Put(peer identity.EntityId, secret [crypt.SharedSecretLength]byte) {
	db.Secrets[peer] = secret
}

// Get returns the secret shared with peer, if present.
func (db *DB) Get(peer identity.EntityId) ([crypt.SharedSecretLength]byte, bool) {
	s, ok := db.Secrets[peer]
	return s, ok
}

// Clone deep-copies db.
func (db *DB) Clone() *DB {
	out := &DB{
		Round:   db.Round,
		Secrets: make(map[identity.EntityId][crypt.SharedSecretLength]byte, len(db.Secrets)),
	}
	for k, v := range db.Secrets {
		out.Secrets[k] = v
	}
	return out
}

// Ratchet returns a new DB with every secret advanced one step
// (S' = SHA-256(S)) and Round incremented by one. db is left untouched;
// the caller persists the returned DB atomically, so a crash between
// ratcheting and persisting never leaves a half-ratcheted state on disk.
func (db *DB) Ratchet() *DB {
	out := &DB{
		Round:   db.Round + 1,
		Secrets: make(map[identity.EntityId][crypt.SharedSecretLength]byte, len(db.Secrets)),
	}
	for k, v := range db.Secrets {
		out.Secrets[k] = crypt.Ratchet(v)
	}
	return out
}

// RatchetTo ratchets db forward to targetRound, one round at a time.
// Ratcheting backward (targetRound < db.Round) is forbidden: a server
// that races ahead of an incoming aggregate cannot un-ratchet to recover
// an already-discarded secret.
func (db *DB) RatchetTo(targetRound uint32) (*DB, error) {
	if targetRound < db.Round {
		return nil, fmt.Errorf("%w: db is at round %d, cannot ratchet backward to %d", dcerr.RoundMismatch, db.Round, targetRound)
	}
	cur := db
	for cur.Round < targetRound {
		cur = cur.Ratchet()
	}
	return cur, nil
}
