package user

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/bl4ck5un/zipnet/pkg/crypt"
	"github.com/bl4ck5un/zipnet/pkg/dcerr"
	"github.com/bl4ck5un/zipnet/pkg/identity"
)

// RateLimitNonce is the 32-byte value an aggregator uses to detect
// duplicate talk submissions within a window.
type RateLimitNonce [crypt.SharedSecretLength]byte

// talkNonce computes the deterministic nonce for talk/reserve traffic:
// SHA-256(domain="rate-limit-nonce" || group_id || sig_sk || le32(window)
// || le32(times_participated)). Determinism here is essential:
// resubmitting within the same window at the same times_participated
// reproduces the same nonce so aggregators can reject the duplicate
// locally.
func talkNonce(sigSk []byte, groupID identity.EntityId, window uint32, timesParticipated int) RateLimitNonce {
	var winBuf, cntBuf [4]byte
	binary.LittleEndian.PutUint32(winBuf[:], window)
	binary.LittleEndian.PutUint32(cntBuf[:], uint32(timesParticipated))
	return RateLimitNonce(crypt.Digest("rate-limit-nonce", groupID[:], sigSk, winBuf[:], cntBuf[:]))
}

// coverNonce returns a fresh, uniformly random nonce for cover traffic.
func coverNonce() (RateLimitNonce, error) {
	var n RateLimitNonce
	if _, err := io.ReadFull(rand.Reader, n[:]); err != nil {
		return n, fmt.Errorf("%w: cover nonce: %v", dcerr.Crypto, err)
	}
	return n, nil
}

// RateCounter tracks how many talk messages a user has submitted in each
// rate-limit window. Submit takes the count as an argument rather than
// owning it, so this bookkeeping lives with the caller.
type RateCounter struct {
	counts map[uint32]int
}

// NewRateCounter returns an empty counter.
func NewRateCounter() *RateCounter {
	return &RateCounter{counts: make(map[uint32]int)}
}

// TimesParticipated returns how many talk messages have been sent in
// window so far.
func (c *RateCounter) TimesParticipated(window uint32) int {
	return c.counts[window]
}

// RecordTalk increments the counter for window after a successful talk
// submission.
func (c *RateCounter) RecordTalk(window uint32) {
	c.counts[window]++
}
