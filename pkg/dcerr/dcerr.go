// Package dcerr defines the sentinel error kinds surfaced across every
// trust boundary in the DC-net core. The protocol operations in zipnet
// wrap one of these with fmt.Errorf("%w: ...") so callers can classify
// failures with errors.Is without depending on error string contents;
// pkg/config's own validation and decoding errors are plain errors that
// wrap none of them.
package dcerr

import "errors"

var (
	// Crypto covers signature verification, HKDF, and DH failures.
	Crypto = errors.New("dcnet: crypto failure")

	// RoundMismatch covers round/group/window disagreement across inputs.
	RoundMismatch = errors.New("dcnet: round mismatch")

	// RateLimitExceeded is returned when a user has already talked
	// DCNetMsgsPerWindow times in the current window.
	RateLimitExceeded = errors.New("dcnet: rate limit exceeded")

	// Scheduling is returned when no uncontested footprint slot exists
	// this round.
	Scheduling = errors.New("dcnet: no uncontested slot this round")

	// DuplicateUser is returned when an aggregator receives a second
	// submission from a user already present in the accumulator.
	DuplicateUser = errors.New("dcnet: duplicate user")

	// DuplicateNonce is returned when an aggregator receives a rate-limit
	// nonce already present in the accumulator.
	DuplicateNonce = errors.New("dcnet: duplicate nonce")

	// UnknownUser is returned when a server's secret DB lacks a
	// participant named in an aggregate.
	UnknownUser = errors.New("dcnet: unknown user")

	// BadAttestation is returned when an AttestationVerifier rejects a
	// registration blob.
	BadAttestation = errors.New("dcnet: bad attestation")

	// Serialization covers malformed wire input.
	Serialization = errors.New("dcnet: malformed input")
)
