package main

import (
	"bytes"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/bl4ck5un/zipnet/pkg/aggregator"
	"github.com/bl4ck5un/zipnet/pkg/clock"
	"github.com/bl4ck5un/zipnet/pkg/config"
	"github.com/bl4ck5un/zipnet/pkg/crypt"
	"github.com/bl4ck5un/zipnet/pkg/dcerr"
	"github.com/bl4ck5un/zipnet/pkg/dcnet"
	"github.com/bl4ck5un/zipnet/pkg/identity"
	"github.com/bl4ck5un/zipnet/pkg/seal"
	"github.com/bl4ck5un/zipnet/pkg/secretdb"
	"github.com/bl4ck5un/zipnet/pkg/server"
	"github.com/bl4ck5un/zipnet/pkg/user"
	"github.com/bl4ck5un/zipnet/pkg/wire"
)

// principal is a simulated user: its long-term signing key, its per-server
// secret DB, and the bookkeeping Submit leaves to the caller.
type principal struct {
	id               identity.EntityId
	sigSk            crypt.SigPrivateKey
	db               *secretdb.DB
	rateCounter      *user.RateCounter
	pendingFootprint *dcnet.Footprint
}

// committeeMember is one simulated anytrust server, holding its own view
// of the registered signing keys and the per-user secret DB.
type committeeMember struct {
	srv     *server.Server
	pubkeys *server.PubKeyDB
	db      *secretdb.DB
}

func runSimulate(cmd *cobra.Command, args []string) error {
	if numUsers < 1 {
		return fmt.Errorf("--users must be at least 1")
	}
	if numServers < 1 {
		return fmt.Errorf("--servers must be at least 1")
	}

	logger := log.New(cmd.OutOrStdout(), "", log.LstdFlags)

	members := make([]*committeeMember, numServers)
	serverPubKeys := make([]identity.ServerPubKeyPackage, numServers)
	for i := range members {
		srv, pub, err := server.NewServer()
		if err != nil {
			return fmt.Errorf("server %d: %w", i, err)
		}
		members[i] = &committeeMember{srv: srv, pubkeys: server.NewPubKeyDB(), db: secretdb.New()}
		serverPubKeys[i] = pub
	}
	groupID := identity.GroupID(serverPubKeySigBytes(serverPubKeys))
	logger.Printf("anytrust group %s with %d servers", groupID, numServers)

	principals := make([]*principal, numUsers)
	for i := range principals {
		db, sigSk, userID, reg, err := user.NewUser(serverPubKeys)
		if err != nil {
			return fmt.Errorf("user %d: %w", i, err)
		}
		principals[i] = &principal{id: userID, sigSk: sigSk, db: db, rateCounter: user.NewRateCounter()}

		for _, m := range members {
			nextPubkeys, nextDB, err := m.srv.RecvUserRegistration(m.pubkeys, m.db, reg, identity.AcceptAllVerifier{})
			if err != nil {
				return fmt.Errorf("registering user %d with a server: %w", i, err)
			}
			m.pubkeys = nextPubkeys
			m.db = nextDB
		}
	}
	logger.Printf("registered %d users", numUsers)

	speakerIdx := 0
	history := user.NewHistory(4)
	prevOutput := user.NewZeroRoundOutput()

	for round := uint32(0); round < uint32(numRounds); round++ {
		info := clock.New(round)
		submissions := make([]*user.UserSubmissionMessage, 0, numUsers)
		var revealedSlot *int

		for i, p := range principals {
			msg := chooseMsg(i, speakerIdx, round, info, p)
			if i == speakerIdx && msg.Kind == user.KindTalkAndReserve && len(msg.Payload) > 0 {
				slot := dcnet.PayloadSlot(msg.PendingFootprint.Slot)
				revealedSlot = &slot
			}

			result, err := user.Submit(info, msg, prevOutput, groupID, p.id, p.sigSk, p.db)
			if errors.Is(err, dcerr.Scheduling) {
				// A contested footprint defers this user to a later
				// round; it stays unlinkable by sending cover traffic
				// instead.
				if verbose {
					logger.Printf("round %d: user %d footprint contested, falling back to cover", round, i)
				}
				p.pendingFootprint = nil
				if i == speakerIdx {
					revealedSlot = nil
				}
				msg = user.NewCoverMsg()
				result, err = user.Submit(info, msg, prevOutput, groupID, p.id, p.sigSk, p.db)
			}
			if err != nil {
				return fmt.Errorf("round %d, user %d submit: %w", round, i, err)
			}
			p.db = result.NextSecretDB
			if result.NextPendingFootprint != nil {
				p.pendingFootprint = result.NextPendingFootprint
			}
			if msg.Kind != user.KindCover {
				p.rateCounter.RecordTalk(info.Window)
			}

			// Round-trip the submission through the wire format, the
			// same canonical-CBOR-plus-framing boundary a networked
			// server would receive it over.
			wired, err := transmitSubmission(result.Submission)
			if err != nil {
				return fmt.Errorf("round %d, user %d: %w", round, i, err)
			}
			submissions = append(submissions, wired)
		}

		agg, _, err := aggregator.NewAggregator()
		if err != nil {
			return fmt.Errorf("round %d: %w", round, err)
		}
		agg.Clear(round, groupID)
		for _, sub := range submissions {
			if err := agg.CombineSubmission(sub); err != nil {
				return fmt.Errorf("round %d: combining submission: %w", round, err)
			}
		}
		partial, err := agg.Finalize()
		if err != nil {
			return fmt.Errorf("round %d: finalize: %w", round, err)
		}
		partial, err = transmitPartialAggregate(partial)
		if err != nil {
			return fmt.Errorf("round %d: %w", round, err)
		}

		shares := make([]*server.UnblindedAggregateShare, 0, numServers)
		for _, m := range members {
			share, nextDB, err := m.srv.Unblind(partial, m.db)
			if err != nil {
				return fmt.Errorf("round %d: server unblind: %w", round, err)
			}
			m.db = nextDB
			shares = append(shares, share)
		}

		out, err := server.LeaderCombine(members[0].srv.SigSK, shares)
		if err != nil {
			return fmt.Errorf("round %d: leader combine: %w", round, err)
		}
		out, err = transmitRoundOutput(out)
		if err != nil {
			return fmt.Errorf("round %d: %w", round, err)
		}
		history.Record(out)
		if recorded, ok := history.Get(out.Round); ok {
			prevOutput = recorded
		}

		if verbose {
			logger.Printf("round %d: %d submissions, %d servers unblinded", round, len(submissions), len(shares))
		}
		if revealedSlot != nil {
			printRevealed(logger, out, *revealedSlot)
		}
	}

	if last, ok := history.Get(uint32(numRounds) - 1); ok && verbose {
		logger.Printf("history retains round %d as the most recent output", last.Round)
	}

	if configDir != "" {
		if err := persistDemoConfigs(logger, configDir, principals[0], members[0]); err != nil {
			return fmt.Errorf("persisting demo configs: %w", err)
		}
	}

	return nil
}

// transmitSubmission canonically serializes and frames sub, then parses
// the frame back into a fresh UserSubmissionMessage, simulating the
// serialize/deserialize boundary a real server socket would impose.
func transmitSubmission(sub *user.UserSubmissionMessage) (*user.UserSubmissionMessage, error) {
	body, err := wire.Canonical(sub)
	if err != nil {
		return nil, fmt.Errorf("encoding submission: %w", err)
	}
	tag, payload, err := wire.Unframe(wire.Frame(wire.TypeUserSubmission, body))
	if err != nil {
		return nil, fmt.Errorf("framing submission: %w", err)
	}
	if tag != wire.TypeUserSubmission {
		return nil, fmt.Errorf("unexpected wire type tag %d for submission", tag)
	}
	var out user.UserSubmissionMessage
	if err := wire.Decode(payload, &out); err != nil {
		return nil, fmt.Errorf("decoding submission: %w", err)
	}
	return &out, nil
}

// transmitPartialAggregate round-trips p through the wire format, the
// boundary between the aggregator and the committee servers.
func transmitPartialAggregate(p *aggregator.PartialAggregate) (*aggregator.PartialAggregate, error) {
	body, err := wire.Canonical(p)
	if err != nil {
		return nil, fmt.Errorf("encoding partial aggregate: %w", err)
	}
	tag, payload, err := wire.Unframe(wire.Frame(wire.TypePartialAggregate, body))
	if err != nil {
		return nil, fmt.Errorf("framing partial aggregate: %w", err)
	}
	if tag != wire.TypePartialAggregate {
		return nil, fmt.Errorf("unexpected wire type tag %d for partial aggregate", tag)
	}
	var out aggregator.PartialAggregate
	if err := wire.Decode(payload, &out); err != nil {
		return nil, fmt.Errorf("decoding partial aggregate: %w", err)
	}
	return &out, nil
}

// transmitRoundOutput round-trips out through the wire format, the
// boundary between the leader's combine step and every user waiting on
// the broadcast result.
func transmitRoundOutput(out *dcnet.RoundOutput) (*dcnet.RoundOutput, error) {
	body, err := wire.Canonical(out)
	if err != nil {
		return nil, fmt.Errorf("encoding round output: %w", err)
	}
	tag, payload, err := wire.Unframe(wire.Frame(wire.TypeRoundOutput, body))
	if err != nil {
		return nil, fmt.Errorf("framing round output: %w", err)
	}
	if tag != wire.TypeRoundOutput {
		return nil, fmt.Errorf("unexpected wire type tag %d for round output", tag)
	}
	var decoded dcnet.RoundOutput
	if err := wire.Decode(payload, &decoded); err != nil {
		return nil, fmt.Errorf("decoding round output: %w", err)
	}
	return &decoded, nil
}

// persistDemoConfigs seals user 0's and server 0's long-term Config to
// disk, fingerprints the sealed blob for the log line and filename, then
// reloads and validates each, demonstrating the full persistence round
// trip within a single run.
func persistDemoConfigs(logger *log.Logger, dir string, p *principal, m *committeeMember) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	sealer := seal.IdentitySealer{}

	userCfg := &config.Config{
		Role:  identity.RoleUser,
		ID:    p.id,
		SigSK: p.sigSk,
		SigPK: p.sigSk.Public().(crypt.SigPublicKey),
		Peers: map[identity.EntityId]crypt.SigPublicKey{},
		DB:    p.db,
	}
	if err := persistOneConfig(logger, sealer, dir, "user", userCfg); err != nil {
		return err
	}

	srvCfg := &config.Config{
		Role:  identity.RoleServerSig,
		ID:    m.srv.ID,
		SigSK: m.srv.SigSK,
		SigPK: m.srv.SigPK,
		KemSK: m.srv.KemSK,
		KemPK: m.srv.KemPK,
		Peers: m.pubkeys.Users,
		DB:    m.db,
	}
	return persistOneConfig(logger, sealer, dir, "server", srvCfg)
}

func persistOneConfig(logger *log.Logger, sealer seal.Sealer, dir, role string, c *config.Config) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("validating %s config: %w", role, err)
	}
	sealed, err := config.Seal(sealer, c)
	if err != nil {
		return fmt.Errorf("sealing %s config: %w", role, err)
	}
	key := config.CacheKey(sealed)
	path := filepath.Join(dir, fmt.Sprintf("%s-%s.json", role, key))
	if err := os.WriteFile(path, sealed, 0o600); err != nil {
		return fmt.Errorf("writing %s config: %w", role, err)
	}
	logger.Printf("saved %s config to %s (fingerprint %s)", role, path, key)

	reread, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading back %s config: %w", role, err)
	}
	restored, err := config.Unseal(sealer, c.Role, reread)
	if err != nil {
		return fmt.Errorf("unsealing %s config: %w", role, err)
	}
	if err := restored.Validate(); err != nil {
		return fmt.Errorf("validating restored %s config: %w", role, err)
	}
	logger.Printf("reloaded and validated %s config for %s", role, restored.ID)
	return nil
}

// chooseMsg picks which UserMsg variant a principal sends this round. A
// principal that has already used up this window's DCNetMsgsPerWindow
// talks sends cover traffic. Otherwise, a principal with no pending
// footprint reserves one; the designated speaker redeems its pending
// footprint with the configured payload, and everyone else redeems with an
// empty payload.
func chooseMsg(idx, speakerIdx int, round uint32, info clock.RoundInfo, p *principal) user.Msg {
	timesParticipated := p.rateCounter.TimesParticipated(info.Window)
	if timesParticipated >= dcnet.DCNetMsgsPerWindow {
		return user.NewCoverMsg()
	}

	if p.pendingFootprint == nil {
		return user.NewReserveMsg(timesParticipated)
	}

	var body []byte
	if idx == speakerIdx {
		body = []byte(payload)
	}
	return user.NewTalkAndReserveMsg(body, *p.pendingFootprint, timesParticipated)
}

func printRevealed(logger *log.Logger, out *dcnet.RoundOutput, slot int) {
	row := out.DcMsg.Payload[slot]
	logger.Printf("round %d revealed payload at slot %d: %q", out.Round, slot, bytes.TrimRight(row[:], "\x00"))
}

func serverPubKeySigBytes(pubs []identity.ServerPubKeyPackage) [][]byte {
	out := make([][]byte, len(pubs))
	for i, p := range pubs {
		out[i] = p.SigPK
	}
	return out
}
