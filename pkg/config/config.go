// Package config implements long-term principal storage: the keys and
// secret database a user or server persists across rounds.
package config

import (
	"errors"
	"fmt"

	"github.com/bl4ck5un/zipnet/pkg/crypt"
	"github.com/bl4ck5un/zipnet/pkg/identity"
	"github.com/bl4ck5un/zipnet/pkg/secretdb"
)

// Config is the long-term storage for one principal: a user or a
// committee server. KemSK/KemPK are zero for a user config, since a
// user's ephemeral KEM key is discarded at registration; a server config
// carries all four keys.
type Config struct {
	// Role names the kind of principal this config belongs to.
	Role identity.Role

	// ID is this principal's EntityId.
	ID identity.EntityId

	// SigSK/SigPK are the long-term Ed25519 signing keypair.
	SigSK crypt.SigPrivateKey
	SigPK crypt.SigPublicKey

	// KemSK/KemPK are the long-term X25519 keypair; unset for a user.
	KemSK crypt.KemPrivateKey
	KemPK crypt.KemPublicKey

	// Peers maps a registered counterparty's EntityId to its signing
	// public key.
	Peers map[identity.EntityId]crypt.SigPublicKey

	// DB is this principal's shared-secret database.
	DB *secretdb.DB
}

// EmptyConfig creates an empty Config for role, ready for unmarshalling.
func EmptyConfig(role identity.Role) *Config {
	return &Config{
		Role:  role,
		Peers: make(map[identity.EntityId]crypt.SigPublicKey),
		DB:    secretdb.New(),
	}
}

// Validate checks that c is well-formed enough to persist or to resume
// from.
func (c *Config) Validate() error {
	if c.Role == "" {
		return errors.New("config: missing role")
	}
	if c.ID == (identity.EntityId{}) {
		return errors.New("config: missing ID")
	}
	if len(c.SigSK) == 0 {
		return errors.New("config: missing signing key")
	}
	if len(c.SigPK) == 0 {
		return errors.New("config: missing signing public key")
	}
	if c.DB == nil {
		return errors.New("config: missing secret database")
	}
	for id, pk := range c.Peers {
		if len(pk) == 0 {
			return fmt.Errorf("config: missing public key for peer %s", id)
		}
	}
	return nil
}

// Copy creates a deep copy of c.
func (c *Config) Copy() *Config {
	out := &Config{
		Role:  c.Role,
		ID:    c.ID,
		SigSK: append(crypt.SigPrivateKey(nil), c.SigSK...),
		SigPK: append(crypt.SigPublicKey(nil), c.SigPK...),
		KemSK: c.KemSK,
		KemPK: c.KemPK,
		Peers: make(map[identity.EntityId]crypt.SigPublicKey, len(c.Peers)),
		DB:    c.DB.Clone(),
	}
	for id, pk := range c.Peers {
		out.Peers[id] = append(crypt.SigPublicKey(nil), pk...)
	}
	return out
}
