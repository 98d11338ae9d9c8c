package config

import (
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/bl4ck5un/zipnet/pkg/crypt"
	"github.com/bl4ck5un/zipnet/pkg/identity"
	"github.com/bl4ck5un/zipnet/pkg/secretdb"
)

type configJSON struct {
	Role  string            `json:"role"`
	ID    string            `json:"id"`
	SigSK string            `json:"sig_sk"` // base64
	SigPK string            `json:"sig_pk"` // base64
	KemSK string            `json:"kem_sk"` // base64
	KemPK string            `json:"kem_pk"` // base64
	Peers map[string]string `json:"peers"`  // hex(EntityId) -> base64(SigPK)
	DB    *dbJSON           `json:"db"`
}

type dbJSON struct {
	Round   uint32            `json:"round"`
	Secrets map[string]string `json:"secrets"` // hex(EntityId) -> base64(secret)
}

// MarshalJSON implements json.Marshaler, base64-encoding every binary
// field.
func (c *Config) MarshalJSON() ([]byte, error) {
	peers := make(map[string]string, len(c.Peers))
	for id, pk := range c.Peers {
		peers[id.String()] = base64.StdEncoding.EncodeToString(pk)
	}

	secrets := make(map[string]string, len(c.DB.Secrets))
	for id, s := range c.DB.Secrets {
		secrets[id.String()] = base64.StdEncoding.EncodeToString(s[:])
	}

	out := &configJSON{
		Role:  string(c.Role),
		ID:    c.ID.String(),
		SigSK: base64.StdEncoding.EncodeToString(c.SigSK),
		SigPK: base64.StdEncoding.EncodeToString(c.SigPK),
		KemSK: base64.StdEncoding.EncodeToString(c.KemSK[:]),
		KemPK: base64.StdEncoding.EncodeToString(c.KemPK[:]),
		Peers: peers,
		DB:    &dbJSON{Round: c.DB.Round, Secrets: secrets},
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *Config) UnmarshalJSON(data []byte) error {
	var in configJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	idBytes, err := hex.DecodeString(in.ID)
	if err != nil || len(idBytes) != 32 {
		return fmt.Errorf("config: decode ID: %w", err)
	}
	copy(c.ID[:], idBytes)
	c.Role = identity.Role(in.Role)

	if c.SigSK, err = base64.StdEncoding.DecodeString(in.SigSK); err != nil {
		return fmt.Errorf("config: decode sig_sk: %w", err)
	}
	if c.SigPK, err = base64.StdEncoding.DecodeString(in.SigPK); err != nil {
		return fmt.Errorf("config: decode sig_pk: %w", err)
	}
	kemSK, err := base64.StdEncoding.DecodeString(in.KemSK)
	if err != nil {
		return fmt.Errorf("config: decode kem_sk: %w", err)
	}
	copy(c.KemSK[:], kemSK)
	kemPK, err := base64.StdEncoding.DecodeString(in.KemPK)
	if err != nil {
		return fmt.Errorf("config: decode kem_pk: %w", err)
	}
	copy(c.KemPK[:], kemPK)

	c.Peers = make(map[identity.EntityId]crypt.SigPublicKey, len(in.Peers))
	for idHex, pkB64 := range in.Peers {
		idBytes, err := hex.DecodeString(idHex)
		if err != nil || len(idBytes) != 32 {
			return fmt.Errorf("config: decode peer id %q: %w", idHex, err)
		}
		var id identity.EntityId
		copy(id[:], idBytes)
		pk, err := base64.StdEncoding.DecodeString(pkB64)
		if err != nil {
			return fmt.Errorf("config: decode peer key %q: %w", idHex, err)
		}
		c.Peers[id] = pk
	}

	db := secretdb.New()
	if in.DB != nil {
		db.Round = in.DB.Round
		for idHex, secretB64 := range in.DB.Secrets {
			idBytes, err := hex.DecodeString(idHex)
			if err != nil || len(idBytes) != 32 {
				return fmt.Errorf("config: decode secret id %q: %w", idHex, err)
			}
			var id identity.EntityId
			copy(id[:], idBytes)
			secret, err := base64.StdEncoding.DecodeString(secretB64)
			if err != nil || len(secret) != crypt.SharedSecretLength {
				return fmt.Errorf("config: decode secret for %q: %w", idHex, err)
			}
			var s [crypt.SharedSecretLength]byte
			copy(s[:], secret)
			db.Put(id, s)
		}
	}
	c.DB = db

	return nil
}
