package config

import (
	"fmt"

	"github.com/bl4ck5un/zipnet/pkg/identity"
	"github.com/bl4ck5un/zipnet/pkg/seal"
	"github.com/bl4ck5un/zipnet/pkg/wire"
)

// Seal serializes c to JSON and seals the result through s.
func Seal(s seal.Sealer, c *Config) ([]byte, error) {
	plaintext, err := c.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("config: marshal before seal: %w", err)
	}
	sealed, err := s.Seal(plaintext)
	if err != nil {
		return nil, fmt.Errorf("config: seal: %w", err)
	}
	return sealed, nil
}

// Unseal reverses Seal: unseal through s, then JSON-decode into a fresh
// Config for role.
func Unseal(s seal.Sealer, role identity.Role, sealed []byte) (*Config, error) {
	plaintext, err := s.Unseal(sealed)
	if err != nil {
		return nil, fmt.Errorf("config: unseal: %w", err)
	}
	c := EmptyConfig(role)
	if err := c.UnmarshalJSON(plaintext); err != nil {
		return nil, fmt.Errorf("config: unmarshal after unseal: %w", err)
	}
	return c, nil
}

// CacheKey returns the BLAKE3 fingerprint of a sealed blob, hex-encoded
// and truncated, for use as a log line or on-disk filename component. It
// never substitutes for a digest that crosses a trust boundary; those go
// through wire.Digest.
func CacheKey(sealed []byte) string {
	fp := wire.Fingerprint(sealed)
	return fmt.Sprintf("%x", fp[:8])
}
