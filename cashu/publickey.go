package cashu

import (
	"encoding/hex"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// PublicKey wraps a compressed secp256k1 point with hex (de)serialization
// for JSON-facing wire formats, matching the 33-byte compressed encoding
// used throughout the blind-signature engine.
type PublicKey struct {
	*secp256k1.PublicKey
}

func NewPublicKey(pk *secp256k1.PublicKey) PublicKey {
	return PublicKey{PublicKey: pk}
}

func (pk PublicKey) Hex() string {
	if pk.PublicKey == nil {
		return ""
	}
	return hex.EncodeToString(pk.SerializeCompressed())
}

func (pk PublicKey) MarshalJSON() ([]byte, error) {
	return []byte(`"` + pk.Hex() + `"`), nil
}

func (pk *PublicKey) UnmarshalJSON(data []byte) error {
	if len(data) < 2 {
		return fmt.Errorf("invalid public key")
	}
	parsed, err := ParsePublicKeyHex(string(data[1 : len(data)-1]))
	if err != nil {
		return err
	}
	*pk = parsed
	return nil
}

func ParsePublicKeyHex(s string) (PublicKey, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return PublicKey{}, fmt.Errorf("invalid public key hex: %w", err)
	}
	parsed, err := secp256k1.ParsePubKey(b)
	if err != nil {
		return PublicKey{}, ErrInvalidPoint
	}
	return PublicKey{PublicKey: parsed}, nil
}
