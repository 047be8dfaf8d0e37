package cashu

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// KeysetId is an 8-byte identifier derived from the sorted (amount,
// pubkey) pairs of a keyset. Two keysets are the same keyset iff their
// ids match.
type KeysetId [8]byte

func (id KeysetId) String() string {
	return hex.EncodeToString(id[:])
}

func (id KeysetId) MarshalJSON() ([]byte, error) {
	return []byte(`"` + id.String() + `"`), nil
}

func (id *KeysetId) UnmarshalJSON(data []byte) error {
	if len(data) < 2 {
		return fmt.Errorf("invalid keyset id")
	}
	parsed, err := ParseKeysetId(string(data[1 : len(data)-1]))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func ParseKeysetId(s string) (KeysetId, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return KeysetId{}, fmt.Errorf("invalid keyset id %q: %w", s, err)
	}
	if len(b) != 8 {
		return KeysetId{}, fmt.Errorf("invalid keyset id %q: want 8 bytes, got %d", s, len(b))
	}
	var id KeysetId
	copy(id[:], b)
	return id, nil
}

// DeriveKeysetId computes the deterministic id of a keyset from its
// amount-to-pubkey map: sort by amount ascending, concatenate the hex
// encodings of the compressed pubkeys, SHA256, and prefix the first 14
// hex characters of the hash with "00".
func DeriveKeysetId(keys map[Amount]*secp256k1.PublicKey) (KeysetId, error) {
	amounts := make([]Amount, 0, len(keys))
	for amt := range keys {
		amounts = append(amounts, amt)
	}
	sort.Slice(amounts, func(i, j int) bool { return amounts[i] < amounts[j] })

	var concat []byte
	for _, amt := range amounts {
		pubkeyHex := hex.EncodeToString(keys[amt].SerializeCompressed())
		concat = append(concat, []byte(pubkeyHex)...)
	}

	hash := sha256.Sum256(concat)
	idStr := "00" + hex.EncodeToString(hash[:])[:14]
	return ParseKeysetId(idStr)
}
