package cashu

import (
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

func TestDeriveKeysetIdDeterministic(t *testing.T) {
	keys := make(map[Amount]*secp256k1.PublicKey)
	for i := 0; i < 4; i++ {
		priv, err := secp256k1.GeneratePrivateKey()
		if err != nil {
			t.Fatal(err)
		}
		keys[Amount(1)<<uint(i)] = priv.PubKey()
	}

	id1, err := DeriveKeysetId(keys)
	if err != nil {
		t.Fatal(err)
	}
	id2, err := DeriveKeysetId(keys)
	if err != nil {
		t.Fatal(err)
	}
	if id1 != id2 {
		t.Fatalf("DeriveKeysetId is not deterministic: %v != %v", id1, id2)
	}
	if id1.String()[:2] != "00" {
		t.Fatalf("keyset id should be prefixed with 00, got %s", id1.String())
	}
}

func TestParseKeysetIdRoundTrip(t *testing.T) {
	id, err := ParseKeysetId("00a1b2c3d4e5f607")
	if err != nil {
		t.Fatal(err)
	}
	if id.String() != "00a1b2c3d4e5f607" {
		t.Fatalf("round trip mismatch: %s", id.String())
	}
}

func TestParseKeysetIdRejectsBadLength(t *testing.T) {
	if _, err := ParseKeysetId("00aa"); err == nil {
		t.Fatal("expected error for short keyset id")
	}
}
