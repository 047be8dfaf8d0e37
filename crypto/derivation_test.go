package crypto

import (
	"testing"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/starknuts/starknuts/cashu"
	"github.com/tyler-smith/go-bip39"
)

func testMaster(t *testing.T) *hdkeychain.ExtendedKey {
	t.Helper()
	entropy, err := bip39.NewEntropy(128)
	if err != nil {
		t.Fatal(err)
	}
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		t.Fatal(err)
	}
	seed := bip39.NewSeed(mnemonic, "")
	master, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		t.Fatal(err)
	}
	return master
}

func TestDeriveSecretDeterministic(t *testing.T) {
	master := testMaster(t)
	id, _ := cashu.ParseKeysetId("00a1b2c3d4e5f607")
	path, err := DeriveKeysetPath(master, id)
	if err != nil {
		t.Fatal(err)
	}

	s1, err := DeriveSecret(path, 5)
	if err != nil {
		t.Fatal(err)
	}
	s2, err := DeriveSecret(path, 5)
	if err != nil {
		t.Fatal(err)
	}
	if s1 != s2 {
		t.Fatal("DeriveSecret is not deterministic for a fixed counter")
	}

	s3, err := DeriveSecret(path, 6)
	if err != nil {
		t.Fatal(err)
	}
	if s1 == s3 {
		t.Fatal("DeriveSecret should differ across counters")
	}
}

func TestDerivePreMintsLength(t *testing.T) {
	master := testMaster(t)
	id, _ := cashu.ParseKeysetId("00a1b2c3d4e5f607")

	amounts := cashu.Amount(13).Split()
	preMints, err := DerivePreMints(master, id, 0, amounts)
	if err != nil {
		t.Fatal(err)
	}
	if len(preMints) != len(amounts) {
		t.Fatalf("got %d premints, want %d", len(preMints), len(amounts))
	}
	seen := make(map[cashu.Secret]bool)
	for _, pm := range preMints {
		if seen[pm.Secret] {
			t.Fatal("premint secrets must be unique across counters")
		}
		seen[pm.Secret] = true
	}
}
