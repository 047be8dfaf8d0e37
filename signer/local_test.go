package signer

import (
	"context"
	"testing"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/starknuts/starknuts/cashu"
	"github.com/starknuts/starknuts/crypto"
	"github.com/tyler-smith/go-bip39"
)

func testSigner(t *testing.T) *LocalSigner {
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
	return NewLocalSigner(master)
}

func TestDeclareKeysetIdMatchesRecomputation(t *testing.T) {
	s := testSigner(t)
	declared, err := s.DeclareKeyset(context.Background(), cashu.MilliStrk, 0, 6)
	if err != nil {
		t.Fatal(err)
	}

	recomputed, err := cashu.DeriveKeysetId(declared.Keys)
	if err != nil {
		t.Fatal(err)
	}
	if recomputed != declared.Id {
		t.Fatalf("recomputed id %v != declared id %v", recomputed, declared.Id)
	}
}

func mustParsePubKey(t *testing.T, hexStr string) *secp256k1.PublicKey {
	t.Helper()
	pk, err := cashu.ParsePublicKeyHex(hexStr)
	if err != nil {
		t.Fatal(err)
	}
	return pk.PublicKey
}

func TestSignThenVerifyProofs(t *testing.T) {
	s := testSigner(t)
	ctx := context.Background()

	declared, err := s.DeclareKeyset(ctx, cashu.MilliStrk, 0, 6)
	if err != nil {
		t.Fatal(err)
	}

	secret := cashu.Secret("a-fresh-secret")
	B_, r, err := crypto.BlindMessage([]byte(secret), nil)
	if err != nil {
		t.Fatal(err)
	}

	msgs := cashu.BlindedMessages{{Amount: 1, Id: declared.Id, B_: cashu.NewPublicKey(B_).Hex()}}
	sigs, err := s.Sign(ctx, msgs)
	if err != nil {
		t.Fatal(err)
	}

	K := declared.Keys[1]
	C_ := mustParsePubKey(t, sigs[0].C_)
	C := crypto.UnblindSignature(C_, r, K)
	proof := cashu.Proof{Amount: 1, Id: declared.Id, Secret: secret, C: cashu.NewPublicKey(C).Hex()}

	if err := s.VerifyProofs(ctx, cashu.Proofs{proof}); err != nil {
		t.Fatalf("expected valid proof to verify, got %v", err)
	}

	tampered := proof
	tampered.Secret = "a-different-secret"
	if err := s.VerifyProofs(ctx, cashu.Proofs{tampered}); err == nil {
		t.Fatal("expected tampered proof to fail verification")
	}
}
