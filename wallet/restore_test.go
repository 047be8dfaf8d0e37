package wallet

import (
	"context"
	"testing"

	"github.com/tyler-smith/go-bip39"

	"github.com/starknuts/starknuts/cashu"
	"github.com/starknuts/starknuts/client"
	walletstorage "github.com/starknuts/starknuts/wallet/storage"
)

// TestRestoreAfterLoss covers the S6 scenario: a wallet mints proofs,
// loses its local database, and recovers its balance from the same
// mnemonic by asking the node which of its deterministically-derived
// outputs it has already signed.
func TestRestoreAfterLoss(t *testing.T) {
	original, n, _ := newTestWallet(t)
	fundWallet(t, original, n, 48)

	balanceBefore, err := original.Balance(testNodeURL, cashu.MilliStrk)
	if err != nil {
		t.Fatal(err)
	}
	if balanceBefore != 48 {
		t.Fatalf("expected balance 48 before loss, got %d", balanceBefore)
	}

	mnemonic, err := original.Mnemonic()
	if err != nil {
		t.Fatal(err)
	}

	// simulate losing the local database: a brand new bolt store seeded
	// from the same mnemonic, pointed at the same node.
	freshDB, err := walletstorage.InitBolt(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { freshDB.Close() })

	seed := bip39.NewSeed(mnemonic, "")
	if err := freshDB.SaveMnemonicSeed(mnemonic, seed); err != nil {
		t.Fatal(err)
	}

	recovered, err := LoadWallet(freshDB)
	if err != nil {
		t.Fatal(err)
	}
	ic := client.NewInProcessClient(context.Background(), n)
	if err := recovered.AddNode(testNodeURL, ic); err != nil {
		t.Fatal(err)
	}

	restoredCount, err := recovered.RestoreNode(testNodeURL)
	if err != nil {
		t.Fatal(err)
	}
	if restoredCount == 0 {
		t.Fatal("expected at least one proof to be restored")
	}

	balanceAfter, err := recovered.Balance(testNodeURL, cashu.MilliStrk)
	if err != nil {
		t.Fatal(err)
	}
	if balanceAfter != balanceBefore {
		t.Fatalf("expected restored balance %d, got %d", balanceBefore, balanceAfter)
	}
}

// TestRestoreAfterLossWithSpentTail is a regression case for the
// counter-advance rule in §4.11 step 4: the keyset counter must be
// derived from the last blinded message the node returned in a restore
// batch, not from the subset that is still Unspent by check_state. It
// mints 48 (split into a 16 and a 32 proof at counter indices 0 and 1),
// spends the proof at the highest index (32, counter 1) before
// simulating loss, and asserts the recovered wallet's counter lands
// past both indices rather than stopping at the lower, still-unspent
// one.
func TestRestoreAfterLossWithSpentTail(t *testing.T) {
	original, n, _ := newTestWallet(t)
	fundWallet(t, original, n, 48)

	// spend the highest-index proof (32, derived at counter 1) via an
	// exact send, leaving the 16 proof (counter 0) as the only Unspent
	// one before the database is lost.
	wad, err := original.Send(testNodeURL, cashu.MilliStrk, 32, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(wad.Proofs) != 1 || wad.Proofs[0].Amount != 32 {
		t.Fatalf("expected the exact 32 proof to be spent, got %+v", wad.Proofs)
	}

	balanceBefore, err := original.Balance(testNodeURL, cashu.MilliStrk)
	if err != nil {
		t.Fatal(err)
	}
	if balanceBefore != 16 {
		t.Fatalf("expected balance 16 after spending the 32 proof, got %d", balanceBefore)
	}

	mnemonic, err := original.Mnemonic()
	if err != nil {
		t.Fatal(err)
	}

	freshDB, err := walletstorage.InitBolt(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { freshDB.Close() })

	seed := bip39.NewSeed(mnemonic, "")
	if err := freshDB.SaveMnemonicSeed(mnemonic, seed); err != nil {
		t.Fatal(err)
	}

	recovered, err := LoadWallet(freshDB)
	if err != nil {
		t.Fatal(err)
	}
	ic := client.NewInProcessClient(context.Background(), n)
	if err := recovered.AddNode(testNodeURL, ic); err != nil {
		t.Fatal(err)
	}

	restoredCount, err := recovered.RestoreNode(testNodeURL)
	if err != nil {
		t.Fatal(err)
	}
	if restoredCount != 1 {
		t.Fatalf("expected exactly the unspent 16 proof to be restored, got %d", restoredCount)
	}

	balanceAfter, err := recovered.Balance(testNodeURL, cashu.MilliStrk)
	if err != nil {
		t.Fatal(err)
	}
	if balanceAfter != balanceBefore {
		t.Fatalf("expected restored balance %d, got %d", balanceBefore, balanceAfter)
	}

	id, ok := recovered.ActiveKeysetFor(testNodeURL, cashu.MilliStrk)
	if !ok {
		t.Fatal("expected an active keyset after restore")
	}
	counter, err := recovered.db.GetKeysetCounter(testNodeURL, id)
	if err != nil {
		t.Fatal(err)
	}
	if counter.Counter < 2 {
		t.Fatalf("expected counter to advance past the spent proof's index 1, got %d", counter.Counter)
	}

	// a subsequent mint must not collide with either previously-derived
	// secret: deriving at the recovered counter should produce fresh
	// blinded messages the node has never seen.
	if _, err := recovered.CreateMintQuote(testNodeURL, cashu.MilliStrk, 4); err != nil {
		t.Fatal(err)
	}
}
