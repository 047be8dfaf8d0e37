package wallet

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/tyler-smith/go-bip39"

	"github.com/starknuts/starknuts/cashu"
	"github.com/starknuts/starknuts/client"
	"github.com/starknuts/starknuts/liquidity"
	nodepkg "github.com/starknuts/starknuts/node"
	nodememory "github.com/starknuts/starknuts/node/storage/memory"
	"github.com/starknuts/starknuts/signer"
	walletstorage "github.com/starknuts/starknuts/wallet/storage"
)

const testNodeURL = "https://node.test"

func newTestNode(t *testing.T) (*nodepkg.Node, *liquidity.Mock) {
	t.Helper()
	ctx := context.Background()

	entropy, err := bip39.NewEntropy(128)
	if err != nil {
		t.Fatal(err)
	}
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		t.Fatal(err)
	}
	master, err := hdkeychain.NewMaster(bip39.NewSeed(mnemonic, ""), &chaincfg.MainNetParams)
	if err != nil {
		t.Fatal(err)
	}

	s := signer.NewLocalSigner(master)
	store := nodememory.New()
	registry := nodepkg.NewLiquidityRegistry()
	src := liquidity.NewMock(cashu.Starknet, cashu.MilliStrk)
	registry.Register(src)

	settings := nodepkg.NewSettings()
	settings.SetMintBounds(cashu.Starknet, cashu.MilliStrk, nodepkg.Bounds{})
	settings.SetMeltBounds(cashu.Starknet, cashu.MilliStrk, nodepkg.Bounds{})

	n, err := nodepkg.New(ctx, nodepkg.Config{Signer: s, Store: store, Registry: registry, Settings: settings})
	if err != nil {
		t.Fatal(err)
	}
	if err := n.Keysets().InitFirstKeysets(ctx, []cashu.Unit{cashu.MilliStrk}, 6); err != nil {
		t.Fatal(err)
	}
	return n, src
}

func newTestWallet(t *testing.T) (*Wallet, *nodepkg.Node, *liquidity.Mock) {
	t.Helper()
	n, src := newTestNode(t)

	db, err := walletstorage.InitBolt(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	w, err := NewWallet(db)
	if err != nil {
		t.Fatal(err)
	}
	ic := client.NewInProcessClient(context.Background(), n)
	if err := w.AddNode(testNodeURL, ic); err != nil {
		t.Fatal(err)
	}
	return w, n, src
}

func TestMintAndRedeem(t *testing.T) {
	w, n, _ := newTestWallet(t)
	ctx := context.Background()

	quote, err := w.CreateMintQuote(testNodeURL, cashu.MilliStrk, 32)
	if err != nil {
		t.Fatal(err)
	}

	full, err := n.GetMintQuote(ctx, quote.Id)
	if err != nil {
		t.Fatal(err)
	}
	event := liquidity.PaymentEvent{
		InvoiceId: full.InvoiceId, BlockId: 1, TxHash: "0xaaa", EventIndex: 0,
		Asset: "STRK", Payer: "0xuser", Payee: "0xnode", Amount: 32,
	}
	if err := n.ObservePayment(ctx, full.InvoiceId, event); err != nil {
		t.Fatal(err)
	}

	if _, err := w.WaitForQuotePayment(ctx, testNodeURL, quote.Id, time.Millisecond); err != nil {
		t.Fatal(err)
	}

	proofs, err := w.RedeemQuote(testNodeURL, quote.Id, 32)
	if err != nil {
		t.Fatal(err)
	}
	if len(proofs) != 1 || proofs[0].Amount != 32 {
		t.Fatalf("expected one proof of amount 32, got %+v", proofs)
	}

	balance, err := w.Balance(testNodeURL, cashu.MilliStrk)
	if err != nil {
		t.Fatal(err)
	}
	if balance != 32 {
		t.Fatalf("expected balance 32, got %d", balance)
	}
}

func TestSelectExactMatchesAvailableDenominations(t *testing.T) {
	w, n, _ := newTestWallet(t)
	ctx := context.Background()

	for _, amount := range []cashu.Amount{16, 16} {
		quote, err := w.CreateMintQuote(testNodeURL, cashu.MilliStrk, amount)
		if err != nil {
			t.Fatal(err)
		}
		full, _ := n.GetMintQuote(ctx, quote.Id)
		event := liquidity.PaymentEvent{InvoiceId: full.InvoiceId, Amount: amount, Asset: "STRK", Payee: "0xnode"}
		if err := n.ObservePayment(ctx, full.InvoiceId, event); err != nil {
			t.Fatal(err)
		}
		if _, err := w.WaitForQuotePayment(ctx, testNodeURL, quote.Id, time.Millisecond); err != nil {
			t.Fatal(err)
		}
		if _, err := w.RedeemQuote(testNodeURL, quote.Id, amount); err != nil {
			t.Fatal(err)
		}
	}

	selected, ok, err := w.SelectExact(testNodeURL, cashu.MilliStrk, 32)
	if err != nil {
		t.Fatal(err)
	}
	if !ok || len(selected) != 2 {
		t.Fatalf("expected an exact 2-proof selection, got ok=%v selected=%+v", ok, selected)
	}

	if _, ok, _ := w.SelectExact(testNodeURL, cashu.MilliStrk, 64); ok {
		t.Fatal("expected no exact selection to exist for 64")
	}
}

func TestPlanSpendingRejectsDuplicatePreferredNode(t *testing.T) {
	w, _, _ := newTestWallet(t)
	_, err := w.PlanSpending(10, cashu.MilliStrk, []string{testNodeURL, testNodeURL})
	if err == nil {
		t.Fatal("expected an error for a duplicate preferred node")
	}
}

func TestPlanSpendingFailsWhenNotEnoughFunds(t *testing.T) {
	w, _, _ := newTestWallet(t)
	_, err := w.PlanSpending(1000, cashu.MilliStrk, nil)
	if err == nil {
		t.Fatal("expected NotEnoughFunds")
	}
}

func TestMeltSpendsSelectedProofs(t *testing.T) {
	w, n, _ := newTestWallet(t)
	ctx := context.Background()

	quote, err := w.CreateMintQuote(testNodeURL, cashu.MilliStrk, 32)
	if err != nil {
		t.Fatal(err)
	}
	full, _ := n.GetMintQuote(ctx, quote.Id)
	if err := n.ObservePayment(ctx, full.InvoiceId, liquidity.PaymentEvent{InvoiceId: full.InvoiceId, Amount: 32, Asset: "STRK", Payee: "0xnode"}); err != nil {
		t.Fatal(err)
	}
	if _, err := w.WaitForQuotePayment(ctx, testNodeURL, quote.Id, time.Millisecond); err != nil {
		t.Fatal(err)
	}
	if _, err := w.RedeemQuote(testNodeURL, quote.Id, 32); err != nil {
		t.Fatal(err)
	}

	quote2, err := w.CreateMintQuote(testNodeURL, cashu.MilliStrk, 1)
	if err != nil {
		t.Fatal(err)
	}
	full2, _ := n.GetMintQuote(ctx, quote2.Id)
	if err := n.ObservePayment(ctx, full2.InvoiceId, liquidity.PaymentEvent{InvoiceId: full2.InvoiceId, Amount: 1, Asset: "STRK", Payee: "0xnode"}); err != nil {
		t.Fatal(err)
	}
	if _, err := w.WaitForQuotePayment(ctx, testNodeURL, quote2.Id, time.Millisecond); err != nil {
		t.Fatal(err)
	}
	if _, err := w.RedeemQuote(testNodeURL, quote2.Id, 1); err != nil {
		t.Fatal(err)
	}

	reqJSON, err := json.Marshal(map[string]any{"asset": "STRK", "payee": "0x064b...", "amount": 32, "expiry": 9999999999})
	if err != nil {
		t.Fatal(err)
	}
	meltQuote, err := w.CreateMeltQuote(testNodeURL, cashu.MilliStrk, reqJSON)
	if err != nil {
		t.Fatal(err)
	}
	if meltQuote.Amount != 32 || meltQuote.Fee != 1 {
		t.Fatalf("expected amount=32 fee=1, got amount=%d fee=%d", meltQuote.Amount, meltQuote.Fee)
	}

	result, err := w.PayQuote(testNodeURL, meltQuote.Id)
	if err != nil {
		t.Fatal(err)
	}
	if result.State != cashu.Paid {
		t.Fatalf("expected Paid, got %s", result.State)
	}

	balance, err := w.Balance(testNodeURL, cashu.MilliStrk)
	if err != nil {
		t.Fatal(err)
	}
	if balance != 0 {
		t.Fatalf("expected balance 0 after melt, got %d", balance)
	}
}
