package wallet

import (
	"context"
	"testing"
	"time"

	"github.com/starknuts/starknuts/cashu"
	"github.com/starknuts/starknuts/client"
	"github.com/starknuts/starknuts/liquidity"
	nodepkg "github.com/starknuts/starknuts/node"
	"github.com/starknuts/starknuts/wad"
	walletstorage "github.com/starknuts/starknuts/wallet/storage"
)

// fundWallet mints amount into w at testNodeURL against the shared node n,
// settling the quote through the mock liquidity source the way
// TestMintAndRedeem does.
func fundWallet(t *testing.T, w *Wallet, n *nodepkg.Node, amount cashu.Amount) {
	t.Helper()
	ctx := context.Background()
	quote, err := w.CreateMintQuote(testNodeURL, cashu.MilliStrk, amount)
	if err != nil {
		t.Fatal(err)
	}
	full, err := n.GetMintQuote(ctx, quote.Id)
	if err != nil {
		t.Fatal(err)
	}
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

func TestSendAndReceiveRoundTrip(t *testing.T) {
	sender, n, _ := newTestWallet(t)
	fundWallet(t, sender, n, 32)

	cw, err := sender.Send(testNodeURL, cashu.MilliStrk, 20, "lunch money")
	if err != nil {
		t.Fatal(err)
	}
	amount, err := cw.Amount()
	if err != nil {
		t.Fatal(err)
	}
	if amount != 20 {
		t.Fatalf("expected wad amount 20, got %d", amount)
	}

	senderBalance, err := sender.Balance(testNodeURL, cashu.MilliStrk)
	if err != nil {
		t.Fatal(err)
	}
	if senderBalance != 12 {
		t.Fatalf("expected sender change balance 12, got %d", senderBalance)
	}

	token, err := wad.Encode(cw)
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := wad.Decode(token)
	if err != nil {
		t.Fatal(err)
	}
	if len(decoded) != 1 {
		t.Fatalf("expected one wad, got %d", len(decoded))
	}

	receiverDB, err := walletstorage.InitBolt(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { receiverDB.Close() })
	receiver, err := NewWallet(receiverDB)
	if err != nil {
		t.Fatal(err)
	}
	ic := client.NewInProcessClient(context.Background(), n)
	if err := receiver.AddNode(testNodeURL, ic); err != nil {
		t.Fatal(err)
	}

	received, err := receiver.Receive(decoded[0])
	if err != nil {
		t.Fatal(err)
	}
	if received != 20 {
		t.Fatalf("expected to receive 20, got %d", received)
	}

	receiverBalance, err := receiver.Balance(testNodeURL, cashu.MilliStrk)
	if err != nil {
		t.Fatal(err)
	}
	if receiverBalance != 20 {
		t.Fatalf("expected receiver balance 20, got %d", receiverBalance)
	}

	// the sender's original copy of the exported proofs can no longer be
	// redeemed by anyone else: attempting to receive the same wad a
	// second time must fail since Receive already swapped them away.
	if _, err := receiver.Receive(decoded[0]); err == nil {
		t.Fatal("expected replaying the same wad to fail")
	}
}
