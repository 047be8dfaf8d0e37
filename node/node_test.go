package node

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/starknuts/starknuts/cashu"
	"github.com/starknuts/starknuts/crypto"
	"github.com/starknuts/starknuts/liquidity"
	"github.com/starknuts/starknuts/node/storage/memory"
	"github.com/starknuts/starknuts/signer"
	"github.com/tyler-smith/go-bip39"
)

type testFixture struct {
	node *Node
	src  *liquidity.Mock
}

func newTestFixture(t *testing.T) *testFixture {
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
	store := memory.New()

	registry := NewLiquidityRegistry()
	src := liquidity.NewMock(cashu.Starknet, cashu.MilliStrk)
	registry.Register(src)

	settings := NewSettings()
	settings.SetMintBounds(cashu.Starknet, cashu.MilliStrk, Bounds{})
	settings.SetMeltBounds(cashu.Starknet, cashu.MilliStrk, Bounds{})

	n, err := New(ctx, Config{Signer: s, Store: store, Registry: registry, Settings: settings})
	if err != nil {
		t.Fatal(err)
	}
	if err := n.Keysets().InitFirstKeysets(ctx, []cashu.Unit{cashu.MilliStrk}, 6); err != nil {
		t.Fatal(err)
	}
	return &testFixture{node: n, src: src}
}

var secretCounter int
var secretMu sync.Mutex

func uniqueSecret() cashu.Secret {
	secretMu.Lock()
	defer secretMu.Unlock()
	secretCounter++
	return cashu.Secret(fmt.Sprintf("test-secret-%d", secretCounter))
}

// freshOutput produces a blinded message for the given amount/keyset
// together with the blinding factor and plaintext secret needed to
// unblind the resulting signature.
func freshOutput(t *testing.T, id cashu.KeysetId, amount cashu.Amount) (cashu.BlindedMessage, *secp256k1.PrivateKey, cashu.Secret) {
	t.Helper()
	secret := uniqueSecret()
	B_, r, err := crypto.BlindMessage([]byte(secret), nil)
	if err != nil {
		t.Fatal(err)
	}
	return cashu.BlindedMessage{Amount: amount, Id: id, B_: cashu.NewPublicKey(B_).Hex()}, r, secret
}

// unblindInto recovers a spendable Proof from a node's blind signature.
func unblindInto(t *testing.T, sig cashu.BlindSignature, r *secp256k1.PrivateKey, K *secp256k1.PublicKey, secret cashu.Secret, id cashu.KeysetId, amount cashu.Amount) cashu.Proof {
	t.Helper()
	C_, err := cashu.ParsePublicKeyHex(sig.C_)
	if err != nil {
		t.Fatal(err)
	}
	C := crypto.UnblindSignature(C_.PublicKey, r, K)
	return cashu.Proof{Amount: amount, Id: id, Secret: secret, C: cashu.NewPublicKey(C).Hex()}
}

// mintProof drives a full mint (S1) for the given amount and returns the
// resulting unblinded proof.
func mintProof(t *testing.T, f *testFixture, amount cashu.Amount) cashu.Proof {
	t.Helper()
	ctx := context.Background()

	quote, err := f.node.InnerMintQuote(ctx, MintQuoteRequest{Method: cashu.Starknet, Unit: cashu.MilliStrk, Amount: amount})
	if err != nil {
		t.Fatal(err)
	}

	event := liquidity.PaymentEvent{
		InvoiceId: quote.InvoiceId, BlockId: 1, TxHash: "0xaaa", EventIndex: 0,
		Asset: "STRK", Payer: "0xuser", Payee: "0xnode", Amount: amount,
	}
	if err := f.node.ObservePayment(ctx, quote.InvoiceId, event); err != nil {
		t.Fatal(err)
	}

	id, ok := f.node.Keysets().ActiveKeysetFor(cashu.MilliStrk)
	if !ok {
		t.Fatal("expected active keyset")
	}
	out, r, secret := freshOutput(t, id, amount)

	sigs, err := f.node.InnerMint(ctx, MintRequest{Method: cashu.Starknet, QuoteId: quote.Id, Outputs: cashu.BlindedMessages{out}})
	if err != nil {
		t.Fatal(err)
	}

	info, err := f.node.Keysets().GetKeysetInfo(id)
	if err != nil {
		t.Fatal(err)
	}
	return unblindInto(t, sigs[0], r, info.Keys[amount], secret, id, amount)
}

func mustY(t *testing.T, p cashu.Proof) string {
	t.Helper()
	Y, err := crypto.HashToCurve([]byte(p.Secret))
	if err != nil {
		t.Fatal(err)
	}
	return cashu.NewPublicKey(Y).Hex()
}

// TestMintProducesUnspentProof is scenario S1: mint 32 millistrk and
// receive one proof of amount 32.
func TestMintProducesUnspentProof(t *testing.T) {
	f := newTestFixture(t)
	proof := mintProof(t, f, 32)
	if proof.Amount != 32 {
		t.Fatalf("expected amount 32, got %d", proof.Amount)
	}

	states, err := f.node.CheckState(context.Background(), []string{mustY(t, proof)})
	if err != nil {
		t.Fatal(err)
	}
	if states[0].State != cashu.ProofUnspent {
		t.Fatalf("expected Unspent, got %s", states[0].State)
	}
}

// TestSwapSplitsProof is scenario S2: swap 32 -> {16, 16}.
func TestSwapSplitsProof(t *testing.T) {
	f := newTestFixture(t)
	ctx := context.Background()
	proof := mintProof(t, f, 32)

	id, _ := f.node.Keysets().ActiveKeysetFor(cashu.MilliStrk)
	out1, r1, secret1 := freshOutput(t, id, 16)
	out2, r2, secret2 := freshOutput(t, id, 16)

	sigs, err := f.node.InnerSwap(ctx, SwapRequest{
		Inputs:  cashu.Proofs{proof},
		Outputs: cashu.BlindedMessages{out1, out2},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(sigs) != 2 {
		t.Fatalf("expected 2 signatures, got %d", len(sigs))
	}

	info, _ := f.node.Keysets().GetKeysetInfo(id)
	K := info.Keys[16]
	p1 := unblindInto(t, sigs[0], r1, K, secret1, id, 16)
	p2 := unblindInto(t, sigs[1], r2, K, secret2, id, 16)
	if p1.Amount+p2.Amount != 32 {
		t.Fatal("swap outputs should sum to the input amount")
	}

	states, err := f.node.CheckState(ctx, []string{mustY(t, proof)})
	if err != nil {
		t.Fatal(err)
	}
	if states[0].State != cashu.ProofSpent {
		t.Fatal("original proof should be Spent after the swap")
	}
}

// TestDoubleSpendRejected is scenario S3: submitting a swap twice
// concurrently with the same input succeeds exactly once.
func TestDoubleSpendRejected(t *testing.T) {
	f := newTestFixture(t)
	ctx := context.Background()
	proof := mintProof(t, f, 32)
	id, _ := f.node.Keysets().ActiveKeysetFor(cashu.MilliStrk)

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			out, _, _ := freshOutput(t, id, 32)
			_, err := f.node.InnerSwap(ctx, SwapRequest{
				Inputs:  cashu.Proofs{proof},
				Outputs: cashu.BlindedMessages{out},
			})
			results[i] = err
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, err := range results {
		if err == nil {
			successes++
		}
	}
	if successes != 1 {
		t.Fatalf("expected exactly one success, got %d", successes)
	}
}

// TestMeltSettlesAndSpendsInputs is scenario S4: melt 32+1 fee to a
// Starknet payee.
func TestMeltSettlesAndSpendsInputs(t *testing.T) {
	f := newTestFixture(t)
	ctx := context.Background()

	p32 := mintProof(t, f, 32)
	p1 := mintProof(t, f, 1)

	reqJSON, err := json.Marshal(map[string]any{
		"asset": "STRK", "payee": "0x064b...", "amount": 32, "expiry": 9999999999,
	})
	if err != nil {
		t.Fatal(err)
	}

	quote, err := f.node.InnerMeltQuote(ctx, MeltQuoteRequest{Method: cashu.Starknet, Unit: cashu.MilliStrk, PaymentRequest: reqJSON})
	if err != nil {
		t.Fatal(err)
	}
	if quote.Amount != 32 || quote.Fee != 1 {
		t.Fatalf("expected amount=32 fee=1, got amount=%d fee=%d", quote.Amount, quote.Fee)
	}

	result, err := f.node.InnerMelt(ctx, MeltRequest{Method: cashu.Starknet, QuoteId: quote.Id, Inputs: cashu.Proofs{p32, p1}})
	if err != nil {
		t.Fatal(err)
	}
	if result.State != cashu.Paid {
		t.Fatalf("expected mock withdrawer to settle synchronously, got %s", result.State)
	}
	if len(result.TransferIds) != 1 {
		t.Fatalf("expected one transfer id, got %v", result.TransferIds)
	}

	states, err := f.node.CheckState(ctx, []string{mustY(t, p32), mustY(t, p1)})
	if err != nil {
		t.Fatal(err)
	}
	for _, s := range states {
		if s.State != cashu.ProofSpent {
			t.Fatalf("expected melt inputs Spent, got %s", s.State)
		}
	}
}
