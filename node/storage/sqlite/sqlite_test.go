package sqlite

import (
	"context"
	"log"
	"os"
	"testing"

	"github.com/starknuts/starknuts/cashu"
	"github.com/starknuts/starknuts/crypto"
	"github.com/starknuts/starknuts/keyset"
	"github.com/starknuts/starknuts/liquidity"
	"github.com/starknuts/starknuts/node/storage"
)

var db *SQLiteDB

func TestMain(m *testing.M) {
	code, err := testMain(m)
	if err != nil {
		log.Println(err)
	}
	os.Exit(code)
}

func testMain(m *testing.M) (int, error) {
	dbpath := "./testsqlite"
	if err := os.MkdirAll(dbpath, 0750); err != nil {
		return 1, err
	}
	defer os.RemoveAll(dbpath)

	var err error
	db, err = InitSQLite(dbpath)
	if err != nil {
		return 1, err
	}
	defer db.Close()

	return m.Run(), nil
}

func TestKeysetRoundTrip(t *testing.T) {
	ctx := context.Background()
	ks := keyset.StoredKeyset{
		Id:                mustKeysetId(t, 1),
		Unit:              cashu.MilliStrk,
		Active:            true,
		MaxOrder:          6,
		DerivationPathIdx: 1,
	}
	if err := db.SaveKeyset(ctx, ks); err != nil {
		t.Fatal(err)
	}

	stored, err := db.GetKeysets(ctx)
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, s := range stored {
		if s.Id == ks.Id {
			found = true
			if s.Unit != ks.Unit || s.MaxOrder != ks.MaxOrder {
				t.Fatalf("round-tripped keyset mismatch: %+v", s)
			}
		}
	}
	if !found {
		t.Fatal("saved keyset not found")
	}

	if err := db.UpdateKeysetActive(ctx, ks.Id, false); err != nil {
		t.Fatal(err)
	}
	stored, _ = db.GetKeysets(ctx)
	for _, s := range stored {
		if s.Id == ks.Id && s.Active {
			t.Fatal("expected keyset to be inactive after update")
		}
	}
}

func TestProofsSpentAndRejectsDuplicate(t *testing.T) {
	ctx := context.Background()
	id := mustKeysetId(t, 2)
	p := cashu.Proof{Amount: 8, Id: id, Secret: cashu.Secret("sqlite-test-secret-1"), C: "02" + fixedHex(33)}

	if err := db.SaveProofs(ctx, cashu.Proofs{p}); err != nil {
		t.Fatal(err)
	}

	Y, err := crypto.HashToCurve([]byte(p.Secret))
	if err != nil {
		t.Fatal(err)
	}
	y := cashu.NewPublicKey(Y).Hex()

	spent, err := db.GetSpentYs(ctx, []string{y})
	if err != nil {
		t.Fatal(err)
	}
	if !spent[y] {
		t.Fatal("expected proof to be recorded as spent")
	}

	if err := db.SaveProofs(ctx, cashu.Proofs{p}); err == nil {
		t.Fatal("expected duplicate spend to fail")
	}
}

func TestMintQuoteLifecycle(t *testing.T) {
	ctx := context.Background()
	var invoiceId liquidity.InvoiceId
	invoiceId[0] = 0xAB

	q := storage.MintQuote{
		Id: "mint-quote-1", Method: cashu.Starknet, Unit: cashu.MilliStrk,
		Amount: 32, Request: `{"foo":"bar"}`, InvoiceId: invoiceId, State: cashu.Unpaid, Expiry: 1000,
	}
	if err := db.SaveMintQuote(ctx, q); err != nil {
		t.Fatal(err)
	}

	got, err := db.GetMintQuote(ctx, q.Id)
	if err != nil {
		t.Fatal(err)
	}
	if got.Amount != q.Amount || got.State != cashu.Unpaid {
		t.Fatalf("round-tripped mint quote mismatch: %+v", got)
	}

	byInvoice, err := db.GetMintQuoteByInvoiceId(ctx, invoiceId)
	if err != nil {
		t.Fatal(err)
	}
	if byInvoice.Id != q.Id {
		t.Fatalf("expected to find quote by invoice id, got %q", byInvoice.Id)
	}

	if err := db.UpdateMintQuoteState(ctx, q.Id, cashu.Paid); err != nil {
		t.Fatal(err)
	}
	got, _ = db.GetMintQuote(ctx, q.Id)
	if got.State != cashu.Paid {
		t.Fatalf("expected state Paid, got %s", got.State)
	}
}

func TestMeltQuoteLifecycle(t *testing.T) {
	ctx := context.Background()
	var invoiceId liquidity.InvoiceId
	invoiceId[0] = 0xCD

	q := storage.MeltQuote{
		Id: "melt-quote-1", Method: cashu.Starknet, Unit: cashu.MilliStrk,
		Amount: 32, Fee: 1, Request: `{"foo":"bar"}`, InvoiceId: invoiceId, State: cashu.Unpaid, Expiry: 1000,
	}
	if err := db.SaveMeltQuote(ctx, q); err != nil {
		t.Fatal(err)
	}

	if err := db.UpdateMeltQuote(ctx, q.Id, cashu.Paid, []string{"tx-1"}); err != nil {
		t.Fatal(err)
	}
	got, err := db.GetMeltQuote(ctx, q.Id)
	if err != nil {
		t.Fatal(err)
	}
	if got.State != cashu.Paid || len(got.TransferIds) != 1 || got.TransferIds[0] != "tx-1" {
		t.Fatalf("round-tripped melt quote mismatch: %+v", got)
	}
}

func TestPaymentEventsDeduplicateAndSum(t *testing.T) {
	ctx := context.Background()
	var invoiceId liquidity.InvoiceId
	invoiceId[0] = 0xEF

	event := liquidity.PaymentEvent{InvoiceId: invoiceId, BlockId: 1, TxHash: "0xaaa", EventIndex: 0, Amount: 10}

	isNew, err := db.AppendPaymentEvent(ctx, invoiceId, event)
	if err != nil || !isNew {
		t.Fatalf("expected first insert to be new, got isNew=%v err=%v", isNew, err)
	}

	isNew, err = db.AppendPaymentEvent(ctx, invoiceId, event)
	if err != nil || isNew {
		t.Fatalf("expected replayed event to be deduplicated, got isNew=%v err=%v", isNew, err)
	}

	sum, err := db.SumPaymentEvents(ctx, invoiceId)
	if err != nil {
		t.Fatal(err)
	}
	if sum != 10 {
		t.Fatalf("expected sum 10 after dedup, got %d", sum)
	}
}

func TestIssuedSignaturesRoundTrip(t *testing.T) {
	ctx := context.Background()
	id := mustKeysetId(t, 3)
	outputs := cashu.BlindedMessages{{Amount: 4, Id: id, B_: "02" + fixedHex(1)}}
	sigs := cashu.BlindSignatures{{Amount: 4, Id: id, C_: "03" + fixedHex(2)}}

	if err := db.SaveIssuedSignatures(ctx, outputs, sigs); err != nil {
		t.Fatal(err)
	}

	found, err := db.GetIssuedSignatures(ctx, []string{outputs[0].B_, "unknown"})
	if err != nil {
		t.Fatal(err)
	}
	if len(found) != 1 {
		t.Fatalf("expected exactly one match, got %d", len(found))
	}
	if found[outputs[0].B_].C_ != sigs[0].C_ {
		t.Fatal("issued signature round-trip mismatch")
	}
}

func mustKeysetId(t *testing.T, n byte) cashu.KeysetId {
	t.Helper()
	var id cashu.KeysetId
	id[0] = 0x00
	id[7] = n
	return id
}

func fixedHex(seed byte) string {
	b := make([]byte, 32)
	for i := range b {
		b[i] = seed
	}
	out := make([]byte, 64)
	const digits = "0123456789abcdef"
	for i, v := range b {
		out[i*2] = digits[v>>4]
		out[i*2+1] = digits[v&0x0f]
	}
	return string(out)
}
