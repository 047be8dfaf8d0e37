package liquidity

import (
	"context"
	"testing"

	"github.com/starknuts/starknuts/cashu"
)

func TestPaymentRequestRoundTrip(t *testing.T) {
	req := Request{Asset: "STRK", Payee: "0x064b...", Amount: 32, Expiry: 1234567890}
	encoded, err := EncodePaymentRequest(req)
	if err != nil {
		t.Fatal(err)
	}
	if encoded[:4] != "creq" {
		t.Fatalf("expected creq prefix, got %q", encoded[:4])
	}

	decoded, err := DecodePaymentRequest(encoded)
	if err != nil {
		t.Fatal(err)
	}
	if decoded != req {
		t.Fatalf("round trip mismatch: got %+v, want %+v", decoded, req)
	}
}

func TestDecodePaymentRequestRejectsMissingPrefix(t *testing.T) {
	if _, err := DecodePaymentRequest("notaprefix"); err == nil {
		t.Fatal("expected error for missing prefix")
	}
}

func TestComputeInvoiceIdDeterministic(t *testing.T) {
	id1 := ComputeInvoiceId("quote-1", 1000)
	id2 := ComputeInvoiceId("quote-1", 1000)
	if id1 != id2 {
		t.Fatal("ComputeInvoiceId should be deterministic")
	}
	id3 := ComputeInvoiceId("quote-2", 1000)
	if id1 == id3 {
		t.Fatal("ComputeInvoiceId should differ across quote ids")
	}
}

func TestMockProceedToPaymentSettlesImmediately(t *testing.T) {
	m := NewMock(cashu.Starknet, cashu.MilliStrk)
	state, transferIds, err := m.ProceedToPayment(context.Background(), "quote-1", Request{Asset: "STRK", Payee: "0xabc"}, 32, 1000)
	if err != nil {
		t.Fatal(err)
	}
	if state != cashu.Paid {
		t.Fatalf("expected Paid, got %s", state)
	}
	if len(transferIds) != 1 {
		t.Fatalf("expected one transfer id, got %v", transferIds)
	}
}

func TestMockRejectsUnsupportedAsset(t *testing.T) {
	m := NewMock(cashu.Starknet, cashu.MilliStrk)
	_, err := m.DeserializePaymentRequest([]byte(`{"asset":"ETH","payee":"0xabc","amount":1,"expiry":1}`))
	if err == nil {
		t.Fatal("expected error for unsupported asset")
	}
}
