package liquidity

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/starknuts/starknuts/cashu"
)

// Mock is an in-process LiquiditySource that settles melts immediately
// and hands back a JSON payload instead of talking to a chain,
// grounded in the teacher's fakebackend for Lightning. It is the
// default source wired into cmd/starknuts-node when no real Starknet
// backend is configured.
type Mock struct {
	method cashu.Method
	unit   cashu.Unit

	mu       sync.Mutex
	payments []PaymentRecord
}

type PaymentRecord struct {
	QuoteId string
	Request Request
	Amount  cashu.Amount
}

func NewMock(method cashu.Method, unit cashu.Unit) *Mock {
	return &Mock{method: method, unit: unit}
}

func (m *Mock) Method() cashu.Method { return m.method }
func (m *Mock) Unit() cashu.Unit     { return m.unit }

func (m *Mock) GenerateDepositPayload(ctx context.Context, invoiceId InvoiceId, unit cashu.Unit, amount cashu.Amount, expiry int64) (string, error) {
	payload := struct {
		InvoiceId string       `json:"invoice_id"`
		Unit      string       `json:"unit"`
		Amount    cashu.Amount `json:"amount"`
		Expiry    int64        `json:"expiry"`
	}{
		InvoiceId: fmt.Sprintf("%x", invoiceId),
		Unit:      unit.String(),
		Amount:    amount,
		Expiry:    expiry,
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

type mockRequestJSON struct {
	Asset  string       `json:"asset"`
	Payee  string       `json:"payee"`
	Amount cashu.Amount `json:"amount"`
	Expiry int64        `json:"expiry"`
}

func (m *Mock) DeserializePaymentRequest(requestJSON []byte) (Request, error) {
	var r mockRequestJSON
	if err := json.Unmarshal(requestJSON, &r); err != nil {
		return Request{}, cashu.Build("malformed payment request: "+err.Error(), cashu.InvalidRequestErrCode)
	}
	if !m.unit.IsAssetSupported(r.Asset) {
		return Request{}, cashu.Build("asset not supported for unit "+m.unit.String(), cashu.LiquidityErrCode)
	}
	if r.Payee == "" {
		return Request{}, cashu.Build("payee address is required", cashu.LiquidityErrCode)
	}
	return Request{Asset: r.Asset, Payee: r.Payee, Amount: r.Amount, Expiry: r.Expiry}, nil
}

// ProceedToPayment settles synchronously, matching a local fake backend:
// real backends would typically return (Pending, nil) and settle via the
// withdraw processor.
func (m *Mock) ProceedToPayment(ctx context.Context, quoteId string, request Request, amount cashu.Amount, expiry int64) (cashu.QuoteState, []string, error) {
	m.mu.Lock()
	m.payments = append(m.payments, PaymentRecord{QuoteId: quoteId, Request: request, Amount: amount})
	m.mu.Unlock()

	txId := fmt.Sprintf("mock-tx-%s", quoteId)
	return cashu.Paid, []string{txId}, nil
}

func (m *Mock) ComputeInvoiceId(quoteId string, expiry int64) InvoiceId {
	return ComputeInvoiceId(quoteId, expiry)
}

// Payments returns a snapshot of settled payments, for tests.
func (m *Mock) Payments() []PaymentRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]PaymentRecord(nil), m.payments...)
}
