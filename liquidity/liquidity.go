// Package liquidity abstracts the on-chain settlement layer the node
// talks to: depositing (mint side) and withdrawing (melt side) through a
// LiquiditySource, observed as a stream of PaymentEvent records from an
// external indexer. No concrete chain client lives here — only the
// capability interfaces and a Mock implementation for tests and local
// development.
package liquidity

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/starknuts/starknuts/cashu"
)

// InvoiceId is the 32-byte correlation id a LiquiditySource computes
// from (quote_id, expiry) so the indexer can tag on-chain events without
// the node leaking its internal quote id on-chain.
type InvoiceId [32]byte

// ComputeInvoiceId is the default invoice-id function shared by every
// backend: SHA256(quote_id || big-endian expiry).
func ComputeInvoiceId(quoteId string, expiry int64) InvoiceId {
	var expiryBytes [8]byte
	binary.BigEndian.PutUint64(expiryBytes[:], uint64(expiry))

	h := sha256.New()
	h.Write([]byte(quoteId))
	h.Write(expiryBytes[:])

	var id InvoiceId
	copy(id[:], h.Sum(nil))
	return id
}

// Depositer handles the mint side: turning a fresh invoice id into an
// opaque, backend-specific payment payload the wallet can act on
// on-chain.
type Depositer interface {
	GenerateDepositPayload(ctx context.Context, invoiceId InvoiceId, unit cashu.Unit, amount cashu.Amount, expiry int64) (request string, err error)
}

// Request is a deserialized melt payment request: where to send funds,
// in what asset, and by when.
type Request struct {
	Asset  string
	Payee  string
	Amount cashu.Amount
	Expiry int64
}

// Withdrawer handles the melt side: validating a payment request and
// proceeding to payment, possibly asynchronously.
type Withdrawer interface {
	DeserializePaymentRequest(requestJSON []byte) (Request, error)
	ProceedToPayment(ctx context.Context, quoteId string, request Request, amount cashu.Amount, expiry int64) (state cashu.QuoteState, transferIds []string, err error)
	ComputeInvoiceId(quoteId string, expiry int64) InvoiceId
}

// LiquiditySource bundles the Depositer/Withdrawer capabilities for one
// (method, unit) pair, the unit returned by the node's
// LiquidityRegistry.Lookup.
type LiquiditySource interface {
	Method() cashu.Method
	Unit() cashu.Unit
	Depositer
	Withdrawer
}

// PaymentEvent is one observed on-chain receipt or settlement, posted by
// the external indexer. (BlockId, TxHash, EventIndex) is the natural key
// that prevents double-counting.
type PaymentEvent struct {
	InvoiceId  InvoiceId
	BlockId    uint64
	TxHash     string
	EventIndex uint32
	Asset      string
	Payer      string
	Payee      string
	Amount     cashu.Amount
}

// NaturalKey returns the (block, tx, index) triple used to deduplicate
// events in the payment-event log.
func (e PaymentEvent) NaturalKey() string {
	return fmt.Sprintf("%d:%s:%d", e.BlockId, e.TxHash, e.EventIndex)
}
