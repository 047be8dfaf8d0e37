package node

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/starknuts/starknuts/cache"
	"github.com/starknuts/starknuts/cashu"
	"github.com/starknuts/starknuts/liquidity"
	"github.com/starknuts/starknuts/node/storage"
)

// MintQuoteRequest is the request shape of the MintQuote node operation
// (§6.1).
type MintQuoteRequest struct {
	Method cashu.Method `json:"method"`
	Unit   cashu.Unit   `json:"unit"`
	Amount cashu.Amount `json:"amount"`
}

// InnerMintQuote implements §4.4's inner_mint_quote: gate on settings,
// resolve a Depositer, mint a fresh invoice id and deposit payload, and
// persist the quote Unpaid.
func (n *Node) InnerMintQuote(ctx context.Context, req MintQuoteRequest) (storage.MintQuote, error) {
	if err := n.settings.checkMint(req.Method, req.Unit, req.Amount); err != nil {
		return storage.MintQuote{}, err
	}

	src, ok := n.registry.Lookup(req.Method, req.Unit)
	if !ok {
		return storage.MintQuote{}, cashu.ErrMethodNotSupported
	}

	quoteId := uuid.NewString()
	expiry := time.Now().Add(n.mintTTL).Unix()
	invoiceId := src.ComputeInvoiceId(quoteId, expiry)

	request, err := src.GenerateDepositPayload(ctx, invoiceId, req.Unit, req.Amount, expiry)
	if err != nil {
		return storage.MintQuote{}, err
	}

	quote := storage.MintQuote{
		Id:        quoteId,
		Method:    req.Method,
		Unit:      req.Unit,
		Amount:    req.Amount,
		Request:   request,
		InvoiceId: invoiceId,
		State:     cashu.Unpaid,
		Expiry:    expiry,
	}
	if err := n.store.SaveMintQuote(ctx, quote); err != nil {
		return storage.MintQuote{}, err
	}
	n.logInfof("mint quote %s created for %d %s", quoteId, req.Amount, req.Unit)
	return quote, nil
}

// GetMintQuote implements the MintQuoteState node operation: a plain
// lookup, no state transition.
func (n *Node) GetMintQuote(ctx context.Context, quoteId string) (storage.MintQuote, error) {
	return n.store.GetMintQuote(ctx, quoteId)
}

// ObservePayment implements the payment-observation half of §4.4: one
// call per PaymentEvent posted by the external indexer. A replayed
// event (same natural key) is a no-op; an event for an unknown invoice
// id is ignored (the node may simply not be tracking that quote); the
// Unpaid -> Paid transition only fires once aggregated receipts meet
// the quote amount and never reverts.
func (n *Node) ObservePayment(ctx context.Context, invoiceId liquidity.InvoiceId, event liquidity.PaymentEvent) error {
	isNew, err := n.store.AppendPaymentEvent(ctx, invoiceId, event)
	if err != nil {
		return err
	}
	if !isNew {
		return nil
	}

	quote, err := n.store.GetMintQuoteByInvoiceId(ctx, invoiceId)
	if err != nil {
		if err == cashu.ErrQuoteNotFound {
			return nil
		}
		return err
	}
	if quote.State != cashu.Unpaid {
		return nil
	}

	sum, err := n.store.SumPaymentEvents(ctx, invoiceId)
	if err != nil {
		return err
	}
	if sum < quote.Amount {
		return nil
	}

	if err := n.store.UpdateMintQuoteState(ctx, quote.Id, cashu.Paid); err != nil {
		return err
	}
	n.logInfof("mint quote %s paid (%d/%d)", quote.Id, sum, quote.Amount)
	return nil
}

// MintRequest is the request shape of the Mint node operation (§6.1).
type MintRequest struct {
	Method  cashu.Method           `json:"method"`
	QuoteId string                 `json:"quote"`
	Outputs cashu.BlindedMessages `json:"outputs"`
}

// InnerMint implements §4.4's inner_mint: validate the quote is Paid and
// unexpired, validate outputs against the quote's unit and amount, sign,
// and advance the quote to Issued. The outputs are not recorded against
// the quote; they and their signatures go only to the issued-signature
// log that Restore reads.
func (n *Node) InnerMint(ctx context.Context, req MintRequest) (cashu.BlindSignatures, error) {
	fp := cache.FingerprintMint(req.QuoteId, req.Outputs)
	result, _, err := n.cache.Execute("mint", fp, func() (any, error) {
		return n.innerMint(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	return result.(cashu.BlindSignatures), nil
}

func (n *Node) innerMint(ctx context.Context, req MintRequest) (cashu.BlindSignatures, error) {
	if len(req.Outputs) == 0 {
		return nil, cashu.ErrEmptyRequest
	}
	if len(req.Outputs) > maxRequestItems {
		return nil, cashu.ErrTooManyOutputs
	}

	quote, err := n.store.GetMintQuote(ctx, req.QuoteId)
	if err != nil {
		return nil, err
	}
	switch quote.State {
	case cashu.Issued:
		return nil, cashu.ErrQuoteAlreadyIssued
	case cashu.Unpaid:
		return nil, cashu.ErrQuoteNotPaid
	}
	if time.Now().Unix() > quote.Expiry {
		return nil, cashu.ErrQuoteExpired
	}

	total, err := validateOutputs(n.keysets, req.Outputs, quote.Unit)
	if err != nil {
		return nil, err
	}
	if total != quote.Amount {
		return nil, cashu.ErrOutputsSumMismatch
	}

	sigs, err := n.signer.Sign(ctx, req.Outputs)
	if err != nil {
		return nil, err
	}
	if err := n.store.SaveIssuedSignatures(ctx, req.Outputs, sigs); err != nil {
		return nil, err
	}

	if err := n.store.UpdateMintQuoteState(ctx, quote.Id, cashu.Issued); err != nil {
		return nil, err
	}
	n.logInfof("mint quote %s issued %d outputs", quote.Id, len(req.Outputs))
	return sigs, nil
}
