package wallet

import (
	"context"
	"fmt"
	"time"

	"github.com/starknuts/starknuts/cache"
	"github.com/starknuts/starknuts/cashu"
	"github.com/starknuts/starknuts/node"
	"github.com/starknuts/starknuts/wallet/storage"
)

// CreateMeltQuote implements §4.9's create_quote for the melt side.
func (w *Wallet) CreateMeltQuote(nodeURL string, unit cashu.Unit, paymentRequest []byte) (storage.MeltQuote, error) {
	c, err := w.clientFor(nodeURL)
	if err != nil {
		return storage.MeltQuote{}, err
	}
	quote, err := c.PostMeltQuote(node.MeltQuoteRequest{Method: cashu.Starknet, Unit: unit, PaymentRequest: paymentRequest})
	if err != nil {
		return storage.MeltQuote{}, err
	}
	local := storage.MeltQuote{
		NodeURL: nodeURL, Id: quote.Id, Method: quote.Method, Unit: quote.Unit,
		Amount: quote.Amount, Fee: quote.Fee, Request: string(paymentRequest),
		State: quote.State, Expiry: quote.Expiry,
	}
	if err := w.db.SaveMeltQuote(local); err != nil {
		return storage.MeltQuote{}, err
	}
	return local, nil
}

// PayQuote implements §4.9's pay_quote: select proofs summing exactly to
// amount+fee, mark them Pending, submit the melt, then move every
// selected proof to its terminal state per the per-index classification
// in ClassifyProofError (§7 of the error handling design).
func (w *Wallet) PayQuote(nodeURL, quoteId string) (node.MeltResult, error) {
	c, err := w.clientFor(nodeURL)
	if err != nil {
		return node.MeltResult{}, err
	}
	quote, err := w.db.GetMeltQuote(nodeURL, quoteId)
	if err != nil {
		return node.MeltResult{}, err
	}
	required, err := quote.Amount.Add(quote.Fee)
	if err != nil {
		return node.MeltResult{}, err
	}

	exact, ok, err := w.SelectExact(nodeURL, quote.Unit, required)
	if err != nil {
		return node.MeltResult{}, err
	}
	if !ok {
		return node.MeltResult{}, fmt.Errorf("no exact-change proof set available for %d %s; swap first", required, quote.Unit)
	}

	ys := make([]string, len(exact))
	for i, p := range exact {
		y, err := p.Y()
		if err != nil {
			return node.MeltResult{}, err
		}
		ys[i] = y
		if err := w.db.SetProofStatus(y, storage.ProofPending, quoteId); err != nil {
			return node.MeltResult{}, err
		}
	}

	inputs := make(cashu.Proofs, len(exact))
	for i, p := range exact {
		inputs[i] = p.Proof
	}

	result, err := c.PostMelt(node.MeltRequest{Method: quote.Method, QuoteId: quoteId, Inputs: inputs})
	if err != nil {
		w.classifyAndReconcile(err, ys)
		return node.MeltResult{}, err
	}

	for _, y := range ys {
		if err := w.db.DeleteProof(y); err != nil && err != storage.ErrNotFound {
			return result, err
		}
	}
	if err := w.db.UpdateMeltQuote(nodeURL, quoteId, result.State, result.TransferIds); err != nil {
		return result, err
	}
	if result.State == cashu.Paid {
		_ = c.PostAcknowledge("melt", cache.FingerprintMelt(quoteId, inputs))
	}
	return result, nil
}

// WaitForPayment implements §4.9's wait_for_payment: poll a Pending melt
// quote until it settles Paid (with transfer ids) or expires.
func (w *Wallet) WaitForPayment(ctx context.Context, nodeURL, quoteId string, pollInterval time.Duration) (storage.MeltQuote, error) {
	c, err := w.clientFor(nodeURL)
	if err != nil {
		return storage.MeltQuote{}, err
	}
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		quote, err := c.GetMeltQuoteState(quoteId)
		if err != nil {
			return storage.MeltQuote{}, err
		}
		local := storage.MeltQuote{
			NodeURL: nodeURL, Id: quote.Id, Method: quote.Method, Unit: quote.Unit,
			Amount: quote.Amount, Fee: quote.Fee, State: quote.State, Expiry: quote.Expiry,
			TransferIds: quote.TransferIds,
		}
		if err := w.db.UpdateMeltQuote(nodeURL, quoteId, local.State, local.TransferIds); err != nil {
			return storage.MeltQuote{}, err
		}
		if quote.State == cashu.Paid {
			return local, nil
		}
		if time.Now().Unix() > quote.Expiry {
			return local, nil
		}

		select {
		case <-ctx.Done():
			return local, ctx.Err()
		case <-ticker.C:
		}
	}
}
