package wallet

import (
	"context"
	"fmt"
	"time"

	"github.com/starknuts/starknuts/cache"
	"github.com/starknuts/starknuts/cashu"
	"github.com/starknuts/starknuts/crypto"
	"github.com/starknuts/starknuts/node"
	"github.com/starknuts/starknuts/wallet/storage"
)

// CreateMintQuote implements §4.9's create_quote for the mint side: ask
// nodeURL to open a quote and keep our own copy of it.
func (w *Wallet) CreateMintQuote(nodeURL string, unit cashu.Unit, amount cashu.Amount) (storage.MintQuote, error) {
	c, err := w.clientFor(nodeURL)
	if err != nil {
		return storage.MintQuote{}, err
	}
	quote, err := c.PostMintQuote(node.MintQuoteRequest{Method: cashu.Starknet, Unit: unit, Amount: amount})
	if err != nil {
		return storage.MintQuote{}, err
	}
	local := storage.MintQuote{
		NodeURL: nodeURL, Id: quote.Id, Method: quote.Method, Unit: quote.Unit,
		Amount: quote.Amount, Request: quote.Request, State: quote.State, Expiry: quote.Expiry,
	}
	if err := w.db.SaveMintQuote(local); err != nil {
		return storage.MintQuote{}, err
	}
	return local, nil
}

// WaitForQuotePayment implements §4.9's wait_for_quote_payment: poll the
// node until the quote is Paid or its expiry has passed. An expired
// quote still Unpaid is purged locally rather than returned as an error,
// since there is nothing left for the caller to do with it.
func (w *Wallet) WaitForQuotePayment(ctx context.Context, nodeURL, quoteId string, pollInterval time.Duration) (cashu.QuoteState, error) {
	c, err := w.clientFor(nodeURL)
	if err != nil {
		return "", err
	}
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		quote, err := c.GetMintQuoteState(quoteId)
		if err != nil {
			if _, ok := err.(*cashu.Error); ok {
				_ = w.db.DeleteMintQuote(nodeURL, quoteId)
			}
			return "", err
		}
		if err := w.db.UpdateMintQuoteState(nodeURL, quoteId, quote.State); err != nil {
			return "", err
		}
		if quote.State == cashu.Paid {
			return cashu.Paid, nil
		}
		if time.Now().Unix() > quote.Expiry {
			_ = w.db.DeleteMintQuote(nodeURL, quoteId)
			return cashu.Unpaid, nil
		}

		select {
		case <-ctx.Done():
			return quote.State, ctx.Err()
		case <-ticker.C:
		}
	}
}

// RedeemQuote implements §4.9's redeem_quote: derive one output per
// denomination of totalAmount from the node's active keyset, submit
// them for signature, and commit the counter advance together with the
// newly unblinded Unspent proofs and the quote's Issued transition.
func (w *Wallet) RedeemQuote(nodeURL, quoteId string, totalAmount cashu.Amount) ([]storage.DBProof, error) {
	c, err := w.clientFor(nodeURL)
	if err != nil {
		return nil, err
	}
	quote, err := w.db.GetMintQuote(nodeURL, quoteId)
	if err != nil {
		return nil, err
	}

	id, ok := w.ActiveKeysetFor(nodeURL, quote.Unit)
	if !ok {
		return nil, fmt.Errorf("no active keyset for unit %s at %s", quote.Unit, nodeURL)
	}
	ks, ok := w.keysetFor(nodeURL, id)
	if !ok {
		return nil, fmt.Errorf("keyset %s not cached for %s", id, nodeURL)
	}

	counter, err := w.db.GetKeysetCounter(nodeURL, id)
	if err != nil {
		return nil, err
	}

	amounts := totalAmount.Split()
	preMints, err := crypto.DerivePreMints(w.master, id, counter.Counter, amounts)
	if err != nil {
		return nil, err
	}

	outputs := make(cashu.BlindedMessages, len(preMints))
	for i, pm := range preMints {
		outputs[i] = cashu.BlindedMessage{Amount: pm.Amount, Id: id, B_: cashu.NewPublicKey(pm.B_).Hex()}
	}

	sigs, err := c.PostMint(node.MintRequest{Method: quote.Method, QuoteId: quoteId, Outputs: outputs})
	if err != nil {
		return nil, err
	}
	if len(sigs) != len(preMints) {
		return nil, fmt.Errorf("node returned %d signatures for %d outputs", len(sigs), len(preMints))
	}

	proofs := make([]storage.DBProof, len(preMints))
	for i, pm := range preMints {
		K, ok := ks.Keys[pm.Amount]
		if !ok {
			return nil, fmt.Errorf("no key for amount %d in keyset %s", pm.Amount, id)
		}
		proof, err := unblindVerified(pm, pm.Amount, sigs[i], id, K)
		if err != nil {
			return nil, err
		}
		proofs[i] = storage.DBProof{Proof: proof, NodeURL: nodeURL, Status: storage.ProofUnspent}
	}

	if err := w.db.RedeemMintQuote(nodeURL, id, uint32(len(preMints)), proofs, quoteId); err != nil {
		return nil, err
	}

	fp := cache.FingerprintMint(quoteId, outputs)
	_ = c.PostAcknowledge("mint", fp)

	return proofs, nil
}
