package wallet

import (
	"context"

	"github.com/starknuts/starknuts/cashu"
	"github.com/starknuts/starknuts/wallet/storage"
)

// Sync reconciles the wallet's local state against every known node:
// refreshes keyset lists (picking up newly rotated active keysets),
// resumes polling any mint quote still Unpaid locally, and checks the
// state of any proof still marked Pending (a melt that was interrupted
// mid-flight) so it either frees back to Unspent or is dropped.
func (w *Wallet) Sync(ctx context.Context) error {
	w.mu.RLock()
	urls := make([]string, 0, len(w.nodes))
	for u := range w.nodes {
		urls = append(urls, u)
	}
	w.mu.RUnlock()

	for _, nodeURL := range urls {
		if err := w.RefreshKeysets(nodeURL); err != nil {
			return err
		}
		if err := w.resumePendingMintQuotes(nodeURL); err != nil {
			return err
		}
		if err := w.reconcilePendingProofs(nodeURL); err != nil {
			return err
		}
	}
	return nil
}

func (w *Wallet) resumePendingMintQuotes(nodeURL string) error {
	quotes, err := w.db.GetMintQuotesByNode(nodeURL)
	if err != nil {
		return err
	}
	c, err := w.clientFor(nodeURL)
	if err != nil {
		return err
	}
	for _, q := range quotes {
		if q.State == cashu.Issued {
			continue
		}
		latest, err := c.GetMintQuoteState(q.Id)
		if err != nil {
			continue
		}
		if err := w.db.UpdateMintQuoteState(nodeURL, q.Id, latest.State); err != nil {
			return err
		}
	}
	return nil
}

func (w *Wallet) reconcilePendingProofs(nodeURL string) error {
	proofs, err := w.db.GetProofsByNode(nodeURL)
	if err != nil {
		return err
	}
	c, err := w.clientFor(nodeURL)
	if err != nil {
		return err
	}

	var ys []string
	for _, p := range proofs {
		if p.Status != storage.ProofPending {
			continue
		}
		y, err := p.Y()
		if err != nil {
			return err
		}
		ys = append(ys, y)
	}
	if len(ys) == 0 {
		return nil
	}

	states, err := c.PostCheckState(ys)
	if err != nil {
		return err
	}
	for i, state := range states {
		switch state.State {
		case cashu.ProofSpent:
			if err := w.db.DeleteProof(ys[i]); err != nil && err != storage.ErrNotFound {
				return err
			}
		case cashu.ProofUnspent:
			if err := w.db.SetProofStatus(ys[i], storage.ProofUnspent, ""); err != nil {
				return err
			}
		}
	}
	return nil
}
