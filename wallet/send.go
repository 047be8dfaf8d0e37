package wallet

import (
	"fmt"

	"github.com/starknuts/starknuts/cache"
	"github.com/starknuts/starknuts/cashu"
	"github.com/starknuts/starknuts/crypto"
	"github.com/starknuts/starknuts/node"
	"github.com/starknuts/starknuts/wad"
	"github.com/starknuts/starknuts/wallet/storage"
)

// Send implements §6.4's export path: select proofs covering amount,
// swapping at the node for an exact-amount set plus change when the
// selection overshoots, and returns a CompactWad ready for wad.Encode.
// Selected inputs are reserved up front and either deleted (swapped
// away) or returned to Unspent if the submission fails, mirroring
// classifyAndReconcile's treatment of melt/swap failures.
func (w *Wallet) Send(nodeURL string, unit cashu.Unit, amount cashu.Amount, memo string) (wad.CompactWad, error) {
	selected, sum, err := w.Select(nodeURL, unit, amount)
	if err != nil {
		return wad.CompactWad{}, err
	}

	ys := make([]string, len(selected))
	for i, p := range selected {
		y, err := p.Y()
		if err != nil {
			return wad.CompactWad{}, err
		}
		ys[i] = y
		if err := w.db.SetProofStatus(y, storage.ProofReserved, ""); err != nil {
			return wad.CompactWad{}, err
		}
	}

	if sum == amount {
		sendProofs := make(cashu.Proofs, len(selected))
		for i, p := range selected {
			sendProofs[i] = p.Proof
			if err := w.db.DeleteProof(ys[i]); err != nil {
				return wad.CompactWad{}, err
			}
		}
		return wad.CompactWad{NodeURL: nodeURL, Unit: unit, Memo: memo, Proofs: sendProofs}, nil
	}

	change, err := sum.Sub(amount)
	if err != nil {
		w.classifyAndReconcile(err, ys)
		return wad.CompactWad{}, err
	}

	sendProofs, changeProofs, err := w.swapForExact(nodeURL, unit, selected, ys, amount, change)
	if err != nil {
		return wad.CompactWad{}, err
	}
	for _, cp := range changeProofs {
		if err := w.db.SaveProof(cp); err != nil {
			return wad.CompactWad{}, err
		}
	}
	return wad.CompactWad{NodeURL: nodeURL, Unit: unit, Memo: memo, Proofs: sendProofs}, nil
}

// swapForExact runs one §4.7 swap: inputs are the selected proofs,
// outputs are sendAmount's canonical denominations followed by
// changeAmount's, derived from the wallet's own counter so spent
// proofs never reappear in a later export.
func (w *Wallet) swapForExact(
	nodeURL string, unit cashu.Unit, inputs []storage.DBProof, ys []string, sendAmount, changeAmount cashu.Amount,
) (cashu.Proofs, []storage.DBProof, error) {
	c, err := w.clientFor(nodeURL)
	if err != nil {
		return nil, nil, err
	}
	id, ok := w.ActiveKeysetFor(nodeURL, unit)
	if !ok {
		return nil, nil, fmt.Errorf("no active keyset for unit %s at %s", unit, nodeURL)
	}
	ks, ok := w.keysetFor(nodeURL, id)
	if !ok {
		return nil, nil, fmt.Errorf("keyset %s not cached for %s", id, nodeURL)
	}
	counter, err := w.db.GetKeysetCounter(nodeURL, id)
	if err != nil {
		return nil, nil, err
	}

	amounts := append(sendAmount.Split(), changeAmount.Split()...)
	preMints, err := crypto.DerivePreMints(w.master, id, counter.Counter, amounts)
	if err != nil {
		return nil, nil, err
	}
	nSend := len(sendAmount.Split())

	rawInputs := make(cashu.Proofs, len(inputs))
	for i, p := range inputs {
		rawInputs[i] = p.Proof
	}
	outputs := make(cashu.BlindedMessages, len(preMints))
	for i, pm := range preMints {
		outputs[i] = cashu.BlindedMessage{Amount: pm.Amount, Id: id, B_: cashu.NewPublicKey(pm.B_).Hex()}
	}

	sigs, err := c.PostSwap(node.SwapRequest{Inputs: rawInputs, Outputs: outputs})
	if err != nil {
		w.classifyAndReconcile(err, ys)
		return nil, nil, err
	}
	if len(sigs) != len(preMints) {
		w.classifyAndReconcile(fmt.Errorf("node returned %d signatures for %d outputs", len(sigs), len(preMints)), ys)
		return nil, nil, fmt.Errorf("node returned %d signatures for %d outputs", len(sigs), len(preMints))
	}

	proofs := make(cashu.Proofs, len(preMints))
	for i, pm := range preMints {
		K, ok := ks.Keys[pm.Amount]
		if !ok {
			return nil, nil, fmt.Errorf("no key for amount %d in keyset %s", pm.Amount, id)
		}
		proof, err := unblindVerified(pm, pm.Amount, sigs[i], id, K)
		if err != nil {
			w.classifyAndReconcile(err, ys)
			return nil, nil, err
		}
		proofs[i] = proof
	}

	if err := w.db.IncrementKeysetCounter(nodeURL, id, uint32(len(preMints))); err != nil {
		return nil, nil, err
	}
	for _, y := range ys {
		if err := w.db.DeleteProof(y); err != nil {
			return nil, nil, err
		}
	}
	_ = c.PostAcknowledge("swap", cache.FingerprintSwap(rawInputs, outputs))

	sendProofs := proofs[:nSend]
	changeProofs := make([]storage.DBProof, len(proofs)-nSend)
	for i, p := range proofs[nSend:] {
		changeProofs[i] = storage.DBProof{Proof: p, NodeURL: nodeURL, Status: storage.ProofUnspent}
	}
	return sendProofs, changeProofs, nil
}
