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

// Receive implements §6.4's import path: swap a received CompactWad's
// proofs at their own node for a fresh set blinded under this wallet's
// counter, so a sender who kept a copy of the wad cannot race the
// receiver to the node, then stores the result as Unspent. The caller
// must already have introduced cw.NodeURL (AddNode) so its keysets are
// cached.
func (w *Wallet) Receive(cw wad.CompactWad) (cashu.Amount, error) {
	c, err := w.clientFor(cw.NodeURL)
	if err != nil {
		return 0, fmt.Errorf("receive: %v (call AddNode for %s first)", err, cw.NodeURL)
	}

	total, err := cw.Amount()
	if err != nil {
		return 0, err
	}

	id, ok := w.ActiveKeysetFor(cw.NodeURL, cw.Unit)
	if !ok {
		return 0, fmt.Errorf("no active keyset for unit %s at %s", cw.Unit, cw.NodeURL)
	}
	ks, ok := w.keysetFor(cw.NodeURL, id)
	if !ok {
		return 0, fmt.Errorf("keyset %s not cached for %s", id, cw.NodeURL)
	}
	counter, err := w.db.GetKeysetCounter(cw.NodeURL, id)
	if err != nil {
		return 0, err
	}

	amounts := total.Split()
	preMints, err := crypto.DerivePreMints(w.master, id, counter.Counter, amounts)
	if err != nil {
		return 0, err
	}
	outputs := make(cashu.BlindedMessages, len(preMints))
	for i, pm := range preMints {
		outputs[i] = cashu.BlindedMessage{Amount: pm.Amount, Id: id, B_: cashu.NewPublicKey(pm.B_).Hex()}
	}

	sigs, err := c.PostSwap(node.SwapRequest{Inputs: cw.Proofs, Outputs: outputs})
	if err != nil {
		return 0, err
	}
	if len(sigs) != len(preMints) {
		return 0, fmt.Errorf("node returned %d signatures for %d outputs", len(sigs), len(preMints))
	}

	for i, pm := range preMints {
		K, ok := ks.Keys[pm.Amount]
		if !ok {
			return 0, fmt.Errorf("no key for amount %d in keyset %s", pm.Amount, id)
		}
		proof, err := unblindVerified(pm, pm.Amount, sigs[i], id, K)
		if err != nil {
			return 0, err
		}
		p := storage.DBProof{Proof: proof, NodeURL: cw.NodeURL, Status: storage.ProofUnspent}
		if err := w.db.SaveProof(p); err != nil {
			return 0, err
		}
	}
	if err := w.db.IncrementKeysetCounter(cw.NodeURL, id, uint32(len(preMints))); err != nil {
		return 0, err
	}
	_ = c.PostAcknowledge("swap", cache.FingerprintSwap(cw.Proofs, outputs))
	return total, nil
}
