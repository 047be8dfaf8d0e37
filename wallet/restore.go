package wallet

import (
	"fmt"

	"github.com/starknuts/starknuts/cashu"
	"github.com/starknuts/starknuts/crypto"
	"github.com/starknuts/starknuts/node"
	"github.com/starknuts/starknuts/wallet/storage"
)

const restoreBatchSize = 100

// RestoreNode implements §4.11's restore walk for one node: for every
// keyset the wallet knows about (RefreshKeysets must run first), derive
// batches of restoreBatchSize deterministic blinded messages from
// counter 0, ask the node which it has signed before, keep only the
// ones still Unspent, and stop after three consecutive empty batches.
func (w *Wallet) RestoreNode(nodeURL string) (int, error) {
	c, err := w.clientFor(nodeURL)
	if err != nil {
		return 0, err
	}

	restored := 0
	for _, id := range w.KnownKeysetIds(nodeURL) {
		counter := uint32(0)
		emptyBatches := 0

		for emptyBatches < 3 {
			amounts := make([]cashu.Amount, restoreBatchSize)
			preMints, err := crypto.DerivePreMints(w.master, id, counter, amounts)
			if err != nil {
				return restored, err
			}

			outputs := make(cashu.BlindedMessages, len(preMints))
			byB := make(map[string]crypto.PreMint, len(preMints))
			for i, pm := range preMints {
				b_ := cashu.NewPublicKey(pm.B_).Hex()
				outputs[i] = cashu.BlindedMessage{Amount: 0, Id: id, B_: b_}
				byB[b_] = pm
			}

			resp, err := c.PostRestore(node.RestoreRequest{Outputs: outputs})
			if err != nil {
				return restored, err
			}
			if len(resp.Outputs) == 0 {
				emptyBatches++
				counter += restoreBatchSize
				continue
			}
			emptyBatches = 0

			ys := make([]string, len(resp.Outputs))
			pms := make([]crypto.PreMint, len(resp.Outputs))
			for i, out := range resp.Outputs {
				pm, ok := byB[out.B_]
				if !ok {
					return restored, fmt.Errorf("node returned an output we never derived")
				}
				pms[i] = pm
				y, err := crypto.HashToCurve([]byte(pm.Secret))
				if err != nil {
					return restored, err
				}
				ys[i] = cashu.NewPublicKey(y).Hex()
			}

			states, err := c.PostCheckState(ys)
			if err != nil {
				return restored, err
			}

			ks, ksOk := w.keysetFor(nodeURL, id)
			lastIndex := -1
			for i, pm := range pms {
				sig := resp.Signatures[i]

				// the counter must advance past every blinded message the
				// node returned this batch, regardless of whether its
				// secret later turns out spent or its signature fails
				// verification (§4.11 step 4: derived from the last
				// returned message of step 2, not the step-3-filtered
				// subset).
				if derivedIndex := indexOfPreMint(preMints, pm); derivedIndex > lastIndex {
					lastIndex = derivedIndex
				}

				if states[i].State != cashu.ProofUnspent || !ksOk {
					continue
				}
				key, ok := ks.Keys[sig.Amount]
				if !ok {
					continue
				}
				proof, err := unblindVerified(pm, sig.Amount, sig, id, key)
				if err != nil {
					continue
				}

				dbp := storage.DBProof{Proof: proof, NodeURL: nodeURL, Status: storage.ProofUnspent}
				if err := w.db.SaveProof(dbp); err != nil {
					return restored, err
				}
				restored++
			}

			newCounter := counter
			if lastIndex >= 0 {
				newCounter = counter + uint32(lastIndex) + 1
			}
			if err := w.db.SaveKeysetCounter(storage.KeysetCounter{
				NodeURL: nodeURL, KeysetId: id, Unit: ks.Unit, Active: ks.Active, Counter: newCounter,
			}); err != nil {
				return restored, err
			}
			counter += restoreBatchSize
		}
	}
	return restored, nil
}

func indexOfPreMint(preMints []crypto.PreMint, target crypto.PreMint) int {
	for i, pm := range preMints {
		if pm.Secret == target.Secret {
			return i
		}
	}
	return -1
}
