package node

import (
	"context"

	"github.com/starknuts/starknuts/cashu"
)

// YState is one element of the CheckState node operation's response: a
// Y paired with its current state in the spent/pending/unspent lattice
// (§6.1).
type YState struct {
	Y     string           `json:"Y"`
	State cashu.ProofState `json:"state"`
}

// CheckState implements the CheckState node operation, letting wallets
// reconcile their local proof rows against the node's authoritative
// spent/pending sets without presenting the proofs themselves.
func (n *Node) CheckState(ctx context.Context, ys []string) ([]YState, error) {
	spent, err := n.store.GetSpentYs(ctx, ys)
	if err != nil {
		return nil, err
	}
	pending, err := n.store.GetPendingYs(ctx, ys)
	if err != nil {
		return nil, err
	}

	out := make([]YState, len(ys))
	for i, y := range ys {
		switch {
		case spent[y]:
			out[i] = YState{Y: y, State: cashu.ProofSpent}
		case pending[y]:
			out[i] = YState{Y: y, State: cashu.ProofPending}
		default:
			out[i] = YState{Y: y, State: cashu.ProofUnspent}
		}
	}
	return out, nil
}

// RestoreRequest is the request shape of the Restore node operation:
// up to a batch of blinded messages the wallet is hunting for signatures
// to, generated deterministically from its seed (§4.11).
type RestoreRequest struct {
	Outputs cashu.BlindedMessages `json:"outputs"`
}

// RestoreResponse returns only the subset of the requested outputs the
// node has actually signed before (mint or swap), preserving their
// relative order, together with the corresponding signatures.
type RestoreResponse struct {
	Outputs    cashu.BlindedMessages  `json:"outputs"`
	Signatures cashu.BlindSignatures `json:"signatures"`
}

// Restore implements the Restore node operation (§4.11 step 2): of the
// requested (deterministically re-derived) blinded messages, return
// only the ones this node has signed before — looked up by blinded
// secret in the issued-signature log maintained alongside mint/swap —
// preserving the caller's order. It is then up to the wallet to call
// CheckState on the secrets it derived itself and keep only the Unspent
// ones (step 3), since the node never learns the plaintext secret until
// a proof made from it is actually spent.
func (n *Node) Restore(ctx context.Context, req RestoreRequest) (RestoreResponse, error) {
	if len(req.Outputs) == 0 {
		return RestoreResponse{}, cashu.ErrEmptyRequest
	}

	blindedSecrets := make([]string, len(req.Outputs))
	for i, out := range req.Outputs {
		blindedSecrets[i] = out.B_
	}
	found, err := n.store.GetIssuedSignatures(ctx, blindedSecrets)
	if err != nil {
		return RestoreResponse{}, err
	}

	var resp RestoreResponse
	for _, out := range req.Outputs {
		if sig, ok := found[out.B_]; ok {
			resp.Outputs = append(resp.Outputs, out)
			resp.Signatures = append(resp.Signatures, sig)
		}
	}
	return resp, nil
}
