package node

import (
	"context"

	"github.com/starknuts/starknuts/cache"
	"github.com/starknuts/starknuts/cashu"
)

// SwapRequest is the request shape of the Swap node operation (§6.1).
type SwapRequest struct {
	Inputs  cashu.Proofs           `json:"inputs"`
	Outputs cashu.BlindedMessages `json:"outputs"`
}

// InnerSwap implements §4.7's inner_swap: verify inputs, validate
// outputs, require a balanced exchange (no fee), spend the inputs and
// sign the outputs in one step.
func (n *Node) InnerSwap(ctx context.Context, req SwapRequest) (cashu.BlindSignatures, error) {
	fp := cache.FingerprintSwap(req.Inputs, req.Outputs)
	result, _, err := n.cache.Execute("swap", fp, func() (any, error) {
		return n.innerSwap(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	return result.(cashu.BlindSignatures), nil
}

func (n *Node) innerSwap(ctx context.Context, req SwapRequest) (cashu.BlindSignatures, error) {
	verified, err := n.verifyInputs(ctx, req.Inputs)
	if err != nil {
		return nil, err
	}

	outputTotal, err := validateOutputs(n.keysets, req.Outputs, verified.Unit)
	if err != nil {
		return nil, err
	}
	if outputTotal != verified.Total {
		return nil, cashu.ErrOutputsSumMismatch
	}

	if err := n.store.SaveProofs(ctx, req.Inputs); err != nil {
		return nil, err
	}

	sigs, err := n.signer.Sign(ctx, req.Outputs)
	if err != nil {
		return nil, err
	}
	if err := n.store.SaveIssuedSignatures(ctx, req.Outputs, sigs); err != nil {
		return nil, err
	}

	n.logInfof("swap consumed %d inputs, issued %d outputs", len(req.Inputs), len(req.Outputs))
	return sigs, nil
}
