package node

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/starknuts/starknuts/cashu"
	"github.com/starknuts/starknuts/crypto"
	"github.com/starknuts/starknuts/keyset"
)

// verifiedInputs is the outcome of the shared proof-verification routine
// (§4.6): the inputs' common unit, their checked total, and the Y of
// each input in request order, ready to be inserted into the spent set.
type verifiedInputs struct {
	Unit  cashu.Unit
	Total cashu.Amount
	Ys    []string
}

// verifyInputs runs the swap/melt-shared verification routine: hash to
// Y, reject duplicates, resolve each keyset (inactive is allowed here —
// spending an existing token never requires the active keyset), enforce
// amount/unit invariants, ask the signer for cryptographic validity, and
// finally check the spent set. Each stage that can fail per-index
// accumulates FieldViolations instead of returning on the first one, so
// the client gets a complete picture in one round trip.
func (n *Node) verifyInputs(ctx context.Context, inputs cashu.Proofs) (verifiedInputs, error) {
	if len(inputs) == 0 {
		return verifiedInputs{}, cashu.ErrEmptyRequest
	}
	if len(inputs) > maxRequestItems {
		return verifiedInputs{}, cashu.ErrTooManyInputs
	}

	seen := make(map[string]bool, len(inputs))
	ys := make([]string, len(inputs))
	var violations []cashu.FieldViolation
	var unit cashu.Unit
	unitSet := false
	var total cashu.Amount

	for i, p := range inputs {
		path := fmt.Sprintf("inputs[%d]", i)

		Y, err := crypto.HashToCurve([]byte(p.Secret))
		if err != nil {
			violations = append(violations, cashu.FieldViolation{Path: path, Reason: cashu.ReasonHashOnCurve})
			continue
		}
		yHex := hex.EncodeToString(Y.SerializeCompressed())
		if seen[yHex] {
			violations = append(violations, cashu.FieldViolation{Path: path, Reason: cashu.ReasonDuplicateInput})
			continue
		}
		seen[yHex] = true
		ys[i] = yHex

		info, err := n.keysets.GetKeysetInfo(p.Id)
		if err != nil {
			violations = append(violations, cashu.FieldViolation{Path: path, Reason: cashu.ReasonUnknownKeyset})
			continue
		}

		if !p.Amount.IsPowerOfTwo() || p.Amount >= cashu.Amount(1)<<uint(info.MaxOrder) {
			violations = append(violations, cashu.FieldViolation{Path: path, Reason: cashu.ReasonAmountExceedsMaxOrder})
			continue
		}
		if !unitSet {
			unit = info.Unit
			unitSet = true
		} else if info.Unit != unit {
			violations = append(violations, cashu.FieldViolation{Path: path, Reason: cashu.ReasonMultipleUnits})
			continue
		}

		sum, err := total.Add(p.Amount)
		if err != nil {
			return verifiedInputs{}, cashu.ErrAmountOverflow
		}
		total = sum
	}

	if len(violations) > 0 {
		return verifiedInputs{}, cashu.BuildProofError("input validation failed", violations...)
	}

	if err := n.signer.VerifyProofs(ctx, inputs); err != nil {
		return verifiedInputs{}, err
	}

	spent, err := n.store.GetSpentYs(ctx, ys)
	if err != nil {
		return verifiedInputs{}, err
	}
	var spentViolations []cashu.FieldViolation
	for i, y := range ys {
		if spent[y] {
			spentViolations = append(spentViolations, cashu.FieldViolation{
				Path: fmt.Sprintf("inputs[%d]", i), Reason: cashu.ReasonAlreadySpent,
			})
		}
	}
	if len(spentViolations) > 0 {
		return verifiedInputs{}, cashu.BuildProofError("one or more inputs already spent", spentViolations...)
	}

	return verifiedInputs{Unit: unit, Total: total, Ys: ys}, nil
}

// validateOutputs checks a set of BlindedMessages against a required
// unit: unique blinded secrets, a known *active* keyset for each (mint
// and swap outputs always sign against the active keyset — unlike
// spending inputs, which may still reference a retired one), and
// power-of-two amounts within the keyset's max order.
func validateOutputs(ks *keyset.Manager, outputs cashu.BlindedMessages, unit cashu.Unit) (cashu.Amount, error) {
	if len(outputs) == 0 {
		return 0, cashu.ErrEmptyRequest
	}
	if len(outputs) > maxRequestItems {
		return 0, cashu.ErrTooManyOutputs
	}

	seen := make(map[string]bool, len(outputs))
	var violations []cashu.FieldViolation
	var total cashu.Amount

	for i, out := range outputs {
		path := fmt.Sprintf("outputs[%d]", i)

		if seen[out.B_] {
			violations = append(violations, cashu.FieldViolation{Path: path, Reason: cashu.ReasonDuplicateInput})
			continue
		}
		seen[out.B_] = true

		info, err := ks.GetKeysetInfo(out.Id)
		if err != nil {
			violations = append(violations, cashu.FieldViolation{Path: path, Reason: cashu.ReasonUnknownKeyset})
			continue
		}
		if !info.Active {
			return 0, cashu.ErrInactiveKeyset
		}
		if info.Unit != unit {
			violations = append(violations, cashu.FieldViolation{Path: path, Reason: cashu.ReasonMultipleUnits})
			continue
		}
		if !out.Amount.IsPowerOfTwo() || out.Amount >= cashu.Amount(1)<<uint(info.MaxOrder) {
			violations = append(violations, cashu.FieldViolation{Path: path, Reason: cashu.ReasonAmountExceedsMaxOrder})
			continue
		}

		sum, err := total.Add(out.Amount)
		if err != nil {
			return 0, cashu.ErrAmountOverflow
		}
		total = sum
	}

	if len(violations) > 0 {
		return 0, cashu.BuildProofError("output validation failed", violations...)
	}
	return total, nil
}
