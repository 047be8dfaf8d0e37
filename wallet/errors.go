package wallet

import (
	"regexp"
	"strconv"

	"github.com/starknuts/starknuts/cashu"
	"github.com/starknuts/starknuts/wallet/storage"
)

// proofErrorIndex matches the numeric index out of a FieldViolation's
// "inputs[N]"/"outputs[N]" path, the shape node/verification.go and
// signer/local.go produce. The node stores' index-less "inputs[]" path
// (a spent-set insert that lost a race) does not match and is skipped.
var proofErrorIndex = regexp.MustCompile(`\[(\d+)\]$`)

// ClassifyProofError implements §7 of the error handling design: turn a
// node's per-index ProofError into a terminal or recoverable state for
// each of the proofs that were submitted, by position.
//
//   - ReasonAlreadySpent -> the proof is gone; drop it locally.
//   - ReasonFailedCryptoVerify / ReasonHashOnCurve -> the proof was
//     never valid to begin with; drop it.
//   - ReasonDuplicateInput / ReasonUnknownKeyset / ReasonMultipleUnits /
//     ReasonAmountExceedsMaxOrder -> a request-shape problem, not a
//     proof-specific fault; the proof itself is still good, return it to
//     Unspent.
//   - any index not named in the error is unaffected by the failure and
//     also returns to Unspent (the whole batch failed atomically).
func ClassifyProofError(perr *cashu.ProofError, submitted []string) map[string]storage.ProofStatus {
	drop := make(map[int]bool, len(perr.Violations))
	for _, v := range perr.Violations {
		idx, ok := indexOf(v.Path)
		if !ok {
			continue
		}
		switch v.Reason {
		case cashu.ReasonAlreadySpent, cashu.ReasonFailedCryptoVerify, cashu.ReasonHashOnCurve:
			drop[idx] = true
		}
	}

	out := make(map[string]storage.ProofStatus, len(submitted))
	for i, y := range submitted {
		if drop[i] {
			out[y] = "" // caller deletes
		} else {
			out[y] = storage.ProofUnspent
		}
	}
	return out
}

func indexOf(path string) (int, bool) {
	m := proofErrorIndex.FindStringSubmatch(path)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// classifyAndReconcile applies ClassifyProofError's verdicts to the
// wallet's own proof rows after a failed melt/swap submission. A plain
// *cashu.Error (not a ProofError) means the whole request was rejected
// for a reason unrelated to any specific proof, so every input reverts
// to Unspent.
func (w *Wallet) classifyAndReconcile(err error, ys []string) {
	if perr, ok := err.(*cashu.ProofError); ok {
		for y, status := range ClassifyProofError(perr, ys) {
			if status == "" {
				_ = w.db.DeleteProof(y)
			} else {
				_ = w.db.SetProofStatus(y, status, "")
			}
		}
		return
	}
	for _, y := range ys {
		_ = w.db.SetProofStatus(y, storage.ProofUnspent, "")
	}
}
