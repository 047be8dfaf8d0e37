package wallet

import (
	"encoding/hex"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/starknuts/starknuts/cashu"
	"github.com/starknuts/starknuts/crypto"
)

// unblindVerified turns one node-returned BlindSignature into a spendable
// Proof, rejecting the signature outright if it carries a DLEQ proof that
// fails verification against the matching per-amount key -- the
// Alice-side check spec §4.1 requires before a wallet ever trusts a
// signature enough to store or spend it. amount is the proof's face
// value: for ordinary mint/swap output it equals pm.Amount, but restore's
// blinded messages are derived before the amount is known, so its caller
// passes sig.Amount instead.
func unblindVerified(pm crypto.PreMint, amount cashu.Amount, sig cashu.BlindSignature, id cashu.KeysetId, K *secp256k1.PublicKey) (cashu.Proof, error) {
	C_, err := cashu.ParsePublicKeyHex(sig.C_)
	if err != nil {
		return cashu.Proof{}, err
	}

	if sig.DLEQ != nil {
		ok, err := crypto.VerifyBlindSignatureDLEQ(sig.DLEQ, K, pm.B_, C_.PublicKey)
		if err != nil {
			return cashu.Proof{}, fmt.Errorf("verifying DLEQ proof: %w", err)
		}
		if !ok {
			return cashu.Proof{}, fmt.Errorf("node returned signature for amount %d with an invalid DLEQ proof", amount)
		}
	}

	C := crypto.UnblindSignature(C_.PublicKey, pm.R, K)
	proof := cashu.Proof{Amount: amount, Id: id, Secret: pm.Secret, C: cashu.NewPublicKey(C).Hex()}
	if sig.DLEQ != nil {
		proof.DLEQ = &cashu.DLEQProof{E: sig.DLEQ.E, S: sig.DLEQ.S, R: hex.EncodeToString(pm.R.Serialize())}
	}
	return proof, nil
}
