package crypto

import (
	"encoding/hex"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/starknuts/starknuts/cashu"
)

// SignBlindedMessage signs a blinded point with the mint's per-amount key
// and attaches a DLEQ proof, the node-side half of BDHKE.
func SignBlindedMessage(k *secp256k1.PrivateKey, B_ *secp256k1.PublicKey) (*secp256k1.PublicKey, *cashu.DLEQProof) {
	C_ := SignMessage(k, B_)
	K := k.PubKey()
	e, s := ProveDLEQ(k, K, B_, C_)
	return C_, &cashu.DLEQProof{E: hexScalar(e), S: hexScalar(s)}
}

// VerifyBlindSignatureDLEQ checks the DLEQ proof attached to a
// BlindSignature against the mint's public key for that amount, the
// Alice-side check a wallet runs immediately after minting/swapping.
func VerifyBlindSignatureDLEQ(dleq *cashu.DLEQProof, K *secp256k1.PublicKey, B_, C_ *secp256k1.PublicKey) (bool, error) {
	e, err := parseScalar(dleq.E)
	if err != nil {
		return false, err
	}
	s, err := parseScalar(dleq.S)
	if err != nil {
		return false, err
	}
	return VerifyDLEQAlice(e, s, K, B_, C_), nil
}

// VerifyProofDLEQ checks the DLEQ proof carried on an unblinded Proof,
// the Carol-side check run once a proof has been handed off (e.g.
// received in a wad) and its blinding factor r is no longer available
// from the original request but was stored on the proof itself.
func VerifyProofDLEQ(proof cashu.Proof, K *secp256k1.PublicKey) (bool, error) {
	if proof.DLEQ == nil || proof.DLEQ.R == "" {
		return false, cashu.Build("proof has no DLEQ proof to verify", cashu.ProofErrCode)
	}
	e, err := parseScalar(proof.DLEQ.E)
	if err != nil {
		return false, err
	}
	s, err := parseScalar(proof.DLEQ.S)
	if err != nil {
		return false, err
	}
	rBytes, err := hex.DecodeString(proof.DLEQ.R)
	if err != nil {
		return false, err
	}
	r := secp256k1.PrivKeyFromBytes(rBytes)

	C, err := cashu.ParsePublicKeyHex(proof.C)
	if err != nil {
		return false, err
	}

	return VerifyDLEQCarol(e, s, []byte(proof.Secret), r, C.PublicKey, K), nil
}

// ConstructProofs pairs blind signatures, blinding factors and secrets
// positionally, unblinding each signature into a spendable Proof. It
// validates any attached DLEQ proof against the matching per-amount key
// before accepting the signature.
func ConstructProofs(
	blindSigs cashu.BlindSignatures,
	rs []*secp256k1.PrivateKey,
	secrets []cashu.Secret,
	keysByAmount map[cashu.Amount]*secp256k1.PublicKey,
) (cashu.Proofs, error) {
	if len(blindSigs) != len(rs) || len(rs) != len(secrets) {
		return nil, cashu.ErrLengthMismatch
	}

	proofs := make(cashu.Proofs, len(blindSigs))
	for i, sig := range blindSigs {
		K, ok := keysByAmount[sig.Amount]
		if !ok {
			return nil, cashu.ErrUnknownKeyForAmount
		}

		C_, err := cashu.ParsePublicKeyHex(sig.C_)
		if err != nil {
			return nil, err
		}

		B_, _, err := BlindMessage([]byte(secrets[i]), rs[i])
		if err != nil {
			return nil, err
		}

		if sig.DLEQ != nil {
			ok, err := VerifyBlindSignatureDLEQ(sig.DLEQ, K, B_, C_.PublicKey)
			if err != nil || !ok {
				return nil, cashu.ErrDleqVerifyFailed
			}
		}

		C := UnblindSignature(C_.PublicKey, rs[i], K)

		proof := cashu.Proof{
			Amount: sig.Amount,
			Id:     sig.Id,
			Secret: secrets[i],
			C:      hex.EncodeToString(C.SerializeCompressed()),
		}
		if sig.DLEQ != nil {
			proof.DLEQ = &cashu.DLEQProof{
				E: sig.DLEQ.E,
				S: sig.DLEQ.S,
				R: hex.EncodeToString(rs[i].Serialize()),
			}
		}
		proofs[i] = proof
	}

	return proofs, nil
}
