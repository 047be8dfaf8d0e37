// Package crypto implements the blind Diffie-Hellman key exchange
// (BDHKE) blind-signature scheme, its DLEQ proof, and the BIP-32-style
// deterministic derivation of keysets and per-proof secrets used by the
// node and the wallet.
package crypto

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/starknuts/starknuts/cashu"
)

// domainSeparator is prefixed to every hash_to_curve attempt so this
// scheme's curve points can never collide with an unrelated protocol's.
var domainSeparator = []byte("Secp256k1_HashToCurve_Cashu_")

// HashToCurve deterministically maps an arbitrary message onto a
// secp256k1 point with no known discrete log, by probing candidate
// x-coordinates until one decompresses.
func HashToCurve(message []byte) (*secp256k1.PublicKey, error) {
	msgHash := sha256.Sum256(message)

	for counter := uint32(0); counter < 1<<16; counter++ {
		var counterBytes [4]byte
		binary.LittleEndian.PutUint32(counterBytes[:], counter)

		h := sha256.New()
		h.Write(domainSeparator)
		h.Write(msgHash[:])
		h.Write(counterBytes[:])
		candidate := h.Sum(nil)

		compressed := append([]byte{0x02}, candidate...)
		point, err := secp256k1.ParsePubKey(compressed)
		if err == nil {
			return point, nil
		}
	}
	return nil, cashu.ErrHashToCurveFailed
}

// BlindMessage computes B' = hash_to_curve(secret) + r*G. If r is nil a
// fresh secret scalar is generated.
func BlindMessage(secret []byte, r *secp256k1.PrivateKey) (*secp256k1.PublicKey, *secp256k1.PrivateKey, error) {
	Y, err := HashToCurve(secret)
	if err != nil {
		return nil, nil, err
	}

	if r == nil {
		r, err = secp256k1.GeneratePrivateKey()
		if err != nil {
			return nil, nil, err
		}
	}

	var Yj, rGj, Bj secp256k1.JacobianPoint
	Y.AsJacobian(&Yj)
	rPub := r.PubKey()
	rPub.AsJacobian(&rGj)

	secp256k1.AddNonConst(&Yj, &rGj, &Bj)
	Bj.ToAffine()
	B_ := secp256k1.NewPublicKey(&Bj.X, &Bj.Y)

	return B_, r, nil
}

// SignMessage computes C' = k*B', the node's blinded signature share for
// the per-amount private key k.
func SignMessage(k *secp256k1.PrivateKey, B_ *secp256k1.PublicKey) *secp256k1.PublicKey {
	var Bj, Cj secp256k1.JacobianPoint
	B_.AsJacobian(&Bj)

	var scalar secp256k1.ModNScalar
	scalar.Set(&k.Key)
	secp256k1.ScalarMultNonConst(&scalar, &Bj, &Cj)
	Cj.ToAffine()

	return secp256k1.NewPublicKey(&Cj.X, &Cj.Y)
}

// UnblindSignature computes C = C' - r*K, recovering the mint's plain
// signature over the original secret.
func UnblindSignature(C_ *secp256k1.PublicKey, r *secp256k1.PrivateKey, K *secp256k1.PublicKey) *secp256k1.PublicKey {
	var Kj, rKj, Cj, Cj2 secp256k1.JacobianPoint
	K.AsJacobian(&Kj)

	var scalar secp256k1.ModNScalar
	scalar.Set(&r.Key)
	secp256k1.ScalarMultNonConst(&scalar, &Kj, &rKj)

	// negate rK and add: C = C' + (-rK)
	rKj.ToAffine()
	negY := new(secp256k1.FieldVal).NegateVal(&rKj.Y, 1).Normalize()
	rKj.Y = *negY

	C_.AsJacobian(&Cj)
	secp256k1.AddNonConst(&Cj, &rKj, &Cj2)
	Cj2.ToAffine()

	return secp256k1.NewPublicKey(&Cj2.X, &Cj2.Y)
}

func serializeDleqHash(points ...*secp256k1.PublicKey) [32]byte {
	h := sha256.New()
	for _, p := range points {
		h.Write(p.SerializeCompressed())
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// ProveDLEQ produces the mint-side DLEQ proof (e, s) binding K=k*G and
// C'=k*B' under a deterministic nonce r = SHA256(k_bytes || B'), so
// repeated signing of the same (k, B') is reproducible and auditable.
func ProveDLEQ(k *secp256k1.PrivateKey, K, B_, C_ *secp256k1.PublicKey) (e *secp256k1.ModNScalar, s *secp256k1.ModNScalar) {
	h := sha256.New()
	h.Write(k.Serialize())
	h.Write(B_.SerializeCompressed())
	nonceBytes := h.Sum(nil)

	var rScalar secp256k1.ModNScalar
	rScalar.SetByteSlice(nonceBytes)
	r := secp256k1.NewPrivateKey(&rScalar)

	var R1j, R2j, Bj secp256k1.JacobianPoint
	R1 := r.PubKey()
	R1.AsJacobian(&R1j)

	B_.AsJacobian(&Bj)
	secp256k1.ScalarMultNonConst(&rScalar, &Bj, &R2j)
	R2j.ToAffine()
	R2 := secp256k1.NewPublicKey(&R2j.X, &R2j.Y)

	eHash := serializeDleqHash(R1, R2, K, C_)
	var eScalar secp256k1.ModNScalar
	eScalar.SetBytes(&eHash)

	var sScalar secp256k1.ModNScalar
	sScalar.Set(&eScalar)
	sScalar.Mul(&k.Key)
	sScalar.Add(&rScalar)

	return &eScalar, &sScalar
}

// computeR1R2 recomputes R1 = s*G - e*K and R2 = s*B' - e*C', the
// candidate "nonce commitments" a correct (e,s) must reproduce.
func computeR1R2(e, s *secp256k1.ModNScalar, K, B_, C_ *secp256k1.PublicKey) (*secp256k1.PublicKey, *secp256k1.PublicKey) {
	sG := secp256k1.NewPrivateKey(s).PubKey()

	var Kj, eKj, sGj, R1j secp256k1.JacobianPoint
	K.AsJacobian(&Kj)
	secp256k1.ScalarMultNonConst(e, &Kj, &eKj)
	eKj.ToAffine()
	negY := new(secp256k1.FieldVal).NegateVal(&eKj.Y, 1).Normalize()
	eKj.Y = *negY

	sG.AsJacobian(&sGj)
	secp256k1.AddNonConst(&sGj, &eKj, &R1j)
	R1j.ToAffine()
	R1 := secp256k1.NewPublicKey(&R1j.X, &R1j.Y)

	var Bj, sBj, Cj, eCj, R2j secp256k1.JacobianPoint
	B_.AsJacobian(&Bj)
	secp256k1.ScalarMultNonConst(s, &Bj, &sBj)

	C_.AsJacobian(&Cj)
	secp256k1.ScalarMultNonConst(e, &Cj, &eCj)
	eCj.ToAffine()
	negY2 := new(secp256k1.FieldVal).NegateVal(&eCj.Y, 1).Normalize()
	eCj.Y = *negY2

	sBj.ToAffine()
	secp256k1.AddNonConst(&sBj, &eCj, &R2j)
	R2j.ToAffine()
	R2 := secp256k1.NewPublicKey(&R2j.X, &R2j.Y)

	return R1, R2
}

// VerifyDLEQAlice is the holder-of-r verification: the party that made
// the original BlindedMessage checks the mint's proof without needing
// the secret.
func VerifyDLEQAlice(e, s *secp256k1.ModNScalar, K, B_, C_ *secp256k1.PublicKey) bool {
	R1, R2 := computeR1R2(e, s, K, B_, C_)
	gotHash := serializeDleqHash(R1, R2, K, C_)

	var gotScalar secp256k1.ModNScalar
	gotScalar.SetBytes(&gotHash)
	return gotScalar.Equals(e)
}

// VerifyDLEQCarol is the recipient verification: given only (secret, r,
// C), reconstruct B' and C' then run Alice's check. Used when a proof
// changes hands and the new holder wants to confirm the signature
// without re-querying the node.
func VerifyDLEQCarol(e, s *secp256k1.ModNScalar, secret []byte, r *secp256k1.PrivateKey, C, K *secp256k1.PublicKey) bool {
	B_, _, err := BlindMessage(secret, r)
	if err != nil {
		return false
	}

	var Kj, rKj, Cj, C_j secp256k1.JacobianPoint
	K.AsJacobian(&Kj)
	var rScalar secp256k1.ModNScalar
	rScalar.Set(&r.Key)
	secp256k1.ScalarMultNonConst(&rScalar, &Kj, &rKj)
	rKj.ToAffine()

	C.AsJacobian(&Cj)
	secp256k1.AddNonConst(&Cj, &rKj, &C_j)
	C_j.ToAffine()
	C_ := secp256k1.NewPublicKey(&C_j.X, &C_j.Y)

	return VerifyDLEQAlice(e, s, K, B_, C_)
}

func hexScalar(s *secp256k1.ModNScalar) string {
	b := s.Bytes()
	return hex.EncodeToString(b[:])
}

func parseScalar(s string) (*secp256k1.ModNScalar, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, err
	}
	var scalar secp256k1.ModNScalar
	overflow := scalar.SetByteSlice(b)
	if overflow {
		return nil, cashu.ErrInvalidPoint
	}
	return &scalar, nil
}
