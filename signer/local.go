package signer

import (
	"context"
	"fmt"
	"sync"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/starknuts/starknuts/cashu"
	"github.com/starknuts/starknuts/crypto"
)

// LocalSigner holds the root extended private key and every keyset ever
// declared, signing and verifying in-process. Reads (Sign, VerifyProofs)
// take the read lock; DeclareKeyset takes the write lock, mirroring the
// keyset-cache reader-writer discipline described in the concurrency
// model (§5).
type LocalSigner struct {
	mu      sync.RWMutex
	master  *hdkeychain.ExtendedKey
	keysets map[cashu.KeysetId]crypto.Keyset
}

func NewLocalSigner(master *hdkeychain.ExtendedKey) *LocalSigner {
	return &LocalSigner{
		master:  master,
		keysets: make(map[cashu.KeysetId]crypto.Keyset),
	}
}

func (s *LocalSigner) GetRootPubKey(ctx context.Context) (*secp256k1.PublicKey, error) {
	priv, err := s.master.ECPrivKey()
	if err != nil {
		return nil, err
	}
	return priv.PubKey(), nil
}

func (s *LocalSigner) DeclareKeyset(ctx context.Context, unit cashu.Unit, index uint32, maxOrder int) (DeclaredKeyset, error) {
	ks, err := crypto.GenerateKeyset(s.master, unit, index, maxOrder)
	if err != nil {
		return DeclaredKeyset{}, err
	}

	s.mu.Lock()
	s.keysets[ks.Id] = ks
	s.mu.Unlock()

	return DeclaredKeyset{Id: ks.Id, Keys: ks.PublicKeys()}, nil
}

func (s *LocalSigner) keyFor(id cashu.KeysetId, amount cashu.Amount) (crypto.KeyPair, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ks, ok := s.keysets[id]
	if !ok {
		return crypto.KeyPair{}, cashu.ErrUnknownKeyset
	}
	kp, ok := ks.Keys[amount]
	if !ok {
		return crypto.KeyPair{}, cashu.ErrUnknownKeyForAmount
	}
	return kp, nil
}

func (s *LocalSigner) Sign(ctx context.Context, messages cashu.BlindedMessages) (cashu.BlindSignatures, error) {
	sigs := make(cashu.BlindSignatures, len(messages))
	for i, msg := range messages {
		kp, err := s.keyFor(msg.Id, msg.Amount)
		if err != nil {
			return nil, err
		}

		B_, err := cashu.ParsePublicKeyHex(msg.B_)
		if err != nil {
			return nil, err
		}

		C_, dleq := crypto.SignBlindedMessage(kp.PrivateKey, B_.PublicKey)
		sigs[i] = cashu.BlindSignature{
			Amount: msg.Amount,
			Id:     msg.Id,
			C_:     cashu.NewPublicKey(C_).Hex(),
			DLEQ:   dleq,
		}
	}
	return sigs, nil
}

// VerifyProofs checks each proof's signature under the per-amount key of
// its keyset, returning a ProofError naming every index that failed
// cryptographic verification (the per-index BadRequest contract of
// §6.2/§4.6). Unknown keysets fail the whole call since no key exists to
// check against.
func (s *LocalSigner) VerifyProofs(ctx context.Context, proofs cashu.Proofs) error {
	var violations []cashu.FieldViolation

	for i, proof := range proofs {
		kp, err := s.keyFor(proof.Id, proof.Amount)
		if err != nil {
			return err
		}

		Y, err := crypto.HashToCurve([]byte(proof.Secret))
		if err != nil {
			violations = append(violations, cashu.FieldViolation{
				Path: fmt.Sprintf("inputs[%d]", i), Reason: cashu.ReasonHashOnCurve,
			})
			continue
		}

		expected := crypto.SignMessage(kp.PrivateKey, Y)
		C, err := cashu.ParsePublicKeyHex(proof.C)
		if err != nil || !expected.IsEqual(C.PublicKey) {
			violations = append(violations, cashu.FieldViolation{
				Path: fmt.Sprintf("inputs[%d]", i), Reason: cashu.ReasonFailedCryptoVerify,
			})
		}
	}

	if len(violations) > 0 {
		return cashu.BuildProofError("one or more proofs failed cryptographic verification", violations...)
	}
	return nil
}
