package crypto

import (
	"encoding/binary"
	"encoding/hex"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/starknuts/starknuts/cashu"
)

// restorePurpose and restoreCoinType fix the wallet-restore derivation
// path to m/129372'/0'/keyset_int'/counter'/{0,1}, matching the spec's
// "BIP-32-like derivation" and the teacher's NUT-13 implementation.
const (
	restorePurpose  = 129372
	restoreCoinType = 0
)

// DeriveKeysetPath derives m/129372'/0'/keyset_k_int' from the wallet's
// master key, where keyset_k_int folds the keyset id's 8 bytes down to
// an index that fits a hardened BIP-32 child.
func DeriveKeysetPath(master *hdkeychain.ExtendedKey, id cashu.KeysetId) (*hdkeychain.ExtendedKey, error) {
	idInt := binary.BigEndian.Uint64(id[:]) % (1<<31 - 1)

	purpose, err := master.Derive(hdkeychain.HardenedKeyStart + restorePurpose)
	if err != nil {
		return nil, err
	}
	coinType, err := purpose.Derive(hdkeychain.HardenedKeyStart + restoreCoinType)
	if err != nil {
		return nil, err
	}
	return coinType.Derive(hdkeychain.HardenedKeyStart + uint32(idInt))
}

// DeriveBlindingFactor derives the counter'th blinding scalar under a
// keyset path: m/.../counter'/1.
func DeriveBlindingFactor(keysetPath *hdkeychain.ExtendedKey, counter uint32) (*secp256k1.PrivateKey, error) {
	counterPath, err := keysetPath.Derive(hdkeychain.HardenedKeyStart + counter)
	if err != nil {
		return nil, err
	}
	rPath, err := counterPath.Derive(1)
	if err != nil {
		return nil, err
	}
	return rPath.ECPrivKey()
}

// DeriveSecret derives the counter'th secret under a keyset path:
// m/.../counter'/0, rendered as the hex encoding of the derived private
// key's scalar bytes so it is a stable UTF-8 Secret.
func DeriveSecret(keysetPath *hdkeychain.ExtendedKey, counter uint32) (cashu.Secret, error) {
	counterPath, err := keysetPath.Derive(hdkeychain.HardenedKeyStart + counter)
	if err != nil {
		return "", err
	}
	secretPath, err := counterPath.Derive(0)
	if err != nil {
		return "", err
	}
	secretKey, err := secretPath.ECPrivKey()
	if err != nil {
		return "", err
	}
	return cashu.Secret(hex.EncodeToString(secretKey.Serialize())), nil
}

// PreMint is one not-yet-submitted output of a mint/swap request: the
// deterministically derived secret and blinding factor, and the
// resulting blinded point, kept together so the wallet can unblind the
// matching signature once it comes back.
type PreMint struct {
	Amount cashu.Amount
	Secret cashu.Secret
	R      *secp256k1.PrivateKey
	B_     *secp256k1.PublicKey
}

// DerivePreMints derives n consecutive PreMints starting at counter for
// a keyset, the core of both ordinary output generation and restore
// batch generation (the latter ignores Amount and reuses amount=0).
func DerivePreMints(master *hdkeychain.ExtendedKey, id cashu.KeysetId, startCounter uint32, amounts []cashu.Amount) ([]PreMint, error) {
	path, err := DeriveKeysetPath(master, id)
	if err != nil {
		return nil, err
	}

	preMints := make([]PreMint, len(amounts))
	for i, amount := range amounts {
		counter := startCounter + uint32(i)

		secret, err := DeriveSecret(path, counter)
		if err != nil {
			return nil, err
		}
		r, err := DeriveBlindingFactor(path, counter)
		if err != nil {
			return nil, err
		}
		B_, _, err := BlindMessage([]byte(secret), r)
		if err != nil {
			return nil, err
		}

		preMints[i] = PreMint{Amount: amount, Secret: secret, R: r, B_: B_}
	}
	return preMints, nil
}
