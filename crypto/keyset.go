package crypto

import (
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/starknuts/starknuts/cashu"
)

// MaxOrderDefault bounds the largest power-of-two denomination a freshly
// declared keyset issues (amount < 2^MaxOrderDefault), matching the
// teacher's MAX_ORDER.
const MaxOrderDefault = 32

// KeyPair is one per-amount signing key of a keyset.
type KeyPair struct {
	Amount     cashu.Amount
	PrivateKey *secp256k1.PrivateKey
	PublicKey  *secp256k1.PublicKey
}

// Keyset is the signer's full view of a keyset: every per-amount keypair
// plus the metadata the keyset manager persists and exposes.
type Keyset struct {
	Id                cashu.KeysetId
	Unit              cashu.Unit
	Active            bool
	MaxOrder          int
	DerivationPathIdx uint32
	Keys              map[cashu.Amount]KeyPair
}

// PublicKeys projects a Keyset to the (amount -> pubkey) map wallets and
// the keyset id derivation need.
func (ks Keyset) PublicKeys() map[cashu.Amount]*secp256k1.PublicKey {
	pubs := make(map[cashu.Amount]*secp256k1.PublicKey, len(ks.Keys))
	for amt, kp := range ks.Keys {
		pubs[amt] = kp.PublicKey
	}
	return pubs
}

// deriveKeysetMasterPath derives m/0'/0'/index' from the root extended
// key, the teacher's path for generating a fresh keyset's signing keys
// (distinct from NUT-13's m/129372'/0'/keyset_id' wallet-restore path).
func deriveKeysetMasterPath(master *hdkeychain.ExtendedKey, index uint32) (*hdkeychain.ExtendedKey, error) {
	purpose, err := master.Derive(hdkeychain.HardenedKeyStart + 0)
	if err != nil {
		return nil, err
	}
	coinType, err := purpose.Derive(hdkeychain.HardenedKeyStart + 0)
	if err != nil {
		return nil, err
	}
	return coinType.Derive(hdkeychain.HardenedKeyStart + index)
}

// GenerateKeyset derives max_order keypairs for one (unit, index) pair
// from a BIP-32 master key, then computes the resulting keyset id. This
// is the signer-side half of init_first_keysets/rotate: the keyset
// manager calls it (directly, or over the signer RPC contract) and
// verifies the returned id against DeriveKeysetId itself.
func GenerateKeyset(master *hdkeychain.ExtendedKey, unit cashu.Unit, index uint32, maxOrder int) (Keyset, error) {
	path, err := deriveKeysetMasterPath(master, index)
	if err != nil {
		return Keyset{}, err
	}

	keys := make(map[cashu.Amount]KeyPair, maxOrder)
	for i := 0; i < maxOrder; i++ {
		child, err := path.Derive(uint32(i))
		if err != nil {
			return Keyset{}, err
		}
		priv, err := child.ECPrivKey()
		if err != nil {
			return Keyset{}, err
		}
		amount := cashu.Amount(1) << uint(i)
		keys[amount] = KeyPair{Amount: amount, PrivateKey: priv, PublicKey: priv.PubKey()}
	}

	id, err := cashu.DeriveKeysetId(publicKeysOf(keys))
	if err != nil {
		return Keyset{}, err
	}

	return Keyset{
		Id:                id,
		Unit:              unit,
		Active:            true,
		MaxOrder:          maxOrder,
		DerivationPathIdx: index,
		Keys:              keys,
	}, nil
}

func publicKeysOf(keys map[cashu.Amount]KeyPair) map[cashu.Amount]*secp256k1.PublicKey {
	pubs := make(map[cashu.Amount]*secp256k1.PublicKey, len(keys))
	for amt, kp := range keys {
		pubs[amt] = kp.PublicKey
	}
	return pubs
}
