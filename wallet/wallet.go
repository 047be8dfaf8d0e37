// Package wallet implements the holder side of the protocol: proof
// selection and spending across one or more nodes, the mint- and
// melt-quote drivers, compact-wad import/export and seed-based
// restore. It speaks to a node purely through the client.NodeClient
// interface and to its own state through storage.WalletDB, mirroring
// the teacher's wallet.Wallet/storage.DB split.
package wallet

import (
	"fmt"
	"sync"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/tyler-smith/go-bip39"

	"github.com/starknuts/starknuts/cashu"
	"github.com/starknuts/starknuts/client"
	"github.com/starknuts/starknuts/wallet/storage"
)

// keysetInfo is the wallet's local cache of one node-published keyset:
// enough to validate amounts and unblind signatures without a network
// call per spend.
type keysetInfo struct {
	Id       cashu.KeysetId
	Unit     cashu.Unit
	Active   bool
	MaxOrder int
	Keys     map[cashu.Amount]*secp256k1.PublicKey
}

// Wallet bundles the collaborators a running wallet needs: its own
// persistence, its seed-derived master key, and one NodeClient per
// node it has been introduced to.
type Wallet struct {
	db     storage.WalletDB
	master *hdkeychain.ExtendedKey

	mu      sync.RWMutex
	nodes   map[string]client.NodeClient
	keysets map[string]map[cashu.KeysetId]keysetInfo // nodeURL -> id -> info
}

// NewWallet creates a fresh wallet: generates a 12-word mnemonic,
// persists it together with its BIP-39 seed, and builds the BIP-32
// master key from that seed (the per-keyset paths of §4.11 are derived
// from it later, by crypto.DerivePreMints).
func NewWallet(db storage.WalletDB) (*Wallet, error) {
	entropy, err := bip39.NewEntropy(128)
	if err != nil {
		return nil, err
	}
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return nil, err
	}
	seed := bip39.NewSeed(mnemonic, "")
	if err := db.SaveMnemonicSeed(mnemonic, seed); err != nil {
		return nil, err
	}
	return loadFromSeed(db, seed)
}

// LoadWallet restores a wallet from a previously persisted seed.
func LoadWallet(db storage.WalletDB) (*Wallet, error) {
	seed, err := db.GetSeed()
	if err != nil {
		return nil, fmt.Errorf("no wallet seed found: %v", err)
	}
	return loadFromSeed(db, seed)
}

func loadFromSeed(db storage.WalletDB, seed []byte) (*Wallet, error) {
	master, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		return nil, fmt.Errorf("error deriving master key: %v", err)
	}
	return &Wallet{
		db:      db,
		master:  master,
		nodes:   make(map[string]client.NodeClient),
		keysets: make(map[string]map[cashu.KeysetId]keysetInfo),
	}, nil
}

// Mnemonic returns the wallet's persisted seed phrase.
func (w *Wallet) Mnemonic() (string, error) {
	return w.db.GetMnemonic()
}

// AddNode introduces a node to the wallet under nodeURL and refreshes
// its keyset cache. preferredNodes in PlanSpending refer to this same
// nodeURL.
func (w *Wallet) AddNode(nodeURL string, c client.NodeClient) error {
	w.mu.Lock()
	w.nodes[nodeURL] = c
	w.mu.Unlock()
	return w.RefreshKeysets(nodeURL)
}

func (w *Wallet) clientFor(nodeURL string) (client.NodeClient, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	c, ok := w.nodes[nodeURL]
	if !ok {
		return nil, fmt.Errorf("unknown node %q", nodeURL)
	}
	return c, nil
}

// Balance sums the Unspent proofs held for nodeURL in unit.
func (w *Wallet) Balance(nodeURL string, unit cashu.Unit) (cashu.Amount, error) {
	proofs, err := w.db.GetProofsByNode(nodeURL)
	if err != nil {
		return 0, err
	}
	var total cashu.Amount
	for _, p := range proofs {
		if p.Status != storage.ProofUnspent {
			continue
		}
		ks, ok := w.keysetFor(nodeURL, p.Id)
		if !ok || ks.Unit != unit {
			continue
		}
		total, err = total.Add(p.Amount)
		if err != nil {
			return 0, err
		}
	}
	return total, nil
}
