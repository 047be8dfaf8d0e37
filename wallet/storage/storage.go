// Package storage defines the wallet's persistence contract: the seed,
// per-node keyset/counter state, owned proofs (unspent, reserved and
// pending) and the wallet's own view of mint/melt quotes.
package storage

import (
	"github.com/starknuts/starknuts/cashu"
	"github.com/starknuts/starknuts/crypto"
)

// ProofStatus is the wallet-local lifecycle a proof row moves through,
// per spec §4.8: Unspent is spendable, Reserved is earmarked for a
// pending wad, Pending is in flight on a network call.
type ProofStatus string

const (
	ProofUnspent  ProofStatus = "UNSPENT"
	ProofReserved ProofStatus = "RESERVED"
	ProofPending  ProofStatus = "PENDING"
)

// DBProof is a proof row as the wallet keeps it: the Proof itself plus
// the bookkeeping the selection algorithm and the state machine need.
type DBProof struct {
	cashu.Proof
	NodeURL     string
	Status      ProofStatus
	MeltQuoteId string // set only while Status == ProofPending
}

func (p DBProof) Y() (string, error) {
	Y, err := crypto.HashToCurve([]byte(p.Secret))
	if err != nil {
		return "", err
	}
	return cashu.NewPublicKey(Y).Hex(), nil
}

// KeysetCounter is the wallet's deterministic-derivation cursor for one
// (node, keyset) pair, advanced by one per derived PreMint (§4.11).
type KeysetCounter struct {
	NodeURL  string
	KeysetId cashu.KeysetId
	Unit     cashu.Unit
	Active   bool
	Counter  uint32
}

// MintQuote is the wallet's own record of a quote it asked a node to
// open, tracked independently of the node's copy so the wallet can
// resume polling and redemption after a restart.
type MintQuote struct {
	NodeURL string
	Id      string
	Method  cashu.Method
	Unit    cashu.Unit
	Amount  cashu.Amount
	Request string
	State   cashu.QuoteState
	Expiry  int64
}

// MeltQuote is the wallet's own record of a melt quote.
type MeltQuote struct {
	NodeURL     string
	Id          string
	Method      cashu.Method
	Unit        cashu.Unit
	Amount      cashu.Amount
	Fee         cashu.Amount
	Request     string
	State       cashu.QuoteState
	Expiry      int64
	TransferIds []string
}

// WalletDB is the full wallet persistence contract. A wallet instance
// owns exactly one WalletDB, shared across every node it talks to.
type WalletDB interface {
	SaveMnemonicSeed(mnemonic string, seed []byte) error
	GetSeed() ([]byte, error)
	GetMnemonic() (string, error)

	SaveProof(p DBProof) error
	GetProofsByNode(nodeURL string) ([]DBProof, error)
	GetProofByY(y string) (DBProof, error)
	SetProofStatus(y string, status ProofStatus, meltQuoteId string) error
	DeleteProof(y string) error

	SaveKeysetCounter(kc KeysetCounter) error
	GetKeysetCounter(nodeURL string, id cashu.KeysetId) (KeysetCounter, error)
	GetKeysetCountersByNode(nodeURL string) ([]KeysetCounter, error)
	IncrementKeysetCounter(nodeURL string, id cashu.KeysetId, n uint32) error

	SaveMintQuote(q MintQuote) error
	GetMintQuote(nodeURL, id string) (MintQuote, error)
	GetMintQuotesByNode(nodeURL string) ([]MintQuote, error)
	UpdateMintQuoteState(nodeURL, id string, state cashu.QuoteState) error
	DeleteMintQuote(nodeURL, id string) error

	SaveMeltQuote(q MeltQuote) error
	GetMeltQuote(nodeURL, id string) (MeltQuote, error)
	UpdateMeltQuote(nodeURL, id string, state cashu.QuoteState, transferIds []string) error

	// RedeemMintQuote commits, as one unit, the three side effects of
	// redeeming a mint quote (§4.9 redeem_quote): advancing the keyset
	// counter by counterAdvance, inserting the newly unblinded proofs as
	// Unspent, and marking the quote Issued. A backend that cannot offer
	// atomicity across these is not safe to use: a crash between steps
	// would either double-derive secrets or lose proofs the node already
	// signed.
	RedeemMintQuote(nodeURL string, id cashu.KeysetId, counterAdvance uint32, proofs []DBProof, quoteId string) error

	Close() error
}

// ErrNotFound is returned by point lookups (GetProofByY, GetMintQuote,
// GetKeysetCounter, ...) when no row matches.
var ErrNotFound = errNotFound{}

type errNotFound struct{}

func (errNotFound) Error() string { return "not found" }
