// Package storage defines the node's persistence contract: keysets, the
// spent-proof set, mint/melt quotes and their payment-event logs.
package storage

import (
	"context"

	"github.com/starknuts/starknuts/cashu"
	"github.com/starknuts/starknuts/keyset"
	"github.com/starknuts/starknuts/liquidity"
)

// DBProof is a persisted spent-set row, keyed by Y.
type DBProof struct {
	Y       string
	Amount  cashu.Amount
	Id      cashu.KeysetId
	Secret  cashu.Secret
	C       string
	QuoteId string // set only for rows in the pending table
}

// MintQuote is the node's persisted mint-quote row.
type MintQuote struct {
	Id        string              `json:"quote"`
	Method    cashu.Method        `json:"method"`
	Unit      cashu.Unit          `json:"unit"`
	Amount    cashu.Amount        `json:"amount"`
	Request   string              `json:"request"`
	InvoiceId liquidity.InvoiceId `json:"-"`
	State     cashu.QuoteState    `json:"state"`
	Expiry    int64               `json:"expiry"`
}

// MeltQuote is the node's persisted melt-quote row.
type MeltQuote struct {
	Id          string              `json:"quote"`
	Method      cashu.Method        `json:"method"`
	Unit        cashu.Unit          `json:"unit"`
	Amount      cashu.Amount        `json:"amount"`
	Fee         cashu.Amount        `json:"fee"`
	Request     string              `json:"-"`
	InvoiceId   liquidity.InvoiceId `json:"-"`
	State       cashu.QuoteState    `json:"state"`
	Expiry      int64               `json:"expiry"`
	TransferIds []string            `json:"transfer_ids,omitempty"`
}

// NodeDB is the full persistence contract. keyset.Store is embedded so a
// NodeDB implementation is automatically usable as the keyset manager's
// Store.
type NodeDB interface {
	keyset.Store

	SaveSeed(ctx context.Context, seed []byte) error
	GetSeed(ctx context.Context) ([]byte, error)

	// SaveProofs inserts spent-set rows; implementations must make this
	// atomic and must surface a unique-constraint violation on Y as a
	// *cashu.ProofError with ReasonAlreadySpent at the caller (the node's proof
	// engine checks membership first, but concurrent transactions race
	// through this call as the ultimate concurrency barrier, §5).
	SaveProofs(ctx context.Context, proofs cashu.Proofs) error
	GetSpentYs(ctx context.Context, ys []string) (map[string]bool, error)

	AddPendingProofs(ctx context.Context, proofs cashu.Proofs, quoteId string) error
	GetPendingProofsByQuote(ctx context.Context, quoteId string) ([]DBProof, error)
	GetPendingYs(ctx context.Context, ys []string) (map[string]bool, error)
	RemovePendingProofs(ctx context.Context, ys []string) error

	// SaveIssuedSignatures records every blind signature a mint/swap
	// produced, keyed by the blinded secret (B_) hex it was signed
	// under. This is kept separately from the mint-quote lifecycle
	// bookkeeping (§4.4 step 7 is explicit that outputs play no part in
	// quote state) purely to support the Restore operation (§4.11),
	// which needs to recognize a previously-issued blinded message when
	// a wallet resubmits it after losing its local database.
	SaveIssuedSignatures(ctx context.Context, outputs cashu.BlindedMessages, sigs cashu.BlindSignatures) error
	GetIssuedSignatures(ctx context.Context, blindedSecrets []string) (map[string]cashu.BlindSignature, error)

	SaveMintQuote(ctx context.Context, q MintQuote) error
	GetMintQuote(ctx context.Context, id string) (MintQuote, error)
	GetMintQuoteByInvoiceId(ctx context.Context, invoiceId liquidity.InvoiceId) (MintQuote, error)
	UpdateMintQuoteState(ctx context.Context, id string, state cashu.QuoteState) error

	SaveMeltQuote(ctx context.Context, q MeltQuote) error
	GetMeltQuote(ctx context.Context, id string) (MeltQuote, error)
	UpdateMeltQuote(ctx context.Context, id string, state cashu.QuoteState, transferIds []string) error

	// AppendPaymentEvent records a (block, tx, index)-keyed event once;
	// it returns isNew=false if the natural key was already present so
	// the quote engine's aggregation never double-counts a replayed
	// event.
	AppendPaymentEvent(ctx context.Context, invoiceId liquidity.InvoiceId, event liquidity.PaymentEvent) (isNew bool, err error)
	SumPaymentEvents(ctx context.Context, invoiceId liquidity.InvoiceId) (cashu.Amount, error)

	Close() error
}
