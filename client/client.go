// Package client implements the wallet-side transport to a node: one
// function per node operation (§6.1), grounded on the teacher's
// wallet/client.go request/parse idiom but carried over HTTP+JSON
// instead of the teacher's Lightning-era REST shape.
package client

import (
	"github.com/starknuts/starknuts/cashu"
	"github.com/starknuts/starknuts/node"
	"github.com/starknuts/starknuts/node/storage"
)

// NodeClient is everything a wallet needs from a remote node. It is
// satisfied by *HTTPClient; tests substitute an in-process fake that
// wraps a *node.Node directly, skipping the network.
type NodeClient interface {
	GetNodeInfo() (node.Info, error)
	GetKeysets() ([]node.KeysetSummary, error)
	GetKeys(id *cashu.KeysetId) ([]KeysetKeys, error)

	PostMintQuote(req node.MintQuoteRequest) (storage.MintQuote, error)
	GetMintQuoteState(quoteId string) (storage.MintQuote, error)
	PostMint(req node.MintRequest) (cashu.BlindSignatures, error)

	PostMeltQuote(req node.MeltQuoteRequest) (storage.MeltQuote, error)
	GetMeltQuoteState(quoteId string) (storage.MeltQuote, error)
	PostMelt(req node.MeltRequest) (node.MeltResult, error)

	PostSwap(req node.SwapRequest) (cashu.BlindSignatures, error)
	PostCheckState(ys []string) ([]node.YState, error)
	PostRestore(req node.RestoreRequest) (node.RestoreResponse, error)
	PostAcknowledge(route string, requestHash uint64) error
}

// KeysetKeys is the wire shape of one keyset's full key material: a
// node never hands back a raw map[Amount]*secp256k1.PublicKey (it
// doesn't marshal), so the amount/pubkey pairs travel as a list.
type KeysetKeys struct {
	Id       cashu.KeysetId `json:"id"`
	Unit     cashu.Unit     `json:"unit"`
	Active   bool           `json:"active"`
	MaxOrder int            `json:"max_order"`
	Keys     []KeyEntry     `json:"keys"`
}

type KeyEntry struct {
	Amount cashu.Amount `json:"amount"`
	Pubkey string       `json:"pubkey"`
}
