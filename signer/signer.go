// Package signer defines the RPC contract the node speaks to its signer
// (declare keyset, sign blinded messages, verify proofs, get root
// pubkey) and ships an in-process default implementation so the module
// is runnable without a separate signer process.
package signer

import (
	"context"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/starknuts/starknuts/cashu"
)

// DeclaredKeyset is the signer's answer to DeclareKeyset: the keyset id
// it computed plus the per-amount public keys, for the caller to verify
// against its own recomputation (KeysetIdMismatch guard in §4.2).
type DeclaredKeyset struct {
	Id   cashu.KeysetId
	Keys map[cashu.Amount]*secp256k1.PublicKey
}

// Signer is the external collaborator boundary described in spec §6.2.
// A real deployment speaks this over RPC to a process holding the root
// key; LocalSigner implements it in-process for tests and single-binary
// deployments.
type Signer interface {
	GetRootPubKey(ctx context.Context) (*secp256k1.PublicKey, error)
	DeclareKeyset(ctx context.Context, unit cashu.Unit, index uint32, maxOrder int) (DeclaredKeyset, error)
	Sign(ctx context.Context, messages cashu.BlindedMessages) (cashu.BlindSignatures, error)
	VerifyProofs(ctx context.Context, proofs cashu.Proofs) error
}
