// Package memory is an in-memory NodeDB used by node package tests and
// by single-process deployments that do not need durability across
// restarts.
package memory

import (
	"context"
	"encoding/hex"
	"sync"

	"github.com/starknuts/starknuts/cashu"
	"github.com/starknuts/starknuts/crypto"
	"github.com/starknuts/starknuts/keyset"
	"github.com/starknuts/starknuts/liquidity"
	"github.com/starknuts/starknuts/node/storage"
)

type Store struct {
	mu sync.Mutex

	seed []byte

	keysets map[cashu.KeysetId]keyset.StoredKeyset

	spent   map[string]storage.DBProof
	pending map[string]storage.DBProof

	mintQuotes          map[string]storage.MintQuote
	mintQuotesByInvoice map[liquidity.InvoiceId]string
	meltQuotes          map[string]storage.MeltQuote

	paymentEventKeys map[string]bool
	paymentSums      map[liquidity.InvoiceId]cashu.Amount

	issued map[string]cashu.BlindSignature
}

func New() *Store {
	return &Store{
		keysets:             make(map[cashu.KeysetId]keyset.StoredKeyset),
		spent:               make(map[string]storage.DBProof),
		pending:             make(map[string]storage.DBProof),
		mintQuotes:          make(map[string]storage.MintQuote),
		mintQuotesByInvoice: make(map[liquidity.InvoiceId]string),
		meltQuotes:          make(map[string]storage.MeltQuote),
		paymentEventKeys:    make(map[string]bool),
		paymentSums:         make(map[liquidity.InvoiceId]cashu.Amount),
		issued:              make(map[string]cashu.BlindSignature),
	}
}

func (s *Store) SaveSeed(ctx context.Context, seed []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seed = append([]byte(nil), seed...)
	return nil
}

func (s *Store) GetSeed(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.seed...), nil
}

func (s *Store) SaveKeyset(ctx context.Context, ks keyset.StoredKeyset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keysets[ks.Id] = ks
	return nil
}

func (s *Store) GetKeysets(ctx context.Context) ([]keyset.StoredKeyset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]keyset.StoredKeyset, 0, len(s.keysets))
	for _, ks := range s.keysets {
		out = append(out, ks)
	}
	return out, nil
}

func (s *Store) UpdateKeysetActive(ctx context.Context, id cashu.KeysetId, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ks, ok := s.keysets[id]
	if !ok {
		return cashu.ErrUnknownKeyset
	}
	ks.Active = active
	s.keysets[id] = ks
	return nil
}

// SaveProofs is the spent-set's only insertion path and therefore the
// transaction boundary that serializes concurrent swap/mint/melt calls
// touching the same Y (§5); a Y already present means a concurrent
// transaction won the race.
func (s *Store) SaveProofs(ctx context.Context, proofs cashu.Proofs) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range proofs {
		y, err := yOf(p)
		if err != nil {
			return err
		}
		if _, exists := s.spent[y]; exists {
			return cashu.BuildProofError("already spent", cashu.FieldViolation{Path: "inputs[]", Reason: cashu.ReasonAlreadySpent})
		}
	}
	for _, p := range proofs {
		y, _ := yOf(p)
		s.spent[y] = storage.DBProof{Y: y, Amount: p.Amount, Id: p.Id, Secret: p.Secret, C: p.C}
	}
	return nil
}

func (s *Store) GetSpentYs(ctx context.Context, ys []string) (map[string]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]bool, len(ys))
	for _, y := range ys {
		if _, ok := s.spent[y]; ok {
			out[y] = true
		}
	}
	return out, nil
}

func (s *Store) AddPendingProofs(ctx context.Context, proofs cashu.Proofs, quoteId string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range proofs {
		y, err := yOf(p)
		if err != nil {
			return err
		}
		s.pending[y] = storage.DBProof{Y: y, Amount: p.Amount, Id: p.Id, Secret: p.Secret, C: p.C, QuoteId: quoteId}
	}
	return nil
}

func (s *Store) GetPendingProofsByQuote(ctx context.Context, quoteId string) ([]storage.DBProof, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []storage.DBProof
	for _, p := range s.pending {
		if p.QuoteId == quoteId {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *Store) GetPendingYs(ctx context.Context, ys []string) (map[string]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]bool, len(ys))
	for _, y := range ys {
		if _, ok := s.pending[y]; ok {
			out[y] = true
		}
	}
	return out, nil
}

func (s *Store) RemovePendingProofs(ctx context.Context, ys []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, y := range ys {
		delete(s.pending, y)
	}
	return nil
}

func (s *Store) SaveMintQuote(ctx context.Context, q storage.MintQuote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mintQuotes[q.Id] = q
	s.mintQuotesByInvoice[q.InvoiceId] = q.Id
	return nil
}

func (s *Store) GetMintQuote(ctx context.Context, id string) (storage.MintQuote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.mintQuotes[id]
	if !ok {
		return storage.MintQuote{}, cashu.ErrQuoteNotFound
	}
	return q, nil
}

func (s *Store) GetMintQuoteByInvoiceId(ctx context.Context, invoiceId liquidity.InvoiceId) (storage.MintQuote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.mintQuotesByInvoice[invoiceId]
	if !ok {
		return storage.MintQuote{}, cashu.ErrQuoteNotFound
	}
	return s.mintQuotes[id], nil
}

func (s *Store) UpdateMintQuoteState(ctx context.Context, id string, state cashu.QuoteState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.mintQuotes[id]
	if !ok {
		return cashu.ErrQuoteNotFound
	}
	q.State = state
	s.mintQuotes[id] = q
	return nil
}

func (s *Store) SaveMeltQuote(ctx context.Context, q storage.MeltQuote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.meltQuotes[q.Id] = q
	return nil
}

func (s *Store) GetMeltQuote(ctx context.Context, id string) (storage.MeltQuote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.meltQuotes[id]
	if !ok {
		return storage.MeltQuote{}, cashu.ErrQuoteNotFound
	}
	return q, nil
}

func (s *Store) UpdateMeltQuote(ctx context.Context, id string, state cashu.QuoteState, transferIds []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.meltQuotes[id]
	if !ok {
		return cashu.ErrQuoteNotFound
	}
	q.State = state
	if transferIds != nil {
		q.TransferIds = transferIds
	}
	s.meltQuotes[id] = q
	return nil
}

func (s *Store) AppendPaymentEvent(ctx context.Context, invoiceId liquidity.InvoiceId, event liquidity.PaymentEvent) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := event.NaturalKey()
	if s.paymentEventKeys[key] {
		return false, nil
	}
	s.paymentEventKeys[key] = true
	sum, err := cashu.Amount(s.paymentSums[invoiceId]).Add(event.Amount)
	if err != nil {
		return false, err
	}
	s.paymentSums[invoiceId] = sum
	return true, nil
}

func (s *Store) SumPaymentEvents(ctx context.Context, invoiceId liquidity.InvoiceId) (cashu.Amount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paymentSums[invoiceId], nil
}

func (s *Store) SaveIssuedSignatures(ctx context.Context, outputs cashu.BlindedMessages, sigs cashu.BlindSignatures) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, out := range outputs {
		if i >= len(sigs) {
			break
		}
		s.issued[out.B_] = sigs[i]
	}
	return nil
}

func (s *Store) GetIssuedSignatures(ctx context.Context, blindedSecrets []string) (map[string]cashu.BlindSignature, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]cashu.BlindSignature, len(blindedSecrets))
	for _, b := range blindedSecrets {
		if sig, ok := s.issued[b]; ok {
			out[b] = sig
		}
	}
	return out, nil
}

func (s *Store) Close() error { return nil }

func yOf(p cashu.Proof) (string, error) {
	Y, err := crypto.HashToCurve([]byte(p.Secret))
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(Y.SerializeCompressed()), nil
}
