package keyset

import (
	"context"
	"sync"
	"testing"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/starknuts/starknuts/cashu"
	"github.com/starknuts/starknuts/signer"
	"github.com/tyler-smith/go-bip39"
)

type memStore struct {
	mu   sync.Mutex
	rows map[cashu.KeysetId]StoredKeyset
}

func newMemStore() *memStore {
	return &memStore{rows: make(map[cashu.KeysetId]StoredKeyset)}
}

func (s *memStore) SaveKeyset(ctx context.Context, ks StoredKeyset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[ks.Id] = ks
	return nil
}

func (s *memStore) GetKeysets(ctx context.Context) ([]StoredKeyset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]StoredKeyset, 0, len(s.rows))
	for _, row := range s.rows {
		out = append(out, row)
	}
	return out, nil
}

func (s *memStore) UpdateKeysetActive(ctx context.Context, id cashu.KeysetId, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[id]
	if !ok {
		return cashu.ErrUnknownKeyset
	}
	row.Active = active
	s.rows[id] = row
	return nil
}

func testManager(t *testing.T) *Manager {
	t.Helper()
	entropy, err := bip39.NewEntropy(128)
	if err != nil {
		t.Fatal(err)
	}
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		t.Fatal(err)
	}
	seed := bip39.NewSeed(mnemonic, "")
	master, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		t.Fatal(err)
	}
	s := signer.NewLocalSigner(master)
	return NewManager(s, newMemStore())
}

func TestInitFirstKeysetsIsIdempotent(t *testing.T) {
	ctx := context.Background()
	m := testManager(t)

	if err := m.InitFirstKeysets(ctx, []cashu.Unit{cashu.MilliStrk}, 6); err != nil {
		t.Fatal(err)
	}
	firstId, ok := m.ActiveKeysetFor(cashu.MilliStrk)
	if !ok {
		t.Fatal("expected an active keyset after init")
	}

	if err := m.InitFirstKeysets(ctx, []cashu.Unit{cashu.MilliStrk}, 6); err != nil {
		t.Fatal(err)
	}
	secondId, _ := m.ActiveKeysetFor(cashu.MilliStrk)
	if firstId != secondId {
		t.Fatal("InitFirstKeysets should not create a second active keyset for the same unit")
	}
}

func TestRotateDeactivatesOldKeyset(t *testing.T) {
	ctx := context.Background()
	m := testManager(t)

	if err := m.InitFirstKeysets(ctx, []cashu.Unit{cashu.MilliStrk}, 6); err != nil {
		t.Fatal(err)
	}
	oldId, _ := m.ActiveKeysetFor(cashu.MilliStrk)

	if err := m.Rotate(ctx); err != nil {
		t.Fatal(err)
	}
	newId, _ := m.ActiveKeysetFor(cashu.MilliStrk)
	if newId == oldId {
		t.Fatal("rotate should activate a new keyset")
	}

	oldInfo, err := m.GetKeysetInfo(oldId)
	if err != nil {
		t.Fatal(err)
	}
	if oldInfo.Active {
		t.Fatal("old keyset should be deactivated after rotation")
	}

	newInfo, err := m.GetKeysetInfo(newId)
	if err != nil {
		t.Fatal(err)
	}
	if !newInfo.Active {
		t.Fatal("new keyset should be active after rotation")
	}
}
