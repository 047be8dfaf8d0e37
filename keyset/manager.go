// Package keyset is the node-side keyset manager: it maintains keyset
// metadata and an in-memory (KeysetId -> per-amount pubkeys) cache,
// serving lookups off the hot path of storage, and drives keyset
// rotation through the signer.
package keyset

import (
	"context"
	"sync"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/starknuts/starknuts/cashu"
	"github.com/starknuts/starknuts/signer"
)

// StoredKeyset is the persisted row shape a Store implementation keeps,
// mirroring the teacher's DBKeyset.
type StoredKeyset struct {
	Id                cashu.KeysetId
	Unit              cashu.Unit
	Active            bool
	MaxOrder          int
	DerivationPathIdx uint32
	InputFeePpk       uint
}

// Store is the narrow persistence slice the keyset manager needs; a
// node.Storage implementation satisfies it structurally.
type Store interface {
	SaveKeyset(ctx context.Context, ks StoredKeyset) error
	GetKeysets(ctx context.Context) ([]StoredKeyset, error)
	UpdateKeysetActive(ctx context.Context, id cashu.KeysetId, active bool) error
}

// Info is the manager's public view of one keyset: metadata plus its
// per-amount public keys, the shape returned by Keys/GetKeysetInfo and
// serialized for the node's Keys/Keysets operations.
type Info struct {
	Id       cashu.KeysetId
	Unit     cashu.Unit
	Active   bool
	MaxOrder int
	Keys     map[cashu.Amount]*secp256k1.PublicKey
}

// Manager caches keyset metadata and keys. Reads take the read lock;
// InitFirstKeysets/Rotate take the write lock, matching the reader-writer
// discipline required of the keyset cache in the concurrency model (§5).
type Manager struct {
	mu     sync.RWMutex
	cache  map[cashu.KeysetId]Info
	active map[cashu.Unit]cashu.KeysetId

	signer signer.Signer
	store  Store
}

func NewManager(s signer.Signer, store Store) *Manager {
	return &Manager{
		cache:  make(map[cashu.KeysetId]Info),
		active: make(map[cashu.Unit]cashu.KeysetId),
		signer: s,
		store:  store,
	}
}

// LoadFromStore hydrates the cache from persisted keyset rows at node
// startup, re-declaring each from the signer to recover its keys (the
// signer is the source of truth for key material; storage only records
// which keysets exist and which is active).
func (m *Manager) LoadFromStore(ctx context.Context) error {
	rows, err := m.store.GetKeysets(ctx)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range rows {
		declared, err := m.signer.DeclareKeyset(ctx, row.Unit, row.DerivationPathIdx, row.MaxOrder)
		if err != nil {
			return err
		}
		if declared.Id != row.Id {
			return cashu.ErrKeysetIdMismatch
		}
		m.cache[row.Id] = Info{Id: row.Id, Unit: row.Unit, Active: row.Active, MaxOrder: row.MaxOrder, Keys: declared.Keys}
		if row.Active {
			m.active[row.Unit] = row.Id
		}
	}
	return nil
}

// InitFirstKeysets declares and persists the first active keyset for
// each unit that does not already have one.
func (m *Manager) InitFirstKeysets(ctx context.Context, units []cashu.Unit, maxOrder int) error {
	for _, unit := range units {
		m.mu.RLock()
		_, exists := m.active[unit]
		m.mu.RUnlock()
		if exists {
			continue
		}

		declared, err := m.signer.DeclareKeyset(ctx, unit, 0, maxOrder)
		if err != nil {
			return err
		}
		recomputed, err := cashu.DeriveKeysetId(declared.Keys)
		if err != nil {
			return err
		}
		if recomputed != declared.Id {
			return cashu.ErrKeysetIdMismatch
		}

		row := StoredKeyset{Id: declared.Id, Unit: unit, Active: true, MaxOrder: maxOrder, DerivationPathIdx: 0}
		if err := m.store.SaveKeyset(ctx, row); err != nil {
			return err
		}

		m.mu.Lock()
		m.cache[declared.Id] = Info{Id: declared.Id, Unit: unit, Active: true, MaxOrder: maxOrder, Keys: declared.Keys}
		m.active[unit] = declared.Id
		m.mu.Unlock()
	}
	return nil
}

// Rotate declares a new keyset at index+1 for every currently active
// keyset, activates it, and deactivates the old one. Saving the new row
// and deactivating the old are two separate store calls, made before the
// write lock is taken for the cache update; a crash between the two
// leaves two active keysets for a unit, of which LoadFromStore keeps the
// last active row it reads.
func (m *Manager) Rotate(ctx context.Context) error {
	m.mu.RLock()
	toRotate := make([]Info, 0, len(m.active))
	for _, id := range m.active {
		toRotate = append(toRotate, m.cache[id])
	}
	m.mu.RUnlock()

	for _, old := range toRotate {
		nextIndex := m.nextIndex(old.Unit)

		declared, err := m.signer.DeclareKeyset(ctx, old.Unit, nextIndex, old.MaxOrder)
		if err != nil {
			return err
		}
		recomputed, err := cashu.DeriveKeysetId(declared.Keys)
		if err != nil {
			return err
		}
		if recomputed != declared.Id {
			return cashu.ErrKeysetIdMismatch
		}

		newRow := StoredKeyset{Id: declared.Id, Unit: old.Unit, Active: true, MaxOrder: old.MaxOrder, DerivationPathIdx: nextIndex}
		if err := m.store.SaveKeyset(ctx, newRow); err != nil {
			return err
		}
		if err := m.store.UpdateKeysetActive(ctx, old.Id, false); err != nil {
			return err
		}

		m.mu.Lock()
		m.cache[declared.Id] = Info{Id: declared.Id, Unit: old.Unit, Active: true, MaxOrder: old.MaxOrder, Keys: declared.Keys}
		old.Active = false
		m.cache[old.Id] = old
		m.active[old.Unit] = declared.Id
		m.mu.Unlock()
	}
	return nil
}

// nextIndex counts how many keysets this unit has ever had, which equals
// the next free derivation index for a strictly linear rotation history
// (Info does not carry DerivationPathIdx, only StoredKeyset does).
func (m *Manager) nextIndex(unit cashu.Unit) uint32 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var count uint32
	for _, info := range m.cache {
		if info.Unit == unit {
			count++
		}
	}
	return count
}

// Keys returns the cached view of one keyset, or of every keyset when id
// is nil.
func (m *Manager) Keys(id *cashu.KeysetId) []Info {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if id != nil {
		if info, ok := m.cache[*id]; ok {
			return []Info{info}
		}
		return nil
	}

	infos := make([]Info, 0, len(m.cache))
	for _, info := range m.cache {
		infos = append(infos, info)
	}
	return infos
}

// GetKeysetInfo is a cache-first lookup; a miss is treated as
// ErrUnknownKeyset since the manager is expected to be fully hydrated at
// startup and after every InitFirstKeysets/Rotate call.
func (m *Manager) GetKeysetInfo(id cashu.KeysetId) (Info, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	info, ok := m.cache[id]
	if !ok {
		return Info{}, cashu.ErrUnknownKeyset
	}
	return info, nil
}

// ActiveKeysetFor returns the currently active keyset id for a unit.
func (m *Manager) ActiveKeysetFor(unit cashu.Unit) (cashu.KeysetId, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.active[unit]
	return id, ok
}
