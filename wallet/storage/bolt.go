package storage

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	bolt "go.etcd.io/bbolt"

	"github.com/starknuts/starknuts/cashu"
)

const (
	seedBucket          = "seed"
	mnemonicKey         = "mnemonic"
	seedKey             = "seed"
	proofsBucket        = "proofs"
	keysetCounterBucket = "keyset_counters"
	mintQuotesBucket    = "mint_quotes"
	meltQuotesBucket    = "melt_quotes"
)

// BoltDB is the wallet's default WalletDB, grounded on the node's
// sqlite backend's "flat tables keyed by natural id" idiom but using
// bbolt buckets. Rows carry their own NodeURL field rather than living
// in a bucket-per-node hierarchy, so a wallet holding proofs from many
// nodes still does point lookups by Y/quote id in O(1).
type BoltDB struct {
	bolt *bolt.DB
}

func InitBolt(path string) (*BoltDB, error) {
	db, err := bolt.Open(filepath.Join(path, "wallet.db"), 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("error opening wallet bolt db: %v", err)
	}
	wdb := &BoltDB{bolt: db}
	if err := wdb.init(); err != nil {
		return nil, fmt.Errorf("error initializing wallet bolt db: %v", err)
	}
	return wdb, nil
}

func (db *BoltDB) init() error {
	return db.bolt.Update(func(tx *bolt.Tx) error {
		for _, name := range []string{seedBucket, proofsBucket, keysetCounterBucket, mintQuotesBucket, meltQuotesBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (db *BoltDB) Close() error { return db.bolt.Close() }

func (db *BoltDB) SaveMnemonicSeed(mnemonic string, seed []byte) error {
	return db.bolt.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(seedBucket))
		if err := b.Put([]byte(seedKey), seed); err != nil {
			return err
		}
		return b.Put([]byte(mnemonicKey), []byte(mnemonic))
	})
}

func (db *BoltDB) GetSeed() ([]byte, error) {
	var seed []byte
	err := db.bolt.View(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte(seedBucket)).Get([]byte(seedKey))
		if v == nil {
			return ErrNotFound
		}
		seed = append([]byte(nil), v...)
		return nil
	})
	return seed, err
}

func (db *BoltDB) GetMnemonic() (string, error) {
	var mnemonic string
	err := db.bolt.View(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte(seedBucket)).Get([]byte(mnemonicKey))
		if v == nil {
			return ErrNotFound
		}
		mnemonic = string(v)
		return nil
	})
	return mnemonic, err
}

func (db *BoltDB) SaveProof(p DBProof) error {
	y, err := p.Y()
	if err != nil {
		return err
	}
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("invalid proof: %v", err)
	}
	return db.bolt.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(proofsBucket)).Put([]byte(y), data)
	})
}

func (db *BoltDB) GetProofsByNode(nodeURL string) ([]DBProof, error) {
	var proofs []DBProof
	err := db.bolt.View(func(tx *bolt.Tx) error {
		c := tx.Bucket([]byte(proofsBucket)).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var p DBProof
			if err := json.Unmarshal(v, &p); err != nil {
				return err
			}
			if p.NodeURL == nodeURL {
				proofs = append(proofs, p)
			}
		}
		return nil
	})
	return proofs, err
}

func (db *BoltDB) GetProofByY(y string) (DBProof, error) {
	var p DBProof
	err := db.bolt.View(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte(proofsBucket)).Get([]byte(y))
		if v == nil {
			return ErrNotFound
		}
		return json.Unmarshal(v, &p)
	})
	return p, err
}

func (db *BoltDB) SetProofStatus(y string, status ProofStatus, meltQuoteId string) error {
	return db.bolt.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(proofsBucket))
		v := b.Get([]byte(y))
		if v == nil {
			return ErrNotFound
		}
		var p DBProof
		if err := json.Unmarshal(v, &p); err != nil {
			return err
		}
		p.Status = status
		p.MeltQuoteId = meltQuoteId
		data, err := json.Marshal(p)
		if err != nil {
			return err
		}
		return b.Put([]byte(y), data)
	})
}

func (db *BoltDB) DeleteProof(y string) error {
	return db.bolt.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(proofsBucket))
		if b.Get([]byte(y)) == nil {
			return ErrNotFound
		}
		return b.Delete([]byte(y))
	})
}

func keysetCounterKey(nodeURL string, id cashu.KeysetId) []byte {
	return []byte(nodeURL + "|" + id.String())
}

func (db *BoltDB) SaveKeysetCounter(kc KeysetCounter) error {
	data, err := json.Marshal(kc)
	if err != nil {
		return err
	}
	return db.bolt.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(keysetCounterBucket)).Put(keysetCounterKey(kc.NodeURL, kc.KeysetId), data)
	})
}

func (db *BoltDB) GetKeysetCounter(nodeURL string, id cashu.KeysetId) (KeysetCounter, error) {
	var kc KeysetCounter
	err := db.bolt.View(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte(keysetCounterBucket)).Get(keysetCounterKey(nodeURL, id))
		if v == nil {
			return ErrNotFound
		}
		return json.Unmarshal(v, &kc)
	})
	return kc, err
}

func (db *BoltDB) GetKeysetCountersByNode(nodeURL string) ([]KeysetCounter, error) {
	var out []KeysetCounter
	err := db.bolt.View(func(tx *bolt.Tx) error {
		c := tx.Bucket([]byte(keysetCounterBucket)).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var kc KeysetCounter
			if err := json.Unmarshal(v, &kc); err != nil {
				return err
			}
			if kc.NodeURL == nodeURL {
				out = append(out, kc)
			}
		}
		return nil
	})
	return out, err
}

func (db *BoltDB) IncrementKeysetCounter(nodeURL string, id cashu.KeysetId, n uint32) error {
	return db.bolt.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(keysetCounterBucket))
		key := keysetCounterKey(nodeURL, id)
		v := b.Get(key)
		if v == nil {
			return ErrNotFound
		}
		var kc KeysetCounter
		if err := json.Unmarshal(v, &kc); err != nil {
			return err
		}
		kc.Counter += n
		data, err := json.Marshal(kc)
		if err != nil {
			return err
		}
		return b.Put(key, data)
	})
}

func quoteKey(nodeURL, id string) []byte { return []byte(nodeURL + "|" + id) }

func (db *BoltDB) SaveMintQuote(q MintQuote) error {
	data, err := json.Marshal(q)
	if err != nil {
		return err
	}
	return db.bolt.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(mintQuotesBucket)).Put(quoteKey(q.NodeURL, q.Id), data)
	})
}

func (db *BoltDB) GetMintQuote(nodeURL, id string) (MintQuote, error) {
	var q MintQuote
	err := db.bolt.View(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte(mintQuotesBucket)).Get(quoteKey(nodeURL, id))
		if v == nil {
			return ErrNotFound
		}
		return json.Unmarshal(v, &q)
	})
	return q, err
}

func (db *BoltDB) GetMintQuotesByNode(nodeURL string) ([]MintQuote, error) {
	var out []MintQuote
	err := db.bolt.View(func(tx *bolt.Tx) error {
		c := tx.Bucket([]byte(mintQuotesBucket)).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var q MintQuote
			if err := json.Unmarshal(v, &q); err != nil {
				return err
			}
			if q.NodeURL == nodeURL {
				out = append(out, q)
			}
		}
		return nil
	})
	return out, err
}

func (db *BoltDB) UpdateMintQuoteState(nodeURL, id string, state cashu.QuoteState) error {
	return db.bolt.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(mintQuotesBucket))
		key := quoteKey(nodeURL, id)
		v := b.Get(key)
		if v == nil {
			return ErrNotFound
		}
		var q MintQuote
		if err := json.Unmarshal(v, &q); err != nil {
			return err
		}
		q.State = state
		data, err := json.Marshal(q)
		if err != nil {
			return err
		}
		return b.Put(key, data)
	})
}

func (db *BoltDB) DeleteMintQuote(nodeURL, id string) error {
	return db.bolt.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(mintQuotesBucket))
		key := quoteKey(nodeURL, id)
		if b.Get(key) == nil {
			return ErrNotFound
		}
		return b.Delete(key)
	})
}

func (db *BoltDB) RedeemMintQuote(nodeURL string, id cashu.KeysetId, counterAdvance uint32, proofs []DBProof, quoteId string) error {
	return db.bolt.Update(func(tx *bolt.Tx) error {
		counters := tx.Bucket([]byte(keysetCounterBucket))
		ckey := keysetCounterKey(nodeURL, id)
		cv := counters.Get(ckey)
		if cv == nil {
			return ErrNotFound
		}
		var kc KeysetCounter
		if err := json.Unmarshal(cv, &kc); err != nil {
			return err
		}
		kc.Counter += counterAdvance
		cdata, err := json.Marshal(kc)
		if err != nil {
			return err
		}
		if err := counters.Put(ckey, cdata); err != nil {
			return err
		}

		proofsb := tx.Bucket([]byte(proofsBucket))
		for _, p := range proofs {
			y, err := p.Y()
			if err != nil {
				return err
			}
			data, err := json.Marshal(p)
			if err != nil {
				return err
			}
			if err := proofsb.Put([]byte(y), data); err != nil {
				return err
			}
		}

		quotes := tx.Bucket([]byte(mintQuotesBucket))
		qkey := quoteKey(nodeURL, quoteId)
		qv := quotes.Get(qkey)
		if qv == nil {
			return ErrNotFound
		}
		var q MintQuote
		if err := json.Unmarshal(qv, &q); err != nil {
			return err
		}
		q.State = cashu.Issued
		qdata, err := json.Marshal(q)
		if err != nil {
			return err
		}
		return quotes.Put(qkey, qdata)
	})
}

func (db *BoltDB) SaveMeltQuote(q MeltQuote) error {
	data, err := json.Marshal(q)
	if err != nil {
		return err
	}
	return db.bolt.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(meltQuotesBucket)).Put(quoteKey(q.NodeURL, q.Id), data)
	})
}

func (db *BoltDB) GetMeltQuote(nodeURL, id string) (MeltQuote, error) {
	var q MeltQuote
	err := db.bolt.View(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte(meltQuotesBucket)).Get(quoteKey(nodeURL, id))
		if v == nil {
			return ErrNotFound
		}
		return json.Unmarshal(v, &q)
	})
	return q, err
}

func (db *BoltDB) UpdateMeltQuote(nodeURL, id string, state cashu.QuoteState, transferIds []string) error {
	return db.bolt.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(meltQuotesBucket))
		key := quoteKey(nodeURL, id)
		v := b.Get(key)
		if v == nil {
			return ErrNotFound
		}
		var q MeltQuote
		if err := json.Unmarshal(v, &q); err != nil {
			return err
		}
		q.State = state
		if transferIds != nil {
			q.TransferIds = transferIds
		}
		data, err := json.Marshal(q)
		if err != nil {
			return err
		}
		return b.Put(key, data)
	})
}
