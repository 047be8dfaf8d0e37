// Package sqlite is a durable NodeDB backed by SQLite, grounded on the
// teacher's mint/storage/sqlite package: embedded golang-migrate
// migrations copied to a temp dir on startup, a single serialized
// connection, and straight database/sql reads/writes with no ORM.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/starknuts/starknuts/cashu"
	"github.com/starknuts/starknuts/crypto"
	"github.com/starknuts/starknuts/keyset"
	"github.com/starknuts/starknuts/liquidity"
	"github.com/starknuts/starknuts/node/storage"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations
var migrations embed.FS

type SQLiteDB struct {
	db *sql.DB
}

// migrationsDir copies the embedded migration files to a real temp
// directory, since migrate.New wants a filesystem path rather than an
// fs.FS.
func migrationsDir() (string, error) {
	tempDir, err := os.MkdirTemp("", "starknuts-node-migrations")
	if err != nil {
		return "", err
	}

	entries, err := migrations.ReadDir("migrations")
	if err != nil {
		return "", err
	}
	for _, entry := range entries {
		src, err := migrations.Open(filepath.Join("migrations", entry.Name()))
		if err != nil {
			return "", err
		}
		dst, err := os.Create(filepath.Join(tempDir, entry.Name()))
		if err != nil {
			src.Close()
			return "", err
		}
		_, err = io.Copy(dst, src)
		src.Close()
		dst.Close()
		if err != nil {
			return "", err
		}
	}
	return tempDir, nil
}

func InitSQLite(path string) (*SQLiteDB, error) {
	dbPath := filepath.Join(path, "node.sqlite.db")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	tempDir, err := migrationsDir()
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(tempDir)

	m, err := migrate.New(fmt.Sprintf("file://%s", tempDir), fmt.Sprintf("sqlite3://%s", dbPath))
	if err != nil {
		return nil, err
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	return &SQLiteDB{db: db}, nil
}

func (s *SQLiteDB) Close() error {
	return s.db.Close()
}

func (s *SQLiteDB) SaveSeed(ctx context.Context, seed []byte) error {
	_, err := s.db.ExecContext(ctx, "INSERT INTO seed (id, seed) VALUES (?, ?)", "id", hex.EncodeToString(seed))
	return err
}

func (s *SQLiteDB) GetSeed(ctx context.Context) ([]byte, error) {
	var hexSeed string
	row := s.db.QueryRowContext(ctx, "SELECT seed FROM seed WHERE id = ?", "id")
	if err := row.Scan(&hexSeed); err != nil {
		return nil, err
	}
	return hex.DecodeString(hexSeed)
}

func (s *SQLiteDB) SaveKeyset(ctx context.Context, ks keyset.StoredKeyset) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO keysets (id, unit, active, max_order, derivation_path_idx, input_fee_ppk)
		VALUES (?, ?, ?, ?, ?, ?)`,
		ks.Id.String(), int(ks.Unit), ks.Active, ks.MaxOrder, ks.DerivationPathIdx, ks.InputFeePpk)
	return err
}

func (s *SQLiteDB) GetKeysets(ctx context.Context) ([]keyset.StoredKeyset, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, unit, active, max_order, derivation_path_idx, input_fee_ppk FROM keysets")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []keyset.StoredKeyset
	for rows.Next() {
		var idHex string
		var unit int
		var ks keyset.StoredKeyset
		if err := rows.Scan(&idHex, &unit, &ks.Active, &ks.MaxOrder, &ks.DerivationPathIdx, &ks.InputFeePpk); err != nil {
			return nil, err
		}
		id, err := cashu.ParseKeysetId(idHex)
		if err != nil {
			return nil, err
		}
		ks.Id = id
		ks.Unit = cashu.Unit(unit)
		out = append(out, ks)
	}
	return out, rows.Err()
}

func (s *SQLiteDB) UpdateKeysetActive(ctx context.Context, id cashu.KeysetId, active bool) error {
	result, err := s.db.ExecContext(ctx, "UPDATE keysets SET active = ? WHERE id = ?", active, id.String())
	if err != nil {
		return err
	}
	if n, err := result.RowsAffected(); err != nil {
		return err
	} else if n != 1 {
		return cashu.ErrUnknownKeyset
	}
	return nil
}

func proofY(p cashu.Proof) (string, error) {
	Y, err := crypto.HashToCurve([]byte(p.Secret))
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(Y.SerializeCompressed()), nil
}

func (s *SQLiteDB) SaveProofs(ctx context.Context, proofs cashu.Proofs) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, "INSERT INTO proofs (y, amount, keyset_id, secret, c) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, p := range proofs {
		y, err := proofY(p)
		if err != nil {
			tx.Rollback()
			return err
		}
		if _, err := stmt.ExecContext(ctx, y, p.Amount, p.Id.String(), string(p.Secret), p.C); err != nil {
			tx.Rollback()
			if isUniqueViolation(err) {
				return cashu.BuildProofError("already spent", cashu.FieldViolation{Path: "inputs[]", Reason: cashu.ReasonAlreadySpent})
			}
			return err
		}
	}
	return tx.Commit()
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func (s *SQLiteDB) GetSpentYs(ctx context.Context, ys []string) (map[string]bool, error) {
	out := make(map[string]bool, len(ys))
	if len(ys) == 0 {
		return out, nil
	}
	query := "SELECT y FROM proofs WHERE y IN (?" + strings.Repeat(",?", len(ys)-1) + ")"
	args := make([]any, len(ys))
	for i, y := range ys {
		args[i] = y
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var y string
		if err := rows.Scan(&y); err != nil {
			return nil, err
		}
		out[y] = true
	}
	return out, rows.Err()
}

func (s *SQLiteDB) AddPendingProofs(ctx context.Context, proofs cashu.Proofs, quoteId string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, "INSERT INTO pending_proofs (y, amount, keyset_id, secret, c, melt_quote_id) VALUES (?, ?, ?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, p := range proofs {
		y, err := proofY(p)
		if err != nil {
			tx.Rollback()
			return err
		}
		if _, err := stmt.ExecContext(ctx, y, p.Amount, p.Id.String(), string(p.Secret), p.C, quoteId); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteDB) GetPendingProofsByQuote(ctx context.Context, quoteId string) ([]storage.DBProof, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT y, amount, keyset_id, secret, c FROM pending_proofs WHERE melt_quote_id = ?", quoteId)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []storage.DBProof
	for rows.Next() {
		var p storage.DBProof
		var idHex string
		if err := rows.Scan(&p.Y, &p.Amount, &idHex, &p.Secret, &p.C); err != nil {
			return nil, err
		}
		id, err := cashu.ParseKeysetId(idHex)
		if err != nil {
			return nil, err
		}
		p.Id = id
		p.QuoteId = quoteId
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLiteDB) GetPendingYs(ctx context.Context, ys []string) (map[string]bool, error) {
	out := make(map[string]bool, len(ys))
	if len(ys) == 0 {
		return out, nil
	}
	query := "SELECT y FROM pending_proofs WHERE y IN (?" + strings.Repeat(",?", len(ys)-1) + ")"
	args := make([]any, len(ys))
	for i, y := range ys {
		args[i] = y
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var y string
		if err := rows.Scan(&y); err != nil {
			return nil, err
		}
		out[y] = true
	}
	return out, rows.Err()
}

func (s *SQLiteDB) RemovePendingProofs(ctx context.Context, ys []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, "DELETE FROM pending_proofs WHERE y = ?")
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, y := range ys {
		if _, err := stmt.ExecContext(ctx, y); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteDB) SaveIssuedSignatures(ctx context.Context, outputs cashu.BlindedMessages, sigs cashu.BlindSignatures) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, "INSERT INTO issued_signatures (b_, c_, keyset_id, amount, e, s) VALUES (?, ?, ?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, out := range outputs {
		if i >= len(sigs) {
			break
		}
		sig := sigs[i]
		var e, sVal sql.NullString
		if sig.DLEQ != nil {
			e = sql.NullString{String: sig.DLEQ.E, Valid: true}
			sVal = sql.NullString{String: sig.DLEQ.S, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, out.B_, sig.C_, sig.Id.String(), sig.Amount, e, sVal); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteDB) GetIssuedSignatures(ctx context.Context, blindedSecrets []string) (map[string]cashu.BlindSignature, error) {
	out := make(map[string]cashu.BlindSignature, len(blindedSecrets))
	if len(blindedSecrets) == 0 {
		return out, nil
	}
	query := "SELECT b_, c_, keyset_id, amount, e, s FROM issued_signatures WHERE b_ IN (?" + strings.Repeat(",?", len(blindedSecrets)-1) + ")"
	args := make([]any, len(blindedSecrets))
	for i, b := range blindedSecrets {
		args[i] = b
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var b_, idHex string
		var sig cashu.BlindSignature
		var e, sVal sql.NullString
		if err := rows.Scan(&b_, &sig.C_, &idHex, &sig.Amount, &e, &sVal); err != nil {
			return nil, err
		}
		id, err := cashu.ParseKeysetId(idHex)
		if err != nil {
			return nil, err
		}
		sig.Id = id
		if e.Valid && sVal.Valid {
			sig.DLEQ = &cashu.DLEQProof{E: e.String, S: sVal.String}
		}
		out[b_] = sig
	}
	return out, rows.Err()
}

func (s *SQLiteDB) SaveMintQuote(ctx context.Context, q storage.MintQuote) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO mint_quotes (id, method, unit, amount, request, invoice_id, state, expiry)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		q.Id, int(q.Method), int(q.Unit), q.Amount, q.Request, hex.EncodeToString(q.InvoiceId[:]), string(q.State), q.Expiry)
	return err
}

func scanMintQuote(row *sql.Row) (storage.MintQuote, error) {
	var q storage.MintQuote
	var method, unit int
	var invoiceHex, state string
	err := row.Scan(&q.Id, &method, &unit, &q.Amount, &q.Request, &invoiceHex, &state, &q.Expiry)
	if err != nil {
		return storage.MintQuote{}, err
	}
	q.Method = cashu.Method(method)
	q.Unit = cashu.Unit(unit)
	q.State = cashu.QuoteState(state)
	invoiceBytes, err := hex.DecodeString(invoiceHex)
	if err != nil {
		return storage.MintQuote{}, err
	}
	copy(q.InvoiceId[:], invoiceBytes)
	return q, nil
}

func (s *SQLiteDB) GetMintQuote(ctx context.Context, id string) (storage.MintQuote, error) {
	row := s.db.QueryRowContext(ctx, "SELECT id, method, unit, amount, request, invoice_id, state, expiry FROM mint_quotes WHERE id = ?", id)
	q, err := scanMintQuote(row)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.MintQuote{}, cashu.ErrQuoteNotFound
	}
	return q, err
}

func (s *SQLiteDB) GetMintQuoteByInvoiceId(ctx context.Context, invoiceId liquidity.InvoiceId) (storage.MintQuote, error) {
	row := s.db.QueryRowContext(ctx, "SELECT id, method, unit, amount, request, invoice_id, state, expiry FROM mint_quotes WHERE invoice_id = ?", hex.EncodeToString(invoiceId[:]))
	q, err := scanMintQuote(row)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.MintQuote{}, cashu.ErrQuoteNotFound
	}
	return q, err
}

func (s *SQLiteDB) UpdateMintQuoteState(ctx context.Context, id string, state cashu.QuoteState) error {
	result, err := s.db.ExecContext(ctx, "UPDATE mint_quotes SET state = ? WHERE id = ?", string(state), id)
	if err != nil {
		return err
	}
	if n, err := result.RowsAffected(); err != nil {
		return err
	} else if n != 1 {
		return cashu.ErrQuoteNotFound
	}
	return nil
}

func (s *SQLiteDB) SaveMeltQuote(ctx context.Context, q storage.MeltQuote) error {
	transferIds, err := json.Marshal(q.TransferIds)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO melt_quotes (id, method, unit, amount, fee, request, invoice_id, state, expiry, transfer_ids)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		q.Id, int(q.Method), int(q.Unit), q.Amount, q.Fee, q.Request, hex.EncodeToString(q.InvoiceId[:]), string(q.State), q.Expiry, string(transferIds))
	return err
}

func (s *SQLiteDB) GetMeltQuote(ctx context.Context, id string) (storage.MeltQuote, error) {
	row := s.db.QueryRowContext(ctx, "SELECT id, method, unit, amount, fee, request, invoice_id, state, expiry, transfer_ids FROM melt_quotes WHERE id = ?", id)

	var q storage.MeltQuote
	var method, unit int
	var invoiceHex, state, transferIdsJSON string
	err := row.Scan(&q.Id, &method, &unit, &q.Amount, &q.Fee, &q.Request, &invoiceHex, &state, &q.Expiry, &transferIdsJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.MeltQuote{}, cashu.ErrQuoteNotFound
	}
	if err != nil {
		return storage.MeltQuote{}, err
	}
	q.Method = cashu.Method(method)
	q.Unit = cashu.Unit(unit)
	q.State = cashu.QuoteState(state)
	invoiceBytes, err := hex.DecodeString(invoiceHex)
	if err != nil {
		return storage.MeltQuote{}, err
	}
	copy(q.InvoiceId[:], invoiceBytes)
	if transferIdsJSON != "" {
		if err := json.Unmarshal([]byte(transferIdsJSON), &q.TransferIds); err != nil {
			return storage.MeltQuote{}, err
		}
	}
	return q, nil
}

func (s *SQLiteDB) UpdateMeltQuote(ctx context.Context, id string, state cashu.QuoteState, transferIds []string) error {
	transferIdsJSON, err := json.Marshal(transferIds)
	if err != nil {
		return err
	}
	result, err := s.db.ExecContext(ctx, "UPDATE melt_quotes SET state = ?, transfer_ids = ? WHERE id = ?", string(state), string(transferIdsJSON), id)
	if err != nil {
		return err
	}
	if n, err := result.RowsAffected(); err != nil {
		return err
	} else if n != 1 {
		return cashu.ErrQuoteNotFound
	}
	return nil
}

func (s *SQLiteDB) AppendPaymentEvent(ctx context.Context, invoiceId liquidity.InvoiceId, event liquidity.PaymentEvent) (bool, error) {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO payment_events (natural_key, invoice_id, amount) VALUES (?, ?, ?)",
		event.NaturalKey(), hex.EncodeToString(invoiceId[:]), event.Amount)
	if isUniqueViolation(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *SQLiteDB) SumPaymentEvents(ctx context.Context, invoiceId liquidity.InvoiceId) (cashu.Amount, error) {
	row := s.db.QueryRowContext(ctx, "SELECT COALESCE(SUM(amount), 0) FROM payment_events WHERE invoice_id = ?", hex.EncodeToString(invoiceId[:]))
	var sum cashu.Amount
	if err := row.Scan(&sum); err != nil {
		return 0, err
	}
	return sum, nil
}
