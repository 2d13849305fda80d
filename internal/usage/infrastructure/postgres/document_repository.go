package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	usage "agromet-cloud/internal/usage/domain"
)

const defaultUsageTable = "credential_usage"

// DocumentRepository is a Postgres implementation for usage documents.
// One row per credential, the document itself stored as JSONB.
type DocumentRepository struct {
	db    *sql.DB
	table string
}

// NewDocumentRepository constructs a repository with default table name.
func NewDocumentRepository(db *sql.DB, opts ...DocumentOption) *DocumentRepository {
	repo := &DocumentRepository{db: db, table: defaultUsageTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// DocumentOption configures the repository.
type DocumentOption func(*DocumentRepository)

// WithUsageTable overrides the table name.
func WithUsageTable(table string) DocumentOption {
	return func(repo *DocumentRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// Update runs fn on the credential's document under SELECT ... FOR
// UPDATE, creating an empty row on first use. Read, mutate and write
// happen inside one transaction; concurrent callers on the same
// credential serialize on the row lock, so no increment is ever lost.
func (r *DocumentRepository) Update(ctx context.Context, credentialID int64, fn func(*usage.Document) error) error {
	if r == nil || r.db == nil {
		return errors.New("usage repo: nil db")
	}
	if fn == nil {
		return errors.New("usage repo: nil update func")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	insert := fmt.Sprintf(`
INSERT INTO %s (credential_id, document, updated_at)
VALUES ($1, '{}'::jsonb, NOW())
ON CONFLICT (credential_id) DO NOTHING`, r.table)
	if _, err := tx.ExecContext(ctx, insert, credentialID); err != nil {
		_ = tx.Rollback()
		return err
	}

	var raw []byte
	lock := fmt.Sprintf(`SELECT document FROM %s WHERE credential_id = $1 FOR UPDATE`, r.table)
	if err := tx.QueryRowContext(ctx, lock, credentialID).Scan(&raw); err != nil {
		_ = tx.Rollback()
		return err
	}

	var doc usage.Document
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &doc); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("usage repo: decode document: %w", err)
		}
	}

	if err := fn(&doc); err != nil {
		_ = tx.Rollback()
		return err
	}

	encoded, err := json.Marshal(&doc)
	if err != nil {
		_ = tx.Rollback()
		return err
	}

	update := fmt.Sprintf(`
UPDATE %s SET document = $2, updated_at = NOW() WHERE credential_id = $1`, r.table)
	if _, err := tx.ExecContext(ctx, update, credentialID, encoded); err != nil {
		_ = tx.Rollback()
		return err
	}

	return tx.Commit()
}

// Get returns the latest document without locking, or nil when the
// credential has never been used. Capacity reads tolerate the staleness.
func (r *DocumentRepository) Get(ctx context.Context, credentialID int64) (*usage.Document, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("usage repo: nil db")
	}

	query := fmt.Sprintf(`SELECT document FROM %s WHERE credential_id = $1`, r.table)
	var raw []byte
	err := r.db.QueryRowContext(ctx, query, credentialID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var doc usage.Document
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("usage repo: decode document: %w", err)
		}
	}
	return &doc, nil
}
