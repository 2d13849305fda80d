package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	masterdata "agromet-cloud/internal/masterdata/domain"
)

const (
	defaultProvidersTable   = "providers"
	defaultCredentialsTable = "provider_credentials"
)

// ProviderRepository is a Postgres implementation for providers and
// their credentials.
type ProviderRepository struct {
	db               *sql.DB
	providersTable   string
	credentialsTable string
}

// NewProviderRepository constructs a repository with default table names.
func NewProviderRepository(db *sql.DB, opts ...ProviderOption) *ProviderRepository {
	repo := &ProviderRepository{
		db:               db,
		providersTable:   defaultProvidersTable,
		credentialsTable: defaultCredentialsTable,
	}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// ProviderOption configures the repository.
type ProviderOption func(*ProviderRepository)

// WithProvidersTable overrides the providers table name.
func WithProvidersTable(table string) ProviderOption {
	return func(repo *ProviderRepository) {
		if table != "" {
			repo.providersTable = table
		}
	}
}

// WithCredentialsTable overrides the credentials table name.
func WithCredentialsTable(table string) ProviderOption {
	return func(repo *ProviderRepository) {
		if table != "" {
			repo.credentialsTable = table
		}
	}
}

// GetByID loads one provider.
func (r *ProviderRepository) GetByID(ctx context.Context, id int64) (*masterdata.Provider, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("provider repo: nil db")
	}

	query := fmt.Sprintf(`
SELECT id, code, name, is_active, config, update_schedule, created_at, updated_at
FROM %s
WHERE id = $1`, r.providersTable)

	var provider masterdata.Provider
	var configRaw, scheduleRaw []byte
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&provider.ID,
		&provider.Code,
		&provider.Name,
		&provider.IsActive,
		&configRaw,
		&scheduleRaw,
		&provider.CreatedAt,
		&provider.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if len(configRaw) > 0 {
		if err := json.Unmarshal(configRaw, &provider.Config); err != nil {
			return nil, fmt.Errorf("provider repo: decode config: %w", err)
		}
	}
	if len(scheduleRaw) > 0 {
		if err := json.Unmarshal(scheduleRaw, &provider.UpdateSchedule); err != nil {
			return nil, fmt.Errorf("provider repo: decode schedule: %w", err)
		}
	}
	provider.CreatedAt = provider.CreatedAt.UTC()
	provider.UpdatedAt = provider.UpdatedAt.UTC()
	return &provider, nil
}

// ListActiveCredentials loads active credentials for a provider in
// creation order. The order is load-bearing: capacity selection is
// first-fit over this sequence.
func (r *ProviderRepository) ListActiveCredentials(ctx context.Context, providerID int64) ([]masterdata.Credential, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("provider repo: nil db")
	}

	query := fmt.Sprintf(`
SELECT id, provider_id, secret, is_active, expires_at, created_at
FROM %s
WHERE provider_id = $1 AND is_active = TRUE
ORDER BY created_at ASC, id ASC`, r.credentialsTable)

	rows, err := r.db.QueryContext(ctx, query, providerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []masterdata.Credential
	for rows.Next() {
		var cred masterdata.Credential
		var expiresAt sql.NullTime
		if err := rows.Scan(
			&cred.ID,
			&cred.ProviderID,
			&cred.Secret,
			&cred.IsActive,
			&expiresAt,
			&cred.CreatedAt,
		); err != nil {
			return nil, err
		}
		if expiresAt.Valid {
			ts := expiresAt.Time.UTC()
			cred.ExpiresAt = &ts
		}
		cred.CreatedAt = cred.CreatedAt.UTC()
		result = append(result, cred)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
