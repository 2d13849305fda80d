package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"agromet-cloud/internal/indicators"
)

const defaultIndicatorsTable = "calculated_indicators"

// IndicatorRepository persists computed indicators as JSONB documents.
type IndicatorRepository struct {
	db    *sql.DB
	table string
}

// NewIndicatorRepository constructs a repository with the default table.
func NewIndicatorRepository(db *sql.DB, opts ...IndicatorOption) *IndicatorRepository {
	repo := &IndicatorRepository{
		db:    db,
		table: defaultIndicatorsTable,
	}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// IndicatorOption configures the repository.
type IndicatorOption func(*IndicatorRepository)

// WithIndicatorsTable overrides the table name.
func WithIndicatorsTable(table string) IndicatorOption {
	return func(repo *IndicatorRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// Save appends one computed indicator row. History is kept; readers
// pick the latest by calculated_at.
func (r *IndicatorRepository) Save(ctx context.Context, pointID int64, result indicators.Result) error {
	if r == nil || r.db == nil {
		return errors.New("indicator repo: nil db")
	}

	paramsRaw, err := json.Marshal(result.Params)
	if err != nil {
		return fmt.Errorf("indicator repo: encode params: %w", err)
	}
	valueRaw, err := json.Marshal(result.Value)
	if err != nil {
		return fmt.Errorf("indicator repo: encode value: %w", err)
	}

	query := fmt.Sprintf(`
INSERT INTO %s (point_id, indicator_code, params, value, calculated_at)
VALUES ($1, $2, $3, $4, $5)`, r.table)
	_, err = r.db.ExecContext(ctx, query, pointID, result.Code, paramsRaw, valueRaw, result.CalculatedAt.UTC())
	return err
}

// Stored is one persisted indicator row.
type Stored struct {
	PointID      int64
	Code         string
	Params       map[string]any
	Value        map[string]any
	CalculatedAt time.Time
}

// ListLatest returns the most recent row per indicator code for a point.
func (r *IndicatorRepository) ListLatest(ctx context.Context, pointID int64) ([]Stored, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("indicator repo: nil db")
	}

	query := fmt.Sprintf(`
SELECT DISTINCT ON (indicator_code) point_id, indicator_code, params, value, calculated_at
FROM %s
WHERE point_id = $1
ORDER BY indicator_code, calculated_at DESC`, r.table)

	rows, err := r.db.QueryContext(ctx, query, pointID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Stored
	for rows.Next() {
		var s Stored
		var paramsRaw, valueRaw []byte
		if err := rows.Scan(&s.PointID, &s.Code, &paramsRaw, &valueRaw, &s.CalculatedAt); err != nil {
			return nil, err
		}
		if len(paramsRaw) > 0 {
			if err := json.Unmarshal(paramsRaw, &s.Params); err != nil {
				return nil, fmt.Errorf("indicator repo: decode params: %w", err)
			}
		}
		if len(valueRaw) > 0 {
			if err := json.Unmarshal(valueRaw, &s.Value); err != nil {
				return nil, fmt.Errorf("indicator repo: decode value: %w", err)
			}
		}
		s.CalculatedAt = s.CalculatedAt.UTC()
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
