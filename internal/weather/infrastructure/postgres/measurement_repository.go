package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	weather "agromet-cloud/internal/weather/domain"
)

const defaultMeasurementsTable = "weather_measurements"

// Rows are inserted in chunks so a large backfill stays under the
// Postgres parameter limit (65535 / 6 columns, rounded down).
const insertChunkSize = 1000

// MeasurementRepository is a Postgres implementation of the weather
// series store.
type MeasurementRepository struct {
	db    *sql.DB
	table string
}

// NewMeasurementRepository constructs a repository with the default
// table name.
func NewMeasurementRepository(db *sql.DB, opts ...MeasurementOption) *MeasurementRepository {
	repo := &MeasurementRepository{
		db:    db,
		table: defaultMeasurementsTable,
	}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// MeasurementOption configures the repository.
type MeasurementOption func(*MeasurementRepository)

// WithMeasurementsTable overrides the measurements table name.
func WithMeasurementsTable(table string) MeasurementOption {
	return func(repo *MeasurementRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// ReplaceRange deletes every stored row for the point and data type in
// [from, to] and inserts the given rows, in one transaction. Rows
// outside the span are never touched, so re-running the same ingestion
// converges instead of duplicating.
func (r *MeasurementRepository) ReplaceRange(ctx context.Context, pointID int64, dataType weather.DataType, from, to time.Time, rows []weather.Measurement) (int, error) {
	if r == nil || r.db == nil {
		return 0, errors.New("measurement repo: nil db")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	deleteQuery := fmt.Sprintf(`
DELETE FROM %s
WHERE point_id = $1 AND data_type = $2 AND ts_utc >= $3 AND ts_utc <= $4`, r.table)
	if _, err := tx.ExecContext(ctx, deleteQuery, pointID, string(dataType), from.UTC(), to.UTC()); err != nil {
		return 0, fmt.Errorf("measurement repo: clear range: %w", err)
	}

	inserted, err := r.insertTx(ctx, tx, rows)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return inserted, nil
}

// Insert bulk-inserts rows without clearing anything first.
func (r *MeasurementRepository) Insert(ctx context.Context, rows []weather.Measurement) (int, error) {
	if r == nil || r.db == nil {
		return 0, errors.New("measurement repo: nil db")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	inserted, err := r.insertTx(ctx, tx, rows)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return inserted, nil
}

func (r *MeasurementRepository) insertTx(ctx context.Context, tx *sql.Tx, rows []weather.Measurement) (int, error) {
	total := 0
	for start := 0; start < len(rows); start += insertChunkSize {
		end := start + insertChunkSize
		if end > len(rows) {
			end = len(rows)
		}
		chunk := rows[start:end]

		var sb strings.Builder
		fmt.Fprintf(&sb, "INSERT INTO %s (point_id, parameter, ts_utc, data_type, value_numeric, value_text) VALUES ", r.table)
		args := make([]any, 0, len(chunk)*6)
		for i, row := range chunk {
			if i > 0 {
				sb.WriteString(", ")
			}
			base := i * 6
			fmt.Fprintf(&sb, "($%d, $%d, $%d, $%d, $%d, $%d)", base+1, base+2, base+3, base+4, base+5, base+6)
			args = append(args,
				row.PointID,
				row.Parameter,
				row.TimestampUTC.UTC(),
				string(row.DataType),
				row.ValueNumeric,
				row.ValueText,
			)
		}
		if _, err := tx.ExecContext(ctx, sb.String(), args...); err != nil {
			return 0, fmt.Errorf("measurement repo: insert: %w", err)
		}
		total += len(chunk)
	}
	return total, nil
}

// PresentDates returns the distinct UTC calendar dates with at least
// one stored row for the point and data types within [from, to].
func (r *MeasurementRepository) PresentDates(ctx context.Context, pointID int64, dataTypes []weather.DataType, from, to time.Time) (map[time.Time]bool, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("measurement repo: nil db")
	}
	if len(dataTypes) == 0 {
		return map[time.Time]bool{}, nil
	}

	placeholders := make([]string, len(dataTypes))
	args := []any{pointID, from.UTC(), to.UTC()}
	for i, dt := range dataTypes {
		placeholders[i] = fmt.Sprintf("$%d", len(args)+1)
		args = append(args, string(dt))
	}

	query := fmt.Sprintf(`
SELECT DISTINCT date_trunc('day', ts_utc AT TIME ZONE 'UTC')
FROM %s
WHERE point_id = $1 AND ts_utc >= $2 AND ts_utc <= $3 AND data_type IN (%s)`,
		r.table, strings.Join(placeholders, ", "))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	present := make(map[time.Time]bool)
	for rows.Next() {
		var d time.Time
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		d = d.UTC()
		present[time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)] = true
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return present, nil
}

// Series loads one parameter's rows for the given data types, ordered
// by timestamp and then insertion order so later rows win on ties.
func (r *MeasurementRepository) Series(ctx context.Context, pointID int64, parameter string, dataTypes []weather.DataType, from, to time.Time) ([]weather.Measurement, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("measurement repo: nil db")
	}
	if len(dataTypes) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(dataTypes))
	args := []any{pointID, parameter, from.UTC(), to.UTC()}
	for i, dt := range dataTypes {
		placeholders[i] = fmt.Sprintf("$%d", len(args)+1)
		args = append(args, string(dt))
	}

	query := fmt.Sprintf(`
SELECT point_id, parameter, ts_utc, data_type, value_numeric, value_text
FROM %s
WHERE point_id = $1 AND parameter = $2 AND ts_utc >= $3 AND ts_utc <= $4 AND data_type IN (%s)
ORDER BY ts_utc ASC, id ASC`, r.table, strings.Join(placeholders, ", "))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []weather.Measurement
	for rows.Next() {
		var m weather.Measurement
		var dataType string
		var numeric sql.NullFloat64
		var text sql.NullString
		if err := rows.Scan(&m.PointID, &m.Parameter, &m.TimestampUTC, &dataType, &numeric, &text); err != nil {
			return nil, err
		}
		m.TimestampUTC = m.TimestampUTC.UTC()
		m.DataType = weather.DataType(dataType)
		if numeric.Valid {
			v := numeric.Float64
			m.ValueNumeric = &v
		}
		if text.Valid {
			s := text.String
			m.ValueText = &s
		}
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
