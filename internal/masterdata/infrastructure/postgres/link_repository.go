package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	masterdata "agromet-cloud/internal/masterdata/domain"
)

const (
	defaultLinksTable  = "point_provider_links"
	defaultPointsTable = "geo_points"
)

// LinkRepository is a Postgres implementation for point/provider links.
type LinkRepository struct {
	db             *sql.DB
	linksTable     string
	pointsTable    string
	providersTable string
}

// NewLinkRepository constructs a repository with default table names.
func NewLinkRepository(db *sql.DB, opts ...LinkOption) *LinkRepository {
	repo := &LinkRepository{
		db:             db,
		linksTable:     defaultLinksTable,
		pointsTable:    defaultPointsTable,
		providersTable: defaultProvidersTable,
	}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// LinkOption configures the repository.
type LinkOption func(*LinkRepository)

// WithLinksTable overrides the links table name.
func WithLinksTable(table string) LinkOption {
	return func(repo *LinkRepository) {
		if table != "" {
			repo.linksTable = table
		}
	}
}

// ListActive loads links whose link, provider and point are all active,
// joined with their provider and point rows.
func (r *LinkRepository) ListActive(ctx context.Context) ([]masterdata.ActiveLink, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("link repo: nil db")
	}

	query := fmt.Sprintf(`
SELECT
	l.id, l.provider_id, l.point_id, l.is_active, l.status,
	p.id, p.code, p.name, p.is_active, p.config, p.update_schedule, p.created_at, p.updated_at,
	g.id, g.lat, g.lon, g.timezone, g.is_active
FROM %s l
JOIN %s p ON p.id = l.provider_id
JOIN %s g ON g.id = l.point_id
WHERE l.is_active = TRUE AND p.is_active = TRUE AND g.is_active = TRUE
ORDER BY l.id ASC`, r.linksTable, r.providersTable, r.pointsTable)

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []masterdata.ActiveLink
	for rows.Next() {
		var item masterdata.ActiveLink
		var statusRaw, configRaw, scheduleRaw []byte
		if err := rows.Scan(
			&item.Link.ID,
			&item.Link.ProviderID,
			&item.Link.PointID,
			&item.Link.IsActive,
			&statusRaw,
			&item.Provider.ID,
			&item.Provider.Code,
			&item.Provider.Name,
			&item.Provider.IsActive,
			&configRaw,
			&scheduleRaw,
			&item.Provider.CreatedAt,
			&item.Provider.UpdatedAt,
			&item.Point.ID,
			&item.Point.Lat,
			&item.Point.Lon,
			&item.Point.Timezone,
			&item.Point.IsActive,
		); err != nil {
			return nil, err
		}
		if len(statusRaw) > 0 {
			// A garbled status document degrades to "never run" rather
			// than failing the whole listing.
			_ = json.Unmarshal(statusRaw, &item.Link.Status)
		}
		if len(configRaw) > 0 {
			if err := json.Unmarshal(configRaw, &item.Provider.Config); err != nil {
				return nil, fmt.Errorf("link repo: decode provider config: %w", err)
			}
		}
		if len(scheduleRaw) > 0 {
			if err := json.Unmarshal(scheduleRaw, &item.Provider.UpdateSchedule); err != nil {
				return nil, fmt.Errorf("link repo: decode provider schedule: %w", err)
			}
		}
		item.Provider.CreatedAt = item.Provider.CreatedAt.UTC()
		item.Provider.UpdatedAt = item.Provider.UpdatedAt.UTC()
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// StampStatus records the last-run time for one (mode, bucket) key on a
// link's status document.
func (r *LinkRepository) StampStatus(ctx context.Context, linkID int64, key string, at time.Time) error {
	if r == nil || r.db == nil {
		return errors.New("link repo: nil db")
	}
	if key == "" {
		return errors.New("link repo: empty status key")
	}

	entry, err := json.Marshal(masterdata.BucketStatus{LastUpdate: at.UTC().Format(time.RFC3339)})
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
UPDATE %s
SET status = jsonb_set(COALESCE(status, '{}'::jsonb), ARRAY[$2], $3::jsonb, TRUE)
WHERE id = $1`, r.linksTable)

	result, err := r.db.ExecContext(ctx, query, linkID, key, entry)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("link repo: link %d not found", linkID)
	}
	return nil
}
