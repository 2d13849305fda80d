package eventing

import (
	"time"

	weather "agromet-cloud/internal/weather/domain"
)

// IngestionCompleted fires after a fetch job persisted its rows.
// InsertedBySection may be partially filled when a later section of the
// same job failed; consumers should treat it as "at least this landed".
type IngestionCompleted struct {
	JobID      string
	LinkID     int64
	PointID    int64
	Mode       weather.Mode
	OccurredAt time.Time

	InsertedBySection map[weather.Granularity]int
}

// CycleCompleted fires after a full dispatch cycle.
type CycleCompleted struct {
	OccurredAt    time.Time
	Checked       int
	SkippedLimits int
	SkippedPeriod int
	Dispatched    int
}
