package masterdata

import (
	"context"
	"time"
)

// GeoPoint is a geographic location weather series are fetched for.
type GeoPoint struct {
	ID       int64
	Lat      float64
	Lon      float64
	Timezone string
	IsActive bool
}

// BucketStatus records the last successful run for one (mode, bucket) pair.
type BucketStatus struct {
	LastUpdate string `json:"last_update,omitempty"`
}

// PointProviderLink associates a point with a provider and carries the
// per-(mode,bucket) scheduling status. The link itself is never fetched
// from; only its status drives scheduling decisions.
type PointProviderLink struct {
	ID         int64
	ProviderID int64
	PointID    int64
	IsActive   bool
	Status     map[string]BucketStatus
}

// StatusKey builds the status map key for a (mode, bucket) pair.
func StatusKey(mode, bucket string) string {
	return mode + "_" + bucket
}

// LastRun returns the recorded last-run time for a status key. A missing
// entry or a garbled timestamp degrades to the zero time, which callers
// treat as "never run".
func (l PointProviderLink) LastRun(key string) time.Time {
	if l.Status == nil {
		return time.Time{}
	}
	entry, ok := l.Status[key]
	if !ok || entry.LastUpdate == "" {
		return time.Time{}
	}
	ts, err := time.Parse(time.RFC3339, entry.LastUpdate)
	if err != nil {
		return time.Time{}
	}
	return ts.UTC()
}

// ActiveLink pairs a link with its resolved provider and point. Dispatch
// iterates these; inactive providers or points are filtered at query time.
type ActiveLink struct {
	Link     PointProviderLink
	Provider Provider
	Point    GeoPoint
}

// LinkRepository loads point/provider links and persists their status.
type LinkRepository interface {
	ListActive(ctx context.Context) ([]ActiveLink, error)
	StampStatus(ctx context.Context, linkID int64, key string, at time.Time) error
}
