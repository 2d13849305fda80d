package masterdata

import (
	"context"
	"time"
)

// ProviderConfig holds per-provider configuration stored as JSON.
type ProviderConfig struct {
	BaseURL string         `json:"base_url,omitempty"`
	Limits  map[string]int `json:"limits,omitempty"`
}

// UpdateSchedule holds recurring fetch periods keyed by bucket name.
// Periods are restricted ISO-8601 durations, e.g. "PT15M" or "P1D".
type UpdateSchedule struct {
	Periods map[string]string `json:"periods,omitempty"`
}

// Provider identifies an external weather data source.
type Provider struct {
	ID             int64
	Code           string
	Name           string
	IsActive       bool
	Config         ProviderConfig
	UpdateSchedule UpdateSchedule
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Credential is a rate-limited access grant for one provider.
// A provider may own several credentials; dispatch tries them in
// creation order and uses the first with spare capacity.
type Credential struct {
	ID         int64
	ProviderID int64
	Secret     string
	IsActive   bool
	ExpiresAt  *time.Time
	CreatedAt  time.Time
}

// ProviderRepository loads providers and their credentials.
type ProviderRepository interface {
	GetByID(ctx context.Context, id int64) (*Provider, error)
	ListActiveCredentials(ctx context.Context, providerID int64) ([]Credential, error)
}
