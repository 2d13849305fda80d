package dispatch

import (
	"time"

	"github.com/google/uuid"

	masterdata "agromet-cloud/internal/masterdata/domain"
	weather "agromet-cloud/internal/weather/domain"
)

// Job is one unit of ingestion work emitted by the orchestrator.
// Forecast jobs carry a single bucket; history jobs carry a date range
// and fetch both hourly and daily sections.
type Job struct {
	ID           string
	LinkID       int64
	PointID      int64
	Lat          float64
	Lon          float64
	ProviderCode string
	Mode         weather.Mode

	// Bucket is set for forecast jobs only.
	Bucket weather.Granularity

	// From/To bound history jobs; zero for forecasts.
	From time.Time
	To   time.Time

	// CredentialID is zero when the provider runs keyless.
	CredentialID int64
	Secret       string
	Limits       map[string]int
}

func newForecastJob(link masterdata.ActiveLink, bucket weather.Granularity, cred *masterdata.Credential) Job {
	job := Job{
		ID:           uuid.NewString(),
		LinkID:       link.Link.ID,
		PointID:      link.Point.ID,
		Lat:          link.Point.Lat,
		Lon:          link.Point.Lon,
		ProviderCode: link.Provider.Code,
		Mode:         weather.ModeForecast,
		Bucket:       bucket,
		Limits:       link.Provider.Config.Limits,
	}
	if cred != nil {
		job.CredentialID = cred.ID
		job.Secret = cred.Secret
	}
	return job
}

func newHistoryJob(link masterdata.ActiveLink, from, to time.Time, cred *masterdata.Credential) Job {
	job := Job{
		ID:           uuid.NewString(),
		LinkID:       link.Link.ID,
		PointID:      link.Point.ID,
		Lat:          link.Point.Lat,
		Lon:          link.Point.Lon,
		ProviderCode: link.Provider.Code,
		Mode:         weather.ModeHistory,
		From:         from,
		To:           to,
		Limits:       link.Provider.Config.Limits,
	}
	if cred != nil {
		job.CredentialID = cred.ID
		job.Secret = cred.Secret
	}
	return job
}

// Sections resolves which granularity sections the job fetches.
func (j Job) Sections() []weather.Granularity {
	if j.Mode == weather.ModeForecast {
		return []weather.Granularity{j.Bucket}
	}
	return []weather.Granularity{weather.GranularityHourly, weather.GranularityDaily}
}
