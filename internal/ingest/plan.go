package ingest

import (
	"fmt"

	weather "agromet-cloud/internal/weather/domain"
)

// FetchPlan pins down what to pull for one granularity section and how
// to tag the rows afterwards.
type FetchPlan struct {
	Granularity    weather.Granularity
	ProviderParams []string
	DataTypeByMode map[weather.Mode]weather.DataType
}

// DefaultSections is the standard fetch order.
var DefaultSections = []weather.Granularity{
	weather.GranularityHourly,
	weather.GranularityDaily,
	weather.GranularityMinutely15,
}

// BuildPlans expands section names into concrete fetch plans. An
// unknown section fails the whole build; a half-configured link must
// not silently fetch less than asked.
func BuildPlans(sections []weather.Granularity) ([]FetchPlan, error) {
	plans := make([]FetchPlan, 0, len(sections))
	for _, section := range sections {
		switch section {
		case weather.GranularityHourly, weather.GranularityDaily, weather.GranularityMinutely15:
		default:
			return nil, fmt.Errorf("ingest: unknown section %q", section)
		}

		forecastType, err := weather.DataTypeFor(weather.ModeForecast, section)
		if err != nil {
			return nil, err
		}
		historyType, err := weather.DataTypeFor(weather.ModeHistory, section)
		if err != nil {
			return nil, err
		}
		plans = append(plans, FetchPlan{
			Granularity:    section,
			ProviderParams: weather.OpenMeteoParams(weather.CanonicalParams(section)),
			DataTypeByMode: map[weather.Mode]weather.DataType{
				weather.ModeForecast: forecastType,
				weather.ModeHistory:  historyType,
			},
		})
	}
	return plans, nil
}
