package weather

import (
	"context"
	"fmt"
	"time"
)

// Mode distinguishes forecast fetches from historical backfill.
type Mode string

const (
	ModeForecast Mode = "forecast"
	ModeHistory  Mode = "history"
)

// Granularity is the time resolution of a series section.
type Granularity string

const (
	GranularityMinutely15 Granularity = "minutely_15"
	GranularityHourly     Granularity = "hourly"
	GranularityDaily      Granularity = "daily"
)

// DataType tags a stored row with mode and granularity. Six variants.
type DataType string

const (
	Forecast15m    DataType = "forecast_15m"
	ForecastHourly DataType = "forecast_hourly"
	ForecastDaily  DataType = "forecast_daily"
	History15m     DataType = "history_15m"
	HistoryHourly  DataType = "history_hourly"
	HistoryDaily   DataType = "history_daily"
)

// DataTypeFor resolves the stored data type for a mode and granularity.
func DataTypeFor(mode Mode, granularity Granularity) (DataType, error) {
	switch mode {
	case ModeForecast:
		switch granularity {
		case GranularityMinutely15:
			return Forecast15m, nil
		case GranularityHourly:
			return ForecastHourly, nil
		case GranularityDaily:
			return ForecastDaily, nil
		}
	case ModeHistory:
		switch granularity {
		case GranularityMinutely15:
			return History15m, nil
		case GranularityHourly:
			return HistoryHourly, nil
		case GranularityDaily:
			return HistoryDaily, nil
		}
	}
	return "", fmt.Errorf("weather: no data type for mode %q granularity %q", mode, granularity)
}

// HistoryDataTypes lists the data types scanned for gap detection.
func HistoryDataTypes() []DataType {
	return []DataType{History15m, HistoryHourly, HistoryDaily}
}

// Measurement is one stored value of a weather parameter at a point.
// Within a (point, parameter, data_type) series timestamps are logically
// unique; re-ingestion replaces rather than duplicates.
type Measurement struct {
	PointID      int64
	Parameter    string
	TimestampUTC time.Time
	DataType     DataType

	ValueNumeric *float64
	ValueText    *string
}

// MeasurementRepository persists and queries weather series.
type MeasurementRepository interface {
	// ReplaceRange atomically deletes every row for the exact
	// point+data_type whose timestamp falls in [from, to] and inserts
	// the given rows, as one transaction. Returns the inserted count.
	ReplaceRange(ctx context.Context, pointID int64, dataType DataType, from, to time.Time, rows []Measurement) (int, error)
	// Insert bulk-inserts rows without clearing the range first.
	Insert(ctx context.Context, rows []Measurement) (int, error)
	// PresentDates returns the distinct UTC calendar dates with at
	// least one stored row for the point and data types in [from, to].
	PresentDates(ctx context.Context, pointID int64, dataTypes []DataType, from, to time.Time) (map[time.Time]bool, error)
	// Series loads one parameter's rows ordered by timestamp then
	// insertion order, for the given data types.
	Series(ctx context.Context, pointID int64, parameter string, dataTypes []DataType, from, to time.Time) ([]Measurement, error)
}
