package indicators

import (
	"context"
	"sync"
	"testing"
	"time"

	weather "agromet-cloud/internal/weather/domain"
)

// seriesStore serves canned measurement rows keyed by parameter.
type seriesStore struct {
	rows map[string][]weather.Measurement
}

func (s *seriesStore) ReplaceRange(context.Context, int64, weather.DataType, time.Time, time.Time, []weather.Measurement) (int, error) {
	return 0, nil
}

func (s *seriesStore) Insert(context.Context, []weather.Measurement) (int, error) {
	return 0, nil
}

func (s *seriesStore) PresentDates(context.Context, int64, []weather.DataType, time.Time, time.Time) (map[time.Time]bool, error) {
	return nil, nil
}

func (s *seriesStore) Series(_ context.Context, _ int64, parameter string, dataTypes []weather.DataType, from, to time.Time) ([]weather.Measurement, error) {
	allowed := make(map[weather.DataType]bool, len(dataTypes))
	for _, dt := range dataTypes {
		allowed[dt] = true
	}
	var out []weather.Measurement
	for _, row := range s.rows[parameter] {
		if !allowed[row.DataType] {
			continue
		}
		if row.TimestampUTC.Before(from) || row.TimestampUTC.After(to) {
			continue
		}
		out = append(out, row)
	}
	return out, nil
}

type memoryIndicatorStore struct {
	mu    sync.Mutex
	saved []Result
}

func (m *memoryIndicatorStore) Save(_ context.Context, _ int64, result Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = append(m.saved, result)
	return nil
}

func num(v float64) *float64 { return &v }

func dailyRow(param string, day time.Time, v float64, dt weather.DataType) weather.Measurement {
	return weather.Measurement{PointID: 1, Parameter: param, TimestampUTC: day, DataType: dt, ValueNumeric: num(v)}
}

func hourlyRow(param string, ts time.Time, v float64, dt weather.DataType) weather.Measurement {
	return weather.Measurement{PointID: 1, Parameter: param, TimestampUTC: ts, DataType: dt, ValueNumeric: num(v)}
}

func TestComputeGDDWithFallbacks(t *testing.T) {
	d1 := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	d2 := d1.AddDate(0, 0, 1)
	d3 := d1.AddDate(0, 0, 2)

	store := &seriesStore{rows: map[string][]weather.Measurement{
		// Day 1 has an explicit mean, day 2 only max/min, day 3 only hourly.
		"temperature_mean": {dailyRow("temperature_mean", d1, 18, weather.HistoryDaily)},
		"temperature_max":  {dailyRow("temperature_max", d2, 24, weather.HistoryDaily)},
		"temperature_min":  {dailyRow("temperature_min", d2, 12, weather.HistoryDaily)},
		"temperature": {
			hourlyRow("temperature", d3.Add(6*time.Hour), 10, weather.HistoryHourly),
			hourlyRow("temperature", d3.Add(12*time.Hour), 20, weather.HistoryHourly),
		},
	}}
	engine, err := NewEngine(store, nil)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	result, err := engine.ComputeGDD(context.Background(), 1, d1, d3, 10)
	if err != nil {
		t.Fatalf("ComputeGDD: %v", err)
	}

	// Day1: 18-10=8. Day2: (24+12)/2-10=8. Day3: avg(10,20)-10=5.
	if total := result.Value["total"].(float64); total != 21 {
		t.Fatalf("total = %v, want 21", total)
	}
	daily := result.Value["daily"].([]map[string]any)
	if len(daily) != 3 {
		t.Fatalf("daily rows = %d", len(daily))
	}
	if daily[2]["gdd"].(float64) != 5 {
		t.Fatalf("day3 gdd = %v", daily[2]["gdd"])
	}
}

func TestComputeGDDNegativeClampsToZero(t *testing.T) {
	d := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	store := &seriesStore{rows: map[string][]weather.Measurement{
		"temperature_mean": {dailyRow("temperature_mean", d, 4, weather.HistoryDaily)},
	}}
	engine, _ := NewEngine(store, nil)

	result, err := engine.ComputeGDD(context.Background(), 1, d, d, 10)
	if err != nil {
		t.Fatalf("ComputeGDD: %v", err)
	}
	if total := result.Value["total"].(float64); total != 0 {
		t.Fatalf("total = %v, want 0 for sub-base temperature", total)
	}
}

func TestComputeGDDLastWinsOnOverlap(t *testing.T) {
	d := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	store := &seriesStore{rows: map[string][]weather.Measurement{
		// History first, forecast later in slice order: forecast value wins.
		"temperature_mean": {
			dailyRow("temperature_mean", d, 30, weather.HistoryDaily),
			dailyRow("temperature_mean", d, 20, weather.ForecastDaily),
		},
	}}
	engine, _ := NewEngine(store, nil)

	result, err := engine.ComputeGDD(context.Background(), 1, d, d, 10)
	if err != nil {
		t.Fatalf("ComputeGDD: %v", err)
	}
	if total := result.Value["total"].(float64); total != 10 {
		t.Fatalf("total = %v, want 10 (later row wins)", total)
	}
}

func TestComputeWaterBalanceCumulates(t *testing.T) {
	d1 := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	d2 := d1.AddDate(0, 0, 1)
	store := &seriesStore{rows: map[string][]weather.Measurement{
		"precipitation_sum": {
			dailyRow("precipitation_sum", d1, 2, weather.HistoryDaily),
			dailyRow("precipitation_sum", d2, 0, weather.HistoryDaily),
		},
		"et0_fao_evapotranspiration_sum": {
			dailyRow("et0_fao_evapotranspiration_sum", d1, 5, weather.HistoryDaily),
			dailyRow("et0_fao_evapotranspiration_sum", d2, 4, weather.HistoryDaily),
		},
	}}
	engine, _ := NewEngine(store, nil)

	result, err := engine.ComputeWaterBalance(context.Background(), 1, d1, d2)
	if err != nil {
		t.Fatalf("ComputeWaterBalance: %v", err)
	}
	// (5-2) + (4-0) = 7
	if total := result.Value["total"].(float64); total != 7 {
		t.Fatalf("total = %v, want 7", total)
	}
	daily := result.Value["daily"].([]map[string]any)
	if daily[1]["cum_balance"].(float64) != 7 {
		t.Fatalf("cum_balance = %v", daily[1]["cum_balance"])
	}
}

func TestComputeChillHoursBoundsExclusive(t *testing.T) {
	d := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	store := &seriesStore{rows: map[string][]weather.Measurement{
		"temperature": {
			hourlyRow("temperature", d.Add(1*time.Hour), 0, weather.HistoryHourly),   // boundary, excluded
			hourlyRow("temperature", d.Add(2*time.Hour), 3, weather.HistoryHourly),   // counted
			hourlyRow("temperature", d.Add(3*time.Hour), 7.2, weather.HistoryHourly), // boundary, excluded
			hourlyRow("temperature", d.Add(4*time.Hour), 5, weather.History15m),      // 15m rides along
		},
	}}
	engine, _ := NewEngine(store, nil)

	result, err := engine.ComputeChillHours(context.Background(), 1, d, d, DefaultChillTLow, DefaultChillTHigh)
	if err != nil {
		t.Fatalf("ComputeChillHours: %v", err)
	}
	if total := result.Value["total"].(int); total != 2 {
		t.Fatalf("total = %v, want 2", total)
	}
}

func TestComputeInfectionIndexRequiresBothSeries(t *testing.T) {
	d := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	h1, h2, h3 := d.Add(1*time.Hour), d.Add(2*time.Hour), d.Add(3*time.Hour)
	store := &seriesStore{rows: map[string][]weather.Measurement{
		"temperature": {
			hourlyRow("temperature", h1, 20, weather.HistoryHourly), // qualifies
			hourlyRow("temperature", h2, 30, weather.HistoryHourly), // too hot
			hourlyRow("temperature", h3, 20, weather.HistoryHourly), // no humidity reading
		},
		"relative_humidity": {
			hourlyRow("relative_humidity", h1, 95, weather.HistoryHourly),
			hourlyRow("relative_humidity", h2, 95, weather.HistoryHourly),
		},
	}}
	engine, _ := NewEngine(store, nil)

	result, err := engine.ComputeInfectionIndex(context.Background(), 1, d, d, 90, 15, 25)
	if err != nil {
		t.Fatalf("ComputeInfectionIndex: %v", err)
	}
	if total := result.Value["total"].(int); total != 1 {
		t.Fatalf("total = %v, want 1", total)
	}
}

func TestRunAllSavesEveryIndicator(t *testing.T) {
	d := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	store := &seriesStore{rows: map[string][]weather.Measurement{
		"temperature_mean": {dailyRow("temperature_mean", d, 15, weather.HistoryDaily)},
	}}
	sink := &memoryIndicatorStore{}
	engine, err := NewEngine(store, sink)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	results, err := engine.RunAll(context.Background(), 1, d, d, DefaultRunAllParams())
	if err != nil {
		t.Fatalf("RunAll: %v", err)
	}
	if len(results) != 5 || len(sink.saved) != 5 {
		t.Fatalf("results = %d, saved = %d, want 5 each", len(results), len(sink.saved))
	}
	codes := make(map[string]bool)
	for _, r := range sink.saved {
		codes[r.Code] = true
		if r.CalculatedAt.IsZero() {
			t.Errorf("%s saved without timestamp", r.Code)
		}
	}
	for _, code := range []string{CodeGDD, CodeWaterBalance, CodeChillHours, CodeInfectionIndex, CodeRadiationTotal} {
		if !codes[code] {
			t.Errorf("missing %s", code)
		}
	}
}
