package ingest

import (
	"testing"
	"time"

	"agromet-cloud/internal/providers"
	weather "agromet-cloud/internal/weather/domain"
)

func TestNormalizeTransposesColumnsToRows(t *testing.T) {
	section := providers.RawSection{
		"time":           {"2026-03-10T00:00", "2026-03-10T01:00"},
		"temperature_2m": {3.5, nil},
		"rain":           {0.0, 1.2},
		"sunrise":        {"2026-03-10T05:41", "2026-03-10T05:41"},
	}

	rows, err := Normalize(section, 7, weather.ForecastHourly)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}

	byKey := make(map[string]weather.Measurement)
	for _, row := range rows {
		byKey[row.Parameter+"@"+row.TimestampUTC.Format(time.RFC3339)] = row
	}

	first := byKey["temperature@2026-03-10T00:00:00Z"]
	if first.ValueNumeric == nil || *first.ValueNumeric != 3.5 {
		t.Fatalf("temperature row = %+v", first)
	}
	if first.PointID != 7 || first.DataType != weather.ForecastHourly {
		t.Fatalf("row tagging = %+v", first)
	}
	if _, ok := byKey["temperature@2026-03-10T01:00:00Z"]; ok {
		t.Fatal("null value must not produce a row")
	}

	sunrise := byKey["sunrise@2026-03-10T00:00:00Z"]
	if sunrise.ValueText == nil || *sunrise.ValueText != "2026-03-10T05:41" {
		t.Fatalf("sunrise row = %+v", sunrise)
	}
	if sunrise.ValueNumeric != nil {
		t.Fatal("text value must not also carry a numeric")
	}

	// rain at both hours, temperature at one, sunrise at both.
	if len(rows) != 5 {
		t.Fatalf("rows = %d, want 5", len(rows))
	}
}

func TestNormalizeDropsUnmappedFields(t *testing.T) {
	section := providers.RawSection{
		"time":              {"2026-03-10T00:00"},
		"proprietary_index": {42.0},
	}
	rows, err := Normalize(section, 1, weather.ForecastHourly)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("unmapped field produced rows: %v", rows)
	}
}

func TestNormalizeMissingTimeArrayFails(t *testing.T) {
	section := providers.RawSection{
		"temperature_2m": {1.0},
	}
	if _, err := Normalize(section, 1, weather.ForecastHourly); err == nil {
		t.Fatal("section without time array must fail")
	}
}

func TestNormalizeEmptySection(t *testing.T) {
	rows, err := Normalize(nil, 1, weather.ForecastHourly)
	if err != nil || rows != nil {
		t.Fatalf("Normalize(nil) = (%v, %v)", rows, err)
	}
}

func TestNormalizeRaggedArraysAndBadTimestamps(t *testing.T) {
	section := providers.RawSection{
		"time":           {"2026-03-10T00:00", "not-a-time", "2026-03-10T02:00"},
		"temperature_2m": {1.0, 2.0}, // shorter than time
	}
	rows, err := Normalize(section, 1, weather.HistoryHourly)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	// Only the first index has both a valid timestamp and a value.
	if len(rows) != 1 || *rows[0].ValueNumeric != 1.0 {
		t.Fatalf("rows = %+v", rows)
	}
}

func TestParseTimestampVariants(t *testing.T) {
	want := time.Date(2026, 3, 10, 12, 30, 0, 0, time.UTC)
	cases := []any{
		"2026-03-10T12:30",
		"2026-03-10T12:30:00",
		"2026-03-10 12:30",
		"2026-03-10T12:30:00Z",
		float64(want.Unix()),
		float64(want.UnixMilli()),
	}
	for _, input := range cases {
		got, ok := parseTimestampUTC(input)
		if !ok || !got.Equal(want) {
			t.Errorf("parseTimestampUTC(%v) = (%v, %v), want %v", input, got, ok, want)
		}
	}

	if got, ok := parseTimestampUTC("2026-03-10"); !ok || !got.Equal(time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("bare date = (%v, %v)", got, ok)
	}
	for _, bad := range []any{"", "garbage", true, []any{}} {
		if _, ok := parseTimestampUTC(bad); ok {
			t.Errorf("parseTimestampUTC(%v) should fail", bad)
		}
	}
}

func TestSpan(t *testing.T) {
	mk := func(ts time.Time) weather.Measurement {
		return weather.Measurement{TimestampUTC: ts}
	}
	a := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	b := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	c := time.Date(2026, 1, 3, 0, 0, 0, 0, time.UTC)

	min, max, ok := Span([]weather.Measurement{mk(c), mk(a), mk(b)})
	if !ok || !min.Equal(a) || !max.Equal(b) {
		t.Fatalf("Span = (%v, %v, %v)", min, max, ok)
	}
	if _, _, ok := Span(nil); ok {
		t.Fatal("empty span must report !ok")
	}
}
