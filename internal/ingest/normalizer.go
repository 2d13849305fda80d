package ingest

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"agromet-cloud/internal/providers"
	weather "agromet-cloud/internal/weather/domain"
)

// Normalize transposes one raw provider section into narrow measurement
// rows: one row per (timestamp, canonical parameter) pair. Provider
// fields without a canonical mapping are dropped, null values are
// skipped and rows with an unparseable timestamp are discarded whole.
// A section without a "time" array is malformed and fails hard.
func Normalize(section providers.RawSection, pointID int64, dataType weather.DataType) ([]weather.Measurement, error) {
	if len(section) == 0 {
		return nil, nil
	}
	times, ok := section["time"]
	if !ok {
		return nil, fmt.Errorf("ingest: section has no time array")
	}

	fields := make([]string, 0, len(section))
	for name := range section {
		if name == "time" {
			continue
		}
		fields = append(fields, name)
	}
	sort.Strings(fields)

	var rows []weather.Measurement
	for idx, rawTS := range times {
		ts, ok := parseTimestampUTC(rawTS)
		if !ok {
			continue
		}
		for _, field := range fields {
			canon, ok := weather.CanonicalForOpenMeteo(field)
			if !ok {
				continue
			}
			values := section[field]
			if idx >= len(values) || values[idx] == nil {
				continue
			}
			row := weather.Measurement{
				PointID:      pointID,
				Parameter:    canon,
				TimestampUTC: ts,
				DataType:     dataType,
			}
			switch v := values[idx].(type) {
			case float64:
				if math.IsNaN(v) || math.IsInf(v, 0) {
					continue
				}
				row.ValueNumeric = &v
			case bool:
				n := 0.0
				if v {
					n = 1.0
				}
				row.ValueNumeric = &n
			case string:
				if v == "" {
					continue
				}
				s := v
				row.ValueText = &s
			default:
				continue
			}
			rows = append(rows, row)
		}
	}
	return rows, nil
}

// Span returns the inclusive [min, max] timestamp window of the rows.
// ok is false for an empty slice.
func Span(rows []weather.Measurement) (min, max time.Time, ok bool) {
	for _, row := range rows {
		if !ok || row.TimestampUTC.Before(min) {
			min = row.TimestampUTC
		}
		if !ok || row.TimestampUTC.After(max) {
			max = row.TimestampUTC
		}
		ok = true
	}
	return min, max, ok
}

var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// parseTimestampUTC accepts the timestamp shapes providers actually
// emit: ISO strings with or without zone, bare dates, and epoch values
// in seconds or milliseconds. Naive times are treated as UTC.
func parseTimestampUTC(v any) (time.Time, bool) {
	switch t := v.(type) {
	case float64:
		return fromEpoch(t), true
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return time.Time{}, false
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return fromEpoch(float64(n)), true
		}
		trimmed := strings.TrimSuffix(s, "Z")
		for _, layout := range timestampLayouts {
			candidate := s
			if layout != time.RFC3339 {
				candidate = trimmed
			}
			parsed, err := time.Parse(layout, candidate)
			if err != nil {
				continue
			}
			return parsed.UTC(), true
		}
		return time.Time{}, false
	default:
		return time.Time{}, false
	}
}

func fromEpoch(v float64) time.Time {
	if math.Abs(v) >= 1e12 {
		v /= 1000
	}
	sec := int64(v)
	nsec := int64((v - float64(sec)) * float64(time.Second))
	return time.Unix(sec, nsec).UTC()
}
