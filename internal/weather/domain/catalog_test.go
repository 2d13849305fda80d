package weather

import (
	"reflect"
	"testing"
)

func TestCanonicalParamsDisjointFromDaily(t *testing.T) {
	daily := CanonicalParams(GranularityDaily)
	hourly := CanonicalParams(GranularityHourly)

	dailySet := make(map[string]bool, len(daily))
	for _, name := range daily {
		dailySet[name] = true
	}
	for _, name := range hourly {
		if dailySet[name] {
			t.Errorf("parameter %q in both hourly and daily sets", name)
		}
		if name == "date_time" {
			t.Error("date_time must not appear as a fetchable parameter")
		}
	}
}

func TestCanonicalParamsAllMapped(t *testing.T) {
	for _, g := range []Granularity{GranularityMinutely15, GranularityHourly, GranularityDaily} {
		for _, name := range CanonicalParams(g) {
			entry, ok := ParamCatalog[name]
			if !ok {
				t.Errorf("%s: parameter %q missing from catalog", g, name)
				continue
			}
			if entry.OpenMeteo == "" {
				t.Errorf("%s: parameter %q has no provider field", g, name)
			}
		}
	}
}

func TestOpenMeteoParamsDeduplicates(t *testing.T) {
	// et0_fao_evapotranspiration and its daily sum share one provider field.
	got := OpenMeteoParams([]string{"et0_fao_evapotranspiration", "et0_fao_evapotranspiration_sum", "temperature"})
	want := []string{"et0_fao_evapotranspiration", "temperature_2m"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("OpenMeteoParams = %v, want %v", got, want)
	}
}

func TestOpenMeteoParamsDropsUnknown(t *testing.T) {
	got := OpenMeteoParams([]string{"no_such_parameter", "dew_point"})
	want := []string{"dew_point_2m"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("OpenMeteoParams = %v, want %v", got, want)
	}
}

func TestCanonicalForOpenMeteoRoundTrip(t *testing.T) {
	name, ok := CanonicalForOpenMeteo("temperature_2m")
	if !ok || name != "temperature" {
		t.Fatalf("CanonicalForOpenMeteo(temperature_2m) = (%q, %v)", name, ok)
	}
	if _, ok := CanonicalForOpenMeteo("bogus_field"); ok {
		t.Fatal("unknown provider field must not resolve")
	}
	// Shared field resolves deterministically to the smallest canonical name.
	name, ok = CanonicalForOpenMeteo("et0_fao_evapotranspiration")
	if !ok || name != "et0_fao_evapotranspiration" {
		t.Fatalf("shared field resolved to %q", name)
	}
}

func TestDataTypeFor(t *testing.T) {
	cases := []struct {
		mode        Mode
		granularity Granularity
		want        DataType
	}{
		{ModeForecast, GranularityMinutely15, Forecast15m},
		{ModeForecast, GranularityHourly, ForecastHourly},
		{ModeForecast, GranularityDaily, ForecastDaily},
		{ModeHistory, GranularityMinutely15, History15m},
		{ModeHistory, GranularityHourly, HistoryHourly},
		{ModeHistory, GranularityDaily, HistoryDaily},
	}
	for _, tc := range cases {
		got, err := DataTypeFor(tc.mode, tc.granularity)
		if err != nil || got != tc.want {
			t.Errorf("DataTypeFor(%s, %s) = (%s, %v), want %s", tc.mode, tc.granularity, got, err, tc.want)
		}
	}
	if _, err := DataTypeFor("nowcast", GranularityHourly); err == nil {
		t.Fatal("unknown mode must error")
	}
}
