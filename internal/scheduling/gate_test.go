package scheduling

import (
	"testing"
	"time"
)

func TestParseISODuration(t *testing.T) {
	cases := []struct {
		input string
		want  time.Duration
		ok    bool
	}{
		{"PT15M", 15 * time.Minute, true},
		{"PT1H", time.Hour, true},
		{"P1D", 24 * time.Hour, true},
		{"P1DT6H30M", 30*time.Hour + 30*time.Minute, true},
		{"PT90S", 90 * time.Second, true},
		{"P", 0, true},
		{"", 0, false},
		{"15m", 0, false},
		{"PT1.5H", 0, false},
		{"P1W", 0, false},
		{"garbage", 0, false},
	}
	for _, tc := range cases {
		got, ok := ParseISODuration(tc.input)
		if ok != tc.ok || got != tc.want {
			t.Errorf("ParseISODuration(%q) = (%v, %v), want (%v, %v)", tc.input, got, ok, tc.want, tc.ok)
		}
	}
}

func TestShouldRun(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	if ShouldRun("PT15M", now.Add(-10*time.Minute), now) {
		t.Fatal("10 minutes since last run: should not fire for PT15M")
	}
	if !ShouldRun("PT15M", now.Add(-16*time.Minute), now) {
		t.Fatal("16 minutes since last run: should fire for PT15M")
	}
	if !ShouldRun("PT15M", time.Time{}, now) {
		t.Fatal("cold start should always fire")
	}
	if ShouldRun("", now.Add(-24*time.Hour), now) {
		t.Fatal("missing period should never fire")
	}
	if ShouldRun("P", now.Add(-24*time.Hour), now) {
		t.Fatal("zero period should never fire")
	}
	if ShouldRun("every5min", time.Time{}, now) {
		t.Fatal("unparseable period should never fire, even on cold start")
	}
	// Boundary: exactly one period elapsed fires.
	if !ShouldRun("PT15M", now.Add(-15*time.Minute), now) {
		t.Fatal("exactly 15 minutes should fire")
	}
}
