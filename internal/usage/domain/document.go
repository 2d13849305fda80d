package usage

import (
	"time"
)

// Window names double as limit keys in provider config.
const (
	WindowMinute = "per_minute"
	WindowHour   = "per_hour"
	WindowDay    = "per_day"
	WindowMonth  = "per_month"
)

const (
	minuteSeconds = 60
	hourSeconds   = 3600

	// Calendar maps are pruned to roughly four months of days and two
	// years of months.
	maxDayKeys   = 120
	maxMonthKeys = 24
)

// Window is a sliding counter that resets wholesale once its age reaches
// the window duration. It never decays gradually.
type Window struct {
	Start time.Time `json:"start"`
	Count int       `json:"count"`
}

// EffectiveCount returns the window's count for capacity reads. An
// expired or absent window reads as zero; the actual reset happens
// lazily on the next locked Record.
func (w *Window) EffectiveCount(now time.Time, windowSeconds int) int {
	if w == nil || w.Start.IsZero() {
		return 0
	}
	if now.Sub(w.Start) >= time.Duration(windowSeconds)*time.Second {
		return 0
	}
	return w.Count
}

func (w *Window) roll(now time.Time, windowSeconds int) *Window {
	if w == nil || w.Start.IsZero() || now.Sub(w.Start) >= time.Duration(windowSeconds)*time.Second {
		return &Window{Start: now, Count: 1}
	}
	return &Window{Start: w.Start, Count: w.Count + 1}
}

// Counters is the nested usage block of a document.
type Counters struct {
	Total     int64          `json:"total"`
	ByDay     map[string]int `json:"by_day,omitempty"`
	ByMonth   map[string]int `json:"by_month,omitempty"`
	PerMinute *Window        `json:"per_minute,omitempty"`
	PerHour   *Window        `json:"per_hour,omitempty"`
}

// Document is the persisted usage state for one credential. It is only
// ever mutated through Record under the store's row lock; reads are
// observational copies.
type Document struct {
	Usage    Counters        `json:"usage"`
	Limits   map[string]int  `json:"limits,omitempty"`
	Exceeded map[string]bool `json:"exceeded,omitempty"`
}

// DayKey and MonthKey format calendar map keys.
func DayKey(now time.Time) string   { return now.UTC().Format("2006-01-02") }
func MonthKey(now time.Time) string { return now.UTC().Format("2006-01") }

// Record applies one request to the document: bumps the monotonic total
// and the calendar counters, rolls the sliding windows, and recomputes
// the informational limits/exceeded snapshot against the provider's
// configured limits. Callers must hold the document's exclusive lock.
func (d *Document) Record(now time.Time, limits map[string]int) {
	now = now.UTC()

	d.Usage.Total++

	if d.Usage.ByDay == nil {
		d.Usage.ByDay = make(map[string]int)
	}
	d.Usage.ByDay[DayKey(now)]++
	pruneOldest(d.Usage.ByDay, maxDayKeys)

	if d.Usage.ByMonth == nil {
		d.Usage.ByMonth = make(map[string]int)
	}
	d.Usage.ByMonth[MonthKey(now)]++
	pruneOldest(d.Usage.ByMonth, maxMonthKeys)

	d.Usage.PerMinute = d.Usage.PerMinute.roll(now, minuteSeconds)
	d.Usage.PerHour = d.Usage.PerHour.roll(now, hourSeconds)

	d.Limits = limits
	d.Exceeded = make(map[string]bool, len(limits))
	for key, limit := range limits {
		d.Exceeded[key] = d.EffectiveCount(key, now) >= limit
	}
}

// EffectiveCount returns the current count for one window or calendar
// key. Unknown keys read as zero.
func (d *Document) EffectiveCount(key string, now time.Time) int {
	now = now.UTC()
	switch key {
	case WindowMinute:
		return d.Usage.PerMinute.EffectiveCount(now, minuteSeconds)
	case WindowHour:
		return d.Usage.PerHour.EffectiveCount(now, hourSeconds)
	case WindowDay:
		return d.Usage.ByDay[DayKey(now)]
	case WindowMonth:
		return d.Usage.ByMonth[MonthKey(now)]
	default:
		return 0
	}
}

// HasCapacity reports whether every configured limit still has headroom.
// With no applicable limit keys the document always has capacity.
func (d *Document) HasCapacity(limits map[string]int, now time.Time) bool {
	for _, key := range []string{WindowMinute, WindowHour, WindowDay, WindowMonth} {
		limit, ok := limits[key]
		if !ok {
			continue
		}
		if d.EffectiveCount(key, now) >= limit {
			return false
		}
	}
	return true
}

// pruneOldest evicts lexicographically smallest keys until the map fits.
// Calendar keys (YYYY-MM-DD / YYYY-MM) sort chronologically, so the
// oldest entries go first.
func pruneOldest(m map[string]int, max int) {
	for len(m) > max {
		oldest := ""
		for key := range m {
			if oldest == "" || key < oldest {
				oldest = key
			}
		}
		delete(m, oldest)
	}
}
