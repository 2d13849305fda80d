package scheduling

import (
	"time"
)

// DateRange is an inclusive span of calendar dates, both ends at
// midnight UTC. A single missing day has From == To.
type DateRange struct {
	From time.Time
	To   time.Time
}

// Days returns the range length in calendar days.
func (r DateRange) Days() int {
	return int(r.To.Sub(r.From).Hours()/24) + 1
}

// Day truncates a timestamp to its UTC calendar date.
func Day(ts time.Time) time.Time {
	ts = ts.UTC()
	return time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
}

// MissingRanges walks every calendar date in [start, end] and collects
// runs of consecutive days absent from existing, then slices each run
// left-aligned into sub-ranges of at most maxSpanDays days. Output is
// chronological and non-overlapping; empty iff nothing is missing.
// Pure: identical inputs always produce identical output.
func MissingRanges(existing map[time.Time]bool, start, end time.Time, maxSpanDays int) []DateRange {
	first := Day(start)
	last := Day(end)
	if last.Before(first) {
		return nil
	}

	var runs []DateRange
	var runStart, prev time.Time
	inRun := false
	for cur := first; !cur.After(last); cur = cur.AddDate(0, 0, 1) {
		if existing[cur] {
			if inRun {
				runs = append(runs, DateRange{From: runStart, To: prev})
				inRun = false
			}
			continue
		}
		if !inRun {
			runStart = cur
			inRun = true
		}
		prev = cur
	}
	if inRun {
		runs = append(runs, DateRange{From: runStart, To: prev})
	}

	if len(runs) == 0 {
		return nil
	}
	if maxSpanDays <= 0 {
		return runs
	}

	var clipped []DateRange
	for _, run := range runs {
		for sub := run.From; !sub.After(run.To); {
			subEnd := sub.AddDate(0, 0, maxSpanDays-1)
			if subEnd.After(run.To) {
				subEnd = run.To
			}
			clipped = append(clipped, DateRange{From: sub, To: subEnd})
			sub = subEnd.AddDate(0, 0, 1)
		}
	}
	return clipped
}
