package dispatch

import (
	"context"
	"errors"
	"log"
	"time"

	masterdata "agromet-cloud/internal/masterdata/domain"
	"agromet-cloud/internal/observability/metrics"
	"agromet-cloud/internal/scheduling"
	usageapp "agromet-cloud/internal/usage/application"
	weather "agromet-cloud/internal/weather/domain"
)

// forecastBuckets are the sections the forecast pass schedules, in
// check order. minutely_15 rides along with hourly at fetch time and
// has no period of its own.
var forecastBuckets = []weather.Granularity{
	weather.GranularityHourly,
	weather.GranularityDaily,
}

const defaultMaxGapSpanDays = 30

// CycleStats summarizes one dispatch cycle.
type CycleStats struct {
	At            time.Time
	Checked       int
	SkippedLimits int
	SkippedPeriod int
	Dispatched    int
}

// Sink receives emitted jobs, typically a worker pool.
type Sink interface {
	Enqueue(ctx context.Context, job Job) error
}

// Orchestrator walks active point/provider links once per cycle and
// emits fetch jobs. It performs no network I/O itself; capacity and
// schedule gating are the only decisions made here.
type Orchestrator struct {
	links          masterdata.LinkRepository
	picker         *usageapp.Picker
	measurements   weather.MeasurementRepository
	sink           Sink
	logger         *log.Logger
	now            func() time.Time
	maxGapSpanDays int
}

// NewOrchestrator constructs an Orchestrator.
func NewOrchestrator(
	links masterdata.LinkRepository,
	picker *usageapp.Picker,
	measurements weather.MeasurementRepository,
	sink Sink,
	logger *log.Logger,
	opts ...OrchestratorOption,
) (*Orchestrator, error) {
	if links == nil {
		return nil, errors.New("dispatch: nil link repository")
	}
	if picker == nil {
		return nil, errors.New("dispatch: nil picker")
	}
	if measurements == nil {
		return nil, errors.New("dispatch: nil measurement repository")
	}
	if sink == nil {
		return nil, errors.New("dispatch: nil sink")
	}
	if logger == nil {
		return nil, errors.New("dispatch: nil logger")
	}
	o := &Orchestrator{
		links:          links,
		picker:         picker,
		measurements:   measurements,
		sink:           sink,
		logger:         logger,
		now:            time.Now,
		maxGapSpanDays: defaultMaxGapSpanDays,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// OrchestratorOption configures the orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) OrchestratorOption {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// WithMaxGapSpanDays overrides how long a single history job's range
// may be.
func WithMaxGapSpanDays(days int) OrchestratorOption {
	return func(o *Orchestrator) {
		if days > 0 {
			o.maxGapSpanDays = days
		}
	}
}

// RunCycle executes one dispatch cycle: a forecast pass over every
// active link, then an independent history pass with a fresh capacity
// check per link. One link's failure never aborts the rest.
func (o *Orchestrator) RunCycle(ctx context.Context) (CycleStats, error) {
	now := o.now().UTC()
	stats := CycleStats{At: now}

	links, err := o.links.ListActive(ctx)
	if err != nil {
		return stats, err
	}

	for _, link := range links {
		stats.Checked++
		if err := o.forecastPass(ctx, link, now, &stats); err != nil {
			o.logger.Printf("dispatch: forecast pass link=%d: %v", link.Link.ID, err)
		}
	}
	for _, link := range links {
		if err := o.historyPass(ctx, link, now, &stats); err != nil {
			o.logger.Printf("dispatch: history pass link=%d: %v", link.Link.ID, err)
		}
	}

	metrics.ObserveCycle(stats.Checked, stats.SkippedLimits, stats.SkippedPeriod, stats.Dispatched, o.now().UTC().Sub(now))
	o.logger.Printf("dispatch: cycle done checked=%d skipped_limits=%d skipped_period=%d dispatched=%d",
		stats.Checked, stats.SkippedLimits, stats.SkippedPeriod, stats.Dispatched)
	return stats, nil
}

func (o *Orchestrator) forecastPass(ctx context.Context, link masterdata.ActiveLink, now time.Time, stats *CycleStats) error {
	sel, err := o.picker.PickCredential(ctx, link.Provider, now)
	if err != nil {
		return err
	}
	if !sel.HasCapacity {
		stats.SkippedLimits++
		return nil
	}

	periods := link.Provider.UpdateSchedule.Periods
	for _, bucket := range forecastBuckets {
		period := periods[string(bucket)]
		if period == "" {
			continue
		}
		lastRun := link.Link.LastRun(masterdata.StatusKey(string(weather.ModeForecast), string(bucket)))
		if !scheduling.ShouldRun(period, lastRun, now) {
			stats.SkippedPeriod++
			continue
		}
		if err := o.sink.Enqueue(ctx, newForecastJob(link, bucket, sel.Credential)); err != nil {
			return err
		}
		stats.Dispatched++
	}
	return nil
}

func (o *Orchestrator) historyPass(ctx context.Context, link masterdata.ActiveLink, now time.Time, stats *CycleStats) error {
	// Capacity is re-checked here on purpose: the forecast pass may have
	// consumed the credential this pass would otherwise have reused.
	sel, err := o.picker.PickCredential(ctx, link.Provider, now)
	if err != nil {
		return err
	}
	if !sel.HasCapacity {
		return nil
	}

	start := time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	end := scheduling.Day(now)

	present, err := o.measurements.PresentDates(ctx, link.Point.ID, weather.HistoryDataTypes(), start, now)
	if err != nil {
		return err
	}
	for _, gap := range scheduling.MissingRanges(present, start, end, o.maxGapSpanDays) {
		if err := o.sink.Enqueue(ctx, newHistoryJob(link, gap.From, gap.To, sel.Credential)); err != nil {
			return err
		}
		stats.Dispatched++
	}
	return nil
}
