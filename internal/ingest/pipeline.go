package ingest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"agromet-cloud/internal/providers"
	weather "agromet-cloud/internal/weather/domain"
)

// Request is one unit of ingestion work: one point, one provider, one
// mode, one date window, every configured granularity section.
type Request struct {
	ProviderCode string
	PointID      int64
	Lat          float64
	Lon          float64
	Mode         weather.Mode

	// From/To bound the fetch. History requires both; forecast may
	// leave them zero and take the provider's default horizon.
	From time.Time
	To   time.Time

	Secret     string
	OnExchange func()

	// Sections overrides the pipeline's configured sections for this
	// request only. Empty means the pipeline default.
	Sections []weather.Granularity
}

// Summary reports how many rows each section landed.
type Summary struct {
	Inserted map[weather.Granularity]int
}

// Total sums inserted rows across sections.
func (s Summary) Total() int {
	total := 0
	for _, n := range s.Inserted {
		total += n
	}
	return total
}

// Pipeline fetches, normalizes and persists weather series. Saving is
// an overwrite of the exact [min, max] span the normalized rows cover,
// so re-running the same request converges instead of duplicating.
type Pipeline struct {
	registry     *providers.Registry
	measurements weather.MeasurementRepository
	sections     []weather.Granularity
	logger       *log.Logger
}

// NewPipeline constructs a pipeline over the default sections.
func NewPipeline(registry *providers.Registry, measurements weather.MeasurementRepository, logger *log.Logger, opts ...PipelineOption) (*Pipeline, error) {
	if registry == nil {
		return nil, errors.New("ingest: nil registry")
	}
	if measurements == nil {
		return nil, errors.New("ingest: nil measurement repository")
	}
	if logger == nil {
		return nil, errors.New("ingest: nil logger")
	}
	p := &Pipeline{
		registry:     registry,
		measurements: measurements,
		sections:     DefaultSections,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// PipelineOption configures the pipeline.
type PipelineOption func(*Pipeline)

// WithSections overrides which granularity sections get fetched.
func WithSections(sections ...weather.Granularity) PipelineOption {
	return func(p *Pipeline) {
		if len(sections) > 0 {
			p.sections = sections
		}
	}
}

// Run executes one ingestion request. Each section is fetched with a
// single adapter call; an empty section is a valid no-op, not an error.
func (p *Pipeline) Run(ctx context.Context, req Request) (Summary, error) {
	switch req.Mode {
	case weather.ModeForecast:
	case weather.ModeHistory:
		if req.From.IsZero() || req.To.IsZero() {
			return Summary{}, errors.New("ingest: history requires both dates")
		}
	default:
		return Summary{}, fmt.Errorf("ingest: unknown mode %q", req.Mode)
	}

	adapter, err := p.registry.Lookup(req.ProviderCode)
	if err != nil {
		return Summary{}, err
	}
	sections := req.Sections
	if len(sections) == 0 {
		sections = p.sections
	}
	plans, err := BuildPlans(sections)
	if err != nil {
		return Summary{}, err
	}

	summary := Summary{Inserted: make(map[weather.Granularity]int, len(plans))}
	for _, plan := range plans {
		query := providers.Query{
			Lat:         req.Lat,
			Lon:         req.Lon,
			Params:      plan.ProviderParams,
			Granularity: plan.Granularity,
			From:        req.From,
			To:          req.To,
			Secret:      req.Secret,
			OnExchange:  req.OnExchange,
		}

		var section providers.RawSection
		if req.Mode == weather.ModeForecast {
			section, err = adapter.Forecast(ctx, query)
		} else {
			section, err = adapter.History(ctx, query)
		}
		if err != nil {
			return summary, fmt.Errorf("ingest: fetch %s %s: %w", req.Mode, plan.Granularity, err)
		}

		dataType := plan.DataTypeByMode[req.Mode]
		rows, err := Normalize(section, req.PointID, dataType)
		if err != nil {
			return summary, fmt.Errorf("ingest: normalize %s: %w", plan.Granularity, err)
		}

		min, max, ok := Span(rows)
		if !ok {
			summary.Inserted[plan.Granularity] = 0
			continue
		}
		inserted, err := p.measurements.ReplaceRange(ctx, req.PointID, dataType, min, max, rows)
		if err != nil {
			return summary, fmt.Errorf("ingest: save %s: %w", plan.Granularity, err)
		}
		summary.Inserted[plan.Granularity] = inserted

		p.logger.Printf("ingest: point=%d provider=%s mode=%s section=%s rows=%d span=[%s, %s]",
			req.PointID, req.ProviderCode, req.Mode, plan.Granularity, inserted,
			min.Format(time.RFC3339), max.Format(time.RFC3339))
	}
	return summary, nil
}
