package dispatch

import (
	"context"
	"sync"
	"testing"
	"time"

	"agromet-cloud/internal/eventing"
	"agromet-cloud/internal/ingest"
	"agromet-cloud/internal/providers"
	usageapp "agromet-cloud/internal/usage/application"
	weather "agromet-cloud/internal/weather/domain"
)

type sectionAdapter struct {
	mu      sync.Mutex
	serves  map[weather.Granularity]providers.RawSection
	fetched []weather.Granularity
}

func (a *sectionAdapter) Forecast(_ context.Context, q providers.Query) (providers.RawSection, error) {
	return a.serve(q)
}

func (a *sectionAdapter) History(_ context.Context, q providers.Query) (providers.RawSection, error) {
	return a.serve(q)
}

func (a *sectionAdapter) serve(q providers.Query) (providers.RawSection, error) {
	a.mu.Lock()
	a.fetched = append(a.fetched, q.Granularity)
	a.mu.Unlock()
	if q.OnExchange != nil {
		q.OnExchange()
	}
	return a.serves[q.Granularity], nil
}

type countingMeasurements struct {
	stubMeasurements
	mu       sync.Mutex
	replaced int
}

func (c *countingMeasurements) ReplaceRange(_ context.Context, _ int64, _ weather.DataType, _, _ time.Time, rows []weather.Measurement) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.replaced++
	return len(rows), nil
}

func newTestRunner(t *testing.T, adapter providers.Adapter, store weather.MeasurementRepository, links *stubLinkRepo, docs usageapp.DocumentRepository, bus eventing.EventBus) *Runner {
	t.Helper()
	reg := providers.NewRegistry()
	reg.Register("open_meteo", adapter)
	pipeline, err := ingest.NewPipeline(reg, store, discardLogger())
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	counter, err := usageapp.NewCounter(docs)
	if err != nil {
		t.Fatalf("NewCounter: %v", err)
	}
	runner, err := NewRunner(pipeline, counter, links, bus, discardLogger())
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}
	return runner
}

func TestExecuteForecastJob(t *testing.T) {
	adapter := &sectionAdapter{serves: map[weather.Granularity]providers.RawSection{
		weather.GranularityHourly: {
			"time":           []any{"2026-03-10T00:00"},
			"temperature_2m": []any{2.5},
		},
	}}
	store := &countingMeasurements{}
	links := &stubLinkRepo{}
	docs := &memoryDocs{}
	bus := eventing.NewInMemoryBus()

	var events []eventing.IngestionCompleted
	bus.Subscribe(eventing.EventTypeOf[eventing.IngestionCompleted](), func(_ context.Context, event any) error {
		events = append(events, event.(eventing.IngestionCompleted))
		return nil
	})

	runner := newTestRunner(t, adapter, store, links, docs, bus)

	link := activeLink(1, map[string]string{"hourly": "PT1H"}, nil)
	job := newForecastJob(link, weather.GranularityHourly, nil)
	job.CredentialID = 11
	job.Limits = map[string]int{"per_day": 100}

	if err := runner.Execute(context.Background(), job); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	// Only the job's bucket was fetched.
	if len(adapter.fetched) != 1 || adapter.fetched[0] != weather.GranularityHourly {
		t.Fatalf("fetched sections = %v", adapter.fetched)
	}

	// One exchange, one usage record.
	doc, err := docs.Get(context.Background(), 11)
	if err != nil || doc == nil {
		t.Fatalf("usage doc = (%v, %v)", doc, err)
	}
	if doc.Usage.Total != 1 {
		t.Fatalf("usage total = %d, want 1", doc.Usage.Total)
	}

	// Status stamped for forecast_hourly only.
	if _, ok := links.stamps["forecast_hourly"]; !ok {
		t.Fatalf("stamps = %v, want forecast_hourly", links.stamps)
	}
	if len(links.stamps) != 1 {
		t.Fatalf("stamps = %v, want exactly one key", links.stamps)
	}

	if len(events) != 1 || events[0].InsertedBySection[weather.GranularityHourly] != 1 {
		t.Fatalf("events = %+v", events)
	}
}

func TestExecuteHistoryJobFetchesHourlyAndDaily(t *testing.T) {
	adapter := &sectionAdapter{serves: map[weather.Granularity]providers.RawSection{}}
	links := &stubLinkRepo{}
	runner := newTestRunner(t, adapter, &countingMeasurements{}, links, &memoryDocs{}, nil)

	link := activeLink(1, nil, nil)
	day := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	job := newHistoryJob(link, day, day.AddDate(0, 0, 10), nil)

	if err := runner.Execute(context.Background(), job); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(adapter.fetched) != 2 {
		t.Fatalf("fetched sections = %v, want hourly and daily", adapter.fetched)
	}
	if _, ok := links.stamps["history_hourly"]; !ok {
		t.Fatalf("stamps = %v, want history_hourly", links.stamps)
	}
	if _, ok := links.stamps["history_daily"]; !ok {
		t.Fatalf("stamps = %v, want history_daily", links.stamps)
	}
}

func TestExecuteKeylessJobRecordsNothing(t *testing.T) {
	adapter := &sectionAdapter{serves: map[weather.Granularity]providers.RawSection{}}
	docs := &memoryDocs{}
	runner := newTestRunner(t, adapter, &countingMeasurements{}, &stubLinkRepo{}, docs, nil)

	job := newForecastJob(activeLink(1, nil, nil), weather.GranularityHourly, nil)
	if err := runner.Execute(context.Background(), job); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(docs.docs) != 0 {
		t.Fatalf("usage docs = %v, want none for keyless job", docs.docs)
	}
}

func TestPoolDrainsQueue(t *testing.T) {
	adapter := &sectionAdapter{serves: map[weather.Granularity]providers.RawSection{}}
	links := &stubLinkRepo{}
	runner := newTestRunner(t, adapter, &countingMeasurements{}, links, &memoryDocs{}, nil)

	pool, err := NewPool(runner, discardLogger(), WithWorkers(3), WithJobTimeout(time.Second))
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	pool.Start()

	link := activeLink(1, nil, nil)
	for i := 0; i < 10; i++ {
		if err := pool.Enqueue(context.Background(), newForecastJob(link, weather.GranularityHourly, nil)); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}
	pool.Stop()

	adapter.mu.Lock()
	fetched := len(adapter.fetched)
	adapter.mu.Unlock()
	if fetched != 10 {
		t.Fatalf("fetched = %d, want 10", fetched)
	}

	if err := pool.Enqueue(context.Background(), Job{}); err == nil {
		t.Fatal("enqueue after stop must fail")
	}
}
