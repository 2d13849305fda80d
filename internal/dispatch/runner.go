package dispatch

import (
	"context"
	"errors"
	"log"
	"time"

	"agromet-cloud/internal/eventing"
	"agromet-cloud/internal/ingest"
	masterdata "agromet-cloud/internal/masterdata/domain"
	"agromet-cloud/internal/observability/metrics"
	usageapp "agromet-cloud/internal/usage/application"
)

// Runner executes one job end to end: ingest, account usage, stamp the
// link's last-run status and announce completion on the bus.
type Runner struct {
	pipeline *ingest.Pipeline
	counter  *usageapp.Counter
	links    masterdata.LinkRepository
	bus      eventing.EventBus
	logger   *log.Logger
	now      func() time.Time
}

// NewRunner constructs a Runner. The bus may be nil when nothing
// consumes completion events.
func NewRunner(
	pipeline *ingest.Pipeline,
	counter *usageapp.Counter,
	links masterdata.LinkRepository,
	bus eventing.EventBus,
	logger *log.Logger,
) (*Runner, error) {
	if pipeline == nil {
		return nil, errors.New("dispatch runner: nil pipeline")
	}
	if counter == nil {
		return nil, errors.New("dispatch runner: nil counter")
	}
	if links == nil {
		return nil, errors.New("dispatch runner: nil link repository")
	}
	if logger == nil {
		return nil, errors.New("dispatch runner: nil logger")
	}
	return &Runner{
		pipeline: pipeline,
		counter:  counter,
		links:    links,
		bus:      bus,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// Execute runs one job. Errors are returned for observability but a
// failed job has no effect beyond its own rows; the next cycle's gates
// re-detect whatever is still missing.
func (r *Runner) Execute(ctx context.Context, job Job) error {
	req := ingest.Request{
		ProviderCode: job.ProviderCode,
		PointID:      job.PointID,
		Lat:          job.Lat,
		Lon:          job.Lon,
		Mode:         job.Mode,
		From:         job.From,
		To:           job.To,
		Secret:       job.Secret,
		Sections:     job.Sections(),
	}
	req.OnExchange = func() {
		metrics.IncHTTPExchange(job.ProviderCode)
		if job.CredentialID == 0 {
			return
		}
		// Each HTTP exchange consumes quota whether or not the fetch
		// ultimately succeeds.
		doc, err := r.counter.RecordUse(ctx, job.CredentialID, job.Limits, r.now().UTC())
		if err != nil {
			r.logger.Printf("dispatch: job=%s record use credential=%d: %v", job.ID, job.CredentialID, err)
			return
		}
		metrics.IncUsageRecorded(doc.Exceeded)
	}

	started := r.now()
	summary, err := r.pipeline.Run(ctx, req)
	if err != nil {
		metrics.ObserveJob(string(job.Mode), metrics.ResultError, time.Since(started))
		r.logger.Printf("dispatch: job=%s link=%d mode=%s failed: %v", job.ID, job.LinkID, job.Mode, err)
		return err
	}
	metrics.ObserveJob(string(job.Mode), metrics.ResultSuccess, time.Since(started))
	for section, count := range summary.Inserted {
		metrics.AddIngestRows(string(section), count)
	}

	r.stampStatus(ctx, job)
	r.publish(ctx, job, summary)

	r.logger.Printf("dispatch: job=%s link=%d mode=%s done rows=%d", job.ID, job.LinkID, job.Mode, summary.Total())
	return nil
}

func (r *Runner) stampStatus(ctx context.Context, job Job) {
	at := r.now().UTC()
	for _, section := range job.Sections() {
		key := masterdata.StatusKey(string(job.Mode), string(section))
		if err := r.links.StampStatus(ctx, job.LinkID, key, at); err != nil {
			r.logger.Printf("dispatch: job=%s stamp %s: %v", job.ID, key, err)
		}
	}
}

func (r *Runner) publish(ctx context.Context, job Job, summary ingest.Summary) {
	if r.bus == nil {
		return
	}
	event := eventing.IngestionCompleted{
		JobID:             job.ID,
		LinkID:            job.LinkID,
		PointID:           job.PointID,
		Mode:              job.Mode,
		OccurredAt:        r.now().UTC(),
		InsertedBySection: summary.Inserted,
	}
	if err := r.bus.Publish(ctx, event); err != nil {
		r.logger.Printf("dispatch: job=%s publish completion: %v", job.ID, err)
	}
}
