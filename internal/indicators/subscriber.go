package indicators

import (
	"context"
	"errors"
	"log"
	"time"

	"agromet-cloud/internal/eventing"
)

// Subscriber recomputes a point's indicators after every completed
// ingestion, over the current year to date. Recomputation is cheap
// relative to ingestion and keeps the indicators convergent with
// whatever the last job changed.
type Subscriber struct {
	engine *Engine
	logger *log.Logger
	now    func() time.Time
	params RunAllParams
}

// NewSubscriber constructs a Subscriber.
func NewSubscriber(engine *Engine, logger *log.Logger) (*Subscriber, error) {
	if engine == nil {
		return nil, errors.New("indicators: nil engine")
	}
	if logger == nil {
		return nil, errors.New("indicators: nil logger")
	}
	return &Subscriber{
		engine: engine,
		logger: logger,
		now:    time.Now,
		params: DefaultRunAllParams(),
	}, nil
}

// Register wires the subscriber onto the bus.
func (s *Subscriber) Register(bus eventing.EventBus) {
	bus.Subscribe(eventing.EventTypeOf[eventing.IngestionCompleted](), s.handle)
}

func (s *Subscriber) handle(ctx context.Context, event any) error {
	completed, ok := event.(eventing.IngestionCompleted)
	if !ok {
		return nil
	}
	now := s.now().UTC()
	start := time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)

	if _, err := s.engine.RunAll(ctx, completed.PointID, start, now, s.params); err != nil {
		s.logger.Printf("indicators: recompute point=%d after job=%s: %v", completed.PointID, completed.JobID, err)
		return err
	}
	s.logger.Printf("indicators: recomputed point=%d window=[%s, %s]",
		completed.PointID, start.Format("2006-01-02"), now.Format("2006-01-02"))
	return nil
}
