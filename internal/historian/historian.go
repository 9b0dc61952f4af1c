// internal/historian/historian.go pops room events from the queue and persists
// them in batches, closing rooms that have gone quiet.
package historian

import (
	"context"
	"sync"
	"time"

	"github.com/jason-s-yu/tokenrivals/internal/models"
	"github.com/sirupsen/logrus"
)

const (
	popTimeout    = 3 * time.Second
	abandonPeriod = time.Minute
)

// Source yields queued events; (nil, nil) means nothing arrived in time.
type Source interface {
	Pop(ctx context.Context, timeout time.Duration) (*models.RoomEvent, error)
}

// Store persists batches and closes stale rooms.
type Store interface {
	InsertBatch(ctx context.Context, events []models.RoomEvent) error
	AbandonStale(ctx context.Context, cutoff time.Time) (int64, error)
}

// Service moves events from Source to Store.
type Service struct {
	source       Source
	store        Store
	logger       *logrus.Entry
	batchSize    int
	flushDelay   time.Duration
	abandonAfter time.Duration
	now          func() time.Time

	batchMu sync.Mutex
	batch   []models.RoomEvent
}

func NewService(source Source, store Store, logger *logrus.Entry, batchSize int, flushDelay, abandonAfter time.Duration) *Service {
	if batchSize <= 0 {
		batchSize = 1
	}
	return &Service{
		source:       source,
		store:        store,
		logger:       logger.WithField("component", "historian"),
		batchSize:    batchSize,
		flushDelay:   flushDelay,
		abandonAfter: abandonAfter,
		now:          time.Now,
		batch:        make([]models.RoomEvent, 0, batchSize),
	}
}

// Run blocks until ctx is done, then flushes what is left.
func (s *Service) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.flushLoop(ctx)
	}()
	go func() {
		defer wg.Done()
		s.abandonLoop(ctx)
	}()

	s.logger.Info("historian started")
	s.readLoop(ctx)
	wg.Wait()

	s.Flush(context.Background())
	s.logger.Info("historian stopped")
}

func (s *Service) readLoop(ctx context.Context) {
	for ctx.Err() == nil {
		ev, err := s.source.Pop(ctx, popTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.Errorf("pop: %v", err)
			continue
		}
		if ev == nil {
			continue
		}
		s.Append(ctx, *ev)
	}
}

func (s *Service) flushLoop(ctx context.Context) {
	ticker := time.NewTicker(s.flushDelay)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Flush(ctx)
		}
	}
}

func (s *Service) abandonLoop(ctx context.Context) {
	if s.abandonAfter <= 0 {
		return
	}
	ticker := time.NewTicker(abandonPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.AbandonStale(ctx)
		}
	}
}

// Append queues one event and flushes once the batch is full.
func (s *Service) Append(ctx context.Context, ev models.RoomEvent) {
	s.batchMu.Lock()
	s.batch = append(s.batch, ev)
	full := len(s.batch) >= s.batchSize
	s.batchMu.Unlock()
	if full {
		s.Flush(ctx)
	}
}

// Flush writes the pending batch in one transaction. A failed batch is
// put back in front of newer events.
func (s *Service) Flush(ctx context.Context) {
	s.batchMu.Lock()
	if len(s.batch) == 0 {
		s.batchMu.Unlock()
		return
	}
	pending := make([]models.RoomEvent, len(s.batch))
	copy(pending, s.batch)
	s.batch = s.batch[:0]
	s.batchMu.Unlock()

	if err := s.store.InsertBatch(ctx, pending); err != nil {
		s.logger.Errorf("flush %d events: %v", len(pending), err)
		s.batchMu.Lock()
		s.batch = append(pending, s.batch...)
		s.batchMu.Unlock()
		return
	}
	s.logger.Debugf("flushed %d events", len(pending))
}

// AbandonStale closes rooms with no event within abandonAfter.
func (s *Service) AbandonStale(ctx context.Context) {
	n, err := s.store.AbandonStale(ctx, s.now().Add(-s.abandonAfter))
	if err != nil {
		s.logger.Errorf("abandon stale rooms: %v", err)
		return
	}
	if n > 0 {
		s.logger.Infof("marked %d rooms abandoned", n)
	}
}

// Pending reports the number of events not yet persisted.
func (s *Service) Pending() int {
	s.batchMu.Lock()
	defer s.batchMu.Unlock()
	return len(s.batch)
}
