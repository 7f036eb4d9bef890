package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/melih/lighthouse-notebooks/internal/core/domain"
	"github.com/melih/lighthouse-notebooks/internal/core/ports"
	"github.com/melih/lighthouse-notebooks/internal/log"
	"github.com/melih/lighthouse-notebooks/internal/metrics"
	"github.com/rs/zerolog"
)

// DefaultSweepStopTimeout bounds each stop issued by a sweep.
const DefaultSweepStopTimeout = 30 * time.Second

// Sweeper stops running containers whose timeout_minutes has elapsed.
// Stops go through the container service so they behave exactly like a user stop.
type Sweeper struct {
	containers  ports.ContainerService
	records     ports.RecordStore
	interval    time.Duration
	stopTimeout time.Duration
	logger      zerolog.Logger
	now         func() time.Time

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewSweeper creates a sweeper that runs every interval once started.
func NewSweeper(containers ports.ContainerService, records ports.RecordStore, interval time.Duration) *Sweeper {
	return &Sweeper{
		containers:  containers,
		records:     records,
		interval:    interval,
		stopTimeout: DefaultSweepStopTimeout,
		logger:      log.WithComponent("sweeper"),
		now:         func() time.Time { return time.Now().UTC() },
		stopCh:      make(chan struct{}),
	}
}

// Start begins the sweep loop
func (s *Sweeper) Start() {
	s.wg.Add(1)
	go s.run()
}

// Stop stops the sweep loop and waits for an in-flight sweep to finish
func (s *Sweeper) Stop() {
	close(s.stopCh)
	s.wg.Wait()
}

func (s *Sweeper) run() {
	defer s.wg.Done()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-s.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil {
				s.logger.Error().Err(err).Msg("sweep failed")
			}
		case <-s.stopCh:
			return
		}
	}
}

// Sweep performs one pass and returns how many records it stopped.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	recs, err := s.records.ListByStatus(ctx, domain.StatusRunning)
	if err != nil {
		return 0, err
	}

	now := s.now()
	stopped := 0
	for _, rec := range recs {
		if ctx.Err() != nil {
			return stopped, ctx.Err()
		}
		if rec.TimeoutMinutes <= 0 || now.Before(rec.ExpiresAt()) {
			continue
		}
		if s.expire(ctx, rec) {
			stopped++
		}
	}
	return stopped, nil
}

func (s *Sweeper) expire(ctx context.Context, rec *domain.ContainerRecord) bool {
	logger := log.WithContainer("sweeper", rec.ContainerID, rec.Name)
	ctx, cancel := context.WithTimeout(ctx, s.stopTimeout)
	defer cancel()

	err := s.containers.Stop(ctx, rec.UserID, rec.ContainerID)
	metrics.OperationsTotal.WithLabelValues("sweep", metrics.Result(err)).Inc()
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrNotFound):
		// Gone from the runtime, so the stop path never reached the record.
		if _, err := s.records.UpdateStatus(ctx, rec.ContainerID, domain.StatusStopped, ""); err != nil {
			logger.Error().Err(err).Msg("marking vanished record stopped failed")
			return false
		}
	default:
		logger.Warn().Err(err).Msg("stopping expired container failed")
		return false
	}
	logger.Info().Time("expired_at", rec.ExpiresAt()).Msg("expired container stopped")
	return true
}
