package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/mentorlink/internal/auth/store"
)

const DefaultHousekeepingInterval = time.Hour

// HousekeepingService periodically removes expired entries from stores that
// do not expire keys on their own. Reads never depend on it.
type HousekeepingService struct {
	Sweeper  store.Sweeper
	Logger   *slog.Logger
	Interval time.Duration

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService falls back to DefaultHousekeepingInterval for a
// non-positive interval.
func NewHousekeepingService(sweeper store.Sweeper, logger *slog.Logger, interval time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = DefaultHousekeepingInterval
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &HousekeepingService{
		Sweeper:  sweeper,
		Logger:   logger,
		Interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start runs a sweep immediately and then once per Interval until Stop.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping service started", "interval", s.Interval)
}

// Stop blocks until an in-progress sweep has finished.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping service stopped")
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	s.Sweep(context.Background())

	for {
		select {
		case <-ticker.C:
			s.Sweep(context.Background())
		case <-s.stopCh:
			return
		}
	}
}

// Sweep runs one cleanup pass and returns how many entries were removed.
func (s *HousekeepingService) Sweep(ctx context.Context) int64 {
	start := time.Now()

	n, err := s.Sweeper.DeleteExpired(ctx)
	if err != nil {
		s.Logger.Error("housekeeping sweep failed", "error", err)
		return 0
	}

	s.Logger.Info("housekeeping sweep completed", "deleted", n, "duration", time.Since(start))
	return n
}
