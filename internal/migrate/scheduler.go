// Package migrate seals account records that were stored before field
// encryption existed.
package migrate

import (
	"context"
	"sync"
	"time"

	"github.com/rogeecn/vpsdash/internal/account"
	"github.com/rs/zerolog/log"
)

const defaultRunTimeout = 2 * time.Minute

// Sealer is the part of the account gateway the scheduler drives.
type Sealer interface {
	SealLegacy(ctx context.Context) (account.SealResult, error)
}

// Scheduler runs a sealing pass at start and then on every tick.
type Scheduler struct {
	sealer     Sealer
	interval   time.Duration
	runTimeout time.Duration
	stopChan   chan struct{}
	doneChan   chan struct{}

	mu      sync.Mutex
	running bool
}

func NewScheduler(sealer Sealer, interval time.Duration) *Scheduler {
	return &Scheduler{
		sealer:     sealer,
		interval:   interval,
		runTimeout: defaultRunTimeout,
		stopChan:   make(chan struct{}),
		doneChan:   make(chan struct{}),
	}
}

func (s *Scheduler) Start() {
	if s.interval <= 0 {
		log.Debug().Msg("migrate: scheduler disabled")
		return
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		log.Debug().Msg("migrate: start ignored because it is already running")
		return
	}
	s.running = true
	s.stopChan = make(chan struct{})
	s.doneChan = make(chan struct{})
	s.mu.Unlock()

	log.Info().Dur("interval", s.interval).Msg("migrate: scheduler started")
	go s.loop()
}

func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		log.Debug().Msg("migrate: stop ignored because it is not running")
		return
	}
	s.running = false
	stopChan := s.stopChan
	doneChan := s.doneChan
	s.mu.Unlock()

	close(stopChan)
	<-doneChan
	log.Info().Msg("migrate: scheduler stopped")
}

func (s *Scheduler) loop() {
	defer close(s.doneChan)

	s.runOnce()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.runOnce()
		case <-s.stopChan:
			return
		}
	}
}

func (s *Scheduler) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), s.runTimeout)
	defer cancel()

	result, err := s.sealer.SealLegacy(ctx)
	if err != nil {
		log.Warn().
			Err(err).
			Int("scanned", result.Scanned).
			Int("sealed", result.Sealed).
			Int("skipped", result.Skipped).
			Msg("migrate: sealing pass failed")
		return
	}

	log.Debug().
		Int("scanned", result.Scanned).
		Int("sealed", result.Sealed).
		Int("skipped", result.Skipped).
		Msg("migrate: sealing pass completed")
}
