package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/marketplace-escrow-ledger/internal/domain/escrow"
	"github.com/marketplace-escrow-ledger/internal/domain/moneyrequest"
	"github.com/marketplace-escrow-ledger/internal/platform/metrics"
	"github.com/panjf2000/ants/v2"
)

const (
	sweepAutoRelease = "auto_release"
	sweepExpiry      = "money_request_expiry"
)

type WorkerPoolConfig struct {
	Size int
}

// SweepReport counts what one pass did
type SweepReport struct {
	Released int
	Expired  int
	Skipped  int
	Failed   int
}

// SweepService releases escrows past their deadline and expires stale money requests.
// Candidates are fanned out to a worker pool; each one is re-checked under its own row lock.
type SweepService struct {
	escrowRepo   escrow.Repository
	requestRepo  moneyrequest.Repository
	escrows      EscrowService
	moneyRequest MoneyRequestService
	pool         *ants.Pool
	interval     time.Duration
	batchSize    int
	now          func() time.Time
	logger       *slog.Logger
}

func NewSweepService(
	escrowRepo escrow.Repository,
	requestRepo moneyrequest.Repository,
	escrows EscrowService,
	moneyRequest MoneyRequestService,
	config WorkerPoolConfig,
	interval time.Duration,
	batchSize int,
	logger *slog.Logger,
) (*SweepService, error) {
	pool, err := ants.NewPool(config.Size)
	if err != nil {
		return nil, err
	}

	return &SweepService{
		escrowRepo:   escrowRepo,
		requestRepo:  requestRepo,
		escrows:      escrows,
		moneyRequest: moneyRequest,
		pool:         pool,
		interval:     interval,
		batchSize:    batchSize,
		now:          func() time.Time { return time.Now().UTC() },
		logger:       logger,
	}, nil
}

// Start sweeps on every tick until ctx is cancelled
func (s *SweepService) Start(ctx context.Context) {
	s.logger.Info("Starting sweeper",
		"interval", s.interval.String(),
		"batch_size", s.batchSize,
		"workers", s.pool.Cap(),
	)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Sweeper stopping due to context cancellation.")
			return
		case <-ticker.C:
			report, err := s.RunOnce(ctx)
			if err != nil {
				s.logger.Error("Sweep failed", "error", err)
				continue
			}
			if report != (SweepReport{}) {
				s.logger.Info("Sweep finished",
					"released", report.Released,
					"expired", report.Expired,
					"skipped", report.Skipped,
					"failed", report.Failed,
				)
			}
		}
	}
}

// RunOnce performs a single pass over both sweeps
func (s *SweepService) RunOnce(ctx context.Context) (SweepReport, error) {
	now := s.now()

	due, err := s.escrowRepo.ListDueForRelease(ctx, now, s.batchSize)
	if err != nil {
		return SweepReport{}, fmt.Errorf("failed to list escrows due for release: %w", err)
	}
	expired, err := s.requestRepo.ListExpired(ctx, now, s.batchSize)
	if err != nil {
		return SweepReport{}, fmt.Errorf("failed to list expired money requests: %w", err)
	}

	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		report SweepReport
	)
	submit := func(sweep string, id uuid.UUID, run func() error) {
		wg.Add(1)
		task := func() {
			defer wg.Done()
			result := s.classify(sweep, id, run())
			metrics.SweepResultsTotal.WithLabelValues(sweep, result).Inc()

			mu.Lock()
			defer mu.Unlock()
			switch {
			case result == "skipped":
				report.Skipped++
			case result == "failed":
				report.Failed++
			case sweep == sweepAutoRelease:
				report.Released++
			default:
				report.Expired++
			}
		}
		if err := s.pool.Submit(task); err != nil {
			s.logger.Error("Failed to submit sweep task to worker pool", "sweep", sweep, "id", id.String(), "error", err)
			wg.Done()
			mu.Lock()
			report.Failed++
			mu.Unlock()
		}
	}

	for _, id := range due {
		id := id
		submit(sweepAutoRelease, id, func() error {
			_, err := s.escrows.AutoRelease(ctx, id, now)
			return err
		})
	}
	for _, id := range expired {
		id := id
		submit(sweepExpiry, id, func() error {
			_, err := s.moneyRequest.Expire(ctx, id, now)
			return err
		})
	}

	wg.Wait()
	return report, nil
}

// classify turns a task error into a metric label. Losing to a concurrent
// transition is expected and counts as skipped.
func (s *SweepService) classify(sweep string, id uuid.UUID, err error) string {
	switch {
	case err == nil:
		return "done"
	case errors.Is(err, escrow.ErrInvalidTransition{}), errors.Is(err, moneyrequest.ErrInvalidTransition{}):
		s.logger.Debug("Sweep candidate no longer eligible", "sweep", sweep, "id", id.String())
		return "skipped"
	default:
		s.logger.Error("Sweep task failed", "sweep", sweep, "id", id.String(), "error", err)
		return "failed"
	}
}

// Shutdown releases the worker pool
func (s *SweepService) Shutdown() {
	s.logger.Info("Shutting down sweep worker pool", "running_workers", s.pool.Running())
	s.pool.Release()
}

func (s *SweepService) Running() int {
	return s.pool.Running()
}

func (s *SweepService) Capacity() int {
	return s.pool.Cap()
}
