package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"tokomitra/backend/internal/domain"
	"tokomitra/backend/internal/store"
)

// keyedLocks serializes recalculation per target while letting different
// targets recalculate concurrently.
type keyedLocks struct {
	locks sync.Map
}

func (k *keyedLocks) lock(key string) *sync.Mutex {
	mu, _ := k.locks.LoadOrStore(key, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

func (k *keyedLocks) release(key string) {
	k.locks.Delete(key)
}

// periodWindow returns the half-open UTC window [start, end) containing now
// for the given period. Weeks start on Sunday.
func periodWindow(period string, now time.Time) (time.Time, time.Time, error) {
	now = now.UTC()
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	switch period {
	case domain.PeriodDaily:
		return day, day.AddDate(0, 0, 1), nil
	case domain.PeriodWeekly:
		start := day.AddDate(0, 0, -int(day.Weekday()))
		return start, start.AddDate(0, 0, 7), nil
	case domain.PeriodMonthly:
		start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		return start, start.AddDate(0, 1, 0), nil
	case domain.PeriodYearly:
		start := time.Date(now.Year(), 1, 1, 0, 0, 0, 0, time.UTC)
		return start, start.AddDate(1, 0, 0), nil
	default:
		return time.Time{}, time.Time{}, fmt.Errorf("%w: unknown period %q", store.ErrValidation, period)
	}
}

func (s *Service) CreateTarget(ctx context.Context, req domain.TargetCreateRequest) (domain.Target, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" || req.TargetAmountCents < 1 {
		return domain.Target{}, fmt.Errorf("%w: target needs a title and a positive amount", store.ErrValidation)
	}
	start, end, err := periodWindow(req.Period, time.Now())
	if err != nil {
		return domain.Target{}, err
	}

	callCtx, cancel := s.boundedCtx(ctx)
	defer cancel()
	created, err := s.repo.CreateTarget(callCtx, domain.Target{
		Title:             title,
		TargetAmountCents: req.TargetAmountCents,
		Period:            req.Period,
		StartDate:         start,
		EndDate:           end,
		Status:            domain.TargetActive,
	})
	if err != nil {
		return domain.Target{}, err
	}
	return *created, nil
}

func (s *Service) ListTargets(ctx context.Context, status string) ([]domain.Target, error) {
	if status != "" && status != domain.TargetActive && status != domain.TargetCompleted && status != domain.TargetExpired {
		return nil, fmt.Errorf("%w: unknown target status %q", store.ErrValidation, status)
	}
	return s.repo.ListTargetsByStatus(ctx, status)
}

// RecalculateTargets recomputes every active target's window, progress and
// status from transaction history. Idempotent: a second pass with no new
// transactions writes identical values.
func (s *Service) RecalculateTargets(ctx context.Context) ([]domain.Target, error) {
	callCtx, cancel := s.boundedCtx(ctx)
	targets, err := s.repo.ListTargetsByStatus(callCtx, domain.TargetActive)
	cancel()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	result := make([]domain.Target, 0, len(targets))
	for _, target := range targets {
		updated, err := s.recalculateTarget(ctx, target, now)
		if err != nil {
			log.Printf("[target] WARN: recalculation failed id=%s: %v", target.ID, err)
			continue
		}
		result = append(result, *updated)
	}

	s.metrics.TargetRecalculations.Inc()
	return result, nil
}

func (s *Service) recalculateTarget(ctx context.Context, target domain.Target, now time.Time) (*domain.Target, error) {
	mu := s.targetLocks.lock(target.ID)
	mu.Lock()
	defer mu.Unlock()

	start, end, err := periodWindow(target.Period, now)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := s.boundedCtx(ctx)
	current, err := s.repo.SumTransactionAmounts(callCtx, start, end, []string{domain.TxTypeIncome, domain.TxTypeSale})
	cancel()
	if err != nil {
		return nil, err
	}

	status := domain.TargetActive
	switch {
	case current >= target.TargetAmountCents:
		status = domain.TargetCompleted
	case now.After(end):
		status = domain.TargetExpired
	}

	callCtx, cancel = s.boundedCtx(ctx)
	defer cancel()
	updated, err := s.repo.UpdateTargetProgress(callCtx, target.ID, start, end, current, status)
	if err != nil {
		return nil, err
	}
	if status != target.Status {
		log.Printf("[target] status change id=%s %s -> %s current=%d target=%d", target.ID, target.Status, status, current, target.TargetAmountCents)
	}
	if status != domain.TargetActive {
		// The target no longer appears in the active list, so its lock
		// entry can be dropped instead of accumulating forever.
		s.targetLocks.release(target.ID)
	}
	return updated, nil
}
