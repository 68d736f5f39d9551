// Package sweep — страховочный контур доставки.
//
// Очередь с TTL гарантирует «не раньше срока», но не «вовремя»:
// сообщение может задержаться у головы очереди, потеряться при сбое
// брокера или вовсе не встать (напоминание создано, когда брокер лежал).
// Sweep периодически выбирает недоставленные напоминания в горизонте
// lookahead и заново предлагает их к доставке. Дубли jobs безвредны:
// воркер пропускает уже доставленные, состояние фиксирует CAS.
package sweep

import (
	"context"
	"log/slog"
	"time"

	"github.com/shaiso/Ringer/internal/domain"
	"github.com/shaiso/Ringer/internal/telemetry"
)

// Значения по умолчанию.
const (
	DefaultInterval  = 30 * time.Second
	defaultLookahead = time.Minute
	defaultBatchSize = 100
)

// Store — выборка недоставленных напоминаний.
// Реализуется repo.ReminderRepo.
type Store interface {
	ListPending(ctx context.Context, before time.Time, limit int) ([]domain.Reminder, error)
}

// Submitter — постановка jobs. Реализуется dispatch.Dispatcher.
type Submitter interface {
	Schedule(ctx context.Context, job *domain.Job, at time.Time) error
}

// Sweeper выполняет периодический добор пропущенных доставок.
type Sweeper struct {
	store     Store
	submitter Submitter
	lookahead time.Duration
	batchSize int
	logger    *slog.Logger
	now       func() time.Time
}

// Config — конфигурация Sweeper.
type Config struct {
	Store     Store
	Submitter Submitter

	// Lookahead — горизонт выборки. 0 — одна минута.
	Lookahead time.Duration

	// BatchSize — максимум напоминаний за тик. 0 — 100.
	BatchSize int

	Logger *slog.Logger

	// Now — источник времени (для тестов). nil означает time.Now.
	Now func() time.Time
}

// New создаёт Sweeper.
func New(cfg Config) *Sweeper {
	lookahead := cfg.Lookahead
	if lookahead <= 0 {
		lookahead = defaultLookahead
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Sweeper{
		store:     cfg.Store,
		submitter: cfg.Submitter,
		lookahead: lookahead,
		batchSize: batchSize,
		logger:    logger,
		now:       now,
	}
}

// Tick выполняет один проход: выбирает недоставленные напоминания
// в горизонте и ставит финальные звонки на их ScheduledAt
// (просроченные уходят немедленно). ScheduledFor захватывается,
// как и у обычных jobs: горизонт включает ещё не наступившие
// напоминания, и без захвата перенос в этом окне привёл бы
// к звонку по старому времени.
// Ошибка постановки одного напоминания не прерывает проход.
func (s *Sweeper) Tick(ctx context.Context) error {
	before := s.now().Add(s.lookahead)

	pending, err := s.store.ListPending(ctx, before, s.batchSize)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return nil
	}

	submitted := 0
	for i := range pending {
		rem := &pending[i]

		job := &domain.Job{
			Kind:         domain.JobCallDeliver,
			ReminderID:   rem.ID,
			Final:        true,
			ScheduledFor: rem.ScheduledAt,
		}

		if err := s.submitter.Schedule(ctx, job, rem.ScheduledAt); err != nil {
			s.logger.Error("failed to submit sweep job",
				"reminder_id", rem.ID,
				"scheduled_at", rem.ScheduledAt,
				"error", err,
			)
			continue
		}
		submitted++
		telemetry.SweepSubmitted.Inc()
	}

	s.logger.Info("sweep tick", "pending", len(pending), "submitted", submitted)
	return nil
}
