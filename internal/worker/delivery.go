package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Ringer/internal/blob"
	"github.com/shaiso/Ringer/internal/callout"
	"github.com/shaiso/Ringer/internal/domain"
	"github.com/shaiso/Ringer/internal/repo"
	"github.com/shaiso/Ringer/internal/telemetry"
)

// ReminderStore — доступ воркера к хранилищу напоминаний.
// Реализуется repo.ReminderRepo.
type ReminderStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Reminder, error)
	CheckPending(ctx context.Context, id uuid.UUID) (*repo.PendingState, error)
	TryMarkDelivered(ctx context.Context, id uuid.UUID) (bool, error)
}

// Caller — телефония. Реализуется callout.Client.
type Caller interface {
	PlaceCall(ctx context.Context, reminderID uuid.UUID, channelID string) (*callout.Receipt, error)
}

// AttemptLog — журнал исходов. Реализуется repo.AttemptRepo.
type AttemptLog interface {
	Record(ctx context.Context, a *domain.DeliveryAttempt) error
}

// Deliverer выполняет звонковые jobs.
//
// Ровно-один-раз для финальной доставки держится на двух опорах:
// быстрой проверке CheckPending до звонка и CAS TryMarkDelivered после.
// Сам звонок идёт вне блокировок, поэтому в окне между звонком и CAS
// возможен дубль звонка — принятый at-least-once компромисс,
// состояние при этом фиксируется ровно один раз.
type Deliverer struct {
	store    ReminderStore
	caller   Caller
	blobs    blob.Store
	attempts AttemptLog
	policy   RetryPolicy
	logger   *slog.Logger
}

// NewDeliverer создаёт Deliverer.
func NewDeliverer(store ReminderStore, caller Caller, blobs blob.Store, attempts AttemptLog, policy RetryPolicy, logger *slog.Logger) *Deliverer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Deliverer{
		store:    store,
		caller:   caller,
		blobs:    blobs,
		attempts: attempts,
		policy:   policy,
		logger:   logger,
	}
}

// Deliver выполняет один звонковый job.
//
// Ожидаемые пропуски (доставлено, устарело, гонка проиграна)
// завершаются nil: job считается обработанным. Ошибка возвращается
// только при исчерпании retry — сообщение уйдёт в DLQ.
func (d *Deliverer) Deliver(ctx context.Context, job *domain.Job) error {
	logger := telemetry.WithReminderID(d.logger, job.ReminderID.String())

	rem, err := d.store.GetByID(ctx, job.ReminderID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			logger.Warn("reminder gone, dropping call job")
			return nil
		}
		return fmt.Errorf("load reminder: %w", err)
	}

	// Свежий снимок состояния под блокировкой строки.
	state, err := d.store.CheckPending(ctx, job.ReminderID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			logger.Warn("reminder gone, dropping call job")
			return nil
		}
		return fmt.Errorf("check pending: %w", err)
	}

	if state.Delivered {
		logger.Info("reminder already delivered, skipping call")
		d.record(ctx, job.ReminderID, domain.OutcomeSkippedDelivered, 0, "")
		return nil
	}

	if job.IsStale(state.ScheduledAt) {
		logger.Info("call job is stale, skipping",
			"scheduled_for", job.ScheduledFor,
			"current", state.ScheduledAt,
		)
		d.record(ctx, job.ReminderID, domain.OutcomeSkippedStale, 0, "")
		return nil
	}

	// Звонок с retry — вне блокировок.
	attempts, callErr := d.placeCall(ctx, rem)
	if callErr != nil {
		d.record(ctx, job.ReminderID, domain.OutcomeFailed, attempts, callErr.Error())
		return fmt.Errorf("%w: %v", ErrRetryExhausted, callErr)
	}

	if !job.Final {
		logger.Info("lead call placed", "attempts", attempts)
		d.record(ctx, job.ReminderID, domain.OutcomeCalled, attempts, "")
		return nil
	}

	won, err := d.store.TryMarkDelivered(ctx, job.ReminderID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			logger.Warn("reminder gone after call")
			return nil
		}
		return fmt.Errorf("mark delivered: %w", err)
	}
	if !won {
		logger.Info("lost delivery race, state untouched")
		d.record(ctx, job.ReminderID, domain.OutcomeSkippedRaceLost, attempts, "")
		return nil
	}

	// Артефакт больше не нужен. Ошибка удаления не откатывает доставку.
	if d.blobs != nil {
		if err := d.blobs.Delete(ctx, job.ReminderID); err != nil {
			logger.Warn("failed to delete audio artifact", "error", err)
		}
	}

	logger.Info("reminder delivered", "attempts", attempts)
	d.record(ctx, job.ReminderID, domain.OutcomeDelivered, attempts, "")
	return nil
}

// placeCall звонит с повторами по политике.
func (d *Deliverer) placeCall(ctx context.Context, rem *domain.Reminder) (int, error) {
	if d.caller == nil {
		return 0, ErrNoCaller
	}

	return retryCall(ctx, d.policy, d.logger, "place call", func() error {
		callCtx, cancel := context.WithTimeout(ctx, time.Minute)
		defer cancel()

		receipt, err := d.caller.PlaceCall(callCtx, rem.ID, rem.ChannelID)
		if err != nil {
			return err
		}
		d.logger.Debug("call accepted", "reminder_id", rem.ID, "call_sid", receipt.SID)
		return nil
	})
}

// record пишет исход в журнал; ошибка записи не влияет на job.
func (d *Deliverer) record(ctx context.Context, reminderID uuid.UUID, outcome domain.Outcome, attempts int, errText string) {
	telemetry.Deliveries.WithLabelValues(string(outcome)).Inc()

	if d.attempts == nil {
		return
	}
	a := domain.NewAttempt(reminderID, domain.AttemptCall, outcome, attempts, errText)
	if err := d.attempts.Record(ctx, a); err != nil {
		d.logger.Warn("failed to record delivery attempt",
			"reminder_id", reminderID,
			"outcome", outcome,
			"error", err,
		)
	}
}
