// Package dispatch ставит jobs на выполнение: немедленно через очередь,
// отложенно через per-message TTL, либо синхронно, когда брокер недоступен.
package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shaiso/Ringer/internal/domain"
	"github.com/shaiso/Ringer/internal/telemetry"
)

// ErrNoRunner возвращается, когда job некуда деть:
// брокер недоступен и синхронный Runner не сконфигурирован.
var ErrNoRunner = errors.New("no runner configured")

// Publisher — публикация jobs в брокер.
// Реализуется mq.Publisher.
type Publisher interface {
	PublishJob(ctx context.Context, job *domain.Job) error
	PublishJobDeferred(ctx context.Context, job *domain.Job, delay time.Duration) error
}

// Runner — синхронное выполнение job.
// Реализуется worker.Worker; используется как fallback без брокера.
type Runner interface {
	Run(ctx context.Context, job *domain.Job) error
}

// Dispatcher решает, как именно job попадёт к воркеру.
//
// С брокером jobs уходят в очередь (будущие — в jobs.deferred с TTL).
// Без брокера просроченные jobs выполняются синхронно через Runner,
// а будущие — таймером в памяти: недолговечно, но для локальной
// разработки достаточно; в проде пропуски добирает sweep.
type Dispatcher struct {
	publisher Publisher // nil — брокер недоступен
	runner    Runner
	logger    *slog.Logger
	now       func() time.Time
}

// Config — конфигурация Dispatcher.
type Config struct {
	Publisher Publisher
	Runner    Runner
	Logger    *slog.Logger

	// Now — источник времени (для тестов). nil означает time.Now.
	Now func() time.Time
}

// New создаёт новый Dispatcher.
func New(cfg Config) *Dispatcher {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Dispatcher{
		publisher: cfg.Publisher,
		runner:    cfg.Runner,
		logger:    logger,
		now:       now,
	}
}

// Schedule ставит job на выполнение в момент at.
// Прошедший (или нулевой) at означает немедленное выполнение.
func (d *Dispatcher) Schedule(ctx context.Context, job *domain.Job, at time.Time) error {
	delay := at.Sub(d.now())

	if d.publisher != nil {
		if err := d.publish(ctx, job, delay); err == nil {
			return nil
		}
		// Публикация не удалась — проваливаемся в синхронный режим.
	}

	return d.runLocal(ctx, job, delay)
}

// ScheduleReminder ставит все jobs для напоминания:
// генерацию артефакта сразу и звонки по расписанию.
// ScheduledFor захватывается на момент постановки — при переносе
// напоминания уже стоящие jobs будут отброшены воркером как устаревшие.
func (d *Dispatcher) ScheduleReminder(ctx context.Context, r *domain.Reminder) error {
	speech := &domain.Job{
		Kind:         domain.JobSpeechGenerate,
		ReminderID:   r.ID,
		ScheduledFor: r.ScheduledAt,
	}
	if err := d.Schedule(ctx, speech, time.Time{}); err != nil {
		return err
	}

	if r.HasLead() {
		lead := &domain.Job{
			Kind:         domain.JobCallDeliver,
			ReminderID:   r.ID,
			Final:        false,
			ScheduledFor: r.ScheduledAt,
		}
		if err := d.Schedule(ctx, lead, r.LeadAt()); err != nil {
			return err
		}
	}

	final := &domain.Job{
		Kind:         domain.JobCallDeliver,
		ReminderID:   r.ID,
		Final:        true,
		ScheduledFor: r.ScheduledAt,
	}
	return d.Schedule(ctx, final, r.ScheduledAt)
}

func (d *Dispatcher) publish(ctx context.Context, job *domain.Job, delay time.Duration) error {
	var err error
	mode := "queue"
	if delay > 0 {
		mode = "queue_deferred"
		err = d.publisher.PublishJobDeferred(ctx, job, delay)
	} else {
		err = d.publisher.PublishJob(ctx, job)
	}
	if err != nil {
		d.logger.Warn("publish job failed, falling back to local execution",
			"kind", job.Kind,
			"reminder_id", job.ReminderID,
			"error", err,
		)
		return err
	}

	telemetry.JobsDispatched.WithLabelValues(string(job.Kind), mode).Inc()
	return nil
}

// runLocal выполняет job без брокера: сразу или по таймеру в памяти.
func (d *Dispatcher) runLocal(ctx context.Context, job *domain.Job, delay time.Duration) error {
	if d.runner == nil {
		return ErrNoRunner
	}

	if delay <= 0 {
		telemetry.JobsDispatched.WithLabelValues(string(job.Kind), "sync").Inc()
		return d.runner.Run(ctx, job)
	}

	d.logger.Warn("broker unavailable, deferring job with in-memory timer",
		"kind", job.Kind,
		"reminder_id", job.ReminderID,
		"delay", delay,
	)
	telemetry.JobsDispatched.WithLabelValues(string(job.Kind), "timer").Inc()

	time.AfterFunc(delay, func() {
		// Исходный request context к этому моменту уже закрыт.
		runCtx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		if err := d.runner.Run(runCtx, job); err != nil {
			d.logger.Error("deferred local job failed",
				"kind", job.Kind,
				"reminder_id", job.ReminderID,
				"error", err,
			)
		}
	})
	return nil
}
