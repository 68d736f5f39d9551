package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/shaiso/Ringer/internal/domain"
	"github.com/shaiso/Ringer/internal/mq"
)

const defaultPrefetch = 5

// Worker выполняет jobs доставки.
//
// Worker — stateless компонент системы, который:
//   - Получает jobs из очереди jobs.ready (event-driven)
//   - Генерирует аудио-артефакты (speech.generate)
//   - Звонит получателям и фиксирует доставку (call.deliver)
//   - Реализует retry внешних вызовов с exponential backoff
//
// Workers масштабируются горизонтально — несколько экземпляров
// могут потреблять из одной очереди; ровно-один-раз обеспечивает CAS
// в хранилище, а не единственность воркера.
type Worker struct {
	deliverer *Deliverer
	speech    *SpeechWorker

	conn     *mq.Connection
	consumer *mq.Consumer

	logger     *slog.Logger
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	stopped    bool
	stoppedMu  sync.RWMutex
}

// Config — конфигурация Worker.
type Config struct {
	Deliverer *Deliverer
	Speech    *SpeechWorker

	// Conn — соединение с RabbitMQ. nil допустим: Worker тогда
	// работает только как синхронный Runner для dispatcher-а.
	Conn *mq.Connection

	Logger *slog.Logger
}

// New создаёт новый Worker.
func New(cfg Config) *Worker {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Worker{
		deliverer: cfg.Deliverer,
		speech:    cfg.Speech,
		conn:      cfg.Conn,
		logger:    logger,
	}
}

// Run выполняет один job. Используется и consumer-ом, и dispatcher-ом
// как синхронный fallback без брокера.
func (w *Worker) Run(ctx context.Context, job *domain.Job) error {
	switch job.Kind {
	case domain.JobSpeechGenerate:
		return w.speech.Generate(ctx, job)
	case domain.JobCallDeliver:
		return w.deliverer.Deliver(ctx, job)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownJobKind, job.Kind)
	}
}

// Start запускает consumer для jobs.ready.
// Без соединения с брокером Start — no-op.
func (w *Worker) Start(ctx context.Context) error {
	if w.conn == nil {
		w.logger.Warn("no broker connection, worker serves as sync runner only")
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	w.cancelFunc = cancel

	w.consumer = mq.NewConsumer(w.conn, w.logger, mq.ConsumerConfig{
		Queue:    string(mq.QueueJobsReady),
		Handler:  w.handleJob,
		Prefetch: defaultPrefetch,
	})

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		if err := w.consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			w.logger.Error("job consumer error", "error", err)
		}
	}()

	w.logger.Info("worker started")
	return nil
}

// Stop останавливает Worker.
func (w *Worker) Stop() {
	w.stoppedMu.Lock()
	w.stopped = true
	w.stoppedMu.Unlock()

	w.logger.Info("stopping worker...")

	if w.cancelFunc != nil {
		w.cancelFunc()
	}

	if w.consumer != nil {
		w.consumer.Stop()
	}

	w.wg.Wait()

	w.logger.Info("worker stopped")
}

// IsStopped проверяет, остановлен ли Worker.
func (w *Worker) IsStopped() bool {
	w.stoppedMu.RLock()
	defer w.stoppedMu.RUnlock()
	return w.stopped
}

// handleJob обрабатывает сообщение из jobs.ready.
func (w *Worker) handleJob(ctx context.Context, delivery *mq.Delivery) error {
	job, err := mq.ParsePayload[domain.Job](&delivery.Message)
	if err != nil {
		w.logger.Error("failed to parse job payload", "error", err)
		return err
	}

	w.logger.Debug("received job",
		"kind", job.Kind,
		"reminder_id", job.ReminderID,
		"final", job.Final,
	)

	return w.Run(ctx, &job)
}
