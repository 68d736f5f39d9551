// Ringer Worker — выполняет jobs доставки напоминаний.
//
// Worker:
//   - Получает jobs из RabbitMQ (jobs.ready)
//   - Генерирует аудио-артефакты (speech.generate)
//   - Звонит получателям и фиксирует доставку (call.deliver)
//   - Реализует retry внешних вызовов с exponential backoff
//
// Workers масштабируются горизонтально: ровно-один-раз
// обеспечивает CAS в базе, а не единственность воркера.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/Ringer/internal/blob"
	"github.com/shaiso/Ringer/internal/callout"
	"github.com/shaiso/Ringer/internal/mq"
	"github.com/shaiso/Ringer/internal/repo"
	"github.com/shaiso/Ringer/internal/speech"
	"github.com/shaiso/Ringer/internal/telemetry"
	"github.com/shaiso/Ringer/internal/timeexpr"
	"github.com/shaiso/Ringer/internal/worker"
)

func main() {
	_ = godotenv.Load()

	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting ringer-worker")

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// DB pool
	pool, err := repo.NewPool(ctx)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("database connected")

	// Создаём репозитории
	reminderRepo := repo.NewReminderRepo(pool)
	attemptRepo := repo.NewAttemptRepo(pool)

	// Зона по умолчанию для озвучивания времени
	loc := time.UTC
	if name := os.Getenv("DEFAULT_TIMEZONE"); name != "" {
		loc, err = timeexpr.Location(name)
		if err != nil {
			logger.Error("invalid DEFAULT_TIMEZONE", "error", err)
			os.Exit(1)
		}
	}

	// Хранилище аудио-артефактов
	blobs, err := blob.NewFromEnv(ctx)
	if err != nil {
		logger.Error("failed to init blob store", "error", err)
		os.Exit(1)
	}

	// Внешние сервисы: без них worker деградирует, но работает
	var caller worker.Caller
	if c := callout.NewFromEnv(); c != nil {
		caller = c
	} else {
		logger.Warn("CALLOUT_API not set, deliveries will fail")
	}
	var synth worker.Synthesizer
	if s := speech.NewFromEnv(); s != nil {
		synth = s
	} else {
		logger.Warn("SPEECH_URL not set, speech jobs degrade without artifacts")
	}

	// RabbitMQ
	mqConn, err := mq.NewConnection(mq.URLFromEnv(), logger)
	if err != nil {
		logger.Error("failed to connect to RabbitMQ", "error", err)
		os.Exit(1)
	}
	defer mqConn.Close()
	logger.Info("RabbitMQ connected")

	// Создаём топологию
	if err := mq.SetupTopology(ctx, mqConn); err != nil {
		logger.Error("failed to setup topology", "error", err)
		os.Exit(1)
	}

	policy := worker.DefaultRetryPolicy()
	deliverer := worker.NewDeliverer(reminderRepo, caller, blobs, attemptRepo, policy, logger)
	speechWorker := worker.NewSpeechWorker(reminderRepo, synth, blobs, attemptRepo, policy, loc, logger)

	// Создаём worker
	w := worker.New(worker.Config{
		Deliverer: deliverer,
		Speech:    speechWorker,
		Conn:      mqConn,
		Logger:    logger,
	})

	// Запускаем worker
	if err := w.Start(ctx); err != nil {
		logger.Error("failed to start worker", "error", err)
		os.Exit(1)
	}

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	port := ":8082"
	if v := os.Getenv("WORKER_PORT"); v != "" {
		port = ":" + v
	}

	go func() {
		logger.Info("listening", "addr", port)
		if err := http.ListenAndServe(port, mux); err != nil {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	// Ожидаем сигнал завершения
	<-ctx.Done()

	// Останавливаем worker
	w.Stop()
	logger.Info("ringer-worker stopped")
}
