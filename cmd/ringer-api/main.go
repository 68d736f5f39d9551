package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/Ringer/internal/api"
	"github.com/shaiso/Ringer/internal/blob"
	"github.com/shaiso/Ringer/internal/callout"
	"github.com/shaiso/Ringer/internal/dispatch"
	"github.com/shaiso/Ringer/internal/mq"
	"github.com/shaiso/Ringer/internal/repo"
	"github.com/shaiso/Ringer/internal/speech"
	"github.com/shaiso/Ringer/internal/telemetry"
	"github.com/shaiso/Ringer/internal/timeexpr"
	"github.com/shaiso/Ringer/internal/worker"
)

var (
	startTime = time.Now()
	reqTotal  = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ringer_api_http_requests_total",
		Help: "Total HTTP requests handled by ringer_api",
	})
)

func main() {
	_ = godotenv.Load()

	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting ringer-api")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Подключаемся к базе данных
	pool, err := repo.NewPool(ctx)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("connected to database")

	// Создаём репозитории
	reminderRepo := repo.NewReminderRepo(pool)
	attemptRepo := repo.NewAttemptRepo(pool)

	// Зона по умолчанию для разбора выражений времени
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

	// RabbitMQ: недоступность не фатальна, dispatcher уходит
	// в синхронный режим через Runner.
	var publisher *mq.Publisher
	mqConn, err := mq.NewConnection(mq.URLFromEnv(), logger)
	if err != nil {
		logger.Warn("RabbitMQ not available, dispatching jobs in-process", "error", err)
	} else {
		defer mqConn.Close()
		logger.Info("RabbitMQ connected")

		if err := mq.SetupTopology(ctx, mqConn); err != nil {
			logger.Warn("failed to setup topology", "error", err)
		}

		publisher = mq.NewPublisher(mqConn, logger)
	}

	// Fallback runner для работы без брокера
	runner := buildRunner(reminderRepo, attemptRepo, blobs, loc, logger)

	dispatcher := dispatch.New(dispatch.Config{
		Publisher: publisherOrNil(publisher),
		Runner:    runner,
		Logger:    logger,
	})

	// Создаём API handler
	handler := api.NewHandler(api.Config{
		ReminderRepo: reminderRepo,
		AttemptRepo:  attemptRepo,
		Dispatcher:   dispatcher,
		Location:     loc,
		Logger:       logger,
	})

	mux := http.NewServeMux()

	// Health и metrics
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		reqTotal.Inc()
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "ok %s", time.Since(startTime))
	})
	mux.Handle("/metrics", promhttp.Handler())

	// Регистрируем API маршруты
	handler.RegisterRoutes(mux)

	addr := ":8080"
	if v := os.Getenv("API_PORT"); v != "" {
		addr = ":" + v
	}

	// Создаём HTTP сервер с возможностью graceful shutdown
	server := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	// Запускаем сервер в горутине
	go func() {
		logger.Info("listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	// Graceful shutdown с таймаутом 10 секунд
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	logger.Info("stopped")
}

// buildRunner собирает Worker для синхронного выполнения jobs,
// когда API работает без брокера.
func buildRunner(reminderRepo *repo.ReminderRepo, attemptRepo *repo.AttemptRepo, blobs blob.Store, loc *time.Location, logger *slog.Logger) *worker.Worker {
	policy := worker.DefaultRetryPolicy()

	var caller worker.Caller
	if c := callout.NewFromEnv(); c != nil {
		caller = c
	}
	var synth worker.Synthesizer
	if s := speech.NewFromEnv(); s != nil {
		synth = s
	}

	deliverer := worker.NewDeliverer(reminderRepo, caller, blobs, attemptRepo, policy, logger)
	speechWorker := worker.NewSpeechWorker(reminderRepo, synth, blobs, attemptRepo, policy, loc, logger)

	return worker.New(worker.Config{
		Deliverer: deliverer,
		Speech:    speechWorker,
		Logger:    logger,
	})
}

// publisherOrNil не даёт nil *mq.Publisher стать non-nil интерфейсом.
func publisherOrNil(p *mq.Publisher) dispatch.Publisher {
	if p == nil {
		return nil
	}
	return p
}
