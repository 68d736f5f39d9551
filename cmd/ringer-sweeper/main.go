// Ringer Sweeper — страховочный контур доставки.
//
// Sweeper периодически выбирает недоставленные напоминания с
// подошедшим сроком и переотправляет финальные jobs доставки.
// Он добирает всё, что очередь потеряла или задержала; дубликаты
// безвредны — ровно-один-раз обеспечивает CAS в базе.
//
// Среди экземпляров sweeper-а лидер выбирается через
// pg_try_advisory_lock: тикает только один.
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
	"github.com/shaiso/Ringer/internal/dispatch"
	"github.com/shaiso/Ringer/internal/mq"
	"github.com/shaiso/Ringer/internal/repo"
	"github.com/shaiso/Ringer/internal/speech"
	"github.com/shaiso/Ringer/internal/sweep"
	"github.com/shaiso/Ringer/internal/telemetry"
	"github.com/shaiso/Ringer/internal/worker"
)

const sweepLockKey int64 = 737373

func main() {
	_ = godotenv.Load()

	logger := telemetry.SetupLogger()
	logger.Info("starting ringer-sweeper")

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

	reminderRepo := repo.NewReminderRepo(pool)
	attemptRepo := repo.NewAttemptRepo(pool)

	blobs, err := blob.NewFromEnv(ctx)
	if err != nil {
		logger.Error("failed to init blob store", "error", err)
		os.Exit(1)
	}

	// RabbitMQ: без брокера sweeper выполняет due jobs сам
	var publisher dispatch.Publisher
	mqConn, err := mq.NewConnection(mq.URLFromEnv(), logger)
	if err != nil {
		logger.Warn("RabbitMQ not available, executing jobs in-process", "error", err)
	} else {
		defer mqConn.Close()
		logger.Info("RabbitMQ connected")

		if err := mq.SetupTopology(ctx, mqConn); err != nil {
			logger.Warn("failed to setup topology", "error", err)
		}

		publisher = mq.NewPublisher(mqConn, logger)
	}

	// Fallback runner для работы без брокера
	var caller worker.Caller
	if c := callout.NewFromEnv(); c != nil {
		caller = c
	}
	var synth worker.Synthesizer
	if s := speech.NewFromEnv(); s != nil {
		synth = s
	}
	policy := worker.DefaultRetryPolicy()
	runner := worker.New(worker.Config{
		Deliverer: worker.NewDeliverer(reminderRepo, caller, blobs, attemptRepo, policy, logger),
		Speech:    worker.NewSpeechWorker(reminderRepo, synth, blobs, attemptRepo, policy, time.UTC, logger),
		Logger:    logger,
	})

	dispatcher := dispatch.New(dispatch.Config{
		Publisher: publisher,
		Runner:    runner,
		Logger:    logger,
	})

	sweeper := sweep.New(sweep.Config{
		Store:     reminderRepo,
		Submitter: dispatcher,
		Logger:    logger,
	})

	// sweep loop
	go func() {
		tk := time.NewTicker(sweep.DefaultInterval)
		defer tk.Stop()

		var hasLock bool
		defer func() {
			if hasLock {
				_, _ = pool.Exec(context.Background(), "select pg_advisory_unlock($1)", sweepLockKey)
			}
		}()

		for {
			select {
			case <-tk.C:
				// пытаемся стать лидером (или подтвердить лидерство)
				if !hasLock {
					var ok bool
					if err := pool.QueryRow(ctx, "select pg_try_advisory_lock($1)", sweepLockKey).Scan(&ok); err != nil {
						logger.Error("advisory lock failed", "error", err)
						continue
					}
					hasLock = ok
				}

				if !hasLock {
					// не лидер — пропускаем тик
					continue
				}

				if err := sweeper.Tick(ctx); err != nil {
					logger.Error("sweep tick failed", "error", err)
				}

			case <-ctx.Done():
				return
			}
		}
	}()

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	port := ":8081"
	if v := os.Getenv("SWEEP_PORT"); v != "" {
		port = ":" + v
	}

	go func() {
		logger.Info("listening", "addr", port)
		if err := http.ListenAndServe(port, mux); err != nil {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Info("ringer-sweeper stopped")
}
