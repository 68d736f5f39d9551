package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus метрики, общие для всех сервисов.
// Экспортируются через /metrics в каждом бинарнике.
var (
	// JobsDispatched — jobs, поставленные dispatcher-ом.
	// mode: queue | queue_deferred | sync | timer.
	JobsDispatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ringer_jobs_dispatched_total",
		Help: "Jobs submitted by the dispatcher, by kind and dispatch mode",
	}, []string{"kind", "mode"})

	// Deliveries — исходы звонковых jobs (delivery_attempts.outcome).
	Deliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ringer_deliveries_total",
		Help: "Call job outcomes",
	}, []string{"outcome"})

	// SpeechJobs — исходы генерации аудио-артефактов.
	SpeechJobs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ringer_speech_jobs_total",
		Help: "Speech artifact job outcomes",
	}, []string{"outcome"})

	// SweepSubmitted — jobs, добранные периодическим sweep-ом.
	SweepSubmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ringer_sweep_jobs_submitted_total",
		Help: "Final call jobs re-submitted by the periodic sweep",
	})
)
