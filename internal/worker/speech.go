package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Ringer/internal/blob"
	"github.com/shaiso/Ringer/internal/domain"
	"github.com/shaiso/Ringer/internal/repo"
	"github.com/shaiso/Ringer/internal/telemetry"
)

// Synthesizer — синтез речи. Реализуется speech.Client.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// SpeechWorker генерирует аудио-артефакты напоминаний.
//
// Провал синтеза не блокирует доставку: после исчерпания retry
// job завершается исходом DEGRADED_NO_ARTIFACT, и звонок пойдёт
// без аудио — fallback выбирает voice-endpoint.
type SpeechWorker struct {
	store    ReminderStore
	synth    Synthesizer
	blobs    blob.Store
	attempts AttemptLog
	policy   RetryPolicy
	loc      *time.Location
	logger   *slog.Logger
}

// NewSpeechWorker создаёт SpeechWorker.
// loc — зона получателя для произносимого времени; nil означает UTC.
func NewSpeechWorker(store ReminderStore, synth Synthesizer, blobs blob.Store, attempts AttemptLog, policy RetryPolicy, loc *time.Location, logger *slog.Logger) *SpeechWorker {
	if logger == nil {
		logger = slog.Default()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &SpeechWorker{
		store:    store,
		synth:    synth,
		blobs:    blobs,
		attempts: attempts,
		policy:   policy,
		loc:      loc,
		logger:   logger,
	}
}

// Generate выполняет один speech job.
func (s *SpeechWorker) Generate(ctx context.Context, job *domain.Job) error {
	logger := telemetry.WithReminderID(s.logger, job.ReminderID.String())

	rem, err := s.store.GetByID(ctx, job.ReminderID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			logger.Warn("reminder gone, dropping speech job")
			return nil
		}
		return fmt.Errorf("load reminder: %w", err)
	}

	if rem.Delivered {
		logger.Info("reminder already delivered, skipping speech")
		s.record(ctx, job.ReminderID, domain.OutcomeSkippedDelivered, 0, "")
		return nil
	}

	if s.synth == nil || s.blobs == nil {
		logger.Warn("speech synthesis not configured, delivery will be audio-less")
		s.record(ctx, job.ReminderID, domain.OutcomeDegradedNoArtifact, 0, "speech synthesis not configured")
		return nil
	}

	text := rem.SpokenText(s.loc)

	attempts, synthErr := retryCall(ctx, s.policy, logger, "synthesize speech", func() error {
		audio, err := s.synth.Synthesize(ctx, text)
		if err != nil {
			return err
		}
		return s.blobs.Write(ctx, rem.ID, audio)
	})
	if synthErr != nil {
		logger.Warn("speech generation failed, delivery will be audio-less",
			"attempts", attempts,
			"error", synthErr,
		)
		s.record(ctx, job.ReminderID, domain.OutcomeDegradedNoArtifact, attempts, synthErr.Error())
		return nil
	}

	logger.Info("audio artifact generated", "attempts", attempts)
	s.record(ctx, job.ReminderID, domain.OutcomeGenerated, attempts, "")
	return nil
}

func (s *SpeechWorker) record(ctx context.Context, reminderID uuid.UUID, outcome domain.Outcome, attempts int, errText string) {
	telemetry.SpeechJobs.WithLabelValues(string(outcome)).Inc()

	if s.attempts == nil {
		return
	}
	a := domain.NewAttempt(reminderID, domain.AttemptSpeech, outcome, attempts, errText)
	if err := s.attempts.Record(ctx, a); err != nil {
		s.logger.Warn("failed to record speech attempt",
			"reminder_id", reminderID,
			"outcome", outcome,
			"error", err,
		)
	}
}
