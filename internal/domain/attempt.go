package domain

import (
	"time"

	"github.com/google/uuid"
)

// AttemptKind — какой воркер оставил запись.
type AttemptKind string

const (
	// AttemptSpeech — генерация аудио-артефакта.
	AttemptSpeech AttemptKind = "speech"

	// AttemptCall — звонок получателю.
	AttemptCall AttemptKind = "call"
)

// Outcome — исход выполнения job.
//
// Пропуски (SKIPPED_*) — ожидаемые исходы при дублирующем выполнении,
// не ошибки. FAILED означает исчерпание retry: напоминание остаётся
// pending, и sweep продолжит предлагать его к доставке.
type Outcome string

const (
	// OutcomeDelivered — финальный звонок выполнен, CAS выигран,
	// delivered=true зафиксировано.
	OutcomeDelivered Outcome = "DELIVERED"

	// OutcomeCalled — предварительный (lead) звонок выполнен.
	// Состояние напоминания не менялось.
	OutcomeCalled Outcome = "CALLED"

	// OutcomeGenerated — артефакт синтезирован и записан в blob store.
	OutcomeGenerated Outcome = "GENERATED"

	// OutcomeSkippedDelivered — напоминание уже доставлено,
	// job завершился без побочных эффектов.
	OutcomeSkippedDelivered Outcome = "SKIPPED_ALREADY_DELIVERED"

	// OutcomeSkippedRaceLost — параллельное выполнение выиграло CAS
	// в окне между проверкой и коммитом. Звонок мог уйти дважды —
	// принятый at-least-once компромисс.
	OutcomeSkippedRaceLost Outcome = "SKIPPED_RACE_LOST"

	// OutcomeSkippedStale — job поставлен для уже изменённого
	// ScheduledAt и отброшен при выполнении.
	OutcomeSkippedStale Outcome = "SKIPPED_STALE"

	// OutcomeDegradedNoArtifact — синтез речи не удался после всех retry;
	// доставка пойдёт без аудио, голосовой endpoint решает fallback сам.
	OutcomeDegradedNoArtifact Outcome = "DEGRADED_NO_ARTIFACT"

	// OutcomeFailed — retry исчерпаны, job провален и виден оператору.
	OutcomeFailed Outcome = "FAILED"
)

// IsSkip возвращает true для ожидаемых пропусков.
func (o Outcome) IsSkip() bool {
	switch o {
	case OutcomeSkippedDelivered, OutcomeSkippedRaceLost, OutcomeSkippedStale:
		return true
	default:
		return false
	}
}

// DeliveryAttempt — наблюдаемый исход выполнения job.
// Пишется воркерами после каждого завершённого job (успех, пропуск
// или исчерпание retry), читается через API и CLI. Ошибка записи
// логируется и не влияет на сам job.
type DeliveryAttempt struct {
	ID         uuid.UUID   `json:"id"`
	ReminderID uuid.UUID   `json:"reminder_id"`
	Kind       AttemptKind `json:"kind"`
	Outcome    Outcome     `json:"outcome"`

	// Attempts — сколько попыток внешнего вызова сделано.
	Attempts int `json:"attempts"`

	// Error — текст последней ошибки (для FAILED и DEGRADED_*).
	Error string `json:"error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// NewAttempt создаёт запись об исходе.
func NewAttempt(reminderID uuid.UUID, kind AttemptKind, outcome Outcome, attempts int, errText string) *DeliveryAttempt {
	return &DeliveryAttempt{
		ID:         uuid.New(),
		ReminderID: reminderID,
		Kind:       kind,
		Outcome:    outcome,
		Attempts:   attempts,
		Error:      errText,
		CreatedAt:  time.Now().UTC(),
	}
}
