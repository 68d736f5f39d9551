package domain

import (
	"time"

	"github.com/google/uuid"
)

// JobKind — тип отложенного job.
type JobKind string

const (
	// JobSpeechGenerate — сгенерировать аудио-артефакт для напоминания.
	// Выполняется сразу после создания/правки, независимо от ScheduledAt.
	JobSpeechGenerate JobKind = "speech.generate"

	// JobCallDeliver — позвонить получателю. Финальный вариант
	// дополнительно фиксирует доставку и удаляет артефакт.
	JobCallDeliver JobKind = "call.deliver"
)

// Job — единица работы, которую dispatcher кладёт в очередь,
// а воркер выполняет. Сознательно маленький: всё состояние живёт
// в хранилище, job несёт только ссылку и контекст триггера.
type Job struct {
	// Kind — тип job.
	Kind JobKind `json:"kind"`

	// ReminderID — напоминание, к которому относится job.
	ReminderID uuid.UUID `json:"reminder_id"`

	// Final — true для звонка в точный момент ScheduledAt.
	// Предварительный звонок (lead) не меняет состояние и не чистит артефакт.
	Final bool `json:"final,omitempty"`

	// ScheduledFor — ScheduledAt на момент постановки job.
	// Воркер сверяет его с текущим значением в хранилище и пропускает
	// устаревшие jobs (напоминание перенесли после постановки).
	// Нулевое значение отключает проверку: так ставит jobs ручная
	// доставка через API, валидная для любого текущего времени.
	ScheduledFor time.Time `json:"scheduled_for,omitempty"`
}

// IsStale возвращает true, если job был поставлен для другого
// времени доставки, чем хранится сейчас. Сравнение с точностью
// до секунды: timestamptz округляет наносекунды.
func (j *Job) IsStale(current time.Time) bool {
	if j.ScheduledFor.IsZero() {
		return false
	}
	return !j.ScheduledFor.Truncate(time.Second).Equal(current.Truncate(time.Second))
}
