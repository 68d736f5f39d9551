package domain

import (
	"time"

	"github.com/google/uuid"
)

// Reminder — одноразовое напоминание с доставкой голосовым звонком.
//
// Reminder создаётся через API (или CLI) из свободной формы времени
// ("in 2 hours", "at 3 pm", ISO-8601), хранится в Postgres и доставляется
// воркером ровно один раз: переход delivered=false→true монотонный,
// обратного перехода нет.
type Reminder struct {
	// ID — уникальный идентификатор напоминания.
	ID uuid.UUID `json:"id"`

	// ChannelID — адрес доставки: номер телефона в E.164 или chat id.
	// Неизменяем после создания.
	ChannelID string `json:"channel_id"`

	// Title — человекочитаемый текст напоминания.
	// Можно менять, пока Delivered=false.
	Title string `json:"title"`

	// ScheduledAt — момент доставки в UTC.
	// Можно менять, пока Delivered=false. Правка не отменяет уже
	// поставленные в очередь jobs — устаревшие jobs отфильтровываются
	// при выполнении по захваченному ScheduledFor.
	ScheduledAt time.Time `json:"scheduled_at"`

	// LeadTime — за сколько до ScheduledAt сделать предварительный звонок.
	// При нуле срабатывает только финальный триггер.
	LeadTime time.Duration `json:"lead_time"`

	// Delivered — флаг доставки. false→true ровно один раз,
	// переход выполняется только через CAS в хранилище.
	Delivered bool `json:"delivered"`

	// CreatedAt — время создания, неизменяемо.
	CreatedAt time.Time `json:"created_at"`
}

// LeadAt возвращает момент предварительного звонка.
func (r *Reminder) LeadAt() time.Time {
	return r.ScheduledAt.Add(-r.LeadTime)
}

// HasLead возвращает true, если нужен предварительный триггер.
func (r *Reminder) HasLead() bool {
	return r.LeadTime > 0
}

// SpokenText возвращает фразу для синтеза речи.
// Время произносится в локальной зоне получателя.
func (r *Reminder) SpokenText(loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return r.Title + " at " + r.ScheduledAt.In(loc).Format("January 2, 2006 at 3:04 PM")
}
