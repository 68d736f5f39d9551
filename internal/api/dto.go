package api

import (
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Ringer/internal/domain"
)

// Reminder DTOs

// CreateReminderRequest — запрос на создание напоминания.
type CreateReminderRequest struct {
	ChannelID      string `json:"channel_id"`
	Title          string `json:"title"`
	TimeExpression string `json:"time_expression"`
	LeadTimeSec    int64  `json:"lead_time_sec,omitempty"`
}

// UpdateReminderRequest — запрос на правку напоминания.
// Отсутствующие поля не меняются.
type UpdateReminderRequest struct {
	NewTitle          *string `json:"new_title,omitempty"`
	NewTimeExpression *string `json:"new_time_expression,omitempty"`
	NewLeadTimeSec    *int64  `json:"new_lead_time_sec,omitempty"`
}

// ReminderResponse — ответ с напоминанием.
type ReminderResponse struct {
	ID          uuid.UUID `json:"id"`
	ChannelID   string    `json:"channel_id"`
	Title       string    `json:"title"`
	ScheduledAt time.Time `json:"scheduled_at"`
	LeadTimeSec int64     `json:"lead_time_sec"`
	Delivered   bool      `json:"delivered"`
	CreatedAt   time.Time `json:"created_at"`
}

// ReminderFromDomain конвертирует domain.Reminder в ReminderResponse.
func ReminderFromDomain(r *domain.Reminder) ReminderResponse {
	return ReminderResponse{
		ID:          r.ID,
		ChannelID:   r.ChannelID,
		Title:       r.Title,
		ScheduledAt: r.ScheduledAt,
		LeadTimeSec: int64(r.LeadTime / time.Second),
		Delivered:   r.Delivered,
		CreatedAt:   r.CreatedAt,
	}
}

// DeliveryAttempt DTOs

// AttemptResponse — ответ с исходом доставки.
type AttemptResponse struct {
	ID         uuid.UUID `json:"id"`
	ReminderID uuid.UUID `json:"reminder_id"`
	Kind       string    `json:"kind"`
	Outcome    string    `json:"outcome"`
	Attempts   int       `json:"attempts"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// AttemptFromDomain конвертирует domain.DeliveryAttempt в AttemptResponse.
func AttemptFromDomain(a *domain.DeliveryAttempt) AttemptResponse {
	return AttemptResponse{
		ID:         a.ID,
		ReminderID: a.ReminderID,
		Kind:       string(a.Kind),
		Outcome:    string(a.Outcome),
		Attempts:   a.Attempts,
		Error:      a.Error,
		CreatedAt:  a.CreatedAt,
	}
}
