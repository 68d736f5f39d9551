package api

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Ringer/internal/domain"
	"github.com/shaiso/Ringer/internal/repo"
)

// ReminderStore — доступ API к хранилищу напоминаний.
// Реализуется repo.ReminderRepo.
type ReminderStore interface {
	Create(ctx context.Context, rem *domain.Reminder) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Reminder, error)
	List(ctx context.Context, filter repo.ReminderFilter) ([]domain.Reminder, error)
	Update(ctx context.Context, rem *domain.Reminder) error
}

// AttemptStore — журнал исходов доставки. Реализуется repo.AttemptRepo.
type AttemptStore interface {
	ListByReminder(ctx context.Context, reminderID uuid.UUID) ([]domain.DeliveryAttempt, error)
}

// JobDispatcher — постановка jobs. Реализуется dispatch.Dispatcher.
type JobDispatcher interface {
	Schedule(ctx context.Context, job *domain.Job, at time.Time) error
	ScheduleReminder(ctx context.Context, rem *domain.Reminder) error
}

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	reminderRepo ReminderStore
	attemptRepo  AttemptStore
	dispatcher   JobDispatcher
	loc          *time.Location
	logger       *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	ReminderRepo ReminderStore
	AttemptRepo  AttemptStore
	Dispatcher   JobDispatcher

	// Location — зона по умолчанию для разбора выражений времени.
	// nil означает UTC.
	Location *time.Location

	Logger *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		reminderRepo: cfg.ReminderRepo,
		attemptRepo:  cfg.AttemptRepo,
		dispatcher:   cfg.Dispatcher,
		loc:          loc,
		logger:       logger,
	}
}
