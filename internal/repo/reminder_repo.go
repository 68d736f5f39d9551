package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Ringer/internal/domain"
)

// ReminderRepo — репозиторий для работы с reminders.
//
// Переход delivered=false→true выполняется только через TryMarkDelivered:
// атомарный compare-and-set на уровне строки. Никакой другой метод
// этот флаг не трогает.
type ReminderRepo struct {
	pool *pgxpool.Pool
}

// NewReminderRepo создаёт новый ReminderRepo.
func NewReminderRepo(pool *pgxpool.Pool) *ReminderRepo {
	return &ReminderRepo{pool: pool}
}

// Create создаёт новое напоминание.
func (r *ReminderRepo) Create(ctx context.Context, rem *domain.Reminder) error {
	query := `
		INSERT INTO reminders (id, channel_id, title, scheduled_at, lead_time_sec, delivered, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.pool.Exec(ctx, query,
		rem.ID,
		rem.ChannelID,
		rem.Title,
		rem.ScheduledAt,
		int64(rem.LeadTime/time.Second),
		rem.Delivered,
		rem.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert reminder: %w", err)
	}
	return nil
}

// GetByID возвращает напоминание по ID.
func (r *ReminderRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Reminder, error) {
	query := `
		SELECT id, channel_id, title, scheduled_at, lead_time_sec, delivered, created_at
		FROM reminders
		WHERE id = $1
	`
	return r.scanReminder(r.pool.QueryRow(ctx, query, id))
}

// List возвращает список напоминаний с фильтрацией.
func (r *ReminderRepo) List(ctx context.Context, filter ReminderFilter) ([]domain.Reminder, error) {
	query := `
		SELECT id, channel_id, title, scheduled_at, lead_time_sec, delivered, created_at
		FROM reminders
		WHERE ($1::text IS NULL OR channel_id = $1)
		  AND ($2::boolean IS NULL OR delivered = $2)
		ORDER BY scheduled_at ASC
		LIMIT $3 OFFSET $4
	`
	rows, err := r.pool.Query(ctx, query,
		nullString(filter.ChannelID),
		filter.Delivered,
		filter.Limit,
		filter.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list reminders: %w", err)
	}
	defer rows.Close()

	var reminders []domain.Reminder
	for rows.Next() {
		rem, err := r.scanReminderFromRows(rows)
		if err != nil {
			return nil, err
		}
		reminders = append(reminders, *rem)
	}
	return reminders, rows.Err()
}

// ListPending возвращает недоставленные напоминания с scheduled_at
// не позже before. Используется sweep-ом для добора пропущенных jobs.
func (r *ReminderRepo) ListPending(ctx context.Context, before time.Time, limit int) ([]domain.Reminder, error) {
	query := `
		SELECT id, channel_id, title, scheduled_at, lead_time_sec, delivered, created_at
		FROM reminders
		WHERE delivered = false AND scheduled_at <= $1
		ORDER BY scheduled_at ASC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, before, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending reminders: %w", err)
	}
	defer rows.Close()

	var reminders []domain.Reminder
	for rows.Next() {
		rem, err := r.scanReminderFromRows(rows)
		if err != nil {
			return nil, err
		}
		reminders = append(reminders, *rem)
	}
	return reminders, rows.Err()
}

// Update обновляет title, scheduled_at и lead_time_sec.
// Доставленное напоминание неизменяемо: возвращает ErrAlreadyDelivered.
func (r *ReminderRepo) Update(ctx context.Context, rem *domain.Reminder) error {
	query := `
		UPDATE reminders
		SET title = $2, scheduled_at = $3, lead_time_sec = $4
		WHERE id = $1 AND delivered = false
	`
	result, err := r.pool.Exec(ctx, query,
		rem.ID,
		rem.Title,
		rem.ScheduledAt,
		int64(rem.LeadTime/time.Second),
	)
	if err != nil {
		return fmt.Errorf("update reminder: %w", err)
	}
	if result.RowsAffected() == 0 {
		return r.classifyMiss(ctx, rem.ID)
	}
	return nil
}

// PendingState — снимок состояния напоминания перед доставкой.
type PendingState struct {
	Delivered   bool
	ScheduledAt time.Time
}

// CheckPending читает delivered и scheduled_at под блокировкой строки.
// Короткая транзакция: блокировка отпускается сразу после чтения,
// внешние вызовы под ней не выполняются.
func (r *ReminderRepo) CheckPending(ctx context.Context, id uuid.UUID) (*PendingState, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var state PendingState
	err = tx.QueryRow(ctx, `
		SELECT delivered, scheduled_at FROM reminders WHERE id = $1 FOR UPDATE
	`, id).Scan(&state.Delivered, &state.ScheduledAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("check pending: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &state, nil
}

// TryMarkDelivered атомарно переводит delivered=false→true.
// Возвращает true, если переход выполнил этот вызов, и false,
// если напоминание уже было доставлено (конкурент выиграл гонку).
func (r *ReminderRepo) TryMarkDelivered(ctx context.Context, id uuid.UUID) (bool, error) {
	result, err := r.pool.Exec(ctx, `
		UPDATE reminders SET delivered = true WHERE id = $1 AND delivered = false
	`, id)
	if err != nil {
		return false, fmt.Errorf("mark delivered: %w", err)
	}
	if result.RowsAffected() > 0 {
		return true, nil
	}

	// Либо запись доставлена конкурентом, либо её нет вовсе.
	var exists bool
	err = r.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM reminders WHERE id = $1)
	`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check reminder exists: %w", err)
	}
	if !exists {
		return false, ErrNotFound
	}
	return false, nil
}

// --- Helpers ---

// ReminderFilter — параметры фильтрации reminders.
type ReminderFilter struct {
	ChannelID string
	Delivered *bool
	Limit     int
	Offset    int
}

// classifyMiss различает отсутствующую и уже доставленную запись
// после UPDATE, не затронувшего строк.
func (r *ReminderRepo) classifyMiss(ctx context.Context, id uuid.UUID) error {
	var delivered bool
	err := r.pool.QueryRow(ctx, `
		SELECT delivered FROM reminders WHERE id = $1
	`, id).Scan(&delivered)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("classify update miss: %w", err)
	}
	if delivered {
		return ErrAlreadyDelivered
	}
	return ErrNotFound
}

// scanReminder сканирует одну строку в Reminder.
func (r *ReminderRepo) scanReminder(row pgx.Row) (*domain.Reminder, error) {
	var rem domain.Reminder
	var leadSec int64

	err := row.Scan(
		&rem.ID,
		&rem.ChannelID,
		&rem.Title,
		&rem.ScheduledAt,
		&leadSec,
		&rem.Delivered,
		&rem.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan reminder: %w", err)
	}

	rem.LeadTime = time.Duration(leadSec) * time.Second
	return &rem, nil
}

// scanReminderFromRows сканирует строку из rows в Reminder.
func (r *ReminderRepo) scanReminderFromRows(rows pgx.Rows) (*domain.Reminder, error) {
	var rem domain.Reminder
	var leadSec int64

	err := rows.Scan(
		&rem.ID,
		&rem.ChannelID,
		&rem.Title,
		&rem.ScheduledAt,
		&leadSec,
		&rem.Delivered,
		&rem.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan reminder: %w", err)
	}

	rem.LeadTime = time.Duration(leadSec) * time.Second
	return &rem, nil
}

// nullString возвращает nil для пустой строки (для NULL в БД).
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
