package repo

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Ringer/internal/domain"
)

// AttemptRepo — репозиторий для журнала исходов доставки.
type AttemptRepo struct {
	pool *pgxpool.Pool
}

// NewAttemptRepo создаёт новый AttemptRepo.
func NewAttemptRepo(pool *pgxpool.Pool) *AttemptRepo {
	return &AttemptRepo{pool: pool}
}

// Record пишет исход выполнения job.
func (r *AttemptRepo) Record(ctx context.Context, a *domain.DeliveryAttempt) error {
	query := `
		INSERT INTO delivery_attempts (id, reminder_id, kind, outcome, attempts, error, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.pool.Exec(ctx, query,
		a.ID,
		a.ReminderID,
		a.Kind,
		a.Outcome,
		a.Attempts,
		nullString(a.Error),
		a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert delivery attempt: %w", err)
	}
	return nil
}

// ListByReminder возвращает исходы для напоминания, новые первыми.
func (r *AttemptRepo) ListByReminder(ctx context.Context, reminderID uuid.UUID) ([]domain.DeliveryAttempt, error) {
	query := `
		SELECT id, reminder_id, kind, outcome, attempts, error, created_at
		FROM delivery_attempts
		WHERE reminder_id = $1
		ORDER BY created_at DESC
	`
	rows, err := r.pool.Query(ctx, query, reminderID)
	if err != nil {
		return nil, fmt.Errorf("list delivery attempts: %w", err)
	}
	defer rows.Close()

	var attempts []domain.DeliveryAttempt
	for rows.Next() {
		a, err := r.scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, *a)
	}
	return attempts, rows.Err()
}

func (r *AttemptRepo) scanAttempt(rows pgx.Rows) (*domain.DeliveryAttempt, error) {
	var a domain.DeliveryAttempt
	var errText *string

	err := rows.Scan(
		&a.ID,
		&a.ReminderID,
		&a.Kind,
		&a.Outcome,
		&a.Attempts,
		&errText,
		&a.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan delivery attempt: %w", err)
	}

	if errText != nil {
		a.Error = *errText
	}
	return &a, nil
}
