package worker

import (
	"context"
	"log/slog"
	"time"
)

// RetryPolicy — параметры повторов внешних вызовов.
type RetryPolicy struct {
	// MaxAttempts — общее число попыток, включая первую.
	MaxAttempts int

	// InitialDelay — задержка перед второй попыткой.
	InitialDelay time.Duration

	// MaxDelay — потолок задержки.
	MaxDelay time.Duration
}

// DefaultRetryPolicy — политика по умолчанию для телефонии и синтеза.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  3,
		InitialDelay: time.Second,
		MaxDelay:     30 * time.Second,
	}
}

// Delay вычисляет задержку перед попыткой attempt (attempt >= 2).
// Экспонента: InitialDelay * 2^(attempt-2), с потолком MaxDelay.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	initial := p.InitialDelay
	if initial <= 0 {
		initial = time.Second
	}
	maxDelay := p.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 30 * time.Second
	}

	delay := initial
	for i := 2; i < attempt; i++ {
		delay *= 2
		if delay > maxDelay {
			return maxDelay
		}
	}
	if delay > maxDelay {
		return maxDelay
	}
	return delay
}

// retryCall выполняет fn с повторами по политике.
// Возвращает число сделанных попыток и последнюю ошибку
// (nil при успехе). Прерывается по context.
func retryCall(ctx context.Context, policy RetryPolicy, logger *slog.Logger, op string, fn func() error) (int, error) {
	maxAttempts := policy.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			delay := policy.Delay(attempt)
			logger.Debug("retrying", "op", op, "attempt", attempt, "delay", delay)

			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return attempt - 1, ctx.Err()
			}
		}

		lastErr = fn()
		if lastErr == nil {
			return attempt, nil
		}

		logger.Warn("attempt failed", "op", op, "attempt", attempt, "error", lastErr)
	}

	return maxAttempts, lastErr
}
