package worker

import "errors"

// Ошибки воркера.
var (
	// ErrUnknownJobKind — нет обработчика для данного типа job.
	ErrUnknownJobKind = errors.New("unknown job kind")

	// ErrRetryExhausted — все попытки внешнего вызова исчерпаны.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrNoCaller — телефония не сконфигурирована.
	ErrNoCaller = errors.New("call client is not configured")
)
