package repo

import "errors"

// Общие ошибки репозиториев.
var (
	// ErrNotFound — запись не найдена в БД.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyDelivered — напоминание уже доставлено,
	// правка или повторная доставка невозможны.
	ErrAlreadyDelivered = errors.New("already delivered")
)
