// Package blob хранит аудио-артефакты напоминаний.
//
// Артефакт живёт от генерации до финальной доставки: воркер пишет его
// после синтеза речи и удаляет после зафиксированной доставки.
// Ключ артефакта детерминирован — <reminder_id>.wav — поэтому повторная
// генерация просто перезаписывает файл.
package blob

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
)

// Store — хранилище артефактов.
type Store interface {
	// Write сохраняет артефакт, перезаписывая существующий.
	Write(ctx context.Context, id uuid.UUID, data []byte) error

	// Exists сообщает, есть ли артефакт.
	Exists(ctx context.Context, id uuid.UUID) (bool, error)

	// Delete удаляет артефакт. Отсутствие артефакта не ошибка:
	// удаление идемпотентно.
	Delete(ctx context.Context, id uuid.UUID) error
}

// NewFromEnv собирает Store по переменным окружения.
//
//	BLOB_BACKEND — "fs" (по умолчанию) или "s3"
//	BLOB_DIR     — каталог для fs-бэкенда (по умолчанию ./audio)
//	BLOB_S3_BUCKET — бакет для s3-бэкенда (обязателен при BLOB_BACKEND=s3)
func NewFromEnv(ctx context.Context) (Store, error) {
	switch backend := os.Getenv("BLOB_BACKEND"); backend {
	case "", "fs":
		dir := os.Getenv("BLOB_DIR")
		if dir == "" {
			dir = "./audio"
		}
		return NewFSStore(dir)
	case "s3":
		bucket := os.Getenv("BLOB_S3_BUCKET")
		if bucket == "" {
			return nil, fmt.Errorf("BLOB_S3_BUCKET is required for s3 backend")
		}
		return NewS3Store(ctx, bucket)
	default:
		return nil, fmt.Errorf("unknown blob backend %q", backend)
	}
}

func artifactKey(id uuid.UUID) string {
	return id.String() + ".wav"
}
