package blob

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// FSStore хранит артефакты в локальном каталоге.
// Годится для одной машины; для нескольких воркеров нужен S3Store.
type FSStore struct {
	dir string
}

// NewFSStore создаёт хранилище в каталоге dir, создавая его при необходимости.
func NewFSStore(dir string) (*FSStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create blob dir: %w", err)
	}
	return &FSStore{dir: dir}, nil
}

func (s *FSStore) path(id uuid.UUID) string {
	return filepath.Join(s.dir, artifactKey(id))
}

// Write сохраняет артефакт, перезаписывая существующий.
func (s *FSStore) Write(_ context.Context, id uuid.UUID, data []byte) error {
	if err := os.WriteFile(s.path(id), data, 0o644); err != nil {
		return fmt.Errorf("write artifact: %w", err)
	}
	return nil
}

// Exists сообщает, есть ли артефакт.
func (s *FSStore) Exists(_ context.Context, id uuid.UUID) (bool, error) {
	_, err := os.Stat(s.path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat artifact: %w", err)
	}
	return true, nil
}

// Delete удаляет артефакт; отсутствие не ошибка.
func (s *FSStore) Delete(_ context.Context, id uuid.UUID) error {
	err := os.Remove(s.path(id))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete artifact: %w", err)
	}
	return nil
}
