package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
)

// S3Store хранит артефакты в S3 под ключами audio/<id>.wav.
type S3Store struct {
	client *s3.Client
	bucket string
}

// NewS3Store создаёт S3-хранилище. Регион и креды берутся из стандартной
// цепочки AWS SDK; S3_ENDPOINT позволяет указать совместимый сервис
// (MinIO) для локальной разработки.
func NewS3Store(ctx context.Context, bucket string) (*S3Store, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	endpoint := os.Getenv("S3_ENDPOINT")
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Store{client: client, bucket: bucket}, nil
}

func (s *S3Store) key(id uuid.UUID) string {
	return "audio/" + artifactKey(id)
}

// Write сохраняет артефакт, перезаписывая существующий.
func (s *S3Store) Write(ctx context.Context, id uuid.UUID, data []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key(id)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("audio/wav"),
	})
	if err != nil {
		return fmt.Errorf("put artifact: %w", err)
	}
	return nil
}

// Exists сообщает, есть ли артефакт.
func (s *S3Store) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(id)),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, fmt.Errorf("head artifact: %w", err)
	}
	return true, nil
}

// Delete удаляет артефакт; отсутствие не ошибка —
// DeleteObject в S3 идемпотентен сам по себе.
func (s *S3Store) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(id)),
	})
	if err != nil {
		return fmt.Errorf("delete artifact: %w", err)
	}
	return nil
}
