package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinIOGateway — реализация Gateway поверх MinIO.
type MinIOGateway struct {
	client *minio.Client
	logger *slog.Logger
}

// NewMinIOGateway создаёт клиент MinIO и гарантирует существование
// всех бакетов godrive.
func NewMinIOGateway(ctx context.Context, endpoint, accessKey, secretKey string, useSSL bool, logger *slog.Logger) (*MinIOGateway, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка создания клиента MinIO: %w", err)
	}

	g := &MinIOGateway{
		client: client,
		logger: logger.With(slog.String("component", "minio_gateway")),
	}

	for _, bucket := range []string{BucketFiles, BucketThumbnails, BucketPreviews, BucketTemp} {
		if err := g.ensureBucket(ctx, bucket); err != nil {
			return nil, err
		}
	}

	return g, nil
}

// ensureBucket создаёт бакет, если его ещё нет.
func (g *MinIOGateway) ensureBucket(ctx context.Context, bucket string) error {
	exists, err := g.client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("ошибка проверки бакета %s: %w", bucket, err)
	}
	if !exists {
		if err := g.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("ошибка создания бакета %s: %w", bucket, err)
		}
		g.logger.Info("Бакет создан", slog.String("bucket", bucket))
	}
	return nil
}

func (g *MinIOGateway) Put(ctx context.Context, bucket, key string, data []byte, contentType string) error {
	_, err := g.client.PutObject(ctx, bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType},
	)
	if err != nil {
		return fmt.Errorf("ошибка записи блоба %s/%s: %w", bucket, key, err)
	}
	return nil
}

func (g *MinIOGateway) Get(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	obj, err := g.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения блоба %s/%s: %w", bucket, key, err)
	}
	return obj, nil
}

func (g *MinIOGateway) Copy(ctx context.Context, srcBucket, srcKey, dstBucket, dstKey string) error {
	_, err := g.client.CopyObject(ctx,
		minio.CopyDestOptions{Bucket: dstBucket, Object: dstKey},
		minio.CopySrcOptions{Bucket: srcBucket, Object: srcKey},
	)
	if err != nil {
		return fmt.Errorf("ошибка копирования блоба %s/%s → %s/%s: %w",
			srcBucket, srcKey, dstBucket, dstKey, err)
	}
	return nil
}

func (g *MinIOGateway) Delete(ctx context.Context, bucket, key string) error {
	err := g.client.RemoveObject(ctx, bucket, key, minio.RemoveObjectOptions{})
	if err != nil {
		return fmt.Errorf("ошибка удаления блоба %s/%s: %w", bucket, key, err)
	}
	return nil
}

func (g *MinIOGateway) PresignedPutURL(ctx context.Context, bucket, key string, ttl time.Duration) (string, error) {
	u, err := g.client.PresignedPutObject(ctx, bucket, key, ttl)
	if err != nil {
		return "", fmt.Errorf("ошибка выдачи presigned PUT URL %s/%s: %w", bucket, key, err)
	}
	return u.String(), nil
}

func (g *MinIOGateway) PresignedGetURL(ctx context.Context, bucket, key string, ttl time.Duration) (string, error) {
	u, err := g.client.PresignedGetObject(ctx, bucket, key, ttl, url.Values{})
	if err != nil {
		return "", fmt.Errorf("ошибка выдачи presigned GET URL %s/%s: %w", bucket, key, err)
	}
	return u.String(), nil
}

// CheckReady проверяет доступность MinIO для health endpoint.
func (g *MinIOGateway) CheckReady() (status string, message string) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if _, err := g.client.BucketExists(ctx, BucketFiles); err != nil {
		return "fail", fmt.Sprintf("MinIO недоступен: %v", err)
	}
	return "ok", "подключение активно"
}
