// Пакет storage — шлюз объектного хранилища блобов.
// Ядро работает только с интерфейсом Gateway; реализация — MinIO.
package storage

import (
	"context"
	"io"
	"time"
)

// Бакеты объектного хранилища.
const (
	// BucketFiles — блобы версий файлов.
	BucketFiles = "files"
	// BucketThumbnails — миниатюры.
	BucketThumbnails = "thumbnails"
	// BucketPreviews — превью документов.
	BucketPreviews = "previews"
	// BucketTemp — временные объекты незавершённых загрузок.
	BucketTemp = "temp"
)

// Gateway — операции над блобами в объектном хранилище.
type Gateway interface {
	// Put записывает блоб.
	Put(ctx context.Context, bucket, key string, data []byte, contentType string) error
	// Get возвращает поток чтения блоба.
	Get(ctx context.Context, bucket, key string) (io.ReadCloser, error)
	// Copy копирует блоб между ключами/бакетами на стороне хранилища.
	Copy(ctx context.Context, srcBucket, srcKey, dstBucket, dstKey string) error
	// Delete удаляет блоб. Удаление несуществующего ключа — не ошибка.
	Delete(ctx context.Context, bucket, key string) error
	// PresignedPutURL выдаёт временный URL для прямой загрузки клиентом.
	PresignedPutURL(ctx context.Context, bucket, key string, ttl time.Duration) (string, error)
	// PresignedGetURL выдаёт временный URL для прямого скачивания клиентом.
	PresignedGetURL(ctx context.Context, bucket, key string, ttl time.Duration) (string, error)
}
