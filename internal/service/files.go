// files.go — сервис файлов и их версий.
//
// Жизненный цикл файла: uploading → scanning → processing → ready,
// с ветками infected и error. Версии append-only: номер новой версии
// вычисляется как max+1 под блокировкой строки файла (SELECT ... FOR
// UPDATE), поэтому конкурентные загрузки получают различные
// последовательные номера. Блоб каждой версии живёт под собственным
// ключом <file_id>/v<N> в бакете files.
package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/godrive/internal/domain/access"
	"github.com/bigkaa/godrive/internal/domain/model"
	"github.com/bigkaa/godrive/internal/queue"
	"github.com/bigkaa/godrive/internal/repository"
	"github.com/bigkaa/godrive/internal/storage"
)

// Prometheus метрики файлового сервиса.
var (
	// uploadsTotal — количество завершённых загрузок по типу (initial | version).
	uploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gd_uploads_total",
		Help: "Общее количество завершённых загрузок",
	}, []string{"kind"})

	// uploadBytesTotal — суммарный объём загруженных данных.
	uploadBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gd_upload_bytes_total",
		Help: "Суммарный объём загруженных данных в байтах",
	})

	// filesDeletedTotal — количество файлов, удалённых безвозвратно.
	filesDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gd_files_deleted_total",
		Help: "Общее количество файлов, удалённых безвозвратно",
	})

	// scanVerdictsTotal — вердикты антивирусной проверки по типу.
	scanVerdictsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gd_scan_verdicts_total",
		Help: "Количество обработанных вердиктов антивирусной проверки",
	}, []string{"verdict"})
)

// FileService — операции над файлами и версиями.
type FileService struct {
	store   repository.Store
	gateway storage.Gateway
	jobs    queue.Queue
	cache   *MetadataCache
	acl     *AccessService
	logger  *slog.Logger

	presignTTL   time.Duration
	scanAttempts int
	scanBackoff  time.Duration
}

// NewFileService создаёт сервис файлов.
func NewFileService(
	store repository.Store,
	gateway storage.Gateway,
	jobs queue.Queue,
	cache *MetadataCache,
	acl *AccessService,
	presignTTL time.Duration,
	scanAttempts int,
	scanBackoff time.Duration,
	logger *slog.Logger,
) *FileService {
	return &FileService{
		store:        store,
		gateway:      gateway,
		jobs:         jobs,
		cache:        cache,
		acl:          acl,
		presignTTL:   presignTTL,
		scanAttempts: scanAttempts,
		scanBackoff:  scanBackoff,
		logger:       logger.With(slog.String("component", "files")),
	}
}

// versionKey возвращает ключ блоба версии в бакете files.
func versionKey(fileID string, versionNumber int) string {
	return fmt.Sprintf("%s/v%d", fileID, versionNumber)
}

// fileExtension извлекает расширение имени файла без точки, в нижнем регистре.
func fileExtension(name string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
}

// InitUpload создаёт запись файла в статусе uploading и выдаёт presigned
// URL для прямой загрузки первой версии клиентом в объектное хранилище.
// Загрузка фиксируется последующим вызовом CompleteUpload.
func (s *FileService) InitUpload(ctx context.Context, userID, name string, folderID *string, mimeType string) (*model.File, string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, "", fmt.Errorf("%w: пустое имя файла", ErrValidation)
	}

	ownerID := userID
	if folderID != nil {
		folder, err := s.requireUploadFolder(ctx, userID, *folderID)
		if err != nil {
			return nil, "", err
		}
		ownerID = folder.OwnerID
	}

	now := time.Now().UTC()
	f := &model.File{
		FileID:     uuid.NewString(),
		OwnerID:    ownerID,
		FolderID:   folderID,
		Name:       name,
		MimeType:   mimeType,
		Extension:  fileExtension(name),
		Status:     model.FileStatusUploading,
		ScanStatus: model.ScanStatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.store.Files().Create(ctx, f); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, "", ErrConflict
		}
		return nil, "", err
	}

	url, err := s.gateway.PresignedPutURL(ctx, storage.BucketFiles, versionKey(f.FileID, 1), s.presignTTL)
	if err != nil {
		return nil, "", fmt.Errorf("ошибка выдачи presigned URL: %w", err)
	}

	s.logger.Info("загрузка инициирована",
		slog.String("file_id", f.FileID),
		slog.String("name", f.Name),
	)
	return f, url, nil
}

// CompleteUpload фиксирует завершение прямой загрузки: создаёт версию 1,
// зеркалирует её атрибуты в запись файла, списывает квоту и ставит
// задачу антивирусной проверки. Файл не в статусе uploading —
// ErrBadRequest (повторная фиксация, гонка с reaper-ом).
func (s *FileService) CompleteUpload(ctx context.Context, userID, fileID string, sizeBytes int64, checksum string) (*model.File, error) {
	if sizeBytes <= 0 {
		return nil, fmt.Errorf("%w: недопустимый размер", ErrValidation)
	}
	if err := s.acl.Authorize(ctx, s.store, fileID, model.ResourceTypeFile, userID, access.RoleEditor); err != nil {
		return nil, err
	}

	var (
		file    *model.File
		version *model.FileVersion
	)
	err := s.store.RunInTx(ctx, func(r repository.Repos) error {
		f, err := r.Files().GetByIDForUpdate(ctx, fileID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrNotFound
			}
			return err
		}
		if f.Status != model.FileStatusUploading {
			return fmt.Errorf("%w: загрузка уже завершена", ErrBadRequest)
		}
		if err := s.checkQuota(ctx, r, f.OwnerID, sizeBytes); err != nil {
			return err
		}

		v := &model.FileVersion{
			VersionID:     uuid.NewString(),
			FileID:        fileID,
			VersionNumber: 1,
			StorageKey:    versionKey(fileID, 1),
			SizeBytes:     sizeBytes,
			Checksum:      checksum,
			MimeType:      f.MimeType,
			UploadedBy:    userID,
			CreatedAt:     time.Now().UTC(),
		}
		if err := r.Versions().Create(ctx, v); err != nil {
			return err
		}
		if err := r.Files().SetCurrentVersion(ctx, fileID, v.VersionID, v.StorageKey, v.SizeBytes, v.MimeType); err != nil {
			return err
		}
		if _, err := r.Files().UpdateStatusIf(ctx, fileID, model.FileStatusUploading, model.FileStatusScanning, model.ScanStatusPending); err != nil {
			return err
		}
		if err := r.Users().AdjustStorageUsed(ctx, f.OwnerID, sizeBytes); err != nil {
			return err
		}

		f.CurrentVersionID = &v.VersionID
		f.StorageKey = v.StorageKey
		f.SizeBytes = v.SizeBytes
		f.Status = model.FileStatusScanning
		file, version = f, v
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.cache.Invalidate(fileID)
	s.enqueueScan(ctx, file, version)
	uploadsTotal.WithLabelValues("initial").Inc()
	uploadBytesTotal.Add(float64(sizeBytes))
	return file, nil
}

// Upload — прямая загрузка небольшого файла через API: запись, блоб
// и версия 1 создаются за один вызов, без presigned URL.
func (s *FileService) Upload(ctx context.Context, userID, name string, folderID *string, mimeType string, data []byte) (*model.File, error) {
	f, _, err := s.InitUpload(ctx, userID, name, folderID, mimeType)
	if err != nil {
		return nil, err
	}
	if err := s.gateway.Put(ctx, storage.BucketFiles, versionKey(f.FileID, 1), data, mimeType); err != nil {
		return nil, fmt.Errorf("ошибка записи блоба: %w", err)
	}
	sum := sha256.Sum256(data)
	return s.CompleteUpload(ctx, userID, f.FileID, int64(len(data)), hex.EncodeToString(sum[:]))
}

// UploadVersion загружает новую версию файла. Требуется роль editor.
// Номер версии — max+1 под блокировкой строки файла; блоб пишется под
// ключ нового номера, затем версия и зеркалируемые атрибуты фиксируются
// той же транзакцией. Квота корректируется на дельту с прежней текущей
// версией.
func (s *FileService) UploadVersion(ctx context.Context, userID, fileID string, mimeType string, data []byte, comment string) (*model.FileVersion, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: пустое содержимое", ErrValidation)
	}
	if err := s.acl.Authorize(ctx, s.store, fileID, model.ResourceTypeFile, userID, access.RoleEditor); err != nil {
		return nil, err
	}

	sum := sha256.Sum256(data)
	checksum := hex.EncodeToString(sum[:])
	size := int64(len(data))

	var (
		file    *model.File
		version *model.FileVersion
	)
	err := s.store.RunInTx(ctx, func(r repository.Repos) error {
		f, err := r.Files().GetByIDForUpdate(ctx, fileID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrNotFound
			}
			return err
		}
		if f.IsTrashed {
			return fmt.Errorf("%w: файл в корзине", ErrBadRequest)
		}
		if f.Status == model.FileStatusUploading {
			return fmt.Errorf("%w: первая загрузка не завершена", ErrBadRequest)
		}
		if err := s.checkQuota(ctx, r, f.OwnerID, size-f.SizeBytes); err != nil {
			return err
		}

		maxN, err := r.Versions().MaxNumber(ctx, fileID)
		if err != nil {
			return err
		}
		n := maxN + 1
		key := versionKey(fileID, n)

		// Блоб пишется под блокировкой строки: ключ содержит номер версии,
		// который известен только здесь.
		if err := s.gateway.Put(ctx, storage.BucketFiles, key, data, mimeType); err != nil {
			return fmt.Errorf("ошибка записи блоба: %w", err)
		}

		v := &model.FileVersion{
			VersionID:     uuid.NewString(),
			FileID:        fileID,
			VersionNumber: n,
			StorageKey:    key,
			SizeBytes:     size,
			Checksum:      checksum,
			MimeType:      mimeType,
			UploadedBy:    userID,
			Comment:       comment,
			CreatedAt:     time.Now().UTC(),
		}
		if err := r.Versions().Create(ctx, v); err != nil {
			return err
		}
		if err := r.Files().SetCurrentVersion(ctx, fileID, v.VersionID, key, size, mimeType); err != nil {
			return err
		}
		if err := r.Files().SetStatus(ctx, fileID, model.FileStatusScanning, model.ScanStatusPending); err != nil {
			return err
		}
		if err := r.Users().AdjustStorageUsed(ctx, f.OwnerID, size-f.SizeBytes); err != nil {
			return err
		}

		file, version = f, v
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.cache.Invalidate(fileID)
	s.enqueueScan(ctx, file, version)
	uploadsTotal.WithLabelValues("version").Inc()
	uploadBytesTotal.Add(float64(size))

	s.logger.Info("загружена новая версия",
		slog.String("file_id", fileID),
		slog.Int("version", version.VersionNumber),
	)
	return version, nil
}

// RestoreVersion делает историческую версию текущей, не переписывая
// историю: блоб копируется под новый номер max+1, создаётся новая
// версия с тем же содержимым. Квота корректируется на дельту.
// Содержимое уже проходило проверку — повторная не ставится.
func (s *FileService) RestoreVersion(ctx context.Context, userID, versionID string) (*model.FileVersion, error) {
	src, err := s.store.Versions().GetByID(ctx, versionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := s.acl.Authorize(ctx, s.store, src.FileID, model.ResourceTypeFile, userID, access.RoleEditor); err != nil {
		return nil, err
	}

	var version *model.FileVersion
	err = s.store.RunInTx(ctx, func(r repository.Repos) error {
		f, err := r.Files().GetByIDForUpdate(ctx, src.FileID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrNotFound
			}
			return err
		}
		if f.IsTrashed {
			return fmt.Errorf("%w: файл в корзине", ErrBadRequest)
		}
		if err := s.checkQuota(ctx, r, f.OwnerID, src.SizeBytes-f.SizeBytes); err != nil {
			return err
		}

		maxN, err := r.Versions().MaxNumber(ctx, f.FileID)
		if err != nil {
			return err
		}
		n := maxN + 1
		key := versionKey(f.FileID, n)
		if err := s.gateway.Copy(ctx, storage.BucketFiles, src.StorageKey, storage.BucketFiles, key); err != nil {
			return fmt.Errorf("ошибка копирования блоба: %w", err)
		}

		v := &model.FileVersion{
			VersionID:     uuid.NewString(),
			FileID:        f.FileID,
			VersionNumber: n,
			StorageKey:    key,
			SizeBytes:     src.SizeBytes,
			Checksum:      src.Checksum,
			MimeType:      src.MimeType,
			UploadedBy:    userID,
			Comment:       fmt.Sprintf("восстановление версии %d", src.VersionNumber),
			CreatedAt:     time.Now().UTC(),
		}
		if err := r.Versions().Create(ctx, v); err != nil {
			return err
		}
		if err := r.Files().SetCurrentVersion(ctx, f.FileID, v.VersionID, key, v.SizeBytes, v.MimeType); err != nil {
			return err
		}
		if err := r.Users().AdjustStorageUsed(ctx, f.OwnerID, src.SizeBytes-f.SizeBytes); err != nil {
			return err
		}

		version = v
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.cache.Invalidate(src.FileID)
	s.logger.Info("версия восстановлена",
		slog.String("file_id", src.FileID),
		slog.Int("source_version", src.VersionNumber),
		slog.Int("new_version", version.VersionNumber),
	)
	return version, nil
}

// Get возвращает запись файла. Требуется роль viewer.
// Метаданные отдаются из кэша, авторизация — всегда заново.
func (s *FileService) Get(ctx context.Context, userID, fileID string) (*model.File, error) {
	if err := s.acl.Authorize(ctx, s.store, fileID, model.ResourceTypeFile, userID, access.RoleViewer); err != nil {
		return nil, err
	}
	if f, ok := s.cache.Get(fileID); ok {
		return f, nil
	}
	f, err := s.store.Files().GetByID(ctx, fileID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	s.cache.Put(f)
	return f, nil
}

// ListVersions возвращает историю версий файла, новые первыми.
// Требуется роль viewer.
func (s *FileService) ListVersions(ctx context.Context, userID, fileID string) ([]*model.FileVersion, error) {
	if err := s.acl.Authorize(ctx, s.store, fileID, model.ResourceTypeFile, userID, access.RoleViewer); err != nil {
		return nil, err
	}
	return s.store.Versions().ListByFile(ctx, fileID)
}

// DownloadURL выдаёт presigned URL скачивания текущей версии файла.
// Требуется роль viewer. Файлы без загруженного блоба или заражённые
// не скачиваются.
func (s *FileService) DownloadURL(ctx context.Context, userID, fileID string) (string, error) {
	f, err := s.Get(ctx, userID, fileID)
	if err != nil {
		return "", err
	}
	if f.CurrentVersionID == nil {
		return "", fmt.Errorf("%w: загрузка не завершена", ErrBadRequest)
	}
	if f.Status == model.FileStatusInfected {
		return "", fmt.Errorf("%w: файл заражён", ErrBadRequest)
	}
	return s.gateway.PresignedGetURL(ctx, storage.BucketFiles, f.StorageKey, s.presignTTL)
}

// VersionDownloadURL выдаёт presigned URL скачивания конкретной версии.
func (s *FileService) VersionDownloadURL(ctx context.Context, userID, versionID string) (string, error) {
	v, err := s.store.Versions().GetByID(ctx, versionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", err
	}
	if err := s.acl.Authorize(ctx, s.store, v.FileID, model.ResourceTypeFile, userID, access.RoleViewer); err != nil {
		return "", err
	}
	return s.gateway.PresignedGetURL(ctx, storage.BucketFiles, v.StorageKey, s.presignTTL)
}

// ThumbnailURL выдаёт presigned URL миниатюры файла. Требуется роль viewer.
func (s *FileService) ThumbnailURL(ctx context.Context, userID, fileID string) (string, error) {
	f, err := s.Get(ctx, userID, fileID)
	if err != nil {
		return "", err
	}
	if f.Status != model.FileStatusReady {
		return "", fmt.Errorf("%w: миниатюра ещё не готова", ErrBadRequest)
	}
	return s.gateway.PresignedGetURL(ctx, storage.BucketThumbnails, f.FileID, s.presignTTL)
}

// Rename переименовывает файл, пересчитывая расширение. Требуется роль
// editor. Дублирующееся имя среди соседей — ErrConflict.
func (s *FileService) Rename(ctx context.Context, userID, fileID, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: пустое имя файла", ErrValidation)
	}
	f, err := s.requireFile(ctx, userID, fileID, access.RoleEditor)
	if err != nil {
		return err
	}
	if f.IsTrashed {
		return fmt.Errorf("%w: файл в корзине", ErrBadRequest)
	}
	if err := s.store.Files().Rename(ctx, fileID, name, fileExtension(name)); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return ErrConflict
		}
		return err
	}
	s.cache.Invalidate(fileID)
	return nil
}

// Move перемещает файл в другую папку (nil — на верхний уровень).
// Требуется роль editor на файле и на папке назначения.
func (s *FileService) Move(ctx context.Context, userID, fileID string, folderID *string) error {
	f, err := s.requireFile(ctx, userID, fileID, access.RoleEditor)
	if err != nil {
		return err
	}
	if f.IsTrashed {
		return fmt.Errorf("%w: файл в корзине", ErrBadRequest)
	}
	if folderID != nil {
		if _, err := s.requireUploadFolder(ctx, userID, *folderID); err != nil {
			return err
		}
	}
	if err := s.store.Files().SetFolder(ctx, fileID, folderID); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return ErrConflict
		}
		return err
	}
	s.cache.Invalidate(fileID)
	return nil
}

// SetStarred помечает/снимает отметку "избранное". Требуется роль editor.
func (s *FileService) SetStarred(ctx context.Context, userID, fileID string, starred bool) error {
	if _, err := s.requireFile(ctx, userID, fileID, access.RoleEditor); err != nil {
		return err
	}
	if err := s.store.Files().SetStarred(ctx, fileID, starred); err != nil {
		return err
	}
	s.cache.Invalidate(fileID)
	return nil
}

// Trash помещает файл в корзину. Квота не меняется: данные всё ещё
// занимают место. Требуется роль editor. Повторный вызов — no-op.
func (s *FileService) Trash(ctx context.Context, userID, fileID string) error {
	f, err := s.requireFile(ctx, userID, fileID, access.RoleEditor)
	if err != nil {
		return err
	}
	if f.IsTrashed {
		return nil
	}
	if err := s.store.Files().Trash(ctx, fileID, time.Now().UTC()); err != nil {
		return err
	}
	s.cache.Invalidate(fileID)
	return nil
}

// Restore восстанавливает файл из корзины. Если его папка удалена или
// сама в корзине — файл поднимается на верхний уровень владельца.
func (s *FileService) Restore(ctx context.Context, userID, fileID string) error {
	f, err := s.requireFile(ctx, userID, fileID, access.RoleEditor)
	if err != nil {
		return err
	}
	if !f.IsTrashed {
		return fmt.Errorf("%w: файл не в корзине", ErrBadRequest)
	}

	err = s.store.RunInTx(ctx, func(r repository.Repos) error {
		reparent := false
		if f.FolderID != nil {
			folder, err := r.Folders().GetByID(ctx, *f.FolderID)
			switch {
			case errors.Is(err, repository.ErrNotFound):
				reparent = true
			case err != nil:
				return err
			case folder.IsTrashed:
				reparent = true
			}
		}
		if reparent {
			if err := r.Files().SetFolder(ctx, fileID, nil); err != nil && !errors.Is(err, repository.ErrConflict) {
				return err
			}
		}
		if err := r.Files().Restore(ctx, fileID); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return ErrConflict
			}
			return err
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.cache.Invalidate(fileID)
	s.logger.Info("файл восстановлен из корзины", slog.String("file_id", fileID))
	return nil
}

// PermanentDelete безвозвратно удаляет файл: все версии, блобы, права
// и занимаемое место в квоте. Требуется роль owner.
func (s *FileService) PermanentDelete(ctx context.Context, userID, fileID string) error {
	if err := s.acl.Authorize(ctx, s.store, fileID, model.ResourceTypeFile, userID, access.RoleOwner); err != nil {
		return err
	}

	var orphanKeys []string
	err := s.store.RunInTx(ctx, func(r repository.Repos) error {
		f, err := r.Files().GetByIDForUpdate(ctx, fileID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrNotFound
			}
			return err
		}

		versions, err := r.Versions().ListByFile(ctx, fileID)
		if err != nil {
			return err
		}
		for _, v := range versions {
			orphanKeys = append(orphanKeys, v.StorageKey)
		}
		if f.CurrentVersionID != nil {
			if err := r.Users().AdjustStorageUsed(ctx, f.OwnerID, -f.SizeBytes); err != nil && !errors.Is(err, repository.ErrNegativeUsage) {
				return err
			}
		}
		if err := r.Grants().DeleteByResource(ctx, fileID, model.ResourceTypeFile); err != nil {
			return err
		}
		return r.Files().Delete(ctx, fileID)
	})
	if err != nil {
		return err
	}

	s.cache.Invalidate(fileID)
	for _, key := range orphanKeys {
		if err := s.gateway.Delete(ctx, storage.BucketFiles, key); err != nil {
			s.logger.Warn("не удалось удалить блоб",
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
		}
	}
	for _, bucket := range []string{storage.BucketThumbnails, storage.BucketPreviews} {
		if err := s.gateway.Delete(ctx, bucket, fileID); err != nil {
			s.logger.Warn("не удалось удалить производный объект",
				slog.String("bucket", bucket),
				slog.String("file_id", fileID),
				slog.String("error", err.Error()),
			)
		}
	}

	filesDeletedTotal.Inc()
	s.logger.Info("файл удалён безвозвратно",
		slog.String("file_id", fileID),
		slog.Int("versions", len(orphanKeys)),
	)
	return nil
}

// HandleScanResult обрабатывает вердикт антивирусного воркера.
// Переходы условные (status = scanning), поэтому повторная доставка
// того же вердикта — no-op: операция идемпотентна под retry-политикой
// очереди. Чистый файл отправляется на генерацию миниатюры.
func (s *FileService) HandleScanResult(ctx context.Context, fileID, verdict string) error {
	var (
		applied bool
		err     error
	)
	switch verdict {
	case model.ScanStatusClean:
		applied, err = s.store.Files().UpdateStatusIf(ctx, fileID, model.FileStatusScanning, model.FileStatusProcessing, model.ScanStatusClean)
	case model.ScanStatusInfected:
		applied, err = s.store.Files().UpdateStatusIf(ctx, fileID, model.FileStatusScanning, model.FileStatusInfected, model.ScanStatusInfected)
	case model.ScanStatusError:
		applied, err = s.store.Files().UpdateStatusIf(ctx, fileID, model.FileStatusScanning, model.FileStatusError, model.ScanStatusError)
	default:
		return fmt.Errorf("%w: неизвестный вердикт %q", ErrValidation, verdict)
	}
	if err != nil {
		return err
	}
	if !applied {
		s.logger.Debug("вердикт проигнорирован: файл не в статусе scanning",
			slog.String("file_id", fileID),
			slog.String("verdict", verdict),
		)
		return nil
	}

	s.cache.Invalidate(fileID)
	scanVerdictsTotal.WithLabelValues(verdict).Inc()

	if verdict == model.ScanStatusClean {
		job := queue.Job{
			Name:     queue.JobThumbnail,
			Payload:  map[string]string{"file_id": fileID},
			Attempts: s.scanAttempts,
			Backoff:  s.scanBackoff,
		}
		if err := s.jobs.Enqueue(ctx, job); err != nil {
			// Файл останется в processing; добьёт следующая сверка.
			s.logger.Error("не удалось поставить задачу миниатюры",
				slog.String("file_id", fileID),
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.Info("вердикт проверки применён",
		slog.String("file_id", fileID),
		slog.String("verdict", verdict),
	)
	return nil
}

// HandleThumbnailResult фиксирует завершение генерации миниатюры:
// processing → ready. Идемпотентен.
func (s *FileService) HandleThumbnailResult(ctx context.Context, fileID string, ok bool) error {
	to := model.FileStatusReady
	if !ok {
		to = model.FileStatusError
	}
	applied, err := s.store.Files().UpdateStatusIf(ctx, fileID, model.FileStatusProcessing, to, model.ScanStatusClean)
	if err != nil {
		return err
	}
	if applied {
		s.cache.Invalidate(fileID)
	}
	return nil
}

// enqueueScan ставит задачу антивирусной проверки. Fire-and-forget:
// ошибка постановки логируется, файл остаётся в scanning до сверки.
func (s *FileService) enqueueScan(ctx context.Context, f *model.File, v *model.FileVersion) {
	job := queue.Job{
		Name: queue.JobVirusScan,
		Payload: map[string]string{
			"file_id":     f.FileID,
			"version_id":  v.VersionID,
			"storage_key": v.StorageKey,
		},
		Attempts: s.scanAttempts,
		Backoff:  s.scanBackoff,
	}
	if err := s.jobs.Enqueue(ctx, job); err != nil {
		s.logger.Error("не удалось поставить задачу проверки",
			slog.String("file_id", f.FileID),
			slog.String("error", err.Error()),
		)
	}
}

// checkQuota проверяет, что добавление additional байт не превысит
// квоту владельца. Отрицательная дельта всегда проходит.
func (s *FileService) checkQuota(ctx context.Context, r repository.Repos, ownerID string, additional int64) error {
	if additional <= 0 {
		return nil
	}
	u, err := r.Users().GetByID(ctx, ownerID)
	if err != nil {
		return err
	}
	if u.StorageUsedBytes+additional > u.StorageQuotaBytes {
		return ErrQuotaExceeded
	}
	return nil
}

// requireFile загружает файл с проверкой роли.
func (s *FileService) requireFile(ctx context.Context, userID, fileID, need string) (*model.File, error) {
	if err := s.acl.Authorize(ctx, s.store, fileID, model.ResourceTypeFile, userID, need); err != nil {
		return nil, err
	}
	f, err := s.store.Files().GetByID(ctx, fileID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return f, nil
}

// requireUploadFolder проверяет, что папка назначения пригодна для
// размещения контента: существует, доступна с ролью editor и не в корзине.
func (s *FileService) requireUploadFolder(ctx context.Context, userID, folderID string) (*model.Folder, error) {
	if err := s.acl.Authorize(ctx, s.store, folderID, model.ResourceTypeFolder, userID, access.RoleEditor); err != nil {
		return nil, err
	}
	folder, err := s.store.Folders().GetByID(ctx, folderID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if folder.IsTrashed {
		return nil, fmt.Errorf("%w: папка в корзине", ErrBadRequest)
	}
	return folder, nil
}
