package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/godrive/internal/domain/model"
)

// fileColumns — список столбцов таблицы files для SELECT-запросов.
const fileColumns = `file_id, owner_id, folder_id, name, mime_type, extension,
	storage_key, size_bytes, current_version_id, status, scan_status,
	is_trashed, trashed_at, is_starred, created_at, updated_at`

// FileRepository — доступ к файлам в таблице files.
type FileRepository interface {
	// Create вставляет файл. ErrConflict при дублирующемся имени среди
	// не-удалённых соседей владельца.
	Create(ctx context.Context, f *model.File) error
	// GetByID возвращает файл по UUID (включая находящиеся в корзине).
	GetByID(ctx context.Context, fileID string) (*model.File, error)
	// GetByIDForUpdate возвращает файл, блокируя строку (SELECT ... FOR UPDATE).
	// Под этой блокировкой вычисляется номер следующей версии — две
	// конкурентные загрузки не получат одинаковый max+1.
	GetByIDForUpdate(ctx context.Context, fileID string) (*model.File, error)
	// ListByFolder возвращает не-удалённые файлы папки.
	// folderID == nil — файлы верхнего уровня владельца.
	ListByFolder(ctx context.Context, ownerID string, folderID *string) ([]*model.File, error)
	// Rename обновляет имя и расширение файла. ErrConflict при дубликате.
	Rename(ctx context.Context, fileID, name, extension string) error
	// SetFolder перемещает файл в другую папку (nil — корень).
	SetFolder(ctx context.Context, fileID string, folderID *string) error
	// SetStarred выставляет признак избранного.
	SetStarred(ctx context.Context, fileID string, starred bool) error
	// SetCurrentVersion обновляет зеркалируемые атрибуты текущей версии.
	SetCurrentVersion(ctx context.Context, fileID, versionID, storageKey string, sizeBytes int64, mimeType string) error
	// UpdateStatusIf переводит файл из статуса from в to, обновляя scan_status.
	// Возвращает false, если файл не в статусе from — идемпотентность
	// переходов под retry-политикой очереди.
	UpdateStatusIf(ctx context.Context, fileID, from, to, scanStatus string) (bool, error)
	// SetStatus безусловно выставляет статус и scan_status файла.
	// Используется при загрузке новой версии: прежний статус неважен.
	SetStatus(ctx context.Context, fileID, status, scanStatus string) error
	// Trash помещает файл в корзину.
	Trash(ctx context.Context, fileID string, trashedAt time.Time) error
	// TrashBySubtree помещает в корзину все файлы поддерева папки
	// (самой папки и всех её потомков) с общим trashedAt.
	TrashBySubtree(ctx context.Context, folderID, subtreePrefix string, trashedAt time.Time) (int64, error)
	// Restore убирает файл из корзины.
	Restore(ctx context.Context, fileID string) error
	// Delete удаляет строку файла (версии каскадно — FK ON DELETE CASCADE).
	Delete(ctx context.Context, fileID string) error
	// ListBySubtree возвращает все файлы поддерева папки, включая корзину —
	// для каскадного permanent delete.
	ListBySubtree(ctx context.Context, folderID, subtreePrefix string) ([]*model.File, error)
	// ListTrashed возвращает файлы владельца, находящиеся в корзине.
	ListTrashed(ctx context.Context, ownerID string) ([]*model.File, error)
	// ListStaleUploading возвращает файлы, зависшие в статусе uploading
	// дольше допустимого — кандидаты для reaper.
	ListStaleUploading(ctx context.Context, olderThan time.Time, limit int) ([]*model.File, error)
}

// fileRepo — реализация FileRepository через pgx.
type fileRepo struct {
	db DBTX
}

// NewFileRepository создаёт репозиторий файлов.
func NewFileRepository(db DBTX) FileRepository {
	return &fileRepo{db: db}
}

func (r *fileRepo) Create(ctx context.Context, f *model.File) error {
	query := `
		INSERT INTO files (file_id, owner_id, folder_id, name, mime_type, extension,
			storage_key, size_bytes, current_version_id, status, scan_status,
			is_trashed, trashed_at, is_starred, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, false, NULL, false, $12, $12)`

	_, err := r.db.Exec(ctx, query,
		f.FileID, f.OwnerID, f.FolderID, f.Name, f.MimeType, f.Extension,
		f.StorageKey, f.SizeBytes, f.CurrentVersionID, f.Status, f.ScanStatus,
		f.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("ошибка создания файла: %w", err)
	}
	return nil
}

func (r *fileRepo) GetByID(ctx context.Context, fileID string) (*model.File, error) {
	query := fmt.Sprintf(`SELECT %s FROM files WHERE file_id = $1`, fileColumns)
	return r.scanOne(ctx, query, fileID)
}

func (r *fileRepo) GetByIDForUpdate(ctx context.Context, fileID string) (*model.File, error) {
	query := fmt.Sprintf(`SELECT %s FROM files WHERE file_id = $1 FOR UPDATE`, fileColumns)
	return r.scanOne(ctx, query, fileID)
}

func (r *fileRepo) scanOne(ctx context.Context, query string, args ...any) (*model.File, error) {
	f := &model.File{}
	err := r.db.QueryRow(ctx, query, args...).Scan(
		&f.FileID, &f.OwnerID, &f.FolderID, &f.Name, &f.MimeType, &f.Extension,
		&f.StorageKey, &f.SizeBytes, &f.CurrentVersionID, &f.Status, &f.ScanStatus,
		&f.IsTrashed, &f.TrashedAt, &f.IsStarred, &f.CreatedAt, &f.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения файла: %w", err)
	}
	return f, nil
}

func (r *fileRepo) scanMany(ctx context.Context, query string, args ...any) ([]*model.File, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка выборки файлов: %w", err)
	}
	defer rows.Close()

	var result []*model.File
	for rows.Next() {
		f := &model.File{}
		if err := rows.Scan(
			&f.FileID, &f.OwnerID, &f.FolderID, &f.Name, &f.MimeType, &f.Extension,
			&f.StorageKey, &f.SizeBytes, &f.CurrentVersionID, &f.Status, &f.ScanStatus,
			&f.IsTrashed, &f.TrashedAt, &f.IsStarred, &f.CreatedAt, &f.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("ошибка сканирования файла: %w", err)
		}
		result = append(result, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка итерации файлов: %w", err)
	}
	return result, nil
}

func (r *fileRepo) ListByFolder(ctx context.Context, ownerID string, folderID *string) ([]*model.File, error) {
	if folderID == nil {
		query := fmt.Sprintf(`SELECT %s FROM files
			WHERE owner_id = $1 AND folder_id IS NULL AND NOT is_trashed
			ORDER BY name`, fileColumns)
		return r.scanMany(ctx, query, ownerID)
	}
	query := fmt.Sprintf(`SELECT %s FROM files
		WHERE folder_id = $1 AND NOT is_trashed
		ORDER BY name`, fileColumns)
	return r.scanMany(ctx, query, *folderID)
}

func (r *fileRepo) Rename(ctx context.Context, fileID, name, extension string) error {
	query := `
		UPDATE files
		SET name = $2, extension = $3, updated_at = now()
		WHERE file_id = $1`

	tag, err := r.db.Exec(ctx, query, fileID, name, extension)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("ошибка переименования файла: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *fileRepo) SetFolder(ctx context.Context, fileID string, folderID *string) error {
	query := `UPDATE files SET folder_id = $2, updated_at = now() WHERE file_id = $1`

	tag, err := r.db.Exec(ctx, query, fileID, folderID)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("ошибка перемещения файла: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *fileRepo) SetStarred(ctx context.Context, fileID string, starred bool) error {
	query := `UPDATE files SET is_starred = $2, updated_at = now() WHERE file_id = $1`

	tag, err := r.db.Exec(ctx, query, fileID, starred)
	if err != nil {
		return fmt.Errorf("ошибка изменения признака избранного: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *fileRepo) SetCurrentVersion(ctx context.Context, fileID, versionID, storageKey string, sizeBytes int64, mimeType string) error {
	query := `
		UPDATE files
		SET current_version_id = $2, storage_key = $3, size_bytes = $4,
			mime_type = $5, updated_at = now()
		WHERE file_id = $1`

	tag, err := r.db.Exec(ctx, query, fileID, versionID, storageKey, sizeBytes, mimeType)
	if err != nil {
		return fmt.Errorf("ошибка обновления текущей версии файла: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *fileRepo) UpdateStatusIf(ctx context.Context, fileID, from, to, scanStatus string) (bool, error) {
	query := `
		UPDATE files
		SET status = $3, scan_status = $4, updated_at = now()
		WHERE file_id = $1 AND status = $2`

	tag, err := r.db.Exec(ctx, query, fileID, from, to, scanStatus)
	if err != nil {
		return false, fmt.Errorf("ошибка перевода статуса файла: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *fileRepo) SetStatus(ctx context.Context, fileID, status, scanStatus string) error {
	query := `
		UPDATE files
		SET status = $2, scan_status = $3, updated_at = now()
		WHERE file_id = $1`

	tag, err := r.db.Exec(ctx, query, fileID, status, scanStatus)
	if err != nil {
		return fmt.Errorf("ошибка выставления статуса файла: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *fileRepo) Trash(ctx context.Context, fileID string, trashedAt time.Time) error {
	query := `
		UPDATE files
		SET is_trashed = true, trashed_at = $2, updated_at = now()
		WHERE file_id = $1`

	tag, err := r.db.Exec(ctx, query, fileID, trashedAt)
	if err != nil {
		return fmt.Errorf("ошибка помещения файла в корзину: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *fileRepo) TrashBySubtree(ctx context.Context, folderID, subtreePrefix string, trashedAt time.Time) (int64, error) {
	query := `
		UPDATE files
		SET is_trashed = true, trashed_at = $3, updated_at = now()
		WHERE folder_id = $1
		   OR folder_id IN (SELECT folder_id FROM folders WHERE path LIKE $2 || '%')`

	tag, err := r.db.Exec(ctx, query, folderID, subtreePrefix, trashedAt)
	if err != nil {
		return 0, fmt.Errorf("ошибка помещения файлов поддерева в корзину: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *fileRepo) Restore(ctx context.Context, fileID string) error {
	query := `
		UPDATE files
		SET is_trashed = false, trashed_at = NULL, updated_at = now()
		WHERE file_id = $1`

	tag, err := r.db.Exec(ctx, query, fileID)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("ошибка восстановления файла: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *fileRepo) Delete(ctx context.Context, fileID string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM files WHERE file_id = $1`, fileID)
	if err != nil {
		return fmt.Errorf("ошибка удаления файла: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *fileRepo) ListBySubtree(ctx context.Context, folderID, subtreePrefix string) ([]*model.File, error) {
	query := fmt.Sprintf(`SELECT %s FROM files
		WHERE folder_id = $1
		   OR folder_id IN (SELECT folder_id FROM folders WHERE path LIKE $2 || '%%')`, fileColumns)
	return r.scanMany(ctx, query, folderID, subtreePrefix)
}

func (r *fileRepo) ListTrashed(ctx context.Context, ownerID string) ([]*model.File, error) {
	query := fmt.Sprintf(`SELECT %s FROM files
		WHERE owner_id = $1 AND is_trashed
		ORDER BY trashed_at DESC, name`, fileColumns)
	return r.scanMany(ctx, query, ownerID)
}

func (r *fileRepo) ListStaleUploading(ctx context.Context, olderThan time.Time, limit int) ([]*model.File, error) {
	query := fmt.Sprintf(`SELECT %s FROM files
		WHERE status = 'uploading' AND created_at < $1
		ORDER BY created_at
		LIMIT $2`, fileColumns)
	return r.scanMany(ctx, query, olderThan, limit)
}
