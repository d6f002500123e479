package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/godrive/internal/domain/model"
)

// versionColumns — список столбцов таблицы file_versions для SELECT-запросов.
const versionColumns = `version_id, file_id, version_number, storage_key,
	size_bytes, checksum, mime_type, uploaded_by, comment, created_at`

// VersionRepository — доступ к версиям файлов в таблице file_versions.
// Версии неизменяемы: только INSERT и чтение, UPDATE отсутствует.
type VersionRepository interface {
	// Create вставляет версию. ErrConflict при дублирующемся номере версии
	// файла (защита инварианта строгой монотонности на уровне БД).
	Create(ctx context.Context, v *model.FileVersion) error
	// GetByID возвращает версию по UUID.
	GetByID(ctx context.Context, versionID string) (*model.FileVersion, error)
	// ListByFile возвращает версии файла по убыванию номера.
	ListByFile(ctx context.Context, fileID string) ([]*model.FileVersion, error)
	// MaxNumber возвращает максимальный номер версии файла, 0 — версий нет.
	// Вызывается под блокировкой строки файла (GetByIDForUpdate).
	MaxNumber(ctx context.Context, fileID string) (int, error)
}

// versionRepo — реализация VersionRepository через pgx.
type versionRepo struct {
	db DBTX
}

// NewVersionRepository создаёт репозиторий версий.
func NewVersionRepository(db DBTX) VersionRepository {
	return &versionRepo{db: db}
}

func (r *versionRepo) Create(ctx context.Context, v *model.FileVersion) error {
	query := `
		INSERT INTO file_versions (version_id, file_id, version_number, storage_key,
			size_bytes, checksum, mime_type, uploaded_by, comment, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.db.Exec(ctx, query,
		v.VersionID, v.FileID, v.VersionNumber, v.StorageKey,
		v.SizeBytes, v.Checksum, v.MimeType, v.UploadedBy, v.Comment, v.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("ошибка создания версии: %w", err)
	}
	return nil
}

func (r *versionRepo) GetByID(ctx context.Context, versionID string) (*model.FileVersion, error) {
	query := fmt.Sprintf(`SELECT %s FROM file_versions WHERE version_id = $1`, versionColumns)

	v := &model.FileVersion{}
	err := r.db.QueryRow(ctx, query, versionID).Scan(
		&v.VersionID, &v.FileID, &v.VersionNumber, &v.StorageKey,
		&v.SizeBytes, &v.Checksum, &v.MimeType, &v.UploadedBy, &v.Comment, &v.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения версии: %w", err)
	}
	return v, nil
}

func (r *versionRepo) ListByFile(ctx context.Context, fileID string) ([]*model.FileVersion, error) {
	query := fmt.Sprintf(`SELECT %s FROM file_versions
		WHERE file_id = $1
		ORDER BY version_number DESC`, versionColumns)

	rows, err := r.db.Query(ctx, query, fileID)
	if err != nil {
		return nil, fmt.Errorf("ошибка выборки версий: %w", err)
	}
	defer rows.Close()

	var result []*model.FileVersion
	for rows.Next() {
		v := &model.FileVersion{}
		if err := rows.Scan(
			&v.VersionID, &v.FileID, &v.VersionNumber, &v.StorageKey,
			&v.SizeBytes, &v.Checksum, &v.MimeType, &v.UploadedBy, &v.Comment, &v.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("ошибка сканирования версии: %w", err)
		}
		result = append(result, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка итерации версий: %w", err)
	}
	return result, nil
}

func (r *versionRepo) MaxNumber(ctx context.Context, fileID string) (int, error) {
	var max int
	err := r.db.QueryRow(ctx,
		`SELECT COALESCE(MAX(version_number), 0) FROM file_versions WHERE file_id = $1`,
		fileID,
	).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("ошибка вычисления номера версии: %w", err)
	}
	return max, nil
}
