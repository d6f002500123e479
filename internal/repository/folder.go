package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/godrive/internal/domain/model"
)

// folderColumns — список столбцов таблицы folders для SELECT-запросов.
// DRY: одно место для всех SELECT'ов.
const folderColumns = `folder_id, owner_id, parent_id, name, path, depth,
	is_trashed, trashed_at, is_starred, created_at, updated_at`

// FolderRepository — доступ к папкам в таблице folders.
// Каскадные операции над поддеревом (rebase, trash) — массовые UPDATE по
// префиксу материализованного пути; вызываются только внутри транзакции
// под advisory-блокировкой поддерева (AcquireSubtreeLock).
type FolderRepository interface {
	// Create вставляет папку. ErrConflict при дублирующемся имени среди
	// не-удалённых соседей владельца.
	Create(ctx context.Context, f *model.Folder) error
	// GetByID возвращает папку по UUID (включая находящиеся в корзине).
	GetByID(ctx context.Context, folderID string) (*model.Folder, error)
	// GetByIDForUpdate возвращает папку, блокируя строку (SELECT ... FOR UPDATE).
	// Имеет смысл только внутри транзакции.
	GetByIDForUpdate(ctx context.Context, folderID string) (*model.Folder, error)
	// AcquireSubtreeLock берёт advisory-блокировку поддерева по UUID его корня
	// до конца текущей транзакции (pg_advisory_xact_lock).
	AcquireSubtreeLock(ctx context.Context, folderID string) error
	// ListChildren возвращает не-удалённые дочерние папки.
	// parentID == nil — папки верхнего уровня владельца.
	ListChildren(ctx context.Context, ownerID string, parentID *string) ([]*model.Folder, error)
	// Rename обновляет имя папки. ErrConflict при дублирующемся имени.
	Rename(ctx context.Context, folderID, name string) error
	// SetLocation обновляет parent_id, path и depth самой папки (без потомков).
	SetLocation(ctx context.Context, folderID string, parentID *string, path string, depth int) error
	// RebaseSubtree переписывает path/depth всех потомков при перемещении:
	// path получает префикс newPrefix вместо oldPrefix, depth сдвигается на
	// depthDelta. Возвращает число обновлённых папок.
	RebaseSubtree(ctx context.Context, oldPrefix, newPrefix string, depthDelta int) (int64, error)
	// TrashSubtree помечает папку и все папки её поддерева как удалённые
	// с общим trashedAt. Возвращает число помеченных папок.
	TrashSubtree(ctx context.Context, folderID, subtreePrefix string, trashedAt time.Time) (int64, error)
	// Restore убирает из корзины ровно одну папку.
	Restore(ctx context.Context, folderID string) error
	// SetStarred выставляет признак избранного.
	SetStarred(ctx context.Context, folderID string, starred bool) error
	// ListSubtree возвращает все папки поддерева (включая корзину),
	// отсортированные по глубине по убыванию — для удаления снизу вверх.
	ListSubtree(ctx context.Context, subtreePrefix string) ([]*model.Folder, error)
	// Delete удаляет строку папки.
	Delete(ctx context.Context, folderID string) error
	// ListTrashed возвращает папки владельца, находящиеся в корзине.
	ListTrashed(ctx context.Context, ownerID string) ([]*model.Folder, error)
}

// folderRepo — реализация FolderRepository через pgx.
type folderRepo struct {
	db DBTX
}

// NewFolderRepository создаёт репозиторий папок.
func NewFolderRepository(db DBTX) FolderRepository {
	return &folderRepo{db: db}
}

func (r *folderRepo) Create(ctx context.Context, f *model.Folder) error {
	query := `
		INSERT INTO folders (folder_id, owner_id, parent_id, name, path, depth,
			is_trashed, trashed_at, is_starred, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, false, NULL, $7, $8, $8)`

	_, err := r.db.Exec(ctx, query,
		f.FolderID, f.OwnerID, f.ParentID, f.Name, f.Path, f.Depth,
		f.IsStarred, f.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("ошибка создания папки: %w", err)
	}
	return nil
}

func (r *folderRepo) GetByID(ctx context.Context, folderID string) (*model.Folder, error) {
	query := fmt.Sprintf(`SELECT %s FROM folders WHERE folder_id = $1`, folderColumns)
	return r.scanOne(ctx, query, folderID)
}

func (r *folderRepo) GetByIDForUpdate(ctx context.Context, folderID string) (*model.Folder, error) {
	query := fmt.Sprintf(`SELECT %s FROM folders WHERE folder_id = $1 FOR UPDATE`, folderColumns)
	return r.scanOne(ctx, query, folderID)
}

func (r *folderRepo) scanOne(ctx context.Context, query string, args ...any) (*model.Folder, error) {
	f := &model.Folder{}
	err := r.db.QueryRow(ctx, query, args...).Scan(
		&f.FolderID, &f.OwnerID, &f.ParentID, &f.Name, &f.Path, &f.Depth,
		&f.IsTrashed, &f.TrashedAt, &f.IsStarred, &f.CreatedAt, &f.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения папки: %w", err)
	}
	return f, nil
}

// AcquireSubtreeLock сериализует структурные мутации одного поддерева.
// hashtextextended сворачивает UUID в int64-ключ advisory-блокировки.
func (r *folderRepo) AcquireSubtreeLock(ctx context.Context, folderID string) error {
	_, err := r.db.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, folderID)
	if err != nil {
		return fmt.Errorf("ошибка advisory-блокировки поддерева: %w", err)
	}
	return nil
}

func (r *folderRepo) ListChildren(ctx context.Context, ownerID string, parentID *string) ([]*model.Folder, error) {
	var (
		query string
		args  []any
	)
	if parentID == nil {
		query = fmt.Sprintf(`SELECT %s FROM folders
			WHERE owner_id = $1 AND parent_id IS NULL AND NOT is_trashed
			ORDER BY name`, folderColumns)
		args = []any{ownerID}
	} else {
		query = fmt.Sprintf(`SELECT %s FROM folders
			WHERE parent_id = $1 AND NOT is_trashed
			ORDER BY name`, folderColumns)
		args = []any{*parentID}
	}
	return r.scanMany(ctx, query, args...)
}

func (r *folderRepo) scanMany(ctx context.Context, query string, args ...any) ([]*model.Folder, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка выборки папок: %w", err)
	}
	defer rows.Close()

	var result []*model.Folder
	for rows.Next() {
		f := &model.Folder{}
		if err := rows.Scan(
			&f.FolderID, &f.OwnerID, &f.ParentID, &f.Name, &f.Path, &f.Depth,
			&f.IsTrashed, &f.TrashedAt, &f.IsStarred, &f.CreatedAt, &f.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("ошибка сканирования папки: %w", err)
		}
		result = append(result, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка итерации папок: %w", err)
	}
	return result, nil
}

func (r *folderRepo) Rename(ctx context.Context, folderID, name string) error {
	query := `UPDATE folders SET name = $2, updated_at = now() WHERE folder_id = $1`

	tag, err := r.db.Exec(ctx, query, folderID, name)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("ошибка переименования папки: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *folderRepo) SetLocation(ctx context.Context, folderID string, parentID *string, path string, depth int) error {
	query := `
		UPDATE folders
		SET parent_id = $2, path = $3, depth = $4, updated_at = now()
		WHERE folder_id = $1`

	tag, err := r.db.Exec(ctx, query, folderID, parentID, path, depth)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("ошибка перемещения папки: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// RebaseSubtree — массовое обновление материализованных путей потомков.
// Выполняется одним UPDATE в той же транзакции, что и перемещение корня
// поддерева: инвариант path/depth не наблюдаем в частично обновлённом виде.
func (r *folderRepo) RebaseSubtree(ctx context.Context, oldPrefix, newPrefix string, depthDelta int) (int64, error) {
	query := `
		UPDATE folders
		SET path = $2 || substr(path, char_length($1::text) + 1),
			depth = depth + $3,
			updated_at = now()
		WHERE path LIKE $1 || '%'`

	tag, err := r.db.Exec(ctx, query, oldPrefix, newPrefix, depthDelta)
	if err != nil {
		return 0, fmt.Errorf("ошибка пересчёта путей поддерева: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *folderRepo) TrashSubtree(ctx context.Context, folderID, subtreePrefix string, trashedAt time.Time) (int64, error) {
	query := `
		UPDATE folders
		SET is_trashed = true, trashed_at = $3, updated_at = now()
		WHERE folder_id = $1 OR path LIKE $2 || '%'`

	tag, err := r.db.Exec(ctx, query, folderID, subtreePrefix, trashedAt)
	if err != nil {
		return 0, fmt.Errorf("ошибка помещения поддерева в корзину: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *folderRepo) Restore(ctx context.Context, folderID string) error {
	query := `
		UPDATE folders
		SET is_trashed = false, trashed_at = NULL, updated_at = now()
		WHERE folder_id = $1`

	tag, err := r.db.Exec(ctx, query, folderID)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("ошибка восстановления папки: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *folderRepo) SetStarred(ctx context.Context, folderID string, starred bool) error {
	query := `UPDATE folders SET is_starred = $2, updated_at = now() WHERE folder_id = $1`

	tag, err := r.db.Exec(ctx, query, folderID, starred)
	if err != nil {
		return fmt.Errorf("ошибка изменения признака избранного: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *folderRepo) ListSubtree(ctx context.Context, subtreePrefix string) ([]*model.Folder, error) {
	query := fmt.Sprintf(`SELECT %s FROM folders
		WHERE path LIKE $1 || '%%'
		ORDER BY depth DESC`, folderColumns)
	return r.scanMany(ctx, query, subtreePrefix)
}

func (r *folderRepo) Delete(ctx context.Context, folderID string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM folders WHERE folder_id = $1`, folderID)
	if err != nil {
		return fmt.Errorf("ошибка удаления папки: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *folderRepo) ListTrashed(ctx context.Context, ownerID string) ([]*model.Folder, error) {
	query := fmt.Sprintf(`SELECT %s FROM folders
		WHERE owner_id = $1 AND is_trashed
		ORDER BY trashed_at DESC, name`, folderColumns)
	return r.scanMany(ctx, query, ownerID)
}
