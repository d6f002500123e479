package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/godrive/internal/domain/model"
)

// grantColumns — список столбцов таблицы permission_grants для SELECT-запросов.
const grantColumns = `grant_id, resource_id, resource_type, user_id, role,
	inherited_from, granted_by, created_at, updated_at`

// PermissionRepository — доступ к правам в таблице permission_grants.
// На ресурс + пользователя существует не более одной записи
// (уникальный индекс): прямая или производная.
type PermissionRepository interface {
	// UpsertDirect вставляет прямое право или превращает существующую запись
	// (в том числе производную) в прямую с новой ролью. Возвращает grant_id
	// итоговой записи — корень распространения.
	UpsertDirect(ctx context.Context, g *model.PermissionGrant) (string, error)
	// InsertDerived вставляет производное право. Если запись для пары
	// ресурс+пользователь уже есть — ничего не делает (существующее право
	// всегда побеждает распространение). Идемпотентна.
	InsertDerived(ctx context.Context, g *model.PermissionGrant) error
	// Get возвращает право (прямое или производное) пользователя на ресурс.
	Get(ctx context.Context, resourceID, resourceType, userID string) (*model.PermissionGrant, error)
	// DeleteDirect удаляет прямое право и возвращает его grant_id.
	// ErrNotFound, если прямого права нет.
	DeleteDirect(ctx context.Context, resourceID, resourceType, userID string) (string, error)
	// DeleteByInheritedFrom удаляет права, чьё inherited_from входит в ids,
	// и возвращает grant_id удалённых — один шаг волны отзыва.
	DeleteByInheritedFrom(ctx context.Context, ids []string) ([]string, error)
	// DeleteByResource удаляет все права на ресурс (при permanent delete).
	DeleteByResource(ctx context.Context, resourceID, resourceType string) error
	// ListByResource возвращает права на ресурс.
	ListByResource(ctx context.Context, resourceID, resourceType string) ([]*model.PermissionGrant, error)
	// ListDirectByUser возвращает прямые права пользователя —
	// ресурсы, которыми с ним поделились явно.
	ListDirectByUser(ctx context.Context, userID string) ([]*model.PermissionGrant, error)
}

// permissionRepo — реализация PermissionRepository через pgx.
type permissionRepo struct {
	db DBTX
}

// NewPermissionRepository создаёт репозиторий прав.
func NewPermissionRepository(db DBTX) PermissionRepository {
	return &permissionRepo{db: db}
}

func (r *permissionRepo) UpsertDirect(ctx context.Context, g *model.PermissionGrant) (string, error) {
	query := `
		INSERT INTO permission_grants (grant_id, resource_id, resource_type, user_id,
			role, inherited_from, granted_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NULL, $6, $7, $7)
		ON CONFLICT (resource_id, resource_type, user_id)
		DO UPDATE SET role = EXCLUDED.role,
			inherited_from = NULL,
			granted_by = EXCLUDED.granted_by,
			updated_at = now()
		RETURNING grant_id`

	var grantID string
	err := r.db.QueryRow(ctx, query,
		g.GrantID, g.ResourceID, g.ResourceType, g.UserID, g.Role, g.GrantedBy, g.CreatedAt,
	).Scan(&grantID)
	if err != nil {
		return "", fmt.Errorf("ошибка upsert прямого права: %w", err)
	}
	return grantID, nil
}

func (r *permissionRepo) InsertDerived(ctx context.Context, g *model.PermissionGrant) error {
	query := `
		INSERT INTO permission_grants (grant_id, resource_id, resource_type, user_id,
			role, inherited_from, granted_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		ON CONFLICT (resource_id, resource_type, user_id) DO NOTHING`

	_, err := r.db.Exec(ctx, query,
		g.GrantID, g.ResourceID, g.ResourceType, g.UserID,
		g.Role, g.InheritedFrom, g.GrantedBy, g.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("ошибка вставки производного права: %w", err)
	}
	return nil
}

func (r *permissionRepo) Get(ctx context.Context, resourceID, resourceType, userID string) (*model.PermissionGrant, error) {
	query := fmt.Sprintf(`SELECT %s FROM permission_grants
		WHERE resource_id = $1 AND resource_type = $2 AND user_id = $3`, grantColumns)

	g := &model.PermissionGrant{}
	err := r.db.QueryRow(ctx, query, resourceID, resourceType, userID).Scan(
		&g.GrantID, &g.ResourceID, &g.ResourceType, &g.UserID, &g.Role,
		&g.InheritedFrom, &g.GrantedBy, &g.CreatedAt, &g.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения права: %w", err)
	}
	return g, nil
}

func (r *permissionRepo) DeleteDirect(ctx context.Context, resourceID, resourceType, userID string) (string, error) {
	query := `
		DELETE FROM permission_grants
		WHERE resource_id = $1 AND resource_type = $2 AND user_id = $3
			AND inherited_from IS NULL
		RETURNING grant_id`

	var grantID string
	err := r.db.QueryRow(ctx, query, resourceID, resourceType, userID).Scan(&grantID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("ошибка удаления прямого права: %w", err)
	}
	return grantID, nil
}

func (r *permissionRepo) DeleteByInheritedFrom(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `
		DELETE FROM permission_grants
		WHERE inherited_from = ANY($1)
		RETURNING grant_id`

	rows, err := r.db.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("ошибка удаления производных прав: %w", err)
	}
	defer rows.Close()

	var deleted []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("ошибка сканирования grant_id: %w", err)
		}
		deleted = append(deleted, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка итерации удалённых прав: %w", err)
	}
	return deleted, nil
}

func (r *permissionRepo) DeleteByResource(ctx context.Context, resourceID, resourceType string) error {
	_, err := r.db.Exec(ctx,
		`DELETE FROM permission_grants WHERE resource_id = $1 AND resource_type = $2`,
		resourceID, resourceType,
	)
	if err != nil {
		return fmt.Errorf("ошибка удаления прав ресурса: %w", err)
	}
	return nil
}

func (r *permissionRepo) ListByResource(ctx context.Context, resourceID, resourceType string) ([]*model.PermissionGrant, error) {
	query := fmt.Sprintf(`SELECT %s FROM permission_grants
		WHERE resource_id = $1 AND resource_type = $2
		ORDER BY created_at`, grantColumns)
	return r.scanMany(ctx, query, resourceID, resourceType)
}

func (r *permissionRepo) ListDirectByUser(ctx context.Context, userID string) ([]*model.PermissionGrant, error) {
	query := fmt.Sprintf(`SELECT %s FROM permission_grants
		WHERE user_id = $1 AND inherited_from IS NULL
		ORDER BY created_at DESC`, grantColumns)
	return r.scanMany(ctx, query, userID)
}

func (r *permissionRepo) scanMany(ctx context.Context, query string, args ...any) ([]*model.PermissionGrant, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка выборки прав: %w", err)
	}
	defer rows.Close()

	var result []*model.PermissionGrant
	for rows.Next() {
		g := &model.PermissionGrant{}
		if err := rows.Scan(
			&g.GrantID, &g.ResourceID, &g.ResourceType, &g.UserID, &g.Role,
			&g.InheritedFrom, &g.GrantedBy, &g.CreatedAt, &g.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("ошибка сканирования права: %w", err)
		}
		result = append(result, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка итерации прав: %w", err)
	}
	return result, nil
}
