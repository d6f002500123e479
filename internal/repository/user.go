package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/godrive/internal/domain/model"
)

// userColumns — список столбцов таблицы users для SELECT-запросов.
const userColumns = `user_id, username, email, display_name,
	storage_used_bytes, storage_quota_bytes, created_at, updated_at`

// UserRepository — доступ к пользователям и их квотам в таблице users.
// Счётчик storage_used_bytes меняется только через AdjustStorageUsed —
// атомарный инкремент в транзакции операции, изменившей размер файла.
type UserRepository interface {
	// Create вставляет пользователя. ErrConflict при занятом username/email.
	Create(ctx context.Context, u *model.User) error
	// GetByID возвращает пользователя по UUID.
	GetByID(ctx context.Context, userID string) (*model.User, error)
	// AdjustStorageUsed атомарно изменяет занятое место на delta байт.
	// ErrNegativeUsage, если результат стал бы отрицательным.
	AdjustStorageUsed(ctx context.Context, userID string, delta int64) error
	// Search ищет пользователей по подстроке username/email/display_name.
	Search(ctx context.Context, query string, limit int) ([]*model.User, error)
}

// userRepo — реализация UserRepository через pgx.
type userRepo struct {
	db DBTX
}

// NewUserRepository создаёт репозиторий пользователей.
func NewUserRepository(db DBTX) UserRepository {
	return &userRepo{db: db}
}

func (r *userRepo) Create(ctx context.Context, u *model.User) error {
	query := `
		INSERT INTO users (user_id, username, email, display_name,
			storage_used_bytes, storage_quota_bytes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)`

	_, err := r.db.Exec(ctx, query,
		u.UserID, u.Username, u.Email, u.DisplayName,
		u.StorageUsedBytes, u.StorageQuotaBytes, u.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("ошибка создания пользователя: %w", err)
	}
	return nil
}

func (r *userRepo) GetByID(ctx context.Context, userID string) (*model.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE user_id = $1`, userColumns)

	u := &model.User{}
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&u.UserID, &u.Username, &u.Email, &u.DisplayName,
		&u.StorageUsedBytes, &u.StorageQuotaBytes, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения пользователя: %w", err)
	}
	return u, nil
}

// AdjustStorageUsed — условный UPDATE: строка меняется только если счётчик
// не уходит в минус. RowsAffected == 0 означает либо отсутствие
// пользователя, либо попытку уйти в минус — различаем дополнительной выборкой.
func (r *userRepo) AdjustStorageUsed(ctx context.Context, userID string, delta int64) error {
	query := `
		UPDATE users
		SET storage_used_bytes = storage_used_bytes + $2, updated_at = now()
		WHERE user_id = $1 AND storage_used_bytes + $2 >= 0`

	tag, err := r.db.Exec(ctx, query, userID, delta)
	if err != nil {
		return fmt.Errorf("ошибка изменения счётчика квоты: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := r.db.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM users WHERE user_id = $1)`, userID,
		).Scan(&exists); err != nil {
			return fmt.Errorf("ошибка проверки пользователя: %w", err)
		}
		if !exists {
			return ErrNotFound
		}
		return ErrNegativeUsage
	}
	return nil
}

func (r *userRepo) Search(ctx context.Context, query string, limit int) ([]*model.User, error) {
	sqlQuery := fmt.Sprintf(`SELECT %s FROM users
		WHERE username ILIKE $1 OR email ILIKE $1 OR display_name ILIKE $1
		ORDER BY username
		LIMIT $2`, userColumns)

	rows, err := r.db.Query(ctx, sqlQuery, "%"+query+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка поиска пользователей: %w", err)
	}
	defer rows.Close()

	var result []*model.User
	for rows.Next() {
		u := &model.User{}
		if err := rows.Scan(
			&u.UserID, &u.Username, &u.Email, &u.DisplayName,
			&u.StorageUsedBytes, &u.StorageQuotaBytes, &u.CreatedAt, &u.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("ошибка сканирования пользователя: %w", err)
		}
		result = append(result, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка итерации пользователей: %w", err)
	}
	return result, nil
}
