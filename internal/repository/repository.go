// Пакет repository — слой доступа к данным PostgreSQL.
// Все запросы — чистый SQL через pgx, без ORM.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Ошибки слоя репозиториев.
var (
	// ErrNotFound — запись не найдена.
	ErrNotFound = errors.New("запись не найдена")
	// ErrConflict — конфликт уникальности (дублирующийся ресурс).
	ErrConflict = errors.New("конфликт — запись уже существует")
	// ErrNegativeUsage — операция привела бы к отрицательному счётчику квоты.
	ErrNegativeUsage = errors.New("счётчик занятого места не может стать отрицательным")
)

// DBTX — интерфейс для выполнения SQL-запросов.
// Реализуется как *pgxpool.Pool, так и pgx.Tx, что позволяет
// использовать репозитории как внутри, так и вне транзакций.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repos — набор репозиториев, связанных с одним источником запросов:
// пулом соединений или открытой транзакцией.
type Repos interface {
	Folders() FolderRepository
	Files() FileRepository
	Versions() VersionRepository
	Grants() PermissionRepository
	Users() UserRepository
}

// Store — Repos поверх пула плюс запуск транзакций.
// Внутри RunInTx fn получает Repos, привязанный к транзакции:
// все запросы через него выполняются атомарно.
type Store interface {
	Repos
	RunInTx(ctx context.Context, fn func(r Repos) error) error
}

// pgRepos — реализация Repos поверх DBTX (пул или транзакция).
type pgRepos struct {
	db DBTX
}

func (r *pgRepos) Folders() FolderRepository    { return NewFolderRepository(r.db) }
func (r *pgRepos) Files() FileRepository        { return NewFileRepository(r.db) }
func (r *pgRepos) Versions() VersionRepository  { return NewVersionRepository(r.db) }
func (r *pgRepos) Grants() PermissionRepository { return NewPermissionRepository(r.db) }
func (r *pgRepos) Users() UserRepository        { return NewUserRepository(r.db) }

// pgStore — реализация Store поверх pgxpool.
type pgStore struct {
	pgRepos
	pool *pgxpool.Pool
}

// NewStore создаёт Store поверх пула подключений PostgreSQL.
func NewStore(pool *pgxpool.Pool) Store {
	return &pgStore{pgRepos: pgRepos{db: pool}, pool: pool}
}

// RunInTx выполняет fn внутри транзакции.
// При ошибке fn — транзакция откатывается. При успехе — коммитится.
func (s *pgStore) RunInTx(ctx context.Context, fn func(r Repos) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // откат после коммита — no-op

	if err := fn(&pgRepos{db: tx}); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// isUniqueViolation проверяет, является ли ошибка нарушением уникальности PostgreSQL.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}
