package model

import "time"

// User — пользователь сервиса и его квота хранилища.
// Хранится в таблице users.
type User struct {
	// UserID — UUID пользователя
	UserID string
	// Username — уникальное имя пользователя
	Username string
	// Email — email пользователя
	Email string
	// DisplayName — отображаемое имя
	DisplayName string
	// StorageUsedBytes — занятые байты (только текущие версии файлов)
	StorageUsedBytes int64
	// StorageQuotaBytes — лимит хранилища в байтах
	StorageQuotaBytes int64
	// CreatedAt — время создания записи
	CreatedAt time.Time
	// UpdatedAt — время последнего обновления
	UpdatedAt time.Time
}
