package model

import "time"

// Статусы файла. Значения фиксированы — хранятся в БД и отдаются клиентам.
const (
	// FileStatusUploading — запись создана, блоб ещё не загружен.
	FileStatusUploading = "uploading"
	// FileStatusScanning — блоб загружен, ожидает антивирусной проверки.
	FileStatusScanning = "scanning"
	// FileStatusProcessing — проверка пройдена, генерируются превью.
	FileStatusProcessing = "processing"
	// FileStatusReady — файл полностью обработан.
	FileStatusReady = "ready"
	// FileStatusError — ошибка обработки.
	FileStatusError = "error"
	// FileStatusInfected — антивирус обнаружил угрозу.
	FileStatusInfected = "infected"
)

// Статусы антивирусной проверки.
const (
	ScanStatusPending  = "pending"
	ScanStatusClean    = "clean"
	ScanStatusInfected = "infected"
	ScanStatusError    = "error"
)

// File — файл с цепочкой версий.
// Поля StorageKey/SizeBytes/MimeType зеркалируют текущую версию.
// Хранится в таблице files.
type File struct {
	// FileID — UUID файла
	FileID string
	// OwnerID — UUID владельца
	OwnerID string
	// FolderID — UUID папки, nil — корень
	FolderID *string
	// Name — имя файла (уникально среди не-удалённых соседей владельца)
	Name string
	// MimeType — MIME-тип текущей версии
	MimeType string
	// Extension — расширение файла без точки
	Extension string
	// StorageKey — ключ блоба текущей версии
	StorageKey string
	// SizeBytes — размер текущей версии в байтах
	SizeBytes int64
	// CurrentVersionID — UUID текущей версии, nil до завершения первой загрузки
	CurrentVersionID *string
	// Status — статус файла (FileStatus*)
	Status string
	// ScanStatus — статус антивирусной проверки (ScanStatus*)
	ScanStatus string
	// IsTrashed — признак нахождения в корзине
	IsTrashed bool
	// TrashedAt — время помещения в корзину
	TrashedAt *time.Time
	// IsStarred — признак избранного
	IsStarred bool
	// CreatedAt — время создания записи
	CreatedAt time.Time
	// UpdatedAt — время последнего обновления
	UpdatedAt time.Time
}

// FileVersion — версия файла. Неизменяема после создания:
// история версий append-only, номера строго возрастают начиная с 1
// и никогда не переиспользуются.
// Хранится в таблице file_versions.
type FileVersion struct {
	// VersionID — UUID версии
	VersionID string
	// FileID — UUID файла
	FileID string
	// VersionNumber — порядковый номер версии (с 1, строго возрастает)
	VersionNumber int
	// StorageKey — ключ блоба версии
	StorageKey string
	// SizeBytes — размер блоба в байтах
	SizeBytes int64
	// Checksum — SHA-256 контрольная сумма
	Checksum string
	// MimeType — MIME-тип версии
	MimeType string
	// UploadedBy — UUID загрузившего
	UploadedBy string
	// Comment — комментарий к версии
	Comment string
	// CreatedAt — время создания версии
	CreatedAt time.Time
}
