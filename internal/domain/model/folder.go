// Пакет model — доменные модели godrive: папки, файлы, версии,
// права доступа, пользователи.
package model

import "time"

// RootPath — материализованный путь корня дерева.
// Путь папки — конкатенация UUID всех предков, каждый с завершающим "/".
// Папка верхнего уровня (ParentID == nil) имеет Path == "/" и Depth == 0.
const RootPath = "/"

// Folder — папка в иерархии ресурсов.
// Хранится в таблице folders.
type Folder struct {
	// FolderID — UUID папки
	FolderID string
	// OwnerID — UUID владельца
	OwnerID string
	// ParentID — UUID родительской папки, nil — корень
	ParentID *string
	// Name — имя папки (уникально среди не-удалённых соседей владельца)
	Name string
	// Path — материализованный путь предков (см. RootPath)
	Path string
	// Depth — глубина в дереве, папка верхнего уровня — 0
	Depth int
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

// SubtreePrefix возвращает префикс путей всех потомков папки.
// Потомок d принадлежит поддереву f ⇔ d.Path начинается с f.SubtreePrefix().
func (f *Folder) SubtreePrefix() string {
	return f.Path + f.FolderID + "/"
}
