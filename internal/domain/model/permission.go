package model

import "time"

// Типы ресурсов, на которые выдаются права.
const (
	ResourceTypeFile   = "file"
	ResourceTypeFolder = "folder"
)

// PermissionGrant — право доступа пользователя к ресурсу.
// Прямое право создаётся явно (InheritedFrom == nil); производное —
// распространением права папки на потомков (InheritedFrom указывает на
// породивший его grant). Производные права образуют лес, корни которого —
// прямые права. InheritedFrom — слабая ссылка (id + lookup), не отношение
// владения.
// Хранится в таблице permission_grants.
type PermissionGrant struct {
	// GrantID — UUID права
	GrantID string
	// ResourceID — UUID ресурса (файла или папки)
	ResourceID string
	// ResourceType — тип ресурса (ResourceType*)
	ResourceType string
	// UserID — UUID пользователя, которому выдано право
	UserID string
	// Role — роль (owner, editor, viewer)
	Role string
	// InheritedFrom — UUID права, породившего данное распространением; nil — прямое
	InheritedFrom *string
	// GrantedBy — UUID выдавшего право
	GrantedBy string
	// CreatedAt — время создания записи
	CreatedAt time.Time
	// UpdatedAt — время последнего обновления
	UpdatedAt time.Time
}

// IsDirect сообщает, является ли право прямым (не производным).
func (g *PermissionGrant) IsDirect() bool {
	return g.InheritedFrom == nil
}
