// access.go — сервис прав доступа.
//
// Права образуют "лес": прямые grant-ы — корни, производные (созданные
// распространением прав папки на потомков) ссылаются на породивший их
// прямой grant через inherited_from. Эффективная роль пользователя на
// ресурсе — максимальная роль по цепочке предков; владелец ресурса имеет
// неявную роль owner без записи в permission_grants.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/godrive/internal/domain/access"
	"github.com/bigkaa/godrive/internal/domain/model"
	"github.com/bigkaa/godrive/internal/repository"
)

// Prometheus метрики сервиса прав доступа.
var (
	// grantsPropagatedTotal — количество производных прав, созданных распространением.
	grantsPropagatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gd_grants_propagated_total",
		Help: "Общее количество производных прав, созданных распространением",
	})

	// grantsRevokedTotal — количество прав, удалённых при отзыве (включая производные).
	grantsRevokedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gd_grants_revoked_total",
		Help: "Общее количество прав, удалённых при отзыве",
	})
)

// SharedItem — ресурс, которым поделились с пользователем.
type SharedItem struct {
	// Grant — прямое право пользователя на ресурс
	Grant *model.PermissionGrant
	// Name — имя ресурса (папки или файла)
	Name string
	// OwnerID — владелец ресурса
	OwnerID string
	// IsTrashed — признак нахождения ресурса в корзине
	IsTrashed bool
}

// AccessService — проверка, выдача и отзыв прав доступа.
type AccessService struct {
	store  repository.Store
	logger *slog.Logger
}

// NewAccessService создаёт сервис прав доступа.
func NewAccessService(store repository.Store, logger *slog.Logger) *AccessService {
	return &AccessService{
		store:  store,
		logger: logger.With(slog.String("component", "access")),
	}
}

// ResolveRole возвращает эффективную роль пользователя на ресурсе:
// максимум из собственных grant-ов ресурса и grant-ов всех его предков.
// Владелец получает owner сразу. Пустая строка — доступа нет.
//
// Обход идёт вверх по дереву через parent_id, а не рекурсией:
// глубина ограничена высотой дерева.
func (s *AccessService) ResolveRole(ctx context.Context, r repository.Repos, resourceID, resourceType, userID string) (string, error) {
	role := ""
	parentID := (*string)(nil)

	switch resourceType {
	case model.ResourceTypeFile:
		f, err := r.Files().GetByID(ctx, resourceID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return "", ErrNotFound
			}
			return "", err
		}
		if f.OwnerID == userID {
			return access.RoleOwner, nil
		}
		if g, err := r.Grants().Get(ctx, resourceID, model.ResourceTypeFile, userID); err == nil {
			role = g.Role
		} else if !errors.Is(err, repository.ErrNotFound) {
			return "", err
		}
		parentID = f.FolderID
	case model.ResourceTypeFolder:
		parentID = &resourceID
	default:
		return "", fmt.Errorf("%w: неизвестный тип ресурса %q", ErrValidation, resourceType)
	}

	// Подъём по цепочке папок до корня.
	for parentID != nil {
		f, err := r.Folders().GetByID(ctx, *parentID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				// Для файла оборванная ссылка на папку — не ошибка доступа.
				break
			}
			return "", err
		}
		if f.OwnerID == userID {
			return access.RoleOwner, nil
		}
		if g, err := r.Grants().Get(ctx, f.FolderID, model.ResourceTypeFolder, userID); err == nil {
			role = access.MaxRole(role, g.Role)
		} else if !errors.Is(err, repository.ErrNotFound) {
			return "", err
		}
		parentID = f.ParentID
	}

	if resourceType == model.ResourceTypeFolder && role == "" {
		// Папка существует, но у пользователя нет ни одного права —
		// убеждаемся, что сама папка вообще есть, прежде чем отвечать.
		if _, err := r.Folders().GetByID(ctx, resourceID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return "", ErrNotFound
			}
			return "", err
		}
	}

	return role, nil
}

// Authorize проверяет, что userID имеет на ресурсе роль не ниже need.
// Возвращает ErrNotFound, если ресурс отсутствует ЛИБО недоступен
// пользователю (существование не раскрывается), ErrForbidden — если
// доступ есть, но роли недостаточно.
func (s *AccessService) Authorize(ctx context.Context, r repository.Repos, resourceID, resourceType, userID, need string) error {
	role, err := s.ResolveRole(ctx, r, resourceID, resourceType, userID)
	if err != nil {
		return err
	}
	if role == "" {
		return ErrNotFound
	}
	if !access.HasRole(role, need) {
		return ErrForbidden
	}
	return nil
}

// CheckAccess сообщает, имеет ли пользователь требуемую роль на ресурсе.
// Ошибки "нет ресурса" и "нет доступа" сворачиваются в false.
func (s *AccessService) CheckAccess(ctx context.Context, resourceID, resourceType, userID, requiredRole string) (bool, error) {
	err := s.Authorize(ctx, s.store, resourceID, resourceType, userID, requiredRole)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrForbidden):
		return false, nil
	default:
		return false, err
	}
}

// Grant выдаёт targetUserID роль role на ресурсе. Только владелец
// (неявный или с ролью owner) может делиться ресурсом.
//
// Для папки право распространяется на всё поддерево: каждый потомок,
// у которого ещё нет grant-а для targetUserID, получает производный
// grant со ссылкой inherited_from на корневой. Потомки с собственным
// grant-ом пропускаются (своё право сильнее унаследованного), но обход
// продолжается ниже них. Повторная выдача идемпотентна.
func (s *AccessService) Grant(ctx context.Context, resourceID, resourceType, targetUserID, role, grantedBy string) (*model.PermissionGrant, error) {
	if !access.IsValidRole(role) {
		return nil, fmt.Errorf("%w: недопустимая роль %q", ErrValidation, role)
	}
	if resourceType != model.ResourceTypeFile && resourceType != model.ResourceTypeFolder {
		return nil, fmt.Errorf("%w: неизвестный тип ресурса %q", ErrValidation, resourceType)
	}
	if err := s.Authorize(ctx, s.store, resourceID, resourceType, grantedBy, access.RoleOwner); err != nil {
		return nil, err
	}
	if _, err := s.store.Users().GetByID(ctx, targetUserID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: пользователь не найден", ErrValidation)
		}
		return nil, err
	}

	var root *model.PermissionGrant
	err := s.store.RunInTx(ctx, func(r repository.Repos) error {
		now := time.Now().UTC()
		g := &model.PermissionGrant{
			GrantID:      uuid.NewString(),
			ResourceID:   resourceID,
			ResourceType: resourceType,
			UserID:       targetUserID,
			Role:         role,
			GrantedBy:    grantedBy,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		rootID, err := r.Grants().UpsertDirect(ctx, g)
		if err != nil {
			return err
		}
		g.GrantID = rootID
		root = g

		if resourceType == model.ResourceTypeFolder {
			return s.propagate(ctx, r, rootID, resourceID, targetUserID, role, grantedBy)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("право выдано",
		slog.String("resource_id", resourceID),
		slog.String("resource_type", resourceType),
		slog.String("user_id", targetUserID),
		slog.String("role", role),
	)
	return root, nil
}

// propagate создаёт производные grant-ы для всех потомков папки rootFolderID.
// Итеративный worklist вместо рекурсии: поддеревья бывают глубокими.
//
// Обход идёт по ListChildren/ListByFolder, которые не видят записи в
// корзине, поэтому удалённые потомки производного grant-а не получают.
// На эффективный доступ это не влияет: ResolveRole поднимается по цепочке
// предков и находит прямой grant на папке.
func (s *AccessService) propagate(ctx context.Context, r repository.Repos, rootGrantID, rootFolderID, userID, role, grantedBy string) error {
	folder, err := r.Folders().GetByID(ctx, rootFolderID)
	if err != nil {
		return err
	}

	created := 0
	work := []*model.Folder{folder}
	for len(work) > 0 {
		cur := work[len(work)-1]
		work = work[:len(work)-1]

		files, err := r.Files().ListByFolder(ctx, cur.OwnerID, &cur.FolderID)
		if err != nil {
			return err
		}
		for _, f := range files {
			ok, err := s.deriveGrant(ctx, r, rootGrantID, f.FileID, model.ResourceTypeFile, userID, role, grantedBy)
			if err != nil {
				return err
			}
			if ok {
				created++
			}
		}

		children, err := r.Folders().ListChildren(ctx, cur.OwnerID, &cur.FolderID)
		if err != nil {
			return err
		}
		for _, child := range children {
			if child.FolderID != rootFolderID {
				ok, err := s.deriveGrant(ctx, r, rootGrantID, child.FolderID, model.ResourceTypeFolder, userID, role, grantedBy)
				if err != nil {
					return err
				}
				if ok {
					created++
				}
			}
			work = append(work, child)
		}
	}

	grantsPropagatedTotal.Add(float64(created))
	return nil
}

// deriveGrant создаёт производное право, если у пользователя ещё нет
// никакого права на ресурс. Возвращает true, если право создано.
func (s *AccessService) deriveGrant(ctx context.Context, r repository.Repos, rootGrantID, resourceID, resourceType, userID, role, grantedBy string) (bool, error) {
	if _, err := r.Grants().Get(ctx, resourceID, resourceType, userID); err == nil {
		return false, nil // собственное право — не трогаем
	} else if !errors.Is(err, repository.ErrNotFound) {
		return false, err
	}

	inherited := rootGrantID
	now := time.Now().UTC()
	g := &model.PermissionGrant{
		GrantID:       uuid.NewString(),
		ResourceID:    resourceID,
		ResourceType:  resourceType,
		UserID:        userID,
		Role:          role,
		InheritedFrom: &inherited,
		GrantedBy:     grantedBy,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	// ON CONFLICT DO NOTHING внутри — гонка с параллельной выдачей безопасна.
	if err := r.Grants().InsertDerived(ctx, g); err != nil {
		return false, err
	}
	return true, nil
}

// Revoke отзывает прямое право targetUserID на ресурсе вместе со всеми
// производными от него правами. Удаление транзитивное: волнами по
// inherited_from, пока волна не окажется пустой. Отзыв несуществующего
// права — ErrNotFound.
func (s *AccessService) Revoke(ctx context.Context, resourceID, resourceType, targetUserID, revokedBy string) error {
	if err := s.Authorize(ctx, s.store, resourceID, resourceType, revokedBy, access.RoleOwner); err != nil {
		return err
	}

	deleted := 0
	err := s.store.RunInTx(ctx, func(r repository.Repos) error {
		rootID, err := r.Grants().DeleteDirect(ctx, resourceID, resourceType, targetUserID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrNotFound
			}
			return err
		}
		deleted++

		wave := []string{rootID}
		for len(wave) > 0 {
			next, err := r.Grants().DeleteByInheritedFrom(ctx, wave)
			if err != nil {
				return err
			}
			deleted += len(next)
			wave = next
		}
		return nil
	})
	if err != nil {
		return err
	}

	grantsRevokedTotal.Add(float64(deleted))
	s.logger.Info("право отозвано",
		slog.String("resource_id", resourceID),
		slog.String("resource_type", resourceType),
		slog.String("user_id", targetUserID),
		slog.Int("deleted", deleted),
	)
	return nil
}

// ListPermissions возвращает все права на ресурсе. Доступно владельцу.
func (s *AccessService) ListPermissions(ctx context.Context, resourceID, resourceType, userID string) ([]*model.PermissionGrant, error) {
	if err := s.Authorize(ctx, s.store, resourceID, resourceType, userID, access.RoleOwner); err != nil {
		return nil, err
	}
	return s.store.Grants().ListByResource(ctx, resourceID, resourceType)
}

// ListSharedWithMe возвращает ресурсы, на которые пользователю выданы
// прямые права. Производные права не показываются: они следствие прямых.
func (s *AccessService) ListSharedWithMe(ctx context.Context, userID string) ([]*SharedItem, error) {
	grants, err := s.store.Grants().ListDirectByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	items := make([]*SharedItem, 0, len(grants))
	for _, g := range grants {
		item := &SharedItem{Grant: g}
		switch g.ResourceType {
		case model.ResourceTypeFolder:
			f, err := s.store.Folders().GetByID(ctx, g.ResourceID)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					continue // ресурс удалён, но grant ещё не вычищен
				}
				return nil, err
			}
			item.Name, item.OwnerID, item.IsTrashed = f.Name, f.OwnerID, f.IsTrashed
		case model.ResourceTypeFile:
			f, err := s.store.Files().GetByID(ctx, g.ResourceID)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					continue
				}
				return nil, err
			}
			item.Name, item.OwnerID, item.IsTrashed = f.Name, f.OwnerID, f.IsTrashed
		}
		items = append(items, item)
	}
	return items, nil
}

// SearchUsers ищет пользователей по подстроке имени или email
// для диалога выдачи прав.
func (s *AccessService) SearchUsers(ctx context.Context, query string, limit int) ([]*model.User, error) {
	if len(query) < 2 {
		return nil, fmt.Errorf("%w: запрос слишком короткий", ErrValidation)
	}
	if limit <= 0 || limit > 50 {
		limit = 20
	}
	return s.store.Users().Search(ctx, query, limit)
}
