// tree.go — сервис дерева папок.
//
// Инварианты дерева:
//   - path папки — конкатенация UUID предков с завершающими "/",
//     у папки верхнего уровня path == "/" и depth == 0;
//   - имя папки уникально среди не-удалённых соседей владельца;
//   - structural-операции над поддеревом (move/trash/restore/delete)
//     сериализуются advisory-блокировкой на id корня поддерева.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/godrive/internal/domain/access"
	"github.com/bigkaa/godrive/internal/domain/model"
	"github.com/bigkaa/godrive/internal/repository"
	"github.com/bigkaa/godrive/internal/storage"
)

// Prometheus метрики дерева папок.
var (
	// foldersTrashedTotal — количество папок, помещённых в корзину (включая поддеревья).
	foldersTrashedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gd_folders_trashed_total",
		Help: "Общее количество папок, помещённых в корзину",
	})

	// foldersDeletedTotal — количество папок, удалённых безвозвратно.
	foldersDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gd_folders_deleted_total",
		Help: "Общее количество папок, удалённых безвозвратно",
	})
)

// FolderListing — содержимое папки: подпапки и файлы.
type FolderListing struct {
	Folders []*model.Folder
	Files   []*model.File
}

// TrashListing — содержимое корзины пользователя.
type TrashListing struct {
	Folders []*model.Folder
	Files   []*model.File
}

// TreeService — операции над деревом папок.
type TreeService struct {
	store   repository.Store
	gateway storage.Gateway
	acl     *AccessService
	logger  *slog.Logger
}

// NewTreeService создаёт сервис дерева папок.
func NewTreeService(store repository.Store, gateway storage.Gateway, acl *AccessService, logger *slog.Logger) *TreeService {
	return &TreeService{
		store:   store,
		gateway: gateway,
		acl:     acl,
		logger:  logger.With(slog.String("component", "tree")),
	}
}

// Create создаёт папку. parentID == nil — папка верхнего уровня.
// Родитель должен существовать, быть доступен с ролью editor и не
// находиться в корзине. Дублирующееся имя среди соседей — ErrConflict.
func (s *TreeService) Create(ctx context.Context, userID, name string, parentID *string) (*model.Folder, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: пустое имя папки", ErrValidation)
	}

	now := time.Now().UTC()
	f := &model.Folder{
		FolderID:  uuid.NewString(),
		OwnerID:   userID,
		ParentID:  parentID,
		Name:      name,
		Path:      model.RootPath,
		Depth:     0,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if parentID != nil {
		parent, err := s.requireFolder(ctx, s.store, *parentID, userID, access.RoleEditor)
		if err != nil {
			return nil, err
		}
		if parent.IsTrashed {
			return nil, fmt.Errorf("%w: родительская папка в корзине", ErrBadRequest)
		}
		f.OwnerID = parent.OwnerID
		f.Path = parent.SubtreePrefix()
		f.Depth = parent.Depth + 1
	}

	if err := s.store.Folders().Create(ctx, f); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrConflict
		}
		return nil, err
	}

	s.logger.Info("папка создана",
		slog.String("folder_id", f.FolderID),
		slog.String("name", f.Name),
		slog.Int("depth", f.Depth),
	)
	return f, nil
}

// Get возвращает папку. Требуется роль viewer.
func (s *TreeService) Get(ctx context.Context, userID, folderID string) (*model.Folder, error) {
	return s.requireFolder(ctx, s.store, folderID, userID, access.RoleViewer)
}

// List возвращает содержимое папки. folderID == nil — корень пользователя
// (там виден только собственный контент). Требуется роль viewer.
func (s *TreeService) List(ctx context.Context, userID string, folderID *string) (*FolderListing, error) {
	ownerID := userID
	if folderID != nil {
		f, err := s.requireFolder(ctx, s.store, *folderID, userID, access.RoleViewer)
		if err != nil {
			return nil, err
		}
		ownerID = f.OwnerID
	}

	folders, err := s.store.Folders().ListChildren(ctx, ownerID, folderID)
	if err != nil {
		return nil, err
	}
	files, err := s.store.Files().ListByFolder(ctx, ownerID, folderID)
	if err != nil {
		return nil, err
	}
	return &FolderListing{Folders: folders, Files: files}, nil
}

// Rename переименовывает папку. Требуется роль editor.
// Дублирующееся имя среди соседей — ErrConflict.
func (s *TreeService) Rename(ctx context.Context, userID, folderID, name string) (*model.Folder, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: пустое имя папки", ErrValidation)
	}
	f, err := s.requireFolder(ctx, s.store, folderID, userID, access.RoleEditor)
	if err != nil {
		return nil, err
	}
	if f.IsTrashed {
		return nil, fmt.Errorf("%w: папка в корзине", ErrBadRequest)
	}

	if err := s.store.Folders().Rename(ctx, folderID, name); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrConflict
		}
		return nil, err
	}
	f.Name = name
	return f, nil
}

// SetStarred помечает/снимает отметку "избранное". Требуется роль editor.
func (s *TreeService) SetStarred(ctx context.Context, userID, folderID string, starred bool) error {
	if _, err := s.requireFolder(ctx, s.store, folderID, userID, access.RoleEditor); err != nil {
		return err
	}
	return s.store.Folders().SetStarred(ctx, folderID, starred)
}

// Move перемещает папку в newParentID (nil — на верхний уровень).
// Требуется роль editor на папке и на новом родителе.
//
// Запрещено: перемещение в саму себя и в собственного потомка
// (ErrConflict). Пути и глубины всего поддерева пересчитываются одним
// UPDATE по префиксу. Всё под advisory-блокировкой корня поддерева.
func (s *TreeService) Move(ctx context.Context, userID, folderID string, newParentID *string) (*model.Folder, error) {
	if newParentID != nil && *newParentID == folderID {
		return nil, ErrConflict
	}
	if err := s.acl.Authorize(ctx, s.store, folderID, model.ResourceTypeFolder, userID, access.RoleEditor); err != nil {
		return nil, err
	}
	if newParentID != nil {
		if err := s.acl.Authorize(ctx, s.store, *newParentID, model.ResourceTypeFolder, userID, access.RoleEditor); err != nil {
			return nil, err
		}
	}

	var moved *model.Folder
	err := s.store.RunInTx(ctx, func(r repository.Repos) error {
		if err := r.Folders().AcquireSubtreeLock(ctx, folderID); err != nil {
			return err
		}
		f, err := r.Folders().GetByIDForUpdate(ctx, folderID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrNotFound
			}
			return err
		}
		if f.IsTrashed {
			return fmt.Errorf("%w: папка в корзине", ErrBadRequest)
		}

		newPath := model.RootPath
		newDepth := 0
		if newParentID != nil {
			target, err := r.Folders().GetByID(ctx, *newParentID)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return ErrNotFound
				}
				return err
			}
			if target.IsTrashed {
				return fmt.Errorf("%w: папка назначения в корзине", ErrBadRequest)
			}
			// Назначение — потомок перемещаемой папки: путь назначения
			// содержит id перемещаемой.
			if strings.Contains(target.Path, f.FolderID+"/") {
				return ErrConflict
			}
			newPath = target.SubtreePrefix()
			newDepth = target.Depth + 1
		}

		oldPrefix := f.SubtreePrefix()
		if err := r.Folders().SetLocation(ctx, folderID, newParentID, newPath, newDepth); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return ErrConflict
			}
			return err
		}
		newPrefix := newPath + f.FolderID + "/"
		if _, err := r.Folders().RebaseSubtree(ctx, oldPrefix, newPrefix, newDepth-f.Depth); err != nil {
			return err
		}

		f.ParentID = newParentID
		f.Path = newPath
		f.Depth = newDepth
		moved = f
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("папка перемещена",
		slog.String("folder_id", folderID),
		slog.Int("depth", moved.Depth),
	)
	return moved, nil
}

// Trash помещает папку и всё её поддерево (папки и файлы) в корзину
// с единым trashed_at. Требуется роль editor. Повторный вызов — no-op.
func (s *TreeService) Trash(ctx context.Context, userID, folderID string) error {
	if err := s.acl.Authorize(ctx, s.store, folderID, model.ResourceTypeFolder, userID, access.RoleEditor); err != nil {
		return err
	}

	var trashed int64
	err := s.store.RunInTx(ctx, func(r repository.Repos) error {
		if err := r.Folders().AcquireSubtreeLock(ctx, folderID); err != nil {
			return err
		}
		f, err := r.Folders().GetByIDForUpdate(ctx, folderID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrNotFound
			}
			return err
		}
		if f.IsTrashed {
			return nil // идемпотентность
		}

		now := time.Now().UTC()
		prefix := f.SubtreePrefix()
		n, err := r.Folders().TrashSubtree(ctx, folderID, prefix, now)
		if err != nil {
			return err
		}
		trashed = n
		if _, err := r.Files().TrashBySubtree(ctx, folderID, prefix, now); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return err
	}

	foldersTrashedTotal.Add(float64(trashed))
	s.logger.Info("папка помещена в корзину",
		slog.String("folder_id", folderID),
		slog.Int64("folders", trashed),
	)
	return nil
}

// Restore восстанавливает из корзины только саму папку. Потомки,
// попавшие в корзину каскадом, остаются в корзине — их восстанавливают
// отдельными вызовами. Если исходный родитель удалён или сам в корзине,
// папка поднимается на верхний уровень с пересчётом путей поддерева.
// Конфликт имени в месте восстановления — ErrConflict.
func (s *TreeService) Restore(ctx context.Context, userID, folderID string) (*model.Folder, error) {
	if err := s.acl.Authorize(ctx, s.store, folderID, model.ResourceTypeFolder, userID, access.RoleEditor); err != nil {
		return nil, err
	}

	var restored *model.Folder
	err := s.store.RunInTx(ctx, func(r repository.Repos) error {
		if err := r.Folders().AcquireSubtreeLock(ctx, folderID); err != nil {
			return err
		}
		f, err := r.Folders().GetByIDForUpdate(ctx, folderID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrNotFound
			}
			return err
		}
		if !f.IsTrashed {
			return fmt.Errorf("%w: папка не в корзине", ErrBadRequest)
		}

		// Родитель мог исчезнуть или уехать в корзину, пока папка лежала
		// в корзине — тогда восстанавливаем на верхний уровень.
		reparent := false
		if f.ParentID != nil {
			parent, err := r.Folders().GetByID(ctx, *f.ParentID)
			switch {
			case errors.Is(err, repository.ErrNotFound):
				reparent = true
			case err != nil:
				return err
			case parent.IsTrashed:
				reparent = true
			}
		}

		if reparent {
			oldPrefix := f.SubtreePrefix()
			if err := r.Folders().SetLocation(ctx, folderID, nil, model.RootPath, 0); err != nil {
				if errors.Is(err, repository.ErrConflict) {
					return ErrConflict
				}
				return err
			}
			newPrefix := model.RootPath + f.FolderID + "/"
			if _, err := r.Folders().RebaseSubtree(ctx, oldPrefix, newPrefix, -f.Depth); err != nil {
				return err
			}
			f.ParentID = nil
			f.Path = model.RootPath
			f.Depth = 0
		}

		if err := r.Folders().Restore(ctx, folderID); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return ErrConflict
			}
			return err
		}

		f.IsTrashed = false
		f.TrashedAt = nil
		restored = f
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("папка восстановлена из корзины", slog.String("folder_id", folderID))
	return restored, nil
}

// PermanentDelete безвозвратно удаляет папку со всем поддеревом:
// записи файлов и версий, права, счётчики квот и блобы в объектном
// хранилище. Требуется роль owner.
//
// Блобы удаляются best-effort: ошибка хранилища логируется, но не
// откатывает транзакцию — сироты в бакете подчистит внешняя сверка.
func (s *TreeService) PermanentDelete(ctx context.Context, userID, folderID string) error {
	if err := s.acl.Authorize(ctx, s.store, folderID, model.ResourceTypeFolder, userID, access.RoleOwner); err != nil {
		return err
	}

	var (
		orphanKeys []string
		deadFiles  []string
	)
	err := s.store.RunInTx(ctx, func(r repository.Repos) error {
		if err := r.Folders().AcquireSubtreeLock(ctx, folderID); err != nil {
			return err
		}
		f, err := r.Folders().GetByIDForUpdate(ctx, folderID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrNotFound
			}
			return err
		}
		prefix := f.SubtreePrefix()

		// Файлы поддерева: версии, блобы, права, квота, запись.
		files, err := r.Files().ListBySubtree(ctx, folderID, prefix)
		if err != nil {
			return err
		}
		usageByOwner := map[string]int64{}
		for _, file := range files {
			versions, err := r.Versions().ListByFile(ctx, file.FileID)
			if err != nil {
				return err
			}
			for _, v := range versions {
				orphanKeys = append(orphanKeys, v.StorageKey)
			}
			deadFiles = append(deadFiles, file.FileID)
			if file.CurrentVersionID != nil {
				usageByOwner[file.OwnerID] += file.SizeBytes
			}
			if err := r.Grants().DeleteByResource(ctx, file.FileID, model.ResourceTypeFile); err != nil {
				return err
			}
			// Версии удаляются каскадом по FK.
			if err := r.Files().Delete(ctx, file.FileID); err != nil {
				return err
			}
		}
		for ownerID, used := range usageByOwner {
			if err := r.Users().AdjustStorageUsed(ctx, ownerID, -used); err != nil && !errors.Is(err, repository.ErrNegativeUsage) {
				return err
			}
		}

		// Папки снизу вверх, корень — последним.
		subtree, err := r.Folders().ListSubtree(ctx, prefix)
		if err != nil {
			return err
		}
		for _, child := range subtree {
			if err := r.Grants().DeleteByResource(ctx, child.FolderID, model.ResourceTypeFolder); err != nil {
				return err
			}
			if err := r.Folders().Delete(ctx, child.FolderID); err != nil {
				return err
			}
		}
		if err := r.Grants().DeleteByResource(ctx, folderID, model.ResourceTypeFolder); err != nil {
			return err
		}
		if err := r.Folders().Delete(ctx, folderID); err != nil {
			return err
		}

		foldersDeletedTotal.Add(float64(len(subtree) + 1))
		return nil
	})
	if err != nil {
		return err
	}

	// Блобы — после коммита: откат транзакции не должен терять данные.
	for _, key := range orphanKeys {
		if err := s.gateway.Delete(ctx, storage.BucketFiles, key); err != nil {
			s.logger.Warn("не удалось удалить блоб",
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
		}
	}
	for _, fileID := range deadFiles {
		for _, bucket := range []string{storage.BucketThumbnails, storage.BucketPreviews} {
			if err := s.gateway.Delete(ctx, bucket, fileID); err != nil {
				s.logger.Warn("не удалось удалить производный объект",
					slog.String("bucket", bucket),
					slog.String("file_id", fileID),
					slog.String("error", err.Error()),
				)
			}
		}
	}

	s.logger.Info("папка удалена безвозвратно",
		slog.String("folder_id", folderID),
		slog.Int("blobs", len(orphanKeys)),
	)
	return nil
}

// ListTrash возвращает содержимое корзины пользователя:
// только корни удалённых поддеревьев показывать не требуется,
// отдаём все его записи с is_trashed.
func (s *TreeService) ListTrash(ctx context.Context, userID string) (*TrashListing, error) {
	folders, err := s.store.Folders().ListTrashed(ctx, userID)
	if err != nil {
		return nil, err
	}
	files, err := s.store.Files().ListTrashed(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &TrashListing{Folders: folders, Files: files}, nil
}

// requireFolder загружает папку с проверкой роли.
func (s *TreeService) requireFolder(ctx context.Context, r repository.Repos, folderID, userID, need string) (*model.Folder, error) {
	if err := s.acl.Authorize(ctx, r, folderID, model.ResourceTypeFolder, userID, need); err != nil {
		return nil, err
	}
	f, err := r.Folders().GetByID(ctx, folderID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return f, nil
}
