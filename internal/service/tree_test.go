package service

// tree_test.go — тесты операций над деревом папок.

import (
	"context"
	"errors"
	"testing"

	"github.com/bigkaa/godrive/internal/domain/model"
	"github.com/bigkaa/godrive/internal/storage"
)

// mkTree создаёт цепочку папок a/b/c пользователя alice.
func mkTree(t *testing.T, env *testEnv) (*model.Folder, *model.Folder, *model.Folder) {
	t.Helper()
	ctx := context.Background()
	a, err := env.tree.Create(ctx, "alice", "a", nil)
	if err != nil {
		t.Fatalf("создание a: %v", err)
	}
	b, err := env.tree.Create(ctx, "alice", "b", &a.FolderID)
	if err != nil {
		t.Fatalf("создание b: %v", err)
	}
	c, err := env.tree.Create(ctx, "alice", "c", &b.FolderID)
	if err != nil {
		t.Fatalf("создание c: %v", err)
	}
	return a, b, c
}

// TestTreeService_Create_PathInvariant — path потомка строится из path
// родителя, depth растёт на единицу.
func TestTreeService_Create_PathInvariant(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "alice", 1<<20)
	a, b, c := mkTree(t, env)

	if a.Path != model.RootPath || a.Depth != 0 {
		t.Errorf("a: path=%q depth=%d, ожидался path=%q depth=0", a.Path, a.Depth, model.RootPath)
	}
	if b.Path != a.SubtreePrefix() || b.Depth != 1 {
		t.Errorf("b: path=%q depth=%d, ожидался path=%q depth=1", b.Path, b.Depth, a.SubtreePrefix())
	}
	if c.Path != b.SubtreePrefix() || c.Depth != 2 {
		t.Errorf("c: path=%q depth=%d, ожидался path=%q depth=2", c.Path, c.Depth, b.SubtreePrefix())
	}
}

// TestTreeService_Create_SiblingConflict — дублирующееся имя среди
// не-удалённых соседей запрещено; после корзины имя освобождается.
func TestTreeService_Create_SiblingConflict(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.addUser(t, "alice", 1<<20)

	first, err := env.tree.Create(ctx, "alice", "docs", nil)
	if err != nil {
		t.Fatalf("создание docs: %v", err)
	}
	if _, err := env.tree.Create(ctx, "alice", "docs", nil); !errors.Is(err, ErrConflict) {
		t.Errorf("дубликат имени: ошибка = %v, ожидался ErrConflict", err)
	}

	// Папка в корзине имя не держит.
	if err := env.tree.Trash(ctx, "alice", first.FolderID); err != nil {
		t.Fatalf("корзина: %v", err)
	}
	if _, err := env.tree.Create(ctx, "alice", "docs", nil); err != nil {
		t.Errorf("создание после корзины: %v", err)
	}
}

// TestTreeService_Move_RebasesSubtree — перемещение пересчитывает
// path/depth всего поддерева.
func TestTreeService_Move_RebasesSubtree(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.addUser(t, "alice", 1<<20)
	a, b, c := mkTree(t, env)

	// b (вместе с c) — на верхний уровень.
	moved, err := env.tree.Move(ctx, "alice", b.FolderID, nil)
	if err != nil {
		t.Fatalf("перемещение: %v", err)
	}
	if moved.Path != model.RootPath || moved.Depth != 0 || moved.ParentID != nil {
		t.Errorf("b после перемещения: path=%q depth=%d", moved.Path, moved.Depth)
	}

	gotC, err := env.store.Folders().GetByID(ctx, c.FolderID)
	if err != nil {
		t.Fatalf("чтение c: %v", err)
	}
	if gotC.Path != moved.SubtreePrefix() || gotC.Depth != 1 {
		t.Errorf("c после перемещения: path=%q depth=%d, ожидался path=%q depth=1",
			gotC.Path, gotC.Depth, moved.SubtreePrefix())
	}

	// Обратно под a: префиксы снова растут.
	if _, err := env.tree.Move(ctx, "alice", b.FolderID, &a.FolderID); err != nil {
		t.Fatalf("обратное перемещение: %v", err)
	}
	gotC, _ = env.store.Folders().GetByID(ctx, c.FolderID)
	if gotC.Depth != 2 {
		t.Errorf("depth c = %d, ожидался 2", gotC.Depth)
	}
}

// TestTreeService_Move_CycleForbidden — перемещение в себя или в
// собственного потомка невозможно.
func TestTreeService_Move_CycleForbidden(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.addUser(t, "alice", 1<<20)
	a, _, c := mkTree(t, env)

	if _, err := env.tree.Move(ctx, "alice", a.FolderID, &a.FolderID); !errors.Is(err, ErrConflict) {
		t.Errorf("перемещение в себя: ошибка = %v, ожидался ErrConflict", err)
	}
	if _, err := env.tree.Move(ctx, "alice", a.FolderID, &c.FolderID); !errors.Is(err, ErrConflict) {
		t.Errorf("перемещение в потомка: ошибка = %v, ожидался ErrConflict", err)
	}
}

// TestTreeService_TrashCascadesAndIsIdempotent — корзина накрывает всё
// поддерево одним trashed_at, повторный вызов — no-op.
func TestTreeService_TrashCascadesAndIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.addUser(t, "alice", 1<<20)
	a, b, c := mkTree(t, env)

	f, err := env.files.Upload(ctx, "alice", "x.txt", &c.FolderID, "text/plain", []byte("x"))
	if err != nil {
		t.Fatalf("загрузка: %v", err)
	}

	if err := env.tree.Trash(ctx, "alice", a.FolderID); err != nil {
		t.Fatalf("корзина: %v", err)
	}
	for _, id := range []string{a.FolderID, b.FolderID, c.FolderID} {
		got, _ := env.store.Folders().GetByID(ctx, id)
		if !got.IsTrashed || got.TrashedAt == nil {
			t.Errorf("папка %s не в корзине", id)
		}
	}
	gotF, _ := env.store.Files().GetByID(ctx, f.FileID)
	if !gotF.IsTrashed {
		t.Error("файл поддерева не в корзине")
	}

	if err := env.tree.Trash(ctx, "alice", a.FolderID); err != nil {
		t.Errorf("повторная корзина должна быть no-op: %v", err)
	}
}

// TestTreeService_Restore_ReparentsToRoot — восстановление поднимает
// папку на верхний уровень, если родитель сам в корзине; потомки
// остаются в корзине, но пути поддерева пересчитываются.
func TestTreeService_Restore_ReparentsToRoot(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.addUser(t, "alice", 1<<20)
	a, b, c := mkTree(t, env)

	// В корзину уходит всё дерево, восстанавливаем только b.
	if err := env.tree.Trash(ctx, "alice", a.FolderID); err != nil {
		t.Fatalf("корзина: %v", err)
	}
	restored, err := env.tree.Restore(ctx, "alice", b.FolderID)
	if err != nil {
		t.Fatalf("восстановление: %v", err)
	}
	if restored.ParentID != nil || restored.Path != model.RootPath || restored.Depth != 0 {
		t.Errorf("b: parent=%v path=%q depth=%d, ожидался верхний уровень",
			restored.ParentID, restored.Path, restored.Depth)
	}

	// c остаётся в корзине (восстановление не каскадное), но путь
	// пересчитан под новое положение b.
	gotC, _ := env.store.Folders().GetByID(ctx, c.FolderID)
	if !gotC.IsTrashed {
		t.Error("c должен был остаться в корзине")
	}
	if gotC.Path != restored.SubtreePrefix() || gotC.Depth != 1 {
		t.Errorf("c: path=%q depth=%d, ожидался path=%q depth=1",
			gotC.Path, gotC.Depth, restored.SubtreePrefix())
	}

	// a остался в корзине.
	gotA, _ := env.store.Folders().GetByID(ctx, a.FolderID)
	if !gotA.IsTrashed {
		t.Error("a не должен был восстановиться")
	}
}

// TestTreeService_Restore_NotTrashed — восстановление не-удалённой папки
// отвергается.
func TestTreeService_Restore_NotTrashed(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.addUser(t, "alice", 1<<20)
	a, _, _ := mkTree(t, env)

	if _, err := env.tree.Restore(ctx, "alice", a.FolderID); !errors.Is(err, ErrBadRequest) {
		t.Errorf("восстановление не из корзины: ошибка = %v, ожидался ErrBadRequest", err)
	}
}

// TestTreeService_PermanentDelete_RequiresOwner — удалить поддерево может
// только владелец, editor получает ErrForbidden.
func TestTreeService_PermanentDelete_RequiresOwner(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.addUser(t, "alice", 1<<20)
	env.addUser(t, "bob", 1<<20)
	a, _, _ := mkTree(t, env)

	if _, err := env.acl.Grant(ctx, a.FolderID, model.ResourceTypeFolder, "bob", "editor", "alice"); err != nil {
		t.Fatalf("выдача права: %v", err)
	}
	if err := env.tree.PermanentDelete(ctx, "bob", a.FolderID); !errors.Is(err, ErrForbidden) {
		t.Errorf("удаление editor-ом: ошибка = %v, ожидался ErrForbidden", err)
	}
	if err := env.tree.PermanentDelete(ctx, "alice", a.FolderID); err != nil {
		t.Errorf("удаление владельцем: %v", err)
	}
}

// TestTreeService_PermanentDelete_RemovesDerivedBlobs — вместе с
// версиями подчищаются миниатюры и превью файлов поддерева.
func TestTreeService_PermanentDelete_RemovesDerivedBlobs(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.addUser(t, "alice", 1<<20)
	a, _, c := mkTree(t, env)

	f := uploadReady(t, env, "alice", "pic.png", &c.FolderID, []byte("png"))
	// Воркер миниатюр записал производные объекты.
	if err := env.gw.Put(ctx, storage.BucketThumbnails, f.FileID, []byte("thumb"), "image/jpeg"); err != nil {
		t.Fatalf("запись миниатюры: %v", err)
	}
	if err := env.gw.Put(ctx, storage.BucketPreviews, f.FileID, []byte("preview"), "image/jpeg"); err != nil {
		t.Fatalf("запись превью: %v", err)
	}

	if err := env.tree.PermanentDelete(ctx, "alice", a.FolderID); err != nil {
		t.Fatalf("permanent delete: %v", err)
	}
	if env.gw.has(storage.BucketFiles, versionKey(f.FileID, 1)) {
		t.Error("блоб версии пережил удаление поддерева")
	}
	if env.gw.has(storage.BucketThumbnails, f.FileID) {
		t.Error("миниатюра пережила удаление поддерева")
	}
	if env.gw.has(storage.BucketPreviews, f.FileID) {
		t.Error("превью пережило удаление поддерева")
	}
}

// TestTreeService_ListTrash — в корзине видны записи владельца.
func TestTreeService_ListTrash(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.addUser(t, "alice", 1<<20)
	a, _, _ := mkTree(t, env)

	if err := env.tree.Trash(ctx, "alice", a.FolderID); err != nil {
		t.Fatalf("корзина: %v", err)
	}
	listing, err := env.tree.ListTrash(ctx, "alice")
	if err != nil {
		t.Fatalf("ListTrash: %v", err)
	}
	if len(listing.Folders) != 3 {
		t.Errorf("папок в корзине = %d, ожидалось 3", len(listing.Folders))
	}
}
