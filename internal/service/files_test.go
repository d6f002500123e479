package service

// files_test.go — тесты жизненного цикла файлов и версий.

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/bigkaa/godrive/internal/domain/model"
	"github.com/bigkaa/godrive/internal/queue"
)

// uploadReady загружает файл и доводит его до статуса ready.
func uploadReady(t *testing.T, env *testEnv, owner, name string, folderID *string, data []byte) *model.File {
	t.Helper()
	ctx := context.Background()
	f, err := env.files.Upload(ctx, owner, name, folderID, "text/plain", data)
	if err != nil {
		t.Fatalf("загрузка %s: %v", name, err)
	}
	if err := env.files.HandleScanResult(ctx, f.FileID, model.ScanStatusClean); err != nil {
		t.Fatalf("вердикт clean: %v", err)
	}
	if err := env.files.HandleThumbnailResult(ctx, f.FileID, true); err != nil {
		t.Fatalf("миниатюра: %v", err)
	}
	return f
}

// TestFileService_InitComplete — двухфазная загрузка: presigned URL,
// фиксация, повторная фиксация отвергается.
func TestFileService_InitComplete(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.addUser(t, "alice", 1<<20)

	f, url, err := env.files.InitUpload(ctx, "alice", "doc.pdf", nil, "application/pdf")
	if err != nil {
		t.Fatalf("InitUpload: %v", err)
	}
	if f.Status != model.FileStatusUploading {
		t.Errorf("статус = %q, ожидался uploading", f.Status)
	}
	if f.Extension != "pdf" {
		t.Errorf("расширение = %q, ожидалось pdf", f.Extension)
	}
	if url == "" {
		t.Error("пустой presigned URL")
	}
	// Запись получает реальное время создания: незавершённая загрузка
	// не должна сразу попадать под порог очистки зависших.
	stored, err := env.store.Files().GetByID(ctx, f.FileID)
	if err != nil {
		t.Fatalf("чтение записи: %v", err)
	}
	if stored.CreatedAt.IsZero() || time.Since(stored.CreatedAt) > time.Minute {
		t.Errorf("created_at = %v, ожидалось текущее время", stored.CreatedAt)
	}
	stale, err := env.store.Files().ListStaleUploading(ctx, time.Now().UTC().Add(-time.Hour), 10)
	if err != nil {
		t.Fatalf("ListStaleUploading: %v", err)
	}
	if len(stale) != 0 {
		t.Errorf("свежая загрузка посчитана зависшей: %d записей", len(stale))
	}

	done, err := env.files.CompleteUpload(ctx, "alice", f.FileID, 100, "deadbeef")
	if err != nil {
		t.Fatalf("CompleteUpload: %v", err)
	}
	if done.Status != model.FileStatusScanning {
		t.Errorf("статус после фиксации = %q, ожидался scanning", done.Status)
	}
	if done.CurrentVersionID == nil || done.SizeBytes != 100 {
		t.Errorf("зеркалируемые атрибуты не обновлены: version=%v size=%d",
			done.CurrentVersionID, done.SizeBytes)
	}
	if env.usedBytes(t, "alice") != 100 {
		t.Errorf("квота = %d, ожидалось 100", env.usedBytes(t, "alice"))
	}

	// Повторная фиксация — недопустимый переход.
	if _, err := env.files.CompleteUpload(ctx, "alice", f.FileID, 100, "deadbeef"); !errors.Is(err, ErrBadRequest) {
		t.Errorf("повторная фиксация: ошибка = %v, ожидался ErrBadRequest", err)
	}
}

// TestFileService_ConcurrentVersions — N конкурентных загрузок версий
// получают различные последовательные номера без дыр и дубликатов.
func TestFileService_ConcurrentVersions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.addUser(t, "alice", 1<<30)
	f := uploadReady(t, env, "alice", "doc.txt", nil, []byte("v1"))

	const n = 16
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.files.UploadVersion(ctx, "alice", f.FileID, "text/plain",
				[]byte(fmt.Sprintf("содержимое %d", i)), "")
		}(i)
	}
	wg.Wait()
	for i, err := range errs {
		if err != nil {
			t.Fatalf("версия %d: %v", i, err)
		}
	}

	versions, err := env.files.ListVersions(ctx, "alice", f.FileID)
	if err != nil {
		t.Fatalf("ListVersions: %v", err)
	}
	if len(versions) != n+1 {
		t.Fatalf("версий = %d, ожидалось %d", len(versions), n+1)
	}
	nums := make([]int, 0, len(versions))
	for _, v := range versions {
		nums = append(nums, v.VersionNumber)
	}
	sort.Ints(nums)
	for i, num := range nums {
		if num != i+1 {
			t.Fatalf("номера версий не последовательны: %v", nums)
		}
	}
}

// TestFileService_UploadVersion_MirrorsAndQuota — новая версия
// зеркалируется в запись файла, квота корректируется на дельту.
func TestFileService_UploadVersion_MirrorsAndQuota(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.addUser(t, "alice", 1<<20)
	f := uploadReady(t, env, "alice", "doc.txt", nil, []byte("aa"))

	v, err := env.files.UploadVersion(ctx, "alice", f.FileID, "text/plain", []byte("bbbbb"), "больше")
	if err != nil {
		t.Fatalf("UploadVersion: %v", err)
	}
	got, _ := env.store.Files().GetByID(ctx, f.FileID)
	if got.SizeBytes != 5 || got.StorageKey != v.StorageKey {
		t.Errorf("зеркало: size=%d key=%q, ожидалось 5/%q", got.SizeBytes, got.StorageKey, v.StorageKey)
	}
	if got.Status != model.FileStatusScanning {
		t.Errorf("новая версия должна вернуть файл в scanning, статус = %q", got.Status)
	}
	if env.usedBytes(t, "alice") != 5 {
		t.Errorf("квота = %d, ожидалось 5 (только текущая версия)", env.usedBytes(t, "alice"))
	}
	if !env.gw.has("files", versionKey(f.FileID, 2)) {
		t.Error("блоб версии 2 не записан под ключ с номером версии")
	}
}

// TestFileService_QuotaExceeded — загрузка сверх квоты отвергается,
// счётчик не меняется.
func TestFileService_QuotaExceeded(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.addUser(t, "alice", 10)

	if _, err := env.files.Upload(ctx, "alice", "big.bin", nil, "application/octet-stream",
		make([]byte, 11)); !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("ошибка = %v, ожидался ErrQuotaExceeded", err)
	}
	if env.usedBytes(t, "alice") != 0 {
		t.Errorf("квота = %d, ожидался 0", env.usedBytes(t, "alice"))
	}
}

// TestFileService_ScanVerdicts — переходы статусов по вердиктам
// и их идемпотентность.
func TestFileService_ScanVerdicts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.addUser(t, "alice", 1<<20)

	f, err := env.files.Upload(ctx, "alice", "doc.txt", nil, "text/plain", []byte("x"))
	if err != nil {
		t.Fatalf("загрузка: %v", err)
	}

	// infected: scanning → infected
	if err := env.files.HandleScanResult(ctx, f.FileID, model.ScanStatusInfected); err != nil {
		t.Fatalf("вердикт infected: %v", err)
	}
	got, _ := env.store.Files().GetByID(ctx, f.FileID)
	if got.Status != model.FileStatusInfected || got.ScanStatus != model.ScanStatusInfected {
		t.Errorf("статус = (%s, %s), ожидался (infected, infected)", got.Status, got.ScanStatus)
	}

	// Повторная доставка любого вердикта — no-op.
	if err := env.files.HandleScanResult(ctx, f.FileID, model.ScanStatusClean); err != nil {
		t.Fatalf("повторный вердикт: %v", err)
	}
	got, _ = env.store.Files().GetByID(ctx, f.FileID)
	if got.Status != model.FileStatusInfected {
		t.Errorf("повторный вердикт изменил статус: %q", got.Status)
	}

	// Заражённый файл не скачивается.
	if _, err := env.files.DownloadURL(ctx, "alice", f.FileID); !errors.Is(err, ErrBadRequest) {
		t.Errorf("скачивание заражённого: ошибка = %v, ожидался ErrBadRequest", err)
	}
}

// TestFileService_CleanEnqueuesThumbnail — чистый вердикт ставит задачу
// генерации миниатюры.
func TestFileService_CleanEnqueuesThumbnail(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.addUser(t, "alice", 1<<20)

	f, err := env.files.Upload(ctx, "alice", "pic.png", nil, "image/png", []byte("png"))
	if err != nil {
		t.Fatalf("загрузка: %v", err)
	}
	if err := env.files.HandleScanResult(ctx, f.FileID, model.ScanStatusClean); err != nil {
		t.Fatalf("вердикт clean: %v", err)
	}

	jobs := env.q.byName(queue.JobThumbnail)
	if len(jobs) != 1 {
		t.Fatalf("задач thumbnail = %d, ожидалась 1", len(jobs))
	}
	if jobs[0].Payload["file_id"] != f.FileID {
		t.Errorf("payload file_id = %q, ожидался %q", jobs[0].Payload["file_id"], f.FileID)
	}
	if jobs[0].Attempts != 3 {
		t.Errorf("attempts = %d, ожидалось 3", jobs[0].Attempts)
	}
}

// TestFileService_RestoreVersion — восстановление исторической версии
// создаёт новую, история не переписывается.
func TestFileService_RestoreVersion(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.addUser(t, "alice", 1<<20)
	f := uploadReady(t, env, "alice", "doc.txt", nil, []byte("первая"))

	if _, err := env.files.UploadVersion(ctx, "alice", f.FileID, "text/plain", []byte("вторая — другая длина"), ""); err != nil {
		t.Fatalf("версия 2: %v", err)
	}
	versions, _ := env.files.ListVersions(ctx, "alice", f.FileID)
	v1 := versions[len(versions)-1] // список по убыванию номера

	restored, err := env.files.RestoreVersion(ctx, "alice", v1.VersionID)
	if err != nil {
		t.Fatalf("RestoreVersion: %v", err)
	}
	if restored.VersionNumber != 3 {
		t.Errorf("номер восстановленной = %d, ожидался 3", restored.VersionNumber)
	}
	if restored.Checksum != v1.Checksum || restored.SizeBytes != v1.SizeBytes {
		t.Error("содержимое восстановленной версии не совпадает с исходной")
	}

	got, _ := env.store.Files().GetByID(ctx, f.FileID)
	if got.SizeBytes != v1.SizeBytes {
		t.Errorf("зеркало размера = %d, ожидалось %d", got.SizeBytes, v1.SizeBytes)
	}
	if env.usedBytes(t, "alice") != v1.SizeBytes {
		t.Errorf("квота = %d, ожидалось %d", env.usedBytes(t, "alice"), v1.SizeBytes)
	}
	if !env.gw.has("files", versionKey(f.FileID, 3)) {
		t.Error("блоб восстановленной версии не скопирован")
	}
	if len(versions) != 2 {
		t.Errorf("история до восстановления = %d записей, ожидалось 2", len(versions))
	}
}

// TestFileService_TrashRestore_Reparent — файл из корзины возвращается
// на верхний уровень, если его папка осталась в корзине.
func TestFileService_TrashRestore_Reparent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.addUser(t, "alice", 1<<20)

	folder, err := env.tree.Create(ctx, "alice", "docs", nil)
	if err != nil {
		t.Fatalf("создание папки: %v", err)
	}
	f := uploadReady(t, env, "alice", "doc.txt", &folder.FolderID, []byte("x"))

	if err := env.tree.Trash(ctx, "alice", folder.FolderID); err != nil {
		t.Fatalf("корзина папки: %v", err)
	}
	if err := env.files.Restore(ctx, "alice", f.FileID); err != nil {
		t.Fatalf("восстановление файла: %v", err)
	}
	got, _ := env.store.Files().GetByID(ctx, f.FileID)
	if got.IsTrashed {
		t.Error("файл остался в корзине")
	}
	if got.FolderID != nil {
		t.Error("файл должен был подняться на верхний уровень")
	}
}

// TestFileService_RenameConflict — переименование в занятое имя
// отвергается.
func TestFileService_RenameConflict(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.addUser(t, "alice", 1<<20)

	uploadReady(t, env, "alice", "a.txt", nil, []byte("a"))
	f := uploadReady(t, env, "alice", "b.txt", nil, []byte("b"))

	if err := env.files.Rename(ctx, "alice", f.FileID, "a.txt"); !errors.Is(err, ErrConflict) {
		t.Errorf("переименование в занятое имя: ошибка = %v, ожидался ErrConflict", err)
	}
	if err := env.files.Rename(ctx, "alice", f.FileID, "c.md"); err != nil {
		t.Fatalf("переименование: %v", err)
	}
	got, _ := env.store.Files().GetByID(ctx, f.FileID)
	if got.Extension != "md" {
		t.Errorf("расширение = %q, ожидалось md", got.Extension)
	}
}

// TestFileService_UploadVersionIntoTrash — загрузка версии в файл из
// корзины отвергается.
func TestFileService_UploadVersionIntoTrash(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.addUser(t, "alice", 1<<20)
	f := uploadReady(t, env, "alice", "doc.txt", nil, []byte("x"))

	if err := env.files.Trash(ctx, "alice", f.FileID); err != nil {
		t.Fatalf("корзина: %v", err)
	}
	if _, err := env.files.UploadVersion(ctx, "alice", f.FileID, "text/plain", []byte("y"), ""); !errors.Is(err, ErrBadRequest) {
		t.Errorf("версия в корзину: ошибка = %v, ожидался ErrBadRequest", err)
	}
}
