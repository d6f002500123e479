package service

// memstore_test.go — in-memory реализация repository.Store для unit-тестов
// сервисного слоя, плюс фейки объектного хранилища и очереди.
//
// Семантика повторяет PostgreSQL-репозитории: конфликты имён среди
// не-удалённых соседей, условные переходы статусов, guarded-счётчик
// квоты. RunInTx держит глобальный mutex на всё тело транзакции —
// конкурентные загрузки версий сериализуются так же, как строчной
// блокировкой в БД.

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bigkaa/godrive/internal/domain/model"
	"github.com/bigkaa/godrive/internal/queue"
	"github.com/bigkaa/godrive/internal/repository"
)

// memStore — in-memory Store.
type memStore struct {
	mu       sync.Mutex
	folders  map[string]*model.Folder
	files    map[string]*model.File
	versions map[string]*model.FileVersion
	grants   map[string]*model.PermissionGrant
	users    map[string]*model.User
}

func newMemStore() *memStore {
	return &memStore{
		folders:  map[string]*model.Folder{},
		files:    map[string]*model.File{},
		versions: map[string]*model.FileVersion{},
		grants:   map[string]*model.PermissionGrant{},
		users:    map[string]*model.User{},
	}
}

// memRepos — Repos поверх memStore. Если inTx, блокировку уже держит RunInTx.
type memRepos struct {
	s    *memStore
	inTx bool
}

// lock берёт mutex хранилища, если вызов идёт вне транзакции.
func (r *memRepos) lock() func() {
	if r.inTx {
		return func() {}
	}
	r.s.mu.Lock()
	return r.s.mu.Unlock
}

func (s *memStore) Folders() repository.FolderRepository    { return &memFolders{&memRepos{s: s}} }
func (s *memStore) Files() repository.FileRepository        { return &memFiles{&memRepos{s: s}} }
func (s *memStore) Versions() repository.VersionRepository  { return &memVersions{&memRepos{s: s}} }
func (s *memStore) Grants() repository.PermissionRepository { return &memGrants{&memRepos{s: s}} }
func (s *memStore) Users() repository.UserRepository        { return &memUsers{&memRepos{s: s}} }

// RunInTx сериализует транзакции глобальным mutex-ом. Отката нет:
// тесты не полагаются на rollback-семантику.
func (s *memStore) RunInTx(_ context.Context, fn func(r repository.Repos) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&txRepos{s: s})
}

// txRepos — Repos внутри транзакции (без собственных блокировок).
type txRepos struct {
	s *memStore
}

func (r *txRepos) Folders() repository.FolderRepository {
	return &memFolders{&memRepos{s: r.s, inTx: true}}
}
func (r *txRepos) Files() repository.FileRepository {
	return &memFiles{&memRepos{s: r.s, inTx: true}}
}
func (r *txRepos) Versions() repository.VersionRepository {
	return &memVersions{&memRepos{s: r.s, inTx: true}}
}
func (r *txRepos) Grants() repository.PermissionRepository {
	return &memGrants{&memRepos{s: r.s, inTx: true}}
}
func (r *txRepos) Users() repository.UserRepository {
	return &memUsers{&memRepos{s: r.s, inTx: true}}
}

// --- Папки ---

type memFolders struct{ r *memRepos }

// folderNameTaken повторяет частичный уникальный индекс:
// имя занято среди не-удалённых соседей владельца.
func (m *memFolders) folderNameTaken(ownerID string, parentID *string, name, exceptID string) bool {
	for _, f := range m.r.s.folders {
		if f.FolderID == exceptID || f.IsTrashed || f.OwnerID != ownerID || f.Name != name {
			continue
		}
		if ptrEqual(f.ParentID, parentID) {
			return true
		}
	}
	return false
}

func (m *memFolders) Create(_ context.Context, f *model.Folder) error {
	defer m.r.lock()()
	if m.folderNameTaken(f.OwnerID, f.ParentID, f.Name, f.FolderID) {
		return repository.ErrConflict
	}
	// Временные метки сохраняются как есть — как в настоящем репозитории.
	cp := *f
	m.r.s.folders[f.FolderID] = &cp
	return nil
}

func (m *memFolders) GetByID(_ context.Context, folderID string) (*model.Folder, error) {
	defer m.r.lock()()
	f, ok := m.r.s.folders[folderID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *f
	return &cp, nil
}

func (m *memFolders) GetByIDForUpdate(ctx context.Context, folderID string) (*model.Folder, error) {
	return m.GetByID(ctx, folderID)
}

func (m *memFolders) AcquireSubtreeLock(_ context.Context, _ string) error { return nil }

func (m *memFolders) ListChildren(_ context.Context, ownerID string, parentID *string) ([]*model.Folder, error) {
	defer m.r.lock()()
	var out []*model.Folder
	for _, f := range m.r.s.folders {
		if f.IsTrashed || !ptrEqual(f.ParentID, parentID) {
			continue
		}
		if parentID == nil && f.OwnerID != ownerID {
			continue
		}
		cp := *f
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memFolders) Rename(_ context.Context, folderID, name string) error {
	defer m.r.lock()()
	f, ok := m.r.s.folders[folderID]
	if !ok {
		return repository.ErrNotFound
	}
	if m.folderNameTaken(f.OwnerID, f.ParentID, name, folderID) {
		return repository.ErrConflict
	}
	f.Name = name
	f.UpdatedAt = time.Now()
	return nil
}

func (m *memFolders) SetLocation(_ context.Context, folderID string, parentID *string, path string, depth int) error {
	defer m.r.lock()()
	f, ok := m.r.s.folders[folderID]
	if !ok {
		return repository.ErrNotFound
	}
	if !f.IsTrashed && m.folderNameTaken(f.OwnerID, parentID, f.Name, folderID) {
		return repository.ErrConflict
	}
	f.ParentID = parentID
	f.Path = path
	f.Depth = depth
	f.UpdatedAt = time.Now()
	return nil
}

func (m *memFolders) RebaseSubtree(_ context.Context, oldPrefix, newPrefix string, depthDelta int) (int64, error) {
	defer m.r.lock()()
	var n int64
	for _, f := range m.r.s.folders {
		if strings.HasPrefix(f.Path, oldPrefix) {
			f.Path = newPrefix + f.Path[len(oldPrefix):]
			f.Depth += depthDelta
			n++
		}
	}
	return n, nil
}

func (m *memFolders) TrashSubtree(_ context.Context, folderID, subtreePrefix string, trashedAt time.Time) (int64, error) {
	defer m.r.lock()()
	var n int64
	for _, f := range m.r.s.folders {
		if f.FolderID == folderID || strings.HasPrefix(f.Path, subtreePrefix) {
			if !f.IsTrashed {
				ts := trashedAt
				f.IsTrashed = true
				f.TrashedAt = &ts
				n++
			}
		}
	}
	return n, nil
}

func (m *memFolders) Restore(_ context.Context, folderID string) error {
	defer m.r.lock()()
	f, ok := m.r.s.folders[folderID]
	if !ok {
		return repository.ErrNotFound
	}
	if m.folderNameTaken(f.OwnerID, f.ParentID, f.Name, folderID) {
		return repository.ErrConflict
	}
	f.IsTrashed = false
	f.TrashedAt = nil
	return nil
}

func (m *memFolders) SetStarred(_ context.Context, folderID string, starred bool) error {
	defer m.r.lock()()
	f, ok := m.r.s.folders[folderID]
	if !ok {
		return repository.ErrNotFound
	}
	f.IsStarred = starred
	return nil
}

func (m *memFolders) ListSubtree(_ context.Context, subtreePrefix string) ([]*model.Folder, error) {
	defer m.r.lock()()
	var out []*model.Folder
	for _, f := range m.r.s.folders {
		if strings.HasPrefix(f.Path, subtreePrefix) {
			cp := *f
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Depth > out[j].Depth })
	return out, nil
}

func (m *memFolders) Delete(_ context.Context, folderID string) error {
	defer m.r.lock()()
	if _, ok := m.r.s.folders[folderID]; !ok {
		return repository.ErrNotFound
	}
	delete(m.r.s.folders, folderID)
	return nil
}

func (m *memFolders) ListTrashed(_ context.Context, ownerID string) ([]*model.Folder, error) {
	defer m.r.lock()()
	var out []*model.Folder
	for _, f := range m.r.s.folders {
		if f.IsTrashed && f.OwnerID == ownerID {
			cp := *f
			out = append(out, &cp)
		}
	}
	return out, nil
}

// --- Файлы ---

type memFiles struct{ r *memRepos }

func (m *memFiles) fileNameTaken(ownerID string, folderID *string, name, exceptID string) bool {
	for _, f := range m.r.s.files {
		if f.FileID == exceptID || f.IsTrashed || f.OwnerID != ownerID || f.Name != name {
			continue
		}
		if ptrEqual(f.FolderID, folderID) {
			return true
		}
	}
	return false
}

func (m *memFiles) Create(_ context.Context, f *model.File) error {
	defer m.r.lock()()
	if m.fileNameTaken(f.OwnerID, f.FolderID, f.Name, f.FileID) {
		return repository.ErrConflict
	}
	cp := *f
	m.r.s.files[f.FileID] = &cp
	return nil
}

func (m *memFiles) GetByID(_ context.Context, fileID string) (*model.File, error) {
	defer m.r.lock()()
	f, ok := m.r.s.files[fileID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *f
	return &cp, nil
}

func (m *memFiles) GetByIDForUpdate(ctx context.Context, fileID string) (*model.File, error) {
	return m.GetByID(ctx, fileID)
}

func (m *memFiles) ListByFolder(_ context.Context, ownerID string, folderID *string) ([]*model.File, error) {
	defer m.r.lock()()
	var out []*model.File
	for _, f := range m.r.s.files {
		if f.IsTrashed || !ptrEqual(f.FolderID, folderID) {
			continue
		}
		if folderID == nil && f.OwnerID != ownerID {
			continue
		}
		cp := *f
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memFiles) Rename(_ context.Context, fileID, name, extension string) error {
	defer m.r.lock()()
	f, ok := m.r.s.files[fileID]
	if !ok {
		return repository.ErrNotFound
	}
	if m.fileNameTaken(f.OwnerID, f.FolderID, name, fileID) {
		return repository.ErrConflict
	}
	f.Name = name
	f.Extension = extension
	return nil
}

func (m *memFiles) SetFolder(_ context.Context, fileID string, folderID *string) error {
	defer m.r.lock()()
	f, ok := m.r.s.files[fileID]
	if !ok {
		return repository.ErrNotFound
	}
	if !f.IsTrashed && m.fileNameTaken(f.OwnerID, folderID, f.Name, fileID) {
		return repository.ErrConflict
	}
	f.FolderID = folderID
	return nil
}

func (m *memFiles) SetStarred(_ context.Context, fileID string, starred bool) error {
	defer m.r.lock()()
	f, ok := m.r.s.files[fileID]
	if !ok {
		return repository.ErrNotFound
	}
	f.IsStarred = starred
	return nil
}

func (m *memFiles) SetCurrentVersion(_ context.Context, fileID, versionID, storageKey string, sizeBytes int64, mimeType string) error {
	defer m.r.lock()()
	f, ok := m.r.s.files[fileID]
	if !ok {
		return repository.ErrNotFound
	}
	f.CurrentVersionID = &versionID
	f.StorageKey = storageKey
	f.SizeBytes = sizeBytes
	f.MimeType = mimeType
	return nil
}

func (m *memFiles) UpdateStatusIf(_ context.Context, fileID, from, to, scanStatus string) (bool, error) {
	defer m.r.lock()()
	f, ok := m.r.s.files[fileID]
	if !ok || f.Status != from {
		return false, nil
	}
	f.Status = to
	f.ScanStatus = scanStatus
	return true, nil
}

func (m *memFiles) SetStatus(_ context.Context, fileID, status, scanStatus string) error {
	defer m.r.lock()()
	f, ok := m.r.s.files[fileID]
	if !ok {
		return repository.ErrNotFound
	}
	f.Status = status
	f.ScanStatus = scanStatus
	return nil
}

func (m *memFiles) Trash(_ context.Context, fileID string, trashedAt time.Time) error {
	defer m.r.lock()()
	f, ok := m.r.s.files[fileID]
	if !ok {
		return repository.ErrNotFound
	}
	ts := trashedAt
	f.IsTrashed = true
	f.TrashedAt = &ts
	return nil
}

func (m *memFiles) TrashBySubtree(_ context.Context, folderID, subtreePrefix string, trashedAt time.Time) (int64, error) {
	defer m.r.lock()()
	var n int64
	for _, f := range m.r.s.files {
		if f.FolderID == nil || f.IsTrashed {
			continue
		}
		parent, ok := m.r.s.folders[*f.FolderID]
		if !ok {
			continue
		}
		if parent.FolderID == folderID || strings.HasPrefix(parent.Path, subtreePrefix) {
			ts := trashedAt
			f.IsTrashed = true
			f.TrashedAt = &ts
			n++
		}
	}
	return n, nil
}

func (m *memFiles) Restore(_ context.Context, fileID string) error {
	defer m.r.lock()()
	f, ok := m.r.s.files[fileID]
	if !ok {
		return repository.ErrNotFound
	}
	if m.fileNameTaken(f.OwnerID, f.FolderID, f.Name, fileID) {
		return repository.ErrConflict
	}
	f.IsTrashed = false
	f.TrashedAt = nil
	return nil
}

func (m *memFiles) Delete(_ context.Context, fileID string) error {
	defer m.r.lock()()
	if _, ok := m.r.s.files[fileID]; !ok {
		return repository.ErrNotFound
	}
	delete(m.r.s.files, fileID)
	for id, v := range m.r.s.versions {
		if v.FileID == fileID {
			delete(m.r.s.versions, id)
		}
	}
	return nil
}

func (m *memFiles) ListBySubtree(_ context.Context, folderID, subtreePrefix string) ([]*model.File, error) {
	defer m.r.lock()()
	var out []*model.File
	for _, f := range m.r.s.files {
		if f.FolderID == nil {
			continue
		}
		parent, ok := m.r.s.folders[*f.FolderID]
		if !ok {
			continue
		}
		if parent.FolderID == folderID || strings.HasPrefix(parent.Path, subtreePrefix) {
			cp := *f
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memFiles) ListTrashed(_ context.Context, ownerID string) ([]*model.File, error) {
	defer m.r.lock()()
	var out []*model.File
	for _, f := range m.r.s.files {
		if f.IsTrashed && f.OwnerID == ownerID {
			cp := *f
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memFiles) ListStaleUploading(_ context.Context, olderThan time.Time, limit int) ([]*model.File, error) {
	defer m.r.lock()()
	var out []*model.File
	for _, f := range m.r.s.files {
		if f.Status == model.FileStatusUploading && f.CreatedAt.Before(olderThan) {
			cp := *f
			out = append(out, &cp)
			if len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

// --- Версии ---

type memVersions struct{ r *memRepos }

func (m *memVersions) Create(_ context.Context, v *model.FileVersion) error {
	defer m.r.lock()()
	for _, other := range m.r.s.versions {
		if other.FileID == v.FileID && other.VersionNumber == v.VersionNumber {
			return repository.ErrConflict
		}
	}
	cp := *v
	m.r.s.versions[v.VersionID] = &cp
	return nil
}

func (m *memVersions) GetByID(_ context.Context, versionID string) (*model.FileVersion, error) {
	defer m.r.lock()()
	v, ok := m.r.s.versions[versionID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *v
	return &cp, nil
}

func (m *memVersions) ListByFile(_ context.Context, fileID string) ([]*model.FileVersion, error) {
	defer m.r.lock()()
	var out []*model.FileVersion
	for _, v := range m.r.s.versions {
		if v.FileID == fileID {
			cp := *v
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VersionNumber > out[j].VersionNumber })
	return out, nil
}

func (m *memVersions) MaxNumber(_ context.Context, fileID string) (int, error) {
	defer m.r.lock()()
	maxN := 0
	for _, v := range m.r.s.versions {
		if v.FileID == fileID && v.VersionNumber > maxN {
			maxN = v.VersionNumber
		}
	}
	return maxN, nil
}

// --- Права ---

type memGrants struct{ r *memRepos }

func (m *memGrants) find(resourceID, resourceType, userID string) *model.PermissionGrant {
	for _, g := range m.r.s.grants {
		if g.ResourceID == resourceID && g.ResourceType == resourceType && g.UserID == userID {
			return g
		}
	}
	return nil
}

func (m *memGrants) UpsertDirect(_ context.Context, g *model.PermissionGrant) (string, error) {
	defer m.r.lock()()
	if existing := m.find(g.ResourceID, g.ResourceType, g.UserID); existing != nil {
		existing.Role = g.Role
		existing.InheritedFrom = nil
		existing.GrantedBy = g.GrantedBy
		existing.UpdatedAt = time.Now()
		return existing.GrantID, nil
	}
	cp := *g
	m.r.s.grants[g.GrantID] = &cp
	return g.GrantID, nil
}

func (m *memGrants) InsertDerived(_ context.Context, g *model.PermissionGrant) error {
	defer m.r.lock()()
	if m.find(g.ResourceID, g.ResourceType, g.UserID) != nil {
		return nil // ON CONFLICT DO NOTHING
	}
	cp := *g
	m.r.s.grants[g.GrantID] = &cp
	return nil
}

func (m *memGrants) Get(_ context.Context, resourceID, resourceType, userID string) (*model.PermissionGrant, error) {
	defer m.r.lock()()
	g := m.find(resourceID, resourceType, userID)
	if g == nil {
		return nil, repository.ErrNotFound
	}
	cp := *g
	return &cp, nil
}

func (m *memGrants) DeleteDirect(_ context.Context, resourceID, resourceType, userID string) (string, error) {
	defer m.r.lock()()
	g := m.find(resourceID, resourceType, userID)
	if g == nil || !g.IsDirect() {
		return "", repository.ErrNotFound
	}
	delete(m.r.s.grants, g.GrantID)
	return g.GrantID, nil
}

func (m *memGrants) DeleteByInheritedFrom(_ context.Context, ids []string) ([]string, error) {
	defer m.r.lock()()
	idSet := map[string]bool{}
	for _, id := range ids {
		idSet[id] = true
	}
	var deleted []string
	for id, g := range m.r.s.grants {
		if g.InheritedFrom != nil && idSet[*g.InheritedFrom] {
			delete(m.r.s.grants, id)
			deleted = append(deleted, id)
		}
	}
	return deleted, nil
}

func (m *memGrants) DeleteByResource(_ context.Context, resourceID, resourceType string) error {
	defer m.r.lock()()
	for id, g := range m.r.s.grants {
		if g.ResourceID == resourceID && g.ResourceType == resourceType {
			delete(m.r.s.grants, id)
		}
	}
	return nil
}

func (m *memGrants) ListByResource(_ context.Context, resourceID, resourceType string) ([]*model.PermissionGrant, error) {
	defer m.r.lock()()
	var out []*model.PermissionGrant
	for _, g := range m.r.s.grants {
		if g.ResourceID == resourceID && g.ResourceType == resourceType {
			cp := *g
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memGrants) ListDirectByUser(_ context.Context, userID string) ([]*model.PermissionGrant, error) {
	defer m.r.lock()()
	var out []*model.PermissionGrant
	for _, g := range m.r.s.grants {
		if g.UserID == userID && g.IsDirect() {
			cp := *g
			out = append(out, &cp)
		}
	}
	return out, nil
}

// --- Пользователи ---

type memUsers struct{ r *memRepos }

func (m *memUsers) Create(_ context.Context, u *model.User) error {
	defer m.r.lock()()
	for _, other := range m.r.s.users {
		if other.Username == u.Username || other.Email == u.Email {
			return repository.ErrConflict
		}
	}
	cp := *u
	m.r.s.users[u.UserID] = &cp
	return nil
}

func (m *memUsers) GetByID(_ context.Context, userID string) (*model.User, error) {
	defer m.r.lock()()
	u, ok := m.r.s.users[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) AdjustStorageUsed(_ context.Context, userID string, delta int64) error {
	defer m.r.lock()()
	u, ok := m.r.s.users[userID]
	if !ok {
		return repository.ErrNotFound
	}
	if u.StorageUsedBytes+delta < 0 {
		return repository.ErrNegativeUsage
	}
	u.StorageUsedBytes += delta
	return nil
}

func (m *memUsers) Search(_ context.Context, query string, limit int) ([]*model.User, error) {
	defer m.r.lock()()
	q := strings.ToLower(query)
	var out []*model.User
	for _, u := range m.r.s.users {
		if strings.Contains(strings.ToLower(u.Username), q) ||
			strings.Contains(strings.ToLower(u.Email), q) ||
			strings.Contains(strings.ToLower(u.DisplayName), q) {
			cp := *u
			out = append(out, &cp)
			if len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

// ptrEqual сравнивает указатели на строку по значению.
func ptrEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// --- Фейк объектного хранилища ---

type fakeGateway struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{objects: map[string][]byte{}}
}

func objKey(bucket, key string) string { return bucket + "/" + key }

func (g *fakeGateway) Put(_ context.Context, bucket, key string, data []byte, _ string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.objects[objKey(bucket, key)] = data
	return nil
}

func (g *fakeGateway) Get(_ context.Context, bucket, key string) (io.ReadCloser, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	data, ok := g.objects[objKey(bucket, key)]
	if !ok {
		return nil, fmt.Errorf("объект %s/%s не найден", bucket, key)
	}
	return io.NopCloser(strings.NewReader(string(data))), nil
}

func (g *fakeGateway) Copy(_ context.Context, srcBucket, srcKey, dstBucket, dstKey string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	data, ok := g.objects[objKey(srcBucket, srcKey)]
	if !ok {
		return fmt.Errorf("объект %s/%s не найден", srcBucket, srcKey)
	}
	g.objects[objKey(dstBucket, dstKey)] = data
	return nil
}

func (g *fakeGateway) Delete(_ context.Context, bucket, key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.objects, objKey(bucket, key))
	return nil
}

func (g *fakeGateway) PresignedPutURL(_ context.Context, bucket, key string, _ time.Duration) (string, error) {
	return "https://minio.test/" + bucket + "/" + key + "?sig=put", nil
}

func (g *fakeGateway) PresignedGetURL(_ context.Context, bucket, key string, _ time.Duration) (string, error) {
	return "https://minio.test/" + bucket + "/" + key + "?sig=get", nil
}

func (g *fakeGateway) has(bucket, key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.objects[objKey(bucket, key)]
	return ok
}

// --- Фейк очереди ---

type fakeQueue struct {
	mu   sync.Mutex
	jobs []queue.Job
}

func (q *fakeQueue) Enqueue(_ context.Context, job queue.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *fakeQueue) byName(name string) []queue.Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []queue.Job
	for _, j := range q.jobs {
		if j.Name == name {
			out = append(out, j)
		}
	}
	return out
}
