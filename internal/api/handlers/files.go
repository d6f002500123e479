// files.go — обработчики операций над файлами, версиями и callbacks
// фоновых задач (антивирус, миниатюры).
package handlers

import (
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/godrive/internal/api/errors"
	"github.com/bigkaa/godrive/internal/domain/model"
	"github.com/bigkaa/godrive/internal/service"
)

// maxUploadBytes — лимит тела запроса при прямой загрузке файла.
const maxUploadBytes = 256 << 20

// FilesHandler — обработчик endpoints файлов.
type FilesHandler struct {
	files *service.FileService
}

// NewFilesHandler создаёт обработчик файлов.
func NewFilesHandler(files *service.FileService) *FilesHandler {
	return &FilesHandler{files: files}
}

// fileResponse — представление файла в API.
type fileResponse struct {
	FileID           string  `json:"file_id"`
	OwnerID          string  `json:"owner_id"`
	FolderID         *string `json:"folder_id"`
	Name             string  `json:"name"`
	MimeType         string  `json:"mime_type"`
	Extension        string  `json:"extension"`
	SizeBytes        int64   `json:"size_bytes"`
	CurrentVersionID *string `json:"current_version_id"`
	Status           string  `json:"status"`
	ScanStatus       string  `json:"scan_status"`
	IsTrashed        bool    `json:"is_trashed"`
	IsStarred        bool    `json:"is_starred"`
	CreatedAt        string  `json:"created_at"`
	UpdatedAt        string  `json:"updated_at"`
}

func toFileResponse(f *model.File) fileResponse {
	return fileResponse{
		FileID:           f.FileID,
		OwnerID:          f.OwnerID,
		FolderID:         f.FolderID,
		Name:             f.Name,
		MimeType:         f.MimeType,
		Extension:        f.Extension,
		SizeBytes:        f.SizeBytes,
		CurrentVersionID: f.CurrentVersionID,
		Status:           f.Status,
		ScanStatus:       f.ScanStatus,
		IsTrashed:        f.IsTrashed,
		IsStarred:        f.IsStarred,
		CreatedAt:        f.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:        f.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// versionResponse — представление версии файла в API.
type versionResponse struct {
	VersionID     string `json:"version_id"`
	FileID        string `json:"file_id"`
	VersionNumber int    `json:"version_number"`
	SizeBytes     int64  `json:"size_bytes"`
	Checksum      string `json:"checksum"`
	MimeType      string `json:"mime_type"`
	UploadedBy    string `json:"uploaded_by"`
	Comment       string `json:"comment,omitempty"`
	CreatedAt     string `json:"created_at"`
}

func toVersionResponse(v *model.FileVersion) versionResponse {
	return versionResponse{
		VersionID:     v.VersionID,
		FileID:        v.FileID,
		VersionNumber: v.VersionNumber,
		SizeBytes:     v.SizeBytes,
		Checksum:      v.Checksum,
		MimeType:      v.MimeType,
		UploadedBy:    v.UploadedBy,
		Comment:       v.Comment,
		CreatedAt:     v.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// Upload — POST /api/v1/files: прямая загрузка файла (multipart/form-data,
// часть "file", необязательное поле "folder_id").
func (h *FilesHandler) Upload(w http.ResponseWriter, r *http.Request) {
	userID := requireUser(w, r)
	if userID == "" {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		apierrors.ValidationError(w, "некорректное multipart-тело запроса")
		return
	}
	part, header, err := r.FormFile("file")
	if err != nil {
		apierrors.ValidationError(w, "отсутствует часть file")
		return
	}
	defer part.Close()

	data, err := io.ReadAll(part)
	if err != nil {
		apierrors.ValidationError(w, "не удалось прочитать содержимое файла")
		return
	}
	folderID := optionalID(r.FormValue("folder_id"))
	mimeType := header.Header.Get("Content-Type")

	file, err := h.files.Upload(r.Context(), userID, header.Filename, folderID, mimeType, data)
	if err != nil {
		apierrors.FromService(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toFileResponse(file))
}

// InitUpload — POST /api/v1/files/uploads: начало двухфазной загрузки.
// Возвращает метаданные файла и presigned URL для PUT блоба.
func (h *FilesHandler) InitUpload(w http.ResponseWriter, r *http.Request) {
	userID := requireUser(w, r)
	if userID == "" {
		return
	}
	var req struct {
		Name     string  `json:"name"`
		FolderID *string `json:"folder_id"`
		MimeType string  `json:"mime_type"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	file, uploadURL, err := h.files.InitUpload(r.Context(), userID, req.Name, req.FolderID, req.MimeType)
	if err != nil {
		apierrors.FromService(w, err)
		return
	}

	resp := struct {
		File      fileResponse `json:"file"`
		UploadURL string       `json:"upload_url"`
	}{toFileResponse(file), uploadURL}
	writeJSON(w, http.StatusCreated, resp)
}

// CompleteUpload — POST /api/v1/files/{fileID}/complete: завершение
// двухфазной загрузки после PUT блоба клиентом.
func (h *FilesHandler) CompleteUpload(w http.ResponseWriter, r *http.Request) {
	userID := requireUser(w, r)
	if userID == "" {
		return
	}
	var req struct {
		SizeBytes int64  `json:"size_bytes"`
		Checksum  string `json:"checksum"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	file, err := h.files.CompleteUpload(r.Context(), userID, chi.URLParam(r, "fileID"), req.SizeBytes, req.Checksum)
	if err != nil {
		apierrors.FromService(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toFileResponse(file))
}

// Get — GET /api/v1/files/{fileID}.
func (h *FilesHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := requireUser(w, r)
	if userID == "" {
		return
	}
	file, err := h.files.Get(r.Context(), userID, chi.URLParam(r, "fileID"))
	if err != nil {
		apierrors.FromService(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toFileResponse(file))
}

// Rename — PATCH /api/v1/files/{fileID}.
func (h *FilesHandler) Rename(w http.ResponseWriter, r *http.Request) {
	userID := requireUser(w, r)
	if userID == "" {
		return
	}
	var req struct {
		Name string `json:"name"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.files.Rename(r.Context(), userID, chi.URLParam(r, "fileID"), req.Name); err != nil {
		apierrors.FromService(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Move — POST /api/v1/files/{fileID}/move.
func (h *FilesHandler) Move(w http.ResponseWriter, r *http.Request) {
	userID := requireUser(w, r)
	if userID == "" {
		return
	}
	var req struct {
		FolderID *string `json:"folder_id"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.files.Move(r.Context(), userID, chi.URLParam(r, "fileID"), req.FolderID); err != nil {
		apierrors.FromService(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Star — PUT /api/v1/files/{fileID}/star.
func (h *FilesHandler) Star(w http.ResponseWriter, r *http.Request) {
	userID := requireUser(w, r)
	if userID == "" {
		return
	}
	var req struct {
		Starred bool `json:"starred"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.files.SetStarred(r.Context(), userID, chi.URLParam(r, "fileID"), req.Starred); err != nil {
		apierrors.FromService(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Trash — DELETE /api/v1/files/{fileID}: файл в корзину.
func (h *FilesHandler) Trash(w http.ResponseWriter, r *http.Request) {
	userID := requireUser(w, r)
	if userID == "" {
		return
	}
	if err := h.files.Trash(r.Context(), userID, chi.URLParam(r, "fileID")); err != nil {
		apierrors.FromService(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Restore — POST /api/v1/files/{fileID}/restore.
func (h *FilesHandler) Restore(w http.ResponseWriter, r *http.Request) {
	userID := requireUser(w, r)
	if userID == "" {
		return
	}
	if err := h.files.Restore(r.Context(), userID, chi.URLParam(r, "fileID")); err != nil {
		apierrors.FromService(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PermanentDelete — DELETE /api/v1/files/{fileID}/permanent.
func (h *FilesHandler) PermanentDelete(w http.ResponseWriter, r *http.Request) {
	userID := requireUser(w, r)
	if userID == "" {
		return
	}
	if err := h.files.PermanentDelete(r.Context(), userID, chi.URLParam(r, "fileID")); err != nil {
		apierrors.FromService(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DownloadURL — GET /api/v1/files/{fileID}/download: presigned URL
// текущей версии.
func (h *FilesHandler) DownloadURL(w http.ResponseWriter, r *http.Request) {
	userID := requireUser(w, r)
	if userID == "" {
		return
	}
	url, err := h.files.DownloadURL(r.Context(), userID, chi.URLParam(r, "fileID"))
	if err != nil {
		apierrors.FromService(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"download_url": url})
}

// ThumbnailURL — GET /api/v1/files/{fileID}/thumbnail.
func (h *FilesHandler) ThumbnailURL(w http.ResponseWriter, r *http.Request) {
	userID := requireUser(w, r)
	if userID == "" {
		return
	}
	url, err := h.files.ThumbnailURL(r.Context(), userID, chi.URLParam(r, "fileID"))
	if err != nil {
		apierrors.FromService(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"thumbnail_url": url})
}

// ListVersions — GET /api/v1/files/{fileID}/versions.
func (h *FilesHandler) ListVersions(w http.ResponseWriter, r *http.Request) {
	userID := requireUser(w, r)
	if userID == "" {
		return
	}
	versions, err := h.files.ListVersions(r.Context(), userID, chi.URLParam(r, "fileID"))
	if err != nil {
		apierrors.FromService(w, err)
		return
	}
	resp := make([]versionResponse, 0, len(versions))
	for _, v := range versions {
		resp = append(resp, toVersionResponse(v))
	}
	writeJSON(w, http.StatusOK, map[string]any{"versions": resp})
}

// UploadVersion — POST /api/v1/files/{fileID}/versions: загрузка новой
// версии (multipart/form-data, часть "file", необязательное поле "comment").
func (h *FilesHandler) UploadVersion(w http.ResponseWriter, r *http.Request) {
	userID := requireUser(w, r)
	if userID == "" {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		apierrors.ValidationError(w, "некорректное multipart-тело запроса")
		return
	}
	part, header, err := r.FormFile("file")
	if err != nil {
		apierrors.ValidationError(w, "отсутствует часть file")
		return
	}
	defer part.Close()

	data, err := io.ReadAll(part)
	if err != nil {
		apierrors.ValidationError(w, "не удалось прочитать содержимое файла")
		return
	}
	mimeType := header.Header.Get("Content-Type")
	comment := r.FormValue("comment")

	version, err := h.files.UploadVersion(r.Context(), userID, chi.URLParam(r, "fileID"), mimeType, data, comment)
	if err != nil {
		apierrors.FromService(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toVersionResponse(version))
}

// RestoreVersion — POST /api/v1/files/versions/{versionID}/restore:
// откат на старую версию созданием новой с тем же содержимым.
func (h *FilesHandler) RestoreVersion(w http.ResponseWriter, r *http.Request) {
	userID := requireUser(w, r)
	if userID == "" {
		return
	}
	version, err := h.files.RestoreVersion(r.Context(), userID, chi.URLParam(r, "versionID"))
	if err != nil {
		apierrors.FromService(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toVersionResponse(version))
}

// VersionDownloadURL — GET /api/v1/files/versions/{versionID}/download.
func (h *FilesHandler) VersionDownloadURL(w http.ResponseWriter, r *http.Request) {
	userID := requireUser(w, r)
	if userID == "" {
		return
	}
	url, err := h.files.VersionDownloadURL(r.Context(), userID, chi.URLParam(r, "versionID"))
	if err != nil {
		apierrors.FromService(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"download_url": url})
}

// ScanCallback — POST /api/v1/callbacks/scan: результат антивирусной
// проверки от воркера.
func (h *FilesHandler) ScanCallback(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FileID  string `json:"file_id"`
		Verdict string `json:"verdict"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.files.HandleScanResult(r.Context(), req.FileID, req.Verdict); err != nil {
		apierrors.FromService(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ThumbnailCallback — POST /api/v1/callbacks/thumbnail: результат
// генерации миниатюры от воркера.
func (h *FilesHandler) ThumbnailCallback(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FileID string `json:"file_id"`
		OK     bool   `json:"ok"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.files.HandleThumbnailResult(r.Context(), req.FileID, req.OK); err != nil {
		apierrors.FromService(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
