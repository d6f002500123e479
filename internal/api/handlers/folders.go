// folders.go — обработчики операций над деревом папок.
package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/godrive/internal/api/errors"
	"github.com/bigkaa/godrive/internal/domain/model"
	"github.com/bigkaa/godrive/internal/service"
)

// FoldersHandler — обработчик endpoints дерева папок.
type FoldersHandler struct {
	tree *service.TreeService
}

// NewFoldersHandler создаёт обработчик папок.
func NewFoldersHandler(tree *service.TreeService) *FoldersHandler {
	return &FoldersHandler{tree: tree}
}

// folderResponse — представление папки в API.
type folderResponse struct {
	FolderID  string  `json:"folder_id"`
	OwnerID   string  `json:"owner_id"`
	ParentID  *string `json:"parent_id"`
	Name      string  `json:"name"`
	Depth     int     `json:"depth"`
	IsTrashed bool    `json:"is_trashed"`
	IsStarred bool    `json:"is_starred"`
	CreatedAt string  `json:"created_at"`
	UpdatedAt string  `json:"updated_at"`
}

func toFolderResponse(f *model.Folder) folderResponse {
	return folderResponse{
		FolderID:  f.FolderID,
		OwnerID:   f.OwnerID,
		ParentID:  f.ParentID,
		Name:      f.Name,
		Depth:     f.Depth,
		IsTrashed: f.IsTrashed,
		IsStarred: f.IsStarred,
		CreatedAt: f.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: f.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// listingResponse — содержимое папки.
type listingResponse struct {
	Folders []folderResponse `json:"folders"`
	Files   []fileResponse   `json:"files"`
}

func toListingResponse(l *service.FolderListing) listingResponse {
	resp := listingResponse{
		Folders: make([]folderResponse, 0, len(l.Folders)),
		Files:   make([]fileResponse, 0, len(l.Files)),
	}
	for _, f := range l.Folders {
		resp.Folders = append(resp.Folders, toFolderResponse(f))
	}
	for _, f := range l.Files {
		resp.Files = append(resp.Files, toFileResponse(f))
	}
	return resp
}

// Create — POST /api/v1/folders.
func (h *FoldersHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := requireUser(w, r)
	if userID == "" {
		return
	}
	var req struct {
		Name     string  `json:"name"`
		ParentID *string `json:"parent_id"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	folder, err := h.tree.Create(r.Context(), userID, req.Name, req.ParentID)
	if err != nil {
		apierrors.FromService(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toFolderResponse(folder))
}

// ListRoot — GET /api/v1/folders: содержимое верхнего уровня пользователя.
func (h *FoldersHandler) ListRoot(w http.ResponseWriter, r *http.Request) {
	userID := requireUser(w, r)
	if userID == "" {
		return
	}
	listing, err := h.tree.List(r.Context(), userID, nil)
	if err != nil {
		apierrors.FromService(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toListingResponse(listing))
}

// Get — GET /api/v1/folders/{folderID}: папка и её содержимое.
func (h *FoldersHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := requireUser(w, r)
	if userID == "" {
		return
	}
	folderID := chi.URLParam(r, "folderID")

	folder, err := h.tree.Get(r.Context(), userID, folderID)
	if err != nil {
		apierrors.FromService(w, err)
		return
	}
	listing, err := h.tree.List(r.Context(), userID, &folderID)
	if err != nil {
		apierrors.FromService(w, err)
		return
	}

	resp := struct {
		Folder folderResponse `json:"folder"`
		listingResponse
	}{toFolderResponse(folder), toListingResponse(listing)}
	writeJSON(w, http.StatusOK, resp)
}

// Rename — PATCH /api/v1/folders/{folderID}.
func (h *FoldersHandler) Rename(w http.ResponseWriter, r *http.Request) {
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

	folder, err := h.tree.Rename(r.Context(), userID, chi.URLParam(r, "folderID"), req.Name)
	if err != nil {
		apierrors.FromService(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toFolderResponse(folder))
}

// Move — POST /api/v1/folders/{folderID}/move.
func (h *FoldersHandler) Move(w http.ResponseWriter, r *http.Request) {
	userID := requireUser(w, r)
	if userID == "" {
		return
	}
	var req struct {
		NewParentID *string `json:"new_parent_id"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	folder, err := h.tree.Move(r.Context(), userID, chi.URLParam(r, "folderID"), req.NewParentID)
	if err != nil {
		apierrors.FromService(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toFolderResponse(folder))
}

// Trash — DELETE /api/v1/folders/{folderID}: в корзину вместе с поддеревом.
func (h *FoldersHandler) Trash(w http.ResponseWriter, r *http.Request) {
	userID := requireUser(w, r)
	if userID == "" {
		return
	}
	if err := h.tree.Trash(r.Context(), userID, chi.URLParam(r, "folderID")); err != nil {
		apierrors.FromService(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Restore — POST /api/v1/folders/{folderID}/restore.
func (h *FoldersHandler) Restore(w http.ResponseWriter, r *http.Request) {
	userID := requireUser(w, r)
	if userID == "" {
		return
	}
	folder, err := h.tree.Restore(r.Context(), userID, chi.URLParam(r, "folderID"))
	if err != nil {
		apierrors.FromService(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toFolderResponse(folder))
}

// Star — PUT /api/v1/folders/{folderID}/star.
func (h *FoldersHandler) Star(w http.ResponseWriter, r *http.Request) {
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
	if err := h.tree.SetStarred(r.Context(), userID, chi.URLParam(r, "folderID"), req.Starred); err != nil {
		apierrors.FromService(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PermanentDelete — DELETE /api/v1/folders/{folderID}/permanent.
func (h *FoldersHandler) PermanentDelete(w http.ResponseWriter, r *http.Request) {
	userID := requireUser(w, r)
	if userID == "" {
		return
	}
	if err := h.tree.PermanentDelete(r.Context(), userID, chi.URLParam(r, "folderID")); err != nil {
		apierrors.FromService(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
