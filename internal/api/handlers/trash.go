// trash.go — обработчик содержимого корзины пользователя.
package handlers

import (
	"net/http"

	apierrors "github.com/bigkaa/godrive/internal/api/errors"
	"github.com/bigkaa/godrive/internal/service"
)

// TrashHandler — обработчик endpoints корзины.
type TrashHandler struct {
	tree *service.TreeService
}

// NewTrashHandler создаёт обработчик корзины.
func NewTrashHandler(tree *service.TreeService) *TrashHandler {
	return &TrashHandler{tree: tree}
}

// List — GET /api/v1/trash: корни помещённых в корзину поддеревьев
// и отдельно удалённые файлы.
func (h *TrashHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := requireUser(w, r)
	if userID == "" {
		return
	}
	listing, err := h.tree.ListTrash(r.Context(), userID)
	if err != nil {
		apierrors.FromService(w, err)
		return
	}

	resp := listingResponse{
		Folders: make([]folderResponse, 0, len(listing.Folders)),
		Files:   make([]fileResponse, 0, len(listing.Files)),
	}
	for _, f := range listing.Folders {
		resp.Folders = append(resp.Folders, toFolderResponse(f))
	}
	for _, f := range listing.Files {
		resp.Files = append(resp.Files, toFileResponse(f))
	}
	writeJSON(w, http.StatusOK, resp)
}
