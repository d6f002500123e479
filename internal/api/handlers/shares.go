// shares.go — обработчики выдачи и отзыва прав доступа, списков
// «доступно мне» и поиска пользователей.
package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/godrive/internal/api/errors"
	"github.com/bigkaa/godrive/internal/domain/model"
	"github.com/bigkaa/godrive/internal/service"
)

// SharesHandler — обработчик endpoints прав доступа.
type SharesHandler struct {
	acl *service.AccessService
}

// NewSharesHandler создаёт обработчик прав доступа.
func NewSharesHandler(acl *service.AccessService) *SharesHandler {
	return &SharesHandler{acl: acl}
}

// grantResponse — представление права доступа в API.
type grantResponse struct {
	GrantID       string  `json:"grant_id"`
	ResourceID    string  `json:"resource_id"`
	ResourceType  string  `json:"resource_type"`
	UserID        string  `json:"user_id"`
	Role          string  `json:"role"`
	InheritedFrom *string `json:"inherited_from"`
	GrantedBy     string  `json:"granted_by"`
	CreatedAt     string  `json:"created_at"`
}

func toGrantResponse(g *model.PermissionGrant) grantResponse {
	return grantResponse{
		GrantID:       g.GrantID,
		ResourceID:    g.ResourceID,
		ResourceType:  g.ResourceType,
		UserID:        g.UserID,
		Role:          g.Role,
		InheritedFrom: g.InheritedFrom,
		GrantedBy:     g.GrantedBy,
		CreatedAt:     g.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// Grant — POST /api/v1/shares: выдача права на ресурс.
func (h *SharesHandler) Grant(w http.ResponseWriter, r *http.Request) {
	userID := requireUser(w, r)
	if userID == "" {
		return
	}
	var req struct {
		ResourceID   string `json:"resource_id"`
		ResourceType string `json:"resource_type"`
		UserID       string `json:"user_id"`
		Role         string `json:"role"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	grant, err := h.acl.Grant(r.Context(), req.ResourceID, req.ResourceType, req.UserID, req.Role, userID)
	if err != nil {
		apierrors.FromService(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toGrantResponse(grant))
}

// Revoke — DELETE /api/v1/shares: отзыв права вместе с производными.
func (h *SharesHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	userID := requireUser(w, r)
	if userID == "" {
		return
	}
	var req struct {
		ResourceID   string `json:"resource_id"`
		ResourceType string `json:"resource_type"`
		UserID       string `json:"user_id"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.acl.Revoke(r.Context(), req.ResourceID, req.ResourceType, req.UserID, userID); err != nil {
		apierrors.FromService(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListPermissions — GET /api/v1/shares/resources/{resourceType}/{resourceID}.
func (h *SharesHandler) ListPermissions(w http.ResponseWriter, r *http.Request) {
	userID := requireUser(w, r)
	if userID == "" {
		return
	}
	grants, err := h.acl.ListPermissions(r.Context(),
		chi.URLParam(r, "resourceID"), chi.URLParam(r, "resourceType"), userID)
	if err != nil {
		apierrors.FromService(w, err)
		return
	}
	resp := make([]grantResponse, 0, len(grants))
	for _, g := range grants {
		resp = append(resp, toGrantResponse(g))
	}
	writeJSON(w, http.StatusOK, map[string]any{"grants": resp})
}

// sharedItemResponse — элемент списка «доступно мне».
type sharedItemResponse struct {
	ResourceID   string `json:"resource_id"`
	ResourceType string `json:"resource_type"`
	Name         string `json:"name"`
	OwnerID      string `json:"owner_id"`
	Role         string `json:"role"`
	IsTrashed    bool   `json:"is_trashed"`
	SharedAt     string `json:"shared_at"`
}

// ListSharedWithMe — GET /api/v1/shared-with-me.
func (h *SharesHandler) ListSharedWithMe(w http.ResponseWriter, r *http.Request) {
	userID := requireUser(w, r)
	if userID == "" {
		return
	}
	items, err := h.acl.ListSharedWithMe(r.Context(), userID)
	if err != nil {
		apierrors.FromService(w, err)
		return
	}
	resp := make([]sharedItemResponse, 0, len(items))
	for _, it := range items {
		resp = append(resp, sharedItemResponse{
			ResourceID:   it.Grant.ResourceID,
			ResourceType: it.Grant.ResourceType,
			Name:         it.Name,
			OwnerID:      it.OwnerID,
			Role:         it.Grant.Role,
			IsTrashed:    it.IsTrashed,
			SharedAt:     it.Grant.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": resp})
}

// userResponse — представление пользователя в результатах поиска.
// Квота и занятое место наружу не отдаются.
type userResponse struct {
	UserID      string `json:"user_id"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
}

// SearchUsers — GET /api/v1/users/search?q=...&limit=...
func (h *SharesHandler) SearchUsers(w http.ResponseWriter, r *http.Request) {
	userID := requireUser(w, r)
	if userID == "" {
		return
	}
	query := r.URL.Query().Get("q")
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			apierrors.ValidationError(w, "параметр limit должен быть числом")
			return
		}
		limit = n
	}

	users, err := h.acl.SearchUsers(r.Context(), query, limit)
	if err != nil {
		apierrors.FromService(w, err)
		return
	}
	resp := make([]userResponse, 0, len(users))
	for _, u := range users {
		resp = append(resp, userResponse{
			UserID:      u.UserID,
			Username:    u.Username,
			Email:       u.Email,
			DisplayName: u.DisplayName,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": resp})
}
