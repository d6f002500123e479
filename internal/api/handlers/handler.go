// handler.go — APIHandler собирает доменные обработчики godrive и
// регистрирует маршруты. Все бизнес-endpoints живут под /api/v1 за
// middleware аутентификации; health и metrics — публичные.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/godrive/internal/api/errors"
	"github.com/bigkaa/godrive/internal/api/middleware"
)

// APIHandler — единый обработчик всех endpoints godrive.
type APIHandler struct {
	folders *FoldersHandler
	files   *FilesHandler
	shares  *SharesHandler
	trash   *TrashHandler
	health  *HealthHandler
}

// NewAPIHandler создаёт единый handler.
func NewAPIHandler(
	folders *FoldersHandler,
	files *FilesHandler,
	shares *SharesHandler,
	trash *TrashHandler,
	health *HealthHandler,
) *APIHandler {
	return &APIHandler{
		folders: folders,
		files:   files,
		shares:  shares,
		trash:   trash,
		health:  health,
	}
}

// RegisterPublic монтирует health и metrics endpoints (без аутентификации).
func (h *APIHandler) RegisterPublic(r chi.Router) {
	r.Get("/health/live", h.health.HealthLive)
	r.Get("/health/ready", h.health.HealthReady)
	r.Get("/metrics", h.health.GetMetrics)
}

// RegisterAPI монтирует бизнес-маршруты под /api/v1.
// Вызывается внутри группы с middleware аутентификации.
func (h *APIHandler) RegisterAPI(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		// Папки
		r.Route("/folders", func(r chi.Router) {
			r.Post("/", h.folders.Create)
			r.Get("/", h.folders.ListRoot)
			r.Route("/{folderID}", func(r chi.Router) {
				r.Get("/", h.folders.Get)
				r.Patch("/", h.folders.Rename)
				r.Delete("/", h.folders.Trash)
				r.Post("/move", h.folders.Move)
				r.Post("/restore", h.folders.Restore)
				r.Put("/star", h.folders.Star)
				r.Delete("/permanent", h.folders.PermanentDelete)
			})
		})

		// Файлы и версии
		r.Route("/files", func(r chi.Router) {
			r.Post("/", h.files.Upload)
			r.Post("/uploads", h.files.InitUpload)
			r.Route("/{fileID}", func(r chi.Router) {
				r.Get("/", h.files.Get)
				r.Patch("/", h.files.Rename)
				r.Delete("/", h.files.Trash)
				r.Post("/complete", h.files.CompleteUpload)
				r.Post("/move", h.files.Move)
				r.Post("/restore", h.files.Restore)
				r.Put("/star", h.files.Star)
				r.Delete("/permanent", h.files.PermanentDelete)
				r.Get("/download", h.files.DownloadURL)
				r.Get("/thumbnail", h.files.ThumbnailURL)
				r.Get("/versions", h.files.ListVersions)
				r.Post("/versions", h.files.UploadVersion)
			})
		})
		r.Route("/versions/{versionID}", func(r chi.Router) {
			r.Post("/restore", h.files.RestoreVersion)
			r.Get("/download", h.files.VersionDownloadURL)
		})

		// Права доступа
		r.Post("/shares", h.shares.Grant)
		r.Delete("/shares", h.shares.Revoke)
		r.Get("/shares/resources/{resourceType}/{resourceID}", h.shares.ListPermissions)
		r.Get("/shared-with-me", h.shares.ListSharedWithMe)
		r.Get("/users/search", h.shares.SearchUsers)

		// Корзина
		r.Get("/trash", h.trash.List)

		// Обратные вызовы воркеров
		r.Post("/callbacks/scan", h.files.ScanCallback)
		r.Post("/callbacks/thumbnail", h.files.ThumbnailCallback)
	})
}

// --- Вспомогательные функции ---

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// decodeJSON разбирает тело запроса. При ошибке пишет 400 и возвращает false.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		apierrors.ValidationError(w, "некорректный JSON в теле запроса")
		return false
	}
	return true
}

// requireUser извлекает идентификатор пользователя из контекста.
// При его отсутствии пишет 401 и возвращает пустую строку.
func requireUser(w http.ResponseWriter, r *http.Request) string {
	userID := middleware.UserID(r.Context())
	if userID == "" {
		apierrors.Unauthorized(w, "запрос без аутентификации")
	}
	return userID
}

// optionalID возвращает указатель на строку, nil для пустого значения.
func optionalID(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
