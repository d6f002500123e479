// Пакет errors — конструкторы стандартных ошибок HTTP API godrive.
// Единый формат: {"error": {"code": "...", "message": "..."}}.
// Все HTTP-ответы с ошибками должны использовать WriteError.
package errors //nolint:revive // конфликт со stdlib осознанный: пакет используется только с алиасом

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/bigkaa/godrive/internal/service"
)

// Машиночитаемые коды ошибок API.
const (
	CodeValidationError = "VALIDATION_ERROR"
	CodeNotFound        = "NOT_FOUND"
	CodeUnauthorized    = "UNAUTHORIZED"
	CodeForbidden       = "FORBIDDEN"
	CodeConflict        = "CONFLICT"
	CodeInvalidState    = "INVALID_STATE"
	CodeQuotaExceeded   = "QUOTA_EXCEEDED"
	CodeInternalError   = "INTERNAL_ERROR"
)

// errorBody — структура тела ответа ошибки.
type errorBody struct {
	Error errorDetail `json:"error"`
}

// errorDetail — детали ошибки.
type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteError записывает ответ ошибки в стандартном формате godrive.
// statusCode — HTTP статус-код, code — машиночитаемый код, message — описание.
func WriteError(w http.ResponseWriter, statusCode int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(errorBody{
		Error: errorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// --- Конструкторы для типичных ошибок ---

// ValidationError — 400 некорректные входные данные.
func ValidationError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, CodeValidationError, message)
}

// NotFound — 404 ресурс не найден либо недоступен.
func NotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, CodeNotFound, message)
}

// Unauthorized — 401 требуется аутентификация.
func Unauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, CodeUnauthorized, message)
}

// Forbidden — 403 недостаточно прав.
func Forbidden(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusForbidden, CodeForbidden, message)
}

// Conflict — 409 конфликт имени или структуры дерева.
func Conflict(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusConflict, CodeConflict, message)
}

// InvalidState — 409 недопустимый переход состояния.
func InvalidState(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusConflict, CodeInvalidState, message)
}

// QuotaExceeded — 413 квота хранилища исчерпана.
func QuotaExceeded(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusRequestEntityTooLarge, CodeQuotaExceeded, message)
}

// InternalError — 500 внутренняя ошибка.
func InternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, CodeInternalError, message)
}

// FromService транслирует ошибку сервисного слоя в HTTP-ответ.
// Неизвестные ошибки отдаются как 500 без деталей.
func FromService(w http.ResponseWriter, err error) {
	switch {
	case stderrors.Is(err, service.ErrNotFound):
		NotFound(w, err.Error())
	case stderrors.Is(err, service.ErrForbidden):
		Forbidden(w, err.Error())
	case stderrors.Is(err, service.ErrConflict):
		Conflict(w, err.Error())
	case stderrors.Is(err, service.ErrBadRequest):
		InvalidState(w, err.Error())
	case stderrors.Is(err, service.ErrQuotaExceeded):
		QuotaExceeded(w, err.Error())
	case stderrors.Is(err, service.ErrValidation):
		ValidationError(w, err.Error())
	default:
		InternalError(w, "внутренняя ошибка сервера")
	}
}
