// errors.go — ошибки бизнес-логики сервисного слоя.
package service

import "errors"

var (
	// ErrNotFound — ресурс не существует либо недоступен вызывающему.
	// Оба случая неразличимы снаружи: не раскрываем факт существования
	// ресурса тем, у кого нет к нему доступа.
	ErrNotFound = errors.New("ресурс не найден")
	// ErrForbidden — ресурс доступен, но роли недостаточно для операции.
	ErrForbidden = errors.New("недостаточно прав для операции")
	// ErrConflict — конфликт: дублирующееся имя среди соседей либо
	// перемещение папки в саму себя или собственного потомка.
	ErrConflict = errors.New("конфликт — операция нарушает уникальность или структуру дерева")
	// ErrBadRequest — недопустимый переход состояния (например, повторное
	// завершение уже завершённой загрузки).
	ErrBadRequest = errors.New("недопустимое состояние для операции")
	// ErrQuotaExceeded — превышение квоты хранилища пользователя.
	ErrQuotaExceeded = errors.New("квота хранилища исчерпана")
	// ErrValidation — ошибка валидации входных данных.
	ErrValidation = errors.New("ошибка валидации")
)
