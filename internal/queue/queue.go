// Пакет queue — очередь фоновых задач (антивирусная проверка, миниатюры).
// Ядро только ставит задачи fire-and-forget и никогда не ждёт их
// завершения: результаты приходят обратным вызовом через API.
package queue

import (
	"context"
	"time"
)

// Имена задач.
const (
	// JobVirusScan — антивирусная проверка версии файла.
	JobVirusScan = "virus-scan"
	// JobThumbnail — генерация миниатюры и превью.
	JobThumbnail = "thumbnail"
)

// Job — фоновая задача с retry-политикой.
// Политику исполняет воркер очереди; ядро лишь декларирует её при постановке.
type Job struct {
	// Name — имя задачи (Job*)
	Name string `json:"name"`
	// Payload — произвольные параметры задачи
	Payload map[string]string `json:"payload"`
	// Attempts — максимальное количество попыток
	Attempts int `json:"attempts"`
	// Backoff — базовая задержка экспоненциального backoff
	Backoff time.Duration `json:"backoff"`
}

// Queue — постановка фоновых задач.
type Queue interface {
	// Enqueue ставит задачу в очередь.
	Enqueue(ctx context.Context, job Job) error
}

// BackoffDelay возвращает задержку перед попыткой attempt (с 1):
// base, 2*base, 4*base, ... — экспоненциальный backoff.
func BackoffDelay(base time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return base << (attempt - 1)
}
