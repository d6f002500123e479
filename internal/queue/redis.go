package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
)

// queueKey — Redis-ключ списка задач. Воркеры читают его через BRPOP.
const queueKey = "godrive:jobs"

// Prometheus-метрики очереди.
var (
	jobsEnqueuedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gd_jobs_enqueued_total",
			Help: "Общее количество поставленных фоновых задач",
		},
		[]string{"job"},
	)
)

// RedisQueue — реализация Queue поверх Redis-списка.
type RedisQueue struct {
	client *redis.Client
	logger *slog.Logger
}

// NewRedisQueue создаёт клиент Redis и проверяет подключение.
func NewRedisQueue(ctx context.Context, addr, password string, db int, logger *slog.Logger) (*RedisQueue, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ошибка подключения к Redis: %w", err)
	}

	return &RedisQueue{
		client: client,
		logger: logger.With(slog.String("component", "redis_queue")),
	}, nil
}

// Close закрывает подключение к Redis.
func (q *RedisQueue) Close() error {
	return q.client.Close()
}

// Enqueue сериализует задачу в JSON и кладёт в список очереди.
func (q *RedisQueue) Enqueue(ctx context.Context, job Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("ошибка сериализации задачи: %w", err)
	}

	if err := q.client.LPush(ctx, queueKey, data).Err(); err != nil {
		return fmt.Errorf("ошибка постановки задачи %s: %w", job.Name, err)
	}

	jobsEnqueuedTotal.WithLabelValues(job.Name).Inc()
	q.logger.Debug("Задача поставлена в очередь",
		slog.String("job", job.Name),
		slog.Int("attempts", job.Attempts),
	)
	return nil
}

// CheckReady проверяет доступность Redis для health endpoint.
func (q *RedisQueue) CheckReady() (status string, message string) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := q.client.Ping(ctx).Err(); err != nil {
		return "fail", fmt.Sprintf("Redis недоступен: %v", err)
	}
	return "ok", "подключение активно"
}
