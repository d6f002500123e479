// health.go — обработчики health endpoints godrive.
// /health/live — liveness probe (процесс жив)
// /health/ready — readiness probe (PostgreSQL, MinIO, Redis)
// /metrics — Prometheus метрики
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bigkaa/godrive/internal/config"
)

// ReadinessChecker — интерфейс проверки готовности зависимости.
type ReadinessChecker interface {
	// CheckReady возвращает статус ("ok", "degraded", "fail") и сообщение.
	CheckReady() (status, message string)
}

// HealthHandler — обработчик health endpoints.
type HealthHandler struct {
	pgChecker    ReadinessChecker
	minioChecker ReadinessChecker
	redisChecker ReadinessChecker
	promHandler  http.Handler
}

// NewHealthHandler создаёт обработчик health endpoints.
// Каждый checker может быть nil — соответствующая проверка вернёт "fail".
func NewHealthHandler(pg, minio, redis ReadinessChecker) *HealthHandler {
	return &HealthHandler{
		pgChecker:    pg,
		minioChecker: minio,
		redisChecker: redis,
		promHandler:  promhttp.Handler(),
	}
}

// healthCheckResult — результат проверки одной зависимости.
type healthCheckResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// healthLiveResponse — ответ liveness probe.
type healthLiveResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
	Service   string `json:"service"`
}

// healthReadyResponse — ответ readiness probe.
type healthReadyResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
	Service   string `json:"service"`
	Checks    struct {
		PostgreSQL healthCheckResult `json:"postgresql"`
		MinIO      healthCheckResult `json:"minio"`
		Redis      healthCheckResult `json:"redis"`
	} `json:"checks"`
}

// HealthLive — liveness probe. Возвращает 200 если процесс жив.
func (h *HealthHandler) HealthLive(w http.ResponseWriter, _ *http.Request) {
	resp := healthLiveResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   config.Version,
		Service:   "godrive",
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}

// HealthReady — readiness probe. Проверяет PostgreSQL, MinIO и Redis.
// PostgreSQL и MinIO — критичные: их отказ даёт 503. Отказ Redis —
// degraded с 200: ядро работает, фоновые задачи доставит сверка.
func (h *HealthHandler) HealthReady(w http.ResponseWriter, _ *http.Request) {
	resp := healthReadyResponse{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   config.Version,
		Service:   "godrive",
	}

	resp.Checks.PostgreSQL = runCheck(h.pgChecker)
	resp.Checks.MinIO = runCheck(h.minioChecker)
	resp.Checks.Redis = runCheck(h.redisChecker)

	status := http.StatusOK
	switch {
	case resp.Checks.PostgreSQL.Status == "fail" || resp.Checks.MinIO.Status == "fail":
		resp.Status = "fail"
		status = http.StatusServiceUnavailable
	case resp.Checks.Redis.Status == "fail":
		resp.Status = "degraded"
	default:
		resp.Status = "ok"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

// GetMetrics — Prometheus метрики.
func (h *HealthHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.promHandler.ServeHTTP(w, r)
}

// runCheck выполняет проверку, выдерживая nil checker.
func runCheck(c ReadinessChecker) healthCheckResult {
	if c == nil {
		return healthCheckResult{Status: "fail", Message: "checker не инициализирован"}
	}
	status, msg := c.CheckReady()
	return healthCheckResult{Status: status, Message: msg}
}
