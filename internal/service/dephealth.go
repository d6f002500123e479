// dephealth.go — интеграция с topologymetrics SDK для мониторинга зависимостей.
//
// godrive мониторит:
//   - PostgreSQL — SQL checker через существующий pgxpool (connection pool mode, critical)
//   - MinIO — HTTP checker к liveness endpoint (critical)
//   - JWKS endpoint — HTTP checker (если аутентификация включена)
//
// Connection pool mode предпочтителен: отражает реальную способность
// сервиса работать с базой и обнаруживает исчерпание пула соединений.
// Redis в графе не отображается: у него нет HTTP endpoint-а, а
// недоступность очереди не фатальна — задачи доставит сверка.
//
// Метрики доступны на /metrics вместе с остальными Prometheus-метриками:
//   - app_dependency_health — состояние зависимости (1 = ok, 0 = fail)
//   - app_dependency_latency_seconds — задержка проверки
//   - app_dependency_status — категория статуса
//   - app_dependency_status_detail — детальный статус
package service

import (
	"context"
	"database/sql"
	"log/slog"
	"net/url"
	"time"

	"github.com/BigKAA/topologymetrics/sdk-go/dephealth"
	_ "github.com/BigKAA/topologymetrics/sdk-go/dephealth/checks/httpcheck" // HTTP checker для MinIO и JWKS
	"github.com/BigKAA/topologymetrics/sdk-go/dephealth/checks/pgcheck"     // PostgreSQL checker (pool mode)
	"github.com/prometheus/client_golang/prometheus"
)

// DephealthService — сервис мониторинга зависимостей через topologymetrics.
type DephealthService struct {
	dh     *dephealth.DepHealth
	logger *slog.Logger
}

// NewDephealthService создаёт сервис мониторинга зависимостей.
// Метрики регистрируются в глобальном Prometheus registry.
//
// Параметры:
//   - instanceID — имя вершины графа текущего экземпляра (GD_INSTANCE_ID)
//   - group — имя группы в метриках (GD_DEPHEALTH_GROUP)
//   - db — *sql.DB, полученный из pgxpool через stdlib.OpenDBFromPool()
//   - pgConnURL — URL подключения к PostgreSQL (для лейблов, не для подключения)
//   - minioHealthURL — liveness endpoint MinIO
//   - jwksURL — JWKS endpoint; пустая строка — проверка не добавляется
//   - checkInterval — интервал проверки (GD_DEPHEALTH_CHECK_INTERVAL)
func NewDephealthService(
	instanceID string,
	group string,
	db *sql.DB,
	pgConnURL string,
	minioHealthURL string,
	jwksURL string,
	checkInterval time.Duration,
	logger *slog.Logger,
) (*DephealthService, error) {
	return newDephealthService(instanceID, group, db, pgConnURL, minioHealthURL, jwksURL, checkInterval, logger)
}

// NewDephealthServiceWithRegisterer создаёт сервис с указанным Prometheus registerer.
// Используется в тестах для изоляции метрик.
func NewDephealthServiceWithRegisterer(
	instanceID string,
	group string,
	db *sql.DB,
	pgConnURL string,
	minioHealthURL string,
	jwksURL string,
	checkInterval time.Duration,
	logger *slog.Logger,
	registerer prometheus.Registerer,
) (*DephealthService, error) {
	return newDephealthService(instanceID, group, db, pgConnURL, minioHealthURL, jwksURL, checkInterval, logger,
		dephealth.WithRegisterer(registerer))
}

// newDephealthService — внутренний конструктор.
func newDephealthService(
	instanceID string,
	group string,
	db *sql.DB,
	pgConnURL string,
	minioHealthURL string,
	jwksURL string,
	checkInterval time.Duration,
	logger *slog.Logger,
	extraOpts ...dephealth.Option,
) (*DephealthService, error) {
	opts := []dephealth.Option{
		dephealth.WithLogger(logger),
		// PostgreSQL — connection pool mode через существующий pgxpool.
		dephealth.AddDependency("postgresql", dephealth.TypePostgres,
			pgcheck.New(pgcheck.WithDB(db)),
			dephealth.FromURL(pgConnURL),
			dephealth.CheckInterval(checkInterval),
			dephealth.Critical(true),
		),
		// MinIO — liveness endpoint /minio/health/live.
		dephealth.HTTP("minio",
			dephealth.FromURL(minioHealthURL),
			dephealth.WithHTTPHealthPath("/minio/health/live"),
			dephealth.CheckInterval(checkInterval),
			dephealth.Critical(true),
			dephealth.WithHTTPTLSSkipVerify(true), // Dev-среда: self-signed сертификаты
		),
	}
	if jwksURL != "" {
		// По умолчанию dephealth проверяет /health — используем path
		// самого JWKS URL: это подтверждает доступность ключей.
		jwksHealthPath := "/health"
		if parsed, parseErr := url.Parse(jwksURL); parseErr == nil && parsed.Path != "" {
			jwksHealthPath = parsed.Path
		}
		opts = append(opts,
			dephealth.HTTP("jwks",
				dephealth.FromURL(jwksURL),
				dephealth.WithHTTPHealthPath(jwksHealthPath),
				dephealth.CheckInterval(checkInterval),
				dephealth.Critical(true),
				dephealth.WithHTTPTLSSkipVerify(true),
			),
		)
	}
	opts = append(opts, extraOpts...)

	dh, err := dephealth.New(instanceID, group, opts...)
	if err != nil {
		return nil, err
	}

	return &DephealthService{
		dh:     dh,
		logger: logger.With(slog.String("component", "dephealth")),
	}, nil
}

// Start запускает периодическую проверку зависимостей.
func (ds *DephealthService) Start(ctx context.Context) error {
	ds.logger.Info("Мониторинг зависимостей запущен (PostgreSQL + MinIO)")
	return ds.dh.Start(ctx)
}

// Stop останавливает мониторинг зависимостей.
func (ds *DephealthService) Stop() {
	ds.dh.Stop()
	ds.logger.Info("Мониторинг зависимостей остановлен")
}

// Health возвращает текущее состояние зависимостей.
// Ключ — имя зависимости, значение — true если ok.
func (ds *DephealthService) Health() map[string]bool {
	return ds.dh.Health()
}
