// Точка входа godrive — сервис файлового хранилища.
// Загружает конфигурацию, применяет миграции и подключается к PostgreSQL,
// инициализирует MinIO и Redis, создаёт сервисный слой и API handlers,
// запускает фоновые задачи (reaper брошенных загрузок, topologymetrics),
// HTTP-сервер с JWT middleware и graceful shutdown.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/jackc/pgx/v5/stdlib"

	"github.com/bigkaa/godrive/internal/api/handlers"
	"github.com/bigkaa/godrive/internal/api/middleware"
	"github.com/bigkaa/godrive/internal/config"
	"github.com/bigkaa/godrive/internal/database"
	"github.com/bigkaa/godrive/internal/queue"
	"github.com/bigkaa/godrive/internal/repository"
	"github.com/bigkaa/godrive/internal/server"
	"github.com/bigkaa/godrive/internal/service"
	"github.com/bigkaa/godrive/internal/storage"
)

// jwksRefreshInterval — интервал фонового обновления ключей JWKS.
const jwksRefreshInterval = time.Hour

// jwtLeeway — допустимое отклонение времени при проверке exp/nbf.
const jwtLeeway = 30 * time.Second

func main() {
	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Настройка логирования
	logger := config.SetupLogger(cfg)
	logger.Info("godrive запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
	)

	if cfg.JWTJWKSURL == "" {
		logger.Warn("GD_JWT_JWKS_URL не задан, аутентификация по заголовку X-User-ID (режим разработки)")
	}

	// 3. Применение миграций БД
	logger.Info("Применение миграций БД...")
	if err := database.Migrate(cfg, logger); err != nil {
		logger.Error("Ошибка миграций БД", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Подключение к PostgreSQL (pgxpool)
	ctx := context.Background()
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка подключения к PostgreSQL", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	// 4.1 Адаптер pgxpool → *sql.DB для topologymetrics (connection pool mode).
	// Проверка здоровья PostgreSQL идёт через существующий пул соединений,
	// что позволяет обнаружить его исчерпание.
	pgDB := stdlib.OpenDBFromPool(pool)
	defer pgDB.Close()

	// 5. MinIO — блобы версий, миниатюры, превью
	gateway, err := storage.NewMinIOGateway(ctx,
		cfg.MinIOEndpoint, cfg.MinIOAccessKey, cfg.MinIOSecretKey, cfg.MinIOUseSSL,
		logger,
	)
	if err != nil {
		logger.Error("Ошибка подключения к MinIO", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 6. Redis — очередь фоновых задач (антивирус, миниатюры)
	jobs, err := queue.NewRedisQueue(ctx, cfg.RedisAddr(), cfg.RedisPassword, cfg.RedisDB, logger)
	if err != nil {
		logger.Error("Ошибка подключения к Redis", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer jobs.Close()

	// 7. Store и кэш метаданных
	store := repository.NewStore(pool)
	cache := service.NewMetadataCache(cfg.CacheSize, cfg.CacheTTL)

	// 8. Services
	aclSvc := service.NewAccessService(store, logger)
	treeSvc := service.NewTreeService(store, gateway, aclSvc, logger)
	filesSvc := service.NewFileService(
		store, gateway, jobs, cache, aclSvc,
		cfg.PresignTTL, cfg.ScanJobAttempts, cfg.ScanJobBackoff,
		logger,
	)

	// 9. Reaper брошенных загрузок
	reaperSvc := service.NewReaperService(store, gateway, cfg.UploadStaleAfter, cfg.ReaperInterval, logger)
	reaperSvc.Start(ctx)
	defer reaperSvc.Stop()

	// 10. topologymetrics — мониторинг зависимостей (PostgreSQL, MinIO, IdP)
	minioScheme := "http"
	if cfg.MinIOUseSSL {
		minioScheme = "https"
	}
	dephealthSvc, dephealthErr := service.NewDephealthService(
		cfg.InstanceID,
		cfg.DephealthGroup,
		pgDB,
		cfg.DatabaseDSN(),
		fmt.Sprintf("%s://%s", minioScheme, cfg.MinIOEndpoint),
		cfg.JWTJWKSURL,
		cfg.DephealthCheckInterval,
		logger,
	)
	if dephealthErr != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", dephealthErr.Error()),
		)
	} else {
		if startErr := dephealthSvc.Start(ctx); startErr != nil {
			logger.Warn("Ошибка запуска topologymetrics",
				slog.String("error", startErr.Error()),
			)
		} else {
			defer dephealthSvc.Stop()
			logger.Info("topologymetrics запущен",
				slog.String("group", cfg.DephealthGroup),
				slog.String("check_interval", cfg.DephealthCheckInterval.String()),
			)
		}
	}

	// 11. Readiness checkers: PostgreSQL и MinIO критичные,
	// Redis — деградация (очередь фоновых задач)
	pgChecker := database.NewReadinessChecker(pool)
	healthHandler := handlers.NewHealthHandler(pgChecker, gateway, jobs)

	// 12. API handlers
	apiHandler := handlers.NewAPIHandler(
		handlers.NewFoldersHandler(treeSvc),
		handlers.NewFilesHandler(filesSvc),
		handlers.NewSharesHandler(aclSvc),
		handlers.NewTrashHandler(treeSvc),
		healthHandler,
	)

	// 13. Middleware аутентификации
	var authMW func(http.Handler) http.Handler
	if cfg.JWTJWKSURL != "" {
		jwtAuth, jwtErr := middleware.NewJWTAuth(cfg.JWTJWKSURL, jwksRefreshInterval, jwtLeeway, logger)
		if jwtErr != nil {
			logger.Error("Ошибка создания JWT middleware", slog.String("error", jwtErr.Error()))
			os.Exit(1)
		}
		authMW = jwtAuth.Middleware()
		logger.Info("JWT middleware инициализирован", slog.String("jwks_url", cfg.JWTJWKSURL))
	} else {
		authMW = middleware.DevAuth()
	}

	// Callbacks воркеров минуют пользовательскую аутентификацию
	authMW = server.AuthWithExclusions(authMW, "/api/v1/callbacks/")

	// 14. HTTP-сервер
	srv := server.New(cfg, logger, apiHandler, authMW,
		middleware.MetricsMiddleware(),
		middleware.RequestLogger(logger),
	)

	if err := srv.Run(); err != nil {
		logger.Error("Ошибка HTTP-сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
