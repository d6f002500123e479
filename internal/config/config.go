// Пакет config — загрузка и валидация конфигурации godrive
// из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Config содержит все параметры конфигурации godrive.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string
	// Таймаут graceful shutdown HTTP-сервера
	ShutdownTimeout time.Duration
	// Таймаут чтения запроса HTTP-сервером
	HTTPReadTimeout time.Duration
	// Таймаут записи ответа HTTP-сервером
	HTTPWriteTimeout time.Duration
	// Таймаут простоя keep-alive соединения
	HTTPIdleTimeout time.Duration

	// --- PostgreSQL ---

	// Хост PostgreSQL
	DBHost string
	// Порт PostgreSQL
	DBPort int
	// Имя базы данных
	DBName string
	// Имя пользователя PostgreSQL
	DBUser string
	// Пароль пользователя PostgreSQL
	DBPassword string
	// Режим SSL: disable, require, verify-ca, verify-full
	DBSSLMode string
	// Максимальный размер пула подключений
	DBMaxConns int

	// --- MinIO (объектное хранилище) ---

	// Endpoint MinIO (host:port)
	MinIOEndpoint string
	// Access key MinIO
	MinIOAccessKey string
	// Secret key MinIO
	MinIOSecretKey string
	// Использовать TLS при подключении к MinIO
	MinIOUseSSL bool
	// TTL presigned URL для загрузки/скачивания
	PresignTTL time.Duration

	// --- Redis (очередь фоновых задач) ---

	// Хост Redis
	RedisHost string
	// Порт Redis
	RedisPort int
	// Пароль Redis
	RedisPassword string
	// Номер базы Redis
	RedisDB int

	// --- Фоновые задачи ---

	// Количество попыток антивирусной проверки
	ScanJobAttempts int
	// Базовая задержка экспоненциального backoff между попытками
	ScanJobBackoff time.Duration
	// Возраст, после которого незавершённая загрузка считается брошенной
	UploadStaleAfter time.Duration
	// Интервал запуска reaper брошенных загрузок
	ReaperInterval time.Duration

	// --- Кэш метаданных ---

	// Максимальное количество записей в LRU-кэше
	CacheSize int
	// TTL записи кэша
	CacheTTL time.Duration

	// --- JWT ---

	// URL JWKS endpoint для валидации подписи токенов.
	// Пустое значение отключает аутентификацию (режим разработки).
	JWTJWKSURL string

	// --- Topologymetrics ---

	// Имя вершины графа текущего экземпляра
	InstanceID string
	// Имя группы в метриках dephealth
	DephealthGroup string
	// Интервал проверки зависимостей
	DephealthCheckInterval time.Duration
}

// Load загружает конфигурацию из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// --- Сервер ---

	// GD_PORT — порт HTTP-сервера (по умолчанию 8080)
	cfg.Port, err = getEnvInt("GD_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("GD_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("GD_PORT: значение %d вне допустимого диапазона 1-65535", cfg.Port)
	}

	// GD_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("GD_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("GD_LOG_LEVEL: %w", err)
	}

	// GD_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("GD_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("GD_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	// GD_SHUTDOWN_TIMEOUT — таймаут graceful shutdown (по умолчанию 15s)
	cfg.ShutdownTimeout, err = getEnvDuration("GD_SHUTDOWN_TIMEOUT", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("GD_SHUTDOWN_TIMEOUT: %w", err)
	}

	// GD_HTTP_READ_TIMEOUT — таймаут чтения запроса (по умолчанию 5m,
	// загрузка файлов идёт через тело запроса)
	cfg.HTTPReadTimeout, err = getEnvDuration("GD_HTTP_READ_TIMEOUT", 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("GD_HTTP_READ_TIMEOUT: %w", err)
	}

	// GD_HTTP_WRITE_TIMEOUT — таймаут записи ответа (по умолчанию 1m)
	cfg.HTTPWriteTimeout, err = getEnvDuration("GD_HTTP_WRITE_TIMEOUT", time.Minute)
	if err != nil {
		return nil, fmt.Errorf("GD_HTTP_WRITE_TIMEOUT: %w", err)
	}

	// GD_HTTP_IDLE_TIMEOUT — таймаут keep-alive (по умолчанию 2m)
	cfg.HTTPIdleTimeout, err = getEnvDuration("GD_HTTP_IDLE_TIMEOUT", 2*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("GD_HTTP_IDLE_TIMEOUT: %w", err)
	}

	// --- PostgreSQL ---

	// GD_DB_HOST — обязательный
	cfg.DBHost, err = getEnvRequired("GD_DB_HOST")
	if err != nil {
		return nil, err
	}

	// GD_DB_PORT — порт PostgreSQL (по умолчанию 5432)
	cfg.DBPort, err = getEnvInt("GD_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("GD_DB_PORT: %w", err)
	}

	// GD_DB_NAME — обязательный
	cfg.DBName, err = getEnvRequired("GD_DB_NAME")
	if err != nil {
		return nil, err
	}

	// GD_DB_USER — обязательный
	cfg.DBUser, err = getEnvRequired("GD_DB_USER")
	if err != nil {
		return nil, err
	}

	// GD_DB_PASSWORD — обязательный
	cfg.DBPassword, err = getEnvRequired("GD_DB_PASSWORD")
	if err != nil {
		return nil, err
	}

	// GD_DB_SSL_MODE — режим SSL (по умолчанию disable)
	cfg.DBSSLMode = getEnvDefault("GD_DB_SSL_MODE", "disable")
	switch cfg.DBSSLMode {
	case "disable", "require", "verify-ca", "verify-full":
	default:
		return nil, fmt.Errorf("GD_DB_SSL_MODE: недопустимое значение %q", cfg.DBSSLMode)
	}

	// GD_DB_MAX_CONNS — размер пула подключений (по умолчанию 10)
	cfg.DBMaxConns, err = getEnvInt("GD_DB_MAX_CONNS", 10)
	if err != nil {
		return nil, fmt.Errorf("GD_DB_MAX_CONNS: %w", err)
	}
	if cfg.DBMaxConns < 1 {
		return nil, fmt.Errorf("GD_DB_MAX_CONNS: значение должно быть не меньше 1")
	}

	// --- MinIO ---

	// GD_MINIO_ENDPOINT — обязательный
	cfg.MinIOEndpoint, err = getEnvRequired("GD_MINIO_ENDPOINT")
	if err != nil {
		return nil, err
	}

	// GD_MINIO_ACCESS_KEY — обязательный
	cfg.MinIOAccessKey, err = getEnvRequired("GD_MINIO_ACCESS_KEY")
	if err != nil {
		return nil, err
	}

	// GD_MINIO_SECRET_KEY — обязательный
	cfg.MinIOSecretKey, err = getEnvRequired("GD_MINIO_SECRET_KEY")
	if err != nil {
		return nil, err
	}

	// GD_MINIO_USE_SSL — TLS для MinIO (по умолчанию false)
	cfg.MinIOUseSSL, err = getEnvBool("GD_MINIO_USE_SSL", false)
	if err != nil {
		return nil, fmt.Errorf("GD_MINIO_USE_SSL: %w", err)
	}

	// GD_PRESIGN_TTL — TTL presigned URL (по умолчанию 15m)
	cfg.PresignTTL, err = getEnvDuration("GD_PRESIGN_TTL", 15*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("GD_PRESIGN_TTL: %w", err)
	}

	// --- Redis ---

	// GD_REDIS_HOST — обязательный
	cfg.RedisHost, err = getEnvRequired("GD_REDIS_HOST")
	if err != nil {
		return nil, err
	}

	// GD_REDIS_PORT — порт Redis (по умолчанию 6379)
	cfg.RedisPort, err = getEnvInt("GD_REDIS_PORT", 6379)
	if err != nil {
		return nil, fmt.Errorf("GD_REDIS_PORT: %w", err)
	}

	// GD_REDIS_PASSWORD — пароль Redis (по умолчанию пустой)
	cfg.RedisPassword = getEnvDefault("GD_REDIS_PASSWORD", "")

	// GD_REDIS_DB — номер базы Redis (по умолчанию 0)
	cfg.RedisDB, err = getEnvInt("GD_REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("GD_REDIS_DB: %w", err)
	}

	// --- Фоновые задачи ---

	// GD_SCAN_JOB_ATTEMPTS — попытки антивирусной проверки (по умолчанию 3)
	cfg.ScanJobAttempts, err = getEnvInt("GD_SCAN_JOB_ATTEMPTS", 3)
	if err != nil {
		return nil, fmt.Errorf("GD_SCAN_JOB_ATTEMPTS: %w", err)
	}
	if cfg.ScanJobAttempts < 1 {
		return nil, fmt.Errorf("GD_SCAN_JOB_ATTEMPTS: значение %d должно быть >= 1", cfg.ScanJobAttempts)
	}

	// GD_SCAN_JOB_BACKOFF — базовая задержка backoff (по умолчанию 5s)
	cfg.ScanJobBackoff, err = getEnvDuration("GD_SCAN_JOB_BACKOFF", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("GD_SCAN_JOB_BACKOFF: %w", err)
	}

	// GD_UPLOAD_STALE_AFTER — TTL брошенной загрузки (по умолчанию 24h)
	cfg.UploadStaleAfter, err = getEnvDuration("GD_UPLOAD_STALE_AFTER", 24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("GD_UPLOAD_STALE_AFTER: %w", err)
	}

	// GD_REAPER_INTERVAL — интервал reaper (по умолчанию 1h)
	cfg.ReaperInterval, err = getEnvDuration("GD_REAPER_INTERVAL", time.Hour)
	if err != nil {
		return nil, fmt.Errorf("GD_REAPER_INTERVAL: %w", err)
	}

	// --- Кэш метаданных ---

	// GD_CACHE_SIZE — размер LRU-кэша (по умолчанию 1024)
	cfg.CacheSize, err = getEnvInt("GD_CACHE_SIZE", 1024)
	if err != nil {
		return nil, fmt.Errorf("GD_CACHE_SIZE: %w", err)
	}

	// GD_CACHE_TTL — TTL записи кэша (по умолчанию 5m)
	cfg.CacheTTL, err = getEnvDuration("GD_CACHE_TTL", 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("GD_CACHE_TTL: %w", err)
	}

	// --- JWT ---

	// GD_JWT_JWKS_URL — JWKS endpoint (пусто — auth отключён)
	cfg.JWTJWKSURL = getEnvDefault("GD_JWT_JWKS_URL", "")

	// --- Topologymetrics ---

	// GD_INSTANCE_ID — имя вершины графа (по умолчанию godrive-01)
	cfg.InstanceID = getEnvDefault("GD_INSTANCE_ID", "godrive-01")

	// GD_DEPHEALTH_GROUP — группа в метриках (по умолчанию godrive)
	cfg.DephealthGroup = getEnvDefault("GD_DEPHEALTH_GROUP", "godrive")

	// GD_DEPHEALTH_CHECK_INTERVAL — интервал проверки (по умолчанию 30s)
	cfg.DephealthCheckInterval, err = getEnvDuration("GD_DEPHEALTH_CHECK_INTERVAL", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("GD_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}

	return cfg, nil
}

// DatabaseDSN возвращает строку подключения к PostgreSQL.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
}

// RedisAddr возвращает адрес Redis.
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// SetupLogger создаёт slog.Logger согласно конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}

	var handler slog.Handler
	if cfg.LogFormat == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}

// --- Вспомогательные функции чтения переменных окружения ---

// getEnvDefault возвращает значение переменной или значение по умолчанию.
func getEnvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// getEnvRequired возвращает значение обязательной переменной или ошибку.
func getEnvRequired(key string) (string, error) {
	v := os.Getenv(key)
	if v == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return v, nil
}

// getEnvInt читает целочисленную переменную со значением по умолчанию.
func getEnvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число %q", v)
	}
	return n, nil
}

// getEnvBool читает булеву переменную со значением по умолчанию.
func getEnvBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("некорректное булево значение %q", v)
	}
	return b, nil
}

// getEnvDuration читает duration-переменную со значением по умолчанию.
func getEnvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность %q", v)
	}
	if d <= 0 {
		return 0, fmt.Errorf("длительность %q должна быть положительной", v)
	}
	return d, nil
}

// parseLogLevel преобразует строку в slog.Level.
func parseLogLevel(s string) (slog.Level, error) {
	switch s {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("недопустимый уровень логирования %q, допустимые: debug, info, warn, error", s)
	}
}
