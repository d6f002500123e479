// reaper.go — фоновая очистка зависших загрузок.
//
// Запись файла в статусе uploading без последующего CompleteUpload
// остаётся висеть навсегда: клиент получил presigned URL и исчез.
// Reaper периодически находит такие записи старше порога и удаляет их
// вместе с возможным блобом-сиротой в объектном хранилище. Квота не
// затрагивается: она списывается только при фиксации загрузки.
//
// Запускается как горутина с периодическим тикером (GD_REAPER_INTERVAL).
package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/godrive/internal/domain/model"
	"github.com/bigkaa/godrive/internal/repository"
	"github.com/bigkaa/godrive/internal/storage"
)

// Prometheus метрики reaper-а.
var (
	// reaperRunsTotal — количество запусков reaper-а.
	reaperRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gd_reaper_runs_total",
		Help: "Общее количество запусков reaper-а",
	})

	// reaperReapedTotal — количество удалённых зависших загрузок.
	reaperReapedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gd_reaper_reaped_total",
		Help: "Общее количество удалённых зависших загрузок",
	})

	// reaperDurationSeconds — длительность выполнения цикла reaper-а.
	reaperDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "gd_reaper_duration_seconds",
		Help:    "Длительность выполнения цикла reaper-а в секундах",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
	})
)

// reaperBatchSize — максимум записей за один проход.
const reaperBatchSize = 100

// ReaperResult — результат одного запуска reaper-а.
type ReaperResult struct {
	// ReapedCount — количество удалённых записей
	ReapedCount int
	// Errors — количество ошибок при обработке
	Errors int
	// Duration — длительность выполнения
	Duration time.Duration
}

// ReaperService — фоновая очистка зависших загрузок.
type ReaperService struct {
	store      repository.Store
	gateway    storage.Gateway
	staleAfter time.Duration
	interval   time.Duration
	logger     *slog.Logger

	mu     sync.Mutex // защита от параллельного запуска RunOnce
	cancel context.CancelFunc
}

// NewReaperService создаёт reaper.
func NewReaperService(
	store repository.Store,
	gateway storage.Gateway,
	staleAfter time.Duration,
	interval time.Duration,
	logger *slog.Logger,
) *ReaperService {
	return &ReaperService{
		store:      store,
		gateway:    gateway,
		staleAfter: staleAfter,
		interval:   interval,
		logger:     logger.With(slog.String("component", "reaper")),
	}
}

// Start запускает фоновую горутину reaper-а.
// Вызывается один раз при старте приложения.
func (rs *ReaperService) Start(ctx context.Context) {
	rCtx, cancel := context.WithCancel(ctx)
	rs.cancel = cancel

	go rs.run(rCtx)

	rs.logger.Info("reaper запущен",
		slog.String("interval", rs.interval.String()),
		slog.String("stale_after", rs.staleAfter.String()),
	)
}

// Stop останавливает фоновый процесс.
func (rs *ReaperService) Stop() {
	if rs.cancel != nil {
		rs.cancel()
	}
	rs.logger.Info("reaper остановлен")
}

// run — основной цикл фоновой горутины.
func (rs *ReaperService) run(ctx context.Context) {
	ticker := time.NewTicker(rs.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rs.RunOnce(ctx)
		}
	}
}

// RunOnce выполняет один проход очистки.
// Потокобезопасен: использует mutex для защиты от параллельного запуска.
func (rs *ReaperService) RunOnce(ctx context.Context) *ReaperResult {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	start := time.Now()
	reaperRunsTotal.Inc()
	result := &ReaperResult{}

	cutoff := time.Now().UTC().Add(-rs.staleAfter)
	stale, err := rs.store.Files().ListStaleUploading(ctx, cutoff, reaperBatchSize)
	if err != nil {
		rs.logger.Error("ошибка поиска зависших загрузок", slog.String("error", err.Error()))
		result.Errors++
		result.Duration = time.Since(start)
		return result
	}

	for _, f := range stale {
		err := rs.store.RunInTx(ctx, func(r repository.Repos) error {
			// Перечитываем под блокировкой: загрузка могла завершиться
			// между выборкой и удалением.
			cur, err := r.Files().GetByIDForUpdate(ctx, f.FileID)
			if err != nil {
				return err
			}
			if cur.Status != model.FileStatusUploading {
				return nil
			}
			return r.Files().Delete(ctx, f.FileID)
		})
		if err != nil {
			rs.logger.Error("ошибка удаления зависшей загрузки",
				slog.String("file_id", f.FileID),
				slog.String("error", err.Error()),
			)
			result.Errors++
			continue
		}

		// Блоб мог успеть записаться по presigned URL — подчищаем.
		if err := rs.gateway.Delete(ctx, storage.BucketFiles, versionKey(f.FileID, 1)); err != nil {
			rs.logger.Warn("не удалось удалить блоб зависшей загрузки",
				slog.String("file_id", f.FileID),
				slog.String("error", err.Error()),
			)
		}

		result.ReapedCount++
	}

	reaperReapedTotal.Add(float64(result.ReapedCount))
	result.Duration = time.Since(start)
	reaperDurationSeconds.Observe(result.Duration.Seconds())

	if result.ReapedCount > 0 || result.Errors > 0 {
		rs.logger.Info("проход reaper-а завершён",
			slog.Int("reaped", result.ReapedCount),
			slog.Int("errors", result.Errors),
			slog.String("duration", result.Duration.String()),
		)
	}
	return result
}
