// cache.go — кэш метаданных файлов.
//
// Горячие записи files читаются на каждый листинг и скачивание;
// expirable LRU с коротким TTL снимает эту нагрузку с PostgreSQL.
// Любая мутация файла инвалидирует его запись.
package service

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/godrive/internal/domain/model"
)

// Prometheus метрики кэша метаданных.
var (
	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gd_metadata_cache_hits_total",
		Help: "Количество попаданий в кэш метаданных файлов",
	})
	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gd_metadata_cache_misses_total",
		Help: "Количество промахов кэша метаданных файлов",
	})
)

// MetadataCache — LRU-кэш записей файлов с TTL.
type MetadataCache struct {
	lru *expirable.LRU[string, *model.File]
}

// NewMetadataCache создаёт кэш на size записей с временем жизни ttl.
func NewMetadataCache(size int, ttl time.Duration) *MetadataCache {
	return &MetadataCache{
		lru: expirable.NewLRU[string, *model.File](size, nil, ttl),
	}
}

// Get возвращает запись файла из кэша.
func (c *MetadataCache) Get(fileID string) (*model.File, bool) {
	f, ok := c.lru.Get(fileID)
	if ok {
		cacheHitsTotal.Inc()
	} else {
		cacheMissesTotal.Inc()
	}
	return f, ok
}

// Put кладёт запись файла в кэш.
func (c *MetadataCache) Put(f *model.File) {
	c.lru.Add(f.FileID, f)
}

// Invalidate удаляет запись файла из кэша. Вызывается после любой мутации.
func (c *MetadataCache) Invalidate(fileID string) {
	c.lru.Remove(fileID)
}
