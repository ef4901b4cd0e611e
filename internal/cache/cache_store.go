package cache

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	"kakaotalk-chat-parser/internal/domain"
)

// CacheItem представляет кэшированный результат разбора экспорта.
type CacheItem struct {
	Dataset   *domain.Dataset
	ExpiresAt time.Time
}

// CacheStore управляет хранением и извлечением кэшированных Dataset
// по хешу содержимого. Повторная загрузка идентичного экспорта с теми
// же настройками не перезапускает разбор.
type CacheStore struct {
	cache map[string]*CacheItem
	mutex sync.RWMutex
}

// NewCacheStore создает новый экземпляр CacheStore.
func NewCacheStore() *CacheStore {
	return &CacheStore{
		cache: make(map[string]*CacheItem),
	}
}

// Get извлекает кэшированный элемент по его ключу (хешу).
func (cs *CacheStore) Get(key string) (*CacheItem, bool) {
	cs.mutex.RLock()
	defer cs.mutex.RUnlock()

	item, exists := cs.cache[key]
	if !exists || time.Now().After(item.ExpiresAt) {
		// Элемент не существует или срок его действия истек
		return nil, false
	}

	return item, true
}

// Put сохраняет элемент в кэш с указанным сроком действия.
func (cs *CacheStore) Put(key string, ds *domain.Dataset, ttl time.Duration) {
	cs.mutex.Lock()
	defer cs.mutex.Unlock()

	cs.cache[key] = &CacheItem{
		Dataset:   ds,
		ExpiresAt: time.Now().Add(ttl),
	}
}

// CleanupExpired удаляет просроченные элементы из кэша.
func (cs *CacheStore) CleanupExpired() {
	cs.mutex.Lock()
	defer cs.mutex.Unlock()

	now := time.Now()
	for key, item := range cs.cache {
		if now.After(item.ExpiresAt) {
			delete(cs.cache, key)
		}
	}
}

// StartCleanupTicker запускает таймер для периодической очистки
// просроченных элементов.
func (cs *CacheStore) StartCleanupTicker(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				cs.CleanupExpired()
			}
		}
	}()
}

// CalculateKey вычисляет ключ кэша по содержимому экспорта и настройке
// бота: переключение настройки перестраивает Dataset целиком, поэтому
// она входит в ключ.
func CalculateKey(data []byte, botUsed bool) string {
	hasher := sha256.New()
	hasher.Write(data)
	fmt.Fprintf(hasher, "|bot_used=%t", botUsed)
	return fmt.Sprintf("%x", hasher.Sum(nil))
}
