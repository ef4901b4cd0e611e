package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kakaotalk-chat-parser/internal/domain"
)

func TestCacheStore(t *testing.T) {
	t.Run("Создание нового хранилища кэша", func(t *testing.T) {
		cs := NewCacheStore()
		assert.NotNil(t, cs)
		assert.NotNil(t, cs.cache)
	})

	t.Run("Запись и чтение из кэша", func(t *testing.T) {
		cs := NewCacheStore()
		key := "test_key"
		ds := &domain.Dataset{Title: "모임", ChatCount: 42}
		ttl := 1 * time.Minute

		cs.Put(key, ds, ttl)

		item, found := cs.Get(key)
		require.True(t, found)
		require.NotNil(t, item)
		assert.Equal(t, ds, item.Dataset)
		assert.WithinDuration(t, time.Now().Add(ttl), item.ExpiresAt, 1*time.Second)
	})

	t.Run("Чтение несуществующего ключа", func(t *testing.T) {
		cs := NewCacheStore()
		_, found := cs.Get("non_existent_key")
		assert.False(t, found)
	})

	t.Run("Чтение просроченного ключа", func(t *testing.T) {
		cs := NewCacheStore()
		cs.Put("expired_key", &domain.Dataset{}, -1*time.Second)

		_, found := cs.Get("expired_key")
		assert.False(t, found)
	})

	t.Run("Очистка просроченных ключей", func(t *testing.T) {
		cs := NewCacheStore()
		cs.Put("expired", &domain.Dataset{}, -1*time.Minute)
		cs.Put("valid", &domain.Dataset{}, 1*time.Minute)

		cs.CleanupExpired()

		_, foundExpired := cs.Get("expired")
		assert.False(t, foundExpired, "Просроченный элемент должен быть удален")

		_, foundValid := cs.Get("valid")
		assert.True(t, foundValid, "Действительный элемент не должен быть удален")
	})
}

func TestStartCleanupTicker(t *testing.T) {
	cs := NewCacheStore()
	cs.Put("expired", &domain.Dataset{}, 50*time.Millisecond)
	cs.Put("valid", &domain.Dataset{}, 1*time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cs.StartCleanupTicker(ctx, 100*time.Millisecond)

	assert.Eventually(t, func() bool {
		cs.mutex.RLock()
		defer cs.mutex.RUnlock()
		_, exists := cs.cache["expired"]
		return !exists
	}, time.Second, 20*time.Millisecond, "Тикер должен удалить просроченный элемент")

	_, foundValid := cs.Get("valid")
	assert.True(t, foundValid)
}

func TestCalculateKey(t *testing.T) {
	data := []byte("экспорт чата")

	t.Run("Детерминированный ключ", func(t *testing.T) {
		assert.Equal(t, CalculateKey(data, true), CalculateKey(data, true))
	})

	t.Run("Настройка бота входит в ключ", func(t *testing.T) {
		assert.NotEqual(t, CalculateKey(data, true), CalculateKey(data, false))
	})

	t.Run("Разное содержимое дает разные ключи", func(t *testing.T) {
		assert.NotEqual(t, CalculateKey(data, true), CalculateKey([]byte("другой экспорт"), true))
	})
}
