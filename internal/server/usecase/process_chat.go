package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"kakaotalk-chat-parser/internal/adapters/parser"
	"kakaotalk-chat-parser/internal/adapters/source"
	"kakaotalk-chat-parser/internal/cache"
	"kakaotalk-chat-parser/internal/domain"
	"kakaotalk-chat-parser/internal/pkg/config"
)

// ProcessChatUseCase инкапсулирует бизнес-логику построения Dataset
// из одного файла экспорта KakaoTalk.
type ProcessChatUseCase struct {
	cfg        *config.Config
	cacheStore *cache.CacheStore
}

// NewProcessChatUseCase создает новый экземпляр ProcessChatUseCase.
func NewProcessChatUseCase(cfg *config.Config, cacheStore *cache.CacheStore) *ProcessChatUseCase {
	return &ProcessChatUseCase{
		cfg:        cfg,
		cacheStore: cacheStore,
	}
}

// ProcessChat строит Dataset из сырого текста экспорта. Результат
// кэшируется по хешу содержимого и настройке бота: повторная загрузка
// того же файла не перезапускает разбор. Построение либо полностью
// успешно, либо полностью неуспешно — частичный Dataset не выдается.
func (uc *ProcessChatUseCase) ProcessChat(ctx context.Context, data []byte, botUsed bool) (*domain.Dataset, error) {
	key := cache.CalculateKey(data, botUsed)
	if cachedItem, found := uc.cacheStore.Get(key); found {
		slog.Info("Попадание в кэш для экспорта", "hash", key)
		return cachedItem.Dataset, nil
	}

	ds := source.NewMemorySource(data)
	raw, err := ds.Fetch()
	if err != nil {
		return nil, fmt.Errorf("не удалось извлечь данные экспорта: %w", err)
	}

	p := parser.NewKakaoParser(parser.Options{
		BotUsed:       botUsed,
		BotLabel:      uc.cfg.Analysis.BotLabel,
		ExcludedUsers: uc.cfg.Analysis.ExcludedUsers,
	})

	dataset, err := p.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("не удалось разобрать экспорт: %w", err)
	}
	slog.Info("Разобран экспорт",
		"title", dataset.Title,
		"record_count", len(dataset.Records),
		"active_users", len(dataset.ActiveUsers),
	)

	ttl := uc.cfg.CacheTTL()
	uc.cacheStore.Put(key, dataset, ttl)
	slog.Info("Результат кэширован", "hash", key, "ttl", ttl.String())

	return dataset, nil
}

// ProcessChatFile строит Dataset из файла на диске (оффлайн-режим CLI).
func (uc *ProcessChatUseCase) ProcessChatFile(ctx context.Context, filePath string, botUsed bool) (*domain.Dataset, error) {
	fs := source.NewFileSource(filePath)
	data, err := fs.Fetch()
	if err != nil {
		return nil, fmt.Errorf("не удалось прочитать файл %s: %w", filePath, err)
	}
	return uc.ProcessChat(ctx, data, botUsed)
}
