package usecase

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kakaotalk-chat-parser/internal/cache"
	"kakaotalk-chat-parser/internal/pkg/config"
)

const sampleExport = "모임 님과 카카오톡 대화 5\n" +
	"저장한 날짜 : 2023년 8월 15일 오후 10:30\n" +
	"2023년 8월 10일 오후 9:00, 김철수님이 들어왔습니다.\n" +
	"2023년 8월 10일 오후 9:05, 김철수 : 안녕하세요\n" +
	"2023년 8월 11일 오전 10:00, 이영희 : 반가워요\n"

func testConfig() *config.Config {
	botUsed := true
	return &config.Config{
		Processing: config.Processing{CacheTTLMinutes: 60},
		Analysis: config.Analysis{
			BotUsed:       &botUsed,
			BotLabel:      "방장봇",
			ExcludedUsers: []string{"", "채팅방 관리자"},
		},
	}
}

func TestProcessChat(t *testing.T) {
	t.Run("Успешный разбор экспорта", func(t *testing.T) {
		uc := NewProcessChatUseCase(testConfig(), cache.NewCacheStore())

		ds, err := uc.ProcessChat(context.Background(), []byte(sampleExport), true)
		require.NoError(t, err)
		require.NotNil(t, ds)

		assert.Equal(t, "모임", ds.Title)
		assert.Equal(t, 4, ds.ParticipantCount)
		assert.Len(t, ds.Records, 3)
		assert.Equal(t, 2, ds.ChatCount)
		assert.ElementsMatch(t, []string{"김철수", "이영희"}, ds.ActiveUsers)
	})

	t.Run("Повторная загрузка попадает в кэш", func(t *testing.T) {
		cs := cache.NewCacheStore()
		uc := NewProcessChatUseCase(testConfig(), cs)

		first, err := uc.ProcessChat(context.Background(), []byte(sampleExport), true)
		require.NoError(t, err)

		key := cache.CalculateKey([]byte(sampleExport), true)
		item, found := cs.Get(key)
		require.True(t, found)
		assert.Same(t, first, item.Dataset)

		second, err := uc.ProcessChat(context.Background(), []byte(sampleExport), true)
		require.NoError(t, err)
		assert.Same(t, first, second, "Повторный разбор должен вернуть кэшированный Dataset")
	})

	t.Run("Настройка бота различает записи кэша", func(t *testing.T) {
		cs := cache.NewCacheStore()
		uc := NewProcessChatUseCase(testConfig(), cs)

		withBot, err := uc.ProcessChat(context.Background(), []byte(sampleExport), true)
		require.NoError(t, err)
		withoutBot, err := uc.ProcessChat(context.Background(), []byte(sampleExport), false)
		require.NoError(t, err)

		assert.Equal(t, 4, withBot.ParticipantCount)
		assert.Equal(t, 5, withoutBot.ParticipantCount)
	})

	t.Run("Пустой вход возвращает ошибку", func(t *testing.T) {
		uc := NewProcessChatUseCase(testConfig(), cache.NewCacheStore())

		_, err := uc.ProcessChat(context.Background(), nil, true)
		assert.Error(t, err)
	})

	t.Run("Некорректный экспорт возвращает ошибку", func(t *testing.T) {
		uc := NewProcessChatUseCase(testConfig(), cache.NewCacheStore())

		_, err := uc.ProcessChat(context.Background(), []byte("это не экспорт"), true)
		assert.Error(t, err)
	})
}

func TestProcessChatFile(t *testing.T) {
	t.Run("Разбор файла с диска", func(t *testing.T) {
		path := writeTempExport(t, sampleExport)
		uc := NewProcessChatUseCase(testConfig(), cache.NewCacheStore())

		ds, err := uc.ProcessChatFile(context.Background(), path, true)
		require.NoError(t, err)
		assert.Equal(t, "모임", ds.Title)
	})

	t.Run("Несуществующий файл возвращает ошибку", func(t *testing.T) {
		uc := NewProcessChatUseCase(testConfig(), cache.NewCacheStore())

		_, err := uc.ProcessChatFile(context.Background(), "/no/such/file.txt", true)
		assert.Error(t, err)
	})
}

func writeTempExport(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "export.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}
