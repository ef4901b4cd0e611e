package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kakaotalk-chat-parser/internal/cache"
	"kakaotalk-chat-parser/internal/core/services"
	"kakaotalk-chat-parser/internal/domain"
	"kakaotalk-chat-parser/internal/pkg/config"
)

// mockProcessor подменяет вариант использования разбора в тестах сервера.
type mockProcessor struct {
	dataset *domain.Dataset
	err     error
}

func (m *mockProcessor) ProcessChat(ctx context.Context, data []byte, botUsed bool) (*domain.Dataset, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.dataset, nil
}

func testDataset() *domain.Dataset {
	msg := func(s string) *string { return &s }
	d := func(day int) time.Time { return time.Date(2023, 8, day, 0, 0, 0, 0, time.UTC) }
	return &domain.Dataset{
		Title:            "모임",
		ParticipantCount: 4,
		SavePoint:        time.Date(2023, 8, 15, 22, 30, 0, 0, time.UTC),
		StartPoint:       d(10),
		EndPoint:         d(15),
		ActiveUsers:      []string{"김철수", "이영희"},
		ChatCount:        3,
		LastChatDate:     d(15),
		Records: []domain.ChatRecord{
			{Timestamp: d(10), Date: d(10), Actor: "김철수", Event: domain.EventJoined, EventText: domain.EventTextJoined},
			{Timestamp: d(10), Date: d(10), Actor: "김철수", Message: msg("안녕하세요")},
			{Timestamp: d(14), Date: d(14), Actor: "이영희", Message: msg("반가워요")},
			{Timestamp: d(15), Date: d(15), Actor: "김철수", Message: msg("오늘도 안녕")},
		},
	}
}

func newTestServer(t *testing.T, processor ChatProcessor) (*Server, *TaskStore) {
	t.Helper()
	cfg := &config.Config{}
	cfg.Server.Host = "localhost"
	cfg.Server.Port = 8080
	botUsed := true
	cfg.Analysis.BotUsed = &botUsed

	taskStore := NewTaskStore()
	srv, err := New(cfg, processor, services.NewAnalyticsService(), taskStore, cache.NewCacheStore())
	require.NoError(t, err)
	return srv, taskStore
}

func multipartBody(t *testing.T, fieldValues map[string]string, fileContent string) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if fileContent != "" {
		fw, err := w.CreateFormFile("file", "export.txt")
		require.NoError(t, err)
		_, err = fw.Write([]byte(fileContent))
		require.NoError(t, err)
	}
	for k, v := range fieldValues {
		require.NoError(t, w.WriteField(k, v))
	}
	require.NoError(t, w.Close())
	return &body, w.FormDataContentType()
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, &mockProcessor{dataset: testDataset()})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.HTTPServer.Handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestHandleProcess(t *testing.T) {
	t.Run("Успешный запуск задачи", func(t *testing.T) {
		srv, taskStore := newTestServer(t, &mockProcessor{dataset: testDataset()})

		body, contentType := multipartBody(t, nil, "содержимое экспорта")
		req := httptest.NewRequest(http.MethodPost, "/api/v1/process", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()
		srv.HTTPServer.Handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusAccepted, rec.Code)

		var resp map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		taskID := resp["task_id"]
		require.NotEmpty(t, taskID)

		assert.Eventually(t, func() bool {
			task, err := taskStore.GetTask(taskID)
			return err == nil && task.Status == TaskStatusCompleted
		}, time.Second, 10*time.Millisecond)
	})

	t.Run("Ошибка разбора переводит задачу в failed", func(t *testing.T) {
		srv, taskStore := newTestServer(t, &mockProcessor{err: errors.New("разбор не удался")})

		body, contentType := multipartBody(t, nil, "битый экспорт")
		req := httptest.NewRequest(http.MethodPost, "/api/v1/process", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()
		srv.HTTPServer.Handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusAccepted, rec.Code)

		var resp map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

		assert.Eventually(t, func() bool {
			task, err := taskStore.GetTask(resp["task_id"])
			return err == nil && task.Status == TaskStatusFailed && task.ErrorMessage != ""
		}, time.Second, 10*time.Millisecond)
	})

	t.Run("Запрос без файла отклоняется", func(t *testing.T) {
		srv, _ := newTestServer(t, &mockProcessor{dataset: testDataset()})

		body, contentType := multipartBody(t, map[string]string{"bot_used": "true"}, "")
		req := httptest.NewRequest(http.MethodPost, "/api/v1/process", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()
		srv.HTTPServer.Handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("Недопустимое значение bot_used", func(t *testing.T) {
		srv, _ := newTestServer(t, &mockProcessor{dataset: testDataset()})

		body, contentType := multipartBody(t, map[string]string{"bot_used": "возможно"}, "содержимое")
		req := httptest.NewRequest(http.MethodPost, "/api/v1/process", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()
		srv.HTTPServer.Handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandleTaskStatus(t *testing.T) {
	srv, taskStore := newTestServer(t, &mockProcessor{dataset: testDataset()})

	t.Run("Неизвестная задача", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/tasks/unknown", nil)
		rec := httptest.NewRecorder()
		srv.HTTPServer.Handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("Известная задача", func(t *testing.T) {
		taskStore.CreateTask("task-1", time.Minute)
		req := httptest.NewRequest(http.MethodGet, "/api/v1/tasks/task-1", nil)
		rec := httptest.NewRecorder()
		srv.HTTPServer.Handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"status":"pending"`)
	})
}

func TestHandleTaskResult(t *testing.T) {
	srv, taskStore := newTestServer(t, &mockProcessor{dataset: testDataset()})
	taskStore.CreateTask("task-1", time.Minute)
	require.NoError(t, taskStore.UpdateTaskResult("task-1", testDataset()))

	t.Run("Пагинация записей", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/tasks/task-1/result?page=1&page_size=2", nil)
		rec := httptest.NewRecorder()
		srv.HTTPServer.Handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			Pagination struct {
				CurrentPage int `json:"current_page"`
				TotalItems  int `json:"total_items"`
				TotalPages  int `json:"total_pages"`
			} `json:"pagination"`
			Data []json.RawMessage `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, 1, resp.Pagination.CurrentPage)
		assert.Equal(t, 4, resp.Pagination.TotalItems)
		assert.Equal(t, 2, resp.Pagination.TotalPages)
		assert.Len(t, resp.Data, 2)
	})

	t.Run("Страница за пределами диапазона пуста", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/tasks/task-1/result?page=10&page_size=50", nil)
		rec := httptest.NewRecorder()
		srv.HTTPServer.Handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var resp struct {
			Data []json.RawMessage `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Empty(t, resp.Data)
	})

	t.Run("Незавершенная задача", func(t *testing.T) {
		taskStore.CreateTask("pending-task", time.Minute)
		req := httptest.NewRequest(http.MethodGet, "/api/v1/tasks/pending-task/result", nil)
		rec := httptest.NewRecorder()
		srv.HTTPServer.Handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestHandleSummary(t *testing.T) {
	srv, taskStore := newTestServer(t, &mockProcessor{dataset: testDataset()})
	taskStore.CreateTask("task-1", time.Minute)
	require.NoError(t, taskStore.UpdateTaskResult("task-1", testDataset()))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tasks/task-1/summary", nil)
	rec := httptest.NewRecorder()
	srv.HTTPServer.Handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "모임", resp["title"])
	assert.Equal(t, float64(4), resp["participant_count"])
	assert.Equal(t, float64(3), resp["chat_count"])
	assert.Equal(t, float64(4), resp["record_count"])
}

func TestHandleDoD(t *testing.T) {
	srv, taskStore := newTestServer(t, &mockProcessor{dataset: testDataset()})
	taskStore.CreateTask("task-1", time.Minute)
	require.NoError(t, taskStore.UpdateTaskResult("task-1", testDataset()))

	t.Run("Счетчик сообщений за день сохранения", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/tasks/task-1/dod?target=message", nil)
		rec := httptest.NewRecorder()
		srv.HTTPServer.Handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)

		var resp domain.DoDResult
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		// 15-го одно сообщение, 14-го одно: равные дни.
		assert.Equal(t, 1, resp.Count)
		assert.Equal(t, "0.00%", resp.Ratio)
	})

	t.Run("Неизвестный столбец", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/tasks/task-1/dod?target=color", nil)
		rec := httptest.NewRecorder()
		srv.HTTPServer.Handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("Недопустимое значение unique", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/tasks/task-1/dod?target=actor&unique=возможно", nil)
		rec := httptest.NewRecorder()
		srv.HTTPServer.Handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandleRank(t *testing.T) {
	srv, taskStore := newTestServer(t, &mockProcessor{dataset: testDataset()})
	taskStore.CreateTask("task-1", time.Minute)
	require.NoError(t, taskStore.UpdateTaskResult("task-1", testDataset()))

	t.Run("Рейтинг за весь диапазон по умолчанию", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/tasks/task-1/rank", nil)
		rec := httptest.NewRecorder()
		srv.HTTPServer.Handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			Rows []domain.RankRow `json:"rows"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Len(t, resp.Rows, 2)
		assert.Equal(t, 1, resp.Rows[0].Rank)
		assert.Equal(t, "김철수", resp.Rows[0].Actor)
		assert.Equal(t, 2, resp.Rows[0].Count)
	})

	t.Run("Явное окно дат", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/tasks/task-1/rank?min_date=2023-08-14&max_date=2023-08-14", nil)
		rec := httptest.NewRecorder()
		srv.HTTPServer.Handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			Rows []domain.RankRow `json:"rows"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Len(t, resp.Rows, 2)
		assert.Equal(t, "이영희", resp.Rows[0].Actor)
		assert.Equal(t, 1, resp.Rows[0].Count)
	})

	t.Run("Недопустимая дата", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/tasks/task-1/rank?min_date=вчера", nil)
		rec := httptest.NewRecorder()
		srv.HTTPServer.Handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("Окно с перепутанными границами", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/tasks/task-1/rank?min_date=2023-08-15&max_date=2023-08-10", nil)
		rec := httptest.NewRecorder()
		srv.HTTPServer.Handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandleDeathNote(t *testing.T) {
	srv, taskStore := newTestServer(t, &mockProcessor{dataset: testDataset()})
	taskStore.CreateTask("task-1", time.Minute)
	require.NoError(t, taskStore.UpdateTaskResult("task-1", testDataset()))

	t.Run("Отчет с порогом", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/tasks/task-1/death-note?max_count=1", nil)
		rec := httptest.NewRecorder()
		srv.HTTPServer.Handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			Rows []domain.DeathNoteRow `json:"rows"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		// Событие входа есть только у 김철수, но его счетчик выше порога.
		// 이영희 без события входа не попадает в отчет.
		assert.Empty(t, resp.Rows)
	})

	t.Run("Недопустимый ключ сортировки", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/tasks/task-1/death-note?sort_key=height", nil)
		rec := httptest.NewRecorder()
		srv.HTTPServer.Handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
