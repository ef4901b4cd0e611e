package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"kakaotalk-chat-parser/internal/cache"
	"kakaotalk-chat-parser/internal/domain"
	"kakaotalk-chat-parser/internal/pkg/config"
	"kakaotalk-chat-parser/internal/ports"
)

// Формат дат в параметрах запросов аналитики.
const queryDateLayout = "2006-01-02"

// ChatProcessor определяет интерфейс для варианта использования, который строит Dataset.
type ChatProcessor interface {
	ProcessChat(ctx context.Context, data []byte, botUsed bool) (*domain.Dataset, error)
}

// Server представляет HTTP-сервер
type Server struct {
	HTTPServer *http.Server
	cfg        *config.Config
	taskStore  *TaskStore
	cacheStore *cache.CacheStore
	processor  ChatProcessor
	analytics  ports.Analytics
}

// New создает новый экземпляр Server
func New(cfg *config.Config, processor ChatProcessor, analytics ports.Analytics, taskStore *TaskStore, cacheStore *cache.CacheStore) (*Server, error) {
	s := &Server{
		cfg:        cfg,
		taskStore:  taskStore,
		cacheStore: cacheStore,
		processor:  processor,
		analytics:  analytics,
	}

	chiRouter := chi.NewRouter()

	// Промежуточное ПО
	chiRouter.Use(middleware.Logger)
	chiRouter.Use(middleware.Recoverer)

	// Конечная точка для проверки работоспособности
	chiRouter.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{
			"status": "ok",
		})
	})

	// Маршруты API
	chiRouter.Route("/api/v1", func(r chi.Router) {
		// Конечная точка для запуска новой задачи разбора экспорта
		r.Post("/process", s.handleProcess)

		// Конечная точка для проверки статуса задачи
		r.Get("/tasks/{taskID}", s.handleTaskStatus)

		// Конечная точка для получения таблицы записей с пагинацией
		r.Get("/tasks/{taskID}/result", s.handleTaskResult)

		// Сводка собранного Dataset
		r.Get("/tasks/{taskID}/summary", s.handleSummary)

		// Аналитические запросы над Dataset
		r.Get("/tasks/{taskID}/dod", s.handleDoD)
		r.Get("/tasks/{taskID}/death-note", s.handleDeathNote)
		r.Get("/tasks/{taskID}/rank", s.handleRank)
	})

	s.HTTPServer = &http.Server{
		Addr:         cfg.Address(),
		Handler:      chiRouter,
		ReadTimeout:  config.DefaultReadTimeout,
		WriteTimeout: config.DefaultWriteTimeout,
		IdleTimeout:  config.DefaultIdleTimeout,
	}

	return s, nil
}

// handleProcess принимает файл экспорта и запускает задачу разбора.
func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	// Разбор мультипарт-формы
	err := r.ParseMultipartForm(config.DefaultMaxUploadSizeMB << 20)
	if err != nil {
		http.Error(w, "Не удалось разобрать форму", http.StatusBadRequest)
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "Не удалось получить файл из формы", http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "Не удалось прочитать загруженный файл", http.StatusInternalServerError)
		return
	}
	if len(data) == 0 {
		http.Error(w, "Файл пуст. Приложите текстовый экспорт KakaoTalk.", http.StatusBadRequest)
		return
	}

	// Настройка "бот используется": поле формы переопределяет конфигурацию.
	botUsed := *s.cfg.Analysis.BotUsed
	if v := r.FormValue("bot_used"); v != "" {
		parsed, parseErr := strconv.ParseBool(v)
		if parseErr != nil {
			http.Error(w, "Недопустимое значение bot_used", http.StatusBadRequest)
			return
		}
		botUsed = parsed
	}

	// Генерация уникального идентификатора задачи
	taskID := uuid.NewString()
	slog.Info("Получен файл экспорта", "task_id", taskID, "content_length", len(data), "bot_used", botUsed)

	// Создание задачи в хранилище
	s.taskStore.CreateTask(taskID, 24*time.Hour) // TTL для записи о задаче

	// Запуск обработки в горутине
	go func() {
		s.taskStore.UpdateTaskStatus(taskID, TaskStatusProcessing)

		// Контекст задачи с таймаутом из конфигурации.
		taskCtx := context.Background()
		if s.cfg.Processing.TaskTimeoutSeconds > 0 {
			var cancel context.CancelFunc
			taskCtx, cancel = context.WithTimeout(context.Background(), s.cfg.TaskTimeout())
			defer cancel()
		}

		dataset, err := s.processor.ProcessChat(taskCtx, data, botUsed)
		if err != nil {
			s.taskStore.UpdateTaskError(taskID, err.Error())
			return
		}

		s.taskStore.UpdateTaskResult(taskID, dataset)
	}()

	// Возврат идентификатора задачи
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"task_id": taskID})
}

// handleTaskStatus возвращает статус задачи.
func (s *Server) handleTaskStatus(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")

	task, err := s.taskStore.GetTask(taskID)
	if err != nil {
		http.Error(w, "Задача не найдена", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"task_id":       task.ID,
		"status":        task.Status,
		"error_message": task.ErrorMessage,
	})
}

// handleTaskResult возвращает таблицу записей завершенной задачи с пагинацией.
func (s *Server) handleTaskResult(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")

	dataset, err := s.taskStore.GetCompletedDataset(taskID)
	if err != nil {
		http.Error(w, "Задача не найдена или не завершена", http.StatusNotFound)
		return
	}

	page := queryInt(r, "page", 1)
	pageSize := queryInt(r, "page_size", 50)
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 50
	}

	totalItems := len(dataset.Records)
	totalPages := (totalItems + pageSize - 1) / pageSize // Округление вверх

	startIndex := (page - 1) * pageSize
	endIndex := startIndex + pageSize
	if startIndex > totalItems {
		startIndex = totalItems
	}
	if endIndex > totalItems {
		endIndex = totalItems
	}

	response := struct {
		Pagination struct {
			CurrentPage int `json:"current_page"`
			PageSize    int `json:"page_size"`
			TotalItems  int `json:"total_items"`
			TotalPages  int `json:"total_pages"`
		} `json:"pagination"`
		Data []domain.ChatRecord `json:"data"`
	}{}
	response.Pagination.CurrentPage = page
	response.Pagination.PageSize = pageSize
	response.Pagination.TotalItems = totalItems
	response.Pagination.TotalPages = totalPages
	response.Data = dataset.Records[startIndex:endIndex]

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}

// handleSummary возвращает сводку собранного Dataset.
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")

	dataset, err := s.taskStore.GetCompletedDataset(taskID)
	if err != nil {
		http.Error(w, "Задача не найдена или не завершена", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"title":             dataset.Title,
		"participant_count": dataset.ParticipantCount,
		"save_point":        dataset.SavePoint,
		"start_point":       dataset.StartPoint,
		"end_point":         dataset.EndPoint,
		"record_count":      len(dataset.Records),
		"chat_count":        dataset.ChatCount,
		"active_users":      dataset.ActiveUsers,
		"last_chat_date":    dataset.LastChatDate,
	})
}

// handleDoD выполняет day-over-day запрос над завершенной задачей.
func (s *Server) handleDoD(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")

	dataset, err := s.taskStore.GetCompletedDataset(taskID)
	if err != nil {
		http.Error(w, "Задача не найдена или не завершена", http.StatusNotFound)
		return
	}

	q := domain.DoDQuery{
		Column: domain.TargetColumn(r.URL.Query().Get("target")),
	}
	if values := r.URL.Query().Get("values"); values != "" {
		q.Values = strings.Split(values, ",")
	}
	if unique := r.URL.Query().Get("unique"); unique != "" {
		parsed, parseErr := strconv.ParseBool(unique)
		if parseErr != nil {
			http.Error(w, "Недопустимое значение unique", http.StatusBadRequest)
			return
		}
		q.Unique = parsed
	}

	result, err := s.analytics.DayOverDay(dataset, q)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(result)
}

// handleDeathNote строит отчет о неактивности за окно дат.
func (s *Server) handleDeathNote(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")

	dataset, err := s.taskStore.GetCompletedDataset(taskID)
	if err != nil {
		http.Error(w, "Задача не найдена или не завершена", http.StatusNotFound)
		return
	}

	minDate, maxDate, err := queryWindow(r, dataset)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	q := domain.DeathNoteQuery{
		MinDate:  minDate,
		MaxDate:  maxDate,
		MaxCount: queryInt(r, "max_count", 0),
		SortKey:  domain.DeathNoteSortKey(r.URL.Query().Get("sort_key")),
	}
	if ascending := r.URL.Query().Get("ascending"); ascending != "" {
		parsed, parseErr := strconv.ParseBool(ascending)
		if parseErr != nil {
			http.Error(w, "Недопустимое значение ascending", http.StatusBadRequest)
			return
		}
		q.Ascending = parsed
	}

	rows, err := s.analytics.DeathNote(dataset, q)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{"rows": rows})
}

// handleRank строит рейтинг активности за окно дат.
func (s *Server) handleRank(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")

	dataset, err := s.taskStore.GetCompletedDataset(taskID)
	if err != nil {
		http.Error(w, "Задача не найдена или не завершена", http.StatusNotFound)
		return
	}

	minDate, maxDate, err := queryWindow(r, dataset)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	rows, err := s.analytics.Rank(dataset, domain.RankQuery{
		MinDate:     minDate,
		MaxDate:     maxDate,
		FilterLabel: r.URL.Query().Get("filter"),
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{"rows": rows})
}

// queryWindow извлекает окно дат из параметров запроса. При отсутствии
// параметров окном служит весь диапазон набора данных.
func queryWindow(r *http.Request, dataset *domain.Dataset) (time.Time, time.Time, error) {
	minDate := dataset.StartPoint
	maxDate := dataset.EndPoint

	if v := r.URL.Query().Get("min_date"); v != "" {
		parsed, err := time.Parse(queryDateLayout, v)
		if err != nil {
			return time.Time{}, time.Time{}, errors.New("недопустимое значение min_date, ожидается YYYY-MM-DD")
		}
		minDate = parsed
	}
	if v := r.URL.Query().Get("max_date"); v != "" {
		parsed, err := time.Parse(queryDateLayout, v)
		if err != nil {
			return time.Time{}, time.Time{}, errors.New("недопустимое значение max_date, ожидается YYYY-MM-DD")
		}
		maxDate = parsed
	}
	if maxDate.Before(minDate) {
		return time.Time{}, time.Time{}, errors.New("max_date раньше min_date")
	}
	return minDate, maxDate, nil
}

// queryInt извлекает целочисленный параметр запроса со значением по умолчанию.
func queryInt(r *http.Request, name string, defaultValue int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return defaultValue
	}
	return parsed
}

// Start запускает фоновые тикеры очистки хранилищ.
func (s *Server) Start(ctx context.Context) {
	s.taskStore.StartCleanupTicker(ctx, config.DefaultCleanupInterval)
	s.cacheStore.StartCleanupTicker(ctx, config.DefaultCleanupInterval)
}

// ListenAndServe запускает HTTP-сервер
func (s *Server) ListenAndServe() error {
	return s.HTTPServer.ListenAndServe()
}

// Shutdown корректно завершает работу HTTP-сервера
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("Завершение работы HTTP-сервера")
	return s.HTTPServer.Shutdown(ctx)
}
