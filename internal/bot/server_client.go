package bot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// ServerClient — клиент для взаимодействия с API бэкенд-сервера.
type ServerClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewServerClient создает новый экземпляр ServerClient.
func NewServerClient(baseURL string, timeout time.Duration) *ServerClient {
	return &ServerClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout, // Общий таймаут для запросов
		},
	}
}

// API-ответы
type StartTaskResponse struct {
	TaskID string `json:"task_id"`
}

type TaskStatusResponse struct {
	TaskID       string `json:"task_id"`
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// SummaryDTO представляет сводку Dataset из ответа сервера.
type SummaryDTO struct {
	Title            string    `json:"title"`
	ParticipantCount int       `json:"participant_count"`
	SavePoint        time.Time `json:"save_point"`
	StartPoint       time.Time `json:"start_point"`
	EndPoint         time.Time `json:"end_point"`
	RecordCount      int       `json:"record_count"`
	ChatCount        int       `json:"chat_count"`
	ActiveUsers      []string  `json:"active_users"`
}

// DoDDTO представляет результат day-over-day запроса.
type DoDDTO struct {
	Count int    `json:"count"`
	Ratio string `json:"ratio"`
}

// RankRowDTO представляет одну строку рейтинга из ответа сервера.
type RankRowDTO struct {
	Rank            int    `json:"rank"`
	Actor           string `json:"actor"`
	Count           int    `json:"count"`
	LastActiveLabel string `json:"last_active_label"`
}

type rankResponse struct {
	Rows []RankRowDTO `json:"rows"`
}

// DeathNoteRowDTO представляет одну строку отчета о неактивности.
type DeathNoteRowDTO struct {
	Actor           string `json:"actor"`
	Count           int    `json:"count"`
	LastActiveLabel string `json:"last_active_label"`
}

type deathNoteResponse struct {
	Rows []DeathNoteRowDTO `json:"rows"`
}

// StartTask отправляет файл экспорта на сервер для начала обработки.
func (c *ServerClient) StartTask(ctx context.Context, fileName string, content io.Reader) (*StartTaskResponse, error) {
	var b bytes.Buffer
	w := multipart.NewWriter(&b)

	fw, err := w.CreateFormFile("file", fileName)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file for %s: %w", fileName, err)
	}
	if _, err = io.Copy(fw, content); err != nil {
		return nil, fmt.Errorf("failed to copy file content for %s: %w", fileName, err)
	}

	w.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/process", &b)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var result StartTaskResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &result, nil
}

// GetTaskStatus запрашивает статус задачи.
func (c *ServerClient) GetTaskStatus(ctx context.Context, taskID string) (*TaskStatusResponse, error) {
	var result TaskStatusResponse
	if err := c.getJSON(ctx, "/api/v1/tasks/"+taskID, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetSummary запрашивает сводку завершенной задачи.
func (c *ServerClient) GetSummary(ctx context.Context, taskID string) (*SummaryDTO, error) {
	var result SummaryDTO
	if err := c.getJSON(ctx, "/api/v1/tasks/"+taskID+"/summary", &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetDoD запрашивает day-over-day метрику завершенной задачи.
func (c *ServerClient) GetDoD(ctx context.Context, taskID, target string, values []string, unique bool) (*DoDDTO, error) {
	params := url.Values{}
	params.Set("target", target)
	if len(values) > 0 {
		params.Set("values", joinValues(values))
	}
	if unique {
		params.Set("unique", strconv.FormatBool(unique))
	}

	var result DoDDTO
	if err := c.getJSON(ctx, "/api/v1/tasks/"+taskID+"/dod?"+params.Encode(), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetRank запрашивает рейтинг активности завершенной задачи за окно дат.
func (c *ServerClient) GetRank(ctx context.Context, taskID string, minDate, maxDate time.Time) ([]RankRowDTO, error) {
	params := url.Values{}
	params.Set("min_date", minDate.Format("2006-01-02"))
	params.Set("max_date", maxDate.Format("2006-01-02"))

	var result rankResponse
	if err := c.getJSON(ctx, "/api/v1/tasks/"+taskID+"/rank?"+params.Encode(), &result); err != nil {
		return nil, err
	}
	return result.Rows, nil
}

// GetDeathNote запрашивает отчет о неактивности завершенной задачи.
func (c *ServerClient) GetDeathNote(ctx context.Context, taskID string, minDate, maxDate time.Time, maxCount int) ([]DeathNoteRowDTO, error) {
	params := url.Values{}
	params.Set("min_date", minDate.Format("2006-01-02"))
	params.Set("max_date", maxDate.Format("2006-01-02"))
	params.Set("max_count", strconv.Itoa(maxCount))

	var result deathNoteResponse
	if err := c.getJSON(ctx, "/api/v1/tasks/"+taskID+"/death-note?"+params.Encode(), &result); err != nil {
		return nil, err
	}
	return result.Rows, nil
}

// getJSON выполняет GET-запрос и декодирует JSON-ответ.
func (c *ServerClient) getJSON(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func joinValues(values []string) string {
	result := ""
	for i, v := range values {
		if i > 0 {
			result += ","
		}
		result += v
	}
	return result
}
