package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"kakaotalk-chat-parser/internal/adapters/exporter"
	"kakaotalk-chat-parser/internal/cache"
	"kakaotalk-chat-parser/internal/pkg/config"
	"kakaotalk-chat-parser/internal/server/usecase"
)

type TaskStatusResponse struct {
	TaskID       string `json:"task_id"`
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message,omitempty"`
}

func main() {
	var serverAddr string
	var local bool
	var botUsed bool
	var excelPath string
	flag.StringVar(&serverAddr, "server", "http://localhost:8080", "Server address")
	flag.BoolVar(&local, "local", false, "Разобрать файл локально, без сервера")
	flag.BoolVar(&botUsed, "bot-used", true, "Учитывать бота-модератора в чате")
	flag.StringVar(&excelPath, "excel", "", "Путь для выгрузки записей в xlsx (только с -local)")
	flag.Parse()

	filePaths := flag.Args()
	if len(filePaths) != 1 {
		log.Fatal("Exactly one file path is required. Usage: client [flags] <export.txt>")
	}
	filePath := filePaths[0]

	if local {
		runLocal(filePath, botUsed, excelPath)
		return
	}
	runRemote(serverAddr, filePath, botUsed)
}

// runLocal разбирает файл экспорта локально и печатает сводку в консоль.
func runLocal(filePath string, botUsed bool, excelPath string) {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Не удалось загрузить конфигурацию: %v", err)
	}

	uc := usecase.NewProcessChatUseCase(cfg, cache.NewCacheStore())

	ctx := context.Background()
	if cfg.Processing.TaskTimeoutSeconds > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.TaskTimeout())
		defer cancel()
	}

	ds, err := uc.ProcessChatFile(ctx, filePath, botUsed)
	if err != nil {
		log.Fatalf("Не удалось разобрать файл %s: %v", filePath, err)
	}

	if err := exporter.NewConsoleExporter().Export(ds); err != nil {
		log.Fatalf("Не удалось вывести результат: %v", err)
	}

	if excelPath != "" {
		if err := exporter.NewExcelExporter(excelPath).Export(ds); err != nil {
			log.Fatalf("Не удалось сохранить xlsx: %v", err)
		}
		fmt.Printf("Записи сохранены в %s\n", excelPath)
	}
}

// runRemote отправляет файл на сервер и опрашивает статус задачи.
func runRemote(serverAddr, filePath string, botUsed bool) {
	// Создание многочастной формы для загрузки файла
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	file, err := os.Open(filePath)
	if err != nil {
		log.Fatalf("Не удалось открыть файл %s: %v", filePath, err)
	}

	part, err := writer.CreateFormFile("file", filepath.Base(filePath))
	if err != nil {
		_ = file.Close()
		log.Fatalf("Не удалось создать файл формы для %s: %v", filePath, err)
	}

	if _, err = io.Copy(part, file); err != nil {
		_ = file.Close()
		log.Fatalf("Не удалось записать данные файла %s: %v", filePath, err)
	}
	if err := file.Close(); err != nil {
		log.Printf("Warning: failed to close file %s: %v", filePath, err)
	}

	if err := writer.WriteField("bot_used", strconv.FormatBool(botUsed)); err != nil {
		log.Fatalf("Не удалось записать поле формы: %v", err)
	}

	// Важно закрыть writer, чтобы записать завершающую границу
	if err := writer.Close(); err != nil {
		log.Fatalf("Не удалось закрыть multipart writer: %v", err)
	}

	// Отправка файла на сервер
	resp, err := http.Post(serverAddr+"/api/v1/process", writer.FormDataContentType(), &body)
	if err != nil {
		log.Fatalf("Не удалось отправить запрос: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		log.Fatalf("Сервер вернул статус: %d", resp.StatusCode)
	}

	// Разбор идентификатора задачи из ответа
	var taskResp map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&taskResp); err != nil {
		log.Fatalf("Не удалось декодировать ответ: %v", err)
	}
	taskID := taskResp["task_id"]
	if taskID == "" {
		log.Fatal("Идентификатор задачи не найден в ответе")
	}

	fmt.Printf("Задача создана с идентификатором: %s\n", taskID)

	// Опрос о статусе задачи
	for {
		time.Sleep(3 * time.Second) // Ожидание перед следующим опросом

		statusResp, err := fetchStatus(serverAddr, taskID)
		if err != nil {
			log.Fatalf("Не удалось опросить статус задачи: %v", err)
		}

		fmt.Printf("Статус задачи: %s\n", statusResp.Status)

		switch statusResp.Status {
		case "completed":
			fmt.Println("Задача выполнена успешно.")
			printEndpoint(serverAddr, taskID, "summary", "Сводка:")
			printEndpoint(serverAddr, taskID, "rank", "Рейтинг активности:")
			return
		case "failed":
			fmt.Printf("Задача не выполнена: %s\n", statusResp.ErrorMessage)
			os.Exit(1)
		case "pending", "processing":
			// Продолжение опроса
			continue
		default:
			log.Fatalf("Неизвестный статус задачи: %s", statusResp.Status)
		}
	}
}

func fetchStatus(serverAddr, taskID string) (*TaskStatusResponse, error) {
	resp, err := http.Get(fmt.Sprintf("%s/api/v1/tasks/%s", serverAddr, taskID))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("сервер вернул статус: %d", resp.StatusCode)
	}

	var statusResp TaskStatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&statusResp); err != nil {
		return nil, err
	}
	return &statusResp, nil
}

// printEndpoint получает и печатает JSON-ответ одного из отчетных эндпоинтов.
func printEndpoint(serverAddr, taskID, endpoint, title string) {
	resp, err := http.Get(fmt.Sprintf("%s/api/v1/tasks/%s/%s", serverAddr, taskID, endpoint))
	if err != nil {
		log.Fatalf("Не удалось получить %s: %v", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Fatalf("Сервер вернул статус для %s: %d", endpoint, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Fatalf("Не удалось прочитать тело ответа %s: %v", endpoint, err)
	}

	fmt.Println(title)
	fmt.Println(string(data))
}
