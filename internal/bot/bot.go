package bot

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/mattn/go-runewidth"
	"github.com/xuri/excelize/v2"

	"kakaotalk-chat-parser/cmd/bot/config"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	startCommand     = "start"
	rankCommand      = "rank"
	deathNoteCommand = "dead"
)

// Максимальная длина текстового сообщения в Telegram.
const telegramMessageLimit = 4096

// Bot представляет собой основной объект Telegram-бота.
type Bot struct {
	api          *tgbotapi.BotAPI
	cfg          config.BotConfig
	serverClient *ServerClient
	taskStore    *TaskStore
	logger       *slog.Logger
}

// NewBot создает и инициализирует новый экземпляр бота.
func NewBot(cfg config.BotConfig, serverClient *ServerClient, taskStore *TaskStore, logger *slog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot api: %w", err)
	}

	logger.Info("Authorized on account", slog.String("username", api.Self.UserName))

	return &Bot{
		api:          api,
		cfg:          cfg,
		serverClient: serverClient,
		taskStore:    taskStore,
		logger:       logger,
	}, nil
}

// Start запускает основной цикл обработки обновлений от Telegram.
func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("Context cancelled, stopping bot...")
			b.api.StopReceivingUpdates()
			return
		case update := <-updates:
			if update.Message == nil {
				continue
			}
			b.handleMessage(ctx, update.Message)
		}
	}
}

// handleMessage обрабатывает входящее сообщение.
func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.IsCommand() {
		b.handleCommand(ctx, msg)
		return
	}

	if msg.Document != nil {
		b.handleDocument(ctx, msg)
		return
	}

	// Ответ на любые другие сообщения
	reply := tgbotapi.NewMessage(msg.Chat.ID, "Пожалуйста, отправьте мне текстовый файл с историей чата, выгруженный из KakaoTalk («Экспорт в текстовый файл»).")
	b.sendMessage(reply)
}

// handleCommand обрабатывает команды.
func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	switch msg.Command() {
	case startCommand:
		replyText := "Добро пожаловать! Я бот для анализа истории чатов KakaoTalk.\n\n" +
			"Отправьте мне текстовый экспорт чата, и я соберу статистику участия.\n\n" +
			"После обработки доступны команды:\n" +
			"• /rank — рейтинг активности (топ-20)\n" +
			"• /dead — участники без сообщений за период\n\n" +
			"Файлы не сохраняются на сервере и обрабатываются на лету."
		reply := tgbotapi.NewMessage(msg.Chat.ID, replyText)
		b.sendMessage(reply)
	case rankCommand:
		b.handleRankCommand(ctx, msg.Chat.ID)
	case deathNoteCommand:
		b.handleDeathNoteCommand(ctx, msg.Chat.ID)
	default:
		reply := tgbotapi.NewMessage(msg.Chat.ID, "Я не знаю такой команды.")
		b.sendMessage(reply)
	}
}

// handleDocument обрабатывает входящий документ (файл экспорта).
func (b *Bot) handleDocument(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	logger := b.logger.With(slog.Int64("chat_id", chatID))

	// 1. Проверяем, нет ли уже активной задачи.
	if _, ok := b.taskStore.Active(chatID); ok {
		logger.Warn("user tried to start a new task while another is active")
		reply := tgbotapi.NewMessage(chatID, "Пожалуйста, подождите завершения предыдущей задачи, прежде чем начинать новую.")
		b.sendMessage(reply)
		return
	}

	// 2. Скачиваем файл.
	fileURL, err := b.api.GetFileDirectURL(msg.Document.FileID)
	if err != nil {
		logger.Error("failed to get file direct url", slog.String("error", err.Error()))
		reply := tgbotapi.NewMessage(chatID, "Не удалось получить доступ к файлу. Попробуйте отправить его еще раз.")
		b.sendMessage(reply)
		return
	}

	resp, err := http.Get(fileURL)
	if err != nil {
		logger.Error("failed to download file", slog.String("error", err.Error()))
		reply := tgbotapi.NewMessage(chatID, "Не удалось скачать файл. Попробуйте отправить его еще раз.")
		b.sendMessage(reply)
		return
	}
	defer resp.Body.Close()

	// 3. Запускаем задачу на бэкенде.
	startResp, err := b.serverClient.StartTask(ctx, msg.Document.FileName, resp.Body)
	if err != nil {
		logger.Error("failed to start task on backend", slog.String("error", err.Error()))
		reply := tgbotapi.NewMessage(chatID, "Не удалось начать обработку файла на сервере. Пожалуйста, попробуйте позже.")
		b.sendMessage(reply)
		return
	}

	taskID := startResp.TaskID
	logger = logger.With(slog.String("task_id", taskID))
	logger.Info("task started on backend")

	// 4. Сохраняем task_id и запускаем опрос.
	b.taskStore.SetActive(chatID, taskID)
	go b.pollTaskStatus(context.Background(), chatID, taskID) // Новый контекст для фоновой задачи

	reply := tgbotapi.NewMessage(chatID, "✅ Файл получен и поставлен в очередь на обработку. Ожидайте результата.")
	b.sendMessage(reply)
}

func (b *Bot) sendMessage(msg tgbotapi.Chattable) {
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("failed to send message", slog.String("error", err.Error()))
	}
}

// pollTaskStatus асинхронно опрашивает статус задачи на бэкенд-сервере.
func (b *Bot) pollTaskStatus(ctx context.Context, chatID int64, taskID string) {
	logger := b.logger.With(slog.Int64("chat_id", chatID), slog.String("task_id", taskID))

	ticker := time.NewTicker(time.Duration(b.cfg.PollingIntervalSeconds) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Warn("polling cancelled by context")
			b.taskStore.ClearActive(chatID)
			return
		case <-ticker.C:
			logger.Debug("polling task status")
			status, err := b.serverClient.GetTaskStatus(ctx, taskID)
			if err != nil {
				logger.Error("failed to get task status", slog.String("error", err.Error()))
				continue
			}

			switch status.Status {
			case "completed":
				logger.Info("task completed")
				b.taskStore.Complete(chatID, taskID)
				b.processCompletedTask(ctx, chatID, taskID)
				return // Завершаем опрос
			case "failed":
				logger.Warn("task failed", slog.String("reason", status.ErrorMessage))
				b.taskStore.ClearActive(chatID)
				reply := tgbotapi.NewMessage(chatID, fmt.Sprintf("Произошла ошибка при обработке файла: %s", status.ErrorMessage))
				b.sendMessage(reply)
				return // Завершаем опрос
			case "pending", "processing":
				logger.Debug("task is in progress", slog.String("status", status.Status))
				// Продолжаем опрос
			default:
				logger.Warn("unknown task status", slog.String("status", status.Status))
			}
		}
	}
}

// processCompletedTask отправляет сводку и рейтинг по завершенной задаче.
func (b *Bot) processCompletedTask(ctx context.Context, chatID int64, taskID string) {
	logger := b.logger.With(slog.Int64("chat_id", chatID), slog.String("task_id", taskID))
	logger.Info("fetching results for completed task")

	summary, err := b.serverClient.GetSummary(ctx, taskID)
	if err != nil {
		logger.Error("failed to fetch summary", slog.String("error", err.Error()))
		reply := tgbotapi.NewMessage(chatID, "Не удалось получить результаты для выполненной задачи. Пожалуйста, попробуйте позже.")
		b.sendMessage(reply)
		return
	}

	b.sendSummary(ctx, chatID, taskID, summary)

	rows, err := b.serverClient.GetRank(ctx, taskID, summary.StartPoint, summary.EndPoint)
	if err != nil {
		logger.Error("failed to fetch rank", slog.String("error", err.Error()))
		return
	}
	b.sendRankResult(chatID, summary, rows)
}

// handleRankCommand строит рейтинг по последней завершенной задаче чата.
func (b *Bot) handleRankCommand(ctx context.Context, chatID int64) {
	taskID, ok := b.taskStore.Completed(chatID)
	if !ok {
		b.sendMessage(tgbotapi.NewMessage(chatID, "Сначала отправьте файл экспорта чата."))
		return
	}

	summary, err := b.serverClient.GetSummary(ctx, taskID)
	if err != nil {
		b.logger.Error("failed to fetch summary", slog.String("error", err.Error()))
		b.sendMessage(tgbotapi.NewMessage(chatID, "Не удалось получить результаты. Отправьте файл еще раз."))
		return
	}

	rows, err := b.serverClient.GetRank(ctx, taskID, summary.StartPoint, summary.EndPoint)
	if err != nil {
		b.logger.Error("failed to fetch rank", slog.String("error", err.Error()))
		b.sendMessage(tgbotapi.NewMessage(chatID, "Не удалось построить рейтинг. Попробуйте позже."))
		return
	}
	b.sendRankResult(chatID, summary, rows)
}

// handleDeathNoteCommand строит отчет о неактивности по последней
// завершенной задаче чата.
func (b *Bot) handleDeathNoteCommand(ctx context.Context, chatID int64) {
	taskID, ok := b.taskStore.Completed(chatID)
	if !ok {
		b.sendMessage(tgbotapi.NewMessage(chatID, "Сначала отправьте файл экспорта чата."))
		return
	}

	summary, err := b.serverClient.GetSummary(ctx, taskID)
	if err != nil {
		b.logger.Error("failed to fetch summary", slog.String("error", err.Error()))
		b.sendMessage(tgbotapi.NewMessage(chatID, "Не удалось получить результаты. Отправьте файл еще раз."))
		return
	}

	rows, err := b.serverClient.GetDeathNote(ctx, taskID, summary.StartPoint, summary.EndPoint, b.cfg.DeathNoteMaxCount)
	if err != nil {
		b.logger.Error("failed to fetch death note", slog.String("error", err.Error()))
		b.sendMessage(tgbotapi.NewMessage(chatID, "Не удалось построить отчет. Попробуйте позже."))
		return
	}

	if len(rows) == 0 {
		b.sendMessage(tgbotapi.NewMessage(chatID, "💀 Неактивных участников не найдено."))
		return
	}

	headers := []string{"유저", "대화 빈도", "마지막 대화"}
	widths := []int{b.cfg.Render.User, b.cfg.Render.Count, b.cfg.Render.Last}
	table := make([][]string, 0, len(rows))
	for _, row := range rows {
		table = append(table, []string{row.Actor, strconv.Itoa(row.Count), row.LastActiveLabel})
	}

	caption := fmt.Sprintf("💀 Death Note: %d участников с числом сообщений не больше %d.\n", len(rows), b.cfg.DeathNoteMaxCount)
	b.sendTable(chatID, caption, headers, widths, table)
}

// sendSummary отправляет сводку Dataset и метрики "к предыдущему дню".
func (b *Bot) sendSummary(ctx context.Context, chatID int64, taskID string, summary *SummaryDTO) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "📊 %s\n\n", summary.Title)
	fmt.Fprintf(&sb, "인원: %d 명\n", summary.ParticipantCount)
	fmt.Fprintf(&sb, "누적 대화: %d 회\n", summary.ChatCount)
	fmt.Fprintf(&sb, "활동 유저: %d 명\n", len(summary.ActiveUsers))
	fmt.Fprintf(&sb, "데이터 추출 날짜: %s\n", summary.SavePoint.Format("2006-01-02 15:04"))

	// Метрики "к предыдущему дню" — как на домашней вкладке дашборда:
	// сообщения, участники, вход, выход.
	metrics := []struct {
		label  string
		target string
		values []string
		unique bool
	}{
		{label: "대화", target: "message"},
		{label: "참여자", target: "actor", unique: true},
		{label: "유입", target: "event", values: []string{"들어왔습니다."}},
		{label: "이탈", target: "event", values: []string{"나갔습니다.", "내보냈습니다."}},
	}

	sb.WriteString("\n전일 대비:\n")
	for _, m := range metrics {
		dod, err := b.serverClient.GetDoD(ctx, taskID, m.target, m.values, m.unique)
		if err != nil {
			b.logger.Error("failed to fetch dod metric", slog.String("metric", m.label), slog.String("error", err.Error()))
			continue
		}
		fmt.Fprintf(&sb, "• %s: %d (%s)\n", m.label, dod.Count, dod.Ratio)
	}

	b.sendMessage(tgbotapi.NewMessage(chatID, sb.String()))
}

// sendRankResult отправляет рейтинг текстом либо xlsx-файлом, если
// активных участников больше порога.
func (b *Bot) sendRankResult(chatID int64, summary *SummaryDTO, rows []RankRowDTO) {
	if len(rows) == 0 {
		b.sendMessage(tgbotapi.NewMessage(chatID, "Не найдено ни одного активного участника."))
		return
	}

	if len(summary.ActiveUsers) >= b.cfg.ExcelThreshold {
		b.logger.Info("active user count is over threshold, sending excel file")
		b.sendExcelResult(chatID, summary, rows)
		return
	}

	headers := []string{"순위", "유저", "대화 빈도", "마지막 대화"}
	widths := []int{b.cfg.Render.Rank, b.cfg.Render.User, b.cfg.Render.Count, b.cfg.Render.Last}
	table := make([][]string, 0, len(rows))
	for _, row := range rows {
		table = append(table, []string{
			strconv.Itoa(row.Rank), row.Actor, strconv.Itoa(row.Count), row.LastActiveLabel,
		})
	}

	caption := fmt.Sprintf("🏆 Рейтинг активности (топ-%d):\n", len(rows))
	b.sendTable(chatID, caption, headers, widths, table)
}

// sendTable форматирует и отправляет таблицу в виде текстового сообщения HTML.
func (b *Bot) sendTable(chatID int64, caption string, headers []string, widths []int, rows [][]string) {
	var sb strings.Builder
	sb.WriteString(caption)
	sb.WriteString("<pre><code>") // HTML для надежного форматирования

	// Заголовок и разделитель
	headerLine := "|"
	separatorLine := "|"
	for i, h := range headers {
		headerLine += " " + h + strings.Repeat(" ", max(widths[i]-runewidth.StringWidth(h), 0)) + " |"
		separatorLine += strings.Repeat("-", widths[i]+2) + "|"
	}
	sb.WriteString(headerLine + "\n")
	sb.WriteString(separatorLine + "\n")

	for _, row := range rows {
		// Очищаем и экранируем значения, разбиваем длинные на несколько строк.
		cells := make([][]string, len(row))
		maxLines := 1
		for i, value := range row {
			value = strings.ToValidUTF8(value, "")
			value = html.EscapeString(value)
			value = strings.ReplaceAll(value, "\n", " ")
			cells[i] = wrapString(value, widths[i])
			if len(cells[i]) > maxLines {
				maxLines = len(cells[i])
			}
		}

		for line := 0; line < maxLines; line++ {
			out := "|"
			for i := range cells {
				part := ""
				if line < len(cells[i]) {
					part = cells[i][line]
				}
				out += " " + part + generatePadding(part, widths[i]) + " |"
			}
			sb.WriteString(out + "\n")
		}
	}
	sb.WriteString("</code></pre>")

	text := sb.String()
	reply := tgbotapi.NewMessage(chatID, text)
	reply.ParseMode = tgbotapi.ModeHTML

	// Проверка на максимальную длину сообщения в Telegram
	if len(text) > telegramMessageLimit {
		b.logger.Warn("сгенерированный текст слишком длинный, отправка в виде файла", "length", len(text))
		b.sendResultAsTextFile(chatID, headers, rows)
		return
	}

	if _, err := b.api.Send(reply); err != nil {
		b.logger.Error("не удалось отправить текстовый результат", "error", err.Error())
	}
}

// generatePadding вычисляет отступ для строки с учетом поправки на CJK-символы.
func generatePadding(s string, colWidth int) string {
	paddingNeeded := colWidth - runewidth.StringWidth(s)

	// Прагматическая поправка: если в строке есть CJK-символы, добавляем
	// один пробел для компенсации ошибки рендеринга в некоторых клиентах.
	hasCJK := false
	for _, r := range s {
		if unicode.Is(unicode.Han, r) || unicode.Is(unicode.Hangul, r) || unicode.Is(unicode.Hiragana, r) || unicode.Is(unicode.Katakana, r) {
			hasCJK = true
			break
		}
	}

	if hasCJK && paddingNeeded >= 0 {
		paddingNeeded++
	}

	if paddingNeeded > 0 {
		return strings.Repeat(" ", paddingNeeded)
	}
	return ""
}

// wrapString разбивает строку по ширине колонки с учетом runewidth.
// Перенос предпочтительно по границам слов; слово длиннее ширины
// разрывается посередине.
func wrapString(s string, width int) []string {
	if width <= 0 || runewidth.StringWidth(s) <= width {
		return []string{s}
	}

	var lines []string
	words := strings.Fields(s)

	if len(words) == 0 { // Строка только из пробелов либо пустая
		return splitByWidth(s, width)
	}

	var currentLine strings.Builder
	for _, word := range words {
		wordWidth := runewidth.StringWidth(word)

		// Слово длиннее всей ширины колонки
		if wordWidth > width {
			if currentLine.Len() > 0 {
				lines = append(lines, currentLine.String())
				currentLine.Reset()
			}
			lines = append(lines, splitByWidth(word, width)...)
			continue
		}

		// Если слово не помещается на текущей строке, начинаем новую
		lineLen := runewidth.StringWidth(currentLine.String())
		if lineLen > 0 && lineLen+1+wordWidth > width {
			lines = append(lines, currentLine.String())
			currentLine.Reset()
		}

		if currentLine.Len() > 0 {
			currentLine.WriteString(" ")
		}
		currentLine.WriteString(word)
	}

	if currentLine.Len() > 0 {
		lines = append(lines, currentLine.String())
	}

	return lines
}

// splitByWidth нарезает строку на фрагменты заданной экранной ширины.
func splitByWidth(s string, width int) []string {
	var lines []string
	runes := []rune(s)
	for len(runes) > 0 {
		i := 0
		currentWidth := 0
		for i < len(runes) {
			rw := runewidth.RuneWidth(runes[i])
			if currentWidth+rw > width {
				break
			}
			currentWidth += rw
			i++
		}
		lines = append(lines, string(runes[:i]))
		runes = runes[i:]
	}
	if len(lines) == 0 {
		return []string{""}
	}
	return lines
}

func (b *Bot) sendExcelResult(chatID int64, summary *SummaryDTO, rows []RankRowDTO) {
	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			b.logger.Error("failed to close excel file", slog.String("error", err.Error()))
		}
	}()

	sheetName := "랭킹"
	index, _ := f.NewSheet(sheetName)
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	// Заголовки
	headers := []string{"순위", "유저", "대화 빈도", "마지막 대화"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetName, cell, h)
	}

	// Данные
	for i, row := range rows {
		r := i + 2
		f.SetCellValue(sheetName, fmt.Sprintf("A%d", r), row.Rank)
		f.SetCellValue(sheetName, fmt.Sprintf("B%d", r), row.Actor)
		f.SetCellValue(sheetName, fmt.Sprintf("C%d", r), row.Count)
		f.SetCellValue(sheetName, fmt.Sprintf("D%d", r), row.LastActiveLabel)
	}

	// Запись в буфер
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		b.logger.Error("failed to write excel to buffer", slog.String("error", err.Error()))
		b.sendMessage(tgbotapi.NewMessage(chatID, "Не удалось сгенерировать Excel-файл."))
		return
	}

	// Отправка файла
	fileName := fmt.Sprintf("chat_rank_%s.xlsx", time.Now().Format("2006-01-02_15-04-05"))
	fileBytes := tgbotapi.FileBytes{
		Name:  fileName,
		Bytes: buf.Bytes(),
	}

	msg := tgbotapi.NewDocument(chatID, fileBytes)
	msg.Caption = fmt.Sprintf("Анализ завершен: %s, %d активных участников.", summary.Title, len(summary.ActiveUsers))
	b.sendMessage(msg)
}

// sendResultAsTextFile отправляет таблицу в виде CSV-файла, когда
// текстовое сообщение не помещается в лимит Telegram.
func (b *Bot) sendResultAsTextFile(chatID int64, headers []string, rows [][]string) {
	var buf bytes.Buffer
	buf.WriteString(strings.Join(headers, ","))
	buf.WriteString("\n")

	for _, row := range rows {
		record := make([]string, 0, len(row))
		for _, value := range row {
			record = append(record, fmt.Sprintf("\"%s\"", strings.ReplaceAll(value, "\"", "\"\"")))
		}
		buf.WriteString(strings.Join(record, ","))
		buf.WriteString("\n")
	}

	fileName := fmt.Sprintf("chat_report_%s.txt", time.Now().Format("2006-01-02_15-04-05"))
	fileBytes := tgbotapi.FileBytes{
		Name:  fileName,
		Bytes: buf.Bytes(),
	}

	msg := tgbotapi.NewDocument(chatID, fileBytes)
	msg.Caption = "Отчет слишком большой для одного сообщения, поэтому он прикреплен в виде файла."
	b.sendMessage(msg)
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
