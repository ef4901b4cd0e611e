package parser

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"kakaotalk-chat-parser/internal/domain"
	"kakaotalk-chat-parser/internal/ports"
)

const (
	// Суффикс первой строки заголовка экспорта.
	titleSuffix = " 님과 카카오톡 대화"
	// Метка системного аккаунта администратора чата.
	systemAdminLabel = "채팅방 관리자"
	// Метка бот-аккаунта по умолчанию.
	defaultBotLabel = "방장봇"
)

// Options настраивают разбор одного экспорта.
type Options struct {
	// BotUsed — используется ли в чате бот-администратор. Если да,
	// метка бота исключается из активных участников, а заявленное
	// число участников уменьшается на единицу.
	BotUsed bool
	// BotLabel — имя бот-аккаунта. По умолчанию 방장봇.
	BotLabel string
	// ExcludedUsers — метки, исключаемые из активных участников
	// независимо от истории событий. По умолчанию пустое имя и
	// системный аккаунт администратора.
	ExcludedUsers []string
}

// KakaoParser реализует интерфейс Parser для текстового экспорта KakaoTalk.
type KakaoParser struct {
	opts Options
}

// NewKakaoParser создает новый экземпляр KakaoParser.
func NewKakaoParser(opts Options) ports.Parser {
	if opts.BotLabel == "" {
		opts.BotLabel = defaultBotLabel
	}
	if opts.ExcludedUsers == nil {
		opts.ExcludedUsers = []string{"", systemAdminLabel}
	}
	return &KakaoParser{opts: opts}
}

// Parse преобразует сырой текст экспорта в собранный Dataset.
// Построение либо полностью успешно, либо полностью неуспешно.
func (p *KakaoParser) Parse(data []byte) (*domain.Dataset, error) {
	text := strings.TrimPrefix(string(data), "\uFEFF")
	if strings.TrimSpace(text) == "" {
		return nil, domain.ErrEmptyInput
	}

	// Две строки заголовка, дальше — поток записей.
	line1, rest, ok := strings.Cut(text, "\n")
	if !ok {
		return nil, fmt.Errorf("%w: missing save point line", domain.ErrMalformedHeader)
	}
	line2, body, ok := strings.Cut(rest, "\n")
	if !ok {
		line2, body = rest, ""
	}

	title, declared, err := parseTitleLine(strings.TrimSpace(line1))
	if err != nil {
		return nil, err
	}
	savePoint, err := parseSavePointLine(strings.TrimSpace(line2))
	if err != nil {
		return nil, err
	}

	timestamps, bodies := splitRecords(body)
	records := make([]domain.ChatRecord, 0, len(timestamps))
	for i := range timestamps {
		ts, err := parseTimestamp(timestamps[i])
		if err != nil {
			// Фатально для всего прохода: хронологический порядок
			// требует, чтобы каждая метка времени разобралась.
			return nil, err
		}
		actor, event, eventText, message := classifyBody(bodies[i])
		records = append(records, domain.ChatRecord{
			Timestamp: ts,
			Date:      truncateToDay(ts),
			Actor:     actor,
			Event:     event,
			EventText: eventText,
			Message:   message,
		})
	}

	participants := declared
	if p.opts.BotUsed {
		participants--
	}

	ds := &domain.Dataset{
		Title:            title,
		ParticipantCount: participants,
		SavePoint:        savePoint,
		Records:          records,
		ActiveUsers:      p.activeUsers(records),
	}
	for i := range records {
		if records[i].HasMessage() {
			ds.ChatCount++
		}
	}
	if len(records) > 0 {
		ds.StartPoint = records[0].Date
		ds.EndPoint = records[len(records)-1].Date
		ds.LastChatDate = ds.EndPoint
	}

	return ds, nil
}

// parseTitleLine разбирает первую строку заголовка:
// `<заголовок> 님과 카카오톡 대화<разделитель><число участников>`.
func parseTitleLine(line string) (string, int, error) {
	s := strings.ReplaceAll(line, titleSuffix, "")
	idx := strings.LastIndex(s, " ")
	if idx < 0 {
		return "", 0, fmt.Errorf("%w: title line %q", domain.ErrMalformedHeader, line)
	}
	count, err := strconv.Atoi(s[idx+1:])
	if err != nil {
		return "", 0, fmt.Errorf("%w: participant count in %q", domain.ErrMalformedHeader, line)
	}
	return s[:idx], count, nil
}

// parseSavePointLine разбирает вторую строку заголовка:
// `<метка> : <метка времени в фиксированной грамматике>`.
func parseSavePointLine(line string) (time.Time, error) {
	_, value, ok := strings.Cut(line, " : ")
	if !ok {
		return time.Time{}, fmt.Errorf("%w: save point line %q", domain.ErrMalformedHeader, line)
	}
	parsed, err := parseTimestamp(value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: save point %q", domain.ErrMalformedHeader, value)
	}
	return parsed, nil
}

// activeUsers выводит канонический набор активных участников: все
// различимые имена минус те, чье хронологически последнее событие
// входа/выхода было выходом или удалением, минус исключенные метки.
// Записи уже в порядке источника, поэтому перезапись по ходу прохода
// дает устойчивое разрешение ничьих по позиции в источнике.
func (p *KakaoParser) activeUsers(records []domain.ChatRecord) []string {
	seen := make(map[string]bool)
	lastIO := make(map[string]domain.EventType)
	var order []string

	for i := range records {
		name := records[i].Actor
		if !seen[name] {
			seen[name] = true
			order = append(order, name)
		}
		switch records[i].Event {
		case domain.EventJoined, domain.EventLeft, domain.EventRemoved:
			lastIO[name] = records[i].Event
		}
	}

	excluded := make(map[string]bool, len(p.opts.ExcludedUsers)+1)
	for _, name := range p.opts.ExcludedUsers {
		excluded[name] = true
	}
	if p.opts.BotUsed {
		excluded[p.opts.BotLabel] = true
	}

	var active []string
	for _, name := range order {
		if excluded[name] {
			continue
		}
		if e, ok := lastIO[name]; ok && (e == domain.EventLeft || e == domain.EventRemoved) {
			continue
		}
		active = append(active, name)
	}
	return active
}
