package parser

import (
	"fmt"
	"strings"
	"time"

	"kakaotalk-chat-parser/internal/domain"
)

// Фиксированный формат метки времени экспорта. Соединительные слова
// локали — литералы; во время выполнения формат не настраивается.
const timestampLayout = "2006년 1월 2일 PM 3:4"

// normalizeTimestamp заменяет маркеры 오전/오후 на канонические AM/PM
// и убирает запятую-разделитель.
func normalizeTimestamp(token string) string {
	token = strings.ReplaceAll(token, "오전", "AM")
	token = strings.ReplaceAll(token, "오후", "PM")
	token = strings.ReplaceAll(token, ",", "")
	return token
}

// parseTimestamp разбирает токен метки времени в абсолютное значение.
// При корректном разрезании сбой невозможен, но трактуется как жесткая
// ошибка (прерывание разбора записи), а не как молчаливое значение
// по умолчанию.
func parseTimestamp(token string) (time.Time, error) {
	t, err := time.Parse(timestampLayout, normalizeTimestamp(token))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", domain.ErrMalformedTimestamp, token)
	}
	return t, nil
}

// truncateToDay возвращает дату без временной части.
func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
