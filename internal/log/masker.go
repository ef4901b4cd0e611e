package log

import (
	"context"
	"log/slog"
	"regexp"
)

// MaskingHandler - обертка для slog.Handler, которая маскирует
// чувствительные данные в логах: токены ботов и превью сообщений чата.
type MaskingHandler struct {
	handler slog.Handler
}

// NewMaskingHandler создает новый обработчик с маскировкой.
func NewMaskingHandler(handler slog.Handler) *MaskingHandler {
	return &MaskingHandler{
		handler: handler,
	}
}

// маскируем токены в формате botID:token, где ID - числа, token - буквенно-цифровой
var botTokenRegex = regexp.MustCompile(`(\bbot\d+:[A-Za-z0-9_-]{35,})`)

// maskSecrets заменяет найденные токены на маску.
func maskSecrets(text string) string {
	return botTokenRegex.ReplaceAllString(text, "bot***:***masked-token***")
}

// Ключи атрибутов, значения которых содержат текст сообщений чата.
// Содержимое переписки в логи не попадает.
var chatContentKeys = map[string]bool{
	"message":         true,
	"content_preview": true,
	"chat_preview":    true,
}

// Enabled реализует интерфейс slog.Handler
func (h *MaskingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle реализует интерфейс slog.Handler
func (h *MaskingHandler) Handle(ctx context.Context, record slog.Record) error {
	// Собираем новую запись без атрибутов оригинала: в приемник уходят
	// только маскированные версии, исходные значения не копируются.
	r := slog.NewRecord(record.Time, record.Level, maskSecrets(record.Message), record.PC)

	record.Attrs(func(a slog.Attr) bool {
		r.AddAttrs(maskAttr(a))
		return true
	})

	return h.handler.Handle(ctx, r)
}

// WithAttrs реализует интерфейс slog.Handler
func (h *MaskingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	maskedAttrs := make([]slog.Attr, len(attrs))
	for i, attr := range attrs {
		maskedAttrs[i] = maskAttr(attr)
	}
	return &MaskingHandler{
		handler: h.handler.WithAttrs(maskedAttrs),
	}
}

// WithGroup реализует интерфейс slog.Handler
func (h *MaskingHandler) WithGroup(name string) slog.Handler {
	return &MaskingHandler{
		handler: h.handler.WithGroup(name),
	}
}

// maskAttr маскирует один атрибут: содержимое переписки скрывается
// целиком, остальные значения проходят маскировку токенов.
func maskAttr(a slog.Attr) slog.Attr {
	if chatContentKeys[a.Key] && a.Value.Kind() == slog.KindString {
		return slog.Attr{Key: a.Key, Value: slog.StringValue("***redacted***")}
	}
	return slog.Attr{Key: a.Key, Value: maskAttributeValue(a.Value)}
}

// maskAttributeValue рекурсивно маскирует значения атрибутов
func maskAttributeValue(value slog.Value) slog.Value {
	switch value.Kind() {
	case slog.KindString:
		return slog.StringValue(maskSecrets(value.String()))
	case slog.KindAny:
		// Ошибки преобразуем в строку и маскируем.
		if err, ok := value.Any().(error); ok {
			return slog.StringValue(maskSecrets(err.Error()))
		}
		return value
	case slog.KindGroup:
		group := value.Group()
		maskedGroup := make([]slog.Attr, len(group))
		for i, attr := range group {
			maskedGroup[i] = maskAttr(attr)
		}
		return slog.GroupValue(maskedGroup...)
	default:
		// Для других типов возвращаем оригинальное значение
		return value
	}
}

// NewMaskedLogger создает новый экземпляр slog.Logger с маскировкой.
func NewMaskedLogger(handler slog.Handler) *slog.Logger {
	return slog.New(NewMaskingHandler(handler))
}
