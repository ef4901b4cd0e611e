package parser

import (
	"regexp"
	"strings"

	"kakaotalk-chat-parser/internal/domain"
)

// rewriteRule нормализует нерегулярную формулировку системного
// уведомления к общей грамматике "субъект + фраза события".
type rewriteRule struct {
	pattern *regexp.Regexp
	rewrite func(groups []string) string
}

// Правила применяются в фиксированном порядке, каждое — к первому
// совпадению в теле записи.
var rewriteRules = []rewriteRule{
	{
		// Уведомление о переименовании: `<старое>이 ...님에서 <새>님으로 ...`.
		// Субъектом итоговой записи становится новое имя; текст события
		// фиксирует переход. Кавычки вокруг нового имени в экспорте
		// не входят в имя субъекта.
		pattern: regexp.MustCompile(`(.+?)이 (?s:.+?)님에서 "?(.+?)"?님으로 (?s:.+)`),
		rewrite: func(g []string) string {
			return g[2] + "님이 " + g[1] + "이 되었습니다."
		},
	},
	{
		// Уведомление модерации: администратор скрыл сообщение.
		// Перезапись возвращает разделитель " : ", ожидаемый следующим шагом.
		pattern: regexp.MustCompile(`(채팅방 관리자)가 (메시지를 가렸습니다.)`),
		rewrite: func(g []string) string {
			return g[1] + "님이 " + g[2] + " : "
		},
	},
}

// Поле имени с фразой события: `<имя>님이<фраза>습니다.` либо
// `<имя>님을<фраза>습니다.` — закрытый набор корейских глагольных
// окончаний вместо отдельного маркера типа записи.
var nameEventPattern = regexp.MustCompile(`(.+)님[이을](.+?습니다.)`)

// applyRewrites прогоняет тело записи через упорядоченный список правил.
func applyRewrites(body string) string {
	for _, rule := range rewriteRules {
		m := rule.pattern.FindStringSubmatchIndex(body)
		if m == nil {
			continue
		}
		groups := make([]string, 0, len(m)/2)
		for i := 0; i < len(m); i += 2 {
			if m[i] < 0 {
				groups = append(groups, "")
				continue
			}
			groups = append(groups, body[m[i]:m[i+1]])
		}
		body = body[:m[0]] + rule.rewrite(groups) + body[m[1]:]
	}
	return body
}

// classifyBody разбирает один фрагмент тела записи: отделяет имя
// субъекта от текста сообщения и классифицирует событие.
//
// Известное приближение: новая формулировка системного сообщения, не
// попадающая под правила перезаписи и общий шаблон `님이/님을 ...습니다.`,
// классифицируется резервной ветвью как обычное сообщение от
// "пользователя", чье имя содержит весь текст уведомления.
func classifyBody(body string) (actor string, event domain.EventType, eventText string, message *string) {
	body = applyRewrites(body)

	// Не более одного разреза: текст сообщения может сам содержать " : ".
	nameField, messageField, hasMessage := strings.Cut(body, " : ")

	if m := nameEventPattern.FindStringSubmatch(nameField); m != nil {
		actor = strings.TrimSpace(m[1])
		eventText = strings.TrimSpace(m[2])
		event = eventTypeOf(eventText)
	} else {
		actor = strings.TrimSpace(nameField)
		event = domain.EventNone
	}

	if hasMessage {
		msg := strings.TrimSpace(messageField)
		message = &msg
	}
	return actor, event, eventText, message
}

// eventTypeOf сопоставляет обрезанную фразу события с тегом.
func eventTypeOf(text string) domain.EventType {
	switch text {
	case domain.EventTextJoined:
		return domain.EventJoined
	case domain.EventTextLeft:
		return domain.EventLeft
	case domain.EventTextRemoved:
		return domain.EventRemoved
	case domain.EventTextModerated:
		return domain.EventModerated
	}
	if strings.HasSuffix(text, domain.EventTextRenamedSuffix) {
		return domain.EventRenamed
	}
	return domain.EventUnknown
}
