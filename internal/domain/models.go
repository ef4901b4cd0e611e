package domain

import "time"

// EventType — классифицированный тип системного уведомления.
// Обычные сообщения имеют тип EventNone.
type EventType int

const (
	EventNone EventType = iota
	EventJoined
	EventLeft
	EventRemoved
	EventRenamed
	EventModerated
	// EventUnknown — фраза уведомления совпала с общим шаблоном
	// `<имя>님이/님을 ...습니다.`, но не входит в известный набор.
	EventUnknown
)

// Известные тексты событий в экспорте KakaoTalk.
const (
	EventTextJoined    = "들어왔습니다."
	EventTextLeft      = "나갔습니다."
	EventTextRemoved   = "내보냈습니다."
	EventTextModerated = "메시지를 가렸습니다."
	// Суффикс синтезированного текста события переименования.
	EventTextRenamedSuffix = "이 되었습니다."
)

// String возвращает строковую метку типа события для сериализации и логов.
func (e EventType) String() string {
	switch e {
	case EventNone:
		return "none"
	case EventJoined:
		return "joined"
	case EventLeft:
		return "left"
	case EventRemoved:
		return "removed"
	case EventRenamed:
		return "renamed"
	case EventModerated:
		return "moderated"
	default:
		return "unknown"
	}
}

// MarshalText сериализует EventType как текстовую метку.
func (e EventType) MarshalText() ([]byte, error) {
	return []byte(e.String()), nil
}

// ChatRecord представляет одну запись экспорта: обычное сообщение
// или системное уведомление с привязанной меткой времени.
type ChatRecord struct {
	// Полная метка времени записи. Экспорт гарантирует хронологический
	// порядок; парсер сохраняет его, а не пересортировывает.
	Timestamp time.Time `json:"timestamp"`
	// Date — метка времени, усеченная до дня (ключ группировки аналитики).
	Date time.Time `json:"date"`
	// Actor — отображаемое имя: отправитель сообщения или субъект события.
	Actor string `json:"actor"`
	// Event — первичная классификация записи.
	Event EventType `json:"event"`
	// EventText — исходная (обрезанная) фраза события. Пустая строка
	// для обычных сообщений.
	EventText string `json:"event_text,omitempty"`
	// Message — текст сообщения. nil для чистых уведомлений; записи
	// модерации несут и событие, и синтезированный (пустой) текст —
	// Event и Message не взаимоисключающие.
	Message *string `json:"message,omitempty"`
}

// HasMessage сообщает, содержит ли запись текст сообщения.
// Пустая строка после перезаписи модерации считается присутствующим текстом.
func (r *ChatRecord) HasMessage() bool {
	return r.Message != nil
}

// Clock возвращает производную временную часть метки времени.
func (r *ChatRecord) Clock() string {
	return r.Timestamp.Format("15:04")
}

// Dataset — полностью собранный результат разбора одного экспорта.
// Строится целиком за один проход и заменяется атомарно; частично
// собранный Dataset наружу не выдается.
type Dataset struct {
	// Заголовок чата из первой строки экспорта.
	Title string `json:"title"`
	// Заявленное число участников (за вычетом бота, если он используется).
	ParticipantCount int `json:"participant_count"`
	// SavePoint — момент выгрузки данных из второй строки экспорта.
	// Используется как "сейчас" для дельта-расчетов.
	SavePoint time.Time `json:"save_point"`
	// Даты первой и последней записи.
	StartPoint time.Time `json:"start_point"`
	EndPoint   time.Time `json:"end_point"`
	// Records — упорядоченная последовательность записей.
	Records []ChatRecord `json:"records"`
	// ActiveUsers — участники, чье последнее событие входа/выхода
	// означает продолжение членства, без исключенных аккаунтов.
	// Порядок — по первому появлению в экспорте.
	ActiveUsers []string `json:"active_users"`
	// ChatCount — число записей с непустым текстом сообщения.
	ChatCount int `json:"chat_count"`
	// LastChatDate — дата последней записи в экспорте.
	LastChatDate time.Time `json:"last_chat_date"`
}

// IsActive сообщает, входит ли имя в набор активных участников.
func (d *Dataset) IsActive(name string) bool {
	for _, u := range d.ActiveUsers {
		if u == name {
			return true
		}
	}
	return false
}

// TargetColumn — столбец, по которому считается day-over-day метрика.
type TargetColumn string

const (
	ColumnMessage TargetColumn = "message"
	ColumnActor   TargetColumn = "actor"
	ColumnEvent   TargetColumn = "event"
)

// DoDQuery описывает один day-over-day запрос.
type DoDQuery struct {
	Column TargetColumn
	// Values — необязательный фильтр по значениям столбца
	// (для событий — исходные тексты, например "들어왔습니다.").
	Values []string
	// Unique — считать уникальных авторов среди записей с сообщениями.
	Unique bool
}

// DoDResult — результат day-over-day запроса: счетчик за "сегодня"
// и строка отношения к вчерашнему дню.
type DoDResult struct {
	Count int    `json:"count"`
	Ratio string `json:"ratio"`
}

// DeathNoteSortKey — ключ сортировки отчета о неактивности.
type DeathNoteSortKey string

const (
	SortByActor    DeathNoteSortKey = "actor"
	SortByCount    DeathNoteSortKey = "count"
	SortByLastChat DeathNoteSortKey = "last_chat"
)

// DeathNoteQuery описывает запрос отчета о неактивности.
type DeathNoteQuery struct {
	MinDate time.Time
	MaxDate time.Time
	// MaxCount — порог: в отчет попадают участники с числом сообщений
	// в окне не больше этого значения.
	MaxCount  int
	SortKey   DeathNoteSortKey
	Ascending bool
}

// DeathNoteRow — одна строка отчета о неактивности.
type DeathNoteRow struct {
	Actor string `json:"actor"`
	Count int    `json:"count"`
	// Entry — дата последнего события входа участника.
	Entry time.Time `json:"entry"`
	// LastActiveLabel — "오늘" либо метка "N일 전" от точки сохранения.
	LastActiveLabel string `json:"last_active_label"`
}

// RankQuery описывает запрос рейтинга активности.
type RankQuery struct {
	MinDate time.Time
	MaxDate time.Time
	// FilterLabel — метка фильтра из оболочки, например "📑 전체".
	// Ведущий токен до первого пробела отбрасывается.
	FilterLabel string
}

// RankRow — одна строка рейтинга активности.
type RankRow struct {
	Rank  int    `json:"rank"`
	Actor string `json:"actor"`
	Count int    `json:"count"`
	// LastActiveLabel считается от конца запрошенного окна,
	// а не от точки сохранения.
	LastActiveLabel string `json:"last_active_label"`
}
