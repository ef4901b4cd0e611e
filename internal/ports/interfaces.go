package ports

import (
	"kakaotalk-chat-parser/internal/domain"
)

// DataSource определяет интерфейс для получения исходного текста экспорта.
type DataSource interface {
	// Fetch загружает данные из источника и возвращает их в виде байтового среза.
	Fetch() ([]byte, error)
}

// Parser определяет интерфейс для разбора текста экспорта.
type Parser interface {
	// Parse преобразует сырой текст экспорта в собранный Dataset.
	Parse(data []byte) (*domain.Dataset, error)
}

// Analytics определяет интерфейс аналитических запросов над Dataset.
// Все операции — чистые чтения над неизменяемым снимком.
type Analytics interface {
	// DayOverDay считает метрику за дату сохранения против предыдущего дня.
	DayOverDay(ds *domain.Dataset, q domain.DoDQuery) (domain.DoDResult, error)
	// DeathNote строит отчет о неактивности за окно дат.
	DeathNote(ds *domain.Dataset, q domain.DeathNoteQuery) ([]domain.DeathNoteRow, error)
	// Rank строит рейтинг активности за окно дат (топ-20).
	Rank(ds *domain.Dataset, q domain.RankQuery) ([]domain.RankRow, error)
}

// Exporter определяет интерфейс для вывода собранного Dataset.
type Exporter interface {
	// Export принимает собранный Dataset и выводит его.
	Export(ds *domain.Dataset) error
}
