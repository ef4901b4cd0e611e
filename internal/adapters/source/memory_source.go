package source

import (
	"kakaotalk-chat-parser/internal/domain"
	"kakaotalk-chat-parser/internal/ports"
)

// MemorySource реализует интерфейс DataSource для текста экспорта,
// уже находящегося в памяти (загрузка через HTTP).
type MemorySource struct {
	data []byte
}

// NewMemorySource создает новый экземпляр MemorySource.
func NewMemorySource(data []byte) ports.DataSource {
	return &MemorySource{data: data}
}

// Fetch возвращает данные из памяти.
func (s *MemorySource) Fetch() ([]byte, error) {
	if len(s.data) == 0 {
		return nil, domain.ErrEmptyInput
	}

	// Возвращаем копию данных, чтобы избежать изменений оригинала
	dataCopy := make([]byte, len(s.data))
	copy(dataCopy, s.data)

	return dataCopy, nil
}
