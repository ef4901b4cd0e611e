package source

import (
	"fmt"
	"os"

	"kakaotalk-chat-parser/internal/domain"
	"kakaotalk-chat-parser/internal/ports"
)

// FileSource реализует интерфейс DataSource для чтения экспорта
// из файла, указанного в командной строке.
type FileSource struct {
	filePath string
}

// NewFileSource создает новый экземпляр FileSource.
func NewFileSource(filePath string) ports.DataSource {
	return &FileSource{filePath: filePath}
}

// Fetch читает файл по указанному пути и возвращает его содержимое.
func (s *FileSource) Fetch() ([]byte, error) {
	if s.filePath == "" {
		return nil, domain.ErrEmptyInput
	}

	data, err := os.ReadFile(s.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", s.filePath, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrEmptyInput, s.filePath)
	}

	return data, nil
}
