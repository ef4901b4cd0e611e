package exporter

import (
	"fmt"

	"github.com/mattn/go-runewidth"

	"kakaotalk-chat-parser/internal/domain"
	"kakaotalk-chat-parser/internal/ports"
)

// Количество последних записей, выводимых в консоль.
const recentRecords = 100

// Ширины колонок текстовой таблицы. Имена и сообщения корейские,
// поэтому выравнивание считается через runewidth, а не len.
const (
	dateColWidth    = 16
	actorColWidth   = 24
	eventColWidth   = 10
	messageColWidth = 48
)

// ConsoleExporter реализует интерфейс Exporter для вывода Dataset в консоль.
type ConsoleExporter struct{}

// NewConsoleExporter создает новый экземпляр ConsoleExporter.
func NewConsoleExporter() ports.Exporter {
	return &ConsoleExporter{}
}

// Export выводит сводку и последние записи Dataset в консоль.
func (e *ConsoleExporter) Export(ds *domain.Dataset) error {
	fmt.Println("--- " + ds.Title + " ---")
	fmt.Printf("인원: %d 명\n", ds.ParticipantCount)
	fmt.Printf("누적 대화: %d 회\n", ds.ChatCount)
	fmt.Printf("데이터 추출 날짜: %s\n", ds.SavePoint.Format("2006-01-02 15:04"))
	fmt.Printf("활동 유저: %d 명\n", len(ds.ActiveUsers))
	fmt.Println()

	records := ds.Records
	if len(records) > recentRecords {
		records = records[len(records)-recentRecords:]
	}
	if len(records) == 0 {
		fmt.Println("No records found.")
		return nil
	}

	fmt.Println(tableLine("날짜", "이름", "이벤트", "메시지"))
	for i := range records {
		r := &records[i]
		message := ""
		if r.Message != nil {
			message = *r.Message
		}
		fmt.Println(tableLine(
			r.Timestamp.Format("2006-01-02 15:04"),
			r.Actor,
			r.Event.String(),
			message,
		))
	}
	return nil
}

// tableLine собирает одну строку таблицы с выравниванием по ширине колонок.
func tableLine(date, actor, event, message string) string {
	return "| " + cell(date, dateColWidth) +
		" | " + cell(actor, actorColWidth) +
		" | " + cell(event, eventColWidth) +
		" | " + cell(message, messageColWidth) + " |"
}

// cell обрезает и дополняет значение до ширины колонки с учетом
// двойной ширины CJK-символов.
func cell(s string, width int) string {
	return runewidth.FillRight(runewidth.Truncate(s, width, "…"), width)
}
