package exporter

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"kakaotalk-chat-parser/internal/domain"
	"kakaotalk-chat-parser/internal/ports"
)

// ExcelExporter реализует интерфейс Exporter для выгрузки таблицы
// записей в xlsx-файл.
type ExcelExporter struct {
	path string
}

// NewExcelExporter создает новый экземпляр ExcelExporter.
func NewExcelExporter(path string) ports.Exporter {
	return &ExcelExporter{path: path}
}

// Export записывает таблицу записей Dataset в xlsx-файл.
func (e *ExcelExporter) Export(ds *domain.Dataset) error {
	f := excelize.NewFile()
	defer f.Close()

	sheetName := "대화 기록"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	// Заголовки
	headers := []string{"날짜", "시간", "이름", "이벤트", "메시지"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetName, cell, h)
	}

	// Данные
	for i := range ds.Records {
		r := &ds.Records[i]
		row := i + 2
		message := ""
		if r.Message != nil {
			message = *r.Message
		}
		f.SetCellValue(sheetName, fmt.Sprintf("A%d", row), r.Date.Format("2006-01-02"))
		f.SetCellValue(sheetName, fmt.Sprintf("B%d", row), r.Clock())
		f.SetCellValue(sheetName, fmt.Sprintf("C%d", row), r.Actor)
		f.SetCellValue(sheetName, fmt.Sprintf("D%d", row), r.Event.String())
		f.SetCellValue(sheetName, fmt.Sprintf("E%d", row), message)
	}

	if err := f.SaveAs(e.path); err != nil {
		return fmt.Errorf("failed to save excel file %s: %w", e.path, err)
	}
	return nil
}
