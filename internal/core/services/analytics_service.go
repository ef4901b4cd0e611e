package services

import (
	"fmt"
	"sort"
	"time"

	"kakaotalk-chat-parser/internal/domain"
	"kakaotalk-chat-parser/internal/ports"
)

// Размер рейтинга активности.
const rankSize = 20

// Метка "последняя активность сегодня".
const todayLabel = "오늘"

// AnalyticsServiceImpl реализует интерфейс Analytics.
// Все операции — чистые проходы группировки и свертки по
// последовательности записей неизменяемого Dataset.
type AnalyticsServiceImpl struct{}

// NewAnalyticsService создает новый экземпляр AnalyticsServiceImpl.
func NewAnalyticsService() ports.Analytics {
	return &AnalyticsServiceImpl{}
}

// DayOverDay считает метрику за дату сохранения экспорта против
// предыдущего дня и форматирует строку отношения.
func (s *AnalyticsServiceImpl) DayOverDay(ds *domain.Dataset, q domain.DoDQuery) (domain.DoDResult, error) {
	switch q.Column {
	case domain.ColumnMessage, domain.ColumnActor, domain.ColumnEvent:
	default:
		return domain.DoDResult{}, fmt.Errorf("unknown target column %q", q.Column)
	}

	today := dateOf(ds.SavePoint)
	yesterday := today.AddDate(0, 0, -1)

	todaySize := countColumn(ds, today, q)
	yesterdaySize := countColumn(ds, yesterday, q)

	// Ветвь с нулевым "вчера" форматирует сырую знаковую разницу через
	// процентное масштабирование — унаследованная особенность, не
	// исправляемая молча.
	var result float64
	switch {
	case yesterdaySize == 0:
		result = float64(todaySize - yesterdaySize)
	case todaySize == yesterdaySize:
		result = 0
	default:
		result = float64(todaySize-yesterdaySize) / float64(yesterdaySize)
	}

	return domain.DoDResult{
		Count: todaySize,
		Ratio: fmt.Sprintf("%.2f%%", result*100),
	}, nil
}

// countColumn считает значения целевого столбца за один день.
func countColumn(ds *domain.Dataset, day time.Time, q domain.DoDQuery) int {
	count := 0
	seen := make(map[string]bool)
	for i := range ds.Records {
		r := &ds.Records[i]
		if !r.Date.Equal(day) {
			continue
		}
		switch {
		case len(q.Values) > 0:
			if containsValue(q.Values, columnValue(r, q.Column)) {
				count++
			}
		case q.Unique:
			// Уникальные значения целевого столбца среди записей с
			// текстом сообщения.
			if v := columnValue(r, q.Column); r.HasMessage() && !seen[v] {
				seen[v] = true
				count++
			}
		default:
			if columnPresent(r, q.Column) {
				count++
			}
		}
	}
	return count
}

func columnValue(r *domain.ChatRecord, col domain.TargetColumn) string {
	switch col {
	case domain.ColumnActor:
		return r.Actor
	case domain.ColumnEvent:
		return r.EventText
	default:
		if r.Message != nil {
			return *r.Message
		}
		return ""
	}
}

func columnPresent(r *domain.ChatRecord, col domain.TargetColumn) bool {
	switch col {
	case domain.ColumnActor:
		return true
	case domain.ColumnEvent:
		return r.Event != domain.EventNone
	default:
		return r.HasMessage()
	}
}

func containsValue(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

// reportRow — промежуточная строка отчета до рендеринга метки.
type reportRow struct {
	actor string
	count int
	last  time.Time
	entry time.Time
}

// DeathNote строит отчет о неактивности: участники активного набора,
// чье число сообщений в окне не превышает порога. Активный участник
// без записей в окне попадает в отчет со счетчиком 0 и последней
// активностью по его самой свежей записи во всем наборе данных.
func (s *AnalyticsServiceImpl) DeathNote(ds *domain.Dataset, q domain.DeathNoteQuery) ([]domain.DeathNoteRow, error) {
	sortKey := q.SortKey
	if sortKey == "" {
		sortKey = domain.SortByCount
	}
	switch sortKey {
	case domain.SortByActor, domain.SortByCount, domain.SortByLastChat:
	default:
		return nil, fmt.Errorf("unknown sort key %q", q.SortKey)
	}

	rows := windowCounts(ds, dateOf(q.MinDate), dateOf(q.MaxDate))

	// Дата последнего события входа на участника.
	lastJoin := make(map[string]time.Time)
	for i := range ds.Records {
		if ds.Records[i].Event == domain.EventJoined {
			lastJoin[ds.Records[i].Actor] = ds.Records[i].Date
		}
	}

	filtered := rows[:0]
	for _, row := range rows {
		if row.count > q.MaxCount {
			continue
		}
		// Участники без единого события входа в отчет не попадают
		// (слияние с датами входа в источнике — внутреннее).
		entry, ok := lastJoin[row.actor]
		if !ok {
			continue
		}
		row.entry = entry
		filtered = append(filtered, row)
	}

	sortRows(filtered, sortKey, q.Ascending)

	result := make([]domain.DeathNoteRow, 0, len(filtered))
	for _, row := range filtered {
		result = append(result, domain.DeathNoteRow{
			Actor:           row.actor,
			Count:           row.count,
			Entry:           row.entry,
			LastActiveLabel: lastActiveLabel(ds.SavePoint, row.last),
		})
	}
	return result, nil
}

// Rank строит рейтинг активности за окно: счетчики по убыванию,
// топ-20, ранг с единицы. Метка последней активности считается от
// конца запрошенного окна, а не от точки сохранения — намеренное
// отличие от отчета о неактивности.
func (s *AnalyticsServiceImpl) Rank(ds *domain.Dataset, q domain.RankQuery) ([]domain.RankRow, error) {
	// Метка фильтра принимается, но пока не применяется: в источнике
	// выбор отключен, а проводка сохранена, чтобы фильтры по медиа не
	// меняли API.
	maxDate := dateOf(q.MaxDate)
	rows := windowCounts(ds, dateOf(q.MinDate), maxDate)
	sortRows(rows, domain.SortByCount, false)

	if len(rows) > rankSize {
		rows = rows[:rankSize]
	}

	result := make([]domain.RankRow, 0, len(rows))
	for i, row := range rows {
		result = append(result, domain.RankRow{
			Rank:            i + 1,
			Actor:           row.actor,
			Count:           row.count,
			LastActiveLabel: lastActiveLabel(maxDate, row.last),
		})
	}
	return result, nil
}

// windowCounts считает на каждого активного участника число записей
// без события в окне дат и дату его последней записи. Активные
// участники без записей в окне добавляются со счетчиком 0 и датой
// последней записи во всем наборе данных — "нет записей в окне" и
// "не входит в активный набор" различаются: второе исключает
// участника целиком.
func windowCounts(ds *domain.Dataset, minDate, maxDate time.Time) []reportRow {
	active := make(map[string]bool, len(ds.ActiveUsers))
	for _, name := range ds.ActiveUsers {
		active[name] = true
	}

	counts := make(map[string]*reportRow)
	for i := range ds.Records {
		r := &ds.Records[i]
		if r.Event != domain.EventNone || !active[r.Actor] {
			continue
		}
		if r.Date.Before(minDate) || r.Date.After(maxDate) {
			continue
		}
		row, ok := counts[r.Actor]
		if !ok {
			row = &reportRow{actor: r.Actor}
			counts[r.Actor] = row
		}
		row.count++
		if r.Date.After(row.last) {
			row.last = r.Date
		}
	}

	// Резервная дата для участников без записей в окне — самая свежая
	// запись в наборе данных, даже если она раньше начала окна.
	fallback := make(map[string]time.Time)
	for i := range ds.Records {
		r := &ds.Records[i]
		if active[r.Actor] && r.Date.After(fallback[r.Actor]) {
			fallback[r.Actor] = r.Date
		}
	}

	rows := make([]reportRow, 0, len(ds.ActiveUsers))
	for _, name := range ds.ActiveUsers {
		if row, ok := counts[name]; ok {
			rows = append(rows, *row)
			continue
		}
		rows = append(rows, reportRow{actor: name, last: fallback[name]})
	}
	return rows
}

// sortRows устойчиво сортирует строки отчета по ключу. Детерминированный
// порядок при равенстве — позиция участника в активном наборе.
func sortRows(rows []reportRow, key domain.DeathNoteSortKey, ascending bool) {
	less := func(i, j int) bool {
		switch key {
		case domain.SortByActor:
			return rows[i].actor < rows[j].actor
		case domain.SortByLastChat:
			return rows[i].last.Before(rows[j].last)
		default:
			return rows[i].count < rows[j].count
		}
	}
	if !ascending {
		asc := less
		less = func(i, j int) bool { return asc(j, i) }
	}
	sort.SliceStable(rows, less)
}

// lastActiveLabel форматирует "время с последней активности" от опорной
// точки: "오늘" при нулевой дневной дельте, иначе метка "N일 전".
func lastActiveLabel(origin, last time.Time) string {
	days := int(origin.Sub(last).Hours() / 24)
	if days == 0 {
		return todayLabel
	}
	return fmt.Sprintf("%2d일 전", days)
}

func dateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
