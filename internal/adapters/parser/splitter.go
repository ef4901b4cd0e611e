package parser

import "regexp"

// Грамматика метки времени экспорта: год, месяц, день, маркер 오전/오후,
// час, минута, необязательная завершающая запятая. Текст сообщения может
// содержать похожие на метки строки — если они совпадают с грамматикой
// точно, это унаследованный от формата ложноположительный случай, и он
// намеренно не обрабатывается отдельно.
var timestampPattern = regexp.MustCompile(`(\d{4}년 \d{1,2}월 \d{1,2}일 오[전후] \d{1,2}:\d{1,2}),?`)

// splitRecords разрезает тело экспорта (после двух строк заголовка) на
// пары [метка времени, тело записи]. Ведущий фрагмент до первой метки
// времени отбрасывается и записью не считается. Длины возвращаемых
// срезов всегда равны.
func splitRecords(text string) (timestamps, bodies []string) {
	matches := timestampPattern.FindAllStringSubmatchIndex(text, -1)
	for i, m := range matches {
		// Группа 1 — метка времени без завершающей запятой.
		timestamps = append(timestamps, text[m[2]:m[3]])
		if i+1 < len(matches) {
			bodies = append(bodies, text[m[1]:matches[i+1][0]])
		} else {
			bodies = append(bodies, text[m[1]:])
		}
	}
	return timestamps, bodies
}
