package domain

import "errors"

// Ошибки границы построения Dataset. Построение либо полностью
// успешно, либо полностью неуспешно — частичное состояние не выдается.
var (
	// ErrMalformedHeader — первые две строки экспорта не соответствуют
	// ожидаемой форме `<заголовок> ... <число>` / `<метка> : <время>`.
	ErrMalformedHeader = errors.New("malformed export header")

	// ErrMalformedTimestamp — токен времени не разбирается после
	// нормализации. Фатально для всего прохода разбора: инварианты
	// хронологического порядка требуют, чтобы каждый токен разобрался.
	ErrMalformedTimestamp = errors.New("malformed timestamp token")

	// ErrEmptyInput — файл или содержимое не переданы.
	ErrEmptyInput = errors.New("empty or missing input")
)
