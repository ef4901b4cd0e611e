package config

// Ширина колонок текстовых отчетов по умолчанию.
const (
	DefaultRankColumnWidth  = 4
	DefaultUserColumnWidth  = 20
	DefaultCountColumnWidth = 9
	DefaultLastColumnWidth  = 12
)

const (
	DefaultPollingIntervalSeconds = 3
	DefaultExcelThreshold         = 40
	DefaultHTTPTimeoutSeconds     = 60
)
