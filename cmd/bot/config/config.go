package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// ColumnWidths определяет ширину колонок для текстового вывода отчетов.
type ColumnWidths struct {
	Rank  int `yaml:"rank"`
	User  int `yaml:"user"`
	Count int `yaml:"count"`
	Last  int `yaml:"last"`
}

// LoggingConfig содержит настройки логирования бота.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// BotConfig содержит конфигурацию для Telegram-бота
type BotConfig struct {
	Token                  string        `yaml:"token"`
	BackendURL             string        `yaml:"backend_url"`
	PollingIntervalSeconds int           `yaml:"polling_interval_seconds"`
	ExcelThreshold         int           `yaml:"excel_threshold"`
	DeathNoteMaxCount      int           `yaml:"death_note_max_count"`
	HTTPTimeoutSeconds     int           `yaml:"http_timeout_seconds"`
	Render                 ColumnWidths  `yaml:"render"`
	Logging                LoggingConfig `yaml:"logging"`
}

// Config является оберткой для соответствия структуре YAML файла.
type Config struct {
	Bot BotConfig `yaml:"bot"`
}

// LoadBotConfig загружает конфигурацию бота из указанного файла.
func LoadBotConfig(filename string) (*BotConfig, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read bot config file %s: %w", filename, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal bot config: %w", err)
	}

	// Устанавливаем значения по умолчанию
	botCfg := &cfg.Bot
	if botCfg.Token == "" {
		botCfg.Token = os.Getenv("BOT_TOKEN")
	}
	if botCfg.PollingIntervalSeconds == 0 {
		botCfg.PollingIntervalSeconds = DefaultPollingIntervalSeconds
	}
	if botCfg.ExcelThreshold == 0 {
		botCfg.ExcelThreshold = DefaultExcelThreshold
	}
	if botCfg.HTTPTimeoutSeconds == 0 {
		botCfg.HTTPTimeoutSeconds = DefaultHTTPTimeoutSeconds
	}
	if botCfg.Render.Rank == 0 {
		botCfg.Render.Rank = DefaultRankColumnWidth
	}
	if botCfg.Render.User == 0 {
		botCfg.Render.User = DefaultUserColumnWidth
	}
	if botCfg.Render.Count == 0 {
		botCfg.Render.Count = DefaultCountColumnWidth
	}
	if botCfg.Render.Last == 0 {
		botCfg.Render.Last = DefaultLastColumnWidth
	}

	return botCfg, nil
}

// Validate проверяет корректность конфигурации бота.
func (c *BotConfig) Validate() error {
	if c.Token == "" || c.Token == "YOUR_TELEGRAM_BOT_TOKEN" {
		return fmt.Errorf("bot.token is not configured")
	}
	if c.BackendURL == "" {
		return fmt.Errorf("bot.backend_url cannot be empty")
	}
	if c.PollingIntervalSeconds <= 0 {
		return fmt.Errorf("bot.polling_interval_seconds must be positive")
	}
	if c.ExcelThreshold <= 0 {
		return fmt.Errorf("bot.excel_threshold must be positive")
	}
	if c.DeathNoteMaxCount < 0 {
		return fmt.Errorf("bot.death_note_max_count must not be negative")
	}
	if c.HTTPTimeoutSeconds <= 0 {
		return fmt.Errorf("bot.http_timeout_seconds must be positive")
	}
	return nil
}
