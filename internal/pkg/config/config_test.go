package config

import (
	"testing"
	"time"
)

func validConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func TestApplyDefaults(t *testing.T) {
	cfg := validConfig()

	if cfg.Server.Host != DefaultServerHost {
		t.Errorf("Ожидался хост %q, получено %q", DefaultServerHost, cfg.Server.Host)
	}
	if cfg.Server.Port != DefaultServerPort {
		t.Errorf("Ожидался порт %d, получено %d", DefaultServerPort, cfg.Server.Port)
	}
	if cfg.Analysis.BotUsed == nil || !*cfg.Analysis.BotUsed {
		t.Error("По умолчанию бот считается используемым")
	}
	if cfg.Analysis.BotLabel != DefaultBotLabel {
		t.Errorf("Ожидалась метка бота %q, получено %q", DefaultBotLabel, cfg.Analysis.BotLabel)
	}
	if len(cfg.Analysis.ExcludedUsers) != len(DefaultExcludedUsers) {
		t.Errorf("Ожидался набор исключений по умолчанию, получено %v", cfg.Analysis.ExcludedUsers)
	}
	if cfg.Logging.Level != DefaultLogLevel {
		t.Errorf("Ожидался уровень %q, получено %q", DefaultLogLevel, cfg.Logging.Level)
	}
}

func TestApplyDefaultsKeepsExplicitValues(t *testing.T) {
	botUsed := false
	cfg := &Config{
		Server:   Server{Host: "0.0.0.0", Port: 9000},
		Analysis: Analysis{BotUsed: &botUsed, BotLabel: "커스텀봇"},
	}
	cfg.applyDefaults()

	if cfg.Server.Host != "0.0.0.0" || cfg.Server.Port != 9000 {
		t.Errorf("Заданные значения не должны перезаписываться: %s:%d", cfg.Server.Host, cfg.Server.Port)
	}
	if *cfg.Analysis.BotUsed {
		t.Error("Явное bot_used=false не должно перезаписываться")
	}
	if cfg.Analysis.BotLabel != "커스텀봇" {
		t.Errorf("Заданная метка бота не должна перезаписываться, получено %q", cfg.Analysis.BotLabel)
	}
}

func TestValidate(t *testing.T) {
	t.Run("Конфигурация по умолчанию валидна", func(t *testing.T) {
		if err := validConfig().Validate(); err != nil {
			t.Errorf("Неожиданная ошибка: %v", err)
		}
	})

	t.Run("Недопустимый порт", func(t *testing.T) {
		cfg := validConfig()
		cfg.Server.Port = 70000
		if err := cfg.Validate(); err == nil {
			t.Error("Ожидалась ошибка для порта вне диапазона")
		}
	})

	t.Run("Отрицательный таймаут задачи", func(t *testing.T) {
		cfg := validConfig()
		cfg.Processing.TaskTimeoutSeconds = -1
		if err := cfg.Validate(); err == nil {
			t.Error("Ожидалась ошибка для отрицательного таймаута")
		}
	})

	t.Run("Нулевой таймаут задачи допустим", func(t *testing.T) {
		cfg := validConfig()
		cfg.Processing.TaskTimeoutSeconds = 0
		if err := cfg.Validate(); err != nil {
			t.Errorf("Нулевой таймаут означает отсутствие ограничений: %v", err)
		}
	})

	t.Run("Пустая метка бота", func(t *testing.T) {
		cfg := validConfig()
		cfg.Analysis.BotLabel = ""
		if err := cfg.Validate(); err == nil {
			t.Error("Ожидалась ошибка для пустой метки бота")
		}
	})

	t.Run("Недопустимый уровень логирования", func(t *testing.T) {
		cfg := validConfig()
		cfg.Logging.Level = "verbose"
		if err := cfg.Validate(); err == nil {
			t.Error("Ожидалась ошибка для неизвестного уровня")
		}
	})

	t.Run("Недопустимый формат логирования", func(t *testing.T) {
		cfg := validConfig()
		cfg.Logging.Format = "xml"
		if err := cfg.Validate(); err == nil {
			t.Error("Ожидалась ошибка для неизвестного формата")
		}
	})
}

func TestDurationAccessors(t *testing.T) {
	cfg := &Config{
		Server:     Server{Host: "localhost", Port: 8080, ShutdownTimeoutSeconds: 15},
		Processing: Processing{TaskTimeoutSeconds: 30, CacheTTLMinutes: 60},
	}

	if got := cfg.Address(); got != "localhost:8080" {
		t.Errorf("Ожидался адрес 'localhost:8080', получено %q", got)
	}
	if got := cfg.TaskTimeout(); got != 30*time.Second {
		t.Errorf("Ожидался таймаут 30s, получено %v", got)
	}
	if got := cfg.CacheTTL(); got != time.Hour {
		t.Errorf("Ожидался TTL 1h, получено %v", got)
	}
	if got := cfg.ShutdownTimeout(); got != 15*time.Second {
		t.Errorf("Ожидался таймаут остановки 15s, получено %v", got)
	}
}
