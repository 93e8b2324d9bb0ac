package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// LoadConfig читает конфигурацию: значения по умолчанию, затем .yaml файл (если путь задан),
// затем переменные окружения. Переменные из envPath загружаются до чтения окружения
// и не перетирают уже заданные
func LoadConfig(filePath string, envPath string) (*Config, error) {
	if envPath != "" {
		if err := godotenv.Load(envPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("ошибка чтения .env файла: %w", err)
		}
	}

	var cfg Config
	cfg.LoadDefaults()

	if filePath != "" {
		data, err := os.ReadFile(filePath)
		if err != nil {
			return nil, fmt.Errorf("ошибка чтения файла конфигурации: %w", err)
		}

		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("ошибка парсинга .yaml файла: %w", err)
		}
	}

	applyEnv(&cfg)

	return &cfg, nil
}

func applyEnv(cfg *Config) {
	overrides := []struct {
		name   string
		target *string
	}{
		{"SERVER_HOST", &cfg.Server.Host},
		{"SERVER_PORT", &cfg.Server.Port},
		{"PORT", &cfg.Server.Port},
		{"APP_ENV", &cfg.Server.Env},
		{"NODE_ENV", &cfg.Server.Env},
		{"CLIENT_URL", &cfg.Server.ClientURL},
		{"DATABASE_DRIVER", &cfg.Database.Driver},
		{"DATABASE_CONNECTION_URL", &cfg.Database.ConnectionString},
		{"DATABASE_URL", &cfg.Database.ConnectionString},
		{"STORAGE_KIND", &cfg.Storage.Kind},
		{"JWT_ACCESS_SECRET", &cfg.JWT.AccessSecret},
		{"JWT_REFRESH_SECRET", &cfg.JWT.RefreshSecret},
		{"JWT_ACCESS_EXPIRES_IN", &cfg.JWT.AccessTokenTTL},
		{"JWT_REFRESH_EXPIRES_IN", &cfg.JWT.RefreshTokenTTL},
		{"EMAIL_CONFIRMATION_TTL", &cfg.Verification.TokenTTL},
		{"WEBHOOK_URL", &cfg.Webhook.URL},
		{"WEBHOOK_TIMEOUT", &cfg.Webhook.Timeout},
		{"LOG_LEVEL", &cfg.Log.Level},
		{"LOG_FORMAT", &cfg.Log.Format},
		{"SWEEP_INTERVAL", &cfg.Sweeper.Interval},
	}

	for _, override := range overrides {
		if value, ok := os.LookupEnv(override.name); ok && value != "" {
			*override.target = value
		}
	}

	// SERVER_ADDRESS задает host:port целиком, как в исходной конфигурации через .env
	if address, ok := os.LookupEnv("SERVER_ADDRESS"); ok && address != "" {
		if host, port, err := net.SplitHostPort(address); err == nil {
			cfg.Server.Host, cfg.Server.Port = host, port
		}
	}

	if value, ok := os.LookupEnv("DATABASE_AUTO_MIGRATE"); ok {
		cfg.Database.AutoMigrate = value == "true" || value == "1"
	}
}
