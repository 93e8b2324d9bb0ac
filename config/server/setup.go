package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"modulon/config"
	"modulon/internal"
	"modulon/internal/ports"
	"modulon/internal/repository"
	"modulon/internal/repository/memory"
)

// Storage набор репозиториев выбранного хранилища
type Storage struct {
	Accounts      ports.AccountRepositoryInterface
	Sessions      ports.SessionRepositoryInterface
	Verifications ports.VerificationRepositoryInterface
	close         func() error
}

func (s *Storage) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

func SetupDatabase(ctx context.Context, cfg config.DatabaseConfig, log logrus.FieldLogger) (*internal.Database, error) {
	database, err := internal.NewDatabaseConnection(ctx, cfg.Driver, cfg.ConnectionString, log)
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения: %w", err)
	}

	if cfg.AutoMigrate {
		if err := database.Migrate(ctx); err != nil {
			_ = database.Close()
			return nil, err
		}
		log.Info("миграции применены")
	}
	return database, nil
}

// SetupStorage создает репозитории по storage.kind
func SetupStorage(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) (*Storage, error) {
	switch cfg.Storage.Kind {
	case config.StorageMemory:
		log.Warn("используется хранилище в памяти, данные не сохраняются между запусками")
		store := memory.NewStore()
		return &Storage{
			Accounts:      store.Accounts(),
			Sessions:      store.Sessions(),
			Verifications: store.Verifications(),
		}, nil
	case config.StoragePostgres:
		database, err := SetupDatabase(ctx, cfg.Database, log)
		if err != nil {
			return nil, err
		}
		return &Storage{
			Accounts:      repository.NewAccountRepository(database),
			Sessions:      repository.NewSessionRepository(database),
			Verifications: repository.NewVerificationRepository(database),
			close:         database.Close,
		}, nil
	default:
		return nil, fmt.Errorf("неизвестный тип хранилища: %q", cfg.Storage.Kind)
	}
}

func SetupServer(cfg config.ServerConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Address(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
}
