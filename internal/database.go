package internal

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
	"github.com/sirupsen/logrus"

	"modulon/internal/migrations"
)

type Database struct {
	*sqlx.DB
}

func NewDatabaseConnection(ctx context.Context, dbDriver string, dbConnectionStr string, log logrus.FieldLogger) (*Database, error) {
	database, err := sqlx.ConnectContext(ctx, dbDriver, dbConnectionStr)
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к БД: %w", err)
	}

	if err := database.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ошибка пинга БД: %w", err)
	}

	log.WithField("driver", dbDriver).Info("подключение к БД успешно выполнено")
	return &Database{
		database,
	}, nil
}

// Migrate применяет встроенные миграции goose
func (db *Database) Migrate(ctx context.Context) error {
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("ошибка выбора диалекта миграций: %w", err)
	}

	if err := goose.UpContext(ctx, db.DB.DB, "."); err != nil {
		return fmt.Errorf("ошибка применения миграций: %w", err)
	}
	return nil
}

// WithTx выполняет fn в транзакции: коммит при успехе, откат при ошибке или панике
func (db *Database) WithTx(ctx context.Context, fn func(ctx context.Context, tx *sqlx.Tx) error) (err error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		if commitErr := tx.Commit(); commitErr != nil {
			err = fmt.Errorf("ошибка фиксации транзакции: %w", commitErr)
		}
	}()

	return fn(ctx, tx)
}

func (db *Database) Close() error {
	err := db.DB.Close()
	if err != nil {
		return fmt.Errorf("ошибка закрытия соединения с БД: %w", err)
	}

	return nil
}
