package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"modulon/config"
	"modulon/config/server"
	"modulon/internal/service"
)

func newMigrateCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Применить миграции БД",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := opts.load()
			if err != nil {
				return err
			}

			cfg.Database.AutoMigrate = true
			database, err := server.SetupDatabase(cmd.Context(), cfg.Database, log)
			if err != nil {
				return err
			}
			return database.Close()
		},
	}
}

func newSweepCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Удалить истекшие сессии и токены подтверждения",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := opts.load()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("некорректная конфигурация: %w", err)
			}
			if cfg.Storage.Kind != config.StoragePostgres {
				return fmt.Errorf("очистка доступна только для хранилища %s", config.StoragePostgres)
			}

			storage, err := server.SetupStorage(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer storage.Close()

			issuer, err := newTokenIssuer(cfg.JWT)
			if err != nil {
				return err
			}

			result, err := service.NewSessionService(storage.Sessions, storage.Verifications, issuer, log).Sweep(cmd.Context())
			if err != nil {
				return err
			}
			log.WithFields(logrus.Fields{
				"sessions":      result.Sessions,
				"verifications": result.Verifications,
			}).Info("очистка завершена")
			return nil
		},
	}
}
