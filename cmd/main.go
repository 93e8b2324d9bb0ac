package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"modulon/config"
	"modulon/config/server"
	"modulon/internal/handler"
	"modulon/internal/logger"
	"modulon/internal/notifier"
	"modulon/internal/ports"
	"modulon/internal/security"
	"modulon/internal/service"
)

type options struct {
	configPath string
	envPath    string
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:          "modulon",
		Short:        "Сервис авторизации и управления сессиями",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "путь к .yaml файлу конфигурации")
	root.PersistentFlags().StringVar(&opts.envPath, "env", ".env", "путь к .env файлу")

	root.AddCommand(
		newServeCommand(opts),
		newMigrateCommand(opts),
		newSweepCommand(opts),
	)
	return root
}

// load читает конфигурацию и создает логгер
func (opts *options) load() (*config.Config, *logrus.Logger, error) {
	cfg, err := config.LoadConfig(opts.configPath, opts.envPath)
	if err != nil {
		return nil, nil, err
	}

	log, err := logger.New(cfg.Log, os.Stdout)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

func newServeCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Запустить http-сервер",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := opts.load()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("некорректная конфигурация: %w", err)
			}
			return serve(cmd.Context(), cfg, log)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, log *logrus.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	storage, err := server.SetupStorage(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("не удалось подготовить хранилище: %w", err)
	}
	defer func() {
		if err := storage.Close(); err != nil {
			log.WithError(err).Error("ошибка закрытия хранилища")
		}
	}()

	issuer, err := newTokenIssuer(cfg.JWT)
	if err != nil {
		return err
	}

	// длительности уже проверены в Validate
	verificationTTL, _ := cfg.Verification.TTL()
	requestTimeout, _ := cfg.Server.Timeout()
	sweepInterval, _ := cfg.Sweeper.Every()

	mailer, alerts := newNotifiers(cfg.Webhook, log)
	hasher := security.NewPasswordHasher(security.DefaultArgon2Params)

	tokens := service.NewTokenService(storage.Accounts, storage.Sessions, issuer, log).WithAlerts(alerts)
	verification := service.NewVerificationService(storage.Accounts, storage.Verifications, mailer, verificationTTL, cfg.Server.ClientURL+cfg.Verification.LinkPath, log)
	sessions := service.NewSessionService(storage.Sessions, storage.Verifications, issuer, log)
	authentication := service.NewAuthenticationService(storage.Accounts, hasher, tokens, verification, log)
	users := service.NewUserService(storage.Accounts, hasher, log)
	dashboard := service.NewDashboardService(storage.Accounts, hasher, log)

	cookies := handler.CookieSettings{
		Secure:     cfg.Server.IsProduction(),
		AccessTTL:  issuer.AccessTTL(),
		RefreshTTL: issuer.RefreshTTL(),
	}
	router := handler.Router{
		Issuer:         issuer,
		Authentication: handler.NewAuthenticationHandler(authentication, sessions, verification, cookies, log),
		Users:          handler.NewAdminUserHandler(users, log),
		Sessions:       handler.NewAdminSessionHandler(sessions, log),
		Dashboard:      handler.NewDashboardHandler(dashboard, log),
		RequestTimeout: requestTimeout,
		Log:            log,
	}

	go sessions.RunSweeper(ctx, sweepInterval)

	return runServer(ctx, server.SetupServer(cfg.Server, router.Handler()), log)
}

func newTokenIssuer(cfg config.JWTConfig) (*security.TokenIssuer, error) {
	accessTTL, err := cfg.AccessTTL()
	if err != nil {
		return nil, err
	}
	refreshTTL, err := cfg.RefreshTTL()
	if err != nil {
		return nil, err
	}
	return security.NewTokenIssuer(security.TokenIssuerConfig{
		AccessSecret:  cfg.AccessSecret,
		RefreshSecret: cfg.RefreshSecret,
		AccessTTL:     accessTTL,
		RefreshTTL:    refreshTTL,
		Issuer:        cfg.Issuer,
	})
}

// newNotifiers без webhook.url письма и уведомления только пишутся в лог
func newNotifiers(cfg config.WebhookConfig, log logrus.FieldLogger) (ports.MailerInterface, ports.AlertNotifierInterface) {
	if cfg.URL == "" {
		log.Warn("webhook.url не задан, коды подтверждения пишутся в лог")
		logNotifier := notifier.NewLogNotifier(log)
		return logNotifier, logNotifier
	}

	timeout, _ := cfg.RequestTimeout()
	webhook := notifier.NewWebhookNotifier(cfg.URL, timeout, log)
	return webhook, webhook
}

func runServer(ctx context.Context, server *http.Server, log logrus.FieldLogger) error {
	serverErrors := make(chan error, 1)
	go func() {
		log.Info("сервер запущен на " + server.Addr)
		serverErrors <- server.ListenAndServe()
	}()

	signalChannel := make(chan os.Signal, 1)
	signal.Notify(signalChannel, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("ошибка работы сервера: %w", err)
		}
		return nil
	case sig := <-signalChannel:
		log.Infof("получен сигнал %v остановки работы сервера ", sig)
	}

	shutDownCtx, shutDownCancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer shutDownCancel()

	if err := server.Shutdown(shutDownCtx); err != nil {
		return fmt.Errorf("ошибка при остановке сервера: %w", err)
	}
	log.Info("Сервер успешно остановлен")
	return nil
}
