package logger

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"modulon/config"
)

// New создает logrus-логгер с уровнем и форматом из конфигурации
func New(cfg config.LogConfig, output io.Writer) (*logrus.Logger, error) {
	log := logrus.New()
	if output == nil {
		output = os.Stdout
	}
	log.SetOutput(output)

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("неизвестный уровень логирования %q: %w", cfg.Level, err)
	}
	log.SetLevel(level)

	switch cfg.Format {
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	default:
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	return log, nil
}

// Discard логгер без вывода, для тестов
func Discard() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// RequestLogger пишет одну запись на каждый http-запрос
func RequestLogger(log logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			start := time.Now()
			wrapped := middleware.NewWrapResponseWriter(writer, request.ProtoMajor)

			next.ServeHTTP(wrapped, request)

			entry := log.WithFields(logrus.Fields{
				"request_id": middleware.GetReqID(request.Context()),
				"method":     request.Method,
				"path":       request.URL.Path,
				"status":     wrapped.Status(),
				"duration":   time.Since(start).String(),
				"ip":         request.RemoteAddr,
			})
			if wrapped.Status() >= http.StatusInternalServerError {
				entry.Warn("http запрос завершился ошибкой")
				return
			}
			entry.Info("http запрос")
		})
	}
}
