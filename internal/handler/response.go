package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"modulon/internal/common"
)

// ErrorResponse тело ответа с ошибкой
// swagger:model
type ErrorResponse struct {
	StatusCode int    `json:"statusCode"`
	Error      string `json:"error"`
	Message    string `json:"message"`
}

// MessageResponse содержит строку с сообщением
// swagger:model
type MessageResponse struct {
	// example: User user@example.com has been created.
	Message string `json:"message"`
}

// CountResponse количество удаленных записей
// swagger:model
type CountResponse struct {
	Message string `json:"message"`
	Count   int64  `json:"count"`
}

func writeJSON(writer http.ResponseWriter, status int, payload any) {
	writer.Header().Set("Content-Type", "application/json; charset=utf-8")
	writer.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(writer).Encode(payload)
}

func writeMessage(writer http.ResponseWriter, status int, message string) {
	writeJSON(writer, status, &MessageResponse{Message: message})
}

// writeError переводит ошибку сервисного слоя в http-ответ.
// Неизвестные ошибки отдаются клиенту как 500 без подробностей, подробности пишутся в лог
func writeError(writer http.ResponseWriter, request *http.Request, log logrus.FieldLogger, err error) {
	status := statusFor(err)

	message, ok := common.Message(err)
	if !ok || status == http.StatusInternalServerError {
		message = "Internal server error"
	}

	if status == http.StatusInternalServerError {
		log.WithError(err).WithField("path", request.URL.Path).Error("ошибка обработки запроса")
	}

	writeJSON(writer, status, &ErrorResponse{
		StatusCode: status,
		Error:      http.StatusText(status),
		Message:    message,
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, common.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, common.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, common.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, common.ErrBadRequest), errors.Is(err, common.ErrInvalidRoleChange):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrForbidden):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
