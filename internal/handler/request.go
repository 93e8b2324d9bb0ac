package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"modulon/internal/common"
	"modulon/internal/model"
)

const maxBodyBytes = 1 << 20

var validate = validator.New(validator.WithRequiredStructEnabled())

// decode читает json из тела запроса и проверяет теги validate
func decode(writer http.ResponseWriter, request *http.Request, target any) error {
	request.Body = http.MaxBytesReader(writer, request.Body, maxBodyBytes)

	if err := json.NewDecoder(request.Body).Decode(target); err != nil {
		return common.BadRequest("Invalid JSON body.")
	}

	if err := validate.Struct(target); err != nil {
		return common.BadRequest(validationMessage(err))
	}
	return nil
}

func validationMessage(err error) string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) || len(validationErrors) == 0 {
		return "Invalid request."
	}

	messages := make([]string, 0, len(validationErrors))
	for _, fieldError := range validationErrors {
		field := lowerFirst(fieldError.Field())
		switch fieldError.Tag() {
		case "required":
			messages = append(messages, fmt.Sprintf("%s is required", field))
		case "email":
			messages = append(messages, fmt.Sprintf("%s must be an email", field))
		case "min":
			messages = append(messages, fmt.Sprintf("%s must be longer than or equal to %s characters", field, fieldError.Param()))
		case "oneof":
			messages = append(messages, fmt.Sprintf("%s must be one of: %s", field, fieldError.Param()))
		default:
			messages = append(messages, fmt.Sprintf("%s is invalid", field))
		}
	}
	return strings.Join(messages, "; ")
}

func lowerFirst(value string) string {
	if value == "" {
		return value
	}
	return strings.ToLower(value[:1]) + value[1:]
}

// clientContext ip и user-agent клиента. RemoteAddr уже заменен middleware.RealIP, если запрос пришел через прокси
func clientContext(request *http.Request) model.ClientContext {
	ip := request.RemoteAddr
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	return model.ClientContext{
		IP:         ip,
		DeviceInfo: request.UserAgent(),
	}
}
