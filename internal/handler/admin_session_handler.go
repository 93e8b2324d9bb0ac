package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"modulon/internal/common"
	"modulon/internal/model"
	"modulon/internal/service"
)

type AdminSessionHandler struct {
	sessions *service.SessionService
	log      logrus.FieldLogger
}

func NewAdminSessionHandler(sessions *service.SessionService, log logrus.FieldLogger) *AdminSessionHandler {
	return &AdminSessionHandler{sessions: sessions, log: log}
}

// List godoc
// @Summary Список сессий
// @Description Сессии всех пользователей, новые первыми. Поиск по ip, устройству и email
// @Tags Admin
// @Produce json
// @Param page query int false "номер страницы"
// @Param limit query int false "размер страницы, не больше 100"
// @Param search query string false "строка поиска"
// @Success 200 {object} model.Page[model.SessionView]
// @Router /admin/sessions [get]
func (handler *AdminSessionHandler) List(writer http.ResponseWriter, request *http.Request) {
	page, limit, err := parsePaging(request.URL.Query())
	if err != nil {
		writeError(writer, request, handler.log, err)
		return
	}

	sessions, err := handler.sessions.List(request.Context(), model.SessionFilter{
		Page:   page,
		Limit:  limit,
		Search: strings.TrimSpace(request.URL.Query().Get("search")),
	})
	if err != nil {
		writeError(writer, request, handler.log, err)
		return
	}
	writeJSON(writer, http.StatusOK, sessions)
}

func (handler *AdminSessionHandler) Terminate(writer http.ResponseWriter, request *http.Request) {
	deleted, err := handler.sessions.Terminate(request.Context(), chi.URLParam(request, "id"))
	if err != nil {
		writeError(writer, request, handler.log, err)
		return
	}
	if !deleted {
		writeError(writer, request, handler.log, common.NotFound("Session not found"))
		return
	}
	writeMessage(writer, http.StatusOK, "Session has been terminated.")
}

func (handler *AdminSessionHandler) TerminateAllForUser(writer http.ResponseWriter, request *http.Request) {
	count, err := handler.sessions.TerminateAllForAccount(request.Context(), chi.URLParam(request, "userId"))
	if err != nil {
		writeError(writer, request, handler.log, err)
		return
	}
	writeJSON(writer, http.StatusOK, &CountResponse{Message: "User sessions have been terminated.", Count: count})
}

func (handler *AdminSessionHandler) TerminateInactiveForUser(writer http.ResponseWriter, request *http.Request) {
	count, err := handler.sessions.TerminateInactiveForAccount(request.Context(), chi.URLParam(request, "userId"))
	if err != nil {
		writeError(writer, request, handler.log, err)
		return
	}
	writeJSON(writer, http.StatusOK, &CountResponse{Message: "Inactive user sessions have been terminated.", Count: count})
}

func (handler *AdminSessionHandler) TerminateAllInactive(writer http.ResponseWriter, request *http.Request) {
	count, err := handler.sessions.TerminateAllInactive(request.Context())
	if err != nil {
		writeError(writer, request, handler.log, err)
		return
	}
	writeJSON(writer, http.StatusOK, &CountResponse{Message: "Inactive sessions have been terminated.", Count: count})
}
