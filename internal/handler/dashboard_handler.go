package handler

import (
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"

	"modulon/internal/common"
	"modulon/internal/model"
	"modulon/internal/service"
)

type DashboardHandler struct {
	dashboard *service.DashboardService
	log       logrus.FieldLogger
}

// UpdateDashboardRequest плоский набор полей аккаунта и персональных данных.
// Отсутствующее поле не меняется, null очищает значение. Поле role всегда отклоняется
// swagger:model
type UpdateDashboardRequest struct {
	model.AccountPatch
	model.PersonalDataPatch
	Role json.RawMessage `json:"role"`
}

// ChangePasswordRequest текущий и новый пароль
// swagger:model
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=8"`
}

func NewDashboardHandler(dashboard *service.DashboardService, log logrus.FieldLogger) *DashboardHandler {
	return &DashboardHandler{dashboard: dashboard, log: log}
}

// Get godoc
// @Summary Личный кабинет
// @Tags Dashboard
// @Produce json
// @Success 200 {object} model.Dashboard
// @Router /user/dashboard [get]
func (handler *DashboardHandler) Get(writer http.ResponseWriter, request *http.Request) {
	actor, ok := actorFromRequest(request)
	if !ok {
		writeError(writer, request, handler.log, common.Unauthorized("Unauthorized"))
		return
	}

	dashboard, err := handler.dashboard.Get(request.Context(), actor.ID)
	if err != nil {
		writeError(writer, request, handler.log, err)
		return
	}
	writeJSON(writer, http.StatusOK, dashboard)
}

// Update godoc
// @Summary Изменение личного кабинета
// @Tags Dashboard
// @Accept json
// @Produce json
// @Param request body UpdateDashboardRequest true "изменяемые поля"
// @Success 200 {object} MessageResponse
// @Failure 403 {object} ErrorResponse "попытка изменить собственную роль"
// @Router /user/dashboard [patch]
func (handler *DashboardHandler) Update(writer http.ResponseWriter, request *http.Request) {
	actor, ok := actorFromRequest(request)
	if !ok {
		writeError(writer, request, handler.log, common.Unauthorized("Unauthorized"))
		return
	}

	var body UpdateDashboardRequest
	if err := decode(writer, request, &body); err != nil {
		writeError(writer, request, handler.log, err)
		return
	}

	message, err := handler.dashboard.Update(request.Context(), actor.ID, service.DashboardUpdate{
		RoleSubmitted: body.Role != nil,
		Account:       body.AccountPatch,
		Personal:      body.PersonalDataPatch,
	})
	if err != nil {
		writeError(writer, request, handler.log, err)
		return
	}
	writeMessage(writer, http.StatusOK, message)
}

func (handler *DashboardHandler) ChangePassword(writer http.ResponseWriter, request *http.Request) {
	actor, ok := actorFromRequest(request)
	if !ok {
		writeError(writer, request, handler.log, common.Unauthorized("Unauthorized"))
		return
	}

	var body ChangePasswordRequest
	if err := decode(writer, request, &body); err != nil {
		writeError(writer, request, handler.log, err)
		return
	}

	if err := handler.dashboard.ChangePassword(request.Context(), actor.ID, body.CurrentPassword, body.NewPassword); err != nil {
		writeError(writer, request, handler.log, err)
		return
	}
	writeMessage(writer, http.StatusOK, "Password changed successfully.")
}
