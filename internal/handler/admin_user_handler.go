package handler

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"modulon/internal/common"
	"modulon/internal/model"
	"modulon/internal/security"
	"modulon/internal/service"
)

type AdminUserHandler struct {
	users *service.UserService
	log   logrus.FieldLogger
}

// CreateUserRequest аккаунт, создаваемый администратором
// swagger:model
type CreateUserRequest struct {
	Email            string      `json:"email" validate:"required,email"`
	Password         string      `json:"password" validate:"required,min=6"`
	Username         *string     `json:"username"`
	Name             *string     `json:"name"`
	Role             *model.Role `json:"role"`
	IsEmailConfirmed bool        `json:"isEmailConfirmed"`
}

// UpdateUserRequest частичное обновление аккаунта, отсутствующие поля не меняются
// swagger:model
type UpdateUserRequest struct {
	Username            *string     `json:"username"`
	Name                *string     `json:"name"`
	Password            *string     `json:"password"`
	Role                *model.Role `json:"role"`
	IsActive            *bool       `json:"isActive"`
	IsBlocked           *bool       `json:"isBlocked"`
	IsEmailConfirmed    *bool       `json:"isEmailConfirmed"`
	FailedLoginAttempts *int        `json:"failedLoginAttempts" validate:"omitempty,min=0"`
}

func NewAdminUserHandler(users *service.UserService, log logrus.FieldLogger) *AdminUserHandler {
	return &AdminUserHandler{users: users, log: log}
}

// List godoc
// @Summary Список пользователей
// @Tags Admin
// @Produce json
// @Param page query int false "номер страницы"
// @Param limit query int false "размер страницы, не больше 100"
// @Param sort query string false "поле и направление, например createdAt:desc"
// @Param search query string false "поиск по email, username и name"
// @Success 200 {object} model.Page[model.AccountView]
// @Router /admin/users [get]
func (handler *AdminUserHandler) List(writer http.ResponseWriter, request *http.Request) {
	filter, err := parseAccountFilter(request.URL.Query())
	if err != nil {
		writeError(writer, request, handler.log, err)
		return
	}

	page, err := handler.users.List(request.Context(), filter)
	if err != nil {
		writeError(writer, request, handler.log, err)
		return
	}
	writeJSON(writer, http.StatusOK, page)
}

func (handler *AdminUserHandler) Get(writer http.ResponseWriter, request *http.Request) {
	account, err := handler.users.Get(request.Context(), chi.URLParam(request, "id"))
	if err != nil {
		writeError(writer, request, handler.log, err)
		return
	}
	writeJSON(writer, http.StatusOK, account)
}

// Create godoc
// @Summary Создание пользователя
// @Description Роль нового аккаунта должна быть ниже роли администратора
// @Tags Admin
// @Accept json
// @Produce json
// @Param request body CreateUserRequest true "данные аккаунта"
// @Success 201 {object} MessageResponse
// @Failure 400 {object} ErrorResponse "невалидные данные или недопустимая роль"
// @Failure 409 {object} ErrorResponse "email уже занят"
// @Router /admin/users [post]
func (handler *AdminUserHandler) Create(writer http.ResponseWriter, request *http.Request) {
	actor, ok := actorFromRequest(request)
	if !ok {
		writeError(writer, request, handler.log, common.Unauthorized("Unauthorized"))
		return
	}

	var body CreateUserRequest
	if err := decode(writer, request, &body); err != nil {
		writeError(writer, request, handler.log, err)
		return
	}

	message, err := handler.users.Create(request.Context(), actor, service.CreateAccountInput{
		Email:            body.Email,
		Password:         body.Password,
		Username:         body.Username,
		Name:             body.Name,
		Role:             body.Role,
		IsEmailConfirmed: body.IsEmailConfirmed,
	})
	if err != nil {
		writeError(writer, request, handler.log, err)
		return
	}
	writeMessage(writer, http.StatusCreated, message)
}

func (handler *AdminUserHandler) Update(writer http.ResponseWriter, request *http.Request) {
	actor, ok := actorFromRequest(request)
	if !ok {
		writeError(writer, request, handler.log, common.Unauthorized("Unauthorized"))
		return
	}

	var body UpdateUserRequest
	if err := decode(writer, request, &body); err != nil {
		writeError(writer, request, handler.log, err)
		return
	}

	message, err := handler.users.Update(request.Context(), actor, chi.URLParam(request, "id"), service.UpdateAccountInput{
		Username:            body.Username,
		Name:                body.Name,
		Password:            body.Password,
		Role:                body.Role,
		IsActive:            body.IsActive,
		IsBlocked:           body.IsBlocked,
		IsEmailConfirmed:    body.IsEmailConfirmed,
		FailedLoginAttempts: body.FailedLoginAttempts,
	})
	if err != nil {
		writeError(writer, request, handler.log, err)
		return
	}
	writeMessage(writer, http.StatusOK, message)
}

func (handler *AdminUserHandler) Block(writer http.ResponseWriter, request *http.Request) {
	actor, ok := actorFromRequest(request)
	if !ok {
		writeError(writer, request, handler.log, common.Unauthorized("Unauthorized"))
		return
	}

	message, err := handler.users.Block(request.Context(), actor, chi.URLParam(request, "id"))
	if err != nil {
		writeError(writer, request, handler.log, err)
		return
	}
	writeMessage(writer, http.StatusOK, message)
}

func (handler *AdminUserHandler) Delete(writer http.ResponseWriter, request *http.Request) {
	actor, ok := actorFromRequest(request)
	if !ok {
		writeError(writer, request, handler.log, common.Unauthorized("Unauthorized"))
		return
	}

	message, err := handler.users.Delete(request.Context(), actor, chi.URLParam(request, "id"))
	if err != nil {
		writeError(writer, request, handler.log, err)
		return
	}
	writeMessage(writer, http.StatusOK, message)
}

func actorFromRequest(request *http.Request) (model.AccountSummary, bool) {
	claims, ok := security.ClaimsFromContext(request.Context())
	if !ok {
		return model.AccountSummary{}, false
	}
	return model.AccountSummary{ID: claims.AccountID(), Email: claims.Email, Role: claims.Role}, true
}

func parseAccountFilter(query url.Values) (model.AccountFilter, error) {
	page, limit, err := parsePaging(query)
	if err != nil {
		return model.AccountFilter{}, err
	}

	filter := model.AccountFilter{
		Page:     page,
		Limit:    limit,
		Search:   strings.TrimSpace(query.Get("search")),
		Email:    strings.TrimSpace(query.Get("email")),
		Username: strings.TrimSpace(query.Get("username")),
	}

	if sort := query.Get("sort"); sort != "" {
		field, direction, _ := strings.Cut(sort, ":")
		switch field {
		case "email", "username", "name", "role", "createdAt", "lastLoginAt":
			filter.SortField = field
		default:
			return model.AccountFilter{}, common.BadRequest("Unknown sort field.")
		}
		switch strings.ToLower(direction) {
		case "", "asc":
		case "desc":
			filter.SortDesc = true
		default:
			return model.AccountFilter{}, common.BadRequest("Sort direction must be asc or desc.")
		}
	}

	if value := query.Get("role"); value != "" {
		role, err := model.ParseRole(strings.ToUpper(value))
		if err != nil {
			return model.AccountFilter{}, common.BadRequest("Unknown role.")
		}
		filter.Role = role
	}

	if value := query.Get("isBlocked"); value != "" {
		blocked, err := strconv.ParseBool(value)
		if err != nil {
			return model.AccountFilter{}, common.BadRequest("isBlocked must be a boolean.")
		}
		filter.IsBlocked = &blocked
	}

	return filter, nil
}

// parsePaging читает page и limit. Отсутствующие значения остаются нулевыми, их заменяет сервис
func parsePaging(query url.Values) (int, int, error) {
	var page, limit int
	if value := query.Get("page"); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil || parsed < 1 {
			return 0, 0, common.BadRequest("page must be a positive integer.")
		}
		page = parsed
	}
	if value := query.Get("limit"); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil || parsed < 1 || parsed > model.MaxPageLimit {
			return 0, 0, common.BadRequest("limit must be between 1 and 100.")
		}
		limit = parsed
	}
	return page, limit, nil
}
