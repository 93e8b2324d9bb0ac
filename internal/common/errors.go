// Package common содержит ошибки, общие для слоев репозиториев, сервисов и обработчиков.
// Сравнивать ошибки следует через errors.Is
package common

import (
	"errors"
	"fmt"
)

var (
	ErrConflict          = errors.New("conflict")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrNotFound          = errors.New("not found")
	ErrBadRequest        = errors.New("bad request")
	ErrForbidden         = errors.New("forbidden")
	ErrInvalidRoleChange = errors.New("invalid role change")
	ErrInternal          = errors.New("internal error")

	// ErrSelfModificationForbidden частный случай ErrForbidden
	ErrSelfModificationForbidden = fmt.Errorf("self modification forbidden: %w", ErrForbidden)
)

// Error ошибка с сообщением для клиента. Kind определяет класс ошибки и http-статус
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func NewError(kind error, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Message возвращает сообщение для клиента, если оно задано в цепочке ошибок
func Message(err error) (string, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Message, true
	}
	return "", false
}

func Conflict(message string) error      { return NewError(ErrConflict, message) }
func Unauthorized(message string) error  { return NewError(ErrUnauthorized, message) }
func NotFound(message string) error      { return NewError(ErrNotFound, message) }
func BadRequest(message string) error    { return NewError(ErrBadRequest, message) }
func Forbidden(message string) error     { return NewError(ErrForbidden, message) }
func InvalidRoleChange(message string) error {
	return NewError(ErrInvalidRoleChange, message)
}
func SelfModificationForbidden(message string) error {
	return NewError(ErrSelfModificationForbidden, message)
}
