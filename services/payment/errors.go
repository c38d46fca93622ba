package payment

import (
	"errors"
	"fmt"
)

var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
	ErrForbidden  = errors.New("forbidden")
)

// Messages surfaced to API clients.
const (
	MsgTargetRequired = "Заполните одно из полей 'paid_course' или 'paid_lesson'."
	MsgTargetBoth     = "Заполните только одно из полей: 'paid_course' или 'paid_lesson'."
	MsgFreeItem       = "Данный курс бесплатный"
	MsgUnknownMethod  = "Неверный способ оплаты"
)

// ValidationError is a business-rule violation in a payment request.
// It matches ErrValidation under errors.Is.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func validationError(msg string) error {
	return &ValidationError{Message: msg}
}

// GatewayError wraps a failure returned by the checkout provider
type GatewayError struct {
	Op  string
	Err error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway: %s: %v", e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }
