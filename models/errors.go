package models

import (
	"errors"
	"fmt"
)

// ErrorKind classifies model construction and evaluation failures.
type ErrorKind string

const (
	KindValidation     ErrorKind = "VALIDATION"
	KindDomain         ErrorKind = "DOMAIN"
	KindNotInitialized ErrorKind = "NOT_INITIALIZED"
)

var (
	ErrValidation     = errors.New("invalid model input")
	ErrDomain         = errors.New("local volatility not positive")
	ErrNotInitialized = errors.New("model grid not initialized")
)

// ModelError carries the offending field alongside the error kind.
type ModelError struct {
	Kind    ErrorKind
	Field   string
	Message string
	Value   interface{}
}

func (e *ModelError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s (value: %v)", e.Kind, e.Field, e.Message, e.Value)
}

// Is lets errors.Is match a ModelError against the sentinel of its kind.
func (e *ModelError) Is(target error) bool {
	switch target {
	case ErrValidation:
		return e.Kind == KindValidation
	case ErrDomain:
		return e.Kind == KindDomain
	case ErrNotInitialized:
		return e.Kind == KindNotInitialized
	}
	return false
}

func validationError(field, message string, value interface{}) *ModelError {
	return &ModelError{Kind: KindValidation, Field: field, Message: message, Value: value}
}

func domainError(field, message string, value interface{}) *ModelError {
	return &ModelError{Kind: KindDomain, Field: field, Message: message, Value: value}
}
