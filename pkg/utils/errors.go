package utils

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("resource not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrNotConnected      = errors.New("realtime transport not connected")
	ErrAlreadySubscribed = errors.New("already subscribed to channel")
	ErrRequestTimeout    = errors.New("request timed out waiting for response")
	ErrMalformedPayload  = errors.New("malformed payload")
	ErrTransportClosed   = errors.New("realtime transport closed")
	ErrSimulationFailed  = errors.New("simulation failed")
)

type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func NewAppError(code string, message string, details ...string) *AppError {
	err := &AppError{
		Code:    code,
		Message: message,
	}
	if len(details) > 0 {
		err.Details = details[0]
	}
	return err
}

func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s - %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Common error codes
const (
	ErrCodeValidation   = "VALIDATION_ERROR"
	ErrCodeNotFound     = "NOT_FOUND"
	ErrCodeInternal     = "INTERNAL_ERROR"
	ErrCodeTimeout      = "REQUEST_TIMEOUT"
	ErrCodeRateLimited  = "RATE_LIMITED"
	ErrCodeNotConnected = "NOT_CONNECTED"
	ErrCodeSimulation   = "SIMULATION_ERROR"
)

// CodeFor maps a domain error onto the response code the gateway reports.
func CodeFor(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return ErrCodeNotFound
	case errors.Is(err, ErrInvalidInput):
		return ErrCodeValidation
	case errors.Is(err, ErrRequestTimeout):
		return ErrCodeTimeout
	case errors.Is(err, ErrNotConnected), errors.Is(err, ErrTransportClosed):
		return ErrCodeNotConnected
	case errors.Is(err, ErrSimulationFailed):
		return ErrCodeSimulation
	default:
		return ErrCodeInternal
	}
}
