package models

import (
	"fmt"
	"strings"
)

// Error codes used in API responses and internal error handling.
const (
	ErrCodeTimeout      = "SCRAPE_TIMEOUT"
	ErrCodeNavigation   = "NAVIGATION_FAILED"
	ErrCodeParse        = "PARSE_FAILED"
	ErrCodeDriverInit   = "DRIVER_INIT_FAILED"
	ErrCodeInvalidInput = "INVALID_INPUT"
	ErrCodeRateLimited  = "RATE_LIMITED"
	ErrCodeUnauthorized = "UNAUTHORIZED"
	ErrCodeInternal     = "INTERNAL_ERROR"
)

// ErrorDetail is the structured error in API responses.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ScrapeError is the internal error type carrying an error code.
// It implements the error interface and supports error wrapping via Unwrap.
type ScrapeError struct {
	Code    string
	Message string
	Err     error // wrapped original error
}

func (e *ScrapeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ScrapeError) Unwrap() error {
	return e.Err
}

// NewScrapeError creates a new ScrapeError.
func NewScrapeError(code, message string, err error) *ScrapeError {
	return &ScrapeError{Code: code, Message: message, Err: err}
}

// ToDetail converts an internal error to an API-facing ErrorDetail.
func (e *ScrapeError) ToDetail() *ErrorDetail {
	return &ErrorDetail{Code: e.Code, Message: e.Message}
}

// StrategyFailure records why one browser launch strategy did not produce a session.
type StrategyFailure struct {
	Strategy string
	Err      error
}

// DriverInitializationError is returned when no launch strategy produced a
// working browser session. It keeps every attempt so the environment problem
// can be diagnosed from a single message.
type DriverInitializationError struct {
	Attempts []StrategyFailure
}

func (e *DriverInitializationError) Error() string {
	var b strings.Builder
	b.WriteString("unable to initialise browser, attempted strategies:")
	if len(e.Attempts) == 0 {
		b.WriteString(" none")
	}
	for _, a := range e.Attempts {
		fmt.Fprintf(&b, "\n - %s: %v", a.Strategy, a.Err)
	}
	return b.String()
}

// Unwrap exposes the per-strategy causes to errors.Is / errors.As.
func (e *DriverInitializationError) Unwrap() []error {
	errs := make([]error, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		if a.Err != nil {
			errs = append(errs, a.Err)
		}
	}
	return errs
}

// Strategies returns the names of the attempted strategies in order.
func (e *DriverInitializationError) Strategies() []string {
	names := make([]string, len(e.Attempts))
	for i, a := range e.Attempts {
		names[i] = a.Strategy
	}
	return names
}

// ToDetail converts the error to an API-facing ErrorDetail.
func (e *DriverInitializationError) ToDetail() *ErrorDetail {
	return &ErrorDetail{Code: ErrCodeDriverInit, Message: e.Error()}
}
