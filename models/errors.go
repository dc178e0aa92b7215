package models

import (
	"errors"
	"fmt"
)

// Error codes used in logs, run summaries and API responses.
const (
	ErrCodeTimeout      = "SCRAPE_TIMEOUT"
	ErrCodeNavigation   = "NAVIGATION_FAILED"
	ErrCodeBrowserCrash = "BROWSER_CRASH"
	ErrCodeAuthFailed   = "AUTH_FAILED"
	ErrCodeNotFound     = "ELEMENT_NOT_FOUND"
	ErrCodeStale        = "STALE_ELEMENT"
	ErrCodeDetail       = "DETAIL_TIMEOUT"
	ErrCodeParse        = "PARSE_FAILED"
	ErrCodeStore        = "STORE_FAILED"
	ErrCodeInvalidInput = "INVALID_INPUT"
	ErrCodeRateLimited  = "RATE_LIMITED"
	ErrCodeUnauthorized = "UNAUTHORIZED"
	ErrCodeBusy         = "RUN_IN_PROGRESS"
	ErrCodeInternal     = "INTERNAL_ERROR"
)

// Sentinels for errors.Is. They match any ScrapeError carrying the same code.
var (
	ErrStale    = &ScrapeError{Code: ErrCodeStale}
	ErrNotFound = &ScrapeError{Code: ErrCodeNotFound}
	ErrTimeout  = &ScrapeError{Code: ErrCodeTimeout}
	ErrAuth     = &ScrapeError{Code: ErrCodeAuthFailed}
	ErrBusy     = &ScrapeError{Code: ErrCodeBusy}
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
	if e.Message == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ScrapeError) Unwrap() error {
	return e.Err
}

// Is reports a match against a code-only sentinel such as ErrStale.
func (e *ScrapeError) Is(target error) bool {
	t, ok := target.(*ScrapeError)
	if !ok || t.Message != "" || t.Err != nil {
		return false
	}
	return t.Code == e.Code
}

// NewScrapeError creates a new ScrapeError.
func NewScrapeError(code, message string, err error) *ScrapeError {
	return &ScrapeError{Code: code, Message: message, Err: err}
}

// ToDetail converts an internal error to an API-facing ErrorDetail.
func (e *ScrapeError) ToDetail() *ErrorDetail {
	return &ErrorDetail{Code: e.Code, Message: e.Message}
}

// CodeOf returns the code of the first ScrapeError in err's chain, or
// ErrCodeInternal.
func CodeOf(err error) string {
	var se *ScrapeError
	if errors.As(err, &se) {
		return se.Code
	}
	return ErrCodeInternal
}
