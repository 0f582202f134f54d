package domain

import "fmt"

// ErrorCode classifies adapter failures for logging and envelope responses.
type ErrorCode string

const (
	ErrAuthMissing     ErrorCode = "AUTH_MISSING"
	ErrAuthFailed      ErrorCode = "AUTH_FAILED"
	ErrFetchFailed     ErrorCode = "FETCH_FAILED"
	ErrHTTPError       ErrorCode = "HTTP_ERROR"
	ErrBlocked         ErrorCode = "BLOCKED"
	ErrCaptcha         ErrorCode = "CAPTCHA"
	ErrScrapeFailed    ErrorCode = "SCRAPE_FAILED"
	ErrScraperAPIError ErrorCode = "SCRAPER_API_ERROR"

	// HTTP-surface validation codes
	ErrInvalidAsset ErrorCode = "INVALID_ASSET"
	ErrNoPrice      ErrorCode = "NO_PRICE"
	ErrBadRequest   ErrorCode = "BAD_REQUEST"
)

// AdapterError is the typed failure an adapter reports for a round. The
// aggregator logs it uniformly and continues with the remaining adapters.
type AdapterError struct {
	Adapter string    // Adapter name, e.g. "newegg-scraper"
	Code    ErrorCode // Failure class
	Status  int       // Upstream HTTP status for HTTP_ERROR, 0 otherwise
	Message string
	Err     error // Underlying cause, optional
}

// Error implements the error interface.
func (e *AdapterError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s: %s (HTTP %d): %s", e.Adapter, e.Code, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Adapter, e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *AdapterError) Unwrap() error {
	return e.Err
}

// NewAdapterError builds an AdapterError without an underlying cause.
func NewAdapterError(adapter string, code ErrorCode, message string) *AdapterError {
	return &AdapterError{Adapter: adapter, Code: code, Message: message}
}

// WrapAdapterError builds an AdapterError wrapping an underlying cause.
func WrapAdapterError(adapter string, code ErrorCode, message string, err error) *AdapterError {
	return &AdapterError{Adapter: adapter, Code: code, Message: message, Err: err}
}
