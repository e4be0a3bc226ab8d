package gmo

import (
	"errors"
	"fmt"

	"github.com/sony/gobreaker"
)

// ErrTransient marks failures worth retrying on the next cycle: network
// errors, HTTP 5xx, rate limiting. Wrapped errors carry the cause.
var ErrTransient = errors.New("transient exchange error")

// APIError is a business rejection from the exchange: the HTTP exchange
// succeeded but the response envelope carried a nonzero status. These are
// not retried automatically.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("exchange rejected request: %s %s (status %d)", e.Code, e.Message, e.Status)
	}
	return fmt.Sprintf("exchange rejected request (status %d)", e.Status)
}

// IsTransient reports whether err should be retried on the next cycle.
// Breaker-open errors count as transient: the exchange may recover.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrTransient) ||
		errors.Is(err, gobreaker.ErrOpenState) ||
		errors.Is(err, gobreaker.ErrTooManyRequests)
}

// IsRejection reports whether err is a business rejection (insufficient
// margin, invalid size) that must be surfaced without retry.
func IsRejection(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr)
}
