package connectors

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrEmptyCompletion = errors.New("generative backend returned no text")
	ErrBackendDisabled = errors.New("generative backend disabled")
)

// ThrottleError — бэкенд попросил подождать (HTTP 429 + Retry-After).
type ThrottleError struct {
	RetryAfter time.Duration
	Cause      error
}

func (e *ThrottleError) Error() string {
	return fmt.Sprintf("throttled: retry after %v (cause: %v)", e.RetryAfter, e.Cause)
}

func (e *ThrottleError) Unwrap() error { return e.Cause }

// StatusError — неуспешный HTTP-ответ бэкенда.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("gemini api error (status %d): %s", e.Code, e.Body)
}
