package rest

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	ErrTransport          = errors.New("rest: transport failure")
	ErrResponse           = errors.New("rest: response error")
	ErrRetryExhausted     = errors.New("rest: retries exhausted")
	ErrUnsupportedMethod  = errors.New("rest: unsupported method")
	ErrInvalidRetryBudget = errors.New("rest: max retries must be at least 1")
)

// ErrorHTTPResponse is the JSON body Discord sends with most failed requests.
// https://discord.com/developers/docs/reference#error-messages
type ErrorHTTPResponse struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
	Errors  any    `json:"errors,omitempty"`
}

// RateLimitResponse is the JSON body of an HTTP 429.
// https://discord.com/developers/docs/topics/rate-limits#exceeding-a-rate-limit
type RateLimitResponse struct {
	RetryAfter float64 `json:"retry_after"`
	Message    string  `json:"message"`
	Global     bool    `json:"global"`
}

// Wait converts retry_after to a duration, saturating instead of overflowing.
func (r RateLimitResponse) Wait() time.Duration {
	if r.RetryAfter <= 0 || math.IsNaN(r.RetryAfter) {
		return 0
	}
	if r.RetryAfter >= math.MaxInt64/float64(time.Second) {
		return math.MaxInt64
	}
	return time.Duration(r.RetryAfter * float64(time.Second))
}

// TransportError means the HTTP exchange itself failed. It is never retried.
type TransportError struct {
	Method string
	URL    string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("rest: %s %s: %v", e.Method, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// ResponseError is a terminal failure for one call: a non-success status, or a
// 200/201/429 body that did not decode. Err holds the decode error when there is one.
type ResponseError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
	API        *ErrorHTTPResponse
	Err        error
}

func (e *ResponseError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("rest: %s %s: status %d: %v", e.Method, e.URL, e.StatusCode, e.Err)
	case e.API != nil && e.API.Message != "":
		return fmt.Sprintf("rest: %s %s: status %d: %s (code %d)", e.Method, e.URL, e.StatusCode, e.API.Message, e.API.Code)
	default:
		return fmt.Sprintf("rest: %s %s: status %d", e.Method, e.URL, e.StatusCode)
	}
}

func (e *ResponseError) Unwrap() error { return e.Err }

func (e *ResponseError) Is(target error) bool { return target == ErrResponse }

// RetryExhaustedError is returned once every attempt in the budget was throttled.
type RetryExhaustedError struct {
	Method    string
	URL       string
	Attempts  int
	LastLimit RateLimitResponse
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("rest: %s %s: rate limited on all %d attempts (last: %q)", e.Method, e.URL, e.Attempts, e.LastLimit.Message)
}

func (e *RetryExhaustedError) Is(target error) bool { return target == ErrRetryExhausted }
