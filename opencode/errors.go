package opencode

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/deepnoodle-ai/wonton/retry"
)

// Operations reported in APIError.
const (
	OpMessages     = "list messages"
	OpSummarize    = "summarize"
	OpSubmitPrompt = "submit prompt"
	OpShowToast    = "show toast"
	OpEvents       = "subscribe events"
)

// APIError is a non-success response from the opencode server.
type APIError struct {
	op         string
	statusCode int
	body       string
}

func (e *APIError) Error() string {
	body := strings.TrimSpace(e.body)
	if body == "" {
		body = http.StatusText(e.statusCode)
	}
	return fmt.Sprintf("opencode %s failed (status %d): %s", e.op, e.statusCode, body)
}

// Op names the request that failed.
func (e *APIError) Op() string {
	return e.op
}

func (e *APIError) StatusCode() int {
	return e.statusCode
}

// Retryable reports whether repeating the request may succeed.
func (e *APIError) Retryable() bool {
	return retryableStatus(e.statusCode)
}

// NewError returns an APIError for op. Statuses that will not change on
// retry are marked permanent so retry.SkipPermanent stops early.
func NewError(op string, statusCode int, body string) error {
	err := &APIError{op: op, statusCode: statusCode, body: body}
	if !err.Retryable() {
		return retry.MarkPermanent(err)
	}
	return err
}

// The server answers 5xx while a session is busy or a provider is down.
func retryableStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}
