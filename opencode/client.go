// Package opencode is a client for the opencode server's HTTP API. It
// implements autocompact.Transport and streams host events.
package opencode

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/deepnoodle-ai/autocompact"
	"github.com/deepnoodle-ai/autocompact/slogger"
	"github.com/deepnoodle-ai/wonton/retry"
)

var (
	DefaultBaseURL       = "http://127.0.0.1:4096"
	DefaultMaxRetries    = 2
	DefaultRetryBaseWait = 250 * time.Millisecond
)

var _ autocompact.Transport = &Client{}

// ClientOptions configures a Client.
type ClientOptions struct {
	// BaseURL is the server address. Defaults to DefaultBaseURL.
	BaseURL string

	// HTTPClient defaults to http.DefaultClient.
	HTTPClient *http.Client

	// Logger defaults to slogger.DefaultLogger.
	Logger slogger.Logger

	// MaxRetries applies to reads only. Summarize and prompt submission are
	// sent once; the Executor owns their retry policy.
	MaxRetries int

	// RetryBaseWait is the first backoff between read retries.
	RetryBaseWait time.Duration
}

// Client talks to one opencode server.
type Client struct {
	baseURL       string
	client        *http.Client
	logger        slogger.Logger
	maxRetries    int
	retryBaseWait time.Duration
}

// NewClient returns a Client.
func NewClient(opts ClientOptions) *Client {
	c := &Client{
		baseURL:       strings.TrimRight(opts.BaseURL, "/"),
		client:        opts.HTTPClient,
		logger:        opts.Logger,
		maxRetries:    opts.MaxRetries,
		retryBaseWait: opts.RetryBaseWait,
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.client == nil {
		c.client = http.DefaultClient
	}
	if c.logger == nil {
		c.logger = slogger.DefaultLogger
	}
	if c.maxRetries <= 0 {
		c.maxRetries = DefaultMaxRetries
	}
	if c.retryBaseWait <= 0 {
		c.retryBaseWait = DefaultRetryBaseWait
	}
	return c
}

// BaseURL returns the server address in use.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Messages returns the session's message history, oldest first.
func (c *Client) Messages(ctx context.Context, sessionID, directory string) ([]autocompact.Message, error) {
	endpoint := c.endpoint("/session/"+url.PathEscape(sessionID)+"/message", directory)
	var messages []autocompact.Message
	err := retry.DoSimple(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return retry.MarkPermanent(fmt.Errorf("error creating request: %w", err))
		}
		req.Header.Set("accept", "application/json")
		resp, err := c.client.Do(req)
		if err != nil {
			return fmt.Errorf("error making request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(resp.Body)
			if resp.StatusCode == http.StatusTooManyRequests {
				c.logger.Warn("rate limit exceeded",
					"status", resp.StatusCode, "body", string(body))
			}
			return NewError(OpMessages, resp.StatusCode, string(body))
		}
		messages = nil
		if err := json.NewDecoder(resp.Body).Decode(&messages); err != nil {
			return retry.MarkPermanent(fmt.Errorf("error decoding response: %w", err))
		}
		return nil
	}, retry.WithMaxAttempts(c.maxRetries+1),
		retry.WithBackoff(c.retryBaseWait, 5*time.Second),
		retry.WithRetryIf(retry.SkipPermanent()))
	if err != nil {
		return nil, err
	}
	return messages, nil
}

type summarizeRequest struct {
	ProviderID string `json:"providerID"`
	ModelID    string `json:"modelID"`
}

// Summarize asks the server to compact the session with the given model.
func (c *Client) Summarize(ctx context.Context, sessionID, providerID, modelID, directory string) error {
	endpoint := c.endpoint("/session/"+url.PathEscape(sessionID)+"/summarize", directory)
	return c.post(ctx, OpSummarize, endpoint, summarizeRequest{ProviderID: providerID, ModelID: modelID})
}

// SubmitPrompt submits the text currently in the TUI prompt.
func (c *Client) SubmitPrompt(ctx context.Context, directory string) error {
	return c.post(ctx, OpSubmitPrompt, c.endpoint("/tui/submit-prompt", directory), nil)
}

type toastRequest struct {
	Title    string                   `json:"title,omitempty"`
	Message  string                   `json:"message"`
	Variant  autocompact.ToastVariant `json:"variant"`
	Duration int64                    `json:"duration,omitempty"`
}

// ShowToast shows a toast in the TUI.
func (c *Client) ShowToast(ctx context.Context, toast autocompact.Toast) error {
	return c.post(ctx, OpShowToast, c.endpoint("/tui/show-toast", ""), toastRequest{
		Title:    toast.Title,
		Message:  toast.Message,
		Variant:  toast.Variant,
		Duration: toast.Duration.Milliseconds(),
	})
}

// Events subscribes to the server's event stream. The caller must Close the
// returned stream; cancelling ctx also ends it.
func (c *Client) Events(ctx context.Context, directory string) (*EventStream, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("/event", directory), nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("accept", "text/event-stream")
	req.Header.Set("cache-control", "no-cache")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error making request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, NewError(OpEvents, resp.StatusCode, string(body))
	}
	return newEventStream(resp.Body), nil
}

func (c *Client) post(ctx context.Context, op, endpoint string, payload any) error {
	var body io.Reader
	if payload != nil {
		jsonBody, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("error marshaling request: %w", err)
		}
		body = bytes.NewReader(jsonBody)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	if payload != nil {
		req.Header.Set("content-type", "application/json")
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("error making request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(resp.Body)
		return NewError(op, resp.StatusCode, string(respBody))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func (c *Client) endpoint(path, directory string) string {
	if directory == "" {
		return c.baseURL + path
	}
	return c.baseURL + path + "?" + url.Values{"directory": {directory}}.Encode()
}
