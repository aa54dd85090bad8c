package autocompact

import (
	"context"
	"time"
)

// ToastVariant is the severity of a toast notification.
type ToastVariant string

const (
	ToastInfo    ToastVariant = "info"
	ToastSuccess ToastVariant = "success"
	ToastWarning ToastVariant = "warning"
	ToastError   ToastVariant = "error"
)

// Toast is a transient notification shown to the user.
type Toast struct {
	Title    string        `json:"title,omitempty"`
	Message  string        `json:"message"`
	Variant  ToastVariant  `json:"variant"`
	Duration time.Duration `json:"-"`
}

// MessageReader reads a session's message history.
type MessageReader interface {
	Messages(ctx context.Context, sessionID, directory string) ([]Message, error)
}

// Notifier shows toasts. Failures are never fatal to callers.
type Notifier interface {
	ShowToast(ctx context.Context, toast Toast) error
}

// Transport is the chat host as seen by the Executor.
type Transport interface {
	MessageReader
	Notifier

	// Summarize compacts the session's conversation using the given model.
	Summarize(ctx context.Context, sessionID, providerID, modelID, directory string) error

	// SubmitPrompt resubmits whatever the user has in the prompt box.
	SubmitPrompt(ctx context.Context, directory string) error
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, toast Toast) error

func (f NotifierFunc) ShowToast(ctx context.Context, toast Toast) error {
	return f(ctx, toast)
}
