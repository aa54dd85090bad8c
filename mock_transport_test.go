package autocompact

import (
	"context"
	"sync"
)

type summarizeCall struct {
	SessionID  string
	ProviderID string
	ModelID    string
	Directory  string
}

// mockTransport records calls and replays scripted failures.
type mockTransport struct {
	mu sync.Mutex

	messages    []Message
	messagesErr error

	// summarizeErrs[i] is returned by call i; later calls return summarizeErr.
	summarizeErrs  []error
	summarizeErr   error
	summarizeCalls []summarizeCall

	// summarizeGate, when set, holds every summarize call until closed.
	summarizeGate chan struct{}

	submitErr   error
	submitCalls []string

	toastErr error
	toasts   []Toast
}

func (m *mockTransport) Messages(ctx context.Context, sessionID, directory string) ([]Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.messagesErr != nil {
		return nil, m.messagesErr
	}
	return m.messages, nil
}

func (m *mockTransport) Summarize(ctx context.Context, sessionID, providerID, modelID, directory string) error {
	m.mu.Lock()
	n := len(m.summarizeCalls)
	m.summarizeCalls = append(m.summarizeCalls, summarizeCall{sessionID, providerID, modelID, directory})
	err := m.summarizeErr
	if n < len(m.summarizeErrs) {
		err = m.summarizeErrs[n]
	}
	gate := m.summarizeGate
	m.mu.Unlock()

	if gate != nil {
		<-gate
	}
	return err
}

func (m *mockTransport) SubmitPrompt(ctx context.Context, directory string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.submitCalls = append(m.submitCalls, directory)
	return m.submitErr
}

func (m *mockTransport) ShowToast(ctx context.Context, toast Toast) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.toasts = append(m.toasts, toast)
	return m.toastErr
}

func (m *mockTransport) summarizeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.summarizeCalls)
}

func (m *mockTransport) summarizeCallsFor(sessionID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.summarizeCalls {
		if c.SessionID == sessionID {
			n++
		}
	}
	return n
}

func (m *mockTransport) submitCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.submitCalls)
}

func (m *mockTransport) toastsByVariant(variant ToastVariant) []Toast {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Toast
	for _, t := range m.toasts {
		if t.Variant == variant {
			out = append(out, t)
		}
	}
	return out
}

func (m *mockTransport) toastCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.toasts)
}

// resultLog collects Executor results delivered through OnResult.
type resultLog struct {
	mu      sync.Mutex
	entries []loggedResult
}

type loggedResult struct {
	SessionID string
	Result    Result
}

func (l *resultLog) record(sessionID string, r Result) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, loggedResult{sessionID, r})
}

func (l *resultLog) outcomes(sessionID string) []Outcome {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []Outcome
	for _, e := range l.entries {
		if e.SessionID == sessionID {
			out = append(out, e.Result.Outcome)
		}
	}
	return out
}

func (l *resultLog) last(sessionID string, outcome Outcome) (Result, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := len(l.entries) - 1; i >= 0; i-- {
		e := l.entries[i]
		if e.SessionID == sessionID && e.Result.Outcome == outcome {
			return e.Result, true
		}
	}
	return Result{}, false
}
