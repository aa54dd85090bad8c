package autocompact

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/deepnoodle-ai/autocompact/retry"
	"github.com/deepnoodle-ai/autocompact/slogger"
)

// HookOptions configures a Hook.
type HookOptions struct {
	// Executor runs compactions. Required.
	Executor *Executor

	// Directory is the project directory passed to every host call.
	Directory string

	// Filter limits which sessions are handled. Nil handles everything.
	Filter *Filter

	// TriggerDelay is the pause between seeing a token-limit error and
	// starting compaction, giving the host time to settle the failed turn.
	// Defaults to DefaultTriggerDelay.
	TriggerDelay time.Duration

	// Logger defaults to slogger.DefaultLogger.
	Logger slogger.Logger
}

// Hook watches chat host events for token-limit failures and hands affected
// sessions to the Executor. Compactions run off the caller's goroutine so a
// slow session never holds up events for the others.
type Hook struct {
	executor     *Executor
	state        *State
	directory    string
	filter       *Filter
	triggerDelay time.Duration
	logger       slogger.Logger
	scheduler    *retry.Scheduler
}

// NewHook returns a Hook. Call Close to cancel compactions not yet started.
func NewHook(opts HookOptions) (*Hook, error) {
	if opts.Executor == nil {
		return nil, ErrNoExecutor
	}
	if opts.TriggerDelay <= 0 {
		opts.TriggerDelay = DefaultTriggerDelay
	}
	if opts.Logger == nil {
		opts.Logger = slogger.DefaultLogger
	}
	return &Hook{
		executor:     opts.Executor,
		state:        opts.Executor.State(),
		directory:    opts.Directory,
		filter:       opts.Filter,
		triggerDelay: opts.TriggerDelay,
		logger:       opts.Logger,
		scheduler:    retry.NewScheduler(),
	}, nil
}

// Close cancels compactions that have not started yet.
func (h *Hook) Close() {
	h.scheduler.Close()
}

type sessionErrorProps struct {
	SessionID string          `json:"sessionID"`
	Error     json.RawMessage `json:"error"`
}

type sessionIDProps struct {
	SessionID string `json:"sessionID"`
}

type messageUpdatedProps struct {
	Info MessageInfo `json:"info"`
}

type sessionDeletedProps struct {
	Info struct {
		ID string `json:"id"`
	} `json:"info"`
}

// HandleEvent reacts to one host event. Unknown event types are ignored; an
// error is returned only when a known event's properties cannot be decoded.
func (h *Hook) HandleEvent(ctx context.Context, event Event) error {
	switch event.Type {
	case EventSessionError:
		var props sessionErrorProps
		if err := decodeProps(event, &props); err != nil {
			return err
		}
		if props.SessionID == "" {
			return nil
		}
		if parsed, ok := ParseTokenLimitError(props.Error); ok {
			h.onTokenLimit(ctx, props.SessionID, parsed)
		}

	case EventMessageUpdated:
		var props messageUpdatedProps
		if err := decodeProps(event, &props); err != nil {
			return err
		}
		info := props.Info
		if info.Role != RoleAssistant || info.SessionID == "" || len(info.Error) == 0 {
			return nil
		}
		if parsed, ok := ParseTokenLimitError(info.Error); ok {
			if parsed.ProviderID == "" {
				parsed.ProviderID = info.ProviderID
			}
			if parsed.ModelID == "" {
				parsed.ModelID = info.ModelID
			}
			h.onTokenLimit(ctx, info.SessionID, parsed)
		}

	case EventSessionIdle:
		var props sessionIDProps
		if err := decodeProps(event, &props); err != nil {
			return err
		}
		if props.SessionID == "" || !h.state.IsPending(props.SessionID) {
			return nil
		}
		if h.executor.RetryPending(props.SessionID) {
			return nil
		}
		h.schedule(props.SessionID, 0)

	case EventSessionDeleted:
		var props sessionDeletedProps
		if err := decodeProps(event, &props); err != nil {
			return err
		}
		if props.Info.ID == "" {
			return nil
		}
		h.scheduler.Cancel(props.Info.ID)
		h.executor.Forget(props.Info.ID)
		h.logger.Debug("session deleted, compaction state dropped", slogger.SessionKey, props.Info.ID)
	}
	return nil
}

func (h *Hook) onTokenLimit(ctx context.Context, sessionID string, parsed *ParsedTokenLimitError) {
	logger := slogger.ForSession(h.logger, sessionID)
	if !h.filter.AllowsDirectory(h.directory) {
		logger.Debug("token limit ignored: directory filtered", "directory", h.directory)
		return
	}
	if !h.filter.AllowsModel(parsed.ProviderID, parsed.ModelID) {
		logger.Debug("token limit ignored: model excluded",
			"provider_id", parsed.ProviderID,
			"model_id", parsed.ModelID)
		return
	}

	h.state.SetError(sessionID, parsed)
	if h.executor.RetryPending(sessionID) {
		// The queued retry keeps the model it was scheduled with. The
		// refreshed error only fills gaps in later lookups.
		return
	}
	h.state.MarkPending(sessionID)

	logger.Info("token limit hit",
		"current_tokens", parsed.CurrentTokens,
		"max_tokens", parsed.MaxTokens,
		"request_id", parsed.RequestID)
	message := "Context limit reached. Compacting conversation..."
	if parsed.CurrentTokens > 0 && parsed.MaxTokens > 0 {
		message = fmt.Sprintf("%d/%d tokens used. Compacting conversation...",
			parsed.CurrentTokens, parsed.MaxTokens)
	}
	if err := h.executor.notifier.ShowToast(ctx, Toast{
		Title:    "Context Limit Hit",
		Message:  message,
		Variant:  ToastInfo,
		Duration: 3 * time.Second,
	}); err != nil {
		logger.Debug("toast failed", "error", err)
	}

	h.schedule(sessionID, h.triggerDelay)
}

func (h *Hook) schedule(sessionID string, delay time.Duration) {
	h.scheduler.Schedule(sessionID, delay, func(ctx context.Context) {
		h.compact(ctx, sessionID)
	})
}

// compact resolves the model identifiers and runs one compaction attempt.
// The last assistant turn is preferred; the recorded error fills any gaps.
func (h *Hook) compact(ctx context.Context, sessionID string) Result {
	if !h.state.IsPending(sessionID) {
		return Result{Outcome: OutcomeSkipped}
	}
	var trigger TriggerMessage
	if turn, ok := LastAssistantTurn(ctx, h.executor.transport, sessionID, h.directory); ok {
		trigger.ProviderID = turn.ProviderID
		trigger.ModelID = turn.ModelID
	}
	if parsed, ok := h.state.Error(sessionID); ok {
		if trigger.ProviderID == "" {
			trigger.ProviderID = parsed.ProviderID
		}
		if trigger.ModelID == "" {
			trigger.ModelID = parsed.ModelID
		}
	}
	return h.executor.Execute(ctx, sessionID, trigger, h.directory)
}

func decodeProps(event Event, v any) error {
	if len(event.Properties) == 0 {
		return nil
	}
	if err := json.Unmarshal(event.Properties, v); err != nil {
		return fmt.Errorf("decode %s properties: %w", event.Type, err)
	}
	return nil
}
