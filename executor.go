package autocompact

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/deepnoodle-ai/autocompact/retry"
	"github.com/deepnoodle-ai/autocompact/slogger"
)

// Outcome is how one Execute call (or scheduled retry) ended.
type Outcome string

const (
	// OutcomeSucceeded: the conversation was compacted and state cleared.
	OutcomeSucceeded Outcome = "succeeded"

	// OutcomeRetryScheduled: compaction failed and another attempt is queued.
	OutcomeRetryScheduled Outcome = "retry_scheduled"

	// OutcomeExhausted: attempts ran out; state cleared and the user told.
	OutcomeExhausted Outcome = "exhausted"

	// OutcomeStalled: the model identifiers are unknown so nothing was tried.
	OutcomeStalled Outcome = "stalled"

	// OutcomeSkipped: an attempt is already running or queued for the session.
	OutcomeSkipped Outcome = "skipped"

	// OutcomeResumed: the post-compaction prompt resubmission ran.
	OutcomeResumed Outcome = "resumed"

	// OutcomeCancelled: the session was forgotten while its attempt ran, so
	// the result was discarded and nothing follows it.
	OutcomeCancelled Outcome = "cancelled"
)

// Result describes one step of a session's compaction.
type Result struct {
	Outcome Outcome

	// Attempt is the session's attempt count after this step.
	Attempt int

	// Delay is the wait before the queued retry, if any.
	Delay time.Duration

	// Err is the summarize failure that drove a retry or exhaustion.
	Err error

	// Notices lists best-effort operations performed during this step.
	Notices []BestEffort
}

// ExecutorOptions configures an Executor.
type ExecutorOptions struct {
	// Transport is the chat host. Required.
	Transport Transport

	// Notifier receives toasts. Defaults to Transport.
	Notifier Notifier

	// State is the session registry. Defaults to a new State.
	State *State

	// Config is the retry policy. The zero value means DefaultRetryConfig.
	Config RetryConfig

	// ResumeDelay is the wait between a successful compaction and the prompt
	// resubmission. Defaults to DefaultResumeDelay.
	ResumeDelay time.Duration

	// Logger defaults to slogger.DefaultLogger.
	Logger slogger.Logger

	// OnResult, when set, is called after every step, including scheduled
	// retries and resubmissions.
	OnResult func(sessionID string, result Result)

	// Now defaults to time.Now.
	Now func() time.Time
}

// Executor runs the compaction state machine for each session:
//
//	Idle -> Attempting(n) -> Succeeded | Attempting(n+1) | Exhausted
//
// Attempts for one session never overlap; a retry starts only after the
// previous attempt failed and its backoff elapsed. Sessions are independent.
type Executor struct {
	transport   Transport
	notifier    Notifier
	state       *State
	config      RetryConfig
	backoff     retry.Backoff
	resumeDelay time.Duration
	logger      slogger.Logger
	onResult    func(string, Result)
	now         func() time.Time
	scheduler   *retry.Scheduler

	mu        sync.Mutex
	running   map[string]struct{}
	forgotten map[string]struct{}
}

// NewExecutor returns an Executor. Call Close to cancel queued work.
func NewExecutor(opts ExecutorOptions) (*Executor, error) {
	if opts.Transport == nil {
		return nil, ErrNoTransport
	}
	if opts.Config == (RetryConfig{}) {
		opts.Config = DefaultRetryConfig()
	}
	if err := opts.Config.Validate(); err != nil {
		return nil, err
	}
	if opts.Notifier == nil {
		opts.Notifier = opts.Transport
	}
	if opts.State == nil {
		opts.State = NewState()
	}
	if opts.ResumeDelay <= 0 {
		opts.ResumeDelay = DefaultResumeDelay
	}
	if opts.Logger == nil {
		opts.Logger = slogger.DefaultLogger
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Executor{
		transport:   opts.Transport,
		notifier:    opts.Notifier,
		state:       opts.State,
		config:      opts.Config,
		backoff:     opts.Config.Backoff(),
		resumeDelay: opts.ResumeDelay,
		logger:      opts.Logger,
		onResult:    opts.OnResult,
		now:         opts.Now,
		scheduler:   retry.NewScheduler(),
		running:     map[string]struct{}{},
		forgotten:   map[string]struct{}{},
	}, nil
}

// State returns the registry the Executor reads and clears.
func (e *Executor) State() *State {
	return e.state
}

// Config returns the retry policy.
func (e *Executor) Config() RetryConfig {
	return e.config
}

// Execute makes one compaction attempt for the session. Failures are handled
// internally: they queue a retry or, once attempts run out, clear the session
// and notify the user. Nothing is returned as an error.
func (e *Executor) Execute(ctx context.Context, sessionID string, trigger TriggerMessage, directory string) Result {
	if !e.begin(sessionID) {
		e.logger.Debug("compaction already in progress", slogger.SessionKey, sessionID)
		return Result{Outcome: OutcomeSkipped}
	}
	result, next := e.attempt(ctx, sessionID, trigger, directory)
	e.end(sessionID, next)
	e.report(sessionID, result)
	return result
}

// RetryPending reports whether a retry is queued for the session.
func (e *Executor) RetryPending(sessionID string) bool {
	return e.scheduler.Pending(retryKey(sessionID))
}

// Forget cancels any queued retry or resubmission for the session and clears
// its state. Used when the session itself goes away. An attempt already in
// flight finishes its summarize call, but its outcome is discarded: no toast,
// no retry and no resubmission follow it.
func (e *Executor) Forget(sessionID string) {
	e.mu.Lock()
	e.scheduler.Cancel(retryKey(sessionID))
	e.scheduler.Cancel(resumeKey(sessionID))
	if _, ok := e.running[sessionID]; ok {
		e.forgotten[sessionID] = struct{}{}
	}
	e.mu.Unlock()
	e.state.Clear(sessionID)
}

// Close cancels all queued work, waits for running tasks and clears the
// registry.
func (e *Executor) Close() {
	e.scheduler.Close()
	e.state.Reset()
}

// followUp is the work to queue once the current attempt has finished:
// either a retry after delay or, when resume is set, the prompt resubmission.
type followUp struct {
	resume    bool
	delay     time.Duration
	trigger   TriggerMessage
	directory string
}

func (e *Executor) begin(sessionID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.running[sessionID]; ok {
		return false
	}
	if e.scheduler.Pending(retryKey(sessionID)) {
		return false
	}
	delete(e.forgotten, sessionID)
	e.running[sessionID] = struct{}{}
	return true
}

// forgottenWhileRunning reports whether Forget was called for the session
// after its current attempt started.
func (e *Executor) forgottenWhileRunning(sessionID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.forgotten[sessionID]
	return ok
}

// end releases the session and queues the follow-up under the same lock, so
// no other caller can start an attempt in between. A session forgotten during
// the attempt gets no follow-up.
func (e *Executor) end(sessionID string, next *followUp) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.running, sessionID)
	if _, ok := e.forgotten[sessionID]; ok {
		delete(e.forgotten, sessionID)
		return
	}
	if next == nil {
		return
	}
	if next.resume {
		e.scheduleResume(sessionID, next.directory)
		return
	}
	e.scheduler.Schedule(retryKey(sessionID), next.delay, func(ctx context.Context) {
		if !e.begin(sessionID) {
			return
		}
		result, again := e.attempt(ctx, sessionID, next.trigger, next.directory)
		e.end(sessionID, again)
		e.report(sessionID, result)
	})
}

func (e *Executor) attempt(ctx context.Context, sessionID string, trigger TriggerMessage, directory string) (Result, *followUp) {
	logger := slogger.ForSession(e.logger, sessionID)

	current := e.state.GetOrCreate(sessionID)
	if current.Attempt >= e.config.MaxAttempts {
		return e.exhaust(ctx, logger, sessionID, current.Attempt, nil), nil
	}

	if trigger.ProviderID == "" || trigger.ModelID == "" {
		logger.Warn("compaction stalled: provider or model unknown",
			"attempt", current.Attempt,
			"provider_id", trigger.ProviderID,
			"model_id", trigger.ModelID)
		return Result{Outcome: OutcomeStalled, Attempt: current.Attempt}, nil
	}

	attempt := e.state.RecordAttempt(sessionID, e.now())
	logger.Info("compacting session",
		"attempt", attempt,
		"max_attempts", e.config.MaxAttempts,
		"provider_id", trigger.ProviderID,
		"model_id", trigger.ModelID)

	err := e.transport.Summarize(ctx, sessionID, trigger.ProviderID, trigger.ModelID, directory)
	if e.forgottenWhileRunning(sessionID) {
		logger.Debug("session forgotten during compaction", "attempt", attempt, "error", err)
		return Result{Outcome: OutcomeCancelled, Attempt: attempt, Err: err}, nil
	}
	if err == nil {
		e.state.Clear(sessionID)
		logger.Info("session compacted", "attempt", attempt)
		return Result{Outcome: OutcomeSucceeded, Attempt: attempt}, &followUp{resume: true, directory: directory}
	}

	if !e.config.ShouldRetry(attempt) {
		return e.exhaust(ctx, logger, sessionID, attempt, err), nil
	}

	delay := e.backoff.Delay(attempt)
	logger.Warn("compaction failed, retrying",
		"attempt", attempt,
		"max_attempts", e.config.MaxAttempts,
		"delay", delay,
		"error", err)
	seconds := int(delay.Round(time.Second) / time.Second)
	notice := e.toast(ctx, Toast{
		Title:    "Auto Compact Retry",
		Message:  fmt.Sprintf("Attempt %d/%d failed. Retrying in %ds...", attempt, e.config.MaxAttempts, seconds),
		Variant:  ToastWarning,
		Duration: delay,
	})
	result := Result{
		Outcome: OutcomeRetryScheduled,
		Attempt: attempt,
		Delay:   delay,
		Err:     err,
		Notices: []BestEffort{notice},
	}
	return result, &followUp{delay: delay, trigger: trigger, directory: directory}
}

func (e *Executor) exhaust(ctx context.Context, logger slogger.Logger, sessionID string, attempts int, cause error) Result {
	e.state.Clear(sessionID)
	logger.Error("compaction retries exhausted", "attempts", attempts, "error", cause)
	notice := e.toast(ctx, Toast{
		Title:    "Auto Compact Failed",
		Message:  fmt.Sprintf("Failed after %d attempts. Please try /compact manually.", attempts),
		Variant:  ToastError,
		Duration: 5 * time.Second,
	})
	return Result{
		Outcome: OutcomeExhausted,
		Attempt: attempts,
		Err:     cause,
		Notices: []BestEffort{notice},
	}
}

// scheduleResume queues the prompt resubmission. Called with e.mu held.
func (e *Executor) scheduleResume(sessionID, directory string) {
	e.scheduler.Schedule(resumeKey(sessionID), e.resumeDelay, func(ctx context.Context) {
		err := e.transport.SubmitPrompt(ctx, directory)
		if err != nil {
			e.logger.Debug("prompt resubmission failed", slogger.SessionKey, sessionID, "error", err)
		}
		e.report(sessionID, Result{
			Outcome: OutcomeResumed,
			Notices: []BestEffort{{Op: OpSubmitPrompt, Err: err}},
		})
	})
}

func (e *Executor) toast(ctx context.Context, toast Toast) BestEffort {
	err := e.notifier.ShowToast(ctx, toast)
	if err != nil {
		e.logger.Debug("toast failed", "title", toast.Title, "error", err)
	}
	return BestEffort{Op: OpToast, Err: err}
}

func (e *Executor) report(sessionID string, result Result) {
	if e.onResult != nil {
		e.onResult(sessionID, result)
	}
}

func retryKey(sessionID string) string  { return "retry:" + sessionID }
func resumeKey(sessionID string) string { return "resume:" + sessionID }
