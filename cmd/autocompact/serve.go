package main

import (
	"context"
	"io"
	"time"

	"github.com/deepnoodle-ai/autocompact"
	"github.com/deepnoodle-ai/autocompact/config"
	"github.com/deepnoodle-ai/autocompact/notify"
	"github.com/deepnoodle-ai/autocompact/opencode"
	"github.com/deepnoodle-ai/autocompact/retry"
	"github.com/deepnoodle-ai/autocompact/slogger"
)

// Reconnect backoff for the event stream.
var (
	reconnectInitialDelay = 500 * time.Millisecond
	reconnectMaxDelay     = 30 * time.Second
)

// serve wires the client, executor and hook together and dispatches server
// events until ctx is cancelled.
func serve(ctx context.Context, cfg *config.Config, logger slogger.Logger, toastOut io.Writer) error {
	client := opencode.NewClient(opencode.ClientOptions{
		BaseURL: cfg.Server,
		Logger:  logger,
	})

	var notifier autocompact.Notifier = client
	if cfg.TerminalToasts {
		notifier = notify.Multi{client, notify.NewTerminal(notify.TerminalOptions{Writer: toastOut})}
	}

	filter, err := cfg.BuildFilter()
	if err != nil {
		return err
	}

	executor, err := autocompact.NewExecutor(autocompact.ExecutorOptions{
		Transport:   client,
		Notifier:    notifier,
		Config:      cfg.Retry,
		ResumeDelay: cfg.ResumeDelay(),
		Logger:      logger,
		OnResult: func(sessionID string, result autocompact.Result) {
			logger.Debug("compaction step",
				slogger.SessionKey, sessionID,
				"outcome", result.Outcome,
				"attempt", result.Attempt)
		},
	})
	if err != nil {
		return err
	}
	defer executor.Close()

	hook, err := autocompact.NewHook(autocompact.HookOptions{
		Executor:     executor,
		Directory:    cfg.Directory,
		Filter:       filter,
		TriggerDelay: cfg.TriggerDelay(),
		Logger:       logger,
	})
	if err != nil {
		return err
	}
	defer hook.Close()

	subscribe(ctx, client, cfg.Directory, hook, logger)
	return nil
}

// subscribe reads the event stream, reconnecting with backoff whenever it
// drops, until ctx is cancelled.
func subscribe(ctx context.Context, client *opencode.Client, directory string, hook *autocompact.Hook, logger slogger.Logger) {
	backoff := retry.Backoff{
		Initial: reconnectInitialDelay,
		Factor:  2,
		Max:     reconnectMaxDelay,
	}
	failures := 0
	for {
		stream, err := client.Events(ctx, directory)
		if err == nil {
			logger.Info("subscribed to events", "server", client.BaseURL(), "directory", directory)
			if dispatch(ctx, stream, hook, logger) > 0 {
				failures = 0
			}
			err = stream.Err()
			stream.Close()
		}
		if ctx.Err() != nil {
			return
		}

		failures++
		delay := backoff.Delay(failures)
		logger.Warn("event stream interrupted, reconnecting", "error", err, "delay", delay)
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

// dispatch hands each event to the hook and returns how many were read.
func dispatch(ctx context.Context, stream *opencode.EventStream, hook *autocompact.Hook, logger slogger.Logger) int {
	count := 0
	for {
		event, ok := stream.Next()
		if !ok {
			return count
		}
		count++
		if err := hook.HandleEvent(ctx, event); err != nil {
			logger.Warn("bad event", "type", event.Type, "error", err)
		}
	}
}
