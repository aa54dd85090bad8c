// Package autocompact recovers chat sessions that fail because the
// conversation outgrew the model's context window.
//
// When the chat host reports a token-limit error, the [Hook] records it and
// hands the session to the [Executor], which asks the host to summarize
// ("compact") the conversation. Failed compactions are retried with
// exponential backoff up to [RetryConfig.MaxAttempts]; on success the user's
// pending prompt is resubmitted.
//
// The core types are:
//
//   - [State] holds per-session retry progress, pending flags and the last
//     observed [ParsedTokenLimitError].
//   - [Executor] runs the per-session compaction state machine.
//   - [Hook] turns host events into compaction attempts.
//   - [Transport] is the boundary to the chat host; the
//     [github.com/deepnoodle-ai/autocompact/opencode] package implements it.
//
// # Quick Start
//
//	client := opencode.NewClient(opencode.ClientOptions{BaseURL: "http://127.0.0.1:4096"})
//	executor, _ := autocompact.NewExecutor(autocompact.ExecutorOptions{
//	    Transport: client,
//	    Config:    autocompact.DefaultRetryConfig(),
//	})
//	defer executor.Close()
//	hook, _ := autocompact.NewHook(autocompact.HookOptions{
//	    Executor:  executor,
//	    Directory: "/path/to/project",
//	})
//	defer hook.Close()
//	hook.HandleEvent(ctx, event)
package autocompact
