package main

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/deepnoodle-ai/autocompact/config"
	"github.com/deepnoodle-ai/autocompact/slogger"
	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigOverlaysFlags(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "autocompact.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: http://10.0.0.1:4096\nlogLevel: warn\n"), 0644))

	cfg, err := loadConfig(flagValues{configPath: path})
	require.NoError(t, err)
	require.Equal(t, "http://10.0.0.1:4096", cfg.Server)
	require.Equal(t, "warn", cfg.LogLevel)
	require.NotEmpty(t, cfg.Directory)

	cfg, err = loadConfig(flagValues{
		configPath:     path,
		server:         "http://127.0.0.1:5000",
		directory:      "/work/app",
		logLevel:       "debug",
		terminalToasts: true,
	})
	require.NoError(t, err)
	require.Equal(t, "http://127.0.0.1:5000", cfg.Server)
	require.Equal(t, "/work/app", cfg.Directory)
	require.Equal(t, "debug", cfg.LogLevel)
	require.True(t, cfg.TerminalToasts)

	_, err = loadConfig(flagValues{logLevel: "chatty"})
	require.Error(t, err)
}

func TestWriteDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "autocompact.yaml")
	require.NoError(t, writeDefaultConfig(path))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.Equal(t, config.Default(), cfg)

	require.Error(t, writeDefaultConfig(path))
}

func TestWatchFileReportsChanges(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "autocompact.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logLevel: info\n"), 0644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var changes atomic.Int32
	ready := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		close(ready)
		done <- watchFile(ctx, path, func(fsnotify.Event) { changes.Add(1) })
	}()
	<-ready

	require.Eventually(t, func() bool {
		_ = os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x: 1\n"), 0644)
		_ = os.WriteFile(path, []byte("logLevel: debug\n"), 0644)
		return changes.Load() > 0
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

// fakeServer is a minimal opencode server. The event stream delivers one
// token-limit error on the connection given by deliverOn and otherwise idles.
type fakeServer struct {
	deliverOn int32

	connections atomic.Int32
	summarized  atomic.Int32
	submitted   atomic.Int32

	mu     sync.Mutex
	toasts []string
}

func (f *fakeServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	switch r.URL.Path {
	case "/event":
		n := f.connections.Add(1)
		if n < f.deliverOn {
			http.Error(w, "starting", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("content-type", "text/event-stream")
		if n == f.deliverOn {
			_, _ = io.WriteString(w, `data: {"type":"session.error","properties":{"sessionID":"s1","error":{"name":"APIError","data":{"message":"prompt is too long: 210000 tokens > 200000 maximum"}}}}`+"\n\n")
		}
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	case "/session/s1/message":
		_, _ = io.WriteString(w, `[{"info":{"id":"m1","sessionID":"s1","role":"assistant","providerID":"anthropic","modelID":"claude-sonnet-4"},"parts":[]}]`)
	case "/session/s1/summarize":
		f.summarized.Add(1)
		_, _ = io.WriteString(w, `true`)
	case "/tui/submit-prompt":
		f.submitted.Add(1)
		_, _ = io.WriteString(w, `true`)
	case "/tui/show-toast":
		f.mu.Lock()
		f.toasts = append(f.toasts, string(body))
		f.mu.Unlock()
		_, _ = io.WriteString(w, `true`)
	default:
		http.NotFound(w, r)
	}
}

func runServe(t *testing.T, fake *fakeServer, terminalToasts bool) io.Writer {
	t.Helper()
	reconnectInitialDelay = time.Millisecond
	t.Cleanup(func() { reconnectInitialDelay = 500 * time.Millisecond })

	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	cfg := config.Default()
	cfg.Server = server.URL
	cfg.Directory = "/work/app"
	cfg.TriggerDelayMs = 1
	cfg.ResumeDelayMs = 1
	cfg.TerminalToasts = terminalToasts
	require.NoError(t, cfg.Validate())

	out := &syncBuffer{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- serve(ctx, cfg, slogger.NewDevNullLogger(), out)
	}()

	require.Eventually(t, func() bool { return fake.submitted.Load() == 1 }, 5*time.Second, 5*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop")
	}
	return out
}

func TestServeCompactsOnTokenLimit(t *testing.T) {
	fake := &fakeServer{deliverOn: 1}
	runServe(t, fake, false)

	require.Equal(t, int32(1), fake.summarized.Load())
	fake.mu.Lock()
	defer fake.mu.Unlock()
	require.Len(t, fake.toasts, 1)
	require.Contains(t, fake.toasts[0], "Context Limit Hit")
}

func TestServeReconnectsAfterFailure(t *testing.T) {
	fake := &fakeServer{deliverOn: 3}
	out := runServe(t, fake, true)

	require.GreaterOrEqual(t, fake.connections.Load(), int32(3))
	require.Equal(t, int32(1), fake.summarized.Load())
	require.Contains(t, out.(*syncBuffer).String(), "Context Limit Hit")
}

type syncBuffer struct {
	mu  sync.Mutex
	buf []byte
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	return len(p), nil
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}
