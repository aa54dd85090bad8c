package notify

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/deepnoodle-ai/autocompact"
	"github.com/mattn/go-runewidth"
	"github.com/stretchr/testify/require"
)

func fixedNow() time.Time {
	return time.Date(2026, 10, 17, 9, 30, 0, 0, time.UTC)
}

func TestTerminalShowToast(t *testing.T) {
	var buf bytes.Buffer
	term := NewTerminal(TerminalOptions{Writer: &buf, NoColor: true, Now: fixedNow})

	err := term.ShowToast(context.Background(), autocompact.Toast{
		Title:   "Auto Compact Retry",
		Message: "Attempt 1/5 failed. Retrying in 2s...",
		Variant: autocompact.ToastWarning,
	})
	require.NoError(t, err)
	require.Equal(t, "09:30:00 ! Auto Compact Retry: Attempt 1/5 failed. Retrying in 2s...\n", buf.String())
}

func TestTerminalVariants(t *testing.T) {
	tests := []struct {
		variant autocompact.ToastVariant
		symbol  string
	}{
		{autocompact.ToastInfo, "•"},
		{autocompact.ToastSuccess, "✓"},
		{autocompact.ToastWarning, "!"},
		{autocompact.ToastError, "✗"},
		{"unknown", "•"},
	}
	for _, tt := range tests {
		t.Run(string(tt.variant), func(t *testing.T) {
			var buf bytes.Buffer
			term := NewTerminal(TerminalOptions{Writer: &buf, NoColor: true, Now: fixedNow})
			require.NoError(t, term.ShowToast(context.Background(), autocompact.Toast{
				Message: "done",
				Variant: tt.variant,
			}))
			require.Equal(t, "09:30:00 "+tt.symbol+" done\n", buf.String())
		})
	}
}

func TestTerminalTruncatesLongMessages(t *testing.T) {
	var buf bytes.Buffer
	term := NewTerminal(TerminalOptions{Writer: &buf, NoColor: true, Width: 40, Now: fixedNow})

	require.NoError(t, term.ShowToast(context.Background(), autocompact.Toast{
		Title:   "Context Limit Hit",
		Message: "210000/200000 tokens used.\nCompacting conversation...",
		Variant: autocompact.ToastInfo,
	}))
	line := strings.TrimSuffix(buf.String(), "\n")
	require.NotContains(t, line, "\n")
	require.LessOrEqual(t, runewidth.StringWidth(line), 40)
	require.True(t, strings.HasSuffix(line, ellipsis))
	require.True(t, strings.HasPrefix(line, "09:30:00 • Context Limit Hit: 210000"))
}

type failingNotifier struct {
	err   error
	calls int
}

func (f *failingNotifier) ShowToast(ctx context.Context, toast autocompact.Toast) error {
	f.calls++
	return f.err
}

func TestMulti(t *testing.T) {
	errA := errors.New("host unreachable")
	a := &failingNotifier{err: errA}
	b := &failingNotifier{}
	var buf bytes.Buffer
	m := Multi{a, nil, b, NewTerminal(TerminalOptions{Writer: &buf, NoColor: true, Now: fixedNow})}

	err := m.ShowToast(context.Background(), autocompact.Toast{Message: "hello", Variant: autocompact.ToastInfo})
	require.ErrorIs(t, err, errA)
	require.Equal(t, 1, a.calls)
	require.Equal(t, 1, b.calls)
	require.Contains(t, buf.String(), "hello")

	require.NoError(t, Multi{b}.ShowToast(context.Background(), autocompact.Toast{Message: "x"}))
	require.NoError(t, Multi(nil).ShowToast(context.Background(), autocompact.Toast{Message: "x"}))
}
