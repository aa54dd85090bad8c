package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/deepnoodle-ai/autocompact"
	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"
)

// DefaultWidth is the line width used when TerminalOptions.Width is unset.
const DefaultWidth = 100

const ellipsis = "…"

// TerminalOptions configures a Terminal notifier.
type TerminalOptions struct {
	// Writer defaults to os.Stderr.
	Writer io.Writer

	// Width is the maximum display width of a line, in cells.
	Width int

	// NoColor disables ANSI styling.
	NoColor bool

	// Now stamps each line. Defaults to time.Now.
	Now func() time.Time
}

// Terminal prints toasts as single styled lines, for running the service in
// a terminal next to the chat host.
type Terminal struct {
	mu      sync.Mutex
	writer  io.Writer
	width   int
	now     func() time.Time
	styles  map[autocompact.ToastVariant]*color.Color
	muted   *color.Color
	heading *color.Color
}

var _ autocompact.Notifier = &Terminal{}

// NewTerminal returns a Terminal notifier.
func NewTerminal(opts TerminalOptions) *Terminal {
	if opts.Writer == nil {
		opts.Writer = os.Stderr
	}
	if opts.Width <= 0 {
		opts.Width = DefaultWidth
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	t := &Terminal{
		writer: opts.Writer,
		width:  opts.Width,
		now:    opts.Now,
		styles: map[autocompact.ToastVariant]*color.Color{
			autocompact.ToastInfo:    color.New(color.FgCyan),
			autocompact.ToastSuccess: color.New(color.FgGreen),
			autocompact.ToastWarning: color.New(color.FgYellow, color.Bold),
			autocompact.ToastError:   color.New(color.FgRed, color.Bold),
		},
		muted:   color.New(color.FgHiBlack),
		heading: color.New(color.Bold),
	}
	if opts.NoColor {
		for _, c := range t.styles {
			c.DisableColor()
		}
		t.muted.DisableColor()
		t.heading.DisableColor()
	}
	return t
}

var symbols = map[autocompact.ToastVariant]string{
	autocompact.ToastInfo:    "•",
	autocompact.ToastSuccess: "✓",
	autocompact.ToastWarning: "!",
	autocompact.ToastError:   "✗",
}

// ShowToast writes one line: time, variant symbol, title and message. The
// title and message are truncated to fit the configured width.
func (t *Terminal) ShowToast(ctx context.Context, toast autocompact.Toast) error {
	style, ok := t.styles[toast.Variant]
	if !ok {
		style = t.styles[autocompact.ToastInfo]
	}
	symbol, ok := symbols[toast.Variant]
	if !ok {
		symbol = symbols[autocompact.ToastInfo]
	}

	stamp := t.now().Format("15:04:05")
	prefixWidth := runewidth.StringWidth(stamp) + 1 + runewidth.StringWidth(symbol) + 1
	text := singleLine(toast.Message)
	title := singleLine(toast.Title)
	if title != "" {
		text = title + ": " + text
	}
	text = runewidth.Truncate(text, max(t.width-prefixWidth, 1), ellipsis)

	if title != "" && strings.HasPrefix(text, title+": ") {
		text = t.heading.Sprint(title+":") + text[len(title)+1:]
	}
	line := fmt.Sprintf("%s %s %s\n", t.muted.Sprint(stamp), style.Sprint(symbol), text)

	t.mu.Lock()
	defer t.mu.Unlock()
	_, err := io.WriteString(t.writer, line)
	return err
}

func singleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
