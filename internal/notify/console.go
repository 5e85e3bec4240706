package notify

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// ConsoleSink prints messages to a writer, one timestamped block each.
type ConsoleSink struct {
	mu       sync.Mutex
	w        io.Writer
	now      func() time.Time
	styled   bool
	renderer *lipgloss.Renderer
}

// NewConsoleSink creates a console sink. Output is styled only when w
// is a terminal.
func NewConsoleSink(w io.Writer) *ConsoleSink {
	return &ConsoleSink{
		w:        w,
		now:      time.Now,
		styled:   writerIsTerminal(w),
		renderer: lipgloss.NewRenderer(w),
	}
}

func writerIsTerminal(w io.Writer) bool {
	f, ok := w.(interface{ Fd() uintptr })
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (c *ConsoleSink) Send(_ context.Context, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	stamp := "[" + c.now().Format("2006-01-02 15:04:05") + "]"
	if c.styled {
		stamp = c.renderer.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "240", Dark: "245"}).
			Render(stamp)
		text = c.renderer.NewStyle().Bold(true).Render(text)
	}

	body := strings.ReplaceAll(text, "\n", "\n    ")
	if _, err := fmt.Fprintf(c.w, "%s %s\n", stamp, body); err != nil {
		return fmt.Errorf("console sink: %w", err)
	}
	return nil
}
