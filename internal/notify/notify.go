// Package notify delivers operator-facing text to one or more sinks.
package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/AndreyBychenkow/LessonReportBot/internal/review"
)

// Notifier sends one message. Implementations may reject text longer than
// their transport allows; use SendChunked for arbitrary lengths.
type Notifier interface {
	Send(ctx context.Context, text string) error
}

// SendChunked splits text into pieces of at most limit characters and
// sends them in order, stopping at the first failure. It returns how many
// chunks were sent.
func SendChunked(ctx context.Context, n Notifier, text string, limit int) (int, error) {
	chunks := review.SplitMessage(text, limit)
	for i, chunk := range chunks {
		if err := n.Send(ctx, chunk); err != nil {
			return i, fmt.Errorf("send chunk %d/%d: %w", i+1, len(chunks), err)
		}
	}
	return len(chunks), nil
}

// CompositeSink fans each message out to every sink in order. A failing
// sink does not stop the others; all failures are joined.
type CompositeSink struct {
	sinks []Notifier
}

// NewCompositeSink creates a sink over sinks, skipping nils.
func NewCompositeSink(sinks ...Notifier) *CompositeSink {
	c := &CompositeSink{}
	for _, s := range sinks {
		if s != nil {
			c.sinks = append(c.sinks, s)
		}
	}
	return c
}

// Len returns the number of wired sinks.
func (c *CompositeSink) Len() int { return len(c.sinks) }

func (c *CompositeSink) Send(ctx context.Context, text string) error {
	var errs []error
	for _, s := range c.sinks {
		if err := s.Send(ctx, text); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
