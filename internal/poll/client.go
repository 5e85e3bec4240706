// Package poll implements the long-polling client for the review-status
// API: one request per Fetch, bounded retry of read timeouts, and
// classification of every other failure.
package poll

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/AndreyBychenkow/LessonReportBot/internal/version"
)

// Options configures a Client.
type Options struct {
	Endpoint   string
	Token      string
	Timeout    time.Duration // per request
	Retry      RetryPolicy
	HTTPClient *http.Client
}

// Client issues long-poll requests against the review-status API.
type Client struct {
	endpoint   string
	token      string
	timeout    time.Duration
	retry      RetryPolicy
	httpClient *http.Client

	// Test seam; nil means a real, context-aware sleep.
	sleepFn func(context.Context, time.Duration) error
}

// NewClient creates a poll client
func NewClient(opts Options) *Client {
	c := &Client{
		endpoint:   opts.Endpoint,
		token:      opts.Token,
		timeout:    opts.Timeout,
		retry:      opts.Retry,
		httpClient: opts.HTTPClient,
	}
	if c.timeout <= 0 {
		c.timeout = 90 * time.Second
	}
	if c.retry.MaxAttempts == 0 {
		c.retry = DefaultRetryPolicy()
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{}
	}
	c.sleepFn = sleepCtx
	return c
}

// Fetch performs one long poll starting after cursor. Read timeouts are
// retried per the retry policy; when all attempts time out the result is
// a TransientTimeout *Error. Other failures return at once as a classified
// *Error. Cancellation of ctx is returned unclassified.
func (c *Client) Fetch(ctx context.Context, cursor Cursor) (*Response, error) {
	attempts := c.retry.attempts()
	var lastErr *Error

	for attempt := 0; attempt < attempts; attempt++ {
		resp, err := c.fetchOnce(ctx, cursor)
		if err == nil {
			return resp, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		var pe *Error
		if !errors.As(err, &pe) {
			pe = &Error{Class: UnexpectedError, Err: err}
		}
		pe.Attempts = attempt + 1
		if pe.Class != TransientTimeout {
			return nil, pe
		}
		lastErr = pe

		delay := c.retry.Delay(attempt)
		log.Printf("Poll client: no answer within %s (attempt %d/%d), backing off %s",
			c.timeout, attempt+1, attempts, delay)
		if err := c.sleepFn(ctx, delay); err != nil {
			return nil, err
		}
	}

	return nil, lastErr
}

func (c *Client) fetchOnce(ctx context.Context, cursor Cursor) (*Response, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := c.newRequest(reqCtx, cursor)
	if err != nil {
		return nil, &Error{Class: UnexpectedError, Err: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &Error{Class: classifyTransport(err), Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Class: classifyTransport(err), Err: fmt.Errorf("read body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &Error{
			Class:  OtherTransportError,
			Status: resp.StatusCode,
			Err:    fmt.Errorf("server returned %s: %s", resp.Status, snippet(body)),
		}
	}

	return decodeResponse(body)
}

func (c *Client) newRequest(ctx context.Context, cursor Cursor) (*http.Request, error) {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}
	if !cursor.IsZero() {
		q := u.Query()
		q.Set("timestamp", string(cursor))
		u.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Token "+c.token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	return req, nil
}
