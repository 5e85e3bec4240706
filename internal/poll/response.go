package poll

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/AndreyBychenkow/LessonReportBot/internal/review"
)

// StatusFound is the status the API reports when new reviews are ready.
const StatusFound = "found"

// Response is one decoded long-poll answer.
type Response struct {
	Status     string
	Events     []review.Event
	NextCursor Cursor // empty when the API sent none
}

// Found reports whether the API announced new reviews.
func (r *Response) Found() bool { return r.Status == StatusFound }

// HasEvents reports whether there is anything to deliver.
func (r *Response) HasEvents() bool { return r.Found() && len(r.Events) > 0 }

type wireResponse struct {
	Status               string          `json:"status"`
	NewAttempts          *[]wireAttempt  `json:"new_attempts"`
	LastAttemptTimestamp json.RawMessage `json:"last_attempt_timestamp"`
	TimestampToRequest   json.RawMessage `json:"timestamp_to_request"`
}

type wireAttempt struct {
	LessonTitle *string `json:"lesson_title"`
	LessonURL   *string `json:"lesson_url"`
	IsNegative  *bool   `json:"is_negative"`
}

// decodeResponse parses a response body. Bodies that are not JSON at all
// are transport errors; JSON with a missing or mistyped required field
// is UnexpectedError.
func decodeResponse(body []byte) (*Response, error) {
	if !json.Valid(body) {
		return nil, &Error{
			Class: OtherTransportError,
			Err:   fmt.Errorf("malformed response body: %s", snippet(body)),
		}
	}

	var w wireResponse
	if err := json.Unmarshal(body, &w); err != nil {
		return nil, &Error{Class: UnexpectedError, Err: fmt.Errorf("decode response: %w", err)}
	}

	resp := &Response{Status: w.Status}

	primary, fallback := w.TimestampToRequest, w.LastAttemptTimestamp
	if resp.Found() {
		primary, fallback = fallback, primary
	}
	next, err := parseCursor(primary)
	if err == nil && next.IsZero() {
		next, err = parseCursor(fallback)
	}
	if err != nil {
		return nil, &Error{Class: UnexpectedError, Err: err}
	}
	resp.NextCursor = next

	if !resp.Found() {
		return resp, nil
	}

	if w.NewAttempts == nil {
		return nil, &Error{Class: UnexpectedError, Err: fmt.Errorf("found response without new_attempts")}
	}
	resp.Events = make([]review.Event, 0, len(*w.NewAttempts))
	for i, a := range *w.NewAttempts {
		if a.LessonTitle == nil {
			return nil, &Error{Class: UnexpectedError, Err: fmt.Errorf("attempt %d: missing lesson_title", i)}
		}
		if a.IsNegative == nil {
			return nil, &Error{Class: UnexpectedError, Err: fmt.Errorf("attempt %d: missing is_negative", i)}
		}
		ev := review.Event{LessonTitle: *a.LessonTitle, IsNegative: *a.IsNegative}
		if a.LessonURL != nil {
			ev.LessonURL = *a.LessonURL
		}
		resp.Events = append(resp.Events, ev)
	}
	return resp, nil
}

// parseCursor accepts a JSON number or string and keeps its text.
func parseCursor(raw json.RawMessage) (Cursor, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", fmt.Errorf("decode timestamp: %w", err)
		}
		return Cursor(s), nil
	}
	if _, err := strconv.ParseFloat(string(raw), 64); err != nil {
		return "", fmt.Errorf("timestamp is neither number nor string: %s", snippet(raw))
	}
	return Cursor(raw), nil
}

func snippet(b []byte) string {
	const max = 200
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}
