package poll

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/AndreyBychenkow/LessonReportBot/internal/review"
)

// newTestClient points a client at server with instant, recorded backoff.
func newTestClient(t *testing.T, endpoint string, timeout time.Duration) (*Client, *[]time.Duration) {
	t.Helper()
	c := NewClient(Options{
		Endpoint: endpoint,
		Token:    "secret",
		Timeout:  timeout,
		Retry:    DefaultRetryPolicy(),
	})
	var sleeps []time.Duration
	c.sleepFn = func(_ context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return nil
	}
	return c, &sleeps
}

func jsonServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchSendsAuthAndCursor(t *testing.T) {
	var gotAuth, gotTimestamp string
	var hasTimestamp bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotTimestamp = r.URL.Query().Get("timestamp")
		_, hasTimestamp = r.URL.Query()["timestamp"]
		w.Write([]byte(`{"status":"timeout","timestamp_to_request":1700000000.5}`))
	}))
	defer srv.Close()

	client, _ := newTestClient(t, srv.URL, time.Second)

	if _, err := client.Fetch(context.Background(), ""); err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if gotAuth != "Token secret" {
		t.Errorf("expected Token auth header, got %q", gotAuth)
	}
	if hasTimestamp {
		t.Errorf("expected no timestamp on first poll, got %q", gotTimestamp)
	}

	if _, err := client.Fetch(context.Background(), "100"); err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if gotTimestamp != "100" {
		t.Errorf("expected timestamp=100, got %q", gotTimestamp)
	}
}

func TestFetchFound(t *testing.T) {
	srv := jsonServer(t, `{
		"status": "found",
		"new_attempts": [
			{"lesson_title": "Lesson A", "is_negative": false, "lesson_url": "https://dvmn.org/a"},
			{"lesson_title": "Lesson B", "is_negative": true}
		],
		"last_attempt_timestamp": 1555493856.5693
	}`)
	client, _ := newTestClient(t, srv.URL, time.Second)

	resp, err := client.Fetch(context.Background(), "")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if !resp.Found() || !resp.HasEvents() {
		t.Fatalf("expected found response with events, got %+v", resp)
	}
	want := []review.Event{
		{LessonTitle: "Lesson A", LessonURL: "https://dvmn.org/a"},
		{LessonTitle: "Lesson B", IsNegative: true},
	}
	if diff := cmp.Diff(want, resp.Events); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
	if resp.NextCursor != "1555493856.5693" {
		t.Errorf("expected cursor text preserved, got %q", resp.NextCursor)
	}
}

func TestFetchNoNewChanges(t *testing.T) {
	srv := jsonServer(t, `{"status": "no new changes"}`)
	client, _ := newTestClient(t, srv.URL, time.Second)

	resp, err := client.Fetch(context.Background(), "100")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if resp.Found() || resp.HasEvents() {
		t.Errorf("expected no events, got %+v", resp)
	}
	if !resp.NextCursor.IsZero() {
		t.Errorf("expected empty cursor, got %q", resp.NextCursor)
	}
}

func TestFetchFoundWithoutEvents(t *testing.T) {
	srv := jsonServer(t, `{"status":"found","new_attempts":[],"last_attempt_timestamp":"200"}`)
	client, _ := newTestClient(t, srv.URL, time.Second)

	resp, err := client.Fetch(context.Background(), "")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if !resp.Found() || resp.HasEvents() {
		t.Errorf("expected found without events, got %+v", resp)
	}
	if resp.NextCursor != "200" {
		t.Errorf("expected cursor 200, got %q", resp.NextCursor)
	}
}

func TestFetchMissingRequiredFields(t *testing.T) {
	bodies := map[string]string{
		"no new_attempts":    `{"status":"found","last_attempt_timestamp":1}`,
		"no lesson_title":    `{"status":"found","new_attempts":[{"is_negative":true}]}`,
		"no is_negative":     `{"status":"found","new_attempts":[{"lesson_title":"x"}]}`,
		"mistyped flag":      `{"status":"found","new_attempts":[{"lesson_title":"x","is_negative":"yes"}]}`,
		"object timestamp":   `{"status":"found","new_attempts":[],"last_attempt_timestamp":{}}`,
		"nonnumeric literal": `{"status":"timeout","timestamp_to_request":true}`,
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			srv := jsonServer(t, body)
			client, _ := newTestClient(t, srv.URL, time.Second)

			_, err := client.Fetch(context.Background(), "")
			if got := Classify(err); got != UnexpectedError {
				t.Errorf("expected UnexpectedError, got %v (%v)", got, err)
			}
		})
	}
}

func TestFetchMalformedBody(t *testing.T) {
	srv := jsonServer(t, `<html>oops</html>`)
	client, sleeps := newTestClient(t, srv.URL, time.Second)

	_, err := client.Fetch(context.Background(), "")
	if got := Classify(err); got != OtherTransportError {
		t.Errorf("expected OtherTransportError, got %v (%v)", got, err)
	}
	if len(*sleeps) != 0 {
		t.Errorf("expected no internal retry, got sleeps %v", *sleeps)
	}
}

func TestFetchHTTPErrorStatus(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, `{"detail":"Invalid token."}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	client, _ := newTestClient(t, srv.URL, time.Second)
	_, err := client.Fetch(context.Background(), "")

	var pe *Error
	if !errors.As(err, &pe) {
		t.Fatalf("expected *Error, got %T %v", err, err)
	}
	if pe.Class != OtherTransportError || pe.Status != http.StatusUnauthorized {
		t.Errorf("expected transport error with 401, got %+v", pe)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("expected exactly one request, got %d", calls)
	}
}

func TestFetchRetriesReadTimeouts(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer srv.Close()

	client, sleeps := newTestClient(t, srv.URL, 20*time.Millisecond)
	_, err := client.Fetch(context.Background(), "")

	var pe *Error
	if !errors.As(err, &pe) || pe.Class != TransientTimeout {
		t.Fatalf("expected TransientTimeout, got %v", err)
	}
	if pe.Attempts != 3 {
		t.Errorf("expected 3 attempts recorded, got %d", pe.Attempts)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("expected exactly 3 requests, got %d", got)
	}
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}
	if diff := cmp.Diff(want, *sleeps); diff != "" {
		t.Errorf("backoff mismatch (-want +got):\n%s", diff)
	}
}

func TestFetchRecoversAfterTimeout(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			<-r.Context().Done()
			return
		}
		w.Write([]byte(`{"status":"timeout","timestamp_to_request":5}`))
	}))
	defer srv.Close()

	client, sleeps := newTestClient(t, srv.URL, 20*time.Millisecond)
	resp, err := client.Fetch(context.Background(), "")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if resp.NextCursor != "5" {
		t.Errorf("expected cursor 5, got %q", resp.NextCursor)
	}
	if len(*sleeps) != 1 || (*sleeps)[0] != time.Second {
		t.Errorf("expected one 1s backoff, got %v", *sleeps)
	}
}

func TestFetchConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	endpoint := srv.URL
	srv.Close()

	client, sleeps := newTestClient(t, endpoint, time.Second)
	_, err := client.Fetch(context.Background(), "")

	if got := Classify(err); got != ConnectionLost {
		t.Errorf("expected ConnectionLost, got %v (%v)", got, err)
	}
	if len(*sleeps) != 0 {
		t.Errorf("expected no internal retry, got %v", *sleeps)
	}
}

func TestFetchContextCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	client, _ := newTestClient(t, srv.URL, 5*time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := client.Fetch(ctx, "")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected context error, got %v", err)
	}
	var pe *Error
	if errors.As(err, &pe) {
		t.Errorf("expected unclassified context error, got %+v", pe)
	}
}

func TestRetryPolicyDelay(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 4, BaseDelay: 500 * time.Millisecond, Multiplier: 3}
	want := []time.Duration{500 * time.Millisecond, 1500 * time.Millisecond, 4500 * time.Millisecond}
	for i, w := range want {
		if got := p.Delay(i); got != w {
			t.Errorf("Delay(%d) = %v, want %v", i, got, w)
		}
	}
	if (RetryPolicy{}).attempts() != 1 {
		t.Error("expected zero policy to allow one attempt")
	}
}

func TestRetryPolicyDelayCapped(t *testing.T) {
	p := DefaultRetryPolicy()
	for _, attempt := range []int{6, 33, 34, 64, 5000} {
		got := p.Delay(attempt)
		if got != DefaultMaxDelay {
			t.Errorf("Delay(%d) = %v, want cap %v", attempt, got, DefaultMaxDelay)
		}
	}

	p.MaxDelay = 3 * time.Second
	if got := p.Delay(1); got != 2*time.Second {
		t.Errorf("expected uncapped 2s below the cap, got %v", got)
	}
	if got := p.Delay(2); got != 3*time.Second {
		t.Errorf("expected 3s cap, got %v", got)
	}
}

func TestNewClientDefaultsRetryPolicy(t *testing.T) {
	c := NewClient(Options{Endpoint: "http://127.0.0.1:0"})
	if diff := cmp.Diff(DefaultRetryPolicy(), c.retry); diff != "" {
		t.Errorf("expected default retry policy (-want +got):\n%s", diff)
	}
}
