package daemon

import (
	"context"
	"errors"
	"fmt"
	"log"
	"runtime/debug"
	"sync"
	"time"

	"github.com/AndreyBychenkow/LessonReportBot/internal/config"
	"github.com/AndreyBychenkow/LessonReportBot/internal/notify"
	"github.com/AndreyBychenkow/LessonReportBot/internal/poll"
	"github.com/AndreyBychenkow/LessonReportBot/internal/review"
	"github.com/AndreyBychenkow/LessonReportBot/internal/storage"
)

// Fetcher performs one long poll. *poll.Client implements it.
type Fetcher interface {
	Fetch(ctx context.Context, cursor poll.Cursor) (*poll.Response, error)
}

// Journal records what the relay delivered and what went wrong.
// *storage.DB implements it.
type Journal interface {
	RecordDelivery(ctx context.Context, d *storage.Delivery) error
	RecordFailure(ctx context.Context, f *storage.Failure) error
}

// State is the relay's position in its poll/deliver/cool-down cycle.
type State int

const (
	StatePolling State = iota
	StateDelivering
	StateCoolingDown
)

func (s State) String() string {
	switch s {
	case StatePolling:
		return "polling"
	case StateDelivering:
		return "delivering"
	case StateCoolingDown:
		return "cooling_down"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// RelayConfig holds the relay's policy knobs.
type RelayConfig struct {
	Cooldown        time.Duration // pause after connection and transport failures
	MessageLimit    int           // max characters per chat message
	NotifyOnTimeout bool
	RequestTimeout  time.Duration // quoted in the timeout notice
}

// Relay polls for review results and forwards them to the notifier.
// All cycle state is owned by the goroutine calling Step or Run; the
// mutex guards the snapshots read by Status and Config and a queued
// config update.
type Relay struct {
	fetcher  Fetcher
	notifier notify.Notifier
	cfg      RelayConfig
	clock    Clock
	journal  Journal
	events   *EventLog

	cursor          poll.Cursor
	state           State
	batch           *poll.Response
	cooldownUntil   time.Time
	timeoutNotified bool

	mu          sync.Mutex
	snapshot    Status
	snapshotCfg RelayConfig
	pendingCfg  *RelayConfig
	doneCh      chan struct{}
	cancelRun   context.CancelFunc
	running     bool
}

// Status is a point-in-time view of the relay for health reporting.
type Status struct {
	State     State
	Cursor    poll.Cursor
	Delivered int
	Failures  int
}

// RelayConfigFrom extracts the relay policy from cfg.
func RelayConfigFrom(cfg *config.Config) RelayConfig {
	return RelayConfig{
		Cooldown:        cfg.Cooldown(),
		MessageLimit:    cfg.MessageLimit(),
		NotifyOnTimeout: cfg.NotifyOnTimeout,
		RequestTimeout:  cfg.RequestTimeout(),
	}
}

func (c RelayConfig) withDefaults() RelayConfig {
	if c.Cooldown <= 0 {
		c.Cooldown = 10 * time.Second
	}
	if c.MessageLimit <= 0 || c.MessageLimit > review.MaxMessageLen {
		c.MessageLimit = review.MaxMessageLen
	}
	return c
}

// NewRelay creates a relay starting from an empty cursor.
func NewRelay(fetcher Fetcher, notifier notify.Notifier, cfg RelayConfig) *Relay {
	cfg = cfg.withDefaults()
	return &Relay{
		fetcher:     fetcher,
		notifier:    notifier,
		cfg:         cfg,
		clock:       systemClock{},
		snapshotCfg: cfg,
	}
}

// UpdateConfig queues a new policy. It takes effect at the start of the
// next Step, so a cycle in progress finishes under the old one.
func (r *Relay) UpdateConfig(cfg RelayConfig) {
	cfg = cfg.withDefaults()
	r.mu.Lock()
	r.pendingCfg = &cfg
	r.mu.Unlock()
}

// Config returns the policy currently in effect.
func (r *Relay) Config() RelayConfig {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotCfg
}

func (r *Relay) applyPendingConfig() {
	r.mu.Lock()
	next := r.pendingCfg
	r.pendingCfg = nil
	r.mu.Unlock()
	if next == nil {
		return
	}

	old := r.cfg
	r.cfg = *next
	if old.Cooldown != next.Cooldown {
		r.logf(LevelInfo, "config change: cooldown %s -> %s", old.Cooldown, next.Cooldown)
	}
	if old.MessageLimit != next.MessageLimit {
		r.logf(LevelInfo, "config change: max_message_len %d -> %d", old.MessageLimit, next.MessageLimit)
	}
	if old.NotifyOnTimeout != next.NotifyOnTimeout {
		r.logf(LevelInfo, "config change: notify_on_timeout %v -> %v", old.NotifyOnTimeout, next.NotifyOnTimeout)
	}
	if old.RequestTimeout != next.RequestTimeout {
		r.logf(LevelInfo, "config change: request_timeout %s -> %s", old.RequestTimeout, next.RequestTimeout)
	}
}

// SetClock replaces the wall clock, for tests.
func (r *Relay) SetClock(c Clock) { r.clock = c }

// SetJournal enables recording of deliveries and failures.
func (r *Relay) SetJournal(j Journal) { r.journal = j }

// SetEventLog mirrors relay log lines into el.
func (r *Relay) SetEventLog(el *EventLog) { r.events = el }

// Cursor returns the current cursor. Call from the loop goroutine.
func (r *Relay) Cursor() poll.Cursor { return r.cursor }

// State returns the current state. Call from the loop goroutine.
func (r *Relay) State() State { return r.state }

// Status returns a snapshot that is safe to read from any goroutine.
func (r *Relay) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshot
}

// Announce sends the startup notice.
func (r *Relay) Announce(ctx context.Context) error {
	r.logf(LevelInfo, "starting")
	_, err := notify.SendChunked(ctx, r.notifier, startupNotice, r.cfg.MessageLimit)
	return err
}

// Start runs the relay loop in a background goroutine.
func (r *Relay) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return fmt.Errorf("relay already running")
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.doneCh = make(chan struct{})
	r.cancelRun = cancel
	r.running = true

	doneCh := r.doneCh
	go func() {
		defer close(doneCh)
		if err := r.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("Relay: stopped: %v", err)
		}
	}()
	return nil
}

// Stop cancels the loop, including any in-flight poll, and waits for it
// to exit.
func (r *Relay) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	doneCh := r.doneCh
	cancel := r.cancelRun
	r.running = false
	r.mu.Unlock()

	cancel()
	<-doneCh
	log.Println("Relay stopped")
}

// HealthCheck returns whether the relay loop is running
func (r *Relay) HealthCheck() (bool, string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.running {
		return false, "not running"
	}
	return true, fmt.Sprintf("running (%s, cursor %q)", r.snapshot.State, r.snapshot.Cursor)
}

// Run steps the relay until ctx is cancelled. It never returns for a
// failed cycle; the only result is ctx's error.
func (r *Relay) Run(ctx context.Context) error {
	for {
		if err := r.Step(ctx); err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
}

// Step performs one state transition. It returns an error only when ctx
// is done; every other failure is handled in place.
func (r *Relay) Step(ctx context.Context) (err error) {
	defer func() {
		if p := recover(); p != nil {
			r.batch = nil
			r.logf(LevelError, "panic while %s: %v\n%s", r.state, p, debug.Stack())
			r.handleFailure(ctx, fmt.Errorf("panic while %s: %v", r.state, p))
			err = nil
		}
		r.publish()
	}()

	r.applyPendingConfig()

	switch r.state {
	case StateDelivering:
		return r.deliver(ctx)
	case StateCoolingDown:
		return r.coolDown(ctx)
	default:
		return r.poll(ctx)
	}
}

func (r *Relay) poll(ctx context.Context) error {
	resp, err := r.fetcher.Fetch(ctx, r.cursor)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		r.handleFailure(ctx, err)
		return nil
	}
	r.timeoutNotified = false

	if resp.HasEvents() {
		r.batch = resp
		r.state = StateDelivering
		return nil
	}
	r.advance(resp.NextCursor)
	return nil
}

// deliver forwards every event of the pending batch in order. The cursor
// moves only once the whole batch is out, so a failed send means the
// batch is fetched again after the cooldown.
func (r *Relay) deliver(ctx context.Context) error {
	batch := r.batch
	r.batch = nil
	if batch == nil {
		r.state = StatePolling
		return nil
	}

	for i, ev := range batch.Events {
		sent, err := notify.SendChunked(ctx, r.notifier, review.CreateMessage(ev), r.cfg.MessageLimit)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.logf(LevelError, "delivery of event %d/%d (%q) failed after %d chunks: %v",
				i+1, len(batch.Events), ev.LessonTitle, sent, err)
			r.recordFailure(ctx, "delivery_error", err)
			r.startCooldown()
			return nil
		}
		r.recordDelivery(ctx, ev, batch.NextCursor, sent)
	}

	r.logf(LevelInfo, "delivered %d review(s)", len(batch.Events))
	r.advance(batch.NextCursor)
	r.state = StatePolling
	return nil
}

func (r *Relay) coolDown(ctx context.Context) error {
	if wait := r.cooldownUntil.Sub(r.clock.Now()); wait > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.clock.After(wait):
		}
	}
	r.state = StatePolling
	return nil
}

func (r *Relay) handleFailure(ctx context.Context, err error) {
	class := poll.Classify(err)

	switch class {
	case poll.TransientTimeout:
		r.logf(LevelWarn, "no answer from the review server: %v", err)
		if r.cfg.NotifyOnTimeout && !r.timeoutNotified {
			r.notifyOperator(ctx, timeoutNotice(r.cfg.RequestTimeout))
			r.timeoutNotified = true
		}
		r.state = StatePolling
		return

	case poll.ConnectionLost:
		r.logf(LevelError, "connection lost: %v", err)
		r.notifyOperator(ctx, connectionLostNotice)

	case poll.OtherTransportError:
		r.logf(LevelError, "transport error: %v", err)
		r.notifyOperator(ctx, transportErrorNotice(err))

	default:
		r.logf(LevelError, "unexpected error: %+v", err)
		r.notifyOperator(ctx, unexpectedErrorNotice(err))
	}

	r.recordFailure(ctx, class.String(), err)
	r.startCooldown()
}

func (r *Relay) startCooldown() {
	r.cooldownUntil = r.clock.Now().Add(r.cfg.Cooldown)
	r.state = StateCoolingDown
}

func (r *Relay) advance(next poll.Cursor) {
	advanced := r.cursor.Advance(next)
	if !next.IsZero() && advanced != next {
		r.logf(LevelWarn, "ignoring older cursor %q", next)
	}
	r.cursor = advanced
}

func (r *Relay) notifyOperator(ctx context.Context, text string) {
	if _, err := notify.SendChunked(ctx, r.notifier, text, r.cfg.MessageLimit); err != nil {
		r.logf(LevelError, "failed to notify operator: %v", err)
	}
}

func (r *Relay) recordDelivery(ctx context.Context, ev review.Event, cursor poll.Cursor, chunks int) {
	r.mu.Lock()
	r.snapshot.Delivered++
	r.mu.Unlock()

	if r.journal == nil {
		return
	}
	err := r.journal.RecordDelivery(ctx, &storage.Delivery{
		LessonTitle: ev.LessonTitle,
		LessonURL:   ev.LessonURL,
		IsNegative:  ev.IsNegative,
		Cursor:      string(cursor),
		Chunks:      chunks,
		DeliveredAt: r.clock.Now(),
	})
	if err != nil {
		log.Printf("Relay: journal: %v", err)
	}
}

func (r *Relay) recordFailure(ctx context.Context, class string, cause error) {
	r.mu.Lock()
	r.snapshot.Failures++
	r.mu.Unlock()

	if r.journal == nil {
		return
	}
	err := r.journal.RecordFailure(ctx, &storage.Failure{
		Class:      class,
		Message:    cause.Error(),
		Cursor:     string(r.cursor),
		OccurredAt: r.clock.Now(),
	})
	if err != nil {
		log.Printf("Relay: journal: %v", err)
	}
}

func (r *Relay) publish() {
	r.mu.Lock()
	r.snapshot.State = r.state
	r.snapshot.Cursor = r.cursor
	r.snapshotCfg = r.cfg
	r.mu.Unlock()
}

func (r *Relay) logf(level, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	log.Printf("Relay: %s", msg)
	if r.events != nil {
		r.events.Log(level, "relay", msg, string(r.cursor))
	}
}
