package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/AndreyBychenkow/LessonReportBot/internal/config"
	"github.com/AndreyBychenkow/LessonReportBot/internal/daemon"
	"github.com/AndreyBychenkow/LessonReportBot/internal/notify"
	"github.com/AndreyBychenkow/LessonReportBot/internal/poll"
	"github.com/AndreyBychenkow/LessonReportBot/internal/storage"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

type runOptions struct {
	console        bool
	noJournal      bool
	noStartMessage bool
	configPath     string // watched for hot reload when set
}

func runCmd() *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Relay review results until interrupted",
		Long: `Long-poll the review-status API and post each new review result to the
configured Telegram chat. Runs in the foreground until SIGINT or SIGTERM.

Review results are also echoed to stdout when it is a terminal or when
--console is given.

Changes to cooldown_seconds, max_message_len and notify_on_timeout in the
config file apply without a restart. On Unix, SIGUSR1 logs a status report.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if !opts.console && isatty.IsTerminal(os.Stdout.Fd()) {
				opts.console = true
			}

			opts.configPath = resolveConfigPath()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runRelay(ctx, cfg, opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().BoolVar(&opts.console, "console", false, "also print review results to stdout")
	cmd.Flags().BoolVar(&opts.noJournal, "no-journal", false, "do not record deliveries in the journal database")
	cmd.Flags().BoolVar(&opts.noStartMessage, "no-start-message", false, "skip the startup notice")
	return cmd
}

// relayDeps are the opened resources behind a relay.
type relayDeps struct {
	relay   *daemon.Relay
	journal *storage.DB
	events  *daemon.EventLog
	watcher *daemon.ConfigWatcher
	started time.Time
}

func (d *relayDeps) Close() {
	if d.watcher != nil {
		d.watcher.Stop()
	}
	if d.journal != nil {
		d.journal.Close()
	}
	if d.events != nil {
		d.events.Close()
	}
}

// buildRelay wires the poll client, sinks and journal described by cfg.
func buildRelay(cfg *config.Config, opts runOptions, stdout io.Writer) (*relayDeps, error) {
	client := poll.NewClient(poll.Options{
		Endpoint: cfg.APIURL,
		Token:    cfg.APIToken,
		Timeout:  cfg.RequestTimeout(),
		Retry: poll.RetryPolicy{
			MaxAttempts: cfg.RetryAttempts(),
			BaseDelay:   cfg.RetryBaseDelay(),
			Multiplier:  cfg.RetryMultiplier(),
			MaxDelay:    cfg.RetryMaxDelay(),
		},
	})

	var sinks []notify.Notifier
	if cfg.BotToken != "" {
		sinks = append(sinks, notify.NewTelegramSink(cfg.TelegramAPIURL, cfg.BotToken, cfg.ChatID))
	}
	if opts.console {
		sinks = append(sinks, notify.NewConsoleSink(stdout))
	}
	sink := notify.NewCompositeSink(sinks...)
	if sink.Len() == 0 {
		return nil, fmt.Errorf("no notification sink configured")
	}

	deps := &relayDeps{started: time.Now()}
	deps.relay = daemon.NewRelay(client, sink, daemon.RelayConfigFrom(cfg))

	if !opts.noJournal {
		path := cfg.ResolveJournalPath()
		db, err := storage.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open journal: %w", err)
		}
		log.Printf("Journal: %s", path)
		deps.journal = db
		deps.relay.SetJournal(db)
	}

	events, err := daemon.NewEventLog(cfg.ResolveEventLogPath())
	if err != nil {
		log.Printf("Warning: failed to open event log: %v", err)
	} else {
		log.Printf("Event log: %s", events.Path())
		deps.events = events
		deps.relay.SetEventLog(events)
	}

	return deps, nil
}

// reloadConfig is the ConfigWatcher loader: the file plus the process
// environment, as at startup.
func reloadConfig(path string) (*config.Config, error) {
	cfg, err := config.LoadFrom(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// statusReport summarizes the running relay for the log.
func statusReport(d *relayDeps) string {
	var b strings.Builder
	ok, health := d.relay.HealthCheck()
	st := d.relay.Status()
	fmt.Fprintf(&b, "Status: healthy=%v %s; delivered %d review(s), %d failure(s) since %s",
		ok, health, st.Delivered, st.Failures, d.started.Format("2006-01-02 15:04:05"))
	if d.events == nil {
		return b.String()
	}
	fmt.Fprintf(&b, "; %d error(s) logged", d.events.CountSince(daemon.LevelError, d.started))
	for _, e := range d.events.RecentN(5) {
		fmt.Fprintf(&b, "\n  %s [%s] %s: %s", e.Timestamp.Local().Format("15:04:05"), e.Level, e.Component, e.Message)
	}
	return b.String()
}

func runRelay(ctx context.Context, cfg *config.Config, opts runOptions, stdout io.Writer) error {
	deps, err := buildRelay(cfg, opts, stdout)
	if err != nil {
		return err
	}
	defer deps.Close()

	if cfg.NotifyOnStart && !opts.noStartMessage {
		if err := deps.relay.Announce(ctx); err != nil {
			log.Printf("Warning: startup notice failed: %v", err)
		}
	}

	if err := deps.relay.Start(); err != nil {
		return err
	}
	log.Printf("Relaying reviews from %s", cfg.APIURL)

	if opts.configPath != "" {
		deps.watcher = daemon.NewConfigWatcher(opts.configPath, cfg, reloadConfig, deps.relay, deps.events)
		if err := deps.watcher.Start(ctx); err != nil {
			log.Printf("Warning: not watching %s: %v", opts.configPath, err)
		}
	}

	statusCh := make(chan os.Signal, 1)
	if len(statusSignals) > 0 {
		signal.Notify(statusCh, statusSignals...)
		defer signal.Stop(statusCh)
	}

	for {
		select {
		case <-statusCh:
			log.Print(statusReport(deps))
		case <-ctx.Done():
			log.Printf("Shutting down...")
			deps.relay.Stop()
			log.Print(statusReport(deps))
			return nil
		}
	}
}
