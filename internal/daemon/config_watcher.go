package daemon

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/AndreyBychenkow/LessonReportBot/internal/config"
)

// ConfigLoader reads the config file at path, including any environment
// overrides.
type ConfigLoader func(path string) (*config.Config, error)

// ConfigWatcher watches config.toml and hands changed relay policy to a
// Relay.
//
// Hot-reloadable settings take effect at the relay's next step:
// cooldown_seconds, max_message_len, notify_on_timeout.
//
// Settings requiring restart: api_url, api_token, bot_token, chat_id,
// telegram_api_url, request_timeout_seconds, [retry], journal_path,
// event_log_path. Changes to these are logged and otherwise ignored.
//
// Note: ConfigWatcher is not restart-safe. Once Stop() is called, Start() will
// return an error.
type ConfigWatcher struct {
	configPath     string
	load           ConfigLoader
	relay          *Relay
	events         *EventLog
	cfg            *config.Config
	cfgMu          sync.RWMutex
	watcher        *fsnotify.Watcher
	stopCh         chan struct{}
	stopOnce       sync.Once
	stopped        bool
	lastReloadedAt time.Time
	reloadCounter  uint64
	debounceDelay  time.Duration
}

// NewConfigWatcher creates a watcher for configPath. cfg is the config the
// relay was started with.
func NewConfigWatcher(configPath string, cfg *config.Config, load ConfigLoader, relay *Relay, events *EventLog) *ConfigWatcher {
	return &ConfigWatcher{
		configPath:    configPath,
		load:          load,
		relay:         relay,
		events:        events,
		cfg:           cfg,
		stopCh:        make(chan struct{}),
		debounceDelay: 200 * time.Millisecond,
	}
}

// Start begins watching the config file for changes.
// Returns an error if the watcher has already been stopped.
func (cw *ConfigWatcher) Start(ctx context.Context) error {
	cw.cfgMu.RLock()
	stopped := cw.stopped
	cw.cfgMu.RUnlock()
	if stopped {
		return fmt.Errorf("config watcher already stopped; create a new instance to restart")
	}

	if cw.configPath == "" {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	cw.watcher = watcher

	// Watch the directory, not the file, so editors that save by
	// delete + create or rename are still seen.
	configDir := filepath.Dir(cw.configPath)
	configFile := filepath.Base(cw.configPath)

	if err := watcher.Add(configDir); err != nil {
		watcher.Close()
		cw.watcher = nil
		return err
	}

	go cw.watchLoop(ctx, configFile)
	return nil
}

// Stop stops the config watcher. Safe to call multiple times.
func (cw *ConfigWatcher) Stop() {
	cw.stopOnce.Do(func() {
		cw.cfgMu.Lock()
		cw.stopped = true
		cw.cfgMu.Unlock()
		close(cw.stopCh)
		if cw.watcher != nil {
			cw.watcher.Close()
		}
	})
}

// Config returns the most recently loaded config.
func (cw *ConfigWatcher) Config() *config.Config {
	cw.cfgMu.RLock()
	defer cw.cfgMu.RUnlock()
	return cw.cfg
}

// LastReloadedAt returns the time of the last successful reload.
func (cw *ConfigWatcher) LastReloadedAt() time.Time {
	cw.cfgMu.RLock()
	defer cw.cfgMu.RUnlock()
	return cw.lastReloadedAt
}

// ReloadCounter is incremented on each successful reload.
func (cw *ConfigWatcher) ReloadCounter() uint64 {
	cw.cfgMu.RLock()
	defer cw.cfgMu.RUnlock()
	return cw.reloadCounter
}

func (cw *ConfigWatcher) watchLoop(ctx context.Context, configFile string) {
	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-cw.stopCh:
			return
		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != configFile {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}

			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(cw.debounceDelay, cw.reloadConfig)

		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("Config watcher error: %v", err)
		}
	}
}

func (cw *ConfigWatcher) reloadConfig() {
	newCfg, err := cw.load(cw.configPath)
	if err != nil {
		log.Printf("Failed to reload config: %v", err)
		if cw.events != nil {
			cw.events.Log(LevelWarn, "config", fmt.Sprintf("reload failed: %v", err), "")
		}
		return
	}

	cw.cfgMu.Lock()
	if cw.stopped {
		cw.cfgMu.Unlock()
		return
	}
	oldCfg := cw.cfg
	cw.cfg = newCfg
	cw.cfgMu.Unlock()

	logRestartRequired(oldCfg, newCfg)
	if cw.relay != nil {
		next := RelayConfigFrom(newCfg)
		// The poll client's timeout is fixed at startup; keep quoting it.
		next.RequestTimeout = cw.relay.Config().RequestTimeout
		cw.relay.UpdateConfig(next)
	}

	cw.cfgMu.Lock()
	cw.lastReloadedAt = time.Now()
	cw.reloadCounter++
	cw.cfgMu.Unlock()

	if cw.events != nil {
		cw.events.Log(LevelInfo, "config", "config reloaded from "+cw.configPath, "")
	}
	log.Printf("Config reloaded successfully")
}

func logRestartRequired(old, new *config.Config) {
	if old == nil {
		return
	}
	if old.APIURL != new.APIURL {
		log.Printf("Config change: api_url %q -> %q (requires restart to take effect)", old.APIURL, new.APIURL)
	}
	if old.APIToken != new.APIToken {
		log.Printf("Config change: api_token (requires restart to take effect)")
	}
	if old.BotToken != new.BotToken {
		log.Printf("Config change: bot_token (requires restart to take effect)")
	}
	if old.ChatID != new.ChatID {
		log.Printf("Config change: chat_id %q -> %q (requires restart to take effect)", old.ChatID, new.ChatID)
	}
	if old.RequestTimeoutSeconds != new.RequestTimeoutSeconds {
		log.Printf("Config change: request_timeout_seconds %d -> %d (requires restart to take effect)",
			old.RequestTimeoutSeconds, new.RequestTimeoutSeconds)
	}
	if old.Retry != new.Retry {
		log.Printf("Config change: [retry] (requires restart to take effect)")
	}
}
