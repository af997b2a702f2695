// Package app wires the alertd services together: config manager, logging,
// state store, directory, delivery channels, sweep service, and the HTTP API.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"alertd/internal/alert"
	"alertd/internal/analytics"
	"alertd/internal/api"
	"alertd/internal/config"
	"alertd/internal/delivery"
	"alertd/internal/directory"
	"alertd/internal/eventbus"
	"alertd/internal/state"
	"alertd/internal/sweep"
	logx "alertd/pkg/logx"
)

type App struct {
	cfgMgr *config.Manager
	logSvc *logx.Service
	log    logx.Logger

	bus      eventbus.Bus
	registry alert.Registry
	dir      *directory.Static
	store    state.Store
	router   *delivery.Router
	inapp    *delivery.InApp
	sweeper  *sweep.Service
	api      *api.Server

	cancel     context.CancelFunc
	doneCh     chan struct{}
	busStop    func()
	cfgUpdates chan *config.Config
}

// New loads and validates the config at path and builds the whole service
// graph. Nothing is listening or ticking yet; call Start.
func New(path string) (*App, error) {
	mgr := config.NewManager(path)
	mgr.SetValidator(validate)

	cfg, err := mgr.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := validate(context.Background(), cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	logSvc, log := logx.New(loggingConfig(cfg))
	mgr.SetLogger(log.With(logx.String("component", "config")))

	a := &App{
		cfgMgr: mgr,
		logSvc: logSvc,
		log:    log,
		bus:    eventbus.New(),
	}

	a.store, err = state.Open(storageConfig(cfg), log.With(logx.String("component", "state")))
	if err != nil {
		logSvc.Close()
		return nil, fmt.Errorf("open state store: %w", err)
	}

	recipients, teams := directoryData(cfg)
	a.dir = directory.NewStatic(recipients, teams)

	a.registry = alert.NewMemoryRegistry()

	channels, inapp, err := buildChannels(cfg)
	if err != nil {
		a.store.Close()
		logSvc.Close()
		return nil, err
	}
	a.inapp = inapp
	a.router = delivery.NewRouter(a.dir, channels...)

	a.sweeper = sweep.New(sweepConfig(cfg), a.registry, a.dir, a.store, a.router,
		log.With(logx.String("component", "sweep")), a.bus)

	engine := analytics.New(a.registry, a.store)
	handlers := api.NewHandlers(a.registry, a.store, a.dir, a.router, a.inapp,
		a.sweeper, engine, a.bus, log.With(logx.String("component", "api")))
	a.api = api.NewServer(apiConfig(cfg), handlers, log.With(logx.String("component", "api")))

	return a, nil
}

func (a *App) Logger() logx.Logger { return a.log }

// Start brings up the API listener, the sweep trigger, the config watcher,
// and the event logger. It returns once everything is running.
func (a *App) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.doneCh = make(chan struct{})

	a.sweeper.Start(runCtx)
	a.api.Start(runCtx)
	a.startEventLogger()

	a.cfgUpdates = a.cfgMgr.Subscribe(1)
	updates := a.cfgUpdates
	go func() {
		defer close(a.doneCh)
		go func() {
			for cfg := range updates {
				a.applyConfig(cfg)
			}
		}()
		if err := a.cfgMgr.Watch(runCtx); err != nil && runCtx.Err() == nil {
			a.log.Error("config watcher stopped", logx.Err(err))
		}
	}()

	a.log.Info("alertd started")
	return nil
}

// Stop shuts everything down in reverse order, waiting for an in-flight
// sweep to complete.
func (a *App) Stop(ctx context.Context) {
	if a.cancel != nil {
		a.cancel()
	}
	a.api.Stop(ctx)
	a.sweeper.Stop(ctx)
	if a.busStop != nil {
		a.busStop()
	}
	if a.cfgUpdates != nil {
		a.cfgMgr.Unsubscribe(a.cfgUpdates)
		a.cfgUpdates = nil
	}
	if a.doneCh != nil {
		select {
		case <-a.doneCh:
		case <-ctx.Done():
		}
	}
	if err := a.store.Close(); err != nil {
		a.log.Warn("state store close failed", logx.Err(err))
	}
	a.log.Info("alertd stopped")
	a.logSvc.Close()
}

// applyConfig propagates a validated config reload to the services that can
// retune live. The API listener intentionally keeps its address.
func (a *App) applyConfig(cfg *config.Config) {
	a.logSvc.Apply(loggingConfig(cfg))
	a.sweeper.Apply(sweepConfig(cfg))
	recipients, teams := directoryData(cfg)
	a.dir.Reload(recipients, teams)
	a.log.Info("configuration reloaded")
}

func (a *App) startEventLogger() {
	events, stop := a.bus.Subscribe(64)
	a.busStop = stop
	log := a.log.With(logx.String("component", "events"))
	go func() {
		for e := range events {
			log.Debug("event", logx.String("type", e.Type), logx.Any("data", e.Data))
		}
	}()
}

// validate is the config manager's hook: structural checks plus the cron
// schedule, which only the sweep parser understands.
func validate(ctx context.Context, cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if s := cfg.Sweep.Schedule; s != "" {
		parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
		if _, err := parser.Parse(s); err != nil {
			return fmt.Errorf("sweep.schedule: %w", err)
		}
	}
	if tz := cfg.Sweep.Timezone; tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return fmt.Errorf("sweep.timezone: %w", err)
		}
	}
	return nil
}

func loggingConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

func storageConfig(cfg *config.Config) state.Config {
	if cfg.Storage == nil {
		return state.Config{}
	}
	busy, _ := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout) // validated already
	return state.Config{
		Driver:      cfg.Storage.Driver,
		Path:        cfg.Storage.Path,
		BusyTimeout: busy,
	}
}

func sweepConfig(cfg *config.Config) sweep.Config {
	return sweep.Config{
		Enabled:     cfg.Sweep.Enabled,
		Schedule:    cfg.Sweep.Schedule,
		Workers:     cfg.Sweep.Workers,
		RatePerSec:  cfg.Sweep.RatePerSec,
		HistorySize: cfg.Sweep.HistorySize,
		Timezone:    cfg.Sweep.Timezone,
	}
}

func apiConfig(cfg *config.Config) api.Config {
	read, write, idle, _ := cfg.API.Timeouts() // validated already
	return api.Config{
		Enabled:          cfg.API.Enabled,
		Addr:             cfg.API.Addr,
		CORSAllowOrigins: cfg.API.CORSAllowOrigins,
		ReadTimeout:      read,
		WriteTimeout:     write,
		IdleTimeout:      idle,
	}
}

func directoryData(cfg *config.Config) ([]directory.Recipient, map[string][]string) {
	recipients := make([]directory.Recipient, 0, len(cfg.Directory.Recipients))
	for _, r := range cfg.Directory.Recipients {
		recipients = append(recipients, directory.Recipient{
			ID:             r.ID,
			Name:           r.Name,
			Email:          r.Email,
			TeamID:         r.TeamID,
			TelegramChatID: r.TelegramChatID,
		})
	}
	teams := make(map[string][]string, len(cfg.Directory.Teams))
	for _, t := range cfg.Directory.Teams {
		teams[t.ID] = append(teams[t.ID], t.MemberIDs...)
	}
	return recipients, teams
}

// buildChannels always registers the in-app channel; webhook and telegram
// join when configured.
func buildChannels(cfg *config.Config) ([]delivery.Channel, *delivery.InApp, error) {
	inapp := delivery.NewInApp()
	channels := []delivery.Channel{inapp}

	if wc := cfg.Delivery.Webhook; wc != nil {
		timeout, err := config.ParseDurationField("delivery.webhook.timeout", wc.Timeout)
		if err != nil {
			return nil, nil, err
		}
		channels = append(channels, delivery.NewWebhook(delivery.WebhookConfig{
			URL:        wc.URL,
			HMACSecret: wc.HMACSecret,
			Headers:    wc.Headers,
			Timeout:    timeout,
		}))
	}

	if tc := cfg.Delivery.Telegram; tc != nil {
		poll, err := config.ParseDurationField("delivery.telegram.poll_timeout", tc.PollTimeout)
		if err != nil {
			return nil, nil, err
		}
		tg, err := delivery.NewTelegram(delivery.TelegramConfig{
			Token:       tc.Token,
			PollTimeout: poll,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("telegram channel: %w", err)
		}
		channels = append(channels, tg)
	}

	return channels, inapp, nil
}
