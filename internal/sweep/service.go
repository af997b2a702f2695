// Package sweep joins live alerts, their resolved audiences, and per-recipient
// notification state to decide who gets notified now.
package sweep

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"alertd/internal/alert"
	"alertd/internal/audience"
	"alertd/internal/directory"
	"alertd/internal/eventbus"
	"alertd/internal/state"
	logx "alertd/pkg/logx"
)

type Service struct {
	mu  sync.Mutex
	cfg Config
	loc *time.Location

	log logx.Logger
	bus eventbus.Bus

	registry alert.Registry
	dir      directory.Directory
	store    state.Store
	sender   Sender

	limiter *rate.Limiter

	parser cron.Parser
	c      *cron.Cron
	runCtx context.Context

	// sweepMu enforces the single-flight discipline: a new sweep must not
	// start while the previous one is still writing state.
	sweepMu sync.Mutex

	hmu     sync.Mutex
	history []Outcome
}

func New(cfg Config, registry alert.Registry, dir directory.Directory, store state.Store, sender Sender, log logx.Logger, bus eventbus.Bus) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{
		log:      log,
		bus:      bus,
		registry: registry,
		dir:      dir,
		store:    store,
		sender:   sender,
		parser:   cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
	}
	s.applyLocked(cfg)
	return s
}

func (s *Service) Enabled() bool {
	s.mu.Lock()
	en := s.cfg.Enabled
	s.mu.Unlock()
	return en
}

func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()

	oldSchedule := s.cfg.Schedule
	oldTZ := strings.TrimSpace(s.cfg.Timezone)
	s.applyLocked(cfg)

	if s.c == nil {
		return
	}
	if oldSchedule != s.cfg.Schedule || oldTZ != strings.TrimSpace(s.cfg.Timezone) {
		s.restartLocked()
	}
}

func (s *Service) applyLocked(cfg Config) {
	if strings.TrimSpace(cfg.Schedule) == "" {
		cfg.Schedule = "@every 1m"
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = 50
	}
	s.cfg = cfg
	s.loc = s.loadLocation(cfg.Timezone)
	if cfg.RatePerSec > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
	} else {
		s.limiter = nil
	}
}

func (s *Service) loadLocation(tz string) *time.Location {
	tz = strings.TrimSpace(tz)
	if tz == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		s.log.Warn("invalid timezone; falling back to local", logx.String("tz", tz), logx.Err(err))
		return time.Local
	}
	return loc
}

// Location returns the timezone used for snooze midnights.
func (s *Service) Location() *time.Location {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loc
}

// Start registers the periodic trigger. Idempotent.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return
	}
	if !s.cfg.Enabled {
		s.log.Debug("sweep trigger disabled")
		return
	}
	s.runCtx = ctx
	s.startCronLocked()
	s.log.Info("sweep trigger started",
		logx.String("schedule", s.cfg.Schedule),
		logx.Int("workers", s.cfg.Workers),
		logx.String("tz", s.loc.String()))
}

func (s *Service) startCronLocked() {
	c := cron.New(cron.WithParser(s.parser), cron.WithLocation(s.loc))
	if _, err := c.AddFunc(s.cfg.Schedule, s.onTick); err != nil {
		s.log.Error("invalid sweep schedule", logx.String("schedule", s.cfg.Schedule), logx.Err(err))
		return
	}
	c.Start()
	s.c = c
}

func (s *Service) restartLocked() {
	if s.c != nil {
		<-s.c.Stop().Done()
		s.c = nil
	}
	if s.cfg.Enabled {
		s.startCronLocked()
		s.log.Info("sweep trigger restarted", logx.String("schedule", s.cfg.Schedule), logx.String("tz", s.loc.String()))
	}
}

// Stop halts the trigger and waits for an in-flight sweep to finish.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	c := s.c
	s.c = nil
	s.mu.Unlock()

	if c != nil {
		select {
		case <-c.Stop().Done():
		case <-ctx.Done():
		}
	}

	// Wait for a running sweep; its deliveries already dispatched may finish.
	done := make(chan struct{})
	go func() {
		s.sweepMu.Lock()
		defer s.sweepMu.Unlock()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
	s.log.Info("sweep trigger stopped")
}

func (s *Service) onTick() {
	s.mu.Lock()
	ctx := s.runCtx
	s.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}
	if _, err := s.Sweep(ctx); err != nil {
		if err == ErrSweepRunning {
			s.log.Debug("sweep tick skipped; previous sweep still running")
			return
		}
		s.log.Warn("sweep failed", logx.Err(err))
	}
}

// Sweep runs one pass now. It is the manual-trigger entry point; the cron
// tick calls it too.
func (s *Service) Sweep(ctx context.Context) (Outcome, error) {
	if !s.sweepMu.TryLock() {
		return Outcome{}, ErrSweepRunning
	}
	defer s.sweepMu.Unlock()

	s.mu.Lock()
	loc := s.loc
	s.mu.Unlock()

	return s.sweepAt(ctx, time.Now().In(loc))
}

// sweepAt is the whole algorithm for one pass at a fixed "now". Ordering
// across alerts and recipients is unspecified; only per-pair outcomes matter.
func (s *Service) sweepAt(ctx context.Context, now time.Time) (Outcome, error) {
	s.mu.Lock()
	cfg := s.cfg
	lim := s.limiter
	s.mu.Unlock()

	start := time.Now()

	alerts, err := s.registry.Active(ctx, now)
	if err != nil {
		return Outcome{}, err
	}

	var delivered, failed, skipped atomic.Int64
	considered := 0

	g := new(errgroup.Group)
	g.SetLimit(cfg.Workers)

dispatch:
	for _, a := range alerts {
		if !a.RemindersEnabled {
			continue
		}
		considered++

		// One directory snapshot per alert: tolerant of slow directories
		// without freezing membership for the whole sweep.
		aud, err := audience.Resolve(ctx, a.Visibility, s.dir)
		if err != nil {
			s.log.Warn("audience resolution failed; skipping alert",
				logx.String("alert", a.ID), logx.Err(err))
			continue
		}

		for recipientID := range aud {
			if ctx.Err() != nil {
				break dispatch
			}
			a, recipientID := a, recipientID
			g.Go(func() error {
				s.processPair(ctx, a, recipientID, now, lim, &delivered, &failed, &skipped)
				return nil
			})
		}
	}

	_ = g.Wait()

	out := Outcome{
		StartedAt: now,
		Took:      time.Since(start),
		Alerts:    considered,
		Delivered: int(delivered.Load()),
		Failed:    int(failed.Load()),
		Skipped:   int(skipped.Load()),
	}
	s.appendHistory(out)
	if s.bus != nil {
		s.bus.Publish(eventbus.Event{Type: eventbus.TypeSweepDone, Data: out})
	}
	s.log.Info("sweep done",
		logx.Int("alerts", out.Alerts),
		logx.Int("delivered", out.Delivered),
		logx.Int("failed", out.Failed),
		logx.Int("skipped", out.Skipped),
		logx.Duration("took", out.Took))
	return out, nil
}

// processPair handles one (alert, recipient): fetch-or-create state, check
// eligibility, deliver, record the new reminder timestamp on success only.
func (s *Service) processPair(ctx context.Context, a alert.Alert, recipientID string, now time.Time, lim *rate.Limiter, delivered, failed, skipped *atomic.Int64) {
	st, err := s.store.GetOrCreate(ctx, recipientID, a.ID)
	if err != nil {
		s.log.Warn("state lookup failed", logx.String("alert", a.ID), logx.String("recipient", recipientID), logx.Err(err))
		failed.Add(1)
		return
	}

	before := st.Status
	eligible := st.ShouldRemind(now, a.ReminderEvery)
	if st.Status != before {
		// The lazy snooze-expiry transition happened; persist it regardless of
		// what delivery does next. The store applies it conditionally so a
		// concurrent mark-read is not reverted to unread.
		if err := s.store.ExpireSnooze(ctx, recipientID, a.ID); err != nil {
			s.log.Warn("snooze expiry persist failed", logx.String("alert", a.ID), logx.String("recipient", recipientID), logx.Err(err))
		}
	}
	if !eligible {
		skipped.Add(1)
		return
	}

	if lim != nil {
		if err := lim.Wait(ctx); err != nil {
			skipped.Add(1)
			return
		}
	}

	sendErr := s.sender.Send(ctx, a, recipientID)

	rec := state.DeliveryRecord{
		At:          now,
		AlertID:     a.ID,
		RecipientID: recipientID,
		Channel:     a.Channel,
		OK:          sendErr == nil,
	}
	if sendErr != nil {
		rec.Error = sendErr.Error()
	}
	if err := s.store.AppendDelivery(ctx, rec); err != nil {
		s.log.Debug("delivery log append failed", logx.Err(err))
	}

	if sendErr != nil {
		// Expected and non-fatal: state stays unchanged, so the pair is
		// eligible again on the very next sweep.
		failed.Add(1)
		if s.bus != nil {
			s.bus.Publish(eventbus.Event{Type: eventbus.TypeDeliveryFail, Data: rec})
		}
		return
	}

	// Stamp only LastReminderSent. The record fetched above is stale by now if
	// the recipient read or snoozed the alert while the send was in flight;
	// upserting it whole would clobber that action.
	if err := s.store.StampReminder(ctx, recipientID, a.ID, now); err != nil {
		s.log.Warn("reminder stamp failed", logx.String("alert", a.ID), logx.String("recipient", recipientID), logx.Err(err))
		failed.Add(1)
		return
	}
	delivered.Add(1)
	if s.bus != nil {
		s.bus.Publish(eventbus.Event{Type: eventbus.TypeDelivered, Data: rec})
	}
}

func (s *Service) appendHistory(o Outcome) {
	s.mu.Lock()
	size := s.cfg.HistorySize
	s.mu.Unlock()

	s.hmu.Lock()
	s.history = append(s.history, o)
	if len(s.history) > size {
		s.history = s.history[len(s.history)-size:]
	}
	s.hmu.Unlock()
}

// History snapshots recent sweep outcomes, oldest first.
func (s *Service) History() []Outcome {
	s.hmu.Lock()
	out := append([]Outcome(nil), s.history...)
	s.hmu.Unlock()
	return out
}
