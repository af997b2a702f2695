// Package api is the HTTP surface over the alerting core: admin alert
// management, recipient actions (read/snooze), analytics, and the manual
// sweep trigger. It owns serialization; the core packages never see HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	corslib "github.com/rs/cors"

	logx "alertd/pkg/logx"
)

type Config struct {
	Enabled          bool
	Addr             string
	CORSAllowOrigins []string

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type Server struct {
	mu  sync.Mutex
	cfg Config
	log logx.Logger

	h    *Handlers
	http *http.Server
}

func NewServer(cfg Config, h *Handlers, log logx.Logger) *Server {
	if log.IsZero() {
		log = logx.Nop()
	}
	if strings.TrimSpace(cfg.Addr) == "" {
		cfg.Addr = "127.0.0.1:8080"
	}
	return &Server{cfg: cfg, log: log, h: h}
}

// Router builds the chi mux. Split out so tests can drive handlers through
// httptest without binding a socket.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	c := corslib.New(corslib.Options{
		AllowedOrigins:   s.cfg.CORSAllowOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
	})
	r.Use(c.Handler)

	r.Get("/healthz", s.h.Health)

	r.Route("/admin", func(r chi.Router) {
		r.Post("/alerts", s.h.CreateAlert)
		r.Get("/alerts", s.h.ListAlerts)
		r.Put("/alerts/{alertID}", s.h.UpdateAlert)
		r.Post("/alerts/{alertID}/archive", s.h.ArchiveAlert)
		r.Get("/deliveries", s.h.RecentDeliveries)
		r.Get("/sweeps", s.h.SweepHistory)
	})

	r.Route("/users/{recipientID}", func(r chi.Router) {
		r.Get("/alerts", s.h.UserAlerts)
		r.Get("/inbox", s.h.UserInbox)
		r.Post("/alerts/{alertID}/read", s.h.MarkRead)
		r.Post("/alerts/{alertID}/snooze", s.h.Snooze)
	})

	r.Get("/analytics", s.h.Analytics)
	r.Post("/system/sweep", s.h.TriggerSweep)

	return r
}

// Start begins serving in a background goroutine. Idempotent.
func (s *Server) Start(ctx context.Context) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.cfg.Enabled || s.http != nil {
		return
	}

	s.http = &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.Router(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
	}
	srv := s.http

	go func() {
		s.log.Info("api listening", logx.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("api server failed", logx.Err(err))
		}
	}()
}

func (s *Server) Stop(ctx context.Context) {
	s.mu.Lock()
	srv := s.http
	s.http = nil
	s.mu.Unlock()
	if srv == nil {
		return
	}
	if err := srv.Shutdown(ctx); err != nil {
		_ = srv.Close()
	}
	s.log.Info("api stopped")
}
