// Package pprof serves net/http/pprof on an optional, reloadable listener.
package pprof

import (
	"context"
	"crypto/subtle"
	"errors"
	"net"
	"net/http"
	hpprof "net/http/pprof"
	"runtime"
	"strings"
	"sync"
	"time"

	logx "dutybot/pkg/logx"
)

type Config struct {
	Enabled bool
	Addr    string
	Token   string

	BlockProfileRate     int
	MutexProfileFraction int
}

type Service struct {
	mu   sync.Mutex
	log  logx.Logger
	cfg  Config
	srv  *http.Server
	addr string
}

func New(log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{log: log.With(logx.String("comp", "pprof"))}
}

// Apply starts, stops or restarts the listener to match cfg. Profile rates
// are applied even when the listener is disabled.
func (s *Service) Apply(ctx context.Context, cfg Config) {
	runtime.SetBlockProfileRate(cfg.BlockProfileRate)
	runtime.SetMutexProfileFraction(cfg.MutexProfileFraction)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !cfg.Enabled {
		s.stopLocked(ctx)
		s.cfg = cfg
		return
	}
	if s.srv != nil && s.cfg.Addr == cfg.Addr && s.cfg.Token == cfg.Token {
		s.cfg = cfg
		return
	}
	s.stopLocked(ctx)
	s.cfg = cfg
	s.startLocked()
}

func (s *Service) startLocked() {
	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", hpprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", hpprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", hpprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", hpprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", hpprof.Trace)

	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		s.log.Warn("pprof listen failed", logx.String("addr", s.cfg.Addr), logx.Err(err))
		return
	}
	srv := &http.Server{
		Handler:           withToken(s.cfg.Token, mux),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
	s.srv = srv
	s.addr = ln.Addr().String()

	addr := s.addr
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Warn("pprof server error", logx.String("addr", addr), logx.Err(err))
		}
	}()
	s.log.Info("pprof enabled", logx.String("addr", addr), logx.Bool("token", s.cfg.Token != ""))
}

// Stop shuts the listener down; it is a no-op when not running.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked(ctx)
}

func (s *Service) stopLocked(ctx context.Context) {
	if s.srv == nil {
		return
	}
	srv, addr := s.srv, s.addr
	s.srv, s.addr = nil, ""

	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.log.Warn("pprof shutdown error", logx.String("addr", addr), logx.Err(err))
	}
	s.log.Info("pprof disabled", logx.String("addr", addr))
}

// Addr is the bound address, or "" when not running.
func (s *Service) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

func withToken(token string, next http.Handler) http.Handler {
	token = strings.TrimSpace(token)
	if token == "" {
		return next
	}
	want := []byte("Bearer " + token)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if subtle.ConstantTimeCompare([]byte(r.Header.Get("Authorization")), want) != 1 {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
