package redisserver

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/semaphore"

	"github.com/yndnr/vault-go/internal/core/service"
	"github.com/yndnr/vault-go/pkg/cmap"
)

// Config holds the RESP server configuration.
type Config struct {
	// Addr is the TCP listen address.
	Addr string
	// ReadTimeout bounds reading one command once its first byte arrived.
	ReadTimeout time.Duration
	// WriteTimeout bounds writing one reply.
	WriteTimeout time.Duration
	// IdleTimeout closes connections idle between commands.
	IdleTimeout time.Duration
	// MaxConns caps concurrent connections; extra ones are refused.
	MaxConns int
	// MaxBulk bounds a READ count and a WRITE payload.
	MaxBulk int
	// RateLimit is commands per second per peer IP. 0 disables it.
	RateLimit int
	// AdminSecretHash is the argon2id hash AUTH checks against. Empty
	// disables AUTH.
	AdminSecretHash string
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Addr:         "127.0.0.1:6390",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  5 * time.Minute,
		MaxConns:     1024,
		MaxBulk:      DefaultMaxBulkLen,
		RateLimit:    1000,
	}
}

// withDefaults returns a copy of cfg with zero timeouts and limits
// replaced by DefaultConfig values.
func withDefaults(cfg *Config) *Config {
	def := DefaultConfig()
	if cfg == nil {
		return def
	}
	out := *cfg
	if out.ReadTimeout <= 0 {
		out.ReadTimeout = def.ReadTimeout
	}
	if out.WriteTimeout <= 0 {
		out.WriteTimeout = def.WriteTimeout
	}
	if out.IdleTimeout <= 0 {
		out.IdleTimeout = def.IdleTimeout
	}
	if out.MaxBulk <= 0 {
		out.MaxBulk = def.MaxBulk
	}
	return &out
}

// Metrics receives request and connection events. metric.Registry
// implements it.
type Metrics interface {
	RecordRequest(surface, command, status string)
	ObserveRequestDuration(surface, command string, seconds float64)
	RecordAuthFailure(surface string)
	RecordRateLimited(surface string)
	ConnOpened(surface string)
	ConnClosed(surface string)
}

type nopMetrics struct{}

func (nopMetrics) RecordRequest(string, string, string)           {}
func (nopMetrics) ObserveRequestDuration(string, string, float64) {}
func (nopMetrics) RecordAuthFailure(string)                       {}
func (nopMetrics) RecordRateLimited(string)                       {}
func (nopMetrics) ConnOpened(string)                              {}
func (nopMetrics) ConnClosed(string)                              {}

const surface = "resp"

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// Server is the RESP device protocol server.
type Server struct {
	cfg      *Config
	registry *service.Registry
	handler  *CommandHandler
	logger   *slog.Logger
	metrics  Metrics

	mu      sync.Mutex
	ln      net.Listener
	running atomic.Bool
	wg      sync.WaitGroup

	slots *semaphore.Weighted
	conns *cmap.Map[string, *Conn]
}

// New creates a RESP server over registry.
func New(cfg *Config, registry *service.Registry, opts ...Option) *Server {
	cfg = withDefaults(cfg)

	s := &Server{
		cfg:      cfg,
		registry: registry,
		logger:   slog.Default(),
		metrics:  nopMetrics{},
		conns:    cmap.New[string, *Conn](),
	}
	for _, opt := range opts {
		opt(s)
	}
	if cfg.MaxConns > 0 {
		s.slots = semaphore.NewWeighted(int64(cfg.MaxConns))
	}

	s.handler = NewCommandHandler(s, registry)
	return s
}

// Addr returns the bound address once the server is listening.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// ConnCount returns the number of open connections.
func (s *Server) ConnCount() int {
	return s.conns.Count()
}

// ListenAndServe listens on cfg.Addr and serves until ctx is done or
// Shutdown is called.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()
	s.running.Store(true)

	s.logger.Info("resp server listening", "address", ln.Addr().String())

	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()

	for {
		nc, err := ln.Accept()
		if err != nil {
			if !s.running.Load() || errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				return nil
			}
			return err
		}

		if s.slots != nil && !s.slots.TryAcquire(1) {
			s.logger.Warn("connection refused, limit reached", "remote", nc.RemoteAddr().String(), "max_conns", s.cfg.MaxConns)
			bw := bufio.NewWriter(nc)
			_ = WriteError(bw, "ERR max number of clients reached")
			_ = bw.Flush()
			_ = nc.Close()
			continue
		}

		c := newConn(ctx, nc, ulid.Make().String())
		s.conns.Set(c.id, c)
		s.metrics.ConnOpened(surface)

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.release(c)
			s.serveConn(c)
		}()
	}
}

func (s *Server) release(c *Conn) {
	c.Close()
	s.conns.Delete(c.id)
	s.metrics.ConnClosed(surface)
	if s.slots != nil {
		s.slots.Release(1)
	}
}

// Shutdown stops accepting, closes every connection, which cancels any
// lock waits they are in, and waits for their goroutines.
func (s *Server) Shutdown(ctx context.Context) error {
	s.running.Store(false)

	s.mu.Lock()
	ln := s.ln
	s.mu.Unlock()

	var firstErr error
	if ln != nil {
		if err := ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			firstErr = err
		}
	}

	for _, c := range s.conns.Values() {
		c.Close()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return firstErr
}

func (s *Server) serveConn(c *Conn) {
	log := s.logger.With("conn_id", c.id, "remote", c.RemoteAddr().String())
	log.Debug("connection opened")
	defer log.Debug("connection closed")

	for {
		// Idle connections may wait IdleTimeout for their next command.
		if err := c.netConn.SetReadDeadline(time.Now().Add(s.cfg.IdleTimeout)); err != nil {
			return
		}
		if _, err := c.br.Peek(1); err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				log.Debug("connection read error", "error", err)
			}
			return
		}

		// Once a command has started it must arrive within ReadTimeout.
		if err := c.netConn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout)); err != nil {
			return
		}

		args, err := ReadCommand(c.br, s.cfg.MaxBulk)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				return
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				log.Debug("command read timed out")
				return
			}
			if errors.Is(err, ErrLimitExceeded) {
				log.Warn("protocol limit exceeded", "error", err)
			}
			s.reply(c, func(w *bufio.Writer) error {
				return WriteError(w, "ERR protocol error: "+err.Error())
			})
			return
		}

		if len(args) == 0 {
			s.reply(c, func(w *bufio.Writer) error { return WriteError(w, "ERR no command") })
			continue
		}

		s.handler.Handle(c, args)

		if err := c.flush(s.cfg.WriteTimeout); err != nil {
			return
		}
		if c.closing.Load() {
			return
		}
	}
}

func (s *Server) reply(c *Conn, fn func(w *bufio.Writer) error) {
	_ = fn(c.bw)
	_ = c.flush(s.cfg.WriteTimeout)
}
